// Package llm wraps OpenAI-compatible chat completion endpoints behind a
// small interface so the reply pipeline can be tested without a provider.
package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Roles accepted in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("llm: empty response")

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Chatter produces a completion for a conversation.
type Chatter interface {
	Chat(ctx context.Context, model string, msgs []Message) (string, error)
}

// OpenAI is a Chatter backed by github.com/openai/openai-go.
type OpenAI struct {
	client  openai.Client
	timeout time.Duration
}

// NewOpenAI builds a client for apiKey at baseURL (empty uses the default
// OpenAI endpoint). timeout bounds each completion.
func NewOpenAI(apiKey, baseURL string, timeout time.Duration) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{client: openai.NewClient(opts...), timeout: timeout}
}

// Chat sends msgs and returns the first choice's content.
func (o *OpenAI) Chat(ctx context.Context, model string, msgs []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toParams(msgs),
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Provider hands out Chatters per (apiKey, baseURL), reusing clients.
type Provider struct {
	// New builds a Chatter; tests replace it.
	New func(apiKey, baseURL string) Chatter

	mu      sync.Mutex
	clients *lru.Cache[string, Chatter]
}

// NewProvider returns a Provider caching up to size clients.
func NewProvider(size int, timeout time.Duration) *Provider {
	if size <= 0 {
		size = 32
	}
	c, _ := lru.New[string, Chatter](size)
	return &Provider{
		New: func(apiKey, baseURL string) Chatter {
			return NewOpenAI(apiKey, baseURL, timeout)
		},
		clients: c,
	}
}

// For returns the Chatter for apiKey and baseURL.
func (p *Provider) For(apiKey, baseURL string) Chatter {
	key := baseURL + "\x00" + apiKey
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients.Get(key); ok {
		return c
	}
	c := p.New(apiKey, baseURL)
	p.clients.Add(key, c)
	return c
}
