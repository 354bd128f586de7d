package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/xianyu-agent/internal/classify"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/llm"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/store"
)

// ErrAIDisabled is returned when the account has no enabled AI settings.
var ErrAIDisabled = errors.New("ai reply disabled")

// BargainRefusal is sent instead of calling the model once a conversation
// exhausted its bargain rounds.
const BargainRefusal = "抱歉，这个价格已经是最优惠的了，不能再便宜了哦～"

const defaultHistoryTurns = 10

var builtinPrompts = map[string]string{
	"classify":           "你是闲鱼卖家的意图分类器。根据买家消息只输出一个词：price（议价、砍价、优惠、包邮等价格相关）、tech（商品参数、使用方法、技术问题）或 default（其他）。",
	domain.IntentPrice:   "你是闲鱼卖家，正在和买家议价。语气友好、简短，不要超过给定的优惠上限，不要承诺额外赠品。",
	domain.IntentTech:    "你是闲鱼卖家，熟悉自己出售的商品。根据商品信息简洁准确地回答买家的技术问题，不确定时如实说明。",
	domain.IntentDefault: "你是闲鱼卖家的客服助手。回复简短自然，引导买家下单，不要编造商品信息。",
}

// ChatterSource hands out an LLM client for a key and endpoint.
type ChatterSource interface {
	For(apiKey, baseURL string) llm.Chatter
}

// AIResponder is the LLM stage of the reply pipeline.
type AIResponder struct {
	Store        *store.Store
	LLM          ChatterSource
	HistoryTurns int
}

// Reply classifies the message intent and produces the model's answer,
// recording both turns. Price-intent messages beyond MaxBargainRounds get
// BargainRefusal without a model call.
func (a *AIResponder) Reply(ctx context.Context, credentialID string, ev classify.Event) (string, error) {
	tr := otel.Tracer("services/AIResponder")
	ctx, span := tr.Start(ctx, "Reply",
		trace.WithAttributes(
			attribute.String("account", credentialID),
			attribute.String("chat.id", ev.ChatID),
		))
	defer span.End()

	set, err := repo.GetAISettings(ctx, a.Store.DB, credentialID)
	if err != nil {
		if repo.IsNotFound(err) {
			return "", ErrAIDisabled
		}
		return "", err
	}
	if !set.Enabled || set.ModelName == "" {
		return "", ErrAIDisabled
	}
	chatter := a.LLM.For(set.APIKey, set.BaseURL)

	intent := a.intent(ctx, chatter, set, ev.Content)
	span.SetAttributes(attribute.String("ai.intent", intent))

	userTurn := &domain.AIConversation{
		CredentialID: credentialID,
		ChatID:       ev.ChatID,
		UserID:       ev.SenderID,
		ItemID:       ev.ItemID,
		Role:         domain.RoleUser,
		Content:      ev.Content,
		Intent:       intent,
	}
	assistant := func(text string) *domain.AIConversation {
		return &domain.AIConversation{
			CredentialID: credentialID,
			ChatID:       ev.ChatID,
			ItemID:       ev.ItemID,
			Role:         domain.RoleAssistant,
			Content:      text,
			Intent:       intent,
		}
	}

	var rounds int64
	if intent == domain.IntentPrice {
		rounds, err = repo.CountBargainRounds(ctx, a.Store.DB, credentialID, ev.ChatID)
		if err != nil {
			return "", err
		}
		if rounds >= int64(set.MaxBargainRounds) {
			if err := repo.AppendConversation(ctx, a.Store.DB, userTurn, assistant(BargainRefusal)); err != nil {
				return "", err
			}
			return BargainRefusal, nil
		}
	}

	limit := a.HistoryTurns
	if limit <= 0 {
		limit = defaultHistoryTurns
	}
	history, err := repo.RecentConversation(ctx, a.Store.DB, credentialID, ev.ChatID, limit)
	if err != nil {
		return "", err
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: a.systemPrompt(ctx, credentialID, set, intent, ev.ItemID, rounds)}}
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: ev.Content})

	reply, err := chatter.Chat(ctx, set.ModelName, msgs)
	if err != nil {
		return "", fmt.Errorf("ai reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if err := repo.AppendConversation(ctx, a.Store.DB, userTurn, assistant(reply)); err != nil {
		log.Warn().Err(err).Str("account", credentialID).Msg("persist ai conversation")
	}
	return reply, nil
}

func (a *AIResponder) intent(ctx context.Context, chatter llm.Chatter, set *domain.AISettings, text string) string {
	out, err := chatter.Chat(ctx, set.ModelName, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt(set, "classify")},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		log.Debug().Err(err).Str("account", set.CredentialID).Msg("intent classification failed")
		return domain.IntentDefault
	}
	return parseIntent(out)
}

func parseIntent(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, domain.IntentPrice):
		return domain.IntentPrice
	case strings.Contains(s, domain.IntentTech):
		return domain.IntentTech
	default:
		return domain.IntentDefault
	}
}

func (a *AIResponder) systemPrompt(ctx context.Context, credentialID string, set *domain.AISettings, intent, itemID string, rounds int64) string {
	var b strings.Builder
	b.WriteString(prompt(set, intent))

	if itemID != "" {
		if it, err := a.Store.Item(ctx, credentialID, itemID); err == nil {
			b.WriteString("\n\n【商品信息】")
			fmt.Fprintf(&b, "\n标题：%s", it.Title)
			if it.Price != "" {
				fmt.Fprintf(&b, "\n价格：%s", it.Price)
			}
			if desc := firstNonEmpty(it.Detail, it.Description); desc != "" {
				fmt.Fprintf(&b, "\n描述：%s", desc)
			}
		}
	}
	if intent == domain.IntentPrice {
		b.WriteString("\n\n【议价设置】")
		fmt.Fprintf(&b, "\n最高优惠比例：%d%%", set.MaxDiscountPct)
		fmt.Fprintf(&b, "\n最高优惠金额：%d元", set.MaxDiscountAmount)
		fmt.Fprintf(&b, "\n已议价轮数：%d/%d", rounds, set.MaxBargainRounds)
	}
	return b.String()
}

// prompt returns the custom prompt for key, falling back to the built-in.
func prompt(set *domain.AISettings, key string) string {
	if len(set.CustomPrompts) > 0 {
		if p := gjson.GetBytes(set.CustomPrompts, key).String(); strings.TrimSpace(p) != "" {
			return p
		}
	}
	return builtinPrompts[key]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
