// Package services – ReplyPipeline
//
// ReplyPipeline picks at most one answer for an inbound buyer message. The
// sources are tried in order: the external reply API (when configured),
// keyword rules (item-scoped first, then generic), the AI stage and finally
// the default reply with its reply-once ledger.
//
// Observability: Decide is OpenTelemetry-instrumented and reports the source
// of every decision through Observe.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/xianyu-agent/internal/classify"
	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/match"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/store"
)

// Reply sources, as reported to Observe.
const (
	SourceExternal = "external"
	SourceKeyword  = "keyword"
	SourceAI       = "ai"
	SourceDefault  = "default"
	SourceNone     = "none"
)

// Default size of an image whose dimensions are unknown.
const (
	defaultImageWidth  = 800
	defaultImageHeight = 600
)

// ReplyDecision is the outcome of the reply pipeline: SendText, SendImage,
// Skip or NotMatched.
type ReplyDecision interface {
	isReplyDecision()
}

// SendText sends Text to the buyer.
type SendText struct {
	Text   string
	Source string
}

// SendImage sends a picture to the buyer.
type SendImage struct {
	URL           string
	Width, Height int
	Source        string
}

// Skip means a source matched but decided nothing must be sent.
type Skip struct {
	Reason string
	Source string
}

// NotMatched means no source produced an answer.
type NotMatched struct{}

func (SendText) isReplyDecision()   {}
func (SendImage) isReplyDecision()  {}
func (Skip) isReplyDecision()       {}
func (NotMatched) isReplyDecision() {}

// Skip reasons.
const (
	SkipPaused     = "paused"
	SkipEmptyReply = "empty_reply"
	SkipReplyOnce  = "reply_once"
)

// ImageUploader turns a local file into a marketplace CDN image.
type ImageUploader interface {
	UploadImage(ctx context.Context, credentialID, path string) (market.UploadedImage, error)
}

// ReplyPipeline decides replies for one account. It is safe for concurrent
// use; invocations for the same conversation are not serialized.
type ReplyPipeline struct {
	CredentialID string
	Store        *store.Store
	Pauses       *PauseRegistry

	// Optional collaborators; nil disables the stage.
	External ExternalReplier
	AI       *AIResponder
	Uploader ImageUploader

	Clock clock.Clock

	// Observe, when set, receives the source of every decision.
	Observe func(source string)
}

// Decide returns the reply for a chat event.
func (p *ReplyPipeline) Decide(ctx context.Context, ev classify.Event) ReplyDecision {
	tr := otel.Tracer("services/ReplyPipeline")
	ctx, span := tr.Start(ctx, "Decide",
		trace.WithAttributes(
			attribute.String("account", p.CredentialID),
			attribute.String("chat.id", ev.ChatID),
			attribute.String("item.id", ev.ItemID),
		))
	defer span.End()

	d := p.decide(ctx, ev)
	src := sourceOf(d)
	span.SetAttributes(attribute.String("reply.source", src))
	if p.Observe != nil {
		p.Observe(src)
	}
	return d
}

func (p *ReplyPipeline) decide(ctx context.Context, ev classify.Event) ReplyDecision {
	logger := log.With().Str("account", p.CredentialID).Str("chat_id", ev.ChatID).Logger()

	if p.Pauses != nil && p.Pauses.IsPaused(ev.ChatID) {
		return Skip{Reason: SkipPaused, Source: SourceNone}
	}

	if p.External != nil {
		text, err := p.External.Reply(ctx, p.externalRequest(ev))
		switch {
		case err == nil && strings.TrimSpace(text) != "":
			return SendText{Text: formatPlaceholders(text, ev), Source: SourceExternal}
		case err != nil && !errors.Is(err, ErrExternalReply):
			logger.Warn().Err(err).Msg("external reply failed")
		}
	}

	if d, ok := p.keywordReply(ctx, ev); ok {
		return d
	}

	if p.AI != nil {
		text, err := p.AI.Reply(ctx, p.CredentialID, ev)
		switch {
		case err == nil && text != "":
			return SendText{Text: text, Source: SourceAI}
		case err != nil && !errors.Is(err, ErrAIDisabled):
			logger.Warn().Err(err).Msg("ai reply failed")
		}
	}

	return p.defaultReply(ctx, ev)
}

func (p *ReplyPipeline) keywordReply(ctx context.Context, ev classify.Event) (ReplyDecision, bool) {
	logger := log.With().Str("account", p.CredentialID).Str("chat_id", ev.ChatID).Logger()

	var scopes [][]domain.Keyword
	if ev.ItemID != "" {
		kws, err := repo.ListItemKeywords(ctx, p.Store.DB, p.CredentialID, ev.ItemID)
		if err != nil {
			logger.Error().Err(err).Msg("load item keywords")
		}
		scopes = append(scopes, kws)
	}
	generic, err := repo.ListGenericKeywords(ctx, p.Store.DB, p.CredentialID)
	if err != nil {
		logger.Error().Err(err).Msg("load keywords")
	}
	scopes = append(scopes, generic)

	for _, kws := range scopes {
		kw, ok := match.First(ev.Content, kws, func(k domain.Keyword) string { return k.Keyword })
		if !ok {
			continue
		}
		logger.Info().Str("keyword", kw.Keyword).Uint("keyword_id", kw.ID).Msg("keyword matched")
		if kw.Kind == domain.KeywordKindImage {
			img, err := p.keywordImage(ctx, &kw)
			if err != nil {
				logger.Error().Err(err).Str("image", kw.ImageURL).Msg("keyword image unavailable")
				return Skip{Reason: SkipEmptyReply, Source: SourceKeyword}, true
			}
			return img, true
		}
		if strings.TrimSpace(kw.Reply) == "" {
			return Skip{Reason: SkipEmptyReply, Source: SourceKeyword}, true
		}
		return SendText{Text: formatPlaceholders(kw.Reply, ev), Source: SourceKeyword}, true
	}
	return nil, false
}

// keywordImage resolves the picture of an image rule, uploading local files
// and persisting the CDN URL back into the rule.
func (p *ReplyPipeline) keywordImage(ctx context.Context, kw *domain.Keyword) (SendImage, error) {
	if kw.ImageURL == "" {
		return SendImage{}, ErrRenderFailed
	}
	if isRemote(kw.ImageURL) {
		return SendImage{URL: kw.ImageURL, Width: defaultImageWidth, Height: defaultImageHeight, Source: SourceKeyword}, nil
	}
	if p.Uploader == nil {
		return SendImage{}, ErrRenderFailed
	}
	up, err := p.Uploader.UploadImage(ctx, p.CredentialID, kw.ImageURL)
	if err != nil {
		return SendImage{}, err
	}
	if err := repo.UpdateKeywordImageURL(ctx, p.Store.DB, kw.ID, up.URL); err != nil {
		log.Warn().Err(err).Uint("keyword_id", kw.ID).Msg("persist uploaded image url")
	}
	return SendImage{URL: up.URL, Width: up.Width, Height: up.Height, Source: SourceKeyword}, nil
}

func (p *ReplyPipeline) defaultReply(ctx context.Context, ev classify.Event) ReplyDecision {
	dr, err := repo.GetDefaultReply(ctx, p.Store.DB, p.CredentialID)
	if err != nil {
		if !repo.IsNotFound(err) {
			log.Error().Err(err).Str("account", p.CredentialID).Msg("load default reply")
		}
		return NotMatched{}
	}
	if !dr.Enabled || strings.TrimSpace(dr.ReplyContent) == "" {
		return NotMatched{}
	}
	if dr.ReplyOnce {
		if err := repo.InsertDefaultReplyRecord(ctx, p.Store.DB, p.CredentialID, ev.ChatID); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return Skip{Reason: SkipReplyOnce, Source: SourceDefault}
			}
			log.Error().Err(err).Str("account", p.CredentialID).Msg("default reply ledger")
			return NotMatched{}
		}
	}
	return SendText{Text: formatPlaceholders(dr.ReplyContent, ev), Source: SourceDefault}
}

func (p *ReplyPipeline) externalRequest(ev classify.Event) ExternalRequest {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return ExternalRequest{
		CredentialID: p.CredentialID,
		ChatID:       ev.ChatID,
		SenderID:     ev.SenderID,
		SenderName:   ev.SenderName,
		ItemID:       ev.ItemID,
		Message:      ev.Content,
		At:           clk.Now(),
	}
}

// formatPlaceholders fills {send_user_id}, {send_user_name} and
// {send_message}.
func formatPlaceholders(text string, ev classify.Event) string {
	return strings.NewReplacer(
		"{send_user_id}", ev.SenderID,
		"{send_user_name}", ev.SenderName,
		"{send_message}", ev.Content,
	).Replace(text)
}

func sourceOf(d ReplyDecision) string {
	switch v := d.(type) {
	case SendText:
		return v.Source
	case SendImage:
		return v.Source
	case Skip:
		return v.Source
	default:
		return SourceNone
	}
}

func isRemote(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
