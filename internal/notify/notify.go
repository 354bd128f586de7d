// Package notify fans operational events out to the notification channels
// bound to a credential. Routine token-expiry chatter is filtered, and each
// (credential, kind) pair is rate limited by a cooldown.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
)

// Event kinds.
const (
	KindDeliveryFailed    = "delivery_failed"
	KindDeliverySucceeded = "delivery_succeeded"
	KindFreeShipping      = "free_shipping"
	KindTokenRefresh      = "token_refresh"
	KindSessionExpired    = "token_session_expired"
	KindConnection        = "connection"
)

// Outcome reports what Notify did with an event.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeFiltered Outcome = "filtered"
	OutcomeCooldown Outcome = "cooldown"
	OutcomeNoRoute  Outcome = "no_route"
)

// normalExpiry are message fragments of expected token/session expiry that
// the refresh loop recovers from on its own.
var normalExpiry = []string{
	"FAIL_SYS_TOKEN_EXOIRED",
	"FAIL_SYS_TOKEN_EXPIRED",
	"令牌过期",
	"FAIL_SYS_SESSION_EXPIRED",
	"Session过期",
	"Token定时刷新失败，将自动重试",
}

// Filtered reports whether message is routine expiry noise.
func Filtered(message string) bool {
	for _, m := range normalExpiry {
		if strings.Contains(message, m) {
			return true
		}
	}
	return false
}

// ChannelSource returns the enabled channels bound to a credential.
type ChannelSource interface {
	BoundChannels(ctx context.Context, credentialID string) ([]domain.NotificationChannel, error)
}

// Adapter delivers one message to one channel.
type Adapter interface {
	Send(ctx context.Context, ch domain.NotificationChannel, msg Message) error
}

// Message is what adapters render.
type Message struct {
	CredentialID string
	Kind         string
	Text         string
	At           time.Time
}

// Title is a short human-readable headline.
func (m Message) Title() string {
	return "闲鱼助手 [" + m.CredentialID + "] " + m.Kind
}

// Sink is safe for concurrent use.
type Sink struct {
	Channels ChannelSource
	Adapters map[string]Adapter
	Clock    clock.Clock

	Cooldown      time.Duration // generic kinds
	TokenCooldown time.Duration // kinds prefixed "token"

	// Observe, when set, is called with every outcome (metrics hook).
	Observe func(kind string, o Outcome)

	mu   sync.Mutex
	last map[string]time.Time
}

// NewSink builds a sink with the standard adapters.
func NewSink(src ChannelSource, clk clock.Clock, cooldown, tokenCooldown time.Duration) *Sink {
	if clk == nil {
		clk = clock.New()
	}
	hc := newHTTPClient(10 * time.Second)
	return &Sink{
		Channels: src,
		Adapters: map[string]Adapter{
			domain.ChannelWebhook:  &Webhook{HTTP: hc},
			domain.ChannelDingTalk: &DingTalk{HTTP: hc, Clock: clk},
			domain.ChannelFeishu:   &Feishu{HTTP: hc, Clock: clk},
			domain.ChannelLog:      LogAdapter{},
		},
		Clock:         clk,
		Cooldown:      cooldown,
		TokenCooldown: tokenCooldown,
		last:          make(map[string]time.Time),
	}
}

func (s *Sink) cooldownFor(kind string) time.Duration {
	if strings.HasPrefix(kind, "token") {
		return s.TokenCooldown
	}
	return s.Cooldown
}

// admit applies the cooldown and records the send time when admitted.
func (s *Sink) admit(credentialID, kind string) bool {
	now := s.Clock.Now()
	key := credentialID + "\x00" + kind
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[string]time.Time)
	}
	if at, ok := s.last[key]; ok && now.Sub(at) < s.cooldownFor(kind) {
		return false
	}
	s.last[key] = now
	return true
}

// Notify routes an event. Adapter failures are logged and never stop the
// remaining channels.
func (s *Sink) Notify(ctx context.Context, credentialID, kind, text string) Outcome {
	o := s.notify(ctx, credentialID, kind, text)
	if s.Observe != nil {
		s.Observe(kind, o)
	}
	return o
}

func (s *Sink) notify(ctx context.Context, credentialID, kind, text string) Outcome {
	if Filtered(text) {
		log.Debug().Str("account", credentialID).Str("kind", kind).Msg("notification filtered")
		return OutcomeFiltered
	}
	if !s.admit(credentialID, kind) {
		return OutcomeCooldown
	}
	chans, err := s.Channels.BoundChannels(ctx, credentialID)
	if err != nil {
		log.Error().Err(err).Str("account", credentialID).Msg("load notification channels")
		return OutcomeNoRoute
	}
	if len(chans) == 0 {
		return OutcomeNoRoute
	}

	msg := Message{CredentialID: credentialID, Kind: kind, Text: text, At: s.Clock.Now()}
	for _, ch := range chans {
		a, ok := s.Adapters[ch.Kind]
		if !ok {
			log.Warn().Str("channel", ch.Name).Str("kind", ch.Kind).Msg("no adapter for channel kind")
			continue
		}
		if err := a.Send(ctx, ch, msg); err != nil {
			log.Warn().Err(err).Str("account", credentialID).Str("channel", ch.Name).Msg("notification send failed")
		}
	}
	return OutcomeSent
}
