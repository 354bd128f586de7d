package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/notify"
)

// ErrSessionExpired stops the refresher when the credential itself is dead.
var ErrSessionExpired = errors.New("account: session expired")

// Token refresh results, as reported to Observe.
const (
	RefreshOK      = "ok"
	RefreshFailed  = "failed"
	RefreshExpired = "session_expired"
)

// retryNotice is dropped by the notification filter, so routine retries
// never page anyone.
const retryNotice = "Token定时刷新失败，将自动重试"

// TokenAPI obtains websocket access tokens.
type TokenAPI interface {
	RefreshToken(ctx context.Context, credentialID, deviceID string) (domain.AccessToken, error)
}

// Refresher owns the access token of one account. Concurrent refresh
// requests share one RPC.
type Refresher struct {
	CredentialID  string
	DeviceID      string
	API           TokenAPI
	Clock         clock.Clock
	Interval      time.Duration
	RetryInterval time.Duration
	Notifier      Notifier

	// OnRefresh is called with every new token; the runtime recycles the
	// push connection from here.
	OnRefresh func(domain.AccessToken)
	// Observe, when set, receives the result of every refresh.
	Observe func(result string)

	mu      sync.RWMutex
	tok     domain.AccessToken
	group   singleflight.Group
	expired sync.Once
}

// Current returns the held token, possibly empty.
func (r *Refresher) Current() domain.AccessToken {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tok
}

// Token returns the held token, refreshing first when there is none.
func (r *Refresher) Token(ctx context.Context) (domain.AccessToken, error) {
	if t := r.Current(); t.Valid() {
		return t, nil
	}
	return r.Refresh(ctx)
}

// Refresh fetches a new token. Callers racing each other get the result of
// a single RPC. A dead session is reported once and returned wrapped in
// ErrSessionExpired, whichever caller hit it first.
func (r *Refresher) Refresh(ctx context.Context) (domain.AccessToken, error) {
	v, err, _ := r.group.Do("token", func() (any, error) {
		t, err := r.API.RefreshToken(ctx, r.CredentialID, r.DeviceID)
		if err != nil {
			if market.IsExpiredSession(err) {
				r.sessionExpired(ctx, err)
				return domain.AccessToken{}, fmt.Errorf("%w: %w", ErrSessionExpired, err)
			}
			return domain.AccessToken{}, err
		}
		r.mu.Lock()
		r.tok = t
		r.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return domain.AccessToken{}, err
	}
	return v.(domain.AccessToken), nil
}

// Run refreshes the token every Interval after it was issued, retrying
// failures every RetryInterval. A dead session ends Run with
// ErrSessionExpired.
func (r *Refresher) Run(ctx context.Context) error {
	logger := log.With().Str("account", r.CredentialID).Str("component", "refresher").Logger()
	clk := r.clock()
	for {
		wait := r.interval()
		if t := r.Current(); t.Valid() {
			wait = t.IssuedAt.Add(r.interval()).Sub(clk.Now())
		}
		if err := clock.Sleep(ctx, clk, wait); err != nil {
			return nil
		}

		for {
			t, err := r.Refresh(ctx)
			if err == nil {
				logger.Info().Time("issued_at", t.IssuedAt).Msg("access token refreshed")
				r.observe(RefreshOK)
				if r.OnRefresh != nil {
					r.OnRefresh(t)
				}
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrSessionExpired) {
				return err
			}
			logger.Warn().Err(err).Dur("retry_in", r.retryInterval()).Msg("token refresh failed")
			r.observe(RefreshFailed)
			if market.IsStaleToken(err) {
				r.notify(ctx, notify.KindTokenRefresh, retryNotice)
			} else {
				r.notify(ctx, notify.KindTokenRefresh, fmt.Sprintf("账号 %s Token刷新失败：%v", r.CredentialID, err))
			}
			if err := clock.Sleep(ctx, clk, r.retryInterval()); err != nil {
				return nil
			}
		}
	}
}

// sessionExpired reports a dead session. The notice leaves out the
// platform error text, which the notification filter would drop.
func (r *Refresher) sessionExpired(ctx context.Context, err error) {
	r.expired.Do(func() {
		log.Error().Err(err).Str("account", r.CredentialID).Msg("session expired, stopping")
		r.observe(RefreshExpired)
		r.notify(ctx, notify.KindSessionExpired, fmt.Sprintf("账号 %s 会话已失效，请更新 Cookie", r.CredentialID))
	})
}

func (r *Refresher) clock() clock.Clock {
	if r.Clock == nil {
		return clock.New()
	}
	return r.Clock
}

func (r *Refresher) interval() time.Duration {
	if r.Interval <= 0 {
		return time.Hour
	}
	return r.Interval
}

func (r *Refresher) retryInterval() time.Duration {
	if r.RetryInterval <= 0 {
		return 5 * time.Minute
	}
	return r.RetryInterval
}

func (r *Refresher) observe(result string) {
	if r.Observe != nil {
		r.Observe(result)
	}
}

func (r *Refresher) notify(ctx context.Context, kind, text string) {
	if r.Notifier != nil {
		r.Notifier.Notify(ctx, r.CredentialID, kind, text)
	}
}
