// Package account runs one seller account: its push connection, token
// refresher, pause sweeper and per-order lock collector, plus the glue that
// turns classified push events into replies and deliveries.
//
// A Runtime is started once and stopped once. Re-enabling an account
// builds a new Runtime so that no cached state survives a restart.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/xianyu-agent/internal/classify"
	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/config"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/notify"
	"github.com/tbourn/xianyu-agent/internal/protocol"
	"github.com/tbourn/xianyu-agent/internal/push"
	"github.com/tbourn/xianyu-agent/internal/services"
	"github.com/tbourn/xianyu-agent/internal/store"
)

// ErrMissingUnb refuses to start a credential whose blob has no unb cookie.
var ErrMissingUnb = errors.New("account: credential has no unb cookie")

// Runtime status values.
const (
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusStopped  = "stopped"
	StatusExpired  = "session_expired"
	StatusError    = "error"
)

// Notifier receives operational events.
type Notifier interface {
	Notify(ctx context.Context, credentialID, kind, text string) notify.Outcome
}

// Market is the marketplace surface an account needs.
type Market interface {
	services.Market
	services.ImageUploader
	TokenAPI
}

// Hooks observe a runtime; every field is optional.
type Hooks struct {
	PushState    func(account string, s push.State)
	Frame        func(kind string)
	Event        func(kind string)
	Reply        func(source string)
	Delivery     func(result string)
	TokenRefresh func(result string)
}

// Deps are shared by every runtime of the fleet.
type Deps struct {
	Store    *store.Store
	Market   Market
	Notifier Notifier
	LLM      services.ChatterSource
	External services.ExternalReplier
	Clock    clock.Clock
	Config   *config.Config
	Hooks    Hooks
	Dialer   *websocket.Dialer
}

// Status is the externally visible state of a runtime.
type Status struct {
	Status             string    `json:"status"`
	LastError          string    `json:"last_error,omitempty"`
	LastHeartbeat      time.Time `json:"last_heartbeat"`
	LastTokenRefresh   time.Time `json:"last_token_refresh"`
	ConnectionFailures int       `json:"connection_failures"`
	ConnState          string    `json:"conn_state"`
}

// Runtime is one running account.
type Runtime struct {
	ID     string
	SelfID string

	deps      Deps
	logger    zerolog.Logger
	rules     classify.Rules
	pauses    *services.PauseRegistry
	gate      *services.OrderGate
	replies   *services.ReplyPipeline
	delivery  *services.DeliveryPipeline
	refresher *Refresher
	conn      *push.Conn

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	status      string
	lastErr     string
	lastRefresh time.Time
}

// New builds the runtime of cred without starting it.
func New(cred *domain.Credential, deps Deps) (*Runtime, error) {
	unb := protocol.CookieValue(cred.Value, "unb")
	if unb == "" {
		return nil, fmt.Errorf("%s: %w", cred.ID, ErrMissingUnb)
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	cfg := deps.Config
	rc := cfg.Runtime

	r := &Runtime{
		ID:     cred.ID,
		SelfID: unb,
		deps:   deps,
		logger: log.With().Str("account", cred.ID).Logger(),
		rules: classify.Rules{
			AutoDeliveryTriggers: cfg.Triggers.AutoDelivery,
			FreeShippingTitles:   cfg.Triggers.FreeShipping,
			Ignorable:            cfg.Triggers.Ignorable,
		},
		pauses: services.NewPauseRegistry(deps.Clock),
		gate:   services.NewOrderGate(deps.Clock, rc.ReleaseDelay, rc.DeliveryCooldown),
		status: StatusStopped,
	}

	r.refresher = &Refresher{
		CredentialID:  cred.ID,
		DeviceID:      protocol.DeviceID(unb),
		API:           deps.Market,
		Clock:         deps.Clock,
		Interval:      rc.TokenRefreshInterval,
		RetryInterval: rc.TokenRetryInterval,
		Notifier:      deps.Notifier,
		OnRefresh:     r.onRefresh,
		Observe:       deps.Hooks.TokenRefresh,
	}

	r.conn = &push.Conn{
		CredentialID: cred.ID,
		SelfID:       unb,
		Config: push.Config{
			URL:               cfg.Market.WSURL,
			UserAgent:         cfg.Market.UserAgent,
			HeartbeatInterval: rc.HeartbeatInterval,
			HeartbeatTimeout:  rc.HeartbeatTimeout,
			MaxFailures:       rc.MaxConnectionFailures,
			ExtendedBackoff:   rc.ExtendedBackoff,
			MinJitter:         3 * time.Second,
			MaxJitter:         60 * time.Second,
		},
		Tokens: r.refresher,
		Cookies: func(ctx context.Context) (string, error) {
			return deps.Store.Cookies(ctx, cred.ID)
		},
		Handler: r.HandleTree,
		Clock:   deps.Clock,
		Dialer:  deps.Dialer,
		OnFrame: deps.Hooks.Frame,
		Fatal: func(err error) bool {
			return errors.Is(err, ErrSessionExpired)
		},
		OnState: func(s push.State) {
			if deps.Hooks.PushState != nil {
				deps.Hooks.PushState(cred.ID, s)
			}
		},
	}

	r.replies = &services.ReplyPipeline{
		CredentialID: cred.ID,
		Store:        deps.Store,
		Pauses:       r.pauses,
		External:     deps.External,
		Uploader:     deps.Market,
		Clock:        deps.Clock,
		Observe:      deps.Hooks.Reply,
	}
	if deps.LLM != nil {
		r.replies.AI = &services.AIResponder{Store: deps.Store, LLM: deps.LLM}
	}

	r.delivery = &services.DeliveryPipeline{
		CredentialID: cred.ID,
		Store:        deps.Store,
		Market:       deps.Market,
		Sender:       r.conn,
		Notifier:     deps.Notifier,
		Gate:         r.gate,
		Clock:        deps.Clock,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		Observe:      deps.Hooks.Delivery,
	}
	return r, nil
}

// Start launches the children. It returns immediately.
func (r *Runtime) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.setStatus(StatusRunning, "")
	rc := r.deps.Config.Runtime

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.conn.Run(gctx) })
	g.Go(func() error { return r.refresher.Run(gctx) })
	g.Go(func() error { return r.pauses.Run(gctx, rc.PauseSweepInterval) })
	g.Go(func() error { return r.collectLocks(gctx, rc.LockGCAge) })

	go func() {
		defer close(r.done)
		err := g.Wait()
		switch {
		case errors.Is(err, ErrSessionExpired):
			r.setStatus(StatusExpired, err.Error())
		case err != nil:
			r.logger.Error().Err(err).Msg("account runtime failed")
			r.setStatus(StatusError, err.Error())
		default:
			r.setStatus(StatusStopped, "")
		}
		r.logger.Info().Msg("account runtime stopped")
	}()
	r.logger.Info().Str("unb", r.SelfID).Msg("account runtime started")
}

// Stop cancels every child and waits for them up to timeout. Pending
// lock releases are cancelled and cached items dropped.
func (r *Runtime) Stop(timeout time.Duration) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	defer func() {
		r.gate.Close()
		r.deps.Store.ForgetCredential(r.ID)
	}()
	select {
	case <-r.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("account %s: stop timed out after %s", r.ID, timeout)
	}
}

// Done is closed once every child has returned.
func (r *Runtime) Done() <-chan struct{} { return r.done }

// Status snapshots the runtime state.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Status:             r.status,
		LastError:          r.lastErr,
		LastHeartbeat:      r.conn.LastHeartbeat(),
		LastTokenRefresh:   r.lastRefresh,
		ConnectionFailures: r.conn.Failures(),
		ConnState:          r.conn.State().String(),
	}
}

// Token returns the current access token, refreshing when there is none.
func (r *Runtime) Token(ctx context.Context) (domain.AccessToken, error) {
	return r.refresher.Token(ctx)
}

func (r *Runtime) setStatus(s, lastErr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
	if lastErr != "" {
		r.lastErr = lastErr
	}
}

func (r *Runtime) onRefresh(t domain.AccessToken) {
	r.mu.Lock()
	r.lastRefresh = t.IssuedAt
	r.mu.Unlock()
	r.conn.Recycle()
}

func (r *Runtime) collectLocks(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	t := r.deps.Clock.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			if n := r.gate.GC(maxAge); n > 0 {
				r.logger.Debug().Int("removed", n).Msg("order locks collected")
			}
		}
	}
}

// HandleTree classifies one decoded payload and acts on it.
func (r *Runtime) HandleTree(ctx context.Context, tree any) {
	ev := classify.Classify(tree, r.SelfID, r.rules)
	if r.deps.Hooks.Event != nil {
		r.deps.Hooks.Event(ev.Kind.String())
	}
	logger := r.logger.With().Str("chat_id", ev.ChatID).Str("kind", ev.Kind.String()).Logger()

	switch ev.Kind {
	case classify.KindSelfEcho:
		minutes := r.deps.Config.Runtime.PauseMinutes
		if cred, err := r.deps.Store.Credential(ctx, r.ID); err == nil {
			minutes = cred.PauseMinutes
		}
		r.pauses.Pause(ev.ChatID, minutes)
		logger.Debug().Int("minutes", minutes).Msg("seller replied by hand, pausing auto replies")

	case classify.KindChat:
		r.reply(ctx, logger, ev)

	case classify.KindAutoDelivery, classify.KindFreeShipping:
		err := r.delivery.Handle(ctx, ev)
		switch {
		case err == nil,
			errors.Is(err, services.ErrHeld),
			errors.Is(err, services.ErrNotOwned):
		case errors.Is(err, services.ErrRuleMiss), errors.Is(err, services.ErrRenderFailed):
			logger.Warn().Err(err).Msg("delivery not completed")
		default:
			logger.Error().Err(err).Msg("delivery failed")
		}

	case classify.KindOrderState:
		logger.Info().Str("state", ev.OrderStateHint).Msg("order state changed")

	default:
		logger.Debug().Msg("event ignored")
	}
}

func (r *Runtime) reply(ctx context.Context, logger zerolog.Logger, ev classify.Event) {
	var (
		err    error
		source string
	)
	switch d := r.replies.Decide(ctx, ev).(type) {
	case services.SendText:
		source = d.Source
		err = r.conn.SendText(ctx, ev.ChatID, ev.SenderID, d.Text)
	case services.SendImage:
		source = d.Source
		err = r.conn.SendImage(ctx, ev.ChatID, ev.SenderID, d.URL, d.Width, d.Height)
	case services.Skip:
		logger.Debug().Str("reason", d.Reason).Msg("reply skipped")
		return
	default:
		logger.Debug().Msg("no reply matched")
		return
	}
	if err != nil {
		logger.Warn().Err(err).Str("source", source).Msg("send reply")
		return
	}
	logger.Info().Str("source", source).Msg("reply sent")
}
