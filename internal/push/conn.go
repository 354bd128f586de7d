// Package push keeps the long-lived websocket of one seller account open
// against the marketplace push gateway.
//
// A Conn walks Dialing → Registering → Live → Closing → Closed and starts
// over until its context ends. While live it acks every frame carrying a
// mid (in arrival order), sends a heartbeat every interval and hands each
// decoded sync payload to the Handler on its own goroutine, so slow
// delivery work never blocks the read loop.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/protocol"
)

// State is the connection lifecycle state.
type State int32

const (
	StateClosed State = iota
	StateDialing
	StateRegistering
	StateLive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDialing:
		return "dialing"
	case StateRegistering:
		return "registering"
	case StateLive:
		return "live"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

var (
	// ErrNoToken aborts a connection attempt that has no access token.
	ErrNoToken = errors.New("push: no access token")
	// ErrNotLive is returned by sends while the connection is down.
	ErrNotLive = errors.New("push: connection not live")

	errRecycle   = errors.New("push: recycle requested")
	errSilent    = errors.New("push: gateway silent")
	errHeartbeat = errors.New("push: heartbeat failed")
)

const maxHeartbeatFailures = 3

// TokenSource supplies the access token used on /reg. Token should request
// a refresh itself when it has nothing valid to return.
type TokenSource interface {
	Token(ctx context.Context) (domain.AccessToken, error)
}

// CookieSource returns the current cookie blob of the account.
type CookieSource func(ctx context.Context) (string, error)

// Handler receives one decoded sync payload.
type Handler func(ctx context.Context, tree any)

// Config holds the connection knobs.
type Config struct {
	URL               string
	UserAgent         string
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is the silence tolerated on top of one interval.
	HeartbeatTimeout time.Duration
	MaxFailures      int
	ExtendedBackoff  time.Duration
	// MinJitter and MaxJitter bound the reconnect delay after a failure.
	MinJitter time.Duration
	MaxJitter time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 5 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.ExtendedBackoff <= 0 {
		c.ExtendedBackoff = 30 * time.Minute
	}
	if c.MaxJitter < c.MinJitter {
		c.MaxJitter = c.MinJitter
	}
	return c
}

// Conn is the push connection of one account. Exported fields must be set
// before Run and not changed afterwards.
type Conn struct {
	CredentialID string
	SelfID       string
	Config       Config
	Tokens       TokenSource
	Cookies      CookieSource
	Handler      Handler
	Clock        clock.Clock
	Dialer       *websocket.Dialer

	// OnState, when set, observes every state change.
	OnState func(State)
	// OnFrame, when set, is called with "sync", "control" or "bad" per frame.
	OnFrame func(kind string)
	// Fatal, when set, marks session errors that end Run instead of being
	// retried.
	Fatal func(error) bool

	state         atomic.Int32
	failures      atomic.Int32
	lastHeartbeat atomic.Int64 // unix nanos of the last code==200 frame
	lastRecv      atomic.Int64

	recycle chan struct{}
	once    sync.Once

	writeMu sync.Mutex
	mu      sync.Mutex
	ws      *websocket.Conn

	dispatch sync.WaitGroup
}

func (c *Conn) init() {
	c.once.Do(func() {
		c.recycle = make(chan struct{}, 1)
		c.Config = c.Config.withDefaults()
		if c.Clock == nil {
			c.Clock = clock.New()
		}
	})
}

// State returns the current state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Failures returns the consecutive failed connection attempts.
func (c *Conn) Failures() int { return int(c.failures.Load()) }

// LastHeartbeat returns when the gateway last answered with code 200.
func (c *Conn) LastHeartbeat() time.Time {
	ns := c.lastHeartbeat.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Recycle asks the connection to drop and reconnect at once. Requests
// coalesce while one is pending.
func (c *Conn) Recycle() {
	c.init()
	select {
	case c.recycle <- struct{}{}:
	default:
	}
}

func (c *Conn) setState(s State) {
	if State(c.state.Swap(int32(s))) != s && c.OnState != nil {
		c.OnState(s)
	}
}

// Run connects and reconnects until ctx is done, then waits for in-flight
// handlers. It always returns nil on cancellation.
func (c *Conn) Run(ctx context.Context) error {
	c.init()
	logger := log.With().Str("account", c.CredentialID).Str("component", "push").Logger()
	defer func() {
		c.dispatch.Wait()
		c.setState(StateClosed)
	}()

	for {
		err := c.session(ctx)
		c.setState(StateClosed)
		if ctx.Err() != nil {
			return nil
		}

		var delay time.Duration
		switch {
		case errors.Is(err, errRecycle):
			logger.Info().Msg("reconnecting on request")
			c.failures.Store(0)
			continue
		case c.Fatal != nil && c.Fatal(err):
			logger.Error().Err(err).Msg("push connection stopped")
			return err
		default:
			n := c.failures.Add(1)
			logger.Warn().Err(err).Int32("failures", n).Msg("push connection lost")
			if int(n) >= c.Config.MaxFailures {
				delay = c.Config.ExtendedBackoff
				c.failures.Store(0)
				logger.Warn().Dur("backoff", delay).Msg("too many connection failures, backing off")
			} else {
				delay = c.jitter()
			}
		}
		if err := clock.Sleep(ctx, c.Clock, delay); err != nil {
			return nil
		}
	}
}

func (c *Conn) jitter() time.Duration {
	lo, hi := c.Config.MinJitter, c.Config.MaxJitter
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// session runs one connection from dial to close.
func (c *Conn) session(ctx context.Context) error {
	// a stale recycle request must not kill the fresh connection
	select {
	case <-c.recycle:
	default:
	}

	c.setState(StateDialing)
	tok, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	if tok.Value == "" {
		return ErrNoToken
	}
	cookies, err := c.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("cookies: %w", err)
	}

	h := http.Header{}
	h.Set("Cookie", cookies)
	h.Set("User-Agent", c.Config.UserAgent)
	h.Set("Origin", "https://www.goofish.com")
	d := c.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	ws, _, err := d.DialContext(ctx, c.Config.URL, h)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	defer func() {
		c.setState(StateClosing)
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		_ = ws.Close()
	}()

	c.setState(StateRegistering)
	now := c.Clock.Now()
	unb := c.SelfID
	if err := c.write(ws, protocol.Register(tok.Value, c.Config.UserAgent, protocol.DeviceID(unb), protocol.NewMid(now))); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := c.write(ws, protocol.AckDiff(now, protocol.NewMid(now))); err != nil {
		return fmt.Errorf("ack diff: %w", err)
	}
	c.lastRecv.Store(now.UnixNano())
	c.failures.Store(0)
	c.setState(StateLive)
	log.Info().Str("account", c.CredentialID).Msg("push connection live")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(ctx, ws) })
	g.Go(func() error { return c.heartbeatLoop(gctx, ws) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			_ = ws.Close()
			return nil
		case <-c.recycle:
			_ = ws.Close()
			return errRecycle
		}
	})
	return g.Wait()
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.lastRecv.Store(c.Clock.Now().UnixNano())
		c.handleFrame(ctx, ws, raw)
	}
}

// handleFrame acks synchronously and dispatches sync payloads.
func (c *Conn) handleFrame(ctx context.Context, ws *websocket.Conn, raw []byte) {
	f, err := protocol.ParseFrame(raw)
	if err != nil {
		log.Debug().Err(err).Str("account", c.CredentialID).Msg("unparseable frame dropped")
		c.observeFrame("bad")
		return
	}
	if f.NeedsAck() {
		if err := c.write(ws, protocol.AckFor(f.Headers)); err != nil {
			log.Warn().Err(err).Str("account", c.CredentialID).Msg("ack failed")
		}
	}
	if f.Code == http.StatusOK {
		c.lastHeartbeat.Store(c.Clock.Now().UnixNano())
	}
	if !f.IsSync() {
		c.observeFrame("control")
		return
	}
	c.observeFrame("sync")
	for _, payload := range f.SyncData() {
		c.dispatch.Add(1)
		go c.deliver(ctx, payload)
	}
}

func (c *Conn) deliver(ctx context.Context, payload string) {
	defer c.dispatch.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("account", c.CredentialID).Interface("panic", r).Msg("frame handler panicked")
		}
	}()
	tree, err := protocol.DecodeSync(payload)
	if err != nil {
		log.Debug().Err(err).Str("account", c.CredentialID).Msg("undecodable sync payload")
		return
	}
	if c.Handler != nil {
		c.Handler(ctx, tree)
	}
}

func (c *Conn) observeFrame(kind string) {
	if c.OnFrame != nil {
		c.OnFrame(kind)
	}
}

func (c *Conn) heartbeatLoop(ctx context.Context, ws *websocket.Conn) error {
	t := c.Clock.NewTicker(c.Config.HeartbeatInterval)
	defer t.Stop()
	silence := c.Config.HeartbeatInterval + c.Config.HeartbeatTimeout
	fails := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C():
			if last := time.Unix(0, c.lastRecv.Load()); now.Sub(last) > silence {
				return errSilent
			}
			if err := c.write(ws, protocol.Heartbeat(protocol.NewMid(now))); err != nil {
				fails++
				log.Warn().Err(err).Str("account", c.CredentialID).Int("failures", fails).Msg("heartbeat failed")
				if fails >= maxHeartbeatFailures {
					return errHeartbeat
				}
				continue
			}
			fails = 0
		}
	}
}

func (c *Conn) write(ws *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) live() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil || c.State() != StateLive {
		return nil, ErrNotLive
	}
	return c.ws, nil
}

// SendText posts a text message to chatID addressed to peerID.
func (c *Conn) SendText(_ context.Context, chatID, peerID, text string) error {
	c.init()
	return c.send(chatID, peerID, protocol.NewText(text))
}

// SendImage posts a picture to chatID addressed to peerID.
func (c *Conn) SendImage(_ context.Context, chatID, peerID, url string, width, height int) error {
	c.init()
	return c.send(chatID, peerID, protocol.NewImage(url, width, height))
}

func (c *Conn) send(chatID, peerID string, payload any) error {
	ws, err := c.live()
	if err != nil {
		return err
	}
	now := c.Clock.Now()
	env, err := protocol.SendMessage(now, protocol.NewMid(now), chatID, peerID, c.SelfID, payload)
	if err != nil {
		return err
	}
	return c.write(ws, env)
}
