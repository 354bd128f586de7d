package push

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/protocol"
)

var t0 = time.Unix(1_700_000_000, 0)

type staticTokens struct {
	value string
	calls atomic.Int32
}

func (s *staticTokens) Token(context.Context) (domain.AccessToken, error) {
	s.calls.Add(1)
	return domain.AccessToken{Value: s.value, IssuedAt: t0}, nil
}

// gateway is a websocket server that hands every accepted connection to
// the test.
type gateway struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	hdr   chan http.Header
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	g := &gateway{conns: make(chan *websocket.Conn, 8), hdr: make(chan http.Header, 8)}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.hdr <- r.Header.Clone()
		g.conns <- ws
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *gateway) url() string { return "ws" + strings.TrimPrefix(g.srv.URL, "http") }

func (g *gateway) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-g.conns:
		t.Cleanup(func() { _ = ws.Close() })
		return ws
	case <-time.After(5 * time.Second):
		t.Fatal("no connection")
		return nil
	}
}

func readLWP(t *testing.T, ws *websocket.Conn) gjson.Result {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)
	return gjson.ParseBytes(raw)
}

// register consumes /reg and ackDiff from a fresh connection.
func register(t *testing.T, ws *websocket.Conn) gjson.Result {
	t.Helper()
	reg := readLWP(t, ws)
	require.Equal(t, protocol.LWPRegister, reg.Get("lwp").String())
	require.Equal(t, protocol.LWPAckDiff, readLWP(t, ws).Get("lwp").String())
	return reg
}

func newConn(g *gateway, clk clock.Clock, tokens TokenSource, h Handler) *Conn {
	return &Conn{
		CredentialID: "c1",
		SelfID:       "2200001",
		Config: Config{
			URL:               g.url(),
			UserAgent:         "test-agent",
			HeartbeatInterval: 15 * time.Second,
			HeartbeatTimeout:  5 * time.Second,
			MaxFailures:       5,
			ExtendedBackoff:   30 * time.Minute,
		},
		Tokens:  tokens,
		Cookies: func(context.Context) (string, error) { return "unb=2200001; cna=x", nil },
		Handler: h,
		Clock:   clk,
	}
}

func runConn(t *testing.T, c *Conn) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func waitLive(t *testing.T, c *Conn) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == StateLive }, 5*time.Second, time.Millisecond)
}

func TestConn_RegistersWithTokenAndCookies(t *testing.T) {
	g := newGateway(t)
	c := newConn(g, clock.NewFake(t0), &staticTokens{value: "tok-1"}, nil)
	runConn(t, c)

	ws := g.accept(t)
	hdr := <-g.hdr
	assert.Equal(t, "unb=2200001; cna=x", hdr.Get("Cookie"))
	assert.Equal(t, "test-agent", hdr.Get("User-Agent"))

	reg := register(t, ws)
	assert.Equal(t, "tok-1", reg.Get("headers.token").String())
	assert.Equal(t, protocol.WSAppKey, reg.Get("headers.app-key").String())
	assert.Equal(t, protocol.DeviceID("2200001"), reg.Get("headers.did").String())
	assert.NotEmpty(t, reg.Get("headers.mid").String())
	waitLive(t, c)
}

func TestConn_AcksInOrderAndDispatches(t *testing.T) {
	g := newGateway(t)
	trees := make(chan any, 4)
	c := newConn(g, clock.NewFake(t0), &staticTokens{value: "tok"}, func(_ context.Context, tree any) {
		trees <- tree
	})
	var frames atomic.Int32
	c.OnFrame = func(string) { frames.Add(1) }
	runConn(t, c)

	ws := g.accept(t)
	register(t, ws)
	waitLive(t, c)

	payload := base64.StdEncoding.EncodeToString([]byte(`{"1":{"10":{"reminderContent":"hello"}}}`))
	sync := `{"lwp":"/s/para","headers":{"mid":"m-1","sid":"s-1"},"body":{"syncPushPackage":{"data":[{"data":"` + payload + `"}]}}}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(sync)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"code":200,"headers":{"mid":"m-2","sid":"s-2","dt":"j"}}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	a1 := readLWP(t, ws)
	assert.Equal(t, int64(200), a1.Get("code").Int())
	assert.Equal(t, "m-1", a1.Get("headers.mid").String())
	assert.Equal(t, "s-1", a1.Get("headers.sid").String())
	a2 := readLWP(t, ws)
	assert.Equal(t, "m-2", a2.Get("headers.mid").String())
	assert.Equal(t, "j", a2.Get("headers.dt").String())

	select {
	case tree := <-trees:
		assert.Equal(t, "hello", protocol.LookupString(tree, "1", "10", "reminderContent"))
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
	require.Eventually(t, func() bool { return frames.Load() == 3 }, 5*time.Second, time.Millisecond)
	assert.True(t, c.LastHeartbeat().Equal(t0))
	assert.Equal(t, StateLive, c.State())
}

func TestConn_HandlerPanicDoesNotKillConnection(t *testing.T) {
	g := newGateway(t)
	calls := make(chan struct{}, 4)
	c := newConn(g, clock.NewFake(t0), &staticTokens{value: "tok"}, func(context.Context, any) {
		calls <- struct{}{}
		panic("boom")
	})
	runConn(t, c)
	ws := g.accept(t)
	register(t, ws)
	waitLive(t, c)

	payload := base64.StdEncoding.EncodeToString([]byte(`{"k":"v"}`))
	frame := `{"headers":{"mid":"m"},"body":{"syncPushPackage":{"data":[{"data":"` + payload + `"}]}}}`
	for i := 0; i < 2; i++ {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
		readLWP(t, ws)
		<-calls
	}
	assert.Equal(t, StateLive, c.State())
}

func TestConn_HeartbeatAndSilence(t *testing.T) {
	g := newGateway(t)
	clk := clock.NewFake(t0)
	c := newConn(g, clk, &staticTokens{value: "tok"}, nil)
	runConn(t, c)

	ws := g.accept(t)
	register(t, ws)
	waitLive(t, c)

	clk.BlockUntil(1)
	clk.Advance(15 * time.Second)
	assert.Equal(t, protocol.LWPHeartbeat, readLWP(t, ws).Get("lwp").String())

	// no frame for longer than interval + timeout
	clk.Advance(15 * time.Second)
	ws2 := g.accept(t)
	register(t, ws2)
	waitLive(t, c)
	assert.Equal(t, 0, c.Failures())
}

func TestConn_SendText(t *testing.T) {
	g := newGateway(t)
	c := newConn(g, clock.NewFake(t0), &staticTokens{value: "tok"}, nil)

	assert.ErrorIs(t, c.SendText(context.Background(), "55501", "buyer1", "hi"), ErrNotLive)

	runConn(t, c)
	ws := g.accept(t)
	register(t, ws)
	waitLive(t, c)

	require.NoError(t, c.SendText(context.Background(), "55501", "buyer1", "你好"))
	env := readLWP(t, ws)
	assert.Equal(t, protocol.LWPSend, env.Get("lwp").String())
	assert.Equal(t, "55501@goofish", env.Get("body.0.cid").String())
	assert.Equal(t, int64(1), env.Get("body.0.conversationType").Int())
	assert.Equal(t, []string{"buyer1@goofish", "2200001@goofish"}, []string{
		env.Get("body.1.actualReceivers.0").String(),
		env.Get("body.1.actualReceivers.1").String(),
	})
	raw, err := base64.StdEncoding.DecodeString(env.Get("body.0.content.custom.data").String())
	require.NoError(t, err)
	assert.Equal(t, "你好", gjson.GetBytes(raw, "text.text").String())

	require.NoError(t, c.SendImage(context.Background(), "55501", "buyer1", "https://img/x.png", 800, 600))
	raw, err = base64.StdEncoding.DecodeString(readLWP(t, ws).Get("body.0.content.custom.data").String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), gjson.GetBytes(raw, "contentType").Int())
	assert.Equal(t, "https://img/x.png", gjson.GetBytes(raw, "image.pics.0.url").String())
	assert.Equal(t, int64(800), gjson.GetBytes(raw, "image.pics.0.width").Int())
}

func TestConn_RecycleReconnectsWithFreshToken(t *testing.T) {
	g := newGateway(t)
	tokens := &staticTokens{value: "tok"}
	c := newConn(g, clock.NewFake(t0), tokens, nil)
	runConn(t, c)

	register(t, g.accept(t))
	waitLive(t, c)

	c.Recycle()
	register(t, g.accept(t))
	waitLive(t, c)
	assert.Equal(t, int32(2), tokens.calls.Load())
	assert.Equal(t, 0, c.Failures())
}

func TestConn_FailuresTriggerExtendedBackoff(t *testing.T) {
	g := newGateway(t)
	clk := clock.NewFake(t0)
	tokens := &staticTokens{}
	c := newConn(g, clk, tokens, nil)
	c.Config.MaxFailures = 2
	runConn(t, c)

	// empty token fails twice in a row, then parks on the long backoff
	clk.BlockUntil(1)
	assert.Equal(t, int32(2), tokens.calls.Load())
	assert.Equal(t, 0, c.Failures())
	assert.Equal(t, StateClosed, c.State())

	clk.Advance(29 * time.Minute)
	assert.Equal(t, int32(2), tokens.calls.Load())
	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return tokens.calls.Load() >= 3 }, 5*time.Second, time.Millisecond)
}

type failingTokens struct {
	err   error
	calls atomic.Int32
}

func (f *failingTokens) Token(context.Context) (domain.AccessToken, error) {
	f.calls.Add(1)
	return domain.AccessToken{}, f.err
}

func TestConn_FatalErrorEndsRun(t *testing.T) {
	g := newGateway(t)
	dead := errors.New("credential dead")
	tokens := &failingTokens{err: dead}
	c := newConn(g, clock.NewFake(t0), tokens, nil)
	c.Fatal = func(err error) bool { return errors.Is(err, dead) }

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, dead)
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept retrying a fatal error")
	}
	assert.Equal(t, int32(1), tokens.calls.Load())
	assert.Equal(t, StateClosed, c.State())
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{MinJitter: 3 * time.Second}.withDefaults()
	assert.Equal(t, 15*time.Second, c.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, c.HeartbeatTimeout)
	assert.Equal(t, 5, c.MaxFailures)
	assert.Equal(t, 30*time.Minute, c.ExtendedBackoff)
	assert.Equal(t, 3*time.Second, c.MaxJitter)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "live", StateLive.String())
	assert.Equal(t, "closed", State(99).String())
}
