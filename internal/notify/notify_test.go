package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"

	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
)

type staticSource struct {
	chans []domain.NotificationChannel
	err   error
}

func (s staticSource) BoundChannels(context.Context, string) ([]domain.NotificationChannel, error) {
	return s.chans, s.err
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *recorder) Send(_ context.Context, _ domain.NotificationChannel, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.err
}

func newTestSink(chans ...domain.NotificationChannel) (*Sink, *clock.Fake, *recorder) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	s := NewSink(staticSource{chans: chans}, clk, 5*time.Minute, 3*time.Hour)
	rec := &recorder{}
	s.Adapters[domain.ChannelWebhook] = rec
	return s, clk, rec
}

var hook = domain.NotificationChannel{ID: 1, Name: "ops", Kind: domain.ChannelWebhook, Enabled: true}

func TestNotify_FiltersNormalExpiry(t *testing.T) {
	s, _, rec := newTestSink(hook)
	for _, m := range []string{
		"ret=FAIL_SYS_TOKEN_EXOIRED::令牌过期",
		"FAIL_SYS_TOKEN_EXPIRED",
		"FAIL_SYS_SESSION_EXPIRED::Session过期",
		"Token定时刷新失败，将自动重试",
	} {
		assert.Equal(t, OutcomeFiltered, s.Notify(context.Background(), "c1", KindTokenRefresh, m))
	}
	assert.Empty(t, rec.msgs)
}

func TestNotify_CooldownPerCredentialAndKind(t *testing.T) {
	s, clk, rec := newTestSink(hook)
	ctx := context.Background()

	assert.Equal(t, OutcomeSent, s.Notify(ctx, "c1", KindDeliveryFailed, "rule miss"))
	assert.Equal(t, OutcomeCooldown, s.Notify(ctx, "c1", KindDeliveryFailed, "rule miss again"))
	assert.Equal(t, OutcomeSent, s.Notify(ctx, "c2", KindDeliveryFailed, "other account"))
	assert.Equal(t, OutcomeSent, s.Notify(ctx, "c1", KindConnection, "other kind"))

	clk.Advance(5 * time.Minute)
	assert.Equal(t, OutcomeSent, s.Notify(ctx, "c1", KindDeliveryFailed, "after window"))
	assert.Len(t, rec.msgs, 4)
}

func TestNotify_TokenKindsUseLongCooldown(t *testing.T) {
	s, clk, _ := newTestSink(hook)
	ctx := context.Background()

	assert.Equal(t, OutcomeSent, s.Notify(ctx, "c1", KindTokenRefresh, "network down"))
	clk.Advance(2 * time.Hour)
	assert.Equal(t, OutcomeCooldown, s.Notify(ctx, "c1", KindTokenRefresh, "network down"))
	clk.Advance(time.Hour)
	assert.Equal(t, OutcomeSent, s.Notify(ctx, "c1", KindTokenRefresh, "network down"))
}

func TestNotify_AdapterFailureDoesNotBlockOthers(t *testing.T) {
	bad := &recorder{err: errors.New("boom")}
	good := &recorder{}
	s, _, _ := newTestSink(
		domain.NotificationChannel{ID: 1, Name: "a", Kind: domain.ChannelDingTalk},
		domain.NotificationChannel{ID: 2, Name: "b", Kind: domain.ChannelFeishu},
	)
	s.Adapters[domain.ChannelDingTalk] = bad
	s.Adapters[domain.ChannelFeishu] = good

	var seen []Outcome
	s.Observe = func(_ string, o Outcome) { seen = append(seen, o) }

	assert.Equal(t, OutcomeSent, s.Notify(context.Background(), "c1", KindDeliveryFailed, "x"))
	assert.Len(t, bad.msgs, 1)
	assert.Len(t, good.msgs, 1)
	assert.Equal(t, []Outcome{OutcomeSent}, seen)
}

func TestNotify_NoRoute(t *testing.T) {
	s, _, _ := newTestSink()
	assert.Equal(t, OutcomeNoRoute, s.Notify(context.Background(), "c1", KindDeliveryFailed, "x"))

	s.Channels = staticSource{err: errors.New("db down")}
	assert.Equal(t, OutcomeNoRoute, s.Notify(context.Background(), "c9", KindDeliveryFailed, "x"))
}

func TestAdapters_Payloads(t *testing.T) {
	var (
		mu    sync.Mutex
		calls = map[string][]byte{}
		query = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls[r.URL.Path] = b
		query[r.URL.Path] = r.URL.RawQuery
		mu.Unlock()
	}))
	defer srv.Close()

	clk := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	hc := newHTTPClient(time.Second)
	msg := Message{CredentialID: "c1", Kind: KindDeliveryFailed, Text: "no rule", At: clk.Now()}
	ctx := context.Background()

	cfg := func(path string) datatypes.JSON {
		return datatypes.JSON(`{"url":"` + srv.URL + path + `","secret":"s3"}`)
	}
	require.NoError(t, (&Webhook{HTTP: hc}).Send(ctx, domain.NotificationChannel{Config: cfg("/hook")}, msg))
	require.NoError(t, (&DingTalk{HTTP: hc, Clock: clk}).Send(ctx, domain.NotificationChannel{Config: cfg("/ding")}, msg))
	require.NoError(t, (&Feishu{HTTP: hc, Clock: clk}).Send(ctx, domain.NotificationChannel{Config: cfg("/lark")}, msg))
	require.NoError(t, LogAdapter{}.Send(ctx, domain.NotificationChannel{Name: "log"}, msg))

	assert.Equal(t, "no rule", gjson.GetBytes(calls["/hook"], "message").String())
	assert.Equal(t, "markdown", gjson.GetBytes(calls["/ding"], "msgtype").String())
	assert.Contains(t, query["/ding"], "timestamp=1700000000000")
	assert.Contains(t, query["/ding"], "sign=")
	assert.Equal(t, "text", gjson.GetBytes(calls["/lark"], "msg_type").String())
	assert.Equal(t, "1700000000", gjson.GetBytes(calls["/lark"], "timestamp").String())

	err := (&Webhook{HTTP: hc}).Send(ctx, domain.NotificationChannel{Config: datatypes.JSON(`{}`)}, msg)
	assert.ErrorIs(t, err, ErrNoURL)
}
