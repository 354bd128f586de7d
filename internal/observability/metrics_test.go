package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/xianyu-agent/internal/notify"
	"github.com/tbourn/xianyu-agent/internal/push"
)

func TestMetrics_HooksFeedCollectors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := m.Hooks()

	h.PushState("shop-a", push.StateLive)
	h.Frame("sync")
	h.Frame("sync")
	h.Event("chat")
	h.Reply("keyword")
	h.Delivery("delivered")
	h.TokenRefresh("ok")
	m.ObserveNotification("token_refresh_failed", notify.OutcomeSent)

	if got := testutil.ToFloat64(m.PushState.WithLabelValues("shop-a")); got != float64(push.StateLive) {
		t.Fatalf("push_state=%v", got)
	}
	if got := testutil.ToFloat64(m.Frames.WithLabelValues("sync")); got != 2 {
		t.Fatalf("frames=%v", got)
	}
	checks := map[string]prometheus.Collector{
		"events":        m.Events.WithLabelValues("chat"),
		"replies":       m.Replies.WithLabelValues("keyword"),
		"deliveries":    m.Deliveries.WithLabelValues("delivered"),
		"token_refresh": m.TokenRefresh.WithLabelValues("ok"),
		"notifications": m.Notifications.WithLabelValues("token_refresh_failed", "sent"),
	}
	for name, c := range checks {
		if got := testutil.ToFloat64(c); got != 1 {
			t.Fatalf("%s=%v", name, got)
		}
	}
}

func TestMetrics_Forget(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Hooks().PushState("shop-a", push.StateDialing)
	if n := testutil.CollectAndCount(m.PushState); n != 1 {
		t.Fatalf("series=%d", n)
	}
	m.Forget("shop-a")
	if n := testutil.CollectAndCount(m.PushState); n != 0 {
		t.Fatalf("series after forget=%d", n)
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on second registration")
		}
	}()
	NewMetrics(reg)
}
