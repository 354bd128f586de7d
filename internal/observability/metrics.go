package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/xianyu-agent/internal/account"
	"github.com/tbourn/xianyu-agent/internal/notify"
	"github.com/tbourn/xianyu-agent/internal/push"
)

// Metrics are the runtime collectors of the fleet. Labels stay bounded:
// account ids are operator-chosen and few, everything else is an enum.
type Metrics struct {
	PushState     *prometheus.GaugeVec
	Frames        *prometheus.CounterVec
	Events        *prometheus.CounterVec
	Replies       *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	TokenRefresh  *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// prometheus.DefaultRegisterer is what /metrics serves.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PushState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "xianyu",
			Name:      "push_state",
			Help:      "Push connection state per account (0 closed, 1 dialing, 2 registering, 3 live, 4 closing).",
		}, []string{"account"}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xianyu",
			Name:      "frames_total",
			Help:      "Inbound push frames by kind.",
		}, []string{"kind"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xianyu",
			Name:      "events_total",
			Help:      "Classified events by kind.",
		}, []string{"kind"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xianyu",
			Name:      "replies_total",
			Help:      "Automatic replies by source.",
		}, []string{"source"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xianyu",
			Name:      "deliveries_total",
			Help:      "Delivery attempts by result.",
		}, []string{"result"}),
		TokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xianyu",
			Name:      "token_refresh_total",
			Help:      "Access token refreshes by result.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xianyu",
			Name:      "notifications_total",
			Help:      "Operator notifications by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(m.PushState, m.Frames, m.Events, m.Replies, m.Deliveries, m.TokenRefresh, m.Notifications)
	return m
}

// Hooks returns runtime hooks feeding m.
func (m *Metrics) Hooks() account.Hooks {
	return account.Hooks{
		PushState: func(id string, s push.State) {
			m.PushState.WithLabelValues(id).Set(float64(s))
		},
		Frame:        func(kind string) { m.Frames.WithLabelValues(kind).Inc() },
		Event:        func(kind string) { m.Events.WithLabelValues(kind).Inc() },
		Reply:        func(source string) { m.Replies.WithLabelValues(source).Inc() },
		Delivery:     func(result string) { m.Deliveries.WithLabelValues(result).Inc() },
		TokenRefresh: func(result string) { m.TokenRefresh.WithLabelValues(result).Inc() },
	}
}

// ObserveNotification matches notify.Sink.Observe.
func (m *Metrics) ObserveNotification(kind string, o notify.Outcome) {
	m.Notifications.WithLabelValues(kind, string(o)).Inc()
}

// Forget drops the per-account series of a removed account.
func (m *Metrics) Forget(accountID string) {
	m.PushState.DeleteLabelValues(accountID)
}
