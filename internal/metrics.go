package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the prometheus collectors for one server instance. Every
// collector registers against the registerer passed to NewMetrics, so tests
// can hand in a throwaway registry.
type Metrics struct {
	signups            prometheus.Counter
	logins             prometheus.Counter
	messagesStored     prometheus.Counter
	routed             *prometheus.CounterVec
	presenceBroadcasts prometheus.Counter
	activeConns        prometheus.Gauge
	onlineUsers        prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		signups: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatter_signups_total",
			Help: "Accounts created.",
		}),
		logins: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatter_logins_total",
			Help: "Successful logins.",
		}),
		messagesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatter_messages_stored_total",
			Help: "Messages persisted through the HTTP API.",
		}),
		routed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatter_messages_routed_total",
			Help: "Real-time routing outcomes.",
		}, []string{"outcome"}),
		presenceBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatter_presence_broadcasts_total",
			Help: "Full presence sets pushed to connected clients.",
		}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatter_active_connections",
			Help: "Open websocket connections, announced or not.",
		}),
		onlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatter_online_users",
			Help: "Users with a registered live connection.",
		}),
	}
}

func (m *Metrics) IncSignup()            { m.signups.Inc() }
func (m *Metrics) IncLogin()             { m.logins.Inc() }
func (m *Metrics) IncMessageStored()     { m.messagesStored.Inc() }
func (m *Metrics) IncPresenceBroadcast() { m.presenceBroadcasts.Inc() }
func (m *Metrics) ConnOpened()           { m.activeConns.Inc() }
func (m *Metrics) ConnClosed()           { m.activeConns.Dec() }

// IncRouted records a routing outcome: delivered, offline, or dropped.
func (m *Metrics) IncRouted(outcome string) {
	m.routed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetOnlineUsers(n int) {
	m.onlineUsers.Set(float64(n))
}
