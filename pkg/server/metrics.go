package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the server's Prometheus collectors. All collectors are
// registered on a private registry so tests can create as many Metrics
// values as they like.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	SessionsActive    prometheus.Gauge
	AuthSuccess       prometheus.Counter
	AuthFailed        prometheus.Counter
	BroadcastsTotal   prometheus.Counter
	PrivatesTotal     prometheus.Counter
	DeliveryFailures  prometheus.Counter
}

// NewMetrics creates and registers the server collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterd_connections_total",
			Help: "TCP and WebSocket connections accepted since start.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatterd_connections_active",
			Help: "Connections currently open, authenticated or not.",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatterd_sessions_active",
			Help: "Authenticated sessions currently registered.",
		}),
		AuthSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterd_auth_success_total",
			Help: "Successful logins and registrations.",
		}),
		AuthFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterd_auth_failed_total",
			Help: "Rejected auth attempts, any reason.",
		}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterd_broadcasts_total",
			Help: "Broadcast fan-outs performed.",
		}),
		PrivatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterd_privates_total",
			Help: "Private messages delivered.",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterd_delivery_failures_total",
			Help: "Sessions torn down because a frame could not be enqueued.",
		}),
	}
}

// Handler returns an HTTP handler exposing the collectors in Prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
