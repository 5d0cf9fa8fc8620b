// Package prometheus provides the Prometheus implementation of the gateway
// metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shmkit/itsgate/pkg/metrics"
)

// gatewayMetrics is the Prometheus implementation of metrics.GatewayMetrics.
type gatewayMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	handshakeFailures   prometheus.Counter
	activeSessions      prometheus.Gauge
	commands            *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
	authFailures        *prometheus.CounterVec
	listenerRestarts    prometheus.Counter
}

// NewGatewayMetrics creates a new Prometheus-backed GatewayMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewGatewayMetrics() metrics.GatewayMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &gatewayMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "itsgate_connections_accepted_total",
			Help: "Total number of accepted client connections",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "itsgate_connections_closed_total",
			Help: "Total number of closed client connections",
		}),
		handshakeFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "itsgate_tls_handshake_failures_total",
			Help: "Total number of failed TLS handshakes",
		}),
		activeSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "itsgate_active_sessions",
			Help: "Current number of live sessions in the session table",
		}),
		commands: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "itsgate_commands_total",
				Help: "Total number of dispatched commands by command and result",
			},
			[]string{"command", "result"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "itsgate_command_duration_milliseconds",
				Help:    "Duration of command dispatch in milliseconds",
				Buckets: []float64{0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"command"},
		),
		authFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "itsgate_auth_failures_total",
				Help: "Total number of authentication failures by reason",
			},
			[]string{"reason"},
		),
		listenerRestarts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "itsgate_listener_restarts_total",
			Help: "Total number of listening socket rebuilds",
		}),
	}
}

func (m *gatewayMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *gatewayMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *gatewayMetrics) RecordHandshakeFailure() {
	m.handshakeFailures.Inc()
}

func (m *gatewayMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *gatewayMetrics) RecordCommand(command string, result string, duration time.Duration) {
	m.commands.WithLabelValues(command, result).Inc()
	m.commandDuration.WithLabelValues(command).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *gatewayMetrics) RecordAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *gatewayMetrics) RecordListenerRestart() {
	m.listenerRestarts.Inc()
}
