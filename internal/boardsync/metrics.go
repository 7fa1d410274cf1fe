package boardsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sync collectors.
type Metrics struct {
	WritesTotal      *prometheus.CounterVec
	EchoesSuppressed prometheus.Counter
	RemoteApplied    prometheus.Counter
	SessionsOpen     prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WritesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "sync",
				Name:      "writes_total",
				Help:      "Board writes issued by sessions, by result",
			},
			[]string{"result"},
		),
		EchoesSuppressed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "sync",
				Name:      "echoes_suppressed_total",
				Help:      "Remote snapshots dropped as echoes of a local write",
			},
		),
		RemoteApplied: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "sync",
				Name:      "remote_applied_total",
				Help:      "Remote snapshots applied to a session",
			},
		),
		SessionsOpen: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "sync",
				Name:      "sessions_open",
				Help:      "Board sessions currently open",
			},
		),
	}
}
