package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	copiesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symcraft",
			Subsystem: "replicate",
			Name:      "copies_created_total",
			Help:      "Symmetric copies spawned, by prefab kind.",
		},
		[]string{"kind"},
	)
	copiesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symcraft",
			Subsystem: "replicate",
			Name:      "copies_skipped_total",
			Help:      "Symmetric copies skipped, by reason.",
		},
		[]string{"reason"},
	)
	tasksAborted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symcraft",
			Subsystem: "tasks",
			Name:      "aborted_total",
			Help:      "Deferred tasks dropped because their owner left.",
		},
		[]string{"kind"},
	)
	upgradesSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "symcraft",
			Subsystem: "replicate",
			Name:      "upgrades_synced_total",
			Help:      "Counterpart blocks regraded by upgrade sync.",
		},
	)
	detections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symcraft",
			Subsystem: "autodetect",
			Name:      "detections_total",
			Help:      "Auto-detection runs, by resulting group and fallback.",
		},
		[]string{"group", "fallback"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symcraft",
			Subsystem: "command",
			Name:      "commands_total",
			Help:      "Decoded symmetry commands, by kind and outcome code.",
		},
		[]string{"kind", "code"},
	)
	wsSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "symcraft",
			Subsystem: "ws",
			Name:      "sessions",
			Help:      "Open websocket sessions.",
		},
	)
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "symcraft",
			Subsystem: "world",
			Name:      "tick_duration_seconds",
			Help:      "World step duration in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(copiesCreated, copiesSkipped, tasksAborted, upgradesSynced,
			detections, commands, wsSessions, tickDuration)
	})
}

// Replication records replication counters. The zero value is ready to use.
type Replication struct{}

func (Replication) CopyCreated(kind string) {
	RegisterMetrics()
	copiesCreated.WithLabelValues(kind).Inc()
}

func (Replication) CopySkipped(reason string) {
	RegisterMetrics()
	copiesSkipped.WithLabelValues(reason).Inc()
}

func (Replication) TaskAborted(kind string) {
	RegisterMetrics()
	tasksAborted.WithLabelValues(kind).Inc()
}

func (Replication) UpgradeSynced() {
	RegisterMetrics()
	upgradesSynced.Inc()
}

func RecordDetection(group string, fallback bool) {
	RegisterMetrics()
	fb := "false"
	if fallback {
		fb = "true"
	}
	detections.WithLabelValues(group, fb).Inc()
}

func RecordCommand(kind, code string) {
	RegisterMetrics()
	if code == "" {
		code = "OK"
	}
	commands.WithLabelValues(kind, code).Inc()
}

func SessionOpened() {
	RegisterMetrics()
	wsSessions.Inc()
}

func SessionClosed() {
	RegisterMetrics()
	wsSessions.Dec()
}

func ObserveTick(d time.Duration) {
	RegisterMetrics()
	tickDuration.Observe(d.Seconds())
}
