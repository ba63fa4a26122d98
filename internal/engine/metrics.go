package engine

import "github.com/prometheus/client_golang/prometheus"

// metricsSet holds the engine's process-wide Prometheus instrumentation.
// Unlike the teacher's internal/observability/metrics wrapper (not part of
// this module's retrieved surface), these collectors are registered
// directly against a caller-supplied registerer so a host application
// controls whether/where they're exposed.
type metricsSet struct {
	buffersProcessed *prometheus.CounterVec
	framesProcessed  *prometheus.CounterVec
	soloActive       prometheus.Gauge
	listenerErrors   prometheus.Counter
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		buffersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundflow",
			Subsystem: "engine",
			Name:      "buffers_processed_total",
			Help:      "Callback buffers processed by capability.",
		}, []string{"capability"}),
		framesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundflow",
			Subsystem: "engine",
			Name:      "frames_processed_total",
			Help:      "Audio frames processed by capability.",
		}, []string{"capability"}),
		soloActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soundflow",
			Subsystem: "engine",
			Name:      "solo_active",
			Help:      "1 if a node is currently soloed, 0 otherwise.",
		}),
		listenerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soundflow",
			Subsystem: "engine",
			Name:      "listener_panics_total",
			Help:      "on_audio_processed listener invocations recovered from a panic.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.buffersProcessed, m.framesProcessed, m.soloActive, m.listenerErrors)
	}
	return m
}
