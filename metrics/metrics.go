// Package metrics instruments the stepping engine with a small set of
// Prometheus collectors, adapted from the pattern in
// github.com/glyphlang/glyph/pkg/metrics: a constructor returns a struct of
// ready-to-use collectors registered against a private registry, so that
// multiple engine instances in one process (concurrent tests, multiple
// sessions) never collide on the global default registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Engine holds the collectors for a single stepping-engine instance.
type Engine struct {
	Registry *prometheus.Registry

	StepsExecuted  prometheus.Counter
	MarkersDecoded prometheus.Counter
	MarkersMissed  prometheus.Counter
	BreakpointsHit prometheus.Counter
	StopsEmitted   *prometheus.CounterVec // labeled by reason
	FrameDepth     prometheus.Gauge
}

// NewEngine builds a fresh set of collectors on a fresh private registry.
func NewEngine() *Engine {
	reg := prometheus.NewRegistry()

	m := &Engine{
		Registry: reg,
		StepsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmdbg_steps_executed_total",
			Help: "Number of single VM steps issued by the stepping engine.",
		}),
		MarkersDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmdbg_markers_decoded_total",
			Help: "Number of debug-info markers successfully decoded.",
		}),
		MarkersMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmdbg_markers_missed_total",
			Help: "Number of steps where no marker was present or decodable.",
		}),
		BreakpointsHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvmdbg_breakpoints_hit_total",
			Help: "Number of times a Continue stopped on a breakpoint.",
		}),
		StopsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tvmdbg_stops_emitted_total",
			Help: "Number of stop events emitted, labeled by reason.",
		}, []string{"reason"}),
		FrameDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tvmdbg_frame_depth",
			Help: "Current call-frame stack depth.",
		}),
	}

	reg.MustRegister(
		m.StepsExecuted,
		m.MarkersDecoded,
		m.MarkersMissed,
		m.BreakpointsHit,
		m.StopsEmitted,
		m.FrameDepth,
	)

	return m
}
