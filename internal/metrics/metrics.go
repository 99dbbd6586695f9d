// Package metrics counts segment builds. A Recorder owns its registry so
// tests and concurrent score builds never collide on the global one; the CLI
// exports it as a textfile after each run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kingrea/scoresmith/internal/segment"
)

// Recorder holds the build collectors.
type Recorder struct {
	registry *prometheus.Registry

	// segmentsBuilt counts segment builds by score and result
	segmentsBuilt *prometheus.CounterVec
	// commandsDispatched counts commands run across all segments of a score
	commandsDispatched *prometheus.CounterVec
	// validationMarkers counts non-fatal markers attached
	validationMarkers *prometheus.CounterVec
	// reapplied counts indicators carried over from the previous segment
	reapplied *prometheus.CounterVec
	// buildDuration tracks segment build latency
	buildDuration *prometheus.HistogramVec
}

// New registers a fresh set of collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		segmentsBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scoresmith_segments_built_total",
			Help: "Total segment builds by score and result",
		}, []string{"score", "result"}),
		commandsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scoresmith_commands_dispatched_total",
			Help: "Total commands dispatched by score",
		}, []string{"score"}),
		validationMarkers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scoresmith_validation_markers_total",
			Help: "Total validation markers attached by score",
		}, []string{"score"}),
		reapplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scoresmith_reapplied_indicators_total",
			Help: "Total persistent indicators reapplied from the previous segment",
		}, []string{"score"}),
		buildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoresmith_segment_build_duration_seconds",
			Help:    "Segment build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"score"}),
	}
}

// Registry exposes the underlying gatherer.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one segment build. A nil stats value records a failure.
func (r *Recorder) Observe(score string, stats *segment.Stats, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.buildDuration.WithLabelValues(score).Observe(elapsed.Seconds())
	if stats == nil {
		r.segmentsBuilt.WithLabelValues(score, "error").Inc()
		return
	}
	r.segmentsBuilt.WithLabelValues(score, "ok").Inc()
	r.commandsDispatched.WithLabelValues(score).Add(float64(stats.Commands))
	r.validationMarkers.WithLabelValues(score).Add(float64(stats.ValidationMarkers))
	r.reapplied.WithLabelValues(score).Add(float64(stats.Reapplied))
}

// WriteTextfile exports every collector in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
