// Package metrics provides Prometheus instrumentation for streamflow streams
// and pipelines.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for streamflow components.
// A nil *Registry is valid and records nothing.
type Registry struct {
	// Readable side
	ChunksPushed *prometheus.CounterVec
	ChunksRead   *prometheus.CounterVec
	BufferLength *prometheus.GaugeVec

	// Writable side
	ChunksWritten      *prometheus.CounterVec
	BytesWritten       *prometheus.CounterVec
	BackpressureEvents *prometheus.CounterVec
	DrainEvents        *prometheus.CounterVec

	// Lifecycle
	StreamErrors    *prometheus.CounterVec
	StreamsDestroys *prometheus.CounterVec

	// Pipelines
	PipelinesCompleted *prometheus.CounterVec
	PipelineDuration   *prometheus.HistogramVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry on prometheus.DefaultRegisterer.
// It is registered on first use, never at import. Streams report to it only
// when it is set as their Metrics; mixing it with NewRegistry on the default
// registerer and the default namespace registers the collectors twice.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a metrics registry on reg using the default namespace.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg, Namespace: DefaultNamespace})
}

// NewRegistryWithConfig creates a metrics registry from cfg. It returns nil
// when cfg is disabled.
func NewRegistryWithConfig(cfg Config) *Registry {
	if !cfg.Enabled {
		return nil
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	if len(cfg.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(cfg.Labels, reg)
	}
	factory := promauto.With(reg)

	return &Registry{
		ChunksPushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "readable",
				Name:      "chunks_pushed_total",
				Help:      "Total number of chunks pushed into readable buffers",
			},
			[]string{"stream_name"},
		),

		ChunksRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "readable",
				Name:      "chunks_read_total",
				Help:      "Total number of chunks delivered to consumers",
			},
			[]string{"stream_name"},
		),

		BufferLength: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "stream",
				Name:      "buffer_length",
				Help:      "Current buffered length per side",
			},
			[]string{"stream_name", "side"},
		),

		ChunksWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "writable",
				Name:      "chunks_written_total",
				Help:      "Total number of chunks accepted by writables",
			},
			[]string{"stream_name"},
		),

		BytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "writable",
				Name:      "bytes_written_total",
				Help:      "Total bytes accepted by writables",
			},
			[]string{"stream_name"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "backpressure",
				Name:      "events_total",
				Help:      "Total number of writes that returned false",
			},
			[]string{"stream_name"},
		),

		DrainEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "backpressure",
				Name:      "drains_total",
				Help:      "Total number of drain events emitted",
			},
			[]string{"stream_name"},
		),

		StreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "stream",
				Name:      "errors_total",
				Help:      "Total number of error events emitted",
			},
			[]string{"stream_name"},
		),

		StreamsDestroys: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "stream",
				Name:      "destroyed_total",
				Help:      "Total number of destroyed streams",
			},
			[]string{"stream_name"},
		),

		PipelinesCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "completed_total",
				Help:      "Total number of pipelines completed, by outcome",
			},
			[]string{"outcome"},
		),

		PipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "duration_seconds",
				Help:      "Time from pipeline start to completion",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
}

// Pushed records a chunk entering a readable buffer.
func (r *Registry) Pushed(stream string) {
	if r == nil {
		return
	}
	r.ChunksPushed.WithLabelValues(stream).Inc()
}

// Read records a chunk handed to a consumer.
func (r *Registry) Read(stream string) {
	if r == nil {
		return
	}
	r.ChunksRead.WithLabelValues(stream).Inc()
}

// Buffered sets the buffered length of one side of a stream.
func (r *Registry) Buffered(stream, side string, length int) {
	if r == nil {
		return
	}
	r.BufferLength.WithLabelValues(stream, side).Set(float64(length))
}

// Written records a chunk accepted by a writable.
func (r *Registry) Written(stream string, size int) {
	if r == nil {
		return
	}
	r.ChunksWritten.WithLabelValues(stream).Inc()
	if size > 0 {
		r.BytesWritten.WithLabelValues(stream).Add(float64(size))
	}
}

// Backpressure records a write that asked the producer to wait.
func (r *Registry) Backpressure(stream string) {
	if r == nil {
		return
	}
	r.BackpressureEvents.WithLabelValues(stream).Inc()
}

// Drained records a drain event.
func (r *Registry) Drained(stream string) {
	if r == nil {
		return
	}
	r.DrainEvents.WithLabelValues(stream).Inc()
}

// Errored records an emitted error event.
func (r *Registry) Errored(stream string) {
	if r == nil {
		return
	}
	r.StreamErrors.WithLabelValues(stream).Inc()
}

// Destroyed records a destroyed stream.
func (r *Registry) Destroyed(stream string) {
	if r == nil {
		return
	}
	r.StreamsDestroys.WithLabelValues(stream).Inc()
}

// PipelineDone records a pipeline outcome and how long it ran.
func (r *Registry) PipelineDone(outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.PipelinesCompleted.WithLabelValues(outcome).Inc()
	r.PipelineDuration.WithLabelValues(outcome).Observe(seconds)
}
