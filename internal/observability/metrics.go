package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Registry metrics.
	BoreholesTracked  prometheus.Gauge
	PointsRegistered  prometheus.Gauge
	ReadingsStored    prometheus.Counter
	DuplicateReadings prometheus.Counter

	// Profile plot metrics.
	ProfileRenders        *prometheus.CounterVec // labels: outcome={success,error}
	ProfileCache          *prometheus.CounterVec // labels: result={hit,miss,evict}
	ProfileRenderDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geotech",
			Name:      "messages_consumed_total",
			Help:      "Total reading messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geotech",
			Name:      "messages_produced_total",
			Help:      "Total enriched readings loaded downstream.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geotech",
			Name:      "transform_errors_total",
			Help:      "Total reading messages rejected during transformation.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geotech",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geotech",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geotech",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		BoreholesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geotech",
			Name:      "boreholes_tracked",
			Help:      "Boreholes currently held in the registry.",
		}),
		PointsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geotech",
			Name:      "points_registered",
			Help:      "Spatial points currently held in the registry.",
		}),
		ReadingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geotech",
			Name:      "readings_stored_total",
			Help:      "SPT readings appended to boreholes.",
		}),
		DuplicateReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geotech",
			Name:      "duplicate_readings_total",
			Help:      "Redelivered readings skipped by the registry.",
		}),
		ProfileRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geotech",
			Name:      "profile_renders_total",
			Help:      "Depth profile renders by outcome.",
		}, []string{"outcome"}),
		ProfileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geotech",
			Name:      "profile_cache_total",
			Help:      "Rendered profile cache lookups and evictions by result.",
		}, []string{"result"}),
		ProfileRenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geotech",
			Name:      "profile_render_duration_seconds",
			Help:      "Time spent drawing and encoding a depth profile PNG.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.BoreholesTracked,
		m.PointsRegistered,
		m.ReadingsStored,
		m.DuplicateReadings,
		m.ProfileRenders,
		m.ProfileCache,
		m.ProfileRenderDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geotech", Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geotech", Name: "messages_produced_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geotech", Name: "transform_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "geotech", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geotech", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geotech", Name: "batch_processing_duration_seconds"}),
		BoreholesTracked:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "geotech", Name: "boreholes_tracked"}),
		PointsRegistered:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "geotech", Name: "points_registered"}),
		ReadingsStored:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geotech", Name: "readings_stored_total"}),
		DuplicateReadings:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geotech", Name: "duplicate_readings_total"}),
		ProfileRenders:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geotech", Name: "profile_renders_total"}, []string{"outcome"}),
		ProfileCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geotech", Name: "profile_cache_total"}, []string{"result"}),
		ProfileRenderDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geotech", Name: "profile_render_duration_seconds"}),
	}
}
