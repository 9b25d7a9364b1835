package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "civic_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL run.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram

	// Source metrics.
	FilesRead    prometheus.Counter
	FilesSkipped *prometheus.CounterVec // labels: reason={binary,empty,unreadable}
	RowsRead     prometheus.Counter

	// Aggregation metrics.
	RecordsAggregated   prometheus.Counter
	YearFilterFallbacks prometheus.Counter
	HeatmapRejected     *prometheus.CounterVec // labels: reason={no_coordinates,unparseable,zero_projected,out_of_bounds,cap}
	TrendRecords        *prometheus.CounterVec // labels: window={in,out,undated}

	// Weather metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherAPIDuration prometheus.Histogram
	WeatherEnabled     prometheus.Gauge

	// Step and artifact metrics.
	StepDuration       *prometheus.HistogramVec // labels: step
	StepFailures       *prometheus.CounterVec   // labels: step
	ArtifactsWritten   prometheus.Counter
	ArtifactsPublished *prometheus.CounterVec // labels: target={kafka,amqp,objectstore}, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete ETL run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FilesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_files_read_total",
			Help:      "Source CSV files parsed.",
		}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_files_skipped_total",
			Help:      "Source files skipped by reason.",
		}, []string{"reason"}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rows_read_total",
			Help:      "Raw records read from all source files.",
		}),
		RecordsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_aggregated_total",
			Help:      "Records observed by the single-year aggregation pass.",
		}),
		YearFilterFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "year_filter_fallbacks_total",
			Help:      "Runs where no record matched the target year and the whole dataset was used.",
		}),
		HeatmapRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_rejected_total",
			Help:      "Records that did not contribute a heatmap point, by reason.",
		}, []string{"reason"}),
		TrendRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trend_records_total",
			Help:      "Records seen by the trend pass by window membership.",
		}, []string{"window"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather archive API requests by outcome.",
		}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Weather archive API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		WeatherEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_enabled",
			Help:      "1 when weather enrichment is enabled, 0 otherwise.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each named pipeline step.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Pipeline step failures by step.",
		}, []string{"step"}),
		ArtifactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Artifact files written to the output directory.",
		}),
		ArtifactsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_published_total",
			Help:      "Artifact publications by target and outcome.",
		}, []string{"target", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.RunDuration,
		m.FilesRead,
		m.FilesSkipped,
		m.RowsRead,
		m.RecordsAggregated,
		m.YearFilterFallbacks,
		m.HeatmapRejected,
		m.TrendRecords,
		m.WeatherRequests,
		m.WeatherAPIDuration,
		m.WeatherEnabled,
		m.StepDuration,
		m.StepFailures,
		m.ArtifactsWritten,
		m.ArtifactsPublished,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
