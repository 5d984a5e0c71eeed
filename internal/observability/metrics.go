package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a RAINCELL run.
type Metrics struct {
	Runs            *prometheus.CounterVec // labels: outcome={success,skipped,failed}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Station series metrics.
	Stations *prometheus.CounterVec // labels: status={complete,repaired,degraded}

	// Output metrics.
	Points                 prometheus.Gauge
	PointsWithoutStation   prometheus.Gauge
	HorizonExceededSamples prometheus.Counter
	RowsWritten            prometheus.Counter
	NotifyErrors           prometheus.Counter
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.RunDuration,
		m.PipelineRunning,
		m.Stations,
		m.Points,
		m.PointsWithoutStation,
		m.HorizonExceededSamples,
		m.RowsWritten,
		m.NotifyErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raincell",
			Name:      "runs_total",
			Help:      "RAINCELL runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "raincell",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete RAINCELL run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raincell",
			Name:      "pipeline_running",
			Help:      "1 while a run is active, 0 otherwise.",
		}),
		Stations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raincell",
			Name:      "stations_total",
			Help:      "Observation stations processed by series status.",
		}, []string{"status"}),
		Points: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raincell",
			Name:      "points",
			Help:      "Basin points in the last run.",
		}),
		PointsWithoutStation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raincell",
			Name:      "points_without_station",
			Help:      "Basin points outside every Thiessen polygon in the last run.",
		}),
		HorizonExceededSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raincell",
			Name:      "horizon_exceeded_samples_total",
			Help:      "Forecast samples past the end of the cube, written as 0.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raincell",
			Name:      "rows_written_total",
			Help:      "Point rows written to RAINCELL files.",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raincell",
			Name:      "notify_errors_total",
			Help:      "Run-completed notifications that failed to publish.",
		}),
	}
}
