// # internal/shared/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devcrawl_parsing_seconds",
		Help:    "Time spent parsing a script.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ScriptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devcrawl_scripts_total",
		Help: "Scripts processed by the instrumenter, by outcome.",
	}, []string{"outcome"})

	FunctionsInstrumentedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devcrawl_functions_instrumented_total",
		Help: "Function definitions wrapped with trace hooks.",
	})

	ImportsRewrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devcrawl_imports_rewritten_total",
		Help: "Import targets redirected to instrumented batch members.",
	})

	BatchGraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devcrawl_batch_graph_edges",
		Help: "In-batch import edges of the last resolved batch.",
	})

	TraceRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devcrawl_trace_records_total",
		Help: "Trace log lines consumed by the reconstructor, by kind.",
	}, []string{"kind"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devcrawl_stage_seconds",
		Help:    "Time spent in a pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devcrawl_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// WriteMetricsFile dumps the default registry in the text exposition format.
func WriteMetricsFile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
