package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImportRowsParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "figtracker_import_rows_parsed_total",
			Help: "Total import rows parsed into observations",
		},
	)

	ImportRowsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "figtracker_import_rows_skipped_total",
			Help: "Total import rows dropped for unparseable dates",
		},
	)

	ImportBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "figtracker_import_batches_total",
			Help: "Total import batches by outcome",
		},
		[]string{"source", "status"},
	)

	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "figtracker_analysis_runs_total",
			Help: "Total analysis runs by outcome",
		},
		[]string{"status"},
	)

	AnalysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "figtracker_analysis_latency_seconds",
			Help:    "AI analysis call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PayloadParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "figtracker_payload_parse_failures_total",
			Help: "Analysis responses whose structured payload failed to decode",
		},
	)

	TriggerFires = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "figtracker_trigger_fires_total",
			Help: "Debounced analysis trigger firings",
		},
	)

	ObservationsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "figtracker_observations_stored",
			Help: "Current number of observations in the store",
		},
	)
)
