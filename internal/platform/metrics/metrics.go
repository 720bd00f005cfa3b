// Package metrics holds the prometheus collectors for the import pipeline
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names
const (
	ImportsStartedTotalKey      = "laneledger_imports_started_total"
	ImportsDeduplicatedTotalKey = "laneledger_imports_deduplicated_total"
	BatchesFinishedTotalKey     = "laneledger_import_batches_finished_total"
	CallbacksTotalKey           = "laneledger_import_callbacks_total"
	CallbackRejectionsTotalKey  = "laneledger_import_callback_rejections_total"
	DispatchesTotalKey          = "laneledger_import_dispatches_total"
	ReconcileDurationSecondsKey = "laneledger_import_reconcile_duration_seconds"
	ReconcileRowsTotalKey       = "laneledger_import_reconcile_rows_total"
	CleanupDeletedRowsTotalKey  = "laneledger_import_cleanup_deleted_rows_total"
	ImportWarningsTotalKey      = "laneledger_import_warnings_total"
	HTTPRequestDurationKey      = "laneledger_http_request_duration_seconds"
)

// Collectors
var (
	ImportsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: ImportsStartedTotalKey,
		Help: "Import batches created by Start Import or a direct snapshot.",
	})
	ImportsDeduplicatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: ImportsDeduplicatedTotalKey,
		Help: "Start Import calls answered with an existing batch.",
	})
	BatchesFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: BatchesFinishedTotalKey,
		Help: "Batches reaching a terminal status.",
	}, []string{"status"})
	CallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: CallbacksTotalKey,
		Help: "Authenticated worker callbacks by kind and outcome.",
	}, []string{"kind", "outcome"})
	CallbackRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: CallbackRejectionsTotalKey,
		Help: "Callbacks rejected before any state change, by reason.",
	}, []string{"reason"})
	DispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: DispatchesTotalKey,
		Help: "Outbound worker dispatch attempts by outcome.",
	}, []string{"outcome"})
	ReconcileDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ReconcileDurationSecondsKey,
		Help:    "Wall time of one reconciliation run.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	ReconcileRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ReconcileRowsTotalKey,
		Help: "Canonical rows written by reconciliation, by entity.",
	}, []string{"entity"})
	CleanupDeletedRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: CleanupDeletedRowsTotalKey,
		Help: "Rows removed by replace-all cleanup, by table.",
	}, []string{"table"})
	ImportWarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ImportWarningsTotalKey,
		Help: "Non-fatal warnings attached to completed batches, by record type.",
	}, []string{"record_type"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    HTTPRequestDurationKey,
		Help:    "API request latency by module, method and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"module", "method", "code"})
)

// ImportCollectors returns every collector owned by this package
func ImportCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		ImportsStartedTotal,
		ImportsDeduplicatedTotal,
		BatchesFinishedTotal,
		CallbacksTotal,
		CallbackRejectionsTotal,
		DispatchesTotal,
		ReconcileDurationSeconds,
		ReconcileRowsTotal,
		CleanupDeletedRowsTotal,
		ImportWarningsTotal,
		HTTPRequestDuration,
	}
}

var (
	regOnce  sync.Once
	registry *prometheus.Registry
)

// Registry returns the process registry with Go, process and import collectors
func Registry() *prometheus.Registry {
	regOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(prometheus.NewGoCollector())
		registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
		registry.MustRegister(ImportCollectors()...)
	})
	return registry
}

// Handler serves the registry in the prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// Instrument records request latency for routes mounted by module
func Instrument(module string) func(http.Handler) http.Handler {
	obs := HTTPRequestDuration.MustCurryWith(prometheus.Labels{"module": module})
	return func(next http.Handler) http.Handler {
		return promhttp.InstrumentHandlerDuration(obs, next)
	}
}
