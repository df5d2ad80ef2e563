package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labverse_queries_total",
		Help: "Queries processed, labelled by resolved intent.",
	}, []string{"intent"})

	queryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labverse_query_failures_total",
		Help: "Queries that ended in the error response.",
	})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labverse_query_duration_seconds",
		Help:    "End-to-end query pipeline latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"intent"})

	llmFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labverse_llm_failures_total",
		Help: "Completion requests that returned an error.",
	})

	indexedDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labverse_indexed_documents",
		Help: "Documents currently in the catalog index.",
	})

	ingestQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labverse_ingest_queue_depth",
		Help: "Operations waiting in the ingest queue.",
	})

	ingestProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labverse_ingest_operations_total",
		Help: "Ingest operations processed, labelled by handler and outcome.",
	}, []string{"handler", "outcome"})

	storeSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labverse_store_size_bytes",
		Help: "On-disk size of the pebble store.",
	})

	storeL0Files = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labverse_store_l0_files",
		Help: "Pebble level-0 file count.",
	})

	storeCompactionBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labverse_store_compaction_backlog_bytes",
		Help: "Bytes pending compaction in the pebble store.",
	})
)

// ObserveQuery records one pipeline run.
func ObserveQuery(intent string, d time.Duration, failed bool) {
	queryTotal.WithLabelValues(intent).Inc()
	queryDuration.WithLabelValues(intent).Observe(d.Seconds())
	if failed {
		queryFailures.Inc()
	}
}

// ObserveLLMFailure counts a failed completion request.
func ObserveLLMFailure() { llmFailures.Inc() }

// SetIndexedDocuments reports the current catalog size.
func SetIndexedDocuments(n int) { indexedDocuments.Set(float64(n)) }

// SetIngestQueueDepth reports the current queue backlog.
func SetIngestQueueDepth(n int) { ingestQueueDepth.Set(float64(n)) }

// ObserveIngest counts one processed ingest operation.
func ObserveIngest(handler, outcome string) {
	ingestProcessed.WithLabelValues(handler, outcome).Inc()
}

// SetStoreMetrics reports pebble health numbers for scraping.
func SetStoreMetrics(sizeBytes uint64, l0Files int, compactionBacklog uint64) {
	storeSizeBytes.Set(float64(sizeBytes))
	storeL0Files.Set(float64(l0Files))
	storeCompactionBacklog.Set(float64(compactionBacklog))
}
