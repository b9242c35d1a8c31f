// Package metrics exposes Prometheus counters for batch processing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Entry outcomes
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
)

var (
	// BatchesProcessed counts processed batches by final state
	BatchesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transition",
		Name:      "batches_processed_total",
		Help:      "Mappings batches processed, by final state.",
	}, []string{"state"})

	// EntriesProcessed counts batch entries by what happened to their mapping
	EntriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transition",
		Name:      "batch_entries_processed_total",
		Help:      "Mappings batch entries processed, by outcome.",
	}, []string{"outcome"})

	// BatchesCreated counts stored batches by kind
	BatchesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transition",
		Name:      "batches_created_total",
		Help:      "Mappings batches created, by kind.",
	}, []string{"kind"})

	// BatchQueueDepth reports batches waiting for a worker
	BatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "transition",
		Name:      "batch_queue_depth",
		Help:      "Batches queued for asynchronous processing.",
	})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
