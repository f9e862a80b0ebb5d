package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcome label values.
const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// pipelineMetrics holds the Prometheus metrics owned by the pipeline. One
// instance is created in New so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type pipelineMetrics struct {
	// runsTotal counts completed runs, partitioned by outcome.
	runsTotal *prometheus.CounterVec

	// cacheHitsTotal counts questions answered from the cache.
	cacheHitsTotal prometheus.Counter

	// cacheMissesTotal counts questions that required computation.
	cacheMissesTotal prometheus.Counter

	// ingestFailuresTotal counts documents that failed ingestion and were
	// degraded to warnings.
	ingestFailuresTotal prometheus.Counter

	// generationRetriesTotal counts failed generation attempts that were
	// retried or exhausted.
	generationRetriesTotal prometheus.Counter
}

func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of answering runs completed, partitioned by outcome.",
		}, []string{"outcome"}),

		cacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "cache_hits_total",
			Help:      "Questions answered from the fingerprint cache.",
		}),

		cacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "cache_misses_total",
			Help:      "Questions that required a full retrieval and generation pass.",
		}),

		ingestFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "ingest_failures_total",
			Help:      "Documents that failed ingestion and were reported as warnings.",
		}),

		generationRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "generation_retries_total",
			Help:      "Failed generation attempts, whether retried or exhausted.",
		}),
	}
}
