// Package metrics exposes the ingestion pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiki_catalog_pages_fetched_total",
			Help: "Seasonal catalog pages fetched from the upstream API",
		},
		[]string{"season"},
	)

	EntriesUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiki_entries_upserted_total",
			Help: "Catalog entries written to the store",
		},
	)

	PartitionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiki_backfill_partitions_total",
			Help: "Backfill partition outcomes",
		},
		[]string{"outcome"},
	)

	PartitionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiki_backfill_partition_retries_total",
			Help: "Partition-level retry attempts during backfill",
		},
	)

	EnrichCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiki_enrich_cache_hits_total",
			Help: "Streaming enrichment lookups served from the in-memory cache",
		},
	)

	EnrichCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiki_enrich_cache_misses_total",
			Help: "Streaming enrichment lookups that had to call the API",
		},
	)

	EnrichFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiki_enrich_failures_total",
			Help: "Streaming enrichment lookups that exhausted their retries",
		},
	)

	ScoreRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiki_score_refreshes_total",
			Help: "Per-entity score refresh outcomes",
		},
		[]string{"outcome"},
	)

	UpsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiki_store_upsert_duration_seconds",
			Help:    "Duration of store upsert batches",
			Buckets: prometheus.DefBuckets,
		},
	)
)
