package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandidatesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_candidates_ingested_total",
		Help: "The total number of discovered candidate records ingested",
	}, []string{"source"})

	DedupDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_dedup_decisions_total",
		Help: "The total number of dedup decisions by action",
	}, []string{"action"})

	CandidatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_candidates_rejected_total",
		Help: "The total number of candidates rejected before fingerprinting",
	}, []string{"reason"})

	SimilarityScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_dedup_similarity_score",
		Help:    "Similarity scores of fuzzy duplicate decisions",
		Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1},
	})

	ReconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_reconcile_duration_seconds",
		Help:    "Duration in seconds of batch reconciliation runs",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	ReconcilePairsFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_reconcile_pairs_total",
		Help: "The total number of duplicate pairs found by reconciliation",
	})

	DeduplicationRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radar_deduplication_rate",
		Help: "Duplicate links over total opportunities, from the latest stats run",
	})

	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_feed_fetches_total",
		Help: "The total number of feed fetch attempts by status",
	}, []string{"status"})
)
