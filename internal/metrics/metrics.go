// Package metrics exposes veritas business metrics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReviewsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritas_reviews_processed_total",
			Help: "Reviews processed, by resulting status",
		},
		[]string{"status"},
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veritas_anomalies_detected_total",
			Help: "Detection flags raised during review processing",
		},
		[]string{"flag"},
	)

	ReputationsInitialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "veritas_reputations_initialized_total",
			Help: "Reputation records created",
		},
	)

	QualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "veritas_review_quality_score",
			Help:    "Distribution of computed review quality scores",
			Buckets: prometheus.LinearBuckets(0.0, 0.1, 11),
		},
	)
)
