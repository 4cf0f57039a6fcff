package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gamerank"

// Outcomes of a score submission.
const (
	OutcomeImproved = "improved"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
)

var (
	ScoreSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_submissions_total",
		Help:      "Score submissions by leaderboard scope and outcome.",
	}, []string{"scope", "outcome"})

	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Recommendation requests by kind and cache result.",
	}, []string{"kind", "cache"})

	RecommendationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "recommendation_duration_seconds",
		Help:      "Time spent computing recommendations.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"kind"})
)
