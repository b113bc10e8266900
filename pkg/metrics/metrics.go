package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SafetyDecisions counts safety engine outcomes by decision.
	SafetyDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_decisions_total",
			Help: "Safety engine decisions by outcome",
		},
		[]string{"decision"},
	)

	// ClassifierFailures counts LLM classifier failures by reason.
	ClassifierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_classifier_failures_total",
			Help: "LLM classifier failures by reason",
		},
		[]string{"reason"},
	)

	// ClassifierLatency tracks LLM classifier call latency.
	ClassifierLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "safety_classifier_latency_seconds",
			Help:    "Wall-clock latency of LLM classifier calls",
			Buckets: []float64{0.1, 0.25, 0.5, 0.75, 1.0, 1.25, 1.5, 2.0},
		},
	)

	// CommentSubmissions counts comment submissions by final decision.
	CommentSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comment_submissions_total",
			Help: "Comment submissions by gate decision",
		},
		[]string{"decision"},
	)
)
