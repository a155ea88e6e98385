package constraintmonitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	editsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "claimwatch",
		Subsystem: "monitor",
		Name:      "edits_consumed_total",
		Help:      "Edit events consumed from the stream.",
	})

	burstsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "claimwatch",
		Subsystem: "monitor",
		Name:      "bursts_evaluated_total",
		Help:      "Collapsed edit bursts evaluated.",
	})

	burstsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "claimwatch",
		Subsystem: "monitor",
		Name:      "bursts_skipped_total",
		Help:      "Bursts skipped before evaluation, by reason.",
	}, []string{"reason"})

	violationsFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "claimwatch",
		Subsystem: "monitor",
		Name:      "violations_total",
		Help:      "Constraint results by transition label.",
	}, []string{"transition"})

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "claimwatch",
		Subsystem: "monitor",
		Name:      "evaluation_duration_seconds",
		Help:      "Wall time of one burst evaluation, including API calls.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
