package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_decisions_total",
			Help: "Total number of decisions emitted, by agent and outcome",
		},
		[]string{"agent_id", "outcome"},
	)

	decisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policyengine_decision_duration_seconds",
			Help:    "Time spent evaluating one decision",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"agent_id"},
	)

	constraintOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_constraint_outcomes_total",
			Help: "Total number of constraint resolutions, by outcome",
		},
		[]string{"outcome", "strategy"},
	)

	approvalOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_approval_outcomes_total",
			Help: "Total number of approval routing decisions, by outcome",
		},
		[]string{"outcome"},
	)

	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policyengine_decision_cache_hits_total",
			Help: "Total number of decision cache lookups, by hit/miss",
		},
		[]string{"result"},
	)

	policyCorpusSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policyengine_policy_corpus_size",
			Help: "Number of active policies currently loaded into the engine snapshot",
		},
	)
)

// RecordDecision records one agent decision outcome and its duration.
func RecordDecision(agentID string, outcome string, durationSeconds float64) {
	decisionsTotal.WithLabelValues(agentID, outcome).Inc()
	decisionDuration.WithLabelValues(agentID).Observe(durationSeconds)
}

// RecordConstraintOutcome records a constraint resolution outcome.
func RecordConstraintOutcome(outcome, strategy string) {
	constraintOutcomesTotal.WithLabelValues(outcome, strategy).Inc()
}

// RecordApprovalOutcome records an approval routing outcome.
func RecordApprovalOutcome(outcome string) {
	approvalOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup records a decision cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheHitsTotal.WithLabelValues(result).Inc()
}

// RecordCorpusSize sets the current active-policy corpus size. engine.Reload
// does not call it; the gauge changes only when a caller sets it.
func RecordCorpusSize(n int) {
	policyCorpusSize.Set(float64(n))
}
