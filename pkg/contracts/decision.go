package contracts

import "time"

// Decision is the synthesized outcome of evaluating one or more policies
// against an EvaluationContext: the dominant outcome across every matched
// rule, plus the ids that contributed to it.
type Decision struct {
	Outcome       Outcome        `json:"outcome"`
	MatchedPolicies []string     `json:"matched_policies"`
	MatchedRules  []string       `json:"matched_rules"`
	Reason        string         `json:"reason"`
	Modifications map[string]any `json:"modifications,omitempty"`
	EvaluationTime time.Duration `json:"evaluation_time"`
}

// DecisionType is the closed set of agent decision kinds a DecisionEvent
// records.
type DecisionType string

const (
	DecisionTypePolicyEnforcement DecisionType = "policy_enforcement_decision"
	DecisionTypeConstraintSolving DecisionType = "constraint_resolution"
	DecisionTypeApprovalRouting   DecisionType = "approval_routing_decision"
)

// EnforcementOutcome is the closed set of wire outcomes the Policy
// Enforcement agent emits in a DecisionEvent's outputs.outcome, distinct
// from the allow/deny/warn/modify domain Decision.Outcome carries
// internally for confidence scoring.
type EnforcementOutcome string

const (
	EnforcementPolicyAllow         EnforcementOutcome = "policy_allow"
	EnforcementPolicyDeny          EnforcementOutcome = "policy_deny"
	EnforcementApprovalRequired    EnforcementOutcome = "approval_required"
	EnforcementConditionalAllow    EnforcementOutcome = "conditional_allow"
	EnforcementConstraintViolation EnforcementOutcome = "constraint_violation"
)

// ExecutionRef ties a DecisionEvent back to the request/trace that produced
// it. SessionID is optional; the rest are always populated.
type ExecutionRef struct {
	RequestID   string `json:"request_id"`
	TraceID     string `json:"trace_id"`
	SpanID      string `json:"span_id"`
	Environment string `json:"environment"`
	SessionID   string `json:"session_id,omitempty"`
}

// DecisionEvent is the durable, signed record of one agent decision: the
// inputs are never stored directly, only their canonical fingerprint
// (InputsHash), alongside the outputs, a confidence score, and the
// constraints that were applied in reaching it. Exactly one is emitted per
// successful agent invocation; an invocation that fails with an agent error
// returns that error and no event. Identical inputs produce an identical
// InputsHash.
//
//nolint:govet // fieldalignment: struct layout kept human-readable
type DecisionEvent struct {
	EventID            string         `json:"event_id"`
	AgentID            string         `json:"agent_id"`
	AgentVersion       string         `json:"agent_version"`
	DecisionType       DecisionType   `json:"decision_type"`
	InputsHash         string         `json:"inputs_hash"`
	Outputs            map[string]any `json:"outputs"`
	Confidence         float64        `json:"confidence"`
	ConstraintsApplied []string       `json:"constraints_applied,omitempty"`
	ExecutionRef       ExecutionRef   `json:"execution_ref"`
	Timestamp          time.Time      `json:"timestamp"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Signature          string         `json:"signature,omitempty"`
	SignatureKeyID     string         `json:"signature_key_id,omitempty"`
}
