package agent

import "errors"

// The error taxonomy of spec §7 beyond StructuralError (pkg/policy), which
// governs parse-time rejection. These four cover what can go wrong once an
// agent starts evaluating a request.
var (
	// ErrGovernance wraps a fail-closed governance validator rejection —
	// never returned for a policy already accepted into the active corpus,
	// only when registering/validating one ad hoc.
	ErrGovernance = errors.New("agent: governance validation rejected the policy")

	// ErrExecutionContext wraps a missing or malformed required input
	// (request id, evaluation context) the caller must supply.
	ErrExecutionContext = errors.New("agent: invalid execution context")

	// ErrExecutionInvariant wraps a violation of the execution span
	// invariant: a repo span closing without any agent span beneath it.
	// Seeing this indicates a bug in the agent wiring itself, not caller
	// input.
	ErrExecutionInvariant = errors.New("agent: execution span invariant violated")

	// ErrDecision wraps a failure to build the DecisionEvent for a request,
	// including a failed cache computation. The agent method returns it
	// with a nil result: no DecisionEvent, zero-confidence or otherwise, is
	// returned or persisted for that request.
	ErrDecision = errors.New("agent: decision evaluation failed")
)

// GovernanceError carries the structured violation list a fail-closed
// governance rejection produced.
type GovernanceError struct {
	PolicyID   string
	Violations []string
	RiskLevel  string
}

func (e *GovernanceError) Error() string {
	return "agent: governance rejected policy " + e.PolicyID + ": " + joinOrNone(e.Violations)
}

func (e *GovernanceError) Unwrap() error { return ErrGovernance }

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "no violations recorded"
	}
	out := items[0]
	for _, s := range items[1:] {
		out += "; " + s
	}
	return out
}

// SinkError wraps a best-effort record or telemetry sink failure. It is
// always logged, never propagated as the caller's decision error — the
// agent methods return it only via the Result.SinkErrors slice, not as the
// method's own error return.
type SinkError struct {
	Sink string // "record" | "telemetry"
	Err  error
}

func (e *SinkError) Error() string { return "agent: " + e.Sink + " sink failed: " + e.Err.Error() }

func (e *SinkError) Unwrap() error { return e.Err }
