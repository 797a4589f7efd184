package agent

import (
	"context"
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/audit"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/constraint"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/decision"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/telemetry"
)

// ConstraintSolverAgent resolves the constraints an EvaluationContext is
// subject to, per spec §4.5, and emits one signed DecisionEvent.
type ConstraintSolverAgent struct {
	Deps
	Solver  *constraint.Solver
	Builder *decision.Builder
}

// NewConstraintSolverAgent wires a Solver into a ConstraintSolverAgent.
func NewConstraintSolverAgent(deps Deps, solver *constraint.Solver, signer crypto.Signer) *ConstraintSolverAgent {
	builder := decision.New("constraint-solver-agent", "1.0.0", signer)
	builder.Now = nowFn(deps.clock())
	builder.IDs = idFn(deps.ids())
	return &ConstraintSolverAgent{Deps: deps, Solver: solver, Builder: builder}
}

// ConstraintResult is everything one Resolve call produces.
type ConstraintResult struct {
	Event      *contracts.DecisionEvent
	Output     contracts.ConstraintSolverOutput
	SinkErrors []error
}

// Resolve runs evalCtx through the constraint solver and returns a signed,
// persisted DecisionEvent alongside the resolution output.
func (a *ConstraintSolverAgent) Resolve(ctx context.Context, requestID, parentSpanID, sessionID string, evalCtx contracts.EvaluationContext) (*ConstraintResult, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrExecutionContext)
	}

	tree := audit.StartRepoSpan("policy-engine", parentSpanID)
	agentSpan := tree.StartAgentSpan("constraint-solver")
	repoSpanID := tree.RepoSpanID()

	output := a.Solver.Resolve(evalCtx)

	modified := mapConstraintIDs(output.Constraints)
	event, err := a.Builder.Build(decision.Input{
		DecisionType: contracts.DecisionTypeConstraintSolving,
		Inputs:       evalCtx,
		Outputs: map[string]any{
			"outcome":              string(output.Outcome),
			"strategy":             string(output.Strategy),
			"conflicts_resolved":   output.ConflictsResolved,
			"constraint_count":     len(output.Constraints),
			"effective_count":      len(output.EffectiveConstraints),
			"conflict_count":       len(output.Conflicts),
		},
		ConstraintsApplied: modified,
		ExecutionRef:       a.executionRef(requestID, repoSpanID, sessionID),
		Outcome:            constraintOutcomeToDecisionOutcome(output.Outcome),
		MixedSatisfaction:  len(output.Conflicts) > 0,
	})
	if err != nil {
		finishFailed(tree, agentSpan, err)
		return nil, fmt.Errorf("%w: %v", ErrDecision, err)
	}

	if err := tree.FinishAgentSpan(agentSpan.SpanID, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionInvariant, err)
	}
	repoSpan, children, err := tree.FinishRepo(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionInvariant, err)
	}
	a.persistSpans(ctx, repoSpan, children)

	sinkErrs := a.persist(ctx, event)
	telemetry.RecordConstraintOutcome(string(output.Outcome), string(output.Strategy))

	return &ConstraintResult{Event: event, Output: output, SinkErrors: sinkErrs}, nil
}

func mapConstraintIDs(constraints []contracts.AppliedConstraint) []string {
	ids := make([]string, 0, len(constraints))
	for _, c := range constraints {
		ids = append(ids, c.ID)
	}
	return ids
}

// constraintOutcomeToDecisionOutcome maps a ConstraintOutcome onto the
// confidence-scoring Outcome space decision.Builder understands: a clean
// resolution (satisfied or no constraints) is allow-shaped, a resolved
// conflict is modify-shaped, and anything else (violated or partially
// resolved) is warn-shaped.
func constraintOutcomeToDecisionOutcome(o contracts.ConstraintOutcome) contracts.Outcome {
	switch o {
	case contracts.OutcomeConstraintsSatisfied, contracts.OutcomeNoConstraints:
		return contracts.OutcomeAllow
	case contracts.OutcomeConstraintsResolved:
		return contracts.OutcomeModify
	default:
		return contracts.OutcomeWarn
	}
}
