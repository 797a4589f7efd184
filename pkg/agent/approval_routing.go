package agent

import (
	"context"
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/approval"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/audit"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/decision"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/telemetry"
)

// ApprovalRoutingAgent routes an action requiring sign-off to the matching
// approval chain, per spec §4.6, and emits one signed DecisionEvent.
type ApprovalRoutingAgent struct {
	Deps
	Router  *approval.Router
	Builder *decision.Builder
}

// NewApprovalRoutingAgent wires a Router into an ApprovalRoutingAgent.
func NewApprovalRoutingAgent(deps Deps, router *approval.Router, signer crypto.Signer) *ApprovalRoutingAgent {
	builder := decision.New("approval-routing-agent", "1.0.0", signer)
	builder.Now = nowFn(deps.clock())
	builder.IDs = idFn(deps.ids())
	return &ApprovalRoutingAgent{Deps: deps, Router: router, Builder: builder}
}

// RoutingResult is everything one Route call produces.
type RoutingResult struct {
	Event      *contracts.DecisionEvent
	Output     contracts.ApprovalRoutingOutput
	SinkErrors []error
}

// Route runs req through the approval router and returns a signed,
// persisted DecisionEvent alongside the routing output.
func (a *ApprovalRoutingAgent) Route(ctx context.Context, requestID, parentSpanID, sessionID string, req approval.Request) (*RoutingResult, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrExecutionContext)
	}

	tree := audit.StartRepoSpan("policy-engine", parentSpanID)
	agentSpan := tree.StartAgentSpan("approval-routing")
	repoSpanID := tree.RepoSpanID()

	output := a.Router.Route(req)

	event, err := a.Builder.Build(decision.Input{
		DecisionType: contracts.DecisionTypeApprovalRouting,
		Inputs:       req.ActionContext,
		Outputs: map[string]any{
			"outcome":                string(output.Outcome),
			"rules_matched":          output.RulesMatched,
			"justification_required": output.JustificationRequired,
			"risk_score":             output.RiskScore,
		},
		ConstraintsApplied: output.RulesMatched,
		ExecutionRef:       a.executionRef(requestID, repoSpanID, sessionID),
		Outcome:            approvalOutcomeToDecisionOutcome(output.Outcome),
		NoPoliciesMatched:  len(output.RulesMatched) == 0,
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
	telemetry.RecordApprovalOutcome(string(output.Outcome))

	return &RoutingResult{Event: event, Output: output, SinkErrors: sinkErrs}, nil
}

// approvalOutcomeToDecisionOutcome maps an ApprovalOutcome onto the
// confidence-scoring Outcome space: auto-approval scores like a clean
// allow, anything that still needs a human (escalation/approval required)
// scores like a warn, matching how much less confident a not-yet-decided
// routing outcome is.
func approvalOutcomeToDecisionOutcome(o contracts.ApprovalOutcome) contracts.Outcome {
	switch o {
	case contracts.ApprovalOutcomeAutoApproved, contracts.ApprovalOutcomeBypassed:
		return contracts.OutcomeAllow
	default:
		return contracts.OutcomeWarn
	}
}
