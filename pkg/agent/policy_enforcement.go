package agent

import (
	"context"
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/audit"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/cache"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/decision"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/engine"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/telemetry"
)

// PolicyEnforcementAgent evaluates a request against the active policy
// corpus, per spec §4.3, and emits one signed DecisionEvent.
type PolicyEnforcementAgent struct {
	Deps
	Engine  *engine.Engine
	Builder *decision.Builder
	Cache   *cache.Store // nil disables caching regardless of request flags
}

// NewPolicyEnforcementAgent wires an Engine and an optional signer/cache
// into a PolicyEnforcementAgent.
func NewPolicyEnforcementAgent(deps Deps, eng *engine.Engine, signer crypto.Signer, cacheStore *cache.Store) *PolicyEnforcementAgent {
	builder := decision.New("policy-enforcement-agent", "1.0.0", signer)
	builder.Now = nowFn(deps.clock())
	builder.IDs = idFn(deps.ids())
	return &PolicyEnforcementAgent{Deps: deps, Engine: eng, Builder: builder, Cache: cacheStore}
}

// Request is what the caller supplies to Evaluate.
type Request struct {
	RequestID      string
	ParentSpanID   string
	SessionID      string
	Context        contracts.EvaluationContext
	RestrictTo     []string
	DryRun         bool
	Trace          bool
}

// Result is everything one Evaluate call produces.
type Result struct {
	Event       *contracts.DecisionEvent
	Decision    contracts.Decision
	Trace       []engine.RuleTrace
	Cached      bool
	SinkErrors  []error
}

// Evaluate runs req through the policy engine and returns a signed,
// persisted DecisionEvent alongside the synthesized Decision.
func (a *PolicyEnforcementAgent) Evaluate(ctx context.Context, req Request) (*Result, error) {
	if req.RequestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrExecutionContext)
	}

	tree := audit.StartRepoSpan("policy-engine", req.ParentSpanID)
	agentSpan := tree.StartAgentSpan("policy-enforcement")
	repoSpanID := tree.RepoSpanID()

	engineReq := engine.Request{
		RequestID:  req.RequestID,
		Context:    req.Context,
		RestrictTo: req.RestrictTo,
		DryRun:     req.DryRun,
		Trace:      req.Trace,
	}

	cacheable := a.Cache != nil && !req.DryRun && !req.Trace
	var cached bool
	var response engine.Response
	var event *contracts.DecisionEvent
	var buildErr error

	compute := func() (*contracts.DecisionEvent, error) {
		response = a.Engine.Evaluate(engineReq)
		event, buildErr = a.buildEvent(req, repoSpanID, response)
		return event, buildErr
	}

	if cacheable {
		ctxFP, fpErr := cache.Fingerprint(req.Context)
		if fpErr == nil {
			key := cache.Key(ctxFP, req.RestrictTo)
			got, hit, err := a.Cache.GetOrCompute(ctx, key, compute)
			if err == nil {
				event, cached = got, hit
			} else {
				buildErr = err
			}
			telemetry.RecordCacheLookup(hit)
		} else {
			_, buildErr = compute()
		}
	} else {
		_, buildErr = compute()
	}

	if buildErr != nil {
		finishFailed(tree, agentSpan, buildErr)
		return nil, fmt.Errorf("%w: %v", ErrDecision, buildErr)
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

	d := response.Decision
	var trace []engine.RuleTrace
	if cached {
		// compute() never ran: response is zero-valued, so the Decision and
		// outcome telemetry are read back out of the cached event instead.
		d = decisionFromEvent(event)
	} else {
		trace = response.Trace
	}
	telemetry.RecordDecision("policy-enforcement-agent", string(d.Outcome), d.EvaluationTime.Seconds())

	return &Result{
		Event:      event,
		Decision:   d,
		Trace:      trace,
		Cached:     cached,
		SinkErrors: sinkErrs,
	}, nil
}

// decisionFromEvent reconstructs the Decision a cached DecisionEvent was
// built from, since a cache hit never re-runs the engine. It reads back the
// domain outcome (outputs.decision_outcome) rather than the wire outcome
// (outputs.outcome), since the latter has no lossless inverse for the
// modify/allow and warn/allow collisions the wire mapping introduces.
func decisionFromEvent(event *contracts.DecisionEvent) contracts.Decision {
	outcome, _ := event.Outputs["decision_outcome"].(string)
	reason, _ := event.Outputs["reason"].(string)
	modifications, _ := event.Outputs["modifications"].(map[string]any)
	return contracts.Decision{
		Outcome:         contracts.Outcome(outcome),
		Reason:          reason,
		MatchedPolicies: stringsFrom(event.Outputs["matched_policies"]),
		MatchedRules:    stringsFrom(event.Outputs["matched_rules"]),
		Modifications:   modifications,
	}
}

func stringsFrom(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (a *PolicyEnforcementAgent) buildEvent(req Request, repoSpanID string, response engine.Response) (*contracts.DecisionEvent, error) {
	d := response.Decision
	noMatch := len(d.MatchedPolicies) == 0
	mixed := mixedSatisfaction(response.Contributions)
	wireOutcome := enforcementOutcome(d, response.Contributions)

	return a.Builder.Build(decision.Input{
		DecisionType: contracts.DecisionTypePolicyEnforcement,
		Inputs:       req.Context,
		Outputs: map[string]any{
			"outcome":            string(wireOutcome),
			"allowed":            enforcementAllowed(wireOutcome),
			"decision_outcome":   string(d.Outcome),
			"reason":             d.Reason,
			"matched_policies":   d.MatchedPolicies,
			"matched_rules":      d.MatchedRules,
			"modifications":      d.Modifications,
			"evaluation_time_ms": float64(d.EvaluationTime.Microseconds()) / 1000.0,
			"cached":             false,
		},
		ExecutionRef:      a.executionRef(req.RequestID, repoSpanID, req.SessionID),
		NoPoliciesMatched: noMatch,
		MixedSatisfaction: mixed,
		Outcome:           d.Outcome,
	})
}

// enforcementOutcome maps the engine's domain decision (allow/deny/warn/
// modify, plus whether any matched rule was tagged as an approval gate)
// onto spec §6's Policy Enforcement wire closed set. deny and modify map
// unambiguously (policy_deny, conditional_allow); allow splits into
// approval_required when an approval_gate rule contributed to the
// dominant outcome, else policy_allow; warn maps to constraint_violation,
// since a warn action signals a soft rule violation that did not block
// the request but must be surfaced distinctly from a clean allow.
func enforcementOutcome(d contracts.Decision, contributions []engine.PolicyContribution) contracts.EnforcementOutcome {
	switch d.Outcome {
	case contracts.OutcomeDeny:
		return contracts.EnforcementPolicyDeny
	case contracts.OutcomeModify:
		return contracts.EnforcementConditionalAllow
	case contracts.OutcomeWarn:
		return contracts.EnforcementConstraintViolation
	default:
		for _, c := range contributions {
			if c.Outcome == d.Outcome && c.ConstraintType == contracts.ConstraintApprovalGate {
				return contracts.EnforcementApprovalRequired
			}
		}
		return contracts.EnforcementPolicyAllow
	}
}

// enforcementAllowed is the allowed boolean scenarios A/B require
// alongside outcome: true for an unconditional or conditional allow, false
// for anything that blocks or defers the request.
func enforcementAllowed(outcome contracts.EnforcementOutcome) bool {
	return outcome == contracts.EnforcementPolicyAllow || outcome == contracts.EnforcementConditionalAllow
}

func mixedSatisfaction(contributions []engine.PolicyContribution) bool {
	if len(contributions) < 2 {
		return false
	}
	seen := map[contracts.Outcome]bool{}
	for _, c := range contributions {
		seen[c.Outcome] = true
	}
	return len(seen) > 1
}

func finishFailed(tree *audit.SpanTree, agentSpan *contracts.ExecutionSpan, err error) {
	_ = tree.FinishAgentSpan(agentSpan.SpanID, err)
	_, _, _ = tree.FinishRepo(err)
}
