package agent

import (
	"context"
	"testing"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/cache"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/engine"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/facade"
)

func allowRule(id string) contracts.PolicyRule {
	return contracts.PolicyRule{
		ID:        id,
		Enabled:   true,
		Condition: contracts.Condition{Kind: contracts.ConditionLeaf, Field: "always", Operator: contracts.OpExists, Value: nil},
		Action:    contracts.Action{Decision: contracts.OutcomeAllow},
	}
}

func denyRule(id, field string) contracts.PolicyRule {
	return contracts.PolicyRule{
		ID:      id,
		Enabled: true,
		Condition: contracts.Condition{
			Kind: contracts.ConditionLeaf, Field: field, Operator: contracts.OpExists, Value: nil,
		},
		Action: contracts.Action{Decision: contracts.OutcomeDeny, Reason: "blocked"},
	}
}

func newTestEngine() *engine.Engine {
	e := engine.New()
	e.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Priority: 1, Rules: []contracts.PolicyRule{allowRule("r1")}},
	})
	return e
}

func TestPolicyEnforcementAgent_Evaluate_RejectsEmptyRequestID(t *testing.T) {
	a := NewPolicyEnforcementAgent(Deps{}, newTestEngine(), nil, nil)
	_, err := a.Evaluate(context.Background(), Request{Context: contracts.EvaluationContext{"always": true}})
	if err == nil {
		t.Fatal("expected an error for an empty request id")
	}
}

func TestPolicyEnforcementAgent_Evaluate_BuildsSignedPersistedEvent(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("test-key")
	if err != nil {
		t.Fatalf("signer setup: %v", err)
	}
	sink := facade.NewRecordingSink()
	deps := Deps{Records: sink, Telemetry: sink, Environment: "test"}
	a := NewPolicyEnforcementAgent(deps, newTestEngine(), signer, nil)

	result, err := a.Evaluate(context.Background(), Request{
		RequestID: "req-1",
		Context:   contracts.EvaluationContext{"always": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision.Outcome != contracts.OutcomeAllow {
		t.Errorf("expected allow, got %s", result.Decision.Outcome)
	}
	if result.Event.Signature == "" {
		t.Error("expected event to be signed")
	}
	if len(sink.Records) != 1 {
		t.Errorf("expected 1 persisted record, got %d", len(sink.Records))
	}
	if len(sink.Telemetry) == 0 {
		t.Errorf("expected span and event telemetry to be emitted")
	}
}

func TestPolicyEnforcementAgent_Evaluate_CacheHitSkipsEngine(t *testing.T) {
	store := cache.New(time.Minute)
	a := NewPolicyEnforcementAgent(Deps{}, newTestEngine(), nil, store)

	ctx := contracts.EvaluationContext{"always": true}
	first, err := a.Evaluate(context.Background(), Request{RequestID: "req-1", Context: ctx})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Error("expected the first call to be a cache miss")
	}

	second, err := a.Evaluate(context.Background(), Request{RequestID: "req-2", Context: ctx})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached {
		t.Error("expected the second call with identical context to hit the cache")
	}
	if second.Decision.Outcome != contracts.OutcomeAllow {
		t.Errorf("expected allow from the cached decision, got %s", second.Decision.Outcome)
	}
}

func TestPolicyEnforcementAgent_Evaluate_DenyProducesPolicyDenyOutcome(t *testing.T) {
	e := engine.New()
	e.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Priority: 100, Rules: []contracts.PolicyRule{denyRule("r1", "llm.maxTokens")}},
	})
	a := NewPolicyEnforcementAgent(Deps{}, e, nil, nil)

	result, err := a.Evaluate(context.Background(), Request{
		RequestID: "req-1",
		Context:   contracts.EvaluationContext{"llm": map[string]any{"maxTokens": 2000}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome := result.Event.Outputs["outcome"]; outcome != string(contracts.EnforcementPolicyDeny) {
		t.Errorf("expected wire outcome policy_deny, got %v", outcome)
	}
	if allowed := result.Event.Outputs["allowed"]; allowed != false {
		t.Errorf("expected allowed=false, got %v", allowed)
	}
}

func TestPolicyEnforcementAgent_Evaluate_AllowProducesPolicyAllowOutcome(t *testing.T) {
	a := NewPolicyEnforcementAgent(Deps{}, newTestEngine(), nil, nil)

	result, err := a.Evaluate(context.Background(), Request{
		RequestID: "req-1",
		Context:   contracts.EvaluationContext{"always": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome := result.Event.Outputs["outcome"]; outcome != string(contracts.EnforcementPolicyAllow) {
		t.Errorf("expected wire outcome policy_allow, got %v", outcome)
	}
	if allowed := result.Event.Outputs["allowed"]; allowed != true {
		t.Errorf("expected allowed=true, got %v", allowed)
	}
}

func TestPolicyEnforcementAgent_Evaluate_ApprovalGateRuleProducesApprovalRequired(t *testing.T) {
	gateRule := allowRule("r1")
	gateRule.ConstraintType = contracts.ConstraintApprovalGate
	e := engine.New()
	e.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Priority: 1, Rules: []contracts.PolicyRule{gateRule}},
	})
	a := NewPolicyEnforcementAgent(Deps{}, e, nil, nil)

	result, err := a.Evaluate(context.Background(), Request{
		RequestID: "req-1",
		Context:   contracts.EvaluationContext{"always": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome := result.Event.Outputs["outcome"]; outcome != string(contracts.EnforcementApprovalRequired) {
		t.Errorf("expected wire outcome approval_required, got %v", outcome)
	}
	if allowed := result.Event.Outputs["allowed"]; allowed != false {
		t.Errorf("expected allowed=false for a pending approval gate, got %v", allowed)
	}
}

func TestPolicyEnforcementAgent_Evaluate_DryRunBypassesCache(t *testing.T) {
	store := cache.New(time.Minute)
	a := NewPolicyEnforcementAgent(Deps{}, newTestEngine(), nil, store)

	ctx := contracts.EvaluationContext{"always": true}
	_, err := a.Evaluate(context.Background(), Request{RequestID: "req-1", Context: ctx, DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Size() != 0 {
		t.Errorf("expected dry-run evaluation to never populate the cache, got size %d", store.Size())
	}
}
