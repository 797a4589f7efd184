package canonicalize_test

import (
	"testing"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/canonicalize"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

func TestCanonicalHash_EvaluationContextIgnoresFieldOrder(t *testing.T) {
	a := contracts.EvaluationContext{
		"llm": map[string]any{"provider": "openai", "model": "gpt-4", "maxTokens": 2000},
		"user": map[string]any{"id": "u1", "role": "admin"},
	}
	b := contracts.EvaluationContext{
		"user": map[string]any{"role": "admin", "id": "u1"},
		"llm":  map[string]any{"maxTokens": 2000, "model": "gpt-4", "provider": "openai"},
	}

	ha, err := canonicalize.CanonicalHash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := canonicalize.CanonicalHash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Errorf("expected field-order-independent hashes to match, got %s != %s", ha, hb)
	}
}

func TestCanonicalHash_DecisionEventDeterministic(t *testing.T) {
	event := &contracts.DecisionEvent{
		EventID:      "evt-1",
		AgentID:      "policy-enforcement-agent",
		AgentVersion: "1.0.0",
		DecisionType: contracts.DecisionTypePolicyEnforcement,
		InputsHash:   "abc123",
		Outputs: map[string]any{
			"outcome": string(contracts.EnforcementPolicyDeny),
			"allowed": false,
			"reason":  "token limit exceeded",
		},
		Confidence: 0.9,
		ExecutionRef: contracts.ExecutionRef{
			RequestID:   "req-1",
			TraceID:     "trace-1",
			SpanID:      "span-1",
			Environment: "test",
		},
		Timestamp: time.Unix(0, 0).UTC(),
	}

	h1, err := canonicalize.CanonicalHash(event)
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, err := canonicalize.CanonicalHash(event)
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected repeat hashing of the same DecisionEvent to match, got %s != %s", h1, h2)
	}

	event.Outputs["reason"] = "a different reason"
	h3, err := canonicalize.CanonicalHash(event)
	if err != nil {
		t.Fatalf("hash 3: %v", err)
	}
	if h3 == h1 {
		t.Error("expected a changed output field to change the canonical hash")
	}
}
