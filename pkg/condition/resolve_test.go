package condition

import (
	"testing"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

func TestResolve_NestedPath(t *testing.T) {
	ctx := contracts.EvaluationContext{
		"llm": map[string]any{
			"model":     "gpt-4",
			"maxTokens": 2048,
		},
	}

	if got := Resolve(ctx, "llm.model"); got != "gpt-4" {
		t.Errorf("expected gpt-4, got %v", got)
	}
	if got := Resolve(ctx, "llm.maxTokens"); got != 2048 {
		t.Errorf("expected 2048, got %v", got)
	}
}

func TestResolve_MissingPathYieldsUndefined(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"model": "gpt-4"}}

	if got := Resolve(ctx, "llm.temperature"); got != Undefined {
		t.Errorf("expected Undefined, got %v", got)
	}
	if got := Resolve(ctx, "user.role"); got != Undefined {
		t.Errorf("expected Undefined, got %v", got)
	}
}

func TestResolve_DescendIntoNonMapping(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": "not-a-map"}

	if got := Resolve(ctx, "llm.model"); got != Undefined {
		t.Errorf("expected Undefined when descending past a scalar, got %v", got)
	}
}

func TestResolve_EmptyPath(t *testing.T) {
	ctx := contracts.EvaluationContext{}
	if got := Resolve(ctx, ""); got != Undefined {
		t.Errorf("expected Undefined for empty path, got %v", got)
	}
}

func TestIsDefined(t *testing.T) {
	if isDefined(Undefined) {
		t.Error("Undefined should not be defined")
	}
	if isDefined(nil) {
		t.Error("nil should not be defined")
	}
	if !isDefined(0) {
		t.Error("zero value 0 should be defined")
	}
	if !isDefined("") {
		t.Error("empty string should be defined")
	}
}
