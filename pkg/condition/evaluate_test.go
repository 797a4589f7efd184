package condition

import (
	"testing"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

func leaf(field string, op contracts.Operator, value any) contracts.Condition {
	return contracts.Condition{Kind: contracts.ConditionLeaf, Field: field, Operator: op, Value: value}
}

func TestEvaluate_Equals_NumericPromotion(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"maxTokens": 1000}}
	if !Evaluate(leaf("llm.maxTokens", contracts.OpEquals, 1000.0), ctx) {
		t.Error("expected int/float64 equals to match")
	}
}

func TestEvaluate_NotEquals_UndefinedIsFalse(t *testing.T) {
	ctx := contracts.EvaluationContext{}
	if Evaluate(leaf("missing.field", contracts.OpNotEquals, "x"), ctx) {
		t.Error("not_equals against an undefined field should be false, not true")
	}
}

func TestEvaluate_GreaterThan_NonNumericIsFalse(t *testing.T) {
	ctx := contracts.EvaluationContext{"user": map[string]any{"role": "admin"}}
	if Evaluate(leaf("user.role", contracts.OpGreaterThan, 5), ctx) {
		t.Error("greater_than against a non-numeric value should be false")
	}
}

func TestEvaluate_Contains_StringAndSequence(t *testing.T) {
	ctx := contracts.EvaluationContext{
		"request": map[string]any{
			"path":  "/api/v1/resource",
			"scopes": []any{"read", "write"},
		},
	}
	if !Evaluate(leaf("request.path", contracts.OpContains, "v1"), ctx) {
		t.Error("expected substring contains to match")
	}
	if !Evaluate(leaf("request.scopes", contracts.OpContains, "write"), ctx) {
		t.Error("expected sequence contains to match")
	}
	if Evaluate(leaf("request.scopes", contracts.OpContains, "admin"), ctx) {
		t.Error("expected sequence contains to miss absent element")
	}
}

func TestEvaluate_InNotIn(t *testing.T) {
	ctx := contracts.EvaluationContext{"user": map[string]any{"role": "viewer"}}
	allowed := []any{"admin", "editor"}
	if Evaluate(leaf("user.role", contracts.OpIn, allowed), ctx) {
		t.Error("viewer should not be in admin/editor")
	}
	if !Evaluate(leaf("user.role", contracts.OpNotIn, allowed), ctx) {
		t.Error("viewer should satisfy not_in admin/editor")
	}
}

func TestEvaluate_Matches_InvalidRegexIsFalse(t *testing.T) {
	ctx := contracts.EvaluationContext{"request": map[string]any{"path": "/a/b"}}
	if Evaluate(leaf("request.path", contracts.OpMatches, "["), ctx) {
		t.Error("an invalid regex must evaluate to false, not error out")
	}
}

func TestEvaluate_ExistsNotExists(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"model": "gpt-4"}}
	if !Evaluate(leaf("llm.model", contracts.OpExists, nil), ctx) {
		t.Error("llm.model should exist")
	}
	if Evaluate(leaf("llm.temperature", contracts.OpExists, nil), ctx) {
		t.Error("llm.temperature should not exist")
	}
	if !Evaluate(leaf("llm.temperature", contracts.OpNotExists, nil), ctx) {
		t.Error("not_exists should hold for a missing field")
	}
}

func TestEvaluate_StartsEndsWith(t *testing.T) {
	ctx := contracts.EvaluationContext{"request": map[string]any{"path": "/api/v1/resource"}}
	if !Evaluate(leaf("request.path", contracts.OpStartsWith, "/api"), ctx) {
		t.Error("expected starts_with match")
	}
	if !Evaluate(leaf("request.path", contracts.OpEndsWith, "resource"), ctx) {
		t.Error("expected ends_with match")
	}
}

func TestEvaluate_Composite_AllShortCircuits(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"maxTokens": 500}}
	cond := contracts.Condition{
		Kind:       contracts.ConditionComposite,
		Combinator: contracts.CombinatorAll,
		Children: []contracts.Condition{
			leaf("llm.maxTokens", contracts.OpGreaterThan, 1000),
			leaf("llm.maxTokens", contracts.OpExists, nil),
		},
	}
	if Evaluate(cond, ctx) {
		t.Error("all should fail when the first child fails")
	}
}

func TestEvaluate_Composite_Any(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"maxTokens": 500}}
	cond := contracts.Condition{
		Kind:       contracts.ConditionComposite,
		Combinator: contracts.CombinatorAny,
		Children: []contracts.Condition{
			leaf("llm.maxTokens", contracts.OpGreaterThan, 1000),
			leaf("llm.maxTokens", contracts.OpLessThan, 1000),
		},
	}
	if !Evaluate(cond, ctx) {
		t.Error("any should succeed when one child succeeds")
	}
}

func TestEvaluate_Composite_Not(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"maxTokens": 500}}
	cond := contracts.Condition{
		Kind:       contracts.ConditionComposite,
		Combinator: contracts.CombinatorNot,
		Children:   []contracts.Condition{leaf("llm.maxTokens", contracts.OpGreaterThan, 1000)},
	}
	if !Evaluate(cond, ctx) {
		t.Error("not should negate a false child to true")
	}
}

func TestEvaluate_Composite_NotWithWrongChildCountIsFalse(t *testing.T) {
	cond := contracts.Condition{
		Kind:       contracts.ConditionComposite,
		Combinator: contracts.CombinatorNot,
		Children: []contracts.Condition{
			leaf("a", contracts.OpExists, nil),
			leaf("b", contracts.OpExists, nil),
		},
	}
	if Evaluate(cond, contracts.EvaluationContext{}) {
		t.Error("malformed not (!=1 child) should evaluate to false")
	}
}

func TestEvaluate_CEL(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"maxTokens": int64(2048)}}
	cond := leaf("", contracts.OpCEL, "llm.maxTokens > 1000")
	if !Evaluate(cond, ctx) {
		t.Error("expected cel expression to evaluate true")
	}
}

func TestEvaluate_CEL_NonBoolIsFalse(t *testing.T) {
	ctx := contracts.EvaluationContext{"llm": map[string]any{"maxTokens": int64(2048)}}
	cond := leaf("", contracts.OpCEL, "llm.maxTokens")
	if Evaluate(cond, ctx) {
		t.Error("a non-bool cel result should evaluate to false")
	}
}
