package policy

import (
	"testing"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

func basePolicy() *contracts.Policy {
	return &contracts.Policy{
		ID:        "pol-1",
		Name:      "test",
		Version:   "1.0.0",
		Namespace: "default",
		Status:    contracts.PolicyActive,
		Rules: []contracts.PolicyRule{
			{ID: "r1", Action: contracts.Action{Decision: contracts.OutcomeAllow}},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	ok, violations := Validate(basePolicy())
	if !ok {
		t.Fatalf("expected valid policy, got violations: %+v", violations)
	}
}

func TestValidate_InvalidSemver(t *testing.T) {
	p := basePolicy()
	p.Version = "not-a-version"
	ok, violations := Validate(p)
	if ok {
		t.Fatal("expected invalid")
	}
	assertHasCode(t, violations, ViolationInvalidVersion)
}

func TestValidate_NoRules(t *testing.T) {
	p := basePolicy()
	p.Rules = nil
	ok, violations := Validate(p)
	if ok {
		t.Fatal("expected invalid")
	}
	assertHasCode(t, violations, ViolationNoRules)
}

func TestValidate_ModifyRequiresModifications(t *testing.T) {
	p := basePolicy()
	p.Rules[0].Action = contracts.Action{Decision: contracts.OutcomeModify}
	ok, violations := Validate(p)
	if ok {
		t.Fatal("expected invalid")
	}
	assertHasCode(t, violations, ViolationInvalidAction)
}

func TestValidate_DenyRequiresReason(t *testing.T) {
	p := basePolicy()
	p.Rules[0].Action = contracts.Action{Decision: contracts.OutcomeDeny}
	ok, violations := Validate(p)
	if ok {
		t.Fatal("expected invalid")
	}
	assertHasCode(t, violations, ViolationInvalidAction)
}

func assertHasCode(t *testing.T, violations []Violation, code ViolationCode) {
	t.Helper()
	for _, v := range violations {
		if v.Code == code {
			return
		}
	}
	t.Errorf("expected a violation with code %s, got %+v", code, violations)
}
