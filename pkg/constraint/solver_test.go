package constraint

import (
	"testing"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/engine"
)

func rule(id string, decision contracts.Outcome, critical bool) contracts.PolicyRule {
	return contracts.PolicyRule{
		ID:                 id,
		Enabled:            true,
		Condition:          contracts.Condition{Kind: contracts.ConditionLeaf, Field: "always", Operator: contracts.OpExists},
		Action:             contracts.Action{Decision: decision, Reason: "r-" + id},
		ConstraintCritical: critical,
	}
}

func TestResolve_NoConstraints(t *testing.T) {
	eng := engine.New()
	s := New(eng)
	out := s.Resolve(contracts.EvaluationContext{})
	if out.Outcome != contracts.OutcomeNoConstraints {
		t.Errorf("expected no_constraints, got %s", out.Outcome)
	}
}

func TestResolve_AllSatisfiedNoConflict(t *testing.T) {
	eng := engine.New()
	eng.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{rule("r1", contracts.OutcomeAllow, false)}},
	})
	s := New(eng)
	out := s.Resolve(contracts.EvaluationContext{"always": true})
	if out.Outcome != contracts.OutcomeConstraintsSatisfied {
		t.Errorf("expected constraints_satisfied, got %s", out.Outcome)
	}
	if len(out.EffectiveConstraints) != 1 {
		t.Errorf("expected 1 effective constraint, got %d", len(out.EffectiveConstraints))
	}
}

func TestResolve_PriorityConflictFromMixedSatisfaction(t *testing.T) {
	eng := engine.New()
	eng.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{rule("r1", contracts.OutcomeAllow, false)}},
		{ID: "p2", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{rule("r2", contracts.OutcomeDeny, false)}},
	})
	s := New(eng)
	out := s.Resolve(contracts.EvaluationContext{"always": true})

	found := false
	for _, c := range out.Conflicts {
		if c.Type == contracts.ConflictPriorityConflict {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a priority_conflict, got %+v", out.Conflicts)
	}
	if out.Strategy != contracts.StrategyPriorityBased {
		t.Errorf("expected priority_based strategy, got %s", out.Strategy)
	}
	if out.Outcome != contracts.OutcomeConstraintsViolated {
		t.Errorf("expected constraints_violated (a deny constraint is present, unsatisfied), got %s", out.Outcome)
	}
}

func TestResolve_CriticalSeverityForcesMostRestrictive(t *testing.T) {
	eng := engine.New()
	eng.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{rule("r1", contracts.OutcomeAllow, true)}},
		{ID: "p2", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{rule("r2", contracts.OutcomeDeny, false)}},
	})
	s := New(eng)
	out := s.Resolve(contracts.EvaluationContext{"always": true})
	if out.Strategy != contracts.StrategyMostRestrictive {
		t.Errorf("expected most_restrictive due to critical severity, got %s", out.Strategy)
	}
}

// TestResolve_CriticalVsWarningResolvesNotViolates covers the
// critical/warning, one-satisfied-one-not scenario: most_restrictive lets
// the critical constraint override the warning one, so the outcome is
// constraints_resolved rather than constraints_violated even though one
// constraint's own Satisfied bit is false.
func TestResolve_CriticalVsWarningResolvesNotViolates(t *testing.T) {
	eng := engine.New()
	eng.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{rule("r1", contracts.OutcomeAllow, true)}},
		{ID: "p2", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{rule("r2", contracts.OutcomeDeny, false)}},
	})
	s := New(eng)
	out := s.Resolve(contracts.EvaluationContext{"always": true})

	if out.Strategy != contracts.StrategyMostRestrictive {
		t.Fatalf("expected most_restrictive strategy, got %s", out.Strategy)
	}
	found := false
	for _, c := range out.Conflicts {
		if c.Type == contracts.ConflictPriorityConflict {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a priority_conflict, got %+v", out.Conflicts)
	}
	if out.ConflictsResolved != 1 {
		t.Errorf("expected 1 resolved conflict, got %d", out.ConflictsResolved)
	}
	if out.Outcome != contracts.OutcomeConstraintsResolved {
		t.Errorf("expected constraints_resolved, got %s", out.Outcome)
	}
}

func TestResolve_ScopeOverlap(t *testing.T) {
	r1 := rule("r1", contracts.OutcomeAllow, false)
	r1.ConstraintType = contracts.ConstraintRateLimit
	r1.ConstraintScope = contracts.ScopeProject
	r2 := rule("r2", contracts.OutcomeAllow, false)
	r2.ConstraintType = contracts.ConstraintRateLimit
	r2.ConstraintScope = contracts.ScopeProject

	eng := engine.New()
	eng.Reload([]contracts.Policy{
		{ID: "p1", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{r1}},
		{ID: "p2", Status: contracts.PolicyActive, Rules: []contracts.PolicyRule{r2}},
	})
	s := New(eng)
	out := s.Resolve(contracts.EvaluationContext{"always": true})

	found := false
	for _, c := range out.Conflicts {
		if c.Type == contracts.ConflictScopeOverlap {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a scope_overlap conflict, got %+v", out.Conflicts)
	}
	if out.Strategy != contracts.StrategyScopeNarrowing {
		t.Errorf("expected scope_narrowing strategy, got %s", out.Strategy)
	}
}
