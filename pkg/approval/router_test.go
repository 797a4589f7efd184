package approval

import (
	"testing"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

func matchCond(field string, op contracts.Operator, value any) contracts.Condition {
	return contracts.Condition{Kind: contracts.ConditionLeaf, Field: field, Operator: op, Value: value}
}

func TestRoute_NoRulesMatchedBypasses(t *testing.T) {
	r := New(nil)
	r.Reload([]contracts.ApprovalRule{
		{ID: "rule-1", Active: true, Match: contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "delete")}}},
	})

	out := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "read"}})
	if out.Outcome != contracts.ApprovalOutcomeBypassed {
		t.Errorf("expected approval_bypassed, got %s", out.Outcome)
	}
}

func TestRoute_AutoApprovedByRole(t *testing.T) {
	r := New(nil)
	r.Reload([]contracts.ApprovalRule{
		{
			ID: "rule-1", Active: true, Priority: 10,
			Match:                  contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "update")}},
			AutoApproveConditions: &contracts.AutoApproveConditions{AllowedRoles: []string{"admin"}},
		},
	})

	out := r.Route(Request{
		ActionContext: contracts.EvaluationContext{"operation": "update"},
		Requester:     Requester{ID: "u1", Roles: []string{"admin"}},
	})
	if out.Outcome != contracts.ApprovalOutcomeAutoApproved {
		t.Errorf("expected auto_approved, got %s", out.Outcome)
	}
	if len(out.Chain.Steps) != 0 {
		t.Errorf("expected an empty chain on auto-approval")
	}
}

func TestRoute_AutoApproveMaxValue(t *testing.T) {
	max := 100.0
	r := New(nil)
	r.Reload([]contracts.ApprovalRule{
		{
			ID: "rule-1", Active: true,
			Match:                 contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "create")}},
			AutoApproveConditions: &contracts.AutoApproveConditions{MaxValue: &max},
		},
	})

	over := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "create", "details": map[string]any{"value": 500.0}}})
	if over.Outcome == contracts.ApprovalOutcomeAutoApproved {
		t.Error("expected value over max_value to not auto-approve")
	}

	under := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "create", "details": map[string]any{"value": 50.0}}})
	if under.Outcome != contracts.ApprovalOutcomeAutoApproved {
		t.Errorf("expected value under max_value to auto-approve, got %s", under.Outcome)
	}
}

func TestRoute_BuildsChainWithParallelAndAnyOf(t *testing.T) {
	r := New(nil)
	r.Reload([]contracts.ApprovalRule{
		{
			ID: "rule-1", Active: true, Priority: 5,
			Match:             contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "delete")}},
			ApproverPool:      []string{"a1", "a2"},
			RequiredApprovers: 2,
			TimeoutSeconds:    60,
		},
		{
			ID: "rule-2", Active: true, Priority: 3,
			Match:             contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "delete")}},
			ApproverPool:      []string{"b1"},
			RequiredApprovers: 1,
			TimeoutSeconds:    30,
		},
	})

	out := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "delete"}})
	if out.Outcome != contracts.ApprovalOutcomeRequired {
		t.Fatalf("expected approval_required, got %s", out.Outcome)
	}
	if len(out.Chain.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(out.Chain.Steps))
	}
	if out.Chain.Steps[0].StepType != contracts.StepParallel {
		t.Errorf("expected rule-1 (priority 5, sorted first) to be parallel, got %s", out.Chain.Steps[0].StepType)
	}
	if out.Chain.Steps[1].StepType != contracts.StepAnyOf {
		t.Errorf("expected rule-2 to be any_of, got %s", out.Chain.Steps[1].StepType)
	}
	if out.Chain.TotalTimeoutSeconds != 90 {
		t.Errorf("expected total timeout 90, got %d", out.Chain.TotalTimeoutSeconds)
	}
}

func TestRoute_EscalationRequiredOnCriticalPriority(t *testing.T) {
	r := New(nil)
	r.Reload([]contracts.ApprovalRule{
		{
			ID: "rule-1", Active: true, Priority: 50,
			Match:        contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "delete")}},
			ApproverPool: []string{"a1"},
		},
	})

	out := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "delete"}, Priority: "critical"})
	if out.Outcome != contracts.ApprovalOutcomeEscalationRequired {
		t.Errorf("expected escalation_required, got %s", out.Outcome)
	}
}

func TestRoute_JustificationRequiredAtThreshold(t *testing.T) {
	r := New(nil)
	r.Reload([]contracts.ApprovalRule{
		{
			ID: "rule-1", Active: true, Priority: 80,
			Match:        contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "delete")}},
			ApproverPool: []string{"a1"},
		},
	})

	out := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "delete"}})
	if !out.JustificationRequired {
		t.Error("expected justification_required at priority 80")
	}
}

func TestRoute_EscalationLadderMergedByLevel(t *testing.T) {
	r := New(nil)
	r.Reload([]contracts.ApprovalRule{
		{
			ID: "rule-1", Active: true, Priority: 5, EscalationEnabled: true,
			Match:        contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "delete")}},
			ApproverPool: []string{"a1"},
			Escalation:   []contracts.EscalationLevel{{Level: 1, ApproverPool: []string{"mgr1"}, TimeoutSeconds: 120}},
		},
		{
			ID: "rule-2", Active: true, Priority: 4, EscalationEnabled: true,
			Match:        contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "delete")}},
			ApproverPool: []string{"b1"},
			Escalation:   []contracts.EscalationLevel{{Level: 1, ApproverPool: []string{"mgr2"}, TimeoutSeconds: 60}},
		},
	})

	out := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "delete"}})
	if len(out.Chain.EscalationLadder) != 1 {
		t.Fatalf("expected one merged escalation level, got %d", len(out.Chain.EscalationLadder))
	}
	level := out.Chain.EscalationLadder[0]
	if len(level.Approvers) != 2 {
		t.Errorf("expected union of approvers at level 1, got %v", level.Approvers)
	}
	if level.TimeoutSeconds != 60 {
		t.Errorf("expected min timeout across contributors (60), got %d", level.TimeoutSeconds)
	}
}

func TestRoute_TimeRestrictions(t *testing.T) {
	loc := time.UTC
	r := New(loc)
	fixed := time.Date(2026, 7, 31, 10, 0, 0, 0, loc) // Friday
	r.WithClock(func() time.Time { return fixed })
	r.Reload([]contracts.ApprovalRule{
		{
			ID: "rule-1", Active: true,
			Match: contracts.ApprovalMatch{Combinator: contracts.CombinatorAll, Conditions: []contracts.Condition{matchCond("operation", contracts.OpEquals, "read")}},
			AutoApproveConditions: &contracts.AutoApproveConditions{
				TimeRestrictions: &contracts.TimeRestrictions{StartHour: 9, EndHour: 17, Weekdays: []int{1, 2, 3, 4, 5}},
			},
		},
	})

	out := r.Route(Request{ActionContext: contracts.EvaluationContext{"operation": "read"}})
	if out.Outcome != contracts.ApprovalOutcomeAutoApproved {
		t.Errorf("expected auto_approved within business hours, got %s", out.Outcome)
	}
}
