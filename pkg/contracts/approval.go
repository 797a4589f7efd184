package contracts

import "context"

// ApprovalMatch is the rule-level match clause: a list of conditions
// combined by the given combinator (all/any), evaluated against an action
// context by the same evaluator the rule/policy engine uses.
type ApprovalMatch struct {
	Combinator Combinator  `json:"combinator" yaml:"combinator"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
}

// AutoApproveConditions are checked in a fixed, order-sensitive sequence;
// the first one that succeeds auto-approves the action.
type AutoApproveConditions struct {
	AllowedRoles         []string          `json:"allowed_roles,omitempty" yaml:"allowed_roles,omitempty"`
	AllowedResourceTypes []string          `json:"allowed_resource_types,omitempty" yaml:"allowed_resource_types,omitempty"`
	AllowedOperations    []string          `json:"allowed_operations,omitempty" yaml:"allowed_operations,omitempty"`
	MaxValue             *float64          `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	TimeRestrictions     *TimeRestrictions `json:"time_restrictions,omitempty" yaml:"time_restrictions,omitempty"`
}

// TimeRestrictions bounds auto-approval to a business-hours window,
// evaluated in the configured timezone (see pkg/config, §9 Open Question iii).
type TimeRestrictions struct {
	StartHour int   `json:"start_hour" yaml:"start_hour"` // 0-23, inclusive
	EndHour   int   `json:"end_hour" yaml:"end_hour"`     // 0-23, exclusive
	Weekdays  []int `json:"weekdays" yaml:"weekdays"`      // 0=Sunday .. 6=Saturday
}

// EscalationLevel is one rung of an escalation ladder: if a step times out,
// control passes to the next level's approvers.
type EscalationLevel struct {
	Level          int      `json:"level" yaml:"level"`
	ApproverPool   []string `json:"approver_pool" yaml:"approver_pool"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ApprovalRule configures one routing rule loaded from configuration.
type ApprovalRule struct {
	ID                  string                  `json:"id" yaml:"id"`
	Name                string                  `json:"name" yaml:"name"`
	Match               ApprovalMatch           `json:"match" yaml:"match"`
	RequiredApprovers   int                     `json:"required_approvers" yaml:"required_approvers"`
	ApproverPool        []string                `json:"approver_pool" yaml:"approver_pool"`
	TimeoutSeconds      int                     `json:"timeout_seconds" yaml:"timeout_seconds"`
	EscalationEnabled   bool                    `json:"escalation_enabled" yaml:"escalation_enabled"`
	Escalation          []EscalationLevel       `json:"escalation,omitempty" yaml:"escalation,omitempty"`
	AutoApproveConditions *AutoApproveConditions `json:"auto_approve_conditions,omitempty" yaml:"auto_approve_conditions,omitempty"`
	Priority            int                     `json:"priority" yaml:"priority"`
	Active              bool                    `json:"active" yaml:"active"`
}

// ApprovalStepType is the closed set of step shapes in an approval chain.
type ApprovalStepType string

const (
	StepParallel ApprovalStepType = "parallel"
	StepAnyOf    ApprovalStepType = "any_of"
)

// ApprovalStep is one stage of an approval chain, contributed by a matched
// ApprovalRule.
type ApprovalStep struct {
	RuleID              string           `json:"rule_id"`
	StepType            ApprovalStepType `json:"step_type"`
	Approvers           []string         `json:"approvers"`
	RequiredApprovers   int              `json:"required_approvers"`
	TimeoutSeconds      int              `json:"timeout_seconds"`
	EscalationOnTimeout bool             `json:"escalation_on_timeout"`
}

// MergedEscalationLevel is the escalation ladder after merging contributions
// from every matched rule, by level.
type MergedEscalationLevel struct {
	Level          int      `json:"level"`
	Approvers      []string `json:"approvers"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// ApprovalOutcome is the closed set of approval routing outcomes.
type ApprovalOutcome string

const (
	ApprovalOutcomeRequired          ApprovalOutcome = "approval_required"
	ApprovalOutcomeAutoApproved      ApprovalOutcome = "auto_approved"
	ApprovalOutcomeEscalationRequired ApprovalOutcome = "escalation_required"
	ApprovalOutcomeBypassed          ApprovalOutcome = "approval_bypassed"
	ApprovalOutcomePending           ApprovalOutcome = "pending_approval"
)

// ApprovalChain is the sequence of steps (plus merged escalation ladder)
// that must complete before a policy-gated action may proceed.
type ApprovalChain struct {
	Steps               []ApprovalStep          `json:"steps"`
	EscalationLadder     []MergedEscalationLevel `json:"escalation_ladder,omitempty"`
	TotalTimeoutSeconds  int                     `json:"total_timeout_seconds"`
}

// ApprovalRoutingOutput is the full result of routing an action through the
// approval router.
type ApprovalRoutingOutput struct {
	Outcome               ApprovalOutcome `json:"outcome"`
	Chain                 ApprovalChain   `json:"chain"`
	RulesMatched          []string        `json:"rules_matched"`
	JustificationRequired bool            `json:"justification_required"`
	RiskScore             float64         `json:"risk_score"`
}

// ApprovalStatus is the lifecycle state of an in-flight approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// ApprovalStateLookup is the contract for `approval_request_id → status |
// null` that spec.md §9 Open Question (ii) calls out: the router's own
// getStatus is a placeholder in the source system; the real implementation
// is an external approval-state collaborator the host wires in.
type ApprovalStateLookup interface {
	GetStatus(ctx context.Context, approvalRequestID string) (*ApprovalStatus, error)
}
