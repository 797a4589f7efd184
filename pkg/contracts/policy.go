// Package contracts holds the shared data model evaluated and audited by
// the policy engine: policies and their rules, the condition tree, the
// evaluation context, decisions, decision events, constraints, approval
// chains, audit entries, and execution spans. Every other package imports
// from here rather than defining its own copies.
package contracts

import "time"

// PolicyStatus is the lifecycle state of a Policy.
type PolicyStatus string

const (
	PolicyDraft      PolicyStatus = "draft"
	PolicyActive     PolicyStatus = "active"
	PolicyDeprecated PolicyStatus = "deprecated"
	PolicyArchived   PolicyStatus = "archived"
)

// Policy is a named, versioned bundle of rules governing permissible
// actions in a namespace.
type Policy struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name"`
	Description     string       `json:"description,omitempty" yaml:"description,omitempty"`
	Version         string       `json:"version" yaml:"version"`
	Namespace       string       `json:"namespace" yaml:"namespace"`
	Tags            []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Priority        int          `json:"priority" yaml:"priority"`
	Status          PolicyStatus `json:"status" yaml:"status"`
	Rules           []PolicyRule `json:"rules" yaml:"rules"`
	CreatedBy       string       `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	InternalVersion int          `json:"internal_version" yaml:"internal_version,omitempty"`
	CreatedAt       time.Time    `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at" yaml:"updated_at,omitempty"`
}

// PolicyRule is a condition-action pair: the action fires when the
// condition evaluates true against an EvaluationContext. ConstraintType and
// ConstraintScope tag how the constraint solver (pkg/constraint) reifies a
// match of this rule into an AppliedConstraint; both are optional and
// default to ConstraintPolicyRule / ScopeGlobal when left unset, since most
// rules are plain policy rules scoped globally.
type PolicyRule struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled         bool            `json:"enabled" yaml:"enabled"`
	Condition       Condition       `json:"condition" yaml:"condition"`
	Action          Action          `json:"action" yaml:"action"`
	ConstraintType  ConstraintType  `json:"constraint_type,omitempty" yaml:"constraint_type,omitempty"`
	ConstraintScope ConstraintScope `json:"constraint_scope,omitempty" yaml:"constraint_scope,omitempty"`
	// ConstraintCritical escalates this rule's reified AppliedConstraint to
	// SeverityCritical regardless of its action's ordinary severity mapping.
	// The action-derived mapping (allow/warn/modify/deny) never itself
	// produces critical; this is how a budget_limit or security_rule
	// constraint is flagged as a hard ceiling the solver must treat with
	// most_restrictive resolution.
	ConstraintCritical bool `json:"constraint_critical,omitempty" yaml:"constraint_critical,omitempty"`
}

// Clone returns a deep-enough copy of the policy for snapshot publication
// (rule slice and tag slice are copied; scalar fields are copied by value).
func (p Policy) Clone() Policy {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Rules != nil {
		out.Rules = append([]PolicyRule(nil), p.Rules...)
	}
	return out
}
