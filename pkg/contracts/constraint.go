package contracts

// ConstraintType is the closed set of constraint kinds an AppliedConstraint
// may carry, reflecting the rule that produced it.
type ConstraintType string

const (
	ConstraintPolicyRule    ConstraintType = "policy_rule"
	ConstraintApprovalGate  ConstraintType = "approval_gate"
	ConstraintRateLimit     ConstraintType = "rate_limit"
	ConstraintBudgetLimit   ConstraintType = "budget_limit"
	ConstraintSecurityRule  ConstraintType = "security_rule"
	ConstraintGovernanceRule ConstraintType = "governance_rule"
)

// ConstraintSeverity is the closed set of AppliedConstraint severities,
// derived from the action that produced the constraint.
type ConstraintSeverity string

const (
	SeverityInfo     ConstraintSeverity = "info"
	SeverityWarning  ConstraintSeverity = "warning"
	SeverityError    ConstraintSeverity = "error"
	SeverityCritical ConstraintSeverity = "critical"
)

// ConstraintScope is the closed set of scopes a constraint narrows to. A
// constraint's scope is always narrower than or equal to its containing
// policy's scope.
type ConstraintScope string

const (
	ScopeGlobal    ConstraintScope = "global"
	ScopeNamespace ConstraintScope = "namespace"
	ScopeProject   ConstraintScope = "project"
	ScopeUser      ConstraintScope = "user"
)

// AppliedConstraint is a matched rule reified as a satisfiable/violable item.
type AppliedConstraint struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Type      ConstraintType     `json:"type"`
	Severity  ConstraintSeverity `json:"severity"`
	Scope     ConstraintScope    `json:"scope"`
	Satisfied bool               `json:"satisfied"`
	Reason    string             `json:"reason,omitempty"`
}

// ConstraintConflictType is the closed set of conflict kinds the solver can
// report between a pair of constraints.
type ConstraintConflictType string

const (
	ConflictMutualExclusion ConstraintConflictType = "mutual_exclusion"
	ConflictPriorityConflict ConstraintConflictType = "priority_conflict"
	ConflictScopeOverlap    ConstraintConflictType = "scope_overlap"
	ConflictTemporalConflict ConstraintConflictType = "temporal_conflict"
	ConflictResourceContention ConstraintConflictType = "resource_contention"
)

// ResolutionStrategy is the closed set of strategies the solver can apply
// to resolve a conflict.
type ResolutionStrategy string

const (
	StrategyMostRestrictive ResolutionStrategy = "most_restrictive"
	StrategyPriorityBased   ResolutionStrategy = "priority_based"
	StrategyScopeNarrowing  ResolutionStrategy = "scope_narrowing"
	StrategyManualRequired  ResolutionStrategy = "manual_required"
)

// ConstraintConflict records a detected conflict between two constraints.
// When Resolved, Strategy names what resolved it; when unresolved, both
// constraint ids are treated as "effective-removed" from the output's
// effective-constraints set.
type ConstraintConflict struct {
	ID             string                 `json:"id"`
	Type           ConstraintConflictType `json:"type"`
	ConstraintIDs  [2]string              `json:"constraint_ids"`
	Severity       ConstraintSeverity     `json:"severity"`
	Resolved       bool                   `json:"resolved"`
	Strategy       ResolutionStrategy     `json:"strategy,omitempty"`
}

// ConstraintOutcome is the closed set of constraint solver outcomes.
type ConstraintOutcome string

const (
	OutcomeNoConstraints       ConstraintOutcome = "no_constraints"
	OutcomeConstraintsSatisfied ConstraintOutcome = "constraints_satisfied"
	OutcomeConstraintsResolved  ConstraintOutcome = "constraints_resolved"
	OutcomePartialResolution    ConstraintOutcome = "partial_resolution"
	OutcomeConstraintsViolated  ConstraintOutcome = "constraints_violated"
)

// ConstraintSolverOutput is the full result of resolving a context's
// applicable constraints.
type ConstraintSolverOutput struct {
	Constraints          []AppliedConstraint   `json:"constraints"`
	Conflicts            []ConstraintConflict  `json:"conflicts"`
	Strategy             ResolutionStrategy    `json:"strategy,omitempty"`
	EffectiveConstraints []AppliedConstraint   `json:"effective_constraints"`
	ConflictsResolved    int                   `json:"conflicts_resolved"`
	Outcome              ConstraintOutcome     `json:"outcome"`
}
