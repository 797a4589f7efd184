// Package constraint implements the constraint solver of spec §4.5:
// reifying matched rules as AppliedConstraints, pairwise conflict
// detection, strategy selection, effective-constraint computation, and
// outcome classification.
package constraint

import (
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/engine"
)

// Solver resolves a context's applicable constraints against the rule
// engine's current policy snapshot.
type Solver struct {
	engine *engine.Engine
}

// New returns a Solver backed by eng's published policy snapshot.
func New(eng *engine.Engine) *Solver {
	return &Solver{engine: eng}
}

// Resolve runs the full constraint-solving algorithm of spec §4.5 against
// ctx: evaluate the policy set to obtain matched rules, reify them as
// constraints, detect pairwise conflicts, pick and apply a resolution
// strategy, and classify the outcome.
func (s *Solver) Resolve(ctx contracts.EvaluationContext) contracts.ConstraintSolverOutput {
	resp := s.engine.Evaluate(engine.Request{Context: ctx, Trace: false})
	constraints := reify(resp.Contributions)

	conflicts := detectConflicts(constraints)
	strategy := selectStrategy(constraints, conflicts)
	resolved := applyStrategy(conflicts, strategy)

	effective := effectiveConstraints(constraints, resolved)
	outcome := classifyOutcome(constraints, resolved)

	resolvedCount := 0
	for _, c := range resolved {
		if c.Resolved {
			resolvedCount++
		}
	}

	return contracts.ConstraintSolverOutput{
		Constraints:          constraints,
		Conflicts:            resolved,
		Strategy:             strategy,
		EffectiveConstraints: effective,
		ConflictsResolved:    resolvedCount,
		Outcome:              outcome,
	}
}

// reify converts each policy contribution into an AppliedConstraint.
// Severity follows the action that produced it (allow=info, warn=warning,
// modify=warning, deny=error); satisfied is true for every outcome except
// deny, which represents a constraint the context violated.
func reify(contributions []engine.PolicyContribution) []contracts.AppliedConstraint {
	out := make([]contracts.AppliedConstraint, 0, len(contributions))
	for _, c := range contributions {
		ctype := c.ConstraintType
		if ctype == "" {
			ctype = contracts.ConstraintPolicyRule
		}
		scope := c.ConstraintScope
		if scope == "" {
			scope = contracts.ScopeGlobal
		}
		severity := severityFor(c.Outcome)
		if c.ConstraintCritical {
			severity = contracts.SeverityCritical
		}
		out = append(out, contracts.AppliedConstraint{
			ID:        fmt.Sprintf("%s/%s", c.PolicyID, c.RuleID),
			Name:      c.RuleID,
			Type:      ctype,
			Severity:  severity,
			Scope:     scope,
			Satisfied: c.Outcome != contracts.OutcomeDeny,
			Reason:    c.Reason,
		})
	}
	return out
}

func severityFor(outcome contracts.Outcome) contracts.ConstraintSeverity {
	switch outcome {
	case contracts.OutcomeAllow:
		return contracts.SeverityInfo
	case contracts.OutcomeWarn, contracts.OutcomeModify:
		return contracts.SeverityWarning
	case contracts.OutcomeDeny:
		return contracts.SeverityError
	default:
		return contracts.SeverityInfo
	}
}

// detectConflicts runs the pairwise comparison of spec §4.5 step 2 over
// every distinct pair of constraints.
func detectConflicts(constraints []contracts.AppliedConstraint) []contracts.ConstraintConflict {
	var conflicts []contracts.ConstraintConflict
	for i := 0; i < len(constraints); i++ {
		for j := i + 1; j < len(constraints); j++ {
			a, b := constraints[i], constraints[j]
			switch {
			case a.Satisfied != b.Satisfied:
				conflicts = append(conflicts, newConflict(contracts.ConflictPriorityConflict, a, b))
			case a.Scope == b.Scope && a.Type == b.Type && a.ID != b.ID:
				conflicts = append(conflicts, newConflict(contracts.ConflictScopeOverlap, a, b))
			}
		}
	}
	return conflicts
}

func newConflict(t contracts.ConstraintConflictType, a, b contracts.AppliedConstraint) contracts.ConstraintConflict {
	return contracts.ConstraintConflict{
		ID:            fmt.Sprintf("%s:%s:%s", t, a.ID, b.ID),
		Type:          t,
		ConstraintIDs: [2]string{a.ID, b.ID},
		Severity:      higherSeverity(a.Severity, b.Severity),
	}
}

var severityRank = map[contracts.ConstraintSeverity]int{
	contracts.SeverityInfo:     0,
	contracts.SeverityWarning:  1,
	contracts.SeverityError:    2,
	contracts.SeverityCritical: 3,
}

func higherSeverity(a, b contracts.ConstraintSeverity) contracts.ConstraintSeverity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// selectStrategy picks a resolution strategy per spec §4.5 step 3.
func selectStrategy(constraints []contracts.AppliedConstraint, conflicts []contracts.ConstraintConflict) contracts.ResolutionStrategy {
	for _, c := range constraints {
		if c.Severity == contracts.SeverityCritical {
			return contracts.StrategyMostRestrictive
		}
	}
	for _, c := range conflicts {
		if c.Type == contracts.ConflictPriorityConflict {
			return contracts.StrategyPriorityBased
		}
	}
	for _, c := range conflicts {
		if c.Type == contracts.ConflictScopeOverlap {
			return contracts.StrategyScopeNarrowing
		}
	}
	return contracts.StrategyPriorityBased
}

// applyStrategy marks every conflict resolved under strategy, except when
// strategy itself is manual_required, which always leaves conflicts
// unresolved for a human to adjudicate.
func applyStrategy(conflicts []contracts.ConstraintConflict, strategy contracts.ResolutionStrategy) []contracts.ConstraintConflict {
	out := make([]contracts.ConstraintConflict, len(conflicts))
	for i, c := range conflicts {
		c.Strategy = strategy
		c.Resolved = strategy != contracts.StrategyManualRequired
		out[i] = c
	}
	return out
}

// effectiveConstraints is the input set minus the union of both endpoints
// of every unresolved conflict.
func effectiveConstraints(constraints []contracts.AppliedConstraint, conflicts []contracts.ConstraintConflict) []contracts.AppliedConstraint {
	removed := map[string]bool{}
	for _, c := range conflicts {
		if c.Resolved {
			continue
		}
		removed[c.ConstraintIDs[0]] = true
		removed[c.ConstraintIDs[1]] = true
	}

	effective := make([]contracts.AppliedConstraint, 0, len(constraints))
	for _, c := range constraints {
		if !removed[c.ID] {
			effective = append(effective, c)
		}
	}
	return effective
}

// classifyOutcome implements spec §4.5 step 6, checked in priority order.
// "All satisfied" is judged per constraint, except that a constraint on
// one side of a most_restrictive-resolved conflict counts as satisfied for
// this purpose even when its own Satisfied bit is false: most_restrictive
// fires only when a critical constraint is present, and it exists
// specifically to let that critical constraint override a lesser one, so
// the overridden side is a resolved violation, not an outstanding one.
// Conflicts resolved by priority_based or scope_narrowing carry no such
// override semantics — a priority_based resolution merely orders two
// rules that still disagree, so an unsatisfied constraint on that side
// keeps the outcome constraints_violated.
func classifyOutcome(constraints []contracts.AppliedConstraint, conflicts []contracts.ConstraintConflict) contracts.ConstraintOutcome {
	if len(constraints) == 0 {
		return contracts.OutcomeNoConstraints
	}

	anyUnresolved := false
	overriddenIDs := map[string]bool{}
	for _, c := range conflicts {
		if !c.Resolved {
			anyUnresolved = true
			continue
		}
		if c.Strategy == contracts.StrategyMostRestrictive {
			overriddenIDs[c.ConstraintIDs[0]] = true
			overriddenIDs[c.ConstraintIDs[1]] = true
		}
	}
	if anyUnresolved {
		return contracts.OutcomePartialResolution
	}

	allSatisfied := true
	for _, c := range constraints {
		if !c.Satisfied && !overriddenIDs[c.ID] {
			allSatisfied = false
			break
		}
	}

	switch {
	case allSatisfied && len(conflicts) == 0:
		return contracts.OutcomeConstraintsSatisfied
	case allSatisfied:
		return contracts.OutcomeConstraintsResolved
	default:
		return contracts.OutcomeConstraintsViolated
	}
}
