package policy

import (
	"fmt"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/versioning"
)

// Validate runs the semantic checks of spec §4.1 that the JSON Schema pass
// cannot express: non-empty essential fields, a real semver version,
// duplicate rule ids within the policy, and the modify/deny action
// invariants (modify requires non-empty modifications, deny requires a
// reason).
func Validate(p *contracts.Policy) (bool, []Violation) {
	var violations []Violation

	if p.ID == "" {
		violations = append(violations, Violation{Field: "id", Code: ViolationMissingField, Message: "id is required"})
	}
	if p.Name == "" {
		violations = append(violations, Violation{Field: "name", Code: ViolationMissingField, Message: "name is required"})
	}
	if p.Namespace == "" {
		violations = append(violations, Violation{Field: "namespace", Code: ViolationMissingField, Message: "namespace is required"})
	}

	if !versioning.Valid(p.Version) {
		violations = append(violations, Violation{
			Field:   "version",
			Code:    ViolationInvalidVersion,
			Message: fmt.Sprintf("version %q is not valid semver", p.Version),
		})
	}

	switch p.Status {
	case contracts.PolicyDraft, contracts.PolicyActive, contracts.PolicyDeprecated, contracts.PolicyArchived:
	default:
		violations = append(violations, Violation{
			Field:   "status",
			Code:    ViolationInvalidStatus,
			Message: fmt.Sprintf("unrecognized status %q", p.Status),
		})
	}

	if len(p.Rules) == 0 {
		violations = append(violations, Violation{Field: "rules", Code: ViolationNoRules, Message: "policy must have at least one rule"})
	}

	seen := make(map[string]bool, len(p.Rules))
	for i, rule := range p.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if rule.ID == "" {
			violations = append(violations, Violation{Field: field + ".id", Code: ViolationMissingField, Message: "rule id is required"})
			continue
		}
		if seen[rule.ID] {
			violations = append(violations, Violation{
				Field:   field + ".id",
				Code:    ViolationDuplicateRuleID,
				Message: fmt.Sprintf("duplicate rule id %q within policy %q", rule.ID, p.ID),
			})
			continue
		}
		seen[rule.ID] = true

		violations = append(violations, validateAction(field+".action", rule.Action)...)
	}

	return len(violations) == 0, violations
}

func validateAction(field string, action contracts.Action) []Violation {
	var violations []Violation
	switch action.Decision {
	case contracts.OutcomeAllow, contracts.OutcomeDeny, contracts.OutcomeWarn, contracts.OutcomeModify:
	default:
		violations = append(violations, Violation{
			Field:   field + ".decision",
			Code:    ViolationInvalidAction,
			Message: fmt.Sprintf("unrecognized decision %q", action.Decision),
		})
		return violations
	}

	if action.Decision == contracts.OutcomeModify && len(action.Modifications) == 0 {
		violations = append(violations, Violation{
			Field:   field + ".modifications",
			Code:    ViolationInvalidAction,
			Message: "modify actions require a non-empty modifications map",
		})
	}
	if action.Decision == contracts.OutcomeDeny && action.Reason == "" {
		violations = append(violations, Violation{
			Field:   field + ".reason",
			Code:    ViolationInvalidAction,
			Message: "deny actions require a reason",
		})
	}
	return violations
}
