// Package governance implements the fail-closed governance validator of
// spec §4.4: structural checks a policy must pass before it is permitted to
// become active, conflict detection across a policy's enabled rules, type
// classification, and risk-level derivation. Naming follows the teacher's
// RiskLevel enum (pkg/governance/risk_envelope.go) and DenialReceipt shape
// (pkg/governance/denial.go), adapted to the spec's closed lowercase set
// and triggers.
package governance

import (
	"fmt"
	"strings"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// RiskLevel is the closed set a validation result escalates through.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// PolicyType is the closed classification set derived from tags, namespace,
// and rule actions.
type PolicyType string

const (
	TypeSecurity    PolicyType = "security"
	TypeCompliance  PolicyType = "compliance"
	TypeCost        PolicyType = "cost"
	TypeOperational PolicyType = "operational"
	TypeGeneral     PolicyType = "general"
)

// ViolationSeverity distinguishes structural errors from advisory findings.
type ViolationSeverity string

const (
	SeverityError   ViolationSeverity = "error"
	SeverityWarning ViolationSeverity = "warning"
)

// ViolationCode enumerates the governance checks that can fail.
type ViolationCode string

const (
	CodeMissingCondition    ViolationCode = "MISSING_CONDITION"
	CodeEmptyComposite      ViolationCode = "EMPTY_COMPOSITE"
	CodeDenyWithoutScope    ViolationCode = "DENY_WITHOUT_SCOPE"
	CodeCriticalResourceDeny ViolationCode = "CRITICAL_RESOURCE_DENY"
	CodeConflictingRules    ViolationCode = "CONFLICTING_RULES"
)

// Violation is a single governance finding against a policy.
type Violation struct {
	RuleID   string            `json:"rule_id,omitempty"`
	Code     ViolationCode     `json:"code"`
	Severity ViolationSeverity `json:"severity"`
	Message  string            `json:"message"`
}

// Result is the output of Validate.
type Result struct {
	Valid            bool        `json:"valid"`
	Violations       []Violation `json:"violations"`
	RequiresApproval bool        `json:"requires_approval"`
	ApprovalReason   string      `json:"approval_reason,omitempty"`
	RiskLevel        RiskLevel   `json:"risk_level"`
	Type             PolicyType  `json:"type"`
}

// criticalResourceTokens triggers CRITICAL_RESOURCE_DENY and the
// deny-without-scope check when any appears in a deny rule's policy name,
// rule name, or condition field path. Descriptions are not searched.
var criticalResourceTokens = []string{
	"admin", "root", "system", "database", "credentials", "secret", "key",
	"token", "password", "auth", "pii", "financial", "payment", "ssn",
	"health", "hipaa",
}

var scopeNarrowingTokens = []string{"scope", "namespace", "environment"}

var nonProductionTags = []string{"dev", "staging", "test", "qa"}

// Validate runs every fail-closed structural check from spec §4.4 against p
// and derives its type classification, risk level, and approval
// requirement. It never mutates p.
func Validate(p *contracts.Policy) Result {
	var violations []Violation

	for _, rule := range p.Rules {
		violations = append(violations, validateConditionTree(rule.ID, rule.Condition)...)
		if rule.Action.Decision == contracts.OutcomeDeny && mentionsCriticalResource(p, rule) {
			violations = append(violations, Violation{
				RuleID:   rule.ID,
				Code:     CodeCriticalResourceDeny,
				Severity: SeverityError,
				Message:  "deny rule references a critical resource token and requires explicit scoping review",
			})
			if !hasScopeTag(p, rule) {
				violations = append(violations, Violation{
					RuleID:   rule.ID,
					Code:     CodeDenyWithoutScope,
					Severity: SeverityError,
					Message:  "deny rule references a critical resource without an environment tag or scope-narrowing condition",
				})
			}
		}
	}

	violations = append(violations, detectConflicts(p.Rules)...)

	policyType := classify(p)
	production := isProduction(p)

	result := Result{
		Violations: violations,
		Type:       policyType,
	}
	result.Valid = !hasErrorSeverity(violations)

	result.RequiresApproval, result.ApprovalReason = inferApproval(policyType, production, p.Rules)
	result.RiskLevel = deriveRiskLevel(violations, policyType, production)

	return result
}

func validateConditionTree(ruleID string, cond contracts.Condition) []Violation {
	var violations []Violation
	if cond.IsComposite() {
		if len(cond.Children) == 0 {
			violations = append(violations, Violation{
				RuleID: ruleID, Code: CodeEmptyComposite, Severity: SeverityError,
				Message: "composite condition must have at least one child",
			})
		}
		for _, child := range cond.Children {
			violations = append(violations, validateConditionTree(ruleID, child)...)
		}
		return violations
	}
	if cond.Field == "" {
		violations = append(violations, Violation{
			RuleID: ruleID, Code: CodeMissingCondition, Severity: SeverityError,
			Message: "leaf condition requires a non-empty field path",
		})
	}
	return violations
}

func mentionsCriticalResource(p *contracts.Policy, rule contracts.PolicyRule) bool {
	haystack := strings.ToLower(p.Name + " " + rule.Name + " " + collectFieldPaths(rule.Condition))
	for _, token := range criticalResourceTokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

func hasScopeTag(p *contracts.Policy, rule contracts.PolicyRule) bool {
	for _, tag := range p.Tags {
		lower := strings.ToLower(tag)
		for _, env := range []string{"environment", "env:"} {
			if strings.Contains(lower, env) {
				return true
			}
		}
	}
	fields := strings.ToLower(collectFieldPaths(rule.Condition))
	for _, token := range scopeNarrowingTokens {
		if strings.Contains(fields, token) {
			return true
		}
	}
	return false
}

func collectFieldPaths(cond contracts.Condition) string {
	if cond.IsComposite() {
		var sb strings.Builder
		for _, child := range cond.Children {
			sb.WriteString(collectFieldPaths(child))
			sb.WriteString(" ")
		}
		return sb.String()
	}
	return cond.Field
}

// detectConflicts raises CONFLICTING_RULES when the same condition field
// appears in >=2 enabled rules with an allow and a deny both bound to the
// same literal value.
func detectConflicts(rules []contracts.PolicyRule) []Violation {
	type key struct {
		field string
		value string
	}
	allowFields := map[key][]string{}
	denyFields := map[key][]string{}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		collectLeafBindings(rule.Condition, func(field string, value any) {
			k := key{field: field, value: literalKey(value)}
			switch rule.Action.Decision {
			case contracts.OutcomeAllow:
				allowFields[k] = append(allowFields[k], rule.ID)
			case contracts.OutcomeDeny:
				denyFields[k] = append(denyFields[k], rule.ID)
			}
		})
	}

	var violations []Violation
	for k, allowRules := range allowFields {
		denyRules, ok := denyFields[k]
		if !ok {
			continue
		}
		for _, ruleID := range append(allowRules, denyRules...) {
			violations = append(violations, Violation{
				RuleID: ruleID, Code: CodeConflictingRules, Severity: SeverityError,
				Message: "field " + k.field + " has both allow and deny rules bound to the same value",
			})
		}
	}
	return violations
}

func collectLeafBindings(cond contracts.Condition, visit func(field string, value any)) {
	if cond.IsComposite() {
		for _, child := range cond.Children {
			collectLeafBindings(child, visit)
		}
		return
	}
	if cond.Field != "" && cond.Operator == contracts.OpEquals {
		visit(cond.Field, cond.Value)
	}
}

func literalKey(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func hasErrorSeverity(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// classify derives a policy's type from (in order): tags, namespace
// substring, then rule actions (any deny implies security).
func classify(p *contracts.Policy) PolicyType {
	for _, tag := range p.Tags {
		if t, ok := classifyToken(tag); ok {
			return t
		}
	}
	if t, ok := classifyToken(p.Namespace); ok {
		return t
	}
	for _, rule := range p.Rules {
		if rule.Action.Decision == contracts.OutcomeDeny {
			return TypeSecurity
		}
	}
	return TypeGeneral
}

func classifyToken(s string) (PolicyType, bool) {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "security"):
		return TypeSecurity, true
	case strings.Contains(lower, "compliance"):
		return TypeCompliance, true
	case strings.Contains(lower, "cost"):
		return TypeCost, true
	case strings.Contains(lower, "operational"), strings.Contains(lower, "ops"):
		return TypeOperational, true
	default:
		return "", false
	}
}

// isProduction implements the conservative production heuristic: an
// explicit prod/production marker counts, and so does the absence of any
// explicit non-prod marker.
func isProduction(p *contracts.Policy) bool {
	haystack := strings.ToLower(p.Namespace + " " + strings.Join(p.Tags, " "))
	if strings.Contains(haystack, "prod") {
		return true
	}
	for _, marker := range nonProductionTags {
		if strings.Contains(haystack, marker) {
			return false
		}
	}
	return true
}

func inferApproval(t PolicyType, production bool, rules []contracts.PolicyRule) (bool, string) {
	if t == TypeSecurity || t == TypeCompliance {
		return true, "security or compliance policies require approval authority to activate"
	}
	if production {
		for _, rule := range rules {
			if rule.Action.Decision == contracts.OutcomeDeny {
				return true, "production policies with a deny rule require approval to activate"
			}
		}
	}
	return false, ""
}

func deriveRiskLevel(violations []Violation, t PolicyType, production bool) RiskLevel {
	hasCritical := false
	hasError := false
	for _, v := range violations {
		switch v.Code {
		case CodeDenyWithoutScope, CodeCriticalResourceDeny, CodeConflictingRules:
			hasCritical = true
		}
		if v.Severity == SeverityError {
			hasError = true
		}
	}
	switch {
	case hasCritical:
		return RiskCritical
	case hasError, t == TypeSecurity:
		return RiskHigh
	case production, t == TypeCompliance:
		return RiskMedium
	default:
		return RiskLow
	}
}
