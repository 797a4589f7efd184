// Package approval implements the approval router of spec §4.6: rule
// matching and priority ordering, order-sensitive auto-approval checks,
// approval-chain construction, escalation-ladder merging, and risk scoring.
// The chain/escalation lifecycle shape is grounded in the teacher's
// escalation.Manager (EscalationIntent/EscalationReceipt, timeout handling)
// and its runtime/obligation lease/attempt/escalate state machine, both
// adapted here into one ApprovalChain result type rather than a stateful
// intent store — the router is a pure function of its rule set and inputs,
// per spec §5.
package approval

import (
	"sort"
	"sync"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/condition"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// Requester identifies who initiated the action being routed.
type Requester struct {
	ID    string
	Roles []string
}

// Request is the input to Router.Route.
type Request struct {
	ActionContext contracts.EvaluationContext
	Requester     Requester
	Priority      string // e.g. "critical", "high", "emergency", "" (default)
	RuleFilter    []string
}

const justificationPriorityThreshold = 80

var escalationPriorities = map[string]bool{"critical": true, "high": true, "emergency": true}

// ApprovalStatus is the status of a previously routed approval chain, for
// hosts that track approver responses elsewhere and want to ask the router
// about its own view of a chain's state. The router itself holds no durable
// approval state (see GetStatus).
type ApprovalStatus struct {
	RequestID string
	Outcome   contracts.ApprovalOutcome
	Completed bool
}

// Router evaluates approval rules against action contexts.
type Router struct {
	mu       sync.RWMutex
	rules    []contracts.ApprovalRule
	clock    func() time.Time
	location *time.Location
}

// New returns a Router with no rules loaded and the given timezone used for
// business-hours auto-approve checks. loc defaults to UTC when nil, per
// config.approval.timezone's own default.
func New(loc *time.Location) *Router {
	if loc == nil {
		loc = time.UTC
	}
	return &Router{clock: time.Now, location: loc}
}

// WithClock overrides the router's clock for deterministic testing.
func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// Reload replaces the active rule set. Only Active rules are retained.
func (r *Router) Reload(rules []contracts.ApprovalRule) {
	active := make([]contracts.ApprovalRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	r.mu.Lock()
	r.rules = active
	r.mu.Unlock()
}

// GetStatus reports the status of a previously routed request. The router
// is a pure function of its rule set and inputs and keeps no record of past
// Route calls, so this always resolves to (nil, nil): durable tracking of
// in-flight approval chains (who has responded, what remains outstanding)
// is the host's responsibility, not the router's, per the constraint that
// approval-state persistence lives in pkg/facade's RecordSink, not here.
func (r *Router) GetStatus(requestID string) (*ApprovalStatus, error) {
	return nil, nil
}

// Route runs the full approval-routing algorithm of spec §4.6 against req.
func (r *Router) Route(req Request) contracts.ApprovalRoutingOutput {
	r.mu.RLock()
	rules := r.rules
	r.mu.RUnlock()

	var filter map[string]bool
	if len(req.RuleFilter) > 0 {
		filter = make(map[string]bool, len(req.RuleFilter))
		for _, id := range req.RuleFilter {
			filter[id] = true
		}
	}

	var matched []contracts.ApprovalRule
	for _, rule := range rules {
		if filter != nil && !filter[rule.ID] {
			continue
		}
		if matchesRule(rule, req.ActionContext) {
			matched = append(matched, rule)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority > matched[j].Priority })

	output := contracts.ApprovalRoutingOutput{
		RiskScore: riskScore(req.ActionContext, matched),
	}
	for _, rule := range matched {
		output.RulesMatched = append(output.RulesMatched, rule.ID)
		if rule.Priority >= justificationPriorityThreshold {
			output.JustificationRequired = true
		}
	}

	for _, rule := range matched {
		if r.autoApproves(rule, req) {
			output.Outcome = contracts.ApprovalOutcomeAutoApproved
			output.Chain = contracts.ApprovalChain{}
			return output
		}
	}

	if len(matched) == 0 {
		output.Outcome = contracts.ApprovalOutcomeBypassed
		output.Chain = contracts.ApprovalChain{}
		return output
	}

	output.Chain = buildChain(matched)
	if escalationPriorities[req.Priority] {
		output.Outcome = contracts.ApprovalOutcomeEscalationRequired
	} else {
		output.Outcome = contracts.ApprovalOutcomeRequired
	}
	return output
}

// matchesRule evaluates a rule's match list with its combinator over ctx
// using the §4.2 condition evaluator.
func matchesRule(rule contracts.ApprovalRule, ctx contracts.EvaluationContext) bool {
	combinator := rule.Match.Combinator
	if combinator == "" {
		combinator = contracts.CombinatorAll
	}
	composite := contracts.Condition{
		Kind:       contracts.ConditionComposite,
		Combinator: combinator,
		Children:   rule.Match.Conditions,
	}
	if len(composite.Children) == 0 {
		return false
	}
	return condition.Evaluate(composite, ctx)
}

// autoApproves runs the order-sensitive auto-approval check of spec §4.6
// step 4. Configured sub-checks run in order and the first one that
// succeeds auto-approves; an unset sub-check is skipped.
func (r *Router) autoApproves(rule contracts.ApprovalRule, req Request) bool {
	ac := rule.AutoApproveConditions
	if ac == nil {
		return false
	}

	if len(ac.AllowedRoles) > 0 && rolesIntersect(ac.AllowedRoles, req.Requester.Roles) {
		return true
	}
	if len(ac.AllowedResourceTypes) > 0 {
		rt, _ := condition.Resolve(req.ActionContext, "resource_type").(string)
		if contains(ac.AllowedResourceTypes, rt) {
			return true
		}
	}
	if len(ac.AllowedOperations) > 0 {
		op, _ := condition.Resolve(req.ActionContext, "operation").(string)
		if contains(ac.AllowedOperations, op) {
			return true
		}
	}
	if ac.MaxValue != nil {
		val := condition.Resolve(req.ActionContext, "details.value")
		num, ok := asFloat(val)
		if ok && num <= *ac.MaxValue {
			return true
		}
	}
	if ac.TimeRestrictions != nil && r.withinTimeRestrictions(*ac.TimeRestrictions) {
		return true
	}
	return false
}

func (r *Router) withinTimeRestrictions(tr contracts.TimeRestrictions) bool {
	now := r.clock().In(r.location)
	hour := now.Hour()
	if hour < tr.StartHour || hour >= tr.EndHour {
		return false
	}
	if len(tr.Weekdays) == 0 {
		return true
	}
	weekday := int(now.Weekday())
	for _, d := range tr.Weekdays {
		if d == weekday {
			return true
		}
	}
	return false
}

func rolesIntersect(allowed, have []string) bool {
	set := make(map[string]bool, len(allowed))
	for _, r := range allowed {
		set[r] = true
	}
	for _, h := range have {
		if set[h] {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// buildChain assembles parallel/any_of steps per rule and merges escalation
// ladders across rules by level.
func buildChain(rules []contracts.ApprovalRule) contracts.ApprovalChain {
	var chain contracts.ApprovalChain
	levels := map[int]*contracts.MergedEscalationLevel{}
	var levelOrder []int

	for _, rule := range rules {
		if len(rule.ApproverPool) == 0 {
			continue
		}
		stepType := contracts.StepAnyOf
		if rule.RequiredApprovers > 1 {
			stepType = contracts.StepParallel
		}
		chain.Steps = append(chain.Steps, contracts.ApprovalStep{
			RuleID:              rule.ID,
			StepType:            stepType,
			Approvers:           rule.ApproverPool,
			RequiredApprovers:   rule.RequiredApprovers,
			TimeoutSeconds:      rule.TimeoutSeconds,
			EscalationOnTimeout: rule.EscalationEnabled,
		})
		chain.TotalTimeoutSeconds += rule.TimeoutSeconds

		if !rule.EscalationEnabled {
			continue
		}
		for _, esc := range rule.Escalation {
			existing, ok := levels[esc.Level]
			if !ok {
				levelOrder = append(levelOrder, esc.Level)
				existing = &contracts.MergedEscalationLevel{Level: esc.Level, TimeoutSeconds: esc.TimeoutSeconds}
				levels[esc.Level] = existing
			} else if esc.TimeoutSeconds < existing.TimeoutSeconds {
				existing.TimeoutSeconds = esc.TimeoutSeconds
			}
			existing.Approvers = unionApprovers(existing.Approvers, esc.ApproverPool)
		}
	}

	sort.Ints(levelOrder)
	for _, level := range levelOrder {
		merged := levels[level]
		chain.EscalationLadder = append(chain.EscalationLadder, *merged)
		chain.TotalTimeoutSeconds += merged.TimeoutSeconds
	}

	return chain
}

func unionApprovers(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range incoming {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// riskScore implements spec §4.6 step 9, capped at 100.
func riskScore(ctx contracts.EvaluationContext, matched []contracts.ApprovalRule) float64 {
	score := 0.0
	op, _ := condition.Resolve(ctx, "operation").(string)
	switch op {
	case "delete":
		score += 30
	case "execute":
		score += 25
	case "update":
		score += 20
	case "create":
		score += 15
	}
	score += 10 * float64(len(matched))
	for _, rule := range matched {
		score += float64(rule.Priority) / 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
