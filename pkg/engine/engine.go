// Package engine implements the rule & policy engine of spec §4.3: policy
// selection and deterministic ordering, per-policy first-match rule
// evaluation, and cross-policy outcome synthesis. The active policy set is
// held as a replaceable snapshot behind an atomic pointer so Evaluate never
// blocks a concurrent Reload, the same lock-free hot-path pattern the wider
// example corpus uses for rule engines (atomic.Value snapshot + a narrow
// mutex around publication).
package engine

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/condition"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// corpus is the immutable, pre-sorted snapshot published by Reload and read
// by every concurrent Evaluate call.
type corpus struct {
	policies []contracts.Policy
}

// Engine evaluates requests against the active policy corpus.
type Engine struct {
	snapshot atomic.Pointer[corpus]
	mu       sync.Mutex // serializes Reload; Evaluate never takes it
}

// New returns an Engine with an empty corpus; call Reload to publish
// policies before evaluating requests.
func New() *Engine {
	e := &Engine{}
	e.snapshot.Store(&corpus{})
	return e
}

// Reload replaces the active policy corpus. Only policies with
// Status == PolicyActive are retained; everything else is filtered before
// the sort so Evaluate never has to branch on status per request.
func (e *Engine) Reload(policies []contracts.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := make([]contracts.Policy, 0, len(policies))
	for _, p := range policies {
		if p.Status == contracts.PolicyActive {
			active = append(active, p.Clone())
		}
	}
	sortPolicies(active)
	e.snapshot.Store(&corpus{policies: active})
}

// sortPolicies orders descending by priority, then by created_at
// descending (newer wins on tie), then by id ascending — fully
// deterministic regardless of insertion order.
func sortPolicies(policies []contracts.Policy) {
	sort.SliceStable(policies, func(i, j int) bool {
		a, b := policies[i], policies[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Request is the input to Evaluate.
type Request struct {
	RequestID    string
	Context      contracts.EvaluationContext
	RestrictTo   []string // optional policy-id allowlist
	DryRun       bool
	Trace        bool
}

// RuleTrace records one rule's evaluation when Request.Trace is set.
type RuleTrace struct {
	PolicyID string
	RuleID   string
	Matched  bool
}

// PolicyContribution is the outcome one matched policy contributed to
// cross-policy synthesis.
type PolicyContribution struct {
	PolicyID        string
	RuleID          string
	Outcome         contracts.Outcome
	Reason          string
	Modifications   map[string]any
	ConstraintType     contracts.ConstraintType
	ConstraintScope    contracts.ConstraintScope
	ConstraintCritical bool
}

// Response is the result of Evaluate: the synthesized decision plus an
// optional rule-level trace.
type Response struct {
	Decision      contracts.Decision
	Contributions []PolicyContribution
	Trace         []RuleTrace
}

// Evaluate runs the current policy snapshot against req.Context and
// synthesizes a single Decision across every matching policy, per spec
// §4.3. It is a pure function of the published snapshot and req: no
// mutation, no I/O, safe to call concurrently with Reload and with itself.
func (e *Engine) Evaluate(req Request) Response {
	start := time.Now()
	snap := e.snapshot.Load()

	var restrict map[string]bool
	if len(req.RestrictTo) > 0 {
		restrict = make(map[string]bool, len(req.RestrictTo))
		for _, id := range req.RestrictTo {
			restrict[id] = true
		}
	}

	var contributions []PolicyContribution
	var trace []RuleTrace

	for _, p := range snap.policies {
		if restrict != nil && !restrict[p.ID] {
			continue
		}

		matched := false
		for _, rule := range p.Rules {
			if !rule.Enabled {
				continue
			}
			isMatch := condition.Evaluate(rule.Condition, req.Context)
			if req.Trace {
				trace = append(trace, RuleTrace{PolicyID: p.ID, RuleID: rule.ID, Matched: isMatch})
			}
			if isMatch && !matched {
				matched = true
				contributions = append(contributions, PolicyContribution{
					PolicyID:        p.ID,
					RuleID:          rule.ID,
					Outcome:         rule.Action.Decision,
					Reason:          rule.Action.Reason,
					Modifications:   rule.Action.Modifications,
					ConstraintType:     rule.ConstraintType,
					ConstraintScope:    rule.ConstraintScope,
					ConstraintCritical: rule.ConstraintCritical,
				})
				if !req.Trace {
					break
				}
			}
		}
	}

	decision := synthesize(contributions)
	decision.EvaluationTime = time.Since(start)

	return Response{Decision: decision, Contributions: contributions, Trace: trace}
}

// synthesize picks the dominant outcome across per-policy contributions:
// deny beats modify beats warn beats allow; with no contributions at all
// the top-level result fails open to allow ("no matching policy"), the one
// place spec §4.3/§7 permits fail-open.
func synthesize(contributions []PolicyContribution) contracts.Decision {
	if len(contributions) == 0 {
		return contracts.Decision{
			Outcome: contracts.OutcomeAllow,
			Reason:  "no matching policy",
		}
	}

	dominant := pickDominant(contributions)
	decision := contracts.Decision{Outcome: dominant}

	var modifications map[string]any
	for _, c := range contributions {
		decision.MatchedPolicies = append(decision.MatchedPolicies, c.PolicyID)
		decision.MatchedRules = append(decision.MatchedRules, c.RuleID)
		if c.Outcome != dominant {
			continue
		}
		if decision.Reason == "" {
			decision.Reason = c.Reason
		}
		if dominant == contracts.OutcomeModify && len(c.Modifications) > 0 {
			if modifications == nil {
				modifications = make(map[string]any)
			}
			// Right-bias: later policies (later in processed order) win
			// on key collision.
			for k, v := range c.Modifications {
				modifications[k] = v
			}
		}
	}
	decision.Modifications = modifications

	return decision
}

// pickDominant returns the highest-priority outcome present: deny > modify
// > warn > allow.
func pickDominant(contributions []PolicyContribution) contracts.Outcome {
	has := map[contracts.Outcome]bool{}
	for _, c := range contributions {
		has[c.Outcome] = true
	}
	switch {
	case has[contracts.OutcomeDeny]:
		return contracts.OutcomeDeny
	case has[contracts.OutcomeModify]:
		return contracts.OutcomeModify
	case has[contracts.OutcomeWarn]:
		return contracts.OutcomeWarn
	default:
		return contracts.OutcomeAllow
	}
}
