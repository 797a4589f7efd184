package condition

import "github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"

// Evaluate walks a condition tree against ctx and returns its boolean
// result. Composite nodes short-circuit: all stops at the first false,
// any stops at the first true, not evaluates its single child and
// negates it. A malformed composite (not with != 1 child) evaluates to
// false rather than panicking, since policy documents are untrusted
// input validated structurally elsewhere, not here.
func Evaluate(cond contracts.Condition, ctx contracts.EvaluationContext) bool {
	if cond.IsComposite() {
		return evaluateComposite(cond, ctx)
	}
	return evaluateLeaf(cond, ctx)
}

func evaluateComposite(cond contracts.Condition, ctx contracts.EvaluationContext) bool {
	switch cond.Combinator {
	case contracts.CombinatorAll:
		for _, child := range cond.Children {
			if !Evaluate(child, ctx) {
				return false
			}
		}
		return true
	case contracts.CombinatorAny:
		for _, child := range cond.Children {
			if Evaluate(child, ctx) {
				return true
			}
		}
		return false
	case contracts.CombinatorNot:
		if len(cond.Children) != 1 {
			return false
		}
		return !Evaluate(cond.Children[0], ctx)
	default:
		return false
	}
}

func evaluateLeaf(cond contracts.Condition, ctx contracts.EvaluationContext) bool {
	if cond.Operator == contracts.OpCEL {
		expr, ok := cond.Value.(string)
		if !ok {
			return false
		}
		result, err := evaluateCEL(expr, ctx)
		if err != nil {
			return false
		}
		return result
	}

	if cond.Operator == contracts.OpExists {
		return isDefined(Resolve(ctx, cond.Field))
	}
	if cond.Operator == contracts.OpNotExists {
		return !isDefined(Resolve(ctx, cond.Field))
	}

	left := Resolve(ctx, cond.Field)
	right := cond.Value

	switch cond.Operator {
	case contracts.OpEquals:
		return valuesEqual(left, right)
	case contracts.OpNotEquals:
		return isDefined(left) && !valuesEqual(left, right)
	case contracts.OpGreaterThan:
		return compareNumeric(left, right, func(x, y float64) bool { return x > y })
	case contracts.OpLessThan:
		return compareNumeric(left, right, func(x, y float64) bool { return x < y })
	case contracts.OpGreaterThanOrEqual:
		return compareNumeric(left, right, func(x, y float64) bool { return x >= y })
	case contracts.OpLessThanOrEqual:
		return compareNumeric(left, right, func(x, y float64) bool { return x <= y })
	case contracts.OpContains:
		return isDefined(left) && opContains(left, right)
	case contracts.OpIn:
		return isDefined(left) && opIn(left, right)
	case contracts.OpNotIn:
		return isDefined(left) && !opIn(left, right)
	case contracts.OpMatches:
		return isDefined(left) && opMatches(left, right)
	case contracts.OpStartsWith:
		return isDefined(left) && opStartsWith(left, right)
	case contracts.OpEndsWith:
		return isDefined(left) && opEndsWith(left, right)
	default:
		return false
	}
}
