// Package condition implements the pure condition-tree evaluator of
// spec §4.2: operators, dotted field-path resolution, and short-circuiting
// boolean composition.
package condition

import (
	"strings"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// undefinedType is the sentinel field-path resolution yields when a path
// component is missing or descent hits a non-mapping value. It compares
// unequal to everything but itself.
type undefinedType struct{}

// Undefined is the single instance of undefinedType.
var Undefined = undefinedType{}

// isDefined reports whether v is anything other than Undefined or nil.
func isDefined(v any) bool {
	if v == nil {
		return false
	}
	_, undef := v.(undefinedType)
	return !undef
}

// Resolve walks a dotted field path ("a.b.c") through ctx, descending into
// nested maps at each step. Any missing component, or a non-mapping value
// encountered while descent is still required, yields Undefined.
func Resolve(ctx contracts.EvaluationContext, path string) any {
	if path == "" {
		return Undefined
	}
	var cur any = map[string]any(ctx)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return Undefined
		}
		v, ok := m[part]
		if !ok {
			return Undefined
		}
		cur = v
	}
	return cur
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case contracts.EvaluationContext:
		return map[string]any(t), true
	default:
		return nil, false
	}
}
