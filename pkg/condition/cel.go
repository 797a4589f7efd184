package condition

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// celNamespaces are the top-level EvaluationContext branches exposed to CEL
// expressions as dynamically-typed map variables. A field not listed here
// is simply unresolvable from a cel condition, matching how Resolve only
// descends into known mapping shapes.
var celNamespaces = []string{"llm", "user", "team", "project", "request", "metadata"}

var (
	celEnvOnce sync.Once
	celEnv     *cel.Env
	celEnvErr  error

	celProgramCache sync.Map // expr string -> cel.Program
)

func buildCELEnv() (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(celNamespaces))
	for _, ns := range celNamespaces {
		opts = append(opts, cel.Variable(ns, cel.DynType))
	}
	return cel.NewEnv(opts...)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = buildCELEnv()
	})
	return celEnv, celEnvErr
}

// compileCEL compiles and caches a program per distinct expression string,
// since a policy corpus re-evaluates the same expression for every request.
func compileCEL(expr string) (cel.Program, error) {
	if cached, ok := celProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("condition: cel environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("condition: cel compile %q: %w", expr, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("condition: cel program %q: %w", expr, err)
	}

	actual, _ := celProgramCache.LoadOrStore(expr, prg)
	return actual.(cel.Program), nil
}

// evaluateCEL compiles (or reuses a cached compilation of) expr and runs it
// against the evaluation context's known namespaces, returning its boolean
// result. A non-boolean result or any evaluation error is surfaced as err so
// the caller can fail the leaf to false rather than panic on a malformed
// expression.
func evaluateCEL(expr string, ctx contracts.EvaluationContext) (bool, error) {
	prg, err := compileCEL(expr)
	if err != nil {
		return false, err
	}

	vars := make(map[string]any, len(celNamespaces))
	for _, ns := range celNamespaces {
		if v, ok := ctx[ns]; ok {
			vars[ns] = v
		} else {
			vars[ns] = map[string]any{}
		}
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("condition: cel eval %q: %w", expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition: cel expression %q did not evaluate to bool", expr)
	}
	return result, nil
}
