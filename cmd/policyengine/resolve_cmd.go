package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/agent"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/config"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/constraint"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/engine"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/facade"
)

// runResolveCmd implements `policyengine resolve`: runs the Constraint
// Solver agent over a policy directory and one evaluation context.
func runResolveCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("resolve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var policiesDir, contextFile string
	cmd.StringVar(&policiesDir, "policies", "", "Directory of policy documents (REQUIRED)")
	cmd.StringVar(&contextFile, "context", "", "Path to an EvaluationContext JSON file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if policiesDir == "" || contextFile == "" {
		fmt.Fprintln(stderr, "Error: --policies and --context are required")
		return 2
	}

	policies, err := loadPolicyDir(policiesDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	evalCtx, err := loadEvaluationContext(contextFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg := config.Load()
	eng := engine.New()
	eng.Reload(policies)
	solver := constraint.New(eng)

	signer, err := crypto.NewEd25519Signer("policyengine-cli")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	deps := agent.Deps{
		Records:     facade.NoopSink{},
		Telemetry:   facade.NoopSink{},
		Environment: cfg.Environment,
		Logger:      slog.Default(),
	}
	solverAgent := agent.NewConstraintSolverAgent(deps, solver, signer)

	result, err := solverAgent.Resolve(context.Background(), facade.UUIDSource{}.NewID(), "", "", evalCtx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := printJSON(stdout, result.Output); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}
