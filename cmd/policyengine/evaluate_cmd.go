package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/agent"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/cache"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/config"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/engine"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/facade"
)

// runEvaluateCmd implements `policyengine evaluate`: runs the Policy
// Enforcement agent over a policy directory and one evaluation context.
func runEvaluateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		policiesDir string
		contextFile string
		restrictTo  stringListFlag
		dryRun      bool
		trace       bool
		noCache     bool
	)
	cmd.StringVar(&policiesDir, "policies", "", "Directory of policy documents (REQUIRED)")
	cmd.StringVar(&contextFile, "context", "", "Path to an EvaluationContext JSON file (REQUIRED)")
	cmd.Var(&restrictTo, "restrict-to", "Comma-separated policy ids to restrict evaluation to")
	cmd.BoolVar(&dryRun, "dry-run", false, "Evaluate without persisting to the record sink")
	cmd.BoolVar(&trace, "trace", false, "Include the per-rule evaluation trace in the output")
	cmd.BoolVar(&noCache, "no-cache", false, "Disable the decision cache for this invocation")

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

	var cacheStore *cache.Store
	if !noCache {
		cacheStore = cache.New(cfg.CacheTTL())
	}

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
	pe := agent.NewPolicyEnforcementAgent(deps, eng, signer, cacheStore)

	result, err := pe.Evaluate(context.Background(), agent.Request{
		RequestID:  facade.UUIDSource{}.NewID(),
		Context:    evalCtx,
		RestrictTo: restrictTo.values,
		DryRun:     dryRun,
		Trace:      trace,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	out := map[string]any{
		"decision": result.Decision,
		"cached":   result.Cached,
		"event_id": result.Event.EventID,
	}
	if trace {
		out["trace"] = result.Trace
	}
	if err := printJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if result.Decision.Outcome == contracts.OutcomeDeny {
		return 1
	}
	return 0
}

// stringListFlag implements flag.Value for a comma-separated string list.
type stringListFlag struct {
	values []string
}

func (f *stringListFlag) String() string {
	if f == nil {
		return ""
	}
	out := ""
	for i, v := range f.values {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

func (f *stringListFlag) Set(raw string) error {
	if raw == "" {
		f.values = nil
		return nil
	}
	var cur []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			cur = append(cur, raw[start:i])
			start = i + 1
		}
	}
	f.values = cur
	return nil
}
