package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/agent"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/approval"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/config"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/crypto"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/facade"
)

// runRouteCmd implements `policyengine route`: runs the Approval Routing
// agent over an approval rule set and one evaluation context.
func runRouteCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("route", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		rulesFile   string
		contextFile string
		requesterID string
		roles       stringListFlag
		priority    string
	)
	cmd.StringVar(&rulesFile, "rules", "", "Path to an ApprovalRule JSON array (REQUIRED)")
	cmd.StringVar(&contextFile, "context", "", "Path to an EvaluationContext JSON file (REQUIRED)")
	cmd.StringVar(&requesterID, "requester", "", "Requester id")
	cmd.Var(&roles, "roles", "Comma-separated requester roles")
	cmd.StringVar(&priority, "priority", "", "Action priority (e.g. critical, high, emergency)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if rulesFile == "" || contextFile == "" {
		fmt.Fprintln(stderr, "Error: --rules and --context are required")
		return 2
	}

	rules, err := loadApprovalRules(rulesFile)
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
	loc, err := time.LoadLocation(cfg.ApprovalTimezone)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid approval timezone %q: %v\n", cfg.ApprovalTimezone, err)
		return 2
	}
	router := approval.New(loc)
	router.Reload(rules)

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
	routingAgent := agent.NewApprovalRoutingAgent(deps, router, signer)

	result, err := routingAgent.Route(context.Background(), facade.UUIDSource{}.NewID(), "", "", approval.Request{
		ActionContext: evalCtx,
		Requester:     approval.Requester{ID: requesterID, Roles: roles.values},
		Priority:      priority,
	})
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
