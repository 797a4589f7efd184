package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/audit"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/governance"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/policy"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/store"
)

// runRegisterCmd implements `policyengine register`: parses and validates a
// policy document the way the host would before admitting it into the
// active corpus, reporting every structural and governance violation found.
//
// Exit codes:
//
//	0 = policy is valid and requires no special approval
//	1 = policy is valid but requires approval, or carries violations
//	2 = runtime/parse error
func runRegisterCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("register", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var policyFile string
	var jsonOutput bool
	var exportPack string
	cmd.StringVar(&policyFile, "policy", "", "Path to a policy document (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the full result as JSON")
	cmd.StringVar(&exportPack, "export-pack", "", "Write a checksummed audit evidence pack for this registration to the given zip path")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if policyFile == "" {
		fmt.Fprintln(stderr, "Error: --policy is required")
		return 2
	}

	p, err := policy.LoadFile(policyFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ok, structViolations := policy.Validate(p)
	govResult := governance.Validate(p)

	// A structurally and governance-valid registration is the one policy
	// mutation this CLI performs, so it is the one place an AuditEntry gets
	// written; a rejected mutation never reaches the audit trail, per the
	// append-only audit's fail-closed invariant.
	var entry *contracts.AuditEntry
	var auditStore *store.AuditStore
	if ok && govResult.Valid {
		auditStore = store.NewAuditStore()
		entry, err = auditStore.Append(p.ID, p.Version, contracts.AuditCreate, "policyengine-cli", "", map[string]any{
			"namespace":  p.Namespace,
			"risk_level": string(govResult.RiskLevel),
		})
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to write audit entry: %v\n", err)
			return 2
		}
	}

	var packChecksum string
	if entry != nil && exportPack != "" {
		exporter := audit.NewExporter(auditStore)
		zipBytes, checksum, err := exporter.GeneratePack(context.Background(), audit.ExportRequest{PolicyID: p.ID})
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to generate evidence pack: %v\n", err)
			return 2
		}
		if err := os.WriteFile(exportPack, zipBytes, 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: failed to write evidence pack: %v\n", err)
			return 2
		}
		packChecksum = checksum
	}

	if jsonOutput {
		out := map[string]any{
			"structurally_valid":    ok,
			"structural_violations": structViolations,
			"governance":            govResult,
			"audit_entry":           entry,
		}
		if packChecksum != "" {
			out["evidence_pack_checksum"] = packChecksum
		}
		if err := printJSON(stdout, out); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	} else {
		if ok && govResult.Valid {
			fmt.Fprintf(stdout, "OK: policy %s (%s) v%s registered clean\n", p.ID, p.Name, p.Version)
		} else {
			fmt.Fprintf(stdout, "FAILED: policy %s has violations\n", p.ID)
			for _, v := range structViolations {
				fmt.Fprintf(stdout, "  structural: [%s] %s: %s\n", v.Code, v.Field, v.Message)
			}
			for _, v := range govResult.Violations {
				fmt.Fprintf(stdout, "  governance: [%s/%s] %s\n", v.Severity, v.Code, v.Message)
			}
		}
		if govResult.RequiresApproval {
			fmt.Fprintf(stdout, "requires approval: %s (risk: %s)\n", govResult.ApprovalReason, govResult.RiskLevel)
		}
	}

	if !ok || !govResult.Valid || govResult.RequiresApproval {
		return 1
	}
	return 0
}
