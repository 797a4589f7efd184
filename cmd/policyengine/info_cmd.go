package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/config"
)

// version is stamped by the release build; left as a constant for local
// builds and tests.
const version = "0.1.0"

// runInfoCmd implements `policyengine info`: prints build and
// configuration information useful for support requests.
func runInfoCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("info", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if jsonOutput {
		out := map[string]any{
			"version":            version,
			"environment":        cfg.Environment,
			"cache_backend":      cfg.CacheBackend,
			"cache_ttl_seconds":  cfg.CacheTTLSeconds,
			"telemetry_enabled":  cfg.TelemetryEnabled,
			"approval_timezone":  cfg.ApprovalTimezone,
		}
		if err := printJSON(stdout, out); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return 0
	}

	fmt.Fprintf(stdout, "policyengine %s\n", version)
	fmt.Fprintf(stdout, "environment: %s\n", cfg.Environment)
	fmt.Fprintf(stdout, "cache: %s (ttl=%ds)\n", cfg.CacheBackend, cfg.CacheTTLSeconds)
	fmt.Fprintf(stdout, "telemetry enabled: %t\n", cfg.TelemetryEnabled)
	fmt.Fprintf(stdout, "approval timezone: %s\n", cfg.ApprovalTimezone)
	return 0
}
