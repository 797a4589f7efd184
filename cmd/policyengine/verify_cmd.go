package main

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/store"
)

// runVerifyCmd implements `policyengine verify`, grounded in the teacher's
// `helm verify` command: load an exported audit evidence pack (the zip
// produced by pkg/audit.Exporter.GeneratePack) and independently recompute
// its per-policy hash chain, never trusting the stored AfterHash values.
//
// Exit codes:
//
//	0 = verification passed
//	1 = verification failed
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var bundlePath, expectedChecksum string
	var jsonOutput bool
	cmd.StringVar(&bundlePath, "bundle", "", "Path to an audit evidence pack zip (REQUIRED)")
	cmd.StringVar(&expectedChecksum, "checksum", "", "Expected sha256 checksum of the bundle, as returned by the exporter")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundlePath == "" {
		fmt.Fprintln(stderr, "Error: --bundle is required")
		return 2
	}

	zipBytes, err := os.ReadFile(bundlePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	checksum := sha256.Sum256(zipBytes)
	computedChecksum := hex.EncodeToString(checksum[:])

	entries, err := readBundleEntries(zipBytes)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	checksumOK := expectedChecksum == "" || expectedChecksum == computedChecksum
	chainErr := store.VerifyEntries(entries)
	verified := checksumOK && chainErr == nil

	if jsonOutput {
		out := map[string]any{
			"verified":          verified,
			"entry_count":       len(entries),
			"computed_checksum": computedChecksum,
			"checksum_matched":  checksumOK,
		}
		if chainErr != nil {
			out["chain_error"] = chainErr.Error()
		}
		if err := printJSON(stdout, out); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	} else if verified {
		fmt.Fprintf(stdout, "Bundle verification PASSED\n")
		fmt.Fprintf(stdout, "Entries: %d\n", len(entries))
		fmt.Fprintf(stdout, "Checksum: %s\n", computedChecksum)
	} else {
		fmt.Fprintf(stdout, "Bundle verification FAILED\n")
		if !checksumOK {
			fmt.Fprintf(stdout, "  checksum mismatch: expected %s, computed %s\n", expectedChecksum, computedChecksum)
		}
		if chainErr != nil {
			fmt.Fprintf(stdout, "  chain error: %v\n", chainErr)
		}
	}

	if !verified {
		return 1
	}
	return 0
}

// readBundleEntries extracts entries.json from an audit evidence pack zip.
func readBundleEntries(zipBytes []byte) ([]*contracts.AuditEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	for _, f := range r.File {
		if f.Name != "entries.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entries.json: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read entries.json: %w", err)
		}
		var entries []*contracts.AuditEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse entries.json: %w", err)
		}
		return entries, nil
	}
	return nil, fmt.Errorf("bundle does not contain entries.json")
}
