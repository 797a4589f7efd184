package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/policy"
)

// loadPolicyDir reads every .json/.yaml/.yml file directly under dir as a
// policy document, per policy.LoadFile's per-extension dispatch.
func loadPolicyDir(dir string) ([]contracts.Policy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read policy dir %s: %w", dir, err)
	}

	var policies []contracts.Policy
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := policy.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", e.Name(), err)
		}
		policies = append(policies, *p)
	}
	return policies, nil
}

// loadEvaluationContext reads an EvaluationContext from a JSON file.
func loadEvaluationContext(path string) (contracts.EvaluationContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file %s: %w", path, err)
	}
	var ctx contracts.EvaluationContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("parse context file %s: %w", path, err)
	}
	return ctx, nil
}

// loadApprovalRules reads a JSON array of ApprovalRule from path.
func loadApprovalRules(path string) ([]contracts.ApprovalRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	var rules []contracts.ApprovalRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
