// Package policy implements the typed policy document model: JSON/YAML
// ingest, schema validation, and the semantic checks of spec §4.1.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// ParseJSON decodes and validates a policy document from JSON text. Parse
// failures (malformed syntax) and schema failures are both returned as a
// *StructuralError; the caller never has to distinguish exception-as-
// control-flow from an ordinary rejection.
func ParseJSON(text []byte) (*contracts.Policy, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, newStructuralError(Violation{
			Code:    ViolationInvalidSchema,
			Message: fmt.Sprintf("malformed JSON: %v", err),
		})
	}

	if violations := validateSchema(generic); len(violations) > 0 {
		return nil, newStructuralError(violations...)
	}

	var p contracts.Policy
	if err := json.Unmarshal(text, &p); err != nil {
		return nil, newStructuralError(Violation{
			Code:    ViolationInvalidSchema,
			Message: fmt.Sprintf("decode failed after schema pass: %v", err),
		})
	}

	if ok, violations := Validate(&p); !ok {
		return nil, newStructuralError(violations...)
	}

	return &p, nil
}

// ParseYAML decodes and validates a policy document from YAML text by
// normalizing to JSON first, so the same schema and semantic checks apply
// regardless of source format.
func ParseYAML(text []byte) (*contracts.Policy, error) {
	var generic any
	if err := yaml.Unmarshal(text, &generic); err != nil {
		return nil, newStructuralError(Violation{
			Code:    ViolationInvalidSchema,
			Message: fmt.Sprintf("malformed YAML: %v", err),
		})
	}

	normalized, err := json.Marshal(normalizeYAML(generic))
	if err != nil {
		return nil, newStructuralError(Violation{
			Code:    ViolationInvalidSchema,
			Message: fmt.Sprintf("YAML to JSON normalization failed: %v", err),
		})
	}

	return ParseJSON(normalized)
}

// normalizeYAML rewrites map[string]interface{} keys that yaml.v3 may
// produce as map[interface{}]interface{} deep in nested structures, so the
// result round-trips cleanly through encoding/json.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// LoadFile reads a policy document from disk, dispatching on extension
// (.json vs .yaml/.yml).
func LoadFile(path string) (*contracts.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}
