package policy

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// policySchemaDoc gives the parser an early, structural rejection path
// (JSON Schema draft 2020-12) ahead of the semantic checks Validate runs.
// It covers the minimal required shape from spec §4.1: every essential
// field present with the right kind, every status/decision value from the
// closed sets.
const policySchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "name", "version", "namespace", "status", "rules"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "namespace": {"type": "string", "minLength": 1},
    "tags": {"type": "array", "items": {"type": "string"}},
    "priority": {"type": "integer"},
    "status": {"enum": ["draft", "active", "deprecated", "archived"]},
    "rules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "condition", "action"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "enabled": {"type": "boolean"},
          "condition": {"type": "object"},
          "action": {
            "type": "object",
            "required": ["decision"],
            "properties": {
              "decision": {"enum": ["allow", "deny", "warn", "modify"]}
            }
          }
        }
      }
    }
  }
}`

const policySchemaURL = "https://policy-engine.local/schemas/policy.schema.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiledPolicySchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(policySchemaURL, strings.NewReader(policySchemaDoc)); err != nil {
			compileErr = err
			return
		}
		compiledSchema, compileErr = c.Compile(policySchemaURL)
	})
	return compiledSchema, compileErr
}

// validateSchema runs the JSON Schema pass over the raw decoded document
// (before it's been unmarshaled into contracts.Policy), returning one
// Violation per schema error.
func validateSchema(doc any) []Violation {
	schema, err := compiledPolicySchema()
	if err != nil {
		return []Violation{{Code: ViolationInvalidSchema, Message: "schema compilation failed: " + err.Error()}}
	}
	if err := schema.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			violations := make([]Violation, 0, len(verr.Causes)+1)
			flattenSchemaErrors(verr, &violations)
			if len(violations) == 0 {
				violations = append(violations, Violation{Code: ViolationInvalidSchema, Message: verr.Error()})
			}
			return violations
		}
		return []Violation{{Code: ViolationInvalidSchema, Message: err.Error()}}
	}
	return nil
}

func flattenSchemaErrors(verr *jsonschema.ValidationError, out *[]Violation) {
	if len(verr.Causes) == 0 {
		*out = append(*out, Violation{
			Field:   verr.InstanceLocation,
			Code:    ViolationInvalidSchema,
			Message: verr.Message,
		})
		return
	}
	for _, cause := range verr.Causes {
		flattenSchemaErrors(cause, out)
	}
}
