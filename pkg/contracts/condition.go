package contracts

// ConditionKind discriminates the two Condition variants. Go has no tagged
// union, so Condition carries both shapes and Kind says which is populated —
// the same "replace subtype hierarchy with a tagged variant" approach the
// teacher repo uses for rule actions (see Action / Decision below).
type ConditionKind string

const (
	ConditionLeaf      ConditionKind = "leaf"
	ConditionComposite ConditionKind = "composite"
)

// Operator is the closed set of leaf comparison operators, plus the
// composite combinators reused as operator values for symmetry with the
// wire format (a leaf's Operator is always one of the non-composite values).
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpContains           Operator = "contains"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpMatches            Operator = "matches"
	OpExists             Operator = "exists"
	OpNotExists          Operator = "not_exists"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	// OpCEL is a domain-stack extension: the literal holds a raw CEL boolean
	// expression, compiled and evaluated via pkg/condition's CEL bridge.
	OpCEL Operator = "cel"
)

// Combinator is the closed set of composite boolean combinators.
type Combinator string

const (
	CombinatorAll Combinator = "all"
	CombinatorAny Combinator = "any"
	CombinatorNot Combinator = "not"
)

// Condition is a tree of leaf predicates combined by all/any/not.
//
//nolint:govet // fieldalignment: struct layout kept human-readable
type Condition struct {
	Kind ConditionKind `json:"kind" yaml:"kind"`

	// Leaf fields (Kind == ConditionLeaf).
	Field    string   `json:"field,omitempty" yaml:"field,omitempty"`
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`

	// Composite fields (Kind == ConditionComposite).
	Combinator Combinator  `json:"combinator,omitempty" yaml:"combinator,omitempty"`
	Children   []Condition `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsComposite reports whether the condition is a composite node.
func (c Condition) IsComposite() bool {
	return c.Kind == ConditionComposite
}

// EvaluationContext is the nested mapping a condition tree is evaluated
// against: conventional branches like llm.*, user.*, team, project, request,
// plus an open metadata map. Represented as the recursively-typed `any` the
// design notes call for (scalar | sequence | mapping), dispatched by type
// switch in pkg/condition rather than a bespoke variant type.
type EvaluationContext map[string]any
