package metadata

// ConditionRule is a single clause of the boolean rule mini-language that
// authors attach to fields, sections and actions. Rules are plain data and
// never mutated by the runtime.
type ConditionRule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// ConditionGroup combines rules with "and" / "or" semantics.
// A nil group or a group with no conditions is vacuously true.
type ConditionGroup struct {
	Operator   string          `json:"operator,omitempty"` // "and" (default) or "or"
	Conditions []ConditionRule `json:"conditions,omitempty"`
}

// IsEmpty reports whether the group carries no conditions at all.
func (g *ConditionGroup) IsEmpty() bool {
	return g == nil || len(g.Conditions) == 0
}
