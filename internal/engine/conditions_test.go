package engine

import (
	"testing"

	"campus-backend/internal/metadata"
)

func rule(field, op string, value any) metadata.ConditionRule {
	return metadata.ConditionRule{Field: field, Operator: op, Value: value}
}

func TestEvaluateConditionsEmptyGroup(t *testing.T) {
	if !EvaluateConditions(nil, map[string]any{"x": 1}) {
		t.Error("nil group should evaluate to true")
	}
	if !EvaluateConditions(&metadata.ConditionGroup{}, nil) {
		t.Error("empty group should evaluate to true")
	}
}

func TestEvaluateConditionsEquals(t *testing.T) {
	group := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("status", "equals", "active"),
	}}
	if !EvaluateConditions(group, map[string]any{"status": "active"}) {
		t.Error("expected equals to match")
	}
	if EvaluateConditions(group, map[string]any{"status": "inactive"}) {
		t.Error("expected equals to fail")
	}
}

func TestEvaluateConditionsLooseNumericEquals(t *testing.T) {
	group := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("count", "equals", "5"),
	}}
	if !EvaluateConditions(group, map[string]any{"count": 5}) {
		t.Error(`expected 5 to equal "5"`)
	}
	if !EvaluateConditions(group, map[string]any{"count": 5.0}) {
		t.Error(`expected 5.0 to equal "5"`)
	}
}

func TestEvaluateConditionsMissingFieldReadsNil(t *testing.T) {
	group := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("missing", "is_empty", nil),
	}}
	if !EvaluateConditions(group, map[string]any{}) {
		t.Error("missing field should count as empty")
	}
}

func TestEvaluateConditionsContains(t *testing.T) {
	group := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("name", "contains", "med"),
	}}
	if !EvaluateConditions(group, map[string]any{"name": "Ahmed"}) {
		t.Error("expected contains to match substring")
	}
	if EvaluateConditions(group, map[string]any{"name": "Sara"}) {
		t.Error("expected contains to fail")
	}
}

func TestEvaluateConditionsGreaterLessThan(t *testing.T) {
	gt := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("gpa", "greater_than", 3.0),
	}}
	if !EvaluateConditions(gt, map[string]any{"gpa": 3.5}) {
		t.Error("3.5 > 3.0 should hold")
	}
	if EvaluateConditions(gt, map[string]any{"gpa": 2.5}) {
		t.Error("2.5 > 3.0 should not hold")
	}
	// non-numeric operand fails the comparison, it does not panic
	if EvaluateConditions(gt, map[string]any{"gpa": "excellent"}) {
		t.Error("non-numeric comparison should be false")
	}

	lt := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("absences", "less_than", "10"),
	}}
	if !EvaluateConditions(lt, map[string]any{"absences": 3}) {
		t.Error("3 < 10 should hold even with a string threshold")
	}
}

func TestEvaluateConditionsIn(t *testing.T) {
	group := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("semester", "in", []any{"fall", "spring"}),
	}}
	if !EvaluateConditions(group, map[string]any{"semester": "fall"}) {
		t.Error("expected membership")
	}
	if EvaluateConditions(group, map[string]any{"semester": "summer"}) {
		t.Error("expected non-membership")
	}

	// scalar haystack coerces to one-element list
	scalar := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("semester", "in", "fall"),
	}}
	if !EvaluateConditions(scalar, map[string]any{"semester": "fall"}) {
		t.Error("scalar haystack should match")
	}
}

func TestEvaluateConditionsOrGroup(t *testing.T) {
	group := &metadata.ConditionGroup{
		Operator: "or",
		Conditions: []metadata.ConditionRule{
			rule("status", "equals", "active"),
			rule("status", "equals", "pending"),
		},
	}
	if !EvaluateConditions(group, map[string]any{"status": "pending"}) {
		t.Error("or group should pass when one rule holds")
	}
	if EvaluateConditions(group, map[string]any{"status": "closed"}) {
		t.Error("or group should fail when no rule holds")
	}
}

func TestEvaluateConditionsAndGroupDefault(t *testing.T) {
	group := &metadata.ConditionGroup{
		Conditions: []metadata.ConditionRule{
			rule("status", "equals", "active"),
			rule("gpa", "greater_than", 2),
		},
	}
	if !EvaluateConditions(group, map[string]any{"status": "active", "gpa": 3}) {
		t.Error("and group should pass when all rules hold")
	}
	if EvaluateConditions(group, map[string]any{"status": "active", "gpa": 1}) {
		t.Error("and group should fail when one rule fails")
	}
}

func TestEvaluateConditionsUnknownOperatorPasses(t *testing.T) {
	group := &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		rule("x", "between", []any{1, 5}),
	}}
	if !EvaluateConditions(group, map[string]any{"x": 99}) {
		t.Error("unknown operator must fail open")
	}
}

func TestLooseEqualNilSemantics(t *testing.T) {
	if !looseEqual(nil, nil) {
		t.Error("nil == nil")
	}
	if !looseEqual(nil, "") {
		t.Error(`nil should equal "" via string coercion`)
	}
	if looseEqual(nil, 0) {
		t.Error("nil should not equal 0")
	}
}

func TestIsEmptyValue(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{nil, true},
		{"", true},
		{[]any{}, true},
		{[]string{}, true},
		{0, false},
		{false, false},
		{"x", false},
		{[]any{1}, false},
	}
	for _, tc := range cases {
		if got := isEmptyValue(tc.in); got != tc.want {
			t.Errorf("isEmptyValue(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
