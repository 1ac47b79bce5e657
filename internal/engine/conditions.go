package engine

import (
	"strings"

	"campus-backend/internal/metadata"
)

// EvaluateConditions runs a condition group against a row of runtime data
// and reports whether the guarded thing (field, section, action) applies.
//
// The evaluator is deliberately total: it never returns an error and never
// panics, whatever the stored configuration looks like. Malformed rules and
// unknown operators evaluate to true so a bad config degrades the UI
// instead of crashing a request.
func EvaluateConditions(group *metadata.ConditionGroup, row map[string]any) bool {
	if group.IsEmpty() {
		return true
	}

	anyTrue := false
	allTrue := true
	for _, rule := range group.Conditions {
		ok := evaluateRule(rule, row)
		anyTrue = anyTrue || ok
		allTrue = allTrue && ok
	}

	// Unknown group operators fall back to "and" semantics.
	if strings.EqualFold(group.Operator, "or") {
		return anyTrue
	}
	return allTrue
}

func evaluateRule(rule metadata.ConditionRule, row map[string]any) bool {
	fieldValue := row[rule.Field] // missing keys read as nil, never an error

	switch rule.Operator {
	case "equals":
		return looseEqual(fieldValue, rule.Value)
	case "not_equals":
		return !looseEqual(fieldValue, rule.Value)
	case "contains":
		return strings.Contains(coerceString(fieldValue), coerceString(rule.Value))
	case "is_empty":
		return isEmptyValue(fieldValue)
	case "is_not_empty":
		return !isEmptyValue(fieldValue)
	case "greater_than":
		a, aok := toFloat64(fieldValue)
		b, bok := toFloat64(rule.Value)
		return aok && bok && a > b
	case "less_than":
		a, aok := toFloat64(fieldValue)
		b, bok := toFloat64(rule.Value)
		return aok && bok && a < b
	case "in":
		return looseMember(fieldValue, rule.Value)
	case "not_in":
		return !looseMember(fieldValue, rule.Value)
	case "is_null":
		return fieldValue == nil
	case "is_not_null":
		return fieldValue != nil
	default:
		// Forward-compatible: operators this build does not know pass.
		return true
	}
}

// looseEqual compares two values the way submitted form data demands:
// "5" equals 5. Numeric comparison is attempted first, then both sides
// are compared as strings (nil stringifies to "").
func looseEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			return af == bf
		}
	}
	return coerceString(a) == coerceString(b)
}

// looseMember tests membership of needle in haystack, coercing a scalar
// haystack to a one-element list.
func looseMember(needle, haystack any) bool {
	for _, candidate := range toSlice(haystack) {
		if looseEqual(needle, candidate) {
			return true
		}
	}
	return false
}

// isEmptyValue reports whether a value counts as empty for the
// is_empty / is_not_empty operators: nil, "" or an empty list.
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}
