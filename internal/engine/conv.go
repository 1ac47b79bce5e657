package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// toFloat64 converts numeric types (including numeric strings, the common
// case for values arriving from form submissions) to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// coerceString renders any value as a comparison string. nil becomes "",
// floats drop insignificant trailing zeros so 5.0 compares equal to "5".
func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toSlice coerces a value to a slice: []any passes through, []string is
// widened, a delimited string is split on commas, anything else becomes a
// one-element slice.
func toSlice(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case string:
		if strings.Contains(val, ",") {
			parts := strings.Split(val, ",")
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = strings.TrimSpace(p)
			}
			return out
		}
		return []any{val}
	default:
		return []any{v}
	}
}

// truthyStrings is the permissive set accepted when casting raw input to bool.
var truthyStrings = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true, "y": true,
}

// toBool converts a raw value to a boolean using a permissive truthy set
// for strings and non-zero semantics for numbers.
func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return truthyStrings[strings.ToLower(strings.TrimSpace(val))]
	case nil:
		return false
	default:
		f, ok := toFloat64(v)
		return ok && f != 0
	}
}

// CastValue coerces a raw parameter value to its declared cast type before
// it is used for querying. nil passes through; a failed cast returns the
// value unchanged rather than erroring, matching the engine's fail-open
// treatment of authored configuration.
func CastValue(value any, castTo string) any {
	if value == nil {
		return nil
	}

	switch castTo {
	case "integer", "int":
		if f, ok := toFloat64(value); ok {
			return int64(f)
		}
		return value
	case "float", "decimal", "number":
		if f, ok := toFloat64(value); ok {
			return f
		}
		return value
	case "boolean", "bool":
		return toBool(value)
	case "date":
		if t, ok := parseTime(value); ok {
			return t.Format("2006-01-02")
		}
		return value
	case "datetime":
		if t, ok := parseTime(value); ok {
			return t.Format("2006-01-02 15:04:05")
		}
		return value
	case "array":
		return toSlice(value)
	case "string", "":
		if s, ok := value.(string); ok {
			return s
		}
		return coerceString(value)
	default:
		return value
	}
}

// timeLayouts are tried in order by the permissive date parser.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
	"15:04:05",
	"15:04",
}

// parseTime parses a raw value into a time.Time, accepting time.Time
// itself, unix seconds and the common textual layouts.
func parseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case int, int64, float64:
		f, _ := toFloat64(v)
		return time.Unix(int64(f), 0).UTC(), true
	}
	return time.Time{}, false
}
