package engine

import (
	"strconv"
	"strings"
)

// StatusValue is the structured rendering of status-like data types.
// It is the one formatter output that is not a plain string; callers
// branch on the concrete type.
type StatusValue struct {
	Value any    `json:"value"`
	Color string `json:"color"`
}

// DefaultStatusColor is used when a status value has no configured color.
const DefaultStatusColor = "gray"

// gradeColors is the built-in palette for the grade data type, overridable
// via format_options.grade_colors.
var gradeColors = map[string]string{
	"a+": "green", "a": "green", "a-": "green",
	"b+": "blue", "b": "blue", "b-": "blue",
	"c+": "yellow", "c": "yellow", "c-": "yellow",
	"d+": "orange", "d": "orange",
	"f": "red",
}

// FormatValue converts a raw typed value into its presentation form.
// Scalar types render nil as "-" so column alignment stays predictable;
// status and grade return a StatusValue; unknown data types pass the raw
// value through unchanged.
func FormatValue(value any, dataType string, opts map[string]any, locale string) any {
	if value == nil {
		if dataType == "status" || dataType == "grade" {
			return StatusValue{Value: nil, Color: DefaultStatusColor}
		}
		return "-"
	}

	switch dataType {
	case "date":
		return formatTemporal(value, optString(opts, "format", "YYYY-MM-DD"))
	case "datetime":
		return formatTemporal(value, optString(opts, "format", "YYYY-MM-DD HH:mm"))
	case "time":
		return formatTemporal(value, optString(opts, "format", "HH:mm"))
	case "number":
		return formatNumeric(value, opts, 0)
	case "decimal":
		return formatNumeric(value, opts, 2)
	case "currency":
		symbol := optString(opts, "symbol", "$")
		return prefixIfFormatted(symbol, formatNumeric(value, opts, 2))
	case "percentage":
		return suffixIfFormatted(formatNumeric(value, opts, 1), "%")
	case "boolean":
		return formatBoolean(value, locale)
	case "status":
		return formatStatus(value, opts)
	case "grade":
		return formatGrade(value, opts)
	default:
		// Fail-open: unrecognized data types render the raw value.
		return value
	}
}

// formatTemporal renders a date-ish value with an author-facing pattern
// (YYYY-MM-DD style tokens). Unparseable input passes through raw.
func formatTemporal(value any, pattern string) any {
	t, ok := parseTime(value)
	if !ok {
		return value
	}
	return t.Format(patternToLayout(pattern))
}

var patternReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"hh", "03",
	"mm", "04",
	"ss", "05",
)

// patternToLayout translates author-facing date tokens to a Go time layout.
func patternToLayout(pattern string) string {
	return patternReplacer.Replace(pattern)
}

// formatNumeric applies grouped number formatting. Non-numeric input
// passes through raw.
func formatNumeric(value any, opts map[string]any, defaultDecimals int) any {
	f, ok := toFloat64(value)
	if !ok {
		return value
	}
	decimals := optInt(opts, "decimals", defaultDecimals)
	decPoint := optString(opts, "dec_point", ".")
	thousandsSep := optString(opts, "thousands_sep", ",")
	return formatNumber(f, decimals, decPoint, thousandsSep)
}

// formatNumber renders f with a fixed decimal count, a decimal point
// string and a thousands separator.
func formatNumber(f float64, decimals int, decPoint, thousandsSep string) string {
	if decimals < 0 {
		decimals = 0
	}
	s := strconv.FormatFloat(f, 'f', decimals, 64)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteRune(digit)
	}
	if decimals > 0 {
		b.WriteString(decPoint)
		b.WriteString(fracPart)
	}
	return b.String()
}

// prefixIfFormatted prepends the symbol only when the numeric formatting
// succeeded; raw passthrough values stay untouched.
func prefixIfFormatted(symbol string, v any) any {
	if s, ok := v.(string); ok {
		return symbol + s
	}
	return v
}

func suffixIfFormatted(v any, suffix string) any {
	if s, ok := v.(string); ok {
		return s + suffix
	}
	return v
}

// formatBoolean renders a locale-appropriate yes/no, never raw true/false.
func formatBoolean(value any, locale string) string {
	yes, no := "Yes", "No"
	if locale == "ar" {
		yes, no = "نعم", "لا"
	}
	if toBool(value) {
		return yes
	}
	return no
}

func formatStatus(value any, opts map[string]any) StatusValue {
	color := DefaultStatusColor
	if colors, ok := opts["status_colors"].(map[string]any); ok {
		if c, ok := colors[strings.ToLower(coerceString(value))].(string); ok && c != "" {
			color = c
		}
	}
	return StatusValue{Value: value, Color: color}
}

func formatGrade(value any, opts map[string]any) StatusValue {
	key := strings.ToLower(coerceString(value))
	if colors, ok := opts["grade_colors"].(map[string]any); ok {
		if c, ok := colors[key].(string); ok && c != "" {
			return StatusValue{Value: value, Color: c}
		}
		return StatusValue{Value: value, Color: DefaultStatusColor}
	}
	if c, ok := gradeColors[key]; ok {
		return StatusValue{Value: value, Color: c}
	}
	return StatusValue{Value: value, Color: DefaultStatusColor}
}

// optString reads a string option with a default.
func optString(opts map[string]any, key, def string) string {
	if opts == nil {
		return def
	}
	if s, ok := opts[key].(string); ok && s != "" {
		return s
	}
	return def
}

// optInt reads an integer option with a default. JSON numbers arrive as
// float64, so the numeric coercion helper does the work.
func optInt(opts map[string]any, key string, def int) int {
	if opts == nil {
		return def
	}
	if v, ok := opts[key]; ok {
		if f, ok := toFloat64(v); ok {
			return int(f)
		}
	}
	return def
}
