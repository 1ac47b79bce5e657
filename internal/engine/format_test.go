package engine

import (
	"testing"
	"time"
)

func TestFormatValueNilRendersDash(t *testing.T) {
	for _, dt := range []string{"string", "number", "currency", "date", ""} {
		if got := FormatValue(nil, dt, nil, "en"); got != "-" {
			t.Errorf("nil %s = %v, want -", dt, got)
		}
	}
}

func TestFormatValueNilStatusKeepsShape(t *testing.T) {
	got, ok := FormatValue(nil, "status", nil, "en").(StatusValue)
	if !ok {
		t.Fatalf("expected StatusValue, got %T", got)
	}
	if got.Value != nil || got.Color != "gray" {
		t.Errorf("nil status = %+v, want {nil gray}", got)
	}
}

func TestFormatValueDate(t *testing.T) {
	d := time.Date(2025, 9, 14, 10, 30, 0, 0, time.UTC)
	if got := FormatValue(d, "date", nil, "en"); got != "2025-09-14" {
		t.Errorf("date = %v", got)
	}
	if got := FormatValue(d, "datetime", nil, "en"); got != "2025-09-14 10:30" {
		t.Errorf("datetime = %v", got)
	}
	if got := FormatValue(d, "time", nil, "en"); got != "10:30" {
		t.Errorf("time = %v", got)
	}
}

func TestFormatValueDateCustomPattern(t *testing.T) {
	d := time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC)
	opts := map[string]any{"format": "DD/MM/YYYY"}
	if got := FormatValue(d, "date", opts, "en"); got != "14/09/2025" {
		t.Errorf("custom date = %v", got)
	}
}

func TestFormatValueDateStringInput(t *testing.T) {
	if got := FormatValue("2025-09-14T10:30:00Z", "date", nil, "en"); got != "2025-09-14" {
		t.Errorf("string date = %v", got)
	}
}

func TestFormatValueUnparseableDatePassesThrough(t *testing.T) {
	if got := FormatValue("not a date", "date", nil, "en"); got != "not a date" {
		t.Errorf("unparseable date = %v", got)
	}
}

func TestFormatValueNumber(t *testing.T) {
	if got := FormatValue(1234567.0, "number", nil, "en"); got != "1,234,567" {
		t.Errorf("number = %v", got)
	}
	if got := FormatValue(-1234.0, "number", nil, "en"); got != "-1,234" {
		t.Errorf("negative number = %v", got)
	}
}

func TestFormatValueDecimal(t *testing.T) {
	if got := FormatValue(1234.5, "decimal", nil, "en"); got != "1,234.50" {
		t.Errorf("decimal = %v", got)
	}
	opts := map[string]any{"decimals": 1.0, "dec_point": ",", "thousands_sep": "."}
	if got := FormatValue(1234.56, "decimal", opts, "en"); got != "1.234,6" {
		t.Errorf("decimal with custom separators = %v", got)
	}
}

func TestFormatValueCurrency(t *testing.T) {
	if got := FormatValue(150.0, "currency", nil, "en"); got != "$150.00" {
		t.Errorf("currency = %v", got)
	}
	opts := map[string]any{"symbol": "SAR "}
	if got := FormatValue(99.9, "currency", opts, "en"); got != "SAR 99.90" {
		t.Errorf("currency with symbol = %v", got)
	}
	// numeric strings format too
	if got := FormatValue("100", "currency", nil, "en"); got != "$100.00" {
		t.Errorf("currency from string = %v", got)
	}
	// non-numeric passes through without the symbol
	if got := FormatValue("n/a", "currency", nil, "en"); got != "n/a" {
		t.Errorf("non-numeric currency = %v", got)
	}
}

func TestFormatValuePercentage(t *testing.T) {
	if got := FormatValue(87.5, "percentage", nil, "en"); got != "87.5%" {
		t.Errorf("percentage = %v", got)
	}
	if got := FormatValue(100, "percentage", nil, "en"); got != "100.0%" {
		t.Errorf("percentage from int = %v", got)
	}
}

func TestFormatValueBoolean(t *testing.T) {
	if got := FormatValue(true, "boolean", nil, "en"); got != "Yes" {
		t.Errorf("boolean en = %v", got)
	}
	if got := FormatValue(false, "boolean", nil, "en"); got != "No" {
		t.Errorf("boolean en = %v", got)
	}
	if got := FormatValue(true, "boolean", nil, "ar"); got != "نعم" {
		t.Errorf("boolean ar = %v", got)
	}
	if got := FormatValue(0, "boolean", nil, "ar"); got != "لا" {
		t.Errorf("boolean ar = %v", got)
	}
	// sqlite integer booleans
	if got := FormatValue(int64(1), "boolean", nil, "en"); got != "Yes" {
		t.Errorf("int boolean = %v", got)
	}
}

func TestFormatValueStatus(t *testing.T) {
	opts := map[string]any{"status_colors": map[string]any{"enrolled": "green"}}
	got := FormatValue("Enrolled", "status", opts, "en").(StatusValue)
	if got.Value != "Enrolled" || got.Color != "green" {
		t.Errorf("status = %+v", got)
	}
	unknown := FormatValue("withdrawn", "status", opts, "en").(StatusValue)
	if unknown.Color != "gray" {
		t.Errorf("unknown status color = %s, want gray", unknown.Color)
	}
}

func TestFormatValueGradeBuiltinPalette(t *testing.T) {
	cases := map[string]string{
		"A": "green", "a-": "green",
		"B+": "blue",
		"C": "yellow",
		"D": "orange",
		"F": "red",
		"Z": "gray",
	}
	for grade, want := range cases {
		got := FormatValue(grade, "grade", nil, "en").(StatusValue)
		if got.Color != want {
			t.Errorf("grade %s color = %s, want %s", grade, got.Color, want)
		}
	}
}

func TestFormatValueGradeCustomPaletteReplacesBuiltin(t *testing.T) {
	opts := map[string]any{"grade_colors": map[string]any{"a": "gold"}}
	if got := FormatValue("A", "grade", opts, "en").(StatusValue); got.Color != "gold" {
		t.Errorf("custom grade color = %s", got.Color)
	}
	// a custom palette fully replaces the builtin, it is not merged
	if got := FormatValue("B", "grade", opts, "en").(StatusValue); got.Color != "gray" {
		t.Errorf("unlisted grade with custom palette = %s, want gray", got.Color)
	}
}

func TestFormatValueUnknownTypePassesThrough(t *testing.T) {
	if got := FormatValue(42, "geojson", nil, "en"); got != 42 {
		t.Errorf("unknown type = %v", got)
	}
}

func TestCastValue(t *testing.T) {
	if got := CastValue("5", "integer"); got != int64(5) {
		t.Errorf("integer cast = %v (%T)", got, got)
	}
	if got := CastValue("3.14", "float"); got != 3.14 {
		t.Errorf("float cast = %v", got)
	}
	if got := CastValue("yes", "boolean"); got != true {
		t.Errorf("boolean cast = %v", got)
	}
	if got := CastValue("2025-09-14T08:00:00Z", "date"); got != "2025-09-14" {
		t.Errorf("date cast = %v", got)
	}
	if got := CastValue(nil, "integer"); got != nil {
		t.Errorf("nil cast = %v", got)
	}
	// failed casts return the value unchanged
	if got := CastValue("abc", "integer"); got != "abc" {
		t.Errorf("failed cast = %v", got)
	}
}
