package metadata

import (
	"encoding/json"
	"strings"
)

// Option source kinds.
const (
	OptionsStatic  = "static"
	OptionsTable   = "table"
	OptionsSpecial = "special"
	OptionsAPI     = "api"
)

// Option is one selectable value/label pair.
type Option struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// OptionsSource describes where a selectable option list comes from.
// Authors write it as a compact descriptor string:
//
//	"colleges:id,name_en,name_ar"  lookup table with value and label columns
//	"academic_years"               synthesized special set
//	"api:/api/colleges"            external endpoint
//
// or inline a static list on the owning field. The zero value means "no source".
type OptionsSource struct {
	Kind         string            `json:"kind"`
	Static       []Option          `json:"static,omitempty"`
	Table        string            `json:"table,omitempty"`
	ValueColumn  string            `json:"value_column,omitempty"`
	LabelColumns map[string]string `json:"label_columns,omitempty"` // locale -> column, plus "default"
	Filter       map[string]any    `json:"filter,omitempty"`
	SpecialSet   string            `json:"special_set,omitempty"`
	Endpoint     string            `json:"endpoint,omitempty"`
}

// Special set names recognized by the option resolver.
const (
	SpecialAcademicYears = "academic_years"
	SpecialSemesters     = "semesters"
)

// ParseOptionsSource interprets the author-facing descriptor string.
// Unknown shapes degrade to a table lookup with default columns rather
// than failing, matching the fail-open policy of the rest of the engine.
func ParseOptionsSource(descriptor string) *OptionsSource {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return nil
	}

	if descriptor == SpecialAcademicYears || descriptor == SpecialSemesters {
		return &OptionsSource{Kind: OptionsSpecial, SpecialSet: descriptor}
	}

	if strings.HasPrefix(descriptor, "api:") {
		return &OptionsSource{Kind: OptionsAPI, Endpoint: descriptor[4:]}
	}

	table := descriptor
	columns := []string{"id", "name"}
	if idx := strings.Index(descriptor, ":"); idx >= 0 {
		table = descriptor[:idx]
		if rest := descriptor[idx+1:]; rest != "" {
			columns = strings.Split(rest, ",")
			for i := range columns {
				columns[i] = strings.TrimSpace(columns[i])
			}
		}
	}

	src := &OptionsSource{
		Kind:        OptionsTable,
		Table:       table,
		ValueColumn: columns[0],
	}
	src.LabelColumns = labelColumnsFor(columns)
	return src
}

// labelColumnsFor derives the locale -> label column map from a column list.
// Columns named *_en / *_ar become locale-specific labels; the second column
// (or the value column when absent) is the default label.
func labelColumnsFor(columns []string) map[string]string {
	labels := make(map[string]string)
	for _, col := range columns {
		switch {
		case strings.HasSuffix(col, "_en"):
			labels["en"] = col
		case strings.HasSuffix(col, "_ar"):
			labels["ar"] = col
		}
	}
	if len(columns) > 1 {
		labels["default"] = columns[1]
	} else {
		labels["default"] = columns[0]
	}
	return labels
}

// Columns returns the distinct column names this source reads from its table.
func (s *OptionsSource) Columns() []string {
	seen := map[string]bool{s.ValueColumn: true}
	cols := []string{s.ValueColumn}
	for _, c := range s.LabelColumns {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return cols
}

// UnmarshalJSON accepts either the descriptor string form or the full object
// form, so stored configuration can use whichever the authoring tool emits.
func (s *OptionsSource) UnmarshalJSON(data []byte) error {
	var descriptor string
	if err := json.Unmarshal(data, &descriptor); err == nil {
		if parsed := ParseOptionsSource(descriptor); parsed != nil {
			*s = *parsed
		}
		return nil
	}

	type plain OptionsSource
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = OptionsSource(p)
	if s.Kind == "" {
		switch {
		case s.SpecialSet != "":
			s.Kind = OptionsSpecial
		case s.Endpoint != "":
			s.Kind = OptionsAPI
		case s.Table != "":
			s.Kind = OptionsTable
		default:
			s.Kind = OptionsStatic
		}
	}
	return nil
}
