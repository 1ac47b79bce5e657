package engine

import (
	"context"
	"testing"

	"campus-backend/internal/metadata"
)

func formField(key, section string, sortOrder int) metadata.FormField {
	return metadata.FormField{
		FieldDefinition: metadata.FieldDefinition{Key: key, SortOrder: sortOrder},
		Section:         section,
	}
}

func TestResolveSchemaSectionsSorted(t *testing.T) {
	r := NewFormResolver(nil)
	def := &metadata.FormDefinition{
		Code:   "enrollment",
		NameEN: "Enrollment",
		Sections: []metadata.FormSection{
			{Key: "fees", TitleEN: "Fees", SortOrder: 2},
			{Key: "personal", TitleEN: "Personal", SortOrder: 1},
		},
		Fields: []metadata.FormField{
			formField("amount", "fees", 1),
			formField("name", "personal", 1),
			formField("birth_date", "personal", 2),
		},
	}

	schema := r.ResolveSchema(context.Background(), def, nil, "en")
	if schema.Name != "Enrollment" {
		t.Errorf("name = %q", schema.Name)
	}
	if len(schema.Sections) != 2 {
		t.Fatalf("got %d sections", len(schema.Sections))
	}
	if schema.Sections[0].Key != "personal" || schema.Sections[1].Key != "fees" {
		t.Errorf("section order = %s, %s", schema.Sections[0].Key, schema.Sections[1].Key)
	}
	personal := schema.Sections[0]
	if len(personal.Fields) != 2 || personal.Fields[0].Key != "name" {
		t.Errorf("personal fields = %v", personal.Fields)
	}
}

func TestResolveSchemaConditionalSection(t *testing.T) {
	r := NewFormResolver(nil)
	def := &metadata.FormDefinition{
		Code: "f",
		Sections: []metadata.FormSection{
			{Key: "base"},
			{Key: "scholarship", Conditions: &metadata.ConditionGroup{
				Conditions: []metadata.ConditionRule{
					{Field: "has_scholarship", Operator: "equals", Value: true},
				},
			}},
		},
		Fields: []metadata.FormField{
			formField("name", "base", 0),
			formField("sponsor", "scholarship", 0),
		},
	}

	schema := r.ResolveSchema(context.Background(), def, map[string]any{"has_scholarship": false}, "en")
	if len(schema.Sections) != 1 || schema.Sections[0].Key != "base" {
		t.Errorf("hidden section leaked: %v", schema.Sections)
	}

	schema = r.ResolveSchema(context.Background(), def, map[string]any{"has_scholarship": true}, "en")
	if len(schema.Sections) != 2 {
		t.Errorf("section should appear when its condition holds: %v", schema.Sections)
	}
}

func TestResolveSchemaConditionalField(t *testing.T) {
	r := NewFormResolver(nil)
	other := formField("other_reason", "base", 1)
	other.Conditions = &metadata.ConditionGroup{Conditions: []metadata.ConditionRule{
		{Field: "reason", Operator: "equals", Value: "other"},
	}}
	def := &metadata.FormDefinition{
		Code:     "f",
		Sections: []metadata.FormSection{{Key: "base"}},
		Fields:   []metadata.FormField{formField("reason", "base", 0), other},
	}

	schema := r.ResolveSchema(context.Background(), def, map[string]any{"reason": "transfer"}, "en")
	if len(schema.Sections[0].Fields) != 1 {
		t.Errorf("hidden field leaked: %v", schema.Sections[0].Fields)
	}

	schema = r.ResolveSchema(context.Background(), def, map[string]any{"reason": "other"}, "en")
	if len(schema.Sections[0].Fields) != 2 {
		t.Errorf("field should appear when its condition holds")
	}
}

func TestResolveSchemaOrphanFields(t *testing.T) {
	r := NewFormResolver(nil)
	def := &metadata.FormDefinition{
		Code:     "f",
		Sections: []metadata.FormSection{{Key: "base"}},
		Fields: []metadata.FormField{
			formField("name", "base", 0),
			formField("zz_extra", "undeclared", 0),
			formField("aa_extra", "undeclared", 0),
		},
	}

	schema := r.ResolveSchema(context.Background(), def, nil, "en")
	if len(schema.Sections) != 2 {
		t.Fatalf("got %d sections", len(schema.Sections))
	}
	trailing := schema.Sections[1]
	if trailing.Key != "" {
		t.Errorf("trailing section key = %q", trailing.Key)
	}
	if len(trailing.Fields) != 2 || trailing.Fields[0].Key != "aa_extra" {
		t.Errorf("orphans = %v", trailing.Fields)
	}
}

func TestResolveSchemaLocalizedField(t *testing.T) {
	r := NewFormResolver(nil)
	f := formField("name", "base", 0)
	f.LabelEN = "Name"
	f.LabelAR = "الاسم"
	f.PlaceholderEN = "Full name"
	f.PlaceholderAR = "الاسم الكامل"
	def := &metadata.FormDefinition{
		Code:     "f",
		Sections: []metadata.FormSection{{Key: "base", TitleEN: "Basic", TitleAR: "أساسي"}},
		Fields:   []metadata.FormField{f},
	}

	schema := r.ResolveSchema(context.Background(), def, nil, "ar")
	if schema.Sections[0].Title != "أساسي" {
		t.Errorf("section title = %q", schema.Sections[0].Title)
	}
	got := schema.Sections[0].Fields[0]
	if got.Label != "الاسم" || got.Placeholder != "الاسم الكامل" {
		t.Errorf("localized field = %+v", got)
	}
}

func TestResolveSchemaFieldOptions(t *testing.T) {
	options := NewOptionResolver(nil, nil)
	r := NewFormResolver(options)
	f := formField("semester", "base", 0)
	f.OptionsSource = &metadata.OptionsSource{
		Kind:       metadata.OptionsSpecial,
		SpecialSet: metadata.SpecialSemesters,
	}
	def := &metadata.FormDefinition{
		Code:     "f",
		Sections: []metadata.FormSection{{Key: "base"}},
		Fields:   []metadata.FormField{f},
	}

	schema := r.ResolveSchema(context.Background(), def, nil, "en")
	got := schema.Sections[0].Fields[0]
	if len(got.Options) != 3 || got.Options[0].Value != "fall" {
		t.Errorf("options = %v", got.Options)
	}
}

func TestComputeFields(t *testing.T) {
	r := NewFormResolver(nil)
	total := formField("total", "fees", 0)
	total.ComputedFormula = &metadata.ComputedFormula{Expression: "price * quantity"}
	def := &metadata.FormDefinition{
		Code:   "invoice",
		Fields: []metadata.FormField{formField("price", "fees", 0), total},
	}

	computed := r.ComputeFields(def, map[string]any{"price": 25.0, "quantity": 4})
	if len(computed) != 1 {
		t.Fatalf("computed = %v", computed)
	}
	if got, ok := toFloat64(computed["total"]); !ok || got != 100.0 {
		t.Errorf("total = %v", computed["total"])
	}
}

func TestComputeFieldsBadFormulaSkipped(t *testing.T) {
	r := NewFormResolver(nil)
	bad := formField("broken", "", 0)
	bad.ComputedFormula = &metadata.ComputedFormula{Expression: "price *"}
	good := formField("doubled", "", 0)
	good.ComputedFormula = &metadata.ComputedFormula{Expression: "price * 2"}
	def := &metadata.FormDefinition{Code: "f", Fields: []metadata.FormField{bad, good}}

	computed := r.ComputeFields(def, map[string]any{"price": 10})
	if _, ok := computed["broken"]; ok {
		t.Error("broken formula should be skipped")
	}
	if got, ok := toFloat64(computed["doubled"]); !ok || got != 20.0 {
		t.Errorf("doubled = %v", computed["doubled"])
	}
}

func TestComputeFieldsCachesCompiledProgram(t *testing.T) {
	r := NewFormResolver(nil)
	f := formField("total", "", 0)
	f.ComputedFormula = &metadata.ComputedFormula{Expression: "a + b"}
	def := &metadata.FormDefinition{Code: "f", Fields: []metadata.FormField{f}}

	r.ComputeFields(def, map[string]any{"a": 1, "b": 2})
	cached := def.Fields[0].ComputedFormula.Compiled
	if cached == nil {
		t.Fatal("compiled program not cached")
	}

	computed := r.ComputeFields(def, map[string]any{"a": 3, "b": 4})
	if got, ok := toFloat64(computed["total"]); !ok || got != 7.0 {
		t.Errorf("total = %v", computed["total"])
	}
	if def.Fields[0].ComputedFormula.Compiled != cached {
		t.Error("second run should reuse the cached program")
	}
}
