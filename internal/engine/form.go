package engine

import (
	"context"
	"log"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"campus-backend/internal/metadata"
)

// FormSchema is the rendered shape of a form for one locale and one set of
// current values.
type FormSchema struct {
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Sections []ResolvedSection `json:"sections"`
}

type ResolvedSection struct {
	Key    string          `json:"key"`
	Title  string          `json:"title"`
	Fields []ResolvedField `json:"fields"`
}

type ResolvedField struct {
	Key          string            `json:"key"`
	Label        string            `json:"label"`
	InputType    string            `json:"input_type"`
	DataType     string            `json:"data_type"`
	Placeholder  string            `json:"placeholder,omitempty"`
	HelpText     string            `json:"help_text,omitempty"`
	Required     bool              `json:"required"`
	Readonly     bool              `json:"readonly"`
	Computed     bool              `json:"computed"`
	DefaultValue any               `json:"default_value,omitempty"`
	Options      []metadata.Option `json:"options,omitempty"`
}

// FormResolver renders form definitions against current field values.
type FormResolver struct {
	Options *OptionResolver
}

func NewFormResolver(options *OptionResolver) *FormResolver {
	return &FormResolver{Options: options}
}

// ResolveSchema produces the visible sections and fields of a form for the
// given current values. Conditional sections and fields are evaluated
// against the values; hidden ones are omitted entirely.
func (r *FormResolver) ResolveSchema(ctx context.Context, def *metadata.FormDefinition, values map[string]any, locale string) *FormSchema {
	schema := &FormSchema{
		Code:     def.Code,
		Name:     def.Name(locale),
		Sections: []ResolvedSection{},
	}

	sections := make([]metadata.FormSection, len(def.Sections))
	copy(sections, def.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].SortOrder < sections[j].SortOrder
	})

	fields := make([]metadata.FormField, len(def.Fields))
	copy(fields, def.Fields)
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].SortOrder < fields[j].SortOrder
	})

	bySection := make(map[string][]ResolvedField)
	for i := range fields {
		f := &fields[i]
		if !f.Visible() || !EvaluateConditions(f.Conditions, values) {
			continue
		}
		bySection[f.Section] = append(bySection[f.Section], r.resolveField(ctx, f, locale))
	}

	seen := make(map[string]bool)
	for i := range sections {
		s := &sections[i]
		seen[s.Key] = true
		if !EvaluateConditions(s.Conditions, values) {
			continue
		}
		resolved := bySection[s.Key]
		if resolved == nil {
			resolved = []ResolvedField{}
		}
		schema.Sections = append(schema.Sections, ResolvedSection{
			Key:    s.Key,
			Title:  s.Title(locale),
			Fields: resolved,
		})
	}

	// Fields referencing no declared section land in an unnamed trailing
	// section so they are never silently dropped.
	var orphans []ResolvedField
	for key, resolved := range bySection {
		if !seen[key] {
			orphans = append(orphans, resolved...)
		}
	}
	if len(orphans) > 0 {
		sort.SliceStable(orphans, func(i, j int) bool { return orphans[i].Key < orphans[j].Key })
		schema.Sections = append(schema.Sections, ResolvedSection{Key: "", Fields: orphans})
	}

	return schema
}

func (r *FormResolver) resolveField(ctx context.Context, f *metadata.FormField, locale string) ResolvedField {
	resolved := ResolvedField{
		Key:          f.Key,
		Label:        f.Label(locale),
		InputType:    f.InputType,
		DataType:     f.DataType,
		Placeholder:  f.Placeholder(locale),
		HelpText:     f.HelpText(locale),
		Required:     f.IsRequired,
		Readonly:     f.IsReadonly,
		Computed:     f.ComputedFormula != nil,
		DefaultValue: f.DefaultValue,
	}
	if f.OptionsSource != nil && r.Options != nil {
		resolved.Options = r.Options.Resolve(ctx, f.OptionsSource, locale)
	}
	return resolved
}

// ComputeFields evaluates every computed formula against the submitted
// values and returns the derived values keyed by field key. A formula
// that fails to compile or evaluate is skipped with a warning; one bad
// formula must not poison the rest of the form.
func (r *FormResolver) ComputeFields(def *metadata.FormDefinition, values map[string]any) map[string]any {
	computed := make(map[string]any)
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.ComputedFormula == nil || f.ComputedFormula.Expression == "" {
			continue
		}
		value, err := evaluateFormula(f.ComputedFormula, values)
		if err != nil {
			log.Printf("WARN: computed field %s on form %s: %v", f.Key, def.Code, err)
			continue
		}
		computed[f.Key] = value
	}
	return computed
}

// evaluateFormula runs a computed formula, compiling it on first use and
// caching the program on the definition.
func evaluateFormula(formula *metadata.ComputedFormula, env map[string]any) (any, error) {
	prog, ok := formula.Compiled.(*vm.Program)
	if !ok || prog == nil {
		compiled, err := expr.Compile(formula.Expression)
		if err != nil {
			return nil, err
		}
		formula.Compiled = compiled
		prog = compiled
	}
	if env == nil {
		env = map[string]any{}
	}
	return expr.Run(prog, env)
}
