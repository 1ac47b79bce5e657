package metadata

// FormDefinition is the stored configuration for one dynamic form.
type FormDefinition struct {
	Code     string        `json:"code"`
	NameEN   string        `json:"name_en"`
	NameAR   string        `json:"name_ar,omitempty"`
	Sections []FormSection `json:"sections,omitempty"`
	Fields   []FormField   `json:"fields,omitempty"`
	IsActive bool          `json:"is_active"`
}

// Name returns the locale-appropriate form name.
func (f *FormDefinition) Name(locale string) string {
	return localizedLabel(locale, f.NameEN, f.NameAR)
}

// FormSection groups fields and can itself be conditionally shown.
type FormSection struct {
	Key        string          `json:"key"`
	TitleEN    string          `json:"title_en,omitempty"`
	TitleAR    string          `json:"title_ar,omitempty"`
	Conditions *ConditionGroup `json:"conditions,omitempty"`
	SortOrder  int             `json:"sort_order,omitempty"`
}

// Title returns the locale-appropriate section title.
func (s *FormSection) Title(locale string) string {
	return localizedLabel(locale, s.TitleEN, s.TitleAR)
}

// FormField extends the presentational field definition with form concerns:
// editability flags, a computed formula and the section it belongs to.
type FormField struct {
	FieldDefinition

	Section         string           `json:"section,omitempty"`
	PlaceholderEN   string           `json:"placeholder_en,omitempty"`
	PlaceholderAR   string           `json:"placeholder_ar,omitempty"`
	HelpTextEN      string           `json:"help_text_en,omitempty"`
	HelpTextAR      string           `json:"help_text_ar,omitempty"`
	InputType       string           `json:"input_type,omitempty"`
	DefaultValue    any              `json:"default_value,omitempty"`
	IsReadonly      bool             `json:"is_readonly,omitempty"`
	ComputedFormula *ComputedFormula `json:"computed_formula,omitempty"`
}

// Placeholder returns the locale-appropriate placeholder text.
func (f *FormField) Placeholder(locale string) string {
	return localizedLabel(locale, f.PlaceholderEN, f.PlaceholderAR)
}

// HelpText returns the locale-appropriate help text.
func (f *FormField) HelpText(locale string) string {
	return localizedLabel(locale, f.HelpTextEN, f.HelpTextAR)
}

// ComputedFormula derives a field value from the rest of the form data.
// The expression runs with the current form values as its environment, so
// fields are referenced by key ("price * quantity"). Compiled caches the
// compiled program after first use.
type ComputedFormula struct {
	Expression string `json:"expression"`
	Compiled   any    `json:"-"`
}
