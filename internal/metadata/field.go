package metadata

// FieldDefinition describes one presentable value: how to locate it on a
// source row and how to render it. Definitions are authored externally and
// read-only to the engine.
type FieldDefinition struct {
	Key           string          `json:"key"`
	FieldName     string          `json:"field_name,omitempty"` // dotted path on the source row; defaults to Key
	LabelEN       string          `json:"label_en,omitempty"`
	LabelAR       string          `json:"label_ar,omitempty"`
	DataType      string          `json:"data_type,omitempty"`
	FormatOptions map[string]any  `json:"format_options,omitempty"`
	OptionsSource *OptionsSource  `json:"options_source,omitempty"`
	Conditions    *ConditionGroup `json:"conditions,omitempty"`
	IsRequired    bool            `json:"is_required,omitempty"`
	IsVisible     *bool           `json:"is_visible,omitempty"` // nil means visible
	SortOrder     int             `json:"sort_order,omitempty"`
}

// SourcePath returns the dotted path used to read the raw value from a row.
func (f *FieldDefinition) SourcePath() string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return f.Key
}

// Label returns the locale-appropriate label, falling back to English and
// then to the field key.
func (f *FieldDefinition) Label(locale string) string {
	if locale == "ar" && f.LabelAR != "" {
		return f.LabelAR
	}
	if f.LabelEN != "" {
		return f.LabelEN
	}
	return f.Key
}

// Visible reports the authored visibility flag (not the conditional logic).
func (f *FieldDefinition) Visible() bool {
	return f.IsVisible == nil || *f.IsVisible
}

// localizedLabel is shared by the definition types that carry en/ar pairs.
func localizedLabel(locale, en, ar string) string {
	if locale == "ar" && ar != "" {
		return ar
	}
	return en
}
