package metadata

// TableDefinition is the stored configuration for one dynamic table.
type TableDefinition struct {
	Code            string          `json:"code"`
	NameEN          string          `json:"name_en"`
	NameAR          string          `json:"name_ar,omitempty"`
	DataSource      string          `json:"data_source"` // backing table or entity name
	BaseQuery       []ConditionRule `json:"base_query,omitempty"`
	DefaultSort     []SortSpec      `json:"default_sort,omitempty"`
	DefaultPageSize int             `json:"default_page_size,omitempty"`
	IsSearchable    bool            `json:"is_searchable,omitempty"`
	Columns         []TableColumn   `json:"columns,omitempty"`
	Filters         []TableFilter   `json:"filters,omitempty"`
	Actions         []TableAction   `json:"actions,omitempty"`
	IsActive        bool            `json:"is_active"`
}

// Name returns the locale-appropriate table name.
func (t *TableDefinition) Name(locale string) string {
	return localizedLabel(locale, t.NameEN, t.NameAR)
}

// Column returns the column with the given key, or nil.
func (t *TableDefinition) Column(key string) *TableColumn {
	for i := range t.Columns {
		if t.Columns[i].Key == key {
			return &t.Columns[i]
		}
	}
	return nil
}

// PageSize returns the authored default page size, clamped to a sane default.
func (t *TableDefinition) PageSize() int {
	if t.DefaultPageSize > 0 {
		return t.DefaultPageSize
	}
	return 25
}

// TableColumn describes one table column: source field, header, data type,
// formatting and which runtime behaviors (sort, search, filter) it allows.
type TableColumn struct {
	Key           string         `json:"key"`
	FieldName     string         `json:"field_name,omitempty"`
	HeaderEN      string         `json:"header_en,omitempty"`
	HeaderAR      string         `json:"header_ar,omitempty"`
	DataType      string         `json:"data_type,omitempty"`
	FormatOptions map[string]any `json:"format_options,omitempty"`
	IsVisible     *bool          `json:"is_visible,omitempty"`
	IsSortable    bool           `json:"is_sortable,omitempty"`
	IsSearchable  bool           `json:"is_searchable,omitempty"`
	SortOrder     int            `json:"sort_order,omitempty"`
}

// SourcePath returns the dotted path used to read the raw cell value.
func (c *TableColumn) SourcePath() string {
	if c.FieldName != "" {
		return c.FieldName
	}
	return c.Key
}

// Header returns the locale-appropriate column header.
func (c *TableColumn) Header(locale string) string {
	if h := localizedLabel(locale, c.HeaderEN, c.HeaderAR); h != "" {
		return h
	}
	return c.Key
}

// Visible reports the authored visibility flag.
func (c *TableColumn) Visible() bool {
	return c.IsVisible == nil || *c.IsVisible
}

// TableFilter describes one user-facing filter control.
type TableFilter struct {
	Key           string         `json:"key"`
	FieldName     string         `json:"field_name,omitempty"`
	LabelEN       string         `json:"label_en,omitempty"`
	LabelAR       string         `json:"label_ar,omitempty"`
	FilterType    string         `json:"filter_type,omitempty"` // select, text, date_range, ...
	Operator      string         `json:"operator,omitempty"`    // defaults to equals
	OptionsSource *OptionsSource `json:"options_source,omitempty"`
	Options       []Option       `json:"options,omitempty"`
	SortOrder     int            `json:"sort_order,omitempty"`
}

// Column returns the backing column name for this filter.
func (f *TableFilter) Column() string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return f.Key
}

// Label returns the locale-appropriate filter label.
func (f *TableFilter) Label(locale string) string {
	if l := localizedLabel(locale, f.LabelEN, f.LabelAR); l != "" {
		return l
	}
	return f.Key
}

// TableAction is a row or bulk action whose availability is gated per row
// by a condition group.
type TableAction struct {
	Key        string          `json:"key"`
	LabelEN    string          `json:"label_en,omitempty"`
	LabelAR    string          `json:"label_ar,omitempty"`
	ActionType string          `json:"action_type,omitempty"` // link, modal, api_call
	Target     string          `json:"target,omitempty"`
	IsBulk     bool            `json:"is_bulk,omitempty"`
	Conditions *ConditionGroup `json:"conditions,omitempty"`
	SortOrder  int             `json:"sort_order,omitempty"`
}

// Label returns the locale-appropriate action label.
func (a *TableAction) Label(locale string) string {
	if l := localizedLabel(locale, a.LabelEN, a.LabelAR); l != "" {
		return l
	}
	return a.Key
}
