package metadata

// Data source strategies for report fetches.
const (
	SourceQuery     = "query"
	SourceModel     = "model"
	SourceProcedure = "procedure"
	SourceAPI       = "api"
)

// ReportDefinition is the stored configuration for one report: where its
// rows come from and how they are shaped, aggregated and charted.
type ReportDefinition struct {
	Code           string                `json:"code"`
	NameEN         string                `json:"name_en"`
	NameAR         string                `json:"name_ar,omitempty"`
	Category       string                `json:"category,omitempty"`
	DataSourceType string                `json:"data_source_type"`
	DataSourceRef  string                `json:"data_source_ref"` // query text, entity/table name, procedure name or endpoint
	ModelRelations []string              `json:"model_relations,omitempty"`
	Parameters     []ParameterDefinition `json:"parameters,omitempty"`
	DefaultValues  map[string]any        `json:"default_values,omitempty"`
	Fields         []FieldDefinition     `json:"fields,omitempty"`
	Grouping       *GroupingSpec         `json:"grouping,omitempty"`
	Aggregations   []AggregationSpec     `json:"aggregations,omitempty"`
	Sorting        []SortSpec            `json:"sorting,omitempty"`
	Charts         []ChartSpec           `json:"charts,omitempty"`
	IsActive       bool                  `json:"is_active"`
	SortOrder      int                   `json:"sort_order,omitempty"`
}

// Name returns the locale-appropriate report name.
func (r *ReportDefinition) Name(locale string) string {
	return localizedLabel(locale, r.NameEN, r.NameAR)
}

// Parameter returns the parameter with the given key, or nil.
func (r *ReportDefinition) Parameter(key string) *ParameterDefinition {
	for i := range r.Parameters {
		if r.Parameters[i].Key == key {
			return &r.Parameters[i]
		}
	}
	return nil
}

// ParameterDefinition is a FieldDefinition variant for report inputs: it
// adds the entity column it filters, a cast type for raw input, dependency
// gating and validation rules.
type ParameterDefinition struct {
	Key           string          `json:"key"`
	FieldName     string          `json:"field_name,omitempty"` // entity column this parameter filters
	LabelEN       string          `json:"label_en,omitempty"`
	LabelAR       string          `json:"label_ar,omitempty"`
	InputType     string          `json:"input_type,omitempty"`
	CastTo        string          `json:"cast_to,omitempty"` // integer, float, boolean, date, datetime, array, string
	OptionsSource *OptionsSource  `json:"options_source,omitempty"`
	Options       []Option        `json:"options,omitempty"`
	DefaultValue  any             `json:"default_value,omitempty"`
	IsRequired    bool            `json:"is_required,omitempty"`
	IsVisible     *bool           `json:"is_visible,omitempty"`
	DependsOn     *ConditionGroup `json:"depends_on,omitempty"` // gates visibility on other parameter values
	Validation    map[string]any  `json:"validation,omitempty"` // min, max, min_length, max_length, pattern, in
	SortOrder     int             `json:"sort_order,omitempty"`
}

// Label returns the locale-appropriate parameter label.
func (p *ParameterDefinition) Label(locale string) string {
	if l := localizedLabel(locale, p.LabelEN, p.LabelAR); l != "" {
		return l
	}
	return p.Key
}

// Visible reports the authored visibility flag.
func (p *ParameterDefinition) Visible() bool {
	return p.IsVisible == nil || *p.IsVisible
}

// GroupingSpec partitions report rows by a field value.
type GroupingSpec struct {
	Field string `json:"field"`
}

// AggregationSpec computes one summary value over the fetched rows.
type AggregationSpec struct {
	Field    string `json:"field"`
	Function string `json:"function"` // sum, avg, count, min, max
	Label    string `json:"label,omitempty"`
}

// ResultLabel is the key under which the aggregation appears in results.
func (a AggregationSpec) ResultLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Function + "_" + a.Field
}

// SortSpec is one ordering entry applied by the model fetch strategy.
type SortSpec struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"` // asc (default) or desc
}

// ChartSpec projects fetched rows into a label/value series.
// With GroupField set, rows are bucketed and DataField summed per bucket;
// otherwise LabelField/DataField are read pairwise in fetch order.
type ChartSpec struct {
	Key        string   `json:"key"`
	TitleEN    string   `json:"title_en,omitempty"`
	TitleAR    string   `json:"title_ar,omitempty"`
	ChartType  string   `json:"chart_type,omitempty"` // bar, line, pie, doughnut
	DataField  string   `json:"data_field"`
	LabelField string   `json:"label_field,omitempty"`
	GroupField string   `json:"group_field,omitempty"`
	Colors     []string `json:"colors,omitempty"`
	SortOrder  int      `json:"sort_order,omitempty"`
}

// Title returns the locale-appropriate chart title.
func (c *ChartSpec) Title(locale string) string {
	return localizedLabel(locale, c.TitleEN, c.TitleAR)
}
