package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"campus-backend/internal/instrument"
	"campus-backend/internal/metadata"
)

// RunRequest carries the per-invocation inputs of a report run.
type RunRequest struct {
	Params map[string]any
	UserID string
	Locale string
}

// RunMeta summarizes one report run.
type RunMeta struct {
	TotalRows       int            `json:"total_rows"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Parameters      map[string]any `json:"parameters"`
}

// GroupedRows is one partition of the result set when grouping is configured.
type GroupedRows struct {
	Group string `json:"group"`
	Items []Row  `json:"items"`
	Count int    `json:"count"`
}

// ChartData is one projected label/value series.
type ChartData struct {
	Key    string   `json:"key"`
	Title  string   `json:"title"`
	Type   string   `json:"type"`
	Labels []string `json:"labels"`
	Data   []any    `json:"data"`
	Colors []string `json:"colors"`
}

// RunResult is the output of one report run. It is produced fresh per
// invocation and never persisted by the engine.
type RunResult struct {
	Rows         []Row          `json:"rows"`
	Groups       []GroupedRows  `json:"groups,omitempty"`
	Aggregations map[string]any `json:"aggregations"`
	Charts       []ChartData    `json:"charts"`
	Meta         RunMeta        `json:"meta"`
}

// ReportRunner orchestrates the report pipeline:
// parameter merge, fetch, grouping, aggregation, formatting, chart
// projection and audit logging. It is stateless; concurrent runs share
// nothing but the (read-only) collaborators.
type ReportRunner struct {
	Sources DataSources
	Audit   AuditSink
	Now     func() time.Time
}

func NewReportRunner(sources DataSources, audit AuditSink) *ReportRunner {
	return &ReportRunner{Sources: sources, Audit: audit, Now: time.Now}
}

// Run executes the report definition with the supplied runtime parameters.
// A fetch failure is the only fatal outcome; it aborts the run with a
// ReportExecutionError and produces no result. Every later stage degrades
// in place on bad data.
func (r *ReportRunner) Run(ctx context.Context, def *metadata.ReportDefinition, req RunRequest) (*RunResult, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "report", "report.run")
	defer span.End()
	span.SetEntity("report", def.Code)

	now := r.now()
	started := now()

	params := MergeParameters(def, req.Params)

	rows, err := r.fetch(ctx, def, params)
	if err != nil {
		span.SetStatus("error")
		span.SetMetadata("error", err.Error())
		elapsed := now().Sub(started).Milliseconds()
		r.recordRun(ctx, RunLogEntry{
			ReportCode:      def.Code,
			UserID:          req.UserID,
			Parameters:      params,
			ExecutionTimeMs: elapsed,
			Status:          RunStatusFailed,
			ErrorMessage:    err.Error(),
		})
		return nil, &ReportExecutionError{ReportCode: def.Code, Stage: "fetch", Err: err}
	}

	result := &RunResult{
		Aggregations: map[string]any{},
		Charts:       []ChartData{},
	}

	for _, agg := range def.Aggregations {
		result.Aggregations[agg.ResultLabel()] = computeAggregation(rows, agg)
	}

	if def.Grouping != nil && def.Grouping.Field != "" {
		groups := groupRows(rows, def.Grouping.Field)
		for i := range groups {
			groups[i].Items = r.formatRows(groups[i].Items, def.Fields, req.Locale)
		}
		result.Groups = groups
		result.Rows = []Row{}
	} else {
		result.Rows = r.formatRows(rows, def.Fields, req.Locale)
	}

	// Charts always project the fetched rows, never grouped or formatted
	// ones, so chart values reflect raw numeric data.
	for i := range def.Charts {
		result.Charts = append(result.Charts, projectChart(rows, &def.Charts[i], req.Locale))
	}

	elapsed := now().Sub(started).Milliseconds()
	result.Meta = RunMeta{
		TotalRows:       len(rows),
		ExecutionTimeMs: elapsed,
		GeneratedAt:     now().UTC(),
		Parameters:      params,
	}

	r.recordRun(ctx, RunLogEntry{
		ReportCode:      def.Code,
		UserID:          req.UserID,
		Parameters:      params,
		RowCount:        len(rows),
		ExecutionTimeMs: elapsed,
		Status:          RunStatusCompleted,
	})

	span.SetMetadata("row_count", len(rows))
	span.SetStatus("ok")
	return result, nil
}

func (r *ReportRunner) now() func() time.Time {
	if r.Now != nil {
		return r.Now
	}
	return time.Now
}

// fetch dispatches on the declared data source strategy. An unknown
// strategy yields an empty row set, not an error.
func (r *ReportRunner) fetch(ctx context.Context, def *metadata.ReportDefinition, params map[string]any) ([]Row, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "report", "report.fetch")
	defer span.End()
	span.SetMetadata("source_type", def.DataSourceType)

	var rows []Row
	var err error

	switch def.DataSourceType {
	case metadata.SourceQuery:
		if r.Sources.Queries == nil {
			err = fmt.Errorf("no raw query fetcher configured")
			break
		}
		rows, err = r.Sources.Queries.RunQuery(ctx, def.DataSourceRef, params)
	case metadata.SourceModel:
		if r.Sources.Entities == nil {
			err = fmt.Errorf("no entity querier configured")
			break
		}
		rows, err = r.Sources.Entities.QueryEntities(ctx, def.DataSourceRef, buildEntityQuery(def, params))
	case metadata.SourceProcedure:
		if r.Sources.Procedures == nil {
			err = fmt.Errorf("no procedure caller configured")
			break
		}
		rows, err = r.Sources.Procedures.CallProcedure(ctx, def.DataSourceRef, procedureArgs(def, params))
	case metadata.SourceAPI:
		if r.Sources.External == nil {
			err = fmt.Errorf("no external fetcher configured")
			break
		}
		rows, err = r.Sources.External.FetchExternal(ctx, def.DataSourceRef, params)
	default:
		rows = []Row{}
	}

	if err != nil {
		span.SetStatus("error")
		return nil, err
	}
	span.SetStatus("ok")
	span.SetMetadata("row_count", len(rows))
	return rows, nil
}

// buildEntityQuery turns declared parameters into equality filters for the
// model strategy: a parameter contributes a filter when it names an entity
// column and a value is present.
func buildEntityQuery(def *metadata.ReportDefinition, params map[string]any) EntityQuery {
	q := EntityQuery{Sorting: def.Sorting, Relations: def.ModelRelations}
	for i := range def.Parameters {
		p := &def.Parameters[i]
		if p.FieldName == "" {
			continue
		}
		value, ok := params[p.Key]
		if !ok || value == nil {
			continue
		}
		q.Filters = append(q.Filters, EntityFilter{Field: p.FieldName, Value: value})
	}
	return q
}

// procedureArgs produces positional arguments in declared parameter order.
// (The map itself has no stable order, so declaration order is the contract.)
func procedureArgs(def *metadata.ReportDefinition, params map[string]any) []any {
	var args []any
	for i := range def.Parameters {
		args = append(args, params[def.Parameters[i].Key])
	}
	return args
}

// groupRows partitions rows by the stringified value of a field,
// preserving first-seen group order.
func groupRows(rows []Row, field string) []GroupedRows {
	index := make(map[string]int)
	var groups []GroupedRows
	for _, row := range rows {
		key := coerceString(resolveFieldPath(row, field))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, GroupedRows{Group: key})
		}
		groups[i].Items = append(groups[i].Items, row)
		groups[i].Count++
	}
	return groups
}

// computeAggregation evaluates one aggregation spec over the fetched rows.
// count ignores the field; the numeric functions skip missing and
// non-numeric values entirely rather than coercing them. An empty input
// yields null for avg/min/max and 0 for sum; unknown functions yield null.
func computeAggregation(rows []Row, spec metadata.AggregationSpec) any {
	if spec.Function == "count" {
		return len(rows)
	}

	var values []float64
	for _, row := range rows {
		if f, ok := toFloat64(resolveFieldPath(row, spec.Field)); ok {
			values = append(values, f)
		}
	}

	switch spec.Function {
	case "sum":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case "avg":
		if len(values) == 0 {
			return nil
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case "min":
		if len(values) == 0 {
			return nil
		}
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case "max":
		if len(values) == 0 {
			return nil
		}
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	default:
		return nil
	}
}

// formatRows projects each row through the field definitions. The output
// key is the field's presentation key, not its storage path. Fields whose
// conditions do not hold for a row are omitted from that row.
func (r *ReportRunner) formatRows(rows []Row, fields []metadata.FieldDefinition, locale string) []Row {
	formatted := make([]Row, 0, len(rows))
	for _, row := range rows {
		out := make(Row, len(fields))
		for i := range fields {
			f := &fields[i]
			if !f.Visible() || !EvaluateConditions(f.Conditions, row) {
				continue
			}
			raw := resolveFieldPath(row, f.SourcePath())
			out[f.Key] = FormatValue(raw, f.DataType, f.FormatOptions, locale)
		}
		formatted = append(formatted, out)
	}
	return formatted
}

// resolveFieldPath reads a dotted path from a row of nested maps.
// Any miss along the way resolves to nil.
func resolveFieldPath(row Row, path string) any {
	if path == "" {
		return nil
	}
	if !strings.Contains(path, ".") {
		return row[path]
	}

	var current any = row
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// defaultChartPalette is cycled when a chart declares no colors.
var defaultChartPalette = []string{
	"#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#EC4899", "#06B6D4", "#F97316", "#6366F1", "#84CC16",
}

// projectChart reduces fetched rows into one label/value series.
// With a group field, rows are bucketed in first-seen order and the data
// field is summed per bucket; otherwise label/data pairs are read in
// fetch order. Non-numeric data values are skipped from sums but kept
// verbatim in pairwise projection.
func projectChart(rows []Row, spec *metadata.ChartSpec, locale string) ChartData {
	chart := ChartData{
		Key:    spec.Key,
		Title:  spec.Title(locale),
		Type:   spec.ChartType,
		Labels: []string{},
		Data:   []any{},
	}

	if spec.GroupField != "" {
		index := make(map[string]int)
		var sums []float64
		for _, row := range rows {
			key := coerceString(resolveFieldPath(row, spec.GroupField))
			i, ok := index[key]
			if !ok {
				i = len(chart.Labels)
				index[key] = i
				chart.Labels = append(chart.Labels, key)
				sums = append(sums, 0)
			}
			if f, ok := toFloat64(resolveFieldPath(row, spec.DataField)); ok {
				sums[i] += f
			}
		}
		for _, s := range sums {
			chart.Data = append(chart.Data, s)
		}
	} else {
		for _, row := range rows {
			chart.Labels = append(chart.Labels, coerceString(resolveFieldPath(row, spec.LabelField)))
			chart.Data = append(chart.Data, resolveFieldPath(row, spec.DataField))
		}
	}

	chart.Colors = spec.Colors
	if len(chart.Colors) == 0 {
		for i := range chart.Labels {
			chart.Colors = append(chart.Colors, defaultChartPalette[i%len(defaultChartPalette)])
		}
	}
	return chart
}

// recordRun hands the run summary to the audit sink. Audit failures are
// logged and dropped; they must never affect the returned result.
func (r *ReportRunner) recordRun(ctx context.Context, entry RunLogEntry) {
	if r.Audit == nil {
		return
	}
	if err := r.Audit.RecordRun(ctx, entry); err != nil {
		log.Printf("WARN: audit sink rejected run log for %s: %v", entry.ReportCode, err)
	}
}
