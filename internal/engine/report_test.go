package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-backend/internal/metadata"
)

type fakeQueries struct {
	rows     []Row
	err      error
	lastText string
	lastArgs map[string]any
}

func (f *fakeQueries) RunQuery(ctx context.Context, text string, params map[string]any) ([]Row, error) {
	f.lastText = text
	f.lastArgs = params
	return f.rows, f.err
}

type fakeEntities struct {
	rows  []Row
	err   error
	last  EntityQuery
	calls int
}

func (f *fakeEntities) QueryEntities(ctx context.Context, ref string, q EntityQuery) ([]Row, error) {
	f.last = q
	f.calls++
	return f.rows, f.err
}

type fakeProcedures struct {
	rows     []Row
	err      error
	lastArgs []any
}

func (f *fakeProcedures) CallProcedure(ctx context.Context, name string, args []any) ([]Row, error) {
	f.lastArgs = args
	return f.rows, f.err
}

type memoryAudit struct {
	entries []RunLogEntry
	err     error
}

func (m *memoryAudit) RecordRun(ctx context.Context, entry RunLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 9, 14, 12, 0, 0, 0, time.UTC) }
}

func runnerWith(sources DataSources, audit AuditSink) *ReportRunner {
	r := NewReportRunner(sources, audit)
	r.Now = fixedClock()
	return r
}

func TestRunFormatsRowsAndAggregates(t *testing.T) {
	entities := &fakeEntities{rows: []Row{
		{"student": "Ahmed", "fee": 100.0},
		{"student": "Sara", "fee": 50.0},
	}}
	audit := &memoryAudit{}
	r := runnerWith(DataSources{Entities: entities}, audit)

	def := &metadata.ReportDefinition{
		Code:           "fee_summary",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "enrollments",
		Fields: []metadata.FieldDefinition{
			{Key: "student", DataType: "string"},
			{Key: "fee", DataType: "currency"},
		},
		Aggregations: []metadata.AggregationSpec{
			{Field: "fee", Function: "sum", Label: "total_fees"},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{Locale: "en"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("got %d rows", len(result.Rows))
	}
	if result.Rows[0]["fee"] != "$100.00" || result.Rows[1]["fee"] != "$50.00" {
		t.Errorf("formatted fees = %v, %v", result.Rows[0]["fee"], result.Rows[1]["fee"])
	}
	if result.Aggregations["total_fees"] != 150.0 {
		t.Errorf("total_fees = %v", result.Aggregations["total_fees"])
	}
	if result.Meta.TotalRows != 2 {
		t.Errorf("meta total_rows = %d", result.Meta.TotalRows)
	}
	if !result.Meta.GeneratedAt.Equal(fixedClock()()) {
		t.Errorf("generated_at = %v", result.Meta.GeneratedAt)
	}

	if len(audit.entries) != 1 {
		t.Fatalf("got %d audit entries", len(audit.entries))
	}
	if audit.entries[0].Status != RunStatusCompleted || audit.entries[0].RowCount != 2 {
		t.Errorf("audit entry = %+v", audit.entries[0])
	}
}

func TestRunMergesAndCastsParameters(t *testing.T) {
	queries := &fakeQueries{rows: []Row{}}
	r := runnerWith(DataSources{Queries: queries}, nil)

	def := &metadata.ReportDefinition{
		Code:           "by_year",
		DataSourceType: metadata.SourceQuery,
		DataSourceRef:  "SELECT * FROM enrollments WHERE year = :year",
		Parameters: []metadata.ParameterDefinition{
			{Key: "year", CastTo: "integer", DefaultValue: "2025"},
		},
	}

	if _, err := r.Run(context.Background(), def, RunRequest{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if queries.lastArgs["year"] != int64(2025) {
		t.Errorf("year arg = %v (%T)", queries.lastArgs["year"], queries.lastArgs["year"])
	}
}

func TestRunEntityFiltersFromParameters(t *testing.T) {
	entities := &fakeEntities{rows: []Row{}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "by_college",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "students",
		Parameters: []metadata.ParameterDefinition{
			{Key: "college", FieldName: "college_id"},
			{Key: "note"}, // no field name, never a filter
		},
	}

	req := RunRequest{Params: map[string]any{"college": 7, "note": "x"}}
	if _, err := r.Run(context.Background(), def, req); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(entities.last.Filters) != 1 {
		t.Fatalf("got %d filters", len(entities.last.Filters))
	}
	if entities.last.Filters[0].Field != "college_id" || entities.last.Filters[0].Value != 7 {
		t.Errorf("filter = %+v", entities.last.Filters[0])
	}
}

func TestRunProcedureArgsInDeclaredOrder(t *testing.T) {
	procs := &fakeProcedures{rows: []Row{}}
	r := runnerWith(DataSources{Procedures: procs}, nil)

	def := &metadata.ReportDefinition{
		Code:           "gpa_proc",
		DataSourceType: metadata.SourceProcedure,
		DataSourceRef:  "compute_gpa",
		Parameters: []metadata.ParameterDefinition{
			{Key: "year"},
			{Key: "semester"},
			{Key: "college"},
		},
	}

	req := RunRequest{Params: map[string]any{"semester": "fall", "college": 3, "year": 2025}}
	if _, err := r.Run(context.Background(), def, req); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := []any{2025, "fall", 3}
	if len(procs.lastArgs) != len(want) {
		t.Fatalf("args = %v", procs.lastArgs)
	}
	for i := range want {
		if procs.lastArgs[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, procs.lastArgs[i], want[i])
		}
	}
}

func TestRunAggregationSkipsNonNumeric(t *testing.T) {
	entities := &fakeEntities{rows: []Row{
		{"score": 1}, {"score": "2"}, {"score": "bad"}, {"other": 9},
	}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "scores",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "scores",
		Aggregations: []metadata.AggregationSpec{
			{Field: "score", Function: "sum"},
			{Field: "score", Function: "count", Label: "rows"},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// numeric strings count, "bad" and the missing field do not
	if result.Aggregations["sum_score"] != 3.0 {
		t.Errorf("sum = %v", result.Aggregations["sum_score"])
	}
	// count is a row count, not a value count
	if result.Aggregations["rows"] != 4 {
		t.Errorf("count = %v", result.Aggregations["rows"])
	}
}

func TestRunEmptyAggregations(t *testing.T) {
	entities := &fakeEntities{rows: []Row{}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "empty",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "none",
		Aggregations: []metadata.AggregationSpec{
			{Field: "x", Function: "sum"},
			{Field: "x", Function: "avg"},
			{Field: "x", Function: "min"},
			{Field: "x", Function: "max"},
			{Field: "x", Function: "median"},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Aggregations["sum_x"] != 0.0 {
		t.Errorf("empty sum = %v, want 0", result.Aggregations["sum_x"])
	}
	for _, key := range []string{"avg_x", "min_x", "max_x", "median_x"} {
		if result.Aggregations[key] != nil {
			t.Errorf("%s = %v, want nil", key, result.Aggregations[key])
		}
	}
}

func TestRunGroupingFirstSeenOrder(t *testing.T) {
	entities := &fakeEntities{rows: []Row{
		{"college": "B", "fee": 10.0},
		{"college": "A", "fee": 20.0},
		{"college": "B", "fee": 30.0},
	}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "grouped",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "enrollments",
		Grouping:       &metadata.GroupingSpec{Field: "college"},
		Fields: []metadata.FieldDefinition{
			{Key: "fee", DataType: "currency"},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{Locale: "en"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("got %d groups", len(result.Groups))
	}
	if result.Groups[0].Group != "B" || result.Groups[1].Group != "A" {
		t.Errorf("group order = %s, %s", result.Groups[0].Group, result.Groups[1].Group)
	}
	if result.Groups[0].Count != 2 || result.Groups[1].Count != 1 {
		t.Errorf("counts = %d, %d", result.Groups[0].Count, result.Groups[1].Count)
	}
	// items inside a group come back formatted
	if result.Groups[0].Items[0]["fee"] != "$10.00" {
		t.Errorf("grouped item fee = %v", result.Groups[0].Items[0]["fee"])
	}
	// grouped results carry an empty top-level row set
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Errorf("grouped rows = %v, want empty", result.Rows)
	}
}

func TestRunChartGroupSum(t *testing.T) {
	entities := &fakeEntities{rows: []Row{
		{"college": "Eng", "fee": 100.0},
		{"college": "Med", "fee": 200.0},
		{"college": "Eng", "fee": 50.0},
	}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "chart_grouped",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "enrollments",
		Charts: []metadata.ChartSpec{
			{Key: "fees_by_college", TitleEN: "Fees", ChartType: "bar",
				GroupField: "college", DataField: "fee"},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{Locale: "en"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	chart := result.Charts[0]
	if len(chart.Labels) != 2 || chart.Labels[0] != "Eng" || chart.Labels[1] != "Med" {
		t.Errorf("labels = %v", chart.Labels)
	}
	if chart.Data[0] != 150.0 || chart.Data[1] != 200.0 {
		t.Errorf("data = %v", chart.Data)
	}
	// no declared colors, the default palette is cycled per label
	if len(chart.Colors) != 2 {
		t.Errorf("colors = %v", chart.Colors)
	}
}

func TestRunChartPairwise(t *testing.T) {
	entities := &fakeEntities{rows: []Row{
		{"month": "Jan", "total": 5},
		{"month": "Feb", "total": 8},
	}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "chart_pairs",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "monthly",
		Charts: []metadata.ChartSpec{
			{Key: "by_month", LabelField: "month", DataField: "total",
				Colors: []string{"#111111"}},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	chart := result.Charts[0]
	if chart.Labels[0] != "Jan" || chart.Labels[1] != "Feb" {
		t.Errorf("labels = %v", chart.Labels)
	}
	if chart.Data[0] != 5 || chart.Data[1] != 8 {
		t.Errorf("data = %v", chart.Data)
	}
	// declared colors pass through untouched
	if len(chart.Colors) != 1 || chart.Colors[0] != "#111111" {
		t.Errorf("colors = %v", chart.Colors)
	}
}

func TestRunFieldConditionsPerRow(t *testing.T) {
	entities := &fakeEntities{rows: []Row{
		{"name": "Ahmed", "gpa": 3.8, "honors": "yes"},
		{"name": "Sara", "gpa": 2.1, "honors": "no"},
	}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "honors",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "students",
		Fields: []metadata.FieldDefinition{
			{Key: "name"},
			{Key: "honors", Conditions: &metadata.ConditionGroup{
				Conditions: []metadata.ConditionRule{
					{Field: "gpa", Operator: "greater_than", Value: 3.5},
				},
			}},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, ok := result.Rows[0]["honors"]; !ok {
		t.Error("first row should carry honors")
	}
	if _, ok := result.Rows[1]["honors"]; ok {
		t.Error("second row should omit honors")
	}
}

func TestRunDottedFieldPath(t *testing.T) {
	entities := &fakeEntities{rows: []Row{
		{"student": map[string]any{"college": map[string]any{"name": "Engineering"}}},
	}}
	r := runnerWith(DataSources{Entities: entities}, nil)

	def := &metadata.ReportDefinition{
		Code:           "nested",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "enrollments",
		Fields: []metadata.FieldDefinition{
			{Key: "college", FieldName: "student.college.name"},
			{Key: "missing", FieldName: "student.college.dean.name"},
		},
	}

	result, err := r.Run(context.Background(), def, RunRequest{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Rows[0]["college"] != "Engineering" {
		t.Errorf("nested value = %v", result.Rows[0]["college"])
	}
	if result.Rows[0]["missing"] != "-" {
		t.Errorf("missing nested value = %v, want -", result.Rows[0]["missing"])
	}
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	queries := &fakeQueries{err: errors.New("syntax error near SELECT")}
	audit := &memoryAudit{}
	r := runnerWith(DataSources{Queries: queries}, audit)

	def := &metadata.ReportDefinition{
		Code:           "broken",
		DataSourceType: metadata.SourceQuery,
		DataSourceRef:  "SELEC oops",
	}

	result, err := r.Run(context.Background(), def, RunRequest{UserID: "u1"})
	if result != nil {
		t.Error("failed run must not produce a result")
	}

	var execErr *ReportExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T", err)
	}
	if execErr.ReportCode != "broken" || execErr.Stage != "fetch" {
		t.Errorf("execution error = %+v", execErr)
	}

	if len(audit.entries) != 1 {
		t.Fatalf("got %d audit entries", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Status != RunStatusFailed || entry.UserID != "u1" || entry.ErrorMessage == "" {
		t.Errorf("failed audit entry = %+v", entry)
	}
}

func TestRunUnknownSourceTypeYieldsEmpty(t *testing.T) {
	r := runnerWith(DataSources{}, nil)
	def := &metadata.ReportDefinition{Code: "odd", DataSourceType: "graphql"}

	result, err := r.Run(context.Background(), def, RunRequest{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Rows) != 0 || result.Meta.TotalRows != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestRunMissingCollaboratorFails(t *testing.T) {
	r := runnerWith(DataSources{}, nil)
	def := &metadata.ReportDefinition{Code: "no_proc", DataSourceType: metadata.SourceProcedure, DataSourceRef: "p"}

	if _, err := r.Run(context.Background(), def, RunRequest{}); err == nil {
		t.Error("missing collaborator should fail the fetch")
	}
}

func TestRunAuditFailureDoesNotFailRun(t *testing.T) {
	entities := &fakeEntities{rows: []Row{{"x": 1}}}
	audit := &memoryAudit{err: errors.New("disk full")}
	r := runnerWith(DataSources{Entities: entities}, audit)

	def := &metadata.ReportDefinition{
		Code:           "resilient",
		DataSourceType: metadata.SourceModel,
		DataSourceRef:  "things",
	}

	result, err := r.Run(context.Background(), def, RunRequest{})
	if err != nil {
		t.Fatalf("audit failure leaked into the run: %v", err)
	}
	if result.Meta.TotalRows != 1 {
		t.Errorf("meta = %+v", result.Meta)
	}
}
