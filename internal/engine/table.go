package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"campus-backend/internal/instrument"
	"campus-backend/internal/metadata"
	"campus-backend/internal/store"
)

// TableQuery carries the runtime inputs of one table page request.
type TableQuery struct {
	Filters  map[string]any `json:"filters"`
	Search   string         `json:"search"`
	SortBy   string         `json:"sort_by"`
	SortDir  string         `json:"sort_dir"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ColumnSchema is the rendered header of one visible column.
type ColumnSchema struct {
	Key      string `json:"key"`
	Header   string `json:"header"`
	DataType string `json:"data_type,omitempty"`
	Sortable bool   `json:"sortable"`
}

// TableRow is one formatted output row with the row actions available on it.
type TableRow struct {
	Cells   Row      `json:"cells"`
	Actions []string `json:"actions"`
}

// Pagination describes the returned page.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// TableResult is one rendered table page.
type TableResult struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Columns     []ColumnSchema `json:"columns"`
	Rows        []TableRow     `json:"rows"`
	BulkActions []string       `json:"bulk_actions,omitempty"`
	Pagination  Pagination     `json:"pagination"`
}

// TableRunner renders dynamic table pages from stored definitions.
type TableRunner struct {
	Store *store.Store
}

func NewTableRunner(s *store.Store) *TableRunner {
	return &TableRunner{Store: s}
}

// Run builds, executes and formats one table page. The base query, filter
// values, search text and pagination all bind through placeholders; only
// validated identifiers from the definition reach the query text.
func (r *TableRunner) Run(ctx context.Context, def *metadata.TableDefinition, req TableQuery, locale string) (*TableResult, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "table", "table.run")
	defer span.End()
	span.SetEntity("table", def.Code)

	if !isSafeIdentifier(def.DataSource) {
		span.SetStatus("error")
		return nil, fmt.Errorf("invalid data source %q", def.DataSource)
	}

	pb := r.Store.Dialect.NewParamBuilder()
	where, err := r.buildWhere(def, req, pb)
	if err != nil {
		span.SetStatus("error")
		return nil, err
	}

	total, err := r.countRows(ctx, def.DataSource, where, pb.Params())
	if err != nil {
		span.SetStatus("error")
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = def.PageSize()
	}

	orderBy, err := r.buildOrderBy(def, req)
	if err != nil {
		span.SetStatus("error")
		return nil, err
	}

	sqlStr := "SELECT * FROM " + def.DataSource
	if where != "" {
		sqlStr += " WHERE " + where
	}
	if orderBy != "" {
		sqlStr += " ORDER BY " + orderBy
	}
	sqlStr += fmt.Sprintf(" LIMIT %s OFFSET %s", pb.Add(pageSize), pb.Add((page-1)*pageSize))

	rows, err := store.QueryRows(ctx, r.Store.DB, sqlStr, pb.Params()...)
	if err != nil {
		span.SetStatus("error")
		return nil, fmt.Errorf("table %s: %w", def.Code, err)
	}

	result := &TableResult{
		Code:    def.Code,
		Name:    def.Name(locale),
		Columns: r.columnSchemas(def, locale),
		Rows:    r.formatRows(def, rows, locale),
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	for i := range def.Actions {
		if def.Actions[i].IsBulk {
			result.BulkActions = append(result.BulkActions, def.Actions[i].Key)
		}
	}

	span.SetMetadata("row_count", len(rows))
	span.SetStatus("ok")
	return result, nil
}

func (r *TableRunner) buildWhere(def *metadata.TableDefinition, req TableQuery, pb store.ParamBuilder) (string, error) {
	var clauses []string

	for i := range def.BaseQuery {
		rule := &def.BaseQuery[i]
		clause, err := sqlComparison(r.Store.Dialect, pb, rule.Field, rule.Operator, rule.Value)
		if err != nil {
			return "", fmt.Errorf("table %s base query: %w", def.Code, err)
		}
		clauses = append(clauses, clause)
	}

	for i := range def.Filters {
		filter := &def.Filters[i]
		value, ok := req.Filters[filter.Key]
		if !ok || isEmptyValue(value) {
			continue
		}
		clause, err := sqlComparison(r.Store.Dialect, pb, filter.Column(), filter.Operator, value)
		if err != nil {
			return "", fmt.Errorf("table %s filter %s: %w", def.Code, filter.Key, err)
		}
		clauses = append(clauses, clause)
	}

	if def.IsSearchable && strings.TrimSpace(req.Search) != "" {
		var searchable []string
		for i := range def.Columns {
			if def.Columns[i].IsSearchable {
				col := def.Columns[i].SourcePath()
				if !isSafeIdentifier(col) {
					return "", fmt.Errorf("table %s: invalid searchable column %q", def.Code, col)
				}
				searchable = append(searchable, col)
			}
		}
		if len(searchable) > 0 {
			pattern := "%" + strings.TrimSpace(req.Search) + "%"
			ph := pb.Add(pattern)
			like := r.Store.Dialect.LikeOperator()
			var ors []string
			for _, col := range searchable {
				ors = append(ors, fmt.Sprintf("%s %s %s", col, like, ph))
			}
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		}
	}

	return strings.Join(clauses, " AND "), nil
}

func (r *TableRunner) countRows(ctx context.Context, table, where string, params []any) (int64, error) {
	sqlStr := "SELECT COUNT(*) AS n FROM " + table
	if where != "" {
		sqlStr += " WHERE " + where
	}
	row, err := store.QueryRow(ctx, r.Store.DB, sqlStr, params...)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	n, _ := toFloat64(row["n"])
	return int64(n), nil
}

// buildOrderBy honors a requested sort only when it names a sortable
// column; anything else falls back to the authored default sort.
func (r *TableRunner) buildOrderBy(def *metadata.TableDefinition, req TableQuery) (string, error) {
	if req.SortBy != "" {
		if col := def.Column(req.SortBy); col != nil && col.IsSortable {
			field := col.SourcePath()
			if !isSafeIdentifier(field) {
				return "", fmt.Errorf("invalid sort column %q", field)
			}
			dir := "ASC"
			if strings.EqualFold(req.SortDir, "desc") {
				dir = "DESC"
			}
			return field + " " + dir, nil
		}
	}

	var orders []string
	for _, s := range def.DefaultSort {
		if !isSafeIdentifier(s.Field) {
			return "", fmt.Errorf("invalid default sort field %q", s.Field)
		}
		dir := "ASC"
		if strings.EqualFold(s.Direction, "desc") {
			dir = "DESC"
		}
		orders = append(orders, s.Field+" "+dir)
	}
	return strings.Join(orders, ", "), nil
}

func (r *TableRunner) columnSchemas(def *metadata.TableDefinition, locale string) []ColumnSchema {
	columns := make([]metadata.TableColumn, len(def.Columns))
	copy(columns, def.Columns)
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].SortOrder < columns[j].SortOrder
	})

	schemas := make([]ColumnSchema, 0, len(columns))
	for i := range columns {
		c := &columns[i]
		if !c.Visible() {
			continue
		}
		schemas = append(schemas, ColumnSchema{
			Key:      c.Key,
			Header:   c.Header(locale),
			DataType: c.DataType,
			Sortable: c.IsSortable,
		})
	}
	return schemas
}

// formatRows projects raw rows through the visible columns and attaches
// the per-row actions whose conditions hold against the raw row.
func (r *TableRunner) formatRows(def *metadata.TableDefinition, rows []Row, locale string) []TableRow {
	formatted := make([]TableRow, 0, len(rows))
	for _, raw := range rows {
		cells := make(Row, len(def.Columns))
		for i := range def.Columns {
			c := &def.Columns[i]
			if !c.Visible() {
				continue
			}
			value := resolveFieldPath(raw, c.SourcePath())
			cells[c.Key] = FormatValue(value, c.DataType, c.FormatOptions, locale)
		}

		var actions []string
		for i := range def.Actions {
			a := &def.Actions[i]
			if a.IsBulk {
				continue
			}
			if EvaluateConditions(a.Conditions, raw) {
				actions = append(actions, a.Key)
			}
		}
		formatted = append(formatted, TableRow{Cells: cells, Actions: actions})
	}
	return formatted
}

// sqlComparison renders one filter or base-query comparison. Field names
// are validated as identifiers; values always bind through placeholders.
func sqlComparison(dialect store.Dialect, pb store.ParamBuilder, field, operator string, value any) (string, error) {
	if !isSafeIdentifier(field) {
		return "", fmt.Errorf("invalid field %q", field)
	}

	switch operator {
	case "", "eq", "equals":
		return fmt.Sprintf("%s = %s", field, pb.Add(value)), nil
	case "neq", "not_equals":
		return fmt.Sprintf("%s != %s", field, pb.Add(value)), nil
	case "gt", "greater_than":
		return fmt.Sprintf("%s > %s", field, pb.Add(value)), nil
	case "gte":
		return fmt.Sprintf("%s >= %s", field, pb.Add(value)), nil
	case "lt", "less_than":
		return fmt.Sprintf("%s < %s", field, pb.Add(value)), nil
	case "lte":
		return fmt.Sprintf("%s <= %s", field, pb.Add(value)), nil
	case "like", "contains":
		pattern := "%" + coerceString(value) + "%"
		return fmt.Sprintf("%s %s %s", field, dialect.LikeOperator(), pb.Add(pattern)), nil
	case "in":
		return dialect.InExpr(field, pb, toSlice(value)), nil
	case "not_in":
		return dialect.NotInExpr(field, pb, toSlice(value)), nil
	case "is_null":
		return field + " IS NULL", nil
	case "is_not_null":
		return field + " IS NOT NULL", nil
	default:
		return "", fmt.Errorf("unsupported filter operator %q", operator)
	}
}
