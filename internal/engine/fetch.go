package engine

import (
	"context"

	"campus-backend/internal/metadata"
)

// Row is one record of runtime data, as returned by any fetch collaborator.
type Row = map[string]any

// TableRequest describes a simple projected lookup against one table,
// used by the option resolver.
type TableRequest struct {
	Table   string
	Columns []string
	Filter  map[string]any // column -> required value, ANDed
}

// EntityFilter is one equality-or-operator filter for the model strategy.
type EntityFilter struct {
	Field    string
	Operator string // eq (default), neq, gt, gte, lt, lte, like, in
	Value    any
}

// EntityQuery carries the filters and ordering the model fetch strategy
// derives from report parameters.
type EntityQuery struct {
	Filters   []EntityFilter
	Sorting   []metadata.SortSpec
	Relations []string
}

// TabularFetcher serves projected table lookups for option lists.
type TabularFetcher interface {
	FetchTable(ctx context.Context, req TableRequest) ([]Row, error)
}

// RawQueryFetcher executes stored query text. Implementations substitute
// :name tokens with driver placeholders bound to the given values; the
// engine never splices parameter values into the text itself.
type RawQueryFetcher interface {
	RunQuery(ctx context.Context, text string, params map[string]any) ([]Row, error)
}

// EntityQuerier serves the model fetch strategy against a named entity
// or backing table.
type EntityQuerier interface {
	QueryEntities(ctx context.Context, ref string, q EntityQuery) ([]Row, error)
}

// ProcedureCaller invokes a named stored routine with positional arguments.
type ProcedureCaller interface {
	CallProcedure(ctx context.Context, name string, args []any) ([]Row, error)
}

// ExternalFetcher delegates to an external HTTP endpoint. Timeout and
// retry policy live inside the implementation, not the engine.
type ExternalFetcher interface {
	FetchExternal(ctx context.Context, endpoint string, params map[string]any) ([]Row, error)
}

// DataSources bundles every fetch collaborator a report run can dispatch to.
type DataSources struct {
	Tables     TabularFetcher
	Queries    RawQueryFetcher
	Entities   EntityQuerier
	Procedures ProcedureCaller
	External   ExternalFetcher
}
