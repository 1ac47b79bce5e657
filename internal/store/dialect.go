package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// NewParamBuilder creates a dialect-aware parameter builder.
	NewParamBuilder() ParamBuilder

	// NowExpr returns the SQL expression for the current timestamp.
	NowExpr() string

	// LikeOperator returns the case-insensitive pattern match operator.
	LikeOperator() string

	// InExpr builds a SQL expression for the IN operator.
	// PostgreSQL: "field = ANY($n)" with a single array param.
	// SQLite: "field IN (?n, ?n+1, ...)" expanding the slice.
	InExpr(field string, pb ParamBuilder, values []any) string

	// NotInExpr builds a SQL expression for the NOT IN operator.
	NotInExpr(field string, pb ParamBuilder, values []any) string

	// ArrayParam encodes a string slice for storage.
	ArrayParam(values []string) any

	// ScanArray decodes a TEXT[] (PostgreSQL) or JSON string (SQLite) into []string.
	ScanArray(src any) ([]string, error)

	// SyncCommitOff returns SQL to disable synchronous commit in a
	// transaction, or empty string if not applicable.
	SyncCommitOff() string

	// SupportsProcedures reports whether set-returning stored routines
	// can be invoked.
	SupportsProcedures() bool

	// TableExists checks whether a table exists.
	TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error)

	// SystemTablesSQL returns the DDL for all system tables.
	SystemTablesSQL() string

	// MapError inspects a driver error and returns a well-known sentinel
	// error if applicable.
	MapError(err error) error
}

// ParamBuilder accumulates query parameters and generates dialect-specific
// placeholders.
type ParamBuilder interface {
	// Add appends a value and returns the placeholder string.
	Add(v any) string

	// Params returns all accumulated parameter values.
	Params() []any

	// Count returns the number of parameters added so far.
	Count() int
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}

// --- PostgreSQL ParamBuilder ---

type pgParamBuilder struct {
	params []any
	n      int
}

func (p *pgParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

func (p *pgParamBuilder) Params() []any { return p.params }
func (p *pgParamBuilder) Count() int    { return p.n }

// --- SQLite ParamBuilder ---

type sqliteParamBuilder struct {
	params []any
	n      int
}

func (p *sqliteParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("?%d", p.n)
}

func (p *sqliteParamBuilder) Params() []any { return p.params }
func (p *sqliteParamBuilder) Count() int    { return p.n }
