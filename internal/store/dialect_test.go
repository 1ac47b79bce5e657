package store

import (
	"errors"
	"strings"
	"testing"
)

func TestParamBuilderPlaceholders(t *testing.T) {
	pb := NewDialect("postgres").NewParamBuilder()
	if ph := pb.Add("a"); ph != "$1" {
		t.Errorf("first placeholder = %s", ph)
	}
	if ph := pb.Add("b"); ph != "$2" {
		t.Errorf("second placeholder = %s", ph)
	}
	if pb.Count() != 2 || len(pb.Params()) != 2 {
		t.Errorf("count = %d, params = %v", pb.Count(), pb.Params())
	}

	pb = NewDialect("sqlite").NewParamBuilder()
	if ph := pb.Add("a"); ph != "?1" {
		t.Errorf("sqlite placeholder = %s", ph)
	}
}

func TestNewDialectDefaultsToPostgres(t *testing.T) {
	if NewDialect("").Name() != "postgres" {
		t.Error("unknown driver should default to postgres")
	}
	if NewDialect("sqlite").Name() != "sqlite" {
		t.Error("sqlite driver not selected")
	}
}

func TestPostgresInExpr(t *testing.T) {
	d := NewDialect("postgres")
	pb := d.NewParamBuilder()
	if got := d.InExpr("status", pb, []any{"a", "b"}); got != "status = ANY($1)" {
		t.Errorf("in expr = %q", got)
	}
	// the whole slice binds as one array parameter
	if pb.Count() != 1 {
		t.Errorf("bound %d params", pb.Count())
	}
	if got := d.NotInExpr("status", pb, []any{"a"}); got != "status != ALL($2)" {
		t.Errorf("not in expr = %q", got)
	}
}

func TestSQLiteInExprExpands(t *testing.T) {
	d := NewDialect("sqlite")
	pb := d.NewParamBuilder()
	if got := d.InExpr("status", pb, []any{"a", "b", "c"}); got != "status IN (?1, ?2, ?3)" {
		t.Errorf("in expr = %q", got)
	}
	if got := d.InExpr("status", pb, nil); got != "1=0" {
		t.Errorf("empty in expr = %q", got)
	}
	if got := d.NotInExpr("status", pb, nil); got != "1=1" {
		t.Errorf("empty not in expr = %q", got)
	}
}

func TestParsePgArray(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"{}", []string{}},
		{"", []string{}},
		{"{admin}", []string{"admin"}},
		{"{admin,viewer}", []string{"admin", "viewer"}},
		{`{"admin","report viewer"}`, []string{"admin", "report viewer"}},
		{`["admin","viewer"]`, []string{"admin", "viewer"}},
		{"admin", []string{"admin"}},
	}
	for _, tc := range cases {
		got, err := parsePgArray(tc.in)
		if err != nil {
			t.Errorf("parsePgArray(%q): %v", tc.in, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("parsePgArray(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("parsePgArray(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}

func TestSQLiteArrayRoundTrip(t *testing.T) {
	d := NewDialect("sqlite")
	stored := d.ArrayParam([]string{"admin", "viewer"})
	roles, err := d.ScanArray(stored)
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 2 || roles[0] != "admin" {
		t.Errorf("roles = %v", roles)
	}

	if roles, err := d.ScanArray(nil); err != nil || len(roles) != 0 {
		t.Errorf("nil scan = %v, %v", roles, err)
	}
	if stored := d.ArrayParam(nil); stored != "[]" {
		t.Errorf("nil array param = %v", stored)
	}
}

func TestMapErrorUniqueViolation(t *testing.T) {
	pg := NewDialect("postgres")
	err := pg.MapError(errors.New(`ERROR: duplicate key value violates unique constraint "users_email_key" (SQLSTATE 23505)`))
	if !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("pg unique violation not mapped: %v", err)
	}
	if pg.MapError(nil) != nil {
		t.Error("nil error should map to nil")
	}

	lite := NewDialect("sqlite")
	err = lite.MapError(errors.New("UNIQUE constraint failed: _users.email"))
	if !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("sqlite unique violation not mapped: %v", err)
	}
	plain := errors.New("disk I/O error")
	if lite.MapError(plain) != plain {
		t.Error("unrelated errors must pass through")
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	if len(stmts) != 2 {
		t.Fatalf("got %d statements", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE TABLE a") || !strings.Contains(stmts[1], "CREATE INDEX i") {
		t.Errorf("statements = %v", stmts)
	}
}

func TestSystemTablesCoverBothDialects(t *testing.T) {
	for _, driver := range []string{"postgres", "sqlite"} {
		ddl := NewDialect(driver).SystemTablesSQL()
		for _, table := range []string{"_reports", "_forms", "_tables", "_report_logs", "_users", "_refresh_tokens", "_events"} {
			if !strings.Contains(ddl, table) {
				t.Errorf("%s DDL missing %s", driver, table)
			}
		}
	}
}
