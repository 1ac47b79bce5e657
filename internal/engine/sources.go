package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"campus-backend/internal/store"
)

// StoreFetcher serves the database-backed fetch strategies: table lookups,
// stored raw queries, entity queries and stored procedures.
type StoreFetcher struct {
	Store *store.Store
}

func NewStoreFetcher(s *store.Store) *StoreFetcher {
	return &StoreFetcher{Store: s}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isSafeIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// FetchTable runs a projected equality-filtered lookup against one table.
func (f *StoreFetcher) FetchTable(ctx context.Context, req TableRequest) ([]Row, error) {
	if !isSafeIdentifier(req.Table) {
		return nil, fmt.Errorf("invalid table name %q", req.Table)
	}
	cols := "*"
	if len(req.Columns) > 0 {
		for _, c := range req.Columns {
			if !isSafeIdentifier(c) {
				return nil, fmt.Errorf("invalid column name %q", c)
			}
		}
		cols = strings.Join(req.Columns, ", ")
	}

	pb := f.Store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM %s", cols, req.Table)

	if len(req.Filter) > 0 {
		// Deterministic clause order keeps query text stable for tests
		// and server-side statement caches.
		keys := make([]string, 0, len(req.Filter))
		for k := range req.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var clauses []string
		for _, k := range keys {
			if !isSafeIdentifier(k) {
				return nil, fmt.Errorf("invalid filter column %q", k)
			}
			clauses = append(clauses, fmt.Sprintf("%s = %s", k, pb.Add(req.Filter[k])))
		}
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}

	return store.QueryRows(ctx, f.Store.DB, sqlStr, pb.Params()...)
}

// queryTokenPattern matches :name parameter tokens in stored query text.
// A doubled colon is a cast, not a token.
var queryTokenPattern = regexp.MustCompile(`(^|[^:]):([A-Za-z_][A-Za-z0-9_]*)`)

// RunQuery executes stored query text, substituting every :name token with
// a driver placeholder bound to the matching parameter value. Values never
// enter the query text. Tokens without a matching parameter bind to NULL.
func (f *StoreFetcher) RunQuery(ctx context.Context, text string, params map[string]any) ([]Row, error) {
	pb := f.Store.Dialect.NewParamBuilder()
	bound := queryTokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := queryTokenPattern.FindStringSubmatch(match)
		prefix, name := sub[1], sub[2]
		return prefix + pb.Add(params[name])
	})
	return store.QueryRows(ctx, f.Store.DB, bound, pb.Params()...)
}

// QueryEntities serves the model strategy with a SELECT against the
// entity's backing table.
func (f *StoreFetcher) QueryEntities(ctx context.Context, ref string, q EntityQuery) ([]Row, error) {
	if !isSafeIdentifier(ref) {
		return nil, fmt.Errorf("invalid entity reference %q", ref)
	}

	pb := f.Store.Dialect.NewParamBuilder()
	sqlStr := "SELECT * FROM " + ref

	var clauses []string
	for _, filter := range q.Filters {
		clause, err := sqlComparison(f.Store.Dialect, pb, filter.Field, filter.Operator, filter.Value)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) > 0 {
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}

	var orders []string
	for _, s := range q.Sorting {
		if !isSafeIdentifier(s.Field) {
			return nil, fmt.Errorf("invalid sort field %q", s.Field)
		}
		dir := "ASC"
		if strings.EqualFold(s.Direction, "desc") {
			dir = "DESC"
		}
		orders = append(orders, s.Field+" "+dir)
	}
	if len(orders) > 0 {
		sqlStr += " ORDER BY " + strings.Join(orders, ", ")
	}

	return store.QueryRows(ctx, f.Store.DB, sqlStr, pb.Params()...)
}

// CallProcedure invokes a set-returning stored routine with positional
// arguments.
func (f *StoreFetcher) CallProcedure(ctx context.Context, name string, args []any) ([]Row, error) {
	if !f.Store.Dialect.SupportsProcedures() {
		return nil, fmt.Errorf("%s does not support stored procedures", f.Store.Dialect.Name())
	}
	if !isSafeIdentifier(name) {
		return nil, fmt.Errorf("invalid procedure name %q", name)
	}

	pb := f.Store.Dialect.NewParamBuilder()
	phs := make([]string, len(args))
	for i, arg := range args {
		phs[i] = pb.Add(arg)
	}
	sqlStr := fmt.Sprintf("SELECT * FROM %s(%s)", name, strings.Join(phs, ", "))
	return store.QueryRows(ctx, f.Store.DB, sqlStr, pb.Params()...)
}

// HTTPFetcher serves the api strategy and api-backed option lists.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
}

func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchExternal issues a GET to the endpoint with parameters encoded in
// the query string and decodes the JSON response into rows. Both a bare
// array and a {"data": [...]} envelope are accepted.
func (f *HTTPFetcher) FetchExternal(ctx context.Context, endpoint string, params map[string]any) ([]Row, error) {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		target = f.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if len(params) > 0 {
		query := url.Values{}
		for k, v := range params {
			if v == nil {
				continue
			}
			query.Set(k, coerceString(v))
		}
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var envelope struct {
		Data []Row `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	if envelope.Data == nil {
		return []Row{}, nil
	}
	return envelope.Data, nil
}
