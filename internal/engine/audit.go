package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campus-backend/internal/store"
)

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunLogEntry is one audit record of a report run.
type RunLogEntry struct {
	ID              string         `json:"id"`
	ReportCode      string         `json:"report_code"`
	UserID          string         `json:"user_id,omitempty"`
	Parameters      map[string]any `json:"parameters"`
	RowCount        int            `json:"row_count"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	Status          string         `json:"status"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// AuditSink records report runs. Implementations must tolerate failure;
// the runner drops sink errors after logging them.
type AuditSink interface {
	RecordRun(ctx context.Context, entry RunLogEntry) error
}

// RunStats summarizes the recent run history of one report.
type RunStats struct {
	ReportCode string  `json:"report_code"`
	TotalRuns  int64   `json:"total_runs"`
	FailedRuns int64   `json:"failed_runs"`
	AvgTimeMs  float64 `json:"avg_time_ms"`
}

// StoreAuditSink persists run records to the _report_logs table.
type StoreAuditSink struct {
	Store *store.Store
}

func NewStoreAuditSink(s *store.Store) *StoreAuditSink {
	return &StoreAuditSink{Store: s}
}

func (s *StoreAuditSink) RecordRun(ctx context.Context, entry RunLogEntry) error {
	params := entry.Parameters
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode run parameters: %w", err)
	}

	var userID any
	if entry.UserID != "" {
		userID = entry.UserID
	}

	pb := s.Store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`INSERT INTO _report_logs (id, report_code, user_id, parameters, row_count, execution_time_ms, status, error_message)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(uuid.New().String()),
		pb.Add(entry.ReportCode),
		pb.Add(userID),
		pb.Add(string(paramsJSON)),
		pb.Add(entry.RowCount),
		pb.Add(entry.ExecutionTimeMs),
		pb.Add(entry.Status),
		pb.Add(entry.ErrorMessage),
	)
	if _, err := store.Exec(ctx, s.Store.DB, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

// RecentRuns returns the latest run records for a report, newest first.
func (s *StoreAuditSink) RecentRuns(ctx context.Context, reportCode string, limit int) ([]RunLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	pb := s.Store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`SELECT id, report_code, user_id, parameters, row_count, execution_time_ms, status, error_message, created_at
		 FROM _report_logs WHERE report_code = %s ORDER BY created_at DESC LIMIT %s`,
		pb.Add(reportCode), pb.Add(limit),
	)
	rows, err := store.QueryRows(ctx, s.Store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, err
	}

	entries := make([]RunLogEntry, 0, len(rows))
	for _, row := range rows {
		entry := RunLogEntry{
			ID:           coerceString(row["id"]),
			ReportCode:   coerceString(row["report_code"]),
			UserID:       coerceString(row["user_id"]),
			Status:       coerceString(row["status"]),
			ErrorMessage: coerceString(row["error_message"]),
		}
		if n, ok := toFloat64(row["row_count"]); ok {
			entry.RowCount = int(n)
		}
		if n, ok := toFloat64(row["execution_time_ms"]); ok {
			entry.ExecutionTimeMs = int64(n)
		}
		if t, ok := row["created_at"].(time.Time); ok {
			entry.CreatedAt = t
		}
		if raw := coerceString(row["parameters"]); raw != "" {
			var params map[string]any
			if err := json.Unmarshal([]byte(raw), &params); err == nil {
				entry.Parameters = params
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats aggregates the run history of one report.
func (s *StoreAuditSink) Stats(ctx context.Context, reportCode string) (*RunStats, error) {
	pb := s.Store.Dialect.NewParamBuilder()
	failed := pb.Add(RunStatusFailed)
	code := pb.Add(reportCode)
	sqlStr := fmt.Sprintf(
		`SELECT COUNT(*) AS total_runs,
		        SUM(CASE WHEN status = %s THEN 1 ELSE 0 END) AS failed_runs,
		        COALESCE(AVG(execution_time_ms), 0) AS avg_time_ms
		 FROM _report_logs WHERE report_code = %s`,
		failed, code,
	)
	row, err := store.QueryRow(ctx, s.Store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{ReportCode: reportCode}
	if n, ok := toFloat64(row["total_runs"]); ok {
		stats.TotalRuns = int64(n)
	}
	if n, ok := toFloat64(row["failed_runs"]); ok {
		stats.FailedRuns = int64(n)
	}
	if n, ok := toFloat64(row["avg_time_ms"]); ok {
		stats.AvgTimeMs = n
	}
	return stats, nil
}
