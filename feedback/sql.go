package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/hector-pml/workflow"
)

// SQLStore is a Store and workflow.TraceStore backed by database/sql,
// dispatching the driver by DSN scheme the same way
// config/types.go's DatabaseProviderConfig dispatches a provider by its
// Type field: one config shape (a DSN string), several drivers selected by
// a prefix.
//
// Schema (created lazily by EnsureSchema, not by this constructor, so a
// caller with its own migrations can opt out):
//
//	CREATE TABLE pml_traces (
//	  workflow_id TEXT, task_id TEXT, tool TEXT, status TEXT, kind TEXT,
//	  duration_ms BIGINT, mocked BOOLEAN, from_cache BOOLEAN,
//	  exploratory BOOLEAN, confidence REAL, path_id TEXT
//	);
//	CREATE TABLE pml_workflow_traces (
//	  workflow_id TEXT, intent_text TEXT, payload TEXT,
//	  total_duration_ms BIGINT, success BOOLEAN, mock_ratio REAL
//	);
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore parses dsn's scheme (sqlite://, postgres://, mysql://) and
// opens the matching database/sql driver.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	driver, trimmed, err := driverFor(dsn)
	if err != nil {
		return nil, fmt.Errorf("[feedback:OpenSQLStore] %w", err)
	}
	db, err := sql.Open(driver, trimmed)
	if err != nil {
		return nil, fmt.Errorf("[feedback:OpenSQLStore] opening %s: %w", driver, err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// rebind rewrites a query written with "?" placeholders into the
// positional "$1, $2, ..." form lib/pq requires; sqlite3 and mysql accept
// "?" as written.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func driverFor(dsn string) (driver, trimmed string, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	default:
		return "", "", fmt.Errorf("unrecognized trace store DSN scheme: %q", dsn)
	}
}

// EnsureSchema creates both trace tables if they don't already exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pml_traces (
			workflow_id TEXT, task_id TEXT, tool TEXT, status TEXT, kind TEXT,
			duration_ms BIGINT, mocked BOOLEAN, from_cache BOOLEAN,
			exploratory BOOLEAN, confidence REAL, path_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pml_workflow_traces (
			workflow_id TEXT, intent_text TEXT, payload TEXT,
			total_duration_ms BIGINT, success BOOLEAN, mock_ratio REAL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("[feedback:EnsureSchema] %w", err)
		}
	}
	return nil
}

// Record implements workflow.TraceStore for per-task/per-step traces.
func (s *SQLStore) Record(ctx context.Context, tr workflow.Trace) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO pml_traces (workflow_id, task_id, tool, status, kind, duration_ms, mocked, from_cache, exploratory, confidence, path_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		tr.WorkflowID, tr.TaskID, tr.Tool, string(tr.Status), tr.Kind, tr.DurationMS, tr.Mocked, tr.FromCache, tr.Exploratory, tr.Confidence, tr.PathID,
	)
	if err != nil {
		return fmt.Errorf("[feedback:SQLStore.Record] %w", err)
	}
	return nil
}

// RecordWorkflow implements Store for the aggregate workflow-level trace.
func (s *SQLStore) RecordWorkflow(ctx context.Context, tr WorkflowTrace) error {
	payload, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("[feedback:SQLStore.RecordWorkflow] encoding payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO pml_workflow_traces (workflow_id, intent_text, payload, total_duration_ms, success, mock_ratio)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		tr.WorkflowID, tr.IntentText, string(payload), tr.TotalDurationMS, tr.Success, tr.MockRatio,
	)
	if err != nil {
		return fmt.Errorf("[feedback:SQLStore.RecordWorkflow] %w", err)
	}
	return nil
}

// Close closes the underlying database/sql handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
