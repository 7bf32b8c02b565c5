// Package sqlexec runs untrusted SQL against a pooled connection under a
// deadline and row cap, normalizing results into a JSON-representable shape.
//
// Query failures are an expected, common case here: they are encoded in the
// Result, never returned as Go errors.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/admmpy/aide/pkg/sandbox"
)

const (
	// DefaultRowLimit caps the number of rows returned to a caller.
	DefaultRowLimit = 1000

	// DefaultTimeout bounds a single statement's execution.
	DefaultTimeout = 30 * time.Second
)

// Data is the success variant of a Result.
type Data struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
	TimeMS    float64  `json:"execution_time_ms"`
}

// Failure is the failure variant of a Result.
type Failure struct {
	Message string  `json:"error"`
	TimeMS  float64 `json:"execution_time_ms"`
}

// Result holds exactly one of Data or Failure.
type Result struct {
	Data    *Data
	Failure *Failure
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool {
	return r.Data != nil
}

// TimeMS returns the execution time regardless of outcome.
func (r Result) TimeMS() float64 {
	if r.Data != nil {
		return r.Data.TimeMS
	}
	if r.Failure != nil {
		return r.Failure.TimeMS
	}
	return 0
}

func failure(msg string, elapsed time.Duration) Result {
	return Result{Failure: &Failure{Message: msg, TimeMS: float64(elapsed.Microseconds()) / 1000}}
}

// Options control a single execution.
type Options struct {
	// Schema, when non-empty, is set as the head of search_path before the
	// query runs. It must be a validated practice schema name.
	Schema string

	// RowLimit overrides the executor's row cap. 0 = executor default.
	RowLimit int

	// Timeout overrides the executor's deadline. 0 = executor default.
	Timeout time.Duration
}

// Executor runs single SQL statements against a shared pool.
type Executor struct {
	db       *sql.DB
	rowLimit int
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an Executor with the given defaults. Zero values fall back to
// DefaultRowLimit and DefaultTimeout.
func New(db *sql.DB, rowLimit int, timeout time.Duration, logger *slog.Logger) *Executor {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{db: db, rowLimit: rowLimit, timeout: timeout, logger: logger}
}

// Execute runs query under the configured deadline and row cap.
//
// When opts.Schema is set, the search_path switch and the query share one
// pinned connection; the connection is never visible to another borrower
// while either is in flight. On timeout the statement is canceled
// server-side and the connection recycled, so the pool stays clean for the
// next acquisition.
func (e *Executor) Execute(ctx context.Context, query string, opts Options) Result {
	rowLimit := opts.RowLimit
	if rowLimit <= 0 {
		rowLimit = e.rowLimit
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	if opts.Schema != "" && !sandbox.ValidateSchemaName(opts.Schema) {
		// A malformed schema reaching this point is a caller defect; it must
		// never be interpolated.
		return failure(fmt.Sprintf("invalid schema name: %q", opts.Schema), 0)
	}

	start := time.Now()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return failure(fmt.Sprintf("acquiring connection: %v", err), time.Since(start))
	}
	defer func() {
		if opts.Schema != "" {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SET search_path TO public")
		}
		_ = conn.Close()
	}()

	if opts.Schema != "" {
		setPath := "SET search_path TO " + pq.QuoteIdentifier(opts.Schema) + ", public"
		if _, err := conn.ExecContext(ctx, setPath); err != nil {
			return failure(fmt.Sprintf("setting search_path: %v", err), time.Since(start))
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := conn.QueryContext(queryCtx, query)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failure(fmt.Sprintf("query timed out after %s", timeout), elapsed)
		}
		return failure(err.Error(), elapsed)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return failure(fmt.Sprintf("reading columns: %v", err), time.Since(start))
	}

	// Scan every matched row so the full count is reported, but keep only the
	// first rowLimit of them.
	kept := make([][]any, 0, min(rowLimit, 64))
	total := 0
	for rows.Next() {
		total++
		if total > rowLimit {
			continue
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return failure(fmt.Sprintf("scanning row: %v", err), time.Since(start))
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = Serialize(v)
		}
		kept = append(kept, row)
	}
	if err := rows.Err(); err != nil {
		elapsed = time.Since(start)
		if errors.Is(err, context.DeadlineExceeded) {
			return failure(fmt.Sprintf("query timed out after %s", timeout), elapsed)
		}
		return failure(err.Error(), elapsed)
	}

	elapsed = time.Since(start)
	if columns == nil {
		columns = []string{}
	}
	return Result{Data: &Data{
		Columns:   columns,
		Rows:      kept,
		RowCount:  total,
		Truncated: total > rowLimit,
		TimeMS:    float64(elapsed.Microseconds()) / 1000,
	}}
}
