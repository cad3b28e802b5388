// Package sqlexec runs model-generated statements against any database/sql
// backend.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chatdb/chatdb/internal/query"
)

type Executor struct {
	db *sql.DB
}

func New(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs statement verbatim on a connection held only for this call.
// Every failure is returned as a *query.ExecutionError.
func (e *Executor) Execute(ctx context.Context, statement string) (result query.Result, err error) {
	if e == nil || e.db == nil {
		return query.Result{}, &query.ExecutionError{Message: "database is not configured"}
	}
	start := time.Now()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return query.Result{}, query.NewExecutionError(err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return query.Result{}, query.NewExecutionError(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, query.NewExecutionError(fmt.Errorf("query columns: %w", err))
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, query.NewExecutionError(fmt.Errorf("scan row: %w", err))
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, query.NewExecutionError(err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
