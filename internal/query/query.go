package query

import (
	"context"
	"time"
)

// Result is the tabular outcome of one statement. Row values keep whatever
// type the driver produced, except []byte which executors convert to string.
type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

type Executor interface {
	Execute(ctx context.Context, sql string) (Result, error)
}

// ExecutionError carries the database's message for a failed statement. Err
// keeps the underlying cause so callers can match context deadlines.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func NewExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}
	return &ExecutionError{Message: err.Error(), Err: err}
}
