package query

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by First when no row matches the query.
var ErrNotFound = errors.New("dbquery: no matching row")

// ExecutionError reports a failure from the database while executing a
// compiled statement. The driver error is carried unmodified as the cause.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("dbquery: executing %q: %v", e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
