package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInTransaction is returned when attempting transaction operations outside a transaction
	ErrNotInTransaction = errors.New("dbquery: session is not in a transaction")

	// ErrAlreadyInTransaction is returned when attempting to start a transaction while already in one
	ErrAlreadyInTransaction = errors.New("dbquery: session is already in a transaction")
)

// TransactionError reports that rolling back a failed transaction scope
// itself failed. Cause is the error that triggered the rollback; Err is the
// rollback failure. Both are reachable through errors.Is/As.
type TransactionError struct {
	Err   error
	Cause error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("dbquery: rollback failed: %v (while handling: %v)", e.Err, e.Cause)
}

func (e *TransactionError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}
