package session

import (
	"context"

	"github.com/guadalsistema/dbquery/engine"
)

// Transaction runs fn inside a transaction scope on a fresh session.
// Normal return from fn commits; an error or panic rolls back. Commit or
// rollback fires exactly once per scope on every exit path.
//
// Rollback never masks the failure that triggered it: fn's error
// propagates unchanged after the rollback completes. Only when the
// rollback itself fails is a TransactionError returned, carrying both
// errors.
func Transaction(ctx context.Context, eng *engine.Engine, fn func(s *Session) error) error {
	s := New(ctx, eng)
	if err := s.Begin(); err != nil {
		return err
	}

	done := false
	defer func() {
		if !done {
			// fn panicked; release the transaction before unwinding.
			if rbErr := s.Rollback(); rbErr != nil {
				if logger := s.Logger(); logger != nil {
					logger.Error("dbquery: rollback failed during panic unwind", "error", rbErr)
				}
			}
		}
	}()

	err := fn(s)
	done = true

	if err != nil {
		if rbErr := s.Rollback(); rbErr != nil {
			return &TransactionError{Err: rbErr, Cause: err}
		}
		return err
	}
	return s.Commit()
}
