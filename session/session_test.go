package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/guadalsistema/dbquery/engine"
)

func newMockSession(t *testing.T) (*Session, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { raw.Close() })

	eng, err := engine.FromDB(raw, "sqlite", engine.Config{})
	if err != nil {
		t.Fatalf("engine.FromDB: %v", err)
	}
	return New(context.Background(), eng), mock
}

func TestBeginCommit(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	if s.InTransaction() {
		t.Fatal("new session should not be in a transaction")
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if !s.InTransaction() {
		t.Fatal("expected session to be in a transaction")
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	if s.InTransaction() {
		t.Fatal("expected transaction to be resolved")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNestedBeginFailsFast(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if err := s.Begin(); !errors.Is(err, ErrAlreadyInTransaction) {
		t.Fatalf("expected ErrAlreadyInTransaction, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestCommitOutsideTransaction(t *testing.T) {
	s, _ := newMockSession(t)

	if err := s.Commit(); !errors.Is(err, ErrNotInTransaction) {
		t.Fatalf("expected ErrNotInTransaction, got %v", err)
	}
	if err := s.Rollback(); !errors.Is(err, ErrNotInTransaction) {
		t.Fatalf("expected ErrNotInTransaction, got %v", err)
	}
}

func TestStatementsRouteThroughOpenTransaction(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ?")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if _, err := s.Table("users").Where("id", 1).Delete(context.Background()); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionScopeCommitsOnSuccess(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := Transaction(context.Background(), s.Engine(), func(s *Session) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionScopePropagatesOriginalError(t *testing.T) {
	s, mock := newMockSession(t)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := Transaction(context.Background(), s.Engine(), func(s *Session) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionScopeWrapsFailedRollback(t *testing.T) {
	s, mock := newMockSession(t)

	boom := errors.New("boom")
	rbFail := errors.New("rollback refused")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(rbFail)

	err := Transaction(context.Background(), s.Engine(), func(s *Session) error {
		return boom
	})

	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %v", err)
	}
	if !errors.Is(err, boom) || !errors.Is(err, rbFail) {
		t.Fatalf("expected both causes reachable, got %v", err)
	}
}

func TestTransactionScopeLogsFailedRollbackOnPanic(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { raw.Close() })

	var logBuf bytes.Buffer
	eng, err := engine.FromDB(raw, "sqlite", engine.Config{
		Logger: slog.New(slog.NewTextHandler(&logBuf, nil)),
	})
	if err != nil {
		t.Fatalf("engine.FromDB: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("rollback refused"))

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		Transaction(context.Background(), eng, func(s *Session) error {
			panic("scope body panicked")
		})
	}()

	if !strings.Contains(logBuf.String(), "rollback failed") {
		t.Fatalf("expected the failed rollback to be logged, got %q", logBuf.String())
	}
}

func TestTransactionScopeRollsBackOnPanic(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		Transaction(context.Background(), s.Engine(), func(s *Session) error {
			panic("scope body panicked")
		})
	}()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
