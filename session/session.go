package session

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/guadalsistema/dbquery/dialect"
	"github.com/guadalsistema/dbquery/engine"
	"github.com/guadalsistema/dbquery/query"
)

// Session executes compiled statements against an engine, routing through
// the active transaction when one is open. It implements query.Connection.
//
// A session must not be shared by concurrent logical operations while a
// transaction is open: statement order within a transaction is
// semantically significant.
type Session struct {
	engine *engine.Engine
	ctx    context.Context
	tx     *sql.Tx // nil if not in a transaction
}

// New creates a session bound to the engine.
func New(ctx context.Context, eng *engine.Engine) *Session {
	return &Session{engine: eng, ctx: ctx}
}

// Engine returns the underlying engine.
func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// Dialect returns the engine's SQL dialect.
func (s *Session) Dialect() dialect.Dialect {
	return s.engine.Dialect()
}

// Logger returns the engine's logger (may be nil).
func (s *Session) Logger() *slog.Logger {
	return s.engine.Logger()
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// DumpWriter returns the engine's diagnostic sink.
func (s *Session) DumpWriter() io.Writer {
	return s.engine.DumpWriter()
}

// Table creates a query builder for the named table, executing through
// this session.
func (s *Session) Table(name string) *query.Builder {
	return query.NewBuilder(s, name)
}

// QueryContext executes a query that returns rows.
func (s *Session) QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, q, args...)
	}
	return s.engine.DB().QueryContext(ctx, q, args...)
}

// ExecContext runs a statement that returns no rows.
func (s *Session) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, q, args...)
	}
	return s.engine.DB().ExecContext(ctx, q, args...)
}

// Begin starts a transaction on the session. Nested transactions are not
// supported and fail fast.
func (s *Session) Begin() error {
	if s.tx != nil {
		return ErrAlreadyInTransaction
	}
	tx, err := s.engine.DB().BeginTx(s.ctx, nil)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

// Commit commits the transaction (only valid inside a transaction).
func (s *Session) Commit() error {
	if s.tx == nil {
		return ErrNotInTransaction
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// Rollback rolls back the transaction (only valid inside a transaction).
func (s *Session) Rollback() error {
	if s.tx == nil {
		return ErrNotInTransaction
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

// InTransaction reports whether the session has an open transaction.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Close rolls back any open transaction.
func (s *Session) Close() error {
	if s.tx != nil {
		return s.Rollback()
	}
	return nil
}
