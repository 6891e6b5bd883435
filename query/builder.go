package query

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/guadalsistema/dbquery/dialect"
	"github.com/guadalsistema/dbquery/grammar"
)

// Connection defines the execution capability query builders depend on.
// Builders depend on this interface rather than directly on a session or
// engine.
type Connection interface {
	// Dialect returns the SQL dialect used for placeholder formatting
	Dialect() dialect.Dialect

	// Logger returns the logger for SQL statement tracing (may be nil)
	Logger() *slog.Logger

	// Context returns the connection context
	Context() context.Context

	// DumpWriter returns the diagnostic sink used by Dump
	DumpWriter() io.Writer

	// QueryContext executes a query that returns rows
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// ExecContext runs a statement that returns no rows
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Builder is the fluent surface for assembling one statement. Every chain
// method returns a new Builder wrapping a cloned state, so a builder
// reference may be branched into divergent chains without aliasing.
// Validation failures at chain calls are recorded on the returned builder
// and surfaced by the terminal method.
type Builder struct {
	conn    Connection
	grammar *grammar.Grammar
	state   *grammar.State
	err     error
}

// NewBuilder creates a builder targeting the given table.
func NewBuilder(conn Connection, table string) *Builder {
	return &Builder{
		conn:    conn,
		grammar: grammar.New(conn.Dialect()),
		state:   &grammar.State{Table: table},
	}
}

// fork clones the builder for the next link of the chain.
func (b *Builder) fork() *Builder {
	return &Builder{
		conn:    b.conn,
		grammar: b.grammar,
		state:   b.state.Clone(),
		err:     b.err,
	}
}

func (b *Builder) fail(format string, args ...any) *Builder {
	nb := b.fork()
	if nb.err == nil {
		nb.err = grammar.NewValidationError(format, args...)
	}
	return nb
}

// Select specifies which columns to select. Passing none keeps the
// wildcard default.
func (b *Builder) Select(columns ...string) *Builder {
	nb := b.fork()
	if len(columns) > 0 {
		nb.state.Columns = columns
	}
	return nb
}

// Distinct enables DISTINCT on the selected columns.
func (b *Builder) Distinct() *Builder {
	nb := b.fork()
	nb.state.Distinct = true
	return nb
}

// Where adds an AND condition. With one trailing argument the operator is
// "=": Where("id", 1). With two it is the operator and value:
// Where("votes", ">", 10).
func (b *Builder) Where(column string, args ...any) *Builder {
	return b.where("AND", column, args)
}

// OrWhere adds an OR condition with the same argument forms as Where.
func (b *Builder) OrWhere(column string, args ...any) *Builder {
	return b.where("OR", column, args)
}

func (b *Builder) where(connector, column string, args []any) *Builder {
	operator, value, err := splitWhereArgs(args)
	if err != nil {
		return b.fail("where %s: %v", column, err)
	}
	nb := b.fork()
	nb.state.Conditions = append(nb.state.Conditions, grammar.Condition{
		Connector: connector,
		Kind:      grammar.CondCompare,
		Column:    column,
		Operator:  operator,
		Value:     value,
	})
	return nb
}

func splitWhereArgs(args []any) (string, any, error) {
	switch len(args) {
	case 1:
		return "=", args[0], nil
	case 2:
		operator, ok := args[0].(string)
		if !ok {
			return "", nil, fmt.Errorf("operator must be a string, got %T", args[0])
		}
		if !grammar.SupportedOperator(operator) {
			return "", nil, fmt.Errorf("unsupported operator %q", operator)
		}
		return operator, args[1], nil
	default:
		return "", nil, fmt.Errorf("expected 1 or 2 arguments after the column, got %d", len(args))
	}
}

// WhereIn adds an AND condition matching rows whose column is in values.
// An empty value list compiles to a condition matching zero rows.
func (b *Builder) WhereIn(column string, values []any) *Builder {
	return b.whereList(grammar.CondIn, column, values)
}

// WhereNotIn adds an AND condition matching rows whose column is not in
// values. An empty value list compiles to a condition matching all rows.
func (b *Builder) WhereNotIn(column string, values []any) *Builder {
	return b.whereList(grammar.CondNotIn, column, values)
}

func (b *Builder) whereList(kind grammar.CondKind, column string, values []any) *Builder {
	nb := b.fork()
	nb.state.Conditions = append(nb.state.Conditions, grammar.Condition{
		Connector: "AND",
		Kind:      kind,
		Column:    column,
		Values:    append([]any(nil), values...),
	})
	return nb
}

// WhereNull adds an AND column IS NULL condition.
func (b *Builder) WhereNull(column string) *Builder {
	return b.whereUnary("AND", grammar.CondNull, column)
}

// WhereNotNull adds an AND column IS NOT NULL condition.
func (b *Builder) WhereNotNull(column string) *Builder {
	return b.whereUnary("AND", grammar.CondNotNull, column)
}

// OrWhereNull adds an OR column IS NULL condition.
func (b *Builder) OrWhereNull(column string) *Builder {
	return b.whereUnary("OR", grammar.CondNull, column)
}

// OrWhereNotNull adds an OR column IS NOT NULL condition.
func (b *Builder) OrWhereNotNull(column string) *Builder {
	return b.whereUnary("OR", grammar.CondNotNull, column)
}

func (b *Builder) whereUnary(connector string, kind grammar.CondKind, column string) *Builder {
	nb := b.fork()
	nb.state.Conditions = append(nb.state.Conditions, grammar.Condition{
		Connector: connector,
		Kind:      kind,
		Column:    column,
	})
	return nb
}

// Join adds an INNER JOIN. The operator may be omitted, defaulting to "=":
// Join("orders", "users.id", "orders.user_id") or
// Join("orders", "users.id", "=", "orders.user_id").
func (b *Builder) Join(table, left string, rest ...string) *Builder {
	return b.join("JOIN", table, left, rest)
}

// LeftJoin adds a LEFT JOIN with the same argument forms as Join.
func (b *Builder) LeftJoin(table, left string, rest ...string) *Builder {
	return b.join("LEFT JOIN", table, left, rest)
}

// RightJoin adds a RIGHT JOIN with the same argument forms as Join.
func (b *Builder) RightJoin(table, left string, rest ...string) *Builder {
	return b.join("RIGHT JOIN", table, left, rest)
}

func (b *Builder) join(joinType, table, left string, rest []string) *Builder {
	var operator, right string
	switch len(rest) {
	case 1:
		operator, right = "=", rest[0]
	case 2:
		operator, right = rest[0], rest[1]
	default:
		return b.fail("join %s: expected 1 or 2 arguments after the left column, got %d", table, len(rest))
	}
	nb := b.fork()
	nb.state.Joins = append(nb.state.Joins, grammar.Join{
		Type:     joinType,
		Table:    table,
		Left:     left,
		Operator: operator,
		Right:    right,
	})
	return nb
}

// GroupBy adds GROUP BY columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	nb := b.fork()
	nb.state.GroupBy = append(nb.state.GroupBy, columns...)
	return nb
}

// Having adds an AND HAVING condition with the same argument forms as Where.
func (b *Builder) Having(column string, args ...any) *Builder {
	operator, value, err := splitWhereArgs(args)
	if err != nil {
		return b.fail("having %s: %v", column, err)
	}
	nb := b.fork()
	nb.state.Having = append(nb.state.Having, grammar.Condition{
		Connector: "AND",
		Kind:      grammar.CondCompare,
		Column:    column,
		Operator:  operator,
		Value:     value,
	})
	return nb
}

// OrderBy adds an ascending ORDER BY entry.
func (b *Builder) OrderBy(column string) *Builder {
	return b.orderBy(column, "ASC")
}

// OrderByDesc adds a descending ORDER BY entry.
func (b *Builder) OrderByDesc(column string) *Builder {
	return b.orderBy(column, "DESC")
}

func (b *Builder) orderBy(column, direction string) *Builder {
	nb := b.fork()
	nb.state.Orders = append(nb.state.Orders, grammar.Order{Column: column, Direction: direction})
	return nb
}

// Limit sets the LIMIT. Negative values fail at this call, not at compile
// time.
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		return b.fail("LIMIT must be a non-negative integer, got %d", n)
	}
	nb := b.fork()
	nb.state.Limit = &n
	return nb
}

// Offset sets the OFFSET. Negative values fail at this call.
func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		return b.fail("OFFSET must be a non-negative integer, got %d", n)
	}
	nb := b.fork()
	nb.state.Offset = &n
	return nb
}

// ToSQL compiles the SELECT form of the builder without executing it and
// returns the SQL text plus the ordered bindings. It is pure: calling it
// any number of times yields identical output and leaves the builder
// untouched.
func (b *Builder) ToSQL() (string, []any, error) {
	return b.compile(grammar.OpSelect, nil)
}

// Dump compiles like ToSQL and writes the pair to the diagnostic sink in
// the form "SQL: <text>" / "Bindings: <list>". The write is its only side
// effect. A compile failure writes nothing; the error is recorded on the
// returned builder and surfaces at the next terminal.
func (b *Builder) Dump() *Builder {
	sqlStr, bindings, err := b.ToSQL()
	if err != nil {
		if b.err != nil {
			return b
		}
		nb := b.fork()
		nb.err = err
		return nb
	}
	w := b.conn.DumpWriter()
	fmt.Fprintf(w, "SQL: %s\n", sqlStr)
	fmt.Fprintf(w, "Bindings: %v\n", bindings)
	return b
}

// Get executes the SELECT and returns all matching rows. No matches yield
// an empty slice, not an error.
func (b *Builder) Get(ctx context.Context) ([]Row, error) {
	rows, err := b.queryState(ctx, b.state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows)
}

// GetAs executes the SELECT and scans all rows into dest, a pointer to a
// slice of structs mapped through `db` tags.
func (b *Builder) GetAs(ctx context.Context, dest any) error {
	rows, err := b.queryState(ctx, b.state)
	if err != nil {
		return err
	}
	defer rows.Close()
	return scanAll(rows, dest)
}

// First executes the SELECT with an implicit LIMIT 1 and returns the single
// row, or ErrNotFound when nothing matches.
func (b *Builder) First(ctx context.Context) (Row, error) {
	one := 1
	st := b.state.Clone()
	st.Limit = &one

	rows, err := b.queryState(ctx, st)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := ScanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[0], nil
}

// FirstAs executes the SELECT with an implicit LIMIT 1 and scans the row
// into dest, returning ErrNotFound when nothing matches.
func (b *Builder) FirstAs(ctx context.Context, dest any) error {
	one := 1
	st := b.state.Clone()
	st.Limit = &one

	rows, err := b.queryState(ctx, st)
	if err != nil {
		return err
	}
	defer rows.Close()
	return scanOne(rows, dest)
}

// Count returns the number of matching rows.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	v, err := b.aggregate(ctx, "COUNT", "*")
	if err != nil {
		return 0, err
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("dbquery: COUNT returned %T, expected an integer", v)
	}
	return n, nil
}

// Max returns the maximum value of column over the matching rows, or nil
// when there are none.
func (b *Builder) Max(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "MAX", column)
}

// Min returns the minimum value of column over the matching rows.
func (b *Builder) Min(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "MIN", column)
}

// Sum returns the sum of column over the matching rows.
func (b *Builder) Sum(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "SUM", column)
}

// Avg returns the average of column over the matching rows.
func (b *Builder) Avg(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "AVG", column)
}

func (b *Builder) aggregate(ctx context.Context, fn, column string) (any, error) {
	st := b.state.Clone()
	st.Aggregate = &grammar.Aggregate{Func: fn, Column: column}

	rows, err := b.queryState(ctx, st)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := ScanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[0]["aggregate"], nil
}

// Exists reports whether any row matches the query. It wraps the SELECT in
// an EXISTS subquery so matching rows are never materialized.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	st := b.state.Clone()
	st.Op = grammar.OpExists

	rows, err := b.queryState(ctx, st)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	all, err := ScanRows(rows)
	if err != nil {
		return false, err
	}
	if len(all) == 0 {
		return false, nil
	}
	return toBool(all[0]["exists_flag"]), nil
}

// Insert compiles and executes an INSERT of one or more rows. Every row
// must carry the same column set.
func (b *Builder) Insert(ctx context.Context, rows ...map[string]any) error {
	_, err := b.execState(ctx, grammar.OpInsert, func(st *grammar.State) {
		st.InsertRows = rows
	})
	return err
}

// InsertGetID inserts one row and returns the generated id. Dialects with
// RETURNING read it from the statement itself; MySQL falls back to
// LastInsertId.
func (b *Builder) InsertGetID(ctx context.Context, row map[string]any) (int64, error) {
	if b.conn.Dialect().SupportsReturning() {
		sqlStr, args, err := b.compile(grammar.OpInsert, func(st *grammar.State) {
			st.InsertRows = []map[string]any{row}
			st.Returning = []string{"id"}
		})
		if err != nil {
			return 0, err
		}

		rows, err := b.query(ctx, sqlStr, args)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		var id int64
		if err := scanOne(rows, &id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := b.execState(ctx, grammar.OpInsert, func(st *grammar.State) {
		st.InsertRows = []map[string]any{row}
	})
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update compiles and executes an UPDATE with the accumulated conditions
// and returns the number of affected rows. An unconditional update is
// legal; constraining it is the caller's responsibility.
func (b *Builder) Update(ctx context.Context, set map[string]any) (int64, error) {
	res, err := b.execState(ctx, grammar.OpUpdate, func(st *grammar.State) {
		st.UpdateSet = set
	})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete compiles and executes a DELETE with the accumulated conditions
// and returns the number of affected rows. An unconditional delete is
// legal.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	res, err := b.execState(ctx, grammar.OpDelete, nil)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// compile clones the state, applies the terminal's payload and renders it.
func (b *Builder) compile(op grammar.Op, prepare func(*grammar.State)) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	st := b.state.Clone()
	st.Op = op
	if prepare != nil {
		prepare(st)
	}
	return b.grammar.Compile(st)
}

func (b *Builder) queryState(ctx context.Context, st *grammar.State) (*sql.Rows, error) {
	if b.err != nil {
		return nil, b.err
	}
	sqlStr, args, err := b.grammar.Compile(st)
	if err != nil {
		return nil, err
	}
	return b.query(ctx, sqlStr, args)
}

func (b *Builder) query(ctx context.Context, sqlStr string, args []any) (*sql.Rows, error) {
	ctx = b.resolveContext(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.trace(sqlStr, args)
	rows, err := b.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, &ExecutionError{SQL: sqlStr, Err: err}
	}
	return rows, nil
}

func (b *Builder) execState(ctx context.Context, op grammar.Op, prepare func(*grammar.State)) (sql.Result, error) {
	sqlStr, args, err := b.compile(op, prepare)
	if err != nil {
		return nil, err
	}

	ctx = b.resolveContext(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.trace(sqlStr, args)
	res, err := b.conn.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, &ExecutionError{SQL: sqlStr, Err: err}
	}
	return res, nil
}

func (b *Builder) trace(sqlStr string, args []any) {
	if logger := b.conn.Logger(); logger != nil {
		logger.Debug("dbquery: sql compiled", "sql", sqlStr, "bindings_len", len(args))
	}
}

func (b *Builder) resolveContext(ctx context.Context) context.Context {
	if ctx == nil {
		return b.conn.Context()
	}
	return ctx
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		var parsed int64
		if _, err := fmt.Sscan(n, &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case float64:
		return b != 0
	case string:
		return b == "1" || b == "t" || b == "true"
	}
	return false
}
