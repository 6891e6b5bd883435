package grammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guadalsistema/dbquery/dialect"
)

// Grammar renders a State into SQL text and an ordered bindings list for
// one dialect. Rendering is a single linear pass over the state in fixed
// clause order; every bound value is appended to the bindings at the moment
// its placeholder is emitted, which guarantees that bindings[i] corresponds
// to the i-th placeholder in the text. Values are never interpolated into
// the SQL itself.
type Grammar struct {
	d dialect.Dialect
}

// New creates a grammar for the given dialect.
func New(d dialect.Dialect) *Grammar {
	return &Grammar{d: d}
}

// Dialect returns the dialect this grammar renders for.
func (g *Grammar) Dialect() dialect.Dialect {
	return g.d
}

// supportedOperators is the comparison operator whitelist for WHERE and
// HAVING conditions. IN/NOT IN and IS (NOT) NULL have dedicated kinds.
var supportedOperators = map[string]struct{}{
	"=":        {},
	"!=":       {},
	"<>":       {},
	"<":        {},
	">":        {},
	"<=":       {},
	">=":       {},
	"LIKE":     {},
	"NOT LIKE": {},
}

// SupportedOperator reports whether op may be used in a comparison
// condition. The LIKE forms are matched case-insensitively.
func SupportedOperator(op string) bool {
	_, ok := supportedOperators[strings.ToUpper(op)]
	return ok
}

// Compile renders the state into SQL text plus the ordered bindings list.
func (g *Grammar) Compile(s *State) (string, []any, error) {
	if s.Table == "" {
		return "", nil, NewValidationError("table name is required")
	}

	var (
		sql  string
		args []any
		err  error
	)

	switch s.Op {
	case OpSelect:
		sql, args, err = g.compileSelect(s)
	case OpExists:
		sql, args, err = g.compileExists(s)
	case OpInsert:
		sql, args, err = g.compileInsert(s)
	case OpUpdate:
		sql, args, err = g.compileUpdate(s)
	case OpDelete:
		sql, args, err = g.compileDelete(s)
	default:
		err = &CompilationError{Dialect: g.d.Name(), Msg: fmt.Sprintf("unknown operation %d", s.Op)}
	}
	if err != nil {
		return "", nil, err
	}

	return g.formatPlaceholders(sql), args, nil
}

func (g *Grammar) compileSelect(s *State) (string, []any, error) {
	var sql strings.Builder
	var args []any

	sql.WriteString("SELECT ")
	if s.Distinct && s.Aggregate == nil {
		sql.WriteString("DISTINCT ")
	}

	if s.Aggregate != nil {
		// The aggregate expression replaces the column list; ORDER BY,
		// LIMIT and OFFSET are dropped for aggregate statements.
		sql.WriteString(s.Aggregate.Func)
		sql.WriteString("(")
		sql.WriteString(s.Aggregate.Column)
		sql.WriteString(") AS aggregate")
	} else if len(s.Columns) > 0 {
		sql.WriteString(strings.Join(s.Columns, ", "))
	} else {
		sql.WriteString("*")
	}

	sql.WriteString(" FROM ")
	sql.WriteString(s.Table)

	g.writeJoins(&sql, s.Joins)

	if err := g.writeConditions(&sql, " WHERE ", s.Conditions, &args); err != nil {
		return "", nil, err
	}

	if len(s.GroupBy) > 0 {
		sql.WriteString(" GROUP BY ")
		sql.WriteString(strings.Join(s.GroupBy, ", "))
	}

	if err := g.writeConditions(&sql, " HAVING ", s.Having, &args); err != nil {
		return "", nil, err
	}

	if s.Aggregate == nil {
		if len(s.Orders) > 0 {
			sql.WriteString(" ORDER BY ")
			parts := make([]string, len(s.Orders))
			for i, o := range s.Orders {
				parts[i] = o.Column + " " + o.Direction
			}
			sql.WriteString(strings.Join(parts, ", "))
		}

		if s.Limit != nil {
			if *s.Limit < 0 {
				return "", nil, NewValidationError("LIMIT must be a non-negative integer, got %d", *s.Limit)
			}
			fmt.Fprintf(&sql, " LIMIT %d", *s.Limit)
		}
		if s.Offset != nil {
			if *s.Offset < 0 {
				return "", nil, NewValidationError("OFFSET must be a non-negative integer, got %d", *s.Offset)
			}
			fmt.Fprintf(&sql, " OFFSET %d", *s.Offset)
		}
	}

	return sql.String(), args, nil
}

func (g *Grammar) compileExists(s *State) (string, []any, error) {
	inner := s.Clone()
	inner.Op = OpSelect
	inner.Columns = []string{"1"}
	inner.Aggregate = nil
	inner.Orders = nil
	inner.Limit = nil
	inner.Offset = nil

	innerSQL, args, err := g.compileSelect(inner)
	if err != nil {
		return "", nil, err
	}

	return "SELECT EXISTS(" + innerSQL + ") AS exists_flag", args, nil
}

func (g *Grammar) compileInsert(s *State) (string, []any, error) {
	if len(s.InsertRows) == 0 {
		return "", nil, NewValidationError("no values to insert")
	}

	columns, err := insertColumns(s.InsertRows)
	if err != nil {
		return "", nil, err
	}

	var sql strings.Builder
	var args []any

	sql.WriteString("INSERT INTO ")
	sql.WriteString(s.Table)
	sql.WriteString(" (")
	sql.WriteString(strings.Join(columns, ", "))
	sql.WriteString(") VALUES ")

	for i, row := range s.InsertRows {
		if i > 0 {
			sql.WriteString(", ")
		}
		sql.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sql.WriteString(", ")
			}
			sql.WriteString("?")
			args = append(args, row[col])
		}
		sql.WriteString(")")
	}

	if err := g.writeReturning(&sql, s.Returning); err != nil {
		return "", nil, err
	}

	return sql.String(), args, nil
}

func (g *Grammar) compileUpdate(s *State) (string, []any, error) {
	if len(s.UpdateSet) == 0 {
		return "", nil, NewValidationError("no columns to update")
	}

	var sql strings.Builder
	var args []any

	sql.WriteString("UPDATE ")
	sql.WriteString(s.Table)
	sql.WriteString(" SET ")

	// Sorted column order keeps rendering deterministic across runs.
	columns := make([]string, 0, len(s.UpdateSet))
	for col := range s.UpdateSet {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for i, col := range columns {
		if i > 0 {
			sql.WriteString(", ")
		}
		sql.WriteString(col)
		sql.WriteString(" = ?")
		args = append(args, s.UpdateSet[col])
	}

	if err := g.writeConditions(&sql, " WHERE ", s.Conditions, &args); err != nil {
		return "", nil, err
	}
	if err := g.writeReturning(&sql, s.Returning); err != nil {
		return "", nil, err
	}

	return sql.String(), args, nil
}

func (g *Grammar) compileDelete(s *State) (string, []any, error) {
	var sql strings.Builder
	var args []any

	sql.WriteString("DELETE FROM ")
	sql.WriteString(s.Table)

	if err := g.writeConditions(&sql, " WHERE ", s.Conditions, &args); err != nil {
		return "", nil, err
	}
	if err := g.writeReturning(&sql, s.Returning); err != nil {
		return "", nil, err
	}

	return sql.String(), args, nil
}

func (g *Grammar) writeJoins(sql *strings.Builder, joins []Join) {
	for _, j := range joins {
		sql.WriteString(" ")
		sql.WriteString(j.Type)
		sql.WriteString(" ")
		sql.WriteString(j.Table)
		sql.WriteString(" ON ")
		sql.WriteString(j.Left)
		sql.WriteString(" ")
		sql.WriteString(j.Operator)
		sql.WriteString(" ")
		sql.WriteString(j.Right)
	}
}

// writeConditions renders a condition list prefixed by keyword, appending
// bound values to args in lockstep with the placeholders it emits.
func (g *Grammar) writeConditions(sql *strings.Builder, keyword string, conds []Condition, args *[]any) error {
	if len(conds) == 0 {
		return nil
	}

	sql.WriteString(keyword)
	for i, c := range conds {
		if i > 0 {
			connector := c.Connector
			if connector == "" {
				connector = "AND"
			}
			sql.WriteString(" ")
			sql.WriteString(connector)
			sql.WriteString(" ")
		}

		switch c.Kind {
		case CondCompare:
			if !SupportedOperator(c.Operator) {
				return NewValidationError("unsupported operator %q", c.Operator)
			}
			sql.WriteString(c.Column)
			sql.WriteString(" ")
			sql.WriteString(c.Operator)
			sql.WriteString(" ?")
			*args = append(*args, c.Value)
		case CondIn:
			if len(c.Values) == 0 {
				// IN over the empty set matches nothing.
				sql.WriteString("0 = 1")
				continue
			}
			sql.WriteString(c.Column)
			sql.WriteString(" IN (")
			g.writeValueList(sql, c.Values, args)
			sql.WriteString(")")
		case CondNotIn:
			if len(c.Values) == 0 {
				// NOT IN over the empty set matches everything.
				sql.WriteString("1 = 1")
				continue
			}
			sql.WriteString(c.Column)
			sql.WriteString(" NOT IN (")
			g.writeValueList(sql, c.Values, args)
			sql.WriteString(")")
		case CondNull:
			sql.WriteString(c.Column)
			sql.WriteString(" IS NULL")
		case CondNotNull:
			sql.WriteString(c.Column)
			sql.WriteString(" IS NOT NULL")
		default:
			return &CompilationError{Dialect: g.d.Name(), Msg: fmt.Sprintf("unknown condition kind %d", c.Kind)}
		}
	}

	return nil
}

func (g *Grammar) writeValueList(sql *strings.Builder, values []any, args *[]any) {
	for i, v := range values {
		if i > 0 {
			sql.WriteString(", ")
		}
		sql.WriteString("?")
		*args = append(*args, v)
	}
}

func (g *Grammar) writeReturning(sql *strings.Builder, returning []string) error {
	if len(returning) == 0 {
		return nil
	}
	if !g.d.SupportsReturning() {
		return &CompilationError{Dialect: g.d.Name(), Msg: "dialect does not support RETURNING"}
	}
	sql.WriteString(" RETURNING ")
	sql.WriteString(strings.Join(returning, ", "))
	return nil
}

// insertColumns returns the shared column set of the payload rows in sorted
// order. Every row must carry exactly the same keys; a mismatch is a
// validation error rather than a silently malformed statement.
func insertColumns(rows []map[string]any) ([]string, error) {
	first := rows[0]
	if len(first) == 0 {
		return nil, NewValidationError("insert row has no columns")
	}

	columns := make([]string, 0, len(first))
	for col := range first {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for i, row := range rows[1:] {
		if len(row) != len(columns) {
			return nil, NewValidationError("insert row %d has %d columns, expected %d", i+1, len(row), len(columns))
		}
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				return nil, NewValidationError("insert row %d is missing column %q", i+1, col)
			}
		}
	}

	return columns, nil
}

// formatPlaceholders converts canonical ? placeholders to the dialect's
// placeholder syntax.
func (g *Grammar) formatPlaceholders(sql string) string {
	position := 1
	var b strings.Builder
	b.Grow(len(sql))
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			b.WriteString(g.d.Placeholder(position))
			position++
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}
