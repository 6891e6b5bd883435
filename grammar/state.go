package grammar

// Op identifies which statement kind a State compiles to.
type Op int

const (
	OpSelect Op = iota
	OpExists
	OpInsert
	OpUpdate
	OpDelete
)

// CondKind identifies how a single condition is rendered.
type CondKind int

const (
	CondCompare CondKind = iota
	CondIn
	CondNotIn
	CondNull
	CondNotNull
)

// Condition is one entry of a WHERE or HAVING clause. Conditions render in
// insertion order; each condition after the first is prefixed by its
// connector.
type Condition struct {
	Connector string // "AND" or "OR"; empty defaults to "AND"
	Kind      CondKind
	Column    string
	Operator  string // comparison conditions only
	Value     any    // comparison conditions only
	Values    []any  // IN / NOT IN conditions only
}

// Join is one JOIN clause entry.
type Join struct {
	Type     string // "JOIN", "LEFT JOIN", "RIGHT JOIN"
	Table    string
	Left     string
	Operator string
	Right    string
}

// Order is one ORDER BY entry.
type Order struct {
	Column    string
	Direction string // "ASC" or "DESC"
}

// Aggregate selects a single aggregate expression instead of columns.
type Aggregate struct {
	Func   string // "COUNT", "MAX", "MIN", "AVG", "SUM"
	Column string
}

// State is the accumulated description of one statement under construction.
// It is built incrementally by the query builder and consumed read-only by
// Grammar.Compile.
type State struct {
	Op         Op
	Table      string
	Columns    []string // empty means "*"
	Distinct   bool
	Conditions []Condition
	Joins      []Join
	GroupBy    []string
	Having     []Condition
	Orders     []Order
	Limit      *int
	Offset     *int
	Aggregate  *Aggregate
	InsertRows []map[string]any
	UpdateSet  map[string]any
	Returning  []string
}

// Clone returns a deep copy of the state. Chain methods clone before
// mutating so that branching a builder chain never aliases shared state.
func (s *State) Clone() *State {
	c := *s

	c.Columns = append([]string(nil), s.Columns...)
	c.Conditions = append([]Condition(nil), s.Conditions...)
	c.Joins = append([]Join(nil), s.Joins...)
	c.GroupBy = append([]string(nil), s.GroupBy...)
	c.Having = append([]Condition(nil), s.Having...)
	c.Orders = append([]Order(nil), s.Orders...)
	c.Returning = append([]string(nil), s.Returning...)

	for i, cond := range c.Conditions {
		c.Conditions[i].Values = append([]any(nil), cond.Values...)
	}
	for i, cond := range c.Having {
		c.Having[i].Values = append([]any(nil), cond.Values...)
	}

	if s.Limit != nil {
		v := *s.Limit
		c.Limit = &v
	}
	if s.Offset != nil {
		v := *s.Offset
		c.Offset = &v
	}
	if s.Aggregate != nil {
		a := *s.Aggregate
		c.Aggregate = &a
	}

	if s.InsertRows != nil {
		c.InsertRows = make([]map[string]any, len(s.InsertRows))
		for i, row := range s.InsertRows {
			m := make(map[string]any, len(row))
			for k, v := range row {
				m[k] = v
			}
			c.InsertRows[i] = m
		}
	}
	if s.UpdateSet != nil {
		m := make(map[string]any, len(s.UpdateSet))
		for k, v := range s.UpdateSet {
			m[k] = v
		}
		c.UpdateSet = m
	}

	return &c
}
