package postgres

import "strconv"

// Dialect implements the dialect interface for PostgreSQL.
type Dialect struct{}

func (d *Dialect) Name() string {
	return "postgres"
}

func (d *Dialect) Placeholder(position int) string {
	return "$" + strconv.Itoa(position)
}

func (d *Dialect) SupportsReturning() bool {
	return true
}

func (d *Dialect) Quote(identifier string) string {
	return `"` + identifier + `"`
}
