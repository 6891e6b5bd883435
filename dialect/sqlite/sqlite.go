package sqlite

// Dialect implements the dialect interface for SQLite.
type Dialect struct{}

func (d *Dialect) Name() string {
	return "sqlite"
}

func (d *Dialect) Placeholder(position int) string {
	return "?"
}

func (d *Dialect) SupportsReturning() bool {
	return true // SQLite 3.35.0+ supports RETURNING
}

func (d *Dialect) Quote(identifier string) string {
	return `"` + identifier + `"`
}
