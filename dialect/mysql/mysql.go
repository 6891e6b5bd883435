package mysql

// Dialect implements the dialect interface for MySQL.
type Dialect struct{}

func (d *Dialect) Name() string {
	return "mysql"
}

func (d *Dialect) Placeholder(position int) string {
	return "?"
}

func (d *Dialect) SupportsReturning() bool {
	return false // MySQL doesn't support RETURNING
}

func (d *Dialect) Quote(identifier string) string {
	return "`" + identifier + "`"
}
