package dialect

import (
	"fmt"

	"github.com/guadalsistema/dbquery/dialect/mysql"
	"github.com/guadalsistema/dbquery/dialect/postgres"
	"github.com/guadalsistema/dbquery/dialect/sqlite"
)

// Dialect represents a SQL dialect (placeholder/quoting behavior).
type Dialect interface {
	// Name returns the canonical dialect name ("sqlite", "postgres", "mysql")
	Name() string

	// Placeholder returns the placeholder for the given 1-based position,
	// e.g. "?" for SQLite/MySQL, "$1", "$2", ... for Postgres
	Placeholder(position int) string

	// SupportsReturning indicates if the backend supports RETURNING clauses
	SupportsReturning() bool

	// Quote quotes an identifier (table/column name)
	Quote(identifier string) string
}

// ByName returns a dialect by name.
func ByName(name string) (Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return &sqlite.Dialect{}, nil
	case "postgres", "postgresql":
		return &postgres.Dialect{}, nil
	case "mysql":
		return &mysql.Dialect{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect: %s", name)
	}
}
