package engine

// Register the drivers behind the supported URL schemes so connection URLs
// work without an explicit driver import on the caller's side.
import (
	_ "github.com/go-sql-driver/mysql" // mysql
	_ "github.com/lib/pq"              // postgres
	_ "modernc.org/sqlite"             // sqlite
)
