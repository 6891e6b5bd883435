package query

import "github.com/kisielk/sqlstruct"

// The init function sets up the sqlstruct package with custom configurations.
// It changes the struct field tag used for SQL mapping to "db" and modifies
// the default name mapping function to convert struct field names to snake_case.
func init() {
	sqlstruct.TagName = "db"
	sqlstruct.NameMapper = sqlstruct.ToSnakeCase
}
