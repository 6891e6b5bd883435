package grammar

import "fmt"

// ValidationError reports malformed builder state: a missing table, a
// negative limit/offset, mismatched INSERT row shapes or an unsupported
// operator. It is raised before any statement is sent to the database.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "dbquery: " + e.Msg
}

// NewValidationError constructs a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// CompilationError reports that a grammar cannot render the given state for
// its dialect.
type CompilationError struct {
	Dialect string
	Msg     string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("dbquery: %s grammar: %s", e.Dialect, e.Msg)
}
