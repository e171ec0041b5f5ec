package sqlbridge

import (
	"fmt"
	"strings"
)

// UnsupportedError is returned in strict mode for statements or fragments
// outside the supported grammar. In lenient mode the same conditions produce
// warnings instead.
type UnsupportedError struct {
	Query    string    // statement prefix
	Reason   string    // why the statement as a whole was rejected, if it was
	Warnings []Warning // unsupported fragments, if any
}

// Error implements the error interface
func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported statement %q: %s", e.Query, e.Reason)
	}
	parts := make([]string, 0, len(e.Warnings))
	for _, w := range e.Warnings {
		parts = append(parts, w.String())
	}
	return fmt.Sprintf("unsupported SQL in %q: %s", e.Query, strings.Join(parts, "; "))
}

// ExecError is returned when the database rejects a translated statement. Err
// is the classified driver error, so errors.Is(err, query.ErrUniqueViolation)
// and friends work on it.
type ExecError struct {
	Table     string
	Operation string
	Err       error
}

// Error implements the error interface
func (e *ExecError) Error() string {
	return fmt.Sprintf("%s on %s failed: %v", e.Operation, e.Table, e.Err)
}

// Unwrap returns the underlying database error
func (e *ExecError) Unwrap() error {
	return e.Err
}
