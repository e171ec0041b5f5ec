package query

import (
	"fmt"
	"strings"
)

// Dialect selects placeholder syntax for a database driver
type Dialect int

const (
	// Postgres uses $1, $2, ... placeholders (drivers "pgx" and "postgres")
	Postgres Dialect = iota
	// SQLite uses ? placeholders (driver "sqlite3")
	SQLite
)

// String returns the dialect name
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the bind marker for the n-th (1-indexed) argument
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// DialectFor maps a database/sql driver name to its dialect
func DialectFor(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return Postgres, fmt.Errorf("unsupported database driver: %s", driverName)
	}
}

// quoteIdent validates and double-quotes an identifier. Qualified names are
// quoted per segment; "*" passes through.
func quoteIdent(identifier string) (string, error) {
	if identifier == "*" {
		return identifier, nil
	}
	if err := validateIdentifier(identifier); err != nil {
		return "", err
	}
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		parts[i] = `"` + part + `"`
	}
	return strings.Join(parts, "."), nil
}

// validateIdentifier validates that an identifier only contains safe characters
// (letters, digits, underscore, and a single dot for qualified names).
func validateIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if strings.Count(identifier, ".") > 1 || strings.HasPrefix(identifier, ".") || strings.HasSuffix(identifier, ".") {
		return fmt.Errorf("%w: %s", ErrInvalidIdentifier, identifier)
	}
	for _, char := range identifier {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_' || char == '.') {
			return fmt.Errorf("%w: %s (contains invalid character: %c)", ErrInvalidIdentifier, identifier, char)
		}
	}
	return nil
}
