package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
)

func TestDriverName(t *testing.T) {
	tests := map[string]string{
		"":           "pgx",
		"pgx":        "pgx",
		"postgresql": "pgx",
		"postgres":   "postgres",
		"sqlite":     "sqlite3",
		"SQLite3":    "sqlite3",
		"oracle":     "oracle",
	}
	for in, want := range tests {
		assert.Equal(t, want, DriverName(in), in)
	}
}

func TestOpen_SQLite(t *testing.T) {
	db, dialect, err := Open(context.Background(), Options{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, query.SQLite, dialect)
	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestOpen_Errors(t *testing.T) {
	_, _, err := Open(context.Background(), Options{Driver: "sqlite3"})
	assert.ErrorContains(t, err, "database url is required")

	_, _, err = Open(context.Background(), Options{Driver: "oracle", URL: "x"})
	assert.ErrorContains(t, err, "unsupported database driver")

	_, _, err = Open(context.Background(), Options{Driver: "sqlite3", URL: "file:/nonexistent/dir/db.sqlite?mode=ro"})
	assert.ErrorContains(t, err, "failed to ping database")
}
