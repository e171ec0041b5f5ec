// Package database opens the database/sql pool the translator runs on
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
)

// Options names the database to open. Pool limits are applied by the
// caller; serve hands them to server.DatabaseConfig.
type Options struct {
	Driver string
	URL    string
}

// DriverName maps configured driver aliases to registered database/sql drivers
func DriverName(driver string) string {
	switch strings.ToLower(driver) {
	case "", "pgx", "postgresql":
		return "pgx"
	case "postgres", "pq":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return driver
	}
}

// Open opens and pings a pool, returning it with the SQL dialect of its driver
func Open(ctx context.Context, opts Options) (*sql.DB, query.Dialect, error) {
	if opts.URL == "" {
		return nil, 0, errors.New("database url is required")
	}

	driver := DriverName(opts.Driver)
	dialect, err := query.DialectFor(driver)
	if err != nil {
		return nil, 0, err
	}

	db, err := sql.Open(driver, opts.URL)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, dialect, nil
}
