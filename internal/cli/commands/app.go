package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/cli/config"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/database"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/logging"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge"
)

// app holds what exec and serve share: configuration, a logger and the
// translator over an open pool
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
	client *sqlbridge.Client
}

// loadConfig reads --config (or the default lookup) and applies --strict
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, err
	}
	if flag := cmd.Flags().Lookup("strict"); flag != nil && flag.Changed {
		cfg.Translator.Strict = strictFlag
	}
	return cfg, nil
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is not set (use sqlbridge.yml, SQLBRIDGE_DATABASE_URL or DATABASE_URL)")
	}

	db, dialect, err := database.Open(ctx, database.Options{Driver: cfg.Database.Driver, URL: cfg.Database.URL})
	if err != nil {
		return nil, stripCredentials(err)
	}

	client := sqlbridge.NewClient(db, dialect, sqlbridge.Config{
		Logger: logger,
		Strict: cfg.Translator.Strict,
	})

	return &app{cfg: cfg, logger: logger, db: db, client: client}, nil
}

func (a *app) Close() error {
	a.logger.Sync()
	return a.db.Close()
}
