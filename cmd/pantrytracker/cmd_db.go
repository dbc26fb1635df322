package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/pantrytracker/internal/config"
	"github.com/dukerupert/pantrytracker/internal/database"
	"github.com/dukerupert/pantrytracker/internal/logging"
	"github.com/dukerupert/pantrytracker/internal/seed"
)

// boot loads config, sets up logging and opens the database. Opening the
// database applies pending migrations.
func boot() (*config.Config, *slog.Logger, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := setupLogger(cfg)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, logger, db, nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	return logging.Setup(cfg.LogLevel, cfg.LogFormat)
}

func seedOptions(cfg *config.Config) seed.Options {
	return seed.Options{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, db, err := boot()
		if err != nil {
			return err
		}
		defer db.Close()

		version, err := database.Version(db)
		if err != nil {
			return err
		}
		logger.Info("database migrated", "path", cfg.DBPath, "version", version)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert categories and the admin account if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, db, err := boot()
		if err != nil {
			return err
		}
		defer db.Close()

		return seed.Run(context.Background(), db, seedOptions(cfg), logger.With("component", "seed"))
	},
}
