package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A config file is created from the embedded template when none exists at --config. The settings already
// loaded are kept, since a missing file means defaults were loaded.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}
