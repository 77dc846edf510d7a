package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file if missing, initializes the database, runs
// migrations, and creates the checkpoint directory.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	if dir := filepath.Dir(config.Database.Path); dir != "." && config.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := checkpoint.NewStore(config.Checkpoints.Dir, r.logger); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	r.writePlain("✓ Configuration: %s\n", configPath)
	r.writePlain("✓ Database ready: %s\n", config.Database.Path)
	r.writePlain("✓ Checkpoint directory: %s\n", config.Checkpoints.Dir)
	r.writePlainln("Next: set Spotify credentials in the config (or a .env file), then run 'merger auth login'.")

	return nil
}
