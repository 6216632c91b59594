package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/songsort/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when missing and initializes
// the run history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return err
		}
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		config.ApplyEnv(nil)
		r.config = config
		r.writePlain("✓ Created %s\n", r.configPath)
	} else {
		r.writePlain("✓ Using existing %s\n", r.configPath)
	}

	if r.config.Database.Path == "" {
		r.writePlain("- Run history disabled (database.path is empty)\n")
	} else {
		r.logger.Info("initializing database", "path", r.config.Database.Path)
		db, err := shared.OpenHistory(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		db.Close()
		r.writePlain("✓ Run history database ready at %s\n", r.config.Database.Path)
	}

	if err := r.config.Validate(); err != nil {
		r.writePlain("\n⚠ %v\n", err)
		r.writePlain("Edit %s or set the environment variables, then run:\n", r.configPath)
		r.writePlain("  songsort auth spotify\n  songsort run\n")
		return nil
	}

	r.writePlain("\nNext: songsort auth spotify, then songsort run\n")
	return nil
}
