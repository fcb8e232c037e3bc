package main

import (
	"context"
	"fmt"

	"github.com/rpattn/chargemap/internal/config"
	"github.com/rpattn/chargemap/internal/db"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the load audit log migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := db.RunMigrations(cfg.Database); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			return nil
		},
	}
}
