package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/polyscribe/polyscribe/internal/api"
	"github.com/polyscribe/polyscribe/internal/config"
)

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("PS_DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set PS_DATABASE_URL env or database.url in config)")
			}

			return api.Run(ctx, cfg)
		},
	}
}
