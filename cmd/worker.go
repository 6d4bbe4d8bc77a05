package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/polyscribe/polyscribe/internal/config"
	"github.com/polyscribe/polyscribe/internal/worker"
)

func workerCmd() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run queue consumers and the retention sweeper",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("PS_DATABASE_URL"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Number of concurrent job consumers",
				Sources: cli.EnvVars("PS_WORKER_CONCURRENCY"),
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
			if v := cmd.Int("concurrency"); v > 0 {
				cfg.Worker.Concurrency = int(v)
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set PS_DATABASE_URL env or database.url in config)")
			}

			log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("starting worker")

			return worker.Run(ctx, cfg)
		},
	}
}
