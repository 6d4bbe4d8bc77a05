package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "polyscribe",
		Version: version,
		Usage:   "Batch audio transcription service with translation and multi-format output",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("PS_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("PS_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serverCmd(),
			workerCmd(),
			migrateCmd(),
		},
	}
}
