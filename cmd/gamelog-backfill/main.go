// Package main is the CLI entry point for gamelog-backfill.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/courtside-labs/gamelog-backfill/internal/config"
	"github.com/courtside-labs/gamelog-backfill/internal/job"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// A .env file in the working directory is optional.
	envErr := godotenv.Load()

	app := &cli.Command{
		Name:    "gamelog-backfill",
		Usage:   "Resumable bulk fetcher for player game logs",
		Version: version,
		Commands: []*cli.Command{
			runCommand(),
			statusCommand(),
			clearCommand(),
			versionCommand(),
		},
	}

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", envErr)
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML configuration file",
			Sources: cli.EnvVars("GLB_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (trace, debug, info, warn, error, fatal, panic)",
			Sources: cli.EnvVars("GLB_LOG_LEVEL"),
		},
	}
}

func runCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:    "season",
			Usage:   "Season to backfill (e.g. 2023-24)",
			Sources: cli.EnvVars("GLB_STATS_SEASON"),
		},
		&cli.StringFlag{
			Name:    "league-id",
			Usage:   "League ID (00 for the NBA, 10 for the WNBA)",
			Sources: cli.EnvVars("GLB_STATS_LEAGUE_ID"),
		},
		&cli.StringFlag{
			Name:    "checkpoint-interval",
			Usage:   "Identifiers processed between checkpoints",
			Sources: cli.EnvVars("GLB_CHECKPOINT_INTERVAL"),
		},
		&cli.StringFlag{
			Name:    "failure-policy",
			Usage:   "What a failed fetch means: skip (mark processed) or retry (leave for the next run)",
			Sources: cli.EnvVars("GLB_FAILURE_POLICY"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Path of the game log CSV",
			Sources: cli.EnvVars("GLB_OUTPUT_PATH"),
		},
		&cli.StringFlag{
			Name:    "server-listen-address",
			Usage:   "HTTP listen address for /metrics and /ready (e.g. :8080)",
			Sources: cli.EnvVars("GLB_LISTEN_ADDRESS"),
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Fetch every player's game log, resuming from the checkpoint if one exists",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			// --- CLI overrides ---
			if v := cmd.String("season"); v != "" {
				cfg.StatsAPI.Season = v
			}
			if v := cmd.String("league-id"); v != "" {
				cfg.StatsAPI.LeagueID = v
			}
			if v := cmd.String("checkpoint-interval"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("invalid --checkpoint-interval %q: %w", v, err)
				}
				cfg.Checkpoint.Interval = n
			}
			if v := cmd.String("failure-policy"); v != "" {
				cfg.Fetcher.FailurePolicy = v
			}
			if v := cmd.String("output"); v != "" {
				cfg.Output.Path = v
			}
			if v := cmd.String("server-listen-address"); v != "" {
				cfg.Server.ListenAddress = v
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"version": version,
				"commit":  commit,
				"season":  cfg.StatsAPI.Season,
				"league":  cfg.StatsAPI.LeagueID,
			}).Info("starting gamelog-backfill")

			j, err := job.New(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing job: %w", err)
			}
			defer j.Close()

			// --- OS signal handling; the last checkpoint is the resume point ---
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = j.Run(ctx)
			return err
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current checkpoint",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			j, err := job.New(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing job: %w", err)
			}
			defer j.Close()

			snap, err := j.Status(ctx)
			if err != nil {
				return err
			}
			if snap == nil {
				fmt.Println("no checkpoint; the next run starts fresh")
				return nil
			}
			fmt.Printf("checkpoint saved %s: %d identifiers processed, %d records\n",
				snap.SavedAt.Format("2006-01-02 15:04:05"), len(snap.Processed), len(snap.Records))
			if snap.Dropped > 0 {
				fmt.Printf("%d orphan records will be dropped and refetched\n", snap.Dropped)
			}
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete the checkpoint so the next run starts fresh",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			j, err := job.New(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing job: %w", err)
			}
			defer j.Close()
			return j.Clear(ctx)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("gamelog-backfill %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

// setup loads the configuration and builds the logger.
func setup(cmd *cli.Command) (*config.Config, *logrus.Entry, error) {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath != "" {
			return nil, nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, newLogger(cfg.Log), nil
}

func newLogger(cfg config.LogConfig) *logrus.Entry {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger.WithField("app", "gamelog-backfill")
}
