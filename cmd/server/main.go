package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mangorocketofficial/tech-blog/internal/app/bootstrap"
	"github.com/mangorocketofficial/tech-blog/internal/config"
	applog "github.com/mangorocketofficial/tech-blog/internal/log"
)

// release is stamped at build time with -ldflags "-X main.release=...".
var release = "dev"

// envFile is loaded before configuration; a missing file is not an error.
var envFile string

// rootCmd serves the blog when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "techblog",
	Short: "Korean tech review blog with an admin console and AI info posts",
	Long: `techblog serves the public blog, its JSON API, the admin console,
RSS and sitemap feeds.

Run without arguments to start the HTTP server. Configuration is read from
the environment (and an optional .env file).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// services bundles the ambient services every command needs.
type services struct {
	cfg    *config.Config
	logger *logrus.Logger
	sentry *sentry.Hub
	flush  func()
}

func loadServices() (*services, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, eris.Wrap(err, "failure initialising logger")
	}

	hub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     release,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failure initialising sentry")
	}

	return &services{cfg: cfg, logger: logger, sentry: hub, flush: flush}, nil
}

// loadEnvFile applies path to the environment. Only a missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return nil
		}
		return eris.Wrapf(err, "failure loading env file %s", path)
	}
	return nil
}

func (svc *services) dependencies() bootstrap.Dependencies {
	return bootstrap.Dependencies{Config: svc.cfg, Logger: svc.logger, SentryHub: svc.sentry}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(nextSlugCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
