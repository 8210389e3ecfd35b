package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
	"github.com/nextlevelbuilder/cmdgate/internal/store/pg"
	"github.com/nextlevelbuilder/cmdgate/internal/store/sqlite"
	"github.com/nextlevelbuilder/cmdgate/internal/tracing"
	"github.com/nextlevelbuilder/cmdgate/internal/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook verdict service",
		Long: "Terminates messenger callbacks (Slack, Telegram, Twilio, Discord), authenticates them, " +
			"and applies human verdicts to pending approval requests. Configured entirely from the environment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			return runServe()
		},
	}
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := webhook.FromEnv()
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, "cmdgate-webhook")
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer shutdownTracing(context.Background())

	db, err := pg.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	requests := pg.NewPGRequestStore(db)

	var events store.RateLimitStore
	if cfg.SQLitePath != "" {
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer s.Close()
		events = s
		slog.Info("rate limit events on local sqlite", "path", cfg.SQLitePath)
	} else {
		events = pg.NewPGRateLimitStore(db)
	}

	go webhook.RunCleanup(ctx, cfg.CleanupSchedule, requests, events)

	return webhook.NewServer(cfg, requests, events).Start(ctx)
}
