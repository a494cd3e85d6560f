package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(background(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize events publisher: %w", err)
	}
	defer publisher.Close()

	deps := app.Deps{Config: cfg, DB: db, Logger: logger, Publisher: publisher}
	if cfg.Elasticsearch.URL != "" {
		index, err := search.NewIndex(cfg.Elasticsearch)
		if err != nil {
			logger.Warn("search index unavailable, catalog search uses the database", "error", err)
		} else {
			deps.Index = index
		}
	}

	server := app.New(deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.App.Port, "broker", cfg.Events.Broker)
		errCh <- server.Listen(cfg.App.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	logger.Info("server gracefully stopped")
	return nil
}

// background is used by commands that run without signal handling.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
