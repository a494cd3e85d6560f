package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storefront/internal/events"
	"storefront/internal/logging"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume storefront events from the configured broker and log them",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(background(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	consumer, err := events.NewConsumer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize events consumer: %w", err)
	}
	defer consumer.Close()

	logger.Info("consuming events", "broker", cfg.Events.Broker)
	err = consumer.Consume(ctx, logEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consumer stopped: %w", err)
	}
	logger.Info("worker stopped")
	return nil
}

func logEvent(ctx context.Context, e events.Event) error {
	logging.FromContext(ctx).Info("event received",
		"type", e.Type,
		"key", e.Key,
		"occurred_at", e.OccurredAt,
		"payload", e.Payload,
	)
	return nil
}
