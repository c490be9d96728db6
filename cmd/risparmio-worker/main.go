package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"risparmio/internal/amqp"
	"risparmio/internal/config"
	applog "risparmio/internal/log"
	"risparmio/internal/storage"
	"risparmio/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting risparmio-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	// The worker reads goal events from the same SQLite database the server
	// writes to.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	notifyWorker := worker.NewNotifyWorker(repo, worker.LogNotifier{}, cfg.EventBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// On startup, deliver any events that were recorded while the worker was
	// down.
	if err := notifyWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup notification sweep failed", applog.FieldError, err)
		// Keep going, the periodic sweep retries.
	}

	g, ctx := errgroup.WithContext(ctx)

	// Queue consumer.
	g.Go(func() error {
		err := amqpClient.ConsumeGoalEvents(ctx, func(msg *amqp.GoalEventMessage) error {
			return notifyWorker.HandleEventMessage(ctx, msg)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Periodic sweep over pending events, the backup path for lost messages.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.EventSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := notifyWorker.ProcessPendingEvents(ctx); err != nil {
					logger.Error("Pending event sweep failed", applog.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
