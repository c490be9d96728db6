// Package worker delivers goal lifecycle notifications. It consumes event
// messages from AMQP, resolves the full event from storage and hands it to a
// Notifier, with a periodic sweep over unsent events as the backup path for
// lost messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"risparmio/internal/amqp"
	"risparmio/internal/core"
	"risparmio/internal/storage"
)

// Notifier is the delivery target for goal lifecycle notifications.
type Notifier interface {
	NotifyGoalEvent(ctx context.Context, event storage.GoalEvent) error
}

// LogNotifier writes notifications to the structured log. It is the default
// sink when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyGoalEvent(ctx context.Context, event storage.GoalEvent) error {
	slog.InfoContext(ctx, "Goal event notification",
		"event_id", event.ID,
		"goal_id", event.GoalID,
		"event", event.Event,
		"occurred_at", event.CreatedAt.Format(time.RFC3339))
	return nil
}

// NotifyWorker processes goal event notifications from the queue and from the
// pending-events sweep.
type NotifyWorker struct {
	storage   *storage.SQLiteRepository
	notifier  Notifier
	batchSize int
}

func NewNotifyWorker(storage *storage.SQLiteRepository, notifier Notifier, batchSize int) *NotifyWorker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &NotifyWorker{
		storage:   storage,
		notifier:  notifier,
		batchSize: batchSize,
	}
}

// HandleEventMessage processes a single goal event message from AMQP.
func (w *NotifyWorker) HandleEventMessage(ctx context.Context, msg *amqp.GoalEventMessage) error {
	event, err := w.storage.GetGoalEvent(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The row is gone, nothing to deliver. Ack instead of requeueing forever.
			slog.WarnContext(ctx, "Goal event no longer exists", "event_id", msg.ID)
			return nil
		}
		return fmt.Errorf("get goal event: %w", err)
	}
	if event.NotifiedAt != nil {
		// Already delivered, likely a redelivery after a lost ack.
		return nil
	}
	return w.deliver(ctx, event)
}

// ProcessPendingEvents delivers events whose notification was never sent.
// This is the backup mechanism in case AMQP messages are lost.
func (w *NotifyWorker) ProcessPendingEvents(ctx context.Context) error {
	pending, err := w.storage.GetPendingEvents(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending events: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending goal events", "count", len(pending))

	for _, event := range pending {
		if err := w.deliver(ctx, event); err != nil {
			slog.ErrorContext(ctx, "Failed to deliver goal event",
				"event_id", event.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck sweeps a larger batch of pending events at worker startup to
// recover from downtime.
func (w *NotifyWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingEvents(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending events for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending goal events found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending goal events on startup, processing...",
		"count", len(pending))

	delivered := 0
	failed := 0
	for _, event := range pending {
		if err := w.deliver(ctx, event); err != nil {
			slog.ErrorContext(ctx, "Failed to deliver goal event during startup",
				"event_id", event.ID, "error", err)
			failed++
			continue
		}
		delivered++
	}

	slog.InfoContext(ctx, "Startup notification sweep completed",
		"total", len(pending),
		"delivered", delivered,
		"errors", failed)
	return nil
}

func (w *NotifyWorker) deliver(ctx context.Context, event storage.GoalEvent) error {
	if err := w.notifier.NotifyGoalEvent(ctx, event); err != nil {
		return fmt.Errorf("notify goal event: %w", err)
	}
	if err := w.storage.MarkEventNotified(ctx, event.ID, time.Now().UTC()); err != nil {
		// Delivery succeeded, only the bookkeeping failed. The sweep will retry.
		slog.ErrorContext(ctx, "Failed to mark event notified",
			"event_id", event.ID, "error", err)
	}
	return nil
}
