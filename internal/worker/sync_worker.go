package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"horas/internal/amqp"
	"horas/internal/core"
)

// DayProcessor exports saved days. services.SyncProcessor implements it.
type DayProcessor interface {
	ProcessDay(ctx context.Context, userID string, date core.Date) error
	ProcessBatch(ctx context.Context) int
	RefreshCatalog(ctx context.Context) error
}

// SyncWorker turns day.saved messages into exports and drains the backlog
// left behind by missed messages or worker downtime.
type SyncWorker struct {
	processor DayProcessor
	// startupBatches bounds how many batches StartupSyncCheck drains.
	startupBatches int
}

func NewSyncWorker(processor DayProcessor) *SyncWorker {
	return &SyncWorker{processor: processor, startupBatches: 5}
}

// HandleDaySaved processes a single day.saved message. A malformed key is
// logged and acknowledged since redelivery cannot fix it.
func (w *SyncWorker) HandleDaySaved(ctx context.Context, msg *amqp.DaySavedMessage) error {
	slog.InfoContext(ctx, "Processing day saved message",
		"user_id", msg.UserID,
		"date", msg.Date,
		"version", msg.Version)

	if strings.TrimSpace(msg.UserID) == "" {
		slog.WarnContext(ctx, "Dropping day saved message without user", "date", msg.Date)
		return nil
	}
	date, err := core.ParseDate(msg.Date)
	if err != nil {
		slog.WarnContext(ctx, "Dropping day saved message with invalid date",
			"user_id", msg.UserID, "date", msg.Date, "error", err)
		return nil
	}

	if err := w.processor.ProcessDay(ctx, msg.UserID, date); err != nil {
		return fmt.Errorf("sync day %s %s: %w", msg.UserID, msg.Date, err)
	}
	return nil
}

// StartupSyncCheck mirrors the catalog and exports what is already pending.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if err := w.processor.RefreshCatalog(ctx); err != nil {
		slog.WarnContext(ctx, "Catalog refresh failed on startup, keeping stored catalog", "error", err)
	}

	total := 0
	for i := 0; i < w.startupBatches; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n := w.processor.ProcessBatch(ctx)
		total += n
		if n == 0 {
			break
		}
	}

	if total == 0 {
		slog.InfoContext(ctx, "No pending days found on startup")
	} else {
		slog.InfoContext(ctx, "Startup sync completed", "exported", total)
	}
	return nil
}
