package worker

import (
	"context"
	"log/slog"
	"time"

	"horas/internal/services"
)

// Auditor runs one audit pass. services.AuditProcessor implements it.
type Auditor interface {
	Run(ctx context.Context, now time.Time) (services.AuditReport, error)
}

// AuditWorker runs the auditor once at start and then on every tick.
type AuditWorker struct {
	auditor  Auditor
	interval time.Duration
	now      func() time.Time
}

func NewAuditWorker(auditor Auditor, interval time.Duration) *AuditWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &AuditWorker{auditor: auditor, interval: interval, now: time.Now}
}

// Run blocks until ctx is done.
func (w *AuditWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *AuditWorker) runOnce(ctx context.Context) {
	report, err := w.auditor.Run(ctx, w.now())
	if err != nil {
		if ctx.Err() == nil {
			slog.ErrorContext(ctx, "Audit run failed", "error", err)
		}
		return
	}
	slog.InfoContext(ctx, "Audit run completed",
		"start", report.Start.String(),
		"end", report.End.String(),
		"users_checked", report.UsersChecked,
		"days_flagged", report.DaysFlagged,
		"failures", report.Failures)
}
