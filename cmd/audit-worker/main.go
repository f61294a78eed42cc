package main

import (
	"context"
	"errors"
	"time"

	"horas/internal/amqp"
	"horas/internal/cli"
	applog "horas/internal/log"
	"horas/internal/services"
	"horas/internal/worker"
)

// logOnly stands in for the broker when AMQP is disabled.
type logOnly struct {
	logger *applog.Logger
}

func (l logOnly) PublishDayFlagged(ctx context.Context, msg *amqp.DayFlaggedMessage) error {
	l.logger.WarnContext(ctx, "Day flagged",
		applog.NewFields().
			WithDay(msg.UserID, msg.Date).
			ToSlice()...)
	return nil
}

func main() {
	cfg, logger, logCloser := cli.Bootstrap(applog.ComponentAudit)
	defer logCloser.Close()

	logger.Info("Starting audit-worker",
		"interval", cfg.AuditInterval,
		"lookback_days", cfg.AuditLookbackDays)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	backend := cli.InitBackend(ctx, logger, cfg)
	defer backend.Close()

	var publisher services.FlagPublisher = logOnly{logger: logger}
	if backend.Events != nil {
		publisher = backend.Events
	} else {
		logger.Info("AMQP disabled, flagged days are only logged")
	}

	auditor := services.NewAuditProcessor(backend.Store, backend.Store, publisher, services.AuditConfig{
		LookbackDays: cfg.AuditLookbackDays,
		Concurrency:  cfg.AuditConcurrency,
	})

	go func() {
		if err := worker.NewAuditWorker(auditor, cfg.AuditInterval).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Audit worker stopped", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Audit worker shutdown complete")
}
