package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"horas/internal/amqp"
	"horas/internal/core"
	"horas/internal/gateway"
)

// FlagPublisher is notified of every day the audit flags.
type FlagPublisher interface {
	PublishDayFlagged(ctx context.Context, msg *amqp.DayFlaggedMessage) error
}

type AuditConfig struct {
	// LookbackDays is how many past days are checked, ending yesterday.
	LookbackDays int
	// Concurrency bounds how many users are audited at once.
	Concurrency int
}

func DefaultAuditConfig() AuditConfig {
	return AuditConfig{LookbackDays: 7, Concurrency: 4}
}

// AuditReport summarises one audit run.
type AuditReport struct {
	Start        core.Date `json:"start"`
	End          core.Date `json:"end"`
	UsersChecked int       `json:"usersChecked"`
	DaysFlagged  int       `json:"daysFlagged"`
	Failures     int       `json:"failures"`
}

// AuditProcessor looks for past days whose hours are not fully distributed:
// partial days, over-allocated days and allocations recorded without a total.
type AuditProcessor struct {
	users     gateway.ActivityLister
	ranges    gateway.RangeReader
	publisher FlagPublisher
	config    AuditConfig
}

func NewAuditProcessor(users gateway.ActivityLister, ranges gateway.RangeReader, publisher FlagPublisher, config AuditConfig) *AuditProcessor {
	if config.LookbackDays < 1 {
		config.LookbackDays = 1
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &AuditProcessor{users: users, ranges: ranges, publisher: publisher, config: config}
}

// Run audits the LookbackDays days before now. Per-user failures are logged
// and counted; only a failure to list users or a cancelled ctx is returned.
func (p *AuditProcessor) Run(ctx context.Context, now time.Time) (AuditReport, error) {
	if p.users == nil || p.ranges == nil {
		return AuditReport{}, errors.New("audit processor not properly initialized")
	}
	end := core.DateOf(now).AddDays(-1)
	start := end.AddDays(1 - p.config.LookbackDays)
	report := AuditReport{Start: start, End: end}

	users, err := p.users.ListUsersWithActivity(ctx, start)
	if err != nil {
		return report, fmt.Errorf("list active users: %w", err)
	}
	report.UsersChecked = len(users)

	slog.InfoContext(ctx, "Auditing recorded days",
		"users", len(users),
		"start", start.String(),
		"end", end.String())

	var flagged, failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, userID := range users {
		g.Go(func() error {
			n, err := p.auditUser(gctx, userID, start, end)
			flagged.Add(int64(n))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures.Add(1)
				slog.ErrorContext(gctx, "Failed to audit user", "user_id", userID, "error", err)
			}
			return nil
		})
	}
	err = g.Wait()
	report.DaysFlagged = int(flagged.Load())
	report.Failures = int(failures.Load())
	if err != nil {
		return report, err
	}

	slog.InfoContext(ctx, "Audit complete",
		"users_checked", report.UsersChecked,
		"days_flagged", report.DaysFlagged,
		"failures", report.Failures)
	return report, nil
}

func (p *AuditProcessor) auditUser(ctx context.Context, userID string, start, end core.Date) (int, error) {
	data, err := p.ranges.FetchRange(ctx, userID, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch range: %w", err)
	}
	agg := core.NewAggregator(userID, data, core.AggregatorOptions{})
	flagged := 0
	for v := range agg.RangeView(start, end) {
		if v.Status != core.StatusPartial {
			continue
		}
		flagged++
		if err := p.flag(ctx, userID, v); err != nil {
			return flagged, err
		}
	}
	return flagged, nil
}

func (p *AuditProcessor) flag(ctx context.Context, userID string, v core.DayView) error {
	slog.InfoContext(ctx, "Day flagged",
		"user_id", userID,
		"date", v.Date.String(),
		"remaining", v.Remaining,
		"over_allocated", v.OverAllocated)
	if p.publisher == nil {
		return nil
	}
	return p.publisher.PublishDayFlagged(ctx, &amqp.DayFlaggedMessage{
		UserID:        userID,
		Date:          v.Date.String(),
		Status:        string(v.Status),
		Remaining:     v.Remaining,
		OverAllocated: v.OverAllocated,
		Timestamp:     time.Now(),
	})
}
