package adapters

import (
	"context"
	"log/slog"

	"horas/internal/amqp"
	"horas/internal/core"
	"horas/internal/gateway"
)

// DayPublisher is the slice of the AMQP client the gateway needs.
type DayPublisher interface {
	PublishDaySaved(ctx context.Context, msg *amqp.DaySavedMessage) error
}

// PublishingGateway wraps a Gateway and announces every successful write on
// the message bus. Reads pass straight through. A failed publish is logged and
// swallowed: the day is already stored and the sync poller picks it up.
type PublishingGateway struct {
	gateway.Gateway
	publisher DayPublisher
}

func NewPublishingGateway(inner gateway.Gateway, publisher DayPublisher) *PublishingGateway {
	return &PublishingGateway{Gateway: inner, publisher: publisher}
}

// SaveWorkDay implements gateway.WorkDayWriter
func (g *PublishingGateway) SaveWorkDay(ctx context.Context, userID string, date core.Date, totalHours float64) (string, error) {
	id, err := g.Gateway.SaveWorkDay(ctx, userID, date, totalHours)
	if err != nil {
		return "", err
	}
	g.announce(ctx, userID, date, totalHours)
	return id, nil
}

// ReplaceAllocations implements gateway.AllocationWriter
func (g *PublishingGateway) ReplaceAllocations(ctx context.Context, userID string, date core.Date, allocations []core.Allocation) error {
	if err := g.Gateway.ReplaceAllocations(ctx, userID, date, allocations); err != nil {
		return err
	}
	total := 0.0
	if day, err := g.Gateway.FetchWorkDay(ctx, userID, date); err == nil && day != nil {
		total = day.TotalHours
	}
	g.announce(ctx, userID, date, total)
	return nil
}

// SaveDay implements gateway.DaySaver
func (g *PublishingGateway) SaveDay(ctx context.Context, userID string, date core.Date, totalHours float64, allocations []core.Allocation) error {
	if err := g.Gateway.SaveDay(ctx, userID, date, totalHours, allocations); err != nil {
		return err
	}
	g.announce(ctx, userID, date, totalHours)
	return nil
}

func (g *PublishingGateway) announce(ctx context.Context, userID string, date core.Date, totalHours float64) {
	if g.publisher == nil {
		slog.WarnContext(ctx, "No publisher configured, day saved without notification",
			"user_id", userID, "date", date.String())
		return
	}
	var version int64
	if q, ok := g.Gateway.(gateway.SyncQueue); ok {
		if rec, err := q.PendingSyncFor(ctx, userID, date); err == nil && rec != nil {
			version = rec.Version
		}
	}
	msg := amqp.NewDaySavedMessage(userID, date.String(), core.ToStorageDecimal(totalHours), version)
	if err := g.publisher.PublishDaySaved(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish day saved message",
			"error", err,
			"user_id", userID,
			"date", date.String())
	}
}
