// Package services orchestrates the ledger over its gateways: the UI-facing
// LedgerService plus the sync and audit background processors.
//
// This file maps calendar view kinds (day, week, month) to the strategy that
// resolves the period shown around an anchor date.
package services

import (
	"fmt"
	"strings"
	"time"

	"horas/internal/core"
)

type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// MaxRangeDays caps any range a single request may aggregate.
const MaxRangeDays = 366

// PeriodResolver returns the period of its kind containing anchor.
type PeriodResolver interface {
	Resolve(anchor core.Date, weekStart time.Weekday) core.Period
}

type DayResolver struct{}

func (DayResolver) Resolve(anchor core.Date, _ time.Weekday) core.Period {
	return core.Period{Start: anchor, End: anchor}
}

// WeekResolver returns the seven days starting on the configured weekday.
type WeekResolver struct{}

func (WeekResolver) Resolve(anchor core.Date, weekStart time.Weekday) core.Period {
	return core.WeekPeriod(anchor, weekStart)
}

// MonthResolver returns the calendar month of anchor.
type MonthResolver struct{}

func (MonthResolver) Resolve(anchor core.Date, _ time.Weekday) core.Period {
	return core.MonthPeriod(anchor.Year(), anchor.Month())
}

var periodStrategies = map[PeriodKind]PeriodResolver{
	PeriodDay:   DayResolver{},
	PeriodWeek:  WeekResolver{},
	PeriodMonth: MonthResolver{},
}

func GetPeriodResolver(kind PeriodKind) (PeriodResolver, error) {
	r, ok := periodStrategies[PeriodKind(strings.ToLower(string(kind)))]
	if !ok {
		return nil, fmt.Errorf("unknown period kind: %s", kind)
	}
	return r, nil
}

// RegisterPeriodResolver adds or replaces the resolver for kind.
func RegisterPeriodResolver(kind PeriodKind, r PeriodResolver) {
	periodStrategies[kind] = r
}

func ResolvePeriod(kind PeriodKind, anchor core.Date, weekStart time.Weekday) (core.Period, error) {
	r, err := GetPeriodResolver(kind)
	if err != nil {
		return core.Period{}, err
	}
	return r.Resolve(anchor, weekStart), nil
}

// CustomPeriod validates an explicit [start, end] range.
func CustomPeriod(start, end core.Date) (core.Period, error) {
	p := core.Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	if start.DaysUntil(end) >= MaxRangeDays {
		return core.Period{}, fmt.Errorf("%w: range longer than %d days", core.ErrInvalidDate, MaxRangeDays)
	}
	return p, nil
}
