package services

import (
	"errors"
	"testing"
	"time"

	"horas/internal/core"
)

func TestWeekResolver_Resolve(t *testing.T) {
	resolver := WeekResolver{}
	anchor := core.NewDate(2025, 3, 5) // Wednesday

	tests := []struct {
		name      string
		weekStart time.Weekday
		wantStart string
		wantEnd   string
	}{
		{"weeks start on sunday", time.Sunday, "2025-03-02", "2025-03-08"},
		{"weeks start on monday", time.Monday, "2025-03-03", "2025-03-09"},
		{"anchor is the week start", time.Wednesday, "2025-03-05", "2025-03-11"},
		{"weeks start on thursday", time.Thursday, "2025-02-27", "2025-03-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := resolver.Resolve(anchor, tt.weekStart)
			if p.Start.String() != tt.wantStart || p.End.String() != tt.wantEnd {
				t.Errorf("WeekResolver.Resolve() = %s..%s, want %s..%s", p.Start, p.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestMonthResolver_Resolve(t *testing.T) {
	resolver := MonthResolver{}

	tests := []struct {
		name    string
		anchor  core.Date
		wantEnd string
	}{
		{"31 day month", core.NewDate(2025, 1, 15), "2025-01-31"},
		{"february", core.NewDate(2025, 2, 1), "2025-02-28"},
		{"leap february", core.NewDate(2024, 2, 29), "2024-02-29"},
		{"30 day month", core.NewDate(2025, 4, 30), "2025-04-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := resolver.Resolve(tt.anchor, time.Sunday)
			if p.Start.Day() != 1 || p.Start.Month() != tt.anchor.Month() {
				t.Errorf("start = %s", p.Start)
			}
			if p.End.String() != tt.wantEnd {
				t.Errorf("end = %s, want %s", p.End, tt.wantEnd)
			}
		})
	}
}

func TestDayResolver_Resolve(t *testing.T) {
	anchor := core.NewDate(2025, 3, 5)
	p := DayResolver{}.Resolve(anchor, time.Monday)
	if !p.Start.Equal(anchor.Time) || !p.End.Equal(anchor.Time) {
		t.Errorf("DayResolver.Resolve() = %s..%s", p.Start, p.End)
	}
}

func TestGetPeriodResolver(t *testing.T) {
	tests := []struct {
		kind    PeriodKind
		want    PeriodResolver
		wantErr bool
	}{
		{PeriodDay, DayResolver{}, false},
		{PeriodWeek, WeekResolver{}, false},
		{PeriodMonth, MonthResolver{}, false},
		{"MONTH", MonthResolver{}, false},
		{"quarter", nil, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := GetPeriodResolver(tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetPeriodResolver() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("GetPeriodResolver() = %T, want %T", got, tt.want)
			}
		})
	}
}

type fortnightResolver struct{}

func (fortnightResolver) Resolve(anchor core.Date, weekStart time.Weekday) core.Period {
	start := core.StartOfWeek(anchor, weekStart)
	return core.Period{Start: start, End: start.AddDays(13)}
}

func TestRegisterPeriodResolver(t *testing.T) {
	const fortnight PeriodKind = "fortnight"
	RegisterPeriodResolver(fortnight, fortnightResolver{})
	defer delete(periodStrategies, fortnight)

	p, err := ResolvePeriod(fortnight, core.NewDate(2025, 3, 5), time.Monday)
	if err != nil {
		t.Fatalf("ResolvePeriod() error = %v", err)
	}
	if p.Start.String() != "2025-03-03" || p.End.String() != "2025-03-16" {
		t.Errorf("fortnight = %s..%s", p.Start, p.End)
	}
}

func TestCustomPeriod(t *testing.T) {
	start := core.NewDate(2025, 1, 1)

	tests := []struct {
		name    string
		end     core.Date
		wantErr bool
	}{
		{"single day", start, false},
		{"full year", core.NewDate(2025, 12, 31), false},
		{"end before start", core.NewDate(2024, 12, 31), true},
		{"too long", start.AddDays(MaxRangeDays), true},
		{"zero end", core.Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CustomPeriod(start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CustomPeriod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidDate) {
				t.Errorf("expected ErrInvalidDate, got %v", err)
			}
		})
	}
}
