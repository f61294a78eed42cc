package core

import (
	"fmt"
	"strings"
	"time"
)

// Period is an inclusive date range shown by a calendar view.
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func MonthPeriod(year int, month time.Month) Period {
	start := NewDate(year, int(month), 1)
	return Period{Start: start, End: Date{Time: start.AddDate(0, 1, -1)}}
}

// WeekPeriod returns the week containing d.
func WeekPeriod(d Date, weekStart time.Weekday) Period {
	start := StartOfWeek(d, weekStart)
	return Period{Start: start, End: start.AddDays(6)}
}

// StartOfWeek returns the last date on or before d that falls on weekStart.
func StartOfWeek(d Date, weekStart time.Weekday) Date {
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-offset)
}

// CalendarBounds extends p outwards to whole weeks.
func CalendarBounds(p Period, weekStart time.Weekday) (Date, Date) {
	start := StartOfWeek(p.Start, weekStart)
	end := StartOfWeek(p.End, weekStart).AddDays(6)
	return start, end
}

func (p Period) Contains(d Date) bool {
	return d.Within(p.Start, p.End)
}

func (p Period) Validate() error {
	if err := p.Start.Validate(); err != nil {
		return err
	}
	if err := p.End.Validate(); err != nil {
		return err
	}
	if p.End.Before(p.Start.Time) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidDate, p.End, p.Start)
	}
	return nil
}

// ParseWeekday accepts English day names or their three-letter prefixes.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
