package core

import (
	"cmp"
	"iter"
	"slices"
	"strings"
	"time"
)

// AggregatorOptions tunes calendar layout and name resolution. The zero value
// starts weeks on Sunday and leaves names unresolved.
type AggregatorOptions struct {
	WeekStart time.Weekday
	Catalog   Catalog
}

// Aggregator folds a user's records into day, week, period and project views.
// It works only on the records it was given and never fetches anything.
type Aggregator struct {
	userID      string
	days        map[string]WorkDay
	allocations map[string][]Allocation
	dates       []Date
	opts        AggregatorOptions
}

// ProjectFilter narrows a project rollup to one project id, or to projects
// whose name contains NameQuery (case-insensitive).
type ProjectFilter struct {
	ProjectID string
	NameQuery string
}

func NewAggregator(userID string, data RangeData, opts AggregatorOptions) *Aggregator {
	a := &Aggregator{
		userID:      userID,
		days:        make(map[string]WorkDay, len(data.WorkDays)),
		allocations: make(map[string][]Allocation),
		opts:        opts,
	}
	seen := make(map[string]bool)
	track := func(d Date) {
		if k := d.String(); !seen[k] {
			seen[k] = true
			a.dates = append(a.dates, d)
		}
	}
	for _, wd := range data.WorkDays {
		if !a.owns(wd.UserID) {
			continue
		}
		a.days[wd.Date.String()] = wd
		track(wd.Date)
	}
	for _, al := range data.Allocations {
		if !a.owns(al.UserID) {
			continue
		}
		k := al.Date.String()
		a.allocations[k] = append(a.allocations[k], al)
		track(al.Date)
	}
	slices.SortFunc(a.dates, func(x, y Date) int { return x.Compare(y.Time) })
	return a
}

func (a *Aggregator) owns(userID string) bool {
	return userID == "" || a.userID == "" || userID == a.userID
}

// DayView builds the view of a single date; dates without records are zero-filled.
func (a *Aggregator) DayView(date Date) DayView {
	key := date.String()
	allocations := a.allocations[key]
	rec := Reconcile(a.days[key].TotalHours, allocations)
	views := make([]AllocationView, 0, len(allocations))
	for _, al := range allocations {
		views = append(views, a.describe(al))
	}
	return DayView{
		Date:             date,
		TotalHours:       rec.TotalHours,
		DistributedHours: rec.DistributedHours,
		Remaining:        rec.Remaining,
		Status:           rec.Status,
		OverAllocated:    rec.OverAllocated,
		InCurrentPeriod:  true,
		Allocations:      views,
	}
}

// RangeView yields one DayView per date in [start, end], in order. The
// sequence can be ranged over any number of times.
func (a *Aggregator) RangeView(start, end Date) iter.Seq[DayView] {
	return func(yield func(DayView) bool) {
		for d := start; !d.After(end.Time); d = d.AddDays(1) {
			if !yield(a.DayView(d)) {
				return
			}
		}
	}
}

// PeriodView yields the days of p extended to whole weeks. Days outside p
// are included with InCurrentPeriod set to false.
func (a *Aggregator) PeriodView(p Period) iter.Seq[DayView] {
	start, end := CalendarBounds(p, a.opts.WeekStart)
	return func(yield func(DayView) bool) {
		for v := range a.RangeView(start, end) {
			v.InCurrentPeriod = p.Contains(v.Date)
			if !yield(v) {
				return
			}
		}
	}
}

// ProjectRollup totals allocation hours per project within [start, end],
// ordered by hours descending and project id ascending.
func (a *Aggregator) ProjectRollup(start, end Date, filter ProjectFilter) []ProjectRollupEntry {
	var nameMatches map[string]bool
	if strings.TrimSpace(filter.NameQuery) != "" {
		nameMatches = a.opts.Catalog.MatchProjects(filter.NameQuery)
	}

	type acc struct {
		hundredths int64
		count      int
		last       Date
	}
	byProject := make(map[string]*acc)
	for _, d := range a.dates {
		if !d.Within(start, end) {
			continue
		}
		for _, al := range a.allocations[d.String()] {
			if al.ProjectID == "" {
				continue
			}
			if filter.ProjectID != "" && al.ProjectID != filter.ProjectID {
				continue
			}
			if nameMatches != nil && !nameMatches[al.ProjectID] &&
				!strings.Contains(strings.ToLower(al.ProjectID), strings.ToLower(strings.TrimSpace(filter.NameQuery))) {
				continue
			}
			e, ok := byProject[al.ProjectID]
			if !ok {
				e = &acc{}
				byProject[al.ProjectID] = e
			}
			e.hundredths += hundredths(al.Hours)
			e.count++
			if al.Date.After(e.last.Time) {
				e.last = al.Date
			}
		}
	}

	entries := make([]ProjectRollupEntry, 0, len(byProject))
	for id, e := range byProject {
		entries = append(entries, ProjectRollupEntry{
			ProjectID:        id,
			ProjectName:      a.opts.Catalog.ProjectName(id),
			TotalHours:       fromHundredths(e.hundredths),
			RecordCount:      e.count,
			LastActivityDate: e.last,
		})
	}
	slices.SortFunc(entries, func(x, y ProjectRollupEntry) int {
		if c := cmp.Compare(hundredths(y.TotalHours), hundredths(x.TotalHours)); c != 0 {
			return c
		}
		return strings.Compare(x.ProjectID, y.ProjectID)
	})
	return entries
}

// RollupTotal sums the hours of a project rollup.
func RollupTotal(entries []ProjectRollupEntry) float64 {
	var sum int64
	for _, e := range entries {
		sum += hundredths(e.TotalHours)
	}
	return fromHundredths(sum)
}

// PercentageOfTotal returns the entry's share of grandTotal in percent, or 0
// when grandTotal is 0.
func PercentageOfTotal(entry ProjectRollupEntry, grandTotal float64) float64 {
	if grandTotal == 0 {
		return 0
	}
	return entry.TotalHours / grandTotal * 100
}

// WeekRollup groups the days of [start, end] into weeks starting on the
// configured weekday.
func (a *Aggregator) WeekRollup(start, end Date) []WeekSummary {
	var (
		weeks   []WeekSummary
		current *WeekSummary
		total   int64
		dist    int64
	)
	flush := func() {
		if current == nil {
			return
		}
		current.TotalHours = fromHundredths(total)
		current.DistributedHours = fromHundredths(dist)
		weeks = append(weeks, *current)
	}
	for v := range a.RangeView(start, end) {
		ws := StartOfWeek(v.Date, a.opts.WeekStart)
		if current == nil || !current.Start.Equal(ws.Time) {
			flush()
			current = &WeekSummary{Start: ws, End: ws.AddDays(6)}
			total, dist = 0, 0
		}
		total += hundredths(v.TotalHours)
		dist += hundredths(v.DistributedHours)
		switch v.Status {
		case StatusComplete:
			current.CompleteDays++
		case StatusPartial:
			current.PartialDays++
		}
		if v.OverAllocated {
			current.OverAllocatedDays++
		}
	}
	flush()
	return weeks
}

// Summarize counts day statuses and totals hours across [start, end].
func (a *Aggregator) Summarize(start, end Date) PeriodSummary {
	s := PeriodSummary{Start: start, End: end}
	var total, dist int64
	for v := range a.RangeView(start, end) {
		total += hundredths(v.TotalHours)
		dist += hundredths(v.DistributedHours)
		if v.TotalHours > 0 {
			s.RecordedDays++
		}
		switch v.Status {
		case StatusNone:
			s.NoneDays++
		case StatusPartial:
			s.PartialDays++
		case StatusComplete:
			s.CompleteDays++
		}
		if v.OverAllocated {
			s.OverAllocatedDays++
		}
	}
	s.TotalHours = fromHundredths(total)
	s.DistributedHours = fromHundredths(dist)
	s.Remaining = fromHundredths(total - dist)
	return s
}

// SearchAllocations returns allocations in [start, end] whose project name or
// description contains term, ignoring case. An empty term matches everything.
func (a *Aggregator) SearchAllocations(start, end Date, term string) []AllocationView {
	term = strings.ToLower(strings.TrimSpace(term))
	var out []AllocationView
	for _, d := range a.dates {
		if !d.Within(start, end) {
			continue
		}
		for _, al := range a.allocations[d.String()] {
			v := a.describe(al)
			if term == "" ||
				strings.Contains(strings.ToLower(v.ProjectName), term) ||
				strings.Contains(strings.ToLower(al.Description), term) {
				out = append(out, v)
			}
		}
	}
	return out
}

func (a *Aggregator) describe(al Allocation) AllocationView {
	v := AllocationView{Allocation: al}
	if al.ProjectID != "" {
		v.ProjectName = a.opts.Catalog.ProjectName(al.ProjectID)
	}
	if s, ok := a.opts.Catalog.Stage(al.StageID); ok {
		v.StageName = s.Name
	}
	if t, ok := a.opts.Catalog.Task(al.TaskID); ok {
		v.TaskName = t.Name
	}
	return v
}
