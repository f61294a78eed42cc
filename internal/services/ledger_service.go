package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"horas/internal/cache"
	"horas/internal/core"
	"horas/internal/gateway"
)

const catalogCacheKey = "catalog"

type (
	// TotalResult is returned after a day's total has been stored.
	TotalResult struct {
		TotalHours float64        `json:"totalHours"`
		Display    string         `json:"display"`
		Status     core.DayStatus `json:"status"`
	}

	// DistributionResult is returned after a day's allocations have been stored.
	DistributionResult struct {
		DistributedHours float64        `json:"distributedHours"`
		Remaining        float64        `json:"remaining"`
		Status           core.DayStatus `json:"status"`
		OverAllocated    bool           `json:"overAllocated"`
		Saved            int            `json:"saved"`
	}

	ProjectReportEntry struct {
		core.ProjectRollupEntry
		Percentage float64 `json:"percentage"`
	}

	ProjectReport struct {
		Start      core.Date            `json:"start"`
		End        core.Date            `json:"end"`
		GrandTotal float64              `json:"grandTotal"`
		Entries    []ProjectReportEntry `json:"entries"`
	}

	// AllocationDraft is an allocation as typed by a user, hours still in
	// duration-input form ("730", "8").
	AllocationDraft struct {
		ID          string `json:"id,omitempty"`
		ProjectID   string `json:"projectId"`
		StageID     string `json:"stageId,omitempty"`
		TaskID      string `json:"taskId,omitempty"`
		Hours       string `json:"hours"`
		Description string `json:"description,omitempty"`
	}

	LedgerServiceOption func(*LedgerService)
)

// Input parses the draft's hours.
func (d AllocationDraft) Input() (core.AllocationInput, error) {
	hours, err := core.ParseDurationInput(d.Hours)
	if err != nil {
		return core.AllocationInput{}, err
	}
	return core.AllocationInput{
		ID:          strings.TrimSpace(d.ID),
		ProjectID:   strings.TrimSpace(d.ProjectID),
		StageID:     strings.TrimSpace(d.StageID),
		TaskID:      strings.TrimSpace(d.TaskID),
		Hours:       hours,
		Description: strings.TrimSpace(d.Description),
	}, nil
}

// ParseDrafts converts drafts to inputs, reporting the first bad row by index.
func ParseDrafts(drafts []AllocationDraft) ([]core.AllocationInput, error) {
	inputs := make([]core.AllocationInput, 0, len(drafts))
	for i, d := range drafts {
		in, err := d.Input()
		if err != nil {
			detail := err.Error()
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				detail = ve.Detail
			}
			return nil, &core.ValidationError{
				Field:  fmt.Sprintf("allocations[%d].hours", i),
				Err:    core.ErrInvalidDuration,
				Detail: detail,
			}
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// LedgerService is the boundary between the UI layers (HTTP, CLI) and the
// ledger core. Gateway failures come back as *OperationError.
type LedgerService struct {
	gw        gateway.Gateway
	catalogs  cache.Cache[core.Catalog]
	weekStart time.Weekday
}

func WithWeekStart(d time.Weekday) LedgerServiceOption {
	return func(s *LedgerService) { s.weekStart = d }
}

// WithCatalogCache replaces the default catalog cache.
func WithCatalogCache(c cache.Cache[core.Catalog]) LedgerServiceOption {
	return func(s *LedgerService) {
		if c != nil {
			s.catalogs = c
		}
	}
}

func NewLedgerService(gw gateway.Gateway, opts ...LedgerServiceOption) *LedgerService {
	s := &LedgerService{
		gw:       gw,
		catalogs: cache.NewLRUCache[core.Catalog](1, 5*time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) WeekStart() time.Weekday {
	return s.weekStart
}

// Catalog returns the project catalog, served from cache when fresh.
func (s *LedgerService) Catalog(ctx context.Context) (core.Catalog, error) {
	cat, err := cache.GetOrLoad(ctx, s.catalogs, catalogCacheKey, s.gw.FetchCatalog)
	if err != nil {
		return core.Catalog{}, opError(OpFetchingCatalog, err)
	}
	return cat, nil
}

// InvalidateCatalog forces the next Catalog call to hit the gateway.
func (s *LedgerService) InvalidateCatalog() {
	s.catalogs.Delete(catalogCacheKey)
}

// OpenDay loads the ledger of a user's day. A day never recorded opens empty.
func (s *LedgerService) OpenDay(ctx context.Context, userID string, date core.Date) (*core.Ledger, error) {
	if err := checkKey(userID, date); err != nil {
		return nil, err
	}

	var (
		day    *core.WorkDay
		allocs []core.Allocation
		cat    core.Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		day, err = s.gw.FetchWorkDay(gctx, userID, date)
		return opError(OpFetchingDay, err)
	})
	g.Go(func() (err error) {
		allocs, err = s.gw.FetchAllocations(gctx, userID, date)
		return opError(OpFetchingDay, err)
	})
	g.Go(func() (err error) {
		cat, err = s.Catalog(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	wd := core.WorkDay{UserID: userID, Date: date}
	if day != nil {
		wd = *day
	}
	return core.LoadLedger(wd, allocs, core.WithCatalog(cat)), nil
}

// RecordTotalHours parses input, applies it to ledger and stores it. When
// the store fails the ledger keeps the new total so the caller can retry.
func (s *LedgerService) RecordTotalHours(ctx context.Context, ledger *core.Ledger, input string) (TotalResult, error) {
	hours, err := core.ParseDurationInput(input)
	if err != nil {
		return TotalResult{}, err
	}
	if err := ledger.SetTotalHours(hours); err != nil {
		return TotalResult{}, err
	}
	day := ledger.WorkDay()
	total := core.ToStorageDecimal(hours)
	if _, err := s.gw.SaveWorkDay(ctx, day.UserID, day.Date, total); err != nil {
		slog.ErrorContext(ctx, "Failed to save total hours",
			"user_id", day.UserID, "date", day.Date.String(), "error", err)
		return TotalResult{}, opError(OpSavingTotal, err)
	}

	slog.InfoContext(ctx, "Total hours recorded",
		"user_id", day.UserID, "date", day.Date.String(), "total_hours", total)
	return TotalResult{
		TotalHours: total,
		Display:    core.FormatHours(total),
		Status:     ledger.Status(),
	}, nil
}

// RecordAllocations replaces the ledger's allocations with inputs and stores
// the day. Invalid inputs leave the ledger untouched. A missing total or a
// failed store keeps the new allocations in the ledger for retry.
func (s *LedgerService) RecordAllocations(ctx context.Context, ledger *core.Ledger, inputs []core.AllocationInput) (DistributionResult, error) {
	if _, err := ledger.ReplaceAllocations(inputs); err != nil {
		return DistributionResult{}, err
	}
	day, saveable, err := ledger.PrepareSave()
	if err != nil {
		return DistributionResult{}, err
	}
	if err := s.gw.SaveDay(ctx, day.UserID, day.Date, day.TotalHours, saveable); err != nil {
		slog.ErrorContext(ctx, "Failed to save allocations",
			"user_id", day.UserID, "date", day.Date.String(), "count", len(saveable), "error", err)
		return DistributionResult{}, opError(OpSavingAllocations, err)
	}

	rec := core.Reconcile(day.TotalHours, saveable)
	slog.InfoContext(ctx, "Allocations recorded",
		"user_id", day.UserID,
		"date", day.Date.String(),
		"saved", len(saveable),
		"dropped", len(inputs)-len(saveable),
		"status", rec.Status)
	return DistributionResult{
		DistributedHours: rec.DistributedHours,
		Remaining:        rec.Remaining,
		Status:           rec.Status,
		OverAllocated:    rec.OverAllocated,
		Saved:            len(saveable),
	}, nil
}

func (s *LedgerService) GetDayView(ctx context.Context, userID string, date core.Date) (core.DayView, error) {
	if err := checkKey(userID, date); err != nil {
		return core.DayView{}, err
	}
	agg, err := s.aggregate(ctx, userID, date, date, OpFetchingDay)
	if err != nil {
		return core.DayView{}, err
	}
	return agg.DayView(date), nil
}

// GetRangeView returns one view per date in [start, end], empty days included.
func (s *LedgerService) GetRangeView(ctx context.Context, userID string, start, end core.Date) ([]core.DayView, error) {
	agg, err := s.aggregateRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return slices.Collect(agg.RangeView(start, end)), nil
}

// GetCalendar returns the days of p padded to whole weeks.
func (s *LedgerService) GetCalendar(ctx context.Context, userID string, p core.Period) ([]core.DayView, error) {
	if _, err := CustomPeriod(p.Start, p.End); err != nil {
		return nil, err
	}
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	start, end := core.CalendarBounds(p, s.weekStart)
	agg, err := s.aggregate(ctx, userID, start, end, OpFetchingRange)
	if err != nil {
		return nil, err
	}
	return slices.Collect(agg.PeriodView(p)), nil
}

func (s *LedgerService) GetProjectRollup(ctx context.Context, userID string, start, end core.Date, filter core.ProjectFilter) (ProjectReport, error) {
	agg, err := s.aggregateRange(ctx, userID, start, end)
	if err != nil {
		return ProjectReport{}, err
	}
	entries := agg.ProjectRollup(start, end, filter)
	total := core.RollupTotal(entries)
	report := ProjectReport{
		Start:      start,
		End:        end,
		GrandTotal: total,
		Entries:    make([]ProjectReportEntry, 0, len(entries)),
	}
	for _, e := range entries {
		report.Entries = append(report.Entries, ProjectReportEntry{
			ProjectRollupEntry: e,
			Percentage:         core.PercentageOfTotal(e, total),
		})
	}
	return report, nil
}

func (s *LedgerService) GetWeekRollup(ctx context.Context, userID string, start, end core.Date) ([]core.WeekSummary, error) {
	agg, err := s.aggregateRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return agg.WeekRollup(start, end), nil
}

func (s *LedgerService) GetSummary(ctx context.Context, userID string, start, end core.Date) (core.PeriodSummary, error) {
	agg, err := s.aggregateRange(ctx, userID, start, end)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	return agg.Summarize(start, end), nil
}

// SearchAllocations matches term against project names and descriptions.
func (s *LedgerService) SearchAllocations(ctx context.Context, userID string, start, end core.Date, term string) ([]core.AllocationView, error) {
	agg, err := s.aggregateRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return agg.SearchAllocations(start, end, term), nil
}

func (s *LedgerService) aggregateRange(ctx context.Context, userID string, start, end core.Date) (*core.Aggregator, error) {
	if _, err := CustomPeriod(start, end); err != nil {
		return nil, err
	}
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	return s.aggregate(ctx, userID, start, end, OpFetchingRange)
}

// aggregate fetches the range and the catalog concurrently.
func (s *LedgerService) aggregate(ctx context.Context, userID string, start, end core.Date, op string) (*core.Aggregator, error) {
	var (
		data core.RangeData
		cat  core.Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data, err = s.gw.FetchRange(gctx, userID, start, end)
		return opError(op, err)
	})
	g.Go(func() (err error) {
		cat, err = s.Catalog(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return core.NewAggregator(userID, data, core.AggregatorOptions{WeekStart: s.weekStart, Catalog: cat}), nil
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrMissingUser
	}
	return nil
}

func checkKey(userID string, date core.Date) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return date.Validate()
}
