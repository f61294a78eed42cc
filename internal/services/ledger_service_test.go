package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"horas/internal/core"
	"horas/internal/gateway"
	"horas/internal/gateway/memory"
	"horas/internal/storage"
)

var errStorageDown = errors.New("storage down")

// flakyGateway wraps the in-memory store and fails selected operations.
type flakyGateway struct {
	*memory.Store
	saveErr      error
	rangeErr     error
	catalogCalls atomic.Int32
	lastTotal    float64
}

func (f *flakyGateway) SaveWorkDay(ctx context.Context, userID string, date core.Date, total float64) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.lastTotal = total
	return f.Store.SaveWorkDay(ctx, userID, date, total)
}

func (f *flakyGateway) SaveDay(ctx context.Context, userID string, date core.Date, total float64, allocs []core.Allocation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveDay(ctx, userID, date, total, allocs)
}

func (f *flakyGateway) FetchRange(ctx context.Context, userID string, start, end core.Date) (core.RangeData, error) {
	if f.rangeErr != nil {
		return core.RangeData{}, f.rangeErr
	}
	return f.Store.FetchRange(ctx, userID, start, end)
}

func (f *flakyGateway) FetchCatalog(ctx context.Context) (core.Catalog, error) {
	f.catalogCalls.Add(1)
	return f.Store.FetchCatalog(ctx)
}

func testCatalog() core.Catalog {
	return core.NewCatalog(
		[]core.Project{{ID: "P1", Name: "Portal"}, {ID: "P2", Name: "App"}},
		[]core.Stage{{ID: "S1", ProjectID: "P1", Name: "Design"}, {ID: "S2", ProjectID: "P2", Name: "Build"}},
		[]core.Task{{ID: "T1", StageID: "S1", Name: "Wireframes"}},
	)
}

func newTestService(t *testing.T) (*LedgerService, *flakyGateway) {
	t.Helper()
	gw := &flakyGateway{Store: memory.New(testCatalog())}
	return NewLedgerService(gw), gw
}

func mustInputs(t *testing.T, drafts ...AllocationDraft) []core.AllocationInput {
	t.Helper()
	inputs, err := ParseDrafts(drafts)
	if err != nil {
		t.Fatalf("parse drafts: %v", err)
	}
	return inputs
}

func TestLedgerService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	date := core.NewDate(2025, 3, 3)

	ledger, err := svc.OpenDay(ctx, "ana", date)
	if err != nil {
		t.Fatalf("open day: %v", err)
	}
	total, err := svc.RecordTotalHours(ctx, ledger, "8")
	if err != nil {
		t.Fatalf("record total: %v", err)
	}
	if total.TotalHours != 8 || total.Display != "08:00" || total.Status != core.StatusPartial {
		t.Fatalf("unexpected total result %+v", total)
	}

	tests := []struct {
		name       string
		second     string
		wantStatus core.DayStatus
		wantDist   float64
		wantRemain float64
	}{
		{"fully distributed", "4", core.StatusComplete, 8, 0},
		{"partially distributed", "2", core.StatusPartial, 6, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.RecordAllocations(ctx, ledger, mustInputs(t,
				AllocationDraft{ProjectID: "P1", Hours: "4"},
				AllocationDraft{ProjectID: "P2", Hours: tt.second},
			))
			if err != nil {
				t.Fatalf("record allocations: %v", err)
			}
			if res.Status != tt.wantStatus || res.DistributedHours != tt.wantDist || res.Remaining != tt.wantRemain {
				t.Errorf("got %+v", res)
			}

			reopened, err := svc.OpenDay(ctx, "ana", date)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			if reopened.Status() != tt.wantStatus || len(reopened.Allocations()) != 2 {
				t.Errorf("stored state differs: status=%s allocations=%d", reopened.Status(), len(reopened.Allocations()))
			}
		})
	}
}

func TestLedgerService_EmptyCatalogAcceptsAnyProject(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "horas.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tests := []struct {
		name string
		gw   gateway.Gateway
	}{
		{"memory", memory.New(core.Catalog{})},
		{"sqlite fresh database", repo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewLedgerService(tt.gw)
			ledger, err := svc.OpenDay(ctx, "ana", core.NewDate(2025, 3, 3))
			if err != nil {
				t.Fatalf("open day: %v", err)
			}
			if _, err := svc.RecordTotalHours(ctx, ledger, "8"); err != nil {
				t.Fatalf("record total: %v", err)
			}
			res, err := svc.RecordAllocations(ctx, ledger, mustInputs(t,
				AllocationDraft{ProjectID: "P1", Hours: "4"},
				AllocationDraft{ProjectID: "P2", Hours: "4"},
			))
			if err != nil {
				t.Fatalf("record allocations: %v", err)
			}
			if res.Status != core.StatusComplete {
				t.Errorf("status = %s, want complete", res.Status)
			}
		})
	}
}

func TestLedgerService_RecordTotalHours_StoresTwoDecimals(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	ledger, _ := svc.OpenDay(ctx, "ana", core.NewDate(2025, 3, 3))

	if _, err := svc.RecordTotalHours(ctx, ledger, "7:20"); err != nil {
		t.Fatalf("record total: %v", err)
	}
	if gw.lastTotal != 7.33 {
		t.Errorf("gateway received %v, want 7.33", gw.lastTotal)
	}
}

func TestLedgerService_RecordTotalHours_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ledger, _ := svc.OpenDay(ctx, "ana", core.NewDate(2025, 3, 3))

	_, err := svc.RecordTotalHours(ctx, ledger, "99999")
	if !errors.Is(err, core.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a field-level error, got %T", err)
	}
	if ledger.TotalHours() != 0 {
		t.Errorf("invalid input must not touch the ledger, total=%v", ledger.TotalHours())
	}
}

func TestLedgerService_MissingTotalKeepsAllocations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ledger, _ := svc.OpenDay(ctx, "ana", core.NewDate(2025, 3, 3))

	_, err := svc.RecordAllocations(ctx, ledger, mustInputs(t, AllocationDraft{ProjectID: "P1", Hours: "4"}))
	if !errors.Is(err, core.ErrMissingTotal) {
		t.Fatalf("expected ErrMissingTotal, got %v", err)
	}
	if len(ledger.Allocations()) != 1 {
		t.Errorf("typed allocations must survive for retry, got %d", len(ledger.Allocations()))
	}
}

func TestLedgerService_SaveFailuresAreScoped(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	date := core.NewDate(2025, 3, 3)
	ledger, _ := svc.OpenDay(ctx, "ana", date)
	if _, err := svc.RecordTotalHours(ctx, ledger, "8"); err != nil {
		t.Fatalf("record total: %v", err)
	}

	gw.saveErr = errStorageDown

	_, err := svc.RecordTotalHours(ctx, ledger, "730")
	if op, ok := FailedOperation(err); !ok || op != OpSavingTotal {
		t.Fatalf("expected %q operation error, got %v", OpSavingTotal, err)
	}
	if !errors.Is(err, errStorageDown) {
		t.Errorf("underlying error must stay reachable: %v", err)
	}
	if ledger.TotalHours() != 7.5 {
		t.Errorf("failed save must keep the typed total, got %v", ledger.TotalHours())
	}

	_, err = svc.RecordAllocations(ctx, ledger, mustInputs(t,
		AllocationDraft{ProjectID: "P1", Hours: "4"},
		AllocationDraft{ProjectID: "P2", Hours: "330"},
	))
	if op, _ := FailedOperation(err); op != OpSavingAllocations {
		t.Fatalf("expected %q operation error, got %v", OpSavingAllocations, err)
	}
	if len(ledger.Allocations()) != 2 || ledger.Status() != core.StatusComplete {
		t.Errorf("failed save must keep allocations, got %+v", ledger.Allocations())
	}

	gw.saveErr = nil
	res, err := svc.RecordAllocations(ctx, ledger, mustInputs(t,
		AllocationDraft{ProjectID: "P1", Hours: "4"},
		AllocationDraft{ProjectID: "P2", Hours: "330"},
	))
	if err != nil || res.Status != core.StatusComplete {
		t.Fatalf("retry should succeed: %+v %v", res, err)
	}
}

func TestLedgerService_RecordAllocations_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ledger, _ := svc.OpenDay(ctx, "ana", core.NewDate(2025, 3, 3))
	_, _ = svc.RecordTotalHours(ctx, ledger, "8")
	_, _ = svc.RecordAllocations(ctx, ledger, mustInputs(t, AllocationDraft{ProjectID: "P1", Hours: "8"}))

	_, err := svc.RecordAllocations(ctx, ledger, mustInputs(t,
		AllocationDraft{ProjectID: "P1", StageID: "S2", Hours: "4"},
	))
	if !errors.Is(err, core.ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy, got %v", err)
	}
	if got := ledger.Allocations(); len(got) != 1 || got[0].Hours != 8 {
		t.Errorf("rejected input must leave the ledger unchanged, got %+v", got)
	}
}

func TestLedgerService_DropsIncompleteRows(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	date := core.NewDate(2025, 3, 4)
	ledger, _ := svc.OpenDay(ctx, "ana", date)
	_, _ = svc.RecordTotalHours(ctx, ledger, "8")

	res, err := svc.RecordAllocations(ctx, ledger, mustInputs(t,
		AllocationDraft{ProjectID: "P1", Hours: "8"},
		AllocationDraft{ProjectID: "P2", Hours: ""},
	))
	if err != nil {
		t.Fatalf("record allocations: %v", err)
	}
	if res.Saved != 1 || res.Status != core.StatusComplete {
		t.Errorf("zero-hour rows are not saved: %+v", res)
	}
	stored, _ := gw.FetchAllocations(ctx, "ana", date)
	if len(stored) != 1 {
		t.Errorf("expected 1 stored allocation, got %d", len(stored))
	}
}

func TestLedgerService_RangeViews(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	start := core.NewDate(2025, 3, 2)

	t.Run("empty week yields seven none days", func(t *testing.T) {
		views, err := svc.GetRangeView(ctx, "ana", start, start.AddDays(6))
		if err != nil {
			t.Fatalf("range view: %v", err)
		}
		if len(views) != 7 {
			t.Fatalf("expected 7 views, got %d", len(views))
		}
		for _, v := range views {
			if v.Status != core.StatusNone {
				t.Errorf("%s: status %s, want none", v.Date, v.Status)
			}
		}
	})

	t.Run("project rollup ties sort by id", func(t *testing.T) {
		_ = gw.SaveDay(ctx, "ana", start, 10, []core.Allocation{
			{ID: "b", ProjectID: "P2", Hours: 5},
			{ID: "a", ProjectID: "P1", Hours: 5},
		})
		report, err := svc.GetProjectRollup(ctx, "ana", start, start.AddDays(6), core.ProjectFilter{})
		if err != nil {
			t.Fatalf("rollup: %v", err)
		}
		if len(report.Entries) != 2 || report.Entries[0].ProjectID != "P1" || report.Entries[1].ProjectID != "P2" {
			t.Fatalf("unexpected order %+v", report.Entries)
		}
		for _, e := range report.Entries {
			if e.Percentage != 50 {
				t.Errorf("%s: percentage %v, want 50", e.ProjectID, e.Percentage)
			}
		}
		if report.GrandTotal != 10 || report.Entries[0].ProjectName != "Portal" {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("month calendar pads to whole weeks", func(t *testing.T) {
		views, err := svc.GetCalendar(ctx, "ana", core.MonthPeriod(2025, 3))
		if err != nil {
			t.Fatalf("calendar: %v", err)
		}
		// March 2025 starts on a Saturday and ends on a Monday.
		if len(views) != 42 {
			t.Fatalf("expected 42 cells, got %d", len(views))
		}
		if views[0].InCurrentPeriod || views[0].Date.String() != "2025-02-23" {
			t.Errorf("first cell %s in=%v", views[0].Date, views[0].InCurrentPeriod)
		}
		if !views[6].InCurrentPeriod {
			t.Errorf("March 1 should be in period")
		}
	})

	t.Run("week rollup and summary", func(t *testing.T) {
		weeks, err := svc.GetWeekRollup(ctx, "ana", start, start.AddDays(13))
		if err != nil || len(weeks) != 2 {
			t.Fatalf("weeks = %+v, err %v", weeks, err)
		}
		sum, err := svc.GetSummary(ctx, "ana", start, start.AddDays(6))
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if sum.CompleteDays != 1 || sum.NoneDays != 6 || sum.TotalHours != 10 {
			t.Errorf("unexpected summary %+v", sum)
		}
	})

	t.Run("search by project name", func(t *testing.T) {
		found, err := svc.SearchAllocations(ctx, "ana", start, start.AddDays(6), "port")
		if err != nil || len(found) != 1 || found[0].ProjectID != "P1" {
			t.Fatalf("search = %+v, err %v", found, err)
		}
	})
}

func TestLedgerService_RangeErrors(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	start := core.NewDate(2025, 3, 2)

	if _, err := svc.GetRangeView(ctx, "ana", start, start.AddDays(-1)); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("reversed range: %v", err)
	}
	if _, err := svc.GetRangeView(ctx, "ana", start, start.AddDays(MaxRangeDays)); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("oversized range: %v", err)
	}
	if _, err := svc.GetRangeView(ctx, "", start, start); !errors.Is(err, core.ErrMissingUser) {
		t.Errorf("missing user: %v", err)
	}

	gw.rangeErr = errStorageDown
	_, err := svc.GetRangeView(ctx, "ana", start, start.AddDays(6))
	if op, _ := FailedOperation(err); op != OpFetchingRange || !errors.Is(err, errStorageDown) {
		t.Errorf("expected fetching range error, got %v", err)
	}
	_, err = svc.GetDayView(ctx, "ana", start)
	if op, _ := FailedOperation(err); op != OpFetchingDay {
		t.Errorf("expected fetching day error, got %v", err)
	}
}

func TestLedgerService_CatalogIsCached(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	for i := 0; i < 3; i++ {
		if _, err := svc.Catalog(ctx); err != nil {
			t.Fatalf("catalog: %v", err)
		}
	}
	if n := gw.catalogCalls.Load(); n != 1 {
		t.Errorf("catalog fetched %d times, want 1", n)
	}
	svc.InvalidateCatalog()
	_, _ = svc.Catalog(ctx)
	if n := gw.catalogCalls.Load(); n != 2 {
		t.Errorf("catalog fetched %d times after invalidation, want 2", n)
	}
}

func TestParseDrafts(t *testing.T) {
	inputs, err := ParseDrafts([]AllocationDraft{
		{ProjectID: " P1 ", Hours: "730", Description: " review "},
		{ProjectID: "P2", Hours: "1:15"},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inputs[0].ProjectID != "P1" || inputs[0].Hours != 7.5 || inputs[0].Description != "review" {
		t.Errorf("unexpected first input %+v", inputs[0])
	}
	if inputs[1].Hours != 1.25 {
		t.Errorf("separators are ignored, got %v", inputs[1].Hours)
	}

	_, err = ParseDrafts([]AllocationDraft{{ProjectID: "P1", Hours: "8"}, {ProjectID: "P1", Hours: "0875"}})
	if !errors.Is(err, core.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for 75 minutes, got %v", err)
	}
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "allocations[1].hours" {
		t.Errorf("expected field allocations[1].hours, got %v", err)
	}
}
