package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"horas/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "horas.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := dialectSQLite.rebind(q); got != q {
		t.Errorf("sqlite query changed: %s", got)
	}
	if got := dialectPostgres.rebind(q); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("unexpected postgres query: %s", got)
	}
}

func TestRepositorySaveDayRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2025, 3, 3)

	day, err := repo.FetchWorkDay(ctx, "u1", date)
	if err != nil || day != nil {
		t.Fatalf("expected no day, got %+v err=%v", day, err)
	}

	err = repo.SaveDay(ctx, "u1", date, 8, []core.Allocation{
		{ID: "a", ProjectID: "P1", StageID: "S1", Hours: 4.333},
		{ID: "b", ProjectID: "P2", Hours: 3.667, Description: "review"},
	})
	if err != nil {
		t.Fatalf("save day: %v", err)
	}

	day, err = repo.FetchWorkDay(ctx, "u1", date)
	if err != nil || day == nil {
		t.Fatalf("fetch day: %+v err=%v", day, err)
	}
	if day.TotalHours != 8 || day.Date.String() != "2025-03-03" || day.ID == "" {
		t.Fatalf("unexpected day %+v", day)
	}

	allocs, err := repo.FetchAllocations(ctx, "u1", date)
	if err != nil {
		t.Fatalf("fetch allocations: %v", err)
	}
	if len(allocs) != 2 {
		t.Fatalf("expected 2 allocations, got %+v", allocs)
	}
	if allocs[0].ID != "a" || allocs[0].Hours != 4.33 || allocs[0].StageID != "S1" || allocs[0].TaskID != "" {
		t.Errorf("unexpected first allocation %+v", allocs[0])
	}
	if allocs[1].Hours != 3.67 || allocs[1].Description != "review" {
		t.Errorf("unexpected second allocation %+v", allocs[1])
	}
	if got := core.Reconcile(day.TotalHours, allocs).Status; got != core.StatusComplete {
		t.Errorf("status = %s, want complete", got)
	}
}

func TestRepositoryUpsertAndReplace(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2025, 3, 4)

	id1, err := repo.SaveWorkDay(ctx, "u1", date, 6)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	id2, err := repo.SaveWorkDay(ctx, "u1", date, 7.5)
	if err != nil || id1 != id2 {
		t.Fatalf("upsert must keep id: %q vs %q err=%v", id1, id2, err)
	}

	if err := repo.ReplaceAllocations(ctx, "u1", date, []core.Allocation{{ID: "x", ProjectID: "P1", Hours: 2}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := repo.ReplaceAllocations(ctx, "u1", date, []core.Allocation{{ID: "y", ProjectID: "P2", Hours: 1}, {ID: "z", ProjectID: "P3", Hours: 1}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	allocs, _ := repo.FetchAllocations(ctx, "u1", date)
	if len(allocs) != 2 || allocs[0].ID != "y" || allocs[1].ID != "z" {
		t.Fatalf("replace must swap the whole set, got %+v", allocs)
	}

	if _, err := repo.SaveWorkDay(ctx, "u1", date, -1); !errors.Is(err, core.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestRepositorySaveDayIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2025, 3, 5)
	if err := repo.SaveDay(ctx, "u1", date, 8, []core.Allocation{{ID: "a", ProjectID: "P1", Hours: 8}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// duplicate ids violate the primary key half way through the insert
	err := repo.SaveDay(ctx, "u1", date, 4, []core.Allocation{
		{ID: "b", ProjectID: "P1", Hours: 2},
		{ID: "b", ProjectID: "P2", Hours: 2},
	})
	if err == nil {
		t.Fatal("expected error for duplicate allocation ids")
	}

	day, _ := repo.FetchWorkDay(ctx, "u1", date)
	allocs, _ := repo.FetchAllocations(ctx, "u1", date)
	if day.TotalHours != 8 || len(allocs) != 1 || allocs[0].ID != "a" {
		t.Fatalf("failed save must leave the previous state, got %+v %+v", day, allocs)
	}
}

func TestRepositoryFetchRange(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for i := 0; i < 5; i++ {
		d := core.NewDate(2025, 3, 1+i)
		if err := repo.SaveDay(ctx, "u1", d, 8, []core.Allocation{{ID: "a", ProjectID: "P1", Hours: 8}}); err != nil {
			t.Fatalf("seed %s: %v", d, err)
		}
	}
	_ = repo.SaveDay(ctx, "u2", core.NewDate(2025, 3, 2), 8, nil)

	data, err := repo.FetchRange(ctx, "u1", core.NewDate(2025, 3, 2), core.NewDate(2025, 3, 4))
	if err != nil {
		t.Fatalf("fetch range: %v", err)
	}
	if len(data.WorkDays) != 3 || len(data.Allocations) != 3 {
		t.Fatalf("unexpected range: %d days, %d allocations", len(data.WorkDays), len(data.Allocations))
	}
	if data.WorkDays[0].Date.String() != "2025-03-02" || data.Allocations[2].Date.String() != "2025-03-04" {
		t.Errorf("range not ordered by date: %+v", data)
	}

	users, err := repo.ListUsersWithActivity(ctx, core.NewDate(2025, 3, 3))
	if err != nil || len(users) != 1 || users[0] != "u1" {
		t.Errorf("unexpected active users %v err=%v", users, err)
	}
}

func TestRepositoryCatalog(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cat := core.NewCatalog(
		[]core.Project{{ID: "P1", Name: "Portal"}, {ID: "P2", Name: "App", Status: core.CatalogArchived}},
		[]core.Stage{{ID: "S1", ProjectID: "P1", Name: "Design"}},
		[]core.Task{{ID: "T1", StageID: "S1", Name: "Wireframes"}},
	)
	if err := repo.ReplaceCatalog(ctx, cat); err != nil {
		t.Fatalf("replace catalog: %v", err)
	}
	got, err := repo.FetchCatalog(ctx)
	if err != nil {
		t.Fatalf("fetch catalog: %v", err)
	}
	if len(got.Projects) != 2 || got.Projects[0].Name != "App" || got.Projects[1].Status != core.CatalogActive {
		t.Fatalf("unexpected projects %+v", got.Projects)
	}
	if err := got.CheckHierarchy("P1", "S1", "T1"); err != nil {
		t.Fatalf("catalog hierarchy lost: %v", err)
	}
}

func TestRepositorySyncQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2025, 3, 6)
	if err := repo.SaveDay(ctx, "u1", date, 8, []core.Allocation{{ID: "a", ProjectID: "P1", Hours: 8}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending record, got %+v err=%v", pending, err)
	}
	rec := pending[0]
	if rec.Version != 1 || len(rec.Allocations) != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := repo.MarkSyncFailed(ctx, "u1", date, rec.Version, errors.New("quota")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, _ = repo.PendingSync(ctx, 10)
	if pending[0].Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", pending[0].Attempts)
	}

	if err := repo.MarkSynced(ctx, "u1", date, rec.Version); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if pending, _ = repo.PendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %+v", pending)
	}

	if err := repo.MarkSynced(ctx, "ghost", date, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
