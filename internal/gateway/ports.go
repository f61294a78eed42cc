// Package gateway declares the persistence ports the ledger is fed by.
// Implementations live in gateway/memory and storage.
package gateway

import (
	"context"

	"horas/internal/core"
)

// Ports for outbound adapters.
type (
	WorkDayReader interface {
		// FetchWorkDay returns nil, nil when the day has never been recorded.
		FetchWorkDay(ctx context.Context, userID string, date core.Date) (*core.WorkDay, error)
	}

	AllocationReader interface {
		FetchAllocations(ctx context.Context, userID string, date core.Date) ([]core.Allocation, error)
	}

	// RangeReader is the bulk read used to build calendar and report views.
	RangeReader interface {
		FetchRange(ctx context.Context, userID string, start, end core.Date) (core.RangeData, error)
	}

	WorkDayWriter interface {
		// SaveWorkDay upserts the total keyed by (userID, date) and returns the day id.
		SaveWorkDay(ctx context.Context, userID string, date core.Date, totalHours float64) (string, error)
	}

	AllocationWriter interface {
		// ReplaceAllocations deletes the day's allocations and inserts the given set.
		ReplaceAllocations(ctx context.Context, userID string, date core.Date, allocations []core.Allocation) error
	}

	// DaySaver writes a day's total and its allocation set as one unit.
	DaySaver interface {
		SaveDay(ctx context.Context, userID string, date core.Date, totalHours float64, allocations []core.Allocation) error
	}

	CatalogReader interface {
		FetchCatalog(ctx context.Context) (core.Catalog, error)
	}

	Gateway interface {
		WorkDayReader
		AllocationReader
		RangeReader
		WorkDayWriter
		AllocationWriter
		DaySaver
		CatalogReader
	}

	// ActivityLister returns the users that recorded anything on or after since.
	ActivityLister interface {
		ListUsersWithActivity(ctx context.Context, since core.Date) ([]string, error)
	}

	CatalogWriter interface {
		ReplaceCatalog(ctx context.Context, catalog core.Catalog) error
	}

	// SyncQueue tracks which saved days still have to be exported.
	SyncQueue interface {
		PendingSync(ctx context.Context, limit int) ([]SyncRecord, error)
		// PendingSyncFor returns nil, nil when the day is already synced or absent.
		PendingSyncFor(ctx context.Context, userID string, date core.Date) (*SyncRecord, error)
		MarkSynced(ctx context.Context, userID string, date core.Date, version int64) error
		MarkSyncFailed(ctx context.Context, userID string, date core.Date, version int64, cause error) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// SyncRecord is a saved day waiting for export. Version increases on
	// every save so a stale export never marks a newer save as synced.
	SyncRecord struct {
		Day         core.WorkDay
		Allocations []core.Allocation
		Version     int64
		Attempts    int
	}
)
