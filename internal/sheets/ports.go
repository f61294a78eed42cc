package sheets

import (
	"context"

	"horas/internal/core"
)

// DayExport is one saved day as it is written to the timesheet.
type DayExport struct {
	UserID         string
	Date           core.Date
	Version        int64
	Reconciliation core.Reconciliation
	Allocations    []core.AllocationView
}

// Ports for outbound adapters.
type (
	DayExporter interface {
		ExportDay(ctx context.Context, day DayExport) (rowRef string, err error)
	}

	// CatalogSource supplies the project/stage/task catalog maintained outside the app.
	CatalogSource interface {
		FetchCatalog(ctx context.Context) (core.Catalog, error)
	}
)
