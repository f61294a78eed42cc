package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"horas/internal/core"
	"horas/internal/gateway"
	"horas/internal/sheets"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often pending days are checked (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of days exported per poll (default: 10)
	BatchSize int

	// MaxRetries is how many failed exports a version gets before it is
	// skipped until the next save (default: 3)
	MaxRetries int

	// CatalogRefreshInterval is how often the catalog is mirrored from the
	// external source; zero disables it (default: 1h)
	CatalogRefreshInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:           10 * time.Second,
		BatchSize:              10,
		MaxRetries:             3,
		CatalogRefreshInterval: time.Hour,
	}
}

// SyncProcessor exports saved days to the timesheet and mirrors the catalog
// back into storage. It is driven both by polling and by day.saved messages.
type SyncProcessor struct {
	queue    gateway.SyncQueue
	exporter sheets.DayExporter
	catalogs catalogMirror
	config   SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type catalogMirror struct {
	source sheets.CatalogSource
	reader gateway.CatalogReader
	writer gateway.CatalogWriter
}

// SyncOption wires optional collaborators into the processor.
type SyncOption func(*SyncProcessor)

// WithCatalogMirror copies the catalog from source into writer on every
// refresh; reader supplies names for exported rows.
func WithCatalogMirror(source sheets.CatalogSource, reader gateway.CatalogReader, writer gateway.CatalogWriter) SyncOption {
	return func(p *SyncProcessor) {
		p.catalogs = catalogMirror{source: source, reader: reader, writer: writer}
	}
}

func NewSyncProcessor(queue gateway.SyncQueue, exporter sheets.DayExporter, config SyncProcessorConfig, opts ...SyncOption) *SyncProcessor {
	p := &SyncProcessor{
		queue:    queue,
		exporter: exporter,
		config:   config,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	var refresh <-chan time.Time
	if p.catalogs.source != nil && p.config.CatalogRefreshInterval > 0 {
		t := time.NewTicker(p.config.CatalogRefreshInterval)
		defer t.Stop()
		refresh = t.C
		if err := p.RefreshCatalog(ctx); err != nil {
			slog.WarnContext(ctx, "Initial catalog refresh failed", "error", err)
		}
	}

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-refresh:
			if err := p.RefreshCatalog(ctx); err != nil {
				slog.WarnContext(ctx, "Catalog refresh failed", "error", err)
			}
		}
	}
}

// ProcessBatch exports up to BatchSize pending days and returns how many
// were exported.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	records, err := p.queue.PendingSync(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch pending days", "error", err)
		return 0
	}
	if len(records) == 0 {
		return 0
	}
	slog.DebugContext(ctx, "Processing sync batch", "count", len(records))

	exported := 0
	for _, rec := range records {
		if p.stopping(ctx) {
			break
		}
		if rec.Attempts >= p.config.MaxRetries {
			continue
		}
		if err := p.export(ctx, rec); err == nil {
			exported++
		}
	}
	return exported
}

// ProcessDay exports a single day if it has unsynced changes. It is the
// handler for day.saved messages.
func (p *SyncProcessor) ProcessDay(ctx context.Context, userID string, date core.Date) error {
	rec, err := p.queue.PendingSyncFor(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("get pending day: %w", err)
	}
	if rec == nil {
		slog.DebugContext(ctx, "Day already synced", "user_id", userID, "date", date.String())
		return nil
	}
	if rec.Attempts >= p.config.MaxRetries {
		slog.WarnContext(ctx, "Day exceeded export retries, skipping",
			"user_id", userID, "date", date.String(), "attempts", rec.Attempts)
		return nil
	}
	return p.export(ctx, *rec)
}

func (p *SyncProcessor) export(ctx context.Context, rec gateway.SyncRecord) error {
	day := rec.Day
	var cat core.Catalog
	if p.catalogs.reader != nil {
		if c, err := p.catalogs.reader.FetchCatalog(ctx); err == nil {
			cat = c
		} else {
			slog.WarnContext(ctx, "Exporting without catalog names", "error", err)
		}
	}
	agg := core.NewAggregator(day.UserID, core.RangeData{
		WorkDays:    []core.WorkDay{day},
		Allocations: rec.Allocations,
	}, core.AggregatorOptions{Catalog: cat})
	view := agg.DayView(day.Date)

	ref, err := p.exporter.ExportDay(ctx, sheets.DayExport{
		UserID:         day.UserID,
		Date:           day.Date,
		Version:        rec.Version,
		Reconciliation: core.Reconcile(day.TotalHours, rec.Allocations),
		Allocations:    view.Allocations,
	})
	if err != nil {
		p.handleFailure(ctx, rec, err)
		return err
	}

	if err := p.queue.MarkSynced(ctx, day.UserID, day.Date, rec.Version); err != nil {
		slog.WarnContext(ctx, "Failed to mark day as synced",
			"user_id", day.UserID, "date", day.Date.String(), "error", err)
	}
	slog.InfoContext(ctx, "Synced day to Google Sheets",
		"user_id", day.UserID,
		"date", day.Date.String(),
		"version", rec.Version,
		"sheets_ref", ref)
	return nil
}

func (p *SyncProcessor) handleFailure(ctx context.Context, rec gateway.SyncRecord, cause error) {
	day := rec.Day
	attempt := rec.Attempts + 1
	slog.WarnContext(ctx, "Sync processing failed",
		"user_id", day.UserID,
		"date", day.Date.String(),
		"attempt", attempt,
		"error", cause)

	if err := p.queue.MarkSyncFailed(ctx, day.UserID, day.Date, rec.Version, cause); err != nil {
		slog.ErrorContext(ctx, "Failed to record sync failure",
			"user_id", day.UserID, "date", day.Date.String(), "error", err)
	}
	if attempt >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Day failed permanently after max retries",
			"user_id", day.UserID,
			"date", day.Date.String(),
			"version", rec.Version,
			"attempts", attempt)
	}
}

// RefreshCatalog copies the external catalog into storage.
func (p *SyncProcessor) RefreshCatalog(ctx context.Context) error {
	if p.catalogs.source == nil || p.catalogs.writer == nil {
		return nil
	}
	cat, err := p.catalogs.source.FetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}
	if len(cat.Projects) == 0 {
		return errors.New("fetch catalog: source returned no projects")
	}
	if err := p.catalogs.writer.ReplaceCatalog(ctx, cat); err != nil {
		return fmt.Errorf("store catalog: %w", err)
	}
	slog.InfoContext(ctx, "Catalog refreshed",
		"projects", len(cat.Projects),
		"stages", len(cat.Stages),
		"tasks", len(cat.Tasks))
	return nil
}

func (p *SyncProcessor) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}
