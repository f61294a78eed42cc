package main

import (
	"context"
	"errors"
	"os"
	"time"

	"horas/internal/cli"
	applog "horas/internal/log"
	"horas/internal/services"
	gsheet "horas/internal/sheets/google"
	"horas/internal/worker"
)

func main() {
	cfg, logger, logCloser := cli.Bootstrap(applog.ComponentWorker)
	defer logCloser.Close()

	logger.Info("Starting horas-worker")

	if !cfg.SheetsEnabled() {
		logger.Error("Google Sheets is not configured, nothing to sync", "hint", "set GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	backend := cli.InitBackend(ctx, logger, cfg)
	defer backend.Close()

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		CatalogSheet:       cfg.GoogleCatalogSheet,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:     cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	processor := services.NewSyncProcessor(backend.Store, sheetsClient, services.SyncProcessorConfig{
		PollInterval:           cfg.SyncInterval,
		BatchSize:              cfg.SyncBatchSize,
		MaxRetries:             cfg.SyncMaxRetries,
		CatalogRefreshInterval: cfg.CatalogRefreshInterval,
	}, services.WithCatalogMirror(sheetsClient, backend.Store, backend.Store))
	syncWorker := worker.NewSyncWorker(processor)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	if backend.Events != nil {
		go func() {
			if err := backend.Events.ConsumeDaySaved(ctx, syncWorker.HandleDaySaved); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on polling only", "interval", cfg.SyncInterval)
	}

	cli.WaitForShutdown(ctx, done)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Warn("Sync processor did not stop cleanly", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
