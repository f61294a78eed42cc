// Package cli provides common CLI initialization utilities shared by the
// horas server, the sync worker and the audit worker.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"horas/internal/backend"
	"horas/internal/config"
	applog "horas/internal/log"
)

// LoadEnvFile loads .env for local development. ENV_FILE, when set, names
// an additional file loaded first. Missing files are ignored; variables
// already in the environment win.
func LoadEnvFile() {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", "path", path, "error", err)
		}
	}
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// LoggerConfig translates the logging settings of cfg.
func LoggerConfig(cfg *config.Config, component string) applog.Config {
	lc := applog.DefaultConfig()
	lc.Component = component
	if level, err := applog.ParseLevel(cfg.LogLevel); err == nil {
		lc.Level = level
	}
	lc.Format = cfg.LogFormat
	lc.File = cfg.LogFile
	if cfg.LogMaxSizeMB > 0 {
		lc.MaxSizeMB = cfg.LogMaxSizeMB
	}
	if cfg.LogMaxBackups > 0 {
		lc.MaxBackups = cfg.LogMaxBackups
	}
	if cfg.LogMaxAgeDays > 0 {
		lc.MaxAgeDays = cfg.LogMaxAgeDays
	}
	return lc
}

// SetupLogger builds the process logger from cfg and makes it the slog
// default. The closer releases the log file, if any.
func SetupLogger(cfg *config.Config, component string) (*applog.Logger, io.Closer) {
	lc := LoggerConfig(cfg, component)
	handler, closer := applog.NewHandler(lc)
	lc.Handler = handler
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger, closer
}

// Bootstrap loads the environment and configuration and sets up logging.
// It exits the process when the configuration is invalid.
func Bootstrap(component string) (*config.Config, *applog.Logger, io.Closer) {
	LoadEnvFile()
	cfg := LoadAndValidateConfig(slog.Default())
	logger, closer := SetupLogger(cfg, component)
	return cfg, logger, closer
}

// InitBackend creates the configured backend or exits the process.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return result
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
