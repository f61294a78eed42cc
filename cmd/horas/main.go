package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"horas/internal/cache"
	"horas/internal/cli"
	"horas/internal/core"
	apphttp "horas/internal/http"
	applog "horas/internal/log"
	"horas/internal/middleware/auth"
	"horas/internal/middleware/ratelimit"
	"horas/internal/services"
)

func main() {
	cfg, logger, logCloser := cli.Bootstrap(applog.ComponentApp)
	defer logCloser.Close()

	backend := cli.InitBackend(context.Background(), logger, cfg)
	defer backend.Close()

	catalogCache := cache.NewLRUCache[core.Catalog](1, cfg.CatalogCacheTTL)
	caches := cache.NewManager()
	caches.Register(catalogCache)
	caches.StartCleanup(cfg.CatalogCacheTTL)
	defer caches.Stop()
	ledger := services.NewLedgerService(backend.Gateway,
		services.WithWeekStart(cfg.WeekStart()),
		services.WithCatalogCache(catalogCache))

	var authOpts []auth.Option
	if cfg.TrustRoleHeader {
		authOpts = append(authOpts, auth.WithHeaderRoles())
	}
	authn := auth.NewAuthenticator(cfg.JWTSecret, authOpts...)
	if !authn.Enabled() {
		logger.Warn("JWT_SECRET not set, trusting X-User-ID headers",
			"trust_role_header", authn.HeaderRoles())
	}

	opts := []apphttp.ServerOption{
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
		apphttp.WithRateLimit(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			CleanupInterval:   cfg.RateLimitCleanup,
		}),
	}
	if backend.Pinger != nil {
		opts = append(opts, apphttp.WithPinger(backend.Pinger))
	}
	srv := apphttp.NewServer(":"+cfg.Port, ledger, authn, opts...)
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting horas server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"week_start", cfg.WeekStartDay,
		"events", backend.Events != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
