package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"horas/internal/gateway"
	applog "horas/internal/log"
	"horas/internal/middleware/auth"
	"horas/internal/middleware/ratelimit"
	"horas/internal/middleware/security"
	"horas/internal/middleware/trace"
	"horas/internal/services"
)

type Server struct {
	http.Server
	ledger   *services.LedgerService
	auth     *auth.Authenticator
	pinger   gateway.Pinger
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	rateLimit    ratelimit.Config
	shutdownOnce sync.Once
}

type ServerOption func(*Server)

// WithPinger makes /readyz report the health of p.
func WithPinger(p gateway.Pinger) ServerOption {
	return func(s *Server) { s.pinger = p }
}

func WithLogger(l *applog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

func WithRateLimit(c ratelimit.Config) ServerOption {
	return func(s *Server) { s.rateLimit = c }
}

// WithClock overrides the clock used for default ranges.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

func NewServer(addr string, ledger *services.LedgerService, authn *auth.Authenticator, opts ...ServerOption) *Server {
	s := &Server{
		ledger:    ledger,
		auth:      authn,
		detector:  security.NewDetector(),
		tracer:    trace.NewMiddleware(),
		now:       time.Now,
		rateLimit: ratelimit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentHTTP})
	}
	s.limiter = ratelimit.NewLimiter(s.rateLimit)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := func(h http.HandlerFunc) http.Handler {
		limited := s.limiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		})(h)
		return s.auth.Middleware(limited)
	}

	mux.Handle("GET /api/catalog", api(s.handleCatalog))
	mux.Handle("GET /api/catalog/projects/{id}/stages", api(s.handleProjectStages))
	mux.Handle("GET /api/catalog/stages/{id}/tasks", api(s.handleStageTasks))
	mux.Handle("GET /api/days/{date}", api(s.handleGetDay))
	mux.Handle("PUT /api/days/{date}/total", api(s.handlePutTotal))
	mux.Handle("PUT /api/days/{date}/allocations", api(s.handlePutAllocations))
	mux.Handle("GET /api/range", api(s.handleRange))
	mux.Handle("GET /api/calendar/month", api(s.handleMonthCalendar))
	mux.Handle("GET /api/calendar/week", api(s.handleWeekCalendar))
	mux.Handle("GET /api/reports/projects", api(s.handleProjectReport))
	mux.Handle("GET /api/reports/weeks", api(s.handleWeekReport))
	mux.Handle("GET /api/reports/summary", api(s.handleSummary))
	mux.Handle("GET /api/search", api(s.handleSearch))

	var h http.Handler = mux
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.Middleware(s.logger, trace.RequestID, s.detector.ExtractClientIP)(h)
	h = s.tracer.Middleware(h)
	return h
}

// rateLimitKey limits authenticated callers per user and everyone else per IP.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
