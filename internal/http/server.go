// Package http exposes the JSON API: accounts, expenses, the aggregated
// dashboard with its live stream, and dashboard sharing.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/karansanghvi/spendly/internal/auth"
	"github.com/karansanghvi/spendly/internal/cache"
	"github.com/karansanghvi/spendly/internal/feed"
	applog "github.com/karansanghvi/spendly/internal/log"
	"github.com/karansanghvi/spendly/internal/middleware/ratelimit"
	"github.com/karansanghvi/spendly/internal/middleware/security"
	"github.com/karansanghvi/spendly/internal/middleware/trace"
	"github.com/karansanghvi/spendly/internal/services"
	"github.com/karansanghvi/spendly/internal/sharing"
)

// topDashboardExpenses is how many top-ranked expenses the owner
// dashboard includes.
const topDashboardExpenses = 5

// sharedViewTTL bounds how stale a cached shared-dashboard view can be.
const sharedViewTTL = 30 * time.Second

type Server struct {
	http.Server

	authSvc  *auth.Service
	tokens   *auth.TokenIssuer
	expenses *services.ExpenseService
	registry *sharing.Registry
	hub      *feed.Hub

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// Shared dashboards are read far more often than their owner writes,
	// so token views are cached briefly.
	sharedCache *cache.LRU[sharing.SharedView]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, logger *applog.Logger, authSvc *auth.Service, tokens *auth.TokenIssuer, expenses *services.ExpenseService, registry *sharing.Registry, hub *feed.Hub) *Server {
	mux := http.NewServeMux()

	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		authSvc:     authSvc,
		tokens:      tokens,
		expenses:    expenses,
		registry:    registry,
		hub:         hub,
		limiter:     ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:    security.NewDetector(),
		sharedCache: cache.NewLRU[sharing.SharedView](200, sharedViewTTL),
	}

	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /metricsz", s.handleMetrics)

	mux.HandleFunc("POST /api/signup", s.handleSignup)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/shared-dashboard/{token}", s.handleSharedDashboard)

	mux.Handle("GET /api/profile", s.authed(s.handleGetProfile))
	mux.Handle("PUT /api/profile", s.authed(s.handleUpdateProfile))

	mux.Handle("POST /api/expenses", s.authed(s.handleCreateExpense))
	mux.Handle("GET /api/expenses", s.authed(s.handleListExpenses))
	mux.Handle("GET /api/expenses/{id}", s.authed(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", s.authed(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.authed(s.handleDeleteExpense))

	mux.Handle("GET /api/dashboard", s.authed(s.handleDashboard))
	mux.Handle("GET /api/dashboard/stream", s.authed(s.handleDashboardStream))

	mux.Handle("POST /api/share-links", s.authed(s.handleCreateShareLink))
	mux.Handle("POST /api/join", s.authed(s.handleJoin))
	mux.Handle("GET /api/joined", s.authed(s.handleListJoined))
	mux.Handle("DELETE /api/joined/{id}", s.authed(s.handleLeave))
	mux.Handle("GET /api/viewers", s.authed(s.handleListViewers))
	mux.Handle("DELETE /api/viewers/{id}", s.authed(s.handleRevokeViewer))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	// Request-scoped logger carrying the trace request id, for handlers
	// that log beyond the automatic start/end lines.
	withLogger := applog.Middleware(logger.WithComponent(applog.ComponentHTTP))
	withRequestID := applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})

	handler := headers.Middleware(
		s.tracer.Middleware(
			withLogger(
				withRequestID(
					s.withDetection(
						s.withWriteLimit(mux))))))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// authed protects a handler with the JWT middleware.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.tokens.Middleware(h)
}

// withDetection flags probe-looking requests. They are logged and
// counted but still served; pattern lists have false positives.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.Suspicious(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"client_ip", s.detector.ExtractClientIP(r),
				"method", r.Method, "path", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// withWriteLimit rate-limits mutating requests per client IP. Reads are
// not limited; the dashboard polls.
func (s *Server) withWriteLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := s.detector.ExtractClientIP(r)
			if !s.limiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleMetrics exposes operational counters for scraping.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traffic := s.tracer.GetMetrics()
	limits := s.limiter.GetMetrics()
	detection := s.detector.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_requests":      traffic.TotalRequests,
		"avg_response_micros": traffic.AverageResponseTime,
		"rate_limit_denied":   limits.TotalDenied,
		"rate_limit_clients":  limits.ClientCount,
		"suspicious_requests": detection.SuspiciousRequests,
		"invalid_ip_attempts": detection.InvalidIPAttempts,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
