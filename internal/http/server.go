// Package http exposes the savings-goal engine as a JSON API. Identity comes
// from the X-User-ID header set by the upstream gateway; every data route is
// scoped to that user.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"risparmio/internal/cache"
	"risparmio/internal/core"
	applog "risparmio/internal/log"
	"risparmio/internal/services"
)

const userIDHeader = "X-User-ID"

type Server struct {
	http.Server
	goals       *services.GoalService
	logger      *applog.Logger
	rateLimiter *rateLimiter

	// Portfolio responses are cached per user and invalidated on writes.
	portfolioCache *cache.LRUCache[core.Portfolio]
	cacheManager   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, goals *services.GoalService, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		goals:          goals,
		logger:         logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:    newRateLimiter(),
		portfolioCache: cache.NewLRUCache[core.Portfolio](500, 30*time.Second),
		cacheManager:   cache.NewManager(),
	}

	s.cacheManager.Register(s.portfolioCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /goals", s.protect(s.withUser(s.handleCreateGoal)))
	mux.HandleFunc("GET /goals", s.protect(s.withUser(s.handleListGoals)))
	mux.HandleFunc("GET /goals/{id}", s.protect(s.withUser(s.handleGetGoal)))
	mux.HandleFunc("PUT /goals/{id}", s.protect(s.withUser(s.handleUpdateGoal)))
	mux.HandleFunc("DELETE /goals/{id}", s.protect(s.withUser(s.handleDeleteGoal)))
	mux.HandleFunc("POST /goals/{id}/pause", s.protect(s.withUser(s.handlePauseGoal)))
	mux.HandleFunc("POST /goals/{id}/resume", s.protect(s.withUser(s.handleResumeGoal)))
	mux.HandleFunc("POST /goals/{id}/complete", s.protect(s.withUser(s.handleCompleteGoal)))

	mux.HandleFunc("POST /goals/{id}/contributions", s.protect(s.withUser(s.handleCreateContribution)))
	mux.HandleFunc("GET /goals/{id}/contributions", s.protect(s.withUser(s.handleListContributions)))
	mux.HandleFunc("DELETE /contributions/{id}", s.protect(s.withUser(s.handleDeleteContribution)))

	mux.HandleFunc("POST /incomes", s.protect(s.withUser(s.handleCreateIncome)))
	mux.HandleFunc("GET /incomes/month", s.protect(s.withUser(s.handleMonthIncome)))
	mux.HandleFunc("GET /summary/savings", s.protect(s.withUser(s.handleSavingsSummary)))

	return s
}

// protect adds security headers, rate limiting and request logging.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()
		ctx := applog.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limiting applies to mutating requests only.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.logger.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// withUser resolves the caller's identity from the X-User-ID header.
func (s *Server) withUser(next func(w http.ResponseWriter, r *http.Request, userID uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(userIDHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid "+userIDHeader+" header")
			return
		}
		next(w, r, userID)
	}
}

// invalidateUser drops cached views after a write for the given user.
func (s *Server) invalidateUser(userID uuid.UUID) {
	s.portfolioCache.Delete(portfolioCacheKey(userID, false))
	s.portfolioCache.Delete(portfolioCacheKey(userID, true))
}

func portfolioCacheKey(userID uuid.UUID, includeInactive bool) string {
	key := "portfolio:" + userID.String()
	if includeInactive {
		key += ":all"
	}
	return key
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	if shutdownErr != nil {
		slog.Error("HTTP server shutdown failed", "error", shutdownErr)
	}
	return shutdownErr
}
