package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitterhq/balances/internal/service"
)

// Server exposes the read-only query surface over JSON.
type Server struct {
	balances *service.BalanceService
	srv      *http.Server
}

// NewServer builds the HTTP server with all routes registered.
func NewServer(addr string, balances *service.BalanceService) *Server {
	s := &Server{balances: balances}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/groups/{groupId}/balances", s.handleGroupBalances)
	mux.HandleFunc("GET /api/v1/groups/{groupId}/debts", s.handleActiveDebts)
	mux.HandleFunc("GET /api/v1/groups/{groupId}/balances/{userX}/{userY}", s.handleBalanceBetween)
	mux.HandleFunc("GET /api/v1/groups/{groupId}/summary", s.handleGroupSummary)
	mux.HandleFunc("GET /api/v1/users/{userId}/balances", s.handleUserBalances)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe runs the server until it fails or is shut down.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
