// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/config"
	"github.com/lmcheong/eventtide/internal/coordinator"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Runner executes a scrape run over a set of sources.
type Runner interface {
	RunAll(ctx context.Context, sources []pipeline.SourceConfig) coordinator.Outcome
}

// Server wires HTTP handlers to the run coordinator.
type Server struct {
	router chi.Router
	runner Runner
	clock  pipeline.Clock
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, clock pipeline.Clock, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{runner: runner, clock: clock, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(bearerTokenMiddleware(cfg.Auth.BearerToken))
		}
		r.Get("/scrape", s.scrape)
		r.Post("/scrape", s.scrape)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// scrapeResponse is the run summary returned to callers.
type scrapeResponse struct {
	Success            bool                   `json:"success"`
	ExecutionTime      string                 `json:"executionTime"`
	EventsProcessed    int                    `json:"eventsProcessed"`
	EventsAdded        int                    `json:"eventsAdded"`
	EventsUpdated      int                    `json:"eventsUpdated"`
	StaleEventsRemoved int64                  `json:"staleEventsRemoved"`
	Errors             []pipeline.SourceError `json:"errors"`
	Timestamp          time.Time              `json:"timestamp"`
}

// scrape runs the pipeline synchronously and reports the outcome. The status
// code distinguishes a clean run (200), a partial one where some sources
// failed but events still flowed (207), and a fully failed run that produced
// nothing (500).
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	sources := s.cfg.ActiveSources(sourceFilter(r))
	if len(sources) == 0 {
		writeError(w, http.StatusBadRequest, "no matching active sources")
		return
	}

	outcome := s.runner.RunAll(r.Context(), sources)
	report := outcome.Report

	resp := scrapeResponse{
		Success:            report.Success(),
		ExecutionTime:      report.Duration.Round(time.Millisecond).String(),
		EventsProcessed:    outcome.Ingest.Processed,
		EventsAdded:        outcome.Ingest.Added,
		EventsUpdated:      outcome.Ingest.Updated,
		StaleEventsRemoved: outcome.StaleRemoved,
		Errors:             report.Errors,
		Timestamp:          s.clock.Now(),
	}
	if resp.Errors == nil {
		resp.Errors = []pipeline.SourceError{}
	}

	status := http.StatusOK
	switch {
	case !resp.Success:
		status = http.StatusInternalServerError
	case len(report.Errors) > 0:
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// sourceFilter reads the optional comma-separated ?sources= parameter.
func sourceFilter(r *http.Request) []string {
	raw := r.URL.Query().Get("sources")
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func bearerTokenMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token != expected {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
