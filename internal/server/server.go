// Package server implements the HTTP API for the document question-answering
// pipeline. The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docqa/docqa-go/internal/answers"
	"github.com/docqa/docqa-go/internal/logging"
)

// New constructs a Server from the provided pipeline runner and config.
// answerLog may be nil, in which case GET /api/stats reports 503.
func New(run runner, answerLog answers.Log, cfg *Config) (*Server, error) {
	if run == nil {
		return nil, fmt.Errorf("server: runner must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must exceed RunTimeout or long runs are cut off
		// mid-response.
		cfg.WriteTimeout = 6 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New("docqa")
	}
	reg := cfg.MetricsRegistry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		runner:    run,
		answerLog: answerLog,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	if cfg.APIKey == "" {
		log.Warn("authentication disabled: no API key configured")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	// Protected routes go through auth and rate limiting; health, readiness,
	// and metrics stay open for probes and scrapers.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}
	open := func(name string, h http.Handler) http.Handler {
		return s.instrument(name, h)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/run", protected("run", s.handleRun))
	mux.Handle("GET /api/stats", protected("stats", s.handleStats))
	mux.Handle("GET /api/health", open("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", open("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", open("metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends a structured JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
