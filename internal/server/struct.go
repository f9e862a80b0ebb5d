package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docqa/docqa-go/internal/answers"
	"github.com/docqa/docqa-go/internal/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// RunTimeout bounds a single POST /api/v1/run request, covering
	// ingestion through generation. Defaults to 5 minutes.
	RunTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// runner is the interface handleRun calls to answer a request.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type runner interface {
	Run(ctx context.Context, q pipeline.Query) ([]pipeline.Answer, error)
}

// Server is the HTTP server exposing the question-answering pipeline.
type Server struct {
	// runner answers run requests; set to the pipeline in production,
	// overridden by a fake in tests.
	runner runner
	// answerLog backs GET /api/stats. May be nil.
	answerLog answers.Log
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus metrics owned by this server instance.
	metrics *serverMetrics
}

// runRequest is the JSON body for POST /api/v1/run. Multipart requests carry
// the same fields as form values alongside uploaded files.
type runRequest struct {
	// Documents is the list of document URLs to ingest.
	Documents []string `json:"documents,omitempty"`
	// Questions to answer over the documents.
	Questions []string `json:"questions"`
	// Model optionally overrides the configured model for this request.
	Model string `json:"model,omitempty"`
	// Temperature optionally overrides the sampling temperature.
	Temperature *float32 `json:"temperature,omitempty"`
}

// runResponse is the JSON response for POST /api/v1/run. Answers are
// index-aligned with the request's questions.
type runResponse struct {
	Answers []pipeline.Answer `json:"answers"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	answers.Stats
	// Recent holds the most recently answered questions when requested
	// via ?recent=N.
	Recent []answers.Record `json:"recent,omitempty"`
}
