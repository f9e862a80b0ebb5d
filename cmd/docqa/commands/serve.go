package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/server"
	"github.com/docqa/docqa-go/internal/tracing"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP API",
		Long: `Start the docqa HTTP server on localhost.

The server exposes POST /api/v1/run for answering questions over uploaded
documents or URLs, plus health, readiness, statistics, and Prometheus
metrics endpoints.

Examples:
  docqa serve
  docqa serve --port 9090
  MODEL_PROVIDER=groq docqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New("docqa")
			ctx = logging.WithLogger(ctx, log)

			// Flags win over env, env wins over the built-in defaults.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			comps, err := buildComponents(ctx, log, false)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer comps.close()

			pingers := []server.Pinger{
				server.NewModelPinger(comps.chatModel, getEnvOrDefault("MODEL_PROVIDER", "nvidia")),
				server.NewEmbedderPinger(comps.embedder, getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")),
			}
			if comps.qdrant != nil {
				pingers = append(pingers, server.NewQdrantPinger(comps.qdrant.Client()))
			}
			if comps.ocr != nil {
				pingers = append(pingers, server.NewOCRPinger(comps.ocr))
			}

			srv, err := server.New(comps.pipe, comps.answerLog, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				APIKey:    os.Getenv("DOCQA_API_KEY"),
				RateLimit: getEnvFloat("SERVER_RATE_LIMIT", 0),
				RateBurst: getEnvInt("SERVER_RATE_BURST", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
