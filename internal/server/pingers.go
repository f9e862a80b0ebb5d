package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/rag"
)

// ModelPinger probes an LLM backend by sending a minimal single-message
// generate request. It satisfies the Pinger interface and is used by
// GET /api/ready.
type ModelPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewModelPinger constructs a ModelPinger for the given model and backend name.
func NewModelPinger(m model.ToolCallingChatModel, name string) *ModelPinger {
	return &ModelPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *ModelPinger) Name() string { return p.name }

// Ping sends a one-word generate request. Consumes a handful of tokens, so
// readiness probes should not run on a tight interval.
func (p *ModelPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// EmbedderPinger probes an embedding backend by embedding a single short
// string.
type EmbedderPinger struct {
	embedder rag.Embedder
	name     string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single token and checks a non-empty vector comes back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned an empty vector")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// OCRPinger probes the OCR sidecar's health endpoint.
type OCRPinger struct {
	client *extract.OCRClient
}

// NewOCRPinger constructs an OCRPinger for the given OCR client.
func NewOCRPinger(c *extract.OCRClient) *OCRPinger {
	return &OCRPinger{client: c}
}

// Name returns the dependency label used in readiness responses.
func (p *OCRPinger) Name() string { return "ocr" }

// Ping calls the OCR service health endpoint.
func (p *OCRPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
