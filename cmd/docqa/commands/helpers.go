package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/docqa/docqa-go/internal/answers"
	"github.com/docqa/docqa-go/internal/cache"
	"github.com/docqa/docqa-go/internal/chunker"
	"github.com/docqa/docqa-go/internal/embedder"
	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/pipeline"
	"github.com/docqa/docqa-go/internal/provider"
	"github.com/docqa/docqa-go/internal/rag"
)

// components bundles the wired-up collaborators shared by the serve, ask, and
// ingest commands.
type components struct {
	pipe      *pipeline.Pipeline
	chatModel model.ToolCallingChatModel
	embedder  rag.Embedder
	qdrant    *rag.QdrantStore
	ocr       *extract.OCRClient
	answerLog answers.Log
	close     func()
}

// buildComponents constructs and wires the model provider, embedder, vector
// stores, cache, answer log, and pipeline from the environment.
//
// When requireQdrant is false a Qdrant connection failure degrades to a
// warning and the service runs with uploaded-document requests only.
func buildComponents(ctx context.Context, log *slog.Logger, requireQdrant bool) (*components, error) {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "nvidia")),
		slog.String("model", provider.DefaultModelName()),
	)

	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
	log.Info("embedder initialised", slog.String("provider", embBackend))

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var ocr *extract.OCRClient
	if endpoint := os.Getenv("OCR_ENDPOINT"); endpoint != "" {
		ocr = extract.NewOCRClient(endpoint)
		log.Info("ocr fallback enabled", slog.String("endpoint", endpoint))
	}

	var loaderOpts []extract.Option
	if ocr != nil {
		loaderOpts = append(loaderOpts, extract.WithOCR(ocr))
	}
	loader := extract.NewLoader(loaderOpts...)

	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "docqa-docs")
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	qdrantStore, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Namespace:  collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		if requireQdrant {
			closeAll()
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
		}
		log.Warn("qdrant unreachable, document-free queries disabled",
			slog.String("host", qdrantHost), slog.Int("port", qdrantPort), slog.Any("error", err))
		qdrantStore = nil
	} else {
		closers = append(closers, func() { _ = qdrantStore.Close() })
		log.Info("qdrant store ready",
			slog.String("host", qdrantHost), slog.Int("port", qdrantPort), slog.String("collection", collection))
	}

	var answerLog answers.Log
	dbPath := os.Getenv("DOCQA_ANSWERS_DB")
	if dbPath != "disabled" {
		if dbPath == "" {
			dbPath, err = answers.DefaultDBPath()
			if err != nil {
				log.Warn("answers: could not resolve default DB path, disabling", slog.Any("error", err))
				dbPath = ""
			}
		}
		if dbPath != "" {
			al, alErr := answers.Open(dbPath)
			if alErr != nil {
				log.Warn("answers: failed to open log, disabling", slog.Any("error", alErr))
			} else {
				answerLog = al
				closers = append(closers, func() { _ = al.Close() })
				log.Info("answers: log opened", slog.String("path", dbPath))
			}
		}
	} else {
		log.Info("answers: disabled via DOCQA_ANSWERS_DB=disabled")
	}

	deps := pipeline.Deps{
		Loader:    loader,
		Chunker:   chunker.New(getEnvInt("CHUNK_SIZE", 0), getEnvInt("CHUNK_OVERLAP", 0)),
		Embedder:  emb,
		ChatModel: chatModel,
		Cache:     cache.New(getEnvInt("CACHE_MAX_ENTRIES", 512), time.Duration(getEnvInt("CACHE_TTL_SECONDS", 0))*time.Second),
		AnswerLog: answerLog,
	}
	if qdrantStore != nil {
		deps.Persistent = qdrantStore
	}
	mode := getEnvOrDefault("RETRIEVAL_RERANK", "off")
	policy, rerankOn, err := rerankPolicy(mode, getEnvInt("RETRIEVAL_RERANK_MIN_WORDS", defaultRerankMinWords))
	if err != nil {
		closeAll()
		return nil, err
	}
	if rerankOn {
		reranker, rErr := rag.NewLLMReranker(chatModel)
		if rErr != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialise reranker: %w", rErr)
		}
		deps.Reranker = reranker
		deps.RerankPolicy = policy
		log.Info("llm reranking enabled", slog.String("mode", mode))
	}

	pipe, err := pipeline.New(deps, pipeline.Options{
		TopK:               getEnvInt("RETRIEVAL_TOP_K", 5),
		MaxContextTokens:   getEnvInt("MAX_CONTEXT_TOKENS", 0),
		DefaultModel:       provider.DefaultModelName(),
		DefaultTemperature: provider.DefaultTemperature(),
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	return &components{
		pipe:      pipe,
		chatModel: chatModel,
		embedder:  emb,
		qdrant:    qdrantStore,
		ocr:       ocr,
		answerLog: answerLog,
		close:     closeAll,
	}, nil
}

// defaultRerankMinWords is the question length, in words, at which auto-mode
// reranking fires regardless of ambiguity markers.
const defaultRerankMinWords = 12

// rerankPolicy maps a RETRIEVAL_RERANK mode onto a rerank policy. The second
// return reports whether reranking is enabled at all.
func rerankPolicy(mode string, minWords int) (rag.RerankPolicy, bool, error) {
	switch mode {
	case "off", "false", "":
		return rag.RerankPolicy{}, false, nil
	case "auto":
		return rag.RerankPolicy{MinWords: minWords}, true, nil
	case "always", "true":
		return rag.RerankPolicy{Always: true}, true, nil
	default:
		return rag.RerankPolicy{}, false, fmt.Errorf("invalid RETRIEVAL_RERANK %q: want off, auto, or always", mode)
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
