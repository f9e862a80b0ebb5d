package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForRAG checks that the embedding configuration is usable before the
// service starts accepting questions. It returns an error if the
// configuration is clearly broken (a keyed backend with no API key), and logs
// a warning if EMBEDDING_MODEL looks like a chat model rather than an
// embedding model.
//
// This is a pre-flight check — call it before constructing the embedder or
// the vector stores so operators get a clear error at startup rather than a
// cryptic failure on the first request.
func ValidateForRAG(log *slog.Logger) error {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	switch backend {
	case "ollama":
		// No key required; the host default covers local setups.

	case "openai":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=openai but no API key found — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "nvidia":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("NVIDIA_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=nvidia but no API key found — set NVIDIA_API_KEY or EMBEDDING_API_KEY")
		}

	default:
		return fmt.Errorf("embedder: unknown EMBEDDING_PROVIDER %q — valid values: ollama, openai, nvidia", backend)
	}

	// Warn if EMBEDDING_MODEL looks like a chat model.
	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. mxbai-embed-large, text-embedding-3-small"),
		)
	}

	return nil
}
