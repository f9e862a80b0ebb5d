package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/docqa/docqa-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "mxbai-embed-large"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultNvidiaModel = "nvidia/nv-embed-v1"

	// defaultOllamaDimensions is the output dimension of mxbai-embed-large.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 1024
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultNvidiaDimensions is the output dimension of nv-embed-v1.
	defaultNvidiaDimensions = 4096

	// nvidiaBaseURL is the NVIDIA NIM OpenAI-compatible API endpoint.
	nvidiaBaseURL = "https://integrate.api.nvidia.com/v1"
)

// DefaultDimensions returns the correct default embedding vector size for the
// given backend name. Callers that need to pre-configure a vector store (e.g.
// Qdrant collection creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	case "nvidia":
		return defaultNvidiaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// NewFromEnv constructs a rag.Embedder using cascading defaults that inherit
// from the chat provider configuration when embedding-specific overrides are
// not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER — if unset, defaults to "ollama" (chat providers
//     like groq and openrouter serve no embeddings endpoint)
//  2. EMBEDDING_MODEL — overrides the default model for the resolved backend
//  3. EMBEDDING_API_KEY — overrides the backend's inherited API key
//  4. EMBEDDING_ENDPOINT — overrides the backend's default endpoint
//  5. EMBEDDING_DIMENSIONS — overrides the default dimensions
func NewFromEnv() (rag.Embedder, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	switch backend {
	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		model := getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: model,
		}), nil

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := getEnv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		}), nil

	case "nvidia":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("NVIDIA_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: nvidia requires NVIDIA_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := getEnv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = nvidiaBaseURL
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Model:   getEnvOrDefault("EMBEDDING_MODEL", defaultNvidiaModel),
			// NIM embedding models reject requests without an input type.
			InputType: "passage",
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, nvidia", backend)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
