package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
)

// defaultModels maps each backend to the model used when MODEL_NAME is unset.
var defaultModels = map[Backend]string{
	BackendNvidia:     "qwen/qwen2.5-7b-instruct",
	BackendGroq:       "llama-3.3-70b-versatile",
	BackendOpenRouter: "mistralai/mistral-small-3.1-24b-instruct",
	BackendOpenAI:     "gpt-4o-mini",
	BackendOllama:     "llama3",
	BackendGemini:     "gemini-1.5-flash",
}

// NewFromEnv constructs a chat model by reading provider configuration from
// environment variables. MODEL_PROVIDER selects the backend; each backend
// uses its own native credential env var.
//
// Environment variables:
//
//	MODEL_PROVIDER = nvidia | groq | openrouter | openai | ollama | gemini (default: nvidia)
//	MODEL_NAME     = model identifier (per-backend default applies when unset)
//
//	NVIDIA:     NVIDIA_API_KEY
//	Groq:       GROQ_API_KEY
//	OpenRouter: OPENROUTER_API_KEY
//	OpenAI:     OPENAI_API_KEY
//	Ollama:     OLLAMA_HOST (default: http://localhost:11434)
//	Gemini:     GOOGLE_API_KEY
//
//	Shared: OPENAI_BASE_URL (endpoint override for the OpenAI-wire backends),
//	        MODEL_MAX_TOKENS (default: 4096), MODEL_TEMPERATURE (default: 0.2)
func NewFromEnv(ctx context.Context) (model.ToolCallingChatModel, error) {
	backend := Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendNvidia)))

	cfg := &Config{
		Backend:     backend,
		Model:       getEnvOrDefault("MODEL_NAME", defaultModels[backend]),
		BaseURL:     os.Getenv("OPENAI_BASE_URL"),
		MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 4096),
		Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
	}

	switch backend {
	case BackendNvidia:
		cfg.APIKey = os.Getenv("NVIDIA_API_KEY")
	case BackendGroq:
		cfg.APIKey = os.Getenv("GROQ_API_KEY")
	case BackendOpenRouter:
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case BackendOllama:
		cfg.BaseURL = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
	case BackendGemini:
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	return New(ctx, cfg)
}

// DefaultModelName returns the model identifier the environment resolves to:
// MODEL_NAME when set, otherwise the selected backend's default.
func DefaultModelName() string {
	backend := Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendNvidia)))
	return getEnvOrDefault("MODEL_NAME", defaultModels[backend])
}

// DefaultTemperature returns the sampling temperature the environment
// resolves to.
func DefaultTemperature() float32 {
	return getEnvFloat32("MODEL_TEMPERATURE", 0.2)
}

// New constructs a chat model from an explicit Config, delegating to the
// appropriate backend constructor. It validates the config first so callers
// get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendNvidia:
		return newOpenAICompatible(ctx, cfg, nvidiaBaseURL)
	case BackendGroq:
		return newOpenAICompatible(ctx, cfg, groqBaseURL)
	case BackendOpenRouter:
		return newOpenAICompatible(ctx, cfg, openRouterBaseURL)
	case BackendOpenAI:
		return newOpenAICompatible(ctx, cfg, "")
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
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

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
