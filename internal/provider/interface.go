// Package provider defines the completion backend set and factory for
// constructing LLM chat models at runtime. Supported backends: NVIDIA NIM,
// Groq, OpenRouter, OpenAI, local Ollama, and Google Gemini. The first four
// share one OpenAI-compatible constructor differing only in base URL and
// credential; adding a backend means adding a variant here, not branching on
// strings elsewhere.
package provider

import (
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendNvidia selects NVIDIA NIM's OpenAI-compatible API.
	BackendNvidia Backend = "nvidia"
	// BackendGroq selects Groq's OpenAI-compatible API.
	BackendGroq Backend = "groq"
	// BackendOpenRouter selects OpenRouter's OpenAI-compatible API.
	BackendOpenRouter Backend = "openrouter"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Default base URLs for the OpenAI-compatible gateways.
const (
	nvidiaBaseURL     = "https://integrate.api.nvidia.com/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the default model identifier (e.g. "qwen/qwen2.5-7b-instruct").
	// Individual requests may override it at Generate time.
	Model string

	// BaseURL overrides the backend's default API endpoint.
	BaseURL string

	// APIKey is the authentication credential for the selected backend.
	// Unused for Ollama.
	APIKey string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature is the default sampling temperature (0.0–1.0). Requests
	// may override it at Generate time.
	Temperature float32
}

// Validate checks that the config carries everything its backend requires.
// Error messages name the env var an operator would set to fix the problem.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("provider: model name is required — set MODEL_NAME")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("provider: temperature %v out of range [0, 1]", c.Temperature)
	}

	switch c.Backend {
	case BackendOllama:
		// No credential needed.
	case BackendNvidia:
		if c.APIKey == "" {
			return fmt.Errorf("provider: nvidia backend requires NVIDIA_API_KEY")
		}
	case BackendGroq:
		if c.APIKey == "" {
			return fmt.Errorf("provider: groq backend requires GROQ_API_KEY")
		}
	case BackendOpenRouter:
		if c.APIKey == "" {
			return fmt.Errorf("provider: openrouter backend requires OPENROUTER_API_KEY")
		}
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("provider: openai backend requires OPENAI_API_KEY")
		}
	case BackendGemini:
		if c.APIKey == "" {
			return fmt.Errorf("provider: gemini backend requires GOOGLE_API_KEY")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q — valid values: nvidia, groq, openrouter, openai, ollama, gemini", c.Backend)
	}
	return nil
}
