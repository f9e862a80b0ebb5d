package provider

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "nvidia/valid",
			cfg:  Config{Backend: BackendNvidia, Model: "qwen/qwen2.5-7b-instruct", APIKey: "nvapi-test"},
		},
		{
			name:    "nvidia/missing api key",
			cfg:     Config{Backend: BackendNvidia, Model: "qwen/qwen2.5-7b-instruct"},
			wantErr: "NVIDIA_API_KEY",
		},
		{
			name: "groq/valid",
			cfg:  Config{Backend: BackendGroq, Model: "llama-3.3-70b-versatile", APIKey: "gsk-test"},
		},
		{
			name:    "groq/missing api key",
			cfg:     Config{Backend: BackendGroq, Model: "llama-3.3-70b-versatile"},
			wantErr: "GROQ_API_KEY",
		},
		{
			name: "openrouter/valid",
			cfg:  Config{Backend: BackendOpenRouter, Model: "mistralai/mistral-small-24b-instruct", APIKey: "or-test"},
		},
		{
			name:    "openrouter/missing api key",
			cfg:     Config{Backend: BackendOpenRouter, Model: "mistralai/mistral-small-24b-instruct"},
			wantErr: "OPENROUTER_API_KEY",
		},
		{
			name: "openai/valid",
			cfg:  Config{Backend: BackendOpenAI, Model: "gpt-4o-mini", APIKey: "sk-test"},
		},
		{
			name:    "openai/missing api key",
			cfg:     Config{Backend: BackendOpenAI, Model: "gpt-4o-mini"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "ollama/valid without key",
			cfg:  Config{Backend: BackendOllama, Model: "llama3"},
		},
		{
			name: "gemini/valid",
			cfg:  Config{Backend: BackendGemini, Model: "gemini-1.5-flash", APIKey: "AIza-test"},
		},
		{
			name:    "gemini/missing api key",
			cfg:     Config{Backend: BackendGemini, Model: "gemini-1.5-flash"},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "missing model",
			cfg:     Config{Backend: BackendOllama},
			wantErr: "MODEL_NAME",
		},
		{
			name:    "temperature too high",
			cfg:     Config{Backend: BackendOllama, Model: "llama3", Temperature: 1.5},
			wantErr: "out of range",
		},
		{
			name:    "temperature negative",
			cfg:     Config{Backend: BackendOllama, Model: "llama3", Temperature: -0.1},
			wantErr: "out of range",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "watsonx", Model: "m"},
			wantErr: "unknown backend",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestDefaultModels_CoverAllBackends(t *testing.T) {
	t.Parallel()
	for _, b := range []Backend{BackendNvidia, BackendGroq, BackendOpenRouter, BackendOpenAI, BackendOllama, BackendGemini} {
		if defaultModels[b] == "" {
			t.Errorf("backend %q has no default model", b)
		}
	}
}
