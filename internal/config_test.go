package internal

import (
	"testing"
	"time"
)

func TestNewConfig_Defaults(t *testing.T) {
	for _, key := range []string{"AI_PROVIDER", "AI_MODEL_CANDIDATES", "AI_REQUEST_TIMEOUT", "ENV", "SECURE_COOKIES"} {
		t.Setenv(key, "")
	}

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.AIProvider != "gemini" {
		t.Errorf("AIProvider = %q, want %q", cfg.AIProvider, "gemini")
	}
	if cfg.AIRequestTimeout != 60*time.Second {
		t.Errorf("AIRequestTimeout = %v, want 60s", cfg.AIRequestTimeout)
	}
	if cfg.MaxUploadSize != 20*1024*1024 {
		t.Errorf("MaxUploadSize = %d, want 20MB", cfg.MaxUploadSize)
	}
	if len(cfg.AIModelCandidates) != 0 {
		t.Errorf("AIModelCandidates = %v, want empty", cfg.AIModelCandidates)
	}
	if cfg.SecureCookies {
		t.Error("SecureCookies should default to false outside production")
	}
}

func TestNewConfig_ModelCandidates(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("AI_MODEL_CANDIDATES", " model-a, ,model-b,model-c ")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	want := []string{"model-a", "model-b", "model-c"}
	if len(cfg.AIModelCandidates) != len(want) {
		t.Fatalf("AIModelCandidates = %v, want %v", cfg.AIModelCandidates, want)
	}
	for i := range want {
		if cfg.AIModelCandidates[i] != want[i] {
			t.Errorf("AIModelCandidates[%d] = %q, want %q", i, cfg.AIModelCandidates[i], want[i])
		}
	}
}

func TestNewConfig_InvalidProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "openai")

	if _, err := NewConfig(); err == nil {
		t.Fatal("expected error for unknown AI_PROVIDER")
	}
}

func TestConfig_APIKey(t *testing.T) {
	cfg := &Config{AIProvider: "gemini", GeminiAPIKey: "g-key", AnthropicAPIKey: "a-key"}
	if got := cfg.APIKey(); got != "g-key" {
		t.Errorf("APIKey() = %q, want g-key", got)
	}

	cfg.AIProvider = "anthropic"
	if got := cfg.APIKey(); got != "a-key" {
		t.Errorf("APIKey() = %q, want a-key", got)
	}

	cfg.AIProvider = "mock"
	if cfg.RequiresAPIKey() {
		t.Error("mock provider should not require an API key")
	}
}

func TestNewConfig_RejectsNonPositiveDurations(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"AI_REQUEST_TIMEOUT", "0s"},
		{"SESSION_TTL", "-1m"},
		{"SESSION_SWEEP_INTERVAL", "0s"},
		{"SESSION_SWEEP_INTERVAL", "-5m"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("AI_PROVIDER", "mock")
			t.Setenv(tt.key, tt.value)

			if _, err := NewConfig(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
