package internal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DukeRupert/sitecheck/internal/ai"
	"github.com/DukeRupert/sitecheck/internal/ai/mock"
)

func TestProviderFactory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		cfg      Config
		apiKey   string
		wantName string
		wantErr  error
	}{
		{"gemini with configured key", Config{AIProvider: "gemini", GeminiAPIKey: "cfg-key"}, "", "gemini", nil},
		{"gemini with session key", Config{AIProvider: "gemini"}, "session-key", "gemini", nil},
		{"gemini without key", Config{AIProvider: "gemini"}, "", "", ai.EAIMissingCredential},
		{"anthropic without key", Config{AIProvider: "anthropic"}, "", "", ai.EAIMissingCredential},
		{"anthropic with key", Config{AIProvider: "anthropic", AnthropicAPIKey: "k"}, "", "anthropic", nil},
		{"mock needs no key", Config{AIProvider: "mock"}, "", "mock", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewProviderFactory(&tt.cfg, logger)
			p, err := factory(tt.apiKey)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestProviderFactory_MockIsFreshPerCall(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewProviderFactory(&Config{AIProvider: "mock"}, logger)

	first, err := factory("")
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	if _, err := first.Generate(context.Background(), ai.GenerateParams{Model: "mock-primary", Prompt: "p"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	second, err := factory("")
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	if first == second {
		t.Fatal("factory should build a new mock provider per call")
	}
	if n := second.(*mock.Provider).CallCount(); n != 0 {
		t.Errorf("CallCount() = %d on a new provider, want 0", n)
	}
}

func TestModelCandidates(t *testing.T) {
	got := ModelCandidates(&Config{AIProvider: "gemini"})
	want := []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-flash-latest"}
	if len(got) != len(want) {
		t.Fatalf("ModelCandidates() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ModelCandidates()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	override := ModelCandidates(&Config{AIProvider: "gemini", AIModelCandidates: []string{"x"}})
	if len(override) != 1 || override[0] != "x" {
		t.Errorf("override = %v, want [x]", override)
	}
}
