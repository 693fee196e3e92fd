package internal

import (
	"log/slog"

	"github.com/DukeRupert/sitecheck/internal/ai"
	"github.com/DukeRupert/sitecheck/internal/ai/anthropic"
	"github.com/DukeRupert/sitecheck/internal/ai/gemini"
	"github.com/DukeRupert/sitecheck/internal/ai/mock"
	"github.com/DukeRupert/sitecheck/internal/service"
)

// NewProviderFactory returns a factory that builds the configured AI
// provider for a given API key. An empty key falls back to the configured one.
func NewProviderFactory(cfg *Config, logger *slog.Logger) service.ProviderFactory {
	providerConfig := ai.ProviderConfig{
		RequestTimeout:  cfg.AIRequestTimeout,
		MaxOutputTokens: cfg.AIMaxOutputTokens,
	}

	return func(apiKey string) (ai.Provider, error) {
		if apiKey == "" {
			apiKey = cfg.APIKey()
		}

		switch cfg.AIProvider {
		case "gemini":
			return gemini.New(gemini.Config{
				APIKey:         apiKey,
				BaseURL:        cfg.GeminiBaseURL,
				ProviderConfig: providerConfig,
			}, logger)
		case "anthropic":
			return anthropic.New(anthropic.Config{
				APIKey:         apiKey,
				BaseURL:        cfg.AnthropicBaseURL,
				ProviderConfig: providerConfig,
			}, logger)
		default:
			return mock.New(logger), nil
		}
	}
}

// ModelCandidates returns the configured candidate list, or the selected
// provider's defaults when none is configured.
func ModelCandidates(cfg *Config) []string {
	if len(cfg.AIModelCandidates) > 0 {
		return append([]string(nil), cfg.AIModelCandidates...)
	}

	switch cfg.AIProvider {
	case "gemini":
		return append([]string(nil), gemini.DefaultCandidates...)
	case "anthropic":
		return append([]string(nil), anthropic.DefaultCandidates...)
	default:
		return append([]string(nil), mock.DefaultCandidates...)
	}
}
