package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/sitecheck/internal/ai"
)

// DefaultCandidates is the candidate list used when the mock provider is selected.
var DefaultCandidates = []string{"mock-primary", "mock-secondary"}

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing, keyed by model identifier
	Failures  map[string]error
	Responses map[string]string

	// Call tracking for testing: model identifiers in call order
	Calls []string
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		logger:    logger,
		Failures:  make(map[string]error),
		Responses: make(map[string]string),
	}
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "mock"
}

// Fail makes every call to model return err.
func (p *Provider) Fail(model string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Failures[model] = err
	return p
}

// Respond makes every call to model return text.
func (p *Provider) Respond(model, text string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses[model] = text
	return p
}

// Generate returns a configured failure or response for params.Model,
// falling back to a canned report.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, params.Model)
	failure := p.Failures[params.Model]
	text, hasText := p.Responses[params.Model]
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if !hasText {
		text = cannedReport(params.Model)
	}

	p.logger.Debug("mock generate", "model", params.Model, "image_bytes", len(params.ImageData))

	return &ai.GenerateResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        params.Model,
			InputTokens:  len(params.Prompt) / 4,
			OutputTokens: len(text) / 4,
			Duration:     5 * time.Millisecond,
		},
	}, nil
}

// CallCount returns the number of Generate calls so far
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// CalledModels returns a copy of the models called, in order
func (p *Provider) CalledModels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Calls...)
}

func cannedReport(model string) string {
	return fmt.Sprintf(`## Overview
- People on site: 4
- Safety grade: B
- Issues found: 2

## Findings
✅ **Compliant**
- Hard hats worn by all visible workers

❌ **Violations**
- Scaffolding on the right side is missing a mid-rail

⚠️ **Advisories**
- Material stack near the edge should be secured

❓ **Undeterminable**
- Harness use on the upper platform is not visible

## Recommendations
1. Install the missing mid-rail before work resumes.
2. Relocate loose material at least 2m from the edge.

## Closing
Good PPE discipline overall. Keep it up.

_Generated by %s (mock)._`, model)
}
