package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/sitecheck/internal/metrics"
)

// Invocation is the outcome of a successful Invoke.
type Invocation struct {
	Text      string    // Output of the first successful candidate
	ModelUsed string    // Candidate that produced Text
	Attempts  int       // Number of candidates called, including the winner
	Usage     UsageInfo // Usage reported by the winning call
}

// Image is the photo payload handed to each candidate.
type Image struct {
	Data        []byte
	ContentType string
}

// Invoker tries an ordered list of candidate models until one succeeds.
// There is no delay between candidates and no candidate is tried twice.
type Invoker struct {
	provider   Provider
	candidates []string
	logger     *slog.Logger
}

// NewInvoker creates an invoker over a fixed candidate list.
// The list is copied; later changes by the caller have no effect.
func NewInvoker(provider Provider, candidates []string, logger *slog.Logger) (*Invoker, error) {
	if provider == nil {
		return nil, errors.New("ai: provider is required")
	}
	if len(candidates) == 0 {
		return nil, errors.New("ai: at least one candidate model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Invoker{
		provider:   provider,
		candidates: append([]string(nil), candidates...),
		logger:     logger,
	}, nil
}

// Candidates returns a copy of the candidate list in try order.
func (inv *Invoker) Candidates() []string {
	return append([]string(nil), inv.candidates...)
}

// Invoke calls each candidate in order and returns the first success.
// When every candidate fails it returns *AllModelsFailedError carrying the
// last failure. If ctx is done before a candidate is called, ctx.Err() is
// returned instead.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, image Image) (*Invocation, error) {
	var (
		tried []string
		last  *CandidateError
	)

	for _, model := range inv.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tried = append(tried, model)
		start := time.Now()

		result, err := inv.provider.Generate(ctx, GenerateParams{
			Model:       model,
			Prompt:      prompt,
			ImageData:   image.Data,
			ContentType: image.ContentType,
		})
		duration := time.Since(start)

		if err == nil && (result == nil || result.Text == "") {
			err = EAIEmptyResponse
		}

		if err != nil {
			metrics.ModelAttempt(model, ErrorKind(err), duration)
			last = &CandidateError{Model: model, Err: err}
			inv.logger.Warn("candidate model failed",
				"provider", inv.provider.Name(),
				"model", model,
				"attempt", len(tried),
				"duration", duration,
				"error", err,
			)
			continue
		}

		metrics.ModelAttempt(model, "ok", duration)
		metrics.TokensUsed(result.Usage.InputTokens, result.Usage.OutputTokens)
		inv.logger.Info("candidate model succeeded",
			"provider", inv.provider.Name(),
			"model", model,
			"attempt", len(tried),
			"duration", duration,
		)

		usage := result.Usage
		if usage.Model == "" {
			usage.Model = model
		}
		if usage.Duration == 0 {
			usage.Duration = duration
		}

		return &Invocation{
			Text:      result.Text,
			ModelUsed: model,
			Attempts:  len(tried),
			Usage:     usage,
		}, nil
	}

	return nil, &AllModelsFailedError{Tried: tried, Last: last}
}
