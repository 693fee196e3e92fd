// Package ai defines the model transport interface and the candidate
// fallback invoker used to turn a prompt and a site photo into report text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider sends a single prompt and image to one named model.
type Provider interface {
	// Generate performs one synchronous call to params.Model.
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)

	// Name identifies the provider in logs and metrics (e.g. "gemini").
	Name() string
}

// GenerateParams contains parameters for a single model call
type GenerateParams struct {
	Model       string // Candidate model identifier
	Prompt      string // Full instruction text
	ImageData   []byte // Raw image bytes
	ContentType string // MIME type (e.g., "image/png")
}

// GenerateResult is the opaque text returned by a model
type GenerateResult struct {
	Text  string    // Model output, not parsed
	Usage UsageInfo // Token usage for monitoring
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	RequestTimeout  time.Duration // Timeout for individual requests
	MaxOutputTokens int           // Upper bound on generated tokens
}

// WithDefaults fills zero values with provider defaults.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = 4096
	}
	return c
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAIContentPolicy indicates the image violates content policy
	EAIContentPolicy = errors.New("image violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIMissingCredential indicates no API key was configured or entered
	EAIMissingCredential = errors.New("ai provider API key is not set")

	// EAIEmptyResponse indicates the model returned no text
	EAIEmptyResponse = errors.New("ai provider returned an empty response")

	// EAIModelNotFound indicates the model identifier is unknown to the provider
	EAIModelNotFound = errors.New("ai model not found")
)

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// CandidateError records the failure of one candidate model.
type CandidateError struct {
	Model string
	Err   error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// AllModelsFailedError is returned when every candidate failed.
// Last holds the failure of the final candidate tried.
type AllModelsFailedError struct {
	Tried []string
	Last  *CandidateError
}

func (e *AllModelsFailedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all models failed (tried %s)", strings.Join(e.Tried, ", "))
	}
	return fmt.Sprintf("all models failed (tried %s): %v", strings.Join(e.Tried, ", "), e.Last)
}

func (e *AllModelsFailedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, EAIRateLimit):
		return "rate_limited"
	case errors.Is(err, EAIUnauthorized), errors.Is(err, EAIMissingCredential):
		return "unauthorized"
	case errors.Is(err, EAITimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, EAIInvalidImage):
		return "invalid_image"
	case errors.Is(err, EAIContentPolicy):
		return "content_policy"
	case errors.Is(err, EAIModelNotFound):
		return "model_not_found"
	case errors.Is(err, EAIEmptyResponse):
		return "empty_response"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
