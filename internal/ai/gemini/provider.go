// Package gemini implements ai.Provider against Google's Gemini models
// through their OpenAI-compatible chat completions endpoint.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/DukeRupert/sitecheck/internal/ai"
)

const (
	// APIBaseURL is the OpenAI-compatible Gemini endpoint
	APIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// DefaultCandidates is the ordered model fallback list.
var DefaultCandidates = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-flash-latest",
}

// Config contains configuration for the Gemini provider
type Config struct {
	APIKey         string
	BaseURL        string // Defaults to APIBaseURL
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using go-openai
type Provider struct {
	config Config
	client *openai.Client
	logger *slog.Logger
}

// New creates a new Gemini provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ai.EAIMissingCredential
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	config.ProviderConfig = config.ProviderConfig.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: config.ProviderConfig.RequestTimeout,
	}

	return &Provider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "gemini"
}

// Generate sends the prompt and image to params.Model as a single user message
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	if len(params.ImageData) == 0 {
		return nil, ai.WrapError("generate", ai.EAIInvalidImage)
	}

	startTime := time.Now()

	req := openai.ChatCompletionRequest{
		Model:     params.Model,
		MaxTokens: p.config.ProviderConfig.MaxOutputTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: params.Prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(params.ContentType, params.ImageData),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, ai.WrapError("generate", mapError(err))
	}

	if len(resp.Choices) == 0 {
		return nil, ai.WrapError("generate", ai.EAIEmptyResponse)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, ai.WrapError("generate", ai.EAIContentPolicy)
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, ai.WrapError("generate", ai.EAIEmptyResponse)
	}

	p.logger.Debug("gemini response received",
		"model", params.Model,
		"finish_reason", choice.FinishReason,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
	)

	return &ai.GenerateResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        params.Model,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			Duration:     time.Since(startTime),
		},
	}, nil
}

// dataURL encodes an image as a base64 data URL
func dataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// mapError maps go-openai errors to ai sentinel errors, keeping the
// provider's message in the chain.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.EAITimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ai.EAITimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return mapHTTPStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return mapHTTPStatus(reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	// Network errors
	return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
}

// mapHTTPStatus maps HTTP status codes to ai sentinel errors
func mapHTTPStatus(statusCode int, message string) error {
	var sentinel error
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		sentinel = ai.EAIRateLimit
	case http.StatusNotFound:
		sentinel = ai.EAIModelNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		sentinel = ai.EAITimeout
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(message), "image") {
			sentinel = ai.EAIInvalidImage
		} else {
			return fmt.Errorf("bad request: %s", message)
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		sentinel = ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, message)
	}

	if message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
