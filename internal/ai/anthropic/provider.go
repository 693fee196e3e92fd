package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/sitecheck/internal/ai"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// MaxImageSize is the maximum image size in bytes accepted by the API
	MaxImageSize = 5 * 1024 * 1024
)

// DefaultCandidates is the ordered model fallback list.
var DefaultCandidates = []string{
	"claude-sonnet-4-5",
	"claude-3-5-haiku-latest",
}

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	BaseURL        string // Defaults to APIBaseURL
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using Anthropic's Messages API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ai.EAIMissingCredential
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "anthropic"
}

// Generate sends the image and prompt to params.Model. A single request is
// made; fallback across models is the invoker's job.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	startTime := time.Now()

	// Validate input
	if err := validateImageParams(params); err != nil {
		return nil, ai.WrapError("generate", err)
	}

	// Build the request
	req, err := p.buildRequest(ctx, params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeRequest(req)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	return &ai.GenerateResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        params.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Duration:     time.Since(startTime),
		},
	}, nil
}

// validateImageParams validates the image parameters
func validateImageParams(params ai.GenerateParams) error {
	if len(params.ImageData) == 0 {
		return ai.EAIInvalidImage
	}
	if len(params.ImageData) > MaxImageSize {
		return fmt.Errorf("%w: image size %d exceeds maximum %d", ai.EAIInvalidImage, len(params.ImageData), MaxImageSize)
	}
	switch params.ContentType {
	case "image/jpeg", "image/png":
		return nil
	case "":
		return fmt.Errorf("%w: content type is required", ai.EAIInvalidImage)
	default:
		return fmt.Errorf("%w: unsupported content type %s", ai.EAIInvalidImage, params.ContentType)
	}
}

// buildRequest builds the HTTP request for one model call
func (p *Provider) buildRequest(ctx context.Context, params ai.GenerateParams) (*http.Request, error) {
	reqBody := apiRequest{
		Model:     params.Model,
		MaxTokens: p.config.ProviderConfig.MaxOutputTokens,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContent{
					{
						Type: "image",
						Source: &apiImageSource{
							Type:      "base64",
							MediaType: params.ContentType,
							Data:      base64.StdEncoding.EncodeToString(params.ImageData),
						},
					},
					{
						Type: "text",
						Text: params.Prompt,
					},
				},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	return req, nil
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: %v", ai.EAITimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.logger.Debug("anthropic error response", "status", resp.StatusCode, "body", string(bodyBytes))
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to ai sentinel errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)
	msg := errResp.Error.Message

	wrap := func(sentinel error) error {
		if msg == "" {
			return sentinel
		}
		return fmt.Errorf("%w: %s", sentinel, msg)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return wrap(ai.EAIUnauthorized)
	case http.StatusTooManyRequests:
		return wrap(ai.EAIRateLimit)
	case http.StatusNotFound:
		return wrap(ai.EAIModelNotFound)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return wrap(ai.EAITimeout)
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(msg), "image") {
			return wrap(ai.EAIInvalidImage)
		}
		return fmt.Errorf("bad request: %s", msg)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusInternalServerError, 529:
		return wrap(ai.EAIUnavailable)
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, msg)
	}
}

// responseText concatenates the text blocks of a response
func responseText(resp *apiResponse) (string, error) {
	if resp.StopReason == "refusal" {
		return "", ai.EAIContentPolicy
	}

	var b strings.Builder
	for _, content := range resp.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ai.EAIEmptyResponse
	}
	return text, nil
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []apiContentOutput `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
