// Package service contains the business logic layer.
//
// This file implements the inspection service, which runs one photo
// through prompt building, model fallback and report creation.
package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/sitecheck/internal/ai"
	"github.com/DukeRupert/sitecheck/internal/domain"
	"github.com/DukeRupert/sitecheck/internal/metrics"
	"github.com/DukeRupert/sitecheck/internal/prompt"
)

// =============================================================================
// Interface Definition
// =============================================================================

// InspectionService defines the interface for inspection operations.
type InspectionService interface {
	// Inspect validates req, sends it to the candidate models and, on
	// success, appends the resulting report to log and returns it.
	// Returns domain.EINVALID or *domain.ValidationError for bad input.
	// Returns domain.ETOOLARGE if the photo exceeds the upload limit.
	// Returns domain.ECONFIG if no API key is available.
	// Returns domain.EUNAVAILABLE if every candidate model failed; the
	// wrapped error is *ai.AllModelsFailedError.
	// On any error log is left unchanged.
	Inspect(ctx context.Context, log ReportLog, req domain.InspectionRequest, apiKey string) (*domain.InspectionReport, error)
}

// ReportLog receives reports from successful inspections.
type ReportLog interface {
	Append(report domain.InspectionReport)
}

// ProviderFactory builds a provider for a given API key. It returns
// ai.EAIMissingCredential when a key is required but empty.
type ProviderFactory func(apiKey string) (ai.Provider, error)

// InspectionConfig holds the limits applied to each inspection.
type InspectionConfig struct {
	Candidates        []string // Ordered model identifiers
	MaxUploadSize     int64
	MaxImageDimension int
}

// =============================================================================
// Implementation
// =============================================================================

// inspectionService implements the InspectionService interface.
type inspectionService struct {
	config    InspectionConfig
	providers ProviderFactory
	images    ImageProcessor
	logger    *slog.Logger
	now       func() time.Time
}

// NewInspectionService creates a new InspectionService.
func NewInspectionService(
	config InspectionConfig,
	providers ProviderFactory,
	images ImageProcessor,
	logger *slog.Logger,
) InspectionService {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = domain.MaxImageSize
	}
	if config.MaxImageDimension <= 0 {
		config.MaxImageDimension = domain.MaxImageDimension
	}
	config.Candidates = append([]string(nil), config.Candidates...)

	return &inspectionService{
		config:    config,
		providers: providers,
		images:    images,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *inspectionService) Inspect(ctx context.Context, log ReportLog, req domain.InspectionRequest, apiKey string) (*domain.InspectionReport, error) {
	const op = "inspection.inspect"

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateImageSize(req.Image.Size(), s.config.MaxUploadSize); err != nil {
		return nil, err
	}

	logger := s.logger.With("mode", req.Mode.String())

	// The credential must be present before any model call.
	provider, err := s.providers(strings.TrimSpace(apiKey))
	if err != nil {
		if errors.Is(err, ai.EAIMissingCredential) {
			return nil, domain.MissingCredential(err, op)
		}
		return nil, domain.Internal(err, op, "failed to create AI provider")
	}

	normalized, err := s.images.Normalize(bytes.NewReader(req.Image.Data), s.config.MaxImageDimension)
	if err != nil {
		return nil, err
	}
	normalized.Filename = req.Image.Filename

	instructions := prompt.Build(req.Mode)
	if instructions == "" {
		return nil, domain.Invalid(op, "Unknown inspection mode")
	}

	invoker, err := ai.NewInvoker(provider, s.config.Candidates, logger)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create model invoker")
	}

	logger.Info("inspection started",
		"provider", provider.Name(),
		"candidates", len(s.config.Candidates),
		"image_bytes", len(normalized.Data),
		"image_type", normalized.ContentType,
	)

	result, err := invoker.Invoke(ctx, instructions, ai.Image{
		Data:        normalized.Data,
		ContentType: normalized.ContentType,
	})
	if err != nil {
		metrics.InspectionFailed(req.Mode.String())
		logger.Error("inspection failed", "error", err)
		return nil, domain.Unavailable(err, op, "Inspection failed")
	}

	thumbnail, err := s.images.GenerateThumbnail(bytes.NewReader(normalized.Data), domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
	if err != nil {
		// History falls back to the full image
		logger.Warn("thumbnail generation failed", "error", err)
	}

	report := domain.InspectionReport{
		ID:          uuid.New(),
		Timestamp:   s.now(),
		Mode:        req.Mode,
		Project:     strings.TrimSpace(req.ProjectName),
		Inspector:   strings.TrimSpace(req.InspectorName),
		Location:    strings.TrimSpace(req.Location),
		ResultText:  result.Text,
		SourceImage: *normalized,
		Thumbnail:   thumbnail,
		ModelUsed:   result.ModelUsed,
	}

	log.Append(report)
	metrics.InspectionCompleted(req.Mode.String())

	logger.Info("inspection completed",
		"report_id", report.ID,
		"model", result.ModelUsed,
		"attempts", result.Attempts,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
	)

	return &report, nil
}
