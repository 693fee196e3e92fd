// Package service contains business logic for the SiteCheck application.
//
// This file implements image normalisation and thumbnail generation for
// uploaded site photos.
package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"

	"github.com/DukeRupert/sitecheck/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ImageProcessor prepares uploaded photos for the model and for history views.
type ImageProcessor interface {
	// Normalize decodes the photo, applies EXIF orientation, downscales it so
	// the longest edge is at most maxDimension and re-encodes it. PNG is
	// preferred; JPEG is used when the PNG would exceed maxEncodedSize.
	// Returns domain.EINVALID if the data is not a decodable JPEG or PNG or
	// declares more than domain.MaxImagePixels pixels.
	Normalize(data io.Reader, maxDimension int) (*domain.Image, error)

	// GenerateThumbnail creates a JPEG thumbnail that fits within
	// maxWidth x maxHeight while preserving aspect ratio.
	GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, error)
}

// =============================================================================
// Implementation
// =============================================================================

// maxEncodedSize bounds the normalised image size before falling back to JPEG.
const maxEncodedSize = 4 * 1024 * 1024

// normalizedJPEGQuality is used when the PNG encoding is too large.
const normalizedJPEGQuality = 90

// imagingProcessor implements ImageProcessor using the imaging library.
type imagingProcessor struct{}

// NewImagingProcessor creates a new image processor using the imaging library.
func NewImagingProcessor() ImageProcessor {
	return &imagingProcessor{}
}

func (p *imagingProcessor) Normalize(data io.Reader, maxDimension int) (*domain.Image, error) {
	const op = "image.normalize"

	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read image")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Photo could not be read as a JPEG or PNG image")
	}
	if int64(cfg.Width)*int64(cfg.Height) > domain.MaxImagePixels {
		return nil, domain.Errorf(domain.EINVALID, op,
			"Photo is %dx%d pixels; the limit is %d megapixels", cfg.Width, cfg.Height, domain.MaxImagePixels/1_000_000)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Photo could not be read as a JPEG or PNG image")
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, domain.Internal(err, op, "failed to encode image")
	}
	contentType := "image/png"

	if buf.Len() > maxEncodedSize {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(normalizedJPEGQuality)); err != nil {
			return nil, domain.Internal(err, op, "failed to encode image")
		}
		contentType = "image/jpeg"
	}

	b := img.Bounds()
	return &domain.Image{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

func (p *imagingProcessor) GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumbnail := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(domain.ThumbnailJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}
