// Package domain contains core business types and interfaces.
//
// This file defines the Image type used for uploaded site photos.
package domain

import (
	"strings"
)

// SupportedImageTypes maps MIME types to their human-readable names.
// Only JPEG and PNG uploads are accepted.
var SupportedImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
}

const (
	// MaxImageSize is the default maximum upload size (20MB).
	MaxImageSize = 20 * 1024 * 1024

	// MaxImageDimension is the default longest edge sent to the model.
	MaxImageDimension = 2048

	// MaxImagePixels bounds width x height of an upload before it is decoded.
	MaxImagePixels = 50_000_000

	// ThumbnailMaxWidth is the maximum width for history thumbnails.
	ThumbnailMaxWidth = 320

	// ThumbnailMaxHeight is the maximum height for history thumbnails.
	ThumbnailMaxHeight = 240

	// ThumbnailJPEGQuality is the JPEG quality used for thumbnails.
	ThumbnailJPEGQuality = 80
)

// Image is an in-memory photo with its declared MIME type.
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
	Width       int // Set after decoding; zero if unknown
	Height      int // Set after decoding; zero if unknown
}

// Size returns the size of the image data in bytes.
func (i Image) Size() int64 {
	return int64(len(i.Data))
}

// IsValidImageContentType reports whether the MIME type is an accepted upload type.
func IsValidImageContentType(contentType string) bool {
	baseType := strings.Split(contentType, ";")[0]
	baseType = strings.TrimSpace(strings.ToLower(baseType))
	if baseType == "image/jpg" {
		baseType = "image/jpeg"
	}
	_, ok := SupportedImageTypes[baseType]
	return ok
}

// ValidateImageSize returns ETOOLARGE if size exceeds limit.
func ValidateImageSize(size, limit int64) error {
	if size > limit {
		return TooLarge("image.validate", limit)
	}
	return nil
}
