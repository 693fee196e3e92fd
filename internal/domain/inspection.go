// Package domain contains core business types and interfaces.
//
// This file defines the inspection request and report types that flow
// through a single photo inspection.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Inspection Mode
// =============================================================================

// InspectionMode selects which prompt template an inspection uses.
type InspectionMode string

const (
	// InspectionModeSafety checks PPE, fall protection, signage and site hazards.
	InspectionModeSafety InspectionMode = "safety"

	// InspectionModeQuality checks workmanship: concrete, rebar, waterproofing.
	InspectionModeQuality InspectionMode = "quality"

	// InspectionModeProgress records construction stage and schedule risk.
	InspectionModeProgress InspectionMode = "progress"
)

// InspectionModes lists every mode in display order.
var InspectionModes = []InspectionMode{
	InspectionModeSafety,
	InspectionModeQuality,
	InspectionModeProgress,
}

// String returns the string representation of the mode.
func (m InspectionMode) String() string {
	return string(m)
}

// IsValid returns true if the mode is a recognized value.
func (m InspectionMode) IsValid() bool {
	switch m {
	case InspectionModeSafety, InspectionModeQuality, InspectionModeProgress:
		return true
	}
	return false
}

// Label returns the display name of the mode.
func (m InspectionMode) Label() string {
	switch m {
	case InspectionModeSafety:
		return "Safety Inspection"
	case InspectionModeQuality:
		return "Quality Inspection"
	case InspectionModeProgress:
		return "Progress Record"
	default:
		return string(m)
	}
}

// ParseInspectionMode parses a form value into a mode.
func ParseInspectionMode(s string) (InspectionMode, error) {
	m := InspectionMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", Invalid("inspection.parse_mode", "Inspection mode must be one of safety, quality or progress")
	}
	return m, nil
}

// =============================================================================
// Inspection Request
// =============================================================================

// InspectionRequest is one user submission: a photo, a mode and optional
// free-text metadata. It is discarded once a report has been produced.
type InspectionRequest struct {
	Mode          InspectionMode
	Image         Image
	ProjectName   string // Optional
	InspectorName string // Optional
	Location      string // Optional
}

// Validate checks the request and returns a ValidationError listing every
// offending field.
func (r InspectionRequest) Validate() error {
	const op = "inspection.validate"

	var ve *ValidationError
	add := func(field, message string) {
		if ve == nil {
			ve = NewValidationError(op, field, message)
			return
		}
		ve.Fields[field] = message
	}

	if !r.Mode.IsValid() {
		add("mode", "Select an inspection mode")
	}
	if len(r.Image.Data) == 0 {
		add("photo", "A site photo is required")
	} else if !IsValidImageContentType(r.Image.ContentType) {
		add("photo", "Photo must be a JPEG or PNG image")
	}
	if len(r.ProjectName) > MaxMetadataLength {
		add("project_name", "Project name is too long")
	}
	if len(r.InspectorName) > MaxMetadataLength {
		add("inspector_name", "Inspector name is too long")
	}
	if len(r.Location) > MaxMetadataLength {
		add("location", "Location is too long")
	}

	if ve != nil {
		return ve
	}
	return nil
}

// MaxMetadataLength bounds the optional free-text fields.
const MaxMetadataLength = 200

// =============================================================================
// Inspection Report
// =============================================================================

// NotProvided is shown in place of empty optional metadata.
const NotProvided = "Not provided"

// InspectionReport is the session record of one successful inspection.
// Reports are never modified after creation.
type InspectionReport struct {
	ID          uuid.UUID
	Timestamp   time.Time
	Mode        InspectionMode
	Project     string
	Inspector   string
	Location    string
	ResultText  string // Opaque text returned by the model
	SourceImage Image  // Normalised image that was sent to the model
	Thumbnail   []byte // JPEG thumbnail for history listings
	ModelUsed   string // Candidate model that produced ResultText
}

// ProjectOrDefault returns the project name or NotProvided.
func (r *InspectionReport) ProjectOrDefault() string {
	return orDefault(r.Project)
}

// InspectorOrDefault returns the inspector name or NotProvided.
func (r *InspectionReport) InspectorOrDefault() string {
	return orDefault(r.Inspector)
}

// LocationOrDefault returns the location or NotProvided.
func (r *InspectionReport) LocationOrDefault() string {
	return orDefault(r.Location)
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotProvided
	}
	return s
}
