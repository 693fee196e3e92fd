// Package report renders inspection reports for display and download.
//
// Presenter turns a stored domain.InspectionReport into the plain-text
// export, the HTML shown in the browser and a PDF document. Rendering is
// deterministic: presenting the same report twice yields identical output.
package report

import (
	"strings"
	"time"
)

// =============================================================================
// Brand Colors
// =============================================================================

// BrandColors defines the color palette for PDF reports.
var BrandColors = struct {
	Navy       string // Header bar and section titles
	Accent     string // Highlights
	TextDark   string // Primary text
	TextMuted  string // Secondary text
	Border     string // Borders and dividers
	Background string // Light background
}{
	Navy:       "#1E3C72",
	Accent:     "#FF6B35",
	TextDark:   "#1F2937",
	TextMuted:  "#6B7280",
	Border:     "#E5E7EB",
	Background: "#F9FAFB",
}

// =============================================================================
// Color Conversion Helpers
// =============================================================================

// HexToRGB converts a hex color string to RGB values.
// Input format: "#RRGGBB" or "RRGGBB"
func HexToRGB(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}

	r = hexToDec(hex[0:2])
	g = hexToDec(hex[2:4])
	b = hexToDec(hex[4:6])
	return
}

// hexToDec converts a 2-character hex string to decimal.
func hexToDec(hex string) int {
	val := 0
	for _, c := range hex {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}

// =============================================================================
// Formatting Helpers
// =============================================================================

const (
	// TimestampLayout is used for timestamps inside reports.
	TimestampLayout = "2006-01-02 15:04:05"

	// filenameLayout is used for timestamps in download filenames.
	filenameLayout = "20060102_150405"
)

// FormatTimestamp formats a report timestamp for display.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Filename returns the download filename for a report with the given
// extension (without the dot).
func Filename(t time.Time, ext string) string {
	return "inspection-report_" + t.Format(filenameLayout) + "." + ext
}
