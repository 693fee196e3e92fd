package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"

	"github.com/DukeRupert/sitecheck/internal/domain"
)

// =============================================================================
// PDF Generator
// =============================================================================

// PDFGenerator generates PDF documents from inspection reports.
type PDFGenerator struct {
	// Page dimensions (A4 in mm)
	pageWidth  float64
	pageHeight float64
	margin     float64

	// Content area
	contentWidth float64
}

// NewPDFGenerator creates a new PDF generator with default settings.
func NewPDFGenerator() *PDFGenerator {
	margin := 15.0
	pageWidth := 210.0 // A4 width in mm
	return &PDFGenerator{
		pageWidth:    pageWidth,
		pageHeight:   297.0, // A4 height in mm
		margin:       margin,
		contentWidth: pageWidth - (2 * margin),
	}
}

// WritePDF renders report as a PDF document to w.
func (p *Presenter) WritePDF(w io.Writer, report domain.InspectionReport) (int64, error) {
	return p.pdf.Generate(report, w)
}

// Generate creates a PDF report and writes it to the provided writer.
func (g *PDFGenerator) Generate(report domain.InspectionReport, w io.Writer) (int64, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(pdfSafe(s)) }

	// Set document metadata; dates come from the report so output is stable
	pdf.SetTitle(text(Title+" - "+report.Mode.Label()), false)
	if report.Inspector != "" {
		pdf.SetAuthor(text(report.Inspector), false)
	}
	pdf.SetCreator("SiteCheck", false)
	pdf.SetCreationDate(report.Timestamp)
	pdf.SetModificationDate(report.Timestamp)
	pdf.SetCatalogSort(true)

	// Enable automatic page breaks with footer space
	pdf.SetAutoPageBreak(true, 20)

	pdf.SetFooterFunc(func() {
		g.addFooter(pdf, report)
	})

	pdf.AddPage()
	g.addHeader(pdf, text, report)
	g.addMetadata(pdf, text, report)
	g.addPhoto(pdf, report)
	g.addResult(pdf, text, report.ResultText)

	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("pdf generation error: %w", err)
	}

	// Write to buffer to count bytes
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// =============================================================================
// Sections
// =============================================================================

func (g *PDFGenerator) addHeader(pdf *fpdf.Fpdf, text func(string) string, report domain.InspectionReport) {
	// Navy header bar
	r, gr, b := HexToRGB(BrandColors.Navy)
	pdf.SetFillColor(r, gr, b)
	pdf.Rect(0, 0, g.pageWidth, 40, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetXY(g.margin, 12)
	pdf.Cell(0, 10, text(Title))

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetXY(g.margin, 24)
	pdf.Cell(0, 8, text(report.Mode.Label()))

	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
	pdf.SetXY(g.margin, 50)
}

func (g *PDFGenerator) addMetadata(pdf *fpdf.Fpdf, text func(string) string, report domain.InspectionReport) {
	rows := [][2]string{
		{"Inspection time", FormatTimestamp(report.Timestamp)},
		{"Project", report.ProjectOrDefault()},
		{"Inspector", report.InspectorOrDefault()},
		{"Location", report.LocationOrDefault()},
		{"Model used", report.ModelUsed},
	}
	for _, row := range rows {
		g.addLabelValue(pdf, text(row[0]), text(row[1]))
	}
	pdf.Ln(4)
}

func (g *PDFGenerator) addPhoto(pdf *fpdf.Fpdf, report domain.InspectionReport) {
	if len(report.Thumbnail) == 0 {
		return
	}

	opts := fpdf.ImageOptions{ImageType: "JPG", ReadDpi: false}
	info := pdf.RegisterImageOptionsReader("photo", opts, bytes.NewReader(report.Thumbnail))
	if pdf.Error() != nil || info == nil {
		// A broken thumbnail should not prevent the export
		pdf.ClearError()
		return
	}

	width := 90.0
	height := width * info.Height() / info.Width()
	pdf.ImageOptions("photo", g.margin, pdf.GetY(), width, height, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + height + 6)
}

func (g *PDFGenerator) addResult(pdf *fpdf.Fpdf, text func(string) string, result string) {
	g.addSectionHeader(pdf, "AI Inspection Report")

	for _, line := range strings.Split(result, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			pdf.Ln(3)
		case strings.HasPrefix(trimmed, "### "):
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(g.contentWidth, 6, text(stripInline(trimmed[4:])), "", "L", false)
		case strings.HasPrefix(trimmed, "## "), strings.HasPrefix(trimmed, "# "):
			r, gr, b := HexToRGB(BrandColors.Navy)
			pdf.SetTextColor(r, gr, b)
			pdf.SetFont("Helvetica", "B", 13)
			pdf.Ln(2)
			pdf.MultiCell(g.contentWidth, 7, text(stripInline(strings.TrimLeft(trimmed, "# "))), "", "L", false)
			r, gr, b = HexToRGB(BrandColors.TextDark)
			pdf.SetTextColor(r, gr, b)
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetX(g.margin + 4)
			pdf.MultiCell(g.contentWidth-4, 5, text("• "+stripInline(trimmed[2:])), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(g.contentWidth, 5, text(stripInline(trimmed)), "", "L", false)
		}
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

func (g *PDFGenerator) addSectionHeader(pdf *fpdf.Fpdf, title string) {
	// Draw navy underline
	r, gr, b := HexToRGB(BrandColors.Navy)
	pdf.SetDrawColor(r, gr, b)
	pdf.SetLineWidth(0.5)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(r, gr, b)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.Line(g.margin, pdf.GetY(), g.pageWidth-g.margin, pdf.GetY())
	pdf.Ln(6)

	// Reset text color
	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
}

func (g *PDFGenerator) addLabelValue(pdf *fpdf.Fpdf, label, value string) {
	if value == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(40, 6, label+":")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(g.contentWidth-40, 6, value, "", "L", false)
}

func (g *PDFGenerator) addFooter(pdf *fpdf.Fpdf, report domain.InspectionReport) {
	pdf.SetY(-15)

	r, gr, b := HexToRGB(BrandColors.Border)
	pdf.SetDrawColor(r, gr, b)
	pdf.Line(g.margin, pdf.GetY()-3, g.pageWidth-g.margin, pdf.GetY()-3)

	r, gr, b = HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 8)

	// Left: report timestamp
	pdf.Cell(0, 10, "Generated: "+FormatTimestamp(report.Timestamp))

	// Right: page number
	pdf.SetX(-g.margin - 30)
	pdf.CellFormat(30, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
}

// =============================================================================
// Text Helpers
// =============================================================================

// markerReplacer maps the finding markers used in prompts to text that the
// PDF core fonts can render.
var markerReplacer = strings.NewReplacer(
	"✅", "[OK]",
	"❌", "[X]",
	"⚠️", "[!]",
	"⚠", "[!]",
	"🔍", "[?]",
	"❓", "[?]",
	"📍", "",
	"📈", "",
	"👷", "",
)

// pdfSafe replaces markers and drops characters outside Latin-1 except a
// few typographic symbols the cp1252 translator understands.
func pdfSafe(s string) string {
	s = markerReplacer.Replace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x100:
			return r
		case strings.ContainsRune("•–—‘’“”…€", r):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
}

// stripInline removes Markdown emphasis markers.
func stripInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	return strings.TrimSpace(s)
}
