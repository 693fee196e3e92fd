package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/DukeRupert/sitecheck/internal/domain"
)

// Title is the first line of every exported report.
const Title = "SiteCheck Inspection Report"

// separator matches the width of the plain-text export.
var separator = strings.Repeat("=", 60)

// RenderedView is everything needed to show or download one report.
type RenderedView struct {
	Report       domain.InspectionReport
	Text         string        // Plain-text export
	Filename     string        // inspection-report_YYYYMMDD_HHMMSS.txt
	ResultHTML   template.HTML // Model output rendered from Markdown
	ThumbnailURI template.URL  // data: URI for history listings; empty without a thumbnail
}

// Presenter renders inspection reports.
type Presenter struct {
	markdown goldmark.Markdown
	pdf      *PDFGenerator
}

// NewPresenter creates a presenter. Raw HTML in model output is never
// passed through.
func NewPresenter() *Presenter {
	return &Presenter{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		pdf: NewPDFGenerator(),
	}
}

// Present renders report. It never mutates report.
func (p *Presenter) Present(report domain.InspectionReport) *RenderedView {
	return &RenderedView{
		Report:       report,
		Text:         Text(report),
		Filename:     Filename(report.Timestamp, "txt"),
		ResultHTML:   p.RenderMarkdown(report.ResultText),
		ThumbnailURI: dataURI("image/jpeg", report.Thumbnail),
	}
}

// PresentAll renders reports in the given order.
func (p *Presenter) PresentAll(reports []domain.InspectionReport) []*RenderedView {
	views := make([]*RenderedView, len(reports))
	for i, r := range reports {
		views[i] = p.Present(r)
	}
	return views
}

// RenderMarkdown converts model output to HTML. If conversion fails the
// text is shown escaped inside a <pre> block.
func (p *Presenter) RenderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>")
	}
	return template.HTML(buf.String())
}

// Text returns the plain-text export of report.
func Text(report domain.InspectionReport) string {
	var b strings.Builder

	b.WriteString(Title + "\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Inspection time: %s\n", FormatTimestamp(report.Timestamp))
	fmt.Fprintf(&b, "Project: %s\n", report.ProjectOrDefault())
	fmt.Fprintf(&b, "Inspector: %s\n", report.InspectorOrDefault())
	fmt.Fprintf(&b, "Location: %s\n", report.LocationOrDefault())
	fmt.Fprintf(&b, "Mode: %s\n", report.Mode.Label())
	fmt.Fprintf(&b, "Model used: %s\n", report.ModelUsed)
	b.WriteString(separator + "\n")
	b.WriteString(report.ResultText)
	if !strings.HasSuffix(report.ResultText, "\n") {
		b.WriteString("\n")
	}

	return b.String()
}

func dataURI(contentType string, data []byte) template.URL {
	if len(data) == 0 {
		return ""
	}
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}
