// Package handler contains HTTP handlers for the SiteCheck application.
//
// This file implements the inspection flow: the upload form, submission,
// per-session API key entry, report history and report downloads.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/DukeRupert/sitecheck/internal/csrf"
	"github.com/DukeRupert/sitecheck/internal/domain"
	"github.com/DukeRupert/sitecheck/internal/metrics"
	"github.com/DukeRupert/sitecheck/internal/middleware"
	"github.com/DukeRupert/sitecheck/internal/report"
	"github.com/DukeRupert/sitecheck/internal/service"
	"github.com/DukeRupert/sitecheck/internal/session"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to a temporary file.
const multipartMemory = 8 << 20

// formOverhead allows for the non-photo fields of the upload form.
const formOverhead = 1 << 20

// =============================================================================
// Template Data Types
// =============================================================================

// TemplateRenderer is the interface for rendering HTML templates.
// This interface allows for mocking in tests.
type TemplateRenderer interface {
	RenderHTTP(w http.ResponseWriter, name string, data interface{})
	RenderHTTPStatus(w http.ResponseWriter, status int, name string, data interface{})
}

// Flash is a one-shot message shown above the page content.
type Flash struct {
	Type    string // "success", "error", or "info"
	Message string
}

// ModeOption is one entry of the inspection mode selector.
type ModeOption struct {
	Value    domain.InspectionMode
	Label    string
	Selected bool
}

// PageData contains data shared by every page.
type PageData struct {
	CurrentPath string                 // Current URL path for navigation highlighting
	CSRFToken   string                 // CSRF token for form protection
	Version     string                 // Shown in the footer
	Flash       *Flash                 // Flash message (if any)
	NeedsAPIKey bool                   // No credential configured or entered yet
	Modes       []ModeOption           // Inspection mode selector
	Form        map[string]string      // Submitted values, kept on error
	Errors      map[string]string      // Field-level validation errors
	Result      *report.RenderedView   // Report just produced
	Reports     []*report.RenderedView // Session history, newest first
	MaxUpload   int64                  // Upload limit in bytes
}

// InspectionResponse is the JSON body returned to API clients.
type InspectionResponse struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Mode       string `json:"mode"`
	ModelUsed  string `json:"model_used"`
	ResultText string `json:"result_text"`
	TextURL    string `json:"text_url"`
	PDFURL     string `json:"pdf_url"`
	ImageURL   string `json:"image_url"`
	Project    string `json:"project"`
	Inspector  string `json:"inspector"`
	Location   string `json:"location"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// InspectionHandlerConfig holds the settings the handler needs from the
// application configuration.
type InspectionHandlerConfig struct {
	ConfiguredAPIKey string // Credential from the environment, if any
	RequiresAPIKey   bool   // False for the mock provider
	MaxUploadSize    int64
	SecureCookies    bool
	Version          string
}

// InspectionHandler handles inspection-related HTTP requests.
type InspectionHandler struct {
	inspections service.InspectionService
	presenter   *report.Presenter
	sessions    *session.Store
	renderer    TemplateRenderer
	config      InspectionHandlerConfig
	logger      *slog.Logger
}

// NewInspectionHandler creates a new InspectionHandler.
func NewInspectionHandler(
	inspections service.InspectionService,
	presenter *report.Presenter,
	sessions *session.Store,
	renderer TemplateRenderer,
	config InspectionHandlerConfig,
	logger *slog.Logger,
) *InspectionHandler {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = domain.MaxImageSize
	}
	return &InspectionHandler{
		inspections: inspections,
		presenter:   presenter,
		sessions:    sessions,
		renderer:    renderer,
		config:      config,
		logger:      logger,
	}
}

// RegisterRoutes registers all inspection routes on the provided mux.
//
// Routes:
//   - GET /                          -> Index (upload form)
//   - POST /inspections              -> Create (run an inspection)
//   - POST /settings/api-key         -> SaveAPIKey
//   - GET /reports                   -> List (session history)
//   - GET /reports/{id}              -> Show
//   - GET /reports/{id}/download     -> Download (?format=txt|pdf)
//   - GET /reports/{id}/image        -> Image (normalised photo)
//   - GET /help                      -> Help
func (h *InspectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /inspections", h.Create)
	mux.HandleFunc("POST /settings/api-key", h.SaveAPIKey)
	mux.HandleFunc("GET /reports", h.List)
	mux.HandleFunc("GET /reports/{id}", h.Show)
	mux.HandleFunc("GET /reports/{id}/download", h.Download)
	mux.HandleFunc("GET /reports/{id}/image", h.Image)
	mux.HandleFunc("GET /help", h.Help)
}

// =============================================================================
// GET / - Upload Form
// =============================================================================

// Index displays the inspection form.
func (h *InspectionHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	data, err := h.pageData(w, r, sess)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	data.Modes = modeOptions(domain.InspectionModeSafety)

	h.renderer.RenderHTTP(w, "inspect", data)
}

// =============================================================================
// POST /inspections - Run Inspection
// =============================================================================

// Create runs one inspection on the uploaded photo and shows the result.
func (h *InspectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.inspection.create"

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, nil, nil, domain.TooLarge(op, h.config.MaxUploadSize))
			return
		}
		h.fail(w, r, nil, nil, domain.Invalid(op, "The upload could not be read. Please try again."))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	if !csrf.ValidateRequest(r) {
		ForbiddenResponse(w, r, h.logger)
		return
	}

	sess := h.session(w, r)
	if key := strings.TrimSpace(r.FormValue("api_key")); key != "" {
		sess.SetAPIKey(key)
	}

	form := map[string]string{
		"mode":           strings.TrimSpace(r.FormValue("mode")),
		"project_name":   r.FormValue("project_name"),
		"inspector_name": r.FormValue("inspector_name"),
		"location":       r.FormValue("location"),
	}

	img, err := h.readPhoto(r)
	if err != nil {
		h.fail(w, r, sess, form, err)
		return
	}

	req := domain.InspectionRequest{
		Mode:          domain.InspectionMode(form["mode"]),
		Image:         img,
		ProjectName:   form["project_name"],
		InspectorName: form["inspector_name"],
		Location:      form["location"],
	}

	result, err := h.inspections.Inspect(r.Context(), sess.Log, req, sess.APIKey())
	if err != nil {
		h.fail(w, r, sess, form, err)
		return
	}

	if acceptsJSON(r) {
		writeJSON(w, http.StatusCreated, inspectionResponse(*result))
		return
	}

	data, err := h.pageData(w, r, sess)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	data.Modes = modeOptions(result.Mode)
	data.Result = h.presenter.Present(*result)
	data.Flash = &Flash{
		Type:    "success",
		Message: fmt.Sprintf("Inspection complete. Model used: %s", result.ModelUsed),
	}
	h.renderer.RenderHTTPStatus(w, http.StatusOK, "inspect", data)
}

// readPhoto reads the "photo" part. A missing photo yields an empty image so
// that validation reports it alongside other field errors.
func (h *InspectionHandler) readPhoto(r *http.Request) (domain.Image, error) {
	const op = "handler.inspection.photo"

	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return domain.Image{}, nil
	}
	if err != nil {
		return domain.Image{}, domain.Invalid(op, "The photo could not be read. Please try again.")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.config.MaxUploadSize+1))
	if err != nil {
		return domain.Image{}, domain.Internal(err, op, "failed to read photo")
	}

	// Detect from content rather than trusting the browser's header.
	return domain.Image{
		Data:        data,
		ContentType: http.DetectContentType(data),
		Filename:    header.Filename,
	}, nil
}

// fail reports err to the inspector. HTML clients get the form back with
// their values and a flash message; API clients get a JSON error.
func (h *InspectionHandler) fail(w http.ResponseWriter, r *http.Request, sess *session.Session, form map[string]string, err error) {
	if acceptsJSON(r) || h.renderer == nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status := statusFor(err)
	logError(h.logger, r, err, domain.ErrorCode(err), domain.ErrorOp(err), status)

	if sess == nil {
		sess = h.session(w, r)
	}
	data, perr := h.pageData(w, r, sess)
	if perr != nil {
		InternalErrorResponse(w, r, h.logger, perr)
		return
	}

	selected := domain.InspectionModeSafety
	if form != nil {
		data.Form = form
		if mode := domain.InspectionMode(form["mode"]); mode.IsValid() {
			selected = mode
		}
	}
	data.Modes = modeOptions(selected)
	data.Flash = &Flash{Type: "error", Message: userMessage(err)}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		data.Errors = ve.Fields
	}
	if domain.ErrorCode(err) == domain.ECONFIG {
		data.NeedsAPIKey = true
	}

	h.renderer.RenderHTTPStatus(w, status, "inspect", data)
}

// =============================================================================
// POST /settings/api-key - Enter API Key
// =============================================================================

// SaveAPIKey stores an API key in the caller's session.
func (h *InspectionHandler) SaveAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if !csrf.ValidateRequest(r) {
		ForbiddenResponse(w, r, h.logger)
		return
	}

	sess := h.session(w, r)

	key := strings.TrimSpace(r.FormValue("api_key"))
	if key == "" {
		h.fail(w, r, sess, nil, domain.NewValidationError("handler.settings.api_key", "api_key", "Enter an API key"))
		return
	}
	sess.SetAPIKey(key)
	h.logger.Info("api key entered for session")

	if acceptsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data, err := h.pageData(w, r, sess)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	data.Modes = modeOptions(domain.InspectionModeSafety)
	data.Flash = &Flash{Type: "success", Message: "API key saved for this session."}
	h.renderer.RenderHTTP(w, "inspect", data)
}

// =============================================================================
// GET /reports - History
// =============================================================================

// List displays every report of the session, newest first.
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	reports := h.presenter.PresentAll(sess.Log.Newest())

	if acceptsJSON(r) {
		out := make([]InspectionResponse, len(reports))
		for i, v := range reports {
			out[i] = inspectionResponse(v.Report)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":   len(out),
			"reports": out,
		})
		return
	}

	data, err := h.pageData(w, r, sess)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	data.Reports = reports

	h.renderer.RenderHTTP(w, "reports", data)
}

// =============================================================================
// GET /reports/{id} - Show Report
// =============================================================================

// Show displays one report from the session.
func (h *InspectionHandler) Show(w http.ResponseWriter, r *http.Request) {
	sess, rep, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, inspectionResponse(rep))
		return
	}

	data, err := h.pageData(w, r, sess)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	data.Result = h.presenter.Present(rep)

	h.renderer.RenderHTTP(w, "report", data)
}

// =============================================================================
// GET /reports/{id}/download - Download Report
// =============================================================================

// Download streams the report as plain text (default) or PDF.
func (h *InspectionHandler) Download(w http.ResponseWriter, r *http.Request) {
	const op = "handler.report.download"

	_, rep, ok := h.lookup(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "txt"
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "txt":
		body = []byte(report.Text(rep))
		contentType = "text/plain; charset=utf-8"
	case "pdf":
		var buf bytes.Buffer
		if _, err := h.presenter.WritePDF(&buf, rep); err != nil {
			ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to generate PDF"))
			return
		}
		body = buf.Bytes()
		contentType = "application/pdf"
	default:
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Format must be txt or pdf"))
		return
	}

	metrics.ReportDownloaded(format)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(rep.Timestamp, format)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// =============================================================================
// GET /reports/{id}/image - Report Photo
// =============================================================================

// Image serves the normalised photo the model saw.
func (h *InspectionHandler) Image(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", rep.SourceImage.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rep.SourceImage.Data)
}

// =============================================================================
// GET /help - Usage
// =============================================================================

// Help displays usage instructions.
func (h *InspectionHandler) Help(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	data, err := h.pageData(w, r, sess)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	data.Modes = modeOptions("")

	h.renderer.RenderHTTP(w, "help", data)
}

// =============================================================================
// Helpers
// =============================================================================

// lookup resolves the {id} path value against the caller's session log.
// It writes the error response itself and reports false on failure.
func (h *InspectionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, domain.InspectionReport, bool) {
	const op = "handler.report.lookup"

	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid report ID"))
		return nil, domain.InspectionReport{}, false
	}

	sess := h.session(w, r)
	rep, ok := sess.Log.Get(id)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "report", idStr))
		return nil, domain.InspectionReport{}, false
	}

	return sess, rep, true
}

// session returns the session attached by middleware.WithSession, loading
// it directly when the handler is mounted without that middleware.
func (h *InspectionHandler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if sess := middleware.GetSession(r.Context()); sess != nil {
		return sess
	}
	return h.sessions.Load(w, r, h.config.SecureCookies)
}

// pageData fills the fields every page needs.
func (h *InspectionHandler) pageData(w http.ResponseWriter, r *http.Request, sess *session.Session) (PageData, error) {
	token, err := csrf.EnsureToken(w, r, h.config.SecureCookies)
	if err != nil {
		return PageData{}, fmt.Errorf("csrf token: %w", err)
	}

	return PageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   token,
		Version:     h.config.Version,
		NeedsAPIKey: h.needsAPIKey(sess),
		MaxUpload:   h.config.MaxUploadSize,
	}, nil
}

func (h *InspectionHandler) needsAPIKey(sess *session.Session) bool {
	if !h.config.RequiresAPIKey || h.config.ConfiguredAPIKey != "" {
		return false
	}
	return sess == nil || sess.APIKey() == ""
}

func modeOptions(selected domain.InspectionMode) []ModeOption {
	options := make([]ModeOption, len(domain.InspectionModes))
	for i, mode := range domain.InspectionModes {
		options[i] = ModeOption{
			Value:    mode,
			Label:    mode.Label(),
			Selected: mode == selected,
		}
	}
	return options
}

func inspectionResponse(rep domain.InspectionReport) InspectionResponse {
	base := "/reports/" + rep.ID.String()
	return InspectionResponse{
		ID:         rep.ID.String(),
		Timestamp:  report.FormatTimestamp(rep.Timestamp),
		Mode:       rep.Mode.String(),
		ModelUsed:  rep.ModelUsed,
		ResultText: rep.ResultText,
		TextURL:    base + "/download?format=txt",
		PDFURL:     base + "/download?format=pdf",
		ImageURL:   base + "/image",
		Project:    rep.ProjectOrDefault(),
		Inspector:  rep.InspectorOrDefault(),
		Location:   rep.LocationOrDefault(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
