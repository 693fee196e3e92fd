package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/sitecheck/internal/ai"
	"github.com/DukeRupert/sitecheck/internal/ai/mock"
	"github.com/DukeRupert/sitecheck/internal/csrf"
	"github.com/DukeRupert/sitecheck/internal/report"
	"github.com/DukeRupert/sitecheck/internal/service"
	"github.com/DukeRupert/sitecheck/internal/session"
	"github.com/DukeRupert/sitecheck/web"
)

// =============================================================================
// Test Helpers
// =============================================================================

type testEnv struct {
	mux      *http.ServeMux
	provider *mock.Provider
}

// newTestEnv wires the real service, presenter and templates around a mock
// provider. When configuredKey is empty, requests need a session key.
func newTestEnv(t *testing.T, configuredKey string) *testEnv {
	t.Helper()
	logger := discardLogger()

	provider := mock.New(logger)
	factory := func(apiKey string) (ai.Provider, error) {
		if apiKey == "" {
			apiKey = configuredKey
		}
		if apiKey == "" {
			return nil, ai.EAIMissingCredential
		}
		return provider, nil
	}

	svc := service.NewInspectionService(service.InspectionConfig{
		Candidates:        []string{"A", "B"},
		MaxUploadSize:     1 << 20,
		MaxImageDimension: 256,
	}, factory, service.NewImagingProcessor(), logger)

	renderer, err := NewRenderer(RendererConfig{FS: web.Templates(), Logger: logger})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	h := NewInspectionHandler(
		svc,
		report.NewPresenter(),
		session.NewStore(time.Hour, logger),
		renderer,
		InspectionHandlerConfig{
			ConfiguredAPIKey: configuredKey,
			RequiresAPIKey:   true,
			MaxUploadSize:    1 << 20,
			Version:          "test",
		},
		logger,
	)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &testEnv{mux: mux, provider: provider}
}

func (e *testEnv) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// start opens the form and returns the session and CSRF cookies.
func (e *testEnv) start(t *testing.T) []*http.Cookie {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/", nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, body: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if csrfToken(cookies) == "" {
		t.Fatal("GET / should set a CSRF cookie")
	}
	return cookies
}

func csrfToken(cookies []*http.Cookie) string {
	for _, c := range cookies {
		if c.Name == csrf.CookieName {
			return c.Value
		}
	}
	return ""
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for x := 0; x < 80; x++ {
		for y := 0; y < 60; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// inspectRequest builds a multipart submission. A nil photo omits the part.
func inspectRequest(t *testing.T, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "site.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write(photo)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/inspections", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) inspect(t *testing.T, cookies []*http.Cookie, mode string, photo []byte, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := inspectRequest(t, map[string]string{
		"mode":           mode,
		"project_name":   "Tower B",
		"inspector_name": "Lee",
		"csrf_token":     csrfToken(cookies),
	}, photo)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return e.do(req, cookies)
}

// =============================================================================
// GET /
// =============================================================================

func TestIndex_RendersForm(t *testing.T) {
	env := newTestEnv(t, "configured-key")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Safety Inspection", "Quality Inspection", "Progress Record", `name="csrf_token"`, "SiteCheck test"} {
		if !strings.Contains(body, want) {
			t.Errorf("form should contain %q", want)
		}
	}
	if strings.Contains(body, "API key required") {
		t.Error("configured key should hide the API key prompt")
	}

	var names []string
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
	}
	if len(names) != 2 {
		t.Errorf("cookies = %v, want session and csrf", names)
	}
}

func TestIndex_PromptsForAPIKey(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil), nil)

	if !strings.Contains(rec.Body.String(), "API key required") {
		t.Error("page should prompt for an API key")
	}
}

// =============================================================================
// POST /inspections
// =============================================================================

func TestCreate_FallsBackAndShowsModel(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	env.provider.Fail("A", ai.EAIModelNotFound).Respond("B", "## Overview\n**All clear**")
	cookies := env.start(t)

	rec := env.inspect(t, cookies, "safety", testJPEG(t), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"Inspection complete. Model used: B", "<strong>All clear</strong>", "Tower B", "data:image/jpeg;base64,"} {
		if !strings.Contains(body, want) {
			t.Errorf("result page should contain %q", want)
		}
	}
	if got := env.provider.CalledModels(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("called models = %v, want [A B]", got)
	}
}

func TestCreate_JSON(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	env.provider.Respond("A", "## Overview\nfine")
	cookies := env.start(t)

	rec := env.inspect(t, cookies, "quality", testJPEG(t), "application/json")

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp InspectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ModelUsed != "A" || resp.Mode != "quality" || resp.ResultText != "## Overview\nfine" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Location != "Not provided" {
		t.Errorf("Location = %q, want Not provided", resp.Location)
	}
	if !strings.HasSuffix(resp.PDFURL, "/download?format=pdf") {
		t.Errorf("PDFURL = %q", resp.PDFURL)
	}
}

func TestCreate_AllModelsFail(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	env.provider.Fail("A", ai.EAIUnavailable).Fail("B", ai.EAIRateLimit)
	cookies := env.start(t)

	rec := env.inspect(t, cookies, "safety", testJPEG(t), "")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Inspection failed") {
		t.Errorf("page should report the failure: %s", rec.Body.String())
	}

	history := env.do(httptest.NewRequest(http.MethodGet, "/reports", nil), cookies)
	if !strings.Contains(history.Body.String(), "No inspections yet") {
		t.Error("failed inspection must not be added to history")
	}
}

func TestCreate_MissingAPIKey(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.start(t)

	rec := env.inspect(t, cookies, "safety", testJPEG(t), "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "An API key is required") {
		t.Errorf("page should ask for an API key: %s", rec.Body.String())
	}
	if env.provider.CallCount() != 0 {
		t.Errorf("provider calls = %d, want 0", env.provider.CallCount())
	}
}

func TestCreate_APIKeyFormField(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.start(t)

	req := inspectRequest(t, map[string]string{
		"mode":       "progress",
		"api_key":    "entered-key",
		"csrf_token": csrfToken(cookies),
	}, testJPEG(t))
	rec := env.do(req, cookies)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if env.provider.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1", env.provider.CallCount())
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	cookies := env.start(t)

	t.Run("invalid mode", func(t *testing.T) {
		rec := env.inspect(t, cookies, "structural", testJPEG(t), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Select an inspection mode") {
			t.Error("page should show the mode error")
		}
	})

	t.Run("missing photo", func(t *testing.T) {
		rec := env.inspect(t, cookies, "safety", nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "A site photo is required") {
			t.Error("page should show the photo error")
		}
	})

	t.Run("not an image", func(t *testing.T) {
		rec := env.inspect(t, cookies, "safety", []byte("%PDF-1.4 not a photo"), "application/json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "JPEG or PNG") {
			t.Errorf("JSON should name the photo error: %s", rec.Body.String())
		}
	})

	t.Run("too large", func(t *testing.T) {
		rec := env.inspect(t, cookies, "safety", bytes.Repeat([]byte{0xff}, 3<<20), "")
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})

	if env.provider.CallCount() != 0 {
		t.Errorf("provider calls = %d, want 0", env.provider.CallCount())
	}
}

func TestCreate_RejectsMissingCSRFToken(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	cookies := env.start(t)

	req := inspectRequest(t, map[string]string{"mode": "safety"}, testJPEG(t))
	rec := env.do(req, cookies)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if env.provider.CallCount() != 0 {
		t.Error("provider must not be called without a valid token")
	}
}

// =============================================================================
// POST /settings/api-key
// =============================================================================

func TestSaveAPIKey(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.start(t)

	form := url.Values{"api_key": {"  sk-entered  "}, "csrf_token": {csrfToken(cookies)}}
	req := httptest.NewRequest(http.MethodPost, "/settings/api-key", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req, cookies)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "API key saved for this session.") {
		t.Error("page should confirm the key was saved")
	}
	if strings.Contains(body, "API key required") {
		t.Error("prompt should disappear once a key is saved")
	}

	if rec := env.inspect(t, cookies, "safety", testJPEG(t), ""); rec.Code != http.StatusOK {
		t.Errorf("inspection after saving key: status = %d", rec.Code)
	}
}

func TestSaveAPIKey_Empty(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.start(t)

	form := url.Values{"api_key": {"   "}, "csrf_token": {csrfToken(cookies)}}
	req := httptest.NewRequest(http.MethodPost, "/settings/api-key", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req, cookies)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Enter an API key") {
		t.Error("page should show the field error")
	}
}

// =============================================================================
// GET /reports and downloads
// =============================================================================

func TestList_NewestFirst(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	cookies := env.start(t)

	env.provider.Respond("A", "first result")
	if rec := env.inspect(t, cookies, "safety", testJPEG(t), ""); rec.Code != http.StatusOK {
		t.Fatalf("first inspection status = %d", rec.Code)
	}
	env.provider.Respond("A", "second result")
	if rec := env.inspect(t, cookies, "progress", testJPEG(t), ""); rec.Code != http.StatusOK {
		t.Fatalf("second inspection status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("Accept", "application/json")
	rec := env.do(req, cookies)

	var resp struct {
		Count   int                  `json:"count"`
		Reports []InspectionResponse `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Reports[0].ResultText != "second result" || resp.Reports[1].ResultText != "first result" {
		t.Errorf("order = %q, %q", resp.Reports[0].ResultText, resp.Reports[1].ResultText)
	}

	html := env.do(httptest.NewRequest(http.MethodGet, "/reports", nil), cookies).Body.String()
	if !strings.Contains(html, "2 inspections in this session") {
		t.Error("history page should show the count")
	}
	if strings.Index(html, "second result") > strings.Index(html, "first result") {
		t.Error("history page should list newest first")
	}
}

func TestList_SessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	cookies := env.start(t)

	rec := env.inspect(t, cookies, "safety", testJPEG(t), "application/json")
	var created InspectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	other := env.start(t)
	download := env.do(httptest.NewRequest(http.MethodGet, created.TextURL, nil), other)
	if download.Code != http.StatusNotFound {
		t.Errorf("other session download status = %d, want 404", download.Code)
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t, "configured-key")
	env.provider.Respond("A", "## Overview\nReady")
	cookies := env.start(t)

	rec := env.inspect(t, cookies, "safety", testJPEG(t), "application/json")
	var created InspectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	t.Run("text", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, created.TextURL, nil), cookies)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
			t.Errorf("Content-Type = %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "inspection-report_") || !strings.HasSuffix(cd, `.txt"`) {
			t.Errorf("Content-Disposition = %q", cd)
		}
		body := rec.Body.String()
		if !strings.HasPrefix(body, report.Title+"\n") || !strings.Contains(body, "Model used: A\n") || !strings.HasSuffix(body, "Ready\n") {
			t.Errorf("unexpected text export:\n%s", body)
		}
	})

	t.Run("default format is text", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/reports/"+created.ID+"/download", nil), cookies)
		if !strings.HasPrefix(rec.Body.String(), report.Title) {
			t.Error("download without format should return text")
		}
	})

	t.Run("pdf", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, created.PDFURL, nil), cookies)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("Content-Type = %q", ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
			t.Error("body should be a PDF")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/reports/"+created.ID+"/download?format=docx", nil), cookies)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/reports/not-a-uuid/download", nil), cookies)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("image", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, created.ImageURL, nil), cookies)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q, want image/png", ct)
		}
	})

	t.Run("show", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/reports/"+created.ID, nil), cookies)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Back to history") {
			t.Error("report page should link back to history")
		}
	})
}

func TestHelp(t *testing.T) {
	env := newTestEnv(t, "configured-key")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/help", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"How to use SiteCheck", "Progress Record", "1.0 MB"} {
		if !strings.Contains(body, want) {
			t.Errorf("help page should contain %q", want)
		}
	}
}
