package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
)

// layoutTemplate is the name every page is executed through.
const layoutTemplate = "app"

// Renderer manages template loading and rendering.
type Renderer struct {
	templates map[string]*template.Template
	fsys      fs.FS
	logger    *slog.Logger
	isDev     bool
	mu        sync.RWMutex
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	FS     fs.FS // Rooted at the templates directory
	Logger *slog.Logger
	IsDev  bool // Reload templates on each render
}

// NewRenderer creates a new template renderer.
//
// The file system must contain:
//   - layouts/app.html defining the "app" template
//   - partials/*.html shared by every page
//   - pages/*.html, one per page, each defining "title" and "content"
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.FS == nil {
		return nil, fmt.Errorf("renderer: template file system is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Renderer{
		fsys:   cfg.FS,
		logger: cfg.Logger,
		isDev:  cfg.IsDev,
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

// loadTemplates parses every page together with the layout and partials.
func (r *Renderer) loadTemplates() error {
	pages, err := fs.Glob(r.fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("glob pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	partials, err := fs.Glob(r.fsys, "partials/*.html")
	if err != nil {
		return fmt.Errorf("glob partials: %w", err)
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")

		files := append([]string{"layouts/app.html"}, partials...)
		files = append(files, page)

		tmpl, err := template.New(name).Funcs(TemplateFuncs()).ParseFS(r.fsys, files...)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = tmpl
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "count", len(templates))
	return nil
}

// Render writes the named page to w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	if r.isDev {
		if err := r.loadTemplates(); err != nil {
			r.logger.Error("failed to reload templates", "error", err)
			return err
		}
	}

	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	return tmpl.ExecuteTemplate(w, layoutTemplate, data)
}

// RenderHTTP renders the named page with a 200 status.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	r.RenderHTTPStatus(w, http.StatusOK, name, data)
}

// RenderHTTPStatus renders into a buffer first so a template failure never
// produces a half-written page.
func (r *Renderer) RenderHTTPStatus(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// ListTemplates returns the names of all loaded pages.
func (r *Renderer) ListTemplates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
