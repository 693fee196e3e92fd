package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/sitecheck/internal"
	"github.com/DukeRupert/sitecheck/internal/handler"
	"github.com/DukeRupert/sitecheck/internal/metrics"
	"github.com/DukeRupert/sitecheck/internal/middleware"
	"github.com/DukeRupert/sitecheck/internal/report"
	"github.com/DukeRupert/sitecheck/internal/service"
	"github.com/DukeRupert/sitecheck/internal/session"
	"github.com/DukeRupert/sitecheck/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	if cfg.RequiresAPIKey() && cfg.APIKey() == "" {
		logger.Warn("No API key configured; inspectors must enter one per session", "provider", cfg.AIProvider)
	}

	// Initialize template renderer
	var templates fs.FS = web.Templates()
	if cfg.TemplatesDir != "" {
		templates = os.DirFS(cfg.TemplatesDir)
	}
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		FS:     templates,
		Logger: logger,
		IsDev:  cfg.Env == "development" && cfg.TemplatesDir != "",
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	// Initialize services
	candidates := internal.ModelCandidates(cfg)
	inspectionService := service.NewInspectionService(service.InspectionConfig{
		Candidates:        candidates,
		MaxUploadSize:     cfg.MaxUploadSize,
		MaxImageDimension: cfg.MaxImageDimension,
	}, internal.NewProviderFactory(cfg, logger), service.NewImagingProcessor(), logger)
	logger.Info("AI provider configured", "provider", cfg.AIProvider, "candidates", candidates)

	// Sessions hold the report log and any entered API key
	sessions := session.NewStore(cfg.SessionTTL, logger)
	go sessions.Run(ctx, cfg.SessionSweepInterval)

	// Initialize middleware
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.SecureCookies)
	sessionMw := middleware.NewSessionMiddleware(sessions, cfg.SecureCookies)
	metricsAuth := middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("Metrics endpoint is unprotected; set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// Initialize handlers
	inspectionHandler := handler.NewInspectionHandler(
		inspectionService,
		report.NewPresenter(),
		sessions,
		renderer,
		handler.InspectionHandlerConfig{
			ConfiguredAPIKey: cfg.APIKey(),
			RequiresAPIKey:   cfg.RequiresAPIKey(),
			MaxUploadSize:    cfg.MaxUploadSize,
			SecureCookies:    cfg.SecureCookies,
			Version:          version,
		},
		logger,
	)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Application routes share the session
	app := http.NewServeMux()
	inspectionHandler.RegisterRoutes(app)
	mux.Handle("/", sessionMw.WithSession(app))

	root := middleware.Stack(
		middleware.Recover(logger),
		metrics.Middleware,
		loggingMw.Handler,
		securityMw.Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		// Model calls may take up to AI_REQUEST_TIMEOUT per candidate
		WriteTimeout: cfg.AIRequestTimeout*time.Duration(len(candidates)) + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
