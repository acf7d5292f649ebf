package web

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/generation"
	"github.com/hpungsan/playbook/internal/session"
	"github.com/hpungsan/playbook/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Generator turns an incident into generated playbook content.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// Deps are the collaborators the web UI needs.
type Deps struct {
	Registry  *store.Registry
	Generator Generator
	Sessions  *session.Manager
	Config    *config.Config
	Logger    *zap.Logger
	Version   string

	// GenerationHandler, when set, is mounted at generation.Path so this
	// process also serves the generation endpoint.
	GenerationHandler http.Handler
}

// NewHandler builds the routed, middleware-wrapped handler for the web UI.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Registry == nil || deps.Generator == nil || deps.Sessions == nil {
		return nil, stderrors.New("web: registry, generator, and sessions are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("web")

	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	renderer, err := NewRenderer(templateSub, deps.Version, logger)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		registry:  deps.Registry,
		generator: deps.Generator,
		cfg:       deps.Config,
		renderer:  renderer,
		logger:    logger,
		now:       time.Now,
	}

	app := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	app.HandleFunc("GET /{$}", h.HandleIndustryPicker)
	app.HandleFunc("POST /industry", h.HandleSetIndustry)
	app.HandleFunc("POST /industry/clear", h.HandleClearIndustry)
	app.HandleFunc("GET /dashboard", h.HandleDashboard)
	app.HandleFunc("GET /library", h.HandleLibrary)
	app.HandleFunc("GET /my", h.HandleMyEntries)
	app.HandleFunc("GET /privacy", h.HandlePrivacy)
	app.HandleFunc("POST /guide/dismiss", h.HandleDismissGuide)

	app.HandleFunc("GET /entries/new", h.HandleNewEntry)
	app.HandleFunc("POST /entries", h.HandleCreateEntry)
	app.HandleFunc("GET /entries/{id}", h.HandleDetail)
	app.HandleFunc("POST /entries/{id}", h.HandleEdit)
	app.HandleFunc("POST /entries/{id}/status", h.HandleStatus)
	app.HandleFunc("POST /entries/{id}/publish", h.HandlePublish)
	app.HandleFunc("DELETE /entries/{id}", h.HandleDelete)
	app.HandleFunc("GET /entries/{id}/export.md", h.HandleExportText)
	app.HandleFunc("GET /entries/{id}/share", h.HandleShare)
	app.HandleFunc("GET /entries/{id}/print", h.HandlePrint)

	mux := http.NewServeMux()
	mux.Handle("/", deps.Sessions.Middleware(app))

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	if deps.GenerationHandler != nil {
		mux.Handle(generation.Path, deps.GenerationHandler)
	}

	// Wrap with security headers
	return securityHeaders(mux), nil
}

// NewServer creates and configures the HTTP server for the web UI.
func NewServer(deps Deps, bind string, port int) (*http.Server, error) {
	handler, err := NewHandler(deps)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
// Handlers may override X-Frame-Options (the print view is framed by its own page).
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self'; frame-ancestors 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully when ctx is done.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("Playbook UI running", zap.String("url", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
