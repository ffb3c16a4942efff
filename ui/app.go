package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gordd/app"
	"gordd/internal"
)

// App is the HTTP surface over the analysis service. It exposes JSON
// endpoints for launching runs and reading stored reports, plus a rendered
// HTML report document.
type App struct {
	router  *chi.Mux
	service *app.AnalysisService
	logger  *internal.Logger
}

// NewApp creates the HTTP application around an analysis service.
func NewApp(service *app.AnalysisService, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}

	a := &App{
		router:  chi.NewRouter(),
		service: service,
		logger:  logger,
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)

	a.router.Post("/api/analyses", a.handleRunAnalysis)
	a.router.Get("/api/analyses", a.handleListRuns)
	a.router.Get("/api/analyses/{id}", a.handleGetReport)
	a.router.Get("/api/analyses/{id}/report", a.handleRenderReport)
	a.router.Get("/api/dataset/preview", a.handleDatasetPreview)
}

// Router exposes the handler tree, primarily for tests.
func (a *App) Router() http.Handler {
	return a.router
}

// Start starts the HTTP server on the given port.
func (a *App) Start(port string) error {
	addr := ":" + port
	a.logger.Info("Starting analysis server on %s", addr)
	return http.ListenAndServe(addr, a.router)
}
