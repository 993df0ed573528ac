package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/prdgen/internal/api"
	apiMiddleware "github.com/phrazzld/prdgen/internal/api/middleware"
	"github.com/phrazzld/prdgen/internal/service"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	maxUpload := int64(app.config.Server.MaxUploadMB) << 20
	prdHandler := api.NewPRDHandler(app.prdService, maxUpload, app.logger)
	indexHandler := api.NewIndexHandler(api.IndexData{
		DefaultModel:  app.config.LLM.ModelName,
		DefaultTitle:  service.DefaultDocumentTitle,
		MaxUploadMB:   app.config.Server.MaxUploadMB,
		HasDefaultKey: app.config.LLM.GeminiAPIKey != "",
	}, app.logger)

	r.Method(http.MethodGet, "/", indexHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/prd", prdHandler.GeneratePRD)
		r.Post("/export", prdHandler.ExportPRD)
	})

	r.Get("/health", prdHandler.Health)

	return r
}
