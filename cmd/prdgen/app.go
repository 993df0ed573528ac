package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/prdgen/internal/config"
	"github.com/phrazzld/prdgen/internal/export"
	"github.com/phrazzld/prdgen/internal/generation"
	"github.com/phrazzld/prdgen/internal/platform/gdocs"
	"github.com/phrazzld/prdgen/internal/platform/gemini"
	"github.com/phrazzld/prdgen/internal/service"
)

// authorizer acquires exporter credentials ahead of the first export and
// reports where they are stored.
type authorizer interface {
	Authorize(ctx context.Context) (string, error)
}

// application holds all the shared application dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger

	generator  generation.Generator
	exporter   export.Exporter
	authorizer authorizer
	prdService service.PRDService
}

// newApplication creates an application with the Gemini generator and the
// Google Docs exporter.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	generator, err := gemini.NewClient(logger.With("component", "gemini"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	exporter, err := gdocs.NewExporter(logger.With("component", "gdocs"), cfg.Docs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Docs exporter: %w", err)
	}

	return assembleApplication(cfg, logger, generator, exporter, exporter)
}

// assembleApplication builds the service layer on top of the given ports.
func assembleApplication(
	cfg *config.Config,
	logger *slog.Logger,
	generator generation.Generator,
	exporter export.Exporter,
	auth authorizer,
) (*application, error) {
	prdService, err := service.NewPRDService(generator, exporter, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create PRD service: %w", err)
	}

	return &application{
		config:     cfg,
		logger:     logger,
		generator:  generator,
		exporter:   exporter,
		authorizer: auth,
		prdService: prdService,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
