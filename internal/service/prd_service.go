package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/phrazzld/prdgen/internal/config"
	"github.com/phrazzld/prdgen/internal/export"
	"github.com/phrazzld/prdgen/internal/generation"
)

// DefaultDocumentTitle is used when an export names no title.
const DefaultDocumentTitle = "Generated PRD"

// GenerateInput is the user-supplied input for one PRD generation.
type GenerateInput struct {
	// APIKey overrides the configured Gemini API key when non-empty.
	APIKey string

	// Model overrides the configured model when non-empty.
	Model string

	// Context is the free-form product description.
	Context string

	// Images are design mockups or screenshots, in upload order.
	Images []generation.Image
}

// PRDService provides PRD generation and export operations
type PRDService interface {
	// GeneratePRD produces a Markdown PRD from context text and/or images
	GeneratePRD(ctx context.Context, in GenerateInput) (string, error)

	// ExportPRD creates a hosted document from a generated PRD and returns its URL
	ExportPRD(ctx context.Context, title, content string) (string, error)
}

// prdServiceImpl implements the PRDService interface
type prdServiceImpl struct {
	generator generation.Generator
	exporter  export.Exporter
	llm       config.LLMConfig
	logger    *slog.Logger
}

// NewPRDService creates a new PRDService.
// It returns an error if any of the required dependencies are nil.
func NewPRDService(
	generator generation.Generator,
	exporter export.Exporter,
	llm config.LLMConfig,
	logger *slog.Logger,
) (PRDService, error) {
	if generator == nil {
		return nil, &PRDServiceError{
			Operation: "create_service",
			Message:   "generator cannot be nil",
		}
	}
	if exporter == nil {
		return nil, &PRDServiceError{
			Operation: "create_service",
			Message:   "exporter cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &prdServiceImpl{
		generator: generator,
		exporter:  exporter,
		llm:       llm,
		logger:    logger.With("component", "prd_service"),
	}, nil
}

// GeneratePRD resolves the API key and model, composes the prompt and calls
// the generator. Missing key and empty input are rejected before any call.
func (s *prdServiceImpl) GeneratePRD(ctx context.Context, in GenerateInput) (string, error) {
	apiKey := strings.TrimSpace(in.APIKey)
	if apiKey == "" {
		apiKey = s.llm.GeminiAPIKey
	}
	if apiKey == "" {
		return "", generation.ErrMissingAPIKey
	}

	prompt, err := generation.BuildPRDPrompt(in.Context, len(in.Images))
	if err != nil {
		return "", err
	}

	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = s.llm.ModelName
	}

	req := generation.Request{
		APIKey:     apiKey,
		Model:      model,
		PromptText: prompt,
		Images:     in.Images,
	}

	s.logger.InfoContext(ctx, "generating PRD",
		"model", model,
		"context_length", len(in.Context),
		"image_count", len(in.Images))

	prd, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "PRD generation failed", "error", err)
		return "", err
	}

	s.logger.InfoContext(ctx, "PRD generated", "length", len(prd))
	return prd, nil
}

// ExportPRD creates a document from content, using DefaultDocumentTitle when
// title is blank.
func (s *prdServiceImpl) ExportPRD(ctx context.Context, title, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", export.ErrInvalidDocument
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultDocumentTitle
	}

	link, err := s.exporter.CreateDocument(ctx, title, content)
	if err != nil {
		s.logger.WarnContext(ctx, "PRD export failed", "title", title, "error", err)
		return "", err
	}

	s.logger.InfoContext(ctx, "PRD exported", "title", title, "url", link)
	return link, nil
}
