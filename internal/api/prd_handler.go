package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/phrazzld/prdgen/internal/api/shared"
	"github.com/phrazzld/prdgen/internal/generation"
	"github.com/phrazzld/prdgen/internal/service"
)

// multipartMemory is how much of an upload is kept in memory before
// ParseMultipartForm spills to temporary files.
const multipartMemory = 8 << 20

// ExportPRDRequest represents the request body for exporting a PRD
type ExportPRDRequest struct {
	Title   string `json:"title"   validate:"max=256"`
	Content string `json:"content" validate:"required"`
}

// GeneratePRDResponse is returned by POST /api/prd
type GeneratePRDResponse struct {
	PRD string `json:"prd"`
}

// ExportPRDResponse is returned by POST /api/export
type ExportPRDResponse struct {
	URL string `json:"url"`
}

// PRDHandler handles PRD generation and export requests
type PRDHandler struct {
	prdService     service.PRDService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewPRDHandler creates a new PRDHandler. maxUploadBytes bounds the whole
// multipart request body.
func NewPRDHandler(prdService service.PRDService, maxUploadBytes int64, logger *slog.Logger) *PRDHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PRDHandler{
		prdService:     prdService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "prd_handler"),
	}
}

// GeneratePRD handles POST /api/prd requests. The body is multipart with
// fields context, api_key and model, and zero or more images files.
func (h *PRDHandler) GeneratePRD(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			h.respondError(w, r, ErrUploadTooLarge)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	images, err := readImages(r.MultipartForm.File["images"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	in := service.GenerateInput{
		APIKey:  r.FormValue("api_key"),
		Model:   r.FormValue("model"),
		Context: r.FormValue("context"),
		Images:  images,
	}

	prd, err := h.prdService.GeneratePRD(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GeneratePRDResponse{PRD: prd})
}

// ExportPRD handles POST /api/export requests
func (h *PRDHandler) ExportPRD(w http.ResponseWriter, r *http.Request) {
	var req ExportPRDRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	link, err := h.prdService.ExportPRD(r.Context(), req.Title, req.Content)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, ExportPRDResponse{URL: link})
}

// Health handles GET /health requests
func (h *PRDHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PRDHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// readImages reads and sniffs every uploaded file, keeping upload order.
func readImages(files []*multipart.FileHeader) ([]generation.Image, error) {
	images := make([]generation.Image, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}

		img, err := generation.DetectImage(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s", generation.ErrInvalidImage, fh.Filename)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s", generation.ErrInvalidImage, fh.Filename)
	}
	return data, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
