package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/prdgen/internal/export"
	"github.com/phrazzld/prdgen/internal/generation"
	"github.com/phrazzld/prdgen/internal/redact"
)

// ErrUploadTooLarge is returned when a multipart upload exceeds the limit.
var ErrUploadTooLarge = errors.New("upload exceeds the maximum allowed size")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	// Caller input
	case errors.Is(err, generation.ErrMissingAPIKey),
		errors.Is(err, generation.ErrEmptyRequest),
		errors.Is(err, generation.ErrInvalidImage),
		errors.Is(err, export.ErrInvalidDocument):
		return http.StatusBadRequest

	case errors.Is(err, generation.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType

	case errors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge

	// Upstream generator
	case errors.Is(err, generation.ErrRateLimited):
		return http.StatusTooManyRequests

	case errors.Is(err, generation.ErrHTTPStatus),
		errors.Is(err, generation.ErrNoCandidates),
		errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrTransport),
		errors.Is(err, export.ErrProviderAPI):
		return http.StatusBadGateway

	// Document exporter credentials
	case errors.Is(err, export.ErrAuthenticationFailed):
		return http.StatusUnauthorized

	case errors.Is(err, export.ErrCredentialsNotFound):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the message shown to the client. Known errors
// carry user-facing messages already and are returned redacted; anything
// else is replaced by a generic message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	if MapErrorToStatusCode(err) == http.StatusInternalServerError {
		return "An unexpected error occurred"
	}

	return redact.Error(err)
}

// SanitizeValidationError turns validator errors into a short message that
// names the offending field without echoing internal struct names.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag())))
	}
	return strings.Join(msgs, "; ")
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
