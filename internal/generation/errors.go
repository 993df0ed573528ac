package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by Generator implementations.
var (
	// ErrMissingAPIKey is returned before any call when no API key is available.
	ErrMissingAPIKey = errors.New("gemini API key is required")

	// ErrEmptyRequest is returned when neither prompt text nor images were given.
	ErrEmptyRequest = errors.New("provide context text or at least one image")

	// ErrInvalidImage is returned for empty image data or a missing MIME type.
	ErrInvalidImage = errors.New("invalid image")

	// ErrUnsupportedImage is returned for image formats the generator does not accept.
	ErrUnsupportedImage = errors.New("unsupported image type")

	// ErrNoCandidates is returned when the provider answered without any candidate.
	ErrNoCandidates = errors.New("no candidates returned from Gemini API")

	// ErrInvalidResponse is returned when the provider response cannot be parsed
	// or lacks the candidate/content/parts structure.
	ErrInvalidResponse = errors.New("unexpected response structure from Gemini API")

	// ErrRateLimited is the sentinel wrapped by RateLimitError.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrHTTPStatus is the sentinel wrapped by HTTPError.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrTransport is returned when the request never produced an HTTP response.
	ErrTransport = errors.New("an error occurred while calling Gemini API")

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// RateLimitError reports that every attempt was answered with HTTP 429.
type RateLimitError struct {
	// Retries is the number of retries made after the first attempt.
	Retries int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: Gemini API still returned 429 after %d retries", e.Retries)
}

// Unwrap allows errors.Is(err, ErrRateLimited).
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// HTTPError reports a non-2xx, non-429 response from the provider.
type HTTPError struct {
	StatusCode int
	Status     string

	// Detail is the pretty-printed "error" object of the response body, when
	// the body was JSON and carried one.
	Detail string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("HTTP error: %s", e.Status)
	if e.Detail != "" {
		msg += "\nDetails: " + e.Detail
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrHTTPStatus).
func (e *HTTPError) Unwrap() error {
	return ErrHTTPStatus
}
