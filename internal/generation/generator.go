package generation

import "context"

// Image is a single inline image attached to a generation request.
type Image struct {
	// Data holds the raw (not base64-encoded) image bytes.
	Data []byte

	// MIMEType is the declared content type, e.g. "image/png".
	MIMEType string
}

// Request is everything a Generator needs for a single call.
type Request struct {
	// APIKey authenticates the call with the provider.
	APIKey string

	// Model names the provider model. Implementations apply their own default
	// when it is empty.
	Model string

	// PromptText is sent as the first part when non-empty.
	PromptText string

	// Images follow the text part in the order given.
	Images []Image
}

// Validate checks the invariants shared by every Generator implementation.
func (r Request) Validate() error {
	if r.APIKey == "" {
		return ErrMissingAPIKey
	}
	if r.PromptText == "" && len(r.Images) == 0 {
		return ErrEmptyRequest
	}
	for _, img := range r.Images {
		if len(img.Data) == 0 || img.MIMEType == "" {
			return ErrInvalidImage
		}
	}
	return nil
}

// Generator defines the interface for generating document text from a prompt.
// This interface serves as a boundary between the application core and
// external AI/LLM services.
type Generator interface {
	// Generate sends the request to the provider and returns the generated
	// Markdown text, or an error describing why no text was produced.
	Generate(ctx context.Context, req Request) (string, error)
}
