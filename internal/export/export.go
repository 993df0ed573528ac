package export

import (
	"context"
	"errors"
	"fmt"
)

// DocumentURLFormat is the shareable edit URL of a created document.
const DocumentURLFormat = "https://docs.google.com/document/d/%s/edit"

// Common errors returned by Exporter implementations.
var (
	// ErrCredentialsNotFound is returned when no stored credential is usable
	// and no client registration file exists to start a consent flow.
	ErrCredentialsNotFound = errors.New(
		"credentials not found: place credentials.json in the working directory")

	// ErrAuthenticationFailed is returned when the interactive consent flow
	// could not produce a credential.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrProviderAPI wraps failures reported by the document provider.
	ErrProviderAPI = errors.New("an error occurred")

	// ErrInvalidDocument is returned for an empty body.
	ErrInvalidDocument = errors.New("document content cannot be empty")
)

// Exporter creates a document from plain text.
type Exporter interface {
	// CreateDocument creates a document titled title containing body verbatim
	// and returns its shareable URL.
	CreateDocument(ctx context.Context, title, body string) (string, error)
}

// DocumentURL returns the edit URL of the document with the given ID.
func DocumentURL(documentID string) string {
	return fmt.Sprintf(DocumentURLFormat, documentID)
}
