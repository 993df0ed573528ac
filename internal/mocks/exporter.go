package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/prdgen/internal/export"
)

// ExportCall records the arguments of one CreateDocument call
type ExportCall struct {
	Title string
	Body  string
}

// MockExporter implements export.Exporter for testing
type MockExporter struct {
	// CreateDocumentFn allows test cases to mock the CreateDocument behavior
	CreateDocumentFn func(ctx context.Context, title, body string) (string, error)

	// Default response values
	URL string
	Err error

	mu    sync.Mutex
	calls []ExportCall
}

var _ export.Exporter = (*MockExporter)(nil)

// CreateDocument implements the export.Exporter interface
func (m *MockExporter) CreateDocument(ctx context.Context, title, body string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ExportCall{Title: title, Body: body})
	m.mu.Unlock()

	if m.CreateDocumentFn != nil {
		return m.CreateDocumentFn(ctx, title, body)
	}

	return m.URL, m.Err
}

// Calls returns a copy of the recorded calls
func (m *MockExporter) Calls() []ExportCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]ExportCall(nil), m.calls...)
}

// NewMockExporterWithID creates a MockExporter that reports a document with the given ID
func NewMockExporterWithID(documentID string) *MockExporter {
	return &MockExporter{
		URL: export.DocumentURL(documentID),
	}
}

// NewMockExporterWithError creates a MockExporter that returns the specified error
func NewMockExporterWithError(err error) *MockExporter {
	return &MockExporter{
		Err: err,
	}
}
