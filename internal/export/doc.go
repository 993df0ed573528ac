// Package export defines the document export port and its error taxonomy.
// Concrete exporters live under internal/platform.
package export
