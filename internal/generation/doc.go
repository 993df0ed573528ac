// Package generation provides the interface and shared types for interacting
// with external AI/LLM services for content generation. It abstracts the
// details of LLM API integration (Gemini), allowing the application to turn
// free-form product context and design screenshots into a Product
// Requirements Document without coupling to a specific external service.
//
// The package owns the Generator interface, the request and image types that
// cross it, the PRD prompt wording, and the error taxonomy every Generator
// implementation reports through.
package generation
