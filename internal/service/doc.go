// Package service contains the application use cases: composing a PRD prompt
// from product context and design images, calling the content generator, and
// exporting the result as a hosted document.
//
// The service layer depends only on the generation.Generator and
// export.Exporter ports, never on the Gemini or Google Docs implementations,
// so the HTTP handlers and the CLI share the same validation and defaults.
//
// Error handling:
//   - Input problems are reported with sentinel errors from the generation and
//     export packages before any outbound call is made
//   - Provider failures are returned unchanged; their messages are already
//     safe to show to a user
//   - The API layer maps these errors to HTTP status codes
package service
