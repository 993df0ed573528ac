// Package gemini provides an implementation of the generation.Generator interface
// that calls Google's Gemini generateContent REST endpoint.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's PRD workflow to Google's external Gemini AI
// service without exposing the details of that service to the core application.
//
// Key components:
//
// 1. Client:
//   - Implements the generation.Generator interface
//   - Authenticates with an API key carried in the "key" query parameter
//   - Sends one multimodal request: a text part followed by one inline-data
//     part per image, in upload order
//
// 2. Request construction:
//   - Uses the genai Content/Part types for the "contents" payload
//   - Applies fixed generation parameters (temperature, top-k, top-p,
//     output length cap) to every call
//
// 3. Response processing:
//   - Extracts the first candidate's first text part
//   - Reports missing candidates or a malformed structure as errors
//
// 4. Error handling:
//   - Retries HTTP 429 with exponential backoff (2s, 4s, 8s by default)
//   - Reports other statuses with the provider's pretty-printed error detail
//   - Keeps the API key out of error messages and logs
package gemini
