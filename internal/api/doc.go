// Package api handles incoming HTTP requests, request validation and response
// formatting for the PRD generator. It adapts multipart uploads and JSON
// bodies to service.PRDService calls and maps service errors to HTTP status
// codes.
package api
