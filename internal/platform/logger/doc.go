// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured
// logging with configurable log levels, emitting JSON for the HTTP server and
// human-readable text for the command line.
package logger
