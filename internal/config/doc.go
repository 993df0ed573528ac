// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, .env files, config files). It
// provides type-safe access to the settings needed by the generator, the
// document exporter and the HTTP server while keeping configuration details
// separate from business logic.
package config
