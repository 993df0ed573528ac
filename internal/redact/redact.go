// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or returned in error responses. It targets the secrets this
// application handles: Gemini API keys, OAuth access and refresh tokens, and OAuth
// client secrets, which can leak through transport errors that echo request URLs or
// through provider error bodies.
package redact

import "regexp"

// Constants for redaction placeholders
const (
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules are applied in order; earlier rules keep their prefix groups so later,
// broader rules do not double-redact.
var rules = []rule{
	// key=... in a URL query, as used by the Gemini REST endpoint
	{regexp.MustCompile(`([?&](?:key|api_key|access_token)=)[^&\s"']+`), "${1}" + RedactedKeyPlaceholder},
	// Google API keys
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), RedactedKeyPlaceholder},
	// Google OAuth access tokens
	{regexp.MustCompile(`ya29\.[0-9A-Za-z_\-.]+`), RedactedTokenPlaceholder},
	// Google OAuth refresh tokens
	{regexp.MustCompile(`1//[0-9A-Za-z_\-]{20,}`), RedactedTokenPlaceholder},
	// JWTs (id tokens)
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedJWTPlaceholder},
	// Authorization headers
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/=]{8,}`), "${1}" + RedactedTokenPlaceholder},
	// key/value pairs in JSON, form bodies or log lines
	{
		regexp.MustCompile(`(?i)((?:api[_-]?key|client[_-]?secret|refresh[_-]?token|access[_-]?token|password)["']?\s*[:=]\s*["']?)[^"'&\s,}\[]{4,}`),
		"${1}" + RedactedCredentialPlaceholder,
	},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
