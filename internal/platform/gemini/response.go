package gemini

import (
	"fmt"
	"strings"

	"github.com/phrazzld/prdgen/internal/generation"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// extractText returns candidates[0].content.parts[0].text from a
// generateContent response body.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: body is not valid JSON", generation.ErrInvalidResponse)
	}

	candidates := gjson.GetBytes(body, "candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		return "", generation.ErrNoCandidates
	}

	parts := candidates.Get("0.content.parts")
	if !parts.IsArray() || len(parts.Array()) == 0 {
		return "", generation.ErrInvalidResponse
	}

	text := parts.Get("0.text")
	if text.Type != gjson.String {
		return "", fmt.Errorf("%w: first part carries no text", generation.ErrInvalidResponse)
	}

	return text.String(), nil
}

// finishReason reports candidates[0].finishReason, or "" when absent.
func finishReason(body []byte) string {
	return gjson.GetBytes(body, "candidates.0.finishReason").String()
}

// errorDetail pretty-prints the "error" member of a JSON error body. It returns
// "" when the body is not JSON or has no such member.
func errorDetail(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}

	detail := gjson.GetBytes(body, "error")
	if !detail.Exists() {
		return ""
	}

	return strings.TrimSpace(string(pretty.Pretty([]byte(detail.Raw))))
}
