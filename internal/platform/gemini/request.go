package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/prdgen/internal/generation"
	"google.golang.org/genai"
)

// Fixed generation parameters applied to every call.
const (
	Temperature     = 0.7
	TopK            = 40
	TopP            = 0.95
	MaxOutputTokens = 8192
)

// generationConfig mirrors the REST "generationConfig" object.
type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateContentRequest is the body of a generateContent call.
type generateContentRequest struct {
	Contents         []*genai.Content `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

var defaultGenerationConfig = generationConfig{
	Temperature:     Temperature,
	TopK:            TopK,
	TopP:            TopP,
	MaxOutputTokens: MaxOutputTokens,
}

// buildParts returns the text part (when present) followed by one inline-data
// part per image, preserving image order.
func buildParts(req generation.Request) []*genai.Part {
	parts := make([]*genai.Part, 0, 1+len(req.Images))
	if req.PromptText != "" {
		parts = append(parts, genai.NewPartFromText(req.PromptText))
	}
	for _, img := range req.Images {
		// encoding/json emits []byte as standard base64.
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	return parts
}

// buildRequestBody serializes a single-content generateContent request.
func buildRequestBody(req generation.Request) ([]byte, error) {
	payload := generateContentRequest{
		Contents:         []*genai.Content{{Parts: buildParts(req)}},
		GenerationConfig: defaultGenerationConfig,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generateContent request: %w", err)
	}
	return body, nil
}
