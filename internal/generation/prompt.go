package generation

import "strings"

const (
	prdInstruction = "Generate a detailed Product Requirements Document (PRD) based on the following context. " +
		"Use standard PRD sections like Problem Statement, Goals, User Stories, Functional Requirements, " +
		"and Non-Functional Requirements. Format it in Markdown."

	designsHint = "Also consider the attached design mockups/screenshots for UI/UX requirements."

	imagesOnlyPrompt = "Please analyze these images and create a PRD."
)

// BuildPRDPrompt composes the PRD instruction for the given product context.
// imageCount only decides whether the designs hint is appended, or, without
// any context, which images-only instruction is used.
func BuildPRDPrompt(productContext string, imageCount int) (string, error) {
	productContext = strings.TrimSpace(productContext)

	switch {
	case productContext == "" && imageCount == 0:
		return "", ErrEmptyRequest
	case productContext == "":
		return imagesOnlyPrompt, nil
	}

	var b strings.Builder
	b.WriteString(prdInstruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(productContext)
	if imageCount > 0 {
		b.WriteString("\n\n")
		b.WriteString(designsHint)
	}
	return b.String(), nil
}
