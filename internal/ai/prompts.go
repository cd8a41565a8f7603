package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/cover_letter.md
var coverLetterPromptRaw string

// CoverLetterTemplate is the parsed prompt template for cover letters.
// Parsed once at package init; reused on every Generate call.
var CoverLetterTemplate = template.Must(template.New("cover_letter").Parse(coverLetterPromptRaw))
