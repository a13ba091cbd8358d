package pipeline

import (
	"regexp"
	"strings"
)

// Models drift into verbose citation styles no matter how firmly the prompt
// forbids them. These patterns collapse the common offenders back to bare
// [n] markers matching the assembled context's numbering.
var (
	// Trailing "References:" or "Sources:" section.
	referencesSection = regexp.MustCompile(`(?is)\n\s*(references?|sources?):.*$`)

	// "[Source 2: Some Title]" style.
	verboseSourceCitation = regexp.MustCompile(`\[Source\s+(\d+):\s*[^\]]+\]`)

	// "[2: Some Title]" style.
	titledCitation = regexp.MustCompile(`\[(\d+):\s*[^\]]+\]`)

	// "[2] Some Title" trailing at line end.
	inlineTitleAfterMarker = regexp.MustCompile(`(?m)\[(\d+)\]\s+[^\[\n]+$`)

	// Runs of three or more newlines.
	excessNewlines = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// normalizeCitations strips verbose citation artifacts from a generated
// answer, leaving only bare bracketed markers.
func normalizeCitations(answer string) string {
	cleaned := referencesSection.ReplaceAllString(answer, "")
	cleaned = verboseSourceCitation.ReplaceAllString(cleaned, "[$1]")
	cleaned = titledCitation.ReplaceAllString(cleaned, "[$1]")
	cleaned = inlineTitleAfterMarker.ReplaceAllString(cleaned, "[$1]")
	cleaned = excessNewlines.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
