package agents

import (
	"fmt"
	"strings"

	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

const (
	// evidenceSourceCap bounds how many retrieved chunks a prompt renders.
	evidenceSourceCap = 8
	// excerptRunes bounds a single evidence excerpt.
	excerptRunes = 600
)

// formatEvidence renders retrieved matches as numbered prompt context.
func formatEvidence(matches []models.Match) string {
	var b strings.Builder
	for i, match := range matches {
		if i >= evidenceSourceCap {
			break
		}
		doc := match.Document
		title := ""
		if v, ok := doc.Metadata["title"].(string); ok {
			title = v
		}
		fmt.Fprintf(&b, "[Source %d] (%s) %s: %s\n\n", i+1, doc.SourceType, title, truncateRunes(doc.Content, excerptRunes))
	}
	return strings.TrimSpace(b.String())
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// firstSentence returns the text up to and including the first sentence
// break, capped so a break-free chunk cannot become a page-long claim.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, ". "); idx >= 0 {
		return text[:idx+1]
	}
	return truncateRunes(text, 200)
}
