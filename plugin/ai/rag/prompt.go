package rag

import (
	"fmt"
	"strings"
)

const (
	// maxEvidence is how many passages the extractive answer quotes.
	maxEvidence = 3
	// maxEvidenceChars bounds each quoted passage.
	maxEvidenceChars = 500

	groundingInstructions = "You answer precisely using ONLY the passages provided.\n" +
		"If information is missing, admit the uncertainty. Cite sources at the end as [n].\n\n"

	extractiveHeader  = "Answer based on local evidence (extractive mode, no generative model):"
	extractiveClosing = "Conclusion: this answer was built by extracting the most relevant fragments of your documents."
)

// BuildPrompt renders the grounding prompt with passages numbered from 1.
func BuildPrompt(query string, passages []Passage) string {
	var sb strings.Builder
	sb.WriteString(groundingInstructions)
	sb.WriteString("Question:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nPassages:\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] (source: %s chunk:%d) %s\n\n", i+1, p.Source, p.ChunkID, p.Text)
	}
	return sb.String()
}

// ExtractiveAnswer quotes the top passages verbatim with their provenance.
func ExtractiveAnswer(passages []Passage) string {
	lines := []string{extractiveHeader}
	for i, p := range passages {
		if i == maxEvidence {
			break
		}
		lines = append(lines, fmt.Sprintf("- Evidence %d: %s (source: %s, chunk %d)",
			i+1, truncate(p.Text, maxEvidenceChars), p.Source, p.ChunkID))
	}
	lines = append(lines, extractiveClosing)
	return strings.Join(lines, "\n")
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + " [...]"
}
