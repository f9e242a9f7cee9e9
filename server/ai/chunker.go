package ai

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultChunkTarget is the default number of words per chunk.
	DefaultChunkTarget = 700
	// DefaultChunkOverlap is the default number of words shared by consecutive chunks.
	DefaultChunkOverlap = 120
)

// ChunkDraft is a contiguous window of a source document, before embedding.
type ChunkDraft struct {
	Text     string
	Source   string
	ChunkID  int
	Metadata map[string]string
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted document text before chunking.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ValidateChunkSizes reports sizes that make chunking degenerate.
// A non-positive target is an error. An overlap that is not smaller than the
// target is returned as a warning because the window then advances one word at a time.
func ValidateChunkSizes(targetSize, overlapSize int) (warning string, err error) {
	if targetSize <= 0 {
		return "", fmt.Errorf("chunk target must be positive, got %d", targetSize)
	}
	if overlapSize < 0 {
		return "", fmt.Errorf("chunk overlap must not be negative, got %d", overlapSize)
	}
	if overlapSize >= targetSize {
		return fmt.Sprintf("chunk overlap %d is not smaller than target %d, windows advance by one word", overlapSize, targetSize), nil
	}
	return "", nil
}

// ChunkText splits text into overlapping windows of whitespace-delimited words.
// Consecutive windows share overlapSize words. Windowing stops at the first
// window that reaches the final word, which may be shorter than targetSize.
// The "source" metadata key, when present, becomes ChunkDraft.Source.
func ChunkText(text string, targetSize, overlapSize int, metadata map[string]string) []ChunkDraft {
	words := strings.Fields(text)
	if len(words) == 0 || targetSize <= 0 {
		return nil
	}

	step := targetSize - overlapSize
	if step < 1 {
		step = 1
	}

	source := metadata["source"]
	var chunks []ChunkDraft
	for start := 0; start < len(words); start += step {
		end := min(start+targetSize, len(words))
		chunks = append(chunks, ChunkDraft{
			Text:     strings.Join(words[start:end], " "),
			Source:   source,
			ChunkID:  len(chunks),
			Metadata: copyMetadata(metadata),
		})
		// Any later window would be a suffix of this one.
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ExpectedChunkCount returns the number of windows ChunkText produces for n words.
func ExpectedChunkCount(n, targetSize, overlapSize int) int {
	if n == 0 || targetSize <= 0 {
		return 0
	}
	step := max(targetSize-overlapSize, 1)
	rest := max(n-targetSize, 0)
	return (rest+step-1)/step + 1
}

func copyMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
