package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunkText_Count(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		target  int
		overlap int
		want    int
	}{
		{"empty", 0, 700, 120, 0},
		{"shorter than target", 5, 700, 120, 1},
		{"exactly target", 700, 700, 120, 1},
		{"one past target", 701, 700, 120, 2},
		{"ten words target four overlap one", 10, 4, 1, 3},
		{"ten words target four overlap two", 10, 4, 2, 4},
		{"no overlap", 12, 4, 0, 3},
		{"overlap equals target", 6, 3, 3, 4},
		{"overlap above target", 6, 3, 5, 4},
		{"large document", 2000, 700, 120, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(words(tt.n), tt.target, tt.overlap, nil)
			assert.Len(t, chunks, tt.want)
			assert.Equal(t, tt.want, ExpectedChunkCount(tt.n, tt.target, tt.overlap))
		})
	}
}

func TestChunkText_OverlapLaw(t *testing.T) {
	const target, overlap = 10, 3
	chunks := ChunkText(words(47), target, overlap, nil)
	require.NotEmpty(t, chunks)

	for i := 0; i+1 < len(chunks); i++ {
		cur := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		if len(cur) < target || len(next) < target {
			continue
		}
		assert.Equal(t, cur[target-overlap:], next[:overlap], "chunk %d and %d", i, i+1)
	}
}

func TestChunkText_IDsAndMetadata(t *testing.T) {
	meta := map[string]string{"source": "data/raw/manual.md", "lang": "es"}
	chunks := ChunkText(words(25), 10, 2, meta)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		assert.Equal(t, "data/raw/manual.md", c.Source)
		assert.Equal(t, "es", c.Metadata["lang"])
	}

	// Callers mutating their map must not affect produced drafts.
	meta["lang"] = "en"
	assert.Equal(t, "es", chunks[0].Metadata["lang"])

	last := strings.Fields(chunks[len(chunks)-1].Text)
	assert.Equal(t, "w24", last[len(last)-1])
}

func TestChunkText_Deterministic(t *testing.T) {
	text := "uno dos  tres\tcuatro\ncinco seis siete ocho nueve diez once"
	a := ChunkText(text, 4, 1, nil)
	b := ChunkText(text, 4, 1, nil)
	assert.Equal(t, a, b)
	assert.Equal(t, "uno dos tres cuatro", a[0].Text)
	assert.Equal(t, "cuatro cinco seis siete", a[1].Text)
}

func TestValidateChunkSizes(t *testing.T) {
	tests := []struct {
		name        string
		target      int
		overlap     int
		wantWarning bool
		wantErr     bool
	}{
		{"valid", 700, 120, false, false},
		{"zero overlap", 10, 0, false, false},
		{"overlap equals target", 10, 10, true, false},
		{"overlap above target", 10, 15, true, false},
		{"zero target", 0, 0, false, true},
		{"negative overlap", 10, -1, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warning, err := ValidateChunkSizes(tt.target, tt.overlap)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantWarning, warning != "")
		})
	}
}

func TestCleanText(t *testing.T) {
	in := "  Title\r\rBody   with\t\ttabs\n\n\n\n\nNext  paragraph  "
	assert.Equal(t, "Title\n\nBody with tabs\n\nNext paragraph", CleanText(in))
	assert.Equal(t, "", CleanText(" \t\r\n "))
}
