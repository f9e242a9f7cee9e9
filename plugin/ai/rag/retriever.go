// Package rag retrieves document passages and turns them into grounded, cited answers.
package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/plugin/ai"
	"github.com/hrygo/bilens/plugin/ai/vector"
)

// Passage is a retrieved chunk with its backend score.
type Passage struct {
	Score   float32 `json:"score"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	ChunkID int     `json:"chunk_id"`
}

// Retriever embeds a query and reads the nearest passages from the index.
type Retriever struct {
	embedder ai.EmbeddingService
	index    vector.Index
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder ai.EmbeddingService, index vector.Index) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns up to topK passages in rank order. A blank query yields no passages.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Passage, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []Passage{}, nil
	}

	start := time.Now()
	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.EmbeddingFailed("embed query", err)
	}
	if isZero(qv) {
		slog.Debug("query has no embeddable content", "query_len", len(query))
		return []Passage{}, nil
	}

	hits, err := r.index.Search(ctx, qv, topK)
	if err != nil {
		return nil, err
	}

	passages := make([]Passage, len(hits))
	for i, h := range hits {
		passages[i] = Passage{
			Score:   h.Score,
			Text:    h.Entry.Text,
			Source:  h.Entry.Source,
			ChunkID: h.Entry.ChunkID,
		}
	}

	slog.Debug("retrieved passages",
		"backend", r.index.Backend(),
		"top_k", topK,
		"hits", len(passages),
		"latency_ms", time.Since(start).Milliseconds())
	return passages, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
