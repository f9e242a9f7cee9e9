package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/hrygo/bilens/internal/errors"
	pluginai "github.com/hrygo/bilens/plugin/ai"
	"github.com/hrygo/bilens/plugin/ai/vector"
)

// DefaultBatchSize is the number of chunks sent per embedding request.
const DefaultBatchSize = 32

// Embedder embeds chunk drafts and appends them to a vector index.
type Embedder struct {
	service   pluginai.EmbeddingService
	index     vector.Index
	batchSize int
}

// NewEmbedder creates a new embedder. A non-positive batchSize uses DefaultBatchSize.
func NewEmbedder(service pluginai.EmbeddingService, index vector.Index, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		service:   service,
		index:     index,
		batchSize: batchSize,
	}
}

// EmbedChunks embeds chunks batch by batch and appends all of them to the
// index in one call, so a failed run leaves the index untouched.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []ChunkDraft) error {
	if len(chunks) == 0 {
		return nil
	}

	start := time.Now()
	entries := make([]vector.Entry, 0, len(chunks))
	for i := 0; i < len(chunks); i += e.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+e.batchSize, len(chunks))
		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vectors, err := e.service.EmbedBatch(ctx, texts)
		if err != nil {
			return apperrors.EmbeddingFailed(fmt.Sprintf("embed chunks %d-%d", i, end-1), err)
		}
		if len(vectors) != len(batch) {
			return apperrors.EmbeddingFailed(fmt.Sprintf("expected %d vectors, got %d", len(batch), len(vectors)), nil)
		}

		for j, c := range batch {
			entries = append(entries, vector.Entry{
				Text:    c.Text,
				Source:  c.Source,
				ChunkID: c.ChunkID,
				Vector:  vectors[j],
			})
		}
		slog.Debug("batch embedded", "count", len(batch), "progress", fmt.Sprintf("%d/%d", end, len(chunks)))
	}

	if err := e.index.Add(ctx, entries); err != nil {
		return err
	}

	slog.Info("chunks embedded",
		"chunks", len(chunks),
		"model", e.service.Model(),
		"backend", e.index.Backend(),
		"latency_ms", time.Since(start).Milliseconds())
	return nil
}
