package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/plugin/ai/vector"
)

// mockEmbeddingService is a mock implementation of ai.EmbeddingService for testing.
type mockEmbeddingService struct {
	dimensions     int
	batchCallCount atomic.Int32
	failOnBatch    int32
	short          bool
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	v := make([]float32, m.dimensions)
	v[0] = 1
	return v, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := m.batchCallCount.Add(1)
	if m.failOnBatch > 0 && n == m.failOnBatch {
		return nil, errors.New("embedding service error")
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, _ := m.Embed(ctx, text)
		out = append(out, v)
	}
	if m.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return m.dimensions }

func (m *mockEmbeddingService) Model() string { return "mock" }

func drafts(n int) []ChunkDraft {
	out := make([]ChunkDraft, n)
	for i := range out {
		out[i] = ChunkDraft{Text: "chunk", Source: "doc.md", ChunkID: i}
	}
	return out
}

func TestEmbedder_Batches(t *testing.T) {
	svc := &mockEmbeddingService{dimensions: 4}
	idx, err := vector.OpenFlatIndex("", 4)
	require.NoError(t, err)

	e := NewEmbedder(svc, idx, 3)
	require.NoError(t, e.EmbedChunks(context.Background(), drafts(7)))

	assert.Equal(t, int32(3), svc.batchCallCount.Load())
	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 7)
	assert.Equal(t, "doc.md", hits[0].Entry.Source)
}

func TestEmbedder_Empty(t *testing.T) {
	svc := &mockEmbeddingService{dimensions: 4}
	idx, err := vector.OpenFlatIndex("", 4)
	require.NoError(t, err)

	require.NoError(t, NewEmbedder(svc, idx, 0).EmbedChunks(context.Background(), nil))
	assert.Zero(t, svc.batchCallCount.Load())
}

func TestEmbedder_FailureLeavesIndexUntouched(t *testing.T) {
	tests := []struct {
		name string
		svc  *mockEmbeddingService
	}{
		{"provider error", &mockEmbeddingService{dimensions: 4, failOnBatch: 2}},
		{"short response", &mockEmbeddingService{dimensions: 4, short: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := vector.OpenFlatIndex("", 4)
			require.NoError(t, err)

			err = NewEmbedder(tt.svc, idx, 2).EmbedChunks(context.Background(), drafts(5))
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingFailed))

			n, err := idx.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestEmbedder_Cancelled(t *testing.T) {
	idx, err := vector.OpenFlatIndex("", 4)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewEmbedder(&mockEmbeddingService{dimensions: 4}, idx, 2).EmbedChunks(ctx, drafts(3))
	assert.ErrorIs(t, err, context.Canceled)
}
