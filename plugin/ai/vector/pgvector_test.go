package vector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/bilens/internal/errors"
)

func TestPGVectorIndex_RejectsBadCollectionName(t *testing.T) {
	for _, name := range []string{"", "Docs", "docs; DROP TABLE x", "1docs"} {
		_, err := NewPGVectorIndex(context.Background(), "postgres://invalid", name, 2)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid), name)
	}
}

// TestPGVectorIndex_Roundtrip needs a PostgreSQL with the vector extension.
func TestPGVectorIndex_Roundtrip(t *testing.T) {
	dsn := os.Getenv("BILENS_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("BILENS_POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	collection := fmt.Sprintf("test_%d", time.Now().UnixNano())

	idx, err := NewPGVectorIndex(ctx, dsn, collection, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = idx.db.Exec(`DROP TABLE IF EXISTS ` + idx.table)
		idx.Close()
	})

	hits, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Add(ctx, []Entry{
		{Text: "east", Source: "a.md", ChunkID: 0, Vector: []float32{1, 0}},
		{Text: "north", Source: "a.md", ChunkID: 1, Vector: []float32{0, 1}},
	}))

	hits, err = idx.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "north", hits[0].Entry.Text)
	assert.InDelta(t, 1, hits[0].Score, 1e-6)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = idx.Add(ctx, []Entry{{Text: "bad", Vector: []float32{1, 0, 0}}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}
