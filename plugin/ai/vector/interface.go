// Package vector provides the vector index used to store and search document chunks.
package vector

import "context"

// Index stores chunk embeddings with their payload and answers nearest-neighbor queries.
// Entries are append-only and keep their insertion position for the lifetime of the index.
type Index interface {
	// Add appends entries. All vectors must share the index dimension.
	Add(ctx context.Context, entries []Entry) error

	// Search returns up to topK hits best-first. topK above the entry count
	// returns every entry; an empty index returns an empty slice.
	Search(ctx context.Context, query []float32, topK int) ([]Hit, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Dimension returns the vector dimension, or 0 if not yet known.
	Dimension() int

	// Backend names the implementation, e.g. "flat".
	Backend() string

	// Close releases resources held by the index.
	Close() error
}

// Entry is one chunk with its embedding.
type Entry struct {
	Text    string    `json:"text"`
	Source  string    `json:"source"`
	ChunkID int       `json:"chunk_id"`
	Vector  []float32 `json:"-"`
}

// Hit is a search result. Score semantics depend on the backend:
// flat and pgvector report inner-product similarity (higher is better),
// qdrant reports cosine distance (lower is better).
type Hit struct {
	Score float32
	Entry Entry
}
