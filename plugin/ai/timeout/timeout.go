// Package timeout defines centralized timeout constants for the answering pipeline.
package timeout

import "time"

const (
	// GenerationTimeout bounds a single call to the generation endpoint.
	GenerationTimeout = 30 * time.Second

	// EmbeddingTimeout is the timeout for one embedding request.
	EmbeddingTimeout = 30 * time.Second

	// VectorBackendTimeout bounds a single request to a remote vector store.
	VectorBackendTimeout = 15 * time.Second

	// QueryTimeout bounds a single analytics query.
	QueryTimeout = 10 * time.Second

	// AgentTimeout is the upper bound for a complete agent answer.
	AgentTimeout = 2 * time.Minute

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)
