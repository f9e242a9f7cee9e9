package rag

import (
	"context"
	"time"

	"github.com/hrygo/bilens/internal/observability"
)

// DefaultTopK is used when callers pass a non-positive topK.
const DefaultTopK = 5

// Citation points at one retrieved passage. IDs are 1-based in rank order.
type Citation struct {
	ID      int     `json:"id"`
	Source  string  `json:"source"`
	ChunkID int     `json:"chunk_id"`
	Score   float32 `json:"score"`
}

// Result is a document answer with its provenance.
type Result struct {
	Query     string     `json:"query"`
	Answer    string     `json:"answer"`
	Mode      Mode       `json:"mode"`
	Citations []Citation `json:"citations"`
}

// Pipeline answers questions from the document store.
type Pipeline struct {
	retriever *Retriever
	generator *Generator
	metrics   *observability.Metrics
}

// NewPipeline creates a new Pipeline. metrics may be nil.
func NewPipeline(retriever *Retriever, generator *Generator, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{retriever: retriever, generator: generator, metrics: metrics}
}

// Answer retrieves passages for query and generates a cited answer.
// Citations cover every retrieved passage, whether or not the answer uses it.
func (p *Pipeline) Answer(ctx context.Context, query string, topK int) (*Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordRequest(observability.PipelineRAG)
		defer func() { p.metrics.RecordDuration(observability.PipelineRAG, time.Since(start)) }()
	}

	passages, err := p.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordFailure(observability.PipelineRAG)
		}
		return nil, err
	}

	answer, mode := p.generator.Generate(ctx, query, passages)

	citations := make([]Citation, len(passages))
	for i, ps := range passages {
		citations[i] = Citation{ID: i + 1, Source: ps.Source, ChunkID: ps.ChunkID, Score: ps.Score}
	}

	return &Result{
		Query:     query,
		Answer:    answer,
		Mode:      mode,
		Citations: citations,
	}, nil
}
