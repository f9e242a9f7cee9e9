package agent

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/internal/observability"
	"github.com/hrygo/bilens/plugin/ai"
	"github.com/hrygo/bilens/plugin/ai/rag"
	"github.com/hrygo/bilens/plugin/ai/router"
	"github.com/hrygo/bilens/plugin/ai/vector"
	"github.com/hrygo/bilens/server/queryengine"
)

type fakeExecutor struct {
	rows  []map[string]any
	err   error
	calls atomic.Int32
}

func (f *fakeExecutor) Execute(_ context.Context, intent string) (*queryengine.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &queryengine.Result{Intent: intent, SQL: "SELECT " + intent, Rows: f.rows}, nil
}

type fakeDocs struct {
	err   error
	calls atomic.Int32
}

func (f *fakeDocs) Answer(_ context.Context, query string, _ int) (*rag.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &rag.Result{Query: query, Answer: "from the docs", Mode: rag.ModeExtractive, Citations: []rag.Citation{}}, nil
}

var oneRow = []map[string]any{{"total_sales": int64(10)}}

func TestOrchestrator_DocumentOnly(t *testing.T) {
	exec, docs := &fakeExecutor{rows: oneRow}, &fakeDocs{}
	out := NewOrchestrator(exec, docs, nil).Answer(context.Background(), "What is this about?", 5)

	assert.Equal(t, router.ActionDocument, out.Mode)
	assert.Nil(t, out.BI)
	require.NotNil(t, out.RAG)
	assert.Equal(t, "[RAG/extractive] from the docs", out.Answer)
	assert.Zero(t, exec.calls.Load())
	assert.Empty(t, out.Warnings)
}

func TestOrchestrator_Structured(t *testing.T) {
	exec, docs := &fakeExecutor{rows: oneRow}, &fakeDocs{}
	out := NewOrchestrator(exec, docs, nil).Answer(context.Background(), "ventas por región y producto", 5)

	assert.Equal(t, router.ActionStructured, out.Mode)
	require.NotNil(t, out.BI)
	assert.Equal(t, "sales_by_region", out.BI.Intent)
	assert.Nil(t, out.RAG)
	assert.Equal(t, "[BI/sales_by_region] SQL: SELECT sales_by_region", out.Answer)
	assert.Zero(t, docs.calls.Load())
}

func TestOrchestrator_StructuredWithoutRows(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{}}
	out := NewOrchestrator(exec, &fakeDocs{}, nil).Answer(context.Background(), "ventas totales", 5)

	require.NotNil(t, out.BI)
	assert.Empty(t, out.Answer)
}

func TestOrchestrator_Both(t *testing.T) {
	exec, docs := &fakeExecutor{rows: oneRow}, &fakeDocs{}
	out := NewOrchestrator(exec, docs, nil).Answer(context.Background(), "ventas y qué dice el documento", 5)

	assert.Equal(t, router.ActionBoth, out.Mode)
	require.NotNil(t, out.BI)
	require.NotNil(t, out.RAG)
	assert.Equal(t, "sales_total", out.BI.Intent)
	parts := strings.Split(out.Answer, "\n\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "[BI/sales_total] SQL: "))
	assert.Equal(t, "[RAG/extractive] from the docs", parts[1])
}

func TestOrchestrator_BranchIsolation(t *testing.T) {
	t.Run("structured failure keeps documents", func(t *testing.T) {
		metrics := observability.NewMetrics(10)
		exec := &fakeExecutor{err: apperrors.QueryFailed("boom", assert.AnError)}
		out := NewOrchestrator(exec, &fakeDocs{}, metrics).Answer(context.Background(), "ventas según el documento", 5)

		assert.Nil(t, out.BI)
		require.NotNil(t, out.RAG)
		assert.Equal(t, "[RAG/extractive] from the docs", out.Answer)
		require.Len(t, out.Warnings, 1)
		assert.Contains(t, out.Warnings[0], "QUERY_FAILED")
		snap := metrics.Snapshot()
		assert.Equal(t, int64(1), snap.Pipelines[observability.PipelineBI].ErrorCount)
	})

	t.Run("document failure keeps structured", func(t *testing.T) {
		docs := &fakeDocs{err: apperrors.VectorBackendUnavailable("down", assert.AnError)}
		out := NewOrchestrator(&fakeExecutor{rows: oneRow}, docs, nil).Answer(context.Background(), "ventas según el documento", 5)

		require.NotNil(t, out.BI)
		assert.Nil(t, out.RAG)
		assert.Equal(t, "[BI/sales_total] SQL: SELECT sales_total", out.Answer)
		require.Len(t, out.Warnings, 1)
	})

	t.Run("both fail", func(t *testing.T) {
		out := NewOrchestrator(&fakeExecutor{err: assert.AnError}, &fakeDocs{err: assert.AnError}, nil).
			Answer(context.Background(), "ventas según el documento", 5)
		assert.Nil(t, out.BI)
		assert.Nil(t, out.RAG)
		assert.Empty(t, out.Answer)
		assert.Len(t, out.Warnings, 2)
	})
}

func TestOrchestrator_RealPipeline(t *testing.T) {
	ctx := context.Background()
	embedder, err := ai.NewEmbeddingService(&ai.EmbeddingConfig{Provider: "local", Dimensions: 128})
	require.NoError(t, err)
	idx, err := vector.OpenFlatIndex("", embedder.Dimensions())
	require.NoError(t, err)

	text := "This is a proof of concept about example content."
	v, err := embedder.Embed(ctx, text)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []vector.Entry{{Text: text, Source: "poc.txt", ChunkID: 0, Vector: v}}))

	gen, err := rag.NewGenerator(&ai.GeneratorConfig{Mode: "extractive"}, nil, nil)
	require.NoError(t, err)
	pipeline := rag.NewPipeline(rag.NewRetriever(embedder, idx), gen, nil)

	out := NewOrchestrator(&fakeExecutor{rows: oneRow}, pipeline, nil).Answer(ctx, "What is this about?", 5)
	assert.Equal(t, router.ActionDocument, out.Mode)
	assert.Nil(t, out.BI)
	require.NotNil(t, out.RAG)
	require.Len(t, out.RAG.Citations, 1)
	assert.True(t, strings.HasPrefix(out.Answer, "[RAG/extractive] "))
	assert.Contains(t, out.Answer, "proof of concept")
}
