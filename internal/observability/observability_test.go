package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics(10)

	m.RecordRequest(PipelineRAG)
	m.RecordRequest(PipelineRAG)
	m.RecordRequest(PipelineAgent)
	m.RecordFailure(PipelineAgent)
	m.RecordFallback()
	m.RecordDuration(PipelineRAG, 10*time.Millisecond)
	m.RecordDuration(PipelineRAG, 30*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.RequestTotal)
	assert.Equal(t, int64(1), snap.RequestFailed)
	assert.Equal(t, int64(1), snap.GeneratorFallbacks)
	assert.Equal(t, 2, snap.DurationCount)
	assert.Equal(t, int64(20), snap.Pipelines[PipelineRAG].AverageDuration)
	assert.Equal(t, int64(1), snap.Pipelines[PipelineAgent].ErrorCount)
	assert.InDelta(t, 66.67, snap.SuccessRate(), 0.01)
	assert.Equal(t, []string{PipelineAgent, PipelineRAG}, m.Pipelines())
}

func TestMetrics_DurationRingIsBounded(t *testing.T) {
	m := NewMetrics(3)
	for i := 1; i <= 5; i++ {
		m.RecordDuration(PipelineBI, time.Duration(i)*time.Millisecond)
	}
	snap := m.Snapshot()
	assert.Equal(t, 3, snap.DurationCount)
	assert.Equal(t, int64(5), snap.P95DurationMs)

	m.Reset()
	assert.Equal(t, 0, m.Snapshot().DurationCount)
	assert.Empty(t, m.Pipelines())
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m := NewMetrics(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRequest(PipelineRAG)
			m.RecordDuration(PipelineRAG, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), m.Snapshot().RequestTotal)
}

func TestRequestContext_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reqCtx := NewRequestContextWithID(logger, "req-1", PipelineAgent)
	reqCtx.Info("routed", slog.String(LogFieldRoute, "both"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, PipelineAgent, entry[LogFieldPipeline])
	assert.Equal(t, "both", entry[LogFieldRoute])

	ctx := WithRequestContext(context.Background(), reqCtx)
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestNewRequestContext_GeneratesID(t *testing.T) {
	a := NewRequestContext(nil, PipelineRAG)
	b := NewRequestContext(nil, PipelineRAG)
	assert.NotEmpty(t, a.RequestID)
	assert.NotEqual(t, a.RequestID, b.RequestID)
}
