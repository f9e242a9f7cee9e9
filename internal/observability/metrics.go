package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Pipeline names used as metric keys.
const (
	PipelineRAG   = "rag"
	PipelineAgent = "agent"
	PipelineBI    = "bi"
)

// Metrics collects counters and durations for the answering pipelines.
type Metrics struct {
	mu sync.Mutex

	requestTotal       atomic.Int64
	requestFailed      atomic.Int64
	generatorFallbacks atomic.Int64

	pipelines map[string]*PipelineMetrics

	// Ring of recent durations, oldest first.
	durations    []time.Duration
	maxDurations int
}

// PipelineMetrics represents metrics for one pipeline kind.
type PipelineMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		pipelines:    make(map[string]*PipelineMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records a request.
func (m *Metrics) RecordRequest(pipeline string) {
	m.requestTotal.Add(1)
	m.pipeline(pipeline).executionCount.Add(1)
}

// RecordFailure records a failed request or a failed branch.
func (m *Metrics) RecordFailure(pipeline string) {
	m.requestFailed.Add(1)
	m.pipeline(pipeline).errorCount.Add(1)
}

// RecordFallback records a generator call that degraded to extractive mode.
func (m *Metrics) RecordFallback() {
	m.generatorFallbacks.Add(1)
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(pipeline string, duration time.Duration) {
	pm := m.pipeline(pipeline)
	pm.totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// pipeline gets or creates the metrics for a pipeline kind.
func (m *Metrics) pipeline(name string) *PipelineMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm, ok := m.pipelines[name]
	if !ok {
		pm = &PipelineMetrics{}
		m.pipelines[name] = pm
	}
	return pm
}

// Pipelines returns the recorded pipeline names in sorted order.
func (m *Metrics) Pipelines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.pipelines))
	for name := range m.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.generatorFallbacks.Store(0)

	m.mu.Lock()
	m.pipelines = make(map[string]*PipelineMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	pipelines := make(map[string]*PipelineMetricsSnapshot, len(m.pipelines))
	for name, pm := range m.pipelines {
		count := pm.executionCount.Load()
		total := pm.totalDuration.Load()
		var avg int64
		if count > 0 {
			avg = total / count
		}
		pipelines[name] = &PipelineMetricsSnapshot{
			ExecutionCount:  count,
			TotalDuration:   total,
			ErrorCount:      pm.errorCount.Load(),
			AverageDuration: avg,
		}
	}

	var p95 time.Duration
	if n := len(m.durations); n > 0 {
		sorted := append([]time.Duration(nil), m.durations...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		p95 = sorted[(n*95-1)/100]
	}

	return &MetricsSnapshot{
		RequestTotal:       m.requestTotal.Load(),
		RequestFailed:      m.requestFailed.Load(),
		GeneratorFallbacks: m.generatorFallbacks.Load(),
		Pipelines:          pipelines,
		DurationCount:      len(m.durations),
		P95DurationMs:      p95.Milliseconds(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal       int64                               `json:"request_total"`
	RequestFailed      int64                               `json:"request_failed"`
	GeneratorFallbacks int64                               `json:"generator_fallbacks"`
	Pipelines          map[string]*PipelineMetricsSnapshot `json:"pipelines"`
	DurationCount      int                                 `json:"duration_count"`
	P95DurationMs      int64                               `json:"p95_duration_ms"`
}

// PipelineMetricsSnapshot represents metrics for a specific pipeline.
type PipelineMetricsSnapshot struct {
	ExecutionCount  int64 `json:"execution_count"`
	TotalDuration   int64 `json:"total_duration_ms"`
	ErrorCount      int64 `json:"error_count"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
