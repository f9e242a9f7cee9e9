// Package agent answers mixed questions by routing them to the analytics
// executor, the document pipeline, or both.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/hrygo/bilens/internal/errors"
	"github.com/hrygo/bilens/internal/observability"
	"github.com/hrygo/bilens/plugin/ai/rag"
	"github.com/hrygo/bilens/plugin/ai/router"
	"github.com/hrygo/bilens/plugin/ai/timeout"
	"github.com/hrygo/bilens/server/queryengine"
)

// StructuredExecutor runs a fixed analytics intent.
type StructuredExecutor interface {
	Execute(ctx context.Context, intent string) (*queryengine.Result, error)
}

// DocumentAnswerer answers from the indexed documents.
type DocumentAnswerer interface {
	Answer(ctx context.Context, query string, topK int) (*rag.Result, error)
}

// Answer is the composed reply. BI and RAG are nil when their branch did not
// run or failed; failures are listed in Warnings.
type Answer struct {
	Mode     router.Action       `json:"mode"`
	BI       *queryengine.Result `json:"bi"`
	RAG      *rag.Result         `json:"rag"`
	Answer   string              `json:"answer"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Orchestrator routes a question and composes the branch results.
type Orchestrator struct {
	structured StructuredExecutor
	documents  DocumentAnswerer
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. metrics may be nil.
func NewOrchestrator(structured StructuredExecutor, documents DocumentAnswerer, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		structured: structured,
		documents:  documents,
		metrics:    metrics,
		logger:     slog.Default(),
	}
}

// Answer never fails. A failing branch is logged and reported as a warning
// while the other branch still answers.
func (o *Orchestrator) Answer(ctx context.Context, query string, topK int) *Answer {
	reqCtx, ok := observability.FromContext(ctx)
	if !ok {
		reqCtx = observability.NewRequestContext(o.logger, observability.PipelineAgent)
		ctx = observability.WithRequestContext(ctx, reqCtx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout.AgentTimeout)
	defer cancel()

	route := router.Classify(query)
	reqCtx.Debug("question routed",
		slog.String(observability.LogFieldRoute, string(route.Action)),
		slog.String("intent", string(route.Intent)),
		slog.Int(observability.LogFieldQueryLen, len(query)))
	if o.metrics != nil {
		o.metrics.RecordRequest(observability.PipelineAgent)
	}

	out := &Answer{Mode: route.Action}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	warn := func(branch string, err error) {
		reqCtx.Error(branch+" branch failed", err,
			slog.String(observability.LogFieldErrorCode, string(apperrors.GetCodeFromError(err, apperrors.ErrCodeServiceUnavailable))))
		if o.metrics != nil {
			o.metrics.RecordFailure(branch)
		}
		mu.Lock()
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", branch, err))
		mu.Unlock()
	}

	if route.NeedsStructured() {
		g.Go(func() error {
			res, err := o.structured.Execute(ctx, string(route.Intent))
			if err != nil {
				warn(observability.PipelineBI, err)
				return nil
			}
			out.BI = res
			return nil
		})
	}
	if route.NeedsDocument() {
		g.Go(func() error {
			res, err := o.documents.Answer(ctx, query, topK)
			if err != nil {
				warn(observability.PipelineRAG, err)
				return nil
			}
			out.RAG = res
			return nil
		})
	}
	_ = g.Wait()

	out.Answer = compose(out.BI, out.RAG)
	if o.metrics != nil {
		o.metrics.RecordDuration(observability.PipelineAgent, reqCtx.Duration())
	}
	reqCtx.Info("agent answered",
		slog.String(observability.LogFieldRoute, string(route.Action)),
		slog.Bool("bi", out.BI != nil),
		slog.Bool("rag", out.RAG != nil),
		slog.Int("warnings", len(out.Warnings)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return out
}

// compose joins the structured and document sections with a blank line.
// The structured section only appears when the query returned rows.
func compose(bi *queryengine.Result, docs *rag.Result) string {
	var parts []string
	if bi != nil && len(bi.Rows) > 0 {
		parts = append(parts, fmt.Sprintf("[BI/%s] SQL: %s", bi.Intent, bi.SQL))
	}
	if docs != nil {
		parts = append(parts, fmt.Sprintf("[RAG/%s] %s", docs.Mode, docs.Answer))
	}
	return strings.Join(parts, "\n\n")
}
