// Package bootstrap wires the answering pipelines from a profile.
package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/bilens/internal/observability"
	"github.com/hrygo/bilens/internal/profile"
	"github.com/hrygo/bilens/plugin/ai"
	"github.com/hrygo/bilens/plugin/ai/agent"
	"github.com/hrygo/bilens/plugin/ai/rag"
	"github.com/hrygo/bilens/plugin/ai/vector"
	serverai "github.com/hrygo/bilens/server/ai"
	"github.com/hrygo/bilens/server/queryengine"
	"github.com/hrygo/bilens/server/runner/ingest"
	"github.com/hrygo/bilens/store"
	"github.com/hrygo/bilens/store/db"
)

const (
	queryCacheSize = 512
	queryCacheTTL  = 30 * time.Minute
)

// App holds every long-lived component. Build it with New and release it with Close.
type App struct {
	Profile      *profile.Profile
	Config       *ai.Config
	Store        *store.Store
	Embedding    ai.EmbeddingService
	Index        vector.Index
	Pipeline     *rag.Pipeline
	Executor     *queryengine.Executor
	Orchestrator *agent.Orchestrator
	Ingest       *ingest.Runner
	Metrics      *observability.Metrics
}

// New validates profile and constructs the application. The analytics store
// is migrated and seeded on the way.
func New(ctx context.Context, p *profile.Profile) (*App, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid profile")
	}
	cfg := ai.NewConfigFromProfile(p)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline config")
	}

	app := &App{
		Profile: p,
		Config:  cfg,
		Metrics: observability.NewMetrics(0),
	}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	app.Store = store.New(dbDriver, p)
	if err := app.Store.Migrate(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to migrate analytics store")
	}
	if _, err := app.Store.Seed(ctx, p.ExamplesDir(), time.Now()); err != nil {
		return nil, errors.Wrap(err, "failed to seed analytics store")
	}

	embedding, err := ai.NewEmbeddingService(&cfg.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding service")
	}
	app.Embedding = ai.NewCachedEmbeddingService(embedding, queryCacheSize, queryCacheTTL)

	app.Index, err = vector.NewIndex(ctx, vector.Options{
		Backend:    cfg.Vector.Backend,
		Dir:        cfg.Vector.Dir,
		URL:        cfg.Vector.URL,
		DSN:        cfg.Vector.DSN,
		Collection: cfg.Vector.Collection,
		Dimension:  app.Embedding.Dimensions(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open vector index")
	}

	var llm ai.LLMService
	if cfg.Generator.Mode == "openai" {
		if llm, err = ai.NewLLMService(&cfg.Generator); err != nil {
			return nil, errors.Wrap(err, "failed to create LLM service")
		}
	}
	generator, err := rag.NewGenerator(&cfg.Generator, llm, app.Metrics)
	if err != nil {
		return nil, err
	}

	app.Pipeline = rag.NewPipeline(rag.NewRetriever(app.Embedding, app.Index), generator, app.Metrics)
	app.Executor = queryengine.NewExecutor(app.Store)
	app.Orchestrator = agent.NewOrchestrator(app.Executor, app.Pipeline, app.Metrics)
	app.Ingest = ingest.NewRunner(ingest.Config{
		RawDir:       p.RawDir(),
		ProcessedDir: p.ProcessedDir,
		TargetSize:   cfg.Chunk.TargetSize,
		OverlapSize:  cfg.Chunk.OverlapSize,
	}, serverai.NewEmbedder(app.Embedding, app.Index, serverai.DefaultBatchSize), app.Index)

	slog.Debug("application ready",
		"driver", p.Driver,
		"backend", app.Index.Backend(),
		"generator_mode", cfg.Generator.Mode,
		"embedding_model", app.Embedding.Model())
	ok = true
	return app, nil
}

// Close releases the vector index and the analytics store.
func (a *App) Close() error {
	var errs []error
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrapf(errs[0], "failed to close %d component(s)", len(errs))
	}
	return nil
}
