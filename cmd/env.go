package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/crestline-hoa/invoice-cli/internal/pipeline"
	"github.com/crestline-hoa/invoice-cli/internal/prompt"
	"github.com/crestline-hoa/invoice-cli/internal/store"
	anthropicpkg "github.com/crestline-hoa/invoice-cli/pkg/anthropic"
)

// pipelineEnv bundles the initialized pipeline and its store for commands
// that process invoices.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "invoices.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline builds the full processing environment: store (migrated),
// rate-limited Anthropic client, prompt templates, and pipeline.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	prompts, err := prompt.Load(cfg.Prompts.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	aiClient := anthropicpkg.NewRateLimited(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.RequestsPerSecond,
		cfg.Anthropic.Burst,
	)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, aiClient, prompts),
	}, nil
}
