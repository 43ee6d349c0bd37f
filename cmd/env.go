package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/Marius-prog/Leads-generator/internal/pipeline"
	"github.com/Marius-prog/Leads-generator/internal/store"
	"github.com/Marius-prog/Leads-generator/pkg/anthropic"
	"github.com/Marius-prog/Leads-generator/pkg/perplexity"
	"github.com/Marius-prog/Leads-generator/pkg/places"
)

// env bundles the wired dependencies a command needs.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var placesClient places.Client
	var pplxClient perplexity.Client
	var aiClient anthropic.Client
	if !cfg.Pipeline.Mock {
		placesClient = places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
		pplxClient = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model))
		aiClient = anthropic.NewClient(cfg.Anthropic.Key)
	}

	p, err := pipeline.New(cfg, st, placesClient, pplxClient, aiClient)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &env{Store: st, Pipeline: p}, nil
}
