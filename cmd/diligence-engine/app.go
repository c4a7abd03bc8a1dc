// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pdiddy/diligence-engine/internal/adapter"
	"github.com/pdiddy/diligence-engine/internal/cache"
	"github.com/pdiddy/diligence-engine/internal/correlate"
	"github.com/pdiddy/diligence-engine/internal/logging"
	"github.com/pdiddy/diligence-engine/internal/metrics"
	"github.com/pdiddy/diligence-engine/internal/search"
	"github.com/pdiddy/diligence-engine/internal/validate"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// app holds the collaborators shared by the search, correlate, and serve commands.
type app struct {
	registry *prometheus.Registry
	cache    *cache.Cache
	orch     *search.Orchestrator
	service  *correlate.Service
}

// newApp wires adapters, cache, validator, orchestrator, and correlation
// service from configuration. A cache backend that cannot be opened is
// logged and the app runs uncached.
func newApp(ctx context.Context, cfg types.Config) (*app, error) {
	logger := slog.Default()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		logging.Component(logger, "cache").Warn("cache unavailable, continuing without it",
			"backend", cfg.Cache.Backend, "error", err)
		store = nil
	}
	c := cache.New(store, cfg.Cache, logger, m)

	adapters, err := adapter.Build(cfg.Search.Sources, adapter.Deps{
		Client:            &http.Client{Timeout: cfg.Search.Timeout},
		UserAgent:         cfg.Search.UserAgent,
		Logger:            logger,
		DefaultMaxResults: cfg.Search.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring sources: %w", err)
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no sources enabled: configure search.sources")
	}

	v := validate.New(cfg.Validator)
	orch := search.New(adapters, cfg.Search, search.Options{
		Validator: v,
		Cache:     c,
		Metrics:   m,
		Logger:    logger,
	})

	aliases, err := correlate.LoadAliases(cfg.Correlation.AliasFile)
	if err != nil {
		return nil, err
	}
	engine := correlate.NewEngine(cfg.Correlation, v, aliases)

	return &app{
		registry: reg,
		cache:    c,
		orch:     orch,
		service:  correlate.NewService(orch, engine, c, m, logger),
	}, nil
}

// Close releases the cache backend.
func (a *app) Close() error {
	return a.cache.Close()
}
