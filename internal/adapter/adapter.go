// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package adapter defines the contract every government data source
// implements and the closed set of source kinds. Each adapter instance owns
// its HTTP client settings and its own rate limiter; instances are built once
// from configuration and passed to the orchestrator.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Kind selects an adapter implementation.
type Kind string

const (
	KindSenateLDA   Kind = "senate_lda"
	KindUSAspending Kind = "usaspending"
	KindSocrata     Kind = "socrata"
)

// Filters narrow one adapter call.
type Filters struct {
	// Year restricts results to one calendar year. Zero means any year.
	Year int

	// Jurisdiction, when set and different from the adapter's, yields no records.
	Jurisdiction types.Jurisdiction

	// MaxResults caps the rows requested per upstream sub-query.
	MaxResults int
}

// Adapter queries one external data source and returns normalized records.
// Search must return promptly once ctx is done. On failure it returns no
// records and a *SourceUnavailable.
type Adapter interface {
	ID() string
	Kind() Kind
	Jurisdiction() types.Jurisdiction
	Search(ctx context.Context, query string, f Filters) ([]types.Record, error)
}

// Deps are the shared collaborators handed to every adapter.
type Deps struct {
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger

	// DefaultMaxResults applies when neither the source nor the call sets one.
	DefaultMaxResults int
}

type constructor func(base *Base, cfg types.SourceConfig) (Adapter, error)

// kinds is the static table of supported source kinds.
var kinds = map[Kind]constructor{
	KindSenateLDA:   newSenateLDA,
	KindUSAspending: newUSAspending,
	KindSocrata:     newSocrata,
}

// Kinds returns the supported kinds in sorted order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds one adapter from its source configuration.
func New(cfg types.SourceConfig, deps Deps) (Adapter, error) {
	ctor, ok := kinds[Kind(cfg.Kind)]
	if !ok {
		return nil, fmt.Errorf("source %q: unknown kind %q (supported: %v)", cfg.ID, cfg.Kind, Kinds())
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("source of kind %q has no id", cfg.Kind)
	}
	if !cfg.Jurisdiction.Valid() {
		return nil, fmt.Errorf("source %q: invalid jurisdiction %q", cfg.ID, cfg.Jurisdiction)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("source %q: base_url is required", cfg.ID)
	}
	return ctor(newBase(cfg, deps), cfg)
}

// Build constructs every enabled source. Source IDs must be unique.
func Build(cfgs []types.SourceConfig, deps Deps) ([]Adapter, error) {
	seen := make(map[string]bool, len(cfgs))
	var out []Adapter
	for _, cfg := range cfgs {
		if cfg.Disabled {
			continue
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("duplicate source id %q", cfg.ID)
		}
		seen[cfg.ID] = true

		a, err := New(cfg, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
