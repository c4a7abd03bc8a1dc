// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/pdiddy/diligence-engine/internal/metrics"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Kind names an entry type; it is part of every key.
type Kind string

const (
	KindSearch  Kind = "search"
	KindProfile Kind = "profile"
)

const keyPrefix = "dl:v1:"

const (
	defaultSearchTTL  = 24 * time.Hour
	defaultProfileTTL = 48 * time.Hour
	defaultOpTimeout  = 500 * time.Millisecond
)

// Cache stores typed results in a Store. Backend failures are logged,
// counted, and treated as misses or dropped writes. A nil *Cache is valid
// and caches nothing.
type Cache struct {
	store      Store
	searchTTL  time.Duration
	profileTTL time.Duration
	opTimeout  time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New wraps store. It returns nil when store is nil.
func New(store Store, cfg types.CacheConfig, logger *slog.Logger, m *metrics.Metrics) *Cache {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		store:      store,
		searchTTL:  cfg.SearchTTL,
		profileTTL: cfg.CorrelationTTL,
		opTimeout:  cfg.OpTimeout,
		logger:     logger.With("component", "cache"),
		metrics:    m,
	}
	if c.searchTTL <= 0 {
		c.searchTTL = defaultSearchTTL
	}
	if c.profileTTL <= 0 {
		c.profileTTL = defaultProfileTTL
	}
	if c.opTimeout <= 0 {
		c.opTimeout = defaultOpTimeout
	}
	return c
}

// SearchKey derives the cache key for a normalized search request over the
// given source set.
func SearchKey(req types.SearchRequest, sources []string) (string, error) {
	return key(KindSearch, struct {
		Query        string   `json:"query"`
		Year         int      `json:"year"`
		Jurisdiction string   `json:"jurisdiction"`
		Sources      []string `json:"sources"`
		MaxResults   int      `json:"max_results"`
	}{
		Query:        normalizeQuery(req.Query),
		Year:         req.Year,
		Jurisdiction: string(req.Jurisdiction),
		Sources:      sortedCopy(sources),
		MaxResults:   req.MaxResults,
	})
}

// ProfileKey derives the cache key for a correlation request whose year
// window has already been resolved.
func ProfileKey(req types.CorrelationRequest, sources []string) (string, error) {
	return key(KindProfile, struct {
		Entity     string   `json:"entity"`
		Historical bool     `json:"historical"`
		StartYear  int      `json:"start_year"`
		EndYear    int      `json:"end_year"`
		Sources    []string `json:"sources"`
	}{
		Entity:     normalizeQuery(req.EntityName),
		Historical: req.IncludeHistorical,
		StartYear:  req.StartYear,
		EndYear:    req.EndYear,
		Sources:    sortedCopy(sources),
	})
}

// key hashes the RFC 8785 canonical JSON of fields.
func key(kind Kind, fields any) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalizing cache key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return keyPrefix + string(kind) + ":" + hex.EncodeToString(sum[:]), nil
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

// GetSearch returns the cached result for key with CacheHit set.
func (c *Cache) GetSearch(ctx context.Context, key string) (*types.SearchResult, bool) {
	var res types.SearchResult
	if !c.get(ctx, KindSearch, key, &res) {
		return nil, false
	}
	res.CacheHit = true
	return &res, true
}

// PutSearch stores res under key for the search TTL.
func (c *Cache) PutSearch(ctx context.Context, key string, res *types.SearchResult) {
	c.put(ctx, KindSearch, key, res)
}

// GetProfile returns the cached profile for key with CacheHit set.
func (c *Cache) GetProfile(ctx context.Context, key string) (*types.CompanyProfile, bool) {
	var p types.CompanyProfile
	if !c.get(ctx, KindProfile, key, &p) {
		return nil, false
	}
	p.CacheHit = true
	return &p, true
}

// PutProfile stores p under key for the correlation TTL.
func (c *Cache) PutProfile(ctx context.Context, key string, p *types.CompanyProfile) {
	c.put(ctx, KindProfile, key, p)
}

// Delete removes key. Unlike reads and writes, its error is returned.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.store.Delete(ctx, key)
}

// Purge removes expired entries when the backend supports it.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	p, ok := c.store.(Purger)
	if !ok {
		return 0, nil
	}
	return p.Purge(ctx)
}

// Close releases the backend.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Cache) ttl(kind Kind) time.Duration {
	if kind == KindProfile {
		return c.profileTTL
	}
	return c.searchTTL
}

func (c *Cache) get(ctx context.Context, kind Kind, key string, out any) bool {
	if c == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrMiss):
		c.metrics.IncCache(string(kind), "miss")
		return false
	case err != nil:
		c.metrics.IncCache(string(kind), "error")
		c.logger.WarnContext(ctx, "cache read failed, continuing uncached", "kind", kind, "error", err)
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.metrics.IncCache(string(kind), "error")
		c.logger.WarnContext(ctx, "cache entry undecodable, ignoring", "kind", kind, "key", key, "error", err)
		return false
	}
	c.metrics.IncCache(string(kind), "hit")
	return true
}

func (c *Cache) put(ctx context.Context, kind Kind, key string, v any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "cache entry unencodable, skipping", "kind", kind, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.Set(ctx, key, raw, c.ttl(kind)); err != nil {
		c.metrics.IncCache(string(kind), "error")
		c.logger.WarnContext(ctx, "cache write failed, continuing uncached", "kind", kind, "error", err)
	}
}
