// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores search results and correlation profiles keyed by the
// normalized request. Backends are interchangeable behind Store; the typed
// Cache wrapper turns every backend failure into a miss so a broken cache
// never fails a search.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

var (
	// ErrMiss is returned by Store.Get for absent or expired keys.
	ErrMiss = errors.New("cache miss")

	// ErrCacheUnavailable wraps every backend failure other than a miss.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// Store is a byte-oriented key-value backend with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Purger is implemented by stores that keep expired entries until told to
// remove them.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Open returns the store selected by cfg.Backend. The "none" backend returns
// a nil Store.
func Open(ctx context.Context, cfg types.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case types.CacheRedis:
		return NewRedisStore(ctx, cfg.RedisURL)
	case types.CacheSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case types.CacheMemory, "":
		return NewMemoryStore(), nil
	case types.CacheNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q: use redis, sqlite, memory, or none", cfg.Backend)
}

// unavailable wraps a backend error with ErrCacheUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, op, err)
}
