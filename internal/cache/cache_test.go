// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/diligence-engine/internal/metrics"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// --- Keys ---

func TestSearchKey(t *testing.T) {
	base := types.SearchRequest{Query: "United Healthcare", Year: 2019}
	k1, err := SearchKey(base, []string{"usaspending", "senate_lda"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(k1, "dl:v1:search:"))
	assert.Len(t, strings.TrimPrefix(k1, "dl:v1:search:"), 64)

	t.Run("source order and query case are irrelevant", func(t *testing.T) {
		req := base
		req.Query = "  united   HEALTHCARE "
		k2, err := SearchKey(req, []string{"senate_lda", "usaspending"})
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
	})

	t.Run("filters change the key", func(t *testing.T) {
		for _, mutate := range []func(*types.SearchRequest){
			func(r *types.SearchRequest) { r.Year = 2020 },
			func(r *types.SearchRequest) { r.Jurisdiction = types.JurisdictionFederal },
			func(r *types.SearchRequest) { r.MaxResults = 5 },
			func(r *types.SearchRequest) { r.Query = "United Health" },
		} {
			req := base
			mutate(&req)
			k, err := SearchKey(req, []string{"usaspending", "senate_lda"})
			require.NoError(t, err)
			assert.NotEqual(t, k1, k)
		}
	})

	t.Run("source set changes the key", func(t *testing.T) {
		k, err := SearchKey(base, []string{"usaspending"})
		require.NoError(t, err)
		assert.NotEqual(t, k1, k)
	})
}

func TestProfileKeyDiffersFromSearchKey(t *testing.T) {
	pk, err := ProfileKey(types.CorrelationRequest{EntityName: "Acme", StartYear: 2015, EndYear: 2020}, []string{"a"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pk, "dl:v1:profile:"))

	pk2, err := ProfileKey(types.CorrelationRequest{EntityName: "acme", StartYear: 2015, EndYear: 2021}, []string{"a"})
	require.NoError(t, err)
	assert.NotEqual(t, pk, pk2)
}

// --- Stores ---

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Hour)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, s.Len(), "expired entries are dropped on read")

	_, err = s.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_Purge(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "long", []byte("2"), time.Hour))
	now = now.Add(10 * time.Minute)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, s.Len())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sub", "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`), time.Hour))
	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":2}`), time.Hour), "set overwrites")
	require.NoError(t, s.Set(ctx, "old", []byte("x"), time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	now = now.Add(30 * time.Minute)
	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrMiss, "expired rows are never returned")

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, types.CacheConfig{Backend: types.CacheMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, types.CacheConfig{Backend: types.CacheNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, types.CacheConfig{Backend: types.CacheSQLite, SQLitePath: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = Open(ctx, types.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)

	_, err = Open(ctx, types.CacheConfig{Backend: types.CacheRedis, RedisURL: "not a url"})
	assert.Error(t, err)
}

// --- Typed cache ---

// brokenStore fails every operation.
type brokenStore struct{}

var errBackendDown = errors.New("connection refused")

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, unavailable("get", errBackendDown)
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return unavailable("set", errBackendDown)
}
func (brokenStore) Delete(context.Context, string) error { return unavailable("del", errBackendDown) }
func (brokenStore) Close() error                         { return nil }

func sampleResult() *types.SearchResult {
	return &types.SearchResult{
		Request: types.SearchRequest{Query: "Acme"},
		Records: []types.Record{{
			ID: "id-1", SourceID: "usaspending", EntityName: "ACME INC",
			Amount: types.Float(10), Date: types.Day(2019, 5, 1),
			Jurisdiction: types.JurisdictionFederal, Activity: types.ActivityContracts,
			Confidence: 1, RawPayload: []byte(`{"x":1}`),
		}},
		TotalHits:       map[string]int{"usaspending": 1},
		PerSourceStatus: map[string]types.SourceStatus{"usaspending": {State: types.StateOK, Raw: 1}},
	}
}

func TestCache_SearchRoundTrip(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(NewMemoryStore(), types.CacheConfig{}, nil, m)
	ctx := context.Background()

	_, ok := c.GetSearch(ctx, "k")
	assert.False(t, ok)

	want := sampleResult()
	c.PutSearch(ctx, "k", want)

	got, ok := c.GetSearch(ctx, "k")
	require.True(t, ok)
	assert.True(t, got.CacheHit)
	assert.Equal(t, want.Records, got.Records)
	assert.Equal(t, want.PerSourceStatus, got.PerSourceStatus)
	assert.False(t, want.CacheHit, "the stored value is not mutated")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("search", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("search", "miss")))
}

func TestCache_UsesConfiguredTTLs(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	c := New(store, types.CacheConfig{SearchTTL: 24 * time.Hour, CorrelationTTL: 48 * time.Hour}, nil, nil)
	ctx := context.Background()

	c.PutSearch(ctx, "s", sampleResult())
	c.PutProfile(ctx, "p", &types.CompanyProfile{Entity: "Acme"})

	now = now.Add(30 * time.Hour)
	_, ok := c.GetSearch(ctx, "s")
	assert.False(t, ok, "searches expire after 24h")
	p, ok := c.GetProfile(ctx, "p")
	require.True(t, ok, "profiles live for 48h")
	assert.True(t, p.CacheHit)
}

func TestCache_BackendFailureDegradesToMiss(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(brokenStore{}, types.CacheConfig{}, nil, m)
	ctx := context.Background()

	assert.NotPanics(t, func() { c.PutSearch(ctx, "k", sampleResult()) })
	_, ok := c.GetSearch(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("search", "error")))

	err := c.Delete(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.ErrorIs(t, err, errBackendDown)
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "k", []byte("not json"), time.Hour))
	c := New(store, types.CacheConfig{}, nil, nil)

	_, ok := c.GetSearch(context.Background(), "k")
	assert.False(t, ok)
}

func TestCache_NilIsNoCache(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	assert.Nil(t, New(nil, types.CacheConfig{}, nil, nil))
	assert.NotPanics(t, func() {
		c.PutSearch(ctx, "k", sampleResult())
		c.PutProfile(ctx, "k", &types.CompanyProfile{Entity: "Acme"})
	})
	_, ok := c.GetSearch(ctx, "k")
	assert.False(t, ok)
	_, ok = c.GetProfile(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, c.Delete(ctx, "k"))
	n, err := c.Purge(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, c.Close())
}
