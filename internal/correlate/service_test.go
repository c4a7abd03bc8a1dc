// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/diligence-engine/internal/cache"
	"github.com/pdiddy/diligence-engine/internal/metrics"
	"github.com/pdiddy/diligence-engine/internal/search"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// fakeSearcher answers per-year searches from a table.
type fakeSearcher struct {
	mu      sync.Mutex
	byYear  map[int][]types.Record
	failed  map[int]bool
	err     error
	sources []string
	years   []int
}

func (f *fakeSearcher) Search(_ context.Context, req types.SearchRequest) (*types.SearchResult, error) {
	f.mu.Lock()
	f.years = append(f.years, req.Year)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	res := &types.SearchResult{
		Request:         req,
		Records:         f.byYear[req.Year],
		TotalHits:       map[string]int{},
		PerSourceStatus: map[string]types.SourceStatus{},
	}
	for _, id := range f.sources {
		st := types.SourceStatus{State: types.StateOK}
		if f.failed[req.Year] {
			st = types.SourceStatus{State: types.StateTimeout, Error: "deadline exceeded"}
		}
		res.PerSourceStatus[id] = st
		res.TotalHits[id] = 0
	}
	for _, r := range res.Records {
		res.TotalHits[r.SourceID]++
	}
	if f.failed[req.Year] {
		res.Degraded = true
		return res, search.ErrAllSourcesFailed
	}
	return res, nil
}

func (f *fakeSearcher) SourceIDs(types.SearchRequest) ([]string, error) {
	return f.sources, nil
}

func (f *fakeSearcher) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int(nil), f.years...)
	sort.Ints(out)
	return out
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		sources: []string{"nyc_contracts", "usaspending"},
		byYear: map[int][]types.Record{
			2014: {fedContract("United Healthcare", 45000000, 2014, 1, 1)},
			2016: {
				localContract("United Healthcare", 276, 2016, 1, 1),
				localContract("United Healthcare", 276, 2016, 1, 1),
			},
		},
		failed: map[int]bool{},
	}
}

func newTestService(s Searcher, c *cache.Cache, m *metrics.Metrics) *Service {
	svc := NewService(s, newEngine(), c, m, nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestProfile_SearchesEveryYear(t *testing.T) {
	fs := newFakeSearcher()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := newTestService(fs, nil, m)

	p, err := svc.Profile(context.Background(), types.CorrelationRequest{EntityName: " United  Healthcare ", StartYear: 2014, EndYear: 2016})
	require.NoError(t, err)

	assert.Equal(t, []int{2014, 2015, 2016}, fs.calls())
	assert.Equal(t, "United Healthcare", p.Entity)
	assert.Equal(t, 1, p.Buckets["local_contracts"].Count, "records merged across years are deduplicated")
	assert.Equal(t, types.PatternFederalFirst, p.Timeline.Pattern)
	assert.Equal(t, map[string]types.SourceSummary{
		"nyc_contracts": {Records: 2},
		"usaspending":   {Records: 1},
	}, p.Sources)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(string(p.Classification.Label))))
}

func TestProfile_DefaultWindow(t *testing.T) {
	fs := newFakeSearcher()
	svc := newTestService(fs, nil, nil)

	_, err := svc.Profile(context.Background(), types.CorrelationRequest{EntityName: "United Healthcare"})
	require.NoError(t, err)

	calls := fs.calls()
	require.Len(t, calls, 10)
	assert.Equal(t, 2017, calls[0])
	assert.Equal(t, 2026, calls[9])
}

func TestProfile_Historical(t *testing.T) {
	fs := newFakeSearcher()
	svc := newTestService(fs, nil, nil)

	_, err := svc.Profile(context.Background(), types.CorrelationRequest{EntityName: "United Healthcare", IncludeHistorical: true, StartYear: 2001})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, fs.calls(), "one unfiltered search")
}

func TestProfile_CachesCleanProfiles(t *testing.T) {
	fs := newFakeSearcher()
	c := cache.New(cache.NewMemoryStore(), types.CacheConfig{}, nil, nil)
	svc := newTestService(fs, c, nil)
	req := types.CorrelationRequest{EntityName: "United Healthcare", StartYear: 2014, EndYear: 2016}

	first, err := svc.Profile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Profile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Classification, second.Classification)
	assert.Len(t, fs.calls(), 3)
}

func TestService_CacheKeyClearsProfile(t *testing.T) {
	fs := newFakeSearcher()
	c := cache.New(cache.NewMemoryStore(), types.CacheConfig{}, nil, nil)
	svc := newTestService(fs, c, nil)
	req := types.CorrelationRequest{EntityName: "United Healthcare", StartYear: 2014, EndYear: 2016}

	_, err := svc.Profile(context.Background(), req)
	require.NoError(t, err)

	key, err := svc.CacheKey(types.CorrelationRequest{EntityName: "united healthcare ", StartYear: 2014, EndYear: 2016})
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), key))

	p, err := svc.Profile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, p.CacheHit)
	assert.Len(t, fs.calls(), 6)

	_, err = svc.CacheKey(types.CorrelationRequest{EntityName: " "})
	assert.ErrorIs(t, err, search.ErrInvalidRequest)
}

func TestProfile_PartialFailure(t *testing.T) {
	fs := newFakeSearcher()
	fs.failed[2015] = true
	c := cache.New(cache.NewMemoryStore(), types.CacheConfig{}, nil, nil)
	svc := newTestService(fs, c, nil)
	req := types.CorrelationRequest{EntityName: "United Healthcare", StartYear: 2014, EndYear: 2016}

	p, err := svc.Profile(context.Background(), req)
	require.NoError(t, err, "one degraded year does not fail the profile")
	assert.Equal(t, []string{"2015: timeout"}, p.Sources["usaspending"].Failures)
	assert.Equal(t, types.StrategyTopDownInfluence, p.Classification.Label)

	_, err = svc.Profile(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, fs.calls(), 6, "profiles with failed sources are not cached")
}

func TestProfile_AllSearchesDegraded(t *testing.T) {
	fs := newFakeSearcher()
	fs.failed[2014], fs.failed[2015] = true, true
	svc := newTestService(fs, nil, nil)

	p, err := svc.Profile(context.Background(), types.CorrelationRequest{EntityName: "United Healthcare", StartYear: 2014, EndYear: 2015})
	assert.ErrorIs(t, err, search.ErrAllSourcesFailed)
	require.NotNil(t, p)
	assert.Equal(t, []string{"2014: timeout", "2015: timeout"}, p.Sources["nyc_contracts"].Failures)
}

func TestProfile_SearchErrorAborts(t *testing.T) {
	fs := newFakeSearcher()
	fs.err = context.Canceled
	svc := newTestService(fs, nil, nil)

	p, err := svc.Profile(context.Background(), types.CorrelationRequest{EntityName: "United Healthcare", StartYear: 2014, EndYear: 2016})
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProfile_InvalidRequest(t *testing.T) {
	svc := newTestService(newFakeSearcher(), nil, nil)

	tests := []struct {
		name string
		req  types.CorrelationRequest
	}{
		{"empty entity", types.CorrelationRequest{EntityName: "  "}},
		{"reversed window", types.CorrelationRequest{EntityName: "Acme", StartYear: 2020, EndYear: 2010}},
		{"window too wide", types.CorrelationRequest{EntityName: "Acme", StartYear: 1950, EndYear: 2020}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Profile(context.Background(), tt.req)
			assert.ErrorIs(t, err, search.ErrInvalidRequest)
		})
	}
}

func TestProfile_NoRecordsIsNotAnError(t *testing.T) {
	fs := newFakeSearcher()
	fs.byYear = nil
	svc := newTestService(fs, nil, nil)

	p, err := svc.Profile(context.Background(), types.CorrelationRequest{EntityName: "Nobody Corp", StartYear: 2020, EndYear: 2021})
	require.NoError(t, err)
	assert.True(t, p.InsufficientData)
	assert.ErrorIs(t, p.Err(), ErrInsufficientData)
}
