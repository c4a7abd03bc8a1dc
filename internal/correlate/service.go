// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/diligence-engine/internal/cache"
	"github.com/pdiddy/diligence-engine/internal/metrics"
	"github.com/pdiddy/diligence-engine/internal/search"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// maxWindowYears bounds the number of per-year searches one profile may issue.
const maxWindowYears = 30

// Searcher runs searches. *search.Orchestrator satisfies it.
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error)
	SourceIDs(req types.SearchRequest) ([]string, error)
}

// Service profiles entities by searching every year of a window and
// feeding the merged records to an Engine.
type Service struct {
	searcher Searcher
	engine   *Engine
	cache    *cache.Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires a Service. cache, metrics, and logger may be nil.
func NewService(s Searcher, e *Engine, c *cache.Cache, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		searcher: s,
		engine:   e,
		cache:    c,
		metrics:  m,
		logger:   logger.With("component", "correlate"),
		now:      time.Now,
	}
}

// Window resolves the years a request covers. A historical request is one
// unfiltered search, reported as a single zero year.
func (s *Service) Window(req types.CorrelationRequest) (types.CorrelationRequest, []int, error) {
	req.EntityName = strings.Join(strings.Fields(req.EntityName), " ")
	if req.EntityName == "" {
		return req, nil, fmt.Errorf("%w: entity name is empty", search.ErrInvalidRequest)
	}
	if req.IncludeHistorical {
		req.StartYear, req.EndYear = 0, 0
		return req, []int{0}, nil
	}

	if req.EndYear == 0 {
		req.EndYear = s.now().Year()
	}
	if req.StartYear == 0 {
		req.StartYear = req.EndYear - s.engine.cfg.DefaultYears + 1
	}
	if req.StartYear > req.EndYear {
		return req, nil, fmt.Errorf("%w: start year %d after end year %d", search.ErrInvalidRequest, req.StartYear, req.EndYear)
	}
	if req.EndYear-req.StartYear+1 > maxWindowYears {
		return req, nil, fmt.Errorf("%w: window of %d years exceeds %d", search.ErrInvalidRequest, req.EndYear-req.StartYear+1, maxWindowYears)
	}

	years := make([]int, 0, req.EndYear-req.StartYear+1)
	for y := req.StartYear; y <= req.EndYear; y++ {
		years = append(years, y)
	}
	return req, years, nil
}

// CacheKey returns the key under which Profile caches the profile for req.
func (s *Service) CacheKey(req types.CorrelationRequest) (string, error) {
	_, _, key, err := s.prepare(req)
	return key, err
}

func (s *Service) prepare(req types.CorrelationRequest) (types.CorrelationRequest, []int, string, error) {
	req, years, err := s.Window(req)
	if err != nil {
		return req, nil, "", err
	}
	sources, err := s.searcher.SourceIDs(types.SearchRequest{Query: req.EntityName})
	if err != nil {
		return req, nil, "", err
	}
	key, err := cache.ProfileKey(req, sources)
	if err != nil {
		return req, nil, "", err
	}
	return req, years, key, nil
}

// Profile searches the request's window and analyzes the merged records.
// Failed sources are reported in the profile's Sources. When every search
// in the window degraded, the profile is returned with
// search.ErrAllSourcesFailed. Profiles are cached only when no source failed.
func (s *Service) Profile(ctx context.Context, req types.CorrelationRequest) (*types.CompanyProfile, error) {
	req, years, key, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if p, ok := s.cache.GetProfile(ctx, key); ok {
		s.logger.DebugContext(ctx, "profile served from cache", "entity", req.EntityName)
		return p, nil
	}

	results := make([]*types.SearchResult, len(years))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.engine.cfg.YearConcurrency)
	var mu sync.Mutex
	degraded := 0
	for i, year := range years {
		g.Go(func() error {
			res, err := s.searcher.Search(gctx, types.SearchRequest{Query: req.EntityName, Year: year})
			if errors.Is(err, search.ErrAllSourcesFailed) {
				mu.Lock()
				degraded++
				mu.Unlock()
				err = nil
			}
			if err != nil {
				return fmt.Errorf("searching %d: %w", year, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []types.Record
	summary := make(map[string]types.SourceSummary, len(sources))
	for _, id := range sources {
		summary[id] = types.SourceSummary{}
	}
	failed := false
	for i, res := range results {
		if res == nil {
			continue
		}
		records = append(records, res.Records...)
		for id, n := range res.TotalHits {
			sm := summary[id]
			sm.Records += n
			summary[id] = sm
		}
		for _, id := range res.FailedSources() {
			failed = true
			sm := summary[id]
			sm.Failures = append(sm.Failures, failureLabel(years[i], res.PerSourceStatus[id]))
			summary[id] = sm
		}
	}
	records, _ = search.Deduplicate(records)
	search.SortRecords(records)

	p := s.engine.Analyze(req.EntityName, records)
	p.Sources = summary
	s.metrics.IncClassification(string(p.Classification.Label))
	s.logger.InfoContext(ctx, "profile built",
		"entity", req.EntityName, "years", len(years), "records", len(records), "excluded", p.Excluded,
		"label", p.Classification.Label, "score", p.Score.Composite)

	if degraded == len(years) {
		return p, search.ErrAllSourcesFailed
	}
	if !failed {
		s.cache.PutProfile(ctx, key, p)
	}
	return p, nil
}

func failureLabel(year int, st types.SourceStatus) string {
	label := string(st.State)
	if year != 0 {
		label = fmt.Sprintf("%d: %s", year, st.State)
	}
	return label
}

// SortedSources returns the source IDs of a profile summary in order.
func SortedSources(m map[string]types.SourceSummary) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
