// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans a request out to every selected source adapter,
// validates and merges what comes back, and returns one deduplicated,
// deterministically ordered result with a status for every source.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/diligence-engine/internal/adapter"
	"github.com/pdiddy/diligence-engine/internal/cache"
	"github.com/pdiddy/diligence-engine/internal/metrics"
	"github.com/pdiddy/diligence-engine/internal/validate"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

var (
	// ErrInvalidRequest marks malformed requests; nothing is searched.
	ErrInvalidRequest = errors.New("invalid search request")

	// ErrAllSourcesFailed is returned alongside a degraded result when every
	// queried source timed out or errored.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// Per-adapter deadline bounds.
const (
	DefaultAdapterTimeout = 8 * time.Second
	MinAdapterTimeout     = 1 * time.Second
	MaxAdapterTimeout     = 9 * time.Second
)

const tracerName = "github.com/pdiddy/diligence-engine/internal/search"

// Options are the optional collaborators of an Orchestrator.
type Options struct {
	Validator *validate.Validator
	Cache     *cache.Cache
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// Orchestrator runs searches across a fixed set of adapters. It is safe for
// concurrent use; concurrent identical cache misses share one fan-out.
type Orchestrator struct {
	adapters  []adapter.Adapter
	timeouts  map[string]time.Duration
	validator *validate.Validator
	cache     *cache.Cache
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	group     singleflight.Group
	now       func() time.Time
}

// New creates an orchestrator over adapters. Per-adapter timeouts come from
// the matching SourceConfig, falling back to cfg.AdapterTimeout, and are
// clamped to MinAdapterTimeout..MaxAdapterTimeout.
func New(adapters []adapter.Adapter, cfg types.SearchConfig, opts Options) *Orchestrator {
	def := cfg.AdapterTimeout
	if def <= 0 {
		def = DefaultAdapterTimeout
	}
	perSource := make(map[string]time.Duration, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if sc.Timeout > 0 {
			perSource[sc.ID] = sc.Timeout
		}
	}

	sorted := append([]adapter.Adapter(nil), adapters...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	timeouts := make(map[string]time.Duration, len(sorted))
	for _, a := range sorted {
		d, ok := perSource[a.ID()]
		if !ok {
			d = def
		}
		timeouts[a.ID()] = clampTimeout(d)
	}

	o := &Orchestrator{
		adapters:  sorted,
		timeouts:  timeouts,
		validator: opts.Validator,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		now:       time.Now,
	}
	if o.validator == nil {
		o.validator = validate.New(types.DefaultValidatorConfig())
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "search")
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

func clampTimeout(d time.Duration) time.Duration {
	return min(max(d, MinAdapterTimeout), MaxAdapterTimeout)
}

// Timeout returns the effective deadline for a source.
func (o *Orchestrator) Timeout(sourceID string) time.Duration {
	return o.timeouts[sourceID]
}

// SourceIDs returns the IDs of the adapters a request would query, sorted.
func (o *Orchestrator) SourceIDs(req types.SearchRequest) ([]string, error) {
	selected, err := o.selectAdapters(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(selected))
	for i, a := range selected {
		ids[i] = a.ID()
	}
	return ids, nil
}

// selectAdapters intersects the configured adapters with the requested
// source subset and jurisdiction.
func (o *Orchestrator) selectAdapters(req types.SearchRequest) ([]adapter.Adapter, error) {
	want := make(map[string]bool, len(req.Sources))
	for _, id := range req.Sources {
		want[id] = true
	}
	known := make(map[string]bool, len(o.adapters))
	var selected []adapter.Adapter
	for _, a := range o.adapters {
		known[a.ID()] = true
		if len(want) > 0 && !want[a.ID()] {
			continue
		}
		if req.Jurisdiction != "" && a.Jurisdiction() != req.Jurisdiction {
			continue
		}
		selected = append(selected, a)
	}
	for id := range want {
		if !known[id] {
			return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, id)
		}
	}
	return selected, nil
}

// Search runs one search. It returns ErrInvalidRequest for malformed
// requests, ctx.Err() when ctx is cancelled, and a degraded result together
// with ErrAllSourcesFailed when every source failed. Partial failures are
// reported only in the result's per-source status.
func (o *Orchestrator) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error) {
	start := o.now()
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(validate.SignificantTokens(req.Query)) == 0 {
		return nil, fmt.Errorf("%w: query %q has no significant words to match on", ErrInvalidRequest, req.Query)
	}
	selected, err := o.selectAdapters(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(selected))
	for i, a := range selected {
		ids[i] = a.ID()
	}

	key, err := cache.SearchKey(req, ids)
	if err != nil {
		return nil, err
	}
	if res, ok := o.cache.GetSearch(ctx, key); ok {
		o.logger.DebugContext(ctx, "search served from cache", "query", req.Query)
		o.metrics.ObserveSearch(o.now().Sub(start), false)
		return res, nil
	}

	ch := o.group.DoChan(key, func() (any, error) {
		return o.run(ctx, req, selected, key)
	})

	var res *types.SearchResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		// A shared run cancelled by another caller is retried under our own context.
		if r.Err != nil && isContextErr(r.Err) && ctx.Err() == nil {
			res, err = o.run(ctx, req, selected, key)
		} else {
			res, err = r.Val.(*types.SearchResult), r.Err
			if r.Shared && res != nil {
				res = cloneResult(res)
			}
		}
	}
	if res == nil {
		return nil, err
	}
	o.metrics.ObserveSearch(o.now().Sub(start), res.Degraded)
	return res, err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// outcome is one adapter's slot in the fan-out.
type outcome struct {
	records []types.Record
	status  types.SourceStatus
}

// run fans out to selected, merges the outcomes, and caches a clean result.
func (o *Orchestrator) run(ctx context.Context, req types.SearchRequest, selected []adapter.Adapter, key string) (*types.SearchResult, error) {
	slots := make([]outcome, len(selected))
	var wg sync.WaitGroup
	for i, a := range selected {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots[i] = o.call(ctx, a, req)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		o.logger.InfoContext(ctx, "search cancelled", "query", req.Query, "error", err)
		return nil, err
	}

	res := o.merge(req, selected, slots)

	if res.Degraded {
		o.logger.WarnContext(ctx, "all sources failed", "query", req.Query, "sources", len(selected))
		return res, ErrAllSourcesFailed
	}
	if len(res.FailedSources()) == 0 {
		o.cache.PutSearch(ctx, key, res)
	}
	return res, nil
}

// call runs one adapter under its own deadline. The guard select returns at
// the deadline even if the adapter ignores its context.
func (o *Orchestrator) call(ctx context.Context, a adapter.Adapter, req types.SearchRequest) outcome {
	id := a.ID()
	timeout := o.timeouts[id]
	start := o.now()

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	actx, span := o.tracer.Start(actx, "adapter.search", trace.WithAttributes(
		attribute.String("source.id", id),
		attribute.String("source.kind", string(a.Kind())),
		attribute.Int64("timeout_ms", timeout.Milliseconds()),
	))
	defer span.End()

	type reply struct {
		records []types.Record
		err     error
	}
	done := make(chan reply, 1)
	go func() {
		recs, err := a.Search(actx, req.Query, adapter.Filters{
			Year:         req.Year,
			Jurisdiction: req.Jurisdiction,
			MaxResults:   req.MaxResults,
		})
		done <- reply{recs, err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-actx.Done():
		select {
		case r = <-done:
		default:
			r = reply{err: adapter.Unavailable(id, actx.Err())}
		}
	}
	elapsed := o.now().Sub(start)

	out := outcome{status: types.SourceStatus{State: types.StateOK, Duration: elapsed}}
	if r.err != nil {
		su := adapter.Unavailable(id, r.err)
		out.status.State = types.StateError
		if su.Reason == adapter.ReasonTimeout {
			out.status.State = types.StateTimeout
		}
		out.status.Error = su.Error()
		span.RecordError(su)
		span.SetStatus(codes.Error, string(su.Reason))
		o.metrics.ObserveAdapter(id, string(out.status.State), elapsed)
		o.logger.WarnContext(ctx, "source unavailable",
			"source", id, "state", out.status.State, "reason", su.Reason, "duration", elapsed, "error", su.Err)
		return out
	}

	out.status.Raw = len(r.records)
	for _, rec := range r.records {
		verdict := o.validator.Validate(req.Query, rec.EntityName)
		if !verdict.Accepted {
			out.status.Rejected++
			o.logger.DebugContext(ctx, "ValidationRejected",
				"source", id, "candidate", rec.EntityName, "rule", verdict.Rule, "similarity", verdict.Similarity)
			continue
		}
		rec.SourceID = id
		if rec.Jurisdiction == "" {
			rec.Jurisdiction = a.Jurisdiction()
		}
		rec.Confidence = verdict.Confidence
		adapter.AssignID(&rec)
		out.records = append(out.records, rec)
	}

	span.SetAttributes(attribute.Int("records.raw", out.status.Raw), attribute.Int("records.rejected", out.status.Rejected))
	o.metrics.ObserveAdapter(id, string(types.StateOK), elapsed)
	o.metrics.AddRejected(id, out.status.Rejected)
	o.logger.InfoContext(ctx, "source completed",
		"source", id, "raw", out.status.Raw, "accepted", len(out.records), "rejected", out.status.Rejected, "duration", elapsed)
	return out
}

// cloneResult copies the parts of a result a caller may mutate.
func cloneResult(r *types.SearchResult) *types.SearchResult {
	c := *r
	c.Records = append([]types.Record(nil), r.Records...)
	c.TotalHits = make(map[string]int, len(r.TotalHits))
	for k, v := range r.TotalHits {
		c.TotalHits[k] = v
	}
	c.PerSourceStatus = make(map[string]types.SourceStatus, len(r.PerSourceStatus))
	for k, v := range r.PerSourceStatus {
		c.PerSourceStatus[k] = v
	}
	return &c
}
