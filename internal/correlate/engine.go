// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package correlate turns a merged multi-jurisdiction record set into a
// company profile: which jurisdiction acted first, how spending compares
// across levels, a composite score with its breakdown, and a strategy label
// from a fixed decision table.
package correlate

import (
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/diligence-engine/internal/validate"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// ErrInsufficientData is returned by CompanyProfile.Err when no bucket was populated.
var ErrInsufficientData = types.ErrInsufficientData

// Engine computes profiles. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	cfg      types.CorrelationConfig
	resolver *Resolver
	now      func() time.Time
}

// NewEngine returns an Engine. Zero-valued fields of cfg fall back to
// DefaultCorrelationConfig, as do invalid weights; valid weights are scaled
// to sum to 1.
func NewEngine(cfg types.CorrelationConfig, v *validate.Validator, aliases Aliases) *Engine {
	def := types.DefaultCorrelationConfig()
	if cfg.Weights.Validate() != nil {
		cfg.Weights = def.Weights
	}
	cfg.Weights = cfg.Weights.Normalized()
	if cfg.SimultaneousDays <= 0 {
		cfg.SimultaneousDays = def.SimultaneousDays
	}
	if cfg.TimelineSaturationDays <= 0 {
		cfg.TimelineSaturationDays = def.TimelineSaturationDays
	}
	if cfg.RatioSaturationLog10 <= 0 {
		cfg.RatioSaturationLog10 = def.RatioSaturationLog10
	}
	if cfg.DominantRatio < 1 {
		cfg.DominantRatio = def.DominantRatio
	}
	if cfg.HighOverlap <= 0 || cfg.HighOverlap > 1 {
		cfg.HighOverlap = def.HighOverlap
	}
	if cfg.DefaultYears <= 0 {
		cfg.DefaultYears = def.DefaultYears
	}
	if cfg.YearConcurrency <= 0 {
		cfg.YearConcurrency = def.YearConcurrency
	}
	return &Engine{
		cfg:      cfg,
		resolver: NewResolver(v, aliases, 0),
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() types.CorrelationConfig { return e.cfg }

// Analyze builds the profile of entity from records. Records whose names
// resolve to a different entity are excluded and counted. With no records
// left the profile is marked InsufficientData rather than failing.
func (e *Engine) Analyze(entity string, records []types.Record) *types.CompanyProfile {
	entity = strings.Join(strings.Fields(entity), " ")
	kept, aliases, excluded := e.resolver.Cluster(entity, records)

	p := &types.CompanyProfile{
		Entity:       entity,
		CanonicalKey: e.resolver.aliases.Resolve(entity),
		Aliases:      aliases,
		Excluded:     excluded,
		Generated:    e.now().UTC(),
	}
	if p.Aliases == nil {
		p.Aliases = []string{}
	}

	p.Buckets = Buckets(kept)
	upper, lower, ok := compareSides(p.Buckets)
	p.Timeline = analyzeTimeline(kept, p.Buckets, upper, lower, ok, e.cfg.SimultaneousDays)
	p.Financial = analyzeFinancial(p.Buckets, upper, lower, ok)
	p.Score = compositeScore(e.cfg.Weights,
		timelineComponent(p.Timeline, e.cfg.TimelineSaturationDays),
		financialComponent(p.Financial, e.cfg.RatioSaturationLog10),
		overlapComponent(kept, upper, lower, ok),
	)
	p.InsufficientData = len(p.Buckets) == 0
	p.Classification = Classify(ClassifyInput{
		Populated: len(p.Buckets),
		Pattern:   p.Timeline.Pattern,
		Upper:     p.Timeline.Upper,
		Lower:     p.Timeline.Lower,
		Financial: p.Financial,
		Overlap:   p.Score.Overlap,
	}, Thresholds{DominantRatio: e.cfg.DominantRatio, HighOverlap: e.cfg.HighOverlap})
	p.Insights = insights(p)
	return p
}

func sortedBuckets(m map[types.Bucket]types.BucketTotals) []types.Bucket {
	out := make([]types.Bucket, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
