// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientData marks a profile built from zero populated buckets.
var ErrInsufficientData = errors.New("insufficient data: no correlation possible")

// CorrelationRequest is the input to a cross-jurisdiction analysis.
type CorrelationRequest struct {
	// EntityName is the company or person to profile.
	EntityName string `json:"entity_name" yaml:"entity_name"`

	// IncludeHistorical searches every year the providers publish instead of
	// the StartYear..EndYear window.
	IncludeHistorical bool `json:"include_historical,omitempty" yaml:"include_historical,omitempty"`

	// StartYear and EndYear bound the analysis window (inclusive). Zero values
	// fall back to the configured default window ending in the current year.
	StartYear int `json:"start_year,omitempty" yaml:"start_year,omitempty"`
	EndYear   int `json:"end_year,omitempty" yaml:"end_year,omitempty"`
}

// TimelineEvent is one dated, bucketed record used for timeline analysis.
type TimelineEvent struct {
	Date   time.Time `json:"date" yaml:"date"`
	Bucket Bucket    `json:"jurisdiction_bucket" yaml:"jurisdiction_bucket"`
	Amount float64   `json:"amount" yaml:"amount"`
	Source string    `json:"source" yaml:"source"`
}

// BucketTotals summarizes the records in one jurisdiction bucket.
type BucketTotals struct {
	Total    float64    `json:"total" yaml:"total"`
	Count    int        `json:"count" yaml:"count"`
	Earliest *time.Time `json:"earliest,omitempty" yaml:"earliest,omitempty"`
	Latest   *time.Time `json:"latest,omitempty" yaml:"latest,omitempty"`
}

// TimelinePattern labels which side of the comparison acted first.
type TimelinePattern string

const (
	PatternFederalFirst       TimelinePattern = "federal_first"
	PatternLocalFirst         TimelinePattern = "local_first"
	PatternSimultaneous       TimelinePattern = "simultaneous"
	PatternSingleJurisdiction TimelinePattern = "single_jurisdiction"
	PatternNone               TimelinePattern = "none"
)

// TimelineAnalysis compares the earliest activity of the two most distinct
// populated sides.
type TimelineAnalysis struct {
	// Earliest maps each populated bucket to its first dated event.
	Earliest map[Bucket]time.Time `json:"earliest" yaml:"earliest"`

	// Upper and Lower name the compared sides. Upper is the broader
	// jurisdiction (or lobbying, when both sides share one level).
	Upper string `json:"upper,omitempty" yaml:"upper,omitempty"`
	Lower string `json:"lower,omitempty" yaml:"lower,omitempty"`

	// UpperStart and LowerStart are the earliest dates on each side.
	UpperStart *time.Time `json:"upper_start,omitempty" yaml:"upper_start,omitempty"`
	LowerStart *time.Time `json:"lower_start,omitempty" yaml:"lower_start,omitempty"`

	// GapDays is LowerStart minus UpperStart in days; positive when the upper
	// side acted first. Nil when fewer than two sides are populated.
	GapDays *int `json:"gap_days,omitempty" yaml:"gap_days,omitempty"`

	Pattern TimelinePattern `json:"pattern" yaml:"pattern"`

	// Events lists the dated events in chronological order.
	Events []TimelineEvent `json:"events,omitempty" yaml:"events,omitempty"`
}

// FinancialAnalysis compares spending on the two compared sides.
type FinancialAnalysis struct {
	UpperTotal float64 `json:"upper_total" yaml:"upper_total"`
	LowerTotal float64 `json:"lower_total" yaml:"lower_total"`

	// Ratio is larger total / smaller total. Nil when OneSided.
	Ratio *float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`

	// OneSided is true when the smaller total is zero, leaving the ratio undefined.
	OneSided bool `json:"one_sided" yaml:"one_sided"`

	// Larger names the side with the larger total.
	Larger string `json:"larger,omitempty" yaml:"larger,omitempty"`
}

// ScoreComponent is one normalized input to the composite score.
type ScoreComponent struct {
	Value   float64 `json:"value" yaml:"value"`
	Defined bool    `json:"defined" yaml:"defined"`

	// Basis explains the raw measurement behind Value.
	Basis string `json:"basis" yaml:"basis"`
}

// ScoreWeights are the composite score weights. The engine scales them to
// sum to 1, so with components in [0,1] the composite stays in [0,1].
type ScoreWeights struct {
	Timeline  float64 `json:"timeline" yaml:"timeline" mapstructure:"timeline"`
	Financial float64 `json:"financial" yaml:"financial" mapstructure:"financial"`
	Overlap   float64 `json:"overlap" yaml:"overlap" mapstructure:"overlap"`
}

// Validate rejects negative weights and weights that sum to zero.
func (w ScoreWeights) Validate() error {
	if w.Timeline < 0 || w.Financial < 0 || w.Overlap < 0 {
		return fmt.Errorf("score weights must not be negative: %+v", w)
	}
	if w.Timeline+w.Financial+w.Overlap == 0 {
		return errors.New("score weights sum to zero")
	}
	return nil
}

// Normalized returns w scaled to sum to 1. Call Validate first.
func (w ScoreWeights) Normalized() ScoreWeights {
	sum := w.Timeline + w.Financial + w.Overlap
	if sum == 0 {
		return w
	}
	return ScoreWeights{Timeline: w.Timeline / sum, Financial: w.Financial / sum, Overlap: w.Overlap / sum}
}

// CorrelationScore always carries its breakdown next to the composite.
type CorrelationScore struct {
	Composite float64        `json:"composite" yaml:"composite"`
	Timeline  ScoreComponent `json:"timeline_component" yaml:"timeline_component"`
	Financial ScoreComponent `json:"financial_component" yaml:"financial_component"`
	Overlap   ScoreComponent `json:"overlap_component" yaml:"overlap_component"`
	Weights   ScoreWeights   `json:"weights" yaml:"weights"`
}

// StrategyLabel is the strategic classification of an entity's activity.
type StrategyLabel string

const (
	StrategyInsufficientData      StrategyLabel = "insufficient_data"
	StrategySingleJurisdiction    StrategyLabel = "single_jurisdiction"
	StrategyTopDownInfluence      StrategyLabel = "top_down_influence"
	StrategyFederalFirstExpansion StrategyLabel = "federal_first_expansion"
	StrategyBottomUpEscalation    StrategyLabel = "bottom_up_escalation"
	StrategyLocalFirstExpansion   StrategyLabel = "local_first_expansion"
	StrategyCoordinatedMultilevel StrategyLabel = "coordinated_multilevel"
	StrategyParallelIndependent   StrategyLabel = "parallel_independent"
)

// StrategyClassification is the decision-table output with the rule that fired.
type StrategyClassification struct {
	Pattern TimelinePattern `json:"pattern" yaml:"pattern"`
	Label   StrategyLabel   `json:"label" yaml:"label"`
	Rule    string          `json:"rule" yaml:"rule"`
}

// SourceSummary reports per-source coverage across the searches behind a profile.
type SourceSummary struct {
	Records  int      `json:"records" yaml:"records"`
	Failures []string `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// CompanyProfile is the correlation engine's output for one entity.
type CompanyProfile struct {
	Entity       string   `json:"entity" yaml:"entity"`
	CanonicalKey string   `json:"canonical_key" yaml:"canonical_key"`
	Aliases      []string `json:"aliases" yaml:"aliases"`

	Buckets map[Bucket]BucketTotals `json:"buckets" yaml:"buckets"`

	Timeline       TimelineAnalysis       `json:"timeline" yaml:"timeline"`
	Financial      FinancialAnalysis      `json:"financial" yaml:"financial"`
	Score          CorrelationScore       `json:"score" yaml:"score"`
	Classification StrategyClassification `json:"classification" yaml:"classification"`
	Insights       []string               `json:"insights" yaml:"insights"`

	// InsufficientData is true when no bucket was populated.
	InsufficientData bool `json:"insufficient_data" yaml:"insufficient_data"`

	// Excluded counts records dropped because their name resolved to a different entity.
	Excluded int `json:"excluded" yaml:"excluded"`

	Sources   map[string]SourceSummary `json:"sources,omitempty" yaml:"sources,omitempty"`
	CacheHit  bool                     `json:"cache_hit" yaml:"cache_hit"`
	Generated time.Time                `json:"generated_at" yaml:"generated_at"`
}

// Err returns ErrInsufficientData when no bucket was populated, else nil.
func (p *CompanyProfile) Err() error {
	if p.InsufficientData {
		return ErrInsufficientData
	}
	return nil
}
