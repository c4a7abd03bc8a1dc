// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"fmt"
	"math"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// analyzeFinancial totals spending on each compared side. When the smaller
// total is zero the ratio is left undefined and the analysis is one-sided.
func analyzeFinancial(buckets map[types.Bucket]types.BucketTotals, upper, lower side, ok bool) types.FinancialAnalysis {
	if !ok {
		return types.FinancialAnalysis{}
	}
	var fin types.FinancialAnalysis
	for _, b := range upper.buckets {
		fin.UpperTotal += buckets[b].Total
	}
	for _, b := range lower.buckets {
		fin.LowerTotal += buckets[b].Total
	}

	larger, smaller := fin.UpperTotal, fin.LowerTotal
	fin.Larger = upper.name
	if fin.LowerTotal > fin.UpperTotal {
		larger, smaller = fin.LowerTotal, fin.UpperTotal
		fin.Larger = lower.name
	}
	if smaller == 0 {
		fin.OneSided = true
		if larger == 0 {
			fin.Larger = ""
		}
		return fin
	}
	ratio := larger / smaller
	fin.Ratio = &ratio
	return fin
}

// timelineComponent scales the absolute gap so that saturationDays maps to 1.
func timelineComponent(tl types.TimelineAnalysis, saturationDays int) types.ScoreComponent {
	if tl.GapDays == nil {
		return types.ScoreComponent{Basis: "no dated activity on both sides"}
	}
	gap := abs(*tl.GapDays)
	return types.ScoreComponent{
		Value:   math.Min(float64(gap)/float64(saturationDays), 1),
		Defined: true,
		Basis:   fmt.Sprintf("gap %d days / %d", gap, saturationDays),
	}
}

// financialComponent scales log10 of the investment ratio.
func financialComponent(fin types.FinancialAnalysis, saturationLog10 float64) types.ScoreComponent {
	if fin.Ratio == nil {
		if fin.OneSided {
			return types.ScoreComponent{Basis: "one-sided spending"}
		}
		return types.ScoreComponent{Basis: "no second side to compare"}
	}
	return types.ScoreComponent{
		Value:   math.Min(math.Log10(*fin.Ratio)/saturationLog10, 1),
		Defined: true,
		Basis:   fmt.Sprintf("log10(%.2f) / %g", *fin.Ratio, saturationLog10),
	}
}

// overlapComponent is the Jaccard index of the two sides' active years.
func overlapComponent(records []types.Record, upper, lower side, ok bool) types.ScoreComponent {
	if !ok {
		return types.ScoreComponent{Basis: "no second side to compare"}
	}
	a, b := activeYears(records, upper), activeYears(records, lower)
	if len(a) == 0 || len(b) == 0 {
		return types.ScoreComponent{Basis: "no dated activity on both sides"}
	}
	shared := 0
	for y := range a {
		if b[y] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return types.ScoreComponent{
		Value:   float64(shared) / float64(union),
		Defined: true,
		Basis:   fmt.Sprintf("%d shared of %d active years", shared, union),
	}
}

// compositeScore weights the components. Undefined components contribute 0.
func compositeScore(w types.ScoreWeights, timeline, financial, overlap types.ScoreComponent) types.CorrelationScore {
	s := types.CorrelationScore{
		Timeline:  timeline,
		Financial: financial,
		Overlap:   overlap,
		Weights:   w,
	}
	for _, c := range []struct {
		weight float64
		comp   types.ScoreComponent
	}{{w.Timeline, timeline}, {w.Financial, financial}, {w.Overlap, overlap}} {
		if c.comp.Defined {
			s.Composite += c.weight * c.comp.Value
		}
	}
	return s
}
