// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// ClassifyInput is everything the decision table looks at.
type ClassifyInput struct {
	// Populated is the number of buckets holding at least one record.
	Populated int

	Pattern   types.TimelinePattern
	Upper     string
	Lower     string
	Financial types.FinancialAnalysis
	Overlap   types.ScoreComponent
}

// Thresholds used by the decision table.
type Thresholds struct {
	// DominantRatio is the investment ratio at or above which the larger
	// side dominates. One-sided spending always dominates.
	DominantRatio float64

	// HighOverlap is the active-year overlap at or above which simultaneous
	// activity counts as coordinated.
	HighOverlap float64
}

type decision struct {
	rule  string
	label types.StrategyLabel
	match func(ClassifyInput, Thresholds) bool
}

// decisionTable is evaluated top to bottom; the first match wins and the
// last row always matches.
//
//	rule                   pattern                 condition                         label
//	no_populated_buckets   -                       no records                        insufficient_data
//	single_side            single_jurisdiction     -                                 single_jurisdiction
//	undated_sides          none                    -                                 insufficient_data
//	upper_first_dominant   federal_first           upper spends >= DominantRatio x   top_down_influence
//	upper_first            federal_first           -                                 federal_first_expansion
//	lower_first_dominant   local_first             lower spends >= DominantRatio x   bottom_up_escalation
//	lower_first            local_first             -                                 local_first_expansion
//	simultaneous_overlap   simultaneous            overlap >= HighOverlap            coordinated_multilevel
//	simultaneous           simultaneous            -                                 parallel_independent
var decisionTable = []decision{
	{"no_populated_buckets", types.StrategyInsufficientData, func(in ClassifyInput, _ Thresholds) bool {
		return in.Populated == 0
	}},
	{"single_side", types.StrategySingleJurisdiction, func(in ClassifyInput, _ Thresholds) bool {
		return in.Pattern == types.PatternSingleJurisdiction
	}},
	{"undated_sides", types.StrategyInsufficientData, func(in ClassifyInput, _ Thresholds) bool {
		return in.Pattern == types.PatternNone
	}},
	{"upper_first_dominant", types.StrategyTopDownInfluence, func(in ClassifyInput, th Thresholds) bool {
		return in.Pattern == types.PatternFederalFirst && dominates(in.Financial, in.Upper, th)
	}},
	{"upper_first", types.StrategyFederalFirstExpansion, func(in ClassifyInput, _ Thresholds) bool {
		return in.Pattern == types.PatternFederalFirst
	}},
	{"lower_first_dominant", types.StrategyBottomUpEscalation, func(in ClassifyInput, th Thresholds) bool {
		return in.Pattern == types.PatternLocalFirst && dominates(in.Financial, in.Lower, th)
	}},
	{"lower_first", types.StrategyLocalFirstExpansion, func(in ClassifyInput, _ Thresholds) bool {
		return in.Pattern == types.PatternLocalFirst
	}},
	{"simultaneous_overlap", types.StrategyCoordinatedMultilevel, func(in ClassifyInput, th Thresholds) bool {
		return in.Overlap.Defined && in.Overlap.Value >= th.HighOverlap
	}},
	{"simultaneous", types.StrategyParallelIndependent, func(ClassifyInput, Thresholds) bool {
		return true
	}},
}

func dominates(fin types.FinancialAnalysis, name string, th Thresholds) bool {
	if name == "" || fin.Larger != name {
		return false
	}
	return fin.OneSided || (fin.Ratio != nil && *fin.Ratio >= th.DominantRatio)
}

// Classify maps the analysis to a strategy label. It is a pure function of
// its arguments.
func Classify(in ClassifyInput, th Thresholds) types.StrategyClassification {
	for _, d := range decisionTable {
		if d.match(in, th) {
			return types.StrategyClassification{Pattern: in.Pattern, Label: d.label, Rule: d.rule}
		}
	}
	// Unreachable: the last row always matches.
	return types.StrategyClassification{Pattern: in.Pattern, Label: types.StrategyInsufficientData}
}
