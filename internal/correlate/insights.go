// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// insights renders a fixed set of sentences from the computed metrics.
func insights(p *types.CompanyProfile) []string {
	pr := message.NewPrinter(language.English)
	var out []string

	if p.InsufficientData {
		out = append(out, pr.Sprintf("No government activity was found for %s in any jurisdiction.", p.Entity))
		return excludedInsight(pr, p, out)
	}

	tl := p.Timeline
	switch tl.Pattern {
	case types.PatternSingleJurisdiction:
		for _, b := range sortedBuckets(p.Buckets) {
			t := p.Buckets[b]
			out = append(out, pr.Sprintf("All activity falls in %s: %d records totaling $%.0f.", b, t.Count, t.Total))
		}
	case types.PatternFederalFirst, types.PatternLocalFirst:
		first, then := tl.Upper, tl.Lower
		if tl.Pattern == types.PatternLocalFirst {
			first, then = then, first
		}
		gap := abs(*tl.GapDays)
		out = append(out, pr.Sprintf("%s activity preceded %s activity by %d days (%.1f years).",
			first, then, gap, float64(gap)/365.25))
	case types.PatternSimultaneous:
		out = append(out, pr.Sprintf("%s and %s activity began within %d days of each other.",
			tl.Upper, tl.Lower, abs(*tl.GapDays)))
	case types.PatternNone:
		out = append(out, pr.Sprintf("%s and %s activity carry no dates to compare.", tl.Upper, tl.Lower))
	}

	fin := p.Financial
	switch {
	case fin.Ratio != nil:
		smallerName, smaller := tl.Lower, fin.LowerTotal
		larger := fin.UpperTotal
		if fin.Larger == tl.Lower {
			smallerName, smaller, larger = tl.Upper, fin.UpperTotal, fin.LowerTotal
		}
		out = append(out, pr.Sprintf("%s spending of $%.0f is %.0f times %s spending of $%.0f.",
			fin.Larger, larger, *fin.Ratio, smallerName, smaller))
	case fin.OneSided && fin.Larger != "":
		out = append(out, pr.Sprintf("Only %s activity reports amounts; the investment ratio is undefined.", fin.Larger))
	}

	if tl.Pattern != types.PatternSingleJurisdiction {
		out = append(out, pr.Sprintf("Active-year overlap: %s.", p.Score.Overlap.Basis))
	}
	out = append(out, pr.Sprintf("Composite score %.2f (timeline %.2f, financial %.2f, overlap %.2f); classified %s.",
		p.Score.Composite, p.Score.Timeline.Value, p.Score.Financial.Value, p.Score.Overlap.Value, p.Classification.Label))

	return excludedInsight(pr, p, out)
}

func excludedInsight(pr *message.Printer, p *types.CompanyProfile, out []string) []string {
	if p.Excluded > 0 {
		out = append(out, pr.Sprintf("%d records naming other entities were excluded.", p.Excluded))
	}
	return out
}
