// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Buckets sums records per jurisdiction bucket. Records without an amount
// count toward Count but add nothing to Total.
func Buckets(records []types.Record) map[types.Bucket]types.BucketTotals {
	out := make(map[types.Bucket]types.BucketTotals)
	for _, r := range records {
		b := r.Bucket()
		t := out[b]
		t.Count++
		t.Total += r.AmountValue()
		if r.Date != nil {
			d := *r.Date
			if t.Earliest == nil || d.Before(*t.Earliest) {
				t.Earliest = &d
			}
			if t.Latest == nil || d.After(*t.Latest) {
				l := d
				t.Latest = &l
			}
		}
		out[b] = t
	}
	return out
}

// side is one half of a comparison: a whole jurisdiction level, or a single
// bucket when only one level is populated.
type side struct {
	name    string
	buckets []types.Bucket
}

func (s side) has(b types.Bucket) bool { return slices.Contains(s.buckets, b) }

func levelSide(j types.Jurisdiction) side {
	return side{name: string(j), buckets: []types.Bucket{
		types.BucketOf(j, types.ActivityLobbying),
		types.BucketOf(j, types.ActivityContracts),
	}}
}

// levelPairs lists level comparisons from most to least distinct.
var levelPairs = [][2]types.Jurisdiction{
	{types.JurisdictionFederal, types.JurisdictionLocal},
	{types.JurisdictionFederal, types.JurisdictionState},
	{types.JurisdictionState, types.JurisdictionLocal},
}

// compareSides picks the two sides to compare. Levels win over activities:
// lobbying and contracts within one level are compared only when no second
// level is populated.
func compareSides(buckets map[types.Bucket]types.BucketTotals) (upper, lower side, ok bool) {
	populated := func(b types.Bucket) bool { return buckets[b].Count > 0 }
	levelPopulated := func(j types.Jurisdiction) bool {
		return slices.ContainsFunc(levelSide(j).buckets, populated)
	}

	for _, p := range levelPairs {
		if levelPopulated(p[0]) && levelPopulated(p[1]) {
			return levelSide(p[0]), levelSide(p[1]), true
		}
	}
	for _, j := range types.Jurisdictions {
		lob := types.BucketOf(j, types.ActivityLobbying)
		con := types.BucketOf(j, types.ActivityContracts)
		if populated(lob) && populated(con) {
			return side{name: string(lob), buckets: []types.Bucket{lob}},
				side{name: string(con), buckets: []types.Bucket{con}}, true
		}
	}
	return side{}, side{}, false
}

func earliest(buckets map[types.Bucket]types.BucketTotals, s side) *time.Time {
	var first *time.Time
	for _, b := range s.buckets {
		e := buckets[b].Earliest
		if e != nil && (first == nil || e.Before(*first)) {
			first = e
		}
	}
	return first
}

// daysBetween returns b minus a in whole days.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// analyzeTimeline compares the earliest activity on each side. The pattern
// is PatternNone with no populated buckets or when a compared side has no
// dated record, and PatternSingleJurisdiction when there is nothing to
// compare against.
func analyzeTimeline(records []types.Record, buckets map[types.Bucket]types.BucketTotals, upper, lower side, ok bool, simultaneousDays int) types.TimelineAnalysis {
	tl := types.TimelineAnalysis{
		Earliest: make(map[types.Bucket]time.Time),
		Pattern:  types.PatternNone,
		Events:   events(records),
	}
	for b, t := range buckets {
		if t.Earliest != nil {
			tl.Earliest[b] = *t.Earliest
		}
	}

	if len(buckets) == 0 {
		return tl
	}
	if !ok {
		tl.Pattern = types.PatternSingleJurisdiction
		return tl
	}

	tl.Upper, tl.Lower = upper.name, lower.name
	tl.UpperStart = earliest(buckets, upper)
	tl.LowerStart = earliest(buckets, lower)
	if tl.UpperStart == nil || tl.LowerStart == nil {
		return tl
	}

	gap := daysBetween(*tl.UpperStart, *tl.LowerStart)
	tl.GapDays = &gap
	switch {
	case abs(gap) < simultaneousDays:
		tl.Pattern = types.PatternSimultaneous
	case gap > 0:
		tl.Pattern = types.PatternFederalFirst
	default:
		tl.Pattern = types.PatternLocalFirst
	}
	return tl
}

// events lists the dated records in chronological order.
func events(records []types.Record) []types.TimelineEvent {
	var out []types.TimelineEvent
	for _, r := range records {
		if r.Date == nil {
			continue
		}
		out = append(out, types.TimelineEvent{
			Date:   *r.Date,
			Bucket: r.Bucket(),
			Amount: r.AmountValue(),
			Source: r.SourceID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Bucket != b.Bucket {
			return a.Bucket < b.Bucket
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Amount > b.Amount
	})
	return out
}

// activeYears returns the calendar years in which a side has dated records.
func activeYears(records []types.Record, s side) map[int]bool {
	years := make(map[int]bool)
	for _, r := range records {
		if r.Date != nil && s.has(r.Bucket()) {
			years[r.Date.Year()] = true
		}
	}
	return years
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
