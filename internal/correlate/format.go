// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// FormatProfile writes a human-readable profile report to w.
func FormatProfile(p *types.CompanyProfile, w io.Writer) {
	pr := message.NewPrinter(language.English)

	fmt.Fprintf(w, "%s (%s)\n", p.Entity, p.CanonicalKey)
	if len(p.Aliases) > 0 {
		fmt.Fprintf(w, "Aliases: %s\n", strings.Join(p.Aliases, "; "))
	}
	fmt.Fprintln(w)

	if len(p.Buckets) > 0 {
		fmt.Fprintf(w, "%-18s  %6s  %18s  %-10s  %-10s\n", "Bucket", "Count", "Total", "Earliest", "Latest")
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, b := range sortedBuckets(p.Buckets) {
			t := p.Buckets[b]
			fmt.Fprintf(w, "%-18s  %6d  %18s  %-10s  %-10s\n",
				b, t.Count, pr.Sprintf("$%.2f", t.Total), day(t.Earliest), day(t.Latest))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Pattern:        %s\n", p.Timeline.Pattern)
	fmt.Fprintf(w, "Classification: %s (%s)\n", p.Classification.Label, p.Classification.Rule)
	fmt.Fprintf(w, "Score:          %.3f\n", p.Score.Composite)
	for _, c := range []struct {
		name   string
		weight float64
		comp   types.ScoreComponent
	}{
		{"timeline", p.Score.Weights.Timeline, p.Score.Timeline},
		{"financial", p.Score.Weights.Financial, p.Score.Financial},
		{"overlap", p.Score.Weights.Overlap, p.Score.Overlap},
	} {
		value := "undefined"
		if c.comp.Defined {
			value = fmt.Sprintf("%.3f", c.comp.Value)
		}
		fmt.Fprintf(w, "  %-10s x%.1f  %-9s  %s\n", c.name, c.weight, value, c.comp.Basis)
	}

	if len(p.Insights) > 0 {
		fmt.Fprintln(w)
		for _, s := range p.Insights {
			fmt.Fprintf(w, "- %s\n", s)
		}
	}

	if len(p.Sources) > 0 {
		fmt.Fprintln(w)
		for _, id := range SortedSources(p.Sources) {
			sm := p.Sources[id]
			line := fmt.Sprintf("  %-16s records=%d", id, sm.Records)
			if len(sm.Failures) > 0 {
				line += "  failed " + strings.Join(sm.Failures, ", ")
			}
			fmt.Fprintln(w, line)
		}
	}
	if p.CacheHit {
		fmt.Fprintln(w, "[cached]")
	}
}

// FormatProfileJSON writes a profile as indented JSON to w.
func FormatProfileJSON(p *types.CompanyProfile, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
