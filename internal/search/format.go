// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// FormatTable writes a result as a human-readable table to w, followed by
// the status of every queried source.
func FormatTable(res *types.SearchResult, w io.Writer) {
	p := message.NewPrinter(language.English)

	if len(res.Records) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		fmt.Fprintf(w, "%-4s  %-40s  %16s  %-10s  %-18s  %-5s  %s\n",
			"Rank", "Entity", "Amount", "Date", "Bucket", "Conf", "Source")
		fmt.Fprintln(w, strings.Repeat("-", 118))

		for i, r := range res.Records {
			amount := ""
			if r.Amount != nil {
				amount = p.Sprintf("$%.2f", *r.Amount)
			}
			date := ""
			if r.Date != nil {
				date = r.Date.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%-4d  %-40s  %16s  %-10s  %-18s  %-5.2f  %s\n",
				i+1, truncate(r.EntityName, 40), amount, date, r.Bucket(), r.Confidence, r.SourceID)
		}
	}

	fmt.Fprintf(w, "\n%d results", len(res.Records))
	if res.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", res.DuplicatesRemoved)
	}
	if res.CacheHit {
		fmt.Fprint(w, " [cached]")
	}
	if res.Degraded {
		fmt.Fprint(w, " [degraded: every source failed]")
	}
	fmt.Fprintln(w)

	ids := make([]string, 0, len(res.PerSourceStatus))
	for id := range res.PerSourceStatus {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := res.PerSourceStatus[id]
		line := fmt.Sprintf("  %-16s %-8s hits=%d raw=%d rejected=%d %s",
			id, st.State, res.TotalHits[id], st.Raw, st.Rejected, st.Duration.Round(time.Millisecond))
		if st.Error != "" {
			line += "  " + st.Error
		}
		fmt.Fprintln(w, line)
	}
}

// FormatJSON writes a result as indented JSON to w.
func FormatJSON(res *types.SearchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
