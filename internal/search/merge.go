// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"sort"

	"github.com/pdiddy/diligence-engine/internal/adapter"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// merge combines the per-adapter slots into one result. It runs once, after
// every adapter has settled, so completion order never reaches the output.
func (o *Orchestrator) merge(req types.SearchRequest, selected []adapter.Adapter, slots []outcome) *types.SearchResult {
	res := &types.SearchResult{
		Request:         req,
		Records:         []types.Record{},
		TotalHits:       make(map[string]int, len(selected)),
		PerSourceStatus: make(map[string]types.SourceStatus, len(selected)),
		SearchedAt:      o.now().UTC(),
	}

	var all []types.Record
	failed := 0
	for i, a := range selected {
		st := slots[i].status
		res.PerSourceStatus[a.ID()] = st
		if st.State != types.StateOK {
			failed++
		}
		all = append(all, slots[i].records...)
	}
	res.Degraded = len(selected) > 0 && failed == len(selected)

	res.Records, res.DuplicatesRemoved = Deduplicate(all)
	SortRecords(res.Records)

	for _, a := range selected {
		res.TotalHits[a.ID()] = 0
	}
	for _, r := range res.Records {
		res.TotalHits[r.SourceID]++
	}
	return res
}

// Deduplicate collapses records sharing (source, id), keeping the one with
// the highest confidence. It returns the survivors in first-seen order and
// the number removed.
func Deduplicate(records []types.Record) ([]types.Record, int) {
	seen := make(map[string]int, len(records))
	out := make([]types.Record, 0, len(records))
	removed := 0
	for _, r := range records {
		key := r.DedupKey()
		if idx, ok := seen[key]; ok {
			if r.Confidence > out[idx].Confidence {
				out[idx] = r
			}
			removed++
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out, removed
}

// SortRecords orders records by confidence descending, then amount
// descending, then date descending (missing amounts and dates last), then
// source and id ascending. The order is total, so equal inputs always sort
// identically.
func SortRecords(records []types.Record) {
	sort.Slice(records, func(i, j int) bool {
		return recordLess(records[i], records[j])
	})
}

func recordLess(a, b types.Record) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	switch {
	case a.Amount != nil && b.Amount == nil:
		return true
	case a.Amount == nil && b.Amount != nil:
		return false
	case a.Amount != nil && *a.Amount != *b.Amount:
		return *a.Amount > *b.Amount
	}
	switch {
	case a.Date != nil && b.Date == nil:
		return true
	case a.Date == nil && b.Date != nil:
		return false
	case a.Date != nil && !a.Date.Equal(*b.Date):
		return a.Date.After(*b.Date)
	}
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	return a.ID < b.ID
}
