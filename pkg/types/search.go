// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SearchRequest is the normalized input to one search.
type SearchRequest struct {
	// Query is the entity name to look for.
	Query string `json:"query" yaml:"query"`

	// Year restricts results to a single calendar year. Zero means any year.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Jurisdiction restricts the search to sources of one level. Empty means all.
	Jurisdiction Jurisdiction `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`

	// Sources restricts the search to a subset of configured source IDs.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	// MaxResults caps the records requested from each source. Zero uses the
	// source's configured limit.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

// minYear is the earliest filing year any configured provider publishes.
const minYear = 1990

// Normalize returns a copy with the query trimmed and internal whitespace collapsed.
func (r SearchRequest) Normalize() SearchRequest {
	r.Query = strings.Join(strings.Fields(r.Query), " ")
	return r
}

// Validate reports malformed requests: empty query, out-of-range year, or
// unknown jurisdiction.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query is empty: provide an entity name")
	}
	if r.Year != 0 {
		maxYear := time.Now().Year() + 1
		if r.Year < minYear || r.Year > maxYear {
			return fmt.Errorf("year %d out of range %d-%d", r.Year, minYear, maxYear)
		}
	}
	if r.Jurisdiction != "" && !r.Jurisdiction.Valid() {
		return fmt.Errorf("unknown jurisdiction %q", r.Jurisdiction)
	}
	if r.MaxResults < 0 {
		return fmt.Errorf("max results must not be negative")
	}
	return nil
}

// SourceState is the terminal state of one adapter call.
type SourceState string

const (
	StateOK      SourceState = "ok"
	StateTimeout SourceState = "timeout"
	StateError   SourceState = "error"
)

// SourceStatus reports how one source fared during a search.
type SourceStatus struct {
	State SourceState `json:"state" yaml:"state"`

	// Error is the failure message for timeout and error states.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Raw is the number of candidates the adapter returned before validation.
	Raw int `json:"raw" yaml:"raw"`

	// Rejected is the number of candidates the name validator filtered out.
	Rejected int `json:"rejected" yaml:"rejected"`

	// Duration is how long the adapter call took.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// SearchResult is the orchestrator's output for one search.
type SearchResult struct {
	// Request echoes the normalized request that produced the result.
	Request SearchRequest `json:"request" yaml:"request"`

	// Records are the validated, deduplicated records in final order.
	Records []Record `json:"records" yaml:"records"`

	// TotalHits counts validated records per source.
	TotalHits map[string]int `json:"total_hits" yaml:"total_hits"`

	// PerSourceStatus records the outcome of every queried source.
	PerSourceStatus map[string]SourceStatus `json:"per_source_status" yaml:"per_source_status"`

	// CacheHit is true when the result was served from the cache.
	CacheHit bool `json:"cache_hit" yaml:"cache_hit"`

	// Degraded is true when every queried source failed.
	Degraded bool `json:"degraded" yaml:"degraded"`

	// DuplicatesRemoved counts records collapsed during merge.
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`

	// SearchedAt is when the fan-out completed.
	SearchedAt time.Time `json:"searched_at" yaml:"searched_at"`
}

// FailedSources returns the IDs of sources that timed out or errored, sorted.
func (r *SearchResult) FailedSources() []string {
	var failed []string
	for id, st := range r.PerSourceStatus {
		if st.State != StateOK {
			failed = append(failed, id)
		}
	}
	sort.Strings(failed)
	return failed
}
