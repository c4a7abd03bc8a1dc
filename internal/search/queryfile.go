// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// QueryFile is the on-disk representation of a search and its results. An
// analyst can save a search and reload it later without re-querying the
// providers.
type QueryFile struct {
	Query   types.SearchRequest `yaml:"query"`
	Records []types.Record      `yaml:"records"`
	Summary QuerySummary        `yaml:"summary"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int                           `yaml:"total"`
	TotalHits         map[string]int                `yaml:"total_hits"`
	Sources           map[string]types.SourceStatus `yaml:"sources"`
	DuplicatesRemoved int                           `yaml:"duplicates_removed"`
	FailedSources     []string                      `yaml:"failed_sources,omitempty"`
	Degraded          bool                          `yaml:"degraded,omitempty"`
	Timestamp         time.Time                     `yaml:"timestamp"`
}

// WriteQueryFile saves a search request and its result to a YAML file.
func WriteQueryFile(path string, res *types.SearchResult) error {
	qf := QueryFile{
		Query:   res.Request,
		Records: res.Records,
		Summary: QuerySummary{
			Total:             len(res.Records),
			TotalHits:         res.TotalHits,
			Sources:           res.PerSourceStatus,
			DuplicatesRemoved: res.DuplicatesRemoved,
			FailedSources:     res.FailedSources(),
			Degraded:          res.Degraded,
			Timestamp:         res.SearchedAt,
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// Result rebuilds the search result a query file was written from. Raw
// payloads are not stored in query files and come back empty.
func (qf *QueryFile) Result() *types.SearchResult {
	return &types.SearchResult{
		Request:           qf.Query,
		Records:           qf.Records,
		TotalHits:         qf.Summary.TotalHits,
		PerSourceStatus:   qf.Summary.Sources,
		DuplicatesRemoved: qf.Summary.DuplicatesRemoved,
		Degraded:          qf.Summary.Degraded,
		SearchedAt:        qf.Summary.Timestamp,
	}
}
