// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the diligence-engine:
// normalized records, search requests and results, correlation profiles,
// and the configuration consumed by every stage.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Jurisdiction is the governing level of the authority that published a record.
type Jurisdiction string

const (
	JurisdictionFederal Jurisdiction = "federal"
	JurisdictionState   Jurisdiction = "state"
	JurisdictionLocal   Jurisdiction = "local"
)

// Jurisdictions lists the known levels from broadest to narrowest.
var Jurisdictions = []Jurisdiction{JurisdictionFederal, JurisdictionState, JurisdictionLocal}

// Valid reports whether j is one of the known levels.
func (j Jurisdiction) Valid() bool {
	switch j {
	case JurisdictionFederal, JurisdictionState, JurisdictionLocal:
		return true
	}
	return false
}

// Rank orders levels from broadest (0) to narrowest (2). Unknown levels rank -1.
func (j Jurisdiction) Rank() int {
	for i, l := range Jurisdictions {
		if l == j {
			return i
		}
	}
	return -1
}

// ParseJurisdiction converts user input ("Federal", "municipal", "city") to a Jurisdiction.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "federal", "fed", "us":
		return JurisdictionFederal, nil
	case "state":
		return JurisdictionState, nil
	case "local", "municipal", "city", "county":
		return JurisdictionLocal, nil
	}
	return "", fmt.Errorf("unknown jurisdiction %q: use federal, state, or local", s)
}

// Activity is the kind of government interaction a record documents.
type Activity string

const (
	ActivityLobbying  Activity = "lobbying"
	ActivityContracts Activity = "contracts"
)

// Bucket groups records by jurisdiction level and activity (e.g. "federal_lobbying").
type Bucket string

// BucketOf returns the bucket for a jurisdiction and activity pair.
func BucketOf(j Jurisdiction, a Activity) Bucket {
	return Bucket(string(j) + "_" + string(a))
}

// Jurisdiction returns the level half of the bucket name.
func (b Bucket) Jurisdiction() Jurisdiction {
	level, _, _ := strings.Cut(string(b), "_")
	return Jurisdiction(level)
}

// Activity returns the activity half of the bucket name.
func (b Bucket) Activity() Activity {
	_, act, _ := strings.Cut(string(b), "_")
	return Activity(act)
}

// Record is one normalized result returned by a data source adapter.
type Record struct {
	// ID is the stable identifier: a name-based UUID derived from the
	// upstream key or, when the upstream has none, from the record content.
	ID string `json:"id" yaml:"id"`

	// SourceID names the configured source that produced the record.
	SourceID string `json:"source_id" yaml:"source_id"`

	// UpstreamID is the provider's own key for the row, when it has one.
	UpstreamID string `json:"upstream_id,omitempty" yaml:"upstream_id,omitempty"`

	// EntityName is the company or person name as the provider spells it.
	EntityName string `json:"entity_name" yaml:"entity_name"`

	// Amount is the dollar value (lobbying income/expense, award amount).
	// Nil when the provider reports no amount; never negative.
	Amount *float64 `json:"amount,omitempty" yaml:"amount,omitempty"`

	// Date is the filing, posting, or award start date.
	Date *time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Jurisdiction is the level of the publishing authority.
	Jurisdiction Jurisdiction `json:"jurisdiction" yaml:"jurisdiction"`

	// Activity distinguishes lobbying disclosures from contract awards.
	Activity Activity `json:"activity" yaml:"activity"`

	// Confidence is the name-match score assigned during validation (0.0-1.0).
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// RawPayload is the upstream row, kept for audit.
	RawPayload json.RawMessage `json:"raw_payload,omitempty" yaml:"-"`
}

// Bucket returns the jurisdiction bucket the record belongs to.
func (r Record) Bucket() Bucket {
	return BucketOf(r.Jurisdiction, r.Activity)
}

// AmountValue returns the amount or zero when absent.
func (r Record) AmountValue() float64 {
	if r.Amount == nil {
		return 0
	}
	return *r.Amount
}

// DedupKey is the (source, id) pair used to collapse duplicates.
func (r Record) DedupKey() string {
	return r.SourceID + "/" + r.ID
}

// Float returns a pointer to v. Adapters and tests use it to fill Record.Amount.
func Float(v float64) *float64 { return &v }

// Day returns a pointer to midnight UTC on the given date.
func Day(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
