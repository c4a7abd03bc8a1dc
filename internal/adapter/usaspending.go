// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// contractAwardTypes are the USAspending award type codes for contracts.
var contractAwardTypes = []string{"A", "B", "C", "D"}

// usaspendingEpoch is the earliest date the award search accepts.
const usaspendingEpoch = "2007-10-01"

// USAspending queries federal contract awards by recipient name.
type USAspending struct {
	*Base
	now func() time.Time
}

func newUSAspending(base *Base, _ types.SourceConfig) (Adapter, error) {
	return &USAspending{Base: base, now: time.Now}, nil
}

// Search returns contract awards whose recipient matches query, largest first.
func (a *USAspending) Search(ctx context.Context, query string, f Filters) ([]types.Record, error) {
	if a.skip(f) {
		return nil, nil
	}

	period := usaPeriod{StartDate: usaspendingEpoch, EndDate: a.now().UTC().Format("2006-01-02")}
	if f.Year > 0 {
		period = usaPeriod{
			StartDate: fmt.Sprintf("%d-01-01", f.Year),
			EndDate:   fmt.Sprintf("%d-12-31", f.Year),
		}
	}

	body := usaRequest{
		Filters: usaFilters{
			RecipientSearchText: []string{query},
			AwardTypeCodes:      contractAwardTypes,
			TimePeriod:          []usaPeriod{period},
		},
		Fields: []string{"Award ID", "Recipient Name", "Award Amount", "Start Date", "generated_internal_id"},
		Limit:  a.limit(f),
		Page:   1,
		Sort:   "Award Amount",
		Order:  "desc",
	}

	var resp usaResponse
	if err := a.postJSON(ctx, a.baseURL+"/search/spending_by_award/", nil, body, &resp); err != nil {
		return nil, Unavailable(a.id, err)
	}

	var out []types.Record
	for _, raw := range resp.Results {
		var award usaAward
		if err := json.Unmarshal(raw, &award); err != nil {
			return nil, Unavailable(a.id, &badData{err: err})
		}
		amount, err := parseAmount(award.Amount)
		if err != nil {
			return nil, Unavailable(a.id, &badData{err: err})
		}

		upstreamID := award.GeneratedID
		if upstreamID == "" {
			upstreamID = award.AwardID
		}
		if r, ok := a.record(upstreamID, award.RecipientName, amount, parseDate(award.StartDate), types.ActivityContracts, raw); ok {
			out = append(out, r)
		}
	}
	return dedupe(out), nil
}

// USAspending API JSON structures.
type usaRequest struct {
	Filters usaFilters `json:"filters"`
	Fields  []string   `json:"fields"`
	Limit   int        `json:"limit"`
	Page    int        `json:"page"`
	Sort    string     `json:"sort"`
	Order   string     `json:"order"`
}

type usaFilters struct {
	RecipientSearchText []string    `json:"recipient_search_text"`
	AwardTypeCodes      []string    `json:"award_type_codes"`
	TimePeriod          []usaPeriod `json:"time_period"`
}

type usaPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type usaResponse struct {
	Results      []json.RawMessage `json:"results"`
	PageMetadata struct {
		Page    int  `json:"page"`
		HasNext bool `json:"hasNext"`
	} `json:"page_metadata"`
}

type usaAward struct {
	AwardID       string `json:"Award ID"`
	RecipientName string `json:"Recipient Name"`
	Amount        any    `json:"Award Amount"`
	StartDate     string `json:"Start Date"`
	GeneratedID   string `json:"generated_internal_id"`
}
