// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// SenateLDA queries the Senate Lobbying Disclosure Act filings API. A company
// appears either as the client of an outside lobbying firm or as a registrant
// lobbying on its own behalf, so both name fields are searched.
type SenateLDA struct {
	*Base
}

func newSenateLDA(base *Base, _ types.SourceConfig) (Adapter, error) {
	return &SenateLDA{Base: base}, nil
}

// senateNameFields are the filing filters searched, in merge order.
var senateNameFields = []string{"client_name", "registrant_name"}

// Search returns the filings whose client or registrant matches query.
func (a *SenateLDA) Search(ctx context.Context, query string, f Filters) ([]types.Record, error) {
	if a.skip(f) {
		return nil, nil
	}

	perField := make([][]types.Record, len(senateNameFields))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, field := range senateNameFields {
		g.Go(func() error {
			recs, err := a.searchField(gctx, field, query, f)
			if err != nil {
				return err
			}
			perField[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Unavailable(a.id, err)
	}

	var out []types.Record
	for _, recs := range perField {
		out = append(out, recs...)
	}
	return dedupe(out), nil
}

func (a *SenateLDA) searchField(ctx context.Context, field, query string, f Filters) ([]types.Record, error) {
	params := url.Values{
		field:       {query},
		"page_size": {strconv.Itoa(a.limit(f))},
		"ordering":  {"-dt_posted"},
	}
	if f.Year > 0 {
		params.Set("filing_year", strconv.Itoa(f.Year))
	}

	header := http.Header{}
	if a.apiKey != "" {
		header.Set("Authorization", "Token "+a.apiKey)
	}

	var resp ldaResponse
	if err := a.getJSON(ctx, a.baseURL+"/filings/?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	var out []types.Record
	for _, raw := range resp.Results {
		var fl ldaFiling
		if err := json.Unmarshal(raw, &fl); err != nil {
			return nil, &badData{err: err}
		}

		name := fl.Client.Name
		if field == "registrant_name" {
			name = fl.Registrant.Name
		}

		// Firms report income from the client; self-filers report expenses.
		amountField := fl.Income
		if amountField == nil {
			amountField = fl.Expenses
		}
		amount, err := parseAmount(amountField)
		if err != nil {
			return nil, &badData{err: err}
		}

		date := parseDate(fl.DatePosted)
		if date == nil && fl.FilingYear > 0 {
			date = types.Day(fl.FilingYear, 1, 1)
		}

		if r, ok := a.record(fl.FilingUUID, name, amount, date, types.ActivityLobbying, raw); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Senate LDA API JSON structures.
type ldaResponse struct {
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

type ldaFiling struct {
	FilingUUID string   `json:"filing_uuid"`
	FilingType string   `json:"filing_type"`
	FilingYear int      `json:"filing_year"`
	Income     any      `json:"income"`
	Expenses   any      `json:"expenses"`
	DatePosted string   `json:"dt_posted"`
	Registrant ldaParty `json:"registrant"`
	Client     ldaParty `json:"client"`
}

type ldaParty struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
