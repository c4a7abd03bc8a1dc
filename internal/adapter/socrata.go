// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Socrata queries one or more datasets on a Socrata open-data portal (SODA
// API). State and municipal sources are configured instances of this kind,
// each mapping its dataset columns onto Record fields.
type Socrata struct {
	*Base
	datasets []types.DatasetConfig
}

func newSocrata(base *Base, cfg types.SourceConfig) (Adapter, error) {
	if len(cfg.Datasets) == 0 {
		return nil, fmt.Errorf("source %q: socrata sources need at least one dataset", cfg.ID)
	}
	for _, ds := range cfg.Datasets {
		if ds.ID == "" || ds.NameField == "" {
			return nil, fmt.Errorf("source %q: dataset needs id and name_field", cfg.ID)
		}
	}
	return &Socrata{Base: base, datasets: cfg.Datasets}, nil
}

// Search queries every dataset concurrently and joins the rows in dataset
// order. Any dataset failing fails the source.
func (a *Socrata) Search(ctx context.Context, query string, f Filters) ([]types.Record, error) {
	if a.skip(f) {
		return nil, nil
	}

	perDataset := make([][]types.Record, len(a.datasets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, ds := range a.datasets {
		g.Go(func() error {
			recs, err := a.searchDataset(gctx, ds, query, f)
			if err != nil {
				return fmt.Errorf("dataset %s: %w", ds.ID, err)
			}
			perDataset[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Unavailable(a.id, err)
	}

	var out []types.Record
	for _, recs := range perDataset {
		out = append(out, recs...)
	}
	return dedupe(out), nil
}

func (a *Socrata) searchDataset(ctx context.Context, ds types.DatasetConfig, query string, f Filters) ([]types.Record, error) {
	params := url.Values{
		"$q":     {query},
		"$limit": {strconv.Itoa(a.limit(f))},
	}
	if f.Year > 0 && ds.DateField != "" {
		params.Set("$where", fmt.Sprintf("date_extract_y(%s)=%d", ds.DateField, f.Year))
	}
	if ds.DateField != "" {
		params.Set("$order", ds.DateField+" DESC")
	}

	header := http.Header{}
	if a.apiKey != "" {
		header.Set("X-App-Token", a.apiKey)
	}

	var rows []json.RawMessage
	reqURL := fmt.Sprintf("%s/resource/%s.json?%s", a.baseURL, ds.ID, params.Encode())
	if err := a.getJSON(ctx, reqURL, header, &rows); err != nil {
		return nil, err
	}

	var out []types.Record
	for _, raw := range rows {
		row := map[string]any{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&row); err != nil {
			return nil, &badData{err: err}
		}

		name, _ := row[ds.NameField].(string)
		var amount *float64
		if ds.AmountField != "" {
			v, err := parseAmount(row[ds.AmountField])
			if err != nil {
				return nil, &badData{err: err}
			}
			amount = v
		}
		var date string
		if ds.DateField != "" {
			date, _ = row[ds.DateField].(string)
		}
		var upstreamID string
		if ds.IDField != "" {
			upstreamID = fieldString(row[ds.IDField])
		}
		if upstreamID != "" {
			upstreamID = ds.ID + ":" + upstreamID
		}

		if r, ok := a.record(upstreamID, name, amount, parseDate(date), ds.Activity, raw); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// fieldString renders a scalar column value as text.
func fieldString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
