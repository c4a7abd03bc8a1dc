// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/diligence-engine/internal/httputil"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func testDeps(ts *httptest.Server) Deps {
	return Deps{Client: ts.Client(), UserAgent: "diligence-engine-test"}
}

// --- Construction ---

func TestBuild_DefaultSources(t *testing.T) {
	adapters, err := Build(types.DefaultSources(), Deps{})
	require.NoError(t, err)
	require.Len(t, adapters, 5)

	byID := map[string]Adapter{}
	for _, a := range adapters {
		byID[a.ID()] = a
	}
	assert.Equal(t, KindSenateLDA, byID["senate_lda"].Kind())
	assert.Equal(t, KindUSAspending, byID["usaspending"].Kind())
	assert.Equal(t, types.JurisdictionLocal, byID["nyc_contracts"].Jurisdiction())
	assert.Equal(t, types.JurisdictionState, byID["nys_lobbying"].Jurisdiction())
}

func TestBuild_Errors(t *testing.T) {
	valid := types.SourceConfig{ID: "a", Kind: "usaspending", Jurisdiction: types.JurisdictionFederal, BaseURL: "http://x"}

	tests := []struct {
		name    string
		cfgs    []types.SourceConfig
		wantErr string
	}{
		{"unknown kind", []types.SourceConfig{{ID: "x", Kind: "ftp", Jurisdiction: types.JurisdictionLocal, BaseURL: "http://x"}}, "unknown kind"},
		{"duplicate id", []types.SourceConfig{valid, valid}, "duplicate source id"},
		{"missing base url", []types.SourceConfig{{ID: "a", Kind: "usaspending", Jurisdiction: types.JurisdictionFederal}}, "base_url"},
		{"bad jurisdiction", []types.SourceConfig{{ID: "a", Kind: "usaspending", Jurisdiction: "galactic", BaseURL: "http://x"}}, "invalid jurisdiction"},
		{"socrata without datasets", []types.SourceConfig{{ID: "s", Kind: "socrata", Jurisdiction: types.JurisdictionLocal, BaseURL: "http://x"}}, "at least one dataset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.cfgs, Deps{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuild_SkipsDisabled(t *testing.T) {
	cfgs := types.DefaultSources()
	cfgs[0].Disabled = true
	adapters, err := Build(cfgs, Deps{})
	require.NoError(t, err)
	assert.Len(t, adapters, 4)
	for _, a := range adapters {
		assert.NotEqual(t, cfgs[0].ID, a.ID())
	}
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []Kind{KindSenateLDA, KindSocrata, KindUSAspending}, Kinds())
}

// --- Senate LDA ---

func TestSenateLDA_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/filings/", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2019", r.URL.Query().Get("filing_year"))

		shared := `{"filing_uuid":"f-1","filing_year":2019,"income":"50000.00","expenses":null,
			"dt_posted":"2019-04-19T12:41:55-04:00","registrant":{"id":1,"name":"Akin Gump"},"client":{"id":2,"name":"Microsoft Corporation"}}`
		var results string
		switch {
		case r.URL.Query().Get("client_name") != "":
			results = shared
		case r.URL.Query().Get("registrant_name") != "":
			results = shared + `,{"filing_uuid":"f-2","filing_year":2019,"income":null,"expenses":"1200000",
				"dt_posted":"2019-07-01T09:00:00-04:00","registrant":{"id":3,"name":"MICROSOFT CORP"},"client":{"id":3,"name":"MICROSOFT CORP"}}`
		}
		fmt.Fprintf(w, `{"count":2,"next":null,"results":[%s]}`, results)
	}))
	defer ts.Close()

	a, err := New(types.SourceConfig{
		ID: "senate_lda", Kind: "senate_lda", Jurisdiction: types.JurisdictionFederal,
		Activity: types.ActivityLobbying, BaseURL: ts.URL, APIKey: "secret",
	}, testDeps(ts))
	require.NoError(t, err)

	recs, err := a.Search(context.Background(), "Microsoft", Filters{Year: 2019})
	require.NoError(t, err)
	require.Len(t, recs, 2, "filing f-1 surfaces from both sub-queries but appears once")

	first := recs[0]
	assert.Equal(t, "f-1", first.UpstreamID)
	assert.Equal(t, "Microsoft Corporation", first.EntityName, "client sub-query names the client")
	assert.Equal(t, 50000.0, first.AmountValue())
	assert.Equal(t, types.Day(2019, 4, 19), first.Date)
	assert.Equal(t, types.BucketOf(types.JurisdictionFederal, types.ActivityLobbying), first.Bucket())
	assert.NotEmpty(t, first.RawPayload)

	second := recs[1]
	assert.Equal(t, "MICROSOFT CORP", second.EntityName)
	assert.Equal(t, 1200000.0, second.AmountValue(), "self-filers report expenses")
}

func TestSenateLDA_JurisdictionFilterSkips(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	a, err := New(types.SourceConfig{ID: "senate_lda", Kind: "senate_lda", Jurisdiction: types.JurisdictionFederal, BaseURL: ts.URL}, testDeps(ts))
	require.NoError(t, err)

	recs, err := a.Search(context.Background(), "Microsoft", Filters{Jurisdiction: types.JurisdictionLocal})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

// --- USAspending ---

func TestUSAspending_Search(t *testing.T) {
	var body usaRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search/spending_by_award/", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &body))

		fmt.Fprint(w, `{"results":[
			{"internal_id":1,"Award ID":"HHSN123","Recipient Name":"UNITEDHEALTH GROUP INC","Award Amount":45000000,"Start Date":"2008-01-15","generated_internal_id":"CONT_AWD_HHSN123"},
			{"internal_id":2,"Award ID":"BAD","Recipient Name":"UNITEDHEALTH GROUP INC","Award Amount":-5,"Start Date":"2009-01-01","generated_internal_id":"CONT_AWD_BAD"},
			{"internal_id":3,"Award ID":"X1","Recipient Name":"","Award Amount":10,"Start Date":"2009-01-01","generated_internal_id":"CONT_AWD_X1"}
		],"page_metadata":{"page":1,"hasNext":false}}`)
	}))
	defer ts.Close()

	a, err := New(types.SourceConfig{
		ID: "usaspending", Kind: "usaspending", Jurisdiction: types.JurisdictionFederal,
		Activity: types.ActivityContracts, BaseURL: ts.URL,
	}, testDeps(ts))
	require.NoError(t, err)

	recs, err := a.Search(context.Background(), "UnitedHealth", Filters{Year: 2008, MaxResults: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"UnitedHealth"}, body.Filters.RecipientSearchText)
	assert.Equal(t, []usaPeriod{{StartDate: "2008-01-01", EndDate: "2008-12-31"}}, body.Filters.TimePeriod)
	assert.Equal(t, contractAwardTypes, body.Filters.AwardTypeCodes)
	assert.Equal(t, 7, body.Limit)

	require.Len(t, recs, 1, "negative amounts and nameless rows are dropped")
	assert.Equal(t, "CONT_AWD_HHSN123", recs[0].UpstreamID)
	assert.Equal(t, 45000000.0, recs[0].AmountValue())
	assert.Equal(t, types.ActivityContracts, recs[0].Activity)
}

func TestUSAspending_NoYearSearchesFullHistory(t *testing.T) {
	var body usaRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &body))
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer ts.Close()

	a, err := New(types.SourceConfig{ID: "usaspending", Kind: "usaspending", Jurisdiction: types.JurisdictionFederal, BaseURL: ts.URL}, testDeps(ts))
	require.NoError(t, err)
	a.(*USAspending).now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }

	recs, err := a.Search(context.Background(), "Acme", Filters{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, []usaPeriod{{StartDate: usaspendingEpoch, EndDate: "2026-03-04"}}, body.Filters.TimePeriod)
}

// --- Socrata ---

func TestSocrata_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app-token", r.Header.Get("X-App-Token"))
		assert.Equal(t, "Acme", r.URL.Query().Get("$q"))
		switch r.URL.Path {
		case "/resource/aaaa-1111.json":
			assert.Equal(t, "date_extract_y(start_date)=2015", r.URL.Query().Get("$where"))
			fmt.Fprint(w, `[
				{"vendor_name":"ACME WIDGETS INC","contract_amount":"$1,250.50","start_date":"2015-01-02T00:00:00.000","request_id":20150101},
				{"vendor_name":"ACME WIDGETS INC","contract_amount":"-20","start_date":"2015-03-01T00:00:00.000","request_id":20150102}
			]`)
		case "/resource/bbbb-2222.json":
			fmt.Fprint(w, `[{"client_name":"Acme Widgets","compensation_total":"276","report_date":"2015-01-01"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	a, err := New(types.SourceConfig{
		ID: "nyc", Kind: "socrata", Jurisdiction: types.JurisdictionLocal,
		Activity: types.ActivityContracts, BaseURL: ts.URL + "/", APIKey: "app-token",
		Datasets: []types.DatasetConfig{
			{ID: "aaaa-1111", NameField: "vendor_name", AmountField: "contract_amount", DateField: "start_date", IDField: "request_id"},
			{ID: "bbbb-2222", Activity: types.ActivityLobbying, NameField: "client_name", AmountField: "compensation_total", DateField: "report_date"},
		},
	}, testDeps(ts))
	require.NoError(t, err)

	recs, err := a.Search(context.Background(), "Acme", Filters{Year: 2015})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	contract := recs[0]
	assert.Equal(t, "aaaa-1111:20150101", contract.UpstreamID)
	assert.InDelta(t, 1250.50, contract.AmountValue(), 1e-9)
	assert.Equal(t, types.Day(2015, 1, 2), contract.Date)
	assert.Equal(t, types.ActivityContracts, contract.Activity)

	lobbying := recs[1]
	assert.Empty(t, lobbying.UpstreamID)
	assert.Equal(t, types.ActivityLobbying, lobbying.Activity, "dataset activity overrides the source")
	assert.Equal(t, StableID(lobbying), lobbying.ID)
}

func TestSocrata_DatasetFailureFailsSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/resource/bbbb-2222.json" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	a, err := New(types.SourceConfig{
		ID: "nyc", Kind: "socrata", Jurisdiction: types.JurisdictionLocal, BaseURL: ts.URL,
		Datasets: []types.DatasetConfig{{ID: "aaaa-1111", NameField: "n"}, {ID: "bbbb-2222", NameField: "n"}},
	}, testDeps(ts))
	require.NoError(t, err)

	recs, err := a.Search(context.Background(), "Acme", Filters{})
	assert.Empty(t, recs)
	require.ErrorIs(t, err, ErrSourceUnavailable)

	var su *SourceUnavailable
	require.ErrorAs(t, err, &su)
	assert.Equal(t, "nyc", su.SourceID)
	assert.Equal(t, ReasonUpstreamStatus, su.Reason)
	assert.Equal(t, http.StatusForbidden, su.Status)
}

// --- Failure classification ---

func TestSearch_FailureReasons(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    Reason
	}{
		{
			name:    "rate limited after retries",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			want:    ReasonRateLimited,
		},
		{
			name:    "upstream outage",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			want:    ReasonUpstreamStatus,
		},
		{
			name:    "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, `{"results": [`) },
			want:    ReasonBadData,
		},
		{
			name: "slow upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			want:    ReasonTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			a, err := New(types.SourceConfig{ID: "usaspending", Kind: "usaspending", Jurisdiction: types.JurisdictionFederal, BaseURL: ts.URL}, testDeps(ts))
			require.NoError(t, err)

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			recs, err := a.Search(ctx, "Acme", Filters{})
			assert.Empty(t, recs)
			require.ErrorIs(t, err, ErrSourceUnavailable)
			assert.Equal(t, tt.want, ReasonOf(err))
		})
	}
}

func TestUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ReasonTimeout},
		{"cancelled", context.Canceled, ReasonCancelled},
		{"429", &statusError{status: 429}, ReasonRateLimited},
		{"500", &statusError{status: 500}, ReasonUpstreamStatus},
		{"bad data", &badData{err: errors.New("x")}, ReasonBadData},
		{"other", errors.New("connection refused"), ReasonTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			su := Unavailable("src", tt.err)
			assert.Equal(t, tt.want, su.Reason)
			assert.ErrorIs(t, su, ErrSourceUnavailable)
			assert.ErrorIs(t, su, tt.err)
		})
	}

	inner := Unavailable("a", context.Canceled)
	assert.Same(t, inner, Unavailable("b", fmt.Errorf("wrapped: %w", inner)))
	assert.Equal(t, Reason(""), ReasonOf(errors.New("plain")))
}

// --- Rate limiting ---

func TestRateLimiterSpacesRequests(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer ts.Close()

	a, err := New(types.SourceConfig{
		ID: "usaspending", Kind: "usaspending", Jurisdiction: types.JurisdictionFederal,
		BaseURL: ts.URL, MinInterval: 40 * time.Millisecond,
	}, testDeps(ts))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := a.Search(context.Background(), "Acme", Filters{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRateLimitersAreIndependent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer ts.Close()

	cfg := types.SourceConfig{Kind: "usaspending", Jurisdiction: types.JurisdictionFederal, BaseURL: ts.URL, MinInterval: time.Hour}
	cfg.ID = "one"
	one, err := New(cfg, testDeps(ts))
	require.NoError(t, err)
	cfg.ID = "two"
	two, err := New(cfg, testDeps(ts))
	require.NoError(t, err)

	// Each limiter starts with one token, so one call per instance is immediate.
	_, err = one.Search(context.Background(), "Acme", Filters{})
	require.NoError(t, err)
	_, err = two.Search(context.Background(), "Acme", Filters{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = one.Search(ctx, "Acme", Filters{})
	assert.Equal(t, ReasonTimeout, ReasonOf(err), "a second call on the same instance waits for its own limiter")
}
