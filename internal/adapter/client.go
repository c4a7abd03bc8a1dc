// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/diligence-engine/internal/httputil"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

const (
	defaultConcurrency = 2
	defaultMaxResults  = 50

	// maxErrorBody bounds how much of an error response is kept in messages.
	maxErrorBody = 256
)

// Base carries what every adapter kind shares: identity, the per-instance
// rate limiter, and the HTTP plumbing.
type Base struct {
	id           string
	kind         Kind
	jurisdiction types.Jurisdiction
	activity     types.Activity

	baseURL     string
	apiKey      string
	userAgent   string
	maxResults  int
	concurrency int

	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newBase(cfg types.SourceConfig, deps Deps) *Base {
	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = deps.DefaultMaxResults
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	// One token per MinInterval with no burst; zero means unlimited.
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Base{
		id:           cfg.ID,
		kind:         Kind(cfg.Kind),
		jurisdiction: cfg.Jurisdiction,
		activity:     cfg.Activity,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		userAgent:    deps.UserAgent,
		maxResults:   maxResults,
		concurrency:  concurrency,
		client:       client,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger.With("source", cfg.ID),
	}
}

func (b *Base) ID() string                       { return b.id }
func (b *Base) Kind() Kind                       { return b.kind }
func (b *Base) Jurisdiction() types.Jurisdiction { return b.jurisdiction }

// Wait blocks until the rate limiter allows another upstream request.
func (b *Base) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// skip reports whether the filters exclude this source entirely.
func (b *Base) skip(f Filters) bool {
	return f.Jurisdiction != "" && f.Jurisdiction != b.jurisdiction
}

// limit resolves the per-call result cap.
func (b *Base) limit(f Filters) int {
	if f.MaxResults > 0 {
		return f.MaxResults
	}
	return b.maxResults
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
func (b *Base) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return b.do(ctx, req, header, out)
}

// postJSON performs a rate-limited POST of body and decodes the JSON response into out.
func (b *Base) postJSON(ctx context.Context, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(ctx, req, header, out)
}

func (b *Base) do(ctx context.Context, req *http.Request, header http.Header, out any) error {
	if err := b.Wait(ctx); err != nil {
		// rate.Limiter reports a deadline it cannot meet as its own error.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limiter: %w", context.DeadlineExceeded)
	}

	req.Header.Set("Accept", "application/json")
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := httputil.DoWithRetry(ctx, b.client, req, 0)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &badData{err: fmt.Errorf("decoding %s: %w", req.URL.Path, err)}
	}
	return nil
}

// record builds a normalized record stamped with this source's identity and
// a stable id. It returns false for rows that cannot be used: no name, or a
// negative amount.
func (b *Base) record(upstreamID, name string, amount *float64, date *time.Time, activity types.Activity, raw json.RawMessage) (types.Record, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Record{}, false
	}
	if amount != nil && *amount < 0 {
		b.logger.Debug("dropping row with negative amount", "upstream_id", upstreamID, "amount", *amount)
		return types.Record{}, false
	}
	if activity == "" {
		activity = b.activity
	}
	r := types.Record{
		SourceID:     b.id,
		UpstreamID:   upstreamID,
		EntityName:   name,
		Amount:       amount,
		Date:         date,
		Jurisdiction: b.jurisdiction,
		Activity:     activity,
		RawPayload:   raw,
	}
	AssignID(&r)
	return r, true
}

// dedupe keeps the first record for each id, preserving order.
func dedupe(records []types.Record) []types.Record {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// parseAmount reads a dollar amount that providers publish as a JSON number
// or as a string such as "$12,500.00". Empty values yield nil.
func parseAmount(v any) (*float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &x, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return &f, nil
	case string:
		s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(x)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", x, err)
		}
		return &f, nil
	}
	return nil, fmt.Errorf("amount has unexpected type %T", v)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// parseDate reads the date formats the providers use and returns the UTC
// calendar day. Unparseable or empty values yield nil.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return types.Day(t.Year(), t.Month(), t.Day())
		}
	}
	return nil
}
