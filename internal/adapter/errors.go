// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrSourceUnavailable matches every adapter failure via errors.Is.
var ErrSourceUnavailable = errors.New("source unavailable")

// Reason classifies why a source was unavailable.
type Reason string

const (
	ReasonTimeout        Reason = "timeout"
	ReasonRateLimited    Reason = "rate_limited"
	ReasonUpstreamStatus Reason = "upstream_status"
	ReasonBadData        Reason = "bad_data"
	ReasonTransport      Reason = "transport"
	ReasonCancelled      Reason = "cancelled"
)

// SourceUnavailable is returned by an adapter that failed or ran out of time.
// It is recorded per source and never fails a search on its own.
type SourceUnavailable struct {
	SourceID string
	Reason   Reason

	// Status is the upstream HTTP status for upstream_status and rate_limited.
	Status int

	Err error
}

func (e *SourceUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source %s unavailable [%s]: %v", e.SourceID, e.Reason, e.Err)
	}
	return fmt.Sprintf("source %s unavailable [%s]", e.SourceID, e.Reason)
}

// Unwrap exposes both ErrSourceUnavailable and the underlying cause, so
// errors.Is works for context.DeadlineExceeded as well.
func (e *SourceUnavailable) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSourceUnavailable}
	}
	return []error{ErrSourceUnavailable, e.Err}
}

// statusError is an unexpected upstream HTTP status.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("upstream returned HTTP %d", e.status)
	}
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.status, e.body)
}

// badData marks a response that could not be decoded or mapped.
type badData struct{ err error }

func (e *badData) Error() string { return "malformed response: " + e.err.Error() }
func (e *badData) Unwrap() error { return e.err }

// Unavailable converts err into a *SourceUnavailable for sourceID. Errors that
// already are one are returned unchanged.
func Unavailable(sourceID string, err error) *SourceUnavailable {
	var su *SourceUnavailable
	if errors.As(err, &su) {
		return su
	}
	su = &SourceUnavailable{SourceID: sourceID, Reason: ReasonTransport, Err: err}

	var se *statusError
	var bd *badData
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		su.Reason = ReasonTimeout
	case errors.Is(err, context.Canceled):
		su.Reason = ReasonCancelled
	case errors.As(err, &se):
		su.Status = se.status
		su.Reason = ReasonUpstreamStatus
		if se.status == http.StatusTooManyRequests {
			su.Reason = ReasonRateLimited
		}
	case errors.As(err, &bd), errors.As(err, &syn), errors.As(err, &typ):
		su.Reason = ReasonBadData
	case errors.As(err, &ne) && ne.Timeout():
		su.Reason = ReasonTimeout
	}
	return su
}

// ReasonOf returns the failure reason carried by err, or "" when err is not
// a SourceUnavailable.
func ReasonOf(err error) Reason {
	var su *SourceUnavailable
	if errors.As(err, &su) {
		return su.Reason
	}
	return ""
}
