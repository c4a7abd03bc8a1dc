// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/diligence-engine/internal/validate"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// recordNamespace scopes every record id. Changing it changes every id.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pdiddy/diligence-engine/records"))

// StableID returns the deterministic id for a record. It is derived from
// (source, upstream id) when the provider supplies a key and otherwise from
// the record content: source, normalized name, amount, and date.
func StableID(r types.Record) string {
	var name string
	if r.UpstreamID != "" {
		name = strings.Join([]string{"upstream", r.SourceID, r.UpstreamID}, "\x1f")
	} else {
		amount, date := "-", "-"
		if r.Amount != nil {
			amount = strconv.FormatFloat(*r.Amount, 'f', 2, 64)
		}
		if r.Date != nil {
			date = r.Date.UTC().Format("2006-01-02")
		}
		name = strings.Join([]string{"content", r.SourceID, validate.Normalize(r.EntityName), amount, date}, "\x1f")
	}
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// AssignID sets r.ID from StableID when it is empty.
func AssignID(r *types.Record) {
	if r.ID == "" {
		r.ID = StableID(*r)
	}
}
