// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package correlate

import (
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/diligence-engine/internal/validate"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Aliases maps the canonical key of every known spelling to the canonical
// key of the entity it names.
type Aliases map[string]string

// LoadAliases reads an alias table from a YAML file of the form
//
//	Alphabet Inc:
//	  - Google LLC
//	  - Google Client Services LLC
//
// An empty path returns an empty table.
func LoadAliases(path string) (Aliases, error) {
	if path == "" {
		return Aliases{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias file: %w", err)
	}
	return ParseAliases(data)
}

// ParseAliases builds an alias table from YAML. A spelling listed under two
// different canonical names is an error.
func ParseAliases(data []byte) (Aliases, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing alias file: %w", err)
	}

	canonicals := make([]string, 0, len(raw))
	for c := range raw {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	a := make(Aliases)
	add := func(spelling, canonical string) error {
		k := validate.CanonicalKey(spelling)
		if k == "" {
			return nil
		}
		if prev, ok := a[k]; ok && prev != canonical {
			return fmt.Errorf("alias %q maps to both %q and %q", spelling, prev, canonical)
		}
		a[k] = canonical
		return nil
	}
	for _, c := range canonicals {
		ck := validate.CanonicalKey(c)
		if err := add(c, ck); err != nil {
			return nil, err
		}
		for _, alias := range raw[c] {
			if err := add(alias, ck); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// Resolve returns the canonical key name stands for.
func (a Aliases) Resolve(name string) string {
	k := validate.CanonicalKey(name)
	if c, ok := a[k]; ok {
		return c
	}
	return k
}

// Resolver decides which record names refer to the profiled entity.
type Resolver struct {
	validator *validate.Validator
	aliases   Aliases
	min       float64
}

// NewResolver returns a Resolver merging names at minConfidence or above.
// A zero minConfidence uses the validator's EntityMergeMin.
func NewResolver(v *validate.Validator, aliases Aliases, minConfidence float64) *Resolver {
	if v == nil {
		v = validate.New(types.DefaultValidatorConfig())
	}
	if minConfidence <= 0 {
		minConfidence = v.Config().EntityMergeMin
	}
	return &Resolver{validator: v, aliases: aliases, min: minConfidence}
}

// Cluster partitions records into those naming entity and the rest. A name
// joins the cluster when it resolves to the same canonical key (directly or
// through the alias table) or mutually validates at the merge threshold with
// entity or with a name already in the cluster. A one-way match is not
// enough: "United Healthcare Workers East" contains "United Healthcare" but
// names a different organization. It returns the kept records in input order, the distinct
// spellings seen in the cluster, and the number of records excluded.
func (r *Resolver) Cluster(entity string, records []types.Record) ([]types.Record, []string, int) {
	target := r.aliases.Resolve(entity)

	seen := make(map[string]bool)
	var names []string
	for _, rec := range records {
		if !seen[rec.EntityName] {
			seen[rec.EntityName] = true
			names = append(names, rec.EntityName)
		}
	}
	sort.Strings(names)

	member := make(map[string]bool, len(names))
	var members []string
	for _, n := range names {
		if r.aliases.Resolve(n) == target || r.validator.Mutual(entity, n, r.min) {
			member[n] = true
			members = append(members, n)
		}
	}

	// Grow the cluster through near-duplicates of its members until stable.
	for changed := true; changed; {
		changed = false
		for _, n := range names {
			if member[n] {
				continue
			}
			for _, m := range members {
				if r.linked(m, n) {
					member[n] = true
					members = append(members, n)
					changed = true
					break
				}
			}
		}
	}

	kept := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if member[rec.EntityName] {
			kept = append(kept, rec)
		}
	}
	sort.Strings(members)
	return kept, members, len(records) - len(kept)
}

func (r *Resolver) linked(a, b string) bool {
	if r.aliases.Resolve(a) == r.aliases.Resolve(b) {
		return true
	}
	return r.validator.Mutual(a, b, r.min)
}
