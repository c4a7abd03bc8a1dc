// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate decides whether a candidate entity name returned by an
// upstream full-text search actually names the queried entity. Upstream
// searches match any field of a row (a meeting location mentioning
// "Microsoft Teams", a bill title), so every candidate is checked against the
// query before it reaches results.
package validate

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Rule names the branch of the algorithm that produced a verdict.
type Rule string

const (
	RuleSubstring       Rule = "substring"
	RuleAllTokens       Rule = "all_tokens"
	RuleOneTokenMissing Rule = "one_token_missing"
	RuleSingleToken     Rule = "single_token"
	RuleTokensMissing   Rule = "tokens_missing"
	RuleNoTokens        Rule = "no_tokens"
	RuleEmpty           Rule = "empty"
)

// allTokensConfidence is the floor confidence for candidates containing every
// significant query token; only an exact substring scores higher.
const allTokensConfidence = 0.9

// Verdict is the outcome of validating one candidate.
type Verdict struct {
	Accepted   bool
	Confidence float64
	Similarity float64
	Rule       Rule
	Missing    []string
}

// Validator scores candidate names against a query.
type Validator struct {
	cfg    types.ValidatorConfig
	metric *metrics.Levenshtein
}

// New returns a Validator using the given thresholds. Zero thresholds fall
// back to the defaults.
func New(cfg types.ValidatorConfig) *Validator {
	def := types.DefaultValidatorConfig()
	if cfg.MissingTokenMin <= 0 {
		cfg.MissingTokenMin = def.MissingTokenMin
	}
	if cfg.SingleTokenMin <= 0 {
		cfg.SingleTokenMin = def.SingleTokenMin
	}
	if cfg.EntityMergeMin <= 0 {
		cfg.EntityMergeMin = def.EntityMergeMin
	}
	m := metrics.NewLevenshtein()
	m.CaseSensitive = false
	return &Validator{cfg: cfg, metric: m}
}

// Config returns the effective thresholds.
func (v *Validator) Config() types.ValidatorConfig { return v.cfg }

// Validate checks candidate against query:
//
//  0. no significant query tokens: reject;
//  1. the normalized query is a substring of the normalized candidate: accept;
//  2. two or more significant query tokens: all must appear in the candidate,
//     or exactly one may be missing if similarity >= MissingTokenMin;
//  3. one significant token: accept if similarity >= SingleTokenMin.
func (v *Validator) Validate(query, candidate string) Verdict {
	q := Normalize(query)
	c := Normalize(candidate)
	if q == "" || c == "" {
		return Verdict{Rule: RuleEmpty}
	}

	// Queries with no significant tokens ("The Co", "3M") are rejected
	// outright, even on an exact substring.
	tokens := SignificantTokens(q)
	if len(tokens) == 0 {
		return Verdict{Rule: RuleNoTokens}
	}

	if strings.Contains(c, q) {
		return Verdict{Accepted: true, Confidence: 1, Similarity: v.Similarity(q, c), Rule: RuleSubstring}
	}

	sim := v.Similarity(q, c)

	if len(tokens) == 1 {
		return Verdict{
			Accepted:   sim >= v.cfg.SingleTokenMin,
			Confidence: sim,
			Similarity: sim,
			Rule:       RuleSingleToken,
		}
	}

	var missing []string
	for _, t := range tokens {
		if !strings.Contains(c, t) {
			missing = append(missing, t)
		}
	}

	switch len(missing) {
	case 0:
		return Verdict{Accepted: true, Confidence: max(sim, allTokensConfidence), Similarity: sim, Rule: RuleAllTokens}
	case 1:
		return Verdict{
			Accepted:   sim >= v.cfg.MissingTokenMin,
			Confidence: sim,
			Similarity: sim,
			Rule:       RuleOneTokenMissing,
			Missing:    missing,
		}
	default:
		return Verdict{Similarity: sim, Confidence: sim, Rule: RuleTokensMissing, Missing: missing}
	}
}

// Accept is shorthand for Validate(query, candidate).Accepted.
func (v *Validator) Accept(query, candidate string) bool {
	return v.Validate(query, candidate).Accepted
}

// Mutual reports whether a and b validate against each other in both
// directions with confidence at least minConfidence. The correlation engine
// uses it to decide that two spellings name the same entity.
func (v *Validator) Mutual(a, b string, minConfidence float64) bool {
	if minConfidence <= 0 {
		minConfidence = v.cfg.EntityMergeMin
	}
	ab := v.Validate(a, b)
	if !ab.Accepted || ab.Confidence < minConfidence {
		return false
	}
	ba := v.Validate(b, a)
	return ba.Accepted && ba.Confidence >= minConfidence
}

// Similarity returns the character-level similarity of two normalized names
// in [0,1]: the best normalized Levenshtein similarity between query and
// either the whole candidate or any run of candidate words as long as the query.
func (v *Validator) Similarity(query, candidate string) float64 {
	best := strutil.Similarity(query, candidate, v.metric)

	qWords := len(strings.Fields(query))
	cWords := strings.Fields(candidate)
	if qWords == 0 || qWords >= len(cWords) {
		return best
	}
	for i := 0; i+qWords <= len(cWords); i++ {
		window := strings.Join(cWords[i:i+qWords], " ")
		if s := strutil.Similarity(query, window, v.metric); s > best {
			best = s
		}
	}
	return best
}
