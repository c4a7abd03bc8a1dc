// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"testing"

	"github.com/adrg/strutil"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

func testValidator() *Validator {
	return New(types.DefaultValidatorConfig())
}

// --- Normalization ---

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Microsoft Corporation", "microsoft corporation"},
		{"  AT&T   Inc. ", "at t inc"},
		{"McDonald's Corp.", "mcdonalds corp"},
		{"Société Générale, S.A.", "societe generale s a"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSignificantTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"stop words and suffix dropped", "The Bank of New York Mellon Corp", []string{"bank", "new", "york", "mellon"}},
		{"short words dropped", "GE Co", nil},
		{"repeats collapsed", "Acme Acme Holdings", []string{"acme", "holdings"}},
		{"legal suffixes only", "Inc LLC Ltd", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignificantTokens(tt.in))
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "google", CanonicalKey("Google, Inc."))
	assert.Equal(t, "google", CanonicalKey("GOOGLE LLC"))
	assert.Equal(t, "goldman sachs", CanonicalKey("Goldman Sachs & Co. LLC"))
	assert.Equal(t, "inc", CanonicalKey("Inc."), "a name made only of suffixes keeps one word")
}

// --- Validation rules ---

func TestValidateRejectsCandidatesMissingTwoTokens(t *testing.T) {
	v := testValidator()
	for _, candidate := range []string{"Westhab Inc.", "United Activities Unlimited Inc."} {
		t.Run(candidate, func(t *testing.T) {
			verdict := v.Validate("United Healthcare", candidate)
			assert.False(t, verdict.Accepted)
		})
	}
}

func TestValidateAcceptsLegalSuffixVariants(t *testing.T) {
	v := testValidator()
	tests := []struct {
		candidate string
		rule      Rule
	}{
		{"United Healthcare Services, Inc.", RuleSubstring},
		{"UnitedHealthcare Insurance Company", RuleAllTokens},
		{"HEALTHCARE, UNITED", RuleAllTokens},
	}
	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			verdict := v.Validate("United Healthcare", tt.candidate)
			assert.True(t, verdict.Accepted)
			assert.Equal(t, tt.rule, verdict.Rule)
			assert.GreaterOrEqual(t, verdict.Confidence, allTokensConfidence)
		})
	}
}

func TestValidateOneTokenMissing(t *testing.T) {
	v := testValidator()

	close := v.Validate("Goldman Sachs Group", "Goldman Sachs Grp")
	assert.Equal(t, RuleOneTokenMissing, close.Rule)
	assert.Equal(t, []string{"group"}, close.Missing)
	assert.True(t, close.Accepted, "similarity %.2f should clear the threshold", close.Similarity)

	far := v.Validate("United Healthcare", "United Activities")
	assert.Equal(t, RuleOneTokenMissing, far.Rule)
	assert.False(t, far.Accepted, "similarity %.2f should not clear the threshold", far.Similarity)
}

func TestValidateSingleToken(t *testing.T) {
	v := testValidator()

	assert.True(t, v.Accept("Microsoft", "Microsoft Corporation"))
	assert.True(t, v.Accept("Microsoft", "Microsft Corp"), "one-letter typo stays above 0.70")
	assert.False(t, v.Accept("Microsoft", "Acme Consulting Group"))
}

func TestValidateNoSignificantTokens(t *testing.T) {
	v := testValidator()
	verdict := v.Validate("The Co", "The Co-operative Bank")
	assert.False(t, verdict.Accepted)
	assert.Equal(t, RuleNoTokens, verdict.Rule)
}

func TestValidateEmptyInput(t *testing.T) {
	v := testValidator()
	assert.Equal(t, RuleEmpty, v.Validate("", "Acme").Rule)
	assert.Equal(t, RuleEmpty, v.Validate("Acme", "  ").Rule)
}

func TestValidateThresholdsAreConfigurable(t *testing.T) {
	strict := New(types.ValidatorConfig{SingleTokenMin: 0.95})
	assert.False(t, strict.Accept("Microsoft", "Microsft Corp"))

	assert.Equal(t, 0.75, strict.Config().MissingTokenMin, "zero thresholds fall back to defaults")
}

func TestMutual(t *testing.T) {
	v := testValidator()

	assert.True(t, v.Mutual("Google Inc", "Google Inc.", 0.8))
	assert.True(t, v.Mutual("Acme Widgets LLC", "ACME WIDGETS", 0.8))
	assert.False(t, v.Mutual("Google Inc", "Google Client Services LLC", 0.8),
		"one-directional containment is not enough")
}

func TestSimilarityUsesBestWindow(t *testing.T) {
	v := testValidator()
	whole := strutil.Similarity("microsoft", "the microsft corporation of america", v.metric)
	best := v.Similarity("microsoft", "the microsft corporation of america")
	assert.Greater(t, best, whole)
	assert.InDelta(t, 1.0-1.0/9.0, best, 0.01)
}
