package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout for a single request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "diligence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// DatasetConfig maps one open-data dataset onto the Record fields.
type DatasetConfig struct {
	// ID is the dataset identifier (a Socrata four-by-four such as "qyyg-4tf5").
	ID string `json:"id" yaml:"id" mapstructure:"id"`

	// Activity overrides the source activity for this dataset.
	Activity Activity `json:"activity,omitempty" yaml:"activity,omitempty" mapstructure:"activity"`

	NameField   string `json:"name_field" yaml:"name_field" mapstructure:"name_field"`
	AmountField string `json:"amount_field,omitempty" yaml:"amount_field,omitempty" mapstructure:"amount_field"`
	DateField   string `json:"date_field,omitempty" yaml:"date_field,omitempty" mapstructure:"date_field"`
	IDField     string `json:"id_field,omitempty" yaml:"id_field,omitempty" mapstructure:"id_field"`
}

// SourceConfig configures one adapter instance.
type SourceConfig struct {
	// ID is the source identifier stamped on every record (e.g. "senate_lda").
	ID string `json:"id" yaml:"id" mapstructure:"id"`

	// Kind selects the adapter implementation: senate_lda, usaspending, or socrata.
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`

	Jurisdiction Jurisdiction `json:"jurisdiction" yaml:"jurisdiction" mapstructure:"jurisdiction"`
	Activity     Activity     `json:"activity" yaml:"activity" mapstructure:"activity"`

	// BaseURL is the API root for the provider.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is an optional key or app token; usually filled from .secrets/.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MinInterval is the minimum delay between consecutive requests to the provider.
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval" mapstructure:"min_interval"`

	// Timeout overrides the search-wide per-adapter timeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`

	// MaxResults caps rows requested per sub-query (default from SearchConfig).
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty" mapstructure:"max_results"`

	// Concurrency bounds the adapter's internal sub-query fan-out (default 2).
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty" mapstructure:"concurrency"`

	// Datasets lists the datasets a socrata source queries.
	Datasets []DatasetConfig `json:"datasets,omitempty" yaml:"datasets,omitempty" mapstructure:"datasets"`

	// Disabled removes the source from searches without deleting its config.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty" mapstructure:"disabled"`
}

// SearchConfig holds settings for the search orchestrator.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// AdapterTimeout is the default per-adapter deadline (default 8s).
	AdapterTimeout time.Duration `json:"adapter_timeout" yaml:"adapter_timeout" mapstructure:"adapter_timeout"`

	// MaxResults is the default per-source result cap (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	Sources []SourceConfig `json:"sources" yaml:"sources" mapstructure:"sources"`
}

// ValidatorConfig holds the fuzzy name-match thresholds.
type ValidatorConfig struct {
	// MissingTokenMin is the similarity required when exactly one significant
	// query token is absent from the candidate (default 0.75).
	MissingTokenMin float64 `json:"missing_token_min" yaml:"missing_token_min" mapstructure:"missing_token_min"`

	// SingleTokenMin is the similarity required for one-token queries (default 0.70).
	SingleTokenMin float64 `json:"single_token_min" yaml:"single_token_min" mapstructure:"single_token_min"`

	// EntityMergeMin is the mutual confidence required to merge two names into
	// one entity during correlation (default 0.80).
	EntityMergeMin float64 `json:"entity_merge_min" yaml:"entity_merge_min" mapstructure:"entity_merge_min"`
}

// Cache backends.
const (
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// CacheConfig holds settings for the result cache.
type CacheConfig struct {
	// Backend selects redis, sqlite, memory, or none.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	RedisURL   string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" mapstructure:"redis_url"`
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`

	// SearchTTL applies to raw search results (default 24h).
	SearchTTL time.Duration `json:"search_ttl" yaml:"search_ttl" mapstructure:"search_ttl"`

	// CorrelationTTL applies to correlation profiles (default 48h).
	CorrelationTTL time.Duration `json:"correlation_ttl" yaml:"correlation_ttl" mapstructure:"correlation_ttl"`

	// OpTimeout bounds each backend call so a slow cache never stalls a search.
	OpTimeout time.Duration `json:"op_timeout" yaml:"op_timeout" mapstructure:"op_timeout"`
}

// CorrelationConfig holds the correlation engine's weights and thresholds.
type CorrelationConfig struct {
	Weights ScoreWeights `json:"weights" yaml:"weights" mapstructure:"weights"`

	// SimultaneousDays is the gap below which both sides count as simultaneous (default 90).
	SimultaneousDays int `json:"simultaneous_days" yaml:"simultaneous_days" mapstructure:"simultaneous_days"`

	// TimelineSaturationDays is the gap that maps to a timeline component of 1 (default 1825).
	TimelineSaturationDays int `json:"timeline_saturation_days" yaml:"timeline_saturation_days" mapstructure:"timeline_saturation_days"`

	// RatioSaturationLog10 is log10 of the investment ratio that maps to a
	// financial component of 1 (default 6, i.e. 1,000,000:1).
	RatioSaturationLog10 float64 `json:"ratio_saturation_log10" yaml:"ratio_saturation_log10" mapstructure:"ratio_saturation_log10"`

	// DominantRatio is the ratio at or above which one side dominates spending (default 100).
	DominantRatio float64 `json:"dominant_ratio" yaml:"dominant_ratio" mapstructure:"dominant_ratio"`

	// HighOverlap is the active-year overlap at or above which simultaneous
	// activity counts as coordinated (default 0.5).
	HighOverlap float64 `json:"high_overlap" yaml:"high_overlap" mapstructure:"high_overlap"`

	// AliasFile is an optional YAML file mapping canonical names to aliases.
	AliasFile string `json:"alias_file,omitempty" yaml:"alias_file,omitempty" mapstructure:"alias_file"`

	// DefaultYears is the window searched when a request gives no years (default 10).
	DefaultYears int `json:"default_years" yaml:"default_years" mapstructure:"default_years"`

	// YearConcurrency bounds concurrent per-year searches (default 3).
	YearConcurrency int `json:"year_concurrency" yaml:"year_concurrency" mapstructure:"year_concurrency"`
}

// Validate reports settings that cannot produce a meaningful score. Zero
// values are allowed; they select the defaults.
func (c CorrelationConfig) Validate() error {
	if c.Weights != (ScoreWeights{}) {
		if err := c.Weights.Validate(); err != nil {
			return fmt.Errorf("correlation.weights: %w", err)
		}
	}
	switch {
	case c.SimultaneousDays < 0:
		return fmt.Errorf("correlation.simultaneous_days must not be negative, got %d", c.SimultaneousDays)
	case c.TimelineSaturationDays < 0:
		return fmt.Errorf("correlation.timeline_saturation_days must not be negative, got %d", c.TimelineSaturationDays)
	case c.RatioSaturationLog10 < 0:
		return fmt.Errorf("correlation.ratio_saturation_log10 must not be negative, got %g", c.RatioSaturationLog10)
	case c.DominantRatio != 0 && c.DominantRatio < 1:
		return fmt.Errorf("correlation.dominant_ratio must be at least 1, got %g", c.DominantRatio)
	case c.HighOverlap < 0 || c.HighOverlap > 1:
		return fmt.Errorf("correlation.high_overlap must be in [0,1], got %g", c.HighOverlap)
	}
	return nil
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// Config groups all stage configurations.
type Config struct {
	Search      SearchConfig      `json:"search" yaml:"search" mapstructure:"search"`
	Validator   ValidatorConfig   `json:"validator" yaml:"validator" mapstructure:"validator"`
	Cache       CacheConfig       `json:"cache" yaml:"cache" mapstructure:"cache"`
	Correlation CorrelationConfig `json:"correlation" yaml:"correlation" mapstructure:"correlation"`
	Log         LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
	Server      ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
}

// DefaultValidatorConfig returns the empirically tuned name-match thresholds.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MissingTokenMin: 0.75,
		SingleTokenMin:  0.70,
		EntityMergeMin:  0.80,
	}
}

// DefaultCorrelationConfig returns the asserted (not fitted) correlation defaults.
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		Weights:                ScoreWeights{Timeline: 0.4, Financial: 0.3, Overlap: 0.3},
		SimultaneousDays:       90,
		TimelineSaturationDays: 1825,
		RatioSaturationLog10:   6,
		DominantRatio:          100,
		HighOverlap:            0.5,
		DefaultYears:           10,
		YearConcurrency:        3,
	}
}

// DefaultConfig returns a configuration with the federal, New York State, and
// New York City sources enabled and an in-memory cache.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   10 * time.Second,
				UserAgent: "diligence-engine/0.1",
			},
			AdapterTimeout: 8 * time.Second,
			MaxResults:     50,
			Sources:        DefaultSources(),
		},
		Validator: DefaultValidatorConfig(),
		Cache: CacheConfig{
			Backend:        CacheMemory,
			SQLitePath:     "cache/diligence.db",
			SearchTTL:      24 * time.Hour,
			CorrelationTTL: 48 * time.Hour,
			OpTimeout:      500 * time.Millisecond,
		},
		Correlation: DefaultCorrelationConfig(),
		Log:         LogConfig{Level: "info", Format: "text"},
		Server:      ServerConfig{Addr: ":8080"},
	}
}

// DefaultSources lists the built-in providers. Dataset IDs and field names are
// configuration; providers occasionally republish datasets under new IDs.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			ID:           "senate_lda",
			Kind:         "senate_lda",
			Jurisdiction: JurisdictionFederal,
			Activity:     ActivityLobbying,
			BaseURL:      "https://lda.senate.gov/api/v1",
			MinInterval:  time.Second,
		},
		{
			ID:           "usaspending",
			Kind:         "usaspending",
			Jurisdiction: JurisdictionFederal,
			Activity:     ActivityContracts,
			BaseURL:      "https://api.usaspending.gov/api/v2",
			MinInterval:  250 * time.Millisecond,
		},
		{
			ID:           "nys_lobbying",
			Kind:         "socrata",
			Jurisdiction: JurisdictionState,
			Activity:     ActivityLobbying,
			BaseURL:      "https://data.ny.gov",
			MinInterval:  200 * time.Millisecond,
			Datasets: []DatasetConfig{
				{ID: "djsm-9cw7", NameField: "client_name", AmountField: "compensation", DateField: "reporting_period_start", IDField: "filing_id"},
			},
		},
		{
			ID:           "nyc_contracts",
			Kind:         "socrata",
			Jurisdiction: JurisdictionLocal,
			Activity:     ActivityContracts,
			BaseURL:      "https://data.cityofnewyork.us",
			MinInterval:  200 * time.Millisecond,
			Datasets: []DatasetConfig{
				{ID: "qyyg-4tf5", NameField: "vendor_name", AmountField: "contract_amount", DateField: "start_date", IDField: "request_id"},
			},
		},
		{
			ID:           "nyc_lobbying",
			Kind:         "socrata",
			Jurisdiction: JurisdictionLocal,
			Activity:     ActivityLobbying,
			BaseURL:      "https://data.cityofnewyork.us",
			MinInterval:  200 * time.Millisecond,
			Datasets: []DatasetConfig{
				{ID: "fmf3-knd8", NameField: "client_name", AmountField: "compensation_total", DateField: "report_date", IDField: "report_id"},
			},
		},
	}
}
