package types

import "time"

// Fixed contract constants for the harvest and timeline stages.
const (
	// YearMin and YearMax bound every timeline key.
	YearMin = 1986
	YearMax = 2025

	DefaultBaseURL           = "https://api.openalex.org"
	DefaultDelay             = 250 * time.Millisecond
	DefaultMaxRetries        = 3
	DefaultTimeout           = 12 * time.Second
	DefaultBackoffBase       = 1500 * time.Millisecond
	DefaultRateLimitCooldown = 10 * time.Second
	DefaultUserAgent         = "citegraph/0.1"
)

// YearRange returns every year in [YearMin, YearMax] in ascending order.
func YearRange() []int {
	years := make([]int, 0, YearMax-YearMin+1)
	for y := YearMin; y <= YearMax; y++ {
		years = append(years, y)
	}
	return years
}

// InYearRange reports whether year lies within [YearMin, YearMax].
func InYearRange(year int) bool {
	return year >= YearMin && year <= YearMax
}

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// BaseURL is the scholarly-graph API root (default https://api.openalex.org).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the per-request timeout (default 12s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Email is sent as the mailto parameter for the polite pool.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// Delay is the minimum spacing between two consecutive requests (default 250ms).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`

	// MaxRetries is the number of attempts per endpoint (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// BackoffBase grows linearly with the attempt number (default 1.5s).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// RateLimitCooldown is the extra wait after an HTTP 429 (default 10s).
	RateLimitCooldown time.Duration `json:"rate_limit_cooldown" yaml:"rate_limit_cooldown" mapstructure:"rate_limit_cooldown"`
}

// WithDefaults returns a copy with zero fields replaced by the contract defaults.
func (c HTTPConfig) WithDefaults() HTTPConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.RateLimitCooldown <= 0 {
		c.RateLimitCooldown = DefaultRateLimitCooldown
	}
	return c
}

// CorpusConfig names the columns of the cleaned corpus table.
type CorpusConfig struct {
	Path        string `json:"path" yaml:"path" mapstructure:"path"`
	IDColumn    string `json:"id_column" yaml:"id_column" mapstructure:"id_column"`
	YearColumn  string `json:"year_column" yaml:"year_column" mapstructure:"year_column"`
	RefsColumn  string `json:"refs_column" yaml:"refs_column" mapstructure:"refs_column"`
	TitleColumn string `json:"title_column" yaml:"title_column" mapstructure:"title_column"`
}

// WithDefaults fills in the column names used by the cleaned corpus export.
func (c CorpusConfig) WithDefaults() CorpusConfig {
	if c.IDColumn == "" {
		c.IDColumn = "oa_openalex_id"
	}
	if c.YearColumn == "" {
		c.YearColumn = "year"
	}
	if c.RefsColumn == "" {
		c.RefsColumn = "oa_referenced_works_parsed"
	}
	if c.TitleColumn == "" {
		c.TitleColumn = "title"
	}
	return c
}

// HarvestConfig holds settings for the timeline harvest stage.
type HarvestConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// OutputDir contains the wide table, failure ledger, and raw payload log.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// CitationSource selects where node citation counts come from.
type CitationSource string

const (
	CitationsTimeline CitationSource = "timeline"
	CitationsInDegree CitationSource = "indegree"
	CitationsNone     CitationSource = "none"
)

// GraphConfig holds settings for the graph build and partition stages.
type GraphConfig struct {
	// OutputDir receives nodes.csv, edges.csv, and the yearly/ directory.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// TimelinePath is the wide checkpoint table used for citation totals.
	TimelinePath string `json:"timeline_path" yaml:"timeline_path" mapstructure:"timeline_path"`

	// Citations selects the citation-count source (default timeline).
	Citations CitationSource `json:"citations" yaml:"citations" mapstructure:"citations"`
}

// IndexConfig holds settings for the SQLite graph index.
type IndexConfig struct {
	// DBPath is the SQLite database file (default <data>/graph.db).
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// LookupConfig holds settings for the title lookup stage.
type LookupConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// OutputPath is the enriched CSV appended to row by row.
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path"`

	// ProgressPath stores the index of the next row to resolve.
	ProgressPath string `json:"progress_path" yaml:"progress_path" mapstructure:"progress_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is stdout or stderr.
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}
