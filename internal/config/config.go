// Package config carries the YAML/JSON-tagged shapes the core needs to be
// handed explicitly at construction (SPEC_FULL.md A.3): fetch, rate-limit,
// retry, filter-chain, schema, dedup and storage settings. It only defines
// shapes and sane zero-value defaults — loading from environment variables
// or CLI flags is out of scope (spec.md §1); the one loader kept here
// (LoadFile/Parse) decodes YAML; the package's tests use it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape a caller assembles (by hand, or via
// LoadFile) before wiring fetch.Fetcher, the strategy extractors,
// dedup.Deduplicator and a storage.Engine.
type Config struct {
	Target    TargetConfig    `yaml:"target" json:"target"`
	Fetch     FetchConfig     `yaml:"fetch" json:"fetch"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Filters   []FilterConfig  `yaml:"filters,omitempty" json:"filters,omitempty"`
	Schema    SchemaConfig    `yaml:"schema" json:"schema"`
	Dedup     DedupConfig     `yaml:"dedup" json:"dedup"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
}

// TargetConfig names the page to extract.
type TargetConfig struct {
	URL string `yaml:"url" json:"url"`
}

// FetchConfig configures fetch.Fetcher (spec §4.3).
type FetchConfig struct {
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
	JSEnabled        bool          `yaml:"js_enabled" json:"js_enabled"`
	WaitForLoadState []string      `yaml:"wait_for_load_state,omitempty" json:"wait_for_load_state,omitempty"`
	WaitForSelector  string        `yaml:"wait_for_selector,omitempty" json:"wait_for_selector,omitempty"`
	WaitForFunction  string        `yaml:"wait_for_function,omitempty" json:"wait_for_function,omitempty"`
	SettleDelay      time.Duration `yaml:"settle_delay,omitempty" json:"settle_delay,omitempty"`
}

// RateLimitConfig configures ratelimit.Limiter (spec §4.1).
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig configures retry.Handler (spec §4.2).
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	Strategy   string        `yaml:"strategy" json:"strategy"` // fixed|linear|exponential|fibonacci
	Base       time.Duration `yaml:"base" json:"base"`
	Factor     float64       `yaml:"factor" json:"factor"`
	Jitter     float64       `yaml:"jitter" json:"jitter"`
}

// FilterConfig describes one entry of a filter.FilterSpec chain (spec §3).
type FilterConfig struct {
	Type        string  `yaml:"type" json:"type"` // css|xpath|regex|bm25|pruning|llm
	Selector    string  `yaml:"selector,omitempty" json:"selector,omitempty"`
	ExtractText bool    `yaml:"extract_text,omitempty" json:"extract_text,omitempty"`
	Query       string  `yaml:"query,omitempty" json:"query,omitempty"`
	Threshold   float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Pattern     string  `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string  `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Instruction string  `yaml:"instruction,omitempty" json:"instruction,omitempty"`
}

// SchemaConfig configures schema.Generate/schema.Cache defaults (spec §4.6).
type SchemaConfig struct {
	Domain    string `yaml:"domain,omitempty" json:"domain,omitempty"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
}

// DedupConfig configures dedup.Deduplicator (spec §4.11).
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	MergeStrategy       string  `yaml:"merge_strategy" json:"merge_strategy"` // latest|most_complete|combine
}

// StorageConfig configures the storage engine (spec §4.12).
type StorageConfig struct {
	Backend    string `yaml:"backend" json:"backend"` // file|sqlite|postgres|mysql|mongo
	Dir        string `yaml:"dir,omitempty" json:"dir,omitempty"`
	DSN        string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Versioning bool   `yaml:"versioning" json:"versioning"`
}

// Default returns a Config with the spec's stated defaults: 60s fetch
// timeout, no JS rendering, exponential retry with 3 additional attempts,
// a 0.85 dedup similarity threshold, and file-backed, versioned storage
// under "./data".
func Default() Config {
	return Config{
		Fetch: FetchConfig{
			Timeout:   60 * time.Second,
			UserAgent: "productlens-extractor/1.0",
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60},
		Retry: RetryConfig{
			MaxRetries: 3,
			Strategy:   "exponential",
			Base:       time.Second,
			Factor:     2.0,
			Jitter:     0.1,
		},
		Schema: SchemaConfig{CacheSize: 256},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.85,
			MergeStrategy:       "most_complete",
		},
		Storage: StorageConfig{
			Backend:    "file",
			Dir:        "./data",
			Versioning: true,
		},
	}
}

// Parse decodes YAML bytes into a Config seeded with Default(), so any
// field the document omits keeps its default value.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML config file from disk.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}
