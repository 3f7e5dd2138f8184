// internal/browser/types.go
package browser

import "time"

// BrowserConfig defines browser automation configuration (spec §4.3's
// headless-rendering knobs).
type BrowserConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Headless       bool          `yaml:"headless" json:"headless"`
	PoolSize       int           `yaml:"pool_size" json:"pool_size"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	WaitSelector   string        `yaml:"wait_selector,omitempty" json:"wait_selector,omitempty"`
	WaitPredicate  string        `yaml:"wait_predicate,omitempty" json:"wait_predicate,omitempty"`
	SettleDelay    time.Duration `yaml:"settle_delay,omitempty" json:"settle_delay,omitempty"`
	UserAgent      string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	DisableImages  bool          `yaml:"disable_images" json:"disable_images"`
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Enabled:        false,
		Headless:       true,
		PoolSize:       3,
		Timeout:        30 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		SettleDelay:    0,
		DisableImages:  true,
	}
}

// Stats tracks browser automation outcomes for the metrics layer.
type Stats struct {
	PagesLoaded      int           `json:"pages_loaded"`
	AverageLoadTime  time.Duration `json:"average_load_time"`
	Errors           int           `json:"errors"`
	TimeoutsOccurred int           `json:"timeouts_occurred"`
}
