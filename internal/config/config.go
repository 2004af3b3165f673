// Package config loads and validates pilot configuration from YAML, with a
// small set of environment overrides for deployment-sensitive values.
// Every numeric threshold used by the campaign engine (delay bounds, stall
// ladder, budgets, retry counts) lives here so the defaults in the engine
// packages can be overridden without a rebuild.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the pilot.
type Config struct {
	Accounts []AccountConfig `yaml:"accounts"`
	Browser  BrowserConfig   `yaml:"browser"`
	Sources  SourcesConfig   `yaml:"sources"`
	Pacing   PacingConfig    `yaml:"pacing"`
	Campaign CampaignConfig  `yaml:"campaign"`
	Runner   RunnerConfig    `yaml:"runner"`
	Store    StoreConfig     `yaml:"store"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// AccountConfig identifies one account to run campaigns for. Credential
// handling is out of scope; the profile directory is expected to hold an
// already-authenticated browser profile.
type AccountConfig struct {
	Email      string `yaml:"email"`
	ProfileDir string `yaml:"profile_dir"`
}

// BrowserConfig configures the rod-driven Chromium instance.
type BrowserConfig struct {
	Binary              string `yaml:"binary"`
	DebuggerURL         string `yaml:"debugger_url"`
	Headless            bool   `yaml:"headless"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	ElementTimeoutMs    int    `yaml:"element_timeout_ms"`
}

// SourcesConfig configures the weighted query sources and the progress source.
type SourcesConfig struct {
	GeoLocation    string `yaml:"geo_location"` // e.g. US, JP
	Language       string `yaml:"language"`     // e.g. en, ja
	TrendsURL      string `yaml:"trends_url"`   // RSS endpoint, templated with geo
	NewsURL        string `yaml:"news_url"`     // headline page to scrape
	FetchTimeoutMs int    `yaml:"fetch_timeout_ms"`
	ProgressURL    string `yaml:"progress_url"` // points breakdown endpoint
}

// PacingConfig carries the delay model bounds and the stall ladder.
type PacingConfig struct {
	MobileDelayMinSec  int `yaml:"mobile_delay_min_sec"`
	MobileDelayMaxSec  int `yaml:"mobile_delay_max_sec"`
	DesktopDelayMinSec int `yaml:"desktop_delay_min_sec"`
	DesktopDelayMaxSec int `yaml:"desktop_delay_max_sec"`

	StallRecheckAt   int `yaml:"stall_recheck_at"`    // forced progress re-check
	StallExtraWaitAt int `yaml:"stall_extra_wait_at"` // fixed extra wait
	StallExtraSec    int `yaml:"stall_extra_sec"`
	// Desktop counters update with more latency, so the hard limit is wider.
	StallHardLimitMobile  int `yaml:"stall_hard_limit_mobile"`
	StallHardLimitDesktop int `yaml:"stall_hard_limit_desktop"`
}

// CampaignConfig bounds one campaign run.
type CampaignConfig struct {
	WallClockBudgetMin   int `yaml:"wall_clock_budget_min"`
	AttemptRetries       int `yaml:"attempt_retries"`
	ExtraAttemptsMobile  int `yaml:"extra_attempts_mobile"`
	ExtraAttemptsDesktop int `yaml:"extra_attempts_desktop"`
	MaxSupplementBatches int `yaml:"max_supplement_batches"`
	CompletionRecheckSec int `yaml:"completion_recheck_sec"`
}

// RunnerConfig controls account fan-out and daemon mode.
type RunnerConfig struct {
	MaxParallelAccounts int `yaml:"max_parallel_accounts"`
	DaemonIntervalMin   int `yaml:"daemon_interval_min"`
	DaemonJitterMin     int `yaml:"daemon_jitter_min"`
}

// StoreConfig configures the results ledger.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the zap root logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the shipped defaults. All campaign-engine numbers
// here mirror the engine's own fallbacks.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:            true,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutMs: 30000,
			ElementTimeoutMs:    10000,
		},
		Sources: SourcesConfig{
			GeoLocation:    "US",
			Language:       "en",
			TrendsURL:      "https://trends.google.com/trending/rss?geo=%s",
			NewsURL:        "https://www.bing.com/news",
			FetchTimeoutMs: 15000,
			ProgressURL:    "https://rewards.bing.com/pointsbreakdown",
		},
		Pacing: PacingConfig{
			MobileDelayMinSec:     60,
			MobileDelayMaxSec:     150,
			DesktopDelayMinSec:    45,
			DesktopDelayMaxSec:    120,
			StallRecheckAt:        3,
			StallExtraWaitAt:      5,
			StallExtraSec:         90,
			StallHardLimitMobile:  10,
			StallHardLimitDesktop: 15,
		},
		Campaign: CampaignConfig{
			WallClockBudgetMin:   25,
			AttemptRetries:       5,
			ExtraAttemptsMobile:  20,
			ExtraAttemptsDesktop: 50,
			MaxSupplementBatches: 3,
			CompletionRecheckSec: 10,
		},
		Runner: RunnerConfig{
			MaxParallelAccounts: 1,
			DaemonIntervalMin:   0,
			DaemonJitterMin:     15,
		},
		Store: StoreConfig{
			Path: filepath.Join(".pilot", "results.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads a config file, layers it over the defaults, applies environment
// overrides and clamps out-of-range values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.clamp()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.clamp()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config back as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides layers deployment-sensitive values from the environment.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PILOT_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("PILOT_BROWSER_BINARY"); v != "" {
		c.Browser.Binary = v
	}
	if v := os.Getenv("PILOT_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("PILOT_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("PILOT_GEO"); v != "" {
		c.Sources.GeoLocation = v
	}
}

// clamp keeps user-supplied numbers inside workable ranges rather than
// rejecting the whole file.
func (c *Config) clamp() {
	clampInt(&c.Campaign.WallClockBudgetMin, 5, 120, 25)
	clampInt(&c.Campaign.AttemptRetries, 1, 10, 5)
	clampInt(&c.Campaign.ExtraAttemptsMobile, 0, 200, 20)
	clampInt(&c.Campaign.ExtraAttemptsDesktop, 0, 200, 50)
	clampInt(&c.Campaign.MaxSupplementBatches, 1, 10, 3)
	clampInt(&c.Campaign.CompletionRecheckSec, 1, 120, 10)

	clampInt(&c.Pacing.MobileDelayMinSec, 5, 600, 60)
	clampInt(&c.Pacing.MobileDelayMaxSec, c.Pacing.MobileDelayMinSec, 900, 150)
	clampInt(&c.Pacing.DesktopDelayMinSec, 5, 600, 45)
	clampInt(&c.Pacing.DesktopDelayMaxSec, c.Pacing.DesktopDelayMinSec, 900, 120)
	clampInt(&c.Pacing.StallRecheckAt, 1, 50, 3)
	clampInt(&c.Pacing.StallExtraWaitAt, c.Pacing.StallRecheckAt, 50, 5)
	clampInt(&c.Pacing.StallExtraSec, 10, 600, 90)
	clampInt(&c.Pacing.StallHardLimitMobile, c.Pacing.StallExtraWaitAt, 100, 10)
	clampInt(&c.Pacing.StallHardLimitDesktop, c.Pacing.StallExtraWaitAt, 100, 15)

	clampInt(&c.Runner.MaxParallelAccounts, 1, 8, 1)
	clampInt(&c.Runner.DaemonIntervalMin, 0, 24*60, 0)
	clampInt(&c.Runner.DaemonJitterMin, 0, 120, 15)
}

func clampInt(v *int, min, max, fallback int) {
	if *v == 0 {
		*v = fallback
		return
	}
	if *v < min {
		*v = min
	}
	if *v > max {
		*v = max
	}
}

// Validate rejects configs the runner cannot work with.
func (c *Config) Validate() error {
	for i, acct := range c.Accounts {
		if acct.Email == "" {
			return fmt.Errorf("accounts[%d]: email required", i)
		}
	}
	if c.Sources.GeoLocation == "" {
		return fmt.Errorf("sources.geo_location required")
	}
	return nil
}

// WallClockBudget returns the campaign deadline as a duration.
func (c *CampaignConfig) WallClockBudget() time.Duration {
	return time.Duration(c.WallClockBudgetMin) * time.Minute
}

// NavigationTimeout returns the browser navigation timeout.
func (c *BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// ElementTimeout returns the per-element wait timeout.
func (c *BrowserConfig) ElementTimeout() time.Duration {
	if c.ElementTimeoutMs == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ElementTimeoutMs) * time.Millisecond
}

// FetchTimeout returns the query-source HTTP timeout.
func (c *SourcesConfig) FetchTimeout() time.Duration {
	if c.FetchTimeoutMs == 0 {
		return 15 * time.Second
	}
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}
