// Package config loads and validates the process configuration from a
// YAML file, with environment variable overrides for deployment knobs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Calls     CallsConfig     `yaml:"calls"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
}

// UpstreamConfig configures the acquisition client.
type UpstreamConfig struct {
	BaseURL          string   `yaml:"base_url"`
	RequestTimeoutMS int      `yaml:"request_timeout_ms"`
	UserAgent        string   `yaml:"user_agent"`
	MarketsVariants  []string `yaml:"markets_variants"`
	BookVariants     []string `yaml:"orderbook_variants"`
	TradesVariants   []string `yaml:"trades_variants"`
	SmoothRPS        float64  `yaml:"smooth_rps"`

	BreakerEnabled     bool `yaml:"breaker_enabled"`
	BreakerFailures    int  `yaml:"breaker_failures"`
	BreakerCooldownSec int  `yaml:"breaker_cooldown_sec"`
}

// RateLimitConfig configures per-endpoint outbound budgets over the
// trailing 60 second window.
type RateLimitConfig struct {
	DefaultPerMinute int            `yaml:"default_per_minute"`
	PerEndpoint      map[string]int `yaml:"per_endpoint"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	DefaultTTLSec   int `yaml:"default_ttl_sec"`
	MarketsTTLSec   int `yaml:"markets_ttl_sec"`
	OrderBookTTLSec int `yaml:"orderbook_ttl_sec"`
	TradesTTLSec    int `yaml:"trades_ttl_sec"`
	MaxEntries      int `yaml:"max_entries"`
}

// CallsConfig configures the call metrics recorder.
type CallsConfig struct {
	MaxEntries       int `yaml:"max_entries"`
	SummaryWindowSec int `yaml:"summary_window_sec"`
}

// Load reads configuration from path, applies defaults, environment
// overrides and validation. An empty path yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if addr := os.Getenv("MARKETINTEL_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if baseURL := os.Getenv("MARKETINTEL_UPSTREAM_URL"); baseURL != "" {
		cfg.Upstream.BaseURL = baseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeoutSec:  10,
			WriteTimeoutSec: 30,
		},
		Upstream: UpstreamConfig{
			RequestTimeoutMS:   5000,
			SmoothRPS:          10,
			BreakerEnabled:     true,
			BreakerFailures:    5,
			BreakerCooldownSec: 30,
		},
		RateLimit: RateLimitConfig{
			DefaultPerMinute: 60,
		},
		Cache: CacheConfig{
			DefaultTTLSec:   30,
			MarketsTTLSec:   60,
			OrderBookTTLSec: 5,
			TradesTTLSec:    5,
			MaxEntries:      10000,
		},
		Calls: CallsConfig{
			MaxEntries:       2048,
			SummaryWindowSec: 300,
		},
	}
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url must be set")
	}
	if c.Upstream.RequestTimeoutMS <= 0 {
		return fmt.Errorf("upstream.request_timeout_ms must be positive")
	}
	// Per-market variants are format templates; a missing placeholder
	// would silently produce malformed URLs at fetch time.
	for _, variant := range c.Upstream.BookVariants {
		if !strings.Contains(variant, "%s") {
			return fmt.Errorf("upstream.orderbook_variants entry %q missing %%s market id placeholder", variant)
		}
	}
	for _, variant := range c.Upstream.TradesVariants {
		if !strings.Contains(variant, "%s") {
			return fmt.Errorf("upstream.trades_variants entry %q missing %%s market id placeholder", variant)
		}
	}
	if c.RateLimit.DefaultPerMinute <= 0 {
		return fmt.Errorf("rate_limit.default_per_minute must be positive")
	}
	for endpoint, budget := range c.RateLimit.PerEndpoint {
		if budget <= 0 {
			return fmt.Errorf("rate_limit.per_endpoint.%s must be positive", endpoint)
		}
	}
	if c.Cache.DefaultTTLSec <= 0 {
		return fmt.Errorf("cache.default_ttl_sec must be positive")
	}
	if c.Calls.MaxEntries <= 0 {
		return fmt.Errorf("calls.max_entries must be positive")
	}
	return nil
}

// RequestTimeout returns the per-attempt timeout as a duration.
func (c *UpstreamConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// SummaryWindow returns the call summary window as a duration.
func (c *CallsConfig) SummaryWindow() time.Duration {
	return time.Duration(c.SummaryWindowSec) * time.Second
}
