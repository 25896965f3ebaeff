// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/fleetglass/internal/logging"
)

// Config holds all application configuration loaded from environment
// variables and an optional YAML config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Poll     PollConfig     `koanf:"poll"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// UpstreamConfig holds the tracking provider connection settings.
//
// Environment Variables:
//   - TRACKMYRIDE_BASE_URL: API endpoint URL
//   - TRACKMYRIDE_API_KEY: API key (required)
//   - TRACKMYRIDE_USER_KEY: per-user key (required)
//   - TRACKMYRIDE_ACCOUNT_ID: account identifier, salts derived vehicle IDs
//   - TRACKMYRIDE_IDENTITY_FIELD: pin vehicle identity to a specific field
//   - TRACKMYRIDE_MINUTES_WINDOW: history window per fetch in minutes
//   - TRACKMYRIDE_POINT_LIMIT: telemetry points per device per fetch
//   - TRACKMYRIDE_TIMEOUT: per-request HTTP timeout
//   - TRACKMYRIDE_REQUESTS_PER_SECOND: client-side politeness limit
type UpstreamConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	APIKey            string        `koanf:"api_key" validate:"required"`
	UserKey           string        `koanf:"user_key" validate:"required"`
	AccountID         string        `koanf:"account_id"`
	IdentityField     string        `koanf:"identity_field"`
	MinutesWindow     int           `koanf:"minutes_window" validate:"min=0,max=4320"`
	PointLimit        int           `koanf:"point_limit" validate:"min=0,max=1000"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// PollConfig holds the poll loop pacing and backoff settings. The loop
// ticks at Interval; actual upstream pacing is driven by throttle windows
// and the client-side rate limiter, so a short interval is safe.
type PollConfig struct {
	Interval       time.Duration `koanf:"interval"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
	ZoneCacheTTL   time.Duration `koanf:"zone_cache_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// validate is shared; the validator is stateless and safe for concurrent use.
var validate = validator.New()

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	if err := c.validateUpstream(); err != nil {
		return err
	}
	return c.validatePoll()
}

func (c *Config) validateUpstream() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("TRACKMYRIDE_BASE_URL must be an http or https URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("TRACKMYRIDE_TIMEOUT must be positive, got %v", c.Upstream.Timeout)
	}
	if c.Upstream.RequestsPerSecond <= 0 {
		return fmt.Errorf("TRACKMYRIDE_REQUESTS_PER_SECOND must be positive, got %v", c.Upstream.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.Poll.Interval)
	}
	if c.Poll.InitialBackoff <= 0 {
		return fmt.Errorf("POLL_INITIAL_BACKOFF must be positive, got %v", c.Poll.InitialBackoff)
	}
	if c.Poll.MaxBackoff < c.Poll.InitialBackoff {
		return fmt.Errorf("POLL_MAX_BACKOFF (%v) must be at least POLL_INITIAL_BACKOFF (%v)",
			c.Poll.MaxBackoff, c.Poll.InitialBackoff)
	}
	if c.Poll.ZoneCacheTTL <= 0 {
		return fmt.Errorf("ZONE_CACHE_TTL must be positive, got %v", c.Poll.ZoneCacheTTL)
	}
	return nil
}

// Redacted returns a copy safe for logging: credentials are masked but
// keep enough shape to confirm which key is loaded.
func (c *Config) Redacted() Config {
	out := *c
	out.Upstream.APIKey = logging.RedactSecret(c.Upstream.APIKey)
	out.Upstream.UserKey = logging.RedactSecret(c.Upstream.UserKey)
	return out
}
