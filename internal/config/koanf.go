// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

/*
koanf.go - Configuration Loading

Three-layer configuration with Koanf v2: built-in defaults, then an
optional YAML file, then environment variables. Every setting has a
default except the two upstream credentials, so a deployment can run on
exactly TRACKMYRIDE_API_KEY and TRACKMYRIDE_USER_KEY.

Environment variables map through an explicit table rather than a
mechanical prefix transform. Unmapped variables are ignored instead of
landing in surprising config keys.
*/

//nolint:staticcheck // File documentation, not package doc
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/fleetglass/internal/logging"
)

// DefaultConfigPaths are checked in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fleetglass/config.yaml",
	"/etc/fleetglass/config.yml",
}

// sliceConfigPaths are keys whose env values are comma-separated lists.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		logging.Info().Str("path", path).Msg("Loaded config file")
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	processSliceFields(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultConfig returns the built-in defaults. Credentials intentionally
// have none.
func defaultConfig() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL:           "https://app.trackmyride.com.au/v2/php/api.php",
			MinutesWindow:     60,
			PointLimit:        1,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
		},
		Poll: PollConfig{
			Interval:       time.Second,
			InitialBackoff: 5 * time.Second,
			MaxBackoff:     300 * time.Second,
			ZoneCacheTTL:   10 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8790,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// findConfigFile returns the config file path, honoring CONFIG_PATH
// first. An explicit CONFIG_PATH that does not exist is still returned
// so loading fails loudly instead of silently using defaults.
func findConfigFile() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to config keys.
// Returning "" skips the variable entirely.
func envTransformFunc(key string) string {
	mapping := map[string]string{
		"TRACKMYRIDE_BASE_URL":            "upstream.base_url",
		"TRACKMYRIDE_API_KEY":             "upstream.api_key",
		"TRACKMYRIDE_USER_KEY":            "upstream.user_key",
		"TRACKMYRIDE_ACCOUNT_ID":          "upstream.account_id",
		"TRACKMYRIDE_IDENTITY_FIELD":      "upstream.identity_field",
		"TRACKMYRIDE_MINUTES_WINDOW":      "upstream.minutes_window",
		"TRACKMYRIDE_POINT_LIMIT":         "upstream.point_limit",
		"TRACKMYRIDE_TIMEOUT":             "upstream.timeout",
		"TRACKMYRIDE_REQUESTS_PER_SECOND": "upstream.requests_per_second",

		"POLL_INTERVAL":        "poll.interval",
		"POLL_INITIAL_BACKOFF": "poll.initial_backoff",
		"POLL_MAX_BACKOFF":     "poll.max_backoff",
		"ZONE_CACHE_TTL":       "poll.zone_cache_ttl",

		"HTTP_HOST":           "server.host",
		"HTTP_PORT":           "server.port",
		"HTTP_TIMEOUT":        "server.timeout",
		"CORS_ORIGINS":        "server.cors_origins",
		"RATE_LIMIT_REQUESTS": "server.rate_limit_requests",
		"RATE_LIMIT_WINDOW":   "server.rate_limit_window",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",
		"LOG_CALLER": "logging.caller",
	}
	if mapped, ok := mapping[key]; ok {
		return mapped
	}
	return ""
}

// processSliceFields splits comma-separated env values into slices for
// keys declared in sliceConfigPaths. Koanf's env provider delivers them
// as plain strings.
func processSliceFields(k *koanf.Koanf) {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if v := strings.TrimSpace(p); v != "" {
				values = append(values, v)
			}
		}
		// Set failures here would be programmer error on a known key.
		_ = k.Set(path, values)
	}
}
