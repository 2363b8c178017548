package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Config holds runtime configuration for the spots backend.
type Config struct {
	// HTTP listen port
	Port string `yaml:"port"`

	// Optional Redis used to cache nearby-query results
	RedisAddr string `yaml:"redis_addr"`
	RedisPass string `yaml:"redis_pass"`

	// Nearby-query cache TTL in seconds (0 disables caching even with Redis)
	NearbyCacheTTLSeconds int `yaml:"nearby_cache_ttl_seconds"`

	// Radius applied to /nearby when the client sends none
	DefaultRadiusMeters float64 `yaml:"default_radius_meters"`

	// Path to the bundled spots dataset
	BundledDataPath string `yaml:"bundled_data_path"`

	// Token-bucket limits for mutating routes
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// Defaults mirrors the original deployment: 5km nearby radius, one hour of
// nearby-cache, bundled data next to the spots package.
func Defaults() Config {
	return Config{
		Port:                  "5050",
		NearbyCacheTTLSeconds: 3600,
		DefaultRadiusMeters:   5000,
		BundledDataPath:       "internal/spots/data/spots.json",
		RateLimitRPS:          10,
		RateLimitBurst:        20,
	}
}

// Load builds the config from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in that order (env wins).
//
// Environment variables:
//   - PORT
//   - REDIS_ADDR, REDIS_PASS
//   - NEARBY_CACHE_TTL (seconds)
//   - DEFAULT_RADIUS_METERS
//   - BUNDLED_DATA_PATH
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("could not read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASS"); v != "" {
		cfg.RedisPass = v
	}
	if v := os.Getenv("NEARBY_CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.NearbyCacheTTLSeconds = n
		}
	}
	if v := os.Getenv("DEFAULT_RADIUS_METERS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.DefaultRadiusMeters = f
		}
	}
	if v := os.Getenv("BUNDLED_DATA_PATH"); v != "" {
		cfg.BundledDataPath = v
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitBurst = n
		}
	}

	return cfg, nil
}
