// Package config loads server configuration from an optional YAML file
// with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int      `yaml:"port"`
	UserAgent       string   `yaml:"user_agent"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	UpgradeInsecure bool     `yaml:"upgrade_insecure"`
	AllowedDomains  []string `yaml:"allowed_domains"`

	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

type CacheConfig struct {
	// Backend is "memory" or "sqlite".
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File, when set, switches logging from the console to a rolling
	// file at this path.
	File string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Port:            8080,
		UserAgent:       "Mozilla/5.0 (compatible; lookingglass/1.0)",
		TimeoutSeconds:  15,
		MaxBodyBytes:    10 * 1024 * 1024,
		UpgradeInsecure: true,
		Cache: CacheConfig{
			Backend: "memory",
			Path:    "cache.sqlite3",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if
// any) and then with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("syntax error in config file %q: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	c.UserAgent = getenv("USER_AGENT", c.UserAgent)
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("UPGRADE_INSECURE"); v != "" {
		c.UpgradeInsecure = v == "true"
	}
	if v := os.Getenv("ALLOWED_DOMAINS"); v != "" {
		c.AllowedDomains = splitList(v)
	}
	c.Cache.Backend = getenv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Path = getenv("CACHE_PATH", c.Cache.Path)
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.TTLSeconds = n
		}
	}
	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
