package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken            string            `yaml:"telegram_token"`
	StackExchangeKey         string            `yaml:"stackexchange_key"`
	StackExchangeFilter      string            `yaml:"stackexchange_filter"`
	DefaultSite              string            `yaml:"default_site"`
	Timezone                 string            `yaml:"timezone"`
	DBPath                   string            `yaml:"db_path"`
	LogLevel                 string            `yaml:"log_level"`
	FetchTimeoutSecs         int               `yaml:"fetch_timeout_secs"`
	PollTimeoutSecs          int               `yaml:"poll_timeout_secs"`
	InlineResultCount        int               `yaml:"inline_result_count"`
	SessionTTLHours          int               `yaml:"session_ttl_hours"`
	SessionSweepIntervalMins int               `yaml:"session_sweep_interval_mins"`
	Sites                    map[string]string `yaml:"sites"`
}

// defaultSites maps common aliases to API site names.
var defaultSites = map[string]string{
	"so":            "stackoverflow",
	"stackoverflow": "stackoverflow",
	"su":            "superuser",
	"superuser":     "superuser",
	"sf":            "serverfault",
	"serverfault":   "serverfault",
	"au":            "askubuntu",
	"askubuntu":     "askubuntu",
	"ul":            "unix",
	"unix":          "unix",
	"math":          "math",
	"tex":           "tex",
	"cr":            "codereview",
	"codereview":    "codereview",
	"dba":           "dba",
	"se":            "softwareengineering",
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("STACKBOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// Location returns the configured time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SessionTTL is zero when sessions never expire.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func applyDefaults(cfg *Config) {
	if cfg.DefaultSite == "" {
		cfg.DefaultSite = "stackoverflow"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./stackbot.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 10
	}
	if cfg.PollTimeoutSecs == 0 {
		cfg.PollTimeoutSecs = 50
	}
	if cfg.InlineResultCount == 0 {
		cfg.InlineResultCount = 10
	}
	if cfg.SessionSweepIntervalMins == 0 {
		cfg.SessionSweepIntervalMins = 60
	}

	sites := make(map[string]string, len(defaultSites)+len(cfg.Sites))
	for alias, site := range defaultSites {
		sites[alias] = site
	}
	for alias, site := range cfg.Sites {
		sites[strings.ToLower(alias)] = site
	}
	cfg.Sites = sites
}

func applyEnvironmentOverrides(cfg *Config) {
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if dbPath := os.Getenv("STACKBOT_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.InlineResultCount < 1 || cfg.InlineResultCount > 50 {
		return fmt.Errorf("inline_result_count must be between 1 and 50, got %d", cfg.InlineResultCount)
	}
	if cfg.SessionTTLHours < 0 {
		return fmt.Errorf("session_ttl_hours must not be negative, got %d", cfg.SessionTTLHours)
	}
	if cfg.SessionSweepIntervalMins < 0 {
		return fmt.Errorf("session_sweep_interval_mins must not be negative, got %d", cfg.SessionSweepIntervalMins)
	}
	for alias, site := range cfg.Sites {
		if site == "" {
			return fmt.Errorf("site alias %q has no site", alias)
		}
	}
	return nil
}
