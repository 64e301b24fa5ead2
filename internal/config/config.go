package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Reddit    RedditConfig    `yaml:"reddit"`
	Reference ReferenceConfig `yaml:"reference"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the scrape and ticker-list refresh intervals.
type ScheduleConfig struct {
	ScrapeInterval  string `yaml:"scrape_interval"`
	RefreshInterval string `yaml:"refresh_interval"`
}

// ParseScrapeInterval returns the scrape interval as time.Duration.
func (s ScheduleConfig) ParseScrapeInterval() time.Duration {
	d, err := time.ParseDuration(s.ScrapeInterval)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// ParseRefreshInterval returns the ticker-list refresh interval.
func (s ScheduleConfig) ParseRefreshInterval() time.Duration {
	d, err := time.ParseDuration(s.RefreshInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// RedditConfig configures the Reddit fetcher. PostLimit and CommentLimit
// double as the cache window sizes, so an item evicted from the cache is
// never re-fetched.
type RedditConfig struct {
	Subreddits   []string `yaml:"subreddits"`
	PostLimit    int      `yaml:"post_limit"`
	CommentLimit int      `yaml:"comment_limit"`
	UserAgent    string   `yaml:"user_agent"`
	Timeout      string   `yaml:"timeout"`
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff string   `yaml:"retry_backoff"`
}

// ParseTimeout returns the per-request fetch timeout.
func (r RedditConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ParseRetryBackoff returns the initial retry backoff.
func (r RedditConfig) ParseRetryBackoff() time.Duration {
	d, err := time.ParseDuration(r.RetryBackoff)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// ReferenceConfig locates the reference word lists and ticker universe.
type ReferenceConfig struct {
	BlacklistDir string `yaml:"blacklist_dir"`
	RegularWords string `yaml:"regular_words"`
	SlangWords   string `yaml:"slang_words"`
	TickersCSV   string `yaml:"tickers_csv"`
}

// AlertsConfig configures tick-summary alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./tickerwatch.db"},
		Schedule: ScheduleConfig{
			ScrapeInterval:  "10m",
			RefreshInterval: "24h",
		},
		Reddit: RedditConfig{
			Subreddits: []string{
				"stocks", "wallstreetbets", "stocks_picks",
				"value_investing", "stockmarket", "stockstobuytoday",
			},
			PostLimit:    5,
			CommentLimit: 10,
			UserAgent:    "tickerwatch/1.0",
			Timeout:      "5s",
			MaxRetries:   2,
			RetryBackoff: "2s",
		},
		Reference: ReferenceConfig{
			BlacklistDir: "./blacklists",
			RegularWords: "./wordlists/regular_words.txt",
			SlangWords:   "./wordlists/slang_words.txt",
			TickersCSV:   "./tickers/ticker_list.csv",
		},
		Alerts: AlertsConfig{},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TICKERWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TICKERWATCH_USER_AGENT"); v != "" {
		cfg.Reddit.UserAgent = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
