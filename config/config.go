// Package config loads the detector's runtime configuration from a YAML
// file, with environment variable overrides for the values that differ
// between deployments (credentials, addresses, symbol).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"slobengine/internal/detect"
	"slobengine/internal/session"
)

// Config is the full runtime configuration. Detection parameters live in
// the embedded detect.Config; everything else wires the surrounding
// infrastructure.
type Config struct {
	Symbol   string `yaml:"symbol"`
	Timezone string `yaml:"timezone"`

	Session struct {
		Accumulation string `yaml:"accumulation"` // "HH:MM-HH:MM"
		Breakout     string `yaml:"breakout"`
	} `yaml:"session"`

	Detect detect.Config `yaml:"detect"`

	Feed struct {
		URL               string        `yaml:"url"`
		Interval          time.Duration `yaml:"interval"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
		MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
		BufferSize        int           `yaml:"buffer_size"`
	} `yaml:"feed"`

	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Addr         string `yaml:"addr"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		CandleStream string `yaml:"candle_stream"` // non-empty: consume candles from Redis instead of the feed
	} `yaml:"redis"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`

	Notification struct {
		TelegramToken  string `yaml:"telegram_token"`
		TelegramChatID string `yaml:"telegram_chat_id"`
		WebhookURL     string `yaml:"webhook_url"`
	} `yaml:"notification"`

	Dispatch struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
	} `yaml:"dispatch"`
}

// Default returns a configuration that validates out of the box: NIFTY on
// IST sessions, detection defaults, local infrastructure addresses.
func Default() *Config {
	c := &Config{
		Symbol:   "NIFTY",
		Timezone: "Asia/Kolkata",
		Detect:   detect.DefaultConfig(),
	}
	c.Session.Accumulation = "09:15-11:15"
	c.Session.Breakout = "11:15-15:15"
	c.Feed.URL = "ws://localhost:9001/ws"
	c.Feed.Interval = 5 * time.Minute
	c.Feed.ReconnectDelay = 2 * time.Second
	c.Feed.MaxReconnectDelay = 30 * time.Second
	c.Feed.BufferSize = 1024
	c.Redis.Addr = "localhost:6379"
	c.SQLite.Path = "slob.db"
	c.Metrics.Enabled = true
	c.Metrics.Addr = ":9100"
	c.Dispatch.BufferSize = 64
	return c
}

// Load reads a YAML file over the defaults, applies environment
// overrides, and validates the result. An empty path skips the file and
// uses defaults plus environment only.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Symbol = getEnv("SLOB_SYMBOL", c.Symbol)
	c.Timezone = getEnv("SLOB_TIMEZONE", c.Timezone)
	c.Feed.URL = getEnv("SLOB_FEED_URL", c.Feed.URL)
	c.Redis.Addr = getEnv("SLOB_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("SLOB_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("SLOB_REDIS_DB", c.Redis.DB)
	c.SQLite.Path = getEnv("SLOB_SQLITE_PATH", c.SQLite.Path)
	c.Metrics.Addr = getEnv("SLOB_METRICS_ADDR", c.Metrics.Addr)
	c.Notification.TelegramToken = getEnv("SLOB_TELEGRAM_TOKEN", c.Notification.TelegramToken)
	c.Notification.TelegramChatID = getEnv("SLOB_TELEGRAM_CHAT_ID", c.Notification.TelegramChatID)
	c.Notification.WebhookURL = getEnv("SLOB_WEBHOOK_URL", c.Notification.WebhookURL)
}

// Validate checks everything that can be checked without touching the
// network or the filesystem.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if _, _, err := c.Windows(); err != nil {
		return err
	}
	if err := c.Detect.Validate(); err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	if c.Feed.Interval <= 0 {
		return fmt.Errorf("feed.interval must be > 0, got %v", c.Feed.Interval)
	}
	if c.Feed.BufferSize < 1 {
		return fmt.Errorf("feed.buffer_size must be >= 1, got %d", c.Feed.BufferSize)
	}
	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Dispatch.Enabled && c.Dispatch.BufferSize < 1 {
		return fmt.Errorf("dispatch.buffer_size must be >= 1, got %d", c.Dispatch.BufferSize)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Windows parses the two session windows and checks that accumulation
// ends no later than breakout begins.
func (c *Config) Windows() (accumulation, breakout session.Window, err error) {
	accumulation, err = session.ParseWindow(c.Session.Accumulation)
	if err != nil {
		return accumulation, breakout, fmt.Errorf("session.accumulation: %w", err)
	}
	breakout, err = session.ParseWindow(c.Session.Breakout)
	if err != nil {
		return accumulation, breakout, fmt.Errorf("session.breakout: %w", err)
	}
	accEnd := accumulation.EndHour*60 + accumulation.EndMin
	brStart := breakout.StartHour*60 + breakout.StartMin
	if accEnd > brStart {
		return accumulation, breakout, fmt.Errorf(
			"accumulation window %s overlaps breakout window %s",
			accumulation, breakout)
	}
	return accumulation, breakout, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
