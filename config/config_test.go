package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
symbol: BANKNIFTY
timezone: UTC
session:
  accumulation: "09:00-11:00"
  breakout: "11:00-15:00"
detect:
  atr_period: 10
  min_quality: 0.5
feed:
  url: "ws://feed:9001/ws"
  interval: 1m
sqlite:
  path: /data/slob.db
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Symbol != "BANKNIFTY" {
		t.Errorf("symbol = %q, want BANKNIFTY", c.Symbol)
	}
	if c.Detect.ATRPeriod != 10 {
		t.Errorf("atr_period = %d, want 10", c.Detect.ATRPeriod)
	}
	if c.Detect.MinQuality != 0.5 {
		t.Errorf("min_quality = %v, want 0.5", c.Detect.MinQuality)
	}
	// Fields absent from the file keep their defaults.
	if c.Detect.SpikeRatio != 2.0 {
		t.Errorf("spike_ratio = %v, want default 2.0", c.Detect.SpikeRatio)
	}
	if c.Feed.Interval != time.Minute {
		t.Errorf("feed.interval = %v, want 1m", c.Feed.Interval)
	}
	if c.SQLite.Path != "/data/slob.db" {
		t.Errorf("sqlite.path = %q", c.SQLite.Path)
	}

	acc, br, err := c.Windows()
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	if acc.StartHour != 9 || br.EndHour != 15 {
		t.Errorf("windows parsed wrong: %s / %s", acc, br)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SLOB_SYMBOL", "FINNIFTY")
	t.Setenv("SLOB_REDIS_ADDR", "redis:6380")
	t.Setenv("SLOB_REDIS_DB", "3")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Symbol != "FINNIFTY" {
		t.Errorf("symbol = %q, want FINNIFTY", c.Symbol)
	}
	if c.Redis.Addr != "redis:6380" {
		t.Errorf("redis.addr = %q", c.Redis.Addr)
	}
	if c.Redis.DB != 3 {
		t.Errorf("redis.db = %d, want 3", c.Redis.DB)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Symbol = "" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad accumulation window", func(c *Config) { c.Session.Accumulation = "9am-11am" }},
		{"overlapping windows", func(c *Config) {
			c.Session.Accumulation = "09:00-12:00"
			c.Session.Breakout = "11:00-15:00"
		}},
		{"bad detect", func(c *Config) { c.Detect.ATRPeriod = 0 }},
		{"zero interval", func(c *Config) { c.Feed.Interval = 0 }},
		{"empty sqlite path", func(c *Config) { c.SQLite.Path = "" }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("%s: expected validation error", tc.name)
			}
		})
	}
}
