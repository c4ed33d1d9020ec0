package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Discord   DiscordConfig   `yaml:"discord"`
	Market    MarketConfig    `yaml:"market"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	WatchList WatchListConfig `yaml:"watchlist"`
	Store     StoreConfig     `yaml:"store"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DiscordConfig struct {
	Token     string          `yaml:"token"`
	APIBase   string          `yaml:"api_base"`
	TimeoutMs int             `yaml:"timeout_ms"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig caps message create/edit/delete calls. per_minute <= 0
// disables the limiter.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type MarketConfig struct {
	ScannerURL string `yaml:"scanner_url"`
	SearchURL  string `yaml:"search_url"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type TrackerConfig struct {
	UpdateIntervalSec int     `yaml:"update_interval_sec"`
	RequestDelaySec   float64 `yaml:"request_delay_sec"`
	Title             string  `yaml:"title"`
	ReadyRetrySec     int     `yaml:"ready_retry_sec"`
}

func (t TrackerConfig) UpdateInterval() time.Duration {
	return time.Duration(t.UpdateIntervalSec) * time.Second
}

func (t TrackerConfig) RequestDelay() time.Duration {
	return time.Duration(t.RequestDelaySec * float64(time.Second))
}

func (t TrackerConfig) ReadyRetry() time.Duration {
	return time.Duration(t.ReadyRetrySec) * time.Second
}

// WatchListConfig selects where the watch-list document lives: a JSON file
// (file) or the settings table of the SQLite store (sqlite).
type WatchListConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
		Discord: DiscordConfig{
			APIBase:   "https://discord.com/api/v10",
			TimeoutMs: 10000,
			RateLimit: RateLimitConfig{PerMinute: 30, Burst: 5},
		},
		Market: MarketConfig{
			ScannerURL: "https://scanner.tradingview.com",
			SearchURL:  "https://symbol-search.tradingview.com/symbol_search/",
			TimeoutMs:  10000,
		},
		Tracker: TrackerConfig{
			UpdateIntervalSec: 60,
			RequestDelaySec:   1.0,
			Title:             "📊 Cryptic Tracker",
			ReadyRetrySec:     5,
		},
		WatchList: WatchListConfig{
			Backend: "file",
			Path:    "config.json",
		},
		Store: StoreConfig{
			Sqlite: SqliteConfig{Path: "data/app.db"},
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("UPDATE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid UPDATE_INTERVAL: %q", v)
		}
		cfg.Tracker.UpdateIntervalSec = n
	}
	if v := os.Getenv("REQUEST_DELAY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid REQUEST_DELAY: %q", v)
		}
		cfg.Tracker.RequestDelaySec = f
	}
	if v := os.Getenv("WATCHLIST_BACKEND"); v != "" {
		cfg.WatchList.Backend = v
	}
	if v := os.Getenv("WATCHLIST_PATH"); v != "" {
		cfg.WatchList.Path = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.Sqlite.Path = v
	}
	return nil
}

func (c *Config) validate() error {
	c.WatchList.Backend = strings.ToLower(strings.TrimSpace(c.WatchList.Backend))
	switch c.WatchList.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("invalid watchlist backend: %q", c.WatchList.Backend)
	}
	if c.Tracker.UpdateIntervalSec <= 0 {
		return fmt.Errorf("invalid tracker.update_interval_sec: %d", c.Tracker.UpdateIntervalSec)
	}
	if c.Tracker.RequestDelaySec < 0 {
		return fmt.Errorf("invalid tracker.request_delay_sec: %v", c.Tracker.RequestDelaySec)
	}
	return nil
}
