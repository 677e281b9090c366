// Package config loads the robot configuration: defaults for the selected
// strategy variant, an optional YAML file on top, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"trading-signalcore/internal/execution"
	"trading-signalcore/internal/markethours"
	"trading-signalcore/internal/model"
	"trading-signalcore/internal/risk"
	"trading-signalcore/internal/strategy"
)

// ErrInvalidConfig is returned by Validate and Load for unusable settings.
var ErrInvalidConfig = errors.New("invalid config")

// Feed kinds.
const (
	FeedWebsocket = "ws"
	FeedRedis     = "redis"
	FeedNone      = "none"
)

// Instrument is the static symbol description used by the paper broker
// until the first quote arrives.
type Instrument struct {
	PipSize   float64 `yaml:"pip_size"`
	PipValue  float64 `yaml:"pip_value"`
	LotStep   float64 `yaml:"lot_step"`
	MinVolume float64 `yaml:"min_volume"`
	MaxVolume float64 `yaml:"max_volume"`
	Bid       float64 `yaml:"bid"`
	Ask       float64 `yaml:"ask"`
}

// FeedConfig selects the market data source.
type FeedConfig struct {
	Kind string `yaml:"kind"` // ws, redis or none
	URL  string `yaml:"url"`
	// Stream overrides the redis stream key (default md:{symbol}).
	Stream string `yaml:"stream"`
	// BuildBars resamples quotes into bars locally; set when the source
	// streams quotes only.
	BuildBars bool `yaml:"build_bars"`
}

// RedisConfig holds the redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig holds bar persistence and warm-up sources.
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	ParquetPath string `yaml:"parquet_path"` // warm-up source, preferred over sqlite when set
	RecordBars  bool   `yaml:"record_bars"`
	WarmupBars  int    `yaml:"warmup_bars"`
}

// Config holds all robot configuration.
type Config struct {
	Symbol       string        `yaml:"symbol"`
	BarPeriod    time.Duration `yaml:"bar_period"`
	HistorySize  int           `yaml:"history_size"`
	PaperBalance float64       `yaml:"paper_balance"`

	Instrument Instrument         `yaml:"instrument"`
	Strategy   strategy.Config    `yaml:"strategy"`
	Risk       risk.Config        `yaml:"risk"`
	Execution  execution.Config   `yaml:"execution"`
	Session    markethours.Config `yaml:"session"`
	Feed       FeedConfig         `yaml:"feed"`
	Redis      RedisConfig        `yaml:"redis"`
	Store      StoreConfig        `yaml:"store"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	WebhookURL  string `yaml:"webhook_url"`
}

// Default returns a complete configuration for variant.
func Default(variant strategy.Variant) Config {
	rc := risk.DefaultConfig()
	if variant != strategy.VariantEngulfing {
		// crossover and SAR robots trade fixed pips
		rc.Mode = risk.ModeFixed
	}
	return Config{
		Symbol:       "EURUSD",
		BarPeriod:    time.Minute,
		HistorySize:  4096,
		PaperBalance: 10000,
		Instrument: Instrument{
			PipSize:   0.0001,
			PipValue:  0.0001,
			LotStep:   1000,
			MinVolume: 1000,
		},
		Strategy:  strategy.DefaultConfig(variant),
		Risk:      rc,
		Execution: execution.DefaultConfig(),
		Session:   markethours.DefaultConfig(),
		Feed:      FeedConfig{Kind: FeedWebsocket, URL: "ws://localhost:8765/ws"},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Store: StoreConfig{
			SQLitePath: "data/bars.db",
			RecordBars: true,
			WarmupBars: 500,
		},
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path (may
// be empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		raw = b
	}

	// the variant decides the defaults, so resolve it before decoding
	var head struct {
		Strategy struct {
			Variant strategy.Variant `yaml:"variant"`
		} `yaml:"strategy"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	variant := head.Strategy.Variant
	if v := os.Getenv("ROBOT_STRATEGY"); v != "" {
		variant = strategy.Variant(v)
	}
	if variant == "" {
		variant = strategy.VariantEngulfing
	}

	cfg := Default(variant)
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	cfg.Strategy.Variant = variant
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Symbol = getEnv("ROBOT_SYMBOL", c.Symbol)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.Feed.URL = getEnv("FEED_URL", c.Feed.URL)
	c.Feed.Kind = getEnv("FEED_KIND", c.Feed.Kind)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	if v := os.Getenv("PAPER_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.PaperBalance = f
		}
	}
}

// Validate rejects settings that would fail mid-stream.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.Symbol) != "", "symbol is required")
	check(c.BarPeriod > 0, "bar period must be positive, got %s", c.BarPeriod)
	check(c.HistorySize > 0, "history size must be positive, got %d", c.HistorySize)
	check(c.PaperBalance >= 0, "paper balance must not be negative")
	check(c.Instrument.PipSize > 0, "instrument pip size must be positive")
	check(c.Instrument.PipValue >= 0, "instrument pip value must not be negative")
	check(c.Instrument.LotStep >= 0 && c.Instrument.MinVolume >= 0 && c.Instrument.MaxVolume >= 0,
		"instrument volume limits must not be negative")
	check(c.Execution.StaleOrderPips >= 0, "stale order pips must not be negative")
	check(c.Store.WarmupBars >= 0, "warmup bars must not be negative")

	switch c.Feed.Kind {
	case FeedWebsocket, FeedRedis:
		check(c.Feed.Kind != FeedWebsocket || c.Feed.URL != "", "feed url is required for the websocket feed")
		check(c.Feed.Kind != FeedRedis || c.Redis.Addr != "", "redis addr is required for the redis feed")
	case FeedNone:
	default:
		errs = append(errs, fmt.Errorf("unknown feed kind %q", c.Feed.Kind))
	}

	if err := c.Strategy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("strategy: %w", err))
	}
	if err := c.Risk.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("risk: %w", err))
	}
	if _, err := markethours.New(c.Session); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SymbolInfo returns the instrument as a broker symbol snapshot.
func (c *Config) SymbolInfo() model.SymbolInfo {
	in := c.Instrument
	return model.SymbolInfo{
		Name:      c.Symbol,
		PipSize:   in.PipSize,
		PipValue:  in.PipValue,
		Bid:       in.Bid,
		Ask:       in.Ask,
		Spread:    in.Ask - in.Bid,
		LotStep:   in.LotStep,
		MinVolume: in.MinVolume,
		MaxVolume: in.MaxVolume,
	}
}

// StreamKey returns the redis stream carrying the symbol's events.
func (c *Config) StreamKey() string {
	if c.Feed.Stream != "" {
		return c.Feed.Stream
	}
	return "md:" + c.Symbol
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
