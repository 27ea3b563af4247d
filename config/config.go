package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/pkg/logging"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/strategy"
)

// Environment variables that override file values.
const (
	EnvDatabaseURL = "BACKTESTER_DATABASE_URL"
	EnvDataDir     = "BACKTESTER_DATA_DIR"
	EnvOANDAToken  = "OANDA_TOKEN"
)

// Config represents the complete backtester configuration
type Config struct {
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Limits   LimitsConfig   `json:"limits" yaml:"limits"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
}

// BacktestConfig contains the run parameters. Start and End are
// "2006-01-02" or RFC3339; either may be empty for an open range.
type BacktestConfig struct {
	Instrument      string             `json:"instrument" yaml:"instrument"`
	Start           string             `json:"start,omitempty" yaml:"start,omitempty"`
	End             string             `json:"end,omitempty" yaml:"end,omitempty"`
	Interval        string             `json:"interval" yaml:"interval"`
	InitialCapital  float64            `json:"initial_capital" yaml:"initial_capital"`
	PositionSizePct float64            `json:"position_size_pct" yaml:"position_size_pct"`
	FeeRate         float64            `json:"fee_rate" yaml:"fee_rate"`
	Strategy        strategy.Selection `json:"strategy" yaml:"strategy"`
	Risk            *risk.Policy       `json:"risk,omitempty" yaml:"risk,omitempty"`
}

// DataConfig selects where candles come from
type DataConfig struct {
	Source      string      `json:"source" yaml:"source"` // "csv", "postgres" or "oanda"
	Dir         string      `json:"dir,omitempty" yaml:"dir,omitempty"`
	DatabaseURL string      `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	OANDA       OANDAConfig `json:"oanda,omitempty" yaml:"oanda,omitempty"`
	Cache       bool        `json:"cache" yaml:"cache"`
}

// OANDAConfig configures the OANDA REST candle source. The token is
// normally supplied through OANDA_TOKEN.
type OANDAConfig struct {
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	Practice bool   `json:"practice,omitempty" yaml:"practice,omitempty"`
	Price    string `json:"price,omitempty" yaml:"price,omitempty"` // M, B or A
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	DBPath    string `json:"db_path,omitempty" yaml:"db_path,omitempty"` // empty disables the journal
	ExportDir string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
}

// LimitsConfig bounds a run
type LimitsConfig struct {
	MaxBars    int    `json:"max_bars" yaml:"max_bars"`
	Timeout    string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "30s", "5m"
	CheckEvery int    `json:"check_every" yaml:"check_every"`
}

// LoadEnv loads .env style files into the environment. Missing files are
// ignored. With no arguments it loads ./.env.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a file (YAML or JSON), applies the
// environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func unmarshal(data []byte, cfg *Config) error {
	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// ApplyEnv overrides data settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Data.DatabaseURL = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(EnvOANDAToken); v != "" {
		c.Data.OANDA.Token = v
	}
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths and JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	bc, err := c.BacktestConfig()
	if err != nil {
		return err
	}
	if err := bc.Validate(); err != nil {
		return err
	}
	sc, err := bc.Strategy.Resolve()
	if err != nil {
		return fmt.Errorf("backtest.strategy: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("backtest.strategy: %w", err)
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.Dir == "" {
			return fmt.Errorf("data.dir required for csv source")
		}
	case "postgres":
		if c.Data.DatabaseURL == "" {
			return fmt.Errorf("data.database_url (or %s) required for postgres source", EnvDatabaseURL)
		}
	case "oanda":
		if c.Data.OANDA.Token == "" {
			return fmt.Errorf("data.oanda.token (or %s) required for oanda source", EnvOANDAToken)
		}
	default:
		return fmt.Errorf("data.source must be 'csv', 'postgres' or 'oanda'")
	}

	if c.Limits.CheckEvery < 0 {
		return fmt.Errorf("limits.check_every must not be negative")
	}
	if _, err := c.Limits.timeout(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

func parseTime(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("backtest.%s: want 2006-01-02 or RFC3339, got %q", field, s)
	}
	return t.UTC(), nil
}

// BacktestConfig converts the backtest section into a run config.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	b := c.Backtest
	start, err := parseTime("start", b.Start)
	if err != nil {
		return backtest.Config{}, err
	}
	end, err := parseTime("end", b.End)
	if err != nil {
		return backtest.Config{}, err
	}
	iv, err := market.ParseInterval(b.Interval)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("backtest.interval: %w", err)
	}
	return backtest.Config{
		Instrument:      strings.TrimSpace(b.Instrument),
		Start:           start,
		End:             end,
		Interval:        iv,
		InitialCapital:  b.InitialCapital,
		PositionSizePct: b.PositionSizePct,
		FeeRate:         b.FeeRate,
		Strategy:        b.Strategy,
		Risk:            b.Risk,
	}, nil
}

func (l LimitsConfig) timeout() (time.Duration, error) {
	if l.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 0, fmt.Errorf("limits.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("limits.timeout must not be negative")
	}
	return d, nil
}

// Options converts the limits into engine options.
func (l LimitsConfig) Options() (backtest.Options, error) {
	d, err := l.timeout()
	if err != nil {
		return backtest.Options{}, err
	}
	return backtest.Options{
		CheckEvery:  l.CheckEvery,
		MaxBars:     l.MaxBars,
		MaxDuration: d,
	}, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			Instrument:      "BTC-USD",
			Start:           "2023-01-01",
			End:             "2024-01-01",
			Interval:        "1d",
			InitialCapital:  10000,
			PositionSizePct: 1,
			FeeRate:         0.001,
			Strategy:        strategy.Selection{Builtin: "sma_crossover"},
		},
		Data: DataConfig{
			Source: "csv",
			Dir:    "./data",
			Cache:  true,
		},
		Journal: JournalConfig{
			DBPath: "./backtests.db",
		},
		Limits: LimitsConfig{
			MaxBars:    backtest.DefaultMaxBars,
			CheckEvery: backtest.DefaultCheckEvery,
		},
		LogLevel: "info",
	}
}
