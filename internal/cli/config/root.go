// Package config holds the state shared by the CLI commands: persistent
// flags, the loaded configuration and the resources built from it.
package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/backtest"
	bcfg "github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/pkg/logging"
	"github.com/rustyeddy/backtester/provider"
)

type RootConfig struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
	EnvFile    string
	NoProgress bool

	// set by the root command before any subcommand runs
	DBPathSet bool
	Log       *zap.Logger
}

// Setup loads the environment file and builds the logger.
func (rc *RootConfig) Setup() error {
	if err := bcfg.LoadEnv(rc.EnvFile); err != nil {
		return err
	}
	log, err := logging.New(rc.LogLevel)
	if err != nil {
		return err
	}
	rc.Log = log
	return nil
}

func (rc *RootConfig) Logger() *zap.Logger {
	if rc.Log == nil {
		return zap.NewNop()
	}
	return rc.Log
}

// Load reads --config, or the defaults with environment overrides when no
// file is given. --db replaces the journal path when set.
func (rc *RootConfig) Load() (*bcfg.Config, error) {
	var cfg *bcfg.Config
	if rc.ConfigPath != "" {
		c, err := bcfg.LoadFromFile(rc.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = bcfg.Default()
		cfg.ApplyEnv()
	}
	if rc.DBPathSet {
		cfg.Journal.DBPath = rc.DBPath
	}
	return cfg, nil
}

// OpenJournal opens the SQLite journal at path.
func (rc *RootConfig) OpenJournal(path string) (*journal.SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("no journal database configured (set journal.db_path or --db)")
	}
	return journal.NewSQLite(path, rc.Logger().Named("journal"))
}

// Provider builds the candle source described by dc. The returned close
// function releases it.
func (rc *RootConfig) Provider(ctx context.Context, dc bcfg.DataConfig) (backtest.PriceSeriesProvider, func(), error) {
	var (
		src     backtest.PriceSeriesProvider
		closeFn = func() {}
	)
	switch dc.Source {
	case "csv":
		src = provider.CSV{Dir: dc.Dir}
	case "postgres":
		pg, err := provider.NewPostgres(ctx, dc.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		src, closeFn = pg, pg.Close
	case "oanda":
		o := provider.NewOANDA(dc.OANDA.Token, dc.OANDA.Practice)
		o.Price = dc.OANDA.Price
		o.Log = rc.Logger().Named("oanda")
		src = o
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", dc.Source)
	}
	rc.Logger().Debug("candle source ready", zap.String("source", dc.Source), zap.Bool("cache", dc.Cache))

	if dc.Cache {
		src = provider.NewCache(src)
	}
	return src, closeFn, nil
}
