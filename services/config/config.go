// Package config loads the service configuration from YAML with env overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. It is decoded once at startup and
// passed by value into component constructors; nothing reads it through a
// global.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Engine     EngineConfig     `yaml:"engine"`
	Optimizer  OptimizerConfig  `yaml:"optimizer"`
	Indicators IndicatorsConfig `yaml:"indicators"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_seconds"`
}

type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// EngineConfig holds the backtest simulator parameters.
type EngineConfig struct {
	InitialCapital   float64 `yaml:"initial_capital"`
	PositionFraction float64 `yaml:"position_fraction"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
	MaxHoldBars      int     `yaml:"max_hold_bars"`
	WarmupBars       int     `yaml:"warmup_bars"`
	VolumeThreshold  float64 `yaml:"volume_threshold"`
	ATRPeriod        int     `yaml:"atr_period"`
	ATRMultiplier    float64 `yaml:"atr_multiplier"`
}

type OptimizerConfig struct {
	InitialCapital float64   `yaml:"initial_capital"`
	Grid           []float64 `yaml:"grid"`
	MinSignals     int       `yaml:"min_signals"`
	MaxWorkers     int       `yaml:"max_workers"`
}

// IndicatorsConfig mirrors the per-indicator enablement and period settings.
type IndicatorsConfig struct {
	RSI        PeriodsIndicator   `yaml:"rsi"`
	EMA        PeriodsIndicator   `yaml:"ema"`
	SMA        PeriodsIndicator   `yaml:"sma"`
	ATR        PeriodsIndicator   `yaml:"atr"`
	MACD       MACDIndicator      `yaml:"macd"`
	Bollinger  BollingerIndicator `yaml:"bollinger"`
	Stochastic StochIndicator     `yaml:"stochastic"`
	WilliamsR  PeriodIndicator    `yaml:"williams_r"`
	CCI        PeriodIndicator    `yaml:"cci"`
	MFI        PeriodIndicator    `yaml:"mfi"`
}

type PeriodsIndicator struct {
	Enabled bool  `yaml:"enabled"`
	Periods []int `yaml:"periods"`
}

type PeriodIndicator struct {
	Enabled bool `yaml:"enabled"`
	Period  int  `yaml:"period"`
}

type MACDIndicator struct {
	Enabled      bool `yaml:"enabled"`
	FastPeriod   int  `yaml:"fast_period"`
	SlowPeriod   int  `yaml:"slow_period"`
	SignalPeriod int  `yaml:"signal_period"`
}

type BollingerIndicator struct {
	Enabled bool    `yaml:"enabled"`
	Period  int     `yaml:"period"`
	StdDev  float64 `yaml:"std_dev"`
}

type StochIndicator struct {
	Enabled bool `yaml:"enabled"`
	KPeriod int  `yaml:"k_period"`
	DPeriod int  `yaml:"d_period"`
	SmoothK int  `yaml:"smooth_k"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10,
		},
		ClickHouse: ClickHouseConfig{
			Addr:     "localhost:9000",
			Database: "stocklabs",
			Table:    "daily_bars",
			User:     "default",
			Password: "",
		},
		Engine: EngineConfig{
			InitialCapital:   100000,
			PositionFraction: 0.95,
			StopLossPct:      0.08,
			TakeProfitPct:    0.15,
			MaxHoldBars:      60,
			WarmupBars:       30,
			VolumeThreshold:  1.5,
			ATRPeriod:        14,
			ATRMultiplier:    2.0,
		},
		Optimizer: OptimizerConfig{
			InitialCapital: 100000,
			Grid:           []float64{0.02, 0.03, 0.04, 0.05, 0.06, 0.07, 0.08, 0.09, 0.10, 0.12, 0.15, 0.18, 0.20},
			MinSignals:     5,
			MaxWorkers:     4,
		},
		Indicators: IndicatorsConfig{
			RSI:        PeriodsIndicator{Enabled: true, Periods: []int{14, 21, 50}},
			EMA:        PeriodsIndicator{Enabled: true, Periods: []int{11, 21, 50, 200}},
			SMA:        PeriodsIndicator{Enabled: true, Periods: []int{11, 21, 50, 200}},
			ATR:        PeriodsIndicator{Enabled: true, Periods: []int{14, 21}},
			MACD:       MACDIndicator{Enabled: true, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
			Bollinger:  BollingerIndicator{Enabled: true, Period: 20, StdDev: 2},
			Stochastic: StochIndicator{Enabled: true, KPeriod: 14, DPeriod: 3, SmoothK: 3},
			WilliamsR:  PeriodIndicator{Enabled: true, Period: 14},
			CCI:        PeriodIndicator{Enabled: true, Period: 20},
			MFI:        PeriodIndicator{Enabled: true, Period: 14},
		},
	}
}

// Load reads a YAML config file on top of the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays connection settings from the environment, keeping secrets
// out of checked-in files.
func (c *Config) applyEnv() {
	c.ClickHouse.Addr = envOr("CLICKHOUSE_ADDR", c.ClickHouse.Addr)
	c.ClickHouse.Database = envOr("CLICKHOUSE_DATABASE", c.ClickHouse.Database)
	c.ClickHouse.User = envOr("CLICKHOUSE_USER", c.ClickHouse.User)
	c.ClickHouse.Password = envOr("CLICKHOUSE_PASSWORD", c.ClickHouse.Password)
	c.Server.Addr = envOr("SERVER_ADDR", c.Server.Addr)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
