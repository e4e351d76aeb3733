// Package config loads and validates the YAML (or JSON) configuration
// shared by the backtest and live commands. Validation runs at load,
// so a bad file fails before any data is touched.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alpaquero/alpaquero/history"
	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/portfolio"
	"github.com/alpaquero/alpaquero/risk"
	"github.com/alpaquero/alpaquero/strategies"
)

// Config is the complete engine configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Symbols  []string       `json:"symbols" yaml:"symbols"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Costs    CostsConfig    `json:"costs,omitempty" yaml:"costs,omitempty"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Feed     FeedConfig     `json:"feed,omitempty" yaml:"feed,omitempty"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Backtest BacktestConfig `json:"backtest,omitempty" yaml:"backtest,omitempty"`
	Log      LogConfig      `json:"log,omitempty" yaml:"log,omitempty"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Cash     float64 `json:"cash" yaml:"cash"`
}

// StrategyConfig names the strategy and carries its tuning knobs.
// Unused knobs are ignored by the chosen strategy.
type StrategyConfig struct {
	Name string `json:"name" yaml:"name"`

	ShortWindow int `json:"short_window,omitempty" yaml:"short_window,omitempty"`
	LongWindow  int `json:"long_window,omitempty" yaml:"long_window,omitempty"`

	RSIPeriod  int     `json:"rsi_period,omitempty" yaml:"rsi_period,omitempty"`
	Oversold   float64 `json:"oversold,omitempty" yaml:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty" yaml:"overbought,omitempty"`

	BollingerWindow int     `json:"bollinger_window,omitempty" yaml:"bollinger_window,omitempty"`
	BollingerStd    float64 `json:"bollinger_std,omitempty" yaml:"bollinger_std,omitempty"`
}

// Params maps the config knobs onto strategy parameters.
func (s StrategyConfig) Params() strategies.Params {
	return strategies.Params{
		ShortWindow:     s.ShortWindow,
		LongWindow:      s.LongWindow,
		RSIPeriod:       s.RSIPeriod,
		Oversold:        s.Oversold,
		Overbought:      s.Overbought,
		BollingerWindow: s.BollingerWindow,
		BollingerStd:    s.BollingerStd,
	}
}

// RiskConfig contains the sizing and exposure limits.
type RiskConfig struct {
	PositionSizePct float64 `json:"position_size_pct" yaml:"position_size_pct"`
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	MaxPositions    int     `json:"max_positions" yaml:"max_positions"`
	MinCashBalance  float64 `json:"min_cash_balance,omitempty" yaml:"min_cash_balance,omitempty"`
	AllowShort      bool    `json:"allow_short,omitempty" yaml:"allow_short,omitempty"`
}

// Limits converts the config into risk limits.
func (r RiskConfig) Limits() risk.Limits {
	return risk.Limits{
		PositionSizePct: r.PositionSizePct,
		StopLossPct:     r.StopLossPct,
		TakeProfitPct:   r.TakeProfitPct,
		MaxPositions:    r.MaxPositions,
		MinCashBalance:  r.MinCashBalance,
		AllowShort:      r.AllowShort,
	}
}

// CostsConfig models fill friction. Zero values mean frictionless
// fills.
type CostsConfig struct {
	SlippagePct float64 `json:"slippage_pct,omitempty" yaml:"slippage_pct,omitempty"`
	Commission  float64 `json:"commission,omitempty" yaml:"commission,omitempty"`
}

// Model converts the config into a cost model.
func (c CostsConfig) Model() portfolio.CostModel {
	if c.SlippagePct == 0 && c.Commission == 0 {
		return portfolio.ZeroCost{}
	}
	return portfolio.FixedCost{Slippage: c.SlippagePct, Commission: c.Commission}
}

// DataConfig locates the historical bar store.
type DataConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	Compress string `json:"compress,omitempty" yaml:"compress,omitempty"` // "", "gz" or "xz"
	From     string `json:"from,omitempty" yaml:"from,omitempty"`
	To       string `json:"to,omitempty" yaml:"to,omitempty"`
}

// Store builds the CSV store for the configured directory.
func (d DataConfig) Store() *history.CSVStore {
	s := history.NewCSVStore(d.Dir)
	s.Compress = d.Compress
	return s
}

// Range parses the replay window. Empty bounds come back as zero
// times, which the store treats as unbounded.
func (d DataConfig) Range() (from, to time.Time, err error) {
	if from, err = parseDay(d.From); err != nil {
		return from, to, fmt.Errorf("data.from: %w", err)
	}
	if to, err = parseDay(d.To); err != nil {
		return from, to, fmt.Errorf("data.to: %w", err)
	}
	return from, to, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q (want RFC3339 or YYYY-MM-DD)", s)
}

// FeedConfig points the live session at its bar feed. RestURL and Token
// serve the historical backfill endpoint of the same provider.
type FeedConfig struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	RestURL   string `json:"rest_url,omitempty" yaml:"rest_url,omitempty"`
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
	QueueSize int    `json:"queue_size,omitempty" yaml:"queue_size,omitempty"`
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// Open builds the configured journal. The caller owns Close.
func (j JournalConfig) Open() (journal.Journal, error) {
	switch j.Type {
	case "sqlite":
		return journal.NewSQLite(j.DBPath)
	case "csv":
		return journal.NewCSV(j.TradesFile, j.EquityFile)
	case "none", "":
		return journal.Discard, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", j.Type)
	}
}

// BacktestConfig contains replay-only switches.
type BacktestConfig struct {
	CloseOnFinish bool `json:"close_on_finish,omitempty" yaml:"close_on_finish,omitempty"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`
	Console bool   `json:"console,omitempty" yaml:"console,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (format by extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
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

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols is required")
	}
	for _, sym := range c.Symbols {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("symbols must not contain blanks")
		}
	}
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	// Builds the strategy once so parameter problems surface here.
	if _, err := strategies.ByName(c.Strategy.Name, c.Strategy.Params()); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if err := c.Risk.Limits().Validate(); err != nil {
		return err
	}
	if c.Costs.SlippagePct < 0 || c.Costs.SlippagePct >= 1 {
		return fmt.Errorf("costs.slippage_pct must be in [0, 1)")
	}
	if c.Costs.Commission < 0 {
		return fmt.Errorf("costs.commission must not be negative")
	}
	switch c.Data.Compress {
	case "", "gz", "xz":
	default:
		return fmt.Errorf("data.compress must be empty, 'gz' or 'xz'")
	}
	from, to, err := c.Data.Range()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("data.from must be before data.to")
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv type")
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	if c.Feed.QueueSize < 0 {
		return fmt.Errorf("feed.queue_size must not be negative")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "PAPER-001",
			Currency: "USD",
			Cash:     10000,
		},
		Symbols: []string{"AAPL"},
		Strategy: StrategyConfig{
			Name:        "sma-cross",
			ShortWindow: 10,
			LongWindow:  30,
		},
		Risk: RiskConfig{
			PositionSizePct: 0.10,
			StopLossPct:     0.05,
			TakeProfitPct:   0.10,
			MaxPositions:    3,
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./alpaquero.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
