package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/portfolio"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 10000.0, cfg.Account.Cash)
	assert.Equal(t, []string{"AAPL"}, cfg.Symbols)
	assert.Equal(t, "sma-cross", cfg.Strategy.Name)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "no symbols",
			mutate: func(c *Config) { c.Symbols = nil },
			errMsg: "symbols is required",
		},
		{
			name:   "blank symbol",
			mutate: func(c *Config) { c.Symbols = []string{"AAPL", "  "} },
			errMsg: "symbols must not contain blanks",
		},
		{
			name:   "negative cash",
			mutate: func(c *Config) { c.Account.Cash = -1000 },
			errMsg: "account.cash must be positive",
		},
		{
			name:   "missing strategy",
			mutate: func(c *Config) { c.Strategy.Name = "" },
			errMsg: "strategy.name is required",
		},
		{
			name:   "unknown strategy",
			mutate: func(c *Config) { c.Strategy.Name = "teleport" },
			errMsg: "unknown strategy",
		},
		{
			name:   "bad strategy params",
			mutate: func(c *Config) { c.Strategy.LongWindow = c.Strategy.ShortWindow },
			errMsg: "sma-cross",
		},
		{
			name:   "bad risk limits",
			mutate: func(c *Config) { c.Risk.PositionSizePct = 1.5 },
			errMsg: "position_size_pct",
		},
		{
			name:   "bad slippage",
			mutate: func(c *Config) { c.Costs.SlippagePct = 1 },
			errMsg: "costs.slippage_pct",
		},
		{
			name:   "bad compression",
			mutate: func(c *Config) { c.Data.Compress = "zip" },
			errMsg: "data.compress",
		},
		{
			name:   "bad time",
			mutate: func(c *Config) { c.Data.From = "yesterday" },
			errMsg: "data.from",
		},
		{
			name: "inverted range",
			mutate: func(c *Config) {
				c.Data.From = "2024-02-01"
				c.Data.To = "2024-01-01"
			},
			errMsg: "data.from must be before data.to",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Journal = JournalConfig{Type: "sqlite"}
			},
			errMsg: "journal.db_path required",
		},
		{
			name: "csv without files",
			mutate: func(c *Config) {
				c.Journal = JournalConfig{Type: "csv", TradesFile: "trades.csv"}
			},
			errMsg: "equity_file required",
		},
		{
			name:   "unknown journal type",
			mutate: func(c *Config) { c.Journal.Type = "parquet" },
			errMsg: "journal.type",
		},
		{
			name:   "negative queue",
			mutate: func(c *Config) { c.Feed.QueueSize = -1 },
			errMsg: "feed.queue_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Symbols = []string{"AAPL", "MSFT"}
			cfg.Risk.AllowShort = true
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Symbols, loaded.Symbols)
			assert.Equal(t, cfg.Account.Cash, loaded.Account.Cash)
			assert.Equal(t, cfg.Strategy.Name, loaded.Strategy.Name)
			assert.Equal(t, cfg.Strategy.ShortWindow, loaded.Strategy.ShortWindow)
			assert.True(t, loaded.Risk.AllowShort)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	raw := `
account:
  currency: USD
  cash: 25000
symbols: [GOOG, MSFT]
strategy:
  name: rsi
  rsi_period: 14
  oversold: 30
  overbought: 70
risk:
  position_size_pct: 0.2
  stop_loss_pct: 0.03
  take_profit_pct: 0.09
  max_positions: 2
  allow_short: true
costs:
  slippage_pct: 0.001
  commission: 1.5
data:
  dir: ./bars
  compress: gz
  from: 2024-01-01
  to: 2024-06-30
feed:
  url: wss://bars.example.com/stream
  rest_url: https://bars.example.com
  token: test-token
  queue_size: 128
journal:
  type: none
`
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 25000.0, cfg.Account.Cash)
	assert.Equal(t, []string{"GOOG", "MSFT"}, cfg.Symbols)
	assert.Equal(t, "rsi", cfg.Strategy.Name)
	assert.Equal(t, 14, cfg.Strategy.Params().RSIPeriod)
	assert.Equal(t, 0.2, cfg.Risk.Limits().PositionSizePct)
	assert.True(t, cfg.Risk.Limits().AllowShort)

	model := cfg.Costs.Model()
	fixed, ok := model.(portfolio.FixedCost)
	require.True(t, ok)
	assert.Equal(t, 0.001, fixed.Slippage)
	assert.Equal(t, 1.5, fixed.Commission)

	from, to, err := cfg.Data.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), to)

	store := cfg.Data.Store()
	assert.Equal(t, "./bars", store.Dir)
	assert.Equal(t, "gz", store.Compress)

	assert.Equal(t, "wss://bars.example.com/stream", cfg.Feed.URL)
	assert.Equal(t, "https://bars.example.com", cfg.Feed.RestURL)
	assert.Equal(t, "test-token", cfg.Feed.Token)
	assert.Equal(t, 128, cfg.Feed.QueueSize)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{not valid"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestJournalOpen(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("none", func(t *testing.T) {
		j, err := JournalConfig{}.Open()
		require.NoError(t, err)
		assert.Equal(t, journal.Discard, j)
	})

	t.Run("sqlite", func(t *testing.T) {
		j, err := JournalConfig{
			Type:   "sqlite",
			DBPath: filepath.Join(tmpDir, "test.db"),
		}.Open()
		require.NoError(t, err)
		require.NoError(t, j.Close())
	})

	t.Run("csv", func(t *testing.T) {
		j, err := JournalConfig{
			Type:       "csv",
			TradesFile: filepath.Join(tmpDir, "trades.csv"),
			EquityFile: filepath.Join(tmpDir, "equity.csv"),
		}.Open()
		require.NoError(t, err)
		require.NoError(t, j.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := JournalConfig{Type: "parquet"}.Open()
		assert.Error(t, err)
	})
}

func TestCostsModelZero(t *testing.T) {
	model := CostsConfig{}.Model()
	_, ok := model.(portfolio.ZeroCost)
	assert.True(t, ok)
}
