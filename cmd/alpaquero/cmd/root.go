package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "alpaquero",
	Short: "A bar-driven trading engine for backtests and paper trading",
	Long: `Alpaquero replays historical bars through trading strategies and
trades live feeds on paper, with identical decision logic in both modes.

It provides tools for:
  - Backtesting strategies against stored OHLCV bars
  - Paper trading against a websocket bar feed
  - Risk-based position sizing with stop and take levels
  - Journaling trades, equity curves and run summaries
  - Exporting runs as Org-mode journal entries

Complete documentation is available at https://github.com/alpaquero/alpaquero`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
