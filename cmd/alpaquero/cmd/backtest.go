package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alpaquero/alpaquero/backtest"
	"github.com/alpaquero/alpaquero/config"
	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/pkg/logger"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay stored bars through a strategy",
	Long: `Backtest replays historical bars for the configured symbols through a
strategy and prints the result report. Trades, equity snapshots and the
run summary are journaled when the config enables a journal.

The data range, strategy and risk limits come from the config file;
--from and --to narrow the replay window without editing it.

Example:
  alpaquero backtest -f alpaquero.yaml --from 2024-01-01 --to 2024-06-30`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btFrom       string
	btTo         string
	btOrgPath    string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "replay start (RFC3339 or YYYY-MM-DD), overrides config")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "replay end (RFC3339 or YYYY-MM-DD), overrides config")
	backtestCmd.Flags().StringVar(&btOrgPath, "org", "", "write an Org-mode run summary to this file (needs sqlite journal)")

	backtestCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(btConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if btFrom != "" {
		cfg.Data.From = btFrom
	}
	if btTo != "" {
		cfg.Data.To = btTo
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	j, err := cfg.Journal.Open()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	from, to, err := cfg.Data.Range()
	if err != nil {
		return err
	}

	fmt.Printf("Running backtest with strategy: %s\n", cfg.Strategy.Name)
	fmt.Printf("  Symbols: %s\n", strings.Join(cfg.Symbols, ", "))
	fmt.Printf("  Data: %s\n\n", cfg.Data.Dir)

	runner := &backtest.Runner{
		Store: cfg.Data.Store(),
		From:  from,
		To:    to,
		Config: backtest.Config{
			Symbols:       cfg.Symbols,
			Strategy:      cfg.Strategy.Name,
			Params:        cfg.Strategy.Params(),
			Cash:          cfg.Account.Cash,
			Risk:          cfg.Risk.Limits(),
			Costs:         cfg.Costs.Model(),
			CloseOnFinish: cfg.Backtest.CloseOnFinish,
			Journal:       j,
			Logger:        log,
		},
	}

	rpt, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	rpt.Render(os.Stdout)
	fmt.Printf("\nRun ID: %s\n", rpt.RunID)

	if btOrgPath != "" {
		s, ok := j.(*journal.SQLite)
		if !ok {
			return fmt.Errorf("org export needs the sqlite journal, config has %q", cfg.Journal.Type)
		}
		org, err := s.ExportRunOrg(rpt.RunID)
		if err != nil {
			return fmt.Errorf("org export: %w", err)
		}
		if err := os.WriteFile(btOrgPath, []byte(org), 0644); err != nil {
			return fmt.Errorf("org export: %w", err)
		}
		fmt.Printf("Org summary written to %s\n", btOrgPath)
	}

	return nil
}
