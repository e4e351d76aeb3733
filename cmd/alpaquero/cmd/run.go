package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alpaquero/alpaquero/config"
	"github.com/alpaquero/alpaquero/feed"
	"github.com/alpaquero/alpaquero/live"
	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Paper trade a live bar feed",
	Long: `Run consumes bars from the configured websocket feed and trades them
on paper until interrupted. Ctrl-C stops entries, lets protective exits
finish and closes the feed.

With --replay the stored history plays through the same live path
instead, paced by --delay. Useful for rehearsing a session offline.

Example:
  alpaquero run -f alpaquero.yaml
  alpaquero run -f alpaquero.yaml --replay --delay 100ms`,
	RunE: runRun,
}

var (
	runConfigPath string
	runReplay     bool
	runDelay      time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runReplay, "replay", false, "replay stored history instead of dialing the feed")
	runCmd.Flags().DurationVar(&runDelay, "delay", 0, "pacing between replayed timestamps (with --replay)")

	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := openFeed(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}

	sess, err := live.NewSession(live.Config{
		Symbols:   cfg.Symbols,
		Strategy:  cfg.Strategy.Name,
		Params:    cfg.Strategy.Params(),
		Cash:      cfg.Account.Cash,
		Risk:      cfg.Risk.Limits(),
		Costs:     cfg.Costs.Model(),
		Journal:   j,
		Logger:    log,
		QueueSize: cfg.Feed.QueueSize,
	}, f)
	if err != nil {
		return err
	}

	fmt.Printf("Trading %s with %s, Ctrl-C to stop\n\n",
		strings.Join(cfg.Symbols, ", "), cfg.Strategy.Name)

	if err := sess.Run(ctx); err != nil {
		return err
	}

	acct, err := sess.Account(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("\nSession complete\n")
	fmt.Printf("  Cash:   %.2f\n", acct.Cash)
	fmt.Printf("  Equity: %.2f\n", acct.Equity)
	for _, pos := range sess.Positions() {
		fmt.Printf("  Open:   %s %s %.0f @ %.2f\n",
			pos.Symbol, pos.Side(), pos.Quantity(), pos.EntryPrice)
	}

	return nil
}

func openFeed(ctx context.Context, cfg *config.Config, log *zap.Logger) (feed.BarFeed, error) {
	if runReplay {
		from, to, err := cfg.Data.Range()
		if err != nil {
			return nil, err
		}
		store := cfg.Data.Store()

		var series []*market.Series
		for _, sym := range cfg.Symbols {
			s, err := store.LoadSeries(sym, from, to)
			if err != nil {
				return nil, err
			}
			series = append(series, s)
		}
		return feed.StartReplay(ctx, runDelay, series...), nil
	}

	if cfg.Feed.URL == "" {
		return nil, errors.New("feed.url is not set, pass --replay to play stored history")
	}
	return feed.DialWebsocket(ctx, feed.WebsocketOptions{
		URL:     cfg.Feed.URL,
		Symbols: cfg.Symbols,
		Log:     log,
	})
}
