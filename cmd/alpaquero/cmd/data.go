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
	"github.com/alpaquero/alpaquero/history"
	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/pkg/logger"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect and grow the bar store",
	Long: `Manage the CSV bar store used by backtests.

Subcommands:
  ls      - List stored symbols with bar counts and date ranges
  fetch   - Download history from the REST endpoint into the store
  record  - Record the live feed into the store until interrupted

Examples:
  alpaquero data ls -f alpaquero.yaml
  alpaquero data fetch -f alpaquero.yaml
  alpaquero data record -f alpaquero.yaml`,
}

var dataLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored symbols",
	Args:  cobra.NoArgs,
	RunE:  runDataLs,
}

var dataFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch history over REST into the store",
	Long: `Fetch downloads bars for every configured symbol from the feed's REST
endpoint (feed.rest_url) over the data.from/data.to window and writes
them to the store. Any stored file for a fetched symbol is replaced.`,
	Args: cobra.NoArgs,
	RunE: runDataFetch,
}

var dataRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the live feed into the store",
	Long: `Record dials the configured websocket feed and appends incoming bars
to each symbol's stored series. Ctrl-C stops recording and writes the
files. Bars at or before the stored end of a series are dropped.`,
	Args: cobra.NoArgs,
	RunE: runDataRecord,
}

var (
	dataConfigPath string
	dataFetchLimit int
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataLsCmd)
	dataCmd.AddCommand(dataFetchCmd)
	dataCmd.AddCommand(dataRecordCmd)

	dataCmd.PersistentFlags().StringVarP(&dataConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	dataCmd.MarkPersistentFlagRequired("config")

	dataFetchCmd.Flags().IntVar(&dataFetchLimit, "limit", 0, "maximum bars per symbol (0 = server default)")
}

func runDataLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(dataConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store := cfg.Data.Store()
	symbols, err := store.Symbols()
	if err != nil {
		return fmt.Errorf("list store: %w", err)
	}
	if len(symbols) == 0 {
		fmt.Printf("no data files under %s\n", cfg.Data.Dir)
		return nil
	}

	fmt.Printf("%-10s  %8s  %-20s  %-20s\n", "SYMBOL", "BARS", "FIRST", "LAST")
	for _, sym := range symbols {
		s, err := store.LoadSeries(sym, time.Time{}, time.Time{})
		if err != nil {
			fmt.Printf("%-10s  %s\n", sym, err)
			continue
		}
		start, end := s.Span()
		fmt.Printf("%-10s  %8d  %-20s  %-20s\n",
			sym, s.Len(),
			start.UTC().Format(time.RFC3339),
			end.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

func runDataFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(dataConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Feed.RestURL == "" {
		return errors.New("feed.rest_url is not set")
	}

	from, to, err := cfg.Data.Range()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := feed.NewBackfillClient(cfg.Feed.RestURL, cfg.Feed.Token)
	store := cfg.Data.Store()

	fmt.Printf("Fetching %s from %s\n", strings.Join(cfg.Symbols, ", "), cfg.Feed.RestURL)

	for _, sym := range cfg.Symbols {
		s, err := client.FetchSeries(ctx, feed.BarsRequest{
			Symbol: sym,
			From:   from,
			To:     to,
			Limit:  dataFetchLimit,
		})
		if err != nil {
			return fmt.Errorf("fetch %s: %w", sym, err)
		}
		if s.Len() == 0 {
			fmt.Printf("  %s: no bars\n", sym)
			continue
		}
		if err := store.SaveSeries(s); err != nil {
			return fmt.Errorf("save %s: %w", sym, err)
		}
		start, end := s.Span()
		fmt.Printf("  %s: %d bars (%s to %s)\n",
			sym, s.Len(),
			start.UTC().Format(time.RFC3339),
			end.UTC().Format(time.RFC3339))
	}
	return nil
}

func runDataRecord(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(dataConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Feed.URL == "" {
		return errors.New("feed.url is not set")
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := feed.DialWebsocket(ctx, feed.WebsocketOptions{
		URL:     cfg.Feed.URL,
		Symbols: cfg.Symbols,
		Log:     log,
	})
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = f.Close()
	}()

	recorded := make(map[string]*market.Series, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		recorded[sym] = market.NewSeries(sym)
	}

	fmt.Printf("Recording %s, Ctrl-C to stop\n", strings.Join(cfg.Symbols, ", "))

	for b := range f.Bars() {
		s, ok := recorded[b.Symbol]
		if !ok {
			continue
		}
		if err := s.Append(b); err != nil {
			log.Warn("bar dropped", zap.Error(err))
		}
	}
	if err := f.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("feed: %w", err)
	}

	store := cfg.Data.Store()
	for _, sym := range cfg.Symbols {
		n, err := mergeIntoStore(store, recorded[sym], log)
		if err != nil {
			return fmt.Errorf("save %s: %w", sym, err)
		}
		if n > 0 {
			fmt.Printf("  %s: %d bars appended\n", sym, n)
		}
	}
	return nil
}

// mergeIntoStore appends the recorded bars to the symbol's stored
// series and writes it back. Returns how many bars were new.
func mergeIntoStore(store *history.CSVStore, rec *market.Series, log *zap.Logger) (int, error) {
	if rec.Len() == 0 {
		return 0, nil
	}

	merged, err := store.LoadSeries(rec.Symbol(), time.Time{}, time.Time{})
	if errors.Is(err, history.ErrDataUnavailable) {
		merged = market.NewSeries(rec.Symbol())
	} else if err != nil {
		return 0, err
	}

	added := 0
	for _, b := range rec.Bars() {
		if err := merged.Append(b); err != nil {
			log.Warn("recorded bar predates stored data",
				zap.String("symbol", rec.Symbol()),
				zap.Time("time", b.Time))
			continue
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, store.SaveSeries(merged)
}
