package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alpaquero/alpaquero/history"
	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/market"
)

// Runner loads data for the configured symbols, replays it and
// persists the run summary when the journal supports it.
type Runner struct {
	Store  *history.CSVStore
	Config Config

	// Replay window, zero means unbounded.
	From time.Time
	To   time.Time
}

func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("backtest: Store is required")
	}

	log := r.Config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	data := make(map[string]*market.Series, len(r.Config.Symbols))
	for _, sym := range r.Config.Symbols {
		s, err := r.Store.LoadSeries(sym, r.From, r.To)
		if err != nil {
			return nil, err
		}
		log.Info("series loaded", zap.String("symbol", sym), zap.Int("bars", s.Len()))
		data[sym] = s
	}

	engine := NewEngine(r.Config)
	rpt, err := engine.Run(ctx, data)
	if err != nil {
		return nil, err
	}

	if s, ok := r.Config.Journal.(*journal.SQLite); ok && s != nil {
		if err := s.RecordRun(rpt.RunRecord(time.Now().UTC())); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}
	return rpt, nil
}
