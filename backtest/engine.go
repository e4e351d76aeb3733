// Package backtest replays historical bars through a strategy and the
// risk manager, producing a deterministic report. The replay is a
// state machine: INITIALIZING -> REPLAYING -> FINALIZING -> DONE, with
// FAILED reachable from any non-terminal state.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/alpaquero/alpaquero/broker"
	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/pkg/id"
	"github.com/alpaquero/alpaquero/portfolio"
	"github.com/alpaquero/alpaquero/risk"
	"github.com/alpaquero/alpaquero/strategies"
	"github.com/alpaquero/alpaquero/trading"
)

type State int32

const (
	StateInitializing State = iota
	StateReplaying
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateReplaying:
		return "REPLAYING"
	case StateFinalizing:
		return "FINALIZING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	RunID    string // generated when empty
	Symbols  []string
	Strategy string
	Params   strategies.Params

	Cash  float64
	Risk  risk.Limits
	Costs portfolio.CostModel // nil means ZeroCost

	// Close open positions at their last seen close when the data
	// runs out. Reason defaults to "EndOfReplay".
	CloseOnFinish bool
	CloseReason   string

	Journal journal.Journal // optional
	Logger  *zap.Logger     // optional
}

// Engine replays one dataset. Use a fresh engine per run.
type Engine struct {
	cfg   Config
	log   *zap.Logger
	state atomic.Int32

	book  *portfolio.Portfolio
	paper *broker.Paper
	pipe  *trading.Pipeline

	strats  map[string]strategies.Strategy
	lastBar map[string]market.Bar

	collect *collector
}

func NewEngine(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{cfg: cfg, log: log}
	e.state.Store(int32(StateInitializing))
	return e
}

func (e *Engine) Status() State {
	return State(e.state.Load())
}

func (e *Engine) fail(err error) error {
	e.state.Store(int32(StateFailed))
	e.log.Error("replay failed", zap.Error(err))
	return err
}

// init validates the config and builds the per-symbol strategy
// instances. Everything that can be wrong with the configuration
// surfaces here, before any bar is touched.
func (e *Engine) init(data map[string]*market.Series) error {
	if len(e.cfg.Symbols) == 0 {
		return errors.New("no symbols configured")
	}
	if e.cfg.Cash <= 0 {
		return fmt.Errorf("starting cash must be positive, got %g", e.cfg.Cash)
	}

	rm, err := risk.NewManager(e.cfg.Risk)
	if err != nil {
		return err
	}

	e.strats = make(map[string]strategies.Strategy, len(e.cfg.Symbols))
	for _, sym := range e.cfg.Symbols {
		if _, ok := data[sym]; !ok {
			return fmt.Errorf("%s: no series provided", sym)
		}
		s, err := strategies.ByName(e.cfg.Strategy, e.cfg.Params)
		if err != nil {
			return err
		}
		s.Reset()
		e.strats[sym] = s
	}

	if e.cfg.RunID == "" {
		e.cfg.RunID = id.New()
	}

	e.collect = &collector{}
	jrnl := journal.Journal(e.collect)
	if e.cfg.Journal != nil {
		jrnl = tee{e.collect, e.cfg.Journal}
	}

	e.book = portfolio.New(e.cfg.Cash, e.cfg.Costs)
	e.paper = broker.NewPaper(e.book, jrnl, id.NewSequence(e.cfg.RunID), e.cfg.RunID, e.cfg.Strategy)
	e.pipe = trading.NewPipeline(e.book, e.paper, rm, e.log)
	e.lastBar = make(map[string]market.Bar)
	return nil
}

// Run replays the series in data, one per configured symbol. Bars are
// merged across symbols in timestamp order; on equal timestamps the
// configured symbol order breaks the tie.
func (e *Engine) Run(ctx context.Context, data map[string]*market.Series) (*Report, error) {
	if err := e.init(data); err != nil {
		return nil, e.fail(fmt.Errorf("init: %w", err))
	}

	e.state.Store(int32(StateReplaying))
	e.log.Info("replay started",
		zap.String("run_id", e.cfg.RunID),
		zap.String("strategy", e.cfg.Strategy),
		zap.Strings("symbols", e.cfg.Symbols))

	idx := make(map[string]int, len(e.cfg.Symbols))
	var start, end time.Time

	for {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(fmt.Errorf("replay canceled: %w", err))
		}

		// Next timestamp across all series heads.
		var ts time.Time
		found := false
		for _, sym := range e.cfg.Symbols {
			s := data[sym]
			if idx[sym] >= s.Len() {
				continue
			}
			bt := s.At(idx[sym]).Time
			if !found || bt.Before(ts) {
				ts = bt
				found = true
			}
		}
		if !found {
			break
		}

		// Configured order on equal timestamps.
		for _, sym := range e.cfg.Symbols {
			s := data[sym]
			if idx[sym] >= s.Len() {
				continue
			}
			b := s.At(idx[sym])
			if !b.Time.Equal(ts) {
				continue
			}
			idx[sym]++

			if last, ok := e.lastBar[sym]; ok && !b.Time.After(last.Time) {
				return nil, e.fail(fmt.Errorf("%s: bar at %s not after %s: %w",
					sym, b.Time.Format(time.RFC3339), last.Time.Format(time.RFC3339), market.ErrOutOfOrder))
			}

			if err := e.pipe.OnBar(ctx, e.strats[sym], b); err != nil {
				return nil, e.fail(err)
			}
			e.lastBar[sym] = b
		}

		if start.IsZero() {
			start = ts
		}
		end = ts

		if err := e.paper.RecordEquity(ts); err != nil {
			return nil, e.fail(fmt.Errorf("record equity: %w", err))
		}
	}

	e.state.Store(int32(StateFinalizing))

	if e.cfg.CloseOnFinish {
		n, err := e.closeAll(ctx, end)
		if err != nil {
			return nil, e.fail(err)
		}
		if n > 0 {
			if err := e.paper.RecordEquity(end); err != nil {
				return nil, e.fail(fmt.Errorf("record equity: %w", err))
			}
		}
	}

	rpt := buildReport(e.cfg, start, end, e.book, e.collect)
	e.state.Store(int32(StateDone))
	e.log.Info("replay done",
		zap.String("run_id", e.cfg.RunID),
		zap.Int("trades", rpt.Trades),
		zap.Float64("final_equity", rpt.FinalEquity))
	return rpt, nil
}

// closeAll flattens every open position at its last seen close.
func (e *Engine) closeAll(ctx context.Context, at time.Time) (int, error) {
	reason := e.cfg.CloseReason
	if reason == "" {
		reason = "EndOfReplay"
	}

	closed := 0
	for _, pos := range e.book.Positions() {
		last, ok := e.lastBar[pos.Symbol]
		if !ok {
			continue
		}
		fill, err := e.pipe.ClosePosition(ctx, pos, last.Close, reason, at)
		if err != nil {
			return closed, fmt.Errorf("%s: close at end: %w", pos.Symbol, err)
		}
		closed++
		e.log.Info("position closed",
			zap.String("symbol", pos.Symbol),
			zap.String("reason", reason),
			zap.Float64("realized", fill.Realized))
	}
	return closed, nil
}

// collector keeps every record in memory for the report.
type collector struct {
	trades []journal.TradeRecord
	equity []journal.EquityPoint
}

func (c *collector) RecordTrade(t journal.TradeRecord) error {
	c.trades = append(c.trades, t)
	return nil
}

func (c *collector) RecordEquity(e journal.EquityPoint) error {
	c.equity = append(c.equity, e)
	return nil
}

func (c *collector) Close() error { return nil }

// tee fans records out to several journals. Close is a no-op, the
// caller owns the underlying journals.
type tee []journal.Journal

func (t tee) RecordTrade(r journal.TradeRecord) error {
	for _, j := range t {
		if err := j.RecordTrade(r); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) RecordEquity(e journal.EquityPoint) error {
	for _, j := range t {
		if err := j.RecordEquity(e); err != nil {
			return err
		}
	}
	return nil
}

func (tee) Close() error { return nil }
