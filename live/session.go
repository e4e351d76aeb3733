// Package live drives the trading pipeline from a bar feed. A session
// is the event-driven counterpart of a backtest replay: same decision
// path, but bars arrive from a feed instead of a stored series, and
// symbols are processed concurrently.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alpaquero/alpaquero/broker"
	"github.com/alpaquero/alpaquero/feed"
	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/pkg/id"
	"github.com/alpaquero/alpaquero/portfolio"
	"github.com/alpaquero/alpaquero/risk"
	"github.com/alpaquero/alpaquero/strategies"
	"github.com/alpaquero/alpaquero/trading"
)

type Config struct {
	RunID    string // generated when empty
	Symbols  []string
	Strategy string
	Params   strategies.Params

	Cash  float64
	Risk  risk.Limits
	Costs portfolio.CostModel // nil means ZeroCost

	Journal journal.Journal // nil means no persistence
	Logger  *zap.Logger     // optional

	// QueueSize buffers bars per symbol between the feed and the
	// symbol worker. Default 64.
	QueueSize int
}

// Session consumes bars from a feed and trades them on paper. One
// worker per symbol keeps per-symbol ordering; a single mutex around
// the pipeline keeps the portfolio and the position-count checks
// consistent across symbols.
type Session struct {
	cfg  Config
	log  *zap.Logger
	feed feed.BarFeed

	book  *portfolio.Portfolio
	paper *broker.Paper
	pipe  *trading.Pipeline

	strats map[string]strategies.Strategy
	queues map[string]chan market.Bar

	mu sync.Mutex // serializes the decision path

	errOnce sync.Once
	runErr  error
}

// NewSession validates the configuration and builds the session.
// Configuration problems surface here, before any bar is consumed.
func NewSession(cfg Config, f feed.BarFeed) (*Session, error) {
	if f == nil {
		return nil, errors.New("a bar feed is required")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("no symbols configured")
	}
	if cfg.Cash <= 0 {
		return nil, fmt.Errorf("starting cash must be positive, got %g", cfg.Cash)
	}

	rm, err := risk.NewManager(cfg.Risk)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RunID == "" {
		cfg.RunID = id.New()
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Discard
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	s := &Session{
		cfg:    cfg,
		log:    log,
		feed:   f,
		strats: make(map[string]strategies.Strategy, len(cfg.Symbols)),
		queues: make(map[string]chan market.Bar, len(cfg.Symbols)),
	}
	for _, sym := range cfg.Symbols {
		strat, err := strategies.ByName(cfg.Strategy, cfg.Params)
		if err != nil {
			return nil, err
		}
		strat.Reset()
		s.strats[sym] = strat
		s.queues[sym] = make(chan market.Bar, cfg.QueueSize)
	}

	s.book = portfolio.New(cfg.Cash, cfg.Costs)
	s.paper = broker.NewPaper(s.book, cfg.Journal, broker.ULIDs{}, cfg.RunID, cfg.Strategy)
	s.pipe = trading.NewPipeline(s.book, s.paper, rm, log)
	return s, nil
}

// Run consumes the feed until it closes or the context is canceled.
// Cancellation is an orderly shutdown: new entries stop immediately,
// queued bars still get their exit checks, and in-progress fills
// complete before Run returns. A dead feed returns its error; a
// requested shutdown returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session started",
		zap.String("run_id", s.cfg.RunID),
		zap.String("strategy", s.cfg.Strategy),
		zap.Strings("symbols", s.cfg.Symbols))

	var wg sync.WaitGroup
	for sym, q := range s.queues {
		wg.Add(1)
		go func(sym string, q chan market.Bar) {
			defer wg.Done()
			s.work(ctx, sym, q)
		}(sym, q)
	}

	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.log.Info("shutdown requested")
			s.pipe.Halt()
			s.feed.Close()
		case <-finished:
		}
	}()

	lastSeen := make(map[string]time.Time, len(s.cfg.Symbols))
	for b := range s.feed.Bars() {
		q, ok := s.queues[b.Symbol]
		if !ok {
			s.log.Debug("bar for unknown symbol", zap.String("symbol", b.Symbol))
			continue
		}
		if last, ok := lastSeen[b.Symbol]; ok && !b.Time.After(last) {
			s.log.Warn("out-of-order bar dropped",
				zap.String("symbol", b.Symbol),
				zap.Time("bar", b.Time),
				zap.Time("last", last))
			continue
		}
		lastSeen[b.Symbol] = b.Time
		q <- b
	}

	for _, q := range s.queues {
		close(q)
	}
	wg.Wait()
	close(finished)

	s.log.Info("session stopped", zap.String("run_id", s.cfg.RunID))

	if s.runErr != nil {
		return s.runErr
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := s.feed.Err(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	return nil
}

// work drains one symbol queue. Bars are handed to the pipeline under
// the session mutex so only one symbol mutates the book at a time.
func (s *Session) work(ctx context.Context, sym string, q chan market.Bar) {
	strat := s.strats[sym]
	for b := range q {
		s.mu.Lock()
		err := s.pipe.OnBar(ctx, strat, b)
		if err == nil {
			if jerr := s.paper.RecordEquity(b.Time); jerr != nil {
				s.log.Warn("equity record failed", zap.Error(jerr))
			}
		}
		s.mu.Unlock()

		if err != nil {
			s.fail(fmt.Errorf("%s: %w", sym, err))
			for range q {
				// unblock the dispatcher, drop the rest
			}
			return
		}
	}
}

// fail records the first fatal error and starts the shutdown.
func (s *Session) fail(err error) {
	s.errOnce.Do(func() {
		s.runErr = err
		s.log.Error("session failed", zap.Error(err))
		s.pipe.Halt()
		s.feed.Close()
	})
}

// Account reports the paper account, for status displays.
func (s *Session) Account(ctx context.Context) (broker.Account, error) {
	return s.paper.Account(ctx)
}

// Positions lists the open positions, sorted by symbol.
func (s *Session) Positions() []portfolio.Position {
	return s.paper.Positions()
}
