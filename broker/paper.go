package broker

import (
	"context"
	"sync"
	"time"

	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/portfolio"
)

// Paper fills orders instantly against the portfolio book and journals
// each closed round trip. A nil journal disables recording.
type Paper struct {
	mu   sync.Mutex
	book *portfolio.Portfolio
	jrnl journal.Journal
	ids  IDSource

	runID    string
	strategy string
	open     map[string]openTrade // symbol -> pending round trip
}

type openTrade struct {
	id    string
	entry portfolio.Fill
}

func NewPaper(book *portfolio.Portfolio, jrnl journal.Journal, ids IDSource, runID, strategy string) *Paper {
	if ids == nil {
		ids = ULIDs{}
	}
	return &Paper{
		book:     book,
		jrnl:     jrnl,
		ids:      ids,
		runID:    runID,
		strategy: strategy,
		open:     make(map[string]openTrade),
	}
}

// Submit applies the order to the book. Entries open a round trip,
// exits close it and write the trade record. Rejections come back
// wrapping portfolio.ErrRejected with the book untouched.
func (p *Paper) Submit(ctx context.Context, o *market.Order) (portfolio.Fill, error) {
	_ = ctx // fills are instant

	p.mu.Lock()
	defer p.mu.Unlock()

	fill, err := p.book.ApplyFill(o)
	if err != nil {
		return fill, err
	}

	if !o.Exit {
		p.open[o.Symbol] = openTrade{id: p.ids.Next(), entry: fill}
		return fill, nil
	}

	ot, ok := p.open[o.Symbol]
	if !ok {
		// Book accepted the exit, so only the pairing is missing.
		ot = openTrade{id: p.ids.Next()}
	}
	delete(p.open, o.Symbol)

	units := fill.Order.Units
	if units == 0 {
		units = ot.entry.Order.Units
	}

	if p.jrnl != nil {
		rec := journal.TradeRecord{
			TradeID:    ot.id,
			RunID:      p.runID,
			Symbol:     o.Symbol,
			Side:       o.Side.String(),
			Units:      units,
			EntryPrice: ot.entry.Price,
			ExitPrice:  fill.Price,
			EntryTime:  ot.entry.Time,
			ExitTime:   fill.Time,
			RealizedPL: fill.Realized,
			Commission: ot.entry.Commission + fill.Commission,
			Strategy:   p.strategy,
			Reason:     o.Reason,
		}
		if err := p.jrnl.RecordTrade(rec); err != nil {
			return fill, err
		}
	}
	return fill, nil
}

func (p *Paper) Account(ctx context.Context) (Account, error) {
	_ = ctx

	return Account{
		ID:            p.runID,
		Currency:      "USD",
		Cash:          p.book.Cash(),
		Equity:        p.book.Equity(),
		Unrealized:    p.book.Unrealized(),
		OpenPositions: p.book.OpenCount(),
	}, nil
}

// Mark forwards the latest price to the book.
func (p *Paper) Mark(symbol string, price float64) {
	p.book.Mark(symbol, price)
}

// RecordEquity snapshots the account into the journal.
func (p *Paper) RecordEquity(at time.Time) error {
	if p.jrnl == nil {
		return nil
	}
	return p.jrnl.RecordEquity(journal.EquityPoint{
		RunID:  p.runID,
		Time:   at,
		Cash:   p.book.Cash(),
		Equity: p.book.Equity(),
		Open:   p.book.OpenCount(),
	})
}

// PortfolioView delegation so risk checks can read the book through
// the broker.

func (p *Paper) Cash() float64   { return p.book.Cash() }
func (p *Paper) Equity() float64 { return p.book.Equity() }
func (p *Paper) OpenCount() int  { return p.book.OpenCount() }

func (p *Paper) Position(symbol string) (portfolio.Position, bool) {
	return p.book.Position(symbol)
}

func (p *Paper) Positions() []portfolio.Position {
	return p.book.Positions()
}
