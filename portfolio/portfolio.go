// Package portfolio tracks cash and open positions through fills.
//
// All mutation funnels through ApplyFill. Everything else is a
// read-only view, so replay and live trading share the same
// accounting without extra coordination.
package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alpaquero/alpaquero/market"
)

// ErrRejected marks fills the portfolio refused to apply. Callers log
// and carry on, the book is unchanged.
var ErrRejected = errors.New("order rejected")

// Fill reports what actually happened when an order was applied.
type Fill struct {
	Order      market.Order
	Price      float64 // executed price after cost adjustment
	Commission float64
	Realized   float64 // realized PL on exits, gross of commission
	CashAfter  float64
	Time       time.Time
}

// Portfolio is the single book of record for cash and positions.
type Portfolio struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]*Position

	marks *market.MarkStore
	costs CostModel
}

func New(cash float64, costs CostModel) *Portfolio {
	if costs == nil {
		costs = ZeroCost{}
	}
	return &Portfolio{
		cash:      cash,
		positions: make(map[string]*Position),
		marks:     market.NewMarkStore(),
		costs:     costs,
	}
}

// ApplyFill executes o against the book. It is the only method that
// changes cash or positions. A rejected order leaves both untouched
// and returns an error wrapping ErrRejected.
func (p *Portfolio) ApplyFill(o *market.Order) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, commission := p.costs.Adjust(o)
	fill := Fill{Order: *o, Price: price, Commission: commission, Time: o.Time}

	if o.Exit {
		pos, ok := p.positions[o.Symbol]
		if !ok {
			return fill, fmt.Errorf("%s: no open position: %w", o.Symbol, ErrRejected)
		}
		if pos.Side() != o.Side {
			return fill, fmt.Errorf("%s: exit side %s against %s position: %w",
				o.Symbol, o.Side, pos.Side(), ErrRejected)
		}
		if o.Units != 0 && o.Units != pos.Quantity() {
			return fill, fmt.Errorf("%s: partial exits not supported: %w", o.Symbol, ErrRejected)
		}

		fill.Realized = (price - pos.EntryPrice) * pos.Units
		p.cash += pos.Units*price - commission
		delete(p.positions, o.Symbol)
	} else {
		if o.Units <= 0 {
			return fill, fmt.Errorf("%s: non-positive units %g: %w", o.Symbol, o.Units, ErrRejected)
		}
		if _, ok := p.positions[o.Symbol]; ok {
			return fill, fmt.Errorf("%s: position already open: %w", o.Symbol, ErrRejected)
		}

		signed := o.Units * o.Side.Sign()
		after := p.cash - signed*price - commission
		if after < 0 {
			return fill, fmt.Errorf("%s: insufficient cash %.2f for %.2f: %w",
				o.Symbol, p.cash, signed*price+commission, ErrRejected)
		}

		p.cash = after
		p.positions[o.Symbol] = &Position{
			Symbol:     o.Symbol,
			Units:      signed,
			EntryPrice: price,
			EntryTime:  o.Time,
			Stop:       o.Stop,
			Take:       o.Take,
			Reason:     o.Reason,
		}
	}

	p.marks.Set(o.Symbol, price)
	fill.CashAfter = p.cash
	return fill, nil
}

// Mark records the latest observed price for symbol. Equity and
// unrealized PL are computed against marks.
func (p *Portfolio) Mark(symbol string, price float64) {
	p.marks.Set(symbol, price)
}

func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// Position returns a copy of the open position for symbol, if any.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions lists open positions ordered by symbol.
func (p *Portfolio) Positions() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	symbols := make([]string, 0, len(p.positions))
	for s := range p.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make([]Position, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, *p.positions[s])
	}
	return out
}

func (p *Portfolio) OpenCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}

// Equity is cash plus the marked value of every open position. A
// symbol with no mark yet is valued at its entry price.
func (p *Portfolio) Equity() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	eq := p.cash
	for s, pos := range p.positions {
		mark, ok := p.marks.Get(s)
		if !ok {
			mark = pos.EntryPrice
		}
		eq += pos.Value(mark)
	}
	return eq
}

// Unrealized is the total open PL across positions at current marks.
func (p *Portfolio) Unrealized() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total float64
	for s, pos := range p.positions {
		mark, ok := p.marks.Get(s)
		if !ok {
			mark = pos.EntryPrice
		}
		total += pos.UnrealizedPL(mark)
	}
	return total
}
