// Package trading holds the per-bar decision path shared by the
// backtest engine and the live session: protective exits first, then
// the strategy, then signal translation into exits or risk-sized
// entries. Keeping it in one place means a replay exercises the exact
// logic a live session runs.
package trading

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/alpaquero/alpaquero/broker"
	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/portfolio"
	"github.com/alpaquero/alpaquero/risk"
	"github.com/alpaquero/alpaquero/strategies"
)

// Pipeline runs bars through exit checks, the strategy and order
// submission. It owns no locking; drivers serialize calls.
type Pipeline struct {
	book  *portfolio.Portfolio
	paper *broker.Paper
	rm    *risk.Manager
	log   *zap.Logger

	halted atomic.Bool
}

func NewPipeline(book *portfolio.Portfolio, paper *broker.Paper, rm *risk.Manager, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{book: book, paper: paper, rm: rm, log: log}
}

// Halt suppresses new entries from this point on. Exit paths keep
// working, so a session shutting down can still flatten risk.
func (p *Pipeline) Halt() { p.halted.Store(true) }

// OnBar runs one bar through exit checks, then the strategy.
// Protective exits always act before the strategy sees the bar. The
// returned error is fatal: a forced exit that cannot fill means the
// books are wrong.
func (p *Pipeline) OnBar(ctx context.Context, strat strategies.Strategy, b market.Bar) error {
	sym := b.Symbol
	if pos, ok := p.book.Position(sym); ok {
		if exit, hit := p.rm.CheckExit(pos, b); hit {
			fill, err := p.paper.Submit(ctx, exit)
			if err != nil {
				return fmt.Errorf("%s: forced exit: %w", sym, err)
			}
			p.log.Info("position closed",
				zap.String("symbol", sym),
				zap.String("reason", exit.Reason),
				zap.Float64("price", fill.Price),
				zap.Float64("realized", fill.Realized))
		}
	}

	dec := strat.OnBar(b, p.positionView(sym))

	switch dec.Signal {
	case strategies.Buy:
		p.onDirectional(ctx, sym, market.Long, b, dec)
	case strategies.Sell:
		p.onDirectional(ctx, sym, market.Short, b, dec)
	}
	p.paper.Mark(sym, b.Close)
	return nil
}

// onDirectional translates a directional signal into an exit of an
// opposite position, or a risk-sized entry. Fills happen at the bar
// close that produced the signal.
func (p *Pipeline) onDirectional(ctx context.Context, sym string, side market.Side, b market.Bar, dec strategies.Decision) {
	if pos, ok := p.book.Position(sym); ok && pos.Side() != side {
		fill, err := p.ClosePosition(ctx, pos, b.Close, dec.Reason, b.Time)
		if err != nil {
			p.log.Warn("signal exit rejected", zap.String("symbol", sym), zap.Error(err))
			return
		}
		p.log.Info("position closed",
			zap.String("symbol", sym),
			zap.String("reason", dec.Reason),
			zap.Float64("price", fill.Price),
			zap.Float64("realized", fill.Realized))
		return
	}

	if p.halted.Load() {
		p.log.Debug("entry suppressed during shutdown", zap.String("symbol", sym))
		return
	}

	order, d := p.rm.SizeEntry(sym, side, p.paper, b.Close, b.Time, dec.Reason)
	if !d.Allowed {
		p.log.Debug("entry rejected",
			zap.String("symbol", sym),
			zap.String("side", side.String()),
			zap.String("violations", d.Reasons()))
		return
	}

	fill, err := p.paper.Submit(ctx, order)
	if err != nil {
		p.log.Warn("entry rejected at fill", zap.String("symbol", sym), zap.Error(err))
		return
	}
	p.log.Info("position opened",
		zap.String("symbol", sym),
		zap.String("side", side.String()),
		zap.Float64("units", order.Units),
		zap.Float64("price", fill.Price),
		zap.String("reason", dec.Reason))
}

// ClosePosition submits a full exit of pos at price. Drivers use it
// directly when flattening the book outside a signal, like
// end-of-replay liquidation.
func (p *Pipeline) ClosePosition(ctx context.Context, pos portfolio.Position, price float64, reason string, at time.Time) (portfolio.Fill, error) {
	exit := &market.Order{
		Symbol:  pos.Symbol,
		Side:    pos.Side(),
		Exit:    true,
		Units:   pos.Quantity(),
		Price:   price,
		Trigger: market.TriggerSignal,
		Reason:  reason,
		Time:    at,
	}
	return p.paper.Submit(ctx, exit)
}

func (p *Pipeline) positionView(sym string) strategies.Position {
	pos, ok := p.book.Position(sym)
	if !ok {
		return strategies.Position{}
	}
	return strategies.Position{Held: true, Side: pos.Side()}
}
