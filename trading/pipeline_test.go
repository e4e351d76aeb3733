package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpaquero/alpaquero/broker"
	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/pkg/id"
	"github.com/alpaquero/alpaquero/portfolio"
	"github.com/alpaquero/alpaquero/risk"
	"github.com/alpaquero/alpaquero/strategies"
)

var baseTime = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func bar(sym string, min int, o, h, l, c float64) market.Bar {
	return market.Bar{
		Symbol: sym,
		Time:   baseTime.Add(time.Duration(min) * time.Minute),
		Open:   o, High: h, Low: l, Close: c,
	}
}

// script replays canned signals keyed by bar time.
type script struct {
	signals map[int64]strategies.Signal
}

func (s script) Name() string { return "script" }
func (s script) MinBars() int { return 1 }
func (s script) Reset()       {}

func (s script) OnBar(b market.Bar, _ strategies.Position) strategies.Decision {
	sig := s.signals[b.Time.Unix()]
	return strategies.Decision{
		Symbol:   b.Symbol,
		Time:     b.Time,
		Signal:   sig,
		Strategy: "script",
		Reason:   sig.String(),
	}
}

func at(min int) int64 {
	return baseTime.Add(time.Duration(min) * time.Minute).Unix()
}

type memJournal struct {
	trades []journal.TradeRecord
	equity []journal.EquityPoint
}

func (m *memJournal) RecordTrade(t journal.TradeRecord) error  { m.trades = append(m.trades, t); return nil }
func (m *memJournal) RecordEquity(e journal.EquityPoint) error { m.equity = append(m.equity, e); return nil }
func (m *memJournal) Close() error                             { return nil }

func newTestPipeline(t *testing.T) (*Pipeline, *portfolio.Portfolio, *memJournal) {
	t.Helper()
	rm, err := risk.NewManager(risk.Limits{
		PositionSizePct: 0.10,
		StopLossPct:     0.05,
		TakeProfitPct:   0.10,
		MaxPositions:    3,
	})
	require.NoError(t, err)

	jrnl := &memJournal{}
	book := portfolio.New(10000, nil)
	paper := broker.NewPaper(book, jrnl, id.NewSequence("run"), "run", "script")
	return NewPipeline(book, paper, rm, nil), book, jrnl
}

func TestPipelineEntry(t *testing.T) {
	t.Parallel()
	p, book, jrnl := newTestPipeline(t)

	strat := script{signals: map[int64]strategies.Signal{at(0): strategies.Buy}}
	require.NoError(t, p.OnBar(context.Background(), strat, bar("AAPL", 0, 99, 101, 98, 100)))

	pos, ok := book.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 10.0, pos.Units)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 95.0, pos.Stop)
	assert.Equal(t, 110.0, pos.Take)
	assert.Empty(t, jrnl.trades, "entries do not journal until closed")
}

func TestPipelineForcedExitBeforeStrategy(t *testing.T) {
	t.Parallel()
	p, book, jrnl := newTestPipeline(t)

	strat := script{signals: map[int64]strategies.Signal{
		at(0): strategies.Buy,
		at(1): strategies.Buy, // fires after the stop already closed the trade
	}}
	ctx := context.Background()
	require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 0, 99, 101, 98, 100)))
	require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 1, 98, 99, 94, 96)))

	require.Len(t, jrnl.trades, 1)
	tr := jrnl.trades[0]
	assert.Equal(t, "STOP", tr.Reason)
	assert.Equal(t, 95.0, tr.ExitPrice)
	assert.Equal(t, -50.0, tr.RealizedPL)

	// the buy signal on the stop bar re-entered at its close
	pos, ok := book.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 96.0, pos.EntryPrice)
}

func TestPipelineSignalExit(t *testing.T) {
	t.Parallel()
	p, book, jrnl := newTestPipeline(t)

	strat := script{signals: map[int64]strategies.Signal{
		at(0): strategies.Buy,
		at(2): strategies.Sell,
	}}
	ctx := context.Background()
	require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 0, 99, 101, 98, 100)))
	require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 1, 100, 101, 99, 99)))
	require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 2, 99, 100, 96, 97)))

	require.Len(t, jrnl.trades, 1)
	tr := jrnl.trades[0]
	assert.Equal(t, "SELL", tr.Reason)
	assert.Equal(t, 97.0, tr.ExitPrice)
	assert.Equal(t, -30.0, tr.RealizedPL)

	_, ok := book.Position("AAPL")
	assert.False(t, ok, "opposite signal closes, it does not flip")
}

func TestPipelineHalt(t *testing.T) {
	t.Parallel()

	t.Run("entries suppressed", func(t *testing.T) {
		p, book, _ := newTestPipeline(t)
		p.Halt()

		strat := script{signals: map[int64]strategies.Signal{at(0): strategies.Buy}}
		require.NoError(t, p.OnBar(context.Background(), strat, bar("AAPL", 0, 99, 101, 98, 100)))

		_, ok := book.Position("AAPL")
		assert.False(t, ok)
	})

	t.Run("protective exits still run", func(t *testing.T) {
		p, book, jrnl := newTestPipeline(t)
		strat := script{signals: map[int64]strategies.Signal{at(0): strategies.Buy}}
		ctx := context.Background()
		require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 0, 99, 101, 98, 100)))

		p.Halt()
		require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 1, 98, 99, 94, 96)))

		require.Len(t, jrnl.trades, 1)
		assert.Equal(t, "STOP", jrnl.trades[0].Reason)
		_, ok := book.Position("AAPL")
		assert.False(t, ok)
	})

	t.Run("signal exits still run", func(t *testing.T) {
		p, book, jrnl := newTestPipeline(t)
		strat := script{signals: map[int64]strategies.Signal{
			at(0): strategies.Buy,
			at(1): strategies.Sell,
		}}
		ctx := context.Background()
		require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 0, 99, 101, 98, 100)))

		p.Halt()
		require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 1, 100, 101, 99, 101)))

		require.Len(t, jrnl.trades, 1)
		assert.Equal(t, 101.0, jrnl.trades[0].ExitPrice)
		_, ok := book.Position("AAPL")
		assert.False(t, ok)
	})
}

func TestPipelineMarksBook(t *testing.T) {
	t.Parallel()
	p, book, _ := newTestPipeline(t)

	strat := script{signals: map[int64]strategies.Signal{at(0): strategies.Buy}}
	ctx := context.Background()
	require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 0, 99, 101, 98, 100)))
	require.NoError(t, p.OnBar(ctx, strat, bar("AAPL", 1, 100, 106, 100, 105)))

	// 9000 cash + 10 units marked at 105
	assert.InDelta(t, 10050.0, book.Equity(), 0.001)
}
