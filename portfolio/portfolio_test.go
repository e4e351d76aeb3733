package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alpaquero/alpaquero/market"
)

var baseTime = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func buyOrder(symbol string, units, price float64) *market.Order {
	return &market.Order{
		Symbol: symbol,
		Side:   market.Long,
		Units:  units,
		Price:  price,
		Time:   baseTime,
	}
}

func TestApplyFillLongRoundTrip(t *testing.T) {
	p := New(10000, nil)

	entry := buyOrder("AAPL", 10, 100)
	entry.Stop = 95
	entry.Take = 110
	entry.Reason = "BullCross"

	fill, err := p.ApplyFill(entry)
	assert.NoError(t, err)
	assert.InDelta(t, 100.0, fill.Price, 0.001)
	assert.InDelta(t, 9000.0, fill.CashAfter, 0.001)
	assert.InDelta(t, 0.0, fill.Realized, 0.001)

	pos, ok := p.Position("AAPL")
	assert.True(t, ok)
	assert.Equal(t, market.Long, pos.Side())
	assert.InDelta(t, 10.0, pos.Units, 0.001)
	assert.InDelta(t, 95.0, pos.Stop, 0.001)
	assert.InDelta(t, 110.0, pos.Take, 0.001)
	assert.InDelta(t, 10000.0, p.Equity(), 0.001)

	exit := &market.Order{
		Symbol:  "AAPL",
		Side:    market.Long,
		Exit:    true,
		Units:   10,
		Price:   95,
		Trigger: market.TriggerStopLoss,
		Time:    baseTime.Add(time.Hour),
	}
	fill, err = p.ApplyFill(exit)
	assert.NoError(t, err)
	assert.InDelta(t, -50.0, fill.Realized, 0.001)
	assert.InDelta(t, 9950.0, fill.CashAfter, 0.001)

	assert.Equal(t, 0, p.OpenCount())
	assert.InDelta(t, 9950.0, p.Equity(), 0.001)
}

func TestApplyFillShortRoundTrip(t *testing.T) {
	p := New(1000, nil)

	entry := &market.Order{Symbol: "EURUSD", Side: market.Short, Units: 10, Price: 100, Time: baseTime}
	fill, err := p.ApplyFill(entry)
	assert.NoError(t, err)
	// Short proceeds are credited up front.
	assert.InDelta(t, 2000.0, fill.CashAfter, 0.001)
	assert.InDelta(t, 1000.0, p.Equity(), 0.001)

	pos, _ := p.Position("EURUSD")
	assert.Equal(t, market.Short, pos.Side())
	assert.InDelta(t, -10.0, pos.Units, 0.001)
	assert.InDelta(t, 10.0, pos.Quantity(), 0.001)

	p.Mark("EURUSD", 90)
	assert.InDelta(t, 1100.0, p.Equity(), 0.001)
	assert.InDelta(t, 100.0, p.Unrealized(), 0.001)

	exit := &market.Order{Symbol: "EURUSD", Side: market.Short, Exit: true, Units: 10, Price: 90, Time: baseTime.Add(time.Hour)}
	fill, err = p.ApplyFill(exit)
	assert.NoError(t, err)
	assert.InDelta(t, 100.0, fill.Realized, 0.001)
	assert.InDelta(t, 1100.0, p.Cash(), 0.001)
	assert.Equal(t, 0, p.OpenCount())
}

func TestApplyFillRejections(t *testing.T) {
	t.Run("duplicate entry", func(t *testing.T) {
		p := New(10000, nil)
		_, err := p.ApplyFill(buyOrder("AAPL", 10, 100))
		assert.NoError(t, err)

		_, err = p.ApplyFill(buyOrder("AAPL", 5, 101))
		assert.ErrorIs(t, err, ErrRejected)
		assert.InDelta(t, 9000.0, p.Cash(), 0.001)
		assert.Equal(t, 1, p.OpenCount())
	})

	t.Run("exit without position", func(t *testing.T) {
		p := New(10000, nil)
		o := buyOrder("AAPL", 10, 100)
		o.Exit = true
		_, err := p.ApplyFill(o)
		assert.ErrorIs(t, err, ErrRejected)
		assert.InDelta(t, 10000.0, p.Cash(), 0.001)
	})

	t.Run("non-positive units", func(t *testing.T) {
		p := New(10000, nil)
		_, err := p.ApplyFill(buyOrder("AAPL", 0, 100))
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("insufficient cash", func(t *testing.T) {
		p := New(500, nil)
		_, err := p.ApplyFill(buyOrder("AAPL", 10, 100))
		assert.ErrorIs(t, err, ErrRejected)
		assert.InDelta(t, 500.0, p.Cash(), 0.001)
		assert.Equal(t, 0, p.OpenCount())
	})

	t.Run("exit side mismatch", func(t *testing.T) {
		p := New(10000, nil)
		_, err := p.ApplyFill(buyOrder("AAPL", 10, 100))
		assert.NoError(t, err)

		o := &market.Order{Symbol: "AAPL", Side: market.Short, Exit: true, Units: 10, Price: 100, Time: baseTime}
		_, err = p.ApplyFill(o)
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, 1, p.OpenCount())
	})

	t.Run("partial exit", func(t *testing.T) {
		p := New(10000, nil)
		_, err := p.ApplyFill(buyOrder("AAPL", 10, 100))
		assert.NoError(t, err)

		o := &market.Order{Symbol: "AAPL", Side: market.Long, Exit: true, Units: 4, Price: 100, Time: baseTime}
		_, err = p.ApplyFill(o)
		assert.ErrorIs(t, err, ErrRejected)

		pos, ok := p.Position("AAPL")
		assert.True(t, ok)
		assert.InDelta(t, 10.0, pos.Units, 0.001)
	})
}

func TestEquityTracksMarks(t *testing.T) {
	p := New(10000, nil)
	_, err := p.ApplyFill(buyOrder("AAPL", 10, 100))
	assert.NoError(t, err)

	// The fill itself marks the symbol.
	assert.InDelta(t, 10000.0, p.Equity(), 0.001)

	p.Mark("AAPL", 105)
	assert.InDelta(t, 10050.0, p.Equity(), 0.001)
	assert.InDelta(t, 50.0, p.Unrealized(), 0.001)

	p.Mark("AAPL", 94)
	assert.InDelta(t, 9940.0, p.Equity(), 0.001)
}

func TestFixedCost(t *testing.T) {
	c := FixedCost{Slippage: 0.01, Commission: 2}

	longEntry := &market.Order{Side: market.Long, Price: 100}
	price, fee := c.Adjust(longEntry)
	assert.InDelta(t, 101.0, price, 0.001)
	assert.InDelta(t, 2.0, fee, 0.001)

	longExit := &market.Order{Side: market.Long, Exit: true, Price: 100}
	price, _ = c.Adjust(longExit)
	assert.InDelta(t, 99.0, price, 0.001)

	shortEntry := &market.Order{Side: market.Short, Price: 100}
	price, _ = c.Adjust(shortEntry)
	assert.InDelta(t, 99.0, price, 0.001)

	shortExit := &market.Order{Side: market.Short, Exit: true, Price: 100}
	price, _ = c.Adjust(shortExit)
	assert.InDelta(t, 101.0, price, 0.001)
}

func TestCommissionCharged(t *testing.T) {
	p := New(10000, FixedCost{Commission: 5})

	fill, err := p.ApplyFill(buyOrder("AAPL", 10, 100))
	assert.NoError(t, err)
	assert.InDelta(t, 8995.0, fill.CashAfter, 0.001)

	exit := &market.Order{Symbol: "AAPL", Side: market.Long, Exit: true, Units: 10, Price: 110, Time: baseTime}
	fill, err = p.ApplyFill(exit)
	assert.NoError(t, err)
	// Realized PL stays gross, commission only hits cash.
	assert.InDelta(t, 100.0, fill.Realized, 0.001)
	assert.InDelta(t, 10090.0, fill.CashAfter, 0.001)
}

func TestPositionsSorted(t *testing.T) {
	p := New(100000, nil)
	for _, sym := range []string{"MSFT", "AAPL", "GOOG"} {
		_, err := p.ApplyFill(buyOrder(sym, 1, 100))
		assert.NoError(t, err)
	}

	got := p.Positions()
	assert.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "GOOG", got[1].Symbol)
	assert.Equal(t, "MSFT", got[2].Symbol)
}
