package backtest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/portfolio"
)

func curve(equities ...float64) []journal.EquityPoint {
	pts := make([]journal.EquityPoint, len(equities))
	for i, eq := range equities {
		pts[i] = journal.EquityPoint{
			Time:   baseTime.Add(time.Duration(i) * time.Minute),
			Equity: eq,
		}
	}
	return pts
}

func TestMaxDrawdownPct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		eq   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"rising", []float64{100, 110, 120}, 0},
		{"single dip", []float64{100, 120, 90, 110, 80}, 100 * 40.0 / 120},
		{"recovers", []float64{100, 80, 130}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, maxDrawdownPct(curve(tt.eq...)), 0.0001)
		})
	}
}

func TestSharpe(t *testing.T) {
	t.Parallel()

	assert.Zero(t, sharpe(nil))
	assert.Zero(t, sharpe(curve(100)))
	assert.Zero(t, sharpe(curve(100, 100, 100)), "flat curve")
	assert.Zero(t, sharpe(curve(100, 0, 50)), "wiped-out equity")

	// returns +10%, -10%, +10%: mean/sigma = 0.353553, annualized
	got := sharpe(curve(100, 110, 99, 108.9))
	assert.InDelta(t, 5.6125, got, 0.001)

	assert.Positive(t, sharpe(curve(100, 101, 102.5)))
	assert.Negative(t, sharpe(curve(100, 99, 97.5)))
}

func TestBuildReportStats(t *testing.T) {
	t.Parallel()

	cfg := testConfig("AAPL")
	book := portfolio.New(10125, nil)
	c := &collector{
		trades: []journal.TradeRecord{
			{TradeID: "r-000001", RealizedPL: 100},
			{TradeID: "r-000002", RealizedPL: 50},
			{TradeID: "r-000003", RealizedPL: -50},
			{TradeID: "r-000004", RealizedPL: 0},
		},
		equity: curve(10000, 10100, 10050, 10125),
	}

	r := buildReport(cfg, baseTime, baseTime.Add(3*time.Minute), book, c)

	assert.Equal(t, 4, r.Trades)
	assert.Equal(t, 2, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 2.0/3.0, r.WinRate, 0.0001)
	assert.InDelta(t, 75.0, r.AvgWin, 0.0001)
	assert.InDelta(t, -50.0, r.AvgLoss, 0.0001)
	assert.InDelta(t, 3.0, r.ProfitFactor, 0.0001)
	assert.InDelta(t, 10125.0, r.FinalEquity, 0.0001)
	assert.InDelta(t, 125.0, r.NetPL, 0.0001)
	assert.InDelta(t, 1.25, r.TotalReturnPct, 0.0001)
	assert.InDelta(t, 100*50.0/10100, r.MaxDrawdownPct, 0.0001)
}

func TestRender(t *testing.T) {
	t.Parallel()

	r := &Report{
		RunID:          "r1",
		Strategy:       "sma-cross(2,3)",
		Symbols:        []string{"AAPL"},
		Start:          baseTime,
		End:            baseTime.Add(5 * time.Minute),
		StartCash:      10000,
		FinalEquity:    9950,
		NetPL:          -50,
		TotalReturnPct: -0.5,
		Trades:         1,
		Losses:         1,
		AvgLoss:        -50,
		MaxDrawdownPct: 0.5,
	}

	var buf bytes.Buffer
	r.Render(&buf)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, strings.Repeat("=", 50)+"\n Replay Result\n"))
	assert.Contains(t, out, "Strategy:      sma-cross(2,3)\n")
	assert.Contains(t, out, "Start:         2024-01-02T09:30:00Z\n")
	assert.Contains(t, out, "Trades:        1\n")
	assert.Contains(t, out, "Win Rate:      0.00%\n")
	assert.Contains(t, out, "Avg Loss:      -50.00\n")
	assert.Contains(t, out, "Final Equity:  9950.00\n")
	assert.Contains(t, out, "Return:        -0.50%\n")
	assert.NotContains(t, out, "Avg Win", "no wins, line suppressed")
	assert.NotContains(t, out, "Profit Factor")
	assert.NotContains(t, out, "Open Positions")
	assert.NotContains(t, out, "r1", "run id stays out of the rendered bytes")

	var again bytes.Buffer
	r.Render(&again)
	assert.Equal(t, out, again.String())
}

func TestRenderOpenPositions(t *testing.T) {
	t.Parallel()

	r := &Report{
		Symbols: []string{"AAPL"},
		OpenPositions: []portfolio.Position{
			{Symbol: "AAPL", Units: 10, EntryPrice: 100},
		},
	}

	var buf bytes.Buffer
	r.Render(&buf)
	assert.Contains(t, buf.String(), "Open Positions")
	assert.Contains(t, buf.String(), "AAPL        LONG         10 @ 100.00\n")
}

func TestRunRecord(t *testing.T) {
	t.Parallel()

	r := &Report{
		RunID:          "r1",
		Strategy:       "sma-cross(2,3)",
		Symbols:        []string{"AAPL", "MSFT"},
		Start:          baseTime,
		End:            baseTime.Add(time.Hour),
		StartCash:      10000,
		FinalEquity:    10100,
		NetPL:          100,
		TotalReturnPct: 1,
		Trades:         2,
		Wins:           2,
		WinRate:        1,
		Sharpe:         1.5,
	}

	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rec := r.RunRecord(created)

	require.Equal(t, "r1", rec.RunID)
	assert.True(t, rec.Created.Equal(created))
	assert.Equal(t, "AAPL,MSFT", rec.Symbols)
	assert.Equal(t, 2, rec.Trades)
	assert.InDelta(t, 1.0, rec.ReturnPct, 0.0001)
	assert.InDelta(t, 1.5, rec.Sharpe, 0.0001)
}
