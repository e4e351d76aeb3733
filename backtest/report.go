package backtest

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/portfolio"
)

// tradingDaysPerYear annualizes per-bar Sharpe regardless of the bar
// interval actually replayed.
const tradingDaysPerYear = 252

// Report is the full outcome of one replay. Identical data and config
// render to identical bytes.
type Report struct {
	RunID    string
	Strategy string
	Symbols  []string

	Start time.Time
	End   time.Time

	StartCash      float64
	FinalEquity    float64
	NetPL          float64
	TotalReturnPct float64

	Trades int
	Wins   int
	Losses int

	WinRate        float64 // fraction of decided trades
	AvgWin         float64
	AvgLoss        float64 // negative
	ProfitFactor   float64
	MaxDrawdownPct float64
	Sharpe         float64

	OpenPositions []portfolio.Position

	TradeLog    []journal.TradeRecord
	EquityCurve []journal.EquityPoint
}

func buildReport(cfg Config, start, end time.Time, book *portfolio.Portfolio, c *collector) *Report {
	r := &Report{
		RunID:         cfg.RunID,
		Strategy:      cfg.Strategy,
		Symbols:       cfg.Symbols,
		Start:         start,
		End:           end,
		StartCash:     cfg.Cash,
		FinalEquity:   book.Equity(),
		OpenPositions: book.Positions(),
		TradeLog:      c.trades,
		EquityCurve:   c.equity,
	}

	r.NetPL = r.FinalEquity - r.StartCash
	r.TotalReturnPct = 100 * r.NetPL / r.StartCash

	var grossProfit, grossLoss float64
	for _, t := range c.trades {
		r.Trades++
		switch {
		case t.RealizedPL > 0:
			r.Wins++
			grossProfit += t.RealizedPL
		case t.RealizedPL < 0:
			r.Losses++
			grossLoss += -t.RealizedPL
		}
	}
	if decided := r.Wins + r.Losses; decided > 0 {
		r.WinRate = float64(r.Wins) / float64(decided)
	}
	if r.Wins > 0 {
		r.AvgWin = grossProfit / float64(r.Wins)
	}
	if r.Losses > 0 {
		r.AvgLoss = -grossLoss / float64(r.Losses)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	}

	r.MaxDrawdownPct = maxDrawdownPct(c.equity)
	r.Sharpe = sharpe(c.equity)
	return r
}

// maxDrawdownPct is the largest peak-to-trough equity decline, in
// percent of the peak.
func maxDrawdownPct(curve []journal.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return 100 * maxDD
}

// sharpe computes the annualized Sharpe ratio over per-point equity
// returns, with zero risk-free rate. Flat curves score 0.
func sharpe(curve []journal.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			return 0
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	sigma := math.Sqrt(sq / float64(len(returns)))
	if sigma == 0 {
		return 0
	}
	return mean / sigma * math.Sqrt(tradingDaysPerYear)
}

// Render writes the human-readable report. Output is byte-identical
// for identical runs, so it can be diffed across code changes.
func (r *Report) Render(w io.Writer) {
	rule := strings.Repeat("=", 50)
	sub := strings.Repeat("-", 50)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, " Replay Result")
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbols:       %s\n", strings.Join(r.Symbols, ","))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, sub)
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, sub)
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", 100*r.WinRate)
	if r.Wins > 0 {
		fmt.Fprintf(w, "Avg Win:       %.2f\n", r.AvgWin)
	}
	if r.Losses > 0 {
		fmt.Fprintf(w, "Avg Loss:      %.2f\n", r.AvgLoss)
	}
	if r.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.ProfitFactor)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, sub)
	fmt.Fprintf(w, "Start Cash:    %.2f\n", r.StartCash)
	fmt.Fprintf(w, "Final Equity:  %.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.NetPL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.TotalReturnPct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", r.Sharpe)

	if len(r.OpenPositions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Open Positions")
		fmt.Fprintln(w, sub)
		for _, p := range r.OpenPositions {
			fmt.Fprintf(w, "%-10s %5s %10.0f @ %.2f\n", p.Symbol, p.Side(), p.Quantity(), p.EntryPrice)
		}
	}

	fmt.Fprintln(w)
}

// RunRecord converts the report into its journal row.
func (r *Report) RunRecord(created time.Time) journal.RunRecord {
	return journal.RunRecord{
		RunID:          r.RunID,
		Created:        created,
		Strategy:       r.Strategy,
		Symbols:        strings.Join(r.Symbols, ","),
		Start:          r.Start,
		End:            r.End,
		StartCash:      r.StartCash,
		FinalEquity:    r.FinalEquity,
		NetPL:          r.NetPL,
		ReturnPct:      r.TotalReturnPct,
		Trades:         r.Trades,
		Wins:           r.Wins,
		Losses:         r.Losses,
		WinRate:        r.WinRate,
		ProfitFactor:   r.ProfitFactor,
		MaxDrawdownPct: r.MaxDrawdownPct,
		Sharpe:         r.Sharpe,
	}
}
