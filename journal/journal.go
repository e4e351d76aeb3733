// Package journal persists closed trades, equity snapshots and run
// summaries. SQLite is the queryable backend, CSV the grep-friendly
// one; both record the same rows.
package journal

import "time"

// TradeRecord is one closed round trip.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Symbol     string
	Side       string // "LONG" or "SHORT"
	Units      float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	RealizedPL float64 // gross of commission
	Commission float64 // total for both fills
	Strategy   string
	Reason     string // why the trade closed
}

// EquityPoint is the account state after one bar or fill.
type EquityPoint struct {
	RunID  string
	Time   time.Time
	Cash   float64
	Equity float64
	Open   int // open positions at the time
}

// RunRecord summarizes one completed backtest run.
type RunRecord struct {
	RunID    string
	Created  time.Time
	Strategy string
	Symbols  string // comma joined, config order
	Start    time.Time
	End      time.Time

	StartCash   float64
	FinalEquity float64
	NetPL       float64
	ReturnPct   float64

	Trades int
	Wins   int
	Losses int

	WinRate        float64
	ProfitFactor   float64
	MaxDrawdownPct float64
	Sharpe         float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquityPoint) error
	Close() error
}

// Discard drops every record, for sessions that run without
// persistence.
var Discard Journal = discard{}

type discard struct{}

func (discard) RecordTrade(TradeRecord) error  { return nil }
func (discard) RecordEquity(EquityPoint) error { return nil }
func (discard) Close() error                   { return nil }
