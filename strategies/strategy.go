// Package strategies contains the trading strategies and the signal
// model they emit.
package strategies

import (
	"fmt"
	"strings"
	"time"

	"github.com/alpaquero/alpaquero/market"
)

// Signal is a strategy's directional verdict for one bar.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision is one strategy's output for one bar. Produced fresh per bar,
// consumed by the risk manager, never persisted.
type Decision struct {
	Symbol   string
	Time     time.Time
	Signal   Signal
	Strategy string
	// Strength is advisory metadata in [0,1]; the risk manager does not
	// size on it.
	Strength float64
	Reason   string
}

// Position is the read-only exposure a strategy sees for its symbol.
type Position struct {
	Held bool
	Side market.Side
}

// Strategy is the minimal interface a trading strategy must implement.
// OnBar is called once per *closed* bar, in timestamp order, with the
// current exposure for the bar's symbol.
//
// A strategy must emit Hold until it has consumed MinBars() bars;
// drivers may probe MinBars to skip warmup.
type Strategy interface {
	Name() string
	MinBars() int
	Reset()
	OnBar(b market.Bar, pos Position) Decision
}

// Params carries the per-strategy tuning knobs recognized by ByName.
// Zero values fall back to each strategy's defaults.
type Params struct {
	ShortWindow int
	LongWindow  int

	RSIPeriod  int
	Oversold   float64
	Overbought float64

	BollingerWindow int
	BollingerStd    float64
}

// ByName constructs a strategy from its configured name.
func ByName(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return NoopStrategy{}, nil

	case "sma-cross", "smacross", "ma-cross":
		if p.ShortWindow <= 0 || p.LongWindow <= p.ShortWindow {
			return nil, fmt.Errorf("sma-cross: need 0 < short_window < long_window, got %d/%d",
				p.ShortWindow, p.LongWindow)
		}
		return NewSMACross(p.ShortWindow, p.LongWindow), nil

	case "ema-cross", "emacross":
		if p.ShortWindow <= 0 || p.LongWindow <= p.ShortWindow {
			return nil, fmt.Errorf("ema-cross: need 0 < short_window < long_window, got %d/%d",
				p.ShortWindow, p.LongWindow)
		}
		return NewEMACross(p.ShortWindow, p.LongWindow), nil

	case "rsi":
		if p.RSIPeriod <= 0 {
			return nil, fmt.Errorf("rsi: period must be positive, got %d", p.RSIPeriod)
		}
		return NewRSIStrategy(p.RSIPeriod, p.Oversold, p.Overbought), nil

	case "mean-reversion", "bollinger":
		if p.BollingerWindow <= 0 {
			return nil, fmt.Errorf("mean-reversion: window must be positive, got %d", p.BollingerWindow)
		}
		return NewMeanReversion(p.BollingerWindow, p.BollingerStd), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the strategy names ByName accepts, for CLI help and errors.
func Names() []string {
	return []string{"sma-cross", "ema-cross", "rsi", "mean-reversion", "noop"}
}

func hold(name string, b market.Bar, reason string) Decision {
	return Decision{
		Symbol:   b.Symbol,
		Time:     b.Time,
		Signal:   Hold,
		Strategy: name,
		Reason:   reason,
	}
}
