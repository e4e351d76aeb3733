package strategies

import (
	"fmt"
	"math"

	"github.com/alpaquero/alpaquero/indicators"
	"github.com/alpaquero/alpaquero/market"
)

const (
	defaultOversold   = 30
	defaultOverbought = 70
)

// RSIStrategy buys when RSI crosses below the oversold threshold while
// flat and sells when RSI crosses above the overbought threshold while
// long. Crossing is strict: a reading exactly at a threshold has not
// crossed it yet.
type RSIStrategy struct {
	Period     int
	Oversold   float64
	Overbought float64

	rsi *indicators.RSI

	lastRSI  float64
	haveLast bool
}

func NewRSIStrategy(period int, oversold, overbought float64) *RSIStrategy {
	if oversold <= 0 {
		oversold = defaultOversold
	}
	if overbought <= 0 {
		overbought = defaultOverbought
	}
	return &RSIStrategy{
		Period:     period,
		Oversold:   oversold,
		Overbought: overbought,
		rsi:        indicators.NewRSI(period),
	}
}

func (s *RSIStrategy) Name() string {
	return fmt.Sprintf("rsi(%d)", s.Period)
}

// MinBars is period+2: period+1 bars warm the RSI, one more supplies the
// previous reading a cross is judged against.
func (s *RSIStrategy) MinBars() int {
	return s.Period + 2
}

func (s *RSIStrategy) Reset() {
	s.rsi.Reset()
	s.lastRSI = 0
	s.haveLast = false
}

func (s *RSIStrategy) OnBar(b market.Bar, pos Position) Decision {
	s.rsi.Update(b)

	if !s.rsi.Ready() {
		return hold(s.Name(), b, "warmup")
	}

	cur := s.rsi.Value()

	if !s.haveLast {
		s.lastRSI = cur
		s.haveLast = true
		return hold(s.Name(), b, "no previous reading")
	}

	crossedBelow := cur < s.Oversold && s.lastRSI >= s.Oversold
	crossedAbove := cur > s.Overbought && s.lastRSI <= s.Overbought

	s.lastRSI = cur

	switch {
	case crossedBelow && !pos.Held:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Buy,
			Strategy: s.Name(),
			Strength: thresholdStrength(s.Oversold - cur),
			Reason:   "OversoldCross",
		}
	case crossedAbove && pos.Held && pos.Side == market.Long:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Sell,
			Strategy: s.Name(),
			Strength: thresholdStrength(cur - s.Overbought),
			Reason:   "OverboughtCross",
		}
	default:
		return hold(s.Name(), b, "no cross")
	}
}

// thresholdStrength scales how far past its threshold the RSI landed,
// saturating 30 RSI points past it.
func thresholdStrength(past float64) float64 {
	return math.Min(1, math.Max(0, past/30))
}
