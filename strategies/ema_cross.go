package strategies

import (
	"fmt"

	"github.com/alpaquero/alpaquero/indicators"
	"github.com/alpaquero/alpaquero/market"
)

// EMACross is the exponential variant of the crossover strategy. The
// exponential averages react faster to recent closes, so it tends to
// signal a few bars earlier than SMACross on the same windows.
type EMACross struct {
	FastPeriod int
	SlowPeriod int

	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(fast, slow int) *EMACross {
	return &EMACross{
		FastPeriod: fast,
		SlowPeriod: slow,
		fast:       indicators.NewEMA(fast),
		slow:       indicators.NewEMA(slow),
	}
}

func (s *EMACross) Name() string {
	return fmt.Sprintf("ema-cross(%d,%d)", s.FastPeriod, s.SlowPeriod)
}

func (s *EMACross) MinBars() int {
	return s.SlowPeriod + 1
}

func (s *EMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.lastDiff = 0
	s.haveLastDiff = false
}

func (s *EMACross) OnBar(b market.Bar, _ Position) Decision {
	s.fast.Update(b)
	s.slow.Update(b)

	// Wait until both EMAs are warmed up.
	if !s.fast.Ready() || !s.slow.Ready() {
		return hold(s.Name(), b, "warmup")
	}

	diff := s.fast.Value() - s.slow.Value()

	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return hold(s.Name(), b, "no previous diff")
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0

	s.lastDiff = diff

	switch {
	case bullCross:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Buy,
			Strategy: s.Name(),
			Strength: crossStrength(diff, s.slow.Value()),
			Reason:   "BullCross",
		}
	case bearCross:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Sell,
			Strategy: s.Name(),
			Strength: crossStrength(diff, s.slow.Value()),
			Reason:   "BearCross",
		}
	default:
		return hold(s.Name(), b, "no cross")
	}
}
