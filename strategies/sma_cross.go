package strategies

import (
	"fmt"
	"math"

	"github.com/alpaquero/alpaquero/indicators"
	"github.com/alpaquero/alpaquero/market"
)

// SMACross trades a fast/slow simple moving average crossover.
// - Buy when the short average crosses from at-or-below to above the long
// - Sell on the symmetric downward cross
// It signals on crosses regardless of exposure; the risk manager decides
// whether a signal becomes an order.
type SMACross struct {
	ShortWindow int
	LongWindow  int

	short *indicators.SimpleMA
	long  *indicators.SimpleMA

	lastDiff     float64
	haveLastDiff bool
}

func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		ShortWindow: short,
		LongWindow:  long,
		short:       indicators.NewSMA(short),
		long:        indicators.NewSMA(long),
	}
}

func (s *SMACross) Name() string {
	return fmt.Sprintf("sma-cross(%d,%d)", s.ShortWindow, s.LongWindow)
}

// MinBars is the long window plus one: a cross needs a previous diff.
func (s *SMACross) MinBars() int {
	return s.LongWindow + 1
}

func (s *SMACross) Reset() {
	s.short.Reset()
	s.long.Reset()
	s.lastDiff = 0
	s.haveLastDiff = false
}

func (s *SMACross) OnBar(b market.Bar, _ Position) Decision {
	s.short.Update(b)
	s.long.Update(b)

	// Wait until both averages are warmed up.
	if !s.short.Ready() || !s.long.Ready() {
		return hold(s.Name(), b, "warmup")
	}

	diff := s.short.Value() - s.long.Value()

	// Need a previous diff to detect a cross.
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return hold(s.Name(), b, "no previous diff")
	}

	// Cross logic:
	// - Bull cross: diff goes from <=0 to >0
	// - Bear cross: diff goes from >=0 to <0
	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0

	// Update lastDiff early/always to avoid repeated triggers.
	s.lastDiff = diff

	switch {
	case bullCross:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Buy,
			Strategy: s.Name(),
			Strength: crossStrength(diff, s.long.Value()),
			Reason:   "BullCross",
		}
	case bearCross:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Sell,
			Strategy: s.Name(),
			Strength: crossStrength(diff, s.long.Value()),
			Reason:   "BearCross",
		}
	default:
		return hold(s.Name(), b, "no cross")
	}
}

// crossStrength maps the relative separation of the averages into [0,1].
func crossStrength(diff, base float64) float64 {
	if base == 0 {
		return 0
	}
	return math.Min(1, math.Abs(diff)/math.Abs(base))
}
