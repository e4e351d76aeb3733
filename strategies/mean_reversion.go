package strategies

import (
	"fmt"
	"math"

	"github.com/alpaquero/alpaquero/indicators"
	"github.com/alpaquero/alpaquero/market"
)

const defaultNumStd = 2

// MeanReversion trades Bollinger band excursions: buy when the close
// drops under the lower band while flat, sell when it rises above the
// upper band while long. Level-triggered, no cross memory needed.
type MeanReversion struct {
	Window int
	NumStd float64

	bb *indicators.Bollinger
}

func NewMeanReversion(window int, numStd float64) *MeanReversion {
	if numStd <= 0 {
		numStd = defaultNumStd
	}
	return &MeanReversion{
		Window: window,
		NumStd: numStd,
		bb:     indicators.NewBollinger(window, numStd),
	}
}

func (s *MeanReversion) Name() string {
	return fmt.Sprintf("mean-reversion(%d,%g)", s.Window, s.NumStd)
}

func (s *MeanReversion) MinBars() int {
	return s.Window
}

func (s *MeanReversion) Reset() {
	s.bb.Reset()
}

func (s *MeanReversion) OnBar(b market.Bar, pos Position) Decision {
	s.bb.Update(b)

	if !s.bb.Ready() {
		return hold(s.Name(), b, "warmup")
	}

	upper, _, lower := s.bb.Bands()

	switch {
	case b.Close < lower && !pos.Held:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Buy,
			Strategy: s.Name(),
			Strength: bandStrength(lower-b.Close, s.bb.StdDev()),
			Reason:   "BelowLowerBand",
		}
	case b.Close > upper && pos.Held && pos.Side == market.Long:
		return Decision{
			Symbol:   b.Symbol,
			Time:     b.Time,
			Signal:   Sell,
			Strategy: s.Name(),
			Strength: bandStrength(b.Close-upper, s.bb.StdDev()),
			Reason:   "AboveUpperBand",
		}
	default:
		return hold(s.Name(), b, "inside bands")
	}
}

// bandStrength scales the excursion beyond the band in standard
// deviation units, saturating at one deviation.
func bandStrength(excess, sd float64) float64 {
	if sd <= 0 {
		return 0
	}
	return math.Min(1, excess/sd)
}
