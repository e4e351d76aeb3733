package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfOrder reports a bar that does not advance the series clock.
// Historical data carrying one of these is unusable for replay.
var ErrOutOfOrder = errors.New("bar out of order")

// Series is an append-only sequence of bars for one symbol with strictly
// ascending timestamps. Duplicate timestamps are rejected along with
// regressions.
type Series struct {
	symbol string
	bars   []Bar
}

func NewSeries(symbol string) *Series {
	return &Series{symbol: symbol}
}

// SeriesFrom builds a series from bars already in order. The first
// ordering violation aborts the build.
func SeriesFrom(symbol string, bars []Bar) (*Series, error) {
	s := NewSeries(symbol)
	for _, b := range bars {
		if err := s.Append(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Series) Symbol() string { return s.symbol }

// Append adds a bar. The bar must belong to the series symbol and its
// timestamp must be strictly after the last appended bar.
func (s *Series) Append(b Bar) error {
	if b.Symbol != s.symbol {
		return fmt.Errorf("append %q bar to %q series", b.Symbol, s.symbol)
	}
	if n := len(s.bars); n > 0 && !b.Time.After(s.bars[n-1].Time) {
		return fmt.Errorf("%s: bar at %s not after %s: %w",
			s.symbol, b.Time.Format(time.RFC3339), s.bars[n-1].Time.Format(time.RFC3339),
			ErrOutOfOrder)
	}
	s.bars = append(s.bars, b)
	return nil
}

func (s *Series) Len() int { return len(s.bars) }

func (s *Series) At(i int) Bar { return s.bars[i] }

// Last returns the most recent bar, ok=false on an empty series.
func (s *Series) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Window returns the trailing n bars (fewer when the series is shorter).
// The returned slice aliases series storage and is read-only.
func (s *Series) Window(n int) []Bar {
	if n >= len(s.bars) {
		return s.bars
	}
	return s.bars[len(s.bars)-n:]
}

// Bars returns the whole series in order. Read-only alias.
func (s *Series) Bars() []Bar { return s.bars }

// Span reports the first and last timestamps. Zero times on an empty
// series.
func (s *Series) Span() (start, end time.Time) {
	if len(s.bars) == 0 {
		return
	}
	return s.bars[0].Time, s.bars[len(s.bars)-1].Time
}
