// Package indicators provides technical analysis indicators for trading
package indicators

import (
	"errors"

	"github.com/alpaquero/alpaquero/market"
)

// ErrInsufficientData reports a computation over fewer bars than the
// indicator window requires. Strategies absorb it by holding; batch
// helpers return it wrapped with the counts.
var ErrInsufficientData = errors.New("insufficient data")

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to use in live, replay, and backtests.
type Indicator interface {
	// Name returns a stable identifier like "SMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	// (Some indicators may become ready earlier; that's fine.)
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* bar and updates internal state.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value, 0 while !Ready().
	Value() float64
}
