package market

import "time"

// Bar is one OHLCV aggregate for a single symbol.
type Bar struct {
	Symbol string
	Time   time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume float64
}

// Side distinguishes long from short exposure.
type Side int8

const (
	Long Side = iota + 1
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	}
	return "UNKNOWN"
}

// Sign maps Long to +1 and Short to -1, matching the sign convention
// used for position units and realized P&L.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}
