package portfolio

import (
	"time"

	"github.com/alpaquero/alpaquero/market"
)

// Position is one open holding. Units are signed: positive long,
// negative short. At most one position per symbol exists at a time.
type Position struct {
	Symbol     string
	Units      float64
	EntryPrice float64
	EntryTime  time.Time

	// Protective levels captured at entry, 0 means none
	Stop float64
	Take float64

	Reason string
}

func (p Position) Side() market.Side {
	if p.Units < 0 {
		return market.Short
	}
	return market.Long
}

// Quantity is the unsigned unit count.
func (p Position) Quantity() float64 {
	if p.Units < 0 {
		return -p.Units
	}
	return p.Units
}

// UnrealizedPL marks the position against price. The signed units make
// the same expression work for both sides.
func (p Position) UnrealizedPL(price float64) float64 {
	return (price - p.EntryPrice) * p.Units
}

// Value is the signed market value of the holding at price.
func (p Position) Value(price float64) float64 {
	return p.Units * price
}
