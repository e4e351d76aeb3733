package portfolio

import "github.com/alpaquero/alpaquero/market"

// CostModel turns an order's reference price into the executed price
// plus any commission charged for the fill.
type CostModel interface {
	Adjust(o *market.Order) (price, commission float64)
}

// ZeroCost fills at the reference price with no commission. Backtests
// default to it so reports stay comparable across runs.
type ZeroCost struct{}

func (ZeroCost) Adjust(o *market.Order) (float64, float64) {
	return o.Price, 0
}

// FixedCost applies a fractional slippage against the trade direction
// and a flat commission per fill.
type FixedCost struct {
	Slippage   float64 // fraction of price, e.g. 0.0005
	Commission float64 // currency units per fill
}

func (c FixedCost) Adjust(o *market.Order) (float64, float64) {
	// Opening a long and closing a short both buy, the rest sell.
	buying := (o.Side == market.Long) != o.Exit
	price := o.Price
	if buying {
		price *= 1 + c.Slippage
	} else {
		price *= 1 - c.Slippage
	}
	return price, c.Commission
}
