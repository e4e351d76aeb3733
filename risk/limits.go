package risk

import (
	"fmt"

	"github.com/alpaquero/alpaquero/market"
)

// Limits is the risk policy applied to every entry.
type Limits struct {
	PositionSizePct float64 // fraction of equity committed per entry, e.g. 0.10
	StopLossPct     float64 // distance below entry (above for shorts), 0 disables
	TakeProfitPct   float64 // distance above entry (below for shorts), 0 disables
	MaxPositions    int     // open positions across all symbols
	MinCashBalance  float64 // uncommitted cash an entry must leave behind
	AllowShort      bool
}

// Validate rejects limits that could never size a trade. Field names in
// the messages match the config keys so init failures read naturally.
func (l Limits) Validate() error {
	if l.PositionSizePct <= 0 || l.PositionSizePct > 1 {
		return fmt.Errorf("position_size_pct must be in (0, 1], got %g", l.PositionSizePct)
	}
	if l.StopLossPct < 0 || l.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in [0, 1), got %g", l.StopLossPct)
	}
	if l.TakeProfitPct < 0 {
		return fmt.Errorf("take_profit_pct must be >= 0, got %g", l.TakeProfitPct)
	}
	if l.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be >= 1, got %d", l.MaxPositions)
	}
	if l.MinCashBalance < 0 {
		return fmt.Errorf("min_cash_balance must be >= 0, got %g", l.MinCashBalance)
	}
	return nil
}

// Levels derives the protective prices for an entry at price. A zero
// pct leaves the level unset.
func (l Limits) Levels(side market.Side, price float64) (stop, take float64) {
	if l.StopLossPct > 0 {
		stop = price * (1 - side.Sign()*l.StopLossPct)
	}
	if l.TakeProfitPct > 0 {
		take = price * (1 + side.Sign()*l.TakeProfitPct)
	}
	return stop, take
}
