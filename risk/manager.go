// Package risk sizes entries and enforces the limits that keep one bad
// signal from sinking the account. Strategies stay opinion-only; every
// order that reaches the portfolio passes through here first.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/portfolio"
)

// PortfolioView is the read-only slice of the book the manager needs.
// *portfolio.Portfolio satisfies it.
type PortfolioView interface {
	Cash() float64
	Equity() float64
	OpenCount() int
	Position(symbol string) (portfolio.Position, bool)
}

type Violation struct {
	Code string
	Msg  string
}

// Decision carries the sizing outcome plus every violation found, not
// just the first, so rejection logs tell the whole story.
type Decision struct {
	Allowed    bool
	Violations []Violation

	Units          float64
	Notional       float64
	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reasons joins violation codes for compact logging.
func (d *Decision) Reasons() string {
	if len(d.Violations) == 0 {
		return ""
	}
	s := d.Violations[0].Code
	for _, v := range d.Violations[1:] {
		s += "," + v.Code
	}
	return s
}

type Manager struct {
	limits Limits
}

func NewManager(limits Limits) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("risk limits: %w", err)
	}
	return &Manager{limits: limits}, nil
}

func (m *Manager) Limits() Limits { return m.limits }

// SizeEntry turns a directional signal into a sized order, or explains
// why it cannot. The returned order is nil unless the decision allows.
//
// Units are floor(equity * position_size_pct / price). The entry must
// also leave MinCashBalance of uncommitted cash behind; shorts reserve
// their notional as collateral for that check even though the proceeds
// are credited on fill.
func (m *Manager) SizeEntry(symbol string, side market.Side, view PortfolioView, price float64, at time.Time, reason string) (*market.Order, Decision) {
	d := Decision{Allowed: true}

	if price <= 0 {
		d.add("NO_PRICE", fmt.Sprintf("entry price must be positive, got %g", price))
		return nil, d
	}

	if pos, ok := view.Position(symbol); ok {
		d.add("POSITION_EXISTS",
			fmt.Sprintf("%s already holds %g units %s", symbol, pos.Quantity(), pos.Side()))
	}
	if open := view.OpenCount(); open >= m.limits.MaxPositions {
		d.add("TOO_MANY_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", open, m.limits.MaxPositions))
	}
	if side == market.Short && !m.limits.AllowShort {
		d.add("SHORT_NOT_ALLOWED", "short entries are disabled")
	}

	equity := view.Equity()
	if equity <= 0 {
		d.add("INSUFFICIENT_EQUITY", fmt.Sprintf("equity %.2f cannot fund an entry", equity))
		return nil, d
	}

	budget := equity * m.limits.PositionSizePct
	units := math.Floor(budget / price)
	if units < 1 {
		d.add("INSUFFICIENT_CASH",
			fmt.Sprintf("budget %.2f at price %.2f sizes to zero units", budget, price))
		return nil, d
	}

	notional := units * price
	free := view.Cash() - notional
	if free < 0 {
		d.add("INSUFFICIENT_CASH",
			fmt.Sprintf("notional %.2f exceeds cash %.2f", notional, view.Cash()))
	} else if free < m.limits.MinCashBalance {
		d.add("MIN_CASH_BALANCE",
			fmt.Sprintf("entry leaves %.2f free cash, minimum is %.2f", free, m.limits.MinCashBalance))
	}

	stop, take := m.limits.Levels(side, price)
	d.Units = units
	d.Notional = notional
	d.PlannedRisk = PlannedRisk(units, price, stop)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, equity)
	d.PlannedRR = RR(price, stop, take)

	if !d.Allowed {
		return nil, d
	}
	return &market.Order{
		Symbol:  symbol,
		Side:    side,
		Units:   units,
		Price:   price,
		Stop:    stop,
		Take:    take,
		Trigger: market.TriggerSignal,
		Reason:  reason,
		Time:    at,
	}, d
}

// CheckExit tests the bar against the position's protective levels and
// returns the forced exit, if any. When both levels fall inside one
// bar the stop wins.
func (m *Manager) CheckExit(pos portfolio.Position, b market.Bar) (*market.Order, bool) {
	var stopHit, takeHit bool
	if pos.Side() == market.Long {
		stopHit = pos.Stop > 0 && b.Low <= pos.Stop
		takeHit = pos.Take > 0 && b.High >= pos.Take
	} else {
		stopHit = pos.Stop > 0 && b.High >= pos.Stop
		takeHit = pos.Take > 0 && b.Low <= pos.Take
	}
	if !stopHit && !takeHit {
		return nil, false
	}

	o := &market.Order{
		Symbol: pos.Symbol,
		Side:   pos.Side(),
		Exit:   true,
		Units:  pos.Quantity(),
		Time:   b.Time,
	}
	switch {
	case stopHit && takeHit:
		o.Price = pos.Stop
		o.Trigger = market.TriggerStopLoss
		o.Reason = "STOP&TAKE same bar (stop-first)"
	case stopHit:
		o.Price = pos.Stop
		o.Trigger = market.TriggerStopLoss
		o.Reason = "STOP"
	default:
		o.Price = pos.Take
		o.Trigger = market.TriggerTakeProfit
		o.Reason = "TAKE"
	}
	return o, true
}
