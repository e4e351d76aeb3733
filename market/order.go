package market

import "time"

// Trigger records why an order was raised.
type Trigger int

const (
	TriggerSignal Trigger = iota
	TriggerStopLoss
	TriggerTakeProfit
	TriggerLiquidation
)

func (t Trigger) String() string {
	switch t {
	case TriggerStopLoss:
		return "stop_loss"
	case TriggerTakeProfit:
		return "take_profit"
	case TriggerLiquidation:
		return "liquidation"
	default:
		return "signal"
	}
}

// Order is a transient market-order instruction. It exists only between
// a decision and its fill; nothing persists orders.
type Order struct {
	Symbol string
	Side   Side // exposure side the order concerns
	Exit   bool // true closes the open position, false opens one
	Units  float64
	Price  float64 // reference price the fill policy starts from

	// Protective levels attached to entries, 0 means none
	Stop float64
	Take float64

	Trigger Trigger
	Reason  string
	Time    time.Time
}
