// Package feed delivers bars to a live session. A BarFeed is a one-way
// stream: consumers range over Bars until it closes, then inspect Err
// to learn whether the feed ended cleanly.
package feed

import "github.com/alpaquero/alpaquero/market"

// BarFeed is the transport-agnostic source of bars. Bars returns the
// same channel on every call; it is closed when the feed stops. Err is
// valid after the channel closes and reports the terminal error, nil
// for a clean end. Close stops the feed early and is safe to call more
// than once.
type BarFeed interface {
	Bars() <-chan market.Bar
	Err() error
	Close() error
}
