package strategies

import "github.com/alpaquero/alpaquero/market"

// NoopStrategy holds forever. It's meant as a wiring test: sessions run
// the full feed/risk/portfolio path without ever opening a position.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) MinBars() int { return 0 }

func (NoopStrategy) Reset() {}

func (NoopStrategy) OnBar(b market.Bar, _ Position) Decision {
	return hold("noop", b, "")
}
