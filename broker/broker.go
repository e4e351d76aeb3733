// Package broker executes orders against an account. The paper broker
// is the only implementation; replay and live trading both drive it,
// differing only in where bars come from and how ids are generated.
package broker

import (
	"context"

	"github.com/alpaquero/alpaquero/market"
	"github.com/alpaquero/alpaquero/pkg/id"
	"github.com/alpaquero/alpaquero/portfolio"
)

type Broker interface {
	Submit(ctx context.Context, o *market.Order) (portfolio.Fill, error)
	Account(ctx context.Context) (Account, error)
}

type Account struct {
	ID       string
	Currency string
	Cash     float64
	Equity   float64

	Unrealized    float64
	OpenPositions int
}

// IDSource names new trades. Replays use id.Sequence, live uses ULIDs.
type IDSource interface {
	Next() string
}

// ULIDs is the live IDSource.
type ULIDs struct{}

func (ULIDs) Next() string { return id.New() }
