// Package trader submits entry and exit orders for outcome tokens.
package trader

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

// Executor places orders. A returned error means nothing was filled.
type Executor interface {
	SubmitEntry(ctx context.Context, token string, side domain.Side, usd decimal.Decimal) (domain.EntryFill, error)
	SubmitExit(ctx context.Context, token string, shares decimal.Decimal) (domain.ExitFill, error)
}

// Pricer returns the current price of an outcome token.
type Pricer interface {
	Price(ctx context.Context, token string) (decimal.Decimal, error)
}
