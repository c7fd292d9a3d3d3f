package domain

import "github.com/shopspring/decimal"

// ExitReason why a position is being (partially) closed.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTakeProfit    ExitReason = "take_profit"
	ExitTrailingStop  ExitReason = "trailing_stop"
	ExitTrendReversal ExitReason = "trend_reversal"
	ExitMarketExpiry  ExitReason = "market_expiry"
	ExitTimeStop      ExitReason = "time_stop"
	ExitPartialProfit ExitReason = "partial_profit"
	ExitManual        ExitReason = "manual_close"
)

// Partial reports whether the reason only sells part of the position.
func (r ExitReason) Partial() bool {
	return r == ExitPartialProfit
}

// ExitAction exit decided by the risk check. Position is a copy taken
// at decision time; Shares is how many shares to sell. Unpriced is set when
// no quote was available and Price is the last price seen for the token.
type ExitAction struct {
	Position Position        `json:"position"`
	Reason   ExitReason      `json:"reason"`
	Shares   decimal.Decimal `json:"shares"`
	Price    decimal.Decimal `json:"price"`
	Unpriced bool            `json:"unpriced,omitempty"`
}

// Full reports whether the action closes the position.
func (a ExitAction) Full() bool {
	return !a.Reason.Partial()
}
