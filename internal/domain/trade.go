package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord realised exit of a position, full or partial.
type TradeRecord struct {
	MarketToken  string          `json:"market_token"`
	Market       MarketKey       `json:"market"`
	Side         Side            `json:"side"`
	OrderRef     string          `json:"order_ref"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	ExitPrice    decimal.Decimal `json:"exit_price"`
	Shares       decimal.Decimal `json:"shares"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_pct"`
	Reason       ExitReason      `json:"reason"`
	Partial      bool            `json:"partial"`
	RSITriggered bool            `json:"rsi_triggered"`
	EntryRSI     float64         `json:"entry_rsi"`
	EntryTime    time.Time       `json:"entry_time"`
	ExitTime     time.Time       `json:"exit_time"`
}

// NewTradeRecord builds the record of selling shares of p at price.
func NewTradeRecord(p Position, reason ExitReason, price, shares decimal.Decimal, at time.Time) TradeRecord {
	return TradeRecord{
		MarketToken:  p.MarketToken,
		Market:       p.Market,
		Side:         p.Side,
		OrderRef:     p.OrderRef,
		EntryPrice:   p.EntryPrice,
		ExitPrice:    price,
		Shares:       shares,
		PnL:          p.PnL(price, shares),
		PnLPercent:   p.PnLPercent(price),
		Reason:       reason,
		Partial:      reason.Partial(),
		RSITriggered: p.RSITriggered,
		EntryRSI:     p.EntryRSI,
		EntryTime:    p.EntryTime,
		ExitTime:     at,
	}
}

// Pattern is the learner key the trade is attributed to.
func (t TradeRecord) Pattern() PatternKey {
	return NewPatternKey(t.Market, t.Side.Direction(), t.EntryRSI)
}

// String returns a human-readable string representation.
func (t TradeRecord) String() string {
	return fmt.Sprintf("%s %s %s shares @ %s -> %s pnl %s (%s)",
		t.Market, t.Side, t.Shares.StringFixed(2), t.EntryPrice.StringFixed(3),
		t.ExitPrice.StringFixed(3), t.PnL.StringFixed(2), t.Reason)
}
