package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookLevel price level with resting quantity.
type OrderBookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// TradeEvent single print from the trade tape.
type TradeEvent struct {
	Time     time.Time
	Price    decimal.Decimal
	Quantity decimal.Decimal
	// BuyerAggressor is true when the taker was buying.
	BuyerAggressor bool
}

// Notional returns price * quantity.
func (t TradeEvent) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// MarketCandle single OHLCV candlestick.
type MarketCandle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// MarketSnapshot is a read-only view of one market at CapturedAt.
// Producers build fresh slices for every snapshot and never touch a
// snapshot after publishing it, so consumers may share it freely.
type MarketSnapshot struct {
	Market     MarketKey
	CapturedAt time.Time

	// Bids sorted best (highest) first, Asks best (lowest) first.
	Bids []OrderBookLevel
	Asks []OrderBookLevel
	Mid  decimal.Decimal

	Trades []TradeEvent

	// Candles holds closed candles, oldest first.
	Candles []MarketCandle
	Current *MarketCandle

	Expiry *time.Time
	Tokens MarketTokens

	BinanceConnected    bool
	PolymarketConnected bool
}

// HasBook reports whether both sides of the order book are populated.
func (s MarketSnapshot) HasBook() bool {
	return len(s.Bids) > 0 && len(s.Asks) > 0
}

// TimeToExpiry returns the remaining market lifetime, floored at zero.
func (s MarketSnapshot) TimeToExpiry(now time.Time) (time.Duration, bool) {
	if s.Expiry == nil {
		return 0, false
	}
	remaining := s.Expiry.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
