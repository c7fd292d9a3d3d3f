package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Side outcome token held by a position.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// SideFor maps a signal direction to the token side to buy.
func SideFor(d Direction) (Side, bool) {
	switch d {
	case DirectionBullish:
		return SideUp, true
	case DirectionBearish:
		return SideDown, true
	}
	return "", false
}

// Direction is the signal direction that opens this side.
func (s Side) Direction() Direction {
	if s == SideDown {
		return DirectionBearish
	}
	return DirectionBullish
}

// Position open holding of one outcome token.
type Position struct {
	MarketToken      string          `json:"market_token"`
	Market           MarketKey       `json:"market"`
	Side             Side            `json:"side"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	SizeUSD          decimal.Decimal `json:"size_usd"`
	Shares           decimal.Decimal `json:"shares"`
	OriginalShares   decimal.Decimal `json:"original_shares"`
	EntryTime        time.Time       `json:"entry_time"`
	OrderRef         string          `json:"order_ref"`
	Expiry           time.Time       `json:"expiry"`
	HighestPriceSeen decimal.Decimal `json:"highest_price_seen"`
	PartiallyExited  bool            `json:"partially_exited"`
	RSITriggered     bool            `json:"rsi_triggered"`

	// entry context, used to attribute the outcome to a learner pattern
	EntryRSI   float64 `json:"entry_rsi"`
	Confidence int     `json:"confidence"`
}

// NewPosition builds a position from a filled entry order.
func NewPosition(token string, market MarketKey, side Side, fill EntryFill, at time.Time, rsiTriggered bool) (Position, error) {
	p := Position{
		MarketToken:      token,
		Market:           market,
		Side:             side,
		EntryPrice:       fill.FilledPrice,
		SizeUSD:          fill.FilledPrice.Mul(fill.FilledShares),
		Shares:           fill.FilledShares,
		OriginalShares:   fill.FilledShares,
		EntryTime:        at,
		OrderRef:         fill.OrderRef,
		HighestPriceSeen: fill.FilledPrice,
		RSITriggered:     rsiTriggered,
	}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// Validate checks the position invariants.
func (p Position) Validate() error {
	if p.MarketToken == "" {
		return errors.New("position token is required")
	}
	if !p.EntryPrice.IsPositive() {
		return errors.Errorf("entry price must be positive, got %s", p.EntryPrice)
	}
	if !p.Shares.IsPositive() {
		return errors.Errorf("shares must be positive, got %s", p.Shares)
	}
	if p.Shares.GreaterThan(p.OriginalShares) {
		return errors.Errorf("shares %s exceed original shares %s", p.Shares, p.OriginalShares)
	}
	if p.HighestPriceSeen.LessThan(p.EntryPrice) {
		return errors.Errorf("highest price %s below entry %s", p.HighestPriceSeen, p.EntryPrice)
	}
	return nil
}

// PnLPercent returns the unrealised gain at price, in percent of entry.
func (p Position) PnLPercent(price decimal.Decimal) decimal.Decimal {
	return PercentChange(p.EntryPrice, price)
}

// PeakGainPercent returns the best unrealised gain seen so far.
func (p Position) PeakGainPercent() decimal.Decimal {
	return PercentChange(p.EntryPrice, p.HighestPriceSeen)
}

// PnL returns the dollar result of selling shares at price.
func (p Position) PnL(price, shares decimal.Decimal) decimal.Decimal {
	return price.Sub(p.EntryPrice).Mul(shares)
}

// ToExpiry returns the time left until the market expires. The second
// result is false when the expiry is unknown.
func (p Position) ToExpiry(now time.Time) (time.Duration, bool) {
	if p.Expiry.IsZero() {
		return 0, false
	}
	return p.Expiry.Sub(now), true
}

// Age returns how long the position has been open.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// PercentChange returns (to - from) / from * 100. Zero base yields zero.
func PercentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(hundred)
}

// EntryFill result of a filled entry order.
type EntryFill struct {
	OrderRef     string
	FilledPrice  decimal.Decimal
	FilledShares decimal.Decimal
}

// ExitFill result of a filled exit order.
type ExitFill struct {
	FilledPrice decimal.Decimal
}
