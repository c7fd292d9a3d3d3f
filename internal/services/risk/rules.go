package risk

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")

	// trend reversal needs a recorded run-up of at least this much
	reversalPeakPct = decimal.NewFromInt(10)
	// and fires once the gain has given back to below this
	reversalFloorPct = decimal.NewFromInt(5)
)

const reversalMomentum = -0.5

// ExitReasonFor evaluates the exit rules for a position at the given price in
// priority order and returns the first one that matches. The position's
// HighestPriceSeen must already include price.
func (c Config) ExitReasonFor(p domain.Position, price decimal.Decimal, momentum float64, now time.Time) (domain.ExitReason, bool) {
	switch {
	case c.StopLossHit(p, price):
		return domain.ExitStopLoss, true
	case c.TakeProfitHit(p, price):
		return domain.ExitTakeProfit, true
	case c.TrailingStopHit(p, price):
		return domain.ExitTrailingStop, true
	case c.TrendReversal(p, price, momentum):
		return domain.ExitTrendReversal, true
	}
	if reason, hit := c.ForcedExitFor(p, now); hit {
		return reason, true
	}
	if c.PartialProfitDue(p, price) {
		return domain.ExitPartialProfit, true
	}
	return "", false
}

// ForcedExitFor evaluates the rules that do not depend on price: market
// expiry first, then the time stop.
func (c Config) ForcedExitFor(p domain.Position, now time.Time) (domain.ExitReason, bool) {
	switch {
	case c.MarketExpiryDue(p, now):
		return domain.ExitMarketExpiry, true
	case c.TimeStopHit(p, now):
		return domain.ExitTimeStop, true
	}
	return "", false
}

// MarketExpiryDue the position's market expires within ExitBeforeExpiry,
// or has already expired. Positions without a known expiry never match.
func (c Config) MarketExpiryDue(p domain.Position, now time.Time) bool {
	left, ok := p.ToExpiry(now)
	return ok && left <= c.ExitBeforeExpiry
}

// StopLossHit P&L at price is at or below -StopLossPct.
func (c Config) StopLossHit(p domain.Position, price decimal.Decimal) bool {
	return p.PnLPercent(price).LessThanOrEqual(c.StopLossPct.Neg())
}

// TakeProfitHit P&L at price reached the full take-profit target.
func (c Config) TakeProfitHit(p domain.Position, price decimal.Decimal) bool {
	return p.PnLPercent(price).GreaterThanOrEqual(c.takeProfitPct(p))
}

// TrailingStopHit the stop arms once the peak gain reaches the trailing
// threshold and fires when price retraces from the peak by the same amount.
func (c Config) TrailingStopHit(p domain.Position, price decimal.Decimal) bool {
	if !p.HighestPriceSeen.GreaterThan(p.EntryPrice) {
		return false
	}
	threshold := c.trailingStopPct(p)
	if p.PeakGainPercent().LessThan(threshold) {
		return false
	}
	drop := p.HighestPriceSeen.Sub(price).Div(p.HighestPriceSeen).Mul(hundred)
	return drop.GreaterThanOrEqual(threshold)
}

// TrendReversal a position that ran up at least 10% and is now giving it
// back: gain under 5%, or momentum against it while below half the peak gain.
func (c Config) TrendReversal(p domain.Position, price decimal.Decimal, momentum float64) bool {
	peak := p.PeakGainPercent()
	if peak.LessThan(reversalPeakPct) {
		return false
	}
	gain := p.PnLPercent(price)
	if gain.LessThan(reversalFloorPct) {
		return true
	}
	return momentum < reversalMomentum && gain.LessThan(peak.Mul(half))
}

// TimeStopHit the position is older than MaxPositionAge.
func (c Config) TimeStopHit(p domain.Position, now time.Time) bool {
	return c.MaxPositionAge > 0 && p.Age(now) >= c.MaxPositionAge
}

// PartialProfitDue live P&L reached the partial threshold and the position
// has not been partially exited yet.
func (c Config) PartialProfitDue(p domain.Position, price decimal.Decimal) bool {
	if p.PartiallyExited {
		return false
	}
	return p.PnLPercent(price).GreaterThanOrEqual(c.partialProfitPct(p))
}

// PositionSize scales the entry size linearly from min to max with confidence (1..10).
func (c Config) PositionSize(confidence int) decimal.Decimal {
	if confidence <= 0 {
		return c.MinPositionSizeUSD
	}
	span := c.MaxPositionSizeUSD.Sub(c.MinPositionSizeUSD)
	size := c.MinPositionSizeUSD.Add(span.Mul(decimal.NewFromInt(int64(confidence))).Div(decimal.NewFromInt(10)))
	return decimal.Min(c.MaxPositionSizeUSD, decimal.Max(c.MinPositionSizeUSD, size))
}

// DynamicProfitTarget profit target in percent for the position given the
// time left until the market resolves.
func (c Config) DynamicProfitTarget(p domain.Position, remaining time.Duration) decimal.Decimal {
	target := c.PartialProfitPct
	if p.RSITriggered {
		target = target.Add(decimal.NewFromInt(10))
	}

	switch {
	case remaining > 600*time.Second:
		target = target.Add(decimal.NewFromInt(10))
	case remaining > 300*time.Second:
		target = target.Add(decimal.NewFromInt(5))
	case remaining < 120*time.Second:
		target = decimal.Max(decimal.NewFromInt(25), target.Sub(decimal.NewFromInt(20)))
	}

	return decimal.Min(target, c.MaxProfitTargetPct)
}

// ShouldSkipMarket the market is too close to expiry to enter.
func (c Config) ShouldSkipMarket(tf domain.Timeframe, remaining time.Duration) bool {
	floor, ok := c.MinTimeToExpiry[tf]
	if !ok {
		return false
	}
	return remaining < floor
}
