package risk

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

// Config risk limits and exit thresholds. Percentages are plain numbers (12 means 12%).
type Config struct {
	MinPositionSizeUSD  decimal.Decimal
	BasePositionSizeUSD decimal.Decimal
	MaxPositionSizeUSD  decimal.Decimal
	MaxPositions        int

	StopLossPct         decimal.Decimal
	TakeProfitPct       decimal.Decimal
	RSITakeProfitPct    decimal.Decimal
	TrailingStopPct     decimal.Decimal
	RSITrailingStopPct  decimal.Decimal
	PartialProfitPct    decimal.Decimal
	RSIPartialProfitPct decimal.Decimal
	MaxProfitTargetPct  decimal.Decimal
	// PartialExitFraction share of current shares sold by a partial exit.
	PartialExitFraction decimal.Decimal

	MaxPositionAge time.Duration
	// ExitBeforeExpiry positions are closed once their market is this close
	// to expiry.
	ExitBeforeExpiry  time.Duration
	Cooldown          time.Duration
	DailyLossLimitPct decimal.Decimal

	// MinTimeToExpiry markets closer to expiry than this are not entered.
	// Timeframes without an entry are never skipped.
	MinTimeToExpiry map[domain.Timeframe]time.Duration
}

// DefaultConfig returns the production risk settings.
func DefaultConfig() Config {
	return Config{
		MinPositionSizeUSD:  decimal.NewFromInt(1),
		BasePositionSizeUSD: decimal.NewFromInt(3),
		MaxPositionSizeUSD:  decimal.NewFromInt(5),
		MaxPositions:        2,

		StopLossPct:         decimal.NewFromInt(12),
		TakeProfitPct:       decimal.NewFromInt(50),
		RSITakeProfitPct:    decimal.NewFromInt(35),
		TrailingStopPct:     decimal.NewFromInt(8),
		RSITrailingStopPct:  decimal.NewFromInt(5),
		PartialProfitPct:    decimal.NewFromInt(25),
		RSIPartialProfitPct: decimal.NewFromInt(15),
		MaxProfitTargetPct:  decimal.NewFromInt(85),
		PartialExitFraction: decimal.RequireFromString("0.5"),

		MaxPositionAge:    4 * time.Hour,
		ExitBeforeExpiry:  60 * time.Second,
		Cooldown:          30 * time.Second,
		DailyLossLimitPct: decimal.NewFromInt(20),

		MinTimeToExpiry: map[domain.Timeframe]time.Duration{
			domain.Timeframe15m: 420 * time.Second,
			domain.Timeframe1h:  600 * time.Second,
		},
	}
}

func (c Config) takeProfitPct(p domain.Position) decimal.Decimal {
	if p.RSITriggered {
		return c.RSITakeProfitPct
	}
	return c.TakeProfitPct
}

func (c Config) trailingStopPct(p domain.Position) decimal.Decimal {
	if p.RSITriggered {
		return c.RSITrailingStopPct
	}
	return c.TrailingStopPct
}

func (c Config) partialProfitPct(p domain.Position) decimal.Decimal {
	if p.RSITriggered {
		return c.RSIPartialProfitPct
	}
	return c.PartialProfitPct
}
