package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_PnLPercent(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		price    string
		expected string
	}{
		{name: "flat", entry: "0.40", price: "0.40", expected: "0"},
		{name: "gain", entry: "0.40", price: "0.60", expected: "50"},
		{name: "exact stop loss", entry: "0.40", price: "0.352", expected: "-12"},
		{name: "loss", entry: "0.50", price: "0.25", expected: "-50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Position{EntryPrice: decimal.RequireFromString(tt.entry)}
			got := p.PnLPercent(decimal.RequireFromString(tt.price))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), "got %s", got)
		})
	}
}

func TestPosition_PnL(t *testing.T) {
	p := Position{EntryPrice: decimal.RequireFromString("0.40")}
	pnl := p.PnL(decimal.RequireFromString("0.60"), decimal.NewFromInt(10))
	assert.True(t, pnl.Equal(decimal.NewFromInt(2)), "got %s", pnl)
}

func TestNewPosition(t *testing.T) {
	market := MarketKey{Asset: AssetBTC, Timeframe: Timeframe15m}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("valid fill", func(t *testing.T) {
		fill := EntryFill{OrderRef: "ref-1", FilledPrice: decimal.RequireFromString("0.40"), FilledShares: decimal.NewFromInt(10)}
		p, err := NewPosition("tok", market, SideUp, fill, at, true)
		require.NoError(t, err)
		assert.True(t, p.SizeUSD.Equal(decimal.NewFromInt(4)))
		assert.True(t, p.HighestPriceSeen.Equal(p.EntryPrice))
		assert.True(t, p.OriginalShares.Equal(p.Shares))
		assert.True(t, p.RSITriggered)
		assert.False(t, p.PartiallyExited)
	})

	t.Run("zero shares rejected", func(t *testing.T) {
		fill := EntryFill{OrderRef: "ref-2", FilledPrice: decimal.RequireFromString("0.40"), FilledShares: decimal.Zero}
		_, err := NewPosition("tok", market, SideUp, fill, at, false)
		require.Error(t, err)
	})

	t.Run("zero price rejected", func(t *testing.T) {
		fill := EntryFill{OrderRef: "ref-3", FilledPrice: decimal.Zero, FilledShares: decimal.NewFromInt(1)}
		_, err := NewPosition("tok", market, SideDown, fill, at, false)
		require.Error(t, err)
	})
}

func TestPosition_Validate(t *testing.T) {
	base := Position{
		MarketToken:      "tok",
		EntryPrice:       decimal.RequireFromString("0.5"),
		Shares:           decimal.NewFromInt(4),
		OriginalShares:   decimal.NewFromInt(4),
		HighestPriceSeen: decimal.RequireFromString("0.5"),
	}
	require.NoError(t, base.Validate())

	tooMany := base
	tooMany.Shares = decimal.NewFromInt(5)
	assert.Error(t, tooMany.Validate())

	lowPeak := base
	lowPeak.HighestPriceSeen = decimal.RequireFromString("0.4")
	assert.Error(t, lowPeak.Validate())

	negative := base
	negative.Shares = decimal.NewFromInt(-1)
	assert.Error(t, negative.Validate())
}

func TestSideFor(t *testing.T) {
	side, ok := SideFor(DirectionBullish)
	require.True(t, ok)
	assert.Equal(t, SideUp, side)

	side, ok = SideFor(DirectionBearish)
	require.True(t, ok)
	assert.Equal(t, SideDown, side)

	_, ok = SideFor(DirectionNeutral)
	assert.False(t, ok)

	assert.Equal(t, DirectionBearish, SideDown.Direction())
}
