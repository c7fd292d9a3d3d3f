package dashboard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/risk"
	"github.com/vadiminshakov/updown/internal/status"
	"github.com/vadiminshakov/updown/internal/storage/ledger"
)

func TestRender(t *testing.T) {
	btc := domain.MarketKey{Asset: domain.AssetBTC, Timeframe: domain.Timeframe15m}
	st := status.Status{
		At:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Mode: status.ModePaper,
		Risk: risk.State{OpenPositions: 1, MaxPositions: 2, DailyPnL: decimal.RequireFromString("-1.5"), TradingEnabled: false},
		Opportunities: []domain.MarketOpportunity{{
			Market:    btc,
			Score:     7,
			Signal:    domain.Signal{Direction: domain.DirectionBullish, Confidence: 6},
			Reason:    "MACD+",
			ToExpiry:  9 * time.Minute,
			HasExpiry: true,
		}},
		Scanned: 8,
		Positions: []status.Position{{
			Position: domain.Position{
				Market:     btc,
				Side:       domain.SideUp,
				Shares:     decimal.RequireFromString("7.5"),
				EntryPrice: decimal.RequireFromString("0.4"),
			},
			Price:      decimal.RequireFromString("0.5"),
			HasPrice:   true,
			PnLPercent: decimal.NewFromInt(25),
		}},
		Today:   ledger.Stats{Trades: 2, Wins: 1, Losses: 1},
		Summary: "No trades yet - learning in progress",
		Cash:    decimal.NewFromInt(97),
		HasCash: true,
	}

	out := Render(st)
	assert.Contains(t, out, "UPDOWN PAPER")
	assert.Contains(t, out, "BTC_15m")
	assert.Contains(t, out, "POSITIONS 1/2")
	assert.Contains(t, out, "7.50 sh @ 0.400")
	assert.Contains(t, out, "TRADING HALTED")
	assert.Contains(t, out, "cash $97.00")
	assert.Contains(t, out, "learning in progress")
}

func TestRender_Empty(t *testing.T) {
	out := Render(status.Status{Mode: status.ModeMonitor, Scanned: 3, Risk: risk.State{TradingEnabled: true}})
	assert.Contains(t, out, "UPDOWN MONITOR")
	assert.Contains(t, out, "none of 3 scanned markets")
	assert.Contains(t, out, "no open positions")
	assert.NotContains(t, out, "TRADING HALTED")
}
