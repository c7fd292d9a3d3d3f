package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/updown/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pos(entry, highest string, rsi bool) domain.Position {
	return domain.Position{
		MarketToken:      "tok",
		Market:           domain.MarketKey{Asset: domain.AssetBTC, Timeframe: domain.Timeframe15m},
		Side:             domain.SideUp,
		EntryPrice:       dec(entry),
		SizeUSD:          dec(entry).Mul(dec("10")),
		Shares:           dec("10"),
		OriginalShares:   dec("10"),
		EntryTime:        t0,
		OrderRef:         "ord",
		HighestPriceSeen: dec(highest),
		RSITriggered:     rsi,
	}
}

func expiring(p domain.Position, in time.Duration) domain.Position {
	p.Expiry = t0.Add(in)
	return p
}

func TestMarketExpiryDue(t *testing.T) {
	cfg := DefaultConfig()
	p := expiring(pos("0.40", "0.40", false), 15*time.Minute)

	assert.False(t, cfg.MarketExpiryDue(p, t0))
	assert.False(t, cfg.MarketExpiryDue(p, t0.Add(14*time.Minute-time.Second)))
	assert.True(t, cfg.MarketExpiryDue(p, t0.Add(14*time.Minute)), "at the threshold")
	assert.True(t, cfg.MarketExpiryDue(p, t0.Add(48*time.Hour)), "long expired")
	assert.False(t, cfg.MarketExpiryDue(pos("0.40", "0.40", false), t0.Add(48*time.Hour)), "unknown expiry")

	reason, hit := cfg.ForcedExitFor(pos("0.40", "0.40", false), t0.Add(48*time.Hour))
	assert.True(t, hit)
	assert.Equal(t, domain.ExitTimeStop, reason)
}

func TestExitReasonFor(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		pos      domain.Position
		price    string
		momentum float64
		age      time.Duration
		want     domain.ExitReason
	}{
		{name: "stop loss at exact threshold", pos: pos("0.40", "0.40", false), price: "0.352", want: domain.ExitStopLoss},
		{name: "stop loss wins over every other rule", pos: pos("0.40", "0.50", false), price: "0.352", momentum: -1, age: 5 * time.Hour, want: domain.ExitStopLoss},
		{name: "take profit", pos: pos("0.40", "0.60", false), price: "0.60", want: domain.ExitTakeProfit},
		{name: "rsi take profit is tighter", pos: pos("0.40", "0.54", true), price: "0.54", want: domain.ExitTakeProfit},
		{name: "trailing stop", pos: pos("0.40", "0.50", false), price: "0.46", want: domain.ExitTrailingStop},
		{name: "rsi trailing stop is tighter", pos: pos("0.40", "0.42", true), price: "0.399", want: domain.ExitTrailingStop},
		{name: "trend reversal below floor", pos: pos("0.40", "0.44", false), price: "0.41", want: domain.ExitTrendReversal},
		{name: "time stop", pos: pos("0.40", "0.40", false), price: "0.40", age: 4 * time.Hour, want: domain.ExitTimeStop},
		{name: "market expiry ahead of time stop", pos: expiring(pos("0.40", "0.40", false), 4*time.Hour), price: "0.40", age: 4 * time.Hour, want: domain.ExitMarketExpiry},
		{name: "market expiry ahead of partial profit", pos: expiring(pos("0.40", "0.50", false), 30*time.Second), price: "0.50", want: domain.ExitMarketExpiry},
		{name: "stop loss wins over market expiry", pos: expiring(pos("0.40", "0.40", false), 0), price: "0.30", want: domain.ExitStopLoss},
		{name: "partial profit", pos: pos("0.40", "0.50", false), price: "0.50", want: domain.ExitPartialProfit},
		{name: "rsi partial profit is tighter", pos: pos("0.40", "0.46", true), price: "0.46", want: domain.ExitPartialProfit},
		{name: "nothing", pos: pos("0.40", "0.42", false), price: "0.41"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := cfg.ExitReasonFor(tt.pos, dec(tt.price), tt.momentum, t0.Add(tt.age))
			if tt.want == "" {
				assert.False(t, hit, "unexpected %s", reason)
				return
			}
			assert.True(t, hit)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestStopLossBoundary(t *testing.T) {
	cfg := DefaultConfig()
	p := pos("0.40", "0.40", false)

	assert.True(t, cfg.StopLossHit(p, dec("0.352")))
	assert.False(t, cfg.StopLossHit(p, dec("0.3521")))
}

func TestTrailingStop(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.TrailingStopHit(pos("0.40", "0.40", false), dec("0.30")), "never armed without a run-up")
	assert.False(t, cfg.TrailingStopHit(pos("0.40", "0.42", false), dec("0.38")), "peak gain below threshold")
	assert.True(t, cfg.TrailingStopHit(pos("0.40", "0.60", false), dec("0.552")), "exactly 8% off the peak")
	assert.False(t, cfg.TrailingStopHit(pos("0.40", "0.60", false), dec("0.553")))
}

func TestTrendReversal(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		highest  string
		price    string
		momentum float64
		want     bool
	}{
		{name: "gave back to under 5%", highest: "0.44", price: "0.41", want: true},
		{name: "peak under 10% never reverses", highest: "0.43", price: "0.40", momentum: -1, want: false},
		{name: "momentum against and under half the peak", highest: "0.60", price: "0.48", momentum: -0.6, want: true},
		{name: "momentum against but above half the peak", highest: "0.60", price: "0.52", momentum: -0.6, want: false},
		{name: "weak momentum", highest: "0.60", price: "0.48", momentum: -0.4, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.TrendReversal(pos("0.40", tt.highest, false), dec(tt.price), tt.momentum))
		})
	}
}

func TestPositionSize(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		confidence int
		want       string
	}{
		{confidence: -1, want: "1"},
		{confidence: 0, want: "1"},
		{confidence: 5, want: "3"},
		{confidence: 7, want: "3.8"},
		{confidence: 10, want: "5"},
		{confidence: 12, want: "5"},
	}
	for _, tt := range tests {
		got := cfg.PositionSize(tt.confidence)
		assert.True(t, dec(tt.want).Equal(got), "confidence %d: got %s", tt.confidence, got)
	}
}

func TestDynamicProfitTarget(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		rsi       bool
		remaining time.Duration
		max       string
		want      string
	}{
		{name: "plenty of time", remaining: 15 * time.Minute, want: "35"},
		{name: "some time", remaining: 400 * time.Second, want: "30"},
		{name: "middle band", remaining: 200 * time.Second, want: "25"},
		{name: "almost expired", remaining: time.Minute, want: "25"},
		{name: "rsi entry", rsi: true, remaining: 15 * time.Minute, want: "45"},
		{name: "capped", rsi: true, remaining: 15 * time.Minute, max: "40", want: "40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			if tt.max != "" {
				c.MaxProfitTargetPct = dec(tt.max)
			}
			got := c.DynamicProfitTarget(pos("0.40", "0.40", tt.rsi), tt.remaining)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestShouldSkipMarket(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.ShouldSkipMarket(domain.Timeframe15m, 419*time.Second))
	assert.False(t, cfg.ShouldSkipMarket(domain.Timeframe15m, 420*time.Second))
	assert.True(t, cfg.ShouldSkipMarket(domain.Timeframe1h, 599*time.Second))
	assert.False(t, cfg.ShouldSkipMarket(domain.Timeframe1h, 10*time.Minute))
	assert.False(t, cfg.ShouldSkipMarket(domain.Timeframe4h, time.Second))
}
