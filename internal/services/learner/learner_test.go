package learner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/updown/internal/domain"
)

var (
	btc15 = domain.MarketKey{Asset: domain.AssetBTC, Timeframe: domain.Timeframe15m}
	eth1h = domain.MarketKey{Asset: domain.AssetETH, Timeframe: domain.Timeframe1h}
	sol15 = domain.MarketKey{Asset: domain.AssetSOL, Timeframe: domain.Timeframe15m}
)

func record(l *Learner, key domain.PatternKey, wins, losses int) {
	for range wins {
		l.Record(key, 1, 25)
	}
	for range losses {
		l.Record(key, -0.5, -12)
	}
}

func TestAvoidList(t *testing.T) {
	l := New(DefaultConfig())
	bad := domain.NewPatternKey(btc15, domain.DirectionBullish, 25)
	other := domain.NewPatternKey(btc15, domain.DirectionBullish, 50)

	record(l, bad, 1, 3)
	ok, _ := l.ShouldTradePattern(bad)
	assert.True(t, ok, "four trades are below the sample threshold")

	upd := l.Record(bad, -0.5, -12)
	assert.True(t, upd.Avoided)
	assert.Equal(t, 5, upd.Stats.Trades)
	assert.InDelta(t, 0.2, upd.Stats.WinRate(), 1e-9)
	assert.Equal(t, []domain.PatternKey{bad}, upd.Overall.Avoid)

	ok, reason := l.ShouldTradePattern(bad)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)

	ok, reason = l.ShouldTradePattern(other)
	assert.True(t, ok)
	assert.Equal(t, "OK", reason)

	// already listed, not added twice
	upd = l.Record(bad, -0.5, -12)
	assert.False(t, upd.Avoided)
	assert.Len(t, upd.Overall.Avoid, 1)
}

func TestShouldTradePattern_LowWinRateWithoutAvoidEntry(t *testing.T) {
	l := New(DefaultConfig())
	key := domain.NewPatternKey(eth1h, domain.DirectionBearish, 80)
	l.Restore(State{Patterns: map[domain.PatternKey]domain.PatternStats{
		key: {Trades: 10, Wins: 2, Losses: 8},
	}})

	ok, reason := l.ShouldTradePattern(key)
	assert.False(t, ok)
	assert.Equal(t, "pattern win rate too low (20%)", reason)
}

func TestConfidenceBoost(t *testing.T) {
	tests := []struct {
		name   string
		wins   int
		losses int
		want   int
	}{
		{name: "strong", wins: 4, losses: 1, want: 2},
		{name: "exactly seventy", wins: 7, losses: 3, want: 2},
		{name: "good", wins: 3, losses: 2, want: 1},
		{name: "average", wins: 5, losses: 5, want: 0},
		{name: "weak", wins: 2, losses: 3, want: -1},
		{name: "poor", wins: 1, losses: 4, want: -3},
		{name: "not enough samples", wins: 4, losses: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(DefaultConfig())
			key := domain.NewPatternKey(btc15, domain.DirectionBearish, 75)
			record(l, key, tt.wins, tt.losses)
			assert.Equal(t, tt.want, l.ConfidenceBoost(key))
		})
	}

	assert.Zero(t, New(DefaultConfig()).ConfidenceBoost(domain.NewPatternKey(btc15, domain.DirectionBullish, 50)))
}

func TestAdjustedPositionSize(t *testing.T) {
	key := domain.NewPatternKey(btc15, domain.DirectionBullish, 50)

	tests := []struct {
		name   string
		wins   int
		losses int
		base   string
		want   string
	}{
		{name: "not enough trades", wins: 0, losses: 9, base: "3", want: "3"},
		{name: "losing halves", wins: 3, losses: 7, base: "3", want: "1.5"},
		{name: "losing floors at min", wins: 3, losses: 7, base: "1.5", want: "1"},
		{name: "winning grows", wins: 7, losses: 3, base: "3", want: "3.9"},
		{name: "winning caps at max", wins: 7, losses: 3, base: "4", want: "5"},
		{name: "in between", wins: 5, losses: 5, base: "3", want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(DefaultConfig())
			record(l, key, tt.wins, tt.losses)
			got := l.AdjustedPositionSize(decimal.RequireFromString(tt.base))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestAdjustedProfitTarget(t *testing.T) {
	l := New(DefaultConfig())
	base := decimal.NewFromInt(25)

	assert.True(t, base.Equal(l.AdjustedProfitTarget(base, btc15)))

	// wins average 50%, win rate 100%
	key := domain.NewPatternKey(btc15, domain.DirectionBullish, 50)
	l.Record(key, 2, 50)
	l.Record(key, 2, 50)
	assert.True(t, decimal.NewFromInt(40).Equal(l.AdjustedProfitTarget(base, btc15)))
	assert.True(t, base.Equal(l.AdjustedProfitTarget(base, eth1h)), "other markets unaffected")

	big := domain.NewPatternKey(sol15, domain.DirectionBullish, 50)
	l.Record(big, 5, 200)
	assert.True(t, decimal.NewFromInt(85).Equal(l.AdjustedProfitTarget(base, sol15)), "capped at max target")
}

func TestBestOpportunities(t *testing.T) {
	l := New(DefaultConfig())
	record(l, domain.NewPatternKey(btc15, domain.DirectionBullish, 50), 3, 1)
	record(l, domain.NewPatternKey(btc15, domain.DirectionBearish, 80), 1, 0)
	record(l, domain.NewPatternKey(eth1h, domain.DirectionBearish, 50), 6, 0)
	record(l, domain.NewPatternKey(sol15, domain.DirectionBullish, 50), 3, 0)

	best := l.BestOpportunities()
	require.Len(t, best, 2)
	assert.Equal(t, eth1h, best[0].Market)
	assert.InDelta(t, 1.0, best[0].WinRate, 1e-9)
	assert.Equal(t, btc15, best[1].Market)
	assert.Equal(t, 5, best[1].Trades)
	assert.InDelta(t, 0.8, best[1].WinRate, 1e-9)
}

func TestRecordTradeOutcome(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(DefaultConfig(), WithClock(func() time.Time { return at }))

	upd := l.RecordTradeOutcome(domain.TradeRecord{
		Market:     btc15,
		Side:       domain.SideDown,
		EntryRSI:   78,
		PnL:        decimal.RequireFromString("0.4"),
		PnLPercent: decimal.RequireFromString("20"),
	})

	want := domain.PatternKey{Asset: domain.AssetBTC, Timeframe: domain.Timeframe15m, Direction: domain.DirectionBearish, Regime: domain.RSIRegimeOverbought}
	assert.Equal(t, want, upd.Stats.Key)
	assert.Equal(t, 1, upd.Stats.Wins)
	assert.InDelta(t, 20, upd.Stats.AvgWinPct, 1e-9)
	assert.Equal(t, at, upd.Stats.LastUpdated)
	assert.Equal(t, 1, upd.Overall.Trades)
	assert.InDelta(t, 0.4, upd.Overall.TotalPnL, 1e-9)
}

func TestSnapshotRestore(t *testing.T) {
	l := New(DefaultConfig())
	bad := domain.NewPatternKey(btc15, domain.DirectionBullish, 25)
	good := domain.NewPatternKey(eth1h, domain.DirectionBearish, 50)
	record(l, bad, 1, 4)
	record(l, good, 4, 1)

	restored := New(DefaultConfig())
	restored.Restore(l.Snapshot())

	assert.Equal(t, l.Snapshot(), restored.Snapshot())
	ok, _ := restored.ShouldTradePattern(bad)
	assert.False(t, ok)
	assert.Equal(t, 2, restored.ConfidenceBoost(good))

	// snapshots are copies
	snap := restored.Snapshot()
	snap.Overall.Avoid[0] = good
	ok, _ = restored.ShouldTradePattern(good)
	assert.True(t, ok)
}

func TestSummary(t *testing.T) {
	l := New(DefaultConfig())
	assert.Equal(t, "No trades yet - learning in progress", l.Summary())

	record(l, domain.NewPatternKey(btc15, domain.DirectionBullish, 25), 1, 4)
	assert.Equal(t, "Learning: 5 trades | 20% win rate | $-1.00 | Best: BTC 15m (20%) | Avoiding 1 low-performing patterns", l.Summary())
}
