package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/updown/internal/domain"
)

var day = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openPosition(t *testing.T, token, price string) domain.Position {
	t.Helper()
	p, err := domain.NewPosition(token,
		domain.MarketKey{Asset: domain.AssetBTC, Timeframe: domain.Timeframe15m},
		domain.SideUp,
		domain.EntryFill{OrderRef: "ref-" + token, FilledPrice: decimal.RequireFromString(price), FilledShares: decimal.NewFromInt(10)},
		day, true)
	require.NoError(t, err)
	p.Confidence = 7
	return p
}

func exit(p domain.Position, reason domain.ExitReason, price, shares string, at time.Time) domain.TradeRecord {
	return domain.NewTradeRecord(p, reason, decimal.RequireFromString(price), decimal.RequireFromString(shares), at)
}

func TestStore_Journal(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	p := openPosition(t, "tok", "0.50")
	id, err := s.LogEntry(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = s.LogExit(ctx, exit(p, domain.ExitPartialProfit, "0.75", "5", day.Add(time.Minute)))
	require.NoError(t, err)
	_, err = s.LogExit(ctx, exit(p, domain.ExitStopLoss, "0.25", "5", day.Add(2*time.Minute)))
	require.NoError(t, err)

	trades, err := s.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 3)

	assert.Equal(t, ActionBuy, trades[0].Action)
	assert.Equal(t, "BTC_15m", trades[0].Market)
	assert.Equal(t, domain.SideUp, trades[0].Side)
	assert.Equal(t, 7, trades[0].Confidence)
	assert.True(t, decimal.NewFromInt(5).Equal(trades[0].SizeUSD))
	assert.True(t, day.Equal(trades[0].Timestamp))

	assert.Equal(t, ActionPartial, trades[1].Action)
	assert.Equal(t, string(domain.ExitPartialProfit), trades[1].Reason)
	assert.True(t, decimal.RequireFromString("1.25").Equal(trades[1].PnL))

	assert.Equal(t, ActionSell, trades[2].Action)
	assert.True(t, decimal.RequireFromString("-1.25").Equal(trades[2].PnL))
	assert.True(t, decimal.NewFromInt(-50).Equal(trades[2].PnLPercent))

	last, err := s.RecentTrades(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, ActionSell, last[0].Action)
}

func TestStore_DailyStats(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	empty, err := s.DailyStats(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", empty.Date)
	assert.Zero(t, empty.Trades)
	assert.Zero(t, empty.WinRate())

	p := openPosition(t, "tok", "0.50")
	for _, r := range []domain.TradeRecord{
		exit(p, domain.ExitTakeProfit, "0.75", "10", day),
		exit(p, domain.ExitStopLoss, "0.375", "4", day.Add(time.Hour)),
		exit(p, domain.ExitTimeStop, "0.50", "10", day.Add(2*time.Hour)),
		exit(p, domain.ExitTakeProfit, "1", "1", day.Add(24*time.Hour)),
	} {
		_, err := s.LogExit(ctx, r)
		require.NoError(t, err)
	}

	st, err := s.DailyStats(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Trades)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses, "flat trades are neither wins nor losses")
	assert.True(t, decimal.RequireFromString("2").Equal(st.TotalPnL), st.TotalPnL.String())
	assert.True(t, decimal.RequireFromString("2.5").Equal(st.BestTrade))
	assert.True(t, decimal.RequireFromString("-0.5").Equal(st.WorstTrade))

	next, err := s.DailyStats(ctx, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, next.Trades)

	all, err := s.AllTimeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, all.Trades)
	assert.Equal(t, 2, all.Wins)
	assert.Equal(t, 1, all.Losses)
	assert.True(t, decimal.RequireFromString("2.5").Equal(all.TotalPnL), all.TotalPnL.String())
	assert.True(t, decimal.RequireFromString("2.5").Equal(all.BestTrade))
	assert.True(t, decimal.RequireFromString("-0.5").Equal(all.WorstTrade))
}

func TestStore_DailyStatsOneSidedDay(t *testing.T) {
	tests := []struct {
		name        string
		prices      []string
		best, worst string
	}{
		{name: "losses only", prices: []string{"0.40", "0.45"}, best: "-0.5", worst: "-1"},
		{name: "wins only", prices: []string{"0.60", "0.55"}, best: "1", worst: "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := openStore(t)
			p := openPosition(t, "tok", "0.50")

			for i, price := range tt.prices {
				_, err := s.LogExit(ctx, exit(p, domain.ExitTimeStop, price, "10", day.Add(time.Duration(i)*time.Minute)))
				require.NoError(t, err)
			}

			st, err := s.DailyStats(ctx, day)
			require.NoError(t, err)
			assert.Equal(t, 2, st.Trades)
			assert.True(t, decimal.RequireFromString(tt.best).Equal(st.BestTrade), st.BestTrade.String())
			assert.True(t, decimal.RequireFromString(tt.worst).Equal(st.WorstTrade), st.WorstTrade.String())
		})
	}
}

func TestStore_AllTimeStatsEmpty(t *testing.T) {
	s := openStore(t)

	_, err := s.LogEntry(context.Background(), openPosition(t, "tok", "0.40"))
	require.NoError(t, err)

	all, err := s.AllTimeStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, all.Trades)
	assert.True(t, all.TotalPnL.IsZero())
}
