package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/market/indicators"
)

func newAggregator() *Aggregator {
	return NewAggregator(indicators.New(indicators.DefaultParams()), DefaultParams())
}

func lvl(p, q int64) domain.OrderBookLevel {
	return domain.OrderBookLevel{Price: decimal.NewFromInt(p), Quantity: decimal.NewFromInt(q)}
}

func trendCandles(n int, step float64) []domain.MarketCandle {
	out := make([]domain.MarketCandle, n)
	price := 1000.0
	for i := range out {
		next := price + step
		out[i] = domain.MarketCandle{
			OpenTime: time.Unix(int64(i*60), 0),
			Open:     decimal.NewFromFloat(price),
			High:     decimal.NewFromFloat(max(price, next) + 1),
			Low:      decimal.NewFromFloat(min(price, next) - 1),
			Close:    decimal.NewFromFloat(next),
			Volume:   decimal.NewFromInt(5),
		}
		price = next
	}
	return out
}

func vote(name domain.IndicatorName, v int) domain.IndicatorVote {
	return domain.IndicatorVote{Name: name, Value: float64(v), Vote: v}
}

func TestFuse(t *testing.T) {
	tests := []struct {
		name       string
		votes      []domain.IndicatorVote
		direction  domain.Direction
		confidence int
	}{
		{
			name:      "no indicators",
			votes:     nil,
			direction: domain.DirectionNeutral,
		},
		{
			name:       "single bullish indicator",
			votes:      []domain.IndicatorVote{vote(domain.IndicatorOBI, 1)},
			direction:  domain.DirectionBullish,
			confidence: 10,
		},
		{
			name:      "tie of plain votes",
			votes:     []domain.IndicatorVote{vote(domain.IndicatorOBI, 1), vote(domain.IndicatorWalls, -1)},
			direction: domain.DirectionNeutral,
		},
		{
			name: "weighted rsi offset by three bearish votes",
			votes: []domain.IndicatorVote{
				vote(domain.IndicatorRSI, 3), vote(domain.IndicatorOBI, -1),
				vote(domain.IndicatorCVD60, -1), vote(domain.IndicatorMACD, -1),
			},
			direction: domain.DirectionNeutral,
		},
		{
			name: "half point rounds up",
			votes: []domain.IndicatorVote{
				vote(domain.IndicatorOBI, 1), vote(domain.IndicatorWalls, 1),
				vote(domain.IndicatorPOC, 0), vote(domain.IndicatorMACD, -1),
			},
			direction:  domain.DirectionBullish,
			confidence: 3,
		},
		{
			name: "weak consensus floors at one",
			votes: []domain.IndicatorVote{
				vote(domain.IndicatorOBI, -1), vote(domain.IndicatorWalls, 0), vote(domain.IndicatorPOC, 0),
				vote(domain.IndicatorMACD, 0), vote(domain.IndicatorVWAP, 0), vote(domain.IndicatorEMACross, 0),
				vote(domain.IndicatorHAStreak, 0), vote(domain.IndicatorCVD60, 0), vote(domain.IndicatorCVD180, 0),
				vote(domain.IndicatorCVD300, 0), vote(domain.IndicatorDelta, 0), vote(domain.IndicatorRSI, 0),
			},
			direction:  domain.DirectionBearish,
			confidence: 1,
		},
		{
			name:       "weighted rsi alone clamps at ten",
			votes:      []domain.IndicatorVote{vote(domain.IndicatorRSI, 3)},
			direction:  domain.DirectionBullish,
			confidence: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Fuse(tt.votes, nil)
			assert.Equal(t, tt.direction, sig.Direction)
			assert.Equal(t, tt.confidence, sig.Confidence)
			assert.Equal(t, len(tt.votes), sig.Rationale.Counted())
		})
	}
}

func TestFuse_TallyKeepsRawPoints(t *testing.T) {
	sig := Fuse([]domain.IndicatorVote{vote(domain.IndicatorRSI, -3), vote(domain.IndicatorOBI, 1)}, nil)
	assert.Equal(t, 1, sig.Rationale.BullishPoints)
	assert.Equal(t, 3, sig.Rationale.BearishPoints)
	assert.Equal(t, domain.DirectionBearish, sig.Direction)
	assert.Equal(t, 10, sig.Confidence)
}

func TestRSIVote(t *testing.T) {
	tests := []struct {
		rsi  float64
		vote int
	}{
		{rsi: 10, vote: 3},
		{rsi: 24.9, vote: 3},
		{rsi: 25, vote: 2},
		{rsi: 29.9, vote: 2},
		{rsi: 30, vote: 0},
		{rsi: 50, vote: 0},
		{rsi: 70, vote: 0},
		{rsi: 70.1, vote: -2},
		{rsi: 75, vote: -2},
		{rsi: 75.1, vote: -3},
		{rsi: 100, vote: -3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.vote, RSIVote(tt.rsi), "rsi %v", tt.rsi)
	}
}

func TestEvaluate_SingleAvailableIndicator(t *testing.T) {
	// no mid: only wall detection has enough data
	snap := domain.MarketSnapshot{
		Bids: []domain.OrderBookLevel{
			lvl(99, 1), lvl(98, 1), lvl(97, 1), lvl(96, 1), lvl(95, 1),
			lvl(94, 1), lvl(93, 1), lvl(92, 1), lvl(91, 1), lvl(90, 60),
		},
		Asks: []domain.OrderBookLevel{lvl(101, 1)},
	}

	sig := newAggregator().Evaluate(snap)
	require.Equal(t, 1, sig.Rationale.Counted())
	assert.Equal(t, domain.DirectionBullish, sig.Direction)
	assert.Equal(t, 10, sig.Confidence)

	walls, ok := sig.Rationale.Vote(domain.IndicatorWalls)
	require.True(t, ok)
	assert.Equal(t, 1, walls.Vote)
	_, ok = sig.Rationale.Vote(domain.IndicatorOBI)
	assert.False(t, ok, "obi abstains without a mid price")
}

func TestEvaluate_EmptySnapshotIsNeutral(t *testing.T) {
	sig := newAggregator().Evaluate(domain.MarketSnapshot{})
	assert.Equal(t, domain.DirectionNeutral, sig.Direction)
	assert.Equal(t, 0, sig.Confidence)
	assert.Zero(t, sig.Rationale.Counted())
	assert.False(t, sig.RSITriggered)
}

func TestEvaluate_RisingSeriesRSI(t *testing.T) {
	sig := newAggregator().Evaluate(domain.MarketSnapshot{Candles: trendCandles(40, 2)})

	rsi, ok := sig.Rationale.Vote(domain.IndicatorRSI)
	require.True(t, ok)
	assert.InDelta(t, 100, rsi.Value, 1e-6)
	assert.LessOrEqual(t, rsi.Vote, 0, "an overbought reading never votes bullish")
	assert.Equal(t, -3, rsi.Vote, "a rising series is overbought and votes bearish")
	assert.True(t, sig.RSITriggered)
}

func TestEvaluate_FallingSeriesTriggersOversold(t *testing.T) {
	sig := newAggregator().Evaluate(domain.MarketSnapshot{Candles: trendCandles(40, -2)})

	rsi, ok := sig.Rationale.Vote(domain.IndicatorRSI)
	require.True(t, ok)
	assert.Equal(t, 3, rsi.Vote)
	assert.True(t, sig.RSITriggered)

	v, ok := sig.RSI()
	require.True(t, ok)
	assert.InDelta(t, 0, v, 1e-6)
}

func TestEvaluate_FlowVotes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	snap := domain.MarketSnapshot{
		CapturedAt: now,
		Trades: []domain.TradeEvent{
			{Time: now.Add(-5 * time.Second), Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(2), BuyerAggressor: true},
		},
	}

	sig := newAggregator().Evaluate(snap)
	assert.Equal(t, 4, sig.Rationale.Counted(), "three cvd windows and delta")
	assert.Equal(t, domain.DirectionBullish, sig.Direction)
	assert.Equal(t, 10, sig.Confidence)
	assert.Equal(t, 4, sig.Rationale.BullishPoints)
}

func TestAggregator_ShouldTrade(t *testing.T) {
	a := newAggregator()
	assert.True(t, a.ShouldTrade(domain.Signal{Direction: domain.DirectionBullish, Confidence: 4}))
	assert.False(t, a.ShouldTrade(domain.Signal{Direction: domain.DirectionBearish, Confidence: 3}))
	assert.False(t, a.ShouldTrade(domain.Signal{Direction: domain.DirectionNeutral, Confidence: 10}))
}
