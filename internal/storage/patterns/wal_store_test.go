package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/learner"
)

var (
	btc15 = domain.MarketKey{Asset: domain.AssetBTC, Timeframe: domain.Timeframe15m}
	eth1h = domain.MarketKey{Asset: domain.AssetETH, Timeframe: domain.Timeframe1h}
)

func newLearner() *learner.Learner {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return learner.New(learner.DefaultConfig(), learner.WithClock(func() time.Time { return at }))
}

func TestWALStore_SaveUpdateAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	l := newLearner()
	bad := domain.NewPatternKey(btc15, domain.DirectionBullish, 25)
	good := domain.NewPatternKey(eth1h, domain.DirectionBearish, 50)

	for i := range 5 {
		pnl := -1.0
		if i == 0 {
			pnl = 2
		}
		require.NoError(t, store.SaveUpdate(l.Record(bad, pnl, pnl*10)))
	}
	require.NoError(t, store.SaveUpdate(l.Record(good, 1.5, 30)))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	state, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, state.Patterns, 2)

	st := state.Patterns[bad]
	assert.Equal(t, bad, st.Key)
	assert.Equal(t, 5, st.Trades)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 4, st.Losses)

	assert.Equal(t, 6, state.Overall.Trades)
	assert.Equal(t, 2, state.Overall.Wins)
	assert.Equal(t, []domain.PatternKey{bad}, state.Overall.Avoid)

	restored := newLearner()
	restored.Restore(state)
	ok, _ := restored.ShouldTradePattern(bad)
	assert.False(t, ok)
	ok, _ = restored.ShouldTradePattern(good)
	assert.True(t, ok)
}

func TestWALStore_Checkpoint(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	l := newLearner()
	key := domain.NewPatternKey(btc15, domain.DirectionBearish, 75)
	l.Record(key, 1, 20)
	l.Record(key, 1, 10)

	require.NoError(t, store.Checkpoint(l.Snapshot()))

	state, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, state.Patterns, key)
	assert.Equal(t, 2, state.Patterns[key].Trades)
	assert.InDelta(t, 2.0, state.Overall.TotalPnL, 1e-9)
}

func TestWALStore_Empty(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Patterns)
	assert.Zero(t, state.Overall.Trades)

	var nilStore *WALStore
	assert.Error(t, nilStore.SaveUpdate(learner.Update{}))
	assert.NoError(t, nilStore.Close())
}
