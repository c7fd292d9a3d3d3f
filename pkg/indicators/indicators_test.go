package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestEMA(t *testing.T) {
	t.Run("not enough data", func(t *testing.T) {
		_, ok := EMA([]float64{1, 2, 3}, 5)
		assert.False(t, ok)
	})

	t.Run("constant series", func(t *testing.T) {
		out, ok := EMA(series(30, func(int) float64 { return 7 }), 5)
		require.True(t, ok)
		require.Len(t, out, 26)
		for _, v := range out {
			assert.InDelta(t, 7, v, 1e-9)
		}
	})

	t.Run("seeded with simple average", func(t *testing.T) {
		v, ok := LastEMA([]float64{1, 2, 3, 4, 5}, 5)
		require.True(t, ok)
		assert.InDelta(t, 3, v, 1e-9)
	})
}

func TestRSI(t *testing.T) {
	t.Run("needs period plus one closes", func(t *testing.T) {
		_, ok := RSI(series(14, func(i int) float64 { return float64(i) }), 14)
		assert.False(t, ok)
	})

	t.Run("strictly increasing reads 100", func(t *testing.T) {
		v, ok := RSI(series(40, func(i int) float64 { return 100 + float64(i) }), 14)
		require.True(t, ok)
		assert.InDelta(t, 100, v, 1e-6)
	})

	t.Run("strictly decreasing reads 0", func(t *testing.T) {
		v, ok := RSI(series(40, func(i int) float64 { return 100 - float64(i) }), 14)
		require.True(t, ok)
		assert.InDelta(t, 0, v, 1e-6)
	})

	t.Run("alternating stays in range", func(t *testing.T) {
		v, ok := RSI(series(40, func(i int) float64 { return 100 + float64(i%2) }), 14)
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	})
}

func TestMACD(t *testing.T) {
	t.Run("not enough data", func(t *testing.T) {
		_, ok := MACD(series(33, func(i int) float64 { return float64(i) }), 12, 26, 9)
		assert.False(t, ok)
	})

	t.Run("constant series is flat", func(t *testing.T) {
		v, ok := MACD(series(60, func(int) float64 { return 10 }), 12, 26, 9)
		require.True(t, ok)
		assert.InDelta(t, 0, v.Line, 1e-9)
		assert.InDelta(t, 0, v.Signal, 1e-9)
		assert.InDelta(t, 0, v.Histogram, 1e-9)
	})

	t.Run("uptrend has positive line", func(t *testing.T) {
		v, ok := MACD(series(80, func(i int) float64 { return 100 + float64(i) }), 12, 26, 9)
		require.True(t, ok)
		assert.Greater(t, v.Line, 0.0)
		assert.InDelta(t, v.Line-v.Signal, v.Histogram, 1e-9)
	})
}

func TestFloat64s(t *testing.T) {
	out := Float64s([]decimal.Decimal{decimal.RequireFromString("1.5"), decimal.NewFromInt(2)})
	assert.Equal(t, []float64{1.5, 2}, out)
}
