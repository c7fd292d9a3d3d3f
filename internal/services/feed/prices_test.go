package feed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/updown/pkg/retrier"
)

type fakeMidpoints struct {
	prices map[string]decimal.Decimal
	calls  int
}

func (f *fakeMidpoints) Midpoint(_ context.Context, token string) (decimal.Decimal, error) {
	f.calls++
	p, ok := f.prices[token]
	if !ok {
		return decimal.Zero, ErrNoData
	}
	return p, nil
}

func TestTokenPrices(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewTokenPrices()
	p.now = func() time.Time { return now }

	p.Set("a", decimal.RequireFromString("0.4"))
	now = now.Add(time.Minute)
	p.Set("b", decimal.RequireFromString("0.6"))

	q, ok := p.Get("a")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.4").Equal(q.Price))

	assert.Len(t, p.Prices([]string{"a", "b", "c"}, 0), 2)
	fresh := p.Prices([]string{"a", "b"}, 30*time.Second)
	assert.Len(t, fresh, 1)
	assert.Contains(t, fresh, "b")
}

func TestQuotes_Price(t *testing.T) {
	book := NewTokenPrices()
	book.Set("streamed", decimal.RequireFromString("0.52"))
	mid := &fakeMidpoints{prices: map[string]decimal.Decimal{"polled": decimal.RequireFromString("0.31")}}
	q := NewQuotes(book, mid, retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Millisecond)), time.Minute)

	p, err := q.Price(context.Background(), "streamed")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.52").Equal(p))
	assert.Zero(t, mid.calls)

	p, err = q.Price(context.Background(), "polled")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.31").Equal(p))
	_, cached := book.Get("polled")
	assert.True(t, cached)

	mid.calls = 0
	_, err = q.Price(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 1, mid.calls, "missing data is not retried")

	got := q.Prices(context.Background(), []string{"streamed", "unknown"})
	assert.Len(t, got, 1)
}
