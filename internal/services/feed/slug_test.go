package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/updown/internal/domain"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSlug(t *testing.T) {
	btc := domain.AssetBTC
	eth := domain.AssetETH

	tests := []struct {
		name   string
		market domain.MarketKey
		now    string
		want   string
	}{
		{name: "15m aligned down", market: domain.MarketKey{Asset: btc, Timeframe: domain.Timeframe15m}, now: "2026-03-01T12:02:03Z", want: "btc-updown-15m-1772366400"},
		{name: "4h offset by an hour", market: domain.MarketKey{Asset: btc, Timeframe: domain.Timeframe4h}, now: "2026-03-01T12:02:03Z", want: "btc-updown-4h-1772355600"},
		{name: "1h winter time", market: domain.MarketKey{Asset: btc, Timeframe: domain.Timeframe1h}, now: "2026-03-01T12:02:03Z", want: "bitcoin-up-or-down-march-1-7am-et"},
		{name: "1h summer time crosses day", market: domain.MarketKey{Asset: btc, Timeframe: domain.Timeframe1h}, now: "2026-07-15T03:47:00Z", want: "bitcoin-up-or-down-july-14-11pm-et"},
		{name: "1h noon", market: domain.MarketKey{Asset: eth, Timeframe: domain.Timeframe1h}, now: "2026-01-10T17:10:00Z", want: "ethereum-up-or-down-january-10-12pm-et"},
		{name: "1h midnight", market: domain.MarketKey{Asset: eth, Timeframe: domain.Timeframe1h}, now: "2026-01-10T05:10:00Z", want: "ethereum-up-or-down-january-10-12am-et"},
		{name: "daily before noon", market: domain.MarketKey{Asset: eth, Timeframe: domain.TimeframeDaily}, now: "2026-01-10T16:30:00Z", want: "ethereum-up-or-down-on-january-10"},
		{name: "daily after noon", market: domain.MarketKey{Asset: eth, Timeframe: domain.TimeframeDaily}, now: "2026-01-10T18:00:00Z", want: "ethereum-up-or-down-on-january-11"},
		{name: "daily summer evening", market: domain.MarketKey{Asset: domain.AssetSOL, Timeframe: domain.TimeframeDaily}, now: "2026-07-15T03:47:00Z", want: "solana-up-or-down-on-july-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Slug(tt.market, utc(tt.now))
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Slug(domain.MarketKey{Asset: btc, Timeframe: "5m"}, utc("2026-01-10T18:00:00Z"))
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	tests := []struct {
		name string
		tf   domain.Timeframe
		now  string
		want string
	}{
		{name: "15m", tf: domain.Timeframe15m, now: "2026-03-01T12:02:03Z", want: "2026-03-01T12:15:00Z"},
		{name: "1h", tf: domain.Timeframe1h, now: "2026-03-01T12:02:03Z", want: "2026-03-01T13:00:00Z"},
		{name: "4h", tf: domain.Timeframe4h, now: "2026-03-01T12:02:03Z", want: "2026-03-01T13:00:00Z"},
		{name: "daily winter before noon", tf: domain.TimeframeDaily, now: "2026-01-10T16:30:00Z", want: "2026-01-10T17:00:00Z"},
		{name: "daily winter after noon", tf: domain.TimeframeDaily, now: "2026-01-10T18:00:00Z", want: "2026-01-11T17:00:00Z"},
		{name: "daily summer", tf: domain.TimeframeDaily, now: "2026-07-15T03:47:00Z", want: "2026-07-15T16:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Expiry(tt.tf, utc(tt.now))
			assert.True(t, ok)
			assert.True(t, utc(tt.want).Equal(got), "got %s", got)
		})
	}
}
