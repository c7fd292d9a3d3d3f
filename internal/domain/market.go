package domain

import (
	"fmt"
	"strings"
	"time"
)

// Asset underlying coin of an up/down market.
type Asset string

const (
	AssetBTC Asset = "BTC"
	AssetETH Asset = "ETH"
	AssetSOL Asset = "SOL"
	AssetXRP Asset = "XRP"
)

// ParseAsset validates a coin ticker.
func ParseAsset(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case AssetBTC, AssetETH, AssetSOL, AssetXRP:
		return a, nil
	}
	return "", fmt.Errorf("unsupported asset %q", s)
}

// Symbol returns the USDT spot symbol of the underlying, e.g. BTCUSDT.
func (a Asset) Symbol() string {
	return string(a) + "USDT"
}

// Slug is the short lowercase name used in 15m and 4h market slugs.
func (a Asset) Slug() string {
	return strings.ToLower(string(a))
}

// LongSlug is the full coin name used in hourly and daily market slugs.
func (a Asset) LongSlug() string {
	switch a {
	case AssetBTC:
		return "bitcoin"
	case AssetETH:
		return "ethereum"
	case AssetSOL:
		return "solana"
	default:
		return strings.ToLower(string(a))
	}
}

// Timeframe resolution window of a binary market.
type Timeframe string

const (
	Timeframe15m   Timeframe = "15m"
	Timeframe1h    Timeframe = "1h"
	Timeframe4h    Timeframe = "4h"
	TimeframeDaily Timeframe = "daily"
)

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	switch tf {
	case Timeframe15m, Timeframe1h, Timeframe4h, TimeframeDaily:
		return tf, nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// Duration returns the length of one market window.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case TimeframeDaily:
		return 24 * time.Hour
	}
	return 0
}

// KlineInterval is the candle interval feeding indicators for the timeframe.
func (t Timeframe) KlineInterval() string {
	switch t {
	case Timeframe4h:
		return "15m"
	case TimeframeDaily:
		return "1h"
	default:
		return "1m"
	}
}

// MarketKey identifies one (asset, timeframe) market.
type MarketKey struct {
	Asset     Asset     `json:"asset"`
	Timeframe Timeframe `json:"timeframe"`
}

// String returns e.g. BTC_15m.
func (k MarketKey) String() string {
	return fmt.Sprintf("%s_%s", k.Asset, k.Timeframe)
}

// ParseMarketKey is the inverse of MarketKey.String.
func ParseMarketKey(s string) (MarketKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 {
		return MarketKey{}, fmt.Errorf("invalid market key %q", s)
	}
	asset, err := ParseAsset(parts[0])
	if err != nil {
		return MarketKey{}, err
	}
	tf, err := ParseTimeframe(parts[1])
	if err != nil {
		return MarketKey{}, err
	}
	return MarketKey{Asset: asset, Timeframe: tf}, nil
}

// Universe builds the cartesian product of assets and timeframes in the given order.
func Universe(assets []Asset, timeframes []Timeframe) []MarketKey {
	keys := make([]MarketKey, 0, len(assets)*len(timeframes))
	for _, a := range assets {
		for _, tf := range timeframes {
			keys = append(keys, MarketKey{Asset: a, Timeframe: tf})
		}
	}
	return keys
}

// MarketTokens outcome tokens of the currently active market window.
type MarketTokens struct {
	Slug      string `json:"slug"`
	UpToken   string `json:"up_token"`
	DownToken string `json:"down_token"`
}

// Resolved reports whether both outcome tokens are known.
func (t MarketTokens) Resolved() bool {
	return t.UpToken != "" && t.DownToken != ""
}

// TokenFor returns the token bought for the side.
func (t MarketTokens) TokenFor(side Side) string {
	if side == SideDown {
		return t.DownToken
	}
	return t.UpToken
}
