package feed

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/updown/internal/domain"
)

// CandleSource fetches the latest candles of an asset, oldest first. The
// last candle may still be open.
type CandleSource interface {
	Candles(ctx context.Context, asset domain.Asset, interval string, limit int) ([]domain.MarketCandle, error)
}

// BinanceCandles reads spot klines from Binance.
type BinanceCandles struct {
	client *binance.Client
}

// NewBinanceCandles creates a Binance candle source.
func NewBinanceCandles(client *binance.Client) *BinanceCandles {
	return &BinanceCandles{client: client}
}

// Candles fetches kline data from Binance.
func (s *BinanceCandles) Candles(ctx context.Context, asset domain.Asset, interval string, limit int) ([]domain.MarketCandle, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(asset.Symbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "binance klines %s %s", asset, interval)
	}
	if len(klines) == 0 {
		return nil, errors.Wrapf(ErrNoData, "binance klines %s %s", asset, interval)
	}

	out := make([]domain.MarketCandle, 0, len(klines))
	for i, k := range klines {
		v, err := parseDecimals(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "binance kline at index %d", i)
		}
		out = append(out, domain.MarketCandle{
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      v[0],
			High:      v[1],
			Low:       v[2],
			Close:     v[3],
			Volume:    v[4],
			CloseTime: time.UnixMilli(k.CloseTime),
		})
	}
	return out, nil
}

// BybitCandles reads spot klines from Bybit V5.
type BybitCandles struct {
	client *bybit.Client
}

// NewBybitCandles creates a Bybit candle source.
func NewBybitCandles(client *bybit.Client) *BybitCandles {
	return &BybitCandles{client: client}
}

// Candles fetches kline data from Bybit. Bybit lists newest first.
func (s *BybitCandles) Candles(ctx context.Context, asset domain.Asset, interval string, limit int) ([]domain.MarketCandle, error) {
	iv, err := bybitInterval(interval)
	if err != nil {
		return nil, err
	}
	dur, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	res, err := s.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: "spot",
		Symbol:   bybit.SymbolV5(asset.Symbol()),
		Interval: iv,
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bybit klines %s %s", asset, interval)
	}
	if len(res.Result.List) == 0 {
		return nil, errors.Wrapf(ErrNoData, "bybit klines %s %s", asset, interval)
	}

	out := make([]domain.MarketCandle, 0, len(res.Result.List))
	for i, k := range res.Result.List {
		startMs, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline start time at index %d", i)
		}
		v, err := parseDecimals(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline at index %d", i)
		}
		open := time.UnixMilli(startMs)
		out = append(out, domain.MarketCandle{
			OpenTime:  open,
			Open:      v[0],
			High:      v[1],
			Low:       v[2],
			Close:     v[3],
			Volume:    v[4],
			CloseTime: open.Add(dur - time.Millisecond),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out, nil
}

func bybitInterval(interval string) (bybit.Interval, error) {
	switch interval {
	case "1m":
		return bybit.Interval1, nil
	case "5m":
		return bybit.Interval5, nil
	case "15m":
		return bybit.Interval15, nil
	case "1h":
		return bybit.Interval60, nil
	case "4h":
		return bybit.Interval240, nil
	case "1d":
		return bybit.IntervalD, nil
	}
	return "", errors.Errorf("unsupported bybit interval %q", interval)
}

// HyperliquidCandles reads perp candles from the Hyperliquid info API.
type HyperliquidCandles struct {
	info *hyperliquid.Info
	now  func() time.Time
}

// NewHyperliquidCandles creates a Hyperliquid candle source.
func NewHyperliquidCandles(info *hyperliquid.Info) *HyperliquidCandles {
	return &HyperliquidCandles{info: info, now: time.Now}
}

// Candles fetches a candle snapshot covering the last limit intervals.
func (s *HyperliquidCandles) Candles(ctx context.Context, asset domain.Asset, interval string, limit int) ([]domain.MarketCandle, error) {
	if s.info == nil {
		return nil, errors.New("hyperliquid info is nil")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	dur, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	endMs := s.now().UnixMilli()
	// two extra intervals absorb window rounding
	startMs := endMs - (int64(limit)+2)*dur.Milliseconds()

	candles, err := s.info.CandlesSnapshot(ctx, string(asset), interval, startMs, endMs)
	if err != nil {
		return nil, errors.Wrapf(err, "hyperliquid candles %s %s", asset, interval)
	}
	if len(candles) == 0 {
		return nil, errors.Wrapf(ErrNoData, "hyperliquid candles %s %s", asset, interval)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.MarketCandle, 0, len(candles))
	for i, c := range candles {
		v, err := parseDecimals(c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "hyperliquid candle at index %d", i)
		}
		out = append(out, domain.MarketCandle{
			OpenTime:  time.UnixMilli(c.TimeOpen),
			Open:      v[0],
			High:      v[1],
			Low:       v[2],
			Close:     v[3],
			Volume:    v[4],
			CloseTime: time.UnixMilli(c.TimeClose),
		})
	}
	return out, nil
}

// intervalDuration parses kline intervals such as 1m, 15m, 1h, 4h, 1d.
func intervalDuration(interval string) (time.Duration, error) {
	if n, ok := strings.CutSuffix(interval, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days <= 0 {
			return 0, errors.Errorf("invalid interval %q", interval)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		return 0, errors.Errorf("invalid interval %q", interval)
	}
	return d, nil
}

// splitClosed separates candles closed at now from the one still forming.
func splitClosed(candles []domain.MarketCandle, now time.Time) ([]domain.MarketCandle, *domain.MarketCandle) {
	if len(candles) == 0 {
		return nil, nil
	}
	last := candles[len(candles)-1]
	if last.CloseTime.After(now) {
		closed := make([]domain.MarketCandle, len(candles)-1)
		copy(closed, candles)
		return closed, &last
	}
	closed := make([]domain.MarketCandle, len(candles))
	copy(closed, candles)
	return closed, nil
}

// NewCandleSource picks the candle provider by name.
func NewCandleSource(provider string, bn *binance.Client, bb *bybit.Client, hl *hyperliquid.Info) (CandleSource, error) {
	switch strings.ToLower(provider) {
	case "", "binance":
		return NewBinanceCandles(bn), nil
	case "bybit":
		if bb == nil {
			return nil, errors.New("bybit client is nil")
		}
		return NewBybitCandles(bb), nil
	case "hyperliquid":
		if hl == nil {
			return nil, errors.New("hyperliquid info is nil")
		}
		return NewHyperliquidCandles(hl), nil
	}
	return nil, fmt.Errorf("unsupported candle provider %q", provider)
}
