package feed

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/pkg/retrier"
	"go.uber.org/zap"
)

const (
	depthLimit = 20
	tradeLimit = 500
	klineLimit = 100
)

// WindowLookup returns the active Polymarket window of a market.
type WindowLookup interface {
	Window(market domain.MarketKey) (MarketWindow, bool)
}

// ConnectionStatus reports whether a streaming collaborator is connected.
type ConnectionStatus interface {
	Connected() bool
}

// BinanceFeed polls Binance spot data per asset and publishes one snapshot
// per market.
type BinanceFeed struct {
	client  *binance.Client
	candles CandleSource
	windows WindowLookup
	stream  ConnectionStatus
	pub     Publisher
	retrier *retrier.Retrier
	l       *zap.Logger
	now     func() time.Time
}

// BinanceOption configures a BinanceFeed.
type BinanceOption func(*BinanceFeed)

// WithCandleSource overrides where candles come from.
func WithCandleSource(src CandleSource) BinanceOption {
	return func(f *BinanceFeed) {
		f.candles = src
	}
}

// WithWindows attaches market windows to snapshots.
func WithWindows(w WindowLookup) BinanceOption {
	return func(f *BinanceFeed) {
		f.windows = w
	}
}

// WithStream reports the Polymarket stream state in snapshots.
func WithStream(s ConnectionStatus) BinanceOption {
	return func(f *BinanceFeed) {
		f.stream = s
	}
}

// WithRetrier overrides the retry policy of REST calls.
func WithRetrier(r *retrier.Retrier) BinanceOption {
	return func(f *BinanceFeed) {
		f.retrier = r
	}
}

// WithFeedClock overrides the time source.
func WithFeedClock(now func() time.Time) BinanceOption {
	return func(f *BinanceFeed) {
		f.now = now
	}
}

// NewBinanceFeed creates a feed publishing to pub.
func NewBinanceFeed(client *binance.Client, pub Publisher, l *zap.Logger, opts ...BinanceOption) *BinanceFeed {
	f := &BinanceFeed{
		client:  client,
		pub:     pub,
		l:       l,
		retrier: retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(500*time.Millisecond)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.candles == nil {
		f.candles = NewBinanceCandles(client)
	}
	return f
}

// Run polls every interval until ctx is done.
func (f *BinanceFeed) Run(ctx context.Context, markets []domain.MarketKey, interval time.Duration) error {
	byAsset, assets := groupByAsset(markets)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, asset := range assets {
			snaps, err := f.Poll(ctx, asset, byAsset[asset])
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				f.l.Warn("binance poll failed", zap.String("asset", string(asset)), zap.Error(err))
				continue
			}
			for _, snap := range snaps {
				f.pub.Publish(snap)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll fetches depth, trades and candles of asset and builds a snapshot
// for each timeframe. Partial failures yield snapshots with the missing
// parts empty and BinanceConnected false; total failure is an error.
func (f *BinanceFeed) Poll(ctx context.Context, asset domain.Asset, timeframes []domain.Timeframe) ([]domain.MarketSnapshot, error) {
	var errs []error

	bids, asks, err := f.depth(ctx, asset)
	if err != nil {
		errs = append(errs, err)
	}
	trades, err := f.aggTrades(ctx, asset)
	if err != nil {
		errs = append(errs, err)
	}

	candles := make(map[string][]domain.MarketCandle)
	for _, tf := range timeframes {
		iv := tf.KlineInterval()
		if _, ok := candles[iv]; ok {
			continue
		}
		cs, err := retrier.DoWithData(f.retrier, ctx, func(ctx context.Context) ([]domain.MarketCandle, error) {
			return f.candles.Candles(ctx, asset, iv, klineLimit)
		})
		if err != nil {
			errs = append(errs, err)
		}
		candles[iv] = cs
	}

	if len(bids) == 0 && len(asks) == 0 && len(trades) == 0 && allEmpty(candles) {
		return nil, errors.Wrapf(stderrors.Join(append(errs, ErrNoData)...), "poll %s", asset)
	}

	now := f.now()
	mid := decimal.Zero
	if len(bids) > 0 && len(asks) > 0 {
		mid = bids[0].Price.Add(asks[0].Price).Div(decimal.NewFromInt(2))
	}

	out := make([]domain.MarketSnapshot, 0, len(timeframes))
	for _, tf := range timeframes {
		market := domain.MarketKey{Asset: asset, Timeframe: tf}
		closed, current := splitClosed(candles[tf.KlineInterval()], now)

		snap := domain.MarketSnapshot{
			Market:           market,
			CapturedAt:       now,
			Bids:             cloneLevels(bids),
			Asks:             cloneLevels(asks),
			Mid:              mid,
			Trades:           cloneTrades(trades),
			Candles:          closed,
			Current:          current,
			BinanceConnected: len(errs) == 0,
		}
		if f.windows != nil {
			if w, ok := f.windows.Window(market); ok {
				expiry := w.Expiry
				snap.Expiry = &expiry
				snap.Tokens = w.Tokens
			}
		}
		if f.stream != nil {
			snap.PolymarketConnected = f.stream.Connected()
		}
		out = append(out, snap)
	}

	if len(errs) > 0 {
		f.l.Debug("binance poll partial", zap.String("asset", string(asset)), zap.Error(stderrors.Join(errs...)))
	}
	return out, nil
}

func (f *BinanceFeed) depth(ctx context.Context, asset domain.Asset) ([]domain.OrderBookLevel, []domain.OrderBookLevel, error) {
	res, err := retrier.DoWithData(f.retrier, ctx, func(ctx context.Context) (*binance.DepthResponse, error) {
		return f.client.NewDepthService().Symbol(asset.Symbol()).Limit(depthLimit).Do(ctx)
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "binance depth %s", asset)
	}

	bids := make([]domain.OrderBookLevel, 0, len(res.Bids))
	for i, b := range res.Bids {
		v, err := parseDecimals(b.Price, b.Quantity)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "bid at index %d", i)
		}
		bids = append(bids, domain.OrderBookLevel{Price: v[0], Quantity: v[1]})
	}
	asks := make([]domain.OrderBookLevel, 0, len(res.Asks))
	for i, a := range res.Asks {
		v, err := parseDecimals(a.Price, a.Quantity)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "ask at index %d", i)
		}
		asks = append(asks, domain.OrderBookLevel{Price: v[0], Quantity: v[1]})
	}
	return bids, asks, nil
}

func (f *BinanceFeed) aggTrades(ctx context.Context, asset domain.Asset) ([]domain.TradeEvent, error) {
	res, err := retrier.DoWithData(f.retrier, ctx, func(ctx context.Context) ([]*binance.AggTrade, error) {
		return f.client.NewAggTradesService().Symbol(asset.Symbol()).Limit(tradeLimit).Do(ctx)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "binance agg trades %s", asset)
	}

	out := make([]domain.TradeEvent, 0, len(res))
	for i, t := range res {
		v, err := parseDecimals(t.Price, t.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "agg trade at index %d", i)
		}
		out = append(out, domain.TradeEvent{
			Time:           time.UnixMilli(t.Timestamp),
			Price:          v[0],
			Quantity:       v[1],
			BuyerAggressor: !t.IsBuyerMaker,
		})
	}
	return out, nil
}

func groupByAsset(markets []domain.MarketKey) (map[domain.Asset][]domain.Timeframe, []domain.Asset) {
	byAsset := make(map[domain.Asset][]domain.Timeframe)
	var order []domain.Asset
	for _, m := range markets {
		if _, ok := byAsset[m.Asset]; !ok {
			order = append(order, m.Asset)
		}
		byAsset[m.Asset] = append(byAsset[m.Asset], m.Timeframe)
	}
	return byAsset, order
}

func allEmpty(candles map[string][]domain.MarketCandle) bool {
	for _, cs := range candles {
		if len(cs) > 0 {
			return false
		}
	}
	return true
}

// snapshots never share backing arrays
func cloneLevels(in []domain.OrderBookLevel) []domain.OrderBookLevel {
	if in == nil {
		return nil
	}
	out := make([]domain.OrderBookLevel, len(in))
	copy(out, in)
	return out
}

func cloneTrades(in []domain.TradeEvent) []domain.TradeEvent {
	if in == nil {
		return nil
	}
	out := make([]domain.TradeEvent, len(in))
	copy(out, in)
	return out
}
