package feed

import (
	"context"
	"encoding/json"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/pkg/retrier"
	"go.uber.org/zap"
)

const (
	handshakeTimeout   = 30 * time.Second
	readTimeout        = 60 * time.Second
	pingInterval       = 20 * time.Second
	writeTimeout       = 5 * time.Second
	tokenCheckInterval = 5 * time.Second
)

var errResubscribe = errors.New("token set changed")

// PolymarketStream keeps best-ask prices of subscribed outcome tokens up to
// date from the CLOB market channel.
type PolymarketStream struct {
	url       string
	prices    *TokenPrices
	retrier   *retrier.Retrier
	l         *zap.Logger
	dialer    websocket.Dialer
	connected atomic.Bool
}

// NewPolymarketStream creates a stream writing into prices.
func NewPolymarketStream(url string, prices *TokenPrices, l *zap.Logger) *PolymarketStream {
	s := &PolymarketStream{
		url:    url,
		prices: prices,
		l:      l,
		dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
	s.retrier = retrier.New(
		retrier.WithMaxRetries(retrier.Unlimited),
		retrier.WithInitialInterval(time.Second),
		retrier.WithMaxInterval(30*time.Second),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			l.Warn("polymarket stream reconnecting", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	)
	return s
}

// Connected reports whether a session is currently open.
func (s *PolymarketStream) Connected() bool {
	return s.connected.Load()
}

// Run keeps a subscription to the tokens returned by tokens open until ctx
// is done, reconnecting on failure and whenever the token set changes.
func (s *PolymarketStream) Run(ctx context.Context, tokens func() []string) error {
	for {
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			assets := tokens()
			if len(assets) == 0 {
				return errors.Wrap(ErrNoData, "no tokens to subscribe")
			}
			return s.session(ctx, assets, tokens)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errResubscribe) {
			return err
		}
	}
}

func (s *PolymarketStream) session(ctx context.Context, assets []string, tokens func() []string) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial polymarket stream")
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"assets_ids": assets, "type": "market"}); err != nil {
		return errors.Wrap(err, "subscribe")
	}

	s.connected.Store(true)
	defer s.connected.Store(false)
	s.l.Info("polymarket stream subscribed", zap.Int("tokens", len(assets)))

	sessCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// unblocks ReadMessage once the session is over
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()
	go s.ping(sessCtx, conn)
	go s.watchTokens(sessCtx, cancel, assets, tokens)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return errors.Wrap(err, "set read deadline")
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if cause := context.Cause(sessCtx); cause != nil {
				if errors.Is(cause, errResubscribe) {
					return retrier.Permanent(errResubscribe)
				}
				return cause
			}
			return errors.Wrap(err, "read polymarket stream")
		}
		s.apply(msg)
	}
}

func (s *PolymarketStream) watchTokens(ctx context.Context, cancel context.CancelCauseFunc, assets []string, tokens func() []string) {
	ticker := time.NewTicker(tokenCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !slices.Equal(assets, tokens()) {
				cancel(errResubscribe)
				return
			}
		}
	}
}

func (s *PolymarketStream) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.l.Debug("polymarket ping failed", zap.Error(err))
				return
			}
		}
	}
}

type streamLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type streamEvent struct {
	EventType    string        `json:"event_type"`
	AssetID      string        `json:"asset_id"`
	Asks         []streamLevel `json:"asks"`
	PriceChanges []struct {
		AssetID string `json:"asset_id"`
		BestAsk string `json:"best_ask"`
	} `json:"price_changes"`
}

// apply folds one stream message into the price book. Book snapshots arrive
// as arrays and set the lowest ask; price_change events carry best asks.
func (s *PolymarketStream) apply(msg []byte) {
	if len(msg) > 0 && msg[0] == '[' {
		var events []streamEvent
		if err := json.Unmarshal(msg, &events); err != nil {
			s.l.Debug("skip stream message", zap.Error(err))
			return
		}
		for _, ev := range events {
			s.applyBook(ev)
		}
		return
	}

	var ev streamEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		// PONG and other plain text frames
		return
	}
	switch ev.EventType {
	case "book":
		s.applyBook(ev)
	case "price_change":
		for _, ch := range ev.PriceChanges {
			if ch.AssetID == "" || ch.BestAsk == "" {
				continue
			}
			if p, err := decimal.NewFromString(ch.BestAsk); err == nil {
				s.prices.Set(ch.AssetID, p)
			}
		}
	}
}

func (s *PolymarketStream) applyBook(ev streamEvent) {
	if ev.AssetID == "" {
		return
	}
	var best decimal.Decimal
	found := false
	for _, a := range ev.Asks {
		p, err := decimal.NewFromString(a.Price)
		if err != nil {
			continue
		}
		if !found || p.LessThan(best) {
			best, found = p, true
		}
	}
	if found {
		s.prices.Set(ev.AssetID, best)
	}
}
