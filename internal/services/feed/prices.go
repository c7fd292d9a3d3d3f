package feed

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/pkg/retrier"
)

// TokenQuote last known price of an outcome token.
type TokenQuote struct {
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// TokenPrices concurrency-safe book of outcome token prices.
type TokenPrices struct {
	mu     sync.RWMutex
	quotes map[string]TokenQuote
	now    func() time.Time
}

// NewTokenPrices creates an empty price book.
func NewTokenPrices() *TokenPrices {
	return &TokenPrices{quotes: make(map[string]TokenQuote), now: time.Now}
}

// Set records the price of a token.
func (p *TokenPrices) Set(token string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.quotes[token] = TokenQuote{Price: price, UpdatedAt: p.now()}
}

// Get returns the last quote of a token.
func (p *TokenPrices) Get(token string) (TokenQuote, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	q, ok := p.quotes[token]
	return q, ok
}

// Prices returns the prices of the given tokens that are known and no
// older than maxAge. A zero maxAge accepts any age.
func (p *TokenPrices) Prices(tokens []string, maxAge time.Duration) map[string]decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	out := make(map[string]decimal.Decimal, len(tokens))
	for _, t := range tokens {
		q, ok := p.quotes[t]
		if !ok || (maxAge > 0 && now.Sub(q.UpdatedAt) > maxAge) {
			continue
		}
		out[t] = q.Price
	}
	return out
}

// MidpointSource fetches a token price on demand.
type MidpointSource interface {
	Midpoint(ctx context.Context, token string) (decimal.Decimal, error)
}

// Quotes serves token prices from the stream book, falling back to the
// CLOB midpoint for tokens the stream has not priced recently.
type Quotes struct {
	book    *TokenPrices
	mid     MidpointSource
	retrier *retrier.Retrier
	maxAge  time.Duration
}

// NewQuotes creates a price source over book and mid.
func NewQuotes(book *TokenPrices, mid MidpointSource, r *retrier.Retrier, maxAge time.Duration) *Quotes {
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(200*time.Millisecond))
	}
	return &Quotes{book: book, mid: mid, retrier: r, maxAge: maxAge}
}

// Price returns the current price of token.
func (q *Quotes) Price(ctx context.Context, token string) (decimal.Decimal, error) {
	if prices := q.book.Prices([]string{token}, q.maxAge); len(prices) == 1 {
		return prices[token], nil
	}
	if q.mid == nil {
		return decimal.Zero, errors.Wrapf(ErrNoData, "price of %s", token)
	}

	price, err := retrier.DoWithData(q.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		p, err := q.mid.Midpoint(ctx, token)
		if errors.Is(err, ErrNoData) {
			return p, retrier.Permanent(err)
		}
		return p, err
	})
	if err != nil {
		return decimal.Zero, err
	}
	q.book.Set(token, price)
	return price, nil
}

// Prices returns prices for tokens, skipping the ones that cannot be priced.
func (q *Quotes) Prices(ctx context.Context, tokens []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(tokens))
	for _, t := range tokens {
		if p, err := q.Price(ctx, t); err == nil {
			out[t] = p
		}
	}
	return out
}
