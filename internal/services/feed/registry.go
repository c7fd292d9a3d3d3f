package feed

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/pkg/retrier"
	"go.uber.org/zap"
)

// MarketResolver finds the active window of a market.
type MarketResolver interface {
	ResolveMarket(ctx context.Context, market domain.MarketKey, now time.Time) (MarketWindow, error)
}

// Registry tracks the active window of every market and rolls over to the
// next one once a window expires.
type Registry struct {
	mu       sync.RWMutex
	resolver MarketResolver
	retrier  *retrier.Retrier
	l        *zap.Logger
	windows  map[domain.MarketKey]MarketWindow
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(resolver MarketResolver, r *retrier.Retrier, l *zap.Logger) *Registry {
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(2))
	}
	return &Registry{
		resolver: resolver,
		retrier:  r,
		l:        l,
		windows:  make(map[domain.MarketKey]MarketWindow),
		now:      time.Now,
	}
}

// Refresh resolves markets that are unknown or whose window has expired.
// Failed markets keep no window and are retried on the next call.
func (r *Registry) Refresh(ctx context.Context, markets []domain.MarketKey) error {
	now := r.now()
	var errs []error

	for _, market := range markets {
		if w, ok := r.Window(market); ok && now.Before(w.Expiry) {
			continue
		}

		w, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) (MarketWindow, error) {
			return r.resolver.ResolveMarket(ctx, market, now)
		})

		r.mu.Lock()
		if err != nil {
			delete(r.windows, market)
		} else {
			r.windows[market] = w
		}
		r.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		r.l.Info("market window resolved",
			zap.Stringer("market", market),
			zap.String("slug", w.Tokens.Slug),
			zap.Time("expiry", w.Expiry))
	}

	return stderrors.Join(errs...)
}

// Window returns the current window of a market.
func (r *Registry) Window(market domain.MarketKey) (MarketWindow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.windows[market]
	return w, ok
}

// Tokens returns every known outcome token, sorted.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, 2*len(r.windows))
	for _, w := range r.windows {
		out = append(out, w.Tokens.UpToken, w.Tokens.DownToken)
	}
	sort.Strings(out)
	return out
}

// Run refreshes markets every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, markets []domain.MarketKey, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.Refresh(ctx, markets); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.l.Warn("market refresh incomplete", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
