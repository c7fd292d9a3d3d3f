package trader

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/storage/simstate"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownPrice        = errors.New("token price unknown")
)

const sharePrecision = 2

// PaperTrader fills orders at the current token price against a simulated
// cash wallet.
type PaperTrader struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	pricer   Pricer
	cash     decimal.Decimal
	holdings map[string]decimal.Decimal
	orders   map[string]paperOrder
	store    *simstate.Store
}

type paperOrder struct {
	token  string
	side   domain.Side
	shares decimal.Decimal
	price  decimal.Decimal
}

// NewPaperTrader creates a paper trader starting with cash. When store is
// set the wallet is restored from it and saved after every fill.
func NewPaperTrader(cash decimal.Decimal, pricer Pricer, store *simstate.Store, logger *zap.Logger) (*PaperTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for PaperTrader")
	}

	t := &PaperTrader{
		logger:   logger,
		pricer:   pricer,
		cash:     cash,
		holdings: make(map[string]decimal.Decimal),
		orders:   make(map[string]paperOrder),
		store:    store,
	}
	if err := t.restoreState(); err != nil {
		logger.Warn("failed to restore paper state", zap.Error(err))
	}

	logger.Info("paper trader init",
		zap.String("cash", t.cash.String()),
		zap.Int("holdings", len(t.holdings)))
	return t, nil
}

// SubmitEntry buys as many shares as usd affords at the current price,
// rounded down to hundredths.
func (t *PaperTrader) SubmitEntry(ctx context.Context, token string, side domain.Side, usd decimal.Decimal) (domain.EntryFill, error) {
	if token == "" {
		return domain.EntryFill{}, errors.New("token is required")
	}
	if !usd.IsPositive() {
		return domain.EntryFill{}, errors.Errorf("entry amount must be positive, got %s", usd)
	}

	price, err := t.price(ctx, token)
	if err != nil {
		return domain.EntryFill{}, err
	}

	shares := usd.Div(price).Truncate(sharePrecision)
	if !shares.IsPositive() {
		return domain.EntryFill{}, errors.Errorf("%s buys no shares at %s", usd, price)
	}
	cost := shares.Mul(price)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cash.LessThan(cost) {
		return domain.EntryFill{}, errors.Wrapf(ErrInsufficientBalance, "have %s need %s", t.cash, cost)
	}

	t.cash = t.cash.Sub(cost)
	t.holdings[token] = t.holdings[token].Add(shares)

	ref := uuid.New().String()
	t.orders[ref] = paperOrder{token: token, side: side, shares: shares, price: price}
	t.persist()

	t.logger.Info("paper buy executed",
		zap.String("order_ref", ref),
		zap.String("token", token),
		zap.String("side", string(side)),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()))

	return domain.EntryFill{OrderRef: ref, FilledPrice: price, FilledShares: shares}, nil
}

// SubmitExit sells shares of token at the current price.
func (t *PaperTrader) SubmitExit(ctx context.Context, token string, shares decimal.Decimal) (domain.ExitFill, error) {
	if !shares.IsPositive() {
		return domain.ExitFill{}, errors.Errorf("exit shares must be positive, got %s", shares)
	}

	price, err := t.price(ctx, token)
	if err != nil {
		return domain.ExitFill{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	held := t.holdings[token]
	if held.LessThan(shares) {
		return domain.ExitFill{}, errors.Wrapf(ErrInsufficientBalance, "hold %s shares of %s, selling %s", held, token, shares)
	}

	t.cash = t.cash.Add(shares.Mul(price))
	if left := held.Sub(shares); left.IsZero() {
		delete(t.holdings, token)
	} else {
		t.holdings[token] = left
	}
	t.persist()

	t.logger.Info("paper sell executed",
		zap.String("token", token),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()))

	return domain.ExitFill{FilledPrice: price}, nil
}

func (t *PaperTrader) price(ctx context.Context, token string) (decimal.Decimal, error) {
	price, err := t.pricer.Price(ctx, token)
	if err != nil {
		return decimal.Zero, errors.Wrapf(stderrors.Join(ErrUnknownPrice, err), "price %s", token)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrUnknownPrice, "price %s is %s", token, price)
	}
	return price, nil
}

// Cash returns the free cash balance.
func (t *PaperTrader) Cash() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cash
}

// Holding returns the shares held of token.
func (t *PaperTrader) Holding(token string) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.holdings[token]
}

// Order reports the fill of an entry order.
func (t *PaperTrader) Order(ref string) (domain.EntryFill, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.orders[ref]
	if !ok {
		return domain.EntryFill{}, false
	}
	return domain.EntryFill{OrderRef: ref, FilledPrice: o.price, FilledShares: o.shares}, true
}

func (t *PaperTrader) restoreState() error {
	if t.store == nil {
		return nil
	}
	state, err := t.store.Load()
	if err != nil || state == nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if state.Cash != "" {
		cash, err := decimal.NewFromString(state.Cash)
		if err != nil {
			return errors.Wrap(err, "decode cash")
		}
		t.cash = cash
	}

	holdings := make(map[string]decimal.Decimal, len(state.Holdings))
	for token, sharesStr := range state.Holdings {
		shares, err := decimal.NewFromString(sharesStr)
		if err != nil {
			return errors.Wrapf(err, "decode %s holding", token)
		}
		holdings[token] = shares
	}
	t.holdings = holdings

	return nil
}

func (t *PaperTrader) persist() {
	if t.store == nil {
		return
	}

	state := simstate.State{
		Cash:     t.cash.String(),
		Holdings: make(map[string]string, len(t.holdings)),
	}
	for token, shares := range t.holdings {
		state.Holdings[token] = shares.String()
	}

	if err := t.store.Save(state); err != nil {
		t.logger.Warn("failed to persist paper state", zap.Error(err))
	}
}
