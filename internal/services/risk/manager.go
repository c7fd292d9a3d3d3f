// Package risk owns the open positions: exit checks, entry gating and the
// daily loss circuit breaker. All state changes go through one mutex.
package risk

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

// MomentumFunc reports the momentum in favour of a position, in [-1, 1] for
// plain votes. A nil MomentumFunc means zero momentum. It runs under the
// manager lock and must not call back into the Manager.
type MomentumFunc func(p domain.Position) float64

// Reservation entry slot held between gating and the order fill.
type Reservation struct {
	id     uint64
	Market domain.MarketKey
}

// CheckResult outcome of one risk check.
type CheckResult struct {
	// Exits in position insertion order, at most one per position.
	Exits []domain.ExitAction
	// Updated positions whose HighestPriceSeen moved up during the check.
	Updated []domain.Position
}

// ExitResult outcome of an applied exit.
type ExitResult struct {
	Trade domain.TradeRecord
	// Position state after the exit; for a full exit the state it was closed in.
	Position domain.Position
	Closed   bool
}

// State read-only view of the aggregate risk state.
type State struct {
	OpenPositions  int             `json:"open_positions"`
	PendingEntries int             `json:"pending_entries"`
	MaxPositions   int             `json:"max_positions"`
	DailyPnL       decimal.Decimal `json:"daily_pnl"`
	TradingEnabled bool            `json:"trading_enabled"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager position state machine and entry gate.
type Manager struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	positions      []domain.Position
	pending        map[uint64]domain.MarketKey
	nextID         uint64
	dailyPnL       decimal.Decimal
	tradingEnabled bool
	lastTrade      map[domain.MarketKey]time.Time
	// last quote seen per open token
	lastPrice map[string]decimal.Decimal
}

// NewManager creates a manager with trading enabled and no positions.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:            cfg,
		now:            time.Now,
		pending:        make(map[uint64]domain.MarketKey),
		tradingEnabled: true,
		lastTrade:      make(map[domain.MarketKey]time.Time),
		lastPrice:      make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the risk configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Restore rehydrates positions loaded from storage. Invalid or duplicate
// positions are skipped and reported in the returned error.
func (m *Manager) Restore(positions []domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			errs = append(errs, errors.Wrapf(err, "restore %s", p.MarketToken))
			continue
		}
		if m.indexOf(p.MarketToken) >= 0 {
			errs = append(errs, errors.Errorf("restore %s: duplicate position", p.MarketToken))
			continue
		}
		m.positions = append(m.positions, p)
	}
	return stderrors.Join(errs...)
}

// CheckPositions raises HighestPriceSeen for every position with a known
// price and evaluates the exit rules. Positions without a price are only
// checked for market expiry and the time stop; such exits are marked
// Unpriced and carry the last quote seen, or the entry price when none was.
// The returned actions carry copies; nothing is closed until ApplyExit.
func (m *Manager) CheckPositions(prices map[string]decimal.Decimal, momentum MomentumFunc) CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var res CheckResult
	for i := range m.positions {
		p := &m.positions[i]
		price, ok := prices[p.MarketToken]
		if !ok {
			if reason, hit := m.cfg.ForcedExitFor(*p, now); hit {
				last, seen := m.lastPrice[p.MarketToken]
				if !seen {
					last = p.EntryPrice
				}
				res.Exits = append(res.Exits, domain.ExitAction{
					Position: *p,
					Reason:   reason,
					Shares:   p.Shares,
					Price:    last,
					Unpriced: true,
				})
			}
			continue
		}
		m.lastPrice[p.MarketToken] = price

		if price.GreaterThan(p.HighestPriceSeen) {
			p.HighestPriceSeen = price
			res.Updated = append(res.Updated, *p)
		}

		var mom float64
		if momentum != nil {
			mom = momentum(*p)
		}
		reason, hit := m.cfg.ExitReasonFor(*p, price, mom, now)
		if !hit {
			continue
		}

		shares := p.Shares
		if reason.Partial() {
			shares = p.Shares.Mul(m.cfg.PartialExitFraction)
		}
		res.Exits = append(res.Exits, domain.ExitAction{
			Position: *p,
			Reason:   reason,
			Shares:   shares,
			Price:    price,
		})
	}
	return res
}

// ApplyExit books a filled exit. A partial exit reduces shares and size and
// sets the latch; any other reason removes the position. The daily P&L is
// updated with the realised result.
//
// If the position is gone, or the exit would break a position invariant,
// nothing is changed and an error wrapping ErrPositionNotFound or
// ErrInvariantViolation is returned.
func (m *Manager) ApplyExit(action domain.ExitAction, fill domain.ExitFill) (ExitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := action.Position.MarketToken
	i := m.indexOf(token)
	if i < 0 || m.positions[i].OrderRef != action.Position.OrderRef {
		return ExitResult{}, errors.Wrapf(ErrPositionNotFound, "exit %s", token)
	}
	cur := m.positions[i]

	if !action.Shares.IsPositive() || action.Shares.GreaterThan(cur.Shares) {
		return ExitResult{}, errors.Wrapf(ErrInvariantViolation, "exit %s: %s shares of %s", token, action.Shares, cur.Shares)
	}
	if fill.FilledPrice.IsNegative() {
		return ExitResult{}, errors.Wrapf(ErrInvariantViolation, "exit %s: negative fill price %s", token, fill.FilledPrice)
	}

	now := m.now()
	trade := domain.NewTradeRecord(cur, action.Reason, fill.FilledPrice, action.Shares, now)

	if action.Reason.Partial() {
		next := cur
		next.Shares = cur.Shares.Sub(action.Shares)
		next.SizeUSD = next.Shares.Mul(next.EntryPrice)
		next.PartiallyExited = true
		if cur.PartiallyExited || !next.Shares.IsPositive() {
			return ExitResult{}, errors.Wrapf(ErrInvariantViolation, "partial exit %s", token)
		}
		if err := next.Validate(); err != nil {
			return ExitResult{}, errors.Wrapf(ErrInvariantViolation, "partial exit %s: %v", token, err)
		}
		m.positions[i] = next
		m.addDailyPnL(trade.PnL)
		return ExitResult{Trade: trade, Position: next}, nil
	}

	m.positions = append(m.positions[:i], m.positions[i+1:]...)
	delete(m.lastPrice, token)
	m.addDailyPnL(trade.PnL)
	return ExitResult{Trade: trade, Position: cur, Closed: true}, nil
}

// CanOpenPosition trading is enabled and a slot is free.
func (m *Manager) CanOpenPosition() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tradingEnabled && m.occupied() < m.cfg.MaxPositions
}

// ValidateTrade runs entry gating for a market without reserving a slot.
func (m *Manager) ValidateTrade(market domain.MarketKey) Refusal {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.gate(market)
}

// ReserveEntry runs entry gating and, when allowed, holds a slot for the
// market until Commit or Release. Held slots count against the position cap.
func (m *Manager) ReserveEntry(market domain.MarketKey) (Reservation, Refusal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r := m.gate(market); !r.Allowed() {
		return Reservation{}, r
	}
	m.nextID++
	m.pending[m.nextID] = market
	return Reservation{id: m.nextID, Market: market}, Refusal{}
}

// Commit turns a reservation into an open position after the entry order
// filled. On error the reservation stays held and must be released.
func (m *Manager) Commit(res Reservation, p domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[res.id]; !ok {
		return ErrReservationUnknown
	}
	if err := p.Validate(); err != nil {
		return errors.Wrapf(ErrInvariantViolation, "open %s: %v", p.MarketToken, err)
	}
	if m.indexOf(p.MarketToken) >= 0 {
		return errors.Wrapf(ErrInvariantViolation, "open %s: position already open", p.MarketToken)
	}

	delete(m.pending, res.id)
	m.positions = append(m.positions, p)
	m.lastTrade[res.Market] = m.now()
	return nil
}

// Release gives a reservation back without opening anything.
func (m *Manager) Release(res Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, res.id)
}

// UpdateDailyPnL adds realised P&L booked outside ApplyExit.
func (m *Manager) UpdateDailyPnL(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addDailyPnL(pnl)
}

// ResetDaily clears the daily P&L and re-enables trading.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyPnL = decimal.Zero
	m.tradingEnabled = true
}

// TradingEnabled reports whether the daily loss breaker is closed.
func (m *Manager) TradingEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tradingEnabled
}

// DailyPnL realised P&L since the last reset.
func (m *Manager) DailyPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dailyPnL
}

// Positions returns copies of the open positions in insertion order.
func (m *Manager) Positions() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Position, len(m.positions))
	copy(out, m.positions)
	return out
}

// Position looks up an open position by token.
func (m *Manager) Position(token string) (domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(token); i >= 0 {
		return m.positions[i], true
	}
	return domain.Position{}, false
}

// State returns the aggregate state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		OpenPositions:  len(m.positions),
		PendingEntries: len(m.pending),
		MaxPositions:   m.cfg.MaxPositions,
		DailyPnL:       m.dailyPnL,
		TradingEnabled: m.tradingEnabled,
	}
}

// PositionSize entry size for a confidence level.
func (m *Manager) PositionSize(confidence int) decimal.Decimal {
	return m.cfg.PositionSize(confidence)
}

// ShouldSkipMarket the market is too close to expiry to enter.
func (m *Manager) ShouldSkipMarket(tf domain.Timeframe, remaining time.Duration) bool {
	return m.cfg.ShouldSkipMarket(tf, remaining)
}

// DynamicProfitTarget profit target for the position with the given time left.
func (m *Manager) DynamicProfitTarget(p domain.Position, remaining time.Duration) decimal.Decimal {
	return m.cfg.DynamicProfitTarget(p, remaining)
}

// PnL dollar result of selling shares of the position at price.
func (m *Manager) PnL(p domain.Position, price, shares decimal.Decimal) decimal.Decimal {
	return p.PnL(price, shares)
}

func (m *Manager) gate(market domain.MarketKey) Refusal {
	if !m.tradingEnabled {
		return Refusal{Reason: RefusalTradingDisabled, Market: market, Message: "trading disabled due to daily loss limit"}
	}
	if m.occupied() >= m.cfg.MaxPositions {
		return Refusal{Reason: RefusalMaxPositions, Market: market, Message: fmt.Sprintf("max positions (%d) reached", m.cfg.MaxPositions)}
	}
	if last, ok := m.lastTrade[market]; ok {
		if elapsed := m.now().Sub(last); elapsed < m.cfg.Cooldown {
			remaining := (m.cfg.Cooldown - elapsed).Seconds()
			return Refusal{Reason: RefusalCooldown, Market: market, Message: fmt.Sprintf("market cooldown: %.0fs remaining", remaining)}
		}
	}
	for _, p := range m.positions {
		if p.Market == market {
			return Refusal{Reason: RefusalMarketBusy, Market: market, Message: fmt.Sprintf("position already open on %s", market)}
		}
	}
	for _, k := range m.pending {
		if k == market {
			return Refusal{Reason: RefusalMarketBusy, Market: market, Message: fmt.Sprintf("entry in flight on %s", market)}
		}
	}
	return Refusal{}
}

func (m *Manager) occupied() int {
	return len(m.positions) + len(m.pending)
}

// addDailyPnL accumulates realised P&L and trips the breaker once the loss
// reaches DailyLossLimitPct of MaxPositionSizeUSD x MaxPositions.
func (m *Manager) addDailyPnL(pnl decimal.Decimal) {
	m.dailyPnL = m.dailyPnL.Add(pnl)
	if !m.dailyPnL.IsNegative() {
		return
	}
	capital := m.cfg.MaxPositionSizeUSD.Mul(decimal.NewFromInt(int64(m.cfg.MaxPositions)))
	if !capital.IsPositive() {
		return
	}
	lossPct := m.dailyPnL.Neg().Div(capital).Mul(hundred)
	if lossPct.GreaterThanOrEqual(m.cfg.DailyLossLimitPct) {
		m.tradingEnabled = false
	}
}

func (m *Manager) indexOf(token string) int {
	for i, p := range m.positions {
		if p.MarketToken == token {
			return i
		}
	}
	return -1
}
