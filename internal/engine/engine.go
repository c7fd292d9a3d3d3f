// Package engine is the process root: it owns the periodic risk, scan and
// display cycles and drives the core through the execution and storage
// collaborators.
package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/events"
	"github.com/vadiminshakov/updown/internal/metrics"
	"github.com/vadiminshakov/updown/internal/services/learner"
	"github.com/vadiminshakov/updown/internal/services/risk"
	"github.com/vadiminshakov/updown/internal/services/scanner"
	"github.com/vadiminshakov/updown/internal/services/trader"
	"github.com/vadiminshakov/updown/internal/storage/ledger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// rsiFallback entry RSI recorded when the signal had no RSI reading.
const rsiFallback = 50

// MarketScanner ranks the market universe.
type MarketScanner interface {
	ScanAll(ctx context.Context) (scanner.Result, error)
}

// PriceSource current outcome token prices; unknown tokens are left out.
type PriceSource interface {
	Prices(ctx context.Context, tokens []string) map[string]decimal.Decimal
}

// PositionStore persists every position transition.
type PositionStore interface {
	LoadOpen() ([]domain.Position, error)
	SaveOpen(p domain.Position) error
	SaveUpdate(p domain.Position) error
	SaveClose(p domain.Position) error
	Checkpoint(open []domain.Position) error
}

// PatternStore persists learner statistics.
type PatternStore interface {
	Load() (learner.State, error)
	Checkpoint(state learner.State) error
	SaveUpdate(u learner.Update) error
}

// TradeLedger journals executed trades.
type TradeLedger interface {
	LogEntry(ctx context.Context, p domain.Position) (int64, error)
	LogExit(ctx context.Context, r domain.TradeRecord) (int64, error)
	DailyStats(ctx context.Context, day time.Time) (ledger.Stats, error)
}

// Wallet reports the cash of the execution account.
type Wallet interface {
	Cash() decimal.Decimal
}

// Deps collaborators of the engine. Executor and Wallet are optional: without
// an executor the engine only reports what it would enter.
type Deps struct {
	Risk     *risk.Manager
	Learner  *learner.Learner
	Scanner  MarketScanner
	Prices   PriceSource
	Executor trader.Executor
	Wallet   Wallet

	Positions PositionStore
	Patterns  PatternStore
	Ledger    TradeLedger
	Metrics   *metrics.Metrics

	// Results receives every scan result.
	Results *events.Broadcaster[scanner.Result]
}

// Params cycle cadence and entry settings.
type Params struct {
	RiskInterval    time.Duration
	ScanInterval    time.Duration
	DisplayInterval time.Duration
	MinScore        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDisplay prints the dashboard to w on every display cycle.
func WithDisplay(w io.Writer) Option {
	return func(e *Engine) {
		e.display = w
	}
}

// Engine runs the trading cycles.
type Engine struct {
	Deps
	p       Params
	logger  *zap.Logger
	now     func() time.Time
	display io.Writer

	mu       sync.RWMutex
	signals  map[domain.MarketKey]domain.Signal
	lastScan scanner.Result
	day      string
}

// New creates an engine. Risk, Learner, Scanner, Prices and the stores are required.
func New(deps Deps, p Params, logger *zap.Logger, opts ...Option) (*Engine, error) {
	switch {
	case deps.Risk == nil:
		return nil, errors.New("risk manager is required")
	case deps.Learner == nil:
		return nil, errors.New("learner is required")
	case deps.Scanner == nil:
		return nil, errors.New("scanner is required")
	case deps.Prices == nil:
		return nil, errors.New("price source is required")
	case deps.Positions == nil || deps.Patterns == nil || deps.Ledger == nil:
		return nil, errors.New("storage is not initialized")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	e := &Engine{
		Deps:    deps,
		p:       p,
		logger:  logger,
		now:     time.Now,
		signals: make(map[domain.MarketKey]domain.Signal),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.day = utcDay(e.now())
	return e, nil
}

// Monitoring reports whether entries are only logged.
func (e *Engine) Monitoring() bool {
	return e.Executor == nil
}

// Restore loads open positions and learner statistics from storage. The
// pattern log is compacted into a checkpoint afterwards.
func (e *Engine) Restore() error {
	positions, err := e.Positions.LoadOpen()
	if err != nil {
		return errors.Wrap(err, "load open positions")
	}
	if err := e.Risk.Restore(positions); err != nil {
		e.logger.Warn("some positions were not restored", zap.Error(err))
	}
	if err := e.Positions.Checkpoint(e.Risk.Positions()); err != nil {
		return errors.Wrap(err, "checkpoint open positions")
	}

	state, err := e.Patterns.Load()
	if err != nil {
		return errors.Wrap(err, "load pattern stats")
	}
	e.Learner.Restore(state)
	if err := e.Patterns.Checkpoint(e.Learner.Snapshot()); err != nil {
		return errors.Wrap(err, "checkpoint pattern stats")
	}

	e.Metrics.SetOpenPositions(len(e.Risk.Positions()))
	e.logger.Info("state restored",
		zap.Int("positions", len(e.Risk.Positions())),
		zap.Int("patterns", len(state.Patterns)),
		zap.String("learner", e.Learner.Summary()))
	return nil
}

// Run starts all cycles and blocks until ctx is cancelled or a cycle fails.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.loop(ctx, "risk", e.p.RiskInterval, e.RiskCycle)
	})
	g.Go(func() error {
		return e.loop(ctx, "scan", e.p.ScanInterval, e.ScanCycle)
	})
	if e.display != nil {
		g.Go(func() error {
			return e.loop(ctx, "display", e.p.DisplayInterval, e.DisplayCycle)
		})
	}

	e.logger.Info("engine started",
		zap.Bool("monitor_only", e.Monitoring()),
		zap.Duration("risk_interval", e.p.RiskInterval),
		zap.Duration("scan_interval", e.p.ScanInterval))
	return g.Wait()
}

func (e *Engine) loop(ctx context.Context, name string, interval time.Duration, cycle func(context.Context)) error {
	if interval <= 0 {
		return errors.Errorf("%s interval must be positive", name)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("cycle stopped", zap.String("cycle", name))
			return ctx.Err()
		case <-ticker.C:
			cycle(ctx)
		}
	}
}

// Momentum in favour of p according to the latest signal of its market.
func (e *Engine) momentumFunc() risk.MomentumFunc {
	e.mu.RLock()
	signals := make(map[domain.MarketKey]domain.Signal, len(e.signals))
	for k, v := range e.signals {
		signals[k] = v
	}
	e.mu.RUnlock()

	return func(p domain.Position) float64 {
		sig, ok := signals[p.Market]
		if !ok {
			return 0
		}
		m := sig.Momentum()
		if p.Side == domain.SideDown {
			return -m
		}
		return m
	}
}

func (e *Engine) rollDay() {
	today := utcDay(e.now())

	e.mu.Lock()
	changed := today != e.day
	e.day = today
	e.mu.Unlock()

	if changed {
		e.Risk.ResetDaily()
		e.Metrics.SetDailyPnL(0)
		e.Metrics.SetTradingEnabled(true)
		e.logger.Info("new trading day, daily stats reset", zap.String("day", today))
	}
}

func (e *Engine) failure(collaborator string, msg string, err error, fields ...zap.Field) {
	e.Metrics.CollaboratorFailure(collaborator)
	e.logger.Error(msg, append(fields, zap.String("collaborator", collaborator), zap.Error(err))...)
}

func (e *Engine) syncGauges() {
	state := e.Risk.State()
	e.Metrics.SetOpenPositions(state.OpenPositions)
	pnl, _ := state.DailyPnL.Float64()
	e.Metrics.SetDailyPnL(pnl)
	e.Metrics.SetTradingEnabled(state.TradingEnabled)
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
