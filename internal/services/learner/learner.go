// Package learner keeps per-pattern trade statistics and turns them into
// entry vetoes, confidence boosts and sizing adjustments.
package learner

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

// Config learner thresholds.
type Config struct {
	// MinSamples trades a pattern needs before it influences decisions.
	MinSamples int
	// MinOverallTrades trades needed before sizing reacts to the overall win rate.
	MinOverallTrades int
	AvoidWinRate     float64

	MinPositionSizeUSD decimal.Decimal
	MaxPositionSizeUSD decimal.Decimal
	MaxProfitTargetPct decimal.Decimal
}

// DefaultConfig returns the production learner settings.
func DefaultConfig() Config {
	return Config{
		MinSamples:         5,
		MinOverallTrades:   10,
		AvoidWinRate:       0.3,
		MinPositionSizeUSD: decimal.NewFromInt(1),
		MaxPositionSizeUSD: decimal.NewFromInt(5),
		MaxProfitTargetPct: decimal.NewFromInt(85),
	}
}

// Overall aggregate results across all patterns.
type Overall struct {
	Trades   int                 `json:"trades"`
	Wins     int                 `json:"wins"`
	Losses   int                 `json:"losses"`
	TotalPnL float64             `json:"total_pnl"`
	Avoid    []domain.PatternKey `json:"avoid"`
}

// WinRate wins/trades, zero without trades.
func (o Overall) WinRate() float64 {
	if o.Trades == 0 {
		return 0
	}
	return float64(o.Wins) / float64(o.Trades)
}

// State everything the learner knows, as persisted by storage.
type State struct {
	Patterns map[domain.PatternKey]domain.PatternStats `json:"patterns"`
	Overall  Overall                                   `json:"overall"`
}

// Update result of recording one trade.
type Update struct {
	Stats   domain.PatternStats
	Overall Overall
	// Avoided the pattern joined the avoid list with this trade.
	Avoided bool
}

// MarketRate aggregated win rate of one (asset, timeframe) market.
type MarketRate struct {
	Market  domain.MarketKey `json:"market"`
	Trades  int              `json:"trades"`
	WinRate float64          `json:"win_rate"`
}

// Learner pattern statistics store. Safe for concurrent use.
type Learner struct {
	mu       sync.RWMutex
	cfg      Config
	patterns map[domain.PatternKey]*domain.PatternStats
	overall  Overall
	now      func() time.Time
}

// Option configures a Learner.
type Option func(*Learner)

// WithClock overrides the time source used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(l *Learner) {
		l.now = now
	}
}

// New creates an empty learner.
func New(cfg Config, opts ...Option) *Learner {
	l := &Learner{
		cfg:      cfg,
		patterns: make(map[domain.PatternKey]*domain.PatternStats),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore replaces the learner state with a persisted one.
func (l *Learner) Restore(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.patterns = make(map[domain.PatternKey]*domain.PatternStats, len(s.Patterns))
	for k, st := range s.Patterns {
		st.Key = k
		l.patterns[k] = &st
	}
	l.overall = s.Overall
	l.overall.Avoid = slices.Clone(s.Overall.Avoid)
}

// Snapshot returns a copy of the learner state.
func (l *Learner) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := State{
		Patterns: make(map[domain.PatternKey]domain.PatternStats, len(l.patterns)),
		Overall:  l.overallCopy(),
	}
	for k, st := range l.patterns {
		out.Patterns[k] = *st
	}
	return out
}

// RecordTradeOutcome folds a completed trade into its pattern.
func (l *Learner) RecordTradeOutcome(t domain.TradeRecord) Update {
	pnl, _ := t.PnL.Float64()
	pnlPct, _ := t.PnLPercent.Float64()
	return l.Record(t.Pattern(), pnl, pnlPct)
}

// Record folds one trade result into the stats of key, creating them on
// first sight, and adds the pattern to the avoid list once it has enough
// samples and a win rate at or below AvoidWinRate.
func (l *Learner) Record(key domain.PatternKey, pnl, pnlPct float64) Update {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.patterns[key]
	if !ok {
		st = &domain.PatternStats{Key: key}
		l.patterns[key] = st
	}
	st.Observe(pnl, pnlPct, l.now())

	l.overall.Trades++
	l.overall.TotalPnL += pnl
	if pnl > 0 {
		l.overall.Wins++
	} else {
		l.overall.Losses++
	}

	avoided := false
	if st.Trades >= l.cfg.MinSamples && st.WinRate() <= l.cfg.AvoidWinRate && !slices.Contains(l.overall.Avoid, key) {
		l.overall.Avoid = append(l.overall.Avoid, key)
		avoided = true
	}

	return Update{Stats: *st, Overall: l.overallCopy(), Avoided: avoided}
}

// ShouldTradePattern vetoes patterns on the avoid list or with a poor
// sampled win rate. The reason is "OK" when allowed.
func (l *Learner) ShouldTradePattern(key domain.PatternKey) (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if slices.Contains(l.overall.Avoid, key) {
		return false, "avoiding low win-rate pattern"
	}
	if st, ok := l.patterns[key]; ok && st.Trades >= l.cfg.MinSamples && st.WinRate() <= l.cfg.AvoidWinRate {
		return false, fmt.Sprintf("pattern win rate too low (%.0f%%)", st.WinRate()*100)
	}
	return true, "OK"
}

// ConfidenceBoost confidence adjustment earned by the pattern's history.
func (l *Learner) ConfidenceBoost(key domain.PatternKey) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.patterns[key]
	if !ok || st.Trades < l.cfg.MinSamples {
		return 0
	}

	wr := st.WinRate()
	switch {
	case wr >= 0.7:
		return 2
	case wr >= 0.6:
		return 1
	case wr <= 0.3:
		return -3
	case wr <= 0.4:
		return -1
	}
	return 0
}

// AdjustedPositionSize halves the size on a losing record and grows it by
// 30% on a winning one, within the configured bounds.
func (l *Learner) AdjustedPositionSize(base decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.overall.Trades < l.cfg.MinOverallTrades {
		return base
	}

	wr := l.overall.WinRate()
	switch {
	case wr < 0.4:
		return decimal.Max(l.cfg.MinPositionSizeUSD, base.Mul(decimal.RequireFromString("0.5")))
	case wr > 0.65:
		return decimal.Min(l.cfg.MaxPositionSizeUSD, base.Mul(decimal.RequireFromString("1.3")))
	}
	return base
}

// AdjustedProfitTarget raises the profit target for a market towards what
// its winning patterns actually realise.
func (l *Learner) AdjustedProfitTarget(base decimal.Decimal, market domain.MarketKey) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	target := base
	for _, k := range l.sortedKeys() {
		st := l.patterns[k]
		if k.Market() != market || st.WinRate() <= 0.5 {
			continue
		}
		avgWin := decimal.NewFromFloat(st.AvgWinPct)
		if avgWin.GreaterThan(target) {
			target = decimal.Min(avgWin.Mul(decimal.RequireFromString("0.8")), l.cfg.MaxProfitTargetPct)
		}
	}
	return target
}

// BestOpportunities markets with at least MinSamples trades, best win rate first.
func (l *Learner) BestOpportunities() []MarketRate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	type agg struct{ wins, trades int }
	byMarket := make(map[domain.MarketKey]*agg)
	var order []domain.MarketKey
	for _, k := range l.sortedKeys() {
		st := l.patterns[k]
		m := k.Market()
		a, ok := byMarket[m]
		if !ok {
			a = &agg{}
			byMarket[m] = a
			order = append(order, m)
		}
		a.wins += st.Wins
		a.trades += st.Trades
	}

	var out []MarketRate
	for _, m := range order {
		a := byMarket[m]
		if a.trades < l.cfg.MinSamples {
			continue
		}
		out = append(out, MarketRate{Market: m, Trades: a.trades, WinRate: float64(a.wins) / float64(a.trades)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WinRate > out[j].WinRate
	})
	return out
}

// Stats returns the statistics of one pattern.
func (l *Learner) Stats(key domain.PatternKey) (domain.PatternStats, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.patterns[key]
	if !ok {
		return domain.PatternStats{}, false
	}
	return *st, true
}

// Overall returns the aggregate results.
func (l *Learner) Overall() Overall {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.overallCopy()
}

// Summary one-line human readable digest.
func (l *Learner) Summary() string {
	overall := l.Overall()
	if overall.Trades == 0 {
		return "No trades yet - learning in progress"
	}

	parts := []string{fmt.Sprintf("Learning: %d trades | %.0f%% win rate | $%+.2f",
		overall.Trades, overall.WinRate()*100, overall.TotalPnL)}
	if best := l.BestOpportunities(); len(best) > 0 {
		parts = append(parts, fmt.Sprintf("Best: %s %s (%.0f%%)", best[0].Market.Asset, best[0].Market.Timeframe, best[0].WinRate*100))
	}
	if n := len(overall.Avoid); n > 0 {
		parts = append(parts, fmt.Sprintf("Avoiding %d low-performing patterns", n))
	}
	return strings.Join(parts, " | ")
}

func (l *Learner) overallCopy() Overall {
	o := l.overall
	o.Avoid = slices.Clone(l.overall.Avoid)
	return o
}

// sortedKeys pattern keys in a stable order so derived values do not depend
// on map iteration.
func (l *Learner) sortedKeys() []domain.PatternKey {
	keys := make([]domain.PatternKey, 0, len(l.patterns))
	for k := range l.patterns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
