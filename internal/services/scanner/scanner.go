// Package scanner evaluates every market of the universe and ranks the
// tradeable ones.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/vadiminshakov/updown/internal/domain"
)

// defaultToExpiry assumed when the feed does not know the market expiry.
const defaultToExpiry = 600 * time.Second

// SnapshotSource returns the latest snapshot of a market, if any.
type SnapshotSource interface {
	Snapshot(market domain.MarketKey) (domain.MarketSnapshot, bool)
}

// Evaluator computes a signal from a snapshot.
type Evaluator interface {
	Evaluate(snap domain.MarketSnapshot) domain.Signal
}

// Params scoring settings.
type Params struct {
	// ComfortableExpiry earns +1 when time to expiry is at least this long.
	ComfortableExpiry map[domain.Timeframe]time.Duration
	// MinExpiry costs -5 when time to expiry is below it.
	MinExpiry       map[domain.Timeframe]time.Duration
	StrongConsensus int
	MinScore        int
}

// DefaultParams returns the production scoring settings.
func DefaultParams() Params {
	return Params{
		ComfortableExpiry: map[domain.Timeframe]time.Duration{
			domain.Timeframe15m: 600 * time.Second,
			domain.Timeframe1h:  1800 * time.Second,
		},
		MinExpiry: map[domain.Timeframe]time.Duration{
			domain.Timeframe15m: 420 * time.Second,
			domain.Timeframe1h:  600 * time.Second,
		},
		StrongConsensus: 5,
		MinScore:        3,
	}
}

// Result of one scan.
type Result struct {
	// Scanned every market that had a snapshot, in universe order.
	Scanned []domain.MarketOpportunity
	// Opportunities tradeable markets, best first.
	Opportunities []domain.MarketOpportunity
	At            time.Time
}

// Best returns the top opportunity.
func (r Result) Best() (domain.MarketOpportunity, bool) {
	return SelectBest(r.Opportunities)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPool evaluates markets on the given goroutine pool.
func WithPool(p gopool.Pool) Option {
	return func(s *Scanner) {
		s.pool = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

// Scanner ranks markets of a fixed universe.
type Scanner struct {
	markets []domain.MarketKey
	source  SnapshotSource
	eval    Evaluator
	p       Params
	pool    gopool.Pool
	now     func() time.Time
}

// New creates a scanner over markets.
func New(markets []domain.MarketKey, source SnapshotSource, eval Evaluator, p Params, opts ...Option) *Scanner {
	s := &Scanner{
		markets: markets,
		source:  source,
		eval:    eval,
		p:       p,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = gopool.NewPool("scanner", int32(max(1, len(markets))), gopool.NewConfig())
	}
	return s
}

// Markets returns the scanned universe.
func (s *Scanner) Markets() []domain.MarketKey {
	return s.markets
}

// ScanAll evaluates every market concurrently and ranks the results.
// Markets without a snapshot are left out.
func (s *Scanner) ScanAll(ctx context.Context) (Result, error) {
	now := s.now()
	slots := make([]*domain.MarketOpportunity, len(s.markets))

	var wg sync.WaitGroup
	for i, market := range s.markets {
		wg.Add(1)
		s.pool.CtxGo(ctx, func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if opp, ok := s.ScanMarket(market, now); ok {
				slots[i] = &opp
			}
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{At: now}
	for _, opp := range slots {
		if opp != nil {
			res.Scanned = append(res.Scanned, *opp)
		}
	}
	res.Opportunities = Filter(res.Scanned, s.p.MinScore)
	return res, nil
}

// ScanMarket scores one market at now.
func (s *Scanner) ScanMarket(market domain.MarketKey, now time.Time) (domain.MarketOpportunity, bool) {
	snap, ok := s.source.Snapshot(market)
	if !ok {
		return domain.MarketOpportunity{}, false
	}

	sig := s.eval.Evaluate(snap)
	toExpiry, hasExpiry := snap.TimeToExpiry(now)
	if !hasExpiry {
		toExpiry = defaultToExpiry
	}

	return domain.MarketOpportunity{
		Market:    market,
		Score:     s.Score(sig, market.Timeframe, toExpiry),
		Signal:    sig,
		Reason:    Reason(sig),
		ToExpiry:  toExpiry,
		HasExpiry: hasExpiry,
		Tokens:    snap.Tokens,
	}, true
}

// Score rates a signal for a market of timeframe tf with toExpiry left, in [0, 10].
func (s *Scanner) Score(sig domain.Signal, tf domain.Timeframe, toExpiry time.Duration) int {
	score := 0
	if sig.Direction != domain.DirectionNeutral {
		score = sig.Confidence
	}
	if sig.RSITriggered {
		score += 2
	}

	comfortable, hasComfortable := s.p.ComfortableExpiry[tf]
	floor, hasFloor := s.p.MinExpiry[tf]
	switch {
	case hasComfortable && toExpiry >= comfortable:
		score++
	case hasFloor && toExpiry < floor:
		score -= 5
	}

	r := sig.Rationale
	if r.BullishPoints >= s.p.StrongConsensus || r.BearishPoints >= s.p.StrongConsensus {
		score++
	}
	return clamp(score)
}

// Filter keeps directional markets at or above minScore, best first with
// ties in encounter order. When none qualifies, the single best scanned
// market is returned if it has a direction.
func Filter(scanned []domain.MarketOpportunity, minScore int) []domain.MarketOpportunity {
	var out []domain.MarketOpportunity
	for _, opp := range scanned {
		if opp.Tradeable(minScore) {
			out = append(out, opp)
		}
	}

	if len(out) == 0 && len(scanned) > 0 {
		ranked := rank(scanned)
		if ranked[0].Signal.Direction != domain.DirectionNeutral {
			return ranked[:1]
		}
		return nil
	}
	return rank(out)
}

// SelectBest returns the first opportunity of a ranked list.
func SelectBest(opps []domain.MarketOpportunity) (domain.MarketOpportunity, bool) {
	if len(opps) == 0 {
		return domain.MarketOpportunity{}, false
	}
	return opps[0], true
}

// Reason short human readable summary of what drives the signal.
func Reason(sig domain.Signal) string {
	var parts []string
	r := sig.Rationale

	if v, ok := r.Vote(domain.IndicatorRSI); ok && v.Vote != 0 {
		parts = append(parts, fmt.Sprintf("RSI=%.0f", v.Value))
	}
	if v, ok := r.Vote(domain.IndicatorMACD); ok {
		if v.Vote > 0 {
			parts = append(parts, "MACD+")
		} else {
			parts = append(parts, "MACD-")
		}
	}
	if v, ok := r.Vote(domain.IndicatorOBI); ok && v.Vote != 0 {
		parts = append(parts, fmt.Sprintf("OBI=%+.0f%%", v.Value*100))
	}

	if len(parts) == 0 {
		return string(sig.Direction)
	}
	return strings.Join(parts, " | ")
}

// FormatResults one-line summary of the top three opportunities.
func FormatResults(opps []domain.MarketOpportunity) string {
	if len(opps) == 0 {
		return "No opportunities"
	}

	lines := make([]string, 0, 3)
	for _, opp := range opps[:min(3, len(opps))] {
		arrow := "↓"
		if opp.Signal.Direction == domain.DirectionBullish {
			arrow = "↑"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %d (%dm) %s",
			opp.Market.Asset, opp.Market.Timeframe, arrow, opp.Score, int(opp.ToExpiry.Minutes()), opp.Reason))
	}
	return strings.Join(lines, " | ")
}

func rank(opps []domain.MarketOpportunity) []domain.MarketOpportunity {
	out := make([]domain.MarketOpportunity, len(opps))
	copy(out, opps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func clamp(score int) int {
	return min(10, max(0, score))
}
