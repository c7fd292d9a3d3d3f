// Package signal fuses indicator readings into a single directional call.
package signal

import (
	"fmt"
	"math"

	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/market/indicators"
)

// Params voting thresholds.
type Params struct {
	OBIThreshold        float64
	HAStreakMin         int
	ConfidenceThreshold int
}

// DefaultParams returns the production voting thresholds.
func DefaultParams() Params {
	return Params{
		OBIThreshold:        0.10,
		HAStreakMin:         3,
		ConfidenceThreshold: 4,
	}
}

// Aggregator evaluates snapshots into signals. Safe for concurrent use.
type Aggregator struct {
	set *indicators.Set
	p   Params
}

// NewAggregator creates an aggregator over the given indicator set.
func NewAggregator(set *indicators.Set, p Params) *Aggregator {
	return &Aggregator{set: set, p: p}
}

// Evaluate computes a fresh signal for the snapshot. Unavailable indicators abstain.
func (a *Aggregator) Evaluate(snap domain.MarketSnapshot) domain.Signal {
	var votes []domain.IndicatorVote
	extras := make(map[string]float64)
	mid, _ := snap.Mid.Float64()
	rsiTriggered := false

	cast := func(name domain.IndicatorName, value float64, vote int) {
		votes = append(votes, domain.IndicatorVote{Name: name, Value: value, Vote: vote})
	}

	// order book
	if obi, ok := a.set.OBI(snap); ok {
		cast(domain.IndicatorOBI, obi, thresholdVote(obi, a.p.OBIThreshold))
	}
	if w, ok := a.set.Walls(snap); ok {
		extras["buy_walls"] = float64(w.Buy)
		extras["sell_walls"] = float64(w.Sell)
		cast(domain.IndicatorWalls, float64(w.Buy-w.Sell), compare(float64(w.Buy), float64(w.Sell)))
	}
	if depth, ok := a.set.Depth(snap); ok {
		for pct, usd := range depth {
			extras[depthKey(pct)] = usd
		}
	}

	// flow
	cvdNames := []domain.IndicatorName{domain.IndicatorCVD60, domain.IndicatorCVD180, domain.IndicatorCVD300}
	for i, window := range a.set.Params().CVDWindows {
		if i >= len(cvdNames) {
			break
		}
		if cvd, ok := a.set.CVD(snap, window); ok {
			cast(cvdNames[i], cvd, sign(cvd))
		}
	}
	if delta, ok := a.set.Delta(snap); ok {
		cast(domain.IndicatorDelta, delta, sign(delta))
	}
	if profile, ok := a.set.VolumeProfile(snap); ok {
		extras["poc"] = profile.POC
		if mid > 0 {
			cast(domain.IndicatorPOC, profile.POC, compare(mid, profile.POC))
		}
	}

	// technical
	if rsi, ok := a.set.RSI(snap); ok {
		vote := RSIVote(rsi)
		rsiTriggered = vote != 0
		cast(domain.IndicatorRSI, rsi, vote)
	}
	if macd, ok := a.set.MACD(snap); ok {
		extras["macd_signal"] = macd.Signal
		extras["macd_hist"] = macd.Histogram
		cast(domain.IndicatorMACD, macd.Line, compare(macd.Line, macd.Signal))
	}
	if vwap, ok := a.set.VWAP(snap); ok && mid > 0 {
		cast(domain.IndicatorVWAP, vwap, compare(mid, vwap))
	}
	if ema, ok := a.set.EMACross(snap); ok {
		extras["ema_short"] = ema.Short
		extras["ema_long"] = ema.Long
		cast(domain.IndicatorEMACross, ema.Short-ema.Long, compare(ema.Short, ema.Long))
	}
	if streak, ok := a.set.HAStreak(snap); ok {
		vote := 0
		if streak >= a.p.HAStreakMin {
			vote = 1
		} else if streak <= -a.p.HAStreakMin {
			vote = -1
		}
		cast(domain.IndicatorHAStreak, float64(streak), vote)
	}

	sig := Fuse(votes, extras)
	sig.RSITriggered = rsiTriggered
	return sig
}

// ShouldTrade reports whether the signal clears the configured confidence threshold.
func (a *Aggregator) ShouldTrade(sig domain.Signal) bool {
	return sig.ShouldTrade(a.p.ConfidenceThreshold)
}

// Threshold returns the configured confidence threshold.
func (a *Aggregator) Threshold() int {
	return a.p.ConfidenceThreshold
}

// Fuse turns a list of votes into a signal. The number of votes is the
// maximum attainable score used to normalise confidence.
func Fuse(votes []domain.IndicatorVote, extras map[string]float64) domain.Signal {
	r := domain.Rationale{Votes: votes, Extras: extras}
	for _, v := range votes {
		if v.Vote > 0 {
			r.BullishPoints += v.Vote
		} else {
			r.BearishPoints -= v.Vote
		}
	}

	maxPossible := len(votes)
	if maxPossible == 0 {
		return domain.Signal{Direction: domain.DirectionNeutral, Rationale: r}
	}

	net := r.Net()
	sig := domain.Signal{Rationale: r}
	switch {
	case net > 0:
		sig.Direction = domain.DirectionBullish
	case net < 0:
		sig.Direction = domain.DirectionBearish
	default:
		sig.Direction = domain.DirectionNeutral
		return sig
	}

	conf := int(math.Round(math.Abs(float64(net)) / float64(maxPossible) * 10))
	sig.Confidence = min(10, max(1, conf))
	return sig
}

// RSIVote weighted RSI vote: extremes count triple, plain oversold/overbought double.
func RSIVote(rsi float64) int {
	switch {
	case rsi < 25:
		return 3
	case rsi < 30:
		return 2
	case rsi > 75:
		return -3
	case rsi > 70:
		return -2
	}
	return 0
}

func thresholdVote(v, threshold float64) int {
	switch {
	case v > threshold:
		return 1
	case v < -threshold:
		return -1
	}
	return 0
}

func sign(v float64) int {
	return thresholdVote(v, 0)
}

func compare(a, b float64) int {
	return sign(a - b)
}

func depthKey(pct float64) string {
	return fmt.Sprintf("depth_%gpct", pct)
}
