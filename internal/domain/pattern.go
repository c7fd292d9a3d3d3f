package domain

import (
	"fmt"
	"strings"
	"time"
)

// RSIRegime coarse RSI bucket used by the learner.
type RSIRegime string

const (
	RSIRegimeOversold   RSIRegime = "oversold"
	RSIRegimeNeutral    RSIRegime = "neutral"
	RSIRegimeOverbought RSIRegime = "overbought"
)

// RSIRegimeOf classifies an RSI reading.
func RSIRegimeOf(rsi float64) RSIRegime {
	switch {
	case rsi < 30:
		return RSIRegimeOversold
	case rsi > 70:
		return RSIRegimeOverbought
	default:
		return RSIRegimeNeutral
	}
}

// PatternKey unit of statistical aggregation for the learner.
type PatternKey struct {
	Asset     Asset
	Timeframe Timeframe
	Direction Direction
	Regime    RSIRegime
}

// NewPatternKey derives the key of a trade from its market, direction and RSI.
func NewPatternKey(market MarketKey, direction Direction, rsi float64) PatternKey {
	return PatternKey{
		Asset:     market.Asset,
		Timeframe: market.Timeframe,
		Direction: direction,
		Regime:    RSIRegimeOf(rsi),
	}
}

// String returns e.g. BTC_15m_BULLISH_oversold.
func (k PatternKey) String() string {
	return fmt.Sprintf("%s_%s_%s_%s", k.Asset, k.Timeframe, k.Direction, k.Regime)
}

// Market returns the (asset, timeframe) part of the key.
func (k PatternKey) Market() MarketKey {
	return MarketKey{Asset: k.Asset, Timeframe: k.Timeframe}
}

// ParsePatternKey is the inverse of PatternKey.String.
func ParsePatternKey(s string) (PatternKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 4 {
		return PatternKey{}, fmt.Errorf("invalid pattern key %q", s)
	}
	market, err := ParseMarketKey(parts[0] + "_" + parts[1])
	if err != nil {
		return PatternKey{}, err
	}
	direction, ok := ParseDirection(parts[2])
	if !ok {
		return PatternKey{}, fmt.Errorf("invalid direction in pattern key %q", s)
	}
	regime := RSIRegime(parts[3])
	switch regime {
	case RSIRegimeOversold, RSIRegimeNeutral, RSIRegimeOverbought:
	default:
		return PatternKey{}, fmt.Errorf("invalid rsi regime in pattern key %q", s)
	}
	return PatternKey{Asset: market.Asset, Timeframe: market.Timeframe, Direction: direction, Regime: regime}, nil
}

// MarshalText encodes the key as its string form so it can key JSON maps.
func (k PatternKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a key produced by MarshalText.
func (k *PatternKey) UnmarshalText(b []byte) error {
	parsed, err := ParsePatternKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PatternStats running performance of one pattern.
type PatternStats struct {
	Key           PatternKey `json:"key"`
	Trades        int        `json:"trades"`
	Wins          int        `json:"wins"`
	Losses        int        `json:"losses"`
	TotalPnL      float64    `json:"total_pnl"`
	AvgWinPct     float64    `json:"avg_win_pct"`
	AvgLossPct    float64    `json:"avg_loss_pct"`
	BestTradePct  float64    `json:"best_trade_pct"`
	WorstTradePct float64    `json:"worst_trade_pct"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// WinRate returns wins/trades, or 0.5 when nothing was observed yet.
func (s PatternStats) WinRate() float64 {
	if s.Trades == 0 {
		return 0.5
	}
	return float64(s.Wins) / float64(s.Trades)
}

// Observe folds one completed trade into the running statistics.
func (s *PatternStats) Observe(pnl, pnlPct float64, at time.Time) {
	s.Trades++
	s.TotalPnL += pnl
	s.LastUpdated = at

	if pnl > 0 {
		s.Wins++
		if pnlPct > s.BestTradePct {
			s.BestTradePct = pnlPct
		}
		s.AvgWinPct = (s.AvgWinPct*float64(s.Wins-1) + pnlPct) / float64(s.Wins)
		return
	}

	s.Losses++
	if pnlPct < s.WorstTradePct {
		s.WorstTradePct = pnlPct
	}
	s.AvgLossPct = (s.AvgLossPct*float64(s.Losses-1) + pnlPct) / float64(s.Losses)
}
