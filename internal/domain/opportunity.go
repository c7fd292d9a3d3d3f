package domain

import "time"

// MarketOpportunity scored market produced by one scan.
type MarketOpportunity struct {
	Market    MarketKey     `json:"market"`
	Score     int           `json:"score"`
	Signal    Signal        `json:"signal"`
	Reason    string        `json:"reason"`
	ToExpiry  time.Duration `json:"to_expiry"`
	HasExpiry bool          `json:"has_expiry"`
	Tokens    MarketTokens  `json:"tokens"`
}

// Tradeable reports whether the opportunity passes the minimum score bar.
func (o MarketOpportunity) Tradeable(minScore int) bool {
	return o.Signal.Direction != DirectionNeutral && o.Score >= minScore
}
