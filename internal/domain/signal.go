package domain

// Direction directional call of a signal.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
	DirectionNeutral Direction = "NEUTRAL"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case DirectionBullish, DirectionBearish, DirectionNeutral:
		return d, true
	}
	return "", false
}

// IndicatorName stable identifier of a voting indicator.
type IndicatorName string

const (
	IndicatorOBI      IndicatorName = "obi"
	IndicatorWalls    IndicatorName = "walls"
	IndicatorCVD60    IndicatorName = "cvd_60s"
	IndicatorCVD180   IndicatorName = "cvd_180s"
	IndicatorCVD300   IndicatorName = "cvd_300s"
	IndicatorDelta    IndicatorName = "delta_60s"
	IndicatorPOC      IndicatorName = "poc"
	IndicatorRSI      IndicatorName = "rsi"
	IndicatorMACD     IndicatorName = "macd"
	IndicatorVWAP     IndicatorName = "vwap"
	IndicatorEMACross IndicatorName = "ema_cross"
	IndicatorHAStreak IndicatorName = "ha_streak"
)

// IndicatorVote raw value of one available indicator and the vote it cast.
type IndicatorVote struct {
	Name  IndicatorName `json:"name"`
	Value float64       `json:"value"`
	Vote  int           `json:"vote"`
}

// Rationale explains a signal: one entry per voting indicator, in evaluation order.
type Rationale struct {
	Votes         []IndicatorVote `json:"votes"`
	BullishPoints int             `json:"bullish_points"`
	BearishPoints int             `json:"bearish_points"`
	// Extras holds display-only values such as depth bands and EMA levels.
	Extras map[string]float64 `json:"extras,omitempty"`
}

// Vote looks up the vote cast by an indicator.
func (r Rationale) Vote(name IndicatorName) (IndicatorVote, bool) {
	for _, v := range r.Votes {
		if v.Name == name {
			return v, true
		}
	}
	return IndicatorVote{}, false
}

// Counted is the number of indicators that voted.
func (r Rationale) Counted() int {
	return len(r.Votes)
}

// Net returns bullish minus bearish points.
func (r Rationale) Net() int {
	return r.BullishPoints - r.BearishPoints
}

// Signal fused directional call for one market snapshot.
type Signal struct {
	Direction    Direction `json:"direction"`
	Confidence   int       `json:"confidence"`
	Rationale    Rationale `json:"rationale"`
	RSITriggered bool      `json:"rsi_triggered"`
}

// NeutralSignal is the signal of a market with nothing to say.
func NeutralSignal() Signal {
	return Signal{Direction: DirectionNeutral}
}

// ShouldTrade reports whether the signal is actionable at the given threshold.
func (s Signal) ShouldTrade(threshold int) bool {
	return s.Direction != DirectionNeutral && s.Confidence >= threshold
}

// Action maps the direction to the token to buy.
func (s Signal) Action() Action {
	switch s.Direction {
	case DirectionBullish:
		return ActionBuyUp
	case DirectionBearish:
		return ActionBuyDown
	}
	return ActionNone
}

// RSI returns the RSI reading if it was available.
func (s Signal) RSI() (float64, bool) {
	v, ok := s.Rationale.Vote(IndicatorRSI)
	return v.Value, ok
}

// Momentum is the net vote normalised by the number of voters.
// Weighted RSI votes can push it beyond [-1, 1].
func (s Signal) Momentum() float64 {
	n := s.Rationale.Counted()
	if n == 0 {
		return 0
	}
	return float64(s.Rationale.Net()) / float64(n)
}
