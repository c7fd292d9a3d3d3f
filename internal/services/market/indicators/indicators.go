// Package indicators turns market snapshots into scalar indicator readings.
// Every reading is returned together with an availability flag: a reading
// whose minimum data is missing is reported unavailable, never defaulted.
package indicators

import (
	"time"

	"github.com/vadiminshakov/updown/internal/domain"
	ta "github.com/vadiminshakov/updown/pkg/indicators"
)

// Params tunables of the indicator set.
type Params struct {
	OBIBandPct    float64
	WallMultiple  float64
	DepthBandsPct []float64
	CVDWindows    []time.Duration
	DeltaWindow   time.Duration
	ProfileBins   int
	RSIPeriod     int
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	EMAShort      int
	EMALong       int
}

// DefaultParams returns the production indicator settings.
func DefaultParams() Params {
	return Params{
		OBIBandPct:    1.0,
		WallMultiple:  5,
		DepthBandsPct: []float64{0.1, 0.5, 1.0},
		CVDWindows:    []time.Duration{60 * time.Second, 180 * time.Second, 300 * time.Second},
		DeltaWindow:   60 * time.Second,
		ProfileBins:   30,
		RSIPeriod:     14,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		EMAShort:      5,
		EMALong:       20,
	}
}

// Set computes indicators over snapshots. It holds configuration only.
type Set struct {
	p Params
}

// New creates an indicator set.
func New(p Params) *Set {
	return &Set{p: p}
}

// Params returns the configured tunables.
func (s *Set) Params() Params {
	return s.p
}

// Walls counts of wall levels per book side.
type Walls struct {
	Buy  int
	Sell int
}

// Bucket one volume profile bin.
type Bucket struct {
	Price  float64
	Volume float64
}

// Profile volume profile with its point of control.
type Profile struct {
	POC     float64
	Buckets []Bucket
}

// EMAPair short and long EMA at the last candle.
type EMAPair struct {
	Short float64
	Long  float64
}

// OBI order book imbalance within the configured band around mid, in [-1, 1].
func (s *Set) OBI(snap domain.MarketSnapshot) (float64, bool) {
	mid, _ := snap.Mid.Float64()
	if !snap.HasBook() || mid <= 0 {
		return 0, false
	}

	band := mid * s.p.OBIBandPct / 100
	var bidVol, askVol float64
	for _, l := range snap.Bids {
		p, q := level(l)
		if p >= mid-band {
			bidVol += q
		}
	}
	for _, l := range snap.Asks {
		p, q := level(l)
		if p <= mid+band {
			askVol += q
		}
	}

	total := bidVol + askVol
	if total == 0 {
		return 0, true
	}
	return (bidVol - askVol) / total, true
}

// Walls counts levels whose quantity is at least WallMultiple times the
// mean level quantity across both sides.
func (s *Set) Walls(snap domain.MarketSnapshot) (Walls, bool) {
	if !snap.HasBook() {
		return Walls{}, false
	}

	var sum float64
	n := 0
	for _, side := range [][]domain.OrderBookLevel{snap.Bids, snap.Asks} {
		for _, l := range side {
			_, q := level(l)
			sum += q
			n++
		}
	}
	threshold := sum / float64(n) * s.p.WallMultiple

	var w Walls
	for _, l := range snap.Bids {
		if _, q := level(l); q >= threshold {
			w.Buy++
		}
	}
	for _, l := range snap.Asks {
		if _, q := level(l); q >= threshold {
			w.Sell++
		}
	}
	return w, true
}

// Depth returns notional liquidity within each configured percentage band of mid.
func (s *Set) Depth(snap domain.MarketSnapshot) (map[float64]float64, bool) {
	mid, _ := snap.Mid.Float64()
	if !snap.HasBook() || mid <= 0 {
		return nil, false
	}

	out := make(map[float64]float64, len(s.p.DepthBandsPct))
	for _, pct := range s.p.DepthBandsPct {
		band := mid * pct / 100
		var usd float64
		for _, l := range snap.Bids {
			if p, q := level(l); p >= mid-band {
				usd += p * q
			}
		}
		for _, l := range snap.Asks {
			if p, q := level(l); p <= mid+band {
				usd += p * q
			}
		}
		out[pct] = usd
	}
	return out, true
}

// CVD signed notional flow over the trailing window ending at the snapshot time.
func (s *Set) CVD(snap domain.MarketSnapshot, window time.Duration) (float64, bool) {
	if len(snap.Trades) == 0 {
		return 0, false
	}

	cut := referenceTime(snap).Add(-window)
	var cvd float64
	for _, t := range snap.Trades {
		if t.Time.Before(cut) {
			continue
		}
		n, _ := t.Notional().Float64()
		if t.BuyerAggressor {
			cvd += n
		} else {
			cvd -= n
		}
	}
	return cvd, true
}

// Delta buy minus sell notional over the short delta window.
func (s *Set) Delta(snap domain.MarketSnapshot) (float64, bool) {
	return s.CVD(snap, s.p.DeltaWindow)
}

// VolumeProfile spreads every candle's volume evenly over the buckets its
// range covers and reports the centre of the heaviest bucket.
func (s *Set) VolumeProfile(snap domain.MarketSnapshot) (Profile, bool) {
	if len(snap.Candles) == 0 || s.p.ProfileBins < 1 {
		return Profile{}, false
	}

	lo, hi := f(snap.Candles[0].Low), f(snap.Candles[0].High)
	var totalVol float64
	for _, c := range snap.Candles {
		if l := f(c.Low); l < lo {
			lo = l
		}
		if h := f(c.High); h > hi {
			hi = h
		}
		totalVol += f(c.Volume)
	}
	if hi == lo {
		return Profile{POC: lo, Buckets: []Bucket{{Price: lo, Volume: totalVol}}}, true
	}

	n := s.p.ProfileBins
	size := (hi - lo) / float64(n)
	bins := make([]float64, n)
	for _, c := range snap.Candles {
		bLo := max(0, int((f(c.Low)-lo)/size))
		bHi := min(n-1, int((f(c.High)-lo)/size))
		share := f(c.Volume) / float64(max(1, bHi-bLo+1))
		for b := bLo; b <= bHi; b++ {
			bins[b] += share
		}
	}

	poc := 0
	buckets := make([]Bucket, n)
	for i, v := range bins {
		buckets[i] = Bucket{Price: lo + (float64(i)+0.5)*size, Volume: v}
		if v > bins[poc] {
			poc = i
		}
	}
	return Profile{POC: buckets[poc].Price, Buckets: buckets}, true
}

// RSI Wilder RSI over closed candle closes.
func (s *Set) RSI(snap domain.MarketSnapshot) (float64, bool) {
	return ta.RSI(closes(snap), s.p.RSIPeriod)
}

// MACD latest MACD, signal and histogram over closed candle closes.
func (s *Set) MACD(snap domain.MarketSnapshot) (ta.MACDValue, bool) {
	return ta.MACD(closes(snap), s.p.MACDFast, s.p.MACDSlow, s.p.MACDSignal)
}

// VWAP volume weighted typical price over the candle history.
func (s *Set) VWAP(snap domain.MarketSnapshot) (float64, bool) {
	var pv, vol float64
	for _, c := range snap.Candles {
		typical := (f(c.High) + f(c.Low) + f(c.Close)) / 3
		v := f(c.Volume)
		pv += typical * v
		vol += v
	}
	if vol <= 0 {
		return 0, false
	}
	return pv / vol, true
}

// EMACross short and long EMA of closes.
func (s *Set) EMACross(snap domain.MarketSnapshot) (EMAPair, bool) {
	cl := closes(snap)
	short, ok := ta.LastEMA(cl, s.p.EMAShort)
	if !ok {
		return EMAPair{}, false
	}
	long, ok := ta.LastEMA(cl, s.p.EMALong)
	if !ok {
		return EMAPair{}, false
	}
	return EMAPair{Short: short, Long: long}, true
}

// HAStreak number of consecutive same-colour Heikin-Ashi candles ending at
// the last closed candle; positive for green, negative for red.
func (s *Set) HAStreak(snap domain.MarketSnapshot) (int, bool) {
	if len(snap.Candles) == 0 {
		return 0, false
	}

	green := make([]bool, len(snap.Candles))
	var prevOpen, prevClose float64
	for i, c := range snap.Candles {
		o, h, l, cl := f(c.Open), f(c.High), f(c.Low), f(c.Close)
		haClose := (o + h + l + cl) / 4
		haOpen := (o + cl) / 2
		if i > 0 {
			haOpen = (prevOpen + prevClose) / 2
		}
		green[i] = haClose >= haOpen
		prevOpen, prevClose = haOpen, haClose
	}

	last := green[len(green)-1]
	streak := 0
	for i := len(green) - 1; i >= 0 && green[i] == last; i-- {
		streak++
	}
	if !last {
		streak = -streak
	}
	return streak, true
}

func closes(snap domain.MarketSnapshot) []float64 {
	out := make([]float64, len(snap.Candles))
	for i, c := range snap.Candles {
		out[i] = f(c.Close)
	}
	return out
}

// referenceTime is the snapshot capture time, or the newest trade when unset.
func referenceTime(snap domain.MarketSnapshot) time.Time {
	if !snap.CapturedAt.IsZero() {
		return snap.CapturedAt
	}
	var latest time.Time
	for _, t := range snap.Trades {
		if t.Time.After(latest) {
			latest = t.Time
		}
	}
	return latest
}
