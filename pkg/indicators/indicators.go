// Package indicators wraps cinar/indicator for the moving-average family (EMA, MACD, RSI).
package indicators

import (
	"math"
	"sync"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// MACDValue latest MACD reading.
type MACDValue struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// EMA calculates the SMA-seeded exponential moving average series.
// The series starts at index period-1 of the input.
func EMA(values []float64, period int) ([]float64, bool) {
	if period < 1 || len(values) < period {
		return nil, false
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// LastEMA returns the most recent EMA value.
func LastEMA(values []float64, period int) (float64, bool) {
	series, ok := EMA(values, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}

// RSI returns the latest Wilder RSI. It needs period+1 closes.
// A window without losses reads 100.
func RSI(closes []float64, period int) (float64, bool) {
	if period < 1 || len(closes) < period+1 {
		return 0, false
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
	if len(out) == 0 {
		return 0, false
	}

	v := out[len(out)-1]
	switch {
	case math.IsNaN(v), math.IsInf(v, 0):
		// avg gain and avg loss both zero
		return 100, true
	case v > 100:
		return 100, true
	case v < 0:
		return 0, true
	}
	return v, true
}

// MACDMinCloses is the number of closes MACD needs for one signal value.
func MACDMinCloses(slow, signal int) int {
	return slow + signal - 1
}

// MACD returns the latest MACD line, signal line and histogram.
func MACD(closes []float64, fast, slow, signal int) (MACDValue, bool) {
	if fast < 1 || slow <= fast || signal < 1 || len(closes) < MACDMinCloses(slow, signal) {
		return MACDValue{}, false
	}

	macd := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	macdChan, signalChan := macd.Compute(helper.SliceToChan(closes))

	// both outputs come from one duplicated stream and must be drained together
	var (
		wg      sync.WaitGroup
		signals []float64
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		signals = helper.ChanToSlice(signalChan)
	}()
	lines := helper.ChanToSlice(macdChan)
	wg.Wait()

	if len(lines) == 0 || len(signals) == 0 {
		return MACDValue{}, false
	}

	line := lines[len(lines)-1]
	sig := signals[len(signals)-1]
	return MACDValue{Line: line, Signal: sig, Histogram: line - sig}, true
}

// Float64s converts decimals to float64 for the indicator library.
func Float64s(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}
