// Package indicators computes per-bar technical series. Every function
// returns a slice aligned index-for-index with the input; positions before
// the warmup window hold NaN.
package indicators

import (
	"math"
)

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// firstValid returns the index of the first non-NaN value, or -1.
func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SMA is a simple rolling mean over period bars.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA seeds with the SMA of the first period values and then applies
// alpha = 2/(period+1) smoothing. A leading NaN prefix in the input shifts
// the seed forward, so EMA-of-EMA chains (MACD signal) stay well defined.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	start := firstValid(values)
	if start < 0 || len(values)-start < period {
		return out
	}
	seed := mean(values[start : start+period])
	out[start+period-1] = seed

	alpha := 2.0 / float64(period+1)
	oneMinusAlpha := 1.0 - alpha
	for i := start + period; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*oneMinusAlpha
	}
	return out
}

// RSI uses rolling-mean average gain/loss. An all-gain window reads 100.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	var gainSum, lossSum float64
	for i := 1; i < len(closes); i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}
		if i >= period {
			avgGain := gainSum / float64(period)
			avgLoss := lossSum / float64(period)
			if avgLoss == 0 {
				out[i] = 100
			} else {
				rs := avgGain / avgLoss
				out[i] = 100 - 100/(1+rs)
			}
		}
	}
	return out
}

// trueRange computes the per-bar true range. The first bar has no prior
// close, so its range is simply high-low.
func trueRange(highs, lows, closes []float64) []float64 {
	tr := make([]float64, len(highs))
	for i := range highs {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR is the simple rolling mean of true range.
func ATR(highs, lows, closes []float64, period int) []float64 {
	return SMA(trueRange(highs, lows, closes), period)
}

// ATRWilder seeds with the mean of the first period true ranges and then
// applies Wilder smoothing: atr = (prev*(period-1) + tr) / period.
func ATRWilder(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(highs))
	if period <= 0 || len(highs) <= period {
		return out
	}
	tr := trueRange(highs, lows, closes)
	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(tr); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// MACDResult carries the three MACD series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD is the fast EMA minus slow EMA, with a signal EMA over the
// difference and the line-minus-signal histogram.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	line := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) {
			line[i] = emaFast[i] - emaSlow[i]
		}
	}
	sig := EMA(line, signal)
	hist := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// BollingerResult carries the three band series.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger places bands stdDev sample standard deviations around the SMA.
func Bollinger(closes []float64, period int, stdDev float64) BollingerResult {
	middle := SMA(closes, period)
	std := RollingStd(closes, period)
	upper := nanSlice(len(closes))
	lower := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(middle[i]) && !math.IsNaN(std[i]) {
			upper[i] = middle[i] + std[i]*stdDev
			lower[i] = middle[i] - std[i]*stdDev
		}
	}
	return BollingerResult{Upper: upper, Middle: middle, Lower: lower}
}

// StochasticResult carries the smoothed %K and %D series.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes raw %K over kPeriod, smooths it by smoothK, and takes
// %D as a dPeriod SMA of the smoothed line. A flat window reads 0.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod, smoothK int) StochasticResult {
	hh := RollingMax(highs, kPeriod)
	ll := RollingMin(lows, kPeriod)
	raw := nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			continue
		}
		span := hh[i] - ll[i]
		if span == 0 {
			raw[i] = 0
			continue
		}
		raw[i] = 100 * (closes[i] - ll[i]) / span
	}
	k := smaOverValid(raw, smoothK)
	d := smaOverValid(k, dPeriod)
	return StochasticResult{K: k, D: d}
}

// WilliamsR is the inverted stochastic on a 0..-100 scale.
func WilliamsR(highs, lows, closes []float64, period int) []float64 {
	hh := RollingMax(highs, period)
	ll := RollingMin(lows, period)
	out := nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			continue
		}
		span := hh[i] - ll[i]
		if span == 0 {
			out[i] = 0
			continue
		}
		out[i] = -100 * (hh[i] - closes[i]) / span
	}
	return out
}

// CCI measures the typical price's deviation from its rolling mean, scaled
// by 0.015 times the mean absolute deviation.
func CCI(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	tp := make([]float64, len(closes))
	for i := range closes {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	smaTP := SMA(tp, period)
	for i := period - 1; i < len(tp); i++ {
		var dev float64
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(tp[j] - smaTP[i])
		}
		dev /= float64(period)
		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - smaTP[i]) / (0.015 * dev)
	}
	return out
}

// MFI is a volume-weighted RSI over typical price. All-inflow windows
// read 100.
func MFI(highs, lows, closes, volumes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	pos := make([]float64, len(closes))
	neg := make([]float64, len(closes))
	prevTP := (highs[0] + lows[0] + closes[0]) / 3
	for i := 1; i < len(closes); i++ {
		tp := (highs[i] + lows[i] + closes[i]) / 3
		flow := tp * volumes[i]
		if tp > prevTP {
			pos[i] = flow
		} else if tp < prevTP {
			neg[i] = flow
		}
		prevTP = tp
	}
	var posSum, negSum float64
	for i := 1; i < len(closes); i++ {
		posSum += pos[i]
		negSum += neg[i]
		if i > period {
			posSum -= pos[i-period]
			negSum -= neg[i-period]
		}
		if i >= period {
			if negSum == 0 {
				out[i] = 100
			} else {
				out[i] = 100 - 100/(1+posSum/negSum)
			}
		}
	}
	return out
}

// RollingMax is the running maximum over period bars.
func RollingMax(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		m := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMin is the running minimum over period bars.
func RollingMin(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		m := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingStd is the rolling sample standard deviation (n-1 denominator).
func RollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		m := mean(window)
		var ss float64
		for _, v := range window {
			d := v - m
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period-1))
	}
	return out
}

// smaOverValid applies an SMA starting from the first non-NaN value, so the
// warmup prefix of the input just shifts the output's own warmup forward.
func smaOverValid(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	start := firstValid(values)
	if start < 0 || period <= 0 || len(values)-start < period {
		return out
	}
	sub := SMA(values[start:], period)
	copy(out[start:], sub)
	return out
}
