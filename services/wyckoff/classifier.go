package wyckoff

import (
	"math"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

// Window is the classification lookback in bars.
const Window = 20

// Metrics are the rolling-window statistics the classifier decides on.
// Percentages are fractions (0.08 = 8%).
type Metrics struct {
	PriceChangePct float64 // window net return
	PriceRangePct  float64 // window high-low relative to window-start price
	VolumeRatio    float64 // window average volume vs rolling-20 baseline
	VolumeTrend    float64 // second-half vs first-half window volume
	PriceVsSMA     float64 // close relative to 20-bar SMA
}

// WindowMetrics computes classification metrics for the window ending at
// index i. i must satisfy i >= Window-1.
func WindowMetrics(bars []marketdata.Bar, i int) Metrics {
	window := bars[i-Window+1 : i+1]

	startPrice := window[0].Close
	endPrice := window[len(window)-1].Close
	var changePct float64
	if startPrice > 0 {
		changePct = (endPrice - startPrice) / startPrice
	}

	high := window[0].High
	low := window[0].Low
	var volSum, closeSum float64
	for _, b := range window {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
		volSum += b.Volume
		closeSum += b.Close
	}
	var rangePct float64
	if startPrice > 0 {
		rangePct = (high - low) / startPrice
	}

	volumeRatio := windowVolumeRatio(bars, i)

	mid := len(window) / 2
	var firstHalf, secondHalf float64
	for k, b := range window {
		if k < mid {
			firstHalf += b.Volume
		} else {
			secondHalf += b.Volume
		}
	}
	volumeTrend := 1.0
	if mid > 0 && firstHalf > 0 {
		volumeTrend = (secondHalf / float64(len(window)-mid)) / (firstHalf / float64(mid))
	}

	sma := closeSum / float64(len(window))
	var priceVsSMA float64
	if sma > 0 {
		priceVsSMA = (endPrice - sma) / sma
	}

	return Metrics{
		PriceChangePct: changePct,
		PriceRangePct:  rangePct,
		VolumeRatio:    volumeRatio,
		VolumeTrend:    volumeTrend,
		PriceVsSMA:     priceVsSMA,
	}
}

// windowVolumeRatio averages, over the window ending at i, each bar's
// volume relative to its own trailing rolling-20 baseline. A window of
// elevated volume against the preceding baseline reads above 1.
func windowVolumeRatio(bars []marketdata.Bar, i int) float64 {
	var sum float64
	var n int
	for k := i - Window + 1; k <= i; k++ {
		baseline := trailingVolumeMean(bars, k)
		if baseline <= 0 {
			continue
		}
		sum += bars[k].Volume / baseline
		n++
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

func trailingVolumeMean(bars []marketdata.Bar, i int) float64 {
	start := i - Window + 1
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, b := range bars[start : i+1] {
		sum += b.Volume
	}
	return sum / float64(i+1-start)
}

// Classify maps window metrics to a phase, first matching rule wins. A
// window matching no rule stays Unclassified; the prior phase is never
// carried forward.
func Classify(m Metrics) Phase {
	switch {
	case m.PriceChangePct > 0.08 && m.PriceVsSMA > 0.02 && m.VolumeRatio > 1.1:
		return Markup
	case m.PriceChangePct < -0.08 && m.PriceVsSMA < -0.02:
		return Markdown
	case math.Abs(m.PriceChangePct) < 0.05 && m.PriceRangePct < 0.15 &&
		m.VolumeRatio > 1.0 && m.VolumeTrend > 1.05:
		return Accumulation
	case math.Abs(m.PriceChangePct) < 0.05 && m.PriceRangePct < 0.15 &&
		m.VolumeRatio > 1.0 && m.VolumeTrend < 0.95:
		return Distribution
	case m.PriceChangePct > 0.03 && m.PriceVsSMA > 0.01:
		return Markup
	case m.PriceChangePct < -0.03 && m.PriceVsSMA < -0.01:
		return Markdown
	default:
		return Unclassified
	}
}

// Confidence scores how well the metrics satisfy the matched phase's
// criteria. Base 0.5 plus magnitude bonuses, clamped to [0.3, 0.95].
func Confidence(m Metrics, phase Phase) float64 {
	confidence := 0.5

	switch phase {
	case Markup:
		switch {
		case m.PriceChangePct > 0.15:
			confidence += 0.3
		case m.PriceChangePct > 0.08:
			confidence += 0.2
		default:
			confidence += 0.1
		}
		switch {
		case m.VolumeRatio > 1.2:
			confidence += 0.1
		case m.VolumeRatio > 1.0:
			confidence += 0.05
		}
	case Markdown:
		switch {
		case m.PriceChangePct < -0.15:
			confidence += 0.3
		case m.PriceChangePct < -0.08:
			confidence += 0.2
		default:
			confidence += 0.1
		}
	case Accumulation:
		switch {
		case math.Abs(m.PriceChangePct) < 0.02:
			confidence += 0.2
		case math.Abs(m.PriceChangePct) < 0.05:
			confidence += 0.1
		}
		if m.VolumeTrend > 1.1 {
			confidence += 0.1
		}
	case Distribution:
		switch {
		case math.Abs(m.PriceChangePct) < 0.02:
			confidence += 0.2
		case math.Abs(m.PriceChangePct) < 0.05:
			confidence += 0.1
		}
		if m.VolumeTrend < 0.9 {
			confidence += 0.1
		}
	}

	return math.Min(0.95, math.Max(0.3, confidence))
}

// ClassifyAt computes metrics for the window ending at i and classifies it.
func ClassifyAt(bars []marketdata.Bar, i int) (Phase, float64, Metrics) {
	m := WindowMetrics(bars, i)
	phase := Classify(m)
	return phase, Confidence(m, phase), m
}
