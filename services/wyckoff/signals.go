package wyckoff

import (
	"time"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

// Signal is one per-bar trading decision. Immutable once created. Support,
// Resistance, StopLoss and TakeProfit are 0 when not available.
type Signal struct {
	Date        time.Time `json:"date"`
	Phase       Phase     `json:"phase"`
	Action      Action    `json:"action"`
	Price       float64   `json:"price"`
	VolumeRatio float64   `json:"volume_ratio"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning"`
	Support     float64   `json:"support_level,omitempty"`
	Resistance  float64   `json:"resistance_level,omitempty"`
	StopLoss    float64   `json:"stop_loss,omitempty"`
	TakeProfit  float64   `json:"take_profit,omitempty"`
}

// SignalGenerator maps phase and volume context to an action with
// protective levels.
type SignalGenerator struct {
	// VolumeThreshold gates accumulation/distribution entries.
	VolumeThreshold float64
	// ATRStopMult and ATRTakeMult anchor protective levels around the
	// signal price.
	ATRStopMult float64
	ATRTakeMult float64
}

// NewSignalGenerator returns a generator with the standard 1.5x volume
// gate and 2x/3x ATR protective levels.
func NewSignalGenerator() *SignalGenerator {
	return &SignalGenerator{
		VolumeThreshold: 1.5,
		ATRStopMult:     2,
		ATRTakeMult:     3,
	}
}

// Generate builds the signal for the bar at index i given its classified
// phase. atr may be NaN or 0 when unavailable; protective levels are then
// omitted.
func (g *SignalGenerator) Generate(bars []marketdata.Bar, i int, phase Phase, confidence float64, m Metrics, atr float64) Signal {
	bar := bars[i]
	sig := Signal{
		Date:        bar.Date,
		Phase:       phase,
		Action:      Hold,
		Price:       bar.Close,
		VolumeRatio: m.VolumeRatio,
		Confidence:  confidence,
	}

	switch phase {
	case Accumulation:
		if m.VolumeRatio > g.VolumeThreshold {
			sig.Action = Buy
			sig.Reasoning = "high volume accumulation suggests institutional buying"
		} else {
			sig.Reasoning = "accumulation phase, waiting for volume confirmation"
		}
	case Distribution:
		if m.VolumeRatio > g.VolumeThreshold {
			sig.Action = Sell
			sig.Reasoning = "high volume distribution suggests institutional selling"
		} else {
			sig.Reasoning = "distribution phase, waiting for volume confirmation"
		}
	case Markup:
		sig.Action = Buy
		sig.Reasoning = "uptrend with volume confirmation"
	case Markdown:
		sig.Action = Sell
		sig.Reasoning = "downtrend, avoid long exposure"
	default:
		sig.Reasoning = "no clear phase"
	}

	sig.Support, sig.Resistance = SupportResistanceAt(bars, i)

	if sig.Action != Hold && atr > 0 {
		if sig.Action == Buy {
			sig.StopLoss = bar.Close - g.ATRStopMult*atr
			sig.TakeProfit = bar.Close + g.ATRTakeMult*atr
		} else {
			sig.StopLoss = bar.Close + g.ATRStopMult*atr
			sig.TakeProfit = bar.Close - g.ATRTakeMult*atr
		}
	}
	return sig
}

const (
	pivotLookback = 50
	pivotSpan     = 5
)

// SupportResistanceAt derives support and resistance from 5-bar pivot lows
// and highs over the trailing 50 bars: support is the highest pivot low
// below the current close, resistance the lowest pivot high above it.
// Either is 0 when no qualifying pivot exists or fewer than 50 bars are
// available.
func SupportResistanceAt(bars []marketdata.Bar, i int) (support, resistance float64) {
	if i+1 < pivotLookback {
		return 0, 0
	}
	recent := bars[i+1-pivotLookback : i+1]
	current := recent[len(recent)-1].Close

	for k := pivotSpan; k < len(recent)-pivotSpan; k++ {
		if isPivotLow(recent, k) {
			low := recent[k].Low
			if low < current && low > support {
				support = low
			}
		}
		if isPivotHigh(recent, k) {
			high := recent[k].High
			if high > current && (resistance == 0 || high < resistance) {
				resistance = high
			}
		}
	}
	return support, resistance
}

func isPivotLow(bars []marketdata.Bar, k int) bool {
	low := bars[k].Low
	for j := k - pivotSpan; j < k; j++ {
		if bars[j].Low <= low {
			return false
		}
	}
	for j := k + 1; j <= k+pivotSpan; j++ {
		if bars[j].Low <= low {
			return false
		}
	}
	return true
}

func isPivotHigh(bars []marketdata.Bar, k int) bool {
	high := bars[k].High
	for j := k - pivotSpan; j < k; j++ {
		if bars[j].High >= high {
			return false
		}
	}
	for j := k + 1; j <= k+pivotSpan; j++ {
		if bars[j].High >= high {
			return false
		}
	}
	return true
}
