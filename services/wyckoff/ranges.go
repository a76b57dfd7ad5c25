package wyckoff

import (
	"math"
	"sort"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

// RangeWindow is the minimum consolidation span in bars.
const RangeWindow = 30

// TradingRange is a detected consolidation span with its support and
// resistance bounds. Sub-phase tags reference the owning range by index
// positions; they never copy the bounds.
type TradingRange struct {
	StartIdx   int
	EndIdx     int
	Support    float64
	Resistance float64
}

// SubPhase tags a chronological Wyckoff phase inside a trading range.
type SubPhase struct {
	Code     string // "A".."D"
	Name     string
	StartIdx int
	EndIdx   int
}

// RangeDetector finds trading ranges and tags their internal phases.
type RangeDetector struct {
	// SpringThreshold is how far below support a spring may pierce,
	// as a fraction of the support level.
	SpringThreshold float64
}

// NewRangeDetector returns a detector with the 5% spring threshold.
func NewRangeDetector() *RangeDetector {
	return &RangeDetector{SpringThreshold: 0.05}
}

// Detect scans for consolidation spans of at least RangeWindow bars with
// volatility (close stdev/mean) under 15% and total high/low range under
// 25% of the mean price. Qualifying windows are expanded outward while
// price holds within 5% of the window's own support and resistance.
func (d *RangeDetector) Detect(bars []marketdata.Bar) []TradingRange {
	var ranges []TradingRange
	for center := RangeWindow; center < len(bars)-RangeWindow; center++ {
		window := bars[center-RangeWindow : center+RangeWindow]
		if !isConsolidation(window) {
			continue
		}
		start, end := expandBounds(bars, center)
		if end-start < RangeWindow {
			continue
		}
		tr := TradingRange{
			StartIdx:   start,
			EndIdx:     end,
			Support:    lowestLow(bars[start : end+1]),
			Resistance: highestHigh(bars[start : end+1]),
		}
		if n := len(ranges); n > 0 && ranges[n-1].StartIdx == tr.StartIdx && ranges[n-1].EndIdx == tr.EndIdx {
			continue
		}
		ranges = append(ranges, tr)
	}
	return ranges
}

func isConsolidation(window []marketdata.Bar) bool {
	var closeSum float64
	for _, b := range window {
		closeSum += b.Close
	}
	meanClose := closeSum / float64(len(window))
	if meanClose <= 0 {
		return false
	}

	var ss float64
	for _, b := range window {
		d := b.Close - meanClose
		ss += d * d
	}
	volatility := math.Sqrt(ss/float64(len(window))) / meanClose
	rangePct := (highestHigh(window) - lowestLow(window)) / meanClose

	return volatility < 0.15 && rangePct < 0.25
}

// expandBounds walks outward from the center while bars stay within 5% of
// the 30-bar core's support and resistance.
func expandBounds(bars []marketdata.Bar, center int) (int, int) {
	coreStart := center - RangeWindow/2
	coreEnd := center + RangeWindow/2
	if coreStart < 0 {
		coreStart = 0
	}
	if coreEnd > len(bars) {
		coreEnd = len(bars)
	}
	support := lowestLow(bars[coreStart:coreEnd])
	resistance := highestHigh(bars[coreStart:coreEnd])

	start := 0
	for i := center - 1; i >= 0; i-- {
		if bars[i].Low < support*0.95 || bars[i].High > resistance*1.05 {
			start = i + 1
			break
		}
	}
	end := len(bars) - 1
	for i := center + 1; i < len(bars); i++ {
		if bars[i].Low < support*0.95 || bars[i].High > resistance*1.05 {
			end = i - 1
			break
		}
	}
	return start, end
}

// TagSubPhases identifies the chronological A-D phases inside a range.
// Absent events are simply omitted; B (building cause) is always present
// as the temporal midpoint marker.
func (d *RangeDetector) TagSubPhases(bars []marketdata.Bar, tr TradingRange) []SubPhase {
	span := bars[tr.StartIdx : tr.EndIdx+1]
	var phases []SubPhase

	// A: selling climax, a down bar in the top quintile of range volume.
	if idx := findSellingClimax(span); idx >= 0 {
		phases = append(phases, SubPhase{
			Code:     "A",
			Name:     "Selling Climax",
			StartIdx: tr.StartIdx,
			EndIdx:   tr.StartIdx + idx,
		})
	}

	// B: building the cause, first half of the range.
	mid := len(span) / 2
	phases = append(phases, SubPhase{
		Code:     "B",
		Name:     "Building Cause",
		StartIdx: tr.StartIdx,
		EndIdx:   tr.StartIdx + mid,
	})

	// C: spring test, a pierce below support followed by recovery.
	if idx := d.findSpring(span, tr.Support); idx >= 0 {
		end := idx + 5
		if end > len(span)-1 {
			end = len(span) - 1
		}
		phases = append(phases, SubPhase{
			Code:     "C",
			Name:     "Spring Test",
			StartIdx: tr.StartIdx + idx,
			EndIdx:   tr.StartIdx + end,
		})
	}

	// D: markup, breakout above resistance.
	for i, b := range span {
		if b.Close > tr.Resistance*1.02 {
			phases = append(phases, SubPhase{
				Code:     "D",
				Name:     "Markup",
				StartIdx: tr.StartIdx + i,
				EndIdx:   tr.EndIdx,
			})
			break
		}
	}

	return phases
}

func findSellingClimax(span []marketdata.Bar) int {
	volumes := make([]float64, len(span))
	for i, b := range span {
		volumes[i] = b.Volume
	}
	threshold := quantile(volumes, 0.8)
	for i, b := range span {
		if b.Volume > threshold && b.Close < b.Open {
			return i
		}
	}
	return -1
}

func (d *RangeDetector) findSpring(span []marketdata.Bar, support float64) int {
	pierce := support * (1 - d.SpringThreshold)
	for i, b := range span {
		if b.Low > pierce {
			continue
		}
		// Require a recovery back above support within the next 5 bars.
		for j := i + 1; j <= i+5 && j < len(span); j++ {
			if span[j].Close > support {
				return i
			}
		}
	}
	return -1
}

func lowestLow(bars []marketdata.Bar) float64 {
	low := bars[0].Low
	for _, b := range bars[1:] {
		if b.Low < low {
			low = b.Low
		}
	}
	return low
}

func highestHigh(bars []marketdata.Bar) float64 {
	high := bars[0].High
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

// quantile interpolates linearly between order statistics.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
