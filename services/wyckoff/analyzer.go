package wyckoff

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/indicators"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

// highVolumeMult marks a bar as high-volume when its volume exceeds this
// multiple of the rolling-20 baseline.
const highVolumeMult = 2.0

// Analyzer runs the full Wyckoff scan: per-bar classification and signals,
// trading ranges with sub-phases, the composite assessment and score.
type Analyzer struct {
	gen    *SignalGenerator
	ranges *RangeDetector
	logger *zap.Logger
}

func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{
		gen:    NewSignalGenerator(),
		ranges: NewRangeDetector(),
		logger: logger,
	}
}

// Scan emits one signal per bar from startIdx to the end of the series.
// startIdx must be at least Window-1 so every window is fully populated.
func (a *Analyzer) Scan(bars []marketdata.Bar, startIdx int) []Signal {
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}
	atr := indicators.ATR(highs, lows, marketdata.Closes(bars), 14)

	signals := make([]Signal, 0, len(bars)-startIdx)
	for i := startIdx; i < len(bars); i++ {
		phase, confidence, m := ClassifyAt(bars, i)
		v := atr[i]
		if math.IsNaN(v) {
			v = 0
		}
		signals = append(signals, a.gen.Generate(bars, i, phase, confidence, m, v))
	}
	return signals
}

// PhaseAssessment describes the current phase over the trailing window.
type PhaseAssessment struct {
	Phase         Phase   `json:"phase"`
	Confidence    float64 `json:"confidence"`
	PriceTrendPct float64 `json:"price_trend_pct"`
	VolumeRatio   float64 `json:"volume_ratio"`
	VolatilityPct float64 `json:"volatility_pct"`
	Reason        string  `json:"reason"`
}

// VolumeAnalysis summarizes recent volume-price behavior.
type VolumeAnalysis struct {
	VolumeTrend            float64 `json:"volume_trend"`
	HighVolumeDays         int     `json:"high_volume_days"`
	PriceVolumeCorrelation float64 `json:"price_volume_correlation"`
	Interpretation         string  `json:"interpretation"`
}

// Level is a pivot-derived support or resistance price.
type Level struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
}

// LevelsReport lists nearby support/resistance levels with distances from
// the current price, in percent.
type LevelsReport struct {
	SupportLevels        []Level `json:"support_levels"`
	ResistanceLevels     []Level `json:"resistance_levels"`
	CurrentPrice         float64 `json:"current_price"`
	DistanceToSupport    float64 `json:"distance_to_nearest_support"`
	DistanceToResistance float64 `json:"distance_to_nearest_resistance"`
}

// Score grades the overall quality of the Wyckoff structure, 0-100.
type Score struct {
	Total    float64 `json:"total_score"`
	Grade    string  `json:"grade"`
	Volume   float64 `json:"volume_analysis"`
	Phases   float64 `json:"phase_identification"`
	Corr     float64 `json:"price_volume_correlation"`
	Recent   float64 `json:"recent_performance"`
	MaxScore float64 `json:"max_score"`
}

// RangeReport pairs a detected range with its tagged sub-phases.
type RangeReport struct {
	Range     TradingRange `json:"range"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	SubPhases []SubPhase   `json:"sub_phases"`
}

// Analysis is the composite single-symbol result.
type Analysis struct {
	Symbol        string           `json:"symbol"`
	AnalysisDate  time.Time        `json:"analysis_date"`
	CurrentPrice  float64          `json:"current_price"`
	CurrentPhase  *PhaseAssessment `json:"current_phase,omitempty"`
	Score         Score            `json:"wyckoff_score"`
	TradingRanges []RangeReport    `json:"trading_ranges"`
	Volume        VolumeAnalysis   `json:"volume_analysis"`
	Levels        LevelsReport     `json:"support_resistance"`
	Signal        Signal           `json:"signal"`
	StartDate     time.Time        `json:"start_date"`
	EndDate       time.Time        `json:"end_date"`
	TotalBars     int              `json:"total_bars"`
}

// MinAnalysisBars is the least data Analyze accepts: a classification
// window on top of the range-detection span.
const MinAnalysisBars = RangeWindow + Window

// Analyze runs the composite Wyckoff analysis for one symbol.
func (a *Analyzer) Analyze(symbol string, bars []marketdata.Bar) (*Analysis, error) {
	if len(bars) < MinAnalysisBars {
		return nil, fmt.Errorf("analyze %s: %w", symbol,
			&marketdata.InsufficientDataError{Need: MinAnalysisBars, Have: len(bars)})
	}

	last := len(bars) - 1
	phase, confidence, m := ClassifyAt(bars, last)

	var assessment *PhaseAssessment
	if phase != Unclassified {
		assessment = &PhaseAssessment{
			Phase:         phase,
			Confidence:    confidence,
			PriceTrendPct: m.PriceChangePct * 100,
			VolumeRatio:   m.VolumeRatio,
			VolatilityPct: m.PriceRangePct * 100,
			Reason:        assessmentReason(phase, m),
		}
	}

	ranges := a.ranges.Detect(bars)
	rangeReports := make([]RangeReport, 0, len(ranges))
	totalSubPhases := 0
	for _, tr := range ranges {
		subs := a.ranges.TagSubPhases(bars, tr)
		totalSubPhases += len(subs)
		rangeReports = append(rangeReports, RangeReport{
			Range:     tr,
			StartDate: bars[tr.StartIdx].Date,
			EndDate:   bars[tr.EndIdx].Date,
			SubPhases: subs,
		})
	}

	volume := analyzeVolume(bars)
	levels := buildLevelsReport(bars)

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}
	atr := indicators.ATR(highs, lows, marketdata.Closes(bars), 14)
	v := atr[last]
	if math.IsNaN(v) {
		v = 0
	}
	signal := a.gen.Generate(bars, last, phase, confidence, m, v)

	analysis := &Analysis{
		Symbol:        symbol,
		AnalysisDate:  time.Now(),
		CurrentPrice:  bars[last].Close,
		CurrentPhase:  assessment,
		Score:         computeScore(bars, totalSubPhases, volume),
		TradingRanges: rangeReports,
		Volume:        volume,
		Levels:        levels,
		Signal:        signal,
		StartDate:     bars[0].Date,
		EndDate:       bars[last].Date,
		TotalBars:     len(bars),
	}
	a.logger.Info("wyckoff analysis complete",
		zap.String("symbol", symbol),
		zap.String("phase", string(phase)),
		zap.Float64("score", analysis.Score.Total),
		zap.Int("trading_ranges", len(ranges)))
	return analysis, nil
}

func assessmentReason(phase Phase, m Metrics) string {
	switch phase {
	case Accumulation:
		return fmt.Sprintf("sideways price action (%.1f%%) with elevated volume (%.1fx avg)",
			m.PriceChangePct*100, m.VolumeRatio)
	case Distribution:
		return fmt.Sprintf("sideways price action (%.1f%%) with fading volume (%.2fx trend)",
			m.PriceChangePct*100, m.VolumeTrend)
	case Markup:
		return fmt.Sprintf("uptrend (%.1f%%) with volume confirmation (%.1fx avg)",
			m.PriceChangePct*100, m.VolumeRatio)
	case Markdown:
		return fmt.Sprintf("downtrend (%.1f%%) with %.1f%% range", m.PriceChangePct*100, m.PriceRangePct*100)
	default:
		return fmt.Sprintf("mixed: %.1f%% change, %.1fx volume", m.PriceChangePct*100, m.VolumeRatio)
	}
}

// analyzeVolume summarizes the last 20 bars: average volume ratio,
// high-volume day count, and the Pearson correlation between per-bar price
// change and volume ratio.
func analyzeVolume(bars []marketdata.Bar) VolumeAnalysis {
	start := len(bars) - Window
	if start < 1 {
		start = 1
	}

	var ratios, changes []float64
	highVolumeDays := 0
	for i := start; i < len(bars); i++ {
		baseline := trailingVolumeMean(bars, i)
		ratio := 1.0
		if baseline > 0 {
			ratio = bars[i].Volume / baseline
		}
		if ratio > highVolumeMult {
			highVolumeDays++
		}
		ratios = append(ratios, ratio)
		prev := bars[i-1].Close
		if prev > 0 {
			changes = append(changes, (bars[i].Close-prev)/prev)
		} else {
			changes = append(changes, 0)
		}
	}

	var ratioSum float64
	for _, r := range ratios {
		ratioSum += r
	}
	trend := ratioSum / float64(len(ratios))
	corr := pearson(changes, ratios)

	return VolumeAnalysis{
		VolumeTrend:            trend,
		HighVolumeDays:         highVolumeDays,
		PriceVolumeCorrelation: corr,
		Interpretation:         interpretVolume(trend, corr),
	}
}

func interpretVolume(trend, corr float64) string {
	switch {
	case trend > 1.2 && corr > 0.3:
		return "strong bullish volume confirmation"
	case trend > 1.2 && corr < -0.3:
		return "high volume but price weakness, potential reversal"
	case trend < 0.8 && corr < -0.3:
		return "low volume downtrend, potential exhaustion"
	case trend < 0.8 && corr > 0.3:
		return "low volume uptrend, weak trend"
	default:
		return "neutral volume-price relationship"
	}
}

func pearson(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	mx := mean(xs)
	my := mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// buildLevelsReport collects pivot levels near the current price: pivot
// highs at or above 90% of it and pivot lows at or below 110%, keeping the
// three nearest of each.
func buildLevelsReport(bars []marketdata.Bar) LevelsReport {
	current := bars[len(bars)-1].Close

	var supports, resistances []Level
	for k := pivotSpan; k < len(bars)-pivotSpan; k++ {
		if isPivotHigh(bars, k) && bars[k].High >= current*0.9 {
			resistances = append(resistances, Level{
				Date:   bars[k].Date,
				Price:  bars[k].High,
				Volume: bars[k].Volume,
			})
		}
		if isPivotLow(bars, k) && bars[k].Low <= current*1.1 {
			supports = append(supports, Level{
				Date:   bars[k].Date,
				Price:  bars[k].Low,
				Volume: bars[k].Volume,
			})
		}
	}
	if len(supports) > 3 {
		supports = supports[len(supports)-3:]
	}
	if len(resistances) > 3 {
		resistances = resistances[len(resistances)-3:]
	}

	return LevelsReport{
		SupportLevels:        supports,
		ResistanceLevels:     resistances,
		CurrentPrice:         current,
		DistanceToSupport:    distanceToNearest(current, supports),
		DistanceToResistance: distanceToNearest(current, resistances),
	}
}

func distanceToNearest(current float64, levels []Level) float64 {
	if len(levels) == 0 || current <= 0 {
		return 0
	}
	nearest := levels[0].Price
	for _, l := range levels[1:] {
		if math.Abs(l.Price-current) < math.Abs(nearest-current) {
			nearest = l.Price
		}
	}
	return (nearest - current) / current * 100
}

// computeScore grades the structure: up to 30 points for high-volume
// activity, 40 for identified phases, 20 for price-volume correlation and
// 10 for recent performance.
func computeScore(bars []marketdata.Bar, totalSubPhases int, volume VolumeAnalysis) Score {
	volumeScore := math.Min(30, float64(volume.HighVolumeDays)*5)
	phaseScore := math.Min(40, float64(totalSubPhases)*8)
	corrScore := math.Abs(volume.PriceVolumeCorrelation) * 20

	lookback := Window
	if len(bars) < lookback {
		lookback = len(bars)
	}
	ref := bars[len(bars)-lookback].Close
	var recentReturn float64
	if ref > 0 {
		recentReturn = (bars[len(bars)-1].Close - ref) / ref
	}
	perfScore := math.Max(0, math.Min(10, (recentReturn+0.2)*25))

	total := volumeScore + phaseScore + corrScore + perfScore
	return Score{
		Total:    total,
		Grade:    gradeFor(total),
		Volume:   volumeScore,
		Phases:   phaseScore,
		Corr:     corrScore,
		Recent:   perfScore,
		MaxScore: 100,
	}
}

func gradeFor(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
