package wyckoff

import (
	"testing"
	"time"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// flatBars builds n identical bars.
func flatBars(n int, price, volume float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Date: day(i), Open: price, High: price, Low: price, Close: price, Volume: volume,
		}
	}
	return bars
}

func TestClassifyRuleTable(t *testing.T) {
	cases := []struct {
		name string
		m    Metrics
		want Phase
	}{
		{"markup", Metrics{PriceChangePct: 0.10, PriceVsSMA: 0.03, VolumeRatio: 1.3}, Markup},
		{"markup needs volume", Metrics{PriceChangePct: 0.10, PriceVsSMA: 0.03, VolumeRatio: 1.0}, Markup}, // falls to weak-markup rule
		{"markdown", Metrics{PriceChangePct: -0.10, PriceVsSMA: -0.03}, Markdown},
		{"accumulation", Metrics{PriceChangePct: 0.01, PriceRangePct: 0.10, VolumeRatio: 1.2, VolumeTrend: 1.10}, Accumulation},
		{"distribution", Metrics{PriceChangePct: 0.01, PriceRangePct: 0.10, VolumeRatio: 1.2, VolumeTrend: 0.90}, Distribution},
		{"weak markup", Metrics{PriceChangePct: 0.04, PriceVsSMA: 0.02, VolumeRatio: 0.8}, Markup},
		{"weak markdown", Metrics{PriceChangePct: -0.04, PriceVsSMA: -0.02}, Markdown},
		{"sideways neutral volume trend", Metrics{PriceChangePct: 0.01, PriceRangePct: 0.10, VolumeRatio: 1.2, VolumeTrend: 1.0}, Unclassified},
		{"nothing", Metrics{}, Unclassified},
	}
	for _, tc := range cases {
		if got := Classify(tc.m); got != tc.want {
			t.Errorf("%s: Classify = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Satisfies both the markup row and the weak-markup row; the strong
	// rule fires first but both map to Markup, so check accumulated
	// confidence instead.
	m := Metrics{PriceChangePct: 0.20, PriceVsSMA: 0.05, VolumeRatio: 1.5}
	if got := Classify(m); got != Markup {
		t.Fatalf("Classify = %s, want Markup", got)
	}
	conf := Confidence(m, Markup)
	// 0.5 base + 0.3 strong change + 0.1 volume = 0.9
	if conf != 0.9 {
		t.Fatalf("Confidence = %v, want 0.9", conf)
	}
}

func TestConfidenceClamp(t *testing.T) {
	// Markdown beyond -15% plus nothing else: 0.5 + 0.3 = 0.8.
	m := Metrics{PriceChangePct: -0.20, PriceVsSMA: -0.05}
	if conf := Confidence(m, Markdown); conf != 0.8 {
		t.Fatalf("Confidence = %v, want 0.8", conf)
	}
	// Unknown phase keeps the base but never below the floor.
	if conf := Confidence(Metrics{}, Unclassified); conf != 0.5 {
		t.Fatalf("Confidence = %v, want 0.5", conf)
	}
}

func TestFlatSeriesUnclassified(t *testing.T) {
	bars := flatBars(100, 100, 1000)
	for i := Window - 1; i < len(bars); i++ {
		phase, _, _ := ClassifyAt(bars, i)
		if phase != Unclassified {
			t.Fatalf("bar %d: flat series classified as %s", i, phase)
		}
	}
}

func TestRisingWindowClassifiesMarkup(t *testing.T) {
	// 60 flat bars, then a 20-bar climb of +10% on doubled volume.
	bars := flatBars(60, 100, 1000)
	price := 100.0
	for i := 0; i < Window; i++ {
		price *= 1.005
		bars = append(bars, marketdata.Bar{
			Date: day(60 + i), Open: price, High: price * 1.002, Low: price * 0.998,
			Close: price, Volume: 2000,
		})
	}
	phase, confidence, m := ClassifyAt(bars, len(bars)-1)
	if phase != Markup {
		t.Fatalf("phase = %s (metrics %+v), want Markup", phase, m)
	}
	if confidence < 0.5 || confidence > 0.95 {
		t.Fatalf("confidence %v out of range", confidence)
	}
	if m.VolumeRatio <= 1.1 {
		t.Fatalf("volume ratio = %v, want > 1.1", m.VolumeRatio)
	}
}

func TestSignalTable(t *testing.T) {
	gen := NewSignalGenerator()
	bars := flatBars(50, 100, 1000)
	last := len(bars) - 1

	cases := []struct {
		phase Phase
		vr    float64
		want  Action
	}{
		{Accumulation, 1.6, Buy},
		{Accumulation, 1.2, Hold},
		{Distribution, 1.6, Sell},
		{Distribution, 1.2, Hold},
		{Markup, 1.0, Buy},
		{Markdown, 1.0, Sell},
		{Unclassified, 2.0, Hold},
	}
	for _, tc := range cases {
		sig := gen.Generate(bars, last, tc.phase, 0.7, Metrics{VolumeRatio: tc.vr}, 2.0)
		if sig.Action != tc.want {
			t.Errorf("%s vr=%v: action = %s, want %s", tc.phase, tc.vr, sig.Action, tc.want)
		}
	}
}

func TestSignalProtectiveLevels(t *testing.T) {
	gen := NewSignalGenerator()
	bars := flatBars(50, 100, 1000)
	sig := gen.Generate(bars, len(bars)-1, Markup, 0.7, Metrics{}, 3.0)
	if sig.StopLoss != 100-2*3.0 {
		t.Fatalf("stop loss = %v, want 94", sig.StopLoss)
	}
	if sig.TakeProfit != 100+3*3.0 {
		t.Fatalf("take profit = %v, want 109", sig.TakeProfit)
	}

	sell := gen.Generate(bars, len(bars)-1, Markdown, 0.7, Metrics{}, 3.0)
	if sell.StopLoss != 106 || sell.TakeProfit != 91 {
		t.Fatalf("sell levels = %v/%v, want 106/91", sell.StopLoss, sell.TakeProfit)
	}

	// Missing ATR omits the levels.
	none := gen.Generate(bars, len(bars)-1, Markup, 0.7, Metrics{}, 0)
	if none.StopLoss != 0 || none.TakeProfit != 0 {
		t.Fatalf("levels without ATR = %v/%v, want 0/0", none.StopLoss, none.TakeProfit)
	}
}
