package wyckoff

import (
	"math"
	"testing"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

// oscillatingBars builds a gentle sideways series between lo and hi.
func oscillatingBars(n int, lo, hi, volume float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	mid := (lo + hi) / 2
	amp := (hi - lo) / 2
	for i := range bars {
		c := mid + amp*math.Sin(float64(i)/3)
		bars[i] = marketdata.Bar{
			Date: day(i), Open: c, High: c + amp*0.1, Low: c - amp*0.1,
			Close: c, Volume: volume,
		}
	}
	return bars
}

func TestDetectFindsConsolidation(t *testing.T) {
	bars := oscillatingBars(120, 95, 105, 1000)
	d := NewRangeDetector()
	ranges := d.Detect(bars)
	if len(ranges) == 0 {
		t.Fatal("expected at least one trading range in a sideways series")
	}
	tr := ranges[0]
	if tr.EndIdx-tr.StartIdx < RangeWindow {
		t.Fatalf("range span %d shorter than minimum %d", tr.EndIdx-tr.StartIdx, RangeWindow)
	}
	if tr.Support >= tr.Resistance {
		t.Fatalf("support %v not below resistance %v", tr.Support, tr.Resistance)
	}
	if tr.Support < 90 || tr.Resistance > 110 {
		t.Fatalf("bounds %v/%v outside the oscillation band", tr.Support, tr.Resistance)
	}
}

func TestDetectRejectsTrendingSeries(t *testing.T) {
	bars := make([]marketdata.Bar, 120)
	price := 100.0
	for i := range bars {
		price *= 1.01
		bars[i] = marketdata.Bar{
			Date: day(i), Open: price, High: price * 1.01, Low: price * 0.99,
			Close: price, Volume: 1000,
		}
	}
	d := NewRangeDetector()
	if ranges := d.Detect(bars); len(ranges) != 0 {
		t.Fatalf("found %d ranges in a strongly trending series", len(ranges))
	}
}

func TestTagSubPhasesMidpointAlwaysPresent(t *testing.T) {
	bars := oscillatingBars(120, 95, 105, 1000)
	d := NewRangeDetector()
	ranges := d.Detect(bars)
	if len(ranges) == 0 {
		t.Fatal("no ranges detected")
	}
	subs := d.TagSubPhases(bars, ranges[0])
	var b *SubPhase
	for i := range subs {
		if subs[i].Code == "B" {
			b = &subs[i]
		}
	}
	if b == nil {
		t.Fatal("building-cause tag missing")
	}
	wantEnd := ranges[0].StartIdx + (ranges[0].EndIdx-ranges[0].StartIdx+1)/2
	if b.StartIdx != ranges[0].StartIdx || b.EndIdx != wantEnd {
		t.Fatalf("building cause spans %d..%d, want %d..%d",
			b.StartIdx, b.EndIdx, ranges[0].StartIdx, wantEnd)
	}
}

func TestTagSubPhasesChronologicalOrder(t *testing.T) {
	bars := oscillatingBars(120, 95, 105, 1000)
	// Selling climax: heavy-volume down bar early in the series.
	bars[40].Open = 101
	bars[40].Close = 99
	bars[40].Volume = 5000

	d := NewRangeDetector()
	ranges := d.Detect(bars)
	if len(ranges) == 0 {
		t.Fatal("no ranges detected")
	}
	var tagged *TradingRange
	var subs []SubPhase
	for _, tr := range ranges {
		s := d.TagSubPhases(bars, tr)
		for _, sub := range s {
			if sub.Code == "A" {
				tagged = &tr
				subs = s
			}
		}
		if tagged != nil {
			break
		}
	}
	if tagged == nil {
		t.Fatal("selling climax not tagged in any range")
	}
	for i := 1; i < len(subs); i++ {
		if subs[i].Code <= subs[i-1].Code {
			t.Fatalf("sub-phases out of order: %s before %s", subs[i-1].Code, subs[i].Code)
		}
	}
}

func TestFindSpring(t *testing.T) {
	d := NewRangeDetector()
	span := oscillatingBars(60, 95, 105, 1000)
	support := lowestLow(span)

	// Pierce support by more than the threshold, then recover.
	span[30].Low = support * 0.94
	span[31].Close = support * 1.05

	idx := d.findSpring(span, support)
	if idx != 30 {
		t.Fatalf("spring index = %d, want 30", idx)
	}
}

func TestFindSpringRequiresRecovery(t *testing.T) {
	d := NewRangeDetector()
	span := oscillatingBars(60, 95, 105, 1000)
	support := lowestLow(span)

	// Pierce at the very end with no recovery bars following.
	span[59].Low = support * 0.94
	for i := 54; i < 59; i++ {
		span[i].Low = support // keep earlier bars off the pierce level
	}
	if idx := d.findSpring(span[54:], support); idx != -1 {
		t.Fatalf("spring without recovery tagged at %d", idx)
	}
}

func TestQuantileInterpolation(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if q := quantile(values, 0.5); q != 3 {
		t.Fatalf("median = %v, want 3", q)
	}
	if q := quantile(values, 0.8); q != 4.2 {
		t.Fatalf("0.8 quantile = %v, want 4.2", q)
	}
}
