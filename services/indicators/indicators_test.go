package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMAWarmupAndValues(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	sma := SMA(closes, 3)
	for i := 0; i < 2; i++ {
		if !math.IsNaN(sma[i]) {
			t.Fatalf("expected NaN at %d, got %v", i, sma[i])
		}
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(sma[i+2], w) {
			t.Fatalf("sma[%d] = %v, want %v", i+2, sma[i+2], w)
		}
	}
}

func TestEMASeedIsSMA(t *testing.T) {
	closes := []float64{10, 20, 30, 40, 50}
	ema := EMA(closes, 3)
	if !almostEqual(ema[2], 20) {
		t.Fatalf("ema seed = %v, want 20", ema[2])
	}
	// alpha = 0.5 for period 3
	if !almostEqual(ema[3], 40*0.5+20*0.5) {
		t.Fatalf("ema[3] = %v, want 30", ema[3])
	}
	if !almostEqual(ema[4], 50*0.5+30*0.5) {
		t.Fatalf("ema[4] = %v, want 40", ema[4])
	}
}

func TestEMAShortSeriesAllNaN(t *testing.T) {
	ema := EMA([]float64{1, 2}, 5)
	for i, v := range ema {
		if !math.IsNaN(v) {
			t.Fatalf("ema[%d] = %v, want NaN", i, v)
		}
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	rsi := RSI(closes, 14)
	if !almostEqual(rsi[len(rsi)-1], 100) {
		t.Fatalf("rsi on monotonic rise = %v, want 100", rsi[len(rsi)-1])
	}
}

func TestRSIBalancedMoves(t *testing.T) {
	// Alternating +1/-1 moves: average gain equals average loss.
	closes := make([]float64, 30)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + 1
		} else {
			closes[i] = closes[i-1] - 1
		}
	}
	rsi := RSI(closes, 14)
	if !almostEqual(rsi[len(rsi)-1], 50) {
		t.Fatalf("rsi on balanced moves = %v, want 50", rsi[len(rsi)-1])
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 105
		lows[i] = 100
		closes[i] = 102
	}
	atr := ATR(highs, lows, closes, 14)
	if !almostEqual(atr[n-1], 5) {
		t.Fatalf("atr = %v, want 5", atr[n-1])
	}
	wilder := ATRWilder(highs, lows, closes, 14)
	if !almostEqual(wilder[n-1], 5) {
		t.Fatalf("wilder atr = %v, want 5", wilder[n-1])
	}
}

func TestBollingerBandsSymmetry(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	bb := Bollinger(closes, 20, 2)
	last := len(closes) - 1
	mid := bb.Middle[last]
	if !almostEqual(bb.Upper[last]-mid, mid-bb.Lower[last]) {
		t.Fatalf("bands not symmetric: upper=%v middle=%v lower=%v",
			bb.Upper[last], mid, bb.Lower[last])
	}
	if bb.Upper[last] <= mid {
		t.Fatal("upper band should sit above the middle")
	}
}

func TestStochasticFlatWindow(t *testing.T) {
	n := 25
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 100
		lows[i] = 100
		closes[i] = 100
	}
	st := Stochastic(highs, lows, closes, 14, 3, 3)
	if !almostEqual(st.K[n-1], 0) {
		t.Fatalf("flat stochastic K = %v, want 0", st.K[n-1])
	}
}

func TestWilliamsRAtExtremes(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 110
		lows[i] = 90
		closes[i] = 110 // close at the high
	}
	wr := WilliamsR(highs, lows, closes, 14)
	if !almostEqual(wr[n-1], 0) {
		t.Fatalf("williams %%R at the high = %v, want 0", wr[n-1])
	}
	for i := 0; i < n; i++ {
		closes[i] = 90 // close at the low
	}
	wr = WilliamsR(highs, lows, closes, 14)
	if !almostEqual(wr[n-1], -100) {
		t.Fatalf("williams %%R at the low = %v, want -100", wr[n-1])
	}
}

func TestMFIAllInflows(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)
		highs[i] = base + 1
		lows[i] = base - 1
		closes[i] = base
		volumes[i] = 1000
	}
	mfi := MFI(highs, lows, closes, volumes, 14)
	if !almostEqual(mfi[n-1], 100) {
		t.Fatalf("mfi on monotonic rise = %v, want 100", mfi[n-1])
	}
}

func TestMACDConvergesOnFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	m := MACD(closes, 12, 26, 9)
	last := len(closes) - 1
	if !almostEqual(m.MACD[last], 0) || !almostEqual(m.Signal[last], 0) {
		t.Fatalf("flat series MACD = %v signal = %v, want 0", m.MACD[last], m.Signal[last])
	}
}

func TestRollingStdSampleDenominator(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	std := RollingStd(values, 8)
	// Sample stdev of this set is sqrt(32/7).
	want := math.Sqrt(32.0 / 7.0)
	if !almostEqual(std[7], want) {
		t.Fatalf("rolling std = %v, want %v", std[7], want)
	}
}
