package engine

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/wyckoff"
)

func emaBar(i int, open, high, low, close float64) marketdata.Bar {
	return marketdata.Bar{Date: day(i), Open: open, High: high, Low: low, Close: close, Volume: 1000}
}

// Flat at 100, a jump to 110, then a gentle drift upward into period end.
func jumpSeries() []marketdata.Bar {
	var bars []marketdata.Bar
	for i := 0; i < 100; i++ {
		bars = append(bars, emaBar(i, 100, 100, 100, 100))
	}
	bars = append(bars, emaBar(100, 109, 110, 109, 110))
	price := 111.0
	for i := 101; i < 131; i++ {
		bars = append(bars, emaBar(i, price, price+0.1, price-0.1, price))
		price += 0.1
	}
	return bars
}

func TestEMAEntryFillsAtNextBarOpen(t *testing.T) {
	strat := NewEMAStrategy(testEngineConfig(), zap.NewNop())
	result, err := strat.Run("JUMP", jumpSeries())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	trade := result.Trades[0]
	// The cross happens on the jump bar; the fill is the following open.
	if trade.EntryPrice != 111 {
		t.Fatalf("entry price = %v, want the next bar open 111", trade.EntryPrice)
	}
	if !trade.EntryDate.Equal(day(101)) {
		t.Fatalf("entry date = %v, want %v", trade.EntryDate, day(101))
	}
	if trade.ExitReason != ExitPeriodEnd {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, ExitPeriodEnd)
	}
	if trade.ExitPrice != jumpSeries()[130].Close {
		t.Fatalf("period-end exit price = %v, want the final close", trade.ExitPrice)
	}
	if len(result.Signals) == 0 || result.Signals[0].Action != wyckoff.Buy {
		t.Fatal("missing the entry signal")
	}
}

func TestEMAExitSignalFillsAtNextBarOpen(t *testing.T) {
	bars := jumpSeries()
	// Crash below the fast EMA, then a flat tail.
	bars = append(bars, emaBar(131, 95, 95, 89, 90))
	for i := 132; i < 137; i++ {
		bars = append(bars, emaBar(i, 91, 91.2, 90.8, 91))
	}
	strat := NewEMAStrategy(testEngineConfig(), zap.NewNop())
	result, err := strat.Run("CRASH", bars)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.ExitReason != ExitEMASignal {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, ExitEMASignal)
	}
	if trade.ExitPrice != 91 {
		t.Fatalf("exit price = %v, want the next bar open 91", trade.ExitPrice)
	}
	if !trade.ExitDate.Equal(day(132)) {
		t.Fatalf("exit date = %v, want %v", trade.ExitDate, day(132))
	}
}

func TestEMATrailingStopExit(t *testing.T) {
	var bars []marketdata.Bar
	for i := 0; i < 100; i++ {
		bars = append(bars, emaBar(i, 100, 100.5, 99.5, 100))
	}
	// Steady climb keeps the close well above the fast EMA while the
	// trailing stop tracks a couple of ATRs below the highs.
	for i := 0; i < 40; i++ {
		close := 101.0 + float64(i)
		bars = append(bars, emaBar(100+i, close-0.5, close+0.5, close-0.5, close))
	}
	// Modest dip: above the fast EMA, below the ratcheted stop.
	bars = append(bars, emaBar(140, 136, 136.5, 134.5, 135))
	for i := 141; i < 146; i++ {
		bars = append(bars, emaBar(i, 135, 135.5, 134.5, 135))
	}

	strat := NewEMAStrategy(testEngineConfig(), zap.NewNop())
	result, err := strat.Run("DIP", bars)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.ExitReason != ExitTrailingStop {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, ExitTrailingStop)
	}
	if trade.ExitPrice != 135 {
		t.Fatalf("exit price = %v, want the next bar open 135", trade.ExitPrice)
	}
}

func TestEMAInsufficientData(t *testing.T) {
	strat := NewEMAStrategy(testEngineConfig(), zap.NewNop())
	bars := flatBars(49, 100, 1000)

	_, err := strat.Run("SHORT", bars)
	if err == nil {
		t.Fatal("expected error below the slow EMA lookback")
	}
	var insufficient *marketdata.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error %v is not an InsufficientDataError", err)
	}
	if insufficient.Need != 50 || insufficient.Have != 49 {
		t.Fatalf("need/have = %d/%d, want 50/49", insufficient.Need, insufficient.Have)
	}
}
