package optimizer

import (
	"math"
	"time"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/indicators"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/wyckoff"
)

// signalLookback is the number of bars the momentum indicators need before
// the first signal can be emitted.
const signalLookback = 50

// momentumSignal is the lightweight entry/exit marker the sweep replays.
// It is deliberately simpler than the phase-based signal: the sweep cares
// about stop placement, not about why the trade happened.
type momentumSignal struct {
	Date   time.Time
	Action wyckoff.Action
	Price  float64
}

// momentumSignals derives trend-following signals: buy when the close sits
// above both the 20- and 50-bar SMAs, sell when below both, in each case
// only while RSI(14) is between 30 and 70.
func momentumSignals(bars []marketdata.Bar) []momentumSignal {
	closes := marketdata.Closes(bars)
	sma20 := indicators.SMA(closes, 20)
	sma50 := indicators.SMA(closes, 50)
	rsi := indicators.RSI(closes, 14)

	var signals []momentumSignal
	for i := signalLookback; i < len(bars); i++ {
		if math.IsNaN(sma20[i]) || math.IsNaN(sma50[i]) || math.IsNaN(rsi[i]) {
			continue
		}
		price := bars[i].Close
		if rsi[i] <= 30 || rsi[i] >= 70 {
			continue
		}
		switch {
		case price > sma20[i] && price > sma50[i]:
			signals = append(signals, momentumSignal{Date: bars[i].Date, Action: wyckoff.Buy, Price: price})
		case price < sma20[i] && price < sma50[i]:
			signals = append(signals, momentumSignal{Date: bars[i].Date, Action: wyckoff.Sell, Price: price})
		}
	}
	return signals
}
