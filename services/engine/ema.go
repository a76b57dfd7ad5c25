package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/indicators"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/wyckoff"
)

// EMAStrategy is the moving-average variant of the state machine: entries
// on a close crossing above the slow EMA, exits on a close crossing below
// the fast EMA or on a trailing-stop breach. All fills happen at the next
// bar's open so no same-bar information leaks into the decision.
type EMAStrategy struct {
	cfg        config.EngineConfig
	FastPeriod int // exit EMA
	SlowPeriod int // entry EMA
	logger     *zap.Logger
}

func NewEMAStrategy(cfg config.EngineConfig, logger *zap.Logger) *EMAStrategy {
	return &EMAStrategy{
		cfg:        cfg,
		FastPeriod: 21,
		SlowPeriod: 50,
		logger:     logger,
	}
}

type pendingOrder struct {
	signal wyckoff.Signal
	reason string // exit reason, empty for entries
}

// Run simulates the strategy over the series. The slow EMA defines the
// minimum lookback.
func (e *EMAStrategy) Run(symbol string, bars []marketdata.Bar) (*BacktestResult, error) {
	warmup := e.SlowPeriod
	if e.cfg.ATRPeriod > warmup {
		warmup = e.cfg.ATRPeriod
	}
	if len(bars) < warmup {
		return nil, fmt.Errorf("ema backtest %s: %w", symbol,
			&marketdata.InsufficientDataError{Need: warmup, Have: len(bars)})
	}
	if err := marketdata.Validate(bars); err != nil {
		return nil, fmt.Errorf("ema backtest %s: %w", symbol, err)
	}

	closes := marketdata.Closes(bars)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}
	emaFast := indicators.EMA(closes, e.FastPeriod)
	emaSlow := indicators.EMA(closes, e.SlowPeriod)
	atr := indicators.ATRWilder(highs, lows, closes, e.cfg.ATRPeriod)

	capital := e.cfg.InitialCapital
	var position *Position
	var pending *pendingOrder
	var trades []Trade
	var signals []wyckoff.Signal
	equity := make([]EquityPoint, 0, len(bars)-warmup)

	for i := warmup; i < len(bars); i++ {
		bar := bars[i]

		// Fill the order queued on the previous bar at this bar's open.
		if pending != nil {
			if pending.reason == "" && position == nil {
				position = e.openAt(capital, bars, i, pending.signal)
				if position != nil && !math.IsNaN(atr[i]) {
					position.TrailingStop = position.EntryPrice - atr[i]*e.cfg.ATRMultiplier
				}
			} else if pending.reason != "" && position != nil {
				trade := e.closeAt(symbol, position, bar.Open, bar, pending.reason)
				capital += trade.PnL
				trades = append(trades, trade)
				position = nil
			}
			pending = nil
		}

		if math.IsNaN(emaFast[i]) || math.IsNaN(emaSlow[i]) || math.IsNaN(atr[i]) {
			equity = append(equity, EquityPoint{Date: bar.Date, Value: capital + unrealized(position, bar.Close)})
			continue
		}

		if position == nil {
			// Entry: close crosses above the slow EMA.
			if i > 0 && !math.IsNaN(emaSlow[i-1]) &&
				bar.Close > emaSlow[i] && bars[i-1].Close <= emaSlow[i-1] {
				sig := wyckoff.Signal{
					Date:       bar.Date,
					Phase:      wyckoff.Unclassified,
					Action:     wyckoff.Buy,
					Price:      bar.Close,
					Confidence: crossConfidence(bar.Close, emaSlow[i]),
					Reasoning:  fmt.Sprintf("close %.2f crossed above EMA%d %.2f", bar.Close, e.SlowPeriod, emaSlow[i]),
				}
				signals = append(signals, sig)
				pending = &pendingOrder{signal: sig}
			}
		} else {
			// Trailing stop ratchets up with the highest close since entry.
			if bar.Close > position.HighestSinceEntry {
				position.HighestSinceEntry = bar.Close
				position.TrailingStop = position.HighestSinceEntry - atr[i]*e.cfg.ATRMultiplier
			}

			var reason string
			switch {
			case i > 0 && !math.IsNaN(emaFast[i-1]) &&
				bar.Close < emaFast[i] && bars[i-1].Close >= emaFast[i-1]:
				reason = ExitEMASignal
			case position.TrailingStop > 0 && bar.Close < position.TrailingStop:
				reason = ExitTrailingStop
			}
			if reason != "" {
				sig := wyckoff.Signal{
					Date:       bar.Date,
					Phase:      wyckoff.Unclassified,
					Action:     wyckoff.Sell,
					Price:      bar.Close,
					Confidence: crossConfidence(bar.Close, emaFast[i]),
					Reasoning:  reason,
				}
				signals = append(signals, sig)
				pending = &pendingOrder{signal: sig, reason: reason}
			}
		}

		equity = append(equity, EquityPoint{Date: bar.Date, Value: capital + unrealized(position, bar.Close)})
	}

	if position != nil {
		last := bars[len(bars)-1]
		trade := e.closeAt(symbol, position, last.Close, last, ExitPeriodEnd)
		capital += trade.PnL
		trades = append(trades, trade)
		equity[len(equity)-1] = EquityPoint{Date: last.Date, Value: capital}
	}

	result := &BacktestResult{
		Symbol:      symbol,
		StartDate:   bars[warmup].Date,
		EndDate:     bars[len(bars)-1].Date,
		TotalBars:   len(bars) - warmup,
		Trades:      trades,
		Signals:     signals,
		Metrics:     ComputeMetrics(trades, equity, e.cfg.InitialCapital),
		EquityCurve: equity,
	}
	e.logger.Info("ema backtest complete",
		zap.String("symbol", symbol),
		zap.Int("trades", len(trades)),
		zap.Float64("return_pct", result.Metrics.TotalReturnPct))
	return result, nil
}

func (e *EMAStrategy) openAt(capital float64, bars []marketdata.Bar, i int, sig wyckoff.Signal) *Position {
	price := bars[i].Open
	if price <= 0 {
		return nil
	}
	shares := int(math.Floor(capital * e.cfg.PositionFraction / price))
	if shares <= 0 {
		return nil
	}
	return &Position{
		EntryDate:         bars[i].Date,
		EntryIndex:        i,
		EntryPrice:        price,
		Shares:            shares,
		Action:            wyckoff.Buy,
		EntryPhase:        wyckoff.Unclassified,
		EntryReasoning:    sig.Reasoning,
		HighestSinceEntry: price,
	}
}

func (e *EMAStrategy) closeAt(symbol string, p *Position, price float64, bar marketdata.Bar, reason string) Trade {
	pnl := (price - p.EntryPrice) * float64(p.Shares)
	invested := p.EntryPrice * float64(p.Shares)
	var pnlPct float64
	if invested > 0 {
		pnlPct = pnl / invested * 100
	}
	return Trade{
		Symbol:       symbol,
		EntryDate:    p.EntryDate,
		ExitDate:     bar.Date,
		EntryPrice:   p.EntryPrice,
		ExitPrice:    price,
		Action:       wyckoff.Buy,
		Shares:       p.Shares,
		EntryPhase:   wyckoff.Unclassified,
		ExitPhase:    wyckoff.Unclassified,
		PnL:          pnl,
		PnLPercent:   pnlPct,
		DurationDays: int(bar.Date.Sub(p.EntryDate).Hours() / 24),
		ExitReason:   reason,
	}
}

func crossConfidence(price, ema float64) float64 {
	if ema <= 0 {
		return 0
	}
	return math.Min(0.9, math.Abs(price-ema)/ema*10)
}
