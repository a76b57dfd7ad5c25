package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/wyckoff"
)

// Simulator is the phase-driven backtest state machine: Flat or InPosition,
// at most one open position, exits evaluated in strict precedence and
// filled at the same bar's close.
type Simulator struct {
	cfg      config.EngineConfig
	analyzer *wyckoff.Analyzer
	logger   *zap.Logger
}

func NewSimulator(cfg config.EngineConfig, logger *zap.Logger) *Simulator {
	return &Simulator{
		cfg:      cfg,
		analyzer: wyckoff.NewAnalyzer(logger),
		logger:   logger,
	}
}

// Run scans the series chronologically from the warmup index, classifying
// each bar, emitting one signal per bar, and simulating trades. The bars
// must be ascending with unique dates.
func (s *Simulator) Run(symbol string, bars []marketdata.Bar) (*BacktestResult, error) {
	warmup := s.cfg.WarmupBars
	// The classifier needs Window bars behind the first scanned index.
	if warmup < wyckoff.Window-1 {
		warmup = wyckoff.Window - 1
	}
	if len(bars) <= warmup {
		return nil, fmt.Errorf("backtest %s: %w", symbol,
			&marketdata.InsufficientDataError{Need: warmup + 1, Have: len(bars)})
	}
	if err := marketdata.Validate(bars); err != nil {
		return nil, fmt.Errorf("backtest %s: %w", symbol, err)
	}

	signals := s.analyzer.Scan(bars, warmup)

	capital := s.cfg.InitialCapital
	var position *Position
	var trades []Trade
	equity := make([]EquityPoint, 0, len(bars)-warmup)

	for i := warmup; i < len(bars); i++ {
		bar := bars[i]
		sig := signals[i-warmup]

		if position != nil {
			if bar.Close > position.HighestSinceEntry {
				position.HighestSinceEntry = bar.Close
			}
			if reason, ok := s.exitTrigger(position, bar.Close, i, sig); ok {
				trade := s.closeTrade(symbol, position, bar.Close, sig, reason)
				capital += trade.PnL
				trades = append(trades, trade)
				position = nil
			}
		}

		if position == nil && sig.Action != wyckoff.Hold {
			position = s.openPosition(capital, bars, i, sig)
		}

		equity = append(equity, EquityPoint{Date: bar.Date, Value: capital + unrealized(position, bar.Close)})
	}

	// Force-close whatever is still open at the final bar.
	if position != nil {
		last := bars[len(bars)-1]
		final := signals[len(signals)-1]
		trade := s.closeTrade(symbol, position, last.Close, final, ExitPeriodEnd)
		capital += trade.PnL
		trades = append(trades, trade)
		equity[len(equity)-1] = EquityPoint{Date: last.Date, Value: capital}
	}

	result := &BacktestResult{
		Symbol:        symbol,
		StartDate:     bars[warmup].Date,
		EndDate:       bars[len(bars)-1].Date,
		TotalBars:     len(bars) - warmup,
		Trades:        trades,
		Signals:       signals,
		Metrics:       ComputeMetrics(trades, equity, s.cfg.InitialCapital),
		PhaseAnalysis: AnalyzePhases(signals),
		EquityCurve:   equity,
	}
	s.logger.Info("backtest complete",
		zap.String("symbol", symbol),
		zap.Int("trades", len(trades)),
		zap.Float64("final_value", result.Metrics.FinalValue),
		zap.Float64("return_pct", result.Metrics.TotalReturnPct))
	return result, nil
}

// exitTrigger evaluates the ordered exit rules. First satisfied wins;
// the order is load-bearing because several rules can fire on one bar.
func (s *Simulator) exitTrigger(p *Position, close float64, i int, sig wyckoff.Signal) (string, bool) {
	long := p.Action == wyckoff.Buy

	if i-p.EntryIndex >= s.cfg.MaxHoldBars {
		return ExitMaxDuration, true
	}
	if long && close <= p.EntryPrice*(1-s.cfg.StopLossPct) {
		return ExitStopLoss, true
	}
	if !long && close >= p.EntryPrice*(1+s.cfg.StopLossPct) {
		return ExitStopLoss, true
	}
	if long && close >= p.EntryPrice*(1+s.cfg.TakeProfitPct) {
		return ExitTakeProfit, true
	}
	if !long && close <= p.EntryPrice*(1-s.cfg.TakeProfitPct) {
		return ExitTakeProfit, true
	}
	if long && sig.Phase == wyckoff.Distribution {
		return ExitOpposingPhase, true
	}
	if !long && sig.Phase == wyckoff.Accumulation {
		return ExitOpposingPhase, true
	}
	if long && sig.Action == wyckoff.Sell {
		return ExitOpposingSignal, true
	}
	if !long && sig.Action == wyckoff.Buy {
		return ExitOpposingSignal, true
	}
	return "", false
}

func (s *Simulator) openPosition(capital float64, bars []marketdata.Bar, i int, sig wyckoff.Signal) *Position {
	price := bars[i].Close
	if price <= 0 {
		return nil
	}
	shares := int(math.Floor(capital * s.cfg.PositionFraction / price))
	if shares <= 0 {
		return nil
	}
	return &Position{
		EntryDate:         bars[i].Date,
		EntryIndex:        i,
		EntryPrice:        price,
		Shares:            shares,
		Action:            sig.Action,
		EntryPhase:        sig.Phase,
		EntryReasoning:    sig.Reasoning,
		HighestSinceEntry: price,
	}
}

func (s *Simulator) closeTrade(symbol string, p *Position, exitPrice float64, sig wyckoff.Signal, reason string) Trade {
	pnl := pnlFor(p, exitPrice)
	invested := p.EntryPrice * float64(p.Shares)
	var pnlPct float64
	if invested > 0 {
		pnlPct = pnl / invested * 100
	}
	return Trade{
		Symbol:       symbol,
		EntryDate:    p.EntryDate,
		ExitDate:     sig.Date,
		EntryPrice:   p.EntryPrice,
		ExitPrice:    exitPrice,
		Action:       p.Action,
		Shares:       p.Shares,
		EntryPhase:   p.EntryPhase,
		ExitPhase:    sig.Phase,
		PnL:          pnl,
		PnLPercent:   pnlPct,
		DurationDays: int(sig.Date.Sub(p.EntryDate).Hours() / 24),
		ExitReason:   reason,
	}
}

func pnlFor(p *Position, price float64) float64 {
	if p.Action == wyckoff.Buy {
		return (price - p.EntryPrice) * float64(p.Shares)
	}
	return (p.EntryPrice - price) * float64(p.Shares)
}

func unrealized(p *Position, close float64) float64 {
	if p == nil {
		return 0
	}
	return pnlFor(p, close)
}

// AnalyzePhases counts per-phase signals and the average run length, in
// calendar days, of each contiguous phase stretch.
func AnalyzePhases(signals []wyckoff.Signal) PhaseAnalysis {
	analysis := PhaseAnalysis{
		PhaseCounts:  map[wyckoff.Phase]int{},
		AvgDurations: map[wyckoff.Phase]float64{},
		TotalSignals: len(signals),
	}
	if len(signals) == 0 {
		return analysis
	}

	durations := map[wyckoff.Phase][]float64{}
	current := signals[0].Phase
	start := signals[0].Date
	for _, sig := range signals {
		analysis.PhaseCounts[sig.Phase]++
		if sig.Phase != current {
			days := sig.Date.Sub(start).Hours() / 24
			durations[current] = append(durations[current], days)
			current = sig.Phase
			start = sig.Date
		}
	}
	durations[current] = append(durations[current], signals[len(signals)-1].Date.Sub(start).Hours()/24)

	for phase, ds := range durations {
		var sum float64
		for _, d := range ds {
			sum += d
		}
		analysis.AvgDurations[phase] = sum / float64(len(ds))
	}
	return analysis
}
