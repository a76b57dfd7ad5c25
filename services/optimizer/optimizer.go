// Package optimizer sweeps a discrete grid of stop-loss percentages over
// calendar buckets of a price series and reports the best-scoring candidate
// per bucket plus a single whole-series optimum.
package optimizer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/wyckoff"
)

// defaultOverallStop is returned when no grid candidate produces a positive
// score over the whole series.
const defaultOverallStop = 0.08

type Optimizer struct {
	cfg    config.OptimizerConfig
	logger *zap.Logger
}

func New(cfg config.OptimizerConfig, logger *zap.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, logger: logger}
}

// Optimize runs the full sweep for one symbol: monthly, quarterly and yearly
// buckets plus the whole-series optimum. Buckets are processed by a bounded
// worker pool; candidates within a bucket run sequentially so the per-bucket
// selection stays deterministic.
func (o *Optimizer) Optimize(symbol string, bars []marketdata.Bar) (*StopLossOptimization, error) {
	if len(bars) <= signalLookback {
		return nil, fmt.Errorf("optimize %s: %w", symbol,
			&marketdata.InsufficientDataError{Need: signalLookback + 1, Have: len(bars)})
	}
	if err := marketdata.Validate(bars); err != nil {
		return nil, fmt.Errorf("optimize %s: %w", symbol, err)
	}

	signals := momentumSignals(bars)
	start := bars[0].Date
	end := bars[len(bars)-1].Date

	result := &StopLossOptimization{
		Symbol:         symbol,
		AnalysisDate:   time.Now().UTC(),
		OverallOptimal: o.findOverallOptimal(bars, signals, start, end),
		StopLossRange:  [2]float64{o.cfg.Grid[0], o.cfg.Grid[len(o.cfg.Grid)-1]},
		TestIntervals:  o.cfg.Grid,
	}
	result.MonthlyResults = o.optimizeBuckets(bars, signals, monthlyPeriods(start, end))
	result.QuarterlyResults = o.optimizeBuckets(bars, signals, quarterlyPeriods(start, end))
	result.YearlyResults = o.optimizeBuckets(bars, signals, yearlyPeriods(start, end))

	o.logger.Info("stop-loss optimization complete",
		zap.String("symbol", symbol),
		zap.Float64("overall_optimal", result.OverallOptimal),
		zap.Int("monthly_buckets", len(result.MonthlyResults)),
		zap.Int("quarterly_buckets", len(result.QuarterlyResults)),
		zap.Int("yearly_buckets", len(result.YearlyResults)))
	return result, nil
}

// optimizeBuckets sweeps the grid over each bucket. Buckets with fewer than
// MinSignals signals are skipped outright.
func (o *Optimizer) optimizeBuckets(bars []marketdata.Bar, signals []momentumSignal, periods []Period) []StopLossResult {
	best := make([]*StopLossResult, len(periods))

	type job struct {
		idx    int
		period Period
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	workers := o.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				best[j.idx] = o.bestForBucket(bars, signals, j.period)
			}
		}()
	}
	for i, p := range periods {
		jobs <- job{idx: i, period: p}
	}
	close(jobs)
	wg.Wait()

	results := make([]StopLossResult, 0, len(periods))
	for _, r := range best {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}

// bestForBucket returns the highest-scoring candidate for one bucket, or nil
// when the bucket lacks enough signals. Ties resolve to the lower stop
// percentage because the grid is ascending and the comparison is strict.
func (o *Optimizer) bestForBucket(bars []marketdata.Bar, signals []momentumSignal, p Period) *StopLossResult {
	bucketSignals := lo.Filter(signals, func(s momentumSignal, _ int) bool { return p.Contains(s.Date) })
	if len(bucketSignals) < o.cfg.MinSignals {
		return nil
	}

	var best *StopLossResult
	bestScore := math.Inf(-1)
	for _, pct := range o.cfg.Grid {
		r := o.replay(bars, bucketSignals, pct, p)
		r.Score = r.SharpeRatio*0.6 + r.WinRate/100*0.4
		if r.Score > bestScore {
			bestScore = r.Score
			best = &r
		}
	}
	return best
}

// findOverallOptimal scores each candidate over the whole series with a
// composite of risk-adjusted return, hit rate, raw return and drawdown.
func (o *Optimizer) findOverallOptimal(bars []marketdata.Bar, signals []momentumSignal, start, end time.Time) float64 {
	bestStop := defaultOverallStop
	bestScore := math.Inf(-1)
	whole := Period{Start: start, End: end}
	for _, pct := range o.cfg.Grid {
		r := o.replay(bars, signals, pct, whole)
		score := r.SharpeRatio*0.4 +
			r.WinRate/100*0.3 +
			r.TotalReturnPct/100*0.2 +
			(1-r.MaxDrawdownPct/100)*0.1
		if score > bestScore {
			bestScore = score
			bestStop = pct
		}
	}
	return bestStop
}

// replay runs the event-driven backtest: it walks the signal sequence alone,
// entering on the first BUY while flat and exiting on the next SELL, with
// the exit price clamped to the stop level when the sell prints through it.
// Any position still open at the last signal closes at the bucket's final
// bar close.
func (o *Optimizer) replay(bars []marketdata.Bar, signals []momentumSignal, stopPct float64, p Period) StopLossResult {
	capital := o.cfg.InitialCapital
	var position *PeriodTrade
	var trades []PeriodTrade
	equity := []float64{capital}

	for _, sig := range signals {
		switch {
		case sig.Action == wyckoff.Buy && position == nil:
			position = &PeriodTrade{
				EntryDate:  sig.Date,
				EntryPrice: sig.Price,
				Shares:     capital / sig.Price,
			}
		case sig.Action == wyckoff.Sell && position != nil:
			exitPrice := sig.Price
			reason := ReplaySignal
			stopPrice := position.EntryPrice * (1 - stopPct)
			if exitPrice <= stopPrice {
				exitPrice = stopPrice
				reason = ReplayStopLoss
			}
			capital += o.settle(position, sig.Date, exitPrice, reason)
			trades = append(trades, *position)
			equity = append(equity, capital)
			position = nil
		}
	}

	if position != nil {
		if last, ok := lastBarIn(bars, p); ok {
			capital += o.settle(position, last.Date, last.Close, ReplayPeriodEnd)
			trades = append(trades, *position)
			equity = append(equity, capital)
		}
		position = nil
	}

	return o.summarize(trades, equity, capital, stopPct, p)
}

// settle finalizes the open position in place and returns its P&L.
func (o *Optimizer) settle(position *PeriodTrade, exitDate time.Time, exitPrice float64, reason string) float64 {
	position.ExitDate = exitDate
	position.ExitPrice = exitPrice
	position.PnL = (exitPrice - position.EntryPrice) * position.Shares
	position.PnLPercent = (exitPrice - position.EntryPrice) / position.EntryPrice * 100
	position.ExitReason = reason
	return position.PnL
}

func (o *Optimizer) summarize(trades []PeriodTrade, equity []float64, capital, stopPct float64, p Period) StopLossResult {
	r := StopLossResult{
		PeriodStart:     p.Start,
		PeriodEnd:       p.End,
		OptimalStopLoss: stopPct,
		Trades:          trades,
	}
	if len(trades) == 0 {
		return r
	}

	wins := lo.Filter(trades, func(t PeriodTrade, _ int) bool { return t.PnL > 0 })
	losses := lo.Filter(trades, func(t PeriodTrade, _ int) bool { return t.PnL < 0 })
	r.TotalTrades = len(trades)
	r.WinningTrades = len(wins)
	r.LosingTrades = len(losses)
	r.WinRate = float64(len(wins)) / float64(len(trades)) * 100
	r.TotalReturnPct = (capital - o.cfg.InitialCapital) / o.cfg.InitialCapital * 100
	r.MaxDrawdownPct = realizedDrawdown(equity)
	r.SharpeRatio = tradeSharpe(trades)

	var grossProfit, grossLoss float64
	for _, t := range wins {
		grossProfit += t.PnL
	}
	for _, t := range losses {
		grossLoss += t.PnL
	}
	if len(wins) > 0 {
		r.AvgWin = grossProfit / float64(len(wins))
	}
	if len(losses) > 0 {
		r.AvgLoss = grossLoss / float64(len(losses))
	}
	switch {
	case grossLoss != 0:
		r.ProfitFactor = grossProfit / math.Abs(grossLoss)
	case grossProfit > 0:
		r.ProfitFactor = grossProfit
		r.ProfitFactorCapped = true
	}
	return r
}

// realizedDrawdown walks the realized-capital checkpoints, one per closed
// trade, tracking the running peak.
func realizedDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// tradeSharpe is the per-trade ratio of mean to standard deviation of trade
// returns. Unlike the bar-level Sharpe it is not annualized: buckets differ
// in length, so a time scaling would make them incomparable.
func tradeSharpe(trades []PeriodTrade) float64 {
	if len(trades) < 2 {
		return 0
	}
	var sum float64
	for _, t := range trades {
		sum += t.PnLPercent
	}
	avg := sum / float64(len(trades))
	var ss float64
	for _, t := range trades {
		d := t.PnLPercent - avg
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(trades)))
	if std == 0 {
		return 0
	}
	return avg / std
}

func lastBarIn(bars []marketdata.Bar, p Period) (marketdata.Bar, bool) {
	for i := len(bars) - 1; i >= 0; i-- {
		if p.Contains(bars[i].Date) {
			return bars[i], true
		}
	}
	return marketdata.Bar{}, false
}
