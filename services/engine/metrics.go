package engine

import (
	"math"

	"github.com/samber/lo"
)

// tradingDaysPerYear annualizes the Sharpe ratio over daily bars.
const tradingDaysPerYear = 252

// PerformanceMetrics aggregates trade and equity-curve statistics.
// Invariants: TotalTrades == Winning+Losing+Breakeven, MaxDrawdownPct in
// [0,100], ProfitFactor >= 0 and exactly 0 with no winners.
type PerformanceMetrics struct {
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_percent"`
	FinalValue     float64 `json:"final_value"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	Breakeven      int     `json:"breakeven_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	AvgDuration    float64 `json:"avg_trade_duration"`
	ProfitFactor   float64 `json:"profit_factor"`
	// ProfitFactorCapped marks a run with gross profit and no gross loss,
	// where the ratio itself is unbounded.
	ProfitFactorCapped bool    `json:"profit_factor_capped"`
	MaxDrawdownPct     float64 `json:"max_drawdown_percent"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
}

// ComputeMetrics derives the aggregate statistics from closed trades and
// the equity curve. Division-by-zero ratios resolve to 0, never NaN.
func ComputeMetrics(trades []Trade, equity []EquityPoint, initialCapital float64) PerformanceMetrics {
	m := PerformanceMetrics{FinalValue: initialCapital}
	if len(equity) > 0 {
		m.FinalValue = equity[len(equity)-1].Value
	}
	m.TotalReturn = m.FinalValue - initialCapital
	if initialCapital > 0 {
		m.TotalReturnPct = m.TotalReturn / initialCapital * 100
	}
	m.MaxDrawdownPct = maxDrawdown(equity)
	m.SharpeRatio = sharpe(equity)

	if len(trades) == 0 {
		return m
	}

	wins := lo.Filter(trades, func(t Trade, _ int) bool { return t.PnL > 0 })
	losses := lo.Filter(trades, func(t Trade, _ int) bool { return t.PnL < 0 })

	m.TotalTrades = len(trades)
	m.WinningTrades = len(wins)
	m.LosingTrades = len(losses)
	m.Breakeven = m.TotalTrades - m.WinningTrades - m.LosingTrades
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100

	var grossProfit, grossLoss float64
	for _, t := range wins {
		grossProfit += t.PnL
	}
	for _, t := range losses {
		grossLoss += t.PnL
	}
	if len(wins) > 0 {
		m.AvgWin = grossProfit / float64(len(wins))
	}
	if len(losses) > 0 {
		m.AvgLoss = grossLoss / float64(len(losses))
	}

	var durationSum float64
	for _, t := range trades {
		durationSum += float64(t.DurationDays)
	}
	m.AvgDuration = durationSum / float64(m.TotalTrades)

	switch {
	case grossLoss != 0:
		m.ProfitFactor = grossProfit / math.Abs(grossLoss)
	case grossProfit > 0:
		m.ProfitFactor = grossProfit
		m.ProfitFactorCapped = true
	default:
		m.ProfitFactor = 0
	}
	return m
}

// maxDrawdown is the deepest peak-to-trough percentage decline, tracking
// the running peak monotonically.
func maxDrawdown(equity []EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0].Value
	maxDD := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Value) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD * 100
}

// sharpe annualizes the mean bar-over-bar equity return against its
// population standard deviation. Fewer than 2 return observations or zero
// variance yields 0.
func sharpe(equity []EquityPoint) float64 {
	if len(equity) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i].Value/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	avg := sum / float64(len(returns))
	var ss float64
	for _, r := range returns {
		d := r - avg
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return avg / std * math.Sqrt(tradingDaysPerYear)
}
