package optimizer

import "time"

// PeriodTrade is one round trip from the signal-replay backtest. Shares are
// fractional here: the replay invests the full running capital at each entry.
type PeriodTrade struct {
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Shares     float64   `json:"shares"`
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnl_percent"`
	ExitReason string    `json:"exit_reason"`
}

// StopLossResult is the outcome of one stop-loss candidate over one calendar
// bucket. The per-bucket optimum keeps the highest-scoring candidate.
// ProfitFactorCapped marks a bucket with gross profit and no gross loss,
// where the raw ratio is unbounded.
type StopLossResult struct {
	PeriodStart        time.Time     `json:"period_start"`
	PeriodEnd          time.Time     `json:"period_end"`
	OptimalStopLoss    float64       `json:"optimal_stop_loss"`
	TotalReturnPct     float64       `json:"total_return_percent"`
	WinRate            float64       `json:"win_rate"`
	MaxDrawdownPct     float64       `json:"max_drawdown_percent"`
	SharpeRatio        float64       `json:"sharpe_ratio"`
	TotalTrades        int           `json:"total_trades"`
	WinningTrades      int           `json:"winning_trades"`
	LosingTrades       int           `json:"losing_trades"`
	AvgWin             float64       `json:"avg_win"`
	AvgLoss            float64       `json:"avg_loss"`
	ProfitFactor       float64       `json:"profit_factor"`
	ProfitFactorCapped bool          `json:"profit_factor_capped"`
	Score              float64       `json:"score"`
	Trades             []PeriodTrade `json:"trades"`
}

// StopLossOptimization is the complete analysis for one symbol.
type StopLossOptimization struct {
	Symbol           string           `json:"symbol"`
	AnalysisDate     time.Time        `json:"analysis_date"`
	OverallOptimal   float64          `json:"overall_optimal"`
	MonthlyResults   []StopLossResult `json:"monthly_results"`
	QuarterlyResults []StopLossResult `json:"quarterly_results"`
	YearlyResults    []StopLossResult `json:"yearly_results"`
	StopLossRange    [2]float64       `json:"stop_loss_range"`
	TestIntervals    []float64        `json:"test_intervals"`
}

// exit reasons used by the signal replay
const (
	ReplayStopLoss  = "Stop Loss"
	ReplaySignal    = "Signal"
	ReplayPeriodEnd = "Period End"
)
