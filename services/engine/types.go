// Package engine simulates trades over classified bar series and derives
// aggregate performance statistics. Two variants share the state machine:
// the phase-driven simulator (same-bar close fills) and the EMA
// trailing-stop strategy (next-bar open fills).
package engine

import (
	"time"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/wyckoff"
)

// Position is the one open holding of a running simulation. It exists only
// between entry and exit and is owned exclusively by the simulator.
type Position struct {
	EntryDate         time.Time
	EntryIndex        int
	EntryPrice        float64
	Shares            int
	Action            wyckoff.Action
	EntryPhase        wyckoff.Phase
	EntryReasoning    string
	HighestSinceEntry float64
	TrailingStop      float64
}

// Trade is an immutable closed round trip.
type Trade struct {
	Symbol       string         `json:"symbol"`
	EntryDate    time.Time      `json:"entry_date"`
	ExitDate     time.Time      `json:"exit_date"`
	EntryPrice   float64        `json:"entry_price"`
	ExitPrice    float64        `json:"exit_price"`
	Action       wyckoff.Action `json:"action"`
	Shares       int            `json:"shares"`
	EntryPhase   wyckoff.Phase  `json:"entry_phase"`
	ExitPhase    wyckoff.Phase  `json:"exit_phase"`
	PnL          float64        `json:"pnl"`
	PnLPercent   float64        `json:"pnl_percent"`
	DurationDays int            `json:"duration_days"`
	ExitReason   string         `json:"exit_reason"`
}

// EquityPoint is one mark-to-close observation of portfolio value.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// PhaseAnalysis summarizes the phase sequence seen during a run.
type PhaseAnalysis struct {
	PhaseCounts  map[wyckoff.Phase]int     `json:"phase_counts"`
	AvgDurations map[wyckoff.Phase]float64 `json:"avg_durations"`
	TotalSignals int                       `json:"total_signals"`
}

// BacktestResult is the terminal aggregate of one run, read-only once
// assembled.
type BacktestResult struct {
	Symbol        string             `json:"symbol"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	TotalBars     int                `json:"total_bars"`
	Trades        []Trade            `json:"trades"`
	Signals       []wyckoff.Signal   `json:"signals"`
	Metrics       PerformanceMetrics `json:"performance_metrics"`
	PhaseAnalysis PhaseAnalysis      `json:"phase_analysis"`
	EquityCurve   []EquityPoint      `json:"equity_curve"`
}

// Exit reasons, in trigger-precedence order for the phase variant.
const (
	ExitMaxDuration    = "max duration"
	ExitStopLoss       = "stop-loss"
	ExitTakeProfit     = "take-profit"
	ExitOpposingPhase  = "opposing phase"
	ExitOpposingSignal = "opposing signal"
	ExitPeriodEnd      = "period end"
	ExitTrailingStop   = "trailing stop"
	ExitEMASignal      = "ema signal"
)
