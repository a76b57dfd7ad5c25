// Package main is the command-line backtester. It loads a daily-bar series
// from a local CSV or from ClickHouse, runs the selected strategy and prints
// a human-readable summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/engine"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/optimizer"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	csvPath := flag.String("csv", "", "Path to local CSV; if set, skip ClickHouse")
	symbol := flag.String("symbol", "AAPL", "Ticker symbol")
	from := flag.String("from", "", "Start date (YYYY-MM-DD), default two years back")
	to := flag.String("to", "", "End date (YYYY-MM-DD), default today")
	strategy := flag.String("strategy", "phase", "Strategy: phase or ema")
	optimize := flag.Bool("optimize", false, "Run the stop-loss sweep instead of a backtest")
	verbose := flag.Bool("verbose", false, "Print every trade")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	bars, err := loadBars(cfg, logger, *csvPath, *symbol, *from, *to)
	if err != nil {
		logger.Fatal("load bars failed", zap.Error(err))
	}
	if len(bars) == 0 {
		logger.Fatal("no bars loaded", zap.String("symbol", *symbol))
	}

	p := message.NewPrinter(language.English)

	if *optimize {
		opt := optimizer.New(cfg.Optimizer, logger)
		result, err := opt.Optimize(*symbol, bars)
		if err != nil {
			logger.Fatal("optimization failed", zap.Error(err))
		}
		printOptimization(p, result)
		return
	}

	var result *engine.BacktestResult
	switch *strategy {
	case "phase":
		result, err = engine.NewSimulator(cfg.Engine, logger).Run(*symbol, bars)
	case "ema":
		result, err = engine.NewEMAStrategy(cfg.Engine, logger).Run(*symbol, bars)
	default:
		logger.Fatal("unknown strategy", zap.String("strategy", *strategy))
	}
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
	printSummary(p, result, *verbose)
}

func loadBars(cfg config.Config, logger *zap.Logger, csvPath, symbol, from, to string) ([]marketdata.Bar, error) {
	if csvPath != "" {
		return marketdata.LoadCSV(csvPath, logger)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-2, 0, 0)
	var err error
	if from != "" {
		if start, err = time.Parse("2006-01-02", from); err != nil {
			return nil, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse("2006-01-02", to); err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := marketdata.NewStore(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.QueryBars(ctx, symbol, start, end)
}

func printSummary(p *message.Printer, r *engine.BacktestResult, verbose bool) {
	m := r.Metrics
	p.Printf("\n%s  %s .. %s  (%d bars)\n",
		r.Symbol, r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"), r.TotalBars)
	p.Printf("  final value:   %.2f\n", m.FinalValue)
	p.Printf("  total return:  %.2f (%.2f%%)\n", m.TotalReturn, m.TotalReturnPct)
	p.Printf("  trades:        %d  (%d win / %d loss / %d flat)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.Breakeven)
	p.Printf("  win rate:      %.1f%%\n", m.WinRate)
	if m.ProfitFactorCapped {
		p.Printf("  profit factor: %.2f (no losing trades)\n", m.ProfitFactor)
	} else {
		p.Printf("  profit factor: %.2f\n", m.ProfitFactor)
	}
	p.Printf("  max drawdown:  %.2f%%\n", m.MaxDrawdownPct)
	p.Printf("  sharpe:        %.2f\n", m.SharpeRatio)

	if len(r.PhaseAnalysis.PhaseCounts) > 0 {
		p.Printf("  phases:\n")
		for phase, count := range r.PhaseAnalysis.PhaseCounts {
			p.Printf("    %-14s %d bars (avg run %.1f days)\n",
				phase, count, r.PhaseAnalysis.AvgDurations[phase])
		}
	}

	if verbose {
		p.Printf("\n  trades:\n")
		for _, t := range r.Trades {
			p.Printf("    %s %s  %s..%s  %.2f -> %.2f  pnl %.2f (%.2f%%)  [%s]\n",
				t.Action, t.Symbol,
				t.EntryDate.Format("2006-01-02"), t.ExitDate.Format("2006-01-02"),
				t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPercent, t.ExitReason)
		}
	}
}

func printOptimization(p *message.Printer, r *optimizer.StopLossOptimization) {
	p.Printf("\n%s stop-loss sweep  (grid %.0f%%..%.0f%%)\n",
		r.Symbol, r.StopLossRange[0]*100, r.StopLossRange[1]*100)
	p.Printf("  overall optimal: %.0f%%\n", r.OverallOptimal*100)

	printBuckets := func(label string, results []optimizer.StopLossResult) {
		if len(results) == 0 {
			return
		}
		p.Printf("  %s:\n", label)
		for _, b := range results {
			p.Printf("    %s..%s  stop %.0f%%  trades %d  win %.1f%%  return %.2f%%  score %.3f\n",
				b.PeriodStart.Format("2006-01-02"), b.PeriodEnd.Format("2006-01-02"),
				b.OptimalStopLoss*100, b.TotalTrades, b.WinRate, b.TotalReturnPct, b.Score)
		}
	}
	printBuckets("monthly", r.MonthlyResults)
	printBuckets("quarterly", r.QuarterlyResults)
	printBuckets("yearly", r.YearlyResults)

	if len(r.MonthlyResults)+len(r.QuarterlyResults)+len(r.YearlyResults) == 0 {
		fmt.Fprintln(os.Stderr, "no bucket had enough signals; only the overall optimum is meaningful")
	}
}
