package wyckoff

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// SymbolError records a per-symbol failure inside a multi-symbol run.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// ReportEntry is the per-symbol line in the cross-symbol summaries.
type ReportEntry struct {
	Symbol     string  `json:"symbol"`
	Score      float64 `json:"score"`
	Grade      string  `json:"grade"`
	Phase      Phase   `json:"current_phase"`
	Action     Action  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Price      float64 `json:"current_price"`
}

// Report aggregates analyses across symbols. Failed symbols appear only in
// Failures; they never abort the report.
type Report struct {
	ReportDate        time.Time      `json:"report_date"`
	TotalSymbols      int            `json:"total_symbols"`
	Analyzed          int            `json:"analyzed"`
	Failures          []SymbolError  `json:"failures,omitempty"`
	BuySignals        int            `json:"buy_signals"`
	SellSignals       int            `json:"sell_signals"`
	HoldSignals       int            `json:"hold_signals"`
	PhaseDistribution map[Phase]int  `json:"phase_distribution"`
	GradeDistribution map[string]int `json:"grade_distribution"`
	TopPerformers     []ReportEntry  `json:"top_performers"`
	BestOpportunities []ReportEntry  `json:"best_opportunities"`
}

// opportunityScore is the floor for the best-opportunities list.
const opportunityScore = 70

// BuildReport summarizes a batch of per-symbol analyses.
func BuildReport(analyses []*Analysis, failures []SymbolError) *Report {
	entries := lo.Map(analyses, func(a *Analysis, _ int) ReportEntry {
		phase := Unclassified
		confidence := 0.0
		if a.CurrentPhase != nil {
			phase = a.CurrentPhase.Phase
			confidence = a.CurrentPhase.Confidence
		}
		return ReportEntry{
			Symbol:     a.Symbol,
			Score:      a.Score.Total,
			Grade:      a.Score.Grade,
			Phase:      phase,
			Action:     a.Signal.Action,
			Confidence: confidence,
			Price:      a.CurrentPrice,
		}
	})

	phaseDist := lo.CountValuesBy(entries, func(e ReportEntry) Phase { return e.Phase })
	gradeDist := lo.CountValuesBy(entries, func(e ReportEntry) string { return e.Grade })

	buys := lo.CountBy(entries, func(e ReportEntry) bool { return e.Action == Buy })
	sells := lo.CountBy(entries, func(e ReportEntry) bool { return e.Action == Sell })

	byScore := make([]ReportEntry, len(entries))
	copy(byScore, entries)
	sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].Score > byScore[j].Score })

	top := byScore
	if len(top) > 5 {
		top = top[:5]
	}
	opportunities := lo.Filter(byScore, func(e ReportEntry, _ int) bool {
		return e.Action == Buy && e.Score > opportunityScore
	})

	return &Report{
		ReportDate:        time.Now(),
		TotalSymbols:      len(analyses) + len(failures),
		Analyzed:          len(analyses),
		Failures:          failures,
		BuySignals:        buys,
		SellSignals:       sells,
		HoldSignals:       len(entries) - buys - sells,
		PhaseDistribution: phaseDist,
		GradeDistribution: gradeDist,
		TopPerformers:     top,
		BestOpportunities: opportunities,
	}
}
