// Package wyckoff classifies daily bar series into market phases, detects
// trading ranges with their internal sub-phases, and derives trading signals
// from the current phase and volume context.
package wyckoff

// Phase is a categorical market-structure label.
type Phase string

const (
	Accumulation Phase = "Accumulation"
	Distribution Phase = "Distribution"
	Markup       Phase = "Markup"
	Markdown     Phase = "Markdown"
	Unclassified Phase = "Unclassified"
)

// Action is a per-bar trading decision.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)
