package model

// StrategyStatus is the runtime status of a registered strategy during a run.
type StrategyStatus string

const (
	// StatusActive strategies are invoked for every impression.
	StatusActive StrategyStatus = "Active"

	// StatusBudgetExhausted strategies stay in the run as forced no-bids so
	// their final metrics remain comparable.
	StatusBudgetExhausted StrategyStatus = "BudgetExhausted"

	// StatusDisqualified is terminal: entered after too many consecutive
	// faults. The strategy is excluded from further invocations but its last
	// known metrics stay on the scoreboard.
	StatusDisqualified StrategyStatus = "Disqualified"
)

// StrategySpec is the input from the generation collaborator: an untrusted
// source blob plus a label and a starting budget.
type StrategySpec struct {
	Name   string  `json:"name"`
	Source string  `json:"source"`
	Budget float64 `json:"budget"`
}

// StrategyState is the mutable runtime state of one strategy. It is owned
// exclusively by the replay engine for the duration of a run and mutated only
// when an auction outcome is applied. Everything else sees value copies.
type StrategyState struct {
	Name string `json:"name"`

	InitialBudget   float64 `json:"initial_budget"`
	BudgetRemaining float64 `json:"budget_remaining"`

	ImpressionsSeen int     `json:"impressions_seen"`
	ImpressionsWon  int     `json:"impressions_won"`
	TotalSpend      float64 `json:"total_spend"`
	Conversions     int     `json:"conversions"`

	ConsecutiveFaults int            `json:"consecutive_faults"`
	Status            StrategyStatus `json:"status"`
	LastError         string         `json:"last_error,omitempty"`
}

func NewStrategyState(name string, budget float64) StrategyState {
	return StrategyState{
		Name:            name,
		InitialBudget:   budget,
		BudgetRemaining: budget,
		Status:          StatusActive,
	}
}
