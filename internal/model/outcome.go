package model

// ClearingRule selects how the winning price is determined.
// Keep these values stable; they appear in configs and API payloads.
type ClearingRule string

const (
	FirstPrice  ClearingRule = "first_price"
	SecondPrice ClearingRule = "second_price"
)

func (r ClearingRule) Valid() bool {
	return r == FirstPrice || r == SecondPrice
}

// Outcome is the resolution of a single auction. Ephemeral, produced by the
// auction model from the collected bids.
type Outcome struct {
	// WinnerIndex is the winner's registration index, or -1 when no bid
	// cleared the floor.
	WinnerIndex int `json:"winner_index"`

	// Winner is the winning strategy's name, empty when there is no winner.
	Winner string `json:"winner,omitempty"`

	// ClearingPrice is what the winner pays. Zero when there is no winner.
	ClearingPrice float64 `json:"clearing_price"`
}

func (o Outcome) HasWinner() bool { return o.WinnerIndex >= 0 }
