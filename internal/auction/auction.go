package auction

import "bidding-arena/internal/model"

// Entry is one strategy's bid as seen by the auction. Index is the strategy's
// registration order and is the deterministic tie-break key.
type Entry struct {
	Index  int
	Name   string
	Amount float64
	NoBid  bool
}

// Resolve computes the outcome of a single auction. It is pure: no hidden
// state, deterministic given its inputs.
//
// First-price: winner is the highest bid >= floor; clearing price = winning
// bid. Second-price: same winner; clearing price = max(floor, second-highest
// clearing bid), or the floor when no second bid clears it. Ties in the top
// bid go to the lowest registration index.
//
// When no bid clears the floor the outcome has no winner and a zero clearing
// price; budgets are untouched by construction.
func Resolve(rule model.ClearingRule, floor float64, entries []Entry) model.Outcome {
	winner := -1
	winnerAmount := 0.0
	winnerName := ""

	for _, e := range entries {
		if e.NoBid || e.Amount < floor {
			continue
		}
		if winner == -1 || e.Amount > winnerAmount || (e.Amount == winnerAmount && e.Index < winner) {
			winner = e.Index
			winnerAmount = e.Amount
			winnerName = e.Name
		}
	}

	if winner == -1 {
		return model.Outcome{WinnerIndex: -1}
	}

	price := winnerAmount
	if rule == model.SecondPrice {
		second := -1.0
		for _, e := range entries {
			if e.NoBid || e.Amount < floor || e.Index == winner {
				continue
			}
			if e.Amount > second {
				second = e.Amount
			}
		}
		if second >= floor {
			price = second
		} else {
			price = floor
		}
	}

	return model.Outcome{
		WinnerIndex:   winner,
		Winner:        winnerName,
		ClearingPrice: price,
	}
}
