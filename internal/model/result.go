package model

// BidRecord is the audited form of one strategy's participation in one
// auction. Disqualified strategies produce no record (they are excluded);
// budget-exhausted strategies produce forced no-bid records.
type BidRecord struct {
	Strategy      string  `json:"strategy"`
	Amount        float64 `json:"amount"`
	NoBid         bool    `json:"no_bid,omitempty"`
	Fault         string  `json:"fault,omitempty"`
	Won           bool    `json:"won,omitempty"`
	ElapsedMicros int64   `json:"elapsed_micros"`
}

// RunResult is one row of per-impression output: the auction outcome plus an
// updated snapshot of every registered strategy's state. This is the primary
// artifact for "what happened" in a replay; the scoreboard is derivable from
// the RunResult sequence alone.
type RunResult struct {
	Sequence   int     `json:"sequence"`
	Timestamp  int64   `json:"timestamp"`
	FloorPrice float64 `json:"floor_price"`

	Outcome Outcome     `json:"outcome"`
	Bids    []BidRecord `json:"bids"`

	// Strategies holds post-auction state snapshots in registration order.
	Strategies []StrategyState `json:"strategies"`
}
