package model

import "fmt"

// Bid is a strategy's response to a single impression. Bids are ephemeral:
// created per auction, folded into the outcome, then discarded.
type Bid struct {
	// Amount is the bid in account currency. Meaningless when NoBid is set.
	Amount float64 `json:"amount"`

	// NoBid marks a deliberate pass (or a clamped/faulted invocation).
	NoBid bool `json:"no_bid,omitempty"`

	// ElapsedMicros is the wall-clock cost of producing the bid.
	ElapsedMicros int64 `json:"elapsed_micros"`
}

// FaultKind classifies a failed sandbox invocation.
type FaultKind string

const (
	FaultTimeout          FaultKind = "Timeout"
	FaultResourceExceeded FaultKind = "ResourceExceeded"
	FaultRuntimeError     FaultKind = "RuntimeError"
	FaultMalformedBid     FaultKind = "MalformedBid"
)

// Fault is the value a strategy-code failure is converted to at the sandbox
// boundary. Faults never propagate as errors into the replay engine; the
// auction treats the invocation as "no bid" and the fault counts toward
// disqualification.
type Fault struct {
	Kind   FaultKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

func (f Fault) String() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}
