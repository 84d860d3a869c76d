// Package replay drives deterministic replays: one coordinating loop walks
// the impression stream in order, fans bid collection out across strategies
// for each impression, resolves the auction, and applies the outcome to the
// engine-owned strategy state.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"bidding-arena/internal/auction"
	"bidding-arena/internal/data"
	"bidding-arena/internal/model"
	"bidding-arena/internal/sandbox"

	"github.com/rs/zerolog"
)

// State is the run lifecycle. Initialized → Running → Completed | Aborted.
type State string

const (
	StateInitialized State = "Initialized"
	StateRunning     State = "Running"
	StateCompleted   State = "Completed"
	StateAborted     State = "Aborted"
)

// Options configure one run.
type Options struct {
	ClearingRule           model.ClearingRule
	DisqualifyAfterNFaults int
	Workers                int
}

func (o *Options) normalize() {
	if !o.ClearingRule.Valid() {
		o.ClearingRule = model.SecondPrice
	}
	if o.DisqualifyAfterNFaults <= 0 {
		o.DisqualifyAfterNFaults = 3
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
}

// strategyRuntime pairs a compiled program with the engine-owned state.
// Slice position is the registration index used for auction tie-breaks.
type strategyRuntime struct {
	prg   *sandbox.Program
	state model.StrategyState
}

// Result is the durable output of a run. On Aborted runs Results holds
// everything produced before the failure; those rows remain valid.
type Result struct {
	State   State             `json:"state"`
	Results []model.RunResult `json:"results"`
}

// Engine replays an impression stream against registered strategies.
// Strategy runtime state lives here and only here; it is mutated at exactly
// one point, after all bids for an impression are resolved.
type Engine struct {
	opts Options
	exec *sandbox.Executor
	log  zerolog.Logger

	// OnResult, when set, receives each RunResult as it is emitted, in
	// impression order. Set before Run; used to feed a Scoreboard or a
	// streaming consumer.
	OnResult func(model.RunResult)

	mu         sync.Mutex
	state      State
	strategies []*strategyRuntime
	results    []model.RunResult
}

func New(exec *sandbox.Executor, opts Options, log zerolog.Logger) *Engine {
	opts.normalize()
	return &Engine{
		opts:  opts,
		exec:  exec,
		log:   log,
		state: StateInitialized,
	}
}

// Register admits an accepted strategy. Validation is a one-way gate that
// must happen before compilation; a rejected source never reaches here.
// Registration order is the deterministic tie-break order.
func (e *Engine) Register(name string, prg *sandbox.Program, budget float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInitialized {
		return fmt.Errorf("cannot register in state %s", e.state)
	}
	if name == "" {
		return errors.New("strategy name is required")
	}
	if budget <= 0 {
		return fmt.Errorf("strategy %q: budget must be > 0", name)
	}
	for _, sr := range e.strategies {
		if sr.state.Name == name {
			return fmt.Errorf("strategy %q already registered", name)
		}
	}
	e.strategies = append(e.strategies, &strategyRuntime{
		prg:   prg,
		state: model.NewStrategyState(name, budget),
	})
	return nil
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Results returns a copy of the results emitted so far. Safe to call while
// the run is in progress.
func (e *Engine) Results() []model.RunResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.RunResult, len(e.results))
	copy(out, e.results)
	return out
}

// Run drives the replay to completion. Strategy faults never abort a run;
// only infrastructure failures (source errors, cancellation) do, and the
// partial result sequence is preserved either way.
func (e *Engine) Run(ctx context.Context, src data.Source, stats data.Stats) (*Result, error) {
	e.mu.Lock()
	if e.state != StateInitialized {
		state := e.state
		e.mu.Unlock()
		return nil, fmt.Errorf("run already started (state %s)", state)
	}
	if len(e.strategies) == 0 {
		e.mu.Unlock()
		return nil, errors.New("no strategies registered")
	}
	e.state = StateRunning
	e.mu.Unlock()

	sem := make(chan struct{}, e.opts.Workers)

	for {
		// Cancellation stops issuing new invocations; in-flight ones have
		// already finished by this point because bid collection is joined
		// per impression.
		if err := ctx.Err(); err != nil {
			return e.abort(fmt.Errorf("run cancelled: %w", err))
		}

		imp, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return e.abort(fmt.Errorf("impression source: %w", err))
		}

		result := e.playImpression(imp, stats, sem)

		e.mu.Lock()
		e.results = append(e.results, result)
		e.mu.Unlock()
		if e.OnResult != nil {
			e.OnResult(result)
		}
	}

	e.mu.Lock()
	e.state = StateCompleted
	res := &Result{State: e.state, Results: e.results}
	e.mu.Unlock()
	return res, nil
}

func (e *Engine) abort(err error) (*Result, error) {
	e.mu.Lock()
	e.state = StateAborted
	res := &Result{State: e.state, Results: e.results}
	e.mu.Unlock()
	e.log.Error().Err(err).Int("results", len(res.Results)).Msg("run aborted")
	return res, err
}

type collected struct {
	bid     model.Bid
	fault   *model.Fault
	invoked bool
}

// playImpression collects bids from all non-disqualified strategies, resolves
// the auction, and applies the outcome atomically. Invocations run in
// parallel across strategies for this one impression only; state updates
// happen after every strategy has returned or faulted.
func (e *Engine) playImpression(imp model.Impression, stats data.Stats, sem chan struct{}) model.RunResult {
	bids := make([]collected, len(e.strategies))

	var wg sync.WaitGroup
	for i, sr := range e.strategies {
		if sr.state.Status != model.StatusActive {
			continue
		}
		req := sandbox.Request{
			Impression:     imp,
			State:          sr.state,
			Percentiles:    stats.Percentiles,
			ConversionRate: stats.ConversionRate,
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, prg *sandbox.Program) {
			defer wg.Done()
			defer func() { <-sem }()
			// Invocations get their own deadline rather than the run context
			// so a cancelled run lets them finish or time out cleanly.
			bid, fault := e.exec.Invoke(context.Background(), prg, req)
			bids[i] = collected{bid: bid, fault: fault, invoked: true}
		}(i, sr.prg)
	}
	wg.Wait()

	// Single mutation point: everything below runs on the coordinating
	// goroutine with all bids for this impression in hand.
	entries := make([]auction.Entry, 0, len(e.strategies))
	records := make([]model.BidRecord, 0, len(e.strategies))

	for i, sr := range e.strategies {
		switch sr.state.Status {
		case model.StatusDisqualified:
			// Excluded entirely; last metrics stay queryable via snapshots.
			continue

		case model.StatusBudgetExhausted:
			// Still participates, always as no-bid, to keep metrics comparable.
			sr.state.ImpressionsSeen++
			records = append(records, model.BidRecord{Strategy: sr.state.Name, NoBid: true})
			continue
		}

		c := bids[i]
		if !c.invoked {
			continue
		}
		sr.state.ImpressionsSeen++

		rec := model.BidRecord{
			Strategy:      sr.state.Name,
			ElapsedMicros: c.bid.ElapsedMicros,
		}

		switch {
		case c.fault != nil:
			sr.state.ConsecutiveFaults++
			sr.state.LastError = c.fault.String()
			rec.NoBid = true
			rec.Fault = c.fault.String()
			if sr.state.ConsecutiveFaults >= e.opts.DisqualifyAfterNFaults {
				sr.state.Status = model.StatusDisqualified
				e.log.Warn().
					Str("strategy", sr.state.Name).
					Int("faults", sr.state.ConsecutiveFaults).
					Str("last_error", sr.state.LastError).
					Msg("strategy disqualified")
			}

		case c.bid.NoBid:
			sr.state.ConsecutiveFaults = 0
			rec.NoBid = true

		case c.bid.Amount > sr.state.BudgetRemaining:
			// Over-budget bids clamp to no-bid; budget_remaining never goes
			// negative.
			sr.state.ConsecutiveFaults = 0
			rec.NoBid = true

		default:
			sr.state.ConsecutiveFaults = 0
			rec.Amount = c.bid.Amount
			entries = append(entries, auction.Entry{
				Index:  i,
				Name:   sr.state.Name,
				Amount: c.bid.Amount,
			})
		}
		records = append(records, rec)
	}

	outcome := auction.Resolve(e.opts.ClearingRule, imp.FloorPrice, entries)

	if outcome.HasWinner() {
		winner := e.strategies[outcome.WinnerIndex]
		winner.state.BudgetRemaining -= outcome.ClearingPrice
		if winner.state.BudgetRemaining < 1e-9 {
			winner.state.BudgetRemaining = 0
			winner.state.Status = model.StatusBudgetExhausted
		}
		winner.state.TotalSpend += outcome.ClearingPrice
		winner.state.ImpressionsWon++
		if imp.Conversion {
			winner.state.Conversions++
		}
		for r := range records {
			if records[r].Strategy == winner.state.Name {
				records[r].Won = true
			}
		}
	}

	snapshots := make([]model.StrategyState, len(e.strategies))
	for i, sr := range e.strategies {
		snapshots[i] = sr.state
	}

	return model.RunResult{
		Sequence:   imp.Sequence,
		Timestamp:  imp.Timestamp,
		FloorPrice: imp.FloorPrice,
		Outcome:    outcome,
		Bids:       records,
		Strategies: snapshots,
	}
}
