// Package sandbox funnels all untrusted strategy execution through a single
// resource-limited boundary. One invocation evaluates one compiled expression
// against one impression; whatever goes wrong inside comes back out as a
// model.Fault value, never as an error or panic.
package sandbox

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"bidding-arena/internal/model"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// Limits bound one invocation. The cost limit is CEL's unified evaluation
// budget (expression steps, allocations, string work) and stands in for a
// per-invocation memory ceiling.
type Limits struct {
	Timeout                 time.Duration
	CostLimit               uint64
	InterruptCheckFrequency uint
}

func DefaultLimits() Limits {
	return Limits{
		Timeout:                 20 * time.Millisecond,
		CostLimit:               1_000_000,
		InterruptCheckFrequency: 64,
	}
}

// Request is everything a strategy may read for one invocation: the auction
// context, a snapshot of its own state, and the dataset stats. The snapshot
// is a value copy; nothing the expression does can reach engine state.
type Request struct {
	Impression     model.Impression
	State          model.StrategyState
	Percentiles    map[string]float64
	ConversionRate float64
}

// Program is a compiled, resource-limited strategy ready for invocation.
// Opaque outside this package.
type Program struct {
	prg cel.Program
}

// Executor compiles accepted sources and runs invocations under Limits.
type Executor struct {
	env    *cel.Env
	limits Limits
}

func New(env *cel.Env, limits Limits) *Executor {
	if limits.Timeout <= 0 {
		limits.Timeout = DefaultLimits().Timeout
	}
	if limits.CostLimit == 0 {
		limits.CostLimit = DefaultLimits().CostLimit
	}
	if limits.InterruptCheckFrequency == 0 {
		limits.InterruptCheckFrequency = DefaultLimits().InterruptCheckFrequency
	}
	return &Executor{env: env, limits: limits}
}

// Compile builds a Program from already-validated source. A compile failure
// here is an infrastructure error, not a validation outcome: the static
// validator must have run first.
func (e *Executor) Compile(source string) (*Program, error) {
	ast, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile strategy: %w", issues.Err())
	}
	prg, err := e.env.Program(ast,
		cel.CostLimit(e.limits.CostLimit),
		cel.InterruptCheckFrequency(e.limits.InterruptCheckFrequency),
	)
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}
	return &Program{prg: prg}, nil
}

// Invoke evaluates one strategy against one impression. The returned fault is
// nil on success. A negative numeric result is a deliberate no-bid; anything
// non-numeric (or NaN/Inf) is Fault(MalformedBid).
func (e *Executor) Invoke(ctx context.Context, p *Program, req Request) (bid model.Bid, fault *model.Fault) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			bid = model.Bid{NoBid: true, ElapsedMicros: time.Since(start).Microseconds()}
			fault = &model.Fault{Kind: model.FaultRuntimeError, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.limits.Timeout)
	defer cancel()

	val, _, err := p.prg.ContextEval(ctx, activation(req))
	elapsed := time.Since(start).Microseconds()
	if err != nil {
		return model.Bid{NoBid: true, ElapsedMicros: elapsed}, classify(ctx, err)
	}

	amount, ok := numeric(val)
	if !ok || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.Bid{NoBid: true, ElapsedMicros: elapsed}, &model.Fault{
			Kind:   model.FaultMalformedBid,
			Detail: fmt.Sprintf("bid must be a finite number, got %v", val.Value()),
		}
	}
	if amount < 0 {
		return model.Bid{NoBid: true, ElapsedMicros: elapsed}, nil
	}
	return model.Bid{Amount: amount, ElapsedMicros: elapsed}, nil
}

func activation(req Request) map[string]any {
	features := req.Impression.Features
	if features == nil {
		features = map[string]string{}
	}
	percentiles := req.Percentiles
	if percentiles == nil {
		percentiles = map[string]float64{}
	}
	return map[string]any{
		"floor_price":       req.Impression.FloorPrice,
		"sequence":          int64(req.Impression.Sequence),
		"features":          features,
		"initial_budget":    req.State.InitialBudget,
		"remaining_budget":  req.State.BudgetRemaining,
		"impressions_seen":  int64(req.State.ImpressionsSeen),
		"impressions_won":   int64(req.State.ImpressionsWon),
		"total_spend":       req.State.TotalSpend,
		"price_percentiles": percentiles,
		"conversion_rate":   req.ConversionRate,
	}
}

func classify(ctx context.Context, err error) *model.Fault {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return &model.Fault{Kind: model.FaultTimeout, Detail: "invocation deadline exceeded"}
	case strings.Contains(err.Error(), "cost limit exceeded"):
		return &model.Fault{Kind: model.FaultResourceExceeded, Detail: "evaluation cost limit exceeded"}
	default:
		return &model.Fault{Kind: model.FaultRuntimeError, Detail: err.Error()}
	}
}

func numeric(val ref.Val) (float64, bool) {
	switch v := val.Value().(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
