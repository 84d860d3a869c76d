package replay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"bidding-arena/internal/data"
	"bidding-arena/internal/model"
	"bidding-arena/internal/sandbox"
	"bidding-arena/internal/strategy"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) *sandbox.Executor {
	t.Helper()
	env, err := strategy.NewEnv()
	require.NoError(t, err)
	return sandbox.New(env, sandbox.DefaultLimits())
}

func register(t *testing.T, eng *Engine, exec *sandbox.Executor, name, source string, budget float64) {
	t.Helper()
	prg, err := exec.Compile(source)
	require.NoError(t, err)
	require.NoError(t, eng.Register(name, prg, budget))
}

func impressions(floors ...float64) []model.Impression {
	out := make([]model.Impression, len(floors))
	for i, f := range floors {
		out[i] = model.Impression{Sequence: i, Timestamp: 1_700_000_000 + int64(i), FloorPrice: f}
	}
	return out
}

func run(t *testing.T, eng *Engine, imps []model.Impression) *Result {
	t.Helper()
	res, err := eng.Run(context.Background(), data.NewSliceSource(imps), data.Analyze(imps))
	require.NoError(t, err)
	require.Equal(t, StateCompleted, res.State)
	return res
}

func TestSecondPriceScenario(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.SecondPrice}, zerolog.Nop())
	register(t, eng, exec, "A", `2.0`, 100)
	register(t, eng, exec, "B", `1.5`, 100)

	res := run(t, eng, impressions(1.0))
	require.Len(t, res.Results, 1)
	out := res.Results[0].Outcome
	assert.Equal(t, "A", out.Winner)
	assert.Equal(t, 1.5, out.ClearingPrice)
	assert.Equal(t, 100-1.5, res.Results[0].Strategies[0].BudgetRemaining)
}

func TestNoWinnerBelowFloor(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.SecondPrice}, zerolog.Nop())
	register(t, eng, exec, "A", `0.5`, 100)

	res := run(t, eng, impressions(1.0))
	require.Len(t, res.Results, 1)
	assert.False(t, res.Results[0].Outcome.HasWinner())
	assert.Equal(t, 100.0, res.Results[0].Strategies[0].BudgetRemaining)
}

func TestBudgetExhaustion(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice}, zerolog.Nop())
	register(t, eng, exec, "A", `3.0`, 3.0)

	res := run(t, eng, impressions(1.0, 1.0, 1.0))
	require.Len(t, res.Results, 3)

	first := res.Results[0].Strategies[0]
	assert.Equal(t, 0.0, first.BudgetRemaining)
	assert.Equal(t, model.StatusBudgetExhausted, first.Status)

	// Exhausted strategies keep participating as forced no-bids.
	for _, r := range res.Results[1:] {
		assert.False(t, r.Outcome.HasWinner())
		require.Len(t, r.Bids, 1)
		assert.True(t, r.Bids[0].NoBid)
	}
	last := res.Results[2].Strategies[0]
	assert.Equal(t, 3, last.ImpressionsSeen)
	assert.Equal(t, 1, last.ImpressionsWon)
}

func TestOverBudgetBidClampsToNoBid(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice}, zerolog.Nop())
	register(t, eng, exec, "A", `5.0`, 1.0)

	res := run(t, eng, impressions(0.5))
	r := res.Results[0]
	assert.False(t, r.Outcome.HasWinner())
	require.Len(t, r.Bids, 1)
	assert.True(t, r.Bids[0].NoBid)
	assert.Empty(t, r.Bids[0].Fault)
	assert.Equal(t, 1.0, r.Strategies[0].BudgetRemaining)
}

func TestDisqualificationAfterConsecutiveFaults(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice, DisqualifyAfterNFaults: 3}, zerolog.Nop())
	// Integer division by zero faults on every invocation.
	register(t, eng, exec, "broken", `1 / (impressions_won - impressions_won)`, 100)
	register(t, eng, exec, "steady", `2.0`, 100)

	res := run(t, eng, impressions(1.0, 1.0, 1.0, 1.0))
	require.Len(t, res.Results, 4)

	third := res.Results[2].Strategies[0]
	assert.Equal(t, model.StatusDisqualified, third.Status)
	assert.Contains(t, third.LastError, "RuntimeError")

	// Fourth impression: excluded from invocation, no bid record, metrics frozen.
	fourth := res.Results[3]
	require.Len(t, fourth.Bids, 1)
	assert.Equal(t, "steady", fourth.Bids[0].Strategy)
	assert.Equal(t, 3, fourth.Strategies[0].ImpressionsSeen)
	assert.Equal(t, "steady", fourth.Outcome.Winner)
}

func TestCleanInvocationResetsFaultStreak(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice, DisqualifyAfterNFaults: 3}, zerolog.Nop())
	// Faults only on even sequence numbers: the streak never reaches 3.
	register(t, eng, exec, "flaky", `sequence % 2 == 0 ? 1 / (sequence - sequence) : 2`, 100)

	res := run(t, eng, impressions(1.0, 1.0, 1.0, 1.0, 1.0, 1.0))
	final := res.Results[5].Strategies[0]
	assert.Equal(t, model.StatusActive, final.Status)
}

func TestBudgetMonotonicallyNonIncreasing(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice}, zerolog.Nop())
	register(t, eng, exec, "A", `floor_price + 0.5`, 10)
	register(t, eng, exec, "B", `floor_price + 0.25`, 10)

	res := run(t, eng, impressions(1.0, 2.0, 0.5, 3.0, 1.5, 1.0, 1.0, 1.0))
	prev := map[string]float64{"A": 10, "B": 10}
	for _, r := range res.Results {
		for _, st := range r.Strategies {
			assert.GreaterOrEqual(t, st.BudgetRemaining, 0.0)
			assert.LessOrEqual(t, st.BudgetRemaining, prev[st.Name])
			prev[st.Name] = st.BudgetRemaining
		}
	}
}

func TestReplayDeterminism(t *testing.T) {
	imps := data.Generate(data.GeneratorConfig{Records: 150, Seed: 99})
	stats := data.Analyze(imps)

	runOnce := func() []byte {
		exec := newExecutor(t)
		eng := New(exec, Options{ClearingRule: model.SecondPrice, Workers: 4}, zerolog.Nop())
		for _, p := range strategy.Presets() {
			prg, err := exec.Compile(p.Source)
			require.NoError(t, err)
			require.NoError(t, eng.Register(p.Name, prg, 500))
		}
		res, err := eng.Run(context.Background(), data.NewSliceSource(imps), stats)
		require.NoError(t, err)

		// Strip wall-clock jitter before comparing; everything else must be
		// byte-identical across runs.
		for i := range res.Results {
			for j := range res.Results[i].Bids {
				res.Results[i].Bids[j].ElapsedMicros = 0
			}
		}
		raw, err := json.Marshal(res.Results)
		require.NoError(t, err)
		return raw
	}

	assert.Equal(t, string(runOnce()), string(runOnce()))
}

func TestResultsEmittedInImpressionOrder(t *testing.T) {
	imps := data.Generate(data.GeneratorConfig{Records: 50, Seed: 3})
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice, Workers: 8}, zerolog.Nop())
	register(t, eng, exec, "A", `floor_price`, 1000)
	register(t, eng, exec, "B", `floor_price * 1.1`, 1000)

	var seen []int
	eng.OnResult = func(r model.RunResult) { seen = append(seen, r.Sequence) }

	res, err := eng.Run(context.Background(), data.NewSliceSource(imps), data.Analyze(imps))
	require.NoError(t, err)
	require.Len(t, seen, len(res.Results))
	for i, seq := range seen {
		assert.Equal(t, i, seq)
	}
}

type failingSource struct {
	ok   []model.Impression
	pos  int
	fail error
}

func (f *failingSource) Next() (model.Impression, error) {
	if f.pos < len(f.ok) {
		imp := f.ok[f.pos]
		f.pos++
		return imp, nil
	}
	return model.Impression{}, f.fail
}

func TestSourceFailureAbortsRunKeepingResults(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice}, zerolog.Nop())
	register(t, eng, exec, "A", `2.0`, 100)

	src := &failingSource{ok: impressions(1.0, 1.0), fail: errors.New("disk gone")}
	res, err := eng.Run(context.Background(), src, data.Stats{})
	require.Error(t, err)
	assert.Equal(t, StateAborted, res.State)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, StateAborted, eng.State())
}

func TestCancelledContextAborts(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{ClearingRule: model.FirstPrice}, zerolog.Nop())
	register(t, eng, exec, "A", `2.0`, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := eng.Run(ctx, data.NewSliceSource(impressions(1.0)), data.Stats{})
	require.Error(t, err)
	assert.Equal(t, StateAborted, res.State)
	assert.Empty(t, res.Results)
}

func TestRegisterGuards(t *testing.T) {
	exec := newExecutor(t)
	eng := New(exec, Options{}, zerolog.Nop())
	prg, err := exec.Compile(`1.0`)
	require.NoError(t, err)

	require.NoError(t, eng.Register("A", prg, 10))
	assert.Error(t, eng.Register("A", prg, 10), "duplicate name")
	assert.Error(t, eng.Register("", prg, 10), "empty name")
	assert.Error(t, eng.Register("B", prg, 0), "zero budget")

	_ = run(t, eng, impressions(1.0))
	assert.Error(t, eng.Register("C", prg, 10), "register after start")
}
