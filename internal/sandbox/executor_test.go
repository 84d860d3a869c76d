package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"bidding-arena/internal/model"
	"bidding-arena/internal/strategy"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) *cel.Env {
	t.Helper()
	env, err := strategy.NewEnv()
	require.NoError(t, err)
	return env
}

func testRequest() Request {
	return Request{
		Impression: model.Impression{
			Sequence:   7,
			FloorPrice: 1.0,
			Features:   map[string]string{"geo": "US", "placement": "Video"},
		},
		State:          model.NewStrategyState("test", 100.0),
		Percentiles:    map[string]float64{"p50": 2.0, "p90": 5.0},
		ConversionRate: 0.01,
	}
}

func TestInvokeReturnsBid(t *testing.T) {
	exec := New(newEnv(t), DefaultLimits())
	prg, err := exec.Compile(`floor_price * 2.0`)
	require.NoError(t, err)

	bid, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.Nil(t, fault)
	assert.False(t, bid.NoBid)
	assert.Equal(t, 2.0, bid.Amount)
}

func TestInvokeReadsContextAndState(t *testing.T) {
	exec := New(newEnv(t), DefaultLimits())
	prg, err := exec.Compile(`features["geo"] == "US" ? price_percentiles["p90"] : remaining_budget`)
	require.NoError(t, err)

	bid, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.Nil(t, fault)
	assert.Equal(t, 5.0, bid.Amount)
}

func TestInvokeNegativeIsNoBid(t *testing.T) {
	exec := New(newEnv(t), DefaultLimits())
	prg, err := exec.Compile(`-1.0`)
	require.NoError(t, err)

	bid, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.Nil(t, fault)
	assert.True(t, bid.NoBid)
}

func TestInvokeIntegerBid(t *testing.T) {
	exec := New(newEnv(t), DefaultLimits())
	prg, err := exec.Compile(`sequence`)
	require.NoError(t, err)

	bid, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.Nil(t, fault)
	assert.Equal(t, 7.0, bid.Amount)
}

func TestInvokeRuntimeErrorBecomesFault(t *testing.T) {
	exec := New(newEnv(t), DefaultLimits())
	// Integer division by zero is a CEL runtime error.
	prg, err := exec.Compile(`1 / (impressions_won - impressions_won)`)
	require.NoError(t, err)

	bid, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.NotNil(t, fault)
	assert.Equal(t, model.FaultRuntimeError, fault.Kind)
	assert.True(t, bid.NoBid)
}

func TestInvokeNaNIsMalformed(t *testing.T) {
	exec := New(newEnv(t), DefaultLimits())
	prg, err := exec.Compile(`0.0 / 0.0`)
	require.NoError(t, err)

	_, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.NotNil(t, fault)
	assert.Equal(t, model.FaultMalformedBid, fault.Kind)
}

func TestInvokeCostLimitFault(t *testing.T) {
	limits := DefaultLimits()
	limits.CostLimit = 5
	exec := New(newEnv(t), limits)
	prg, err := exec.Compile(`[1, 2, 3, 4, 5, 6, 7, 8, 9, 10].map(x, x * 2).size() > 0 ? 1.0 : 2.0`)
	require.NoError(t, err)

	_, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.NotNil(t, fault)
	assert.Equal(t, model.FaultResourceExceeded, fault.Kind)
}

func TestInvokeTimeoutFault(t *testing.T) {
	limits := Limits{
		Timeout:                 time.Nanosecond,
		CostLimit:               DefaultLimits().CostLimit,
		InterruptCheckFrequency: 1,
	}
	exec := New(newEnv(t), limits)
	prg, err := exec.Compile(`[1, 2, 3, 4, 5, 6, 7, 8].all(x, x + sequence >= 0) ? 1.0 : 2.0`)
	require.NoError(t, err)

	start := time.Now()
	_, fault := exec.Invoke(context.Background(), prg, testRequest())
	require.NotNil(t, fault)
	assert.Equal(t, model.FaultTimeout, fault.Kind)
	// The run must not stall beyond the timeout by more than scheduling noise.
	assert.Less(t, time.Since(start), time.Second)
}

func TestCompileRejectsBrokenSource(t *testing.T) {
	exec := New(newEnv(t), DefaultLimits())
	_, err := exec.Compile(`floor_price +`)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "compile strategy"))
}
