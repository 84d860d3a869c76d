package replay

import (
	"testing"

	"bidding-arena/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreboardDerivesMetrics(t *testing.T) {
	sb := NewScoreboard()
	sb.Update(model.RunResult{
		Sequence: 0,
		Strategies: []model.StrategyState{
			{
				Name:            "A",
				InitialBudget:   100,
				BudgetRemaining: 94,
				ImpressionsSeen: 4,
				ImpressionsWon:  2,
				TotalSpend:      6,
				Conversions:     1,
				Status:          model.StatusActive,
			},
			{
				Name:            "B",
				InitialBudget:   100,
				BudgetRemaining: 100,
				ImpressionsSeen: 4,
				Status:          model.StatusActive,
			},
		},
	})

	snap := sb.Snapshot()
	require.Len(t, snap, 2)

	a := snap["A"]
	assert.Equal(t, 0.5, a.WinRate)
	assert.Equal(t, 3.0, a.SpendPerWin)
	assert.Equal(t, 3000.0, a.AvgCPM)
	assert.Equal(t, 6.0, a.CPA)
	assert.Equal(t, 94.0, a.BudgetRemaining)

	b := snap["B"]
	assert.Equal(t, 0.0, b.WinRate)
	assert.Equal(t, 0.0, b.SpendPerWin)
}

func TestScoreboardLatestSnapshotWins(t *testing.T) {
	sb := NewScoreboard()
	sb.Update(model.RunResult{Strategies: []model.StrategyState{
		{Name: "A", ImpressionsSeen: 1, Status: model.StatusActive},
	}})
	sb.Update(model.RunResult{Strategies: []model.StrategyState{
		{Name: "A", ImpressionsSeen: 2, ImpressionsWon: 1, TotalSpend: 1.5, Status: model.StatusBudgetExhausted},
	}})

	a := sb.Snapshot()["A"]
	assert.Equal(t, 2, a.ImpressionsSeen)
	assert.Equal(t, model.StatusBudgetExhausted, a.Status)
	assert.Equal(t, 0.5, a.WinRate)
}

func TestScoreboardSnapshotIsCopy(t *testing.T) {
	sb := NewScoreboard()
	sb.Update(model.RunResult{Strategies: []model.StrategyState{
		{Name: "A", ImpressionsSeen: 1, Status: model.StatusActive},
	}})
	snap := sb.Snapshot()
	snap["A"] = Metrics{ImpressionsSeen: 99}
	assert.Equal(t, 1, sb.Snapshot()["A"].ImpressionsSeen)
}
