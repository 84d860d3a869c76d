package replay

import (
	"sync"

	"bidding-arena/internal/model"
)

// Metrics are the per-strategy aggregates the scoreboard exposes. All of
// them are derivable from the RunResult sequence; the scoreboard is a cache,
// not a second source of truth.
type Metrics struct {
	ImpressionsSeen int     `json:"impressions_seen"`
	ImpressionsWon  int     `json:"impressions_won"`
	WinRate         float64 `json:"win_rate"`
	TotalSpend      float64 `json:"total_spend"`
	SpendPerWin     float64 `json:"spend_per_win"`
	AvgCPM          float64 `json:"avg_cpm"`
	Conversions     int     `json:"conversions"`
	CPA             float64 `json:"cpa"`
	BudgetRemaining float64 `json:"budget_remaining"`

	Status    model.StrategyStatus `json:"status"`
	LastError string               `json:"last_error,omitempty"`
}

// Scoreboard accumulates RunResults into per-strategy metrics. Update is
// called from the replay loop in impression order; Snapshot may be polled
// concurrently by the visualization layer.
type Scoreboard struct {
	mu      sync.RWMutex
	metrics map[string]Metrics
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{metrics: map[string]Metrics{}}
}

// Update folds one RunResult in. Because every result carries full state
// snapshots, updating is an overwrite of the derived view per strategy.
func (s *Scoreboard) Update(r model.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range r.Strategies {
		m := Metrics{
			ImpressionsSeen: st.ImpressionsSeen,
			ImpressionsWon:  st.ImpressionsWon,
			TotalSpend:      st.TotalSpend,
			Conversions:     st.Conversions,
			BudgetRemaining: st.BudgetRemaining,
			Status:          st.Status,
			LastError:       st.LastError,
		}
		if st.ImpressionsSeen > 0 {
			m.WinRate = float64(st.ImpressionsWon) / float64(st.ImpressionsSeen)
		}
		if st.ImpressionsWon > 0 {
			m.SpendPerWin = st.TotalSpend / float64(st.ImpressionsWon)
			m.AvgCPM = st.TotalSpend * 1000 / float64(st.ImpressionsWon)
		}
		if st.Conversions > 0 {
			m.CPA = st.TotalSpend / float64(st.Conversions)
		}
		s.metrics[st.Name] = m
	}
}

// Snapshot returns a copy of the current per-strategy metrics.
func (s *Scoreboard) Snapshot() map[string]Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Metrics, len(s.metrics))
	for k, v := range s.metrics {
		out[k] = v
	}
	return out
}
