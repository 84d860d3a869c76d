package data

import (
	"io"
	"math"
	"sort"

	"bidding-arena/internal/model"
)

// Source yields impressions strictly in sequence order. Next returns io.EOF
// when the stream is exhausted; any other error is an infrastructure failure
// that aborts the run. Sources are restartable per run, not resumable mid-run.
type Source interface {
	Next() (model.Impression, error)
}

// SliceSource serves an in-memory impression set.
type SliceSource struct {
	impressions []model.Impression
	pos         int
}

func NewSliceSource(impressions []model.Impression) *SliceSource {
	return &SliceSource{impressions: impressions}
}

func (s *SliceSource) Next() (model.Impression, error) {
	if s.pos >= len(s.impressions) {
		return model.Impression{}, io.EOF
	}
	imp := s.impressions[s.pos]
	s.pos++
	return imp, nil
}

// Reset rewinds the source for a fresh run.
func (s *SliceSource) Reset() { s.pos = 0 }

func (s *SliceSource) Len() int { return len(s.impressions) }

// Stats are dataset-level aggregates exposed to strategies as bidding
// context: floor-price percentiles and the global conversion rate.
type Stats struct {
	Percentiles    map[string]float64 `json:"percentiles"`
	ConversionRate float64            `json:"conversion_rate"`
}

// Analyze computes Stats over a full impression set. Percentile keys are
// "p10" through "p90" in steps of ten, with linear interpolation between
// sorted floor prices.
func Analyze(impressions []model.Impression) Stats {
	stats := Stats{Percentiles: map[string]float64{}}
	for p := 10; p <= 90; p += 10 {
		stats.Percentiles[percentileKey(p)] = 0
	}
	if len(impressions) == 0 {
		return stats
	}

	prices := make([]float64, len(impressions))
	conversions := 0
	for i, imp := range impressions {
		prices[i] = imp.FloorPrice
		if imp.Conversion {
			conversions++
		}
	}
	sort.Float64s(prices)

	for p := 10; p <= 90; p += 10 {
		stats.Percentiles[percentileKey(p)] = percentile(prices, float64(p))
	}
	stats.ConversionRate = float64(conversions) / float64(len(impressions))
	return stats
}

func percentileKey(p int) string {
	return "p" + string(rune('0'+p/10)) + "0"
}

// percentile computes the p-th percentile of sorted values with linear
// interpolation (the same convention as numpy's default).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
