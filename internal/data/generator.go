package data

import (
	"math"
	"math/rand"

	"bidding-arena/internal/model"
)

// GeneratorConfig controls synthetic impression generation. The same seed
// always produces the same dataset, which keeps replays reproducible.
type GeneratorConfig struct {
	Records   int
	Seed      int64
	StartTime int64 // unix seconds of the first impression
}

const defaultStartTime = 1_700_000_000

// Generate produces synthetic impressions with the shape of real exchange
// logs: a weighted geo mix, platform/placement price multipliers, lognormal
// floor prices, and a small conversion probability skewed toward the
// segments advertisers actually pay for.
func Generate(cfg GeneratorConfig) []model.Impression {
	if cfg.Records <= 0 {
		return nil
	}
	start := cfg.StartTime
	if start == 0 {
		start = defaultStartTime
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	platforms := []string{"iOS", "Android"}
	placements := []string{"Banner", "Video", "Interstitial"}

	impressions := make([]model.Impression, 0, cfg.Records)
	now := start
	for i := 0; i < cfg.Records; i++ {
		now += int64(1 + rng.Intn(5))

		geo := pickGeo(rng)
		platform := platforms[rng.Intn(len(platforms))]
		placement := placements[rng.Intn(len(placements))]

		basePrice := 1.0
		if geo == "US" {
			basePrice *= 2.0
		}
		if placement == "Video" {
			basePrice *= 3.0
		}
		if platform == "iOS" {
			basePrice *= 1.2
		}

		// Floor price is lognormal around the segment's base price.
		floor := math.Exp(rng.NormFloat64()*0.5 + math.Log(basePrice))
		floor = math.Round(floor*100) / 100

		cvProb := 0.01
		if geo == "US" {
			cvProb *= 1.5
		}
		if placement == "Interstitial" {
			cvProb *= 2.0
		}

		impressions = append(impressions, model.Impression{
			Sequence:   i,
			Timestamp:  now,
			FloorPrice: floor,
			Features: map[string]string{
				"platform":  platform,
				"geo":       geo,
				"placement": placement,
			},
			Conversion: rng.Float64() < cvProb,
		})
	}
	return impressions
}

// pickGeo draws US/EU/APAC with weights 0.4/0.3/0.3.
func pickGeo(rng *rand.Rand) string {
	r := rng.Float64()
	switch {
	case r < 0.4:
		return "US"
	case r < 0.7:
		return "EU"
	default:
		return "APAC"
	}
}
