package strategy

// Preset is a ready-made strategy source. Presets mirror the archetypes the
// generation collaborator tends to produce and double as seed opponents for
// generated candidates in demos and comparisons.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

func Presets() []Preset {
	return []Preset{
		{
			Name:        "aggressive",
			Description: "Bids above the p90 floor price while budget lasts. Wins a lot, burns out early.",
			Source:      `remaining_budget > 0.0 ? price_percentiles["p90"] * 1.2 : -1.0`,
		},
		{
			Name:        "conservative",
			Description: "Bids near the median, drops to p10 once 90% of the budget is spent.",
			Source:      `remaining_budget > initial_budget * 0.1 ? price_percentiles["p50"] : price_percentiles["p10"]`,
		},
		{
			Name:        "adaptive",
			Description: "Raises its bid when the observed win rate falls below 20%, relaxes otherwise.",
			Source: `impressions_seen > 10 && double(impressions_won) / double(impressions_seen) < 0.2 ` +
				`? price_percentiles["p70"] : price_percentiles["p40"]`,
		},
		{
			Name:        "value",
			Description: "Conversion hunter: pays up for interstitials and US traffic, passes on the rest.",
			Source: `features["placement"] == "Interstitial" ? price_percentiles["p80"] : ` +
				`(features["geo"] == "US" ? price_percentiles["p60"] : -1.0)`,
		},
	}
}

// PresetSource returns the source for a named preset, or "" when unknown.
func PresetSource(name string) string {
	for _, p := range Presets() {
		if p.Name == name {
			return p.Source
		}
	}
	return ""
}
