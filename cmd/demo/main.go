package main

import (
	"context"
	"flag"
	"fmt"

	"bidding-arena/internal/config"
	"bidding-arena/internal/data"
	"bidding-arena/internal/logging"
	"bidding-arena/internal/replay"
	"bidding-arena/internal/sandbox"
	"bidding-arena/internal/strategy"
)

// Demo:
// - Generate a synthetic impression stream
// - Register the built-in preset strategies
// - Replay a few impressions to show how the pieces fit together
func main() {
	records := flag.Int("records", 200, "Number of synthetic impressions")
	seed := flag.Int64("seed", 42, "RNG seed")
	rule := flag.String("rule", "second_price", "Clearing rule (first_price or second_price)")
	n := flag.Int("n", 12, "Number of result lines to print")
	flag.Parse()

	impressions := data.Generate(data.GeneratorConfig{Records: *records, Seed: *seed})
	stats := data.Analyze(impressions)

	runCfg := config.DefaultRun()
	runCfg.ClearingRule = *rule

	env, err := strategy.NewEnv()
	if err != nil {
		panic(err)
	}
	validator := strategy.NewValidator(env)
	exec := sandbox.New(env, runCfg.Limits())

	log := logging.NewLogger(logging.Config{Level: "warn", Format: "console"})
	engine := replay.New(exec, runCfg.EngineOptions(), log)

	for _, p := range strategy.Presets() {
		if rej := validator.Validate(p.Source); rej != nil {
			panic(fmt.Errorf("preset %q rejected: %s", p.Name, rej.Error()))
		}
		prg, err := exec.Compile(p.Source)
		if err != nil {
			panic(err)
		}
		if err := engine.Register(p.Name, prg, runCfg.StartingBudget); err != nil {
			panic(err)
		}
	}

	scoreboard := replay.NewScoreboard()
	engine.OnResult = scoreboard.Update

	result, err := engine.Run(context.Background(), data.NewSliceSource(impressions), stats)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Replayed %d impressions (%s) with %d preset strategies\n", len(result.Results), *rule, len(strategy.Presets()))
	fmt.Printf("Dataset p50=%.2f p90=%.2f conversion_rate=%.3f\n\n", stats.Percentiles["p50"], stats.Percentiles["p90"], stats.ConversionRate)

	for i := 0; i < min(*n, len(result.Results)); i++ {
		r := result.Results[i]
		winner := "-"
		if r.Outcome.HasWinner() {
			winner = r.Outcome.Winner
		}
		fmt.Printf("seq=%-4d floor=%6.2f winner=%-14s clearing=%6.2f bids=%d\n",
			r.Sequence,
			r.FloorPrice,
			winner,
			r.Outcome.ClearingPrice,
			len(r.Bids),
		)
	}

	fmt.Println("\nFinal scoreboard:")
	for name, m := range scoreboard.Snapshot() {
		fmt.Printf("  %-14s won=%-4d winrate=%.3f spend=%8.2f remaining=%8.2f status=%s\n",
			name, m.ImpressionsWon, m.WinRate, m.TotalSpend, m.BudgetRemaining, m.Status)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
