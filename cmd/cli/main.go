package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"bidding-arena/internal/config"
	"bidding-arena/internal/data"
	"bidding-arena/internal/logging"
	"bidding-arena/internal/model"
	"bidding-arena/internal/replay"
	"bidding-arena/internal/sandbox"
	"bidding-arena/internal/strategy"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "replay":
		cmdReplay(os.Args[2:])
	case "generate":
		cmdGenerate(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli replay --config examples/config.yaml --out results/replay.csv")
	fmt.Println("  cli generate --records 1000 --seed 42 --out impressions.json")
	fmt.Println("  cli validate --source 'floor_price * 1.1'")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - replay runs every configured strategy over the impression stream and prints the scoreboard")
	fmt.Println("  - generate writes a synthetic impression dataset as JSON")
	fmt.Println("  - validate statically checks one strategy expression without executing it")
}

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	outPath := fs.String("out", "", "Optional output CSV path")
	n := fs.Int("n", 0, "Optional: limit to first N impressions (0=all)")
	_ = fs.Parse(args)

	if *cfgPath == "" {
		fmt.Println("--config is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	log := logging.NewLogger(logging.Config{Level: cfg.LogLevel, Format: "console"})

	impressions := loadImpressions(cfg)
	if *n > 0 && *n < len(impressions) {
		impressions = impressions[:*n]
	}

	env, err := strategy.NewEnv()
	if err != nil {
		panic(err)
	}
	validator := strategy.NewValidator(env)
	exec := sandbox.New(env, cfg.Run.Limits())
	engine := replay.New(exec, cfg.Run.EngineOptions(), log)

	for _, sc := range cfg.Strategies {
		source := sc.Source
		if source == "" {
			source = strategy.PresetSource(sc.Preset)
			if source == "" {
				panic(fmt.Errorf("strategy %q: unknown preset %q", sc.Name, sc.Preset))
			}
		}
		if rej := validator.Validate(source); rej != nil {
			fmt.Printf("strategy %q rejected: %s\n", sc.Name, rej.Error())
			continue
		}
		prg, err := exec.Compile(source)
		if err != nil {
			panic(err)
		}
		budget := sc.Budget
		if budget == 0 {
			budget = cfg.Run.StartingBudget
		}
		if err := engine.Register(sc.Name, prg, budget); err != nil {
			panic(err)
		}
	}

	scoreboard := replay.NewScoreboard()
	engine.OnResult = scoreboard.Update

	result, err := engine.Run(context.Background(), data.NewSliceSource(impressions), data.Analyze(impressions))
	if err != nil {
		panic(err)
	}

	if *outPath != "" {
		if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
			panic(err)
		}
		if err := replay.WriteResultsCSV(*outPath, result.Results); err != nil {
			panic(err)
		}
		fmt.Printf("Wrote %d impressions to %s\n", len(result.Results), *outPath)
	}

	fmt.Printf("Run %s after %d impressions (%s)\n\n", result.State, len(result.Results), cfg.Run.ClearingRule)
	printScoreboard(scoreboard)
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	records := fs.Int("records", 1000, "Number of impressions to generate")
	seed := fs.Int64("seed", 42, "RNG seed for reproducible datasets")
	outPath := fs.String("out", "impressions.json", "Output JSON path")
	_ = fs.Parse(args)

	impressions := data.Generate(data.GeneratorConfig{Records: *records, Seed: *seed})
	if err := data.WriteImpressionsJSON(*outPath, impressions); err != nil {
		panic(err)
	}

	stats := data.Analyze(impressions)
	fmt.Printf("Wrote %d impressions to %s\n", len(impressions), *outPath)
	fmt.Printf("p50=%.2f p90=%.2f conversion_rate=%.3f\n",
		stats.Percentiles["p50"], stats.Percentiles["p90"], stats.ConversionRate)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	source := fs.String("source", "", "Strategy expression to check")
	sourceFile := fs.String("source-file", "", "Path to a file holding the expression")
	_ = fs.Parse(args)

	src := *source
	if src == "" && *sourceFile != "" {
		raw, err := os.ReadFile(*sourceFile)
		if err != nil {
			panic(err)
		}
		src = string(raw)
	}
	if src == "" {
		fmt.Println("--source or --source-file is required")
		os.Exit(2)
	}

	env, err := strategy.NewEnv()
	if err != nil {
		panic(err)
	}
	if rej := strategy.NewValidator(env).Validate(src); rej != nil {
		fmt.Printf("rejected: %s\n", rej.Error())
		os.Exit(1)
	}
	fmt.Println("valid")
}

func loadImpressions(cfg *config.Config) []model.Impression {
	if cfg.Data.File != "" {
		impressions, err := data.LoadImpressionsJSON(cfg.Data.File)
		if err != nil {
			panic(err)
		}
		return impressions
	}
	return data.Generate(data.GeneratorConfig{
		Records: cfg.Data.Synthetic.Records,
		Seed:    cfg.Data.Synthetic.Seed,
	})
}

func printScoreboard(sb *replay.Scoreboard) {
	snapshot := sb.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return snapshot[names[i]].TotalSpend > snapshot[names[j]].TotalSpend
	})

	fmt.Printf("%-16s %-8s %-6s %-8s %-10s %-9s %-6s %-9s %-16s\n",
		"strategy", "seen", "won", "winrate", "spend", "avg_cpm", "conv", "remain", "status")
	for _, name := range names {
		m := snapshot[name]
		fmt.Printf("%-16s %-8d %-6d %-8.3f %-10.2f %-9.2f %-6d %-9.2f %-16s\n",
			name,
			m.ImpressionsSeen,
			m.ImpressionsWon,
			m.WinRate,
			m.TotalSpend,
			m.AvgCPM,
			m.Conversions,
			m.BudgetRemaining,
			m.Status,
		)
	}
}
