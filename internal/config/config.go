package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bidding-arena/internal/model"
	"bidding-arena/internal/replay"
	"bidding-arena/internal/sandbox"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML) for a replay run.
type Config struct {
	Run        RunConfig        `yaml:"run"`
	Strategies []StrategyConfig `yaml:"strategies"`
	Data       DataConfig       `yaml:"data"`
	LogLevel   string           `yaml:"log_level"`
}

// RunConfig enumerates the run-level knobs.
type RunConfig struct {
	ClearingRule           string  `yaml:"clearing_rule"`
	PerInvocationTimeoutMs int     `yaml:"per_invocation_timeout_ms"`
	PerInvocationCostLimit uint64  `yaml:"per_invocation_cost_limit"`
	DisqualifyAfterNFaults int     `yaml:"disqualify_after_n_faults"`
	StartingBudget         float64 `yaml:"starting_budget"`
	Workers                int     `yaml:"workers"`
}

// StrategyConfig registers one strategy. Source may be inline or loaded from
// a file (resolved relative to the config file directory, falling back to
// cwd), or name a built-in preset. Budget overrides run.starting_budget when
// non-zero.
type StrategyConfig struct {
	Name       string  `yaml:"name"`
	Source     string  `yaml:"source"`
	SourceFile string  `yaml:"source_file"`
	Preset     string  `yaml:"preset"`
	Budget     float64 `yaml:"budget"`
}

// DataConfig attaches the impression source: either a JSON dataset file or a
// synthetic generation settings.
type DataConfig struct {
	File      string           `yaml:"file"`
	Synthetic *SyntheticConfig `yaml:"synthetic"`
}

type SyntheticConfig struct {
	Records int   `yaml:"records"`
	Seed    int64 `yaml:"seed"`
}

// DefaultRun returns the defaults applied to unset run fields.
func DefaultRun() RunConfig {
	return RunConfig{
		ClearingRule:           string(model.SecondPrice),
		PerInvocationTimeoutMs: 20,
		PerInvocationCostLimit: 1_000_000,
		DisqualifyAfterNFaults: 3,
		StartingBudget:         1000,
	}
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}

	c.Run.ApplyDefaults()

	// Resolve strategy source files. Prefer interpreting relative paths as
	// relative to the config file directory, but fall back to the provided
	// path (relative to cwd) if that doesn't exist.
	for i := range c.Strategies {
		sc := &c.Strategies[i]
		if sc.SourceFile == "" {
			continue
		}
		srcPath := sc.SourceFile
		if !filepath.IsAbs(srcPath) {
			cand := filepath.Join(filepath.Dir(path), srcPath)
			if _, err := os.Stat(cand); err == nil {
				srcPath = cand
			}
		}
		loaded, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", sc.Name, err)
		}
		sc.Source = strings.TrimSpace(string(loaded))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RunConfig) ApplyDefaults() {
	def := DefaultRun()
	if r.ClearingRule == "" {
		r.ClearingRule = def.ClearingRule
	}
	if r.PerInvocationTimeoutMs == 0 {
		r.PerInvocationTimeoutMs = def.PerInvocationTimeoutMs
	}
	if r.PerInvocationCostLimit == 0 {
		r.PerInvocationCostLimit = def.PerInvocationCostLimit
	}
	if r.DisqualifyAfterNFaults == 0 {
		r.DisqualifyAfterNFaults = def.DisqualifyAfterNFaults
	}
	if r.StartingBudget == 0 {
		r.StartingBudget = def.StartingBudget
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !model.ClearingRule(c.Run.ClearingRule).Valid() {
		return fmt.Errorf("run.clearing_rule must be %q or %q", model.FirstPrice, model.SecondPrice)
	}
	if c.Run.PerInvocationTimeoutMs < 0 {
		return errors.New("run.per_invocation_timeout_ms must be >= 0")
	}
	if c.Run.StartingBudget <= 0 {
		return errors.New("run.starting_budget must be > 0")
	}
	if len(c.Strategies) == 0 {
		return errors.New("at least one strategy is required")
	}
	seen := map[string]bool{}
	for _, sc := range c.Strategies {
		if sc.Name == "" {
			return errors.New("strategy.name is required")
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate strategy name %q", sc.Name)
		}
		seen[sc.Name] = true
		if sc.Source == "" && sc.Preset == "" {
			return fmt.Errorf("strategy %q: source, source_file or preset is required", sc.Name)
		}
	}
	if c.Data.File == "" && c.Data.Synthetic == nil {
		return errors.New("data.file or data.synthetic is required")
	}
	if c.Data.File != "" && c.Data.Synthetic != nil {
		return errors.New("data.file and data.synthetic are mutually exclusive")
	}
	if c.Data.Synthetic != nil && c.Data.Synthetic.Records <= 0 {
		return errors.New("data.synthetic.records must be > 0")
	}
	return nil
}

// Limits maps the run config onto sandbox limits.
func (r RunConfig) Limits() sandbox.Limits {
	l := sandbox.DefaultLimits()
	if r.PerInvocationTimeoutMs > 0 {
		l.Timeout = time.Duration(r.PerInvocationTimeoutMs) * time.Millisecond
	}
	if r.PerInvocationCostLimit > 0 {
		l.CostLimit = r.PerInvocationCostLimit
	}
	return l
}

// EngineOptions maps the run config onto replay engine options.
func (r RunConfig) EngineOptions() replay.Options {
	return replay.Options{
		ClearingRule:           model.ClearingRule(r.ClearingRule),
		DisqualifyAfterNFaults: r.DisqualifyAfterNFaults,
		Workers:                r.Workers,
	}
}
