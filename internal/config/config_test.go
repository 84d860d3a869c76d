package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.yaml", `
strategies:
  - name: flat
    source: "2.0"
data:
  synthetic:
    records: 100
    seed: 42
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "second_price", cfg.Run.ClearingRule)
	assert.Equal(t, 20, cfg.Run.PerInvocationTimeoutMs)
	assert.Equal(t, uint64(1_000_000), cfg.Run.PerInvocationCostLimit)
	assert.Equal(t, 3, cfg.Run.DisqualifyAfterNFaults)
	assert.Equal(t, 1000.0, cfg.Run.StartingBudget)
}

func TestLoadResolvesSourceFileRelativeToConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "strat.cel", "floor_price * 1.5\n")
	path := writeFile(t, dir, "run.yaml", `
strategies:
  - name: rel
    source_file: strat.cel
data:
  synthetic:
    records: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "floor_price * 1.5", cfg.Strategies[0].Source)
}

func TestValidateRejections(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad rule": `
run: {clearing_rule: third_price}
strategies: [{name: a, source: "1.0"}]
data: {synthetic: {records: 10}}
`,
		"no strategies": `
data: {synthetic: {records: 10}}
`,
		"duplicate names": `
strategies: [{name: a, source: "1.0"}, {name: a, source: "2.0"}]
data: {synthetic: {records: 10}}
`,
		"strategy without source": `
strategies: [{name: a}]
data: {synthetic: {records: 10}}
`,
		"no data": `
strategies: [{name: a, source: "1.0"}]
`,
		"both data sources": `
strategies: [{name: a, source: "1.0"}]
data: {file: x.json, synthetic: {records: 10}}
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, "bad.yaml", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLimitsMapping(t *testing.T) {
	r := RunConfig{PerInvocationTimeoutMs: 50, PerInvocationCostLimit: 123}
	l := r.Limits()
	assert.Equal(t, 50*time.Millisecond, l.Timeout)
	assert.Equal(t, uint64(123), l.CostLimit)
}
