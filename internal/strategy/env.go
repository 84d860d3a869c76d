package strategy

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// NewEnv builds the CEL environment strategy expressions are checked and
// evaluated against. The declared variables are the complete world a strategy
// can see: the auction context for one impression plus a read-only snapshot
// of the strategy's own runtime state and the dataset-level stats. Nothing
// else resolves, which is the first half of the sandbox boundary.
//
// ext.Math gives strategies the usual math helpers (greatest, least, ceil,
// floor, ...) without opening any capability.
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Math(),
		cel.Variable("floor_price", cel.DoubleType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("features", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("initial_budget", cel.DoubleType),
		cel.Variable("remaining_budget", cel.DoubleType),
		cel.Variable("impressions_seen", cel.IntType),
		cel.Variable("impressions_won", cel.IntType),
		cel.Variable("total_spend", cel.DoubleType),
		cel.Variable("price_percentiles", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("conversion_rate", cel.DoubleType),
	)
}
