package strategy

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// RejectionKind classifies why a submitted strategy never ran.
type RejectionKind string

const (
	RejectSyntax             RejectionKind = "SyntaxError"
	RejectForbiddenConstruct RejectionKind = "ForbiddenConstruct"
	RejectMissingEntryPoint  RejectionKind = "MissingEntryPoint"
)

// Rejection is the structured reason a strategy failed validation. It is
// surfaced verbatim to the operator; validation never executes any part of
// the submitted source.
type Rejection struct {
	Kind      RejectionKind `json:"kind"`
	Construct string        `json:"construct,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// Reason renders the short structured form, e.g. "ForbiddenConstruct(matches)".
func (r *Rejection) Reason() string {
	if r.Kind == RejectForbiddenConstruct && r.Construct != "" {
		return fmt.Sprintf("%s(%s)", r.Kind, r.Construct)
	}
	return string(r.Kind)
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason()
	}
	return r.Reason() + ": " + r.Detail
}

// deniedFunctions are callable in a stock CEL env but closed off here:
// matches() evaluates user-supplied regexes (unbounded backtracking), and
// dyn()/type() sidestep the static typing the entry-point check relies on.
var deniedFunctions = map[string]string{
	"matches": "matches",
	"dyn":     "dyn",
	"type":    "type",
}

// Validator is the static validation gate in front of the sandbox. Checks run
// in order and short-circuit: syntactic well-formedness, construct denylist,
// then the entry-point contract (the expression must produce a numeric bid
// from the declared auction context).
type Validator struct {
	env *cel.Env

	// maxNodes caps expression size; maxDepth caps comprehension nesting.
	// Both guard against pathological generated sources.
	maxNodes int
	maxDepth int
}

func NewValidator(env *cel.Env) *Validator {
	return &Validator{env: env, maxNodes: 5000, maxDepth: 2}
}

// Validate inspects untrusted source and returns nil when it is accepted, or
// the structured rejection otherwise.
func (v *Validator) Validate(source string) *Rejection {
	if strings.TrimSpace(source) == "" {
		return &Rejection{Kind: RejectSyntax, Detail: "empty source"}
	}

	parsed, issues := v.env.Parse(source)
	if issues != nil && issues.Err() != nil {
		return &Rejection{Kind: RejectSyntax, Detail: issues.Err().Error()}
	}

	w := &walker{maxDepth: v.maxDepth}
	w.walk(parsed.Expr(), 0) //nolint:staticcheck // deprecated but still the only way to traverse the AST
	if w.rejection != nil {
		return w.rejection
	}
	if w.nodes > v.maxNodes {
		return &Rejection{
			Kind:      RejectForbiddenConstruct,
			Construct: "oversized_expression",
			Detail:    fmt.Sprintf("%d nodes exceeds limit of %d", w.nodes, v.maxNodes),
		}
	}

	checked, issues := v.env.Check(parsed)
	if issues != nil && issues.Err() != nil {
		msg := issues.Err().Error()
		if strings.Contains(msg, "undeclared reference") {
			return &Rejection{Kind: RejectForbiddenConstruct, Construct: "undeclared_reference", Detail: msg}
		}
		return &Rejection{Kind: RejectSyntax, Detail: msg}
	}

	out := checked.OutputType()
	if !out.IsExactType(cel.DoubleType) && !out.IsExactType(cel.IntType) &&
		!out.IsExactType(cel.UintType) && !out.IsExactType(cel.DynType) {
		return &Rejection{
			Kind:   RejectMissingEntryPoint,
			Detail: fmt.Sprintf("expression must produce a numeric bid, got %s", out),
		}
	}
	return nil
}

type walker struct {
	maxDepth  int
	nodes     int
	rejection *Rejection
}

func (w *walker) walk(e *exprpb.Expr, depth int) {
	if e == nil || w.rejection != nil {
		return
	}
	w.nodes++

	switch k := e.ExprKind.(type) {
	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		if name, denied := deniedFunctions[call.Function]; denied {
			w.rejection = &Rejection{Kind: RejectForbiddenConstruct, Construct: name}
			return
		}
		if call.Target != nil {
			w.walk(call.Target, depth)
		}
		for _, arg := range call.Args {
			w.walk(arg, depth)
		}

	case *exprpb.Expr_SelectExpr:
		w.walk(k.SelectExpr.Operand, depth)

	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.Elements {
			w.walk(el, depth)
		}

	case *exprpb.Expr_StructExpr:
		for _, entry := range k.StructExpr.Entries {
			if entry.GetMapKey() != nil {
				w.walk(entry.GetMapKey(), depth)
			}
			w.walk(entry.Value, depth)
		}

	case *exprpb.Expr_ComprehensionExpr:
		// Comprehensions are the only looping construct CEL has. Nesting is
		// the closest thing to an unbounded-recursion marker, so it is capped.
		if depth+1 > w.maxDepth {
			w.rejection = &Rejection{Kind: RejectForbiddenConstruct, Construct: "nested_comprehension"}
			return
		}
		comp := k.ComprehensionExpr
		w.walk(comp.IterRange, depth+1)
		w.walk(comp.AccuInit, depth+1)
		w.walk(comp.LoopCondition, depth+1)
		w.walk(comp.LoopStep, depth+1)
		w.walk(comp.Result, depth+1)
	}
}
