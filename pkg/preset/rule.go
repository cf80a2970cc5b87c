package preset

import (
	"fmt"
	"strings"

	"github.com/knetic/govaluate"
)

// DefaultRule emits icons only for sizes the classic directory fields describe.
const DefaultRule = "size <= 256"

// LargeRule replaces DefaultRule when large frames are enabled.
const LargeRule = "true"

// Rule decides per size whether an icon container is produced.
type Rule struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// RuleFunctions are the helpers available inside rule expressions.
func RuleFunctions() map[string]govaluate.ExpressionFunction {
	return map[string]govaluate.ExpressionFunction{
		// pow2(n) is true when n is a power of two.
		"pow2": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("pow2 expects 1 argument")
			}
			n, ok := args[0].(float64)
			if !ok {
				return nil, fmt.Errorf("pow2 argument must be numeric")
			}
			i := int64(n)
			return float64(i) == n && i > 0 && i&(i-1) == 0, nil
		},
		// between(n, lo, hi) is true when lo <= n <= hi.
		"between": func(args ...interface{}) (interface{}, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("between expects 3 arguments (n, lo, hi)")
			}
			var v [3]float64
			for i, a := range args {
				f, ok := a.(float64)
				if !ok {
					return nil, fmt.Errorf("between argument %d must be numeric", i+1)
				}
				v[i] = f
			}
			return v[1] <= v[0] && v[0] <= v[2], nil
		},
	}
}

// CompileRule parses expr. An empty expression selects DefaultRule.
func CompileRule(expr string) (*Rule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultRule
	}
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, RuleFunctions())
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", expr, err)
	}
	for _, v := range e.Vars() {
		if v != "size" {
			return nil, fmt.Errorf("compile rule %q: unknown variable %q", expr, v)
		}
	}
	return &Rule{source: expr, expr: e}, nil
}

// Match evaluates the rule for one size.
func (r *Rule) Match(size int) (bool, error) {
	result, err := r.expr.Evaluate(map[string]interface{}{"size": float64(size)})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", r.source, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("rule %q returned %T, want bool", r.source, result)
	}
	return b, nil
}

// String returns the expression source.
func (r *Rule) String() string {
	return r.source
}
