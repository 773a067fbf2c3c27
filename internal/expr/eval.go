// internal/expr/eval.go
package expr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/nettolabs/netto/internal/types"
)

/*
 * Tree-walking evaluator with Python expression semantics.
 *
 * Name resolution precedence, lowest to highest: compile-time constants
 * table, prior rule results, the gross salary, the flags namespace.
 * Resolved names shadow builtin functions, and an unknown name is an
 * evaluation-time error (not a parse error), so a formula referencing a
 * not-yet-computed rule id fails per scenario, not per document.
 *
 * Arithmetic follows Python: booleans coerce to 0/1 in numeric context,
 * // is floor division, % takes the sign of the divisor, ** is
 * float64 power. and/or short-circuit and return an operand value
 * rather than a bool; not always returns a bool. + concatenates when
 * both operands are strings.
 */

// Eval runs the compiled formula against a scenario and the amounts of
// previously evaluated rules. The returned value is a float64, string,
// bool, nil, or map (for a bare namespace reference). Failures are
// reported as *EvalError.
func (p *Program) Eval(sc *types.Scenario, results map[string]float64) (any, error) {
	ev := &evaluator{prog: p, sc: sc, results: results}
	v, err := ev.eval(p.root)
	if err != nil {
		return nil, &EvalError{Src: p.src, Err: err}
	}
	return v, nil
}

type evaluator struct {
	prog    *Program
	sc      *types.Scenario
	results map[string]float64
}

func (ev *evaluator) eval(n node) (any, error) {
	switch n := n.(type) {
	case *literalNode:
		return n.value, nil
	case *identNode:
		v, ok := ev.lookup(n.name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.name)
		}
		return v, nil
	case *attrNode:
		return ev.evalAttr(n)
	case *callNode:
		return ev.evalCall(n)
	case *unaryNode:
		return ev.evalUnary(n)
	case *binaryNode:
		return ev.evalBinary(n)
	case *compareNode:
		return ev.evalCompare(n)
	}
	return nil, fmt.Errorf("unhandled node %T", n)
}

// lookup resolves a bare name. Later sources win, matching the
// environment layering of the DSL: constants < results < gross < flags.
func (ev *evaluator) lookup(name string) (any, bool) {
	if name == "flags" {
		return ev.sc.Flags, true
	}
	if name == "gross" {
		return ev.sc.Gross, true
	}
	if v, ok := ev.results[name]; ok {
		return v, true
	}
	if v, ok := ev.prog.constants[name]; ok {
		return v, true
	}
	return nil, false
}

func (ev *evaluator) evalAttr(n *attrNode) (any, error) {
	base, err := ev.eval(n.x)
	if err != nil {
		return nil, err
	}
	ns, ok := base.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("attribute access on non-namespace value (%T)", base)
	}
	v, ok := ns[n.attr]
	if !ok {
		return nil, fmt.Errorf("%w: attribute %s", ErrUnknownIdentifier, strconv.Quote(n.attr))
	}
	return v, nil
}

func (ev *evaluator) evalCall(n *callNode) (any, error) {
	// Environment names shadow builtins, same as the DSL environment
	// being merged over the function table. A shadowed builtin is not
	// callable, so this is always an error, but it is the accurate one.
	if _, ok := ev.lookup(n.fn); ok {
		return nil, fmt.Errorf("%s is not callable", n.fn)
	}
	fn, ok := builtins[n.fn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.fn)
	}
	args := make([]any, len(n.args))
	for i, arg := range n.args {
		v, err := ev.eval(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args)
}

func (ev *evaluator) evalUnary(n *unaryNode) (any, error) {
	v, err := ev.eval(n.x)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "not":
		return !Truth(v), nil
	case "-":
		f, err := Number(v)
		if err != nil {
			return nil, err
		}
		return -f, nil
	default: // "+"
		return Number(v)
	}
}

func (ev *evaluator) evalBinary(n *binaryNode) (any, error) {
	if n.op == "and" || n.op == "or" {
		x, err := ev.eval(n.x)
		if err != nil {
			return nil, err
		}
		// Short-circuit, returning operand values like Python.
		if n.op == "and" && !Truth(x) {
			return x, nil
		}
		if n.op == "or" && Truth(x) {
			return x, nil
		}
		return ev.eval(n.y)
	}
	x, err := ev.eval(n.x)
	if err != nil {
		return nil, err
	}
	y, err := ev.eval(n.y)
	if err != nil {
		return nil, err
	}
	return arith(n.op, x, y)
}

func arith(op string, x, y any) (any, error) {
	if op == "+" {
		xs, xok := x.(string)
		ys, yok := y.(string)
		if xok && yok {
			return xs + ys, nil
		}
		if xok || yok {
			return nil, fmt.Errorf("cannot add %T and %T", x, y)
		}
	}
	a, err := Number(x)
	if err != nil {
		return nil, err
	}
	b, err := Number(y)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		m := math.Mod(a, b)
		// Python %: result takes the sign of the divisor.
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case "**":
		if a == 0 && b < 0 {
			return nil, fmt.Errorf("zero raised to a negative power")
		}
		r := math.Pow(a, b)
		if math.IsNaN(r) && !math.IsNaN(a) && !math.IsNaN(b) {
			return nil, fmt.Errorf("invalid power operation %v ** %v", a, b)
		}
		return r, nil
	}
	return nil, fmt.Errorf("unhandled operator %q", op)
}

func (ev *evaluator) evalCompare(n *compareNode) (any, error) {
	left, err := ev.eval(n.first)
	if err != nil {
		return nil, err
	}
	for i, op := range n.ops {
		right, err := ev.eval(n.operands[i])
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func compare(op string, a, b any) (bool, error) {
	switch op {
	case "==":
		return equal(a, b), nil
	case "!=":
		return !equal(a, b), nil
	}
	// Ordering comparisons require both operands numeric or both
	// strings, matching Python's refusal to order mixed types.
	if na, oka := asNumber(a); oka {
		if nb, okb := asNumber(b); okb {
			switch op {
			case "<":
				return na < nb, nil
			case "<=":
				return na <= nb, nil
			case ">":
				return na > nb, nil
			case ">=":
				return na >= nb, nil
			}
		}
	}
	if sa, oka := a.(string); oka {
		if sb, okb := b.(string); okb {
			switch op {
			case "<":
				return sa < sb, nil
			case "<=":
				return sa <= sb, nil
			case ">":
				return sa > sb, nil
			case ">=":
				return sa >= sb, nil
			}
		}
	}
	return false, fmt.Errorf("unorderable types: %T %s %T", a, op, b)
}

// equal treats booleans as numbers (True == 1 in Python) and lets
// mismatched types compare unequal instead of erroring.
func equal(a, b any) bool {
	if na, oka := asNumber(a); oka {
		if nb, okb := asNumber(b); okb {
			return na == nb
		}
		return false
	}
	if sa, oka := a.(string); oka {
		sb, okb := b.(string)
		return okb && sa == sb
	}
	return a == b
}

// asNumber converts numeric-ish values without erroring. Booleans count
// as 0/1 like Python bools.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Number coerces v to float64 with Python numeric-context rules, or
// reports a type error. Exported for the rule engine, which needs the
// same coercion for rule amounts.
func Number(v any) (float64, error) {
	if n, ok := asNumber(v); ok {
		return n, nil
	}
	return 0, fmt.Errorf("cannot use %T value as a number", v)
}

// Truth reports Python truthiness: nil, false, zero, the empty string,
// and empty namespaces are false; everything else is true.
func Truth(v any) bool {
	switch n := v.(type) {
	case nil:
		return false
	case bool:
		return n
	case float64:
		return n != 0
	case int:
		return n != 0
	case int64:
		return n != 0
	case string:
		return n != ""
	case map[string]any:
		return len(n) > 0
	default:
		return true
	}
}
