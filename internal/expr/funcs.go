// internal/expr/funcs.go
package expr

import (
	"fmt"
	"math"
)

/*
 * Whitelisted builtin functions.
 *
 * The sandbox exposes exactly seven numeric helpers. Arguments are
 * coerced with the same rules as arithmetic (booleans count as 0/1,
 * strings and null are errors). round follows Python 3 semantics:
 * banker's rounding, ties go to the even neighbor, so round(3.5) == 4
 * and round(2.5) == 2.
 */

type builtinFunc func(args []any) (any, error)

var builtins = map[string]builtinFunc{
	"abs":   fnAbs,
	"ceil":  fnCeil,
	"floor": fnFloor,
	"round": fnRound,
	"sqrt":  fnSqrt,
	"min":   fnMin,
	"max":   fnMax,
}

func oneNumber(name string, args []any) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s() takes exactly one argument (%d given)", name, len(args))
	}
	return Number(args[0])
}

func fnAbs(args []any) (any, error) {
	n, err := oneNumber("abs", args)
	if err != nil {
		return nil, err
	}
	return math.Abs(n), nil
}

func fnCeil(args []any) (any, error) {
	n, err := oneNumber("ceil", args)
	if err != nil {
		return nil, err
	}
	return math.Ceil(n), nil
}

func fnFloor(args []any) (any, error) {
	n, err := oneNumber("floor", args)
	if err != nil {
		return nil, err
	}
	return math.Floor(n), nil
}

func fnRound(args []any) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, fmt.Errorf("round() takes one or two arguments (%d given)", len(args))
	}
	n, err := Number(args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return math.RoundToEven(n), nil
	}
	digits, err := Number(args[1])
	if err != nil {
		return nil, err
	}
	shift := math.Pow(10, math.Trunc(digits))
	return math.RoundToEven(n*shift) / shift, nil
}

func fnSqrt(args []any) (any, error) {
	n, err := oneNumber("sqrt", args)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("sqrt() of negative number %v", n)
	}
	return math.Sqrt(n), nil
}

func fnMin(args []any) (any, error) {
	return fold("min", args, func(a, b float64) float64 { return math.Min(a, b) })
}

func fnMax(args []any) (any, error) {
	return fold("max", args, func(a, b float64) float64 { return math.Max(a, b) })
}

func fold(name string, args []any, pick func(a, b float64) float64) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s() expected at least one argument", name)
	}
	best, err := Number(args[0])
	if err != nil {
		return nil, err
	}
	for _, arg := range args[1:] {
		n, err := Number(arg)
		if err != nil {
			return nil, err
		}
		best = pick(best, n)
	}
	return best, nil
}
