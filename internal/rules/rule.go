// internal/rules/rule.go
package rules

import (
	"sort"

	"github.com/nettolabs/netto/internal/expr"
	"github.com/nettolabs/netto/internal/types"
)

/*
 * Compiled rule representation.
 *
 * A CompiledRule is fully pre-processed at document load time: its
 * condition and amount are compiled formulas, its direction is
 * validated, its label is resolved. Nothing is parsed or validated
 * during a calculation run.
 *
 * Amounts are modeled as a Formula interface rather than raw programs
 * because rule kinds differ in how the amount is derived: a credit rule
 * evaluates one program, a percentage rule combines a rate program and
 * a base program with a direction-dependent sign. New rule kinds plug
 * in their own Formula without touching the engine.
 */

// Formula produces a value for a scenario given the amounts of
// previously evaluated rules. Implementations must be safe for
// concurrent use.
type Formula interface {
	Eval(sc *types.Scenario, results map[string]float64) (any, error)
	// FlagRefs returns the sorted flag names the formula reads.
	FlagRefs() []string
}

// CompiledRule is ready for evaluation by the Engine.
type CompiledRule struct {
	ID        string
	Label     string
	Direction types.Direction
	Condition Formula
	Amount    Formula
}

// FlagRefs returns the union of the condition's and amount's flag
// references, deduplicated and sorted.
func (r *CompiledRule) FlagRefs() []string {
	return unionSorted(r.Condition.FlagRefs(), r.Amount.FlagRefs())
}

// percentAmount derives a percentage rule's amount:
// sign * rate * base, where sign is -1 for employee-direction rules
// (a deduction from net pay) and +1 otherwise.
type percentAmount struct {
	sign float64
	rate *expr.Program
	base *expr.Program
}

func (a percentAmount) Eval(sc *types.Scenario, results map[string]float64) (any, error) {
	rv, err := a.rate.Eval(sc, results)
	if err != nil {
		return nil, err
	}
	rate, err := expr.Number(rv)
	if err != nil {
		return nil, err
	}
	bv, err := a.base.Eval(sc, results)
	if err != nil {
		return nil, err
	}
	base, err := expr.Number(bv)
	if err != nil {
		return nil, err
	}
	return a.sign * rate * base, nil
}

func (a percentAmount) FlagRefs() []string {
	return unionSorted(a.rate.FlagRefs(), a.base.FlagRefs())
}

func unionSorted(sets ...[]string) []string {
	seen := map[string]bool{}
	for _, set := range sets {
		for _, name := range set {
			seen[name] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
