// internal/rules/engine.go
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nettolabs/netto/internal/expr"
	"github.com/nettolabs/netto/internal/types"
)

/*
 * Calculation engine.
 *
 * Run evaluates the compiled rules in declaration order against one
 * scenario. Each rule's condition gates its amount; a false condition
 * or an exactly-zero amount skips the rule entirely, leaving no
 * breakdown entry and no result visible to later rules. Later rules
 * read earlier amounts by rule id through the results environment.
 *
 * Totals: employee-direction amounts accumulate into the employee
 * total (net = gross + employee total); employer and neutral amounts
 * accumulate into the employer total (super gross = gross + employer
 * total). Neutral counting toward employer cost keeps informational
 * entries out of the employee's net pay.
 *
 * Duplicate rule ids are not rejected: the later entry overwrites the
 * earlier one in the breakdown while both amounts accumulate into the
 * totals. Documents with duplicate ids are the author's problem; the
 * permissive behavior is kept so a registry plugin emitting a
 * well-known id can override a built-in entry's presentation.
 *
 * Any evaluation error aborts the run with no partial result. A net
 * pay computed from half a rule set is worse than no answer.
 */

// Entry is one rule's contribution to a calculation.
type Entry struct {
	RuleID    string
	Label     string
	Direction types.Direction
	Amount    float64
}

// Breakdown is an ordered set of entries. It marshals to a JSON object
// keyed by rule id, preserving presentation order (JSON objects are
// unordered per the standard, but every consumer of the original
// service relied on key order, so the marshaler writes keys in slice
// order).
type Breakdown []Entry

// MarshalJSON renders entries as {"<rule id>": {"label": ...,
// "amount": ..., "direction": ...}, ...} in slice order.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.RuleID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(struct {
			Label     string          `json:"label"`
			Amount    float64         `json:"amount"`
			Direction types.Direction `json:"direction"`
		}{e.Label, e.Amount, e.Direction})
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the outcome of one calculation run.
type Result struct {
	Gross      float64   `json:"gross"`
	Net        float64   `json:"net"`
	SuperGross float64   `json:"super_gross"`
	Breakdown  Breakdown `json:"breakdown"`
}

// Engine evaluates an ordered rule set. Immutable after construction
// and safe for concurrent Run calls.
type Engine struct {
	rules []*CompiledRule
}

// NewEngine builds an engine over rules in declaration order. The slice
// is not copied; callers must not mutate it afterwards.
func NewEngine(rules []*CompiledRule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the engine's rule set in declaration order.
func (e *Engine) Rules() []*CompiledRule { return e.rules }

// RequiredFlags returns the sorted union of flag names referenced by
// any rule's condition or amount.
func (e *Engine) RequiredFlags() []string {
	sets := make([][]string, 0, len(e.rules))
	for _, r := range e.rules {
		sets = append(sets, r.FlagRefs())
	}
	return unionSorted(sets...)
}

// Run evaluates the rule set against a scenario.
func (e *Engine) Run(sc *types.Scenario) (*Result, error) {
	results := make(map[string]float64, len(e.rules))
	entries := make(Breakdown, 0, len(e.rules))
	index := make(map[string]int, len(e.rules))

	var employeeTotal, employerTotal float64

	for _, rule := range e.rules {
		cv, err := rule.Condition.Eval(sc, results)
		if err != nil {
			return nil, fmt.Errorf("rule %s: condition: %w", rule.ID, err)
		}
		if !expr.Truth(cv) {
			continue
		}

		av, err := rule.Amount.Eval(sc, results)
		if err != nil {
			return nil, fmt.Errorf("rule %s: amount: %w", rule.ID, err)
		}
		amt, err := expr.Number(av)
		if err != nil {
			return nil, fmt.Errorf("rule %s: amount: %w", rule.ID, err)
		}
		if amt == 0 {
			continue
		}

		if rule.Direction == types.DirectionEmployee {
			employeeTotal += amt
		} else {
			employerTotal += amt
		}

		results[rule.ID] = amt
		entry := Entry{RuleID: rule.ID, Label: rule.Label, Direction: rule.Direction, Amount: amt}
		if at, ok := index[rule.ID]; ok {
			entries[at] = entry
		} else {
			index[rule.ID] = len(entries)
			entries = append(entries, entry)
		}
	}

	sortBreakdown(entries)

	return &Result{
		Gross:      sc.Gross,
		Net:        sc.Gross + employeeTotal,
		SuperGross: sc.Gross + employerTotal,
		Breakdown:  entries,
	}, nil
}

// sortBreakdown orders entries for presentation: employee-direction
// entries first, then by descending absolute amount within each group.
// Stable so equal-magnitude entries keep declaration order.
func sortBreakdown(entries Breakdown) {
	group := func(e Entry) int {
		if e.Direction == types.DirectionEmployee {
			return 0
		}
		return 1
	}
	abs := func(f float64) float64 {
		if f < 0 {
			return -f
		}
		return f
	}
	sort.SliceStable(entries, func(i, j int) bool {
		gi, gj := group(entries[i]), group(entries[j])
		if gi != gj {
			return gi < gj
		}
		return abs(entries[i].Amount) > abs(entries[j].Amount)
	})
}
