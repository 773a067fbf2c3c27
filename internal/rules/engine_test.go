// internal/rules/engine_test.go
package rules

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nettolabs/netto/internal/types"
)

func compileAll(t *testing.T, specs []types.RuleSpec, constants map[string]any) []*CompiledRule {
	t.Helper()
	reg := DefaultRegistry()
	compiled := make([]*CompiledRule, 0, len(specs))
	for _, spec := range specs {
		rule, err := reg.Compile(spec, constants)
		if err != nil {
			t.Fatalf("Compile(%v) error = %v, want nil", spec, err)
		}
		compiled = append(compiled, rule)
	}
	return compiled
}

func taxAndCredit(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(compileAll(t, []types.RuleSpec{
		{
			"id":        "tax",
			"type":      "percentage",
			"direction": "employee",
			"rate":      0.15,
			"base":      "gross",
		},
		{
			"id":        "credit",
			"type":      "credit",
			"direction": "employee",
			"amount":    100,
			"condition": "gross < 2000",
		},
	}, nil))
}

func TestEngineRunTaxAndCredit(t *testing.T) {
	eng := taxAndCredit(t)

	res, err := eng.Run(&types.Scenario{Gross: 1000})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if res.Net != 950 {
		t.Errorf("Net = %v, want 950", res.Net)
	}
	if res.SuperGross != 1000 {
		t.Errorf("SuperGross = %v, want 1000 (no employer-side rules)", res.SuperGross)
	}
	if len(res.Breakdown) != 2 {
		t.Fatalf("Breakdown has %d entries, want 2", len(res.Breakdown))
	}
	// Both employee-direction: larger |amount| first.
	if res.Breakdown[0].RuleID != "tax" || res.Breakdown[0].Amount != -150 {
		t.Errorf("Breakdown[0] = %+v, want tax/-150", res.Breakdown[0])
	}
	if res.Breakdown[1].RuleID != "credit" || res.Breakdown[1].Amount != 100 {
		t.Errorf("Breakdown[1] = %+v, want credit/+100", res.Breakdown[1])
	}
}

func TestEngineRunConditionSkips(t *testing.T) {
	eng := taxAndCredit(t)

	res, err := eng.Run(&types.Scenario{Gross: 3000})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if res.Net != 2550 {
		t.Errorf("Net = %v, want 2550", res.Net)
	}
	if res.SuperGross != 3000 {
		t.Errorf("SuperGross = %v, want 3000", res.SuperGross)
	}
	if len(res.Breakdown) != 1 || res.Breakdown[0].RuleID != "tax" {
		t.Errorf("Breakdown = %+v, want only the tax entry", res.Breakdown)
	}
}

func TestEngineRunChainedResults(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "base_levy", "type": "credit", "amount": "gross * 0.1"},
		{"id": "surcharge", "type": "credit", "amount": "base_levy * 0.5"},
	}, nil))

	res, err := eng.Run(&types.Scenario{Gross: 2000})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(res.Breakdown) != 2 {
		t.Fatalf("Breakdown has %d entries, want 2", len(res.Breakdown))
	}
	// Both neutral: ordering by |amount| descending.
	if res.Breakdown[0].Amount != 200 || res.Breakdown[1].Amount != 100 {
		t.Errorf("Breakdown amounts = %v/%v, want 200/100", res.Breakdown[0].Amount, res.Breakdown[1].Amount)
	}
	if res.SuperGross != 2300 {
		t.Errorf("SuperGross = %v, want 2300", res.SuperGross)
	}
	if res.Net != 2000 {
		t.Errorf("Net = %v, want unchanged gross (neutral rules)", res.Net)
	}
}

func TestEngineSkippedRuleInvisibleToLaterRules(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "gated", "type": "credit", "amount": 100, "condition": "false"},
		{"id": "reader", "type": "credit", "amount": "gated * 2"},
	}, nil))

	_, err := eng.Run(&types.Scenario{Gross: 1000})
	if err == nil {
		t.Fatal("Run() error = nil, want unknown identifier for skipped rule")
	}
	if !strings.Contains(err.Error(), "gated") {
		t.Errorf("Run() error = %v, want mention of the unresolved rule id", err)
	}
}

func TestEngineZeroAmountSkipped(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "nothing", "type": "credit", "amount": "gross * 0"},
		{"id": "tax", "type": "percentage", "rate": 0.1},
	}, nil))

	res, err := eng.Run(&types.Scenario{Gross: 1000})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(res.Breakdown) != 1 || res.Breakdown[0].RuleID != "tax" {
		t.Errorf("Breakdown = %+v, want zero-amount rule dropped", res.Breakdown)
	}
}

func TestEngineEvalErrorAbortsRun(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "ok", "type": "credit", "amount": 10},
		{"id": "boom", "type": "credit", "amount": "gross / 0"},
	}, nil))

	res, err := eng.Run(&types.Scenario{Gross: 1000})
	if err == nil {
		t.Fatal("Run() error = nil, want division failure")
	}
	if res != nil {
		t.Errorf("Run() result = %+v, want nil on error (no partial breakdown)", res)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Run() error = %v, want offending rule id in message", err)
	}
}

func TestEngineNeutralCountsAsEmployerCost(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "info", "type": "credit", "amount": 250, "direction": "neutral"},
		{"id": "pension", "type": "percentage", "rate": 0.1, "direction": "employer"},
	}, nil))

	res, err := eng.Run(&types.Scenario{Gross: 1000})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if res.Net != 1000 {
		t.Errorf("Net = %v, want 1000 (nothing employee-directed)", res.Net)
	}
	if res.SuperGross != 1350 {
		t.Errorf("SuperGross = %v, want 1350 (neutral + employer)", res.SuperGross)
	}
}

func TestEngineBreakdownOrdering(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "emp_small", "type": "credit", "amount": 10, "direction": "employer"},
		{"id": "ee_small", "type": "credit", "amount": 5, "direction": "employee"},
		{"id": "emp_big", "type": "credit", "amount": 500, "direction": "employer"},
		{"id": "ee_big", "type": "percentage", "rate": 0.2},
	}, nil))

	res, err := eng.Run(&types.Scenario{Gross: 1000})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	var ids []string
	for _, e := range res.Breakdown {
		ids = append(ids, e.RuleID)
	}
	want := []string{"ee_big", "ee_small", "emp_big", "emp_small"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Breakdown order = %v, want %v", ids, want)
		}
	}
}

func TestEngineDuplicateIDOverwritesEntry(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "dup", "type": "credit", "amount": 100, "label": "first"},
		{"id": "dup", "type": "credit", "amount": 50, "label": "second"},
	}, nil))

	res, err := eng.Run(&types.Scenario{Gross: 0})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(res.Breakdown) != 1 {
		t.Fatalf("Breakdown has %d entries, want 1 (later id overwrites)", len(res.Breakdown))
	}
	if res.Breakdown[0].Label != "second" || res.Breakdown[0].Amount != 50 {
		t.Errorf("Breakdown[0] = %+v, want the later declaration", res.Breakdown[0])
	}
	// Totals accumulate both occurrences.
	if res.SuperGross != 150 {
		t.Errorf("SuperGross = %v, want 150 (both amounts counted)", res.SuperGross)
	}
}

func TestEngineRequiredFlags(t *testing.T) {
	eng := NewEngine(compileAll(t, []types.RuleSpec{
		{"id": "a", "type": "credit", "amount": "flags.months_on_job", "condition": "flags.student"},
		{"id": "b", "type": "percentage", "rate": 0.1, "condition": "flags.under25 or flags.mother_under30"},
		{"id": "c", "type": "credit", "amount": "flags.children * 10"},
	}, nil))

	got := eng.RequiredFlags()
	want := []string{"children", "months_on_job", "mother_under30", "student", "under25"}
	if len(got) != len(want) {
		t.Fatalf("RequiredFlags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RequiredFlags() = %v, want %v", got, want)
		}
	}
}

func TestEngineTotalsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	reg := DefaultRegistry()
	specs := []types.RuleSpec{
		{"id": "tax", "type": "percentage", "rate": 0.15},
		{"id": "credit", "type": "credit", "direction": "employee", "amount": 100, "condition": "gross < 2000"},
		{"id": "pension", "type": "percentage", "rate": 0.1, "direction": "employer"},
	}
	compiled := make([]*CompiledRule, 0, len(specs))
	for _, spec := range specs {
		rule, err := reg.Compile(spec, nil)
		if err != nil {
			t.Fatalf("Compile() error = %v, want nil", err)
		}
		compiled = append(compiled, rule)
	}
	eng := NewEngine(compiled)

	properties.Property("totals are consistent with the breakdown", prop.ForAll(
		func(gross int) bool {
			res, err := eng.Run(&types.Scenario{Gross: float64(gross)})
			if err != nil {
				return false
			}
			var ee, er float64
			for _, e := range res.Breakdown {
				if e.Direction == types.DirectionEmployee {
					ee += e.Amount
				} else {
					er += e.Amount
				}
			}
			return res.Net == res.Gross+ee && res.SuperGross == res.Gross+er
		},
		gen.IntRange(1, 1_000_000),
	))

	properties.Property("employee entries precede employer entries", prop.ForAll(
		func(gross int) bool {
			res, err := eng.Run(&types.Scenario{Gross: float64(gross)})
			if err != nil {
				return false
			}
			seenOther := false
			for _, e := range res.Breakdown {
				if e.Direction != types.DirectionEmployee {
					seenOther = true
				} else if seenOther {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 1_000_000),
	))

	properties.TestingRun(t)
}
