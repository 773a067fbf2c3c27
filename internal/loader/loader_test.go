// internal/loader/loader_test.go
package loader

import (
	"errors"
	"strings"
	"testing"

	"github.com/nettolabs/netto/internal/rules"
	"github.com/nettolabs/netto/internal/types"
)

const sampleDoc = `{
	// Document metadata is passed through untouched.
	"meta": {"country": "cz", "year": 2025},
	"variables": {
		"TAX_RATE": 0.15, /* statutory income tax */
		"MIN_WAGE": 1000
	},
	"rules": [
		{
			"id": "tax",
			"type": "percentage",
			"direction": "employee",
			"rate": "TAX_RATE",
			"base": "gross"
		},
		// {"id": "disabled", "type": "credit", "amount": 1},
		{
			"id": "credit",
			"type": "credit",
			"direction": "employee",
			"amount": 100,
			"condition": "gross < MIN_WAGE * 2"
		}
	]
}`

func TestLoadStripsComments(t *testing.T) {
	doc, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(doc.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2 (commented-out rule dropped)", len(doc.Rules))
	}
	if doc.Rules[0].ID() != "tax" || doc.Rules[1].ID() != "credit" {
		t.Errorf("rule order = %s, %s, want tax, credit", doc.Rules[0].ID(), doc.Rules[1].ID())
	}
	if doc.Meta["country"] != "cz" {
		t.Errorf("Meta country = %v, want cz", doc.Meta["country"])
	}
	if doc.Variables["TAX_RATE"] != 0.15 {
		t.Errorf("Variables TAX_RATE = %v, want 0.15", doc.Variables["TAX_RATE"])
	}
}

func TestLoadPreservesCommentLikeStrings(t *testing.T) {
	doc, err := Load(strings.NewReader(`{
		"meta": {"source": "https://example.com/rules // not a comment"},
		"rules": []
	}`))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	want := "https://example.com/rules // not a comment"
	if doc.Meta["source"] != want {
		t.Errorf("Meta source = %v, want %q", doc.Meta["source"], want)
	}
}

func TestLoadRejectsNonObjectRule(t *testing.T) {
	_, err := Load(strings.NewReader(`{"rules": ["not an object"]}`))
	if err == nil {
		t.Fatal("Load() error = nil, want decode failure")
	}
}

func TestLoadRejectsMissingType(t *testing.T) {
	_, err := Load(strings.NewReader(`{"rules": [{"id": "x"}]}`))
	if err == nil || !strings.Contains(err.Error(), "type") {
		t.Fatalf("Load() error = %v, want missing-type rejection", err)
	}
}

func TestCompilePreservesOrderAndConstants(t *testing.T) {
	doc, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	compiled, err := Compile(doc, rules.DefaultRegistry())
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if len(compiled) != 2 || compiled[0].ID != "tax" || compiled[1].ID != "credit" {
		t.Fatalf("compiled rules = %+v, want tax then credit", compiled)
	}

	res, err := rules.NewEngine(compiled).Run(&types.Scenario{Gross: 1000})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if res.Net != 950 {
		t.Errorf("Net = %v, want 950 (variables feed the formulas)", res.Net)
	}
}

func TestCompileUnknownTypeFailsDocument(t *testing.T) {
	doc, err := Load(strings.NewReader(`{"rules": [
		{"id": "ok", "type": "credit", "amount": 1},
		{"id": "bad", "type": "windfall"}
	]}`))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	compiled, err := Compile(doc, rules.DefaultRegistry())
	var unknown *types.UnknownRuleTypeError
	if !errors.As(err, &unknown) || unknown.Tag != "windfall" {
		t.Fatalf("Compile() error = %v, want UnknownRuleTypeError{Tag: windfall}", err)
	}
	if compiled != nil {
		t.Errorf("Compile() = %+v, want nil (no partial rule list)", compiled)
	}
}
