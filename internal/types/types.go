// Package types provides domain models shared across netto components.
//
// Zero-dependency design: types.go and errors.go use only the standard
// library so the core rule engine can be embedded without pulling in
// storage or transport dependencies. ID utilities in ids.go import uuid
// but are isolated for selective inclusion.
package types

// Direction classifies the money flow of a rule's amount.
//
// Employee-direction amounts adjust the employee's net pay (deductions
// are negative, credits positive). Employer and neutral amounts adjust
// the total employer cost. Neutral deliberately counts toward the
// employer side when totals are computed; see rules.Engine.
type Direction string

const (
	DirectionEmployee Direction = "employee"
	DirectionEmployer Direction = "employer"
	DirectionNeutral  Direction = "neutral"
)

// Valid reports whether d is one of the three recognized directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionEmployee, DirectionEmployer, DirectionNeutral:
		return true
	}
	return false
}

// Scenario is the per-run input a rule set is evaluated against:
// a gross salary and a flat mapping of named flag values. Flag values
// may be booleans, numbers, strings, or nested map[string]any namespaces
// (resolved in formulas with dotted access, e.g. flags.children).
// A Scenario is constructed fresh per calculation and never persisted.
type Scenario struct {
	Gross float64
	Flags map[string]any
}

// RuleSpec is a single raw rule declaration from a DSL document.
// Declarations are schemaless beyond the mandatory "id" and "type"
// fields; kind-specific fields (rate, base, amount, condition, label,
// direction) are extracted by the rule compiler for the declared type.
type RuleSpec map[string]any

// Type returns the declaration's rule-type tag, or "" if absent.
func (s RuleSpec) Type() string {
	t, _ := s["type"].(string)
	return t
}

// ID returns the declaration's rule id, or "" if absent.
func (s RuleSpec) ID() string {
	id, _ := s["id"].(string)
	return id
}

// Field returns the named field as a string, with ok reporting whether
// the field exists and is a string.
func (s RuleSpec) Field(name string) (string, bool) {
	v, ok := s[name].(string)
	return v, ok
}

// Document is a decoded DSL configuration document: opaque passthrough
// metadata, a constants table, and an ordered list of rule declarations.
// Declaration order is semantically significant and must be preserved
// end to end; later rules may reference earlier rules' computed amounts.
type Document struct {
	Meta      map[string]any `json:"meta"`
	Variables map[string]any `json:"variables"`
	Rules     []RuleSpec     `json:"rules"`
}
