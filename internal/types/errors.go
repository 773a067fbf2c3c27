package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for netto operations.
var (
	// ErrRulesetNotFound indicates no stored ruleset matches the
	// requested country/year.
	ErrRulesetNotFound = errors.New("ruleset not found")
)

// UnknownRuleTypeError indicates a rule declaration carries a type tag
// with no registered compiler. Fatal at document-compile time: the whole
// rule set is rejected rather than silently skipping the declaration.
type UnknownRuleTypeError struct {
	RuleID string // id of the offending declaration, "" if absent
	Tag    string
}

func (e *UnknownRuleTypeError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("unknown rule type %q", e.Tag)
	}
	return fmt.Sprintf("rule %s: unknown rule type %q", e.RuleID, e.Tag)
}

// InvalidDirectionError indicates a rule declaration names a direction
// outside {employee, employer, neutral}. Fatal at rule-compile time.
type InvalidDirectionError struct {
	RuleID    string
	Direction string
}

func (e *InvalidDirectionError) Error() string {
	return fmt.Sprintf("rule %s: invalid direction %q", e.RuleID, e.Direction)
}

// MissingFieldError indicates a rule declaration omits a field its rule
// type requires (e.g. every declaration needs "id", a percentage rule
// needs "rate"). Fatal at rule-compile time.
type MissingFieldError struct {
	RuleID string // "" when the missing field is the id itself
	Type   string
	Field  string
}

func (e *MissingFieldError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("%s rule declaration: missing required field %q", e.Type, e.Field)
	}
	return fmt.Sprintf("rule %s (%s): missing required field %q", e.RuleID, e.Type, e.Field)
}
