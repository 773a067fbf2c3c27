// internal/rules/registry.go
package rules

import (
	"github.com/nettolabs/netto/internal/expr"
	"github.com/nettolabs/netto/internal/types"
)

/*
 * Rule type registry and the built-in rule compilers.
 *
 * The registry maps a declaration's type tag to the Compiler that turns
 * the raw declaration into a CompiledRule. It is a plain value owned by
 * the caller, not package-level state: two servers in one process can
 * register different rule kinds without interfering, and tests build
 * throwaway registries freely.
 *
 * Built-in kinds:
 *   percentage: amount = sign(direction) * rate * base. rate is
 *     mandatory; base defaults to "gross"; direction defaults to
 *     employee, and employee-direction amounts are negated (deduction).
 *   credit: amount is the mandatory "amount" formula, used as-is
 *     (negative amounts model signed adjustments). direction defaults
 *     to neutral.
 *
 * Shared declaration handling: "id" is mandatory for every kind,
 * "label" defaults to the id, "condition" defaults to a formula that is
 * always true, and an out-of-range "direction" is rejected. An unknown
 * type tag fails the whole document; a partial rule list would silently
 * change net pay.
 */

// Compiler turns one raw declaration into a CompiledRule. The constants
// table comes from the enclosing document and is captured by the
// compiled formulas.
type Compiler func(spec types.RuleSpec, constants map[string]any) (*CompiledRule, error)

// Registry maps rule type tags to compilers.
type Registry struct {
	compilers map[string]Compiler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{compilers: map[string]Compiler{}}
}

// DefaultRegistry returns a registry with the built-in percentage and
// credit rule kinds registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("percentage", compilePercentage)
	r.Register("credit", compileCredit)
	return r
}

// Register binds a type tag to a compiler, replacing any previous
// binding for the tag.
func (r *Registry) Register(tag string, c Compiler) {
	r.compilers[tag] = c
}

// Compile dispatches the declaration to the compiler registered for its
// type tag. An unregistered tag is an *types.UnknownRuleTypeError.
func (r *Registry) Compile(spec types.RuleSpec, constants map[string]any) (*CompiledRule, error) {
	tag := spec.Type()
	c, ok := r.compilers[tag]
	if !ok {
		return nil, &types.UnknownRuleTypeError{RuleID: spec.ID(), Tag: tag}
	}
	return c(spec, constants)
}

// compileCommon extracts and validates the fields every rule kind
// shares, leaving only the kind-specific amount to the caller.
func compileCommon(spec types.RuleSpec, constants map[string]any, defaultDir types.Direction) (*CompiledRule, error) {
	id := spec.ID()
	if id == "" {
		return nil, &types.MissingFieldError{Type: spec.Type(), Field: "id"}
	}

	label, ok := spec.Field("label")
	if !ok {
		label = id
	}

	dir := defaultDir
	if raw, ok := spec["direction"]; ok {
		s, _ := raw.(string)
		dir = types.Direction(s)
		if !dir.Valid() {
			return nil, &types.InvalidDirectionError{RuleID: id, Direction: s}
		}
	}

	condition := any("true")
	if raw, ok := spec["condition"]; ok {
		condition = raw
	}
	cond, err := expr.Compile(condition, constants)
	if err != nil {
		return nil, err
	}

	return &CompiledRule{
		ID:        id,
		Label:     label,
		Direction: dir,
		Condition: cond,
	}, nil
}

func compilePercentage(spec types.RuleSpec, constants map[string]any) (*CompiledRule, error) {
	rule, err := compileCommon(spec, constants, types.DirectionEmployee)
	if err != nil {
		return nil, err
	}

	rawRate, ok := spec["rate"]
	if !ok {
		return nil, &types.MissingFieldError{RuleID: rule.ID, Type: "percentage", Field: "rate"}
	}
	rate, err := expr.Compile(rawRate, constants)
	if err != nil {
		return nil, err
	}

	rawBase, ok := spec["base"]
	if !ok {
		rawBase = "gross"
	}
	base, err := expr.Compile(rawBase, constants)
	if err != nil {
		return nil, err
	}

	sign := 1.0
	if rule.Direction == types.DirectionEmployee {
		sign = -1.0
	}
	rule.Amount = percentAmount{sign: sign, rate: rate, base: base}
	return rule, nil
}

func compileCredit(spec types.RuleSpec, constants map[string]any) (*CompiledRule, error) {
	rule, err := compileCommon(spec, constants, types.DirectionNeutral)
	if err != nil {
		return nil, err
	}

	rawAmount, ok := spec["amount"]
	if !ok {
		return nil, &types.MissingFieldError{RuleID: rule.ID, Type: "credit", Field: "amount"}
	}
	amount, err := expr.Compile(rawAmount, constants)
	if err != nil {
		return nil, err
	}

	rule.Amount = amount
	return rule, nil
}
