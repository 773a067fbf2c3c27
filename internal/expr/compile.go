// internal/expr/compile.go
package expr

import (
	"fmt"
	"sort"
	"strconv"
)

/*
 * Formula compilation.
 *
 * Compile is the package entry point: it accepts any raw declaration
 * value so rule documents can write "rate": 0.15 and
 * "rate": "BASE_RATE * 0.5" interchangeably. Strings are parsed and
 * whitelist-validated once; other JSON scalars become constant
 * programs. All static rejection happens here, before a Program ever
 * reaches the engine.
 *
 * Flag references (free flags.<name> reads) are collected from the AST
 * during compilation and stored on the Program, so required-flag
 * discovery is a slice read at serving time, not a re-parse.
 */

// Program is a compiled, reusable formula. Immutable and safe for
// concurrent evaluation.
type Program struct {
	src       string
	root      node
	constants map[string]any
	flagRefs  []string
}

// Compile builds a Program from a raw declaration value. The constants
// table is captured by reference and consulted during evaluation; it
// must not be mutated afterwards.
func Compile(v any, constants map[string]any) (*Program, error) {
	switch x := v.(type) {
	case string:
		root, err := parse(x)
		if err != nil {
			return nil, err
		}
		return &Program{
			src:       x,
			root:      root,
			constants: constants,
			flagRefs:  collectFlagRefs(root),
		}, nil
	case float64:
		return constProgram(strconv.FormatFloat(x, 'g', -1, 64), x), nil
	case int:
		return constProgram(strconv.Itoa(x), float64(x)), nil
	case int64:
		return constProgram(strconv.FormatInt(x, 10), float64(x)), nil
	case bool:
		return constProgram(strconv.FormatBool(x), x), nil
	case nil:
		return constProgram("null", nil), nil
	default:
		return nil, fmt.Errorf("cannot compile %T value as a formula", v)
	}
}

func constProgram(src string, v any) *Program {
	return &Program{src: src, root: &literalNode{value: v}}
}

// Source returns the original formula text (or the rendered literal for
// constant programs).
func (p *Program) Source() string { return p.src }

// FlagRefs returns the sorted names of flags the formula reads through
// the flags namespace. The returned slice must not be modified.
func (p *Program) FlagRefs() []string { return p.flagRefs }

// collectFlagRefs walks the tree for attribute reads rooted at the
// flags name and returns the first path segment of each, deduplicated
// and sorted. flags.children.count contributes "children".
func collectFlagRefs(root node) []string {
	seen := map[string]bool{}
	var walk func(n node)
	walk = func(n node) {
		switch n := n.(type) {
		case *attrNode:
			if id, ok := n.x.(*identNode); ok && id.name == "flags" {
				seen[n.attr] = true
				return
			}
			walk(n.x)
		case *callNode:
			for _, arg := range n.args {
				walk(arg)
			}
		case *unaryNode:
			walk(n.x)
		case *binaryNode:
			walk(n.x)
			walk(n.y)
		case *compareNode:
			walk(n.first)
			for _, operand := range n.operands {
				walk(operand)
			}
		}
	}
	walk(root)
	if len(seen) == 0 {
		return nil
	}
	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}
