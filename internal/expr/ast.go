// internal/expr/ast.go
package expr

/*
 * AST for compiled formulas.
 *
 * Nodes are immutable after parsing; a Program shares its tree across
 * concurrent evaluations. Comparison chains keep Python semantics
 * (a < b < c means (a < b) and (b < c) with b evaluated once), so they
 * get a dedicated node instead of desugaring to nested binary nodes.
 */

type node interface{ isNode() }

// literalNode holds float64, string, bool, or nil.
type literalNode struct{ value any }

type identNode struct {
	name string
	pos  int
}

// attrNode is dotted access, e.g. flags.children.
type attrNode struct {
	x    node
	attr string
}

// callNode is a call to a whitelisted function by bare name.
type callNode struct {
	fn   string
	args []node
}

// unaryNode op is "+", "-", or "not".
type unaryNode struct {
	op string
	x  node
}

// binaryNode op is one of + - * / // % ** and or.
type binaryNode struct {
	op   string
	x, y node
}

// compareNode is a chain: first ops[0] operands[0] ops[1] operands[1] ...
type compareNode struct {
	first    node
	ops      []string
	operands []node
}

func (*literalNode) isNode() {}
func (*identNode) isNode()   {}
func (*attrNode) isNode()    {}
func (*callNode) isNode()    {}
func (*unaryNode) isNode()   {}
func (*binaryNode) isNode()  {}
func (*compareNode) isNode() {}
