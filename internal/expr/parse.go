// internal/expr/parse.go
package expr

import (
	"fmt"
	"strconv"
)

/*
 * Recursive-descent parser for the formula grammar.
 *
 * Precedence, loosest to tightest (Python expression precedence):
 *   or < and < not < comparison < + - < * / // % < unary + - < ** < postfix
 *
 * The ** operator is right-associative and binds tighter than unary
 * minus on its left but looser on its right: -2**2 is -(2**2), and
 * 2**-3 parses. Comparisons chain: a < b < c is one compareNode.
 *
 * Whitelist enforcement happens during parsing. Reserved Python
 * keywords, calls on anything but a bare name, and underscore-prefixed
 * attribute access are rejected with DisallowedError; bracket and brace
 * syntax is rejected by the lexer. Everything else malformed is a
 * ParseError.
 *
 * Resource limits: expression length and nesting depth are capped so a
 * hostile document cannot exhaust the stack or memory during parsing.
 */

const (
	maxExprLength = 4096
	maxNestDepth  = 64
)

// reservedWords are recognized as identifiers by the lexer but have no
// place in the whitelisted grammar. Rejecting them by name produces a
// clearer error than a generic parse failure.
var reservedWords = map[string]bool{
	"if": true, "else": true, "elif": true, "lambda": true,
	"for": true, "while": true, "in": true, "is": true,
	"def": true, "class": true, "import": true, "from": true,
	"return": true, "yield": true, "with": true, "as": true,
	"try": true, "except": true, "finally": true, "raise": true,
	"assert": true, "del": true, "global": true, "nonlocal": true,
	"pass": true, "break": true, "continue": true,
	"async": true, "await": true,
}

type parser struct {
	src   string
	toks  []token
	i     int
	depth int
}

func parse(src string) (node, error) {
	if len(src) > maxExprLength {
		return nil, &ParseError{Src: src[:64] + "...", Pos: 0, Msg: "expression exceeds maximum length"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return n, nil
}

// unexpected classifies a token that has no place at the current parse
// position: reserved keywords in operator position (x in y, 1 if y)
// are whitelist rejections, anything else is a plain syntax error.
func (p *parser) unexpected(t token) error {
	if t.kind == tokIdent && reservedWords[t.text] {
		return &DisallowedError{Src: p.src, Construct: "reserved keyword " + strconv.Quote(t.text)}
	}
	return p.errorf(t.pos, "unexpected %s", describe(t))
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) acceptOp(text string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == text {
		p.i++
		return true
	}
	return false
}

func (p *parser) acceptKeyword(name string) bool {
	if t := p.peek(); t.kind == tokIdent && t.text == name {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectOp(text string) error {
	if p.acceptOp(text) {
		return nil
	}
	t := p.peek()
	if t.kind == tokIdent && reservedWords[t.text] {
		return p.unexpected(t)
	}
	return p.errorf(t.pos, "expected %q, found %s", text, describe(t))
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return &ParseError{Src: p.src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxNestDepth {
		return &ParseError{Src: p.src, Pos: p.peek().pos, Msg: "expression too deeply nested"}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number " + t.text
	case tokString:
		return "string " + t.text
	case tokIdent:
		return strconv.Quote(t.text)
	default:
		return strconv.Quote(t.text)
	}
}

func (p *parser) parseOr() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("or") {
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = &binaryNode{op: "or", x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseAnd() (node, error) {
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		y, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		x = &binaryNode{op: "and", x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseNot() (node, error) {
	if p.acceptKeyword("not") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "not", x: x}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (p *parser) parseComparison() (node, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var ops []string
	var operands []node
	for {
		t := p.peek()
		if t.kind != tokOp || !comparisonOps[t.text] {
			break
		}
		p.next()
		y, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		ops = append(ops, t.text)
		operands = append(operands, y)
	}
	if len(ops) == 0 {
		return x, nil
	}
	return &compareNode{first: x, ops: ops, operands: operands}, nil
}

func (p *parser) parseAdditive() (node, error) {
	x, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("+"):
			op = "+"
		case p.acceptOp("-"):
			op = "-"
		default:
			return x, nil
		}
		y, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		x = &binaryNode{op: op, x: x, y: y}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("*"):
			op = "*"
		case p.acceptOp("//"):
			op = "//"
		case p.acceptOp("/"):
			op = "/"
		case p.acceptOp("%"):
			op = "%"
		default:
			return x, nil
		}
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &binaryNode{op: op, x: x, y: y}
	}
}

func (p *parser) parseUnary() (node, error) {
	var op string
	switch {
	case p.acceptOp("-"):
		op = "-"
	case p.acceptOp("+"):
		op = "+"
	default:
		return p.parsePower()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &unaryNode{op: op, x: x}, nil
}

func (p *parser) parsePower() (node, error) {
	x, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.acceptOp("**") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		// Right operand at unary level: 2**-3 parses, and the chain
		// 2**3**2 associates to the right.
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: "**", x: x, y: y}, nil
	}
	return x, nil
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("."):
			t := p.peek()
			if t.kind != tokIdent {
				return nil, p.errorf(t.pos, "expected attribute name, found %s", describe(t))
			}
			p.next()
			if t.text[0] == '_' {
				return nil, &DisallowedError{Src: p.src, Construct: "underscore-prefixed attribute " + strconv.Quote(t.text)}
			}
			x = &attrNode{x: x, attr: t.text}
		case p.peek().kind == tokOp && p.peek().text == "(":
			id, ok := x.(*identNode)
			if !ok {
				return nil, &DisallowedError{Src: p.src, Construct: "call of non-name expression"}
			}
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &callNode{fn: id.name, args: args}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseArgs() ([]node, error) {
	var args []node
	if p.acceptOp(")") {
		return args, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.acceptOp(",") {
			continue
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return &literalNode{value: t.num}, nil
	case tokString:
		p.next()
		return &literalNode{value: t.str}, nil
	case tokIdent:
		p.next()
		if reservedWords[t.text] {
			return nil, &DisallowedError{Src: p.src, Construct: "reserved keyword " + strconv.Quote(t.text)}
		}
		if t.text == "and" || t.text == "or" || t.text == "not" {
			return nil, p.errorf(t.pos, "unexpected keyword %q", t.text)
		}
		switch t.text {
		case "true", "True":
			return &literalNode{value: true}, nil
		case "false", "False":
			return &literalNode{value: false}, nil
		case "null", "None":
			return &literalNode{value: nil}, nil
		}
		return &identNode{name: t.text, pos: t.pos}, nil
	case tokOp:
		if t.text == "(" {
			p.next()
			x, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, p.errorf(t.pos, "unexpected %s", describe(t))
}
