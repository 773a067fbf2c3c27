// internal/expr/token.go
package expr

import (
	"strconv"
	"strings"
)

/*
 * Lexer for the formula grammar.
 *
 * Token classes: numbers, quoted strings, identifiers/keywords, and a
 * fixed operator set. Multi-character operators (** // == != <= >=) are
 * matched before their single-character prefixes.
 *
 * Characters with no place in the grammar surface here rather than in
 * the parser: brackets and braces become DisallowedError (they
 * unambiguously announce list/dict/subscript syntax), anything else is
 * a ParseError.
 */

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  float64 // valid when kind == tokNumber
	str  string  // decoded value when kind == tokString
}

// twoCharOps are matched greedily before single-character operators.
var twoCharOps = []string{"**", "//", "==", "!=", "<=", ">="}

const singleCharOps = "+-*/%<>(),."

// lex tokenizes src into a flat slice terminated by a tokEOF token.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			tok, n, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = n
		case c == '\'' || c == '"':
			tok, n, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = n
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '[' || c == ']':
			return nil, &DisallowedError{Src: src, Construct: "list or subscript syntax"}
		case c == '{' || c == '}':
			return nil, &DisallowedError{Src: src, Construct: "dict or set literal"}
		default:
			if op, ok := matchOp(src, i); ok {
				toks = append(toks, token{kind: tokOp, text: op, pos: i})
				i += len(op)
				break
			}
			return nil, &ParseError{Src: src, Pos: i, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func matchOp(src string, i int) (string, bool) {
	for _, op := range twoCharOps {
		if strings.HasPrefix(src[i:], op) {
			return op, true
		}
	}
	if strings.IndexByte(singleCharOps, src[i]) >= 0 {
		return src[i : i+1], true
	}
	return "", false
}

// lexNumber scans a decimal literal with optional fraction and exponent.
func lexNumber(src string, start int) (token, int, error) {
	i := start
	for i < len(src) && src[i] >= '0' && src[i] <= '9' {
		i++
	}
	if i < len(src) && src[i] == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
		i++
		for i < len(src) && src[i] >= '0' && src[i] <= '9' {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && src[j] >= '0' && src[j] <= '9' {
			i = j
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
		}
	}
	text := src[start:i]
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, 0, &ParseError{Src: src, Pos: start, Msg: "malformed number " + strconv.Quote(text)}
	}
	return token{kind: tokNumber, text: text, pos: start, num: num}, i, nil
}

// lexString scans a single- or double-quoted string with backslash
// escapes for the quote characters, backslash, and \n \t \r.
func lexString(src string, start int) (token, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return token{kind: tokString, text: src[start : i+1], pos: start, str: b.String()}, i + 1, nil
		case c == '\\':
			if i+1 >= len(src) {
				return token{}, 0, &ParseError{Src: src, Pos: start, Msg: "unterminated string literal"}
			}
			switch src[i+1] {
			case '\\', '\'', '"':
				b.WriteByte(src[i+1])
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				return token{}, 0, &ParseError{Src: src, Pos: i, Msg: "unsupported escape sequence"}
			}
			i += 2
		case c == '\n':
			return token{}, 0, &ParseError{Src: src, Pos: start, Msg: "unterminated string literal"}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return token{}, 0, &ParseError{Src: src, Pos: start, Msg: "unterminated string literal"}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
