// internal/expr/errors.go
package expr

import (
	"errors"
	"fmt"
)

/*
 * Error taxonomy for the formula sandbox.
 *
 * Three failure classes, separated so callers can distinguish author
 * mistakes from policy rejections from runtime data problems:
 *   - ParseError: the source is not well-formed in the formula grammar.
 *   - DisallowedError: the source is recognizable syntax but uses a
 *     construct outside the whitelist (subscripts, lambdas, keywords).
 *   - EvalError: compilation succeeded but evaluation failed (unknown
 *     name, type mismatch, division by zero).
 *
 * EvalError wraps an underlying cause; unknown-name failures wrap
 * ErrUnknownIdentifier so callers can test with errors.Is.
 */

// ErrUnknownIdentifier is wrapped by EvalError when a formula references
// a name that resolves to nothing at evaluation time.
var ErrUnknownIdentifier = errors.New("unknown identifier")

// ParseError reports malformed formula source.
type ParseError struct {
	Src string
	Pos int // byte offset of the problem
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d in %q: %s", e.Pos, e.Src, e.Msg)
}

// DisallowedError reports a well-formed construct outside the whitelist.
type DisallowedError struct {
	Src       string
	Construct string // human-readable construct name, e.g. "subscript"
}

func (e *DisallowedError) Error() string {
	return fmt.Sprintf("disallowed construct in %q: %s", e.Src, e.Construct)
}

// EvalError reports a runtime failure while evaluating a compiled formula.
type EvalError struct {
	Src string
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Src, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }
