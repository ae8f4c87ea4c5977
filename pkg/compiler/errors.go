package compiler

import "fmt"

// The pipeline surfaces one error kind per stage. All three are fail-fast:
// the first error aborts the stage and the remaining stages of that
// compilation. There is no accumulation, recovery, or retry.

// LexError reports a malformed lexical construct with its source position.
type LexError struct {
	Message string
	Line    int
	Column  int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// ParseError reports an unexpected token against an expected grammar
// production. It carries the offending token, whose Line/Column locate the
// failure.
type ParseError struct {
	Message string
	Tok     Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Tok.Line, e.Tok.Column, e.Message)
}

// CodegenError reports a construct the lowering pass cannot express in the
// backend language. Lowering has no position information; the message alone
// identifies the construct.
type CodegenError struct {
	Message string
}

func (e *CodegenError) Error() string {
	return "codegen error: " + e.Message
}
