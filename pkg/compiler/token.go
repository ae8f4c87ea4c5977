package compiler

import "fmt"

// TokenKind identifies the category of a lexed token.
type TokenKind int

const (
	EOF TokenKind = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	INT_LIT    // decimal integer literal
	FLOAT_LIT  // decimal float literal (dot or exponent form)
	STRING_LIT // cooked string literal "..."
	RAW_STRING // raw string literal r"..."
	FSTRING    // interpolated string literal f"..." (carries Parts)
	BOOL_LIT   // true / false

	// Keywords
	FUNCTION // "function"
	LET      // "let"
	IF       // "if"
	ELSE     // "else"
	WHILE    // "while"
	FOR      // "for"
	IN       // "in"
	RETURN   // "return"
	EXPORT   // "export"
	IMPORT   // "import"
	FROM     // "from"
	STACK    // "stack"   (reserved)
	HEAP     // "heap"    (reserved)
	DEFER    // "defer"
	WATCH    // "watch"   (reserved)
	ASYNC    // "async"   (reserved)
	SHARED   // "shared"  (reserved)
	MATCH    // "match"
	SWITCH   // "switch"
	CASE     // "case"
	DEFAULT  // "default"
	BREAK    // "break"
	CONTINUE // "continue"
	AND      // "and"
	OR       // "or"
	NOT      // "not"
	NOTHING  // "nothing"
	UNKNOWN  // "unknown"
	REQUIRES // "requires" (reserved)
	ENSURES  // "ensures"  (reserved)
	WHEN     // "when"     (reserved)

	// Arithmetic operators
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %

	// Assignment  (order matters: ASSIGN before the compound forms)
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=

	// Comparison
	EQ_COERCE  // ?=   equality with coercion
	EQ_STRICT  // ??=  strict equality
	NEQ_COERCE // !=   inequality with coercion
	NEQ_STRICT // !!=  strict inequality
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=

	// Bitwise
	AMP   // &
	PIPE  // |
	CARET // ^
	TILDE // ~
	SHL   // <<
	SHR   // >>

	// Paired delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COLON     // :
	COMMA     // ,
	DOT       // .
	DOTDOT    // ..
	ARROW     // =>
)

// tokenNames is indexed by TokenKind.
var tokenNames = [...]string{
	EOF:            "EOF",
	IDENTIFIER:     "IDENTIFIER",
	INT_LIT:        "INT_LIT",
	FLOAT_LIT:      "FLOAT_LIT",
	STRING_LIT:     "STRING_LIT",
	RAW_STRING:     "RAW_STRING",
	FSTRING:        "FSTRING",
	BOOL_LIT:       "BOOL_LIT",
	FUNCTION:       "FUNCTION",
	LET:            "LET",
	IF:             "IF",
	ELSE:           "ELSE",
	WHILE:          "WHILE",
	FOR:            "FOR",
	IN:             "IN",
	RETURN:         "RETURN",
	EXPORT:         "EXPORT",
	IMPORT:         "IMPORT",
	FROM:           "FROM",
	STACK:          "STACK",
	HEAP:           "HEAP",
	DEFER:          "DEFER",
	WATCH:          "WATCH",
	ASYNC:          "ASYNC",
	SHARED:         "SHARED",
	MATCH:          "MATCH",
	SWITCH:         "SWITCH",
	CASE:           "CASE",
	DEFAULT:        "DEFAULT",
	BREAK:          "BREAK",
	CONTINUE:       "CONTINUE",
	AND:            "AND",
	OR:             "OR",
	NOT:            "NOT",
	NOTHING:        "NOTHING",
	UNKNOWN:        "UNKNOWN",
	REQUIRES:       "REQUIRES",
	ENSURES:        "ENSURES",
	WHEN:           "WHEN",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	PERCENT:        "PERCENT",
	ASSIGN:         "ASSIGN",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	EQ_COERCE:      "EQ_COERCE",
	EQ_STRICT:      "EQ_STRICT",
	NEQ_COERCE:     "NEQ_COERCE",
	NEQ_STRICT:     "NEQ_STRICT",
	LESS:           "LESS",
	GREATER:        "GREATER",
	LESS_EQ:        "LESS_EQ",
	GREATER_EQ:     "GREATER_EQ",
	AMP:            "AMP",
	PIPE:           "PIPE",
	CARET:          "CARET",
	TILDE:          "TILDE",
	SHL:            "SHL",
	SHR:            "SHR",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LBRACKET:       "LBRACKET",
	RBRACKET:       "RBRACKET",
	SEMICOLON:      "SEMICOLON",
	COLON:          "COLON",
	COMMA:          "COMMA",
	DOT:            "DOT",
	DOTDOT:         "DOTDOT",
	ARROW:          "ARROW",
}

func (tk TokenKind) String() string {
	if int(tk) >= 0 && int(tk) < len(tokenNames) {
		return tokenNames[tk]
	}
	return fmt.Sprintf("TokenKind(%d)", int(tk))
}

// FStringPart is one segment of an interpolated string. The lexer splits
// f-string content into literal text and raw, unparsed expression source;
// turning the source into an expression tree is the parser's job.
type FStringPart struct {
	IsExpr bool
	Text   string // literal text, or the raw expression source when IsExpr
}

// Token is a single lexical unit produced by the Lexer.
// Tokens are immutable once produced.
type Token struct {
	Kind   TokenKind
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Column int    // 1-based source column of the first rune

	Str   string        // decoded value for STRING_LIT / RAW_STRING
	Parts []FStringPart // segments for FSTRING
}

func (t Token) String() string {
	return fmt.Sprintf("%-14s %-16q  %d:%d", t.Kind, t.Lexeme, t.Line, t.Column)
}
