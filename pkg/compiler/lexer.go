package compiler

import (
	"fmt"
	"strings"
	"unicode"
)

// keywords maps source text to its keyword TokenKind. A match here always
// takes precedence over identifier classification.
var keywords = map[string]TokenKind{
	"function": FUNCTION,
	"let":      LET,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"in":       IN,
	"return":   RETURN,
	"export":   EXPORT,
	"import":   IMPORT,
	"from":     FROM,
	"stack":    STACK,
	"heap":     HEAP,
	"defer":    DEFER,
	"watch":    WATCH,
	"async":    ASYNC,
	"shared":   SHARED,
	"match":    MATCH,
	"switch":   SWITCH,
	"case":     CASE,
	"default":  DEFAULT,
	"break":    BREAK,
	"continue": CONTINUE,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"nothing":  NOTHING,
	"unknown":  UNKNOWN,
	"requires": REQUIRES,
	"ensures":  ENSURES,
	"when":     WHEN,
	"true":     BOOL_LIT,
	"false":    BOOL_LIT,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
	col  int // 1-based column of the rune at pos
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}

// peekAt returns the rune at the given offset from the current position.
func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

// peekString reports whether the upcoming runes spell s exactly.
func (l *Lexer) peekString(s string) bool {
	for i, r := range []rune(s) {
		if l.pos+i >= len(l.src) || l.src[l.pos+i] != r {
			return false
		}
	}
	return true
}

// advance consumes one rune. The column counter resets to 0 on a newline and
// then increments on every consumed rune, so the first rune of a line sits at
// column 1.
func (l *Lexer) advance() rune {
	if l.atEnd() {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 0
	}
	l.col++
	return r
}

func (l *Lexer) errf(line, col int, format string, args ...any) *LexError {
	return &LexError{Message: fmt.Sprintf(format, args...), Line: line, Column: col}
}

// skipLayout discards whitespace and //-line comments. Neither is ever
// emitted as a token.
func (l *Lexer) skipLayout() {
	for !l.atEnd() {
		switch {
		case unicode.IsSpace(l.peek()):
			l.advance()
		case l.peek() == '/' && l.peekAt(1) == '/':
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// scanIdent collects an identifier or keyword token.
func (l *Lexer) scanIdent(line, col int) Token {
	start := l.pos
	for !l.atEnd() {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	kind := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		kind = kw
	}
	return Token{Kind: kind, Lexeme: lexeme, Line: line, Column: col}
}

// scanNumber collects an integer or float literal. A literal is a float when
// it contains a '.' immediately followed by a digit, or an e/E exponent with
// optional sign and at least one digit. An exponent with no digits is a
// lexical error.
func (l *Lexer) scanNumber(line, col int) (Token, error) {
	start := l.pos
	for !l.atEnd() && unicode.IsDigit(l.peek()) {
		l.advance()
	}

	isFloat := l.peek() == '.' && unicode.IsDigit(l.peekAt(1))
	if isFloat {
		l.advance() // .
		for !l.atEnd() && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	if l.peek() == 'e' || l.peek() == 'E' {
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !unicode.IsDigit(l.peek()) {
			return Token{}, l.errf(line, col, "exponent has no digits in numeric literal %q", string(l.src[start:l.pos]))
		}
		for !l.atEnd() && unicode.IsDigit(l.peek()) {
			l.advance()
		}
		isFloat = true
	}

	lexeme := string(l.src[start:l.pos])
	kind := INT_LIT
	if isFloat {
		kind = FLOAT_LIT
	}
	return Token{Kind: kind, Lexeme: lexeme, Line: line, Column: col}, nil
}

// countQuotes returns the length of the run of '"' runes at the current
// position. The run length of the opening delimiter is the run length the
// closing delimiter must match exactly.
func (l *Lexer) countQuotes() int {
	n := 0
	for l.pos+n < len(l.src) && l.src[l.pos+n] == '"' {
		n++
	}
	return n
}

// decodeEscape maps the rune following a backslash to its decoded value.
func decodeEscape(r rune) (rune, bool) {
	switch r {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '"':
		return '"', true
	default:
		return 0, false
	}
}

// scanString collects a string literal in any of its modifier combinations:
// plain, f (interpolated), r (raw), rf/fr (both). The opening delimiter is a
// run of one or more '"' runes and the literal ends only when a run of that
// exact length recurs.
func (l *Lexer) scanString(line, col int) (Token, error) {
	start := l.pos

	isF, isRaw := false, false
	for l.peek() == 'f' || l.peek() == 'r' {
		if l.peek() == 'f' {
			isF = true
		} else {
			isRaw = true
		}
		l.advance()
	}

	quotes := l.countQuotes()
	if quotes == 0 {
		return Token{}, l.errf(line, col, "expected string opening quote")
	}
	for i := 0; i < quotes; i++ {
		l.advance()
	}

	if isF {
		return l.scanFString(start, quotes, isRaw, line, col)
	}

	var val strings.Builder
	for !l.atEnd() {
		if l.countQuotes() == quotes {
			for i := 0; i < quotes; i++ {
				l.advance()
			}
			kind := STRING_LIT
			if isRaw {
				kind = RAW_STRING
			}
			return Token{
				Kind:   kind,
				Lexeme: string(l.src[start:l.pos]),
				Line:   line,
				Column: col,
				Str:    val.String(),
			}, nil
		}

		r := l.advance()
		if r == '\\' && !isRaw {
			dec, ok := decodeEscape(l.peek())
			if !ok {
				return Token{}, l.errf(l.line, l.col, "unknown escape sequence \\%c in string literal", l.peek())
			}
			l.advance()
			val.WriteRune(dec)
			continue
		}
		val.WriteRune(r)
	}

	return Token{}, l.errf(line, col, "unterminated string literal")
}

// scanFString collects an interpolated string. Content is split into
// alternating literal-text parts and raw embedded-expression parts delimited
// by balanced braces; the embedded source is not parsed here.
func (l *Lexer) scanFString(start, quotes int, isRaw bool, line, col int) (Token, error) {
	var parts []FStringPart
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			parts = append(parts, FStringPart{Text: text.String()})
			text.Reset()
		}
	}

	for !l.atEnd() {
		if l.countQuotes() == quotes {
			for i := 0; i < quotes; i++ {
				l.advance()
			}
			flushText()
			return Token{
				Kind:   FSTRING,
				Lexeme: string(l.src[start:l.pos]),
				Line:   line,
				Column: col,
				Parts:  parts,
			}, nil
		}

		r := l.peek()
		if r == '{' {
			flushText()
			l.advance() // {

			var expr strings.Builder
			depth := 1
			for !l.atEnd() {
				c := l.peek()
				if c == '{' {
					depth++
				} else if c == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				expr.WriteRune(l.advance())
			}
			if l.atEnd() {
				return Token{}, l.errf(line, col, "unterminated expression in interpolated string")
			}
			l.advance() // }
			parts = append(parts, FStringPart{IsExpr: true, Text: strings.TrimSpace(expr.String())})
			continue
		}

		l.advance()
		if r == '\\' && !isRaw {
			dec, ok := decodeEscape(l.peek())
			if !ok {
				return Token{}, l.errf(l.line, l.col, "unknown escape sequence \\%c in string literal", l.peek())
			}
			l.advance()
			text.WriteRune(dec)
			continue
		}
		text.WriteRune(r)
	}

	return Token{}, l.errf(line, col, "unterminated string literal")
}

// nextToken skips layout and returns the next token.
func (l *Lexer) nextToken() (Token, error) {
	l.skipLayout()

	line, col := l.line, l.col

	if l.atEnd() {
		return Token{Kind: EOF, Lexeme: "", Line: line, Column: col}, nil
	}

	ch := l.peek()

	// String literals, including prefixed forms. The prefix is only a
	// prefix when a quote follows it; otherwise it is an identifier.
	if ch == '"' ||
		l.peekString(`f"`) || l.peekString(`r"`) ||
		l.peekString(`rf"`) || l.peekString(`fr"`) {
		return l.scanString(line, col)
	}

	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent(line, col), nil
	}

	if unicode.IsDigit(ch) {
		return l.scanNumber(line, col)
	}

	// two() consumes one extra rune and builds a two-rune operator token.
	one := func(kind TokenKind) (Token, error) {
		return Token{Kind: kind, Lexeme: string(ch), Line: line, Column: col}, nil
	}
	two := func(kind TokenKind) (Token, error) {
		second := l.advance()
		return Token{Kind: kind, Lexeme: string([]rune{ch, second}), Line: line, Column: col}, nil
	}

	l.advance()
	switch ch {
	case '(':
		return one(LPAREN)
	case ')':
		return one(RPAREN)
	case '{':
		return one(LBRACE)
	case '}':
		return one(RBRACE)
	case '[':
		return one(LBRACKET)
	case ']':
		return one(RBRACKET)
	case ';':
		return one(SEMICOLON)
	case ':':
		return one(COLON)
	case ',':
		return one(COMMA)
	case '.':
		if l.peek() == '.' {
			return two(DOTDOT)
		}
		return one(DOT)
	case '+':
		if l.peek() == '=' {
			return two(PLUS_ASSIGN)
		}
		return one(PLUS)
	case '-':
		if l.peek() == '=' {
			return two(MINUS_ASSIGN)
		}
		return one(MINUS)
	case '*':
		if l.peek() == '=' {
			return two(STAR_ASSIGN)
		}
		return one(STAR)
	case '/':
		if l.peek() == '=' {
			return two(SLASH_ASSIGN)
		}
		return one(SLASH)
	case '%':
		if l.peek() == '=' {
			return two(PERCENT_ASSIGN)
		}
		return one(PERCENT)
	case '=':
		if l.peek() == '>' {
			return two(ARROW)
		}
		return one(ASSIGN)
	case '?':
		if l.peek() == '?' && l.peekAt(1) == '=' {
			l.advance()
			l.advance()
			return Token{Kind: EQ_STRICT, Lexeme: "??=", Line: line, Column: col}, nil
		}
		if l.peek() == '=' {
			return two(EQ_COERCE)
		}
		return Token{}, l.errf(line, col, "unexpected character '?'")
	case '!':
		if l.peek() == '!' && l.peekAt(1) == '=' {
			l.advance()
			l.advance()
			return Token{Kind: NEQ_STRICT, Lexeme: "!!=", Line: line, Column: col}, nil
		}
		if l.peek() == '=' {
			return two(NEQ_COERCE)
		}
		return Token{}, l.errf(line, col, "unexpected character '!'")
	case '<':
		if l.peek() == '=' {
			return two(LESS_EQ)
		}
		if l.peek() == '<' {
			return two(SHL)
		}
		return one(LESS)
	case '>':
		if l.peek() == '=' {
			return two(GREATER_EQ)
		}
		if l.peek() == '>' {
			return two(SHR)
		}
		return one(GREATER)
	case '&':
		return one(AMP)
	case '|':
		return one(PIPE)
	case '^':
		return one(CARET)
	case '~':
		return one(TILDE)
	default:
		return Token{}, l.errf(line, col, "unexpected character %q", string(ch))
	}
}

// Tokenize scans src and returns all tokens, terminated by exactly one EOF
// token. It returns a *LexError on the first malformed construct.
func Tokenize(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}
