package compiler

import (
	"strings"
	"testing"
)

// kindsOf reduces a token slice to its kinds for compact comparison.
func kindsOf(tokens []Token) []TokenKind {
	kinds := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		kinds[i] = t.Kind
	}
	return kinds
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenKind
		wantErr  bool
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []TokenKind{EOF},
		},
		{
			name:  "Operators",
			input: "+ - * / % = += -= *= /= %= < > <= >= << >> & | ^ ~ => ..",
			expected: []TokenKind{
				PLUS, MINUS, STAR, SLASH, PERCENT,
				ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN, STAR_ASSIGN, SLASH_ASSIGN, PERCENT_ASSIGN,
				LESS, GREATER, LESS_EQ, GREATER_EQ, SHL, SHR,
				AMP, PIPE, CARET, TILDE, ARROW, DOTDOT, EOF,
			},
		},
		{
			name:     "Equality forms",
			input:    "a ?= b ??= c != d !!= e",
			expected: []TokenKind{IDENTIFIER, EQ_COERCE, IDENTIFIER, EQ_STRICT, IDENTIFIER, NEQ_COERCE, IDENTIFIER, NEQ_STRICT, IDENTIFIER, EOF},
		},
		{
			name:  "Keywords",
			input: "function let if else while for in return defer match switch case default break continue and or not nothing unknown export import from",
			expected: []TokenKind{
				FUNCTION, LET, IF, ELSE, WHILE, FOR, IN, RETURN, DEFER,
				MATCH, SWITCH, CASE, DEFAULT, BREAK, CONTINUE,
				AND, OR, NOT, NOTHING, UNKNOWN, EXPORT, IMPORT, FROM, EOF,
			},
		},
		{
			name:     "Reserved keywords",
			input:    "stack heap watch async shared requires ensures when",
			expected: []TokenKind{STACK, HEAP, WATCH, ASYNC, SHARED, REQUIRES, ENSURES, WHEN, EOF},
		},
		{
			name:     "Booleans are literals not identifiers",
			input:    "true false",
			expected: []TokenKind{BOOL_LIT, BOOL_LIT, EOF},
		},
		{
			name:     "Numbers",
			input:    "123 0 3.14 1e5 2.5E-3 7e+2",
			expected: []TokenKind{INT_LIT, INT_LIT, FLOAT_LIT, FLOAT_LIT, FLOAT_LIT, FLOAT_LIT, EOF},
		},
		{
			name:     "Dot after integer is a range not a float",
			input:    "0..10",
			expected: []TokenKind{INT_LIT, DOTDOT, INT_LIT, EOF},
		},
		{
			name:     "Method call chain",
			input:    "text.trim().toUpperCase()",
			expected: []TokenKind{IDENTIFIER, DOT, IDENTIFIER, LPAREN, RPAREN, DOT, IDENTIFIER, LPAREN, RPAREN, EOF},
		},
		{
			name:     "Line comments are skipped",
			input:    "let x // trailing\n// full line\n= 1",
			expected: []TokenKind{LET, IDENTIFIER, ASSIGN, INT_LIT, EOF},
		},
		{
			name:    "Bare question mark",
			input:   "a ? b",
			wantErr: true,
		},
		{
			name:    "Bare exclamation mark",
			input:   "a ! b",
			wantErr: true,
		},
		{
			name:    "Exponent without digits",
			input:   "1e",
			wantErr: true,
		},
		{
			name:    "Unknown character",
			input:   "let x = @",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got tokens %v", tokens)
				}
				return
			}
			if err != nil {
				t.Fatalf("Tokenize failed: %v", err)
			}
			got := kindsOf(tokens)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(tt.expected), tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("token %d: got %s, want %s", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestTokenizeStrings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    TokenKind
		value   string
		wantErr bool
	}{
		{name: "Plain", input: `"hello"`, kind: STRING_LIT, value: "hello"},
		{name: "Escapes", input: `"a\nb\tc\"d\\e"`, kind: STRING_LIT, value: "a\nb\tc\"d\\e"},
		{name: "Raw keeps backslashes", input: `r"a\nb"`, kind: RAW_STRING, value: `a\nb`},
		{name: "Double-quote delimiter", input: `""say "hi"""`, kind: STRING_LIT, value: `say "hi"`},
		{name: "Triple-quote delimiter", input: `"""nested ""quotes"" inside"""`, kind: STRING_LIT, value: `nested ""quotes"" inside`},
		{name: "Unterminated", input: `"abc`, wantErr: true},
		{name: "Adjacent quotes are an unterminated two-quote literal", input: `""`, wantErr: true},
		{name: "Unknown escape", input: `"a\qb"`, wantErr: true},
		{name: "Raw ignores escape validity", input: `r"a\qb"`, kind: RAW_STRING, value: `a\qb`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", tokens)
				}
				return
			}
			if err != nil {
				t.Fatalf("Tokenize failed: %v", err)
			}
			tok := tokens[0]
			if tok.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s", tok.Kind, tt.kind)
			}
			if tok.Str != tt.value {
				t.Errorf("value: got %q, want %q", tok.Str, tt.value)
			}
		})
	}
}

func TestTokenizeFString(t *testing.T) {
	tokens, err := Tokenize(`f"Hello {name}, you are {age + 1} years old"`)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	tok := tokens[0]
	if tok.Kind != FSTRING {
		t.Fatalf("kind: got %s, want FSTRING", tok.Kind)
	}
	want := []FStringPart{
		{Text: "Hello "},
		{IsExpr: true, Text: "name"},
		{Text: ", you are "},
		{IsExpr: true, Text: "age + 1"},
		{Text: " years old"},
	}
	if len(tok.Parts) != len(want) {
		t.Fatalf("got %d parts %v, want %d", len(tok.Parts), tok.Parts, len(want))
	}
	for i, p := range tok.Parts {
		if p != want[i] {
			t.Errorf("part %d: got %+v, want %+v", i, p, want[i])
		}
	}
}

func TestTokenizeFStringNestedBraces(t *testing.T) {
	tokens, err := Tokenize(`f"{ {a} }"`)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	parts := tokens[0].Parts
	if len(parts) != 1 || !parts[0].IsExpr || parts[0].Text != "{a}" {
		t.Fatalf("got parts %+v, want single expr part {a}", parts)
	}
}

func TestTokenizeRawFString(t *testing.T) {
	for _, prefix := range []string{"rf", "fr"} {
		tokens, err := Tokenize(prefix + `"path\n{dir}"`)
		if err != nil {
			t.Fatalf("%s-string: Tokenize failed: %v", prefix, err)
		}
		parts := tokens[0].Parts
		if len(parts) != 2 {
			t.Fatalf("%s-string: got %d parts %v", prefix, len(parts), parts)
		}
		if parts[0].Text != `path\n` {
			t.Errorf("%s-string: raw text got %q, want %q", prefix, parts[0].Text, `path\n`)
		}
		if !parts[1].IsExpr || parts[1].Text != "dir" {
			t.Errorf("%s-string: expr part got %+v", prefix, parts[1])
		}
	}
}

func TestTokenizePrefixWithoutQuoteIsIdentifier(t *testing.T) {
	tokens, err := Tokenize("f r rf fresh")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	for i, want := range []string{"f", "r", "rf", "fresh"} {
		if tokens[i].Kind != IDENTIFIER || tokens[i].Lexeme != want {
			t.Errorf("token %d: got %s %q, want IDENTIFIER %q", i, tokens[i].Kind, tokens[i].Lexeme, want)
		}
	}
}

func TestTokenizePositions(t *testing.T) {
	tokens, err := Tokenize("let x\n  = 42")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	want := []struct {
		line, col int
	}{
		{1, 1}, // let
		{1, 5}, // x
		{2, 3}, // =
		{2, 5}, // 42
	}
	for i, w := range want {
		if tokens[i].Line != w.line || tokens[i].Column != w.col {
			t.Errorf("token %d (%s): got %d:%d, want %d:%d",
				i, tokens[i].Lexeme, tokens[i].Line, tokens[i].Column, w.line, w.col)
		}
	}
}

func TestTokenizeErrorPosition(t *testing.T) {
	_, err := Tokenize("let x = 1\nlet y = @")
	if err == nil {
		t.Fatal("expected error")
	}
	lexErr, ok := err.(*LexError)
	if !ok {
		t.Fatalf("got %T, want *LexError", err)
	}
	if lexErr.Line != 2 || lexErr.Column != 9 {
		t.Errorf("position: got %d:%d, want 2:9", lexErr.Line, lexErr.Column)
	}
	if !strings.Contains(err.Error(), "2:9") {
		t.Errorf("message %q should carry the position", err.Error())
	}
}

func TestTokenizeSingleEOF(t *testing.T) {
	tokens, err := Tokenize("x")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	eofs := 0
	for _, tok := range tokens {
		if tok.Kind == EOF {
			eofs++
		}
	}
	if eofs != 1 || tokens[len(tokens)-1].Kind != EOF {
		t.Errorf("want exactly one trailing EOF, got %v", tokens)
	}
}
