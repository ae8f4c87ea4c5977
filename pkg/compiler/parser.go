package compiler

import (
	"fmt"
	"strconv"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//		program    = statement* EOF
//		statement  = functionDecl | varDecl | returnStmt | if | while | for
//		           | forIn | switch | defer | break | continue | import
//		           | block | exprStmt
//		functionDecl = "export"? "function" IDENTIFIER "(" params ")" (":" type)? block
//		varDecl    = "let" IDENTIFIER (":" type)? ("=" expression)? ";"?
//		expression = assignment
//		assignment = logical_or (("=" | "+=" | "-=" | "*=" | "/=" | "%=") assignment)?
//		logical_or = logical_and ("or" logical_and)*
//		logical_and = equality ("and" equality)*
//		equality   = relational (("?=" | "??=" | "!=" | "!!=") relational)*
//		relational = bitwise_or (("<" | ">" | "<=" | ">=") bitwise_or)*
//		bitwise_or = bitwise_xor ("|" bitwise_xor)*
//		bitwise_xor = bitwise_and ("^" bitwise_and)*
//		bitwise_and = shift ("&" shift)*
//		shift      = additive (("<<" | ">>") additive)*
//		additive   = multiplicative (("+" | "-") multiplicative)*
//		multiplicative = unary (("*" | "/" | "%") unary)*
//		unary      = ("-" | "not" | "~") unary | postfix
//		postfix    = primary ("(" args ")" | "[" expression "]" | "." IDENTIFIER ("(" args ")")?)*
//		primary    = literal | IDENTIFIER | funcLit | match | "(" expression ")"
//		           | arrayLit | objectLit
//
// Compound assignments are desugared here: a += b becomes a = a + b over a
// clone of the target, so later passes only ever see plain assignment.
type Parser struct {
	tokens []Token
	pos    int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse tokenizes nothing itself; it consumes an already-lexed token slice.
func Parse(tokens []Token) (*Program, error) {
	return NewParser(tokens).ParseProgram()
}

func (p *Parser) errf(tok Token, format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Tok: tok}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: EOF}
	}
	return p.tokens[p.pos]
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Kind: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches kind, otherwise errors.
func (p *Parser) expect(kind TokenKind) (Token, error) {
	tok := p.advance()
	if tok.Kind != kind {
		return tok, p.errf(tok, "expected %s, got %s (%q)", kind, tok.Kind, tok.Lexeme)
	}
	return tok, nil
}

// consumeSemicolon eats a trailing semicolon when present. Statement
// terminators are optional; a missing one never fails the parse.
func (p *Parser) consumeSemicolon() {
	if p.peek().Kind == SEMICOLON {
		p.advance()
	}
}

// ParseProgram parses top-level statements until EOF.
func (p *Parser) ParseProgram() (*Program, error) {
	prog := &Program{}
	for p.peek().Kind != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	switch p.peek().Kind {
	case EXPORT:
		p.advance()
		if p.peek().Kind != FUNCTION {
			return nil, p.errf(p.peek(), "expected function after export")
		}
		return p.parseFunctionDecl(true)
	case FUNCTION:
		// "function name(" declares; "function (" is a literal in
		// expression position.
		if p.peekAt(1).Kind == IDENTIFIER {
			return p.parseFunctionDecl(false)
		}
		return p.parseExprStmt()
	case LET:
		return p.parseVarDecl()
	case RETURN:
		return p.parseReturn()
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case FOR:
		return p.parseFor()
	case SWITCH:
		return p.parseSwitch()
	case DEFER:
		p.advance()
		inner, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &DeferStmt{Stmt: inner}, nil
	case BREAK:
		p.advance()
		p.consumeSemicolon()
		return &BreakStmt{}, nil
	case CONTINUE:
		p.advance()
		p.consumeSemicolon()
		return &ContinueStmt{}, nil
	case IMPORT:
		return p.parseImport()
	case LBRACE:
		return p.parseBlock()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseFunctionDecl(exported bool) (Stmt, error) {
	p.advance() // function
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	params, ret, err := p.parseSignature()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDecl{
		Name:     name.Lexeme,
		Params:   params,
		Return:   ret,
		Body:     body,
		Exported: exported,
	}, nil
}

// parseSignature parses "(" params ")" (":" type)? shared by declarations
// and literals.
func (p *Parser) parseSignature() ([]Param, *Type, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, nil, err
	}
	var params []Param
	for p.peek().Kind != RPAREN {
		if len(params) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return nil, nil, err
			}
		}
		name, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, nil, err
		}
		if _, err := p.expect(COLON); err != nil {
			return nil, nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, nil, err
		}
		params = append(params, Param{Name: name.Lexeme, Type: *typ})
	}
	p.advance() // )

	var ret *Type
	if p.peek().Kind == COLON {
		p.advance()
		typ, err := p.parseType()
		if err != nil {
			return nil, nil, err
		}
		ret = typ
	}
	return params, ret, nil
}

// parseType parses a type annotation: a scalar name, nothing, unknown,
// "[elem]" / "[elem; N]", or "function" with an optional signature.
func (p *Parser) parseType() (*Type, error) {
	tok := p.peek()
	switch tok.Kind {
	case IDENTIFIER:
		kind, ok := scalarTypeNames[tok.Lexeme]
		if !ok {
			return nil, p.errf(tok, "unknown type %q", tok.Lexeme)
		}
		p.advance()
		return &Type{Kind: kind}, nil
	case NOTHING:
		p.advance()
		return &Type{Kind: TypeNothing}, nil
	case UNKNOWN:
		p.advance()
		return &Type{Kind: TypeUnknown}, nil
	case LBRACKET:
		p.advance()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		length := -1
		if p.peek().Kind == SEMICOLON {
			p.advance()
			n, err := p.expect(INT_LIT)
			if err != nil {
				return nil, err
			}
			v, err := strconv.Atoi(n.Lexeme)
			if err != nil {
				return nil, p.errf(n, "invalid array length %q", n.Lexeme)
			}
			length = v
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		return &Type{Kind: TypeArray, Elem: elem, Len: length}, nil
	case FUNCTION:
		p.advance()
		t := &Type{Kind: TypeFunction}
		if p.peek().Kind == LPAREN {
			p.advance()
			for p.peek().Kind != RPAREN {
				if len(t.Params) > 0 {
					if _, err := p.expect(COMMA); err != nil {
						return nil, err
					}
				}
				pt, err := p.parseType()
				if err != nil {
					return nil, err
				}
				t.Params = append(t.Params, *pt)
			}
			p.advance() // )
			if p.peek().Kind == COLON {
				p.advance()
				rt, err := p.parseType()
				if err != nil {
					return nil, err
				}
				t.Result = rt
			}
		}
		return t, nil
	default:
		return nil, p.errf(tok, "expected type, got %s (%q)", tok.Kind, tok.Lexeme)
	}
}

func (p *Parser) parseVarDecl() (Stmt, error) {
	decl, err := p.parseVarDeclNoSemi()
	if err != nil {
		return nil, err
	}
	p.consumeSemicolon()
	return decl, nil
}

func (p *Parser) parseVarDeclNoSemi() (*VariableDecl, error) {
	p.advance() // let
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	decl := &VariableDecl{Name: name.Lexeme}
	if p.peek().Kind == COLON {
		p.advance()
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		decl.Type = typ
	}
	if p.peek().Kind == ASSIGN {
		p.advance()
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	return decl, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	p.advance() // return
	stmt := &ReturnStmt{}
	switch p.peek().Kind {
	case SEMICOLON, RBRACE, EOF:
		// bare return
	case NOTHING:
		// "return nothing" is spelled-out bare return.
		p.advance()
	default:
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Value = val
	}
	p.consumeSemicolon()
	return stmt, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	p.advance() // if
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Cond: cond, Then: then}
	if p.peek().Kind == ELSE {
		p.advance()
		if p.peek().Kind == IF {
			els, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = els
		} else {
			els, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			stmt.Else = els
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	p.advance() // while
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body}, nil
}

// parseFor handles both the C-style three-clause form and the for-in form.
// They are distinguished one token past the open paren: an identifier
// immediately followed by "in" is for-in.
func (p *Parser) parseFor() (Stmt, error) {
	p.advance() // for
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	if p.peek().Kind == IDENTIFIER && p.peekAt(1).Kind == IN {
		name := p.advance()
		p.advance() // in
		iter, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		// "lo..hi" iterates the half-open integer range.
		if p.peek().Kind == DOTDOT {
			p.advance()
			hi, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			iter = &BinaryExpr{Op: DOTDOT, Left: iter, Right: hi}
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ForInStmt{Var: name.Lexeme, Iterable: iter, Body: body}, nil
	}

	stmt := &ForStmt{}

	if p.peek().Kind != SEMICOLON {
		if p.peek().Kind == LET {
			decl, err := p.parseVarDeclNoSemi()
			if err != nil {
				return nil, err
			}
			stmt.Init = decl
		} else {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			stmt.Init = &ExprStmt{Expr: expr}
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	if p.peek().Kind != SEMICOLON {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	if p.peek().Kind != RPAREN {
		post, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Post = post
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseSwitch() (Stmt, error) {
	p.advance() // switch
	target, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	stmt := &SwitchStmt{Target: target}
	for p.peek().Kind != RBRACE {
		switch p.peek().Kind {
		case CASE:
			p.advance()
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(COLON); err != nil {
				return nil, err
			}
			body, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			stmt.Cases = append(stmt.Cases, SwitchCase{Value: val, Body: body})
		case DEFAULT:
			if stmt.Default != nil {
				return nil, p.errf(p.peek(), "duplicate default case")
			}
			p.advance()
			if _, err := p.expect(COLON); err != nil {
				return nil, err
			}
			body, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			if body == nil {
				body = []Stmt{}
			}
			stmt.Default = body
		default:
			return nil, p.errf(p.peek(), "expected case or default in switch body")
		}
	}
	p.advance() // }
	return stmt, nil
}

// parseCaseBody collects statements until the next case label or the end of
// the switch body.
func (p *Parser) parseCaseBody() ([]Stmt, error) {
	var body []Stmt
	for {
		switch p.peek().Kind {
		case CASE, DEFAULT, RBRACE, EOF:
			return body, nil
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, s)
	}
}

func (p *Parser) parseImport() (Stmt, error) {
	p.advance() // import
	stmt := &ImportStmt{}
	for {
		name, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		stmt.Names = append(stmt.Names, name.Lexeme)
		if p.peek().Kind != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(FROM); err != nil {
		return nil, err
	}
	path, err := p.expect(STRING_LIT)
	if err != nil {
		return nil, err
	}
	stmt.Path = path.Str
	p.consumeSemicolon()
	return stmt, nil
}

func (p *Parser) parseBlock() (*BlockStmt, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	block := &BlockStmt{}
	for p.peek().Kind != RBRACE {
		if p.peek().Kind == EOF {
			return nil, p.errf(p.peek(), "unexpected end of input inside block")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	p.advance() // }
	return block, nil
}

func (p *Parser) parseExprStmt() (Stmt, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.consumeSemicolon()
	return &ExprStmt{Expr: expr}, nil
}

func (p *Parser) parseParenExpr() (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssignment()
}

// parseAssignment handles = and the compound forms, right-associatively.
func (p *Parser) parseAssignment() (Expr, error) {
	expr, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}

	var binOp TokenKind
	switch p.peek().Kind {
	case ASSIGN:
		// plain
	case PLUS_ASSIGN:
		binOp = PLUS
	case MINUS_ASSIGN:
		binOp = MINUS
	case STAR_ASSIGN:
		binOp = STAR
	case SLASH_ASSIGN:
		binOp = SLASH
	case PERCENT_ASSIGN:
		binOp = PERCENT
	default:
		return expr, nil
	}

	opTok := p.advance()
	switch expr.(type) {
	case *Ident, *IndexExpr, *PropertyExpr:
	default:
		return nil, p.errf(opTok, "invalid assignment target")
	}

	value, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if binOp != 0 {
		value = &BinaryExpr{Op: binOp, Left: cloneExpr(expr), Right: value}
	}
	return &AssignExpr{Target: expr, Value: value}, nil
}

// parseLogicalOr handles "or".
func (p *Parser) parseLogicalOr() (Expr, error) {
	expr, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == OR {
		op := p.advance().Kind
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseLogicalAnd handles "and".
func (p *Parser) parseLogicalAnd() (Expr, error) {
	expr, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == AND {
		op := p.advance().Kind
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseEquality handles the four equality forms: ?= ??= != !!=
func (p *Parser) parseEquality() (Expr, error) {
	expr, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case EQ_COERCE, EQ_STRICT, NEQ_COERCE, NEQ_STRICT:
			op := p.advance().Kind
			right, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			expr = &BinaryExpr{Op: op, Left: expr, Right: right}
		default:
			return expr, nil
		}
	}
}

// parseRelational handles < > <= >=
func (p *Parser) parseRelational() (Expr, error) {
	expr, err := p.parseBitwiseOr()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case LESS, GREATER, LESS_EQ, GREATER_EQ:
			op := p.advance().Kind
			right, err := p.parseBitwiseOr()
			if err != nil {
				return nil, err
			}
			expr = &BinaryExpr{Op: op, Left: expr, Right: right}
		default:
			return expr, nil
		}
	}
}

// parseBitwiseOr handles |
func (p *Parser) parseBitwiseOr() (Expr, error) {
	expr, err := p.parseBitwiseXor()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == PIPE {
		op := p.advance().Kind
		right, err := p.parseBitwiseXor()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseBitwiseXor handles ^
func (p *Parser) parseBitwiseXor() (Expr, error) {
	expr, err := p.parseBitwiseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == CARET {
		op := p.advance().Kind
		right, err := p.parseBitwiseAnd()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseBitwiseAnd handles &
func (p *Parser) parseBitwiseAnd() (Expr, error) {
	expr, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == AMP {
		op := p.advance().Kind
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseShift handles << >>
func (p *Parser) parseShift() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == SHL || p.peek().Kind == SHR {
		op := p.advance().Kind
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseAdditive handles + -
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == PLUS || p.peek().Kind == MINUS {
		op := p.advance().Kind
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseMultiplicative handles * / %
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case STAR, SLASH, PERCENT:
			op := p.advance().Kind
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			expr = &BinaryExpr{Op: op, Left: expr, Right: right}
		default:
			return expr, nil
		}
	}
}

// parseUnary handles the prefix operators - not ~
func (p *Parser) parseUnary() (Expr, error) {
	switch p.peek().Kind {
	case MINUS, NOT, TILDE:
		op := p.advance().Kind
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles calls, indexing, property access, and method calls.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case LPAREN:
			p.advance()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &CallExpr{Callee: expr, Args: args}
		case LBRACKET:
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = &IndexExpr{Target: expr, Index: idx}
		case DOT:
			p.advance()
			name, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			if p.peek().Kind == LPAREN {
				p.advance()
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &MethodCallExpr{Object: expr, Method: name.Lexeme, Args: args}
			} else {
				expr = &PropertyExpr{Object: expr, Name: name.Lexeme}
			}
		default:
			return expr, nil
		}
	}
}

// parseArgs parses a comma-separated argument list; the open paren has
// already been consumed.
func (p *Parser) parseArgs() ([]Expr, error) {
	var args []Expr
	for p.peek().Kind != RPAREN {
		if len(args) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.advance() // )
	return args, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case INT_LIT:
		p.advance()
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, p.errf(tok, "invalid integer literal %q", tok.Lexeme)
		}
		return &IntLit{Value: v}, nil
	case FLOAT_LIT:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, p.errf(tok, "invalid float literal %q", tok.Lexeme)
		}
		return &FloatLit{Value: v, Lexeme: tok.Lexeme}, nil
	case STRING_LIT:
		p.advance()
		return &StringLit{Value: tok.Str}, nil
	case RAW_STRING:
		p.advance()
		return &StringLit{Value: tok.Str, Raw: true}, nil
	case FSTRING:
		p.advance()
		return p.buildFString(tok)
	case BOOL_LIT:
		p.advance()
		return &BoolLit{Value: tok.Lexeme == "true"}, nil
	case IDENTIFIER:
		p.advance()
		return &Ident{Name: tok.Lexeme}, nil
	case NOTHING:
		p.advance()
		return &NothingLit{}, nil
	case UNKNOWN:
		// "unknown(reason)" constructs an unknown value; postfix parsing
		// picks up the call.
		p.advance()
		return &Ident{Name: "unknown"}, nil
	case FUNCTION:
		return p.parseFuncLit()
	case MATCH:
		return p.parseMatch()
	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	case LBRACKET:
		return p.parseArrayLit()
	case LBRACE:
		return p.parseObjectLit()
	default:
		return nil, p.errf(tok, "unexpected token %s (%q) in expression", tok.Kind, tok.Lexeme)
	}
}

// buildFString turns the lexer's flat part list into an expression tree by
// sub-parsing each embedded expression source fragment.
func (p *Parser) buildFString(tok Token) (Expr, error) {
	lit := &FStringLit{}
	for _, part := range tok.Parts {
		if !part.IsExpr {
			lit.Parts = append(lit.Parts, FPart{Text: part.Text})
			continue
		}
		expr, err := parseExprSource(part.Text)
		if err != nil {
			return nil, p.errf(tok, "invalid expression %q in interpolated string: %v", part.Text, err)
		}
		lit.Parts = append(lit.Parts, FPart{Expr: expr})
	}
	return lit, nil
}

// parseExprSource lexes and parses a standalone expression fragment.
func parseExprSource(src string) (Expr, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	sub := NewParser(tokens)
	expr, err := sub.parseExpression()
	if err != nil {
		return nil, err
	}
	if sub.peek().Kind != EOF {
		return nil, sub.errf(sub.peek(), "unexpected trailing tokens after expression")
	}
	return expr, nil
}

func (p *Parser) parseFuncLit() (Expr, error) {
	p.advance() // function
	params, ret, err := p.parseSignature()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncLit{Params: params, Return: ret, Body: body}, nil
}

// parseMatch parses match (scrutinee) { pattern => expr, ... }. A pattern of
// "default" or "_" is the wildcard arm.
func (p *Parser) parseMatch() (Expr, error) {
	p.advance() // match
	scrutinee, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	m := &MatchExpr{Scrutinee: scrutinee}
	for p.peek().Kind != RBRACE {
		if len(m.Arms) > 0 && p.peek().Kind == COMMA {
			p.advance()
			if p.peek().Kind == RBRACE {
				break
			}
		}
		var pattern Expr
		if p.peek().Kind == DEFAULT ||
			(p.peek().Kind == IDENTIFIER && p.peek().Lexeme == "_") {
			p.advance()
		} else {
			pattern, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(ARROW); err != nil {
			return nil, err
		}
		body, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		m.Arms = append(m.Arms, MatchArm{Pattern: pattern, Body: body})
	}
	p.advance() // }

	if len(m.Arms) == 0 {
		return nil, p.errf(p.peek(), "match expression has no arms")
	}
	return m, nil
}

func (p *Parser) parseArrayLit() (Expr, error) {
	p.advance() // [
	lit := &ArrayLit{}
	for p.peek().Kind != RBRACKET {
		if len(lit.Elements) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return nil, err
			}
			if p.peek().Kind == RBRACKET {
				break
			}
		}
		el, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		lit.Elements = append(lit.Elements, el)
	}
	p.advance() // ]
	return lit, nil
}

func (p *Parser) parseObjectLit() (Expr, error) {
	p.advance() // {
	lit := &ObjectLit{}
	for p.peek().Kind != RBRACE {
		if len(lit.Props) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return nil, err
			}
			if p.peek().Kind == RBRACE {
				break
			}
		}
		key, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		lit.Props = append(lit.Props, Property{Key: key.Lexeme, Value: val})
	}
	p.advance() // }
	return lit, nil
}
