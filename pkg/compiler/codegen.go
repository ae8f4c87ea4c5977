package compiler

import (
	"fmt"
	"strings"
)

// CodeGen lowers a Program to a single self-contained C11 translation unit.
//
// Generation runs twice over the same tree. The first pass writes into a
// throwaway buffer and exists only to register function literals and record
// which runtime segments the program needs; the preamble (runtime library,
// lambda definitions, forward declarations) has to be emitted before any
// user statement, but what belongs in it is only known after walking every
// statement. The second pass reuses the registry and produces the real
// output.
type CodeGen struct {
	out    strings.Builder
	indent int
	pass   int

	feats     features
	lambdas   []*lambdaInfo
	lambdaIdx map[*FuncLit]int

	funcs  map[string]*FunctionDecl
	scopes []*genScope
	tmp    int
}

// features gates the optional runtime segments.
type features struct {
	unknown bool
	hof     bool
	math    bool
	strFrom bool
}

type capture struct {
	name string
	ctyp string
}

// lambdaInfo is one registered function literal. Captured variables get one
// global cell each, written at the evaluation site and aliased inside the
// lambda body. A cell holds the value of the most recent evaluation of its
// literal; two live closures over the same literal share cells, last write
// wins.
type lambdaInfo struct {
	index    int
	fn       *FuncLit
	captures []capture
}

type scopeKind int

const (
	scopeGlobal scopeKind = iota
	scopeFunction
	scopeBlock
	scopeLoop
	scopeSwitch
)

// genScope is one lexical scope: its variables and the statements deferred
// in it, in registration order.
type genScope struct {
	kind     scopeKind
	vars     map[string]*Type
	deferred []Stmt
}

// Generate lowers prog to C source text.
func Generate(prog *Program) (string, error) {
	g := &CodeGen{
		lambdaIdx: map[*FuncLit]int{},
		funcs:     map[string]*FunctionDecl{},
	}
	for _, s := range prog.Statements {
		if fn, ok := s.(*FunctionDecl); ok {
			g.funcs[fn.Name] = fn
		}
	}

	g.pass = 1
	if err := g.genGlobals(prog); err != nil {
		return "", err
	}
	if err := g.genUserCode(prog); err != nil {
		return "", err
	}

	g.out.Reset()
	g.pass = 2
	g.tmp = 0
	g.scopes = nil

	g.out.WriteString(runtimeHeader)
	if g.feats.math {
		g.out.WriteString("#include <math.h>\n")
	}
	if g.feats.unknown {
		g.out.WriteString(runtimeUnknown)
	}
	g.out.WriteString(runtimeDynArray)
	if g.feats.hof {
		g.out.WriteString(runtimeHOF)
	}
	g.out.WriteString(runtimeString)
	if g.feats.math {
		g.out.WriteString(runtimeMath)
	}
	if g.feats.strFrom {
		g.out.WriteString(runtimeStrFrom)
	}
	g.out.WriteString("\n")

	// file-scope variables come first so lambdas and functions can see them
	if err := g.genGlobals(prog); err != nil {
		return "", err
	}

	for _, l := range g.lambdas {
		if err := g.genLambdaDef(l); err != nil {
			return "", err
		}
	}

	for _, s := range prog.Statements {
		if fn, ok := s.(*FunctionDecl); ok {
			g.out.WriteString(g.funcSignature(fn) + ";\n")
		}
	}
	g.out.WriteString("\n")

	if err := g.genUserCode(prog); err != nil {
		return "", err
	}
	return g.out.String(), nil
}

func (g *CodeGen) errf(format string, args ...any) error {
	return &CodegenError{Message: fmt.Sprintf(format, args...)}
}

func (g *CodeGen) writef(format string, args ...any) {
	if g.pass == 1 {
		return
	}
	g.out.WriteString(strings.Repeat("    ", g.indent))
	fmt.Fprintf(&g.out, format, args...)
	g.out.WriteString("\n")
}

//  scope handling

func (g *CodeGen) pushScope(kind scopeKind) *genScope {
	s := &genScope{kind: kind, vars: map[string]*Type{}}
	g.scopes = append(g.scopes, s)
	return s
}

func (g *CodeGen) popScope() {
	g.scopes = g.scopes[:len(g.scopes)-1]
}

func (g *CodeGen) declareVar(name string, t *Type) {
	g.scopes[len(g.scopes)-1].vars[name] = t
}

func (g *CodeGen) lookupVar(name string) *Type {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if t, ok := g.scopes[i].vars[name]; ok {
			return t
		}
	}
	return nil
}

// lookupLocalVar resolves a name against function-local scopes only.
// File-scope variables are directly addressable in the generated C, so a
// closure never needs to capture them.
func (g *CodeGen) lookupLocalVar(name string) *Type {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if g.scopes[i].kind == scopeGlobal {
			return nil
		}
		if t, ok := g.scopes[i].vars[name]; ok {
			return t
		}
	}
	return nil
}

//  top level

// genGlobals opens the file scope and emits every top-level variable
// declaration into it. The scope stays pushed for the rest of the pass so
// functions resolve the names; Generate discards it between passes.
func (g *CodeGen) genGlobals(prog *Program) error {
	g.pushScope(scopeGlobal)
	for _, s := range prog.Statements {
		v, ok := s.(*VariableDecl)
		if !ok {
			continue
		}
		if err := g.genGlobalVar(v); err != nil {
			return err
		}
	}
	return nil
}

// genGlobalVar lowers a top-level let to a file-scope C variable. C only
// allows constant expressions there, so anything needing a runtime call
// (dynamic arrays in particular) is rejected.
func (g *CodeGen) genGlobalVar(n *VariableDecl) error {
	t := n.Type
	if t == nil {
		if n.Init == nil {
			return g.errf("variable %q needs a type annotation or an initializer", n.Name)
		}
		t = g.inferType(n.Init)
	}
	if t.Kind == TypeArray && t.Len < 0 {
		return g.errf("file-scope variable %q cannot be a dynamic array; declare it inside a function", n.Name)
	}
	if n.Init != nil && !isConstExpr(n.Init) {
		return g.errf("file-scope variable %q requires a constant initializer", n.Name)
	}
	return g.genVarDecl(n)
}

// isConstExpr reports whether an expression lowers to a C constant
// expression, usable in a file-scope initializer.
func isConstExpr(e Expr) bool {
	switch n := e.(type) {
	case *IntLit, *FloatLit, *StringLit, *BoolLit, *NothingLit:
		return true
	case *UnaryExpr:
		return isConstExpr(n.Operand)
	case *ArrayLit:
		for _, el := range n.Elements {
			if !isConstExpr(el) {
				return false
			}
		}
		return true
	case *ObjectLit:
		for _, p := range n.Props {
			if !isConstExpr(p.Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (g *CodeGen) genUserCode(prog *Program) error {
	for _, s := range prog.Statements {
		switch n := s.(type) {
		case *FunctionDecl:
			if err := g.genFunction(n); err != nil {
				return err
			}
		case *VariableDecl:
			// already emitted at file scope by genGlobals
		case *ImportStmt:
			// modules are single translation units; imports are accepted
			// and ignored
		default:
			return g.errf("top-level statement must be a function or variable declaration, got %s", s)
		}
	}
	return nil
}

func (g *CodeGen) funcSignature(fn *FunctionDecl) string {
	var b strings.Builder
	b.WriteString(g.cReturnType(fn.Return))
	b.WriteString(" ")
	b.WriteString(fn.Name)
	b.WriteString("(")
	for i, p := range fn.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(g.cParamType(&p.Type) + " " + p.Name)
	}
	b.WriteString(")")
	return b.String()
}

func (g *CodeGen) genFunction(fn *FunctionDecl) error {
	g.pushScope(scopeFunction)
	defer g.popScope()
	for i := range fn.Params {
		g.declareVar(fn.Params[i].Name, &fn.Params[i].Type)
	}

	g.writef("%s {", g.funcSignature(fn))
	g.indent++
	if _, err := g.genStmts(fn.Body.Stmts); err != nil {
		return err
	}
	// function-scope defers flush here only when the body can fall off
	// the end; a terminated body already flushed at its exit statements
	g.indent--
	g.writef("}")
	g.writef("")
	return nil
}

// genStmts emits a statement list into the current scope and reports
// whether it ended in a terminator. The enclosing scope's defers flush at
// the end unless a terminator already flushed them.
func (g *CodeGen) genStmts(stmts []Stmt) (terminated bool, err error) {
	for _, s := range stmts {
		t, err := g.genStmt(s)
		if err != nil {
			return false, err
		}
		if t {
			terminated = true
		}
	}
	if !terminated {
		g.flushScope(g.scopes[len(g.scopes)-1])
	}
	return terminated, nil
}

//  defer machinery

// flushScope re-emits a scope's deferred statements in reverse order.
func (g *CodeGen) flushScope(s *genScope) {
	for i := len(s.deferred) - 1; i >= 0; i-- {
		// deferring a terminator would re-enter the unwind; the parser
		// permits it, lowering runs it as a plain statement
		g.genStmt(s.deferred[i]) //nolint:errcheck // checked in pass 1
	}
}

// flushThrough flushes scopes innermost-first until (and including) the
// first scope matching stop.
func (g *CodeGen) flushThrough(stop func(scopeKind) bool) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		g.flushScope(g.scopes[i])
		if stop(g.scopes[i].kind) {
			return
		}
	}
}

//  statements

func (g *CodeGen) genStmt(s Stmt) (terminated bool, err error) {
	switch n := s.(type) {
	case *VariableDecl:
		return false, g.genVarDecl(n)

	case *ReturnStmt:
		var val string
		if n.Value != nil {
			val, err = g.genExpr(n.Value)
			if err != nil {
				return false, err
			}
		}
		g.flushThrough(func(k scopeKind) bool { return k == scopeFunction })
		if val == "" {
			g.writef("return;")
		} else {
			g.writef("return %s;", val)
		}
		return true, nil

	case *ExprStmt:
		if call, ok := n.Expr.(*CallExpr); ok {
			if id, ok := call.Callee.(*Ident); ok && id.Name == "print" {
				return false, g.genPrint(call.Args)
			}
		}
		text, err := g.genExpr(n.Expr)
		if err != nil {
			return false, err
		}
		g.writef("%s;", text)
		return false, nil

	case *IfStmt:
		return g.genIf(n)

	case *WhileStmt:
		cond, err := g.genExpr(n.Cond)
		if err != nil {
			return false, err
		}
		g.writef("while (%s) {", cond)
		g.pushScope(scopeLoop)
		g.indent++
		_, err = g.genStmts(n.Body.Stmts)
		g.indent--
		g.popScope()
		if err != nil {
			return false, err
		}
		g.writef("}")
		return false, nil

	case *ForStmt:
		return false, g.genFor(n)

	case *ForInStmt:
		return false, g.genForIn(n)

	case *BreakStmt:
		g.flushThrough(func(k scopeKind) bool { return k == scopeLoop || k == scopeSwitch })
		g.writef("break;")
		return true, nil

	case *ContinueStmt:
		g.flushThrough(func(k scopeKind) bool { return k == scopeLoop })
		g.writef("continue;")
		return true, nil

	case *SwitchStmt:
		return false, g.genSwitch(n)

	case *DeferStmt:
		if g.pass == 1 {
			// dry-run the deferred statement so its lambdas and runtime
			// needs still register
			if _, err := g.genStmt(n.Stmt); err != nil {
				return false, err
			}
		}
		sc := g.scopes[len(g.scopes)-1]
		sc.deferred = append(sc.deferred, n.Stmt)
		return false, nil

	case *BlockStmt:
		g.writef("{")
		g.pushScope(scopeBlock)
		g.indent++
		term, err := g.genStmts(n.Stmts)
		g.indent--
		g.popScope()
		if err != nil {
			return false, err
		}
		g.writef("}")
		return term, nil

	case *FunctionDecl:
		return false, g.errf("nested function declarations are not supported; use a function literal")

	case *ImportStmt:
		return false, nil

	default:
		return false, g.errf("cannot lower statement %s", s)
	}
}

func (g *CodeGen) genIf(n *IfStmt) (bool, error) {
	cond, err := g.genExpr(n.Cond)
	if err != nil {
		return false, err
	}
	g.writef("if (%s) {", cond)
	g.pushScope(scopeBlock)
	g.indent++
	thenTerm, err := g.genStmts(n.Then.Stmts)
	g.indent--
	g.popScope()
	if err != nil {
		return false, err
	}

	allTerm := thenTerm
	hasFinalElse := false

	cur := n.Else
	for cur != nil {
		switch e := cur.(type) {
		case *IfStmt:
			cond, err := g.genExpr(e.Cond)
			if err != nil {
				return false, err
			}
			g.writef("} else if (%s) {", cond)
			g.pushScope(scopeBlock)
			g.indent++
			term, err := g.genStmts(e.Then.Stmts)
			g.indent--
			g.popScope()
			if err != nil {
				return false, err
			}
			allTerm = allTerm && term
			cur = e.Else
		case *BlockStmt:
			g.writef("} else {")
			g.pushScope(scopeBlock)
			g.indent++
			term, err := g.genStmts(e.Stmts)
			g.indent--
			g.popScope()
			if err != nil {
				return false, err
			}
			allTerm = allTerm && term
			hasFinalElse = true
			cur = nil
		default:
			return false, g.errf("cannot lower else branch %s", cur)
		}
	}
	g.writef("}")
	return allTerm && hasFinalElse, nil
}

func (g *CodeGen) genFor(n *ForStmt) error {
	g.pushScope(scopeLoop)
	defer g.popScope()

	init := ""
	if n.Init != nil {
		switch s := n.Init.(type) {
		case *VariableDecl:
			t := s.Type
			if t == nil {
				t = g.inferType(s.Init)
			}
			val, err := g.genExpr(s.Init)
			if err != nil {
				return err
			}
			g.declareVar(s.Name, t)
			init = fmt.Sprintf("%s %s = %s", g.cType(t), s.Name, val)
		case *ExprStmt:
			text, err := g.genExpr(s.Expr)
			if err != nil {
				return err
			}
			init = text
		default:
			return g.errf("unsupported for-loop initializer %s", n.Init)
		}
	}

	cond := ""
	if n.Cond != nil {
		c, err := g.genExpr(n.Cond)
		if err != nil {
			return err
		}
		cond = c
	}
	post := ""
	if n.Post != nil {
		p, err := g.genExpr(n.Post)
		if err != nil {
			return err
		}
		post = p
	}

	g.writef("for (%s; %s; %s) {", init, cond, post)
	g.indent++
	_, err := g.genStmts(n.Body.Stmts)
	g.indent--
	if err != nil {
		return err
	}
	g.writef("}")
	return nil
}

func (g *CodeGen) genForIn(n *ForInStmt) error {
	// integer range: for (x in lo..hi)
	if r, ok := n.Iterable.(*BinaryExpr); ok && r.Op == DOTDOT {
		lo, err := g.genExpr(r.Left)
		if err != nil {
			return err
		}
		hi, err := g.genExpr(r.Right)
		if err != nil {
			return err
		}
		g.writef("for (int32_t %s = %s; %s < %s; %s++) {", n.Var, lo, n.Var, hi, n.Var)
		g.pushScope(scopeLoop)
		g.declareVar(n.Var, &Type{Kind: TypeI32})
		g.indent++
		_, err = g.genStmts(n.Body.Stmts)
		g.indent--
		g.popScope()
		if err != nil {
			return err
		}
		g.writef("}")
		return nil
	}

	// array literal: materialize a temporary fixed array, then iterate it
	if lit, ok := n.Iterable.(*ArrayLit); ok {
		if len(lit.Elements) == 0 {
			return g.errf("cannot iterate an empty array literal")
		}
		elem := g.inferType(lit.Elements[0])
		parts := make([]string, len(lit.Elements))
		for i, el := range lit.Elements {
			text, err := g.genExpr(el)
			if err != nil {
				return err
			}
			parts[i] = text
		}
		g.tmp++
		tmp := fmt.Sprintf("__iter_%d", g.tmp)
		g.writef("%s %s[%d] = {%s};", g.cType(elem), tmp, len(lit.Elements), strings.Join(parts, ", "))
		return g.genForInFixed(n, tmp, elem)
	}

	id, ok := n.Iterable.(*Ident)
	if !ok {
		return g.errf("for-in requires a fixed-size array variable or integer range")
	}
	t := g.lookupVar(id.Name)
	if t == nil || t.Kind != TypeArray || t.Len < 0 {
		return g.errf("for-in over %q requires a fixed-size array; dynamic arrays are iterated by index", id.Name)
	}
	return g.genForInFixed(n, id.Name, t.Elem)
}

// genForInFixed iterates a named fixed-size C array by synthesized index.
func (g *CodeGen) genForInFixed(n *ForInStmt, arr string, elem *Type) error {
	idx := "__idx_" + n.Var
	g.writef("for (int32_t %s = 0; %s < sizeof(%s)/sizeof((%s)[0]); %s++) {",
		idx, idx, arr, arr, idx)
	g.pushScope(scopeLoop)
	g.declareVar(n.Var, elem)
	g.indent++
	g.writef("%s %s = (%s)[%s];", g.cType(elem), n.Var, arr, idx)
	_, err := g.genStmts(n.Body.Stmts)
	g.indent--
	g.popScope()
	if err != nil {
		return err
	}
	g.writef("}")
	return nil
}

func (g *CodeGen) genSwitch(n *SwitchStmt) error {
	target, err := g.genExpr(n.Target)
	if err != nil {
		return err
	}
	g.writef("switch (%s) {", target)
	g.pushScope(scopeSwitch)
	g.indent++
	for _, c := range n.Cases {
		val, err := g.genExpr(c.Value)
		if err != nil {
			return err
		}
		g.writef("case %s:", val)
		g.indent++
		for _, s := range c.Body {
			if _, err := g.genStmt(s); err != nil {
				return err
			}
		}
		g.indent--
	}
	if n.Default != nil {
		g.writef("default:")
		g.indent++
		for _, s := range n.Default {
			if _, err := g.genStmt(s); err != nil {
				return err
			}
		}
		g.indent--
	}
	g.indent--
	g.popScope()
	g.writef("}")
	return nil
}

//  variable declarations

func (g *CodeGen) genVarDecl(n *VariableDecl) error {
	t := n.Type
	if t == nil {
		if n.Init == nil {
			return g.errf("variable %q needs a type annotation or an initializer", n.Name)
		}
		t = g.inferType(n.Init)
	}

	defer g.declareVar(n.Name, t)

	switch {
	case t.Kind == TypeArray && t.Len < 0:
		if n.Init == nil {
			g.writef("DynamicArray* %s = array_new(sizeof(%s));", n.Name, g.cType(t.Elem))
			return nil
		}
		if lit, ok := n.Init.(*ArrayLit); ok {
			text, err := g.genDynArrayLit(lit, t.Elem)
			if err != nil {
				return err
			}
			g.writef("DynamicArray* %s = %s;", n.Name, text)
			return nil
		}
		val, err := g.genExpr(n.Init)
		if err != nil {
			return err
		}
		g.writef("DynamicArray* %s = %s;", n.Name, val)
		return nil

	case t.Kind == TypeArray:
		if n.Init == nil {
			g.writef("%s %s[%d];", g.cType(t.Elem), n.Name, t.Len)
			return nil
		}
		lit, ok := n.Init.(*ArrayLit)
		if !ok {
			return g.errf("fixed-size array %q requires an array literal initializer", n.Name)
		}
		parts := make([]string, len(lit.Elements))
		for i, el := range lit.Elements {
			text, err := g.genExpr(el)
			if err != nil {
				return err
			}
			parts[i] = text
		}
		g.writef("%s %s[%d] = {%s};", g.cType(t.Elem), n.Name, t.Len, strings.Join(parts, ", "))
		return nil

	case t.Kind == TypeObject:
		lit, ok := n.Init.(*ObjectLit)
		if !ok {
			return g.errf("object %q requires an object literal initializer", n.Name)
		}
		fields := make([]string, len(lit.Props))
		inits := make([]string, len(lit.Props))
		for i, p := range lit.Props {
			val, err := g.genExpr(p.Value)
			if err != nil {
				return err
			}
			fields[i] = fmt.Sprintf("int32_t %s;", p.Key)
			inits[i] = fmt.Sprintf(".%s = %s", p.Key, val)
		}
		g.writef("struct { %s } %s = {%s};", strings.Join(fields, " "), n.Name, strings.Join(inits, ", "))
		return nil

	default:
		if n.Init == nil {
			g.writef("%s %s;", g.cType(t), n.Name)
			return nil
		}
		val, err := g.genExpr(n.Init)
		if err != nil {
			return err
		}
		g.writef("%s %s = %s;", g.cType(t), n.Name, val)
		return nil
	}
}

// genDynArrayLit builds a populated DynamicArray with a statement
// expression so the literal stays usable in initializer position.
func (g *CodeGen) genDynArrayLit(lit *ArrayLit, elem *Type) (string, error) {
	push := "array_push_i32"
	if elem.Kind == TypeString {
		push = "array_push_string"
	}
	g.tmp++
	tmp := fmt.Sprintf("__arr_%d", g.tmp)

	var b strings.Builder
	fmt.Fprintf(&b, "({ DynamicArray* %s = array_new(sizeof(%s));", tmp, g.cType(elem))
	for _, el := range lit.Elements {
		text, err := g.genExpr(el)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " %s(%s, %s);", push, tmp, text)
	}
	fmt.Fprintf(&b, " %s; })", tmp)
	return b.String(), nil
}

//  print

// genPrint lowers the print builtin to a single printf call. Interpolated
// strings contribute their text directly to the format string, with one
// conversion per embedded expression.
func (g *CodeGen) genPrint(args []Expr) error {
	if len(args) != 1 {
		return g.errf("print takes exactly one argument, got %d", len(args))
	}

	switch a := args[0].(type) {
	case *StringLit:
		g.writef(`printf("%%s\n", "%s");`, cEscape(a.Value))
		return nil
	case *FStringLit:
		var format strings.Builder
		var exprs []string
		for _, p := range a.Parts {
			if p.Expr == nil {
				format.WriteString(formatEscape(p.Text))
				continue
			}
			text, err := g.genExpr(p.Expr)
			if err != nil {
				return err
			}
			format.WriteString(g.printfVerb(g.inferType(p.Expr)))
			exprs = append(exprs, text)
		}
		if len(exprs) == 0 {
			g.writef(`printf("%%s\n", "%s");`, format.String())
			return nil
		}
		g.writef(`printf("%s\n", %s);`, format.String(), strings.Join(exprs, ", "))
		return nil
	default:
		text, err := g.genExpr(args[0])
		if err != nil {
			return err
		}
		g.writef(`printf("%s\n", %s);`, g.printfVerb(g.inferType(args[0])), text)
		return nil
	}
}

func (g *CodeGen) printfVerb(t *Type) string {
	switch t.Kind {
	case TypeString:
		return "%s"
	case TypeF32, TypeF64:
		return "%f"
	case TypeI64, TypeU64:
		return "%ld"
	default:
		return "%d"
	}
}

//  expressions

func (g *CodeGen) genExpr(e Expr) (string, error) {
	switch n := e.(type) {
	case *IntLit:
		return fmt.Sprintf("%d", n.Value), nil
	case *FloatLit:
		return n.Lexeme, nil
	case *StringLit:
		return `"` + cEscape(n.Value) + `"`, nil
	case *BoolLit:
		if n.Value {
			return "true", nil
		}
		return "false", nil
	case *NothingLit:
		return "NULL", nil
	case *Ident:
		return n.Name, nil
	case *FStringLit:
		return g.genFStringValue(n)
	case *UnaryExpr:
		operand, err := g.genExpr(n.Operand)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case MINUS:
			return "-(" + operand + ")", nil
		case NOT:
			return "!(" + operand + ")", nil
		case TILDE:
			return "~(" + operand + ")", nil
		}
		return "", g.errf("cannot lower unary operator %s", n.Op)
	case *BinaryExpr:
		return g.genBinary(n)
	case *AssignExpr:
		lhs, err := g.genLValue(n.Target)
		if err != nil {
			return "", err
		}
		rhs, err := g.genExpr(n.Value)
		if err != nil {
			return "", err
		}
		return lhs + " = " + rhs, nil
	case *CallExpr:
		return g.genCall(n)
	case *IndexExpr:
		return g.genIndex(n)
	case *ArrayLit:
		elem := &Type{Kind: TypeI32}
		if len(n.Elements) > 0 {
			elem = g.inferType(n.Elements[0])
		}
		return g.genDynArrayLit(n, elem)
	case *ObjectLit:
		return "", g.errf("object literals are only supported as variable initializers")
	case *PropertyExpr:
		return g.genProperty(n)
	case *MethodCallExpr:
		return g.genMethodCall(n)
	case *MatchExpr:
		return g.genMatch(n)
	case *FuncLit:
		return g.genFuncLitExpr(n)
	default:
		return "", g.errf("cannot lower expression %s", e)
	}
}

// binaryOps maps source operators to their C spelling. The coercing and
// strict comparison forms collapse to the same C operator except on
// strings.
var binaryOps = map[TokenKind]string{
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	EQ_COERCE: "==", EQ_STRICT: "==", NEQ_COERCE: "!=", NEQ_STRICT: "!=",
	LESS: "<", GREATER: ">", LESS_EQ: "<=", GREATER_EQ: ">=",
	AND: "&&", OR: "||",
	AMP: "&", PIPE: "|", CARET: "^", SHL: "<<", SHR: ">>",
}

func (g *CodeGen) genBinary(n *BinaryExpr) (string, error) {
	left, err := g.genExpr(n.Left)
	if err != nil {
		return "", err
	}
	right, err := g.genExpr(n.Right)
	if err != nil {
		return "", err
	}

	leftStr := g.inferType(n.Left).Kind == TypeString
	rightStr := g.inferType(n.Right).Kind == TypeString

	if leftStr && rightStr {
		switch n.Op {
		case PLUS:
			return fmt.Sprintf("str_concat(%s, %s)", left, right), nil
		case EQ_COERCE:
			return fmt.Sprintf("(strcmp(%s, %s) == 0)", left, right), nil
		case NEQ_COERCE:
			return fmt.Sprintf("(strcmp(%s, %s) != 0)", left, right), nil
		case EQ_STRICT, NEQ_STRICT:
			// strict form compares identity, not content
		}
	}

	op, ok := binaryOps[n.Op]
	if !ok {
		return "", g.errf("cannot lower binary operator %s", n.Op)
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func (g *CodeGen) genLValue(e Expr) (string, error) {
	switch n := e.(type) {
	case *Ident:
		return n.Name, nil
	case *IndexExpr:
		return g.genIndex(n)
	case *PropertyExpr:
		obj, err := g.genExpr(n.Object)
		if err != nil {
			return "", err
		}
		return obj + "." + n.Name, nil
	default:
		return "", g.errf("invalid assignment target %s", e)
	}
}

func (g *CodeGen) genIndex(n *IndexExpr) (string, error) {
	target, err := g.genExpr(n.Target)
	if err != nil {
		return "", err
	}
	idx, err := g.genExpr(n.Index)
	if err != nil {
		return "", err
	}

	t := g.inferType(n.Target)
	switch {
	case t.Kind == TypeString:
		return fmt.Sprintf("str_char_at(%s, %s)", target, idx), nil
	case t.Kind == TypeArray && t.Len < 0:
		return fmt.Sprintf("((%s*)%s->data)[%s]", g.cType(t.Elem), target, idx), nil
	default:
		return fmt.Sprintf("%s[%s]", target, idx), nil
	}
}

func (g *CodeGen) genProperty(n *PropertyExpr) (string, error) {
	obj, err := g.genExpr(n.Object)
	if err != nil {
		return "", err
	}
	if n.Name == "length" {
		t := g.inferType(n.Object)
		switch {
		case t.Kind == TypeString:
			return fmt.Sprintf("(int32_t)strlen(%s)", obj), nil
		case t.Kind == TypeArray && t.Len < 0:
			return obj + "->length", nil
		case t.Kind == TypeArray:
			return fmt.Sprintf("%d", t.Len), nil
		}
	}
	return obj + "." + n.Name, nil
}

//  calls

// mathBuiltins maps the arithmetic builtins to the runtime math segment
// (or, for the float functions, straight to libm).
type mathBuiltin struct {
	cName string
	arity int
}

var mathBuiltins = map[string]mathBuiltin{
	"abs": {"abs_i32", 1}, "min": {"min_i32", 2}, "max": {"max_i32", 2},
	"pow": {"pow", 2}, "sqrt": {"sqrt", 1}, "floor": {"floor", 1}, "ceil": {"ceil", 1},
}

func (g *CodeGen) genCall(n *CallExpr) (string, error) {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		text, err := g.genExpr(a)
		if err != nil {
			return "", err
		}
		args[i] = text
	}

	if id, ok := n.Callee.(*Ident); ok {
		if id.Name == "print" {
			return "", g.errf("print is a statement, not an expression")
		}
		if id.Name == "unknown" {
			if len(args) != 1 {
				return "", g.errf("unknown takes 1 argument, got %d", len(args))
			}
			g.feats.unknown = true
			return fmt.Sprintf("create_unknown(%s)", args[0]), nil
		}
		if mb, ok := mathBuiltins[id.Name]; ok && g.lookupVar(id.Name) == nil && g.funcs[id.Name] == nil {
			if len(args) != mb.arity {
				return "", g.errf("%s takes %d argument(s), got %d", id.Name, mb.arity, len(args))
			}
			g.feats.math = true
			return fmt.Sprintf("%s(%s)", mb.cName, strings.Join(args, ", ")), nil
		}
		if _, ok := g.funcs[id.Name]; ok {
			return fmt.Sprintf("%s(%s)", id.Name, strings.Join(args, ", ")), nil
		}
		if t := g.lookupVar(id.Name); t != nil {
			if t.Kind != TypeFunction {
				return "", g.errf("%q is not callable (type %s)", id.Name, t)
			}
			return g.castCall(id.Name, args)
		}
		return "", g.errf("call to undefined function %q", id.Name)
	}

	callee, err := g.genExpr(n.Callee)
	if err != nil {
		return "", err
	}
	return g.castCall(callee, args)
}

// castCall invokes a closure value through the uniform two-int32 ABI:
// the void* is cast to int32_t(*)(int32_t, int32_t) and missing arguments
// pad with zero.
func (g *CodeGen) castCall(callee string, args []string) (string, error) {
	if len(args) > 2 {
		return "", g.errf("closure calls support at most 2 arguments, got %d", len(args))
	}
	for len(args) < 2 {
		args = append(args, "0")
	}
	return fmt.Sprintf("((int32_t(*)(int32_t, int32_t))%s)(%s)", callee, strings.Join(args, ", ")), nil
}

//  methods

// Builtin method arities, validated before dispatch so a wrong-arity call
// fails with a CodegenError instead of crashing the lowering pass.
var stringMethodArity = map[string]int{
	"trim": 0, "toUpperCase": 0, "toLowerCase": 0,
	"charAt": 1, "split": 1, "concat": 1,
	"replace": 2, "substring": 2,
}

var arrayMethodArity = map[string]int{
	"push": 1, "pop": 0, "join": 1, "reverse": 0,
	"map": 1, "filter": 1, "forEach": 1, "reduce": 2,
}

func (g *CodeGen) genMethodCall(n *MethodCallExpr) (string, error) {
	obj, err := g.genExpr(n.Object)
	if err != nil {
		return "", err
	}
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		// function-valued arguments keep their bare spelling; everything
		// else goes through normal expression lowering
		text, err := g.genExpr(a)
		if err != nil {
			return "", err
		}
		args[i] = text
	}
	t := g.inferType(n.Object)

	if t.Kind == TypeString {
		want, ok := stringMethodArity[n.Method]
		if !ok {
			return "", g.errf("string has no method %q", n.Method)
		}
		if len(args) != want {
			return "", g.errf("%s takes %d argument(s), got %d", n.Method, want, len(args))
		}
		switch n.Method {
		case "trim":
			return fmt.Sprintf("str_trim(%s)", obj), nil
		case "toUpperCase":
			return fmt.Sprintf("str_to_upper(%s)", obj), nil
		case "toLowerCase":
			return fmt.Sprintf("str_to_lower(%s)", obj), nil
		case "replace":
			return fmt.Sprintf("str_replace(%s, %s, %s)", obj, args[0], args[1]), nil
		case "split":
			return fmt.Sprintf("str_split(%s, %s)", obj, args[0]), nil
		case "charAt":
			return fmt.Sprintf("str_char_at(%s, %s)", obj, args[0]), nil
		case "substring":
			return fmt.Sprintf("str_substring(%s, %s, %s)", obj, args[0], args[1]), nil
		case "concat":
			return fmt.Sprintf("str_concat(%s, %s)", obj, args[0]), nil
		}
		return "", g.errf("string has no method %q", n.Method)
	}

	if t.Kind == TypeArray && t.Len < 0 {
		want, ok := arrayMethodArity[n.Method]
		if !ok {
			return "", g.errf("array has no method %q", n.Method)
		}
		if len(args) != want {
			return "", g.errf("%s takes %d argument(s), got %d", n.Method, want, len(args))
		}
		stringElems := t.Elem != nil && t.Elem.Kind == TypeString
		switch n.Method {
		case "push":
			if stringElems {
				return fmt.Sprintf("array_push_string(%s, %s)", obj, args[0]), nil
			}
			return fmt.Sprintf("array_push_i32(%s, %s)", obj, args[0]), nil
		case "pop":
			return fmt.Sprintf("array_pop_i32(%s)", obj), nil
		case "join":
			if !stringElems {
				return "", g.errf("join requires a string array")
			}
			return fmt.Sprintf("array_join_string(%s, %s)", obj, args[0]), nil
		}
		if stringElems {
			return "", g.errf("string array has no method %q", n.Method)
		}
		switch n.Method {
		case "reverse":
			g.feats.hof = true
			return fmt.Sprintf("array_reverse_i32(%s)", obj), nil
		case "map":
			g.feats.hof = true
			return fmt.Sprintf("array_map_i32(%s, %s)", obj, args[0]), nil
		case "filter":
			g.feats.hof = true
			return fmt.Sprintf("array_filter_i32(%s, %s)", obj, args[0]), nil
		case "reduce":
			g.feats.hof = true
			return fmt.Sprintf("array_reduce_i32(%s, %s, %s)", obj, args[0], args[1]), nil
		case "forEach":
			g.feats.hof = true
			return fmt.Sprintf("array_forEach_i32(%s, %s)", obj, args[0]), nil
		}
		return "", g.errf("array has no method %q", n.Method)
	}

	return "", g.errf("cannot lower method call %s.%s", obj, n.Method)
}

//  match

// genMatch lowers a match expression to a GNU statement expression wrapping
// a C switch, so the whole construct stays usable in value position. Arm
// patterns must lower to integer constant expressions; the downstream C
// compiler enforces that.
func (g *CodeGen) genMatch(n *MatchExpr) (string, error) {
	scrutinee, err := g.genExpr(n.Scrutinee)
	if err != nil {
		return "", err
	}
	g.tmp++
	res := fmt.Sprintf("__match_%d", g.tmp)

	var b strings.Builder
	fmt.Fprintf(&b, "({ int32_t %s; switch (%s) {", res, scrutinee)
	hasDefault := false
	for _, arm := range n.Arms {
		body, err := g.genExpr(arm.Body)
		if err != nil {
			return "", err
		}
		if arm.Pattern == nil {
			hasDefault = true
			fmt.Fprintf(&b, " default: %s = %s; break;", res, body)
			continue
		}
		pat, err := g.genExpr(arm.Pattern)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " case %s: %s = %s; break;", pat, res, body)
	}
	if !hasDefault {
		fmt.Fprintf(&b, " default: %s = 0; break;", res)
	}
	fmt.Fprintf(&b, " } %s; })", res)
	return b.String(), nil
}

//  interpolated strings in value position

// genFStringValue builds a char* by folding the parts through str_concat,
// converting non-string pieces with the str_from_ helpers.
func (g *CodeGen) genFStringValue(n *FStringLit) (string, error) {
	g.feats.strFrom = true
	result := ""
	for _, p := range n.Parts {
		var piece string
		if p.Expr == nil {
			piece = `"` + cEscape(p.Text) + `"`
		} else {
			text, err := g.genExpr(p.Expr)
			if err != nil {
				return "", err
			}
			switch g.inferType(p.Expr).Kind {
			case TypeString:
				piece = text
			case TypeF32, TypeF64:
				piece = fmt.Sprintf("str_from_f64(%s)", text)
			default:
				piece = fmt.Sprintf("str_from_i32(%s)", text)
			}
		}
		if result == "" {
			result = piece
		} else {
			result = fmt.Sprintf("str_concat(%s, %s)", result, piece)
		}
	}
	if result == "" {
		result = `""`
	}
	return result, nil
}

//  function literals

// genFuncLitExpr lowers a function literal at its evaluation site. The
// first pass assigns the literal its index and capture set; both passes
// emit the same evaluation expression. A literal without captures is just
// the lifted function's name; with captures, a comma expression stores the
// current values into the capture cells before yielding the pointer.
func (g *CodeGen) genFuncLitExpr(n *FuncLit) (string, error) {
	idx, registered := g.lambdaIdx[n]
	if !registered {
		idx = len(g.lambdas)
		info := &lambdaInfo{index: idx, fn: n}
		for _, name := range FreeVariables(n) {
			t := g.lookupLocalVar(name)
			if t == nil {
				continue // file-scope variable, function, or builtin
			}
			info.captures = append(info.captures, capture{name: name, ctyp: g.cType(t)})
		}
		g.lambdas = append(g.lambdas, info)
		g.lambdaIdx[n] = idx

		// dry-run the body so nested literals and runtime needs register
		if err := g.genLambdaBodyDiscard(info); err != nil {
			return "", err
		}
	}

	info := g.lambdas[idx]
	name := fmt.Sprintf("__lambda_%d", idx)
	if len(info.captures) == 0 {
		return name, nil
	}

	var b strings.Builder
	b.WriteString("(")
	for _, c := range info.captures {
		fmt.Fprintf(&b, "__cap_%d_%s = %s, ", idx, c.name, c.name)
	}
	fmt.Fprintf(&b, "(void*)%s)", name)
	return b.String(), nil
}

// genLambdaBodyDiscard walks a lambda body during pass 1 without emitting.
func (g *CodeGen) genLambdaBodyDiscard(info *lambdaInfo) error {
	if g.pass != 1 {
		return nil
	}
	return g.genLambdaBody(info)
}

// genLambdaDef emits one lifted lambda: its capture cells, the #define
// aliases that route body references to them, and the function itself.
func (g *CodeGen) genLambdaDef(info *lambdaInfo) error {
	for _, c := range info.captures {
		g.writef("%s __cap_%d_%s;", c.ctyp, info.index, c.name)
	}
	for _, c := range info.captures {
		g.writef("#define %s __cap_%d_%s", c.name, info.index, c.name)
	}
	if err := g.genLambdaBody(info); err != nil {
		return err
	}
	for _, c := range info.captures {
		g.writef("#undef %s", c.name)
	}
	g.writef("")
	return nil
}

// genLambdaBody emits the lifted function for a literal. Every lambda
// shares the two-int32 ABI: missing parameters pad with a dummy.
func (g *CodeGen) genLambdaBody(info *lambdaInfo) error {
	fn := info.fn
	if len(fn.Params) > 2 {
		return g.errf("function literals support at most 2 parameters, got %d", len(fn.Params))
	}

	params := make([]string, 0, 2)
	for _, p := range fn.Params {
		params = append(params, g.cParamType(&p.Type)+" "+p.Name)
	}
	if len(params) < 2 {
		params = append(params, "int32_t dummy")
	}
	if len(params) < 2 {
		params = append(params, "int32_t dummy2")
	}

	savedScopes := g.scopes
	g.scopes = nil
	// file-scope names stay resolvable inside the lambda body
	if len(savedScopes) > 0 && savedScopes[0].kind == scopeGlobal {
		g.scopes = []*genScope{savedScopes[0]}
	}
	g.pushScope(scopeFunction)
	for i := range fn.Params {
		g.declareVar(fn.Params[i].Name, &fn.Params[i].Type)
	}
	for _, c := range info.captures {
		// aliased to the cell by the surrounding #define; type tracking
		// still wants the name in scope
		g.declareVar(c.name, typeFromC(c.ctyp))
	}

	g.writef("int32_t __lambda_%d(%s) {", info.index, strings.Join(params, ", "))
	g.indent++
	_, err := g.genStmts(fn.Body.Stmts)
	g.indent--
	g.writef("}")

	g.scopes = savedScopes
	return err
}

//  type mapping

var cScalarTypes = map[TypeKind]string{
	TypeI8:   "int8_t",
	TypeI16:  "int16_t",
	TypeI32:  "int32_t",
	TypeI64:  "int64_t",
	TypeI128: "__int128",
	TypeU8:   "uint8_t",
	TypeU16:  "uint16_t",
	TypeU32:  "uint32_t",
	TypeU64:  "uint64_t",
	TypeU128: "unsigned __int128",
	TypeF32:  "float",
	TypeF64:  "double",
	TypeBool: "bool",
}

func (g *CodeGen) cType(t *Type) string {
	if t == nil {
		return "int32_t"
	}
	if c, ok := cScalarTypes[t.Kind]; ok {
		return c
	}
	switch t.Kind {
	case TypeString:
		return "char*"
	case TypeNothing:
		return "void"
	case TypeUnknown:
		g.feats.unknown = true
		return "Unknown*"
	case TypeFunction:
		return "void*"
	case TypeArray:
		if t.Len < 0 {
			return "DynamicArray*"
		}
		return g.cType(t.Elem)
	default:
		return "int32_t"
	}
}

func (g *CodeGen) cReturnType(t *Type) string {
	if t == nil {
		return "void"
	}
	return g.cType(t)
}

// cParamType is cType for parameter positions, where a fixed-size array
// decays to a pointer to its element type.
func (g *CodeGen) cParamType(t *Type) string {
	if t != nil && t.Kind == TypeArray && t.Len >= 0 {
		return g.cType(t.Elem) + "*"
	}
	return g.cType(t)
}

// typeFromC recovers the handful of source types a capture cell can hold.
func typeFromC(c string) *Type {
	switch c {
	case "char*":
		return &Type{Kind: TypeString}
	case "double":
		return &Type{Kind: TypeF64}
	case "float":
		return &Type{Kind: TypeF32}
	case "bool":
		return &Type{Kind: TypeBool}
	case "void*":
		return &Type{Kind: TypeFunction}
	default:
		return &Type{Kind: TypeI32}
	}
}

//  type inference

var typeI32 = &Type{Kind: TypeI32}

// inferType gives a best-effort static type for an expression; i32 is the
// fallback for everything it cannot see through.
func (g *CodeGen) inferType(e Expr) *Type {
	switch n := e.(type) {
	case *IntLit:
		return typeI32
	case *FloatLit:
		return &Type{Kind: TypeF64}
	case *StringLit:
		return &Type{Kind: TypeString}
	case *BoolLit:
		return &Type{Kind: TypeBool}
	case *FStringLit:
		return &Type{Kind: TypeString}
	case *NothingLit:
		return typeI32
	case *Ident:
		if t := g.lookupVar(n.Name); t != nil {
			return t
		}
		return typeI32
	case *FuncLit:
		return &Type{Kind: TypeFunction}
	case *ObjectLit:
		return &Type{Kind: TypeObject}
	case *ArrayLit:
		elem := typeI32
		if len(n.Elements) > 0 {
			elem = g.inferType(n.Elements[0])
		}
		return &Type{Kind: TypeArray, Elem: elem, Len: -1}
	case *UnaryExpr:
		if n.Op == NOT {
			return &Type{Kind: TypeBool}
		}
		return g.inferType(n.Operand)
	case *BinaryExpr:
		switch n.Op {
		case AND, OR, EQ_COERCE, EQ_STRICT, NEQ_COERCE, NEQ_STRICT,
			LESS, GREATER, LESS_EQ, GREATER_EQ:
			return &Type{Kind: TypeBool}
		}
		lt, rt := g.inferType(n.Left), g.inferType(n.Right)
		if lt.Kind == TypeString || rt.Kind == TypeString {
			return &Type{Kind: TypeString}
		}
		if lt.Kind == TypeF64 || rt.Kind == TypeF64 || lt.Kind == TypeF32 || rt.Kind == TypeF32 {
			return &Type{Kind: TypeF64}
		}
		return lt
	case *AssignExpr:
		return g.inferType(n.Value)
	case *IndexExpr:
		t := g.inferType(n.Target)
		if t.Kind == TypeArray && t.Elem != nil {
			return t.Elem
		}
		if t.Kind == TypeString {
			return &Type{Kind: TypeString}
		}
		return typeI32
	case *PropertyExpr:
		if n.Name == "length" {
			return typeI32
		}
		return typeI32
	case *MethodCallExpr:
		return g.inferMethodType(n)
	case *CallExpr:
		if id, ok := n.Callee.(*Ident); ok {
			if fn, ok := g.funcs[id.Name]; ok {
				if fn.Return == nil {
					return &Type{Kind: TypeNothing}
				}
				return fn.Return
			}
			if id.Name == "unknown" {
				return &Type{Kind: TypeUnknown}
			}
			switch id.Name {
			case "sqrt", "pow", "floor", "ceil":
				return &Type{Kind: TypeF64}
			}
		}
		return typeI32
	case *MatchExpr:
		if len(n.Arms) > 0 {
			return g.inferType(n.Arms[0].Body)
		}
		return typeI32
	default:
		return typeI32
	}
}

func (g *CodeGen) inferMethodType(n *MethodCallExpr) *Type {
	t := g.inferType(n.Object)
	if t.Kind == TypeString {
		switch n.Method {
		case "split":
			return &Type{Kind: TypeArray, Elem: &Type{Kind: TypeString}, Len: -1}
		default:
			return &Type{Kind: TypeString}
		}
	}
	if t.Kind == TypeArray {
		switch n.Method {
		case "join":
			return &Type{Kind: TypeString}
		case "map", "filter":
			return t
		default:
			return typeI32
		}
	}
	return typeI32
}

//  string escaping

// cEscape renders a decoded string value as C string-literal content.
func cEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatEscape renders literal text destined for a printf format string,
// where % additionally needs doubling.
func formatEscape(s string) string {
	return strings.ReplaceAll(cEscape(s), "%", "%%")
}
