package compiler

import (
	"fmt"
	"strings"
)

// Program is the root of the tree: an ordered list of top-level statements.
// The tree is built bottom-up by the parser in one pass and is read-only
// afterwards; lowering clones subtrees when it needs to rewrite them.
type Program struct {
	Statements []Stmt
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	exprNode()
	String() string
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
}

func (*IntLit) exprNode()        {}
func (l *IntLit) String() string { return fmt.Sprintf("%d", l.Value) }

// FloatLit is a float literal. Lexeme preserves the source spelling so that
// lowering re-emits exactly what was written (3.14, 1e5, 2.5E-3).
type FloatLit struct {
	Value  float64
	Lexeme string
}

func (*FloatLit) exprNode()        {}
func (l *FloatLit) String() string { return l.Lexeme }

// StringLit is a plain or raw string literal holding its decoded value.
type StringLit struct {
	Value string
	Raw   bool
}

func (*StringLit) exprNode()        {}
func (l *StringLit) String() string { return fmt.Sprintf("%q", l.Value) }

// BoolLit is true or false.
type BoolLit struct {
	Value bool
}

func (*BoolLit) exprNode()        {}
func (l *BoolLit) String() string { return fmt.Sprintf("%t", l.Value) }

// FPart is one segment of an interpolated string: literal text when Expr is
// nil, otherwise an embedded expression.
type FPart struct {
	Text string
	Expr Expr
}

// FStringLit is an interpolated string: an ordered sequence of literal-text
// and embedded-expression parts.
type FStringLit struct {
	Parts []FPart
}

func (*FStringLit) exprNode() {}
func (l *FStringLit) String() string {
	var b strings.Builder
	b.WriteString(`f"`)
	for _, p := range l.Parts {
		if p.Expr != nil {
			b.WriteString("{")
			b.WriteString(p.Expr.String())
			b.WriteString("}")
		} else {
			b.WriteString(p.Text)
		}
	}
	b.WriteString(`"`)
	return b.String()
}

// NothingLit is the "nothing" literal, lowered to NULL.
type NothingLit struct{}

func (*NothingLit) exprNode()        {}
func (*NothingLit) String() string { return "nothing" }

// Ident is a read of a named variable. Identifiers are untyped strings,
// resolved only by lexical scoping during free-variable analysis.
type Ident struct {
	Name string
}

func (*Ident) exprNode()        {}
func (i *Ident) String() string { return i.Name }

// BinaryExpr represents Left Op Right. Op is the operator's TokenKind.
type BinaryExpr struct {
	Op    TokenKind
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryExpr represents a prefix operator: -x, not x, ~x.
type UnaryExpr struct {
	Op      TokenKind
	Operand Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.Operand) }

// CallExpr represents callee(args).
type CallExpr struct {
	Callee Expr
	Args   []Expr
}

func (*CallExpr) exprNode() {}
func (c *CallExpr) String() string {
	return fmt.Sprintf("Call(%s, args=%v)", c.Callee, c.Args)
}

// AssignExpr represents Target = Value. Compound assignments are desugared
// by the parser into an AssignExpr whose Value is a BinaryExpr over a clone
// of the target.
type AssignExpr struct {
	Target Expr
	Value  Expr
}

func (*AssignExpr) exprNode() {}
func (a *AssignExpr) String() string {
	return fmt.Sprintf("Assign(%s = %s)", a.Target, a.Value)
}

// ArrayLit represents [e1, e2, ...].
type ArrayLit struct {
	Elements []Expr
}

func (*ArrayLit) exprNode() {}
func (a *ArrayLit) String() string {
	return fmt.Sprintf("ArrayLit(len=%d, %v)", len(a.Elements), a.Elements)
}

// IndexExpr represents Target[Index].
type IndexExpr struct {
	Target Expr
	Index  Expr
}

func (*IndexExpr) exprNode()        {}
func (e *IndexExpr) String() string { return fmt.Sprintf("(%s[%s])", e.Target, e.Index) }

// Property is one ordered key/value pair of an object literal.
type Property struct {
	Key   string
	Value Expr
}

// ObjectLit represents { key: expr, ... } with ordered properties.
type ObjectLit struct {
	Props []Property
}

func (*ObjectLit) exprNode() {}
func (o *ObjectLit) String() string {
	var b strings.Builder
	b.WriteString("ObjectLit{")
	for i, p := range o.Props {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Key, p.Value)
	}
	b.WriteString("}")
	return b.String()
}

// PropertyExpr represents Object.Name.
type PropertyExpr struct {
	Object Expr
	Name   string
}

func (*PropertyExpr) exprNode()        {}
func (e *PropertyExpr) String() string { return fmt.Sprintf("(%s.%s)", e.Object, e.Name) }

// MethodCallExpr represents Object.Method(args).
type MethodCallExpr struct {
	Object Expr
	Method string
	Args   []Expr
}

func (*MethodCallExpr) exprNode() {}
func (e *MethodCallExpr) String() string {
	return fmt.Sprintf("MethodCall(%s.%s, args=%v)", e.Object, e.Method, e.Args)
}

// MatchArm is one ordered arm of a match expression. Pattern nil is the
// wildcard arm.
type MatchArm struct {
	Pattern Expr
	Body    Expr
}

// MatchExpr represents match (scrutinee) { pattern => body, ... }.
type MatchExpr struct {
	Scrutinee Expr
	Arms      []MatchArm
}

func (*MatchExpr) exprNode() {}
func (m *MatchExpr) String() string {
	return fmt.Sprintf("Match(%s, arms=%d)", m.Scrutinee, len(m.Arms))
}

// Param is one declared function parameter.
type Param struct {
	Name string
	Type Type
}

func (p Param) String() string { return fmt.Sprintf("%s: %s", p.Name, &p.Type) }

// FuncLit is a function literal (closure). Lowering synthesizes a named
// top-level function for every literal it encounters.
type FuncLit struct {
	Params []Param
	Return *Type
	Body   *BlockStmt
}

func (*FuncLit) exprNode() {}
func (f *FuncLit) String() string {
	return fmt.Sprintf("FuncLit(params=%v, body=%s)", f.Params, f.Body)
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	String() string
}

// FunctionDecl represents function name(params)[: ret] { body }.
type FunctionDecl struct {
	Name     string
	Params   []Param
	Return   *Type // nil: returns nothing
	Body     *BlockStmt
	Exported bool
}

func (*FunctionDecl) stmtNode() {}
func (f *FunctionDecl) String() string {
	return fmt.Sprintf("FunctionDecl(%s, params=%v, body=%s)", f.Name, f.Params, f.Body)
}

// VariableDecl represents let name[: type] [= init];
type VariableDecl struct {
	Name string
	Type *Type // nil: inferred from the initializer's literal shape
	Init Expr  // may be nil
}

func (*VariableDecl) stmtNode() {}
func (d *VariableDecl) String() string {
	switch {
	case d.Type != nil && d.Init != nil:
		return fmt.Sprintf("VariableDecl(%s: %s = %s)", d.Name, d.Type, d.Init)
	case d.Type != nil:
		return fmt.Sprintf("VariableDecl(%s: %s)", d.Name, d.Type)
	default:
		return fmt.Sprintf("VariableDecl(%s = %s)", d.Name, d.Init)
	}
}

// ReturnStmt represents return [expr];
type ReturnStmt struct {
	Value Expr // may be nil
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	if r.Value == nil {
		return "ReturnStmt()"
	}
	return fmt.Sprintf("ReturnStmt(%s)", r.Value)
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode()        {}
func (e *ExprStmt) String() string { return fmt.Sprintf("ExprStmt(%s)", e.Expr) }

// IfStmt represents if (cond) { then } [else ...]. Else is either a
// *BlockStmt or a chained *IfStmt.
type IfStmt struct {
	Cond Expr
	Then *BlockStmt
	Else Stmt // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.Else != nil {
		return fmt.Sprintf("IfStmt(%s then %s else %s)", i.Cond, i.Then, i.Else)
	}
	return fmt.Sprintf("IfStmt(%s then %s)", i.Cond, i.Then)
}

// WhileStmt represents while (cond) { body }.
type WhileStmt struct {
	Cond Expr
	Body *BlockStmt
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(%s do %s)", w.Cond, w.Body)
}

// ForStmt represents the C-style for (init; cond; post) { body }.
// Any of the three header slots may be nil.
type ForStmt struct {
	Init Stmt
	Cond Expr
	Post Expr
	Body *BlockStmt
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%v, cond=%v, post=%v, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}

// ForInStmt represents for (name in iterable) { body }.
type ForInStmt struct {
	Var      string
	Iterable Expr
	Body     *BlockStmt
}

func (*ForInStmt) stmtNode() {}
func (f *ForInStmt) String() string {
	return fmt.Sprintf("ForInStmt(%s in %s, body=%s)", f.Var, f.Iterable, f.Body)
}

// BreakStmt represents break;
type BreakStmt struct{}

func (*BreakStmt) stmtNode()        {}
func (*BreakStmt) String() string { return "BreakStmt" }

// ContinueStmt represents continue;
type ContinueStmt struct{}

func (*ContinueStmt) stmtNode()        {}
func (*ContinueStmt) String() string { return "ContinueStmt" }

// SwitchCase is one ordered case of a switch statement. Case values are
// arbitrary expressions; deduplication and exhaustiveness are deferred to
// the downstream compiler.
type SwitchCase struct {
	Value Expr
	Body  []Stmt
}

// SwitchStmt represents switch (target) { case v: ... default: ... }.
type SwitchStmt struct {
	Target  Expr
	Cases   []SwitchCase
	Default []Stmt // nil when absent
}

func (*SwitchStmt) stmtNode() {}
func (s *SwitchStmt) String() string {
	return fmt.Sprintf("SwitchStmt(%s, cases=%d, default=%d)", s.Target, len(s.Cases), len(s.Default))
}

// DeferStmt registers a statement to run when the enclosing dynamic scope
// exits, in reverse registration order.
type DeferStmt struct {
	Stmt Stmt
}

func (*DeferStmt) stmtNode()        {}
func (d *DeferStmt) String() string { return fmt.Sprintf("DeferStmt(%s)", d.Stmt) }

// BlockStmt represents a nested { statement; ... } scope.
type BlockStmt struct {
	Stmts []Stmt
}

func (*BlockStmt) stmtNode() {}
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// ImportStmt represents import a, b from "path"; — accepted syntactically,
// never resolved.
type ImportStmt struct {
	Names []string
	Path  string
}

func (*ImportStmt) stmtNode() {}
func (i *ImportStmt) String() string {
	return fmt.Sprintf("ImportStmt(%v from %q)", i.Names, i.Path)
}

// cloneExpr deep-copies an expression subtree. Every subtree is owned
// exclusively by its parent, so desugaring that reuses a node (compound
// assignment) must copy it instead of sharing it.
func cloneExpr(e Expr) Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *IntLit:
		c := *n
		return &c
	case *FloatLit:
		c := *n
		return &c
	case *StringLit:
		c := *n
		return &c
	case *BoolLit:
		c := *n
		return &c
	case *NothingLit:
		return &NothingLit{}
	case *Ident:
		c := *n
		return &c
	case *FStringLit:
		parts := make([]FPart, len(n.Parts))
		for i, p := range n.Parts {
			parts[i] = FPart{Text: p.Text, Expr: cloneExpr(p.Expr)}
		}
		return &FStringLit{Parts: parts}
	case *BinaryExpr:
		return &BinaryExpr{Op: n.Op, Left: cloneExpr(n.Left), Right: cloneExpr(n.Right)}
	case *UnaryExpr:
		return &UnaryExpr{Op: n.Op, Operand: cloneExpr(n.Operand)}
	case *CallExpr:
		return &CallExpr{Callee: cloneExpr(n.Callee), Args: cloneExprs(n.Args)}
	case *AssignExpr:
		return &AssignExpr{Target: cloneExpr(n.Target), Value: cloneExpr(n.Value)}
	case *ArrayLit:
		return &ArrayLit{Elements: cloneExprs(n.Elements)}
	case *IndexExpr:
		return &IndexExpr{Target: cloneExpr(n.Target), Index: cloneExpr(n.Index)}
	case *ObjectLit:
		props := make([]Property, len(n.Props))
		for i, p := range n.Props {
			props[i] = Property{Key: p.Key, Value: cloneExpr(p.Value)}
		}
		return &ObjectLit{Props: props}
	case *PropertyExpr:
		return &PropertyExpr{Object: cloneExpr(n.Object), Name: n.Name}
	case *MethodCallExpr:
		return &MethodCallExpr{Object: cloneExpr(n.Object), Method: n.Method, Args: cloneExprs(n.Args)}
	case *MatchExpr:
		arms := make([]MatchArm, len(n.Arms))
		for i, a := range n.Arms {
			arms[i] = MatchArm{Pattern: cloneExpr(a.Pattern), Body: cloneExpr(a.Body)}
		}
		return &MatchExpr{Scrutinee: cloneExpr(n.Scrutinee), Arms: arms}
	case *FuncLit:
		// Function literals are never legal assignment targets; a clone
		// would also duplicate the synthesized function. Share-free by
		// construction, so return the node unchanged.
		return n
	default:
		return e
	}
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = cloneExpr(e)
	}
	return out
}
