package compiler

import "sort"

// FreeVariables returns the names a function literal reads without binding
// them itself, sorted for deterministic downstream use. Parameters bind for
// the whole body; a let binds only for the statements after it, so a read of
// an outer name before a shadowing let still counts as free. Which of the
// free names are actual captures (rather than globals or known functions)
// is decided by the caller against its scope.
func FreeVariables(fn *FuncLit) []string {
	bound := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		bound[p.Name] = true
	}
	free := map[string]bool{}
	freeInBlock(fn.Body, bound, free)

	names := make([]string, 0, len(free))
	for n := range free {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// freeInBlock walks a block with its own scope: bindings introduced inside
// it do not leak to the caller's bound set.
func freeInBlock(b *BlockStmt, bound, free map[string]bool) {
	if b == nil {
		return
	}
	inner := copyBound(bound)
	for _, s := range b.Stmts {
		freeInStmt(s, inner, free)
	}
}

func freeInStmt(s Stmt, bound, free map[string]bool) {
	switch n := s.(type) {
	case *VariableDecl:
		// Initializer is evaluated before the name exists.
		freeInExpr(n.Init, bound, free)
		bound[n.Name] = true
	case *FunctionDecl:
		inner := copyBound(bound)
		for _, p := range n.Params {
			inner[p.Name] = true
		}
		freeInBlock(n.Body, inner, free)
		bound[n.Name] = true
	case *ReturnStmt:
		freeInExpr(n.Value, bound, free)
	case *ExprStmt:
		freeInExpr(n.Expr, bound, free)
	case *IfStmt:
		freeInExpr(n.Cond, bound, free)
		freeInBlock(n.Then, bound, free)
		if n.Else != nil {
			freeInStmt(n.Else, copyBound(bound), free)
		}
	case *WhileStmt:
		freeInExpr(n.Cond, bound, free)
		freeInBlock(n.Body, bound, free)
	case *ForStmt:
		inner := copyBound(bound)
		if n.Init != nil {
			freeInStmt(n.Init, inner, free)
		}
		freeInExpr(n.Cond, inner, free)
		freeInExpr(n.Post, inner, free)
		freeInBlock(n.Body, inner, free)
	case *ForInStmt:
		freeInExpr(n.Iterable, bound, free)
		inner := copyBound(bound)
		inner[n.Var] = true
		freeInBlock(n.Body, inner, free)
	case *SwitchStmt:
		freeInExpr(n.Target, bound, free)
		for _, c := range n.Cases {
			freeInExpr(c.Value, bound, free)
			inner := copyBound(bound)
			for _, cs := range c.Body {
				freeInStmt(cs, inner, free)
			}
		}
		inner := copyBound(bound)
		for _, ds := range n.Default {
			freeInStmt(ds, inner, free)
		}
	case *DeferStmt:
		freeInStmt(n.Stmt, bound, free)
	case *BlockStmt:
		freeInBlock(n, bound, free)
	case *BreakStmt, *ContinueStmt, *ImportStmt, nil:
		// no expressions
	}
}

func freeInExpr(e Expr, bound, free map[string]bool) {
	switch n := e.(type) {
	case nil:
		return
	case *Ident:
		if !bound[n.Name] {
			free[n.Name] = true
		}
	case *FStringLit:
		for _, p := range n.Parts {
			freeInExpr(p.Expr, bound, free)
		}
	case *BinaryExpr:
		freeInExpr(n.Left, bound, free)
		freeInExpr(n.Right, bound, free)
	case *UnaryExpr:
		freeInExpr(n.Operand, bound, free)
	case *CallExpr:
		freeInExpr(n.Callee, bound, free)
		for _, a := range n.Args {
			freeInExpr(a, bound, free)
		}
	case *AssignExpr:
		freeInExpr(n.Target, bound, free)
		freeInExpr(n.Value, bound, free)
	case *ArrayLit:
		for _, el := range n.Elements {
			freeInExpr(el, bound, free)
		}
	case *IndexExpr:
		freeInExpr(n.Target, bound, free)
		freeInExpr(n.Index, bound, free)
	case *ObjectLit:
		for _, p := range n.Props {
			freeInExpr(p.Value, bound, free)
		}
	case *PropertyExpr:
		freeInExpr(n.Object, bound, free)
	case *MethodCallExpr:
		freeInExpr(n.Object, bound, free)
		for _, a := range n.Args {
			freeInExpr(a, bound, free)
		}
	case *MatchExpr:
		freeInExpr(n.Scrutinee, bound, free)
		for _, a := range n.Arms {
			freeInExpr(a.Pattern, bound, free)
			freeInExpr(a.Body, bound, free)
		}
	case *FuncLit:
		// A nested literal contributes its own free names, minus anything
		// this scope binds.
		for _, name := range FreeVariables(n) {
			if !bound[name] {
				free[name] = true
			}
		}
	}
}

func copyBound(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
