package parser

import "adastra/internal/errs"

// Stmt is one statement form of spec.md §4.4: "let, expression,
// assignment-initialization, if, match, loop, for-in, break, continue,
// return, use, block". `if`/`match`/`block` statements are simply an
// ExprStmt wrapping the corresponding expression.
type Stmt interface {
	Accept(v StmtVisitor) any
	Span() errs.Span
}

// LetStmt is `let name = expr;` — a declaration that also initializes — or
// `let name;`, an uninitialized declaration with a nil Expr.
type LetStmt struct {
	base
	Name string
	Expr Expr
}

func (l *LetStmt) Accept(v StmtVisitor) any { return v.VisitLetStmt(l) }

// ExprStmt wraps any expression used in statement position, including the
// assignment-initialization form `name = expr;` (an Assign expression) and
// `if`/`match`/bare `{…}` block statements.
type ExprStmt struct {
	base
	Expr Expr
}

func (e *ExprStmt) Accept(v StmtVisitor) any { return v.VisitExprStmt(e) }

// LoopStmt is `loop { body }`, an unconditional loop broken only by
// `break`/`return` (spec.md §4.4).
type LoopStmt struct {
	base
	Body *Block
}

func (l *LoopStmt) Accept(v StmtVisitor) any { return v.VisitLoopStmt(l) }

// ForInStmt is `for name in collection { body }` (spec.md §4.4); the loop
// runs by index over the collection's length, and a single value whose Type
// implements IterBoundsFn (Range) is iterated over its bounds.
type ForInStmt struct {
	base
	Name       string
	Collection Expr
	Body       *Block
}

func (f *ForInStmt) Accept(v StmtVisitor) any { return v.VisitForInStmt(f) }

// BreakStmt is `break;`.
type BreakStmt struct{ base }

func (b *BreakStmt) Accept(v StmtVisitor) any { return v.VisitBreakStmt(b) }

// ContinueStmt is `continue;`.
type ContinueStmt struct{ base }

func (c *ContinueStmt) Accept(v StmtVisitor) any { return v.VisitContinueStmt(c) }

// ReturnStmt is `return [expr];`; Value is nil for a bare `return;` (nil
// result, per spec.md §4.1's Nil type).
type ReturnStmt struct {
	base
	Value Expr
}

func (r *ReturnStmt) Accept(v StmtVisitor) any { return v.VisitReturnStmt(r) }

// UseStmt is `use path;` or `use path alias;`, introducing a scope-qualified package alias
// (spec.md §4.4 "each `use` scope").
type UseStmt struct {
	base
	Path  string
	Alias string
}

func (u *UseStmt) Accept(v StmtVisitor) any { return v.VisitUseStmt(u) }

// InvalidStmt is the statement-level error-recovery counterpart to
// Invalid: emitted so the parser can skip to the next recognizable
// statement boundary and continue (spec.md §4.4).
type InvalidStmt struct{ base }

func (n *InvalidStmt) Accept(v StmtVisitor) any { return v.VisitInvalidStmt(n) }

type StmtVisitor interface {
	VisitLetStmt(s *LetStmt) any
	VisitExprStmt(s *ExprStmt) any
	VisitLoopStmt(s *LoopStmt) any
	VisitForInStmt(s *ForInStmt) any
	VisitBreakStmt(s *BreakStmt) any
	VisitContinueStmt(s *ContinueStmt) any
	VisitReturnStmt(s *ReturnStmt) any
	VisitUseStmt(s *UseStmt) any
	VisitInvalidStmt(s *InvalidStmt) any
}
