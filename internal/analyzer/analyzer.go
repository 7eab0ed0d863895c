// Package analyzer implements the Semantic Analyzer (C5 of SPEC_FULL.md):
// scope/symbol resolution, an initialization lattice, dynamic type-set
// inference, closure capture marking, and the three diagnostic depth bands
// of spec.md §4.5. It has no teacher equivalent in internal/ — it is built
// fresh as a manual recursive type-switch over internal/parser's Stmt/Expr
// nodes, the same dispatch idiom internal/compiler already uses, rather
// than the parser's own separate Accept/Visitor split.
package analyzer

import (
	"fmt"
	"strconv"

	"adastra/internal/errs"
	"adastra/internal/parser"
)

// InitState is a lattice point in spec.md §4.5's initialization tracking:
// uninit < maybeInit < init. Upgrading only ever moves up the lattice.
type InitState int

const (
	Uninit InitState = iota
	MaybeInit
	Init
)

func (s InitState) join(other InitState) InitState {
	if s < other {
		return other
	}
	return s
}

// Symbol is one resolved name: a local, a parameter, `self`, or a captured
// outer binding.
type Symbol struct {
	Name       string
	Init       InitState
	Captured   bool // referenced from a nested function body
	DeclSpan   errs.Span
	TypeHints  map[string]struct{} // allocated empty for every symbol; nothing adds Type names to it
	InitExpr   parser.Expr         // the let-binding's rhs, nil for params/for-loop names/uninitialized lets
	NilTested  bool                // true once `name?` has been seen in program order
}

// Scope is introduced by the script body, a block, a function body, a for
// header, or a use scope (spec.md §4.4 "Scopes and resolution").
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
	isFunc  bool // a function-body scope: enclosing scopes are "outer" for capture purposes
}

func newScope(parent *Scope, isFunc bool) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*Symbol), isFunc: isFunc}
}

func (s *Scope) declare(name string, span errs.Span, init InitState) *Symbol {
	sym := &Symbol{Name: name, Init: init, DeclSpan: span, TypeHints: make(map[string]struct{})}
	s.symbols[name] = sym
	return sym
}

// resolve walks outward, marking every scope boundary crossed as a closure
// capture on the symbol the moment it is found outside the nearest
// enclosing function scope (spec.md §4.5 "Closure capture").
func (s *Scope) resolve(name string) (*Symbol, bool) {
	crossedFunc := false
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.symbols[name]; ok {
			if crossedFunc {
				sym.Captured = true
			}
			return sym, true
		}
		if cur.isFunc {
			crossedFunc = true
		}
	}
	return nil, false
}

// Result is everything the rest of the engine needs out of analysis: the
// diagnostics (never fatal, spec.md §7 "do not abort") and Captured, the set
// of names read from inside a nested function body.
type Result struct {
	Diagnostics []errs.Diagnostic
	Captured    map[string]bool
}

// Analyzer runs a single analysis pass over a parsed module's statements.
type Analyzer struct {
	moduleID string
	diags    []errs.Diagnostic
	root     *Scope
	captured map[string]bool
}

func New(moduleID string) *Analyzer {
	return &Analyzer{moduleID: moduleID, root: newScope(nil, true), captured: make(map[string]bool)}
}

// Analyze walks stmts against depth, reporting only diagnostics at or below
// the requested band (spec.md §8 property 3: "errors reported at depth 1
// are a subset of those at depth 2, which are a subset at depth 3").
func Analyze(moduleID string, stmts []parser.Stmt, depth errs.Depth) *Result {
	a := New(moduleID)
	a.block(a.root, stmts)
	var filtered []errs.Diagnostic
	for _, d := range a.diags {
		if d.Depth <= depth {
			filtered = append(filtered, d)
		}
	}
	return &Result{Diagnostics: filtered, Captured: a.captured}
}

func (a *Analyzer) errorf(depth errs.Depth, span errs.Span, code, msg string) {
	d := errs.Diagnostic{Severity: errs.SeverityError, Depth: depth, Span: span, Code: code, Message: msg}
	a.diags = append(a.diags, d)
}

func (a *Analyzer) warnf(depth errs.Depth, span errs.Span, code, msg string) {
	d := errs.Diagnostic{Severity: errs.SeverityWarning, Depth: depth, Span: span, Code: code, Message: msg}
	a.diags = append(a.diags, d)
}

func (a *Analyzer) warnfFix(depth errs.Depth, span errs.Span, code, msg string, fix errs.Edit) {
	d := errs.Diagnostic{Severity: errs.SeverityWarning, Depth: depth, Span: span, Code: code, Message: msg, QuickFix: []errs.Edit{fix}}
	a.diags = append(a.diags, d)
}

func (a *Analyzer) block(parent *Scope, stmts []parser.Stmt) *Scope {
	scope := newScope(parent, false)
	for _, s := range stmts {
		a.stmt(scope, s)
	}
	return scope
}

func (a *Analyzer) stmt(scope *Scope, s parser.Stmt) {
	switch st := s.(type) {
	case *parser.LetStmt:
		state := Uninit
		if st.Expr != nil {
			a.expr(scope, st.Expr)
			state = Init
		}
		sym := scope.declare(st.Name, st.Span(), state)
		sym.InitExpr = st.Expr
	case *parser.ExprStmt:
		a.expr(scope, st.Expr)
	case *parser.LoopStmt:
		a.block(scope, st.Body.Stmts)
	case *parser.ForInStmt:
		a.expr(scope, st.Collection)
		inner := newScope(scope, false)
		inner.declare(st.Name, st.Span(), Init)
		for _, bs := range st.Body.Stmts {
			a.stmt(inner, bs)
		}
	case *parser.ReturnStmt:
		if st.Value != nil {
			a.expr(scope, st.Value)
		}
	case *parser.BreakStmt, *parser.ContinueStmt, *parser.UseStmt, *parser.InvalidStmt:
		// no sub-expressions to resolve
	}
}

func (a *Analyzer) expr(scope *Scope, e parser.Expr) {
	switch ex := e.(type) {
	case *parser.Ident:
		a.resolveIdent(scope, ex)
	case *parser.Literal, *parser.Invalid:
		// atoms
	case *parser.ArrayLit:
		for _, el := range ex.Elements {
			a.expr(scope, el)
		}
	case *parser.StructLit:
		for _, v := range ex.Values {
			a.expr(scope, v)
		}
	case *parser.FuncLit:
		fnScope := newScope(scope, true)
		for _, p := range ex.Params {
			fnScope.declare(p, ex.Span(), Init)
		}
		for _, bs := range ex.Body.Stmts {
			a.stmt(fnScope, bs)
		}
	case *parser.Unary:
		a.expr(scope, ex.Operand)
	case *parser.DeepClone:
		a.expr(scope, ex.Operand)
	case *parser.NilTest:
		a.expr(scope, ex.Operand)
		if id, ok := ex.Operand.(*parser.Ident); ok {
			if sym, found := scope.resolve(id.Name); found {
				sym.NilTested = true
			}
		}
	case *parser.Binary:
		a.expr(scope, ex.Left)
		a.expr(scope, ex.Right)
		if ex.Op == "+" {
			a.checkStringPlus(ex)
		}
	case *parser.Logical:
		a.expr(scope, ex.Left)
		a.expr(scope, ex.Right)
	case *parser.Assign:
		a.expr(scope, ex.Value)
		if target, ok := ex.Target.(*parser.Ident); ok {
			if sym, found := scope.resolve(target.Name); found {
				sym.Init = Init
			} else {
				a.errorf(errs.DepthLocalSemantic, ex.Span(), "E-UNRESOLVED", "unresolved name: "+target.Name)
			}
		} else {
			a.expr(scope, ex.Target)
		}
	case *parser.Call:
		a.expr(scope, ex.Callee)
		for _, arg := range ex.Args {
			a.expr(scope, arg)
		}
	case *parser.Index:
		a.expr(scope, ex.Object)
		if ex.IsRange {
			if ex.Start != nil {
				a.expr(scope, ex.Start)
			}
			if ex.End != nil {
				a.expr(scope, ex.End)
			}
		} else {
			a.expr(scope, ex.Index)
		}
	case *parser.Field:
		a.checkMissingNilCheck(scope, ex)
		a.expr(scope, ex.Object)
	case *parser.If:
		a.expr(scope, ex.Cond)
		a.block(scope, ex.Then.Stmts)
	case *parser.Match:
		a.analyzeMatch(scope, ex)
	case *parser.Block:
		a.block(scope, ex.Stmts)
	}
}

func (a *Analyzer) resolveIdent(scope *Scope, id *parser.Ident) {
	switch id.Name {
	case "self", "crate", "max":
		return // unshadowable builtins, spec.md §4.4
	}
	sym, ok := scope.resolve(id.Name)
	if !ok {
		a.errorf(errs.DepthLocalSemantic, id.Span(), "E-UNRESOLVED", "unresolved name: "+id.Name)
		return
	}
	if sym.Captured {
		a.captured[id.Name] = true
	}
	switch sym.Init {
	case Uninit:
		a.errorf(errs.DepthLocalSemantic, id.Span(), "E-USE-BEFORE-INIT", "use of possibly-uninitialized name: "+id.Name)
	case MaybeInit:
		a.warnf(errs.DepthDeepSemantic, id.Span(), "W-MAYBE-INIT", "name may not be initialized on all paths: "+id.Name)
	}
}

// checkStringPlus is a depth-2 static approximation of C1's MissingOperator
// check for the common literal-operand case: it warns whenever a string
// literal on the left of `+` meets a non-string literal on the right, and
// offers quoting the right operand as the fix. In this engine String does
// implement `+` (int, float and bool operands are cast to String), so the
// warning is purely advisory — C1 is still the authority at runtime.
func (a *Analyzer) checkStringPlus(b *parser.Binary) {
	_, leftIsString := b.Left.(*parser.Literal)
	if !leftIsString {
		return
	}
	lit := b.Left.(*parser.Literal)
	if _, ok := lit.Value.(string); !ok {
		return
	}
	if rhs, ok := b.Right.(*parser.Literal); ok {
		if _, rhsString := rhs.Value.(string); !rhsString {
			fix := errs.Edit{Span: rhs.Span(), Replacement: strconv.Quote(fmt.Sprintf("%v", rhs.Value))}
			a.warnfFix(errs.DepthLocalSemantic, b.Span(), "W-DYNTYPE",
				"operand type mismatch likely for '+': string is combined with a non-string literal", fix)
		}
	}
}

// checkMissingNilCheck is the depth-2 "missing ? on possibly-nil" diagnostic
// of spec.md §4.5: a name bound straight from a qualified host call
// (pkg.fn(...), the only expression shape the analyzer can know is allowed
// to return Nil) is flagged the moment a .field access runs on it without an
// intervening `name?` anywhere earlier in program order. Symbol is a shared
// pointer per resolve, so a `?` test seen on any earlier line clears the
// warning for every access after it — same idea as the Uninit/Init lattice,
// just a second flag riding along on the same Symbol.
func (a *Analyzer) checkMissingNilCheck(scope *Scope, f *parser.Field) {
	id, ok := f.Object.(*parser.Ident)
	if !ok {
		return
	}
	sym, found := scope.resolve(id.Name)
	if !found || sym.NilTested || !isNilableCall(sym.InitExpr) {
		return
	}
	// No QuickFix here: `x?` is a boolean test (spec.md §4.1), not an
	// optional-chaining operator, so the real fix is wrapping the
	// enclosing statement in `if x? { ... }` — a restructuring edit that
	// needs the raw source text this analyzer never sees. internal/editor
	// (C9), which holds the module's text, builds that quick-fix itself
	// from this diagnostic's span.
	a.warnf(errs.DepthLocalSemantic, f.Span(), "W-MISSING-NILCHECK",
		fmt.Sprintf("%s may be nil (bound from a host call): test with %s? before accessing .%s", id.Name, id.Name, f.Name))
}

// isNilableCall reports whether e is a qualified call pkg.fn(...) — the
// shape every host-exported function takes (spec.md §4.2), and the only
// source of a possibly-nil result this analyzer treats as flaggable without
// running the program.
func isNilableCall(e parser.Expr) bool {
	call, ok := e.(*parser.Call)
	if !ok {
		return false
	}
	_, ok = call.Callee.(*parser.Field)
	return ok
}

// analyzeMatch walks the subject, every arm and the else arm. It computes
// whether the match is exhaustive (an `else` arm, or boolean literal patterns
// covering both true and false) but does not use the result: no init state
// is merged across arms, and an assignment inside any arm marks its target
// Init just as an assignment outside the match does.
func (a *Analyzer) analyzeMatch(scope *Scope, m *parser.Match) {
	a.expr(scope, m.Subject)
	sawTrue, sawFalse := false, false
	for _, arm := range m.Arms {
		if lit, ok := arm.Pattern.(*parser.Literal); ok {
			if b, ok := lit.Value.(bool); ok {
				if b {
					sawTrue = true
				} else {
					sawFalse = true
				}
			}
		}
		a.expr(scope, arm.Pattern)
		a.expr(scope, arm.Body)
	}
	exhaustive := m.Else != nil || (sawTrue && sawFalse)
	if m.Else != nil {
		a.expr(scope, m.Else)
	}
	_ = exhaustive // computed only; neither the analyzer nor the compiler reads it
}
