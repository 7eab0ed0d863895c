package editor

import (
	"adastra/internal/errs"
	"adastra/internal/parser"
)

// symbolKind distinguishes what declared a symbol, for completion item kinds
// and hover text.
type symbolKind int

const (
	symLocal symbolKind = iota
	symParam
	symLoopVar
)

// symbol is one name bound by a let, a function parameter, or a for-in loop
// variable, tracked across the whole occurrence list by pointer identity —
// the same "shared pointer, same binding" idea the analyzer (C5) uses for
// its own Scope.resolve.
type symbol struct {
	Name     string
	Kind     symbolKind
	Decl     errs.Span
	Params   []string // non-nil when this symbol's value is a fn(...){...} literal
	IsFnLit  bool
	Literal  any // the let's rhs Literal.Value, if it was one (int64/float64/string/bool/nil)
}

// scopeNode is one lexical scope: the whole module, a block, a function
// body, or a for-in header. Span is the scope's full byte range, used to
// find the innermost scope containing a cursor offset.
type scopeNode struct {
	parent   *scopeNode
	span     errs.Span
	symbols  map[string]*symbol
	children []*scopeNode
}

func newScopeNode(parent *scopeNode, span errs.Span) *scopeNode {
	n := &scopeNode{parent: parent, span: span, symbols: make(map[string]*symbol)}
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	return n
}

func (n *scopeNode) declare(sym *symbol) { n.symbols[sym.Name] = sym }

func (n *scopeNode) resolve(name string) (*symbol, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if sym, ok := cur.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// contains reports whether offset falls within this scope's span.
func (n *scopeNode) contains(offset int) bool {
	return offset >= n.span.Start && offset <= n.span.End
}

// innermost walks n's children to find the narrowest scope containing
// offset, preferring a deeper match over a shallower one.
func (n *scopeNode) innermost(offset int) *scopeNode {
	if !n.contains(offset) {
		return nil
	}
	for _, c := range n.children {
		if found := c.innermost(offset); found != nil {
			return found
		}
	}
	return n
}

// occKind distinguishes a declaring occurrence from a using one, and an
// identifier resolved to a local symbol from one left for the host's global
// namespace (a bare package name like "db", or a builtin).
type occKind int

const (
	occDecl occKind = iota
	occUse
	occUnresolved
)

// occurrence is one Ident's appearance in the tree, with whatever it
// resolved to (or didn't).
type occurrence struct {
	Span errs.Span
	Name string
	Kind occKind
	Sym  *symbol // nil for occUnresolved
}

// qualifiedRef is one obj.member appearance where obj did not resolve to a
// local symbol — the shape a host package access (`db.query(...)`) takes.
// Hover/Definition use this to look the member up in the host Registry
// instead of the local index.
type qualifiedRef struct {
	Span    errs.Span // the Field node's own span
	Object  string
	Member  string
	IsCall  bool
}

// Index is the editor's self-built symbol table over one parse, independent
// of the analyzer's (C5's Result exposes only Diagnostics/Captured, not a
// queryable scope tree — this is a second, editor-only walk of the same
// Stmt/Expr nodes, in the analyzer's own manual-switch idiom).
type Index struct {
	Root         *scopeNode
	Occurrences  []occurrence
	Qualified    []qualifiedRef
}

// occurrenceAt returns the occurrence whose span contains offset, if any.
func (idx *Index) occurrenceAt(offset int) (*occurrence, bool) {
	for i := range idx.Occurrences {
		o := &idx.Occurrences[i]
		if offset >= o.Span.Start && offset < o.Span.End {
			return o, true
		}
	}
	return nil, false
}

func (idx *Index) qualifiedAt(offset int) (*qualifiedRef, bool) {
	for i := range idx.Qualified {
		q := &idx.Qualified[i]
		if offset >= q.Span.Start && offset < q.Span.End {
			return q, true
		}
	}
	return nil, false
}

// referencesTo collects every occurrence sharing sym's pointer identity,
// declaration included, in source order.
func (idx *Index) referencesTo(sym *symbol) []errs.Span {
	var out []errs.Span
	for _, o := range idx.Occurrences {
		if o.Sym == sym {
			out = append(out, o.Span)
		}
	}
	return out
}

type indexBuilder struct {
	moduleID string
	idx      *Index
}

// buildIndex walks stmts once, in the same shape analyzer.Analyzer.stmt/expr
// uses, recording scopes and identifier occurrences rather than diagnostics.
func buildIndex(moduleID string, textLen int, stmts []parser.Stmt) *Index {
	b := &indexBuilder{moduleID: moduleID, idx: &Index{}}
	root := newScopeNode(nil, errs.Span{ModuleID: moduleID, Start: 0, End: textLen})
	b.idx.Root = root
	for _, s := range stmts {
		b.stmt(root, s)
	}
	return b.idx
}

func (b *indexBuilder) stmt(scope *scopeNode, s parser.Stmt) {
	switch st := s.(type) {
	case *parser.LetStmt:
		var params []string
		isFn := false
		var litValue any
		switch rhs := st.Expr.(type) {
		case *parser.FuncLit:
			params, isFn = rhs.Params, true
		case *parser.Literal:
			litValue = rhs.Value
		}
		if st.Expr != nil {
			b.expr(scope, st.Expr)
		}
		sym := &symbol{Name: st.Name, Kind: symLocal, Decl: st.Span(), Params: params, IsFnLit: isFn, Literal: litValue}
		scope.declare(sym)
		b.idx.Occurrences = append(b.idx.Occurrences, occurrence{Span: st.Span(), Name: st.Name, Kind: occDecl, Sym: sym})
	case *parser.ExprStmt:
		b.expr(scope, st.Expr)
	case *parser.LoopStmt:
		inner := newScopeNode(scope, st.Body.Span())
		for _, bs := range st.Body.Stmts {
			b.stmt(inner, bs)
		}
	case *parser.ForInStmt:
		b.expr(scope, st.Collection)
		inner := newScopeNode(scope, st.Span())
		sym := &symbol{Name: st.Name, Kind: symLoopVar, Decl: st.Span()}
		inner.declare(sym)
		b.idx.Occurrences = append(b.idx.Occurrences, occurrence{Span: st.Span(), Name: st.Name, Kind: occDecl, Sym: sym})
		for _, bs := range st.Body.Stmts {
			b.stmt(inner, bs)
		}
	case *parser.ReturnStmt:
		if st.Value != nil {
			b.expr(scope, st.Value)
		}
	case *parser.BreakStmt, *parser.ContinueStmt, *parser.UseStmt, *parser.InvalidStmt:
		// no sub-expressions
	}
}

func (b *indexBuilder) expr(scope *scopeNode, e parser.Expr) {
	switch ex := e.(type) {
	case *parser.Ident:
		b.identOcc(scope, ex)
	case *parser.Literal, *parser.Invalid:
		// atoms
	case *parser.ArrayLit:
		for _, el := range ex.Elements {
			b.expr(scope, el)
		}
	case *parser.StructLit:
		for _, v := range ex.Values {
			b.expr(scope, v)
		}
	case *parser.FuncLit:
		inner := newScopeNode(scope, ex.Span())
		for _, p := range ex.Params {
			sym := &symbol{Name: p, Kind: symParam, Decl: ex.Span()}
			inner.declare(sym)
		}
		for _, bs := range ex.Body.Stmts {
			b.stmt(inner, bs)
		}
	case *parser.Unary:
		b.expr(scope, ex.Operand)
	case *parser.DeepClone:
		b.expr(scope, ex.Operand)
	case *parser.NilTest:
		b.expr(scope, ex.Operand)
	case *parser.Binary:
		b.expr(scope, ex.Left)
		b.expr(scope, ex.Right)
	case *parser.Logical:
		b.expr(scope, ex.Left)
		b.expr(scope, ex.Right)
	case *parser.Assign:
		b.expr(scope, ex.Value)
		b.expr(scope, ex.Target)
	case *parser.Call:
		b.callOrField(scope, ex.Callee, true)
		for _, arg := range ex.Args {
			b.expr(scope, arg)
		}
	case *parser.Index:
		b.expr(scope, ex.Object)
		if ex.IsRange {
			if ex.Start != nil {
				b.expr(scope, ex.Start)
			}
			if ex.End != nil {
				b.expr(scope, ex.End)
			}
		} else {
			b.expr(scope, ex.Index)
		}
	case *parser.Field:
		b.callOrField(scope, ex, false)
	case *parser.If:
		b.expr(scope, ex.Cond)
		inner := newScopeNode(scope, ex.Then.Span())
		for _, bs := range ex.Then.Stmts {
			b.stmt(inner, bs)
		}
	case *parser.Match:
		b.expr(scope, ex.Subject)
		for _, arm := range ex.Arms {
			b.expr(scope, arm.Pattern)
			b.expr(scope, arm.Body)
		}
		if ex.Else != nil {
			b.expr(scope, ex.Else)
		}
	case *parser.Block:
		inner := newScopeNode(scope, ex.Span())
		for _, bs := range ex.Stmts {
			b.stmt(inner, bs)
		}
	}
}

// callOrField records a qualifiedRef the moment a Field's Object is an
// unresolved bare Ident (the "db.query(...)" host-call shape); otherwise it
// falls through to ordinary Ident/Field resolution so `s.name` on a local
// struct still yields a ordinary occurrence on `s`.
func (b *indexBuilder) callOrField(scope *scopeNode, callee parser.Expr, isCall bool) {
	f, ok := callee.(*parser.Field)
	if !ok {
		b.expr(scope, callee)
		return
	}
	if id, ok := f.Object.(*parser.Ident); ok {
		if _, found := scope.resolve(id.Name); !found {
			b.idx.Qualified = append(b.idx.Qualified, qualifiedRef{Span: f.Span(), Object: id.Name, Member: f.Name, IsCall: isCall})
			return
		}
	}
	b.expr(scope, f.Object)
}

func (b *indexBuilder) identOcc(scope *scopeNode, id *parser.Ident) {
	sym, found := scope.resolve(id.Name)
	if !found {
		b.idx.Occurrences = append(b.idx.Occurrences, occurrence{Span: id.Span(), Name: id.Name, Kind: occUnresolved})
		return
	}
	b.idx.Occurrences = append(b.idx.Occurrences, occurrence{Span: id.Span(), Name: id.Name, Kind: occUse, Sym: sym})
}

// visibleNames collects every symbol visible from scope outward, nearest
// declaration winning on a name collision (shadowing).
func visibleNames(scope *scopeNode) []*symbol {
	seen := make(map[string]bool)
	var out []*symbol
	for cur := scope; cur != nil; cur = cur.parent {
		for name, sym := range cur.symbols {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, sym)
		}
	}
	return out
}
