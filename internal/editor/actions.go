package editor

import (
	"context"
	"fmt"

	"adastra/internal/errs"
	"adastra/internal/parser"
)

// CodeAction is one fix offered at a diagnostic's span: either the
// analyzer's own QuickFix (already a precise Edit, e.g. W-DYNTYPE's
// Display-cast) or one this package synthesizes from the raw source text
// the analyzer never sees (W-MISSING-NILCHECK's statement rewrap).
type CodeAction struct {
	Title string
	Code  string
	Edits []errs.Edit
}

// CodeActions returns every action available for diagnostics overlapping
// [start, end).
func (s *Service) CodeActions(ctx context.Context, start, end int) ([]CodeAction, error) {
	snap, err := s.snapshotAt(ctx)
	if err != nil {
		return nil, err
	}

	var actions []CodeAction
	for _, d := range snap.analysis.Diagnostics {
		if d.Span.End <= start || d.Span.Start >= end {
			continue
		}
		if len(d.QuickFix) > 0 {
			actions = append(actions, CodeAction{Title: d.Message, Code: d.Code, Edits: d.QuickFix})
			continue
		}
		if d.Code == "W-MISSING-NILCHECK" {
			if act, ok := nilGuardAction(snap, d); ok {
				actions = append(actions, act)
			}
		}
	}
	return actions, nil
}

// nilGuardAction builds the "wrap in if x? { ... }" fix for a
// W-MISSING-NILCHECK diagnostic: it needs the flagged identifier's name (read
// off the Field node at the diagnostic's own span) and the enclosing
// statement's full text (the analyzer has neither — only this package holds
// guard.Text()).
func nilGuardAction(snap *snapshot, d errs.Diagnostic) (CodeAction, bool) {
	name, ok := fieldObjectAt(snap.parse.Stmts, d.Span)
	if !ok {
		return CodeAction{}, false
	}
	stmtSpan, ok := enclosingStmtSpan(snap.parse.Stmts, d.Span)
	if !ok {
		return CodeAction{}, false
	}
	body := snap.text[stmtSpan.Start:stmtSpan.End]
	replacement := fmt.Sprintf("if %s? {\n%s\n}", name, body)
	edit := errs.Edit{Span: stmtSpan, Replacement: replacement}
	return CodeAction{
		Title: fmt.Sprintf("Wrap in `if %s? { ... }`", name),
		Code:  d.Code,
		Edits: []errs.Edit{edit},
	}, true
}

// fieldObjectAt finds the *parser.Field whose own span matches target —
// exactly the node checkMissingNilCheck reported against — and returns its
// object identifier's name.
func fieldObjectAt(stmts []parser.Stmt, target errs.Span) (string, bool) {
	var found string
	var ok bool
	walkStmts(stmts, func(e parser.Expr) bool {
		if ok {
			return false
		}
		f, isField := e.(*parser.Field)
		if !isField || f.Span() != target {
			return true
		}
		id, isIdent := f.Object.(*parser.Ident)
		if !isIdent {
			return true
		}
		found, ok = id.Name, true
		return false
	})
	return found, ok
}

// enclosingStmtSpan returns the span of the smallest top-level-or-nested
// statement whose range contains target.
func enclosingStmtSpan(stmts []parser.Stmt, target errs.Span) (errs.Span, bool) {
	var best errs.Span
	found := false
	var visit func([]parser.Stmt)
	visit = func(list []parser.Stmt) {
		for _, st := range list {
			sp := st.Span()
			if target.Start < sp.Start || target.End > sp.End {
				continue
			}
			if !found || (sp.End-sp.Start) < (best.End-best.Start) {
				best, found = sp, true
			}
			for _, inner := range nestedBlocks(st) {
				visit(inner.Stmts)
			}
		}
	}
	visit(stmts)
	return best, found
}

// nestedBlocks returns the Blocks directly owned by a statement, the
// boundary walkStmts/enclosingStmtSpan descend through to reach a deeper
// enclosing statement inside a loop, for-in, or if/match arm.
func nestedBlocks(s parser.Stmt) []*parser.Block {
	switch st := s.(type) {
	case *parser.LoopStmt:
		return []*parser.Block{st.Body}
	case *parser.ForInStmt:
		return []*parser.Block{st.Body}
	case *parser.ExprStmt:
		return blocksIn(st.Expr)
	}
	return nil
}

func blocksIn(e parser.Expr) []*parser.Block {
	switch ex := e.(type) {
	case *parser.If:
		return []*parser.Block{ex.Then}
	case *parser.Block:
		return []*parser.Block{ex}
	case *parser.Match:
		var out []*parser.Block
		for _, arm := range ex.Arms {
			out = append(out, blocksIn(arm.Body)...)
		}
		if ex.Else != nil {
			out = append(out, blocksIn(ex.Else)...)
		}
		return out
	}
	return nil
}

// walkStmts visits every Expr reachable from stmts, depth-first, stopping
// early once visit returns false.
func walkStmts(stmts []parser.Stmt, visit func(parser.Expr) bool) {
	live := true
	var we func(e parser.Expr)
	var ws func(s parser.Stmt)
	we = func(e parser.Expr) {
		if !live || e == nil {
			return
		}
		if !visit(e) {
			live = false
			return
		}
		switch ex := e.(type) {
		case *parser.ArrayLit:
			for _, el := range ex.Elements {
				we(el)
			}
		case *parser.StructLit:
			for _, v := range ex.Values {
				we(v)
			}
		case *parser.FuncLit:
			for _, bs := range ex.Body.Stmts {
				ws(bs)
			}
		case *parser.Unary:
			we(ex.Operand)
		case *parser.DeepClone:
			we(ex.Operand)
		case *parser.NilTest:
			we(ex.Operand)
		case *parser.Binary:
			we(ex.Left)
			we(ex.Right)
		case *parser.Logical:
			we(ex.Left)
			we(ex.Right)
		case *parser.Assign:
			we(ex.Target)
			we(ex.Value)
		case *parser.Call:
			we(ex.Callee)
			for _, arg := range ex.Args {
				we(arg)
			}
		case *parser.Index:
			we(ex.Object)
			we(ex.Index)
			we(ex.Start)
			we(ex.End)
		case *parser.Field:
			we(ex.Object)
		case *parser.If:
			we(ex.Cond)
			for _, bs := range ex.Then.Stmts {
				ws(bs)
			}
		case *parser.Match:
			we(ex.Subject)
			for _, arm := range ex.Arms {
				we(arm.Pattern)
				we(arm.Body)
			}
			we(ex.Else)
		case *parser.Block:
			for _, bs := range ex.Stmts {
				ws(bs)
			}
		}
	}
	ws = func(s parser.Stmt) {
		if !live || s == nil {
			return
		}
		switch st := s.(type) {
		case *parser.LetStmt:
			we(st.Expr)
		case *parser.ExprStmt:
			we(st.Expr)
		case *parser.LoopStmt:
			for _, bs := range st.Body.Stmts {
				ws(bs)
			}
		case *parser.ForInStmt:
			we(st.Collection)
			for _, bs := range st.Body.Stmts {
				ws(bs)
			}
		case *parser.ReturnStmt:
			we(st.Value)
		}
	}
	for _, s := range stmts {
		if !live {
			return
		}
		ws(s)
	}
}
