package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReturnString(t *testing.T) {
	r := Parse("m1", `return "hello world";`)
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Stmts, 1)
	ret, ok := r.Stmts[0].(*ReturnStmt)
	require.True(t, ok)
	lit, ok := ret.Value.(*Literal)
	require.True(t, ok)
	require.Equal(t, "hello world", lit.Value)
}

func TestParseBinaryStringPlusInt(t *testing.T) {
	r := Parse("m1", `return "hello world" + 1;`)
	require.Empty(t, r.Diagnostics)
	ret := r.Stmts[0].(*ReturnStmt)
	bin, ok := ret.Value.(*Binary)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
}

func TestParseMissingLetNameReportsSyntaxError(t *testing.T) {
	r := Parse("m1", "let x = 10;\nlet 20;\nlet z = 30;")
	require.Len(t, r.Diagnostics, 1)
	require.Equal(t, 2, r.Diagnostics[0].Span.Line)
}

func TestParseLoopBreakAndCompoundAssign(t *testing.T) {
	r := Parse("m1", `let i = 0; loop { if i >= 3 { break; } i += 1; } return i;`)
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Stmts, 3)
	loop, ok := r.Stmts[1].(*LoopStmt)
	require.True(t, ok)
	require.Len(t, loop.Body.Stmts, 2)
	assignStmt := loop.Body.Stmts[1].(*ExprStmt)
	assign, ok := assignStmt.Expr.(*Assign)
	require.True(t, ok)
	bin := assign.Value.(*Binary)
	require.Equal(t, "+", bin.Op)
}

func TestParseStructLiteralWithMethod(t *testing.T) {
	r := Parse("m1", `let s = struct{ n: 10, inc: fn(){ self.n += 1; } }; s.inc(); s.inc(); return s.n;`)
	require.Empty(t, r.Diagnostics)
	let := r.Stmts[0].(*LetStmt)
	lit, ok := let.Expr.(*StructLit)
	require.True(t, ok)
	require.Equal(t, []string{"n", "inc"}, lit.Keys)
	fn, ok := lit.Values[1].(*FuncLit)
	require.True(t, ok)
	require.Empty(t, fn.Params)
}

func TestParseClosureCapture(t *testing.T) {
	r := Parse("m1", `let f; { let x = 5; f = fn(){ return x; }; } return f();`)
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Stmts, 3)
}

func TestParseRangeIndex(t *testing.T) {
	r := Parse("m1", `let a = [10,20,30,40]; return a[1..3];`)
	require.Empty(t, r.Diagnostics)
	ret := r.Stmts[1].(*ReturnStmt)
	idx, ok := ret.Value.(*Index)
	require.True(t, ok)
	require.True(t, idx.IsRange)
}

func TestRoundTripTokensCoverSource(t *testing.T) {
	src := `let i = 0; loop { if i >= 3 { break; } i += 1; } return i;`
	r := Parse("m1", src)
	var rebuilt string
	for _, tok := range r.Tokens {
		rebuilt += tok.Lexeme
	}
	require.Equal(t, src, rebuilt)
}
