package analyzer

import (
	"testing"

	"adastra/internal/errs"
	"adastra/internal/parser"

	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, src string, depth errs.Depth) *Result {
	t.Helper()
	r := parser.Parse("m1", src)
	require.Empty(t, r.Diagnostics)
	return Analyze("m1", r.Stmts, depth)
}

func TestUseBeforeInitIsReported(t *testing.T) {
	res := analyze(t, `let x; return x;`, errs.DepthDeepSemantic)
	require.NotEmpty(t, res.Diagnostics)
	require.Equal(t, "E-USE-BEFORE-INIT", res.Diagnostics[0].Code)
}

func TestInitializedLetNeverReported(t *testing.T) {
	res := analyze(t, `let x = 10; return x;`, errs.DepthDeepSemantic)
	require.Empty(t, res.Diagnostics)
}

func TestDepthBandsAreMonotonic(t *testing.T) {
	src := `let x; return x;`
	r := parser.Parse("m1", src)
	shallow := Analyze("m1", r.Stmts, errs.DepthSyntax)
	deep := Analyze("m1", r.Stmts, errs.DepthDeepSemantic)
	require.LessOrEqual(t, len(shallow.Diagnostics), len(deep.Diagnostics))
	for _, d := range shallow.Diagnostics {
		found := false
		for _, d2 := range deep.Diagnostics {
			if d2.Code == d.Code && d2.Span == d.Span {
				found = true
			}
		}
		require.True(t, found, "depth-1 diagnostic missing from depth-3 set")
	}
}

func TestClosureCaptureMarksOuterLocal(t *testing.T) {
	res := analyze(t, `let f; { let x = 5; f = fn(){ return x; }; } return f();`, errs.DepthDeepSemantic)
	require.True(t, res.Captured["x"])
}

func TestUnresolvedNameReported(t *testing.T) {
	res := analyze(t, `return y;`, errs.DepthDeepSemantic)
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, "E-UNRESOLVED", res.Diagnostics[0].Code)
}

func TestForInBindingIsInitialized(t *testing.T) {
	res := analyze(t, `let a = [1,2,3]; for v in a { let s = v; } return a;`, errs.DepthDeepSemantic)
	require.Empty(t, res.Diagnostics)
}

func TestMissingNilCheckOnHostCallResult(t *testing.T) {
	src := `let db = struct{ find: fn(id){ return []; } }; let row = db.find(1); return row.name;`
	res := analyze(t, src, errs.DepthLocalSemantic)
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, "W-MISSING-NILCHECK", res.Diagnostics[0].Code)
}

func TestNilCheckedHostCallResultNotReported(t *testing.T) {
	src := `let db = struct{ find: fn(id){ return []; } }; let row = db.find(1); if row? { return row.name; } return [];`
	res := analyze(t, src, errs.DepthLocalSemantic)
	require.Empty(t, res.Diagnostics)
}

func TestMissingNilCheckNotReportedForLocalLet(t *testing.T) {
	res := analyze(t, `let s = struct{name: "a"}; return s.name;`, errs.DepthLocalSemantic)
	require.Empty(t, res.Diagnostics)
}

func TestDynTypeQuickFixQuotesLiteral(t *testing.T) {
	res := analyze(t, `return "a" + 5;`, errs.DepthLocalSemantic)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	require.Equal(t, "W-DYNTYPE", d.Code)
	require.Len(t, d.QuickFix, 1)
	require.Equal(t, `"5"`, d.QuickFix[0].Replacement)
}
