package formatter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"adastra/internal/formatter"
	"adastra/internal/parser"
)

func format(t *testing.T, src string) string {
	t.Helper()
	r := parser.Parse("m1", src)
	require.Empty(t, r.Diagnostics)
	return formatter.NewFormatter().Format(r.Stmts)
}

func TestFormatIsIdempotent(t *testing.T) {
	src := `let i = 0; loop { if i >= 3 { break; } i += 1; } return i;`
	once := format(t, src)
	r := parser.Parse("m1", once)
	require.Empty(t, r.Diagnostics)
	twice := formatter.NewFormatter().Format(r.Stmts)
	require.Equal(t, once, twice)
}

func TestFormatIfHasNoElseArm(t *testing.T) {
	out := format(t, `if true { 1; }`)
	require.Contains(t, out, "if true {")
	require.NotContains(t, out, "else")
}

func TestFormatMatchWithElseArm(t *testing.T) {
	out := format(t, `match 1 { 1 => 2, else => 3, }`)
	require.Contains(t, out, "match 1 {")
	require.Contains(t, out, "else => 3,")
}

func TestFormatStructLiteral(t *testing.T) {
	out := format(t, `let s = struct{ name: "ada" };`)
	require.Equal(t, "let s = struct{name: \"ada\"};\n", out)
}
