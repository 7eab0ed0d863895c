package editor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"adastra/internal/hostabi"
	"adastra/internal/source"
)

func TestCompletionsIncludesLocalsAndKeywords(t *testing.T) {
	src := `let counter = 1; let greet = fn(name){ return name; }; return c`
	mod := source.New(src)
	svc := NewService(mod, nil)

	items, err := svc.Completions(context.Background(), len(src))
	require.NoError(t, err)

	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	require.Contains(t, labels, "counter")
	require.Contains(t, labels, "continue")
}

func TestCompletionsPackageQualified(t *testing.T) {
	src := `let x = db.`
	mod := source.New(src)
	host := hostabi.NewHost()
	svc := NewService(mod, host)

	items, err := svc.Completions(context.Background(), len(src))
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestHoverOnLocalLetShowsLiteral(t *testing.T) {
	src := `let total = 1200; return total;`
	mod := source.New(src)
	svc := NewService(mod, nil)

	offset := strings.Index(src, "return total") + len("return ")
	h, err := svc.Hover(context.Background(), offset)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Contains(t, h.Text, "total")
	require.Contains(t, h.Text, "1,200")
}

func TestDefinitionAndReferences(t *testing.T) {
	src := `let n = 5; let m = n; return n;`
	mod := source.New(src)
	svc := NewService(mod, nil)

	useOffset := strings.LastIndex(src, "n;")
	def, err := svc.Definition(context.Background(), useOffset)
	require.NoError(t, err)
	require.NotNil(t, def)
	require.Equal(t, strings.Index(src, "let n"), def.Start)

	refs, err := svc.References(context.Background(), useOffset)
	require.NoError(t, err)
	require.Len(t, refs, 3)
}

func TestRenameRejectsKeyword(t *testing.T) {
	src := `let n = 5; return n;`
	mod := source.New(src)
	svc := NewService(mod, nil)

	useOffset := strings.LastIndex(src, "n;")
	_, err := svc.Rename(context.Background(), useOffset, "return")
	require.Error(t, err)
}

func TestRenameProducesEditPerOccurrence(t *testing.T) {
	src := `let n = 5; let m = n; return n;`
	mod := source.New(src)
	svc := NewService(mod, nil)

	useOffset := strings.LastIndex(src, "n;")
	edits, err := svc.Rename(context.Background(), useOffset, "count")
	require.NoError(t, err)
	require.Len(t, edits, 3)
	for _, e := range edits {
		require.Equal(t, "count", e.Replacement)
	}
}

func TestCodeActionsSurfacesDynTypeQuickFix(t *testing.T) {
	src := `return "a" + 5;`
	mod := source.New(src)
	svc := NewService(mod, nil)

	actions, err := svc.CodeActions(context.Background(), 0, len(src))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, "W-DYNTYPE", actions[0].Code)
	require.Equal(t, `"5"`, actions[0].Edits[0].Replacement)
}

func TestCodeActionsSynthesizesNilGuardWrap(t *testing.T) {
	src := `let db = struct{ find: fn(id){ return []; } }; let row = db.find(1); return row.name;`
	mod := source.New(src)
	svc := NewService(mod, nil)

	actions, err := svc.CodeActions(context.Background(), 0, len(src))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, "W-MISSING-NILCHECK", actions[0].Code)
	require.Len(t, actions[0].Edits, 1)
	require.Contains(t, actions[0].Edits[0].Replacement, "if row? {")
	require.Contains(t, actions[0].Edits[0].Replacement, "return row.name;")
}

func TestInlayHintsLabelLocalFuncLitArgs(t *testing.T) {
	src := `let add = fn(a, b){ return a; }; return add(1, 2);`
	mod := source.New(src)
	svc := NewService(mod, nil)

	hints, err := svc.InlayHints(context.Background(), 0, len(src))
	require.NoError(t, err)
	require.Len(t, hints, 2)
	require.Equal(t, "a:", hints[0].Label)
	require.Equal(t, "b:", hints[1].Label)
}
