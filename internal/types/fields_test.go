package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"adastra/internal/errs"
	"adastra/internal/types"
)

func newCore(t *testing.T) *types.Core {
	t.Helper()
	reg := types.NewRegistry()
	core, err := types.RegisterCore(reg)
	require.NoError(t, err)
	return core
}

func TestStructFieldGrowsDynamicallyOnAssign(t *testing.T) {
	core := newCore(t)
	obj := types.NewStructObj()
	cell := types.NewCell(core.Struct, []any{obj})

	_, err := cell.Field(errs.Span{}, "name")
	require.Error(t, err)

	require.NoError(t, cell.SetField(errs.Span{}, "name", types.NewCell(core.String, []any{"ada"})))
	v, err := cell.Field(errs.Span{}, "name")
	require.NoError(t, err)
	require.Equal(t, "ada", v.(types.Cell).Scalar())
}

func TestStructLenFieldCountsKeysNotCellLength(t *testing.T) {
	core := newCore(t)
	obj := types.NewStructObj()
	cell := types.NewCell(core.Struct, []any{obj})
	require.NoError(t, cell.SetField(errs.Span{}, "a", types.NewCell(core.Int, []any{int64(1)})))
	require.NoError(t, cell.SetField(errs.Span{}, "b", types.NewCell(core.Int, []any{int64(2)})))

	v, err := cell.Field(errs.Span{}, "len")
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
}

func TestUniversalLenFallbackForNonStructType(t *testing.T) {
	core := newCore(t)
	cell := types.NewCell(core.Int, []any{int64(7), int64(9)})
	v, err := cell.Field(errs.Span{}, "len")
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
}

func TestSetFieldOnUndeclaredNameOfNonStructTypeFails(t *testing.T) {
	core := newCore(t)
	cell := types.NewCell(core.Int, []any{int64(7)})
	err := cell.SetField(errs.Span{}, "bogus", types.NewCell(core.Int, []any{int64(1)}))
	require.Error(t, err)
}
