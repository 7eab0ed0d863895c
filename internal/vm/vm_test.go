package vm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"adastra/internal/compiler"
	"adastra/internal/parser"
	"adastra/internal/types"
	"adastra/internal/vm"
)

// run compiles and executes src as a module body and returns its result
// Cell, failing the test on any parse/compile/runtime error.
func run(t *testing.T, src string) (types.Cell, *types.Core) {
	t.Helper()
	res := parser.Parse("test", src)
	require.Empty(t, res.Diagnostics, "parse diagnostics: %v", res.Diagnostics)
	proto, diags := compiler.Compile("test", res.Stmts)
	require.Empty(t, diags, "compile diagnostics: %v", diags)

	reg := types.NewRegistry()
	core, err := types.RegisterCore(reg)
	require.NoError(t, err)

	result, err := vm.Run(context.Background(), core, map[string]types.Cell{}, proto)
	require.NoError(t, err)
	return result, core
}

func TestArithmeticAndReturn(t *testing.T) {
	result, _ := run(t, `return 2 + 3 * 4;`)
	require.Equal(t, int64(14), result.Scalar())
}

func TestLetAndAssignment(t *testing.T) {
	result, _ := run(t, `
		let x = 10;
		x = x + 5;
		return x;
	`)
	require.Equal(t, int64(15), result.Scalar())
}

func TestIfExpressionYieldsValue(t *testing.T) {
	result, _ := run(t, `
		let x = if true { 1; };
		return x;
	`)
	require.Equal(t, int64(1), result.Scalar())
}

func TestIfWithNoElseYieldsNilOnFalse(t *testing.T) {
	result, _ := run(t, `
		let x = if false { 1; };
		return x?;
	`)
	require.Equal(t, false, result.Scalar())
}

func TestMatchExpression(t *testing.T) {
	result, _ := run(t, `
		let n = 2;
		return match n {
			1 => "one",
			2 => "two",
			else => "many",
		};
	`)
	require.Equal(t, "two", result.Scalar())
}

func TestMatchFallsToElse(t *testing.T) {
	result, _ := run(t, `
		let n = 99;
		return match n {
			1 => "one",
			else => "many",
		};
	`)
	require.Equal(t, "many", result.Scalar())
}

func TestLoopBreak(t *testing.T) {
	result, _ := run(t, `
		let i = 0;
		loop {
			i = i + 1;
			if i == 5 {
				break;
			}
		}
		return i;
	`)
	require.Equal(t, int64(5), result.Scalar())
}

func TestLoopContinueSkipsIncrement(t *testing.T) {
	result, _ := run(t, `
		let i = 0;
		let sum = 0;
		loop {
			i = i + 1;
			if i > 10 {
				break;
			}
			if i == 3 {
				continue;
			}
			sum = sum + i;
		}
		return sum;
	`)
	// 1+2+4+5+6+7+8+9+10 = 52 (3 skipped)
	require.Equal(t, int64(52), result.Scalar())
}

func TestForInOverArray(t *testing.T) {
	result, _ := run(t, `
		let total = 0;
		for x in [1, 2, 3, 4] {
			total = total + x;
		}
		return total;
	`)
	require.Equal(t, int64(10), result.Scalar())
}

func TestClosureCapturesOuterLocal(t *testing.T) {
	result, _ := run(t, `
		let f = 0;
		let x = 5;
		f = fn() { return x; };
		return f();
	`)
	require.Equal(t, int64(5), result.Scalar())
}

func TestClosureCaptureSurvivesOuterFrame(t *testing.T) {
	result, _ := run(t, `
		let make = fn() {
			let count = 0;
			return fn() {
				count = count + 1;
				return count;
			};
		};
		let counter = make();
		counter();
		counter();
		return counter();
	`)
	require.Equal(t, int64(3), result.Scalar())
}

func TestStructFieldReadAndWrite(t *testing.T) {
	result, _ := run(t, `
		let p = struct{ x: 1, y: 2 };
		p.x = 10;
		return p.x + p.y;
	`)
	require.Equal(t, int64(12), result.Scalar())
}

func TestStructMethodFieldBindsSelf(t *testing.T) {
	result, _ := run(t, `
		let counter = struct{ n: 0 };
		counter.bump = fn() {
			self.n = self.n + 1;
			return self.n;
		};
		counter.bump();
		return counter.bump();
	`)
	require.Equal(t, int64(2), result.Scalar())
}

func TestArrayIndexAndRange(t *testing.T) {
	result, _ := run(t, `
		let a = [10, 20, 30, 40, 50];
		let mid = a[1..3];
		return mid[0] + mid[1];
	`)
	require.Equal(t, int64(50), result.Scalar())
}

func TestArrayOpenEndedRange(t *testing.T) {
	result, _ := run(t, `
		let a = [1, 2, 3, 4];
		let tail = a[2..];
		return tail.len;
	`)
	require.Equal(t, int64(2), result.Scalar())
}

func TestLenBuiltin(t *testing.T) {
	result, _ := run(t, `
		let a = [1, 2, 3];
		return len(a);
	`)
	require.Equal(t, int64(3), result.Scalar())
}

func TestLogicalShortCircuitAnd(t *testing.T) {
	result, _ := run(t, `return false && (1 / 0 == 0);`)
	require.Equal(t, false, result.Scalar())
}

func TestLogicalShortCircuitOr(t *testing.T) {
	result, _ := run(t, `return true || (1 / 0 == 0);`)
	require.Equal(t, true, result.Scalar())
}

func TestCancellationInterruptsExecution(t *testing.T) {
	res := parser.Parse("test", `
		let i = 0;
		loop {
			i = i + 1;
		}
		return i;
	`)
	require.Empty(t, res.Diagnostics)
	proto, diags := compiler.Compile("test", res.Stmts)
	require.Empty(t, diags)

	reg := types.NewRegistry()
	core, err := types.RegisterCore(reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = vm.Run(ctx, core, map[string]types.Cell{}, proto)
	require.Error(t, err)
}

func TestUnresolvedNameRaisesAtExecution(t *testing.T) {
	res := parser.Parse("test", `
		return doesNotExist + 1;
	`)
	require.Empty(t, res.Diagnostics)
	proto, _ := compiler.Compile("test", res.Stmts)

	reg := types.NewRegistry()
	core, err := types.RegisterCore(reg)
	require.NoError(t, err)

	_, err = vm.Run(context.Background(), core, map[string]types.Cell{}, proto)
	require.Error(t, err)
}
