// Package vm is the synchronous, single-threaded bytecode interpreter (C7)
// executing internal/compiler's Chunks over internal/types' Cell values.
// Grounded on the teacher's internal/vm/vm.go dispatch-loop idiom (a flat
// switch over OpCode driving an explicit operand stack and call-frame
// slice) generalized so every arithmetic/comparison/field/index operation
// routes through internal/types' capability tables (spec.md §4.2) instead
// of being hard-coded per concrete Go type the way the teacher's VM is.
package vm

import (
	"context"

	"adastra/internal/bytecode"
	"adastra/internal/compiler"
	"adastra/internal/errs"
	"adastra/internal/types"
)

// frame is one function activation: its Chunk, instruction pointer, and
// slot-addressed locals (each a *Cell so captured closures can share the
// exact same pointer without a separate open/close-upvalue machine —
// spec.md §4.5 "Closure capture"). The frame depth a nested invoke started
// at is passed to loop as its floor, so a return decides whether control
// goes back into this VM's own frame stack or out of a nested Go-level loop
// started by Closure.Call.
type frame struct {
	chunk    *bytecode.Chunk
	ip       int
	locals   []*types.Cell
	upvalues []*types.Cell
}

// VM holds the state shared across one engine instance: the Type registry
// and its Core primitives, the bound host globals (spec.md §4.2 "package.
// item" addressing), and the instruction counter for cancellation: Run's
// context is polled once every 256 instructions (property 11/S8).
type VM struct {
	core    *types.Core
	globals map[string]types.Cell
	stack   []types.Cell
	frames  []*frame

	instrSinceCheck int
}

// New creates a VM bound to core and the host export globals resolved by
// BindExports.
func New(core *types.Core, globals map[string]types.Cell) *VM {
	return &VM{core: core, globals: globals}
}

// Closure is the script-function payload of a core.Func Cell: a compiled
// FunctionProto plus its captured upvalue Cells, built when OpClosure
// executes. It implements types.Callable so the Func Type's InvokeFn can
// dispatch into it without internal/types importing internal/vm (spec.md
// §9, the same seam C1/C2 use).
type Closure struct {
	vm       *VM
	proto    *compiler.FunctionProto
	upvalues []*types.Cell
}

func (cl *Closure) String() string { return "fn(" + cl.proto.Chunk.Name + ")" }

// Call implements types.Callable, invoked when a closure is handed to host
// code as a callback. args/return follow the Invoke contract (DESIGN.md):
// a value is its types.Cell when non-scalar, its bare Go scalar otherwise.
func (cl *Closure) Call(args []any) (any, error) {
	result, err := cl.vm.invoke(context.Background(), cl, nil, args)
	if err != nil {
		return nil, err
	}
	return cl.vm.cellToArg(result), nil
}

// invoke pushes a fresh frame for cl, runs it to completion via a nested
// loop, and pops back to the caller's frame depth. Used both by OpCall
// (self already resolved as a *Cell) and by Closure.Call (self is nil).
func (vm *VM) invoke(ctx context.Context, cl *Closure, self *types.Cell, args []any) (types.Cell, error) {
	fr := &frame{chunk: cl.proto.Chunk, upvalues: cl.upvalues}
	fr.locals = make([]*types.Cell, cl.proto.NumSlots)
	for i := range fr.locals {
		c := types.NilCell(vm.core.Nil)
		fr.locals[i] = &c
	}
	if self != nil {
		sc := *self
		fr.locals[0] = &sc
	}
	for i := 0; i < cl.proto.NumParams; i++ {
		if i < len(args) {
			c := vm.argToCell(args[i])
			fr.locals[i+1] = &c
		}
	}
	floor := len(vm.frames)
	vm.frames = append(vm.frames, fr)
	return vm.loop(ctx, floor)
}

func (vm *VM) argToCell(v any) types.Cell {
	switch x := v.(type) {
	case types.Cell:
		return x
	case nil:
		return types.NilCell(vm.core.Nil)
	case int64:
		return types.NewCell(vm.core.Int, []any{x})
	case int:
		return types.NewCell(vm.core.Int, []any{int64(x)})
	case float64:
		return types.NewCell(vm.core.Float, []any{x})
	case string:
		return types.NewCell(vm.core.String, []any{x})
	case bool:
		return types.NewCell(vm.core.Bool, []any{x})
	case *types.StructObj:
		return types.NewCell(vm.core.Struct, []any{x})
	default:
		return types.NewCell(vm.core.String, []any{x})
	}
}

func (vm *VM) cellToArg(c types.Cell) any {
	if !c.IsValid() {
		return nil
	}
	if c.Len() == 1 {
		return c.Scalar()
	}
	return c
}

// Run executes a compiled module body as its own implicit function
// (spec.md §4.6), honoring ctx for cooperative cancellation (spec.md §9
// property 11, scenario S8).
func Run(ctx context.Context, core *types.Core, globals map[string]types.Cell, proto *compiler.FunctionProto) (types.Cell, error) {
	vm := New(core, globals)
	fr := &frame{chunk: proto.Chunk, locals: make([]*types.Cell, proto.NumSlots)}
	for i := range fr.locals {
		c := types.NilCell(core.Nil)
		fr.locals[i] = &c
	}
	vm.frames = append(vm.frames, fr)
	return vm.loop(ctx, 0)
}

func (vm *VM) push(c types.Cell) { vm.stack = append(vm.stack, c) }

func (vm *VM) pop() types.Cell {
	n := len(vm.stack)
	c := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return c
}

func (vm *VM) top() *frame { return vm.frames[len(vm.frames)-1] }

// loop drives the fetch-decode-execute cycle until the frame at index
// floor returns, at which point control goes back to whichever Go call
// pushed it (the top-level Run, or a nested Closure.Call). Frames above
// floor come and go as OpCall/OpReturn execute, without any further Go
// recursion — only a Callable invoked as a host callback re-enters loop.
func (vm *VM) loop(ctx context.Context, floor int) (types.Cell, error) {
	for {
		fr := vm.top()
		vm.instrSinceCheck++
		if vm.instrSinceCheck >= 256 {
			vm.instrSinceCheck = 0
			select {
			case <-ctx.Done():
				return types.Cell{}, errs.NewInterruptedExecution(fr.chunk.SpanAt(fr.ip))
			default:
			}
		}
		if fr.ip >= fr.chunk.Len() {
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) <= floor {
				return types.NilCell(vm.core.Nil), nil
			}
			vm.push(types.NilCell(vm.core.Nil))
			continue
		}
		op := bytecode.OpCode(fr.chunk.Code[fr.ip])
		span := fr.chunk.SpanAt(fr.ip)
		fr.ip++
		returned, result, err := vm.exec(ctx, fr, op, span)
		if err != nil {
			return types.Cell{}, err
		}
		if returned {
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) <= floor {
				return result, nil
			}
			vm.push(result)
		}
	}
}
