package vm

import (
	"context"

	"adastra/internal/bytecode"
	"adastra/internal/compiler"
	"adastra/internal/errs"
	"adastra/internal/types"
)

func (vm *VM) readU16(fr *frame) uint16 {
	v := fr.chunk.ReadUint16(fr.ip)
	fr.ip += 2
	return v
}

func (vm *VM) readByte(fr *frame) byte {
	b := fr.chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) constant(fr *frame, idx uint16) any { return fr.chunk.Constants[idx] }

// exec executes exactly one instruction. When it returns (true, result,
// nil) the current frame has completed (OpReturn/OpReturnNil) and loop
// should pop it; an error return is always fatal to the current Run/invoke
// call, matching spec.md §7's RuntimeError propagation (no recovery inside
// a single execution).
func (vm *VM) exec(ctx context.Context, fr *frame, op bytecode.OpCode, span errs.Span) (bool, types.Cell, error) {
	switch op {
	case bytecode.OpConstant:
		idx := vm.readU16(fr)
		vm.push(vm.argToCell(vm.constant(fr, idx)))

	case bytecode.OpNil:
		vm.push(types.NilCell(vm.core.Nil))
	case bytecode.OpTrue:
		vm.push(types.NewCell(vm.core.Bool, []any{true}))
	case bytecode.OpFalse:
		vm.push(types.NewCell(vm.core.Bool, []any{false}))
	case bytecode.OpPop:
		vm.pop()
	case bytecode.OpDup:
		c := vm.pop()
		vm.push(c)
		vm.push(c)

	case bytecode.OpGetLocal:
		slot := vm.readU16(fr)
		vm.push(*fr.locals[slot])
	case bytecode.OpSetLocal:
		slot := vm.readU16(fr)
		v := vm.pop()
		*fr.locals[slot] = v
	case bytecode.OpGetUpval:
		idx := vm.readU16(fr)
		vm.push(*fr.upvalues[idx])
	case bytecode.OpSetUpval:
		idx := vm.readU16(fr)
		v := vm.pop()
		*fr.upvalues[idx] = v
	case bytecode.OpGetGlobal:
		idx := vm.readU16(fr)
		name := vm.constant(fr, idx).(string)
		c, ok := vm.globals[name]
		if !ok {
			return false, types.Cell{}, errs.NewMissingField(span, name, "globals")
		}
		vm.push(c)

	case bytecode.OpBinaryOp:
		idx := vm.readU16(fr)
		opName := vm.constant(fr, idx).(string)
		right := vm.pop()
		left := vm.pop()
		result, err := types.BinaryDispatch(span, opName, left, right)
		if err != nil {
			return false, types.Cell{}, err
		}
		vm.push(vm.argToCell(result))
	case bytecode.OpUnaryOp:
		idx := vm.readU16(fr)
		opName := vm.constant(fr, idx).(string)
		operand := vm.pop()
		result, err := types.UnaryDispatch(span, opName, operand)
		if err != nil {
			return false, types.Cell{}, err
		}
		vm.push(vm.argToCell(result))
	case bytecode.OpLen:
		c := vm.pop()
		n := int64(c.Len())
		if fn := c.Type().IterBoundsFn; fn != nil && c.Len() == 1 {
			if start, end, ok := fn(c.Scalar()); ok {
				n = 0
				if end > start {
					n = int64(end - start)
				}
			}
		}
		vm.push(types.NewCell(vm.core.Int, []any{n}))
	case bytecode.OpNilTest:
		c := vm.pop()
		vm.push(types.NewCell(vm.core.Bool, []any{c.NilTest()}))
	case bytecode.OpDeepClone:
		c := vm.pop()
		cloned, err := c.DeepClone(span)
		if err != nil {
			return false, types.Cell{}, err
		}
		vm.push(cloned)

	case bytecode.OpJump:
		target := vm.readU16(fr)
		fr.ip = int(target)
	case bytecode.OpJumpIfFalse:
		target := vm.readU16(fr)
		if !isTruthy(vm.top0()) {
			fr.ip = int(target)
		}
	case bytecode.OpJumpIfTrue:
		target := vm.readU16(fr)
		c := vm.top0()
		if isTruthy(c) {
			fr.ip = int(target)
		}

	case bytecode.OpLoop:
		target := vm.readU16(fr)
		fr.ip = int(target)

	case bytecode.OpCall:
		argc := int(vm.readByte(fr))
		args := make([]any, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = vm.cellToArg(vm.pop())
		}
		calleeCell := vm.pop()
		selfCell := vm.pop()
		result, err := vm.callValue(ctx, span, calleeCell, selfCell, args)
		if err != nil {
			return false, types.Cell{}, err
		}
		vm.push(result)

	case bytecode.OpClosure:
		idx := vm.readU16(fr)
		proto := vm.constant(fr, idx).(*compiler.FunctionProto)
		cl := &Closure{vm: vm, proto: proto}
		for _, u := range proto.Upvalues {
			if u.FromLocal {
				cl.upvalues = append(cl.upvalues, fr.locals[u.Index])
			} else {
				cl.upvalues = append(cl.upvalues, fr.upvalues[u.Index])
			}
		}
		vm.push(types.NewCell(vm.core.Func, []any{cl}))

	case bytecode.OpReturn:
		return true, vm.pop(), nil
	case bytecode.OpReturnNil:
		return true, types.NilCell(vm.core.Nil), nil

	case bytecode.OpArray:
		n := int(vm.readU16(fr))
		elems := make([]types.Cell, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = vm.pop()
		}
		arr, err := types.ConstructArray(span, vm.core.Nil, elems)
		if err != nil {
			return false, types.Cell{}, err
		}
		vm.push(arr)

	case bytecode.OpStructNew:
		vm.push(types.NewCell(vm.core.Struct, []any{types.NewStructObj()}))
	case bytecode.OpStructSet:
		idx := vm.readU16(fr)
		key := vm.constant(fr, idx).(string)
		val := vm.pop()
		target := vm.top0()
		target.Scalar().(*types.StructObj).Set(types.StructKey(key), val)

	case bytecode.OpIndex:
		i := vm.pop()
		obj := vm.pop()
		idx, ok := asInt(i)
		if !ok {
			return false, types.Cell{}, errs.NewTypeMismatch(span, "index must be an integer")
		}
		if fn := obj.Type().IterBoundsFn; fn != nil && obj.Len() == 1 {
			if start, end, ok := fn(obj.Scalar()); ok {
				if idx < 0 || start+uint64(idx) >= end {
					return false, types.Cell{}, errs.NewBadIndex(span, idx, int(end-start))
				}
				vm.push(types.NewCell(vm.core.Int, []any{int64(start + uint64(idx))}))
				break
			}
		}
		out, err := obj.Index(span, idx)
		if err != nil {
			return false, types.Cell{}, err
		}
		vm.push(out)
	case bytecode.OpIndexRange:
		end := vm.pop()
		start := vm.pop()
		obj := vm.pop()
		s, _ := asInt(start)
		e, ok := asInt(end)
		if !ok || e < 0 {
			e = obj.Len()
		}
		out, err := obj.IndexRange(span, s, e)
		if err != nil {
			return false, types.Cell{}, err
		}
		vm.push(out)
	case bytecode.OpSetIndex:
		i := vm.pop()
		obj := vm.pop()
		val := vm.pop()
		idx, ok := asInt(i)
		if !ok {
			return false, types.Cell{}, errs.NewTypeMismatch(span, "index must be an integer")
		}
		if err := obj.SetElem(span, idx, val.Scalar()); err != nil {
			return false, types.Cell{}, err
		}
	case bytecode.OpField:
		idx := vm.readU16(fr)
		name := vm.constant(fr, idx).(string)
		obj := vm.pop()
		v, ferr := obj.Field(span, name)
		if ferr == nil {
			vm.push(vm.argToCell(v))
			break
		}
		if m, ok := obj.Type().Methods[name]; ok {
			vm.push(types.NewCell(vm.core.Func, []any{&boundMethod{m: m, self: obj.Scalar()}}))
			break
		}
		return false, types.Cell{}, ferr
	case bytecode.OpSetField:
		idx := vm.readU16(fr)
		name := vm.constant(fr, idx).(string)
		obj := vm.pop()
		val := vm.pop()
		if err := obj.SetField(span, name, val); err != nil {
			return false, types.Cell{}, err
		}

	case bytecode.OpRaise:
		idx := vm.readU16(fr)
		d := vm.constant(fr, idx).(errs.Diagnostic)
		return false, types.Cell{}, errs.NewCompileError(span, d.Code, d.Message)

	case bytecode.OpHostCall:
		idx := vm.readU16(fr)
		name := vm.constant(fr, idx).(string)
		argc := int(vm.readByte(fr))
		args := make([]any, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = vm.cellToArg(vm.pop())
		}
		fn, ok := vm.globals[name]
		if !ok {
			return false, types.Cell{}, errs.NewMissingField(span, name, "globals")
		}
		result, err := fn.Type().InvokeFn(fn.Scalar(), args)
		if err != nil {
			return false, types.Cell{}, errs.NewHostCallbackFailure(span, err)
		}
		vm.push(vm.argToCell(result))

	default:
		return false, types.Cell{}, errs.NewCompileError(span, "E-BAD-OPCODE", "unknown opcode in chunk")
	}
	return false, types.Cell{}, nil
}

func (vm *VM) top0() types.Cell { return vm.stack[len(vm.stack)-1] }

func isTruthy(c types.Cell) bool {
	if c.Len() == 0 {
		return false
	}
	if b, ok := c.Scalar().(bool); ok {
		return b
	}
	return c.NilTest()
}

func asInt(c types.Cell) (int, bool) {
	switch v := c.Scalar().(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// boundMethod adapts a host Type.Methods entry to types.Callable so a
// method fetched by OpField (obj.m) flows through OpCall's ordinary
// Func-Type path uniformly with script closures, instead of needing a
// separate dispatch branch in callValue.
type boundMethod struct {
	m    *types.Method
	self any
}

func (b *boundMethod) Call(args []any) (any, error) { return b.m.Call(b.self, args) }
func (b *boundMethod) String() string               { return b.m.Name }

// callValue resolves a callee Cell (always core.Func by this point — a
// bare field access never reaches here, see OpField) into an invocation.
// A script Closure gets its own frame via invoke; anything else (a
// host-bound function or a boundMethod) goes through the Type's InvokeFn.
func (vm *VM) callValue(ctx context.Context, span errs.Span, callee, self types.Cell, args []any) (types.Cell, error) {
	if callee.Type() != vm.core.Func {
		return types.Cell{}, errs.NewTypeMismatch(span, "value of type %q is not callable", callee.Type().Name)
	}
	if cl, ok := callee.Scalar().(*Closure); ok {
		return vm.invoke(ctx, cl, selfOrNil(self), args)
	}
	result, err := callee.Type().InvokeFn(callee.Scalar(), args)
	if err != nil {
		return types.Cell{}, err
	}
	return vm.argToCell(result), nil
}

func selfOrNil(c types.Cell) *types.Cell {
	if !c.IsValid() {
		return nil
	}
	return &c
}
