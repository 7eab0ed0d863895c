package bytecode

// OpCode is one instruction in a Chunk's Code stream, spec.md §4.6. Each
// constant names the operand bytes that follow it.
type OpCode byte

const (
	// Stack/constants
	OpConstant    OpCode = iota // u16 constant index
	OpNil                       // push Nil
	OpTrue                      // push true
	OpFalse                     // push false
	OpPop                       // discard top
	OpDup                       // duplicate top

	// Locals/globals — slots are resolved by the compiler, not by name at
	// runtime (spec.md §4.5 scopes are compiled away).
	OpGetLocal  // u16 slot
	OpSetLocal  // u16 slot
	OpGetUpval  // u16 upvalue index, for captured closure cells
	OpSetUpval  // u16 upvalue index
	OpGetGlobal // u16 constant index (name) — host exports, package statics

	// Operators — generic, dispatched through internal/types' capability
	// tables at runtime (spec.md §4.2 operator resolution), never
	// type-specific at the bytecode level. Operand is a u16 constant index
	// naming the operator string ("+", "==", ...).
	OpBinaryOp
	OpUnaryOp
	OpNilTest   // `x?`
	OpDeepClone // `*x`

	// Control flow — all jump targets are absolute byte offsets into Code,
	// patched after the jump's destination is known.
	OpJump        // u16 target
	OpJumpIfFalse // u16 target, does not pop (the compiler emits OpPop on both paths)
	OpJumpIfTrue  // u16 target, does not pop (used for short-circuit ||)

	// Calls/returns. Stack on entry, bottom to top: self, callee, arg1..argN.
	OpCall    // u8 argc (explicit args only; self and callee are implicit)
	OpClosure // u16 constant index of a *compiler.FunctionProto (chunk + param count + upvalue capture plan)
	OpReturn
	OpReturnNil

	// Composite construction
	OpArray      // u16 element count
	OpStructNew  // begin a struct literal
	OpStructSet  // u16 constant index (field key) — pops value, sets field
	OpIndex      // pops index, object; pushes element
	OpIndexRange // pops end, start (may be sentinel -1 for open-ended), object; pushes sub-array
	OpSetIndex   // pops index, object, value
	OpField      // u16 constant index (field name)
	OpSetField   // u16 constant index (field name); pops object, value

	// Loop support
	OpLoop        // u16 target (backward jump)
	OpBreakTarget // reserved opcode kept for symmetry with OpLoop during disassembly; the compiler never emits it (break compiles to OpJump)
	OpContinueLoop

	// Errors — a statement the analyzer could not fully resolve still
	// compiles to a chunk that raises at the point of failure rather than
	// refusing to produce bytecode at all (spec.md §7 "never abort before
	// execution").
	OpRaise // u16 constant index of an errs.Diagnostic, raised as a CompileError

	OpHostCall // u16 constant index ("package.item"); u8 argc — calls into a hostabi-registered function

	OpLen // pops a Cell, pushes an Int Cell holding its Len() — backs both the `len` keyword and for-in's bound check
)

// Name returns a disassembler-friendly mnemonic.
func (op OpCode) Name() string {
	names := [...]string{
		"CONSTANT", "NIL", "TRUE", "FALSE", "POP", "DUP",
		"GET_LOCAL", "SET_LOCAL", "GET_UPVAL", "SET_UPVAL", "GET_GLOBAL",
		"BINARY_OP", "UNARY_OP", "NIL_TEST", "DEEP_CLONE",
		"JUMP", "JUMP_IF_FALSE", "JUMP_IF_TRUE",
		"CALL", "CLOSURE", "RETURN", "RETURN_NIL",
		"ARRAY", "STRUCT_NEW", "STRUCT_SET", "INDEX", "INDEX_RANGE", "SET_INDEX", "FIELD", "SET_FIELD",
		"LOOP", "BREAK_TARGET", "CONTINUE_LOOP",
		"RAISE", "HOST_CALL", "LEN",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "UNKNOWN"
}
