// Package compiler lowers the analyzed parse tree (C4 + C5) into a
// internal/bytecode.Chunk (C6), following the teacher's compiler.go/
// stmt_compiler.go idiom of a Compiler implementing parser's Visitor
// interfaces and writing directly into a Chunk as it walks — generalized
// from the teacher's per-type opcodes (OpAdd/OpEqual/...) to the engine's
// generic OpBinaryOp/OpUnaryOp dispatched through internal/types at
// runtime, and extended with upvalue resolution for closures (spec.md §4.5
// "Closure capture") and a self-slot convention for struct methods.
package compiler

import (
	"adastra/internal/bytecode"
	"adastra/internal/errs"
	"adastra/internal/parser"
)

type local struct {
	name  string
	slot  uint16
	depth int
}

type upvalueDesc struct {
	name    string
	isLocal bool // true: captures enclosing function's local slot; false: captures enclosing function's own upvalue
	index   uint16
}

type loopCtx struct {
	continueTarget int
	breakJumps     []int
}

// Compiler compiles one function body (the top-level script counts as the
// implicit "main" function). Nested FuncLits compile with a fresh Compiler
// whose enclosing field lets upvalue resolution walk outward.
type Compiler struct {
	enclosing  *Compiler
	chunk      *bytecode.Chunk
	locals     []local
	upvalues   []upvalueDesc
	scopeDepth int
	numSlots   uint16
	loops      []loopCtx
	diags      []errs.Diagnostic
}

// FunctionProto is everything the VM needs to instantiate a closure: its
// chunk, how many parameters it binds (after the implicit self slot), the
// total local slot count (self + params + every let/hidden local declared
// anywhere in the body, per declareLocal) the VM must size a frame's locals
// to, and the upvalue capture plan.
type FunctionProto struct {
	Chunk     *bytecode.Chunk
	NumParams int
	NumSlots  int
	Upvalues  []UpvalueSource
}

// UpvalueSource tells the VM, for each upvalue slot of a closure, whether to
// copy a *Cell pointer out of the enclosing frame's locals or out of the
// enclosing closure's own upvalues.
type UpvalueSource struct {
	FromLocal bool
	Index     uint16
}

// Compile compiles a whole module body (statements) into the top-level
// Chunk. It never aborts on a semantic problem the analyzer already
// reported; instead it continues compiling, inserting OpRaise at any point
// it cannot resolve (spec.md §7 "never abort before execution").
func Compile(moduleID string, stmts []parser.Stmt) (*FunctionProto, []errs.Diagnostic) {
	c := newCompiler(nil, "module")
	// Slot 0 is always reserved for `self` (nil outside a method call),
	// matching every function's convention so method/closure calling code
	// does not need to special-case arity.
	c.declareLocal("self")
	for _, s := range stmts {
		c.stmt(s)
	}
	c.chunk.WriteOp(bytecode.OpReturnNil, errs.Span{})
	return &FunctionProto{Chunk: c.chunk, NumParams: 0, NumSlots: int(c.numSlots), Upvalues: nil}, c.diags
}

func newCompiler(enclosing *Compiler, name string) *Compiler {
	return &Compiler{enclosing: enclosing, chunk: bytecode.NewChunk(name)}
}

func (c *Compiler) raise(span errs.Span, code, msg string) {
	d := errs.Diagnostic{Severity: errs.SeverityError, Depth: errs.DepthDeepSemantic, Span: span, Code: code, Message: msg}
	c.diags = append(c.diags, d)
	idx := c.chunk.AddConstant(d)
	c.chunk.WriteOp(bytecode.OpRaise, span)
	c.chunk.WriteUint16(idx, span)
}

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string) uint16 {
	slot := c.numSlots
	c.numSlots++
	c.locals = append(c.locals, local{name: name, slot: slot, depth: c.scopeDepth})
	return slot
}

func (c *Compiler) resolveLocal(name string) (uint16, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return c.locals[i].slot, true
		}
	}
	return 0, false
}

func (c *Compiler) addUpvalue(name string, fromLocal bool, index uint16) uint16 {
	for i, u := range c.upvalues {
		if u.name == name && u.isLocal == fromLocal && u.index == index {
			return uint16(i)
		}
	}
	c.upvalues = append(c.upvalues, upvalueDesc{name: name, isLocal: fromLocal, index: index})
	return uint16(len(c.upvalues) - 1)
}

func (c *Compiler) resolveUpvalue(name string) (uint16, bool) {
	if c.enclosing == nil {
		return 0, false
	}
	if slot, ok := c.enclosing.resolveLocal(name); ok {
		return c.addUpvalue(name, true, slot), true
	}
	if idx, ok := c.enclosing.resolveUpvalue(name); ok {
		return c.addUpvalue(name, false, idx), true
	}
	return 0, false
}

// --- statements ---

func (c *Compiler) stmt(s parser.Stmt) {
	switch st := s.(type) {
	case *parser.LetStmt:
		if st.Expr != nil {
			c.expr(st.Expr)
		} else {
			c.chunk.WriteOp(bytecode.OpNil, st.Span())
		}
		slot := c.declareLocal(st.Name)
		c.chunk.WriteOp(bytecode.OpSetLocal, st.Span())
		c.chunk.WriteUint16(slot, st.Span())
	case *parser.ExprStmt:
		c.expr(st.Expr)
		c.chunk.WriteOp(bytecode.OpPop, st.Span())
	case *parser.LoopStmt:
		c.compileLoop(st)
	case *parser.ForInStmt:
		c.compileForIn(st)
	case *parser.BreakStmt:
		if len(c.loops) == 0 {
			c.raise(st.Span(), "E-BREAK-OUTSIDE-LOOP", "break outside a loop")
			return
		}
		jmp := c.emitJump(bytecode.OpJump, st.Span())
		top := &c.loops[len(c.loops)-1]
		top.breakJumps = append(top.breakJumps, jmp)
	case *parser.ContinueStmt:
		if len(c.loops) == 0 {
			c.raise(st.Span(), "E-CONTINUE-OUTSIDE-LOOP", "continue outside a loop")
			return
		}
		top := c.loops[len(c.loops)-1]
		c.chunk.WriteOp(bytecode.OpLoop, st.Span())
		c.chunk.WriteUint16(uint16(top.continueTarget), st.Span())
	case *parser.ReturnStmt:
		if st.Value != nil {
			c.expr(st.Value)
			c.chunk.WriteOp(bytecode.OpReturn, st.Span())
		} else {
			c.chunk.WriteOp(bytecode.OpReturnNil, st.Span())
		}
	case *parser.UseStmt:
		// Package aliasing is resolved by name at the Field/Ident level;
		// `use` itself needs no bytecode, mirroring the teacher's treatment
		// of imports as a compile-time-only symbol table effect.
	case *parser.InvalidStmt:
		c.raise(st.Span(), "E-INVALID-STMT", "statement could not be parsed")
	}
}

func (c *Compiler) compileLoop(st *parser.LoopStmt) {
	top := c.chunk.Len()
	c.loops = append(c.loops, loopCtx{continueTarget: top})
	c.beginScope()
	for _, bs := range st.Body.Stmts {
		c.stmt(bs)
	}
	c.endScope()
	c.chunk.WriteOp(bytecode.OpLoop, st.Span())
	c.chunk.WriteUint16(uint16(top), st.Span())
	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, j := range ctx.breakJumps {
		c.patchJump(j)
	}
}

// compileForIn lowers `for name in collection { body }` to index-based
// iteration over the collection Cell's length, avoiding a dedicated
// iterator-protocol bytecode sequence for the common array case (spec.md
// §4.2's IterBoundsFn capability is consulted by the VM's OpLen and
// OpIndex, not by a distinct opcode here).
func (c *Compiler) compileForIn(st *parser.ForInStmt) {
	span := st.Span()
	c.beginScope()
	c.expr(st.Collection)
	collSlot := c.declareLocal(" for.coll")
	c.chunk.WriteOp(bytecode.OpSetLocal, span)
	c.chunk.WriteUint16(collSlot, span)

	c.chunk.WriteOp(bytecode.OpConstant, span)
	c.chunk.WriteUint16(c.chunk.AddConstant(int64(0)), span)
	idxSlot := c.declareLocal(" for.idx")
	c.chunk.WriteOp(bytecode.OpSetLocal, span)
	c.chunk.WriteUint16(idxSlot, span)

	top := c.chunk.Len()
	c.loops = append(c.loops, loopCtx{continueTarget: top})

	c.chunk.WriteOp(bytecode.OpGetLocal, span)
	c.chunk.WriteUint16(idxSlot, span)
	c.chunk.WriteOp(bytecode.OpGetLocal, span)
	c.chunk.WriteUint16(collSlot, span)
	c.chunk.WriteOp(bytecode.OpLen, span)
	c.chunk.WriteOp(bytecode.OpBinaryOp, span)
	c.chunk.WriteUint16(c.chunk.AddConstant("<"), span)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse, span)
	c.chunk.WriteOp(bytecode.OpPop, span)

	c.beginScope()
	c.chunk.WriteOp(bytecode.OpGetLocal, span)
	c.chunk.WriteUint16(collSlot, span)
	c.chunk.WriteOp(bytecode.OpGetLocal, span)
	c.chunk.WriteUint16(idxSlot, span)
	c.chunk.WriteOp(bytecode.OpIndex, span)
	loopVarSlot := c.declareLocal(st.Name)
	c.chunk.WriteOp(bytecode.OpSetLocal, span)
	c.chunk.WriteUint16(loopVarSlot, span)
	for _, bs := range st.Body.Stmts {
		c.stmt(bs)
	}
	c.endScope()

	c.chunk.WriteOp(bytecode.OpGetLocal, span)
	c.chunk.WriteUint16(idxSlot, span)
	c.chunk.WriteOp(bytecode.OpConstant, span)
	c.chunk.WriteUint16(c.chunk.AddConstant(int64(1)), span)
	c.chunk.WriteOp(bytecode.OpBinaryOp, span)
	c.chunk.WriteUint16(c.chunk.AddConstant("+"), span)
	c.chunk.WriteOp(bytecode.OpSetLocal, span)
	c.chunk.WriteUint16(idxSlot, span)

	c.chunk.WriteOp(bytecode.OpLoop, span)
	c.chunk.WriteUint16(uint16(top), span)
	c.patchJump(exitJump)
	c.chunk.WriteOp(bytecode.OpPop, span)

	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, j := range ctx.breakJumps {
		c.patchJump(j)
	}
	c.endScope()
}

func (c *Compiler) emitJump(op bytecode.OpCode, span errs.Span) int {
	c.chunk.WriteOp(op, span)
	at := c.chunk.Len()
	c.chunk.WriteUint16(0, span)
	return at
}

func (c *Compiler) patchJump(at int) {
	c.chunk.PatchUint16(at, uint16(c.chunk.Len()))
}

// --- expressions ---

func (c *Compiler) expr(e parser.Expr) {
	switch ex := e.(type) {
	case *parser.Literal:
		c.chunk.WriteOp(bytecode.OpConstant, ex.Span())
		c.chunk.WriteUint16(c.chunk.AddConstant(ex.Value), ex.Span())
	case *parser.ArrayLit:
		for _, el := range ex.Elements {
			c.expr(el)
		}
		c.chunk.WriteOp(bytecode.OpArray, ex.Span())
		c.chunk.WriteUint16(uint16(len(ex.Elements)), ex.Span())
	case *parser.StructLit:
		c.chunk.WriteOp(bytecode.OpStructNew, ex.Span())
		for i, key := range ex.Keys {
			c.expr(ex.Values[i])
			c.chunk.WriteOp(bytecode.OpStructSet, ex.Span())
			c.chunk.WriteUint16(c.chunk.AddConstant(key), ex.Span())
		}
	case *parser.FuncLit:
		c.compileFuncLit(ex)
	case *parser.Ident:
		c.compileIdent(ex)
	case *parser.Unary:
		c.expr(ex.Operand)
		c.chunk.WriteOp(bytecode.OpUnaryOp, ex.Span())
		c.chunk.WriteUint16(c.chunk.AddConstant(ex.Op), ex.Span())
	case *parser.DeepClone:
		c.expr(ex.Operand)
		c.chunk.WriteOp(bytecode.OpDeepClone, ex.Span())
	case *parser.NilTest:
		c.expr(ex.Operand)
		c.chunk.WriteOp(bytecode.OpNilTest, ex.Span())
	case *parser.Binary:
		c.expr(ex.Left)
		c.expr(ex.Right)
		c.chunk.WriteOp(bytecode.OpBinaryOp, ex.Span())
		c.chunk.WriteUint16(c.chunk.AddConstant(ex.Op), ex.Span())
	case *parser.Logical:
		c.compileLogical(ex)
	case *parser.Assign:
		c.compileAssign(ex)
	case *parser.Call:
		c.compileCall(ex)
	case *parser.Index:
		c.compileIndex(ex)
	case *parser.Field:
		c.compileField(ex)
	case *parser.If:
		c.compileIf(ex)
	case *parser.Match:
		c.compileMatch(ex)
	case *parser.Block:
		c.compileBlockExpr(ex)
	case *parser.Invalid:
		c.raise(ex.Span(), "E-INVALID-EXPR", "expression could not be parsed")
	}
}

func (c *Compiler) compileIdent(ex *parser.Ident) {
	span := ex.Span()
	if ex.Name == "max" {
		// the platform's maximum unsigned index (spec.md §4.4) — compiled
		// as the same negative sentinel OpIndexRange already treats as
		// "to the end of the collection", since every current use of `max`
		// is as a range's open upper bound (`a[i..max]`, `a..max`).
		c.chunk.WriteOp(bytecode.OpConstant, span)
		c.chunk.WriteUint16(c.chunk.AddConstant(int64(-1)), span)
		return
	}
	if slot, ok := c.resolveLocal(ex.Name); ok {
		c.chunk.WriteOp(bytecode.OpGetLocal, span)
		c.chunk.WriteUint16(slot, span)
		return
	}
	if idx, ok := c.resolveUpvalue(ex.Name); ok {
		c.chunk.WriteOp(bytecode.OpGetUpval, span)
		c.chunk.WriteUint16(idx, span)
		return
	}
	c.chunk.WriteOp(bytecode.OpGetGlobal, span)
	c.chunk.WriteUint16(c.chunk.AddConstant(ex.Name), span)
}

func (c *Compiler) compileLogical(ex *parser.Logical) {
	span := ex.Span()
	c.expr(ex.Left)
	if ex.Op == "&&" {
		skip := c.emitJump(bytecode.OpJumpIfFalse, span)
		c.chunk.WriteOp(bytecode.OpPop, span)
		c.expr(ex.Right)
		c.patchJump(skip)
		return
	}
	skip := c.emitJump(bytecode.OpJumpIfTrue, span)
	c.chunk.WriteOp(bytecode.OpPop, span)
	c.expr(ex.Right)
	c.patchJump(skip)
}

func (c *Compiler) compileAssign(ex *parser.Assign) {
	span := ex.Span()
	c.expr(ex.Value)
	switch target := ex.Target.(type) {
	case *parser.Ident:
		if slot, ok := c.resolveLocal(target.Name); ok {
			c.chunk.WriteOp(bytecode.OpDup, span)
			c.chunk.WriteOp(bytecode.OpSetLocal, span)
			c.chunk.WriteUint16(slot, span)
			return
		}
		if idx, ok := c.resolveUpvalue(target.Name); ok {
			c.chunk.WriteOp(bytecode.OpDup, span)
			c.chunk.WriteOp(bytecode.OpSetUpval, span)
			c.chunk.WriteUint16(idx, span)
			return
		}
		c.raise(span, "E-UNRESOLVED", "assignment to unresolved name: "+target.Name)
	case *parser.Field:
		c.chunk.WriteOp(bytecode.OpDup, span)
		c.expr(target.Object)
		c.chunk.WriteOp(bytecode.OpSetField, span)
		c.chunk.WriteUint16(c.chunk.AddConstant(target.Name), span)
	case *parser.Index:
		c.chunk.WriteOp(bytecode.OpDup, span)
		c.expr(target.Object)
		c.expr(target.Index)
		c.chunk.WriteOp(bytecode.OpSetIndex, span)
	default:
		c.raise(span, "E-BAD-ASSIGN-TARGET", "left side of assignment is not assignable")
	}
}

func (c *Compiler) compileCall(ex *parser.Call) {
	span := ex.Span()
	if id, ok := ex.Callee.(*parser.Ident); ok && id.Name == "len" && len(ex.Args) == 1 {
		if _, shadowed := c.resolveLocal("len"); !shadowed {
			c.expr(ex.Args[0])
			c.chunk.WriteOp(bytecode.OpLen, span)
			return
		}
	}
	// Stack convention before OpCall, bottom to top: self, callee, arg1..argN.
	// argc counts only the explicit arguments; the VM always pops a self
	// (Nil for a free call) beneath the callee.
	if field, ok := ex.Callee.(*parser.Field); ok {
		c.expr(field.Object) // self
		c.chunk.WriteOp(bytecode.OpDup, span)
		c.chunk.WriteOp(bytecode.OpField, span)
		c.chunk.WriteUint16(c.chunk.AddConstant(field.Name), span)
	} else {
		c.chunk.WriteOp(bytecode.OpNil, span) // no bound receiver for a plain call
		c.expr(ex.Callee)
	}
	for _, a := range ex.Args {
		c.expr(a)
	}
	c.chunk.WriteOp(bytecode.OpCall, span)
	c.chunk.WriteByte(byte(len(ex.Args)), span)
}

func (c *Compiler) compileIndex(ex *parser.Index) {
	span := ex.Span()
	c.expr(ex.Object)
	if ex.IsRange {
		if ex.Start != nil {
			c.expr(ex.Start)
		} else {
			c.chunk.WriteOp(bytecode.OpConstant, span)
			c.chunk.WriteUint16(c.chunk.AddConstant(int64(0)), span)
		}
		if ex.End != nil {
			c.expr(ex.End)
		} else {
			c.chunk.WriteOp(bytecode.OpConstant, span)
			c.chunk.WriteUint16(c.chunk.AddConstant(int64(-1)), span) // VM: -1 means "to length"
		}
		c.chunk.WriteOp(bytecode.OpIndexRange, span)
		return
	}
	c.expr(ex.Index)
	c.chunk.WriteOp(bytecode.OpIndex, span)
}

func (c *Compiler) compileField(ex *parser.Field) {
	span := ex.Span()
	if id, ok := ex.Object.(*parser.Ident); ok {
		if _, isLocal := c.resolveLocal(id.Name); !isLocal {
			if _, isUpval := c.resolveUpvalue(id.Name); !isUpval && id.Name != "self" && id.Name != "crate" {
				c.chunk.WriteOp(bytecode.OpGetGlobal, span)
				c.chunk.WriteUint16(c.chunk.AddConstant(id.Name+"."+ex.Name), span)
				return
			}
		}
	}
	c.expr(ex.Object)
	c.chunk.WriteOp(bytecode.OpField, span)
	c.chunk.WriteUint16(c.chunk.AddConstant(ex.Name), span)
}

func (c *Compiler) compileIf(ex *parser.If) {
	span := ex.Span()
	c.expr(ex.Cond)
	skip := c.emitJump(bytecode.OpJumpIfFalse, span)
	c.chunk.WriteOp(bytecode.OpPop, span)
	c.compileBlockExpr(ex.Then)
	done := c.emitJump(bytecode.OpJump, span)
	c.patchJump(skip)
	c.chunk.WriteOp(bytecode.OpPop, span)
	c.chunk.WriteOp(bytecode.OpNil, span) // `if` with no else yields Nil when its condition is false
	c.patchJump(done)
}

func (c *Compiler) compileMatch(ex *parser.Match) {
	span := ex.Span()
	c.expr(ex.Subject)
	var endJumps []int
	for _, arm := range ex.Arms {
		c.chunk.WriteOp(bytecode.OpDup, span)
		c.expr(arm.Pattern)
		c.chunk.WriteOp(bytecode.OpBinaryOp, span)
		c.chunk.WriteUint16(c.chunk.AddConstant("=="), span)
		next := c.emitJump(bytecode.OpJumpIfFalse, span)
		c.chunk.WriteOp(bytecode.OpPop, span)
		c.chunk.WriteOp(bytecode.OpPop, span) // discard the subject copy
		c.expr(arm.Body)
		endJumps = append(endJumps, c.emitJump(bytecode.OpJump, span))
		c.patchJump(next)
		c.chunk.WriteOp(bytecode.OpPop, span)
	}
	c.chunk.WriteOp(bytecode.OpPop, span) // discard the subject
	if ex.Else != nil {
		c.expr(ex.Else)
	} else {
		c.chunk.WriteOp(bytecode.OpNil, span)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) compileBlockExpr(b *parser.Block) {
	c.beginScope()
	if len(b.Stmts) == 0 {
		c.chunk.WriteOp(bytecode.OpNil, b.Span())
		c.endScope()
		return
	}
	for _, s := range b.Stmts[:len(b.Stmts)-1] {
		c.stmt(s)
	}
	last := b.Stmts[len(b.Stmts)-1]
	if es, ok := last.(*parser.ExprStmt); ok {
		c.expr(es.Expr)
	} else {
		c.stmt(last)
		c.chunk.WriteOp(bytecode.OpNil, b.Span())
	}
	c.endScope()
}

// compileFuncLit compiles a nested function body with its own Compiler,
// then emits OpClosure in the enclosing chunk describing how to build its
// upvalue set at runtime (spec.md §4.5 "Closure capture").
func (c *Compiler) compileFuncLit(ex *parser.FuncLit) {
	span := ex.Span()
	fc := newCompiler(c, "fn")
	fc.declareLocal("self")
	for _, p := range ex.Params {
		fc.declareLocal(p)
	}
	fc.beginScope()
	for _, s := range ex.Body.Stmts {
		fc.stmt(s)
	}
	fc.endScope()
	fc.chunk.WriteOp(bytecode.OpReturnNil, span)
	c.diags = append(c.diags, fc.diags...)

	proto := &FunctionProto{Chunk: fc.chunk, NumParams: len(ex.Params), NumSlots: int(fc.numSlots)}
	for _, u := range fc.upvalues {
		proto.Upvalues = append(proto.Upvalues, UpvalueSource{FromLocal: u.isLocal, Index: u.index})
	}

	c.chunk.WriteOp(bytecode.OpClosure, span)
	c.chunk.WriteUint16(c.chunk.AddConstant(proto), span)
}
