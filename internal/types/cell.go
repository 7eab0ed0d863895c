package types

import (
	"sync"

	"adastra/internal/errs"
)

// borrowState tracks, per Allocation (not per Cell — spec.md §4.1 "Borrow
// state is tracked per allocation"), whether the allocation currently has an
// exclusive writer or some number of concurrent readers.
type borrowState struct {
	mu      sync.Mutex
	readers int
	writer  bool
}

func (b *borrowState) acquireRead(span errs.Span) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writer {
		return errs.NewBorrowViolation(span, "cannot read: allocation has a live exclusive writer")
	}
	b.readers++
	return nil
}

func (b *borrowState) releaseRead() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readers > 0 {
		b.readers--
	}
}

func (b *borrowState) acquireWrite(span errs.Span) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writer {
		return errs.NewBorrowViolation(span, "cannot write: allocation already has a live exclusive writer")
	}
	if b.readers > 0 {
		return errs.NewBorrowViolation(span, "cannot write: allocation has %d live reader(s)", b.readers)
	}
	b.writer = true
	return nil
}

func (b *borrowState) releaseWrite() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writer = false
}

// Allocation is the single heap object a family of Cells may share
// (spec.md §3 invariant i: "the referenced allocation lives while any Cell
// holds it"). Its Type never changes (invariant ii). elems holds one
// native payload value per array element — spec.md §3 invariant iv treats
// every value as an array of a single element type.
type Allocation struct {
	typ      *Type
	elems    []any
	refcount int32
	borrow   borrowState
}

// NewAllocation creates a fresh, unshared allocation with refcount 1.
func NewAllocation(t *Type, elems []any) *Allocation {
	return &Allocation{typ: t, elems: elems, refcount: 1}
}

func (a *Allocation) retain() { a.refcount++ }

func (a *Allocation) release() {
	a.refcount--
	// spec.md §9: reference counting alone will leak cycles through
	// captured environments or container-typed fields; the engine documents
	// the leak and relies on process teardown rather than a cycle
	// collector. Allocations whose refcount reaches zero are simply no
	// longer reachable from any live Cell; Go's own GC reclaims them once
	// nothing else (including a cyclic closure environment) still points
	// at them.
}

// Cell is the universal script value: a shared handle to a typed Allocation
// plus an optional projection (slice window), spec.md §3.
type Cell struct {
	alloc *Allocation
	off   int
	len   int
}

// NewCell wraps a freshly allocated, whole (unprojected) value.
func NewCell(t *Type, elems []any) Cell {
	return Cell{alloc: NewAllocation(t, elems), off: 0, len: len(elems)}
}

// NilCell is the single inhabitant of the Nil type (spec.md §4.1 "Nil"):
// the empty array. NilType must be the engine's registered Nil type.
func NilCell(nilType *Type) Cell {
	return NewCell(nilType, nil)
}

func (c Cell) Type() *Type { return c.alloc.typ }
func (c Cell) Len() int    { return c.len }

// IsValid reports whether c still references a live allocation (it always
// does once constructed; IsValid exists for zero-value Cell detection in
// callers that use Cell as a map value or struct field default).
func (c Cell) IsValid() bool { return c.alloc != nil }

// Retain increments the backing allocation's refcount — called whenever a
// Cell is copied into a new owning slot (a local, a capture, a struct
// field, a constant pool entry).
func (c Cell) Retain() Cell {
	if c.alloc != nil {
		c.alloc.retain()
	}
	return c
}

// Release decrements the backing allocation's refcount — called when an
// owning slot is overwritten or its scope ends.
func (c Cell) Release() {
	if c.alloc != nil {
		c.alloc.release()
	}
}

func (c Cell) elemsView() []any {
	return c.alloc.elems[c.off : c.off+c.len]
}

// At returns the native payload of the i'th element within this Cell's
// projection (0-based), for internal use by Type capability functions that
// need direct element access (operator dispatch, iteration).
func (c Cell) At(i int) any {
	return c.elemsView()[i]
}

// Scalar returns the first element's native payload — the "singleton
// interchangeable with a scalar" view of spec.md §3 invariant iv. Valid
// only when Len() >= 1.
func (c Cell) Scalar() any {
	return c.At(0)
}

// Index implements integer indexing: yields a singleton slice Cell
// (spec.md §4.1 "Indexing by integer yields a singleton slice").
func (c Cell) Index(span errs.Span, i int) (Cell, error) {
	if i < 0 || i >= c.len {
		return Cell{}, errs.NewBadIndex(span, i, c.len)
	}
	return Cell{alloc: c.alloc, off: c.off + i, len: 1}.Retain(), nil
}

// IndexRange implements range indexing: yields a slice of the sub-range
// (spec.md §4.1). end < start is a BadRange error (spec.md §4.1, property 9).
func (c Cell) IndexRange(span errs.Span, start, end int) (Cell, error) {
	if end < start {
		return Cell{}, errs.NewBadRange(span, start, end)
	}
	if start < 0 || end > c.len {
		return Cell{}, errs.NewBadIndex(span, end, c.len)
	}
	return Cell{alloc: c.alloc, off: c.off + start, len: end - start}.Retain(), nil
}

// NilTest implements `x?` (spec.md §4.1, property 6): false iff the
// referenced value is nil or zero-length, true otherwise.
func (c Cell) NilTest() bool {
	if c.len == 0 {
		return false
	}
	if fn := c.alloc.typ.NilTestFn; fn != nil {
		return fn(c.Scalar())
	}
	return true
}

// DeepClone implements `*x` (spec.md §4.1): produces a fresh allocation
// with the same element values, independent of any borrow on the original.
func (c Cell) DeepClone(span errs.Span) (Cell, error) {
	if err := c.alloc.borrow.acquireRead(span); err != nil {
		return Cell{}, err
	}
	defer c.alloc.borrow.releaseRead()
	src := c.elemsView()
	cloned := make([]any, len(src))
	clone := c.alloc.typ.CloneFn
	for i, v := range src {
		if clone != nil {
			cloned[i] = clone(v)
		} else {
			cloned[i] = v
		}
	}
	return NewCell(c.alloc.typ, cloned), nil
}

// AcquireRead/AcquireWrite/Release* implement the borrow discipline of
// spec.md §4.1: "Slice Cells borrow a sub-range of their parent; taking a
// write on a slice requires exclusive access to the covered range." Because
// borrow state is tracked per allocation (not per projection), any slice
// Cell contends with the whole allocation's readers/writer — a conservative
// but deterministic implementation of the invariant.
func (c Cell) AcquireRead(span errs.Span) error  { return c.alloc.borrow.acquireRead(span) }
func (c Cell) ReleaseRead()                       { c.alloc.borrow.releaseRead() }
func (c Cell) AcquireWrite(span errs.Span) error { return c.alloc.borrow.acquireWrite(span) }
func (c Cell) ReleaseWrite()                      { c.alloc.borrow.releaseWrite() }

// Take implements take-by-value access: if the allocation is exclusively
// owned by this Cell alone it is taken directly, otherwise it is cloned
// implicitly (spec.md §4.1 "take-by-value (with implicit clone when
// shared)").
func (c Cell) Take(span errs.Span) (Cell, error) {
	if c.alloc.refcount == 1 {
		return c, nil
	}
	return c.DeepClone(span)
}

// SetElem overwrites the i'th element (0-based within this Cell's
// projection) with a new native payload, enforcing exclusive access.
func (c Cell) SetElem(span errs.Span, i int, value any) error {
	if i < 0 || i >= c.len {
		return errs.NewBadIndex(span, i, c.len)
	}
	if err := c.AcquireWrite(span); err != nil {
		return err
	}
	defer c.ReleaseWrite()
	c.alloc.elems[c.off+i] = value
	return nil
}

// Display renders a Cell via its Type's Display capability (spec.md §3
// capability set). Falls back to fmt-ish default for singleton scalars
// without a Display implementation.
func (c Cell) Display() string {
	if fn := c.alloc.typ.DisplayFn; fn != nil {
		if c.len == 1 {
			return fn(c.Scalar())
		}
		return fn(c.elemsView())
	}
	return c.alloc.typ.Name
}
