package types

import "adastra/internal/errs"

// Field reads a named member off a Cell (spec.md §4.1 "field access" and
// the universal ".len" field). A Type's own Fields table always takes
// precedence — that is how String overrides ".len" to report its byte
// length instead of the generic array dimension (property 6: `"".len == 0`
// yet `""?` is true, because NilTestFn is what actually governs `?`, not
// `.len`). A Struct Cell's dynamic keys (spec.md §4.7 — a script `struct{}`
// literal grows its own field set at assignment, including "methods" that
// are just ordinary fields holding closures) live in its *StructObj payload
// rather than in any static Type.Fields table, so they're consulted first.
func (c Cell) Field(span errs.Span, name string) (any, error) {
	if c.len > 0 {
		if so, ok := c.Scalar().(*StructObj); ok {
			if err := c.AcquireRead(span); err != nil {
				return nil, err
			}
			defer c.ReleaseRead()
			if v, ok := so.Get(StructKey(name)); ok {
				return v, nil
			}
		}
	}
	if f, ok := c.alloc.typ.Fields[name]; ok {
		if err := c.AcquireRead(span); err != nil {
			return nil, err
		}
		defer c.ReleaseRead()
		return f.Get(c.Scalar())
	}
	if name == "len" {
		return int64(c.len), nil
	}
	return nil, errs.NewMissingField(span, name, c.alloc.typ.Name)
}

// SetField writes a named member (spec.md §4.1 "field access"). value is
// always the full assigned Cell: a Struct target stores it verbatim
// (growing its dynamic field set on first assignment, so a field can hold
// an array or nested struct without flattening); any other Type's Fields
// entry gets value's bare scalar, matching Field.Get/Set's native-payload
// signature. Any name outside a non-Struct Type's declared Fields is
// rejected.
func (c Cell) SetField(span errs.Span, name string, value Cell) error {
	if c.len > 0 {
		if so, ok := c.Scalar().(*StructObj); ok {
			if err := c.AcquireWrite(span); err != nil {
				return err
			}
			defer c.ReleaseWrite()
			so.Set(StructKey(name), value)
			return nil
		}
	}
	f, ok := c.alloc.typ.Fields[name]
	if !ok {
		return errs.NewMissingField(span, name, c.alloc.typ.Name)
	}
	if f.Set == nil {
		return errs.NewBorrowViolation(span, "field %q of type %q is read-only", name, c.alloc.typ.Name)
	}
	if err := c.AcquireWrite(span); err != nil {
		return err
	}
	defer c.ReleaseWrite()
	return f.Set(c.Scalar(), value.Scalar())
}

// Method looks up a named method descriptor for dynamic dispatch
// (`obj.m(args)` — spec.md §4.7 binds `self` to obj for the call).
func (c Cell) Method(span errs.Span, name string) (*Method, error) {
	m, ok := c.alloc.typ.Methods[name]
	if !ok {
		return nil, errs.NewMissingMethod(span, name, c.alloc.typ.Name)
	}
	return m, nil
}
