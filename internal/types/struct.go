package types

import "adastra/internal/errs"

// StructKey is either a string (identifier key) or int64 (unsigned-integer
// key), per spec.md §6 "struct{…} supports identifier or unsigned-integer
// keys".
type StructKey any

// StructObj is the payload of a Struct-typed Cell: an insertion-ordered,
// dynamically-growing keyed container (spec.md §4.7 "builds a keyed
// container with insertion order preserved"). Fields are plain Cells so a
// struct field can itself hold any script value, including a closure
// bound method.
type StructObj struct {
	order []StructKey
	vals  map[StructKey]Cell
}

// NewStructObj creates an empty struct payload; fields are added on first
// assignment (spec.md §6).
func NewStructObj() *StructObj {
	return &StructObj{vals: make(map[StructKey]Cell)}
}

// Get returns the field and whether it exists.
func (s *StructObj) Get(key StructKey) (Cell, bool) {
	c, ok := s.vals[key]
	return c, ok
}

// Set adds or overwrites a field, preserving first-insertion order.
func (s *StructObj) Set(key StructKey, value Cell) {
	if _, exists := s.vals[key]; !exists {
		s.order = append(s.order, key)
	}
	s.vals[key] = value
}

// Keys returns fields in insertion order.
func (s *StructObj) Keys() []StructKey {
	return s.order
}

func (s *StructObj) Len() int { return len(s.order) }

// Clone deep-copies a struct payload, used by the Struct Type's CloneFn
// (`*x`, spec.md §4.1).
func (s *StructObj) Clone() *StructObj {
	out := NewStructObj()
	for _, k := range s.order {
		v := s.vals[k]
		cloned, err := v.DeepClone(errs.Span{})
		if err != nil {
			// DeepClone only fails on a live borrow violation; a struct's
			// own fields are never concurrently borrowed from within a
			// clone of their owner, so fall back to a shallow retain.
			cloned = v.Retain()
		}
		out.Set(k, cloned)
	}
	return out
}
