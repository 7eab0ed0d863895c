package types

import (
	"fmt"
	"strconv"

	"adastra/internal/errs"
)

// Core holds the handful of Types every engine instance registers before
// any host package: the primitives the language surface itself needs
// (spec.md §6 literals, `struct{}`, `fn(){}`, ranges, nil).
type Core struct {
	Nil    *Type
	Bool   *Type
	Int    *Type
	Float  *Type
	String *Type
	Range  *Type
	Struct *Type
	Func   *Type
}

// Callable is satisfied by the VM's closure/native-function payload so
// that the Func Type's InvokeFn can dispatch without types importing vm
// (spec.md §9 "avoid open inheritance hierarchies" — here, avoid an import
// cycle by dispatching on an interface instead of a concrete type).
type Callable interface {
	Call(args []any) (any, error)
	String() string
}

// RegisterCore installs the primitive Types into r and returns handles to
// them. Call once per Registry before registering any host package.
func RegisterCore(r *Registry) (*Core, error) {
	c := &Core{}
	var err error

	c.Nil, err = r.RegisterType(Descriptor{
		Name: "Nil", Package: "core",
		Doc:       "the empty array; the single inhabitant of the Nil type",
		EqualFn:   func(a, b any) bool { return true },
		DisplayFn: func(any) string { return "[]" },
		DebugFn:   func(any) string { return "nil" },
		NilTestFn: func(any) bool { return false },
	}, (*struct{ coreNil byte })(nil))
	if err != nil {
		return nil, err
	}

	c.Bool, err = r.RegisterType(Descriptor{
		Name: "Bool", Package: "core",
		EqualFn:   func(a, b any) bool { return a.(bool) == b.(bool) },
		DisplayFn: func(v any) string { return strconv.FormatBool(v.(bool)) },
		DebugFn:   func(v any) string { return strconv.FormatBool(v.(bool)) },
		CloneFn:   func(v any) any { return v },
		UnaryOps: map[string]UnaryOpFunc{
			"!": func(v any) (any, error) { return !v.(bool), nil },
		},
		Cast: func(v any) (any, error) {
			switch x := v.(type) {
			case bool:
				return x, nil
			case int64:
				return x != 0, nil
			case float64:
				return x != 0, nil
			default:
				return nil, errs.NewCastFailure(errs.Span{}, "cannot cast %T to Bool", v)
			}
		},
	}, (*struct{ coreBool byte })(nil))
	if err != nil {
		return nil, err
	}
	c.Bool.BinaryOps = map[string]*BinaryOp{
		"==": {RightType: c.Bool, Apply: func(l, r any) (any, error) { return l.(bool) == r.(bool), nil }},
		"!=": {RightType: c.Bool, Apply: func(l, r any) (any, error) { return l.(bool) != r.(bool), nil }},
	}

	c.Int, err = r.RegisterType(Descriptor{
		Name: "Int", Package: "core", Family: FamilyInteger,
		EqualFn:   func(a, b any) bool { return a.(int64) == b.(int64) },
		LessFn:    func(a, b any) (bool, bool) { return a.(int64) < b.(int64), true },
		HashFn:    func(v any) uint64 { return uint64(v.(int64)) },
		DisplayFn: func(v any) string { return strconv.FormatInt(v.(int64), 10) },
		DebugFn:   func(v any) string { return strconv.FormatInt(v.(int64), 10) },
		CloneFn:   func(v any) any { return v },
		NilTestFn: func(any) bool { return true },
		UnaryOps: map[string]UnaryOpFunc{
			"-": func(v any) (any, error) { return wrapSub64(0, v.(int64)), nil },
			"!": func(v any) (any, error) { return v.(int64) == 0, nil },
		},
		Cast: func(v any) (any, error) {
			i, err := castInteger[int64](errs.Span{}, v, false)
			return i, err
		},
	}, (*struct{ coreInt byte })(nil))
	if err != nil {
		return nil, err
	}
	c.Int.BinaryOps = intBinaryOps(c.Int)

	c.Float, err = r.RegisterType(Descriptor{
		Name: "Float", Package: "core", Family: FamilyFloat,
		EqualFn:   func(a, b any) bool { return a.(float64) == b.(float64) },
		LessFn:    func(a, b any) (bool, bool) { return a.(float64) < b.(float64), true },
		DisplayFn: func(v any) string { return strconv.FormatFloat(v.(float64), 'g', -1, 64) },
		DebugFn:   func(v any) string { return strconv.FormatFloat(v.(float64), 'g', -1, 64) },
		CloneFn:   func(v any) any { return v },
		NilTestFn: func(any) bool { return true },
		UnaryOps: map[string]UnaryOpFunc{
			"-": func(v any) (any, error) { return -v.(float64), nil },
		},
		Cast: func(v any) (any, error) { return castFloat[float64](v) },
	}, (*struct{ coreFloat byte })(nil))
	if err != nil {
		return nil, err
	}
	c.Float.BinaryOps = floatBinaryOps(c.Float)

	c.String, err = r.RegisterType(Descriptor{
		Name: "String", Package: "core",
		EqualFn:   func(a, b any) bool { return a.(string) == b.(string) },
		LessFn:    func(a, b any) (bool, bool) { return a.(string) < b.(string), true },
		DisplayFn: func(v any) string { return v.(string) },
		DebugFn:   func(v any) string { return strconv.Quote(v.(string)) },
		CloneFn:   func(v any) any { return v },
		// property 6: "".len == 0 yet ""? is true — a String cell is
		// never considered nil by content length, only the dedicated Nil
		// type's empty array is.
		NilTestFn: func(any) bool { return true },
		Fields: map[string]*Field{
			"len": {Name: "len", Access: AccessSharedRead, Get: func(payload any) (any, error) {
				return int64(len(payload.(string))), nil
			}},
		},
		Cast: func(v any) (any, error) {
			switch x := v.(type) {
			case string:
				return x, nil
			case int64:
				return strconv.FormatInt(x, 10), nil
			case float64:
				return strconv.FormatFloat(x, 'g', -1, 64), nil
			case bool:
				return strconv.FormatBool(x), nil
			case fmt.Stringer:
				return x.String(), nil
			default:
				return nil, errs.NewCastFailure(errs.Span{}, "cannot cast %T to String", v)
			}
		},
	}, (*struct{ coreString byte })(nil))
	if err != nil {
		return nil, err
	}
	c.String.BinaryOps = map[string]*BinaryOp{
		"+":  {RightType: c.String, Apply: func(l, r any) (any, error) { return l.(string) + r.(string), nil }},
		"==": {RightType: c.String, Apply: func(l, r any) (any, error) { return l.(string) == r.(string), nil }},
		"!=": {RightType: c.String, Apply: func(l, r any) (any, error) { return l.(string) != r.(string), nil }},
		"<":  {RightType: c.String, Apply: func(l, r any) (any, error) { return l.(string) < r.(string), nil }},
		"<=": {RightType: c.String, Apply: func(l, r any) (any, error) { return l.(string) <= r.(string), nil }},
		">":  {RightType: c.String, Apply: func(l, r any) (any, error) { return l.(string) > r.(string), nil }},
		">=": {RightType: c.String, Apply: func(l, r any) (any, error) { return l.(string) >= r.(string), nil }},
	}

	c.Range, err = r.RegisterType(Descriptor{
		Name: "Range", Package: "core",
		EqualFn: func(a, b any) bool {
			ra, rb := a.(RangeVal), b.(RangeVal)
			return ra == rb
		},
		DisplayFn: func(v any) string {
			rv := v.(RangeVal)
			return fmt.Sprintf("%d..%d", rv.Start, rv.End)
		},
		DebugFn:   func(v any) string { return fmt.Sprintf("%#v", v.(RangeVal)) },
		CloneFn:   func(v any) any { return v },
		NilTestFn: func(any) bool { return true },
		IterBoundsFn: func(v any) (uint64, uint64, bool) {
			rv := v.(RangeVal)
			return rv.Start, rv.End, true
		},
		Fields: map[string]*Field{
			"len": {Name: "len", Access: AccessSharedRead, Get: func(payload any) (any, error) {
				rv := payload.(RangeVal)
				if rv.End < rv.Start {
					return int64(0), nil
				}
				return int64(rv.End - rv.Start), nil
			}},
		},
	}, (*struct{ coreRange byte })(nil))
	if err != nil {
		return nil, err
	}
	c.Range.BinaryOps = map[string]*BinaryOp{
		"==": {RightType: c.Range, Apply: func(l, r any) (any, error) { return l.(RangeVal) == r.(RangeVal), nil }},
		"!=": {RightType: c.Range, Apply: func(l, r any) (any, error) { return l.(RangeVal) != r.(RangeVal), nil }},
	}

	c.Struct, err = r.RegisterType(Descriptor{
		Name: "Struct", Package: "core",
		EqualFn: func(a, b any) bool { return a.(*StructObj) == b.(*StructObj) },
		DisplayFn: func(v any) string {
			s := v.(*StructObj)
			out := "{"
			for i, k := range s.Keys() {
				if i > 0 {
					out += ", "
				}
				val, _ := s.Get(k)
				out += fmt.Sprintf("%v: %s", k, val.Display())
			}
			return out + "}"
		},
		DebugFn:   func(v any) string { return v.(*StructObj).Clone().String() },
		CloneFn:   func(v any) any { return v.(*StructObj).Clone() },
		NilTestFn: func(v any) bool { return v.(*StructObj).Len() > 0 },
		Fields: map[string]*Field{
			"len": {Name: "len", Access: AccessSharedRead, Get: func(payload any) (any, error) {
				return int64(payload.(*StructObj).Len()), nil
			}},
		},
	}, (*struct{ coreStruct byte })(nil))
	if err != nil {
		return nil, err
	}
	c.Struct.BinaryOps = map[string]*BinaryOp{
		"==": {RightType: c.Struct, Apply: func(l, r any) (any, error) { return l.(*StructObj) == r.(*StructObj), nil }},
		"!=": {RightType: c.Struct, Apply: func(l, r any) (any, error) { return l.(*StructObj) != r.(*StructObj), nil }},
	}

	c.Func, err = r.RegisterType(Descriptor{
		Name: "Function", Package: "core",
		DisplayFn: func(v any) string { return v.(Callable).String() },
		DebugFn:   func(v any) string { return v.(Callable).String() },
		NilTestFn: func(any) bool { return true },
		InvokeFn: func(payload any, args []any) (any, error) {
			return payload.(Callable).Call(args)
		},
	}, (*struct{ coreFunc byte })(nil))
	if err != nil {
		return nil, err
	}

	return c, nil
}

// RangeVal is the Range Type's native payload: a half-open unsigned range
// (spec.md §6 "Ranges are half-open unsigned-integer ranges").
type RangeVal struct {
	Start uint64
	End   uint64 // exclusive; max denotes unbounded upper (spec.md §4.5 "max")
}

func (s *StructObj) String() string { return "" } // satisfies fmt.Stringer trivially; real rendering is DisplayFn

func intBinaryOps(intType *Type) map[string]*BinaryOp {
	arith := func(f func(a, b int64) int64) BinaryOpFunc {
		return func(l, r any) (any, error) { return f(l.(int64), r.(int64)), nil }
	}
	return map[string]*BinaryOp{
		"+": {RightType: intType, Apply: arith(wrapAdd64)},
		"-": {RightType: intType, Apply: arith(wrapSub64)},
		"*": {RightType: intType, Apply: arith(wrapMul64)},
		"/": {RightType: intType, Apply: func(l, r any) (any, error) {
			rv := r.(int64)
			if rv == 0 {
				return nil, errs.NewDivisionByZero(errs.Span{})
			}
			return l.(int64) / rv, nil
		}},
		"%": {RightType: intType, Apply: func(l, r any) (any, error) {
			rv := r.(int64)
			if rv == 0 {
				return nil, errs.NewDivisionByZero(errs.Span{})
			}
			return l.(int64) % rv, nil
		}},
		"==": {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) == r.(int64), nil }},
		"!=": {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) != r.(int64), nil }},
		"<":  {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) < r.(int64), nil }},
		"<=": {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) <= r.(int64), nil }},
		">":  {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) > r.(int64), nil }},
		">=": {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) >= r.(int64), nil }},
		"&":  {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) & r.(int64), nil }},
		"|":  {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) | r.(int64), nil }},
		"^":  {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) ^ r.(int64), nil }},
		"<<": {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) << uint64(r.(int64)), nil }},
		">>": {RightType: intType, Apply: func(l, r any) (any, error) { return l.(int64) >> uint64(r.(int64)), nil }},
		"..": {RightType: intType, Apply: func(l, r any) (any, error) {
			return RangeVal{Start: uint64(l.(int64)), End: uint64(r.(int64))}, nil
		}},
	}
}

func floatBinaryOps(floatType *Type) map[string]*BinaryOp {
	arith := func(f func(a, b float64) float64) BinaryOpFunc {
		return func(l, r any) (any, error) { return f(l.(float64), r.(float64)), nil }
	}
	return map[string]*BinaryOp{
		"+": {RightType: floatType, Apply: arith(func(a, b float64) float64 { return a + b })},
		"-": {RightType: floatType, Apply: arith(func(a, b float64) float64 { return a - b })},
		"*": {RightType: floatType, Apply: arith(func(a, b float64) float64 { return a * b })},
		"/": {RightType: floatType, Apply: func(l, r any) (any, error) {
			rv := r.(float64)
			if rv == 0 {
				return nil, errs.NewDivisionByZero(errs.Span{})
			}
			return l.(float64) / rv, nil
		}},
		"==": {RightType: floatType, Apply: func(l, r any) (any, error) { return l.(float64) == r.(float64), nil }},
		"!=": {RightType: floatType, Apply: func(l, r any) (any, error) { return l.(float64) != r.(float64), nil }},
		"<":  {RightType: floatType, Apply: func(l, r any) (any, error) { return l.(float64) < r.(float64), nil }},
		"<=": {RightType: floatType, Apply: func(l, r any) (any, error) { return l.(float64) <= r.(float64), nil }},
		">":  {RightType: floatType, Apply: func(l, r any) (any, error) { return l.(float64) > r.(float64), nil }},
		">=": {RightType: floatType, Apply: func(l, r any) (any, error) { return l.(float64) >= r.(float64), nil }},
	}
}
