package types

import (
	"adastra/internal/errs"

	"golang.org/x/exp/constraints"
)

// castInteger converts any supported numeric Go value into the destination
// integer type T, truncating (lossy) on narrowing and wrapping on overflow
// — the engine's Open Question resolution (DESIGN.md "wrap", not saturate
// or fail) for same-width overflow, while still refusing an out-of-range
// unsigned target per spec.md §4.1 "refused at runtime if the value does
// not fit an unsigned target".
func castInteger[T constraints.Integer](span errs.Span, value any, unsigned bool) (T, error) {
	var f float64
	switch v := value.(type) {
	case int64:
		f = float64(v)
	case float64:
		f = v
	case bool:
		if v {
			f = 1
		}
	default:
		var zero T
		return zero, errs.NewCastFailure(span, "cannot cast %T to integer", value)
	}
	if unsigned && f < 0 {
		var zero T
		return zero, errs.NewCastFailure(span, "value %v does not fit an unsigned target", f)
	}
	return T(int64(f)), nil // wraps via Go's own int64->T truncation, per the wrap decision
}

// castFloat widens any supported numeric Go value into T (spec.md §4.1
// "widening for float target" — never lossy for the magnitudes the engine
// supports).
func castFloat[T constraints.Float](value any) (T, error) {
	switch v := value.(type) {
	case int64:
		return T(v), nil
	case float64:
		return T(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		var zero T
		return zero, errs.NewCastFailure(errs.Span{}, "cannot cast %T to float", value)
	}
}

// wrapAdd64/wrapSub64/wrapMul64 implement the engine's chosen integer
// overflow behavior (wrap, DESIGN.md Open Question) using unsigned
// arithmetic's well-defined wraparound, then reinterpreting the bits as
// signed — idiomatic Go two's-complement wrap.
func wrapAdd64(a, b int64) int64 { return int64(uint64(a) + uint64(b)) }
func wrapSub64(a, b int64) int64 { return int64(uint64(a) - uint64(b)) }
func wrapMul64(a, b int64) int64 { return int64(uint64(a) * uint64(b)) }
