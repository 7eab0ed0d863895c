package types

import "adastra/internal/errs"

// BinaryDispatch implements spec.md §4.1 "Operator dispatch": consult the
// left operand's Type; if it implements op with some expected right Type,
// cast the right operand using that Type's casting rules, else fail with
// MissingOperator.
func BinaryDispatch(span errs.Span, op string, left, right Cell) (any, error) {
	ov, ok := left.Type().HasBinaryOp(op)
	if !ok {
		return nil, errs.NewMissingOperator(span, op, left.Type().Name)
	}
	rightPayload := right.Scalar()
	if right.Type() != ov.RightType {
		if ov.RightType.Cast == nil {
			return nil, errs.NewTypeMismatch(span, "operator %q on %s expects %s, got %s", op, left.Type().Name, ov.RightType.Name, right.Type().Name)
		}
		cast, err := ov.RightType.Cast(rightPayload)
		if err != nil {
			return nil, err
		}
		rightPayload = cast
	}
	return ov.Apply(left.Scalar(), rightPayload)
}

// UnaryDispatch implements `-x`/`!x` (spec.md §4.1).
func UnaryDispatch(span errs.Span, op string, operand Cell) (any, error) {
	fn, ok := operand.Type().UnaryOps[op]
	if !ok {
		return nil, errs.NewMissingOperator(span, op, operand.Type().Name)
	}
	return fn(operand.Scalar())
}

// Assign implements `a = b` (spec.md §4.1 "Assignment is implicit for every
// writable type"): cast b into a's Type if needed.
func Assign(span errs.Span, target *Type, value Cell) (any, error) {
	if value.Type() == target {
		return value.Scalar(), nil
	}
	if target.Cast == nil {
		return nil, errs.NewTypeMismatch(span, "cannot assign %s into %s", value.Type().Name, target.Name)
	}
	return target.Cast(value.Scalar())
}

// ConstructArray implements the canonical array constructor `[x1,...,xn]`
// (spec.md §4.1): resolves the element type from the first non-nil
// argument, flattens nil and empty arrays into the result, and casts every
// other element — stringifying via Display when the element type is
// String (property 7: `[a, [], b] == [a, b]`; `[[10]] == 10`).
func ConstructArray(span errs.Span, nilType *Type, args []Cell) (Cell, error) {
	var elemType *Type
	for _, a := range args {
		if a.Type() != nilType && a.Len() > 0 {
			elemType = a.Type()
			break
		}
	}
	if elemType == nil {
		return NewCell(nilType, nil), nil
	}
	var out []any
	for _, a := range args {
		if a.Type() == nilType || a.Len() == 0 {
			continue // flatten nil/empty
		}
		for i := 0; i < a.Len(); i++ {
			v := a.At(i)
			if a.Type() == elemType {
				out = append(out, v)
				continue
			}
			if elemType == nil {
				out = append(out, v)
				continue
			}
			var cast any
			var err error
			if elemType.Cast != nil {
				cast, err = elemType.Cast(v)
			} else if elemType.DisplayFn != nil {
				// element type is String (or Display-capable): stringify
				// foreign elements via Display (spec.md §4.1).
				cast = a.Type().DisplayFn(v)
				err = nil
			} else {
				err = errs.NewCastFailure(span, "cannot cast %s into array of %s", a.Type().Name, elemType.Name)
			}
			if err != nil {
				return Cell{}, err
			}
			out = append(out, cast)
		}
	}
	return NewCell(elemType, out), nil
}
