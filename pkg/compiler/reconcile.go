package compiler

import "errors"

var errCompositeOperand = errors.New("Don't know how to do this yet")

var voidPtr = TypeVoid + 1

// Reconcile adapts the expression n so it can be used against rtype in the
// context of op. It returns n itself when nothing needs to change, a Widen or
// Scale wrapping n when a conversion is needed, and nil when the two types
// are incompatible. op is OpNone for assignments, returns and initialisers.
//
// void* only unifies with another pointer type in OpNone contexts.
func Reconcile(n Node, rtype Type, rctype *Symbol, op Op) (Node, error) {
	ltype := n.Info().Type

	// Only the truth value matters for && and ||.
	if op == OpLogOr || op == OpLogAnd {
		if !ltype.IsInt() && !ltype.IsPtr() {
			return nil, nil
		}
		if !rtype.IsInt() && !rtype.IsPtr() {
			return nil, nil
		}
		return n, nil
	}

	if ltype.IsComposite() || rtype.IsComposite() {
		return nil, errCompositeOperand
	}

	if ltype.IsInt() && rtype.IsInt() {
		if ltype == rtype {
			return n, nil
		}
		lsize, _ := PrimSize(ltype)
		rsize, _ := PrimSize(rtype)
		if lsize > rsize {
			return nil, nil
		}
		if rsize > lsize {
			return newWiden(n, rtype), nil
		}
	}

	if ltype.IsPtr() && rtype.IsPtr() {
		if op.IsComparison() {
			return n, nil
		}
		if op == OpNone && (ltype == rtype || ltype == voidPtr) {
			return n, nil
		}
	}

	// Pointer arithmetic scales the integer side by the pointee size.
	if op == OpAdd || op == OpSubtract || op == OpAsPlus || op == OpAsMinus {
		if ltype.IsInt() && rtype.IsPtr() {
			pointee, _ := rtype.ValueAt()
			size, err := TypeSize(pointee, rctype)
			if err != nil {
				return nil, err
			}
			if size > 1 {
				return newScale(n, rtype, rctype, size), nil
			}
			return newWiden(n, rtype), nil
		}
	}

	return nil, nil
}
