package compiler

import (
	"fmt"
	"strings"
)

// Type packs a base kind in the high bits and a pointer indirection depth in
// the low four bits. Callers go through the accessors below and never touch
// the bits directly.
type Type int

// Base kinds. A zero Type means "no type" (statements, glue).
const (
	TypeNone   Type = 0
	TypeVoid   Type = 16
	TypeChar   Type = 32
	TypeInt    Type = 48
	TypeLong   Type = 64
	TypeStruct Type = 80
	TypeUnion  Type = 96
)

const depthMask = 0xf

// Base strips all pointer indirection.
func (t Type) Base() Type { return t &^ depthMask }

// Depth is the pointer indirection count, 0 for a value type.
func (t Type) Depth() int { return int(t & depthMask) }

// IsInt reports whether t is char, int or long.
func (t Type) IsInt() bool {
	return t.Depth() == 0 && t >= TypeChar && t <= TypeLong
}

// IsPtr reports whether t has at least one level of indirection.
func (t Type) IsPtr() bool { return t.Depth() != 0 }

// IsComposite reports whether t is a struct or union value.
func (t Type) IsComposite() bool { return t == TypeStruct || t == TypeUnion }

// PointerTo adds one level of indirection.
func (t Type) PointerTo() (Type, error) {
	if t.Depth() == depthMask {
		return 0, fmt.Errorf("unrecognised in pointer_to: type %d", int(t))
	}
	return t + 1, nil
}

// ValueAt removes one level of indirection.
func (t Type) ValueAt() (Type, error) {
	if t.Depth() == 0 {
		return 0, fmt.Errorf("unrecognised in value_at: type %d", int(t))
	}
	return t - 1, nil
}

func (t Type) String() string {
	var name string
	switch t.Base() {
	case TypeNone:
		return "none"
	case TypeVoid:
		name = "void"
	case TypeChar:
		name = "char"
	case TypeInt:
		name = "int"
	case TypeLong:
		name = "long"
	case TypeStruct:
		name = "struct"
	case TypeUnion:
		name = "union"
	default:
		name = fmt.Sprintf("type%d", int(t.Base()))
	}
	return name + strings.Repeat("*", t.Depth())
}

// PrimSize is the storage size of a scalar or pointer type.
func PrimSize(t Type) (int, error) {
	if t.IsPtr() {
		return 8, nil
	}
	switch t {
	case TypeChar:
		return 1, nil
	case TypeInt:
		return 4, nil
	case TypeLong:
		return 8, nil
	}
	return 0, fmt.Errorf("bad type in cgprimsize: %d", int(t))
}

// TypeSize is the size of t; composites read the precomputed size of ctype.
func TypeSize(t Type, ctype *Symbol) (int, error) {
	if t.IsComposite() {
		if ctype == nil {
			return 0, fmt.Errorf("composite type %s has no definition", t)
		}
		return ctype.Size, nil
	}
	return PrimSize(t)
}

// Align returns a suitably aligned offset for t at or beyond offset moving in
// direction dir (+1 up, -1 down). chars go anywhere; everything else sits on
// a 4-byte boundary.
func Align(t Type, offset, dir int) int {
	if t == TypeChar {
		return offset
	}
	const alignment = 4
	return (offset + dir*(alignment-1)) & ^(alignment - 1)
}

// qbeType is the QBE base type letter for t.
func qbeType(t Type) (byte, error) {
	if t.IsPtr() {
		return 'l', nil
	}
	switch t {
	case TypeVoid:
		return ' ', nil
	case TypeChar, TypeInt:
		return 'w', nil
	case TypeLong:
		return 'l', nil
	}
	return 0, fmt.Errorf("bad type in cgqbetype: %d", int(t))
}
