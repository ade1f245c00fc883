package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func lit(v int64, t Type) *IntLit { return newIntLit(v, t, 1) }

func TestReconcile(t *testing.T) {
	pair := &Symbol{Name: "pair", Type: TypeStruct, Size: 12}

	t.Run("SameIntegerType", func(t *testing.T) {
		n := lit(1, TypeInt)
		got, err := Reconcile(n, TypeInt, nil, OpNone)
		require.NoError(t, err)
		assert.Same(t, n, got)
	})

	t.Run("NarrowerIsWidened", func(t *testing.T) {
		n := lit(1, TypeChar)
		got, err := Reconcile(n, TypeLong, nil, OpAdd)
		require.NoError(t, err)
		w, ok := got.(*Widen)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, TypeLong, w.Type)
		assert.Same(t, n, w.Operand)
	})

	t.Run("WiderIsIncompatible", func(t *testing.T) {
		got, err := Reconcile(lit(1000, TypeLong), TypeInt, nil, OpNone)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("PointerComparison", func(t *testing.T) {
		n := lit(0, TypeChar+1)
		got, err := Reconcile(n, TypeLong+1, nil, OpEq)
		require.NoError(t, err)
		assert.Same(t, n, got)
	})

	t.Run("VoidPointerAssignment", func(t *testing.T) {
		n := lit(0, TypeVoid+1)
		got, err := Reconcile(n, TypeInt+1, nil, OpNone)
		require.NoError(t, err)
		assert.Same(t, n, got)

		got, err = Reconcile(lit(0, TypeInt+1), TypeVoid+1, nil, OpNone)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("MismatchedPointerAssignment", func(t *testing.T) {
		got, err := Reconcile(lit(0, TypeInt+1), TypeChar+1, nil, OpNone)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CharPointerArithmeticWidens", func(t *testing.T) {
		got, err := Reconcile(lit(3, TypeInt), TypeChar+1, nil, OpAdd)
		require.NoError(t, err)
		w, ok := got.(*Widen)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, TypeChar+1, w.Type)
	})

	t.Run("StructPointerArithmeticScales", func(t *testing.T) {
		got, err := Reconcile(lit(3, TypeInt), TypeStruct+1, pair, OpAsPlus)
		require.NoError(t, err)
		s, ok := got.(*Scale)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, 12, s.Size)
		assert.Same(t, pair, s.Ctype)
	})

	t.Run("PointerTimesIntIsIncompatible", func(t *testing.T) {
		got, err := Reconcile(lit(3, TypeInt), TypeInt+1, nil, OpMultiply)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("LogicalAcceptsScalars", func(t *testing.T) {
		n := lit(0, TypeChar+1)
		got, err := Reconcile(n, TypeInt, nil, OpLogAnd)
		require.NoError(t, err)
		assert.Same(t, n, got)

		got, err = Reconcile(lit(0, TypeStruct), TypeInt, nil, OpLogOr)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CompositeIsAnError", func(t *testing.T) {
		_, err := Reconcile(lit(0, TypeStruct), TypeInt, nil, OpAdd)
		assert.Equal(t, errCompositeOperand, err)
	})
}

// Widening only ever goes one way between two integer types.
func TestReconcileIsAsymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lt := rapid.SampledFrom(scalarTypes).Draw(t, "left")
		var others []Type
		for _, typ := range scalarTypes {
			if typ != lt {
				others = append(others, typ)
			}
		}
		rt := rapid.SampledFrom(others).Draw(t, "right")

		l2r, err := Reconcile(lit(1, lt), rt, nil, OpAdd)
		require.NoError(t, err)
		r2l, err := Reconcile(lit(1, rt), lt, nil, OpAdd)
		require.NoError(t, err)

		assert.True(t, (l2r == nil) != (r2l == nil), "exactly one side widens")
		lsize, _ := PrimSize(lt)
		rsize, _ := PrimSize(rt)
		if lsize < rsize {
			assert.IsType(t, &Widen{}, l2r)
		} else {
			assert.IsType(t, &Widen{}, r2l)
		}
	})
}

// An integer added to a T* is scaled by sizeof(T) whenever T is wider than
// a byte.
func TestPointerScaling(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		it := rapid.SampledFrom(scalarTypes).Draw(t, "int")
		pointee := rapid.SampledFrom([]Type{TypeChar, TypeInt, TypeLong, TypeChar + 1, TypeStruct}).Draw(t, "pointee")
		op := rapid.SampledFrom([]Op{OpAdd, OpSubtract, OpAsPlus, OpAsMinus}).Draw(t, "op")
		ctype := &Symbol{Type: TypeStruct, Size: rapid.IntRange(1, 64).Draw(t, "structSize")}
		ptr, err := pointee.PointerTo()
		require.NoError(t, err)

		got, err := Reconcile(lit(1, it), ptr, ctype, op)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ptr, got.Info().Type)

		size, err := TypeSize(pointee, ctype)
		require.NoError(t, err)
		if size > 1 {
			s, ok := got.(*Scale)
			require.True(t, ok, "got %T", got)
			assert.Equal(t, size, s.Size)
		} else {
			assert.IsType(t, &Widen{}, got)
		}
	})
}
