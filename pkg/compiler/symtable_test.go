package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSymbolTable(t *testing.T) {
	t.Run("ScopeLookup", func(t *testing.T) {
		st := NewSymbolTable()
		g := st.AddGlobal("x", TypeInt, nil, KindVariable, ClassGlobal, 1)
		fn := st.AddGlobal("f", TypeInt, nil, KindFunction, ClassGlobal, 0)
		assert.Same(t, g, st.Lookup("x"))

		st.AddParam("x", TypeLong, nil)
		fn.Members = st.takeParams()
		st.Function = fn
		assert.Equal(t, ClassParam, st.Lookup("x").Class, "parameters shadow globals")

		l := st.AddLocal("y", TypeChar, nil, KindVariable, 1)
		assert.Same(t, l, st.Lookup("y"))
		assert.Equal(t, 1, l.Size)

		st.ClearLocals()
		assert.Same(t, g, st.Lookup("x"))
		assert.Nil(t, st.Lookup("y"))
		assert.Nil(t, st.Function)
	})

	t.Run("PurgeStatics", func(t *testing.T) {
		st := NewSymbolTable()
		st.AddGlobal("a", TypeInt, nil, KindVariable, ClassGlobal, 1)
		st.AddGlobal("b", TypeInt, nil, KindVariable, ClassStatic, 1)
		st.AddGlobal("c", TypeInt, nil, KindFunction, ClassStatic, 0)
		st.AddGlobal("d", TypeInt, nil, KindVariable, ClassExtern, 1)

		st.PurgeStatics()
		var names []string
		for _, s := range st.Globals {
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{"a", "d"}, names)
	})

	t.Run("EnumAndTypedefTables", func(t *testing.T) {
		st := NewSymbolTable()
		st.AddEnum("color", ClassEnumType, 0)
		st.AddEnum("red", ClassEnumVal, 4)
		st.AddTypedef("word", TypeLong, nil)

		assert.NotNil(t, st.FindEnumType("color"))
		assert.Nil(t, st.FindEnumVal("color"))
		assert.Equal(t, int64(4), st.FindEnumVal("red").Value)
		assert.Equal(t, TypeLong, st.FindTypedef("word").Type)
	})
}

func TestLayout(t *testing.T) {
	members := func() []*Symbol {
		return []*Symbol{
			newSymbol("c", TypeChar, nil, KindVariable, ClassMember, 1),
			newSymbol("i", TypeInt, nil, KindVariable, ClassMember, 1),
			newSymbol("d", TypeChar, nil, KindVariable, ClassMember, 1),
			newSymbol("p", TypeLong+1, nil, KindVariable, ClassMember, 1),
		}
	}

	s := &Symbol{Name: "s", Type: TypeStruct, Class: ClassStruct}
	require.NoError(t, Layout(s, members()))
	var offsets []int
	for _, m := range s.Members {
		offsets = append(offsets, m.Offset)
	}
	assert.Equal(t, []int{0, 4, 8, 12}, offsets)
	assert.Equal(t, 20, s.Size)

	u := &Symbol{Name: "u", Type: TypeUnion, Class: ClassUnion}
	require.NoError(t, Layout(u, members()))
	for _, m := range u.Members {
		assert.Zero(t, m.Offset)
	}
	assert.Equal(t, 8, u.Size)
}

func genMembers(t *rapid.T) []*Symbol {
	types := rapid.SliceOfN(rapid.SampledFrom([]Type{TypeChar, TypeInt, TypeLong, TypeChar + 1, TypeInt + 2}), 1, 12).Draw(t, "types")
	var members []*Symbol
	for i, typ := range types {
		members = append(members, newSymbol(string(rune('a'+i)), typ, nil, KindVariable, ClassMember, 1))
	}
	return members
}

// Struct members never overlap and follow each other in order; union
// members all start at 0 and the union is as big as its biggest member.
func TestLayoutProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		members := genMembers(t)
		s := &Symbol{Type: TypeStruct, Class: ClassStruct}
		require.NoError(t, Layout(s, members))

		end := 0
		for i, m := range members {
			size, _ := PrimSize(m.Type)
			if i == 0 {
				assert.Zero(t, m.Offset)
			} else {
				assert.GreaterOrEqual(t, m.Offset, end)
				if m.Type != TypeChar {
					assert.Zero(t, m.Offset%4)
				}
			}
			end = m.Offset + size
		}
		assert.Equal(t, end, s.Size)
	})

	rapid.Check(t, func(t *rapid.T) {
		members := genMembers(t)
		u := &Symbol{Type: TypeUnion, Class: ClassUnion}
		require.NoError(t, Layout(u, members))

		biggest := 0
		for _, m := range members {
			size, _ := PrimSize(m.Type)
			biggest = max(biggest, size)
			assert.Zero(t, m.Offset)
		}
		assert.Equal(t, biggest, u.Size)
	})
}

func TestSymbolDump(t *testing.T) {
	st := NewSymbolTable()
	pair := st.AddStruct("pair")
	require.NoError(t, Layout(pair, []*Symbol{
		newSymbol("a", TypeInt, nil, KindVariable, ClassMember, 1),
		newSymbol("b", TypeInt, nil, KindVariable, ClassMember, 1),
	}))

	st.AddGlobal("x", TypeInt, nil, KindVariable, ClassGlobal, 1)
	buf := st.AddGlobal("buf", TypeChar+1, nil, KindArray, ClassStatic, 0)
	buf.NElems, buf.Size = 10, 10
	st.AddGlobal("p", TypeStruct, pair, KindVariable, ClassGlobal, 1)
	fn := st.AddGlobal("main", TypeInt, nil, KindFunction, ClassGlobal, 1)
	st.AddParam("argc", TypeInt, nil)
	fn.Members = st.takeParams()
	st.AddEnum("color", ClassEnumType, 0)
	st.AddEnum("red", ClassEnumVal, 0)
	st.AddTypedef("word", TypeLong, nil)

	var b strings.Builder
	st.Dump(&b)
	assert.Equal(t, `Global
--------
int x: global, size 4
char *buf[]: static, 10 elems, size 10
struct pair p: global, size 8
int main(): global, 1 params
    int argc: param, size 4

Enums
--------
int color: enumtype, size 0
int red: enumval, value 0

Typedefs
--------
long word: typedef, size 0
`, b.String())
}
