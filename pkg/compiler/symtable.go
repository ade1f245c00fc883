package compiler

import (
	"fmt"
	"io"
	"strings"
)

// Kind is the structural kind of a symbol.
type Kind int

const (
	KindVariable Kind = iota
	KindFunction
	KindArray
)

// Class is a symbol's storage class.
type Class int

const (
	ClassNone Class = iota
	ClassGlobal
	ClassLocal
	ClassParam
	ClassExtern
	ClassStatic
	ClassStruct
	ClassUnion
	ClassMember
	ClassEnumType
	ClassEnumVal
	ClassTypedef
)

var classNames = [...]string{
	ClassNone:     "none",
	ClassGlobal:   "global",
	ClassLocal:    "local",
	ClassParam:    "param",
	ClassExtern:   "extern",
	ClassStatic:   "static",
	ClassStruct:   "struct",
	ClassUnion:    "union",
	ClassMember:   "member",
	ClassEnumType: "enumtype",
	ClassEnumVal:  "enumval",
	ClassTypedef:  "typedef",
}

func (c Class) String() string {
	if int(c) >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown class"
}

// isFileScope reports whether storage of class c is a QBE global ($name).
func (c Class) isFileScope() bool {
	return c == ClassGlobal || c == ClassStatic || c == ClassExtern
}

// Symbol is one entry in any of the symbol tables.
//
// The per-kind fields are only meaningful for that kind: EndLabel and
// Defined for functions, HasAddr for locals and parameters, Offset for
// members and Value for enum values.
type Symbol struct {
	Name    string
	Type    Type
	Ctype   *Symbol // struct/union definition for composite types
	Kind    Kind
	Class   Class
	Size    int
	NElems  int       // array length, or parameter count for functions
	Members []*Symbol // composite members, or function parameters
	Init    []int64   // global initial values; string labels for char*

	EndLabel int   // function epilogue label
	Defined  bool  // function has a body
	HasAddr  bool  // local/param must live in a stack slot
	Offset   int   // member byte offset
	Value    int64 // enum value
}

// IsFileScope reports whether the symbol is addressed as a QBE global.
func (s *Symbol) IsFileScope() bool { return s.Class.isFileScope() }

// SymbolTable holds every table family for one translation unit.
type SymbolTable struct {
	Globals  []*Symbol
	Locals   []*Symbol
	Params   []*Symbol
	members  []*Symbol // members of the composite being defined
	Structs  []*Symbol
	Unions   []*Symbol
	Enums    []*Symbol // enum types and enum values
	Typedefs []*Symbol

	// Function is the function whose body is being compiled, nil outside one.
	Function *Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// newSymbol builds a symbol and sizes scalars and arrays of scalars.
func newSymbol(name string, t Type, ctype *Symbol, kind Kind, class Class, nelems int) *Symbol {
	s := &Symbol{Name: name, Type: t, Ctype: ctype, Kind: kind, Class: class, NElems: nelems}
	if t.IsPtr() || t.IsInt() {
		sz, _ := PrimSize(t)
		s.Size = nelems * sz
	} else if t.IsComposite() && ctype != nil {
		s.Size = ctype.Size
	}
	return s
}

func findIn(list []*Symbol, name string, class Class) *Symbol {
	for _, s := range list {
		if s.Name == name && (class == ClassNone || s.Class == class) {
			return s
		}
	}
	return nil
}

// AddGlobal appends a global, extern, static or function symbol.
func (st *SymbolTable) AddGlobal(name string, t Type, ctype *Symbol, kind Kind, class Class, nelems int) *Symbol {
	s := newSymbol(name, t, ctype, kind, class, nelems)
	st.Globals = append(st.Globals, s)
	return s
}

// AddLocal appends a local variable of the current function.
func (st *SymbolTable) AddLocal(name string, t Type, ctype *Symbol, kind Kind, nelems int) *Symbol {
	s := newSymbol(name, t, ctype, kind, ClassLocal, nelems)
	st.Locals = append(st.Locals, s)
	return s
}

// AddParam appends a formal parameter of the function being declared.
func (st *SymbolTable) AddParam(name string, t Type, ctype *Symbol) *Symbol {
	s := newSymbol(name, t, ctype, KindVariable, ClassParam, 1)
	st.Params = append(st.Params, s)
	return s
}

// AddMember appends a member of the composite being defined.
func (st *SymbolTable) AddMember(name string, t Type, ctype *Symbol, kind Kind, nelems int) *Symbol {
	s := newSymbol(name, t, ctype, kind, ClassMember, nelems)
	st.members = append(st.members, s)
	return s
}

// AddStruct registers a new struct tag with no members yet.
func (st *SymbolTable) AddStruct(name string) *Symbol {
	s := &Symbol{Name: name, Type: TypeStruct, Class: ClassStruct}
	st.Structs = append(st.Structs, s)
	return s
}

// AddUnion registers a new union tag with no members yet.
func (st *SymbolTable) AddUnion(name string) *Symbol {
	s := &Symbol{Name: name, Type: TypeUnion, Class: ClassUnion}
	st.Unions = append(st.Unions, s)
	return s
}

// AddEnum registers an enum type (ClassEnumType) or value (ClassEnumVal).
func (st *SymbolTable) AddEnum(name string, class Class, value int64) *Symbol {
	s := &Symbol{Name: name, Type: TypeInt, Class: class, Value: value}
	st.Enums = append(st.Enums, s)
	return s
}

// AddTypedef registers a typedef name for t.
func (st *SymbolTable) AddTypedef(name string, t Type, ctype *Symbol) *Symbol {
	s := &Symbol{Name: name, Type: t, Ctype: ctype, Class: ClassTypedef}
	st.Typedefs = append(st.Typedefs, s)
	return s
}

// FindGlobal looks only at file scope.
func (st *SymbolTable) FindGlobal(name string) *Symbol { return findIn(st.Globals, name, ClassNone) }

// FindLocal looks at the current function's parameters, then its locals.
func (st *SymbolTable) FindLocal(name string) *Symbol {
	if st.Function != nil {
		if s := findIn(st.Function.Members, name, ClassNone); s != nil {
			return s
		}
	}
	return findIn(st.Locals, name, ClassNone)
}

// Lookup resolves an identifier: parameters shadow locals shadow globals.
func (st *SymbolTable) Lookup(name string) *Symbol {
	if s := st.FindLocal(name); s != nil {
		return s
	}
	return st.FindGlobal(name)
}

func (st *SymbolTable) FindMember(name string) *Symbol { return findIn(st.members, name, ClassNone) }
func (st *SymbolTable) FindStruct(name string) *Symbol { return findIn(st.Structs, name, ClassNone) }
func (st *SymbolTable) FindUnion(name string) *Symbol  { return findIn(st.Unions, name, ClassNone) }
func (st *SymbolTable) FindEnumType(name string) *Symbol {
	return findIn(st.Enums, name, ClassEnumType)
}
func (st *SymbolTable) FindEnumVal(name string) *Symbol { return findIn(st.Enums, name, ClassEnumVal) }
func (st *SymbolTable) FindTypedef(name string) *Symbol { return findIn(st.Typedefs, name, ClassNone) }

// takeParams hands the collected parameter list to a function symbol and
// starts a fresh one.
func (st *SymbolTable) takeParams() []*Symbol {
	p := st.Params
	st.Params = nil
	return p
}

// takeMembers hands the collected member list to a composite and starts a
// fresh one.
func (st *SymbolTable) takeMembers() []*Symbol {
	m := st.members
	st.members = nil
	return m
}

// ClearLocals discards the per-function tables once a function's code is
// out.
func (st *SymbolTable) ClearLocals() {
	st.Locals = nil
	st.Params = nil
	st.Function = nil
}

// PurgeStatics drops file-local globals so the next file cannot see them.
func (st *SymbolTable) PurgeStatics() {
	kept := st.Globals[:0]
	for _, s := range st.Globals {
		if s.Class != ClassStatic {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(st.Globals); i++ {
		st.Globals[i] = nil
	}
	st.Globals = kept
}

// Layout assigns member offsets and the composite size. Struct members are
// placed one after another, each aligned for its type; union members all
// share offset 0 and the union is as big as its largest member.
func Layout(composite *Symbol, members []*Symbol) error {
	offset := 0
	for i, m := range members {
		size, err := TypeSize(m.Type, m.Ctype)
		if err != nil {
			return err
		}
		switch {
		case composite.Type == TypeUnion:
			m.Offset = 0
			offset = max(offset, size)
		case i == 0:
			m.Offset = 0
			offset = size
		default:
			m.Offset = Align(m.Type, offset, 1)
			offset = m.Offset + size
		}
	}
	composite.Members = members
	composite.Size = offset
	return nil
}

// Dump writes the Global, Enums and Typedefs tables in the -M format.
func (st *SymbolTable) Dump(w io.Writer) {
	dumpTable(w, st.Globals, "Global", 0)
	fmt.Fprintln(w)
	dumpTable(w, st.Enums, "Enums", 0)
	fmt.Fprintln(w)
	dumpTable(w, st.Typedefs, "Typedefs", 0)
}

func dumpTable(w io.Writer, list []*Symbol, title string, indent int) {
	if len(list) != 0 && title != "" {
		fmt.Fprintf(w, "%s\n--------\n", title)
	}
	for _, s := range list {
		dumpSymbol(w, s, indent)
	}
}

func dumpSymbol(w io.Writer, s *Symbol, indent int) {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", indent))

	switch s.Type.Base() {
	case TypeVoid, TypeChar, TypeInt, TypeLong:
		b.WriteString(s.Type.Base().String() + " ")
	case TypeStruct, TypeUnion:
		tag := s.Name
		if s.Ctype != nil {
			tag = s.Ctype.Name
		}
		fmt.Fprintf(&b, "%s %s ", s.Type.Base(), tag)
	default:
		b.WriteString("unknown type ")
	}
	b.WriteString(strings.Repeat("*", s.Type.Depth()))
	b.WriteString(s.Name)

	switch s.Kind {
	case KindFunction:
		b.WriteString("()")
	case KindArray:
		b.WriteString("[]")
	}
	fmt.Fprintf(&b, ": %s", s.Class)

	switch s.Kind {
	case KindVariable:
		if s.Class == ClassEnumVal {
			fmt.Fprintf(&b, ", value %d", s.Value)
		} else {
			fmt.Fprintf(&b, ", size %d", s.Size)
		}
	case KindFunction:
		fmt.Fprintf(&b, ", %d params", s.NElems)
	case KindArray:
		fmt.Fprintf(&b, ", %d elems, size %d", s.NElems, s.Size)
	}
	fmt.Fprintln(w, b.String())

	if s.Type.IsComposite() || s.Kind == KindFunction {
		// A struct-typed variable shares its definition's members; only the
		// tag itself or a function lists them.
		if s.Class == ClassStruct || s.Class == ClassUnion || s.Kind == KindFunction {
			dumpTable(w, s.Members, "", indent+4)
		}
	}
}
