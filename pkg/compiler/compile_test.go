package compiler

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileString(t *testing.T, src string) string {
	t.Helper()
	var out strings.Builder
	require.NoError(t, Compile(src, "t.c", &out, Options{}))
	return out.String()
}

// bodyLines splits ir into lines, blanking function headers so parameter
// names there do not count as uses.
func bodyLines(ir string) []string {
	lines := strings.Split(ir, "\n")
	for i, l := range lines {
		if strings.Contains(l, "function ") {
			lines[i] = ""
		}
	}
	return lines
}

// lineIndex returns the index of the first line at or after from that
// contains substr, or -1.
func lineIndex(lines []string, from int, substr string) int {
	for i := from; i < len(lines); i++ {
		if strings.Contains(lines[i], substr) {
			return i
		}
	}
	return -1
}

// labelIndex returns the index of the line defining label, or -1.
func labelIndex(lines []string, label string) int {
	for i, l := range lines {
		if l == label {
			return i
		}
	}
	return -1
}

var (
	jnzRe = regexp.MustCompile(`^  jnz %\.t\d+, (@L\d+), (@L\d+)$`)
	jmpRe = regexp.MustCompile(`^  jmp (@L\d+)$`)
	addRe = regexp.MustCompile(`^  (%\.t\d+) =w add %\.t\d+, %\.t\d+$`)
)

func TestCompileRoundTripGlobals(t *testing.T) {
	ir := compileString(t, "int a; int b = 3; int main() { a = b + 4; return a; }")
	assert.True(t, strings.HasPrefix(ir, "export data $a = align 4 { w 0, }\nexport data $b = align 4 { w 3, }\n"))

	lines := bodyLines(ir)
	load := lineIndex(lines, 0, "=w loadsw $b")
	require.NotEqual(t, -1, load)

	add := -1
	var sum string
	for i := load + 1; i < len(lines); i++ {
		if m := addRe.FindStringSubmatch(lines[i]); m != nil {
			add, sum = i, m[1]
			break
		}
	}
	require.NotEqual(t, -1, add, "b + 4 is an add after the load of b")

	store := lineIndex(lines, add+1, "storew")
	require.NotEqual(t, -1, store)
	assert.Equal(t, "  storew "+sum+", $a", lines[store], "the sum is stored into a")
}

func TestCompileRoundTrip(t *testing.T) {
	ir := compileString(t, "int x; int main() { x = 3; return x; }")
	assert.Equal(t, `export data $x = align 4 { w 0, }
export function w $main() {
@L2
  %.t1 =w copy 3
  %.t2 =w extub %.t1
  storew %.t2, $x
  %.t3 =w loadsw $x
  %.ret =w copy %.t3
  jmp @L1
@L1
  ret %.ret
}
`, ir)
}

func TestCompileGlobals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "InitialisedScalars",
			src:  "char c = 'A'; int i = 7; long l = 1000; static int s;",
			want: []string{
				"export data $c = align 1 { b 65, }",
				"export data $i = align 4 { w 7, }",
				"export data $l = align 8 { l 1000, }",
				"data $s = align 4 { w 0, }",
			},
		},
		{
			name: "StringPointer",
			src:  `char *msg = "hi" "!";`,
			want: []string{
				"data $L1 = { b 104, b 105, b 33,  b 0 }",
				"export data $msg = align 8 { l $L1, }",
			},
		},
		{
			name: "ArrayPaddedWithZeroes",
			src:  "int a[4] = { 1, 2 };",
			want: []string{"export data $a = align 4 { w 1, w 2, w 0, w 0, }"},
		},
		{
			name: "ArraySizedByInitialiser",
			src:  "char b[] = { 1, 2, 3 };",
			want: []string{"export data $b = align 1 { b 1, b 2, b 3, }"},
		},
		{
			name: "StructVariable",
			src:  "struct pair { int a; long b; }; struct pair p;",
			want: []string{"export data $p = align 8 { z 12, }"},
		},
		{
			name: "ConstantFoldedInitialiser",
			src:  "int k = 2 * 3 + 4;",
			want: []string{"export data $k = align 4 { w 10, }"},
		},
		{
			name: "ExternProducesNoData",
			src:  "extern int e; int main() { return e; }",
			want: []string{"loadsw $e"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ir := compileString(t, tt.src)
			for _, w := range tt.want {
				assert.Contains(t, ir, w)
			}
		})
	}
}

func TestCompileFunctions(t *testing.T) {
	t.Run("Parameters", func(t *testing.T) {
		ir := compileString(t, "long add(int a, long b) { return a + b; }")
		assert.Contains(t, ir, "export function l $add(w %a, l %b, ) {")
		assert.Contains(t, ir, "=l extsw")
		assert.Contains(t, ir, "=l add")
	})

	t.Run("StaticFunctionIsNotExported", func(t *testing.T) {
		ir := compileString(t, "static void f() { return; }")
		assert.True(t, strings.HasPrefix(ir, "function   $f() {"), ir)
		assert.NotContains(t, ir, "export function")
		assert.True(t, strings.HasSuffix(ir, "  ret\n}\n"))
	})

	t.Run("AddressedParameterGetsASlot", func(t *testing.T) {
		ir := compileString(t, "int f(int a) { int *p; p = &a; return *p; }")
		assert.Contains(t, ir, "export function w $f(w %.pa, ) {")
		assert.Contains(t, ir, "%a =l alloc4 1")
		assert.Contains(t, ir, "storew %.pa, %a")
		assert.Contains(t, ir, "=l copy %a")
	})

	t.Run("CharLocalsLiveInMemory", func(t *testing.T) {
		ir := compileString(t, "int f() { char c; c = 1; return c; }")
		assert.Contains(t, ir, "%c =l alloc4 1")
		assert.Contains(t, ir, "loadub %c")
	})

	t.Run("ArgumentsWidenedToParameters", func(t *testing.T) {
		ir := compileString(t, "long g(long x); int f() { g(1); return 0; }")
		assert.Contains(t, ir, "=l extub")
		assert.Contains(t, ir, "call $g(l %.t")
	})

	t.Run("PrototypeThenDefinition", func(t *testing.T) {
		ir := compileString(t, "int f(int a); int f(int b) { return b; }")
		assert.Contains(t, ir, "export function w $f(w %b, ) {")
	})

	t.Run("VoidCall", func(t *testing.T) {
		ir := compileString(t, "void f(int a); int main() { f(5); return 0; }")
		assert.Contains(t, ir, "  call $f(w %.t")
	})
}

func TestCompileExpressions(t *testing.T) {
	t.Run("ShortCircuitAnd", func(t *testing.T) {
		ir := compileString(t, "int f(int a, int b) { return a && b; }")
		assert.Contains(t, ir, "export function w $f(w %a, w %b, ) {")
		assert.Contains(t, ir, "%.t2 =l cnew %.t1, 0")
		assert.Equal(t, 2, strings.Count(ir, "jnz"), "one conditional jump per operand")
	})

	t.Run("ShortCircuitSkipsRightOperand", func(t *testing.T) {
		ir := compileString(t, "int f(int a, int b) { if (a && b) return 1; return 0; }")
		lines := bodyLines(ir)

		useA := lineIndex(lines, 0, "%a")
		useB := lineIndex(lines, 0, "%b")
		require.NotEqual(t, -1, useA)
		require.NotEqual(t, -1, useB)
		require.Less(t, useA, useB, "a is evaluated first")
		assert.Equal(t, -1, lineIndex(lines, useB+1, "%b"), "b is evaluated once")

		jnz := lineIndex(lines, useA, "jnz")
		require.NotEqual(t, -1, jnz)
		require.Less(t, jnz, useB, "a's test comes before b is loaded")
		m := jnzRe.FindStringSubmatch(lines[jnz])
		require.NotNil(t, m, lines[jnz])

		// One target leads on to b, the other skips past it.
		l1, l2 := labelIndex(lines, m[1]), labelIndex(lines, m[2])
		require.NotEqual(t, -1, l1)
		require.NotEqual(t, -1, l2)
		cont, skip := l1, l2
		if l2 < l1 {
			cont, skip = l2, l1
		}
		assert.Greater(t, cont, jnz)
		assert.Less(t, cont, useB)
		assert.Greater(t, skip, useB)
		for i := jnz + 1; i < useB; i++ {
			assert.NotContains(t, lines[i], "jmp", "nothing else jumps past a's test to reach b")
		}
	})

	t.Run("ShortCircuitOr", func(t *testing.T) {
		ir := compileString(t, "int f(int a, int b) { return a || b; }")
		assert.Equal(t, 2, strings.Count(ir, "jnz"))
	})

	t.Run("PointerArithmeticScales", func(t *testing.T) {
		ir := compileString(t, "int *p; int main() { p = p + 1; return 0; }")
		assert.Contains(t, ir, "=l extsw")
		assert.Contains(t, ir, "=l shl")
		assert.Contains(t, ir, ", 2\n")
		assert.Contains(t, ir, "storel")
	})

	t.Run("StructPointerScalesByMultiplying", func(t *testing.T) {
		ir := compileString(t, "struct s { int a; int b; int c; }; struct s *p; int main() { p = p + 1; return 0; }")
		assert.Contains(t, ir, "=l copy 12")
		assert.Contains(t, ir, "=l mul")
	})

	t.Run("ArrayIndexing", func(t *testing.T) {
		ir := compileString(t, "int a[10]; int main() { a[3] = 5; return a[3]; }")
		assert.Contains(t, ir, "=l copy $a")
		assert.Contains(t, ir, "storew")
		assert.Contains(t, ir, "loadsw %.t")
	})

	t.Run("MemberAccess", func(t *testing.T) {
		ir := compileString(t, "struct pt { int x; long y; }; struct pt g; int main() { g.y = 2; return g.x; }")
		assert.Contains(t, ir, "=l copy $g")
		assert.Contains(t, ir, "=l copy 4")
		assert.Contains(t, ir, "storel")
	})

	t.Run("CompoundAssignment", func(t *testing.T) {
		ir := compileString(t, "int main() { int x; x = 2; x *= 3; x %= 2; return x; }")
		assert.Contains(t, ir, "=w mul")
		assert.Contains(t, ir, "=w rem")
	})

	t.Run("PostIncrementOfArrayElement", func(t *testing.T) {
		ir := compileString(t, "int a[4]; int main() { a[1]++; return a[1]; }")
		assert.Contains(t, ir, ", 1\n  storew")
	})

	t.Run("PreIncrementOfRegister", func(t *testing.T) {
		ir := compileString(t, "int f(int i) { ++i; return i; }")
		assert.Contains(t, ir, "%i =w add %i, 1")
	})

	t.Run("Ternary", func(t *testing.T) {
		ir := compileString(t, "int f(int a) { return a > 1 ? 10 : 20; }")
		assert.Contains(t, ir, "csgtw")
		assert.Contains(t, ir, "copy 10")
		assert.Contains(t, ir, "copy 20")
	})

	t.Run("Unary", func(t *testing.T) {
		ir := compileString(t, "int f(int a) { return -a + ~a + !a; }")
		assert.Contains(t, ir, "=w sub 0, %.t")
		assert.Contains(t, ir, "=w xor %.t")
		assert.Contains(t, ir, "=w ceqw %.t")
	})

	t.Run("ParenthesesGroup", func(t *testing.T) {
		ir := compileString(t, "int f(int x, int a, int b) { return x * (a + b); }")
		add := strings.Index(ir, "=w add")
		mul := strings.Index(ir, "=w mul")
		require.True(t, add >= 0 && mul >= 0)
		assert.Less(t, add, mul)
	})

	t.Run("Casts", func(t *testing.T) {
		ir := compileString(t, "char f(long l) { return (char)l; }")
		assert.Contains(t, ir, "=w copy %.t")
	})

	t.Run("Sizeof", func(t *testing.T) {
		ir := compileString(t, "struct s { long a; char b; }; int f() { return sizeof(struct s); }")
		assert.Contains(t, ir, "=w copy 9")
	})

	t.Run("EnumValues", func(t *testing.T) {
		ir := compileString(t, "enum color { red, green = 5, blue }; int f() { return blue; }")
		assert.Contains(t, ir, "=w copy 6")
	})

	t.Run("Typedef", func(t *testing.T) {
		ir := compileString(t, "typedef long word; word w; word f() { return w; }")
		assert.Contains(t, ir, "export data $w = align 8 { l 0, }")
		assert.Contains(t, ir, "export function l $f() {")
	})
}

func TestCompileStatements(t *testing.T) {
	t.Run("IfElse", func(t *testing.T) {
		ir := compileString(t, "int f(int a) { if (a < 2) a = 1; else a = 2; return a; }")
		assert.Contains(t, ir, "csltw")
		assert.Equal(t, 1, strings.Count(ir, "jnz"))
	})

	t.Run("WhileWithBreakAndContinue", func(t *testing.T) {
		ir := compileString(t, "int f(int a) { while (a) { if (a == 5) break; a = a - 1; continue; } return a; }")
		assert.Contains(t, ir, "=l cnew")
		assert.GreaterOrEqual(t, strings.Count(ir, "jmp"), 4)
	})

	t.Run("ForLoop", func(t *testing.T) {
		ir := compileString(t, "int f() { int i; int s; s = 0; for (i = 0; i < 10; i++) s += i; return s; }")
		assert.Contains(t, ir, "csltw")
		assert.Contains(t, ir, "%i =w add %i, 1")
	})

	t.Run("SwitchFallthrough", func(t *testing.T) {
		ir := compileString(t, `int f(int a) {
  int r;
  r = 0;
  switch (a) {
    case 1:
    case 2: r = 10;
    case 3: r = r + 1; break;
    default: r = 99;
  }
  return r;
}`)
		// One test per valued case, each jumping to the next test on a miss.
		assert.Equal(t, 3, strings.Count(ir, "=w cnew"))
		assert.Contains(t, ir, "copy 99")

		lines := bodyLines(ir)
		var tests []int
		for i, l := range lines {
			if strings.Contains(l, "=w cnew") {
				tests = append(tests, i)
			}
		}
		require.Len(t, tests, 3)
		one, two := tests[0], tests[1]

		// case 1 has no code: its test is followed directly by case 2's.
		m := jnzRe.FindStringSubmatch(lines[one+1])
		require.NotNil(t, m, lines[one+1])
		assert.Equal(t, m[1], lines[one+4], "a miss on case 1 goes to case 2's test")
		assert.Contains(t, lines[one+5], "=w copy 2")
		assert.Equal(t, one+6, two)

		// Both tests jump to the one code label that holds case 2's body.
		j1 := jmpRe.FindStringSubmatch(lines[one+3])
		j2 := jmpRe.FindStringSubmatch(lines[two+3])
		require.NotNil(t, j1, lines[one+3])
		require.NotNil(t, j2, lines[two+3])
		assert.Equal(t, j1[1], j2[1])
		assert.Equal(t, j2[1], lines[two+4])
		assert.Contains(t, lines[two+5], "copy 10")
	})

	t.Run("LongSwitchComparesLongs", func(t *testing.T) {
		ir := compileString(t, `int f(long x) {
  int r;
  r = 0;
  switch (x) {
    case 1: r = 1; break;
    case 4294967297: r = 2; break;
  }
  return r;
}`)
		assert.Equal(t, 2, strings.Count(ir, "=l cnel"))
		assert.NotContains(t, ir, "cnew")
		assert.Contains(t, ir, "=l copy 4294967297")
	})

	t.Run("LocalInitialisers", func(t *testing.T) {
		ir := compileString(t, "int f() { int a = 4, b = a + 1; return b; }")
		assert.Contains(t, ir, "%a =w copy")
		assert.Contains(t, ir, "%b =w copy")
	})
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"UnknownVariable", "int main() { return y; }", "Unknown variable or function:y on line 1 of t.c"},
		{"DuplicateGlobal", "int x; int x;", "Duplicate global variable declaration:x on line 1 of t.c"},
		{"FunctionClashesWithVariable", "int x; int x() { return 0; }", "Duplicate global variable declaration:x on line 1 of t.c"},
		{"DuplicateLocal", "int f() { int a; int a; return 0; }", "Duplicate local variable declaration:a on line 1 of t.c"},
		{"DuplicateParameter", "int f(int a, int a) { return 0; }", "Duplicate local variable declaration:a on line 1 of t.c"},
		{"ReturnFromVoid", "void f() { return 1; }", "Can't return from a void function on line 1 of t.c"},
		{"MissingReturn", "int f() { int a; a = 1; }", "No return for function with non-void type on line 1 of t.c"},
		{"EmptyNonVoid", "int f() { }", "No statements in function with non-void type on line 1 of t.c"},
		{"BreakOutsideLoop", "int f() { break; }", "no loop or switch to break out from on line 1 of t.c"},
		{"ContinueOutsideLoop", "int f() { continue; }", "no loop to continue to on line 1 of t.c"},
		{"ZeroSizedArray", "int a[0];", "Array size is illegal:0 on line 1 of t.c"},
		{"TooManyInitialisers", "int a[1] = { 1, 2 };", "Too many values in initialisation list on line 1 of t.c"},
		{"StructRedefined", "struct s { int a; }; struct s { int b; };", "previously defined struct/union:s on line 1 of t.c"},
		{"UnknownStruct", "struct nope n;", "unknown struct/union type:nope on line 1 of t.c"},
		{"MissingMember", "struct s { int a; }; struct s v; int f() { return v.b; }", "No member found in struct/union: :b on line 1 of t.c"},
		{"AssignToRvalue", "int f() { 5 = 3; return 0; }", "Cannot assign to an rvalue on line 1 of t.c"},
		{"SyntaxError", "int f() { int a; a = 1 return a; }", "Syntax error, token:return on line 1 of t.c"},
		{"MissingBrace", "int f() { return 0;", "Expected:} on line 1 of t.c"},
		{"DuplicateCase", "int f(int a) { switch (a) { case 1: a = 2; case 1: a = 3; } return a; }", "Duplicate case value on line 1 of t.c"},
		{"CaseAfterDefault", "int f(int a) { switch (a) { default: a = 2; case 1: a = 3; } return a; }", "case or default after existing default on line 1 of t.c"},
		{"NonLiteralCase", "int f(int a) { switch (a) { case a: a = 2; } return a; }", "Expecting integer literal for case value on line 1 of t.c"},
		{"GlobalExpression", "int x; int y = x;", "Cannot initialise globals with a general expression on line 1 of t.c"},
		{"LiteralTooWide", "char c = 1000;", "Type mismatch: literal vs. variable on line 1 of t.c"},
		{"IncompatibleAssignment", "int *p; long l; int f() { p = l; return 0; }", "Incompatible expression in assignment on line 1 of t.c"},
		{"PointerComparedToInt", "int *p; int f() { return p == 0; }", "Incompatible types in binary expression on line 1 of t.c"},
		{"AddressOfArray", "int a[2]; int f() { int *p; p = &a; return 0; }", "& operator cannot be performed on an array on line 1 of t.c"},
		{"DerefNonPointer", "int f(int a) { return *a; }", "* operator must be followed by an expression of pointer type on line 1 of t.c"},
		{"PrototypeMismatch", "int f(int a); int f(long a) { return 0; }", "Type doesn't match prototype for parameter:1 on line 1 of t.c"},
		{"ParameterCountMismatch", "int f(int a); int f(int a, int b) { return 0; }", "Type doesn't match prototype for parameter:2 on line 1 of t.c"},
		{"IncompatibleArgument", "int g(int a); int f(long l) { return g(l); }", "Incompatible argument type:a on line 1 of t.c"},
		{"PointerArgumentForInt", "int g(int a); int *p; int f() { return g(p); }", "Incompatible argument type:a on line 1 of t.c"},
		{"FunctionRedefined", "int f() { return 1; } int f() { return 2; }", "Function already defined:f on line 1 of t.c"},
		{"StaticLocal", "int f() { static int a; return 0; }", "Compiler doesn't support static or extern local declarations on line 1 of t.c"},
		{"CastToVoid", "int f(int a) { return (void)a; }", "Cannot cast to a struct, union or void type on line 1 of t.c"},
		{"EnumRedeclared", "enum e { a }; enum e { b };", "enum type redeclared:e on line 1 of t.c"},
		{"TypedefRedefined", "typedef int t; typedef long t;", "redefinition of typedef:t on line 1 of t.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			err := Compile(tt.src, "t.c", &out, Options{})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Empty(t, out.String(), "no IR is written for a failed compilation")

			var cerr *Error
			assert.True(t, errors.As(err, &cerr))
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	err := Compile("int main() {\n  return y;\n}\n", "prog.c", &strings.Builder{}, Options{})
	require.Error(t, err)
	assert.Equal(t, "Unknown variable or function:y on line 2 of prog.c", err.Error())

	err = Compile("# 40 \"lib.h\"\nint main() { return y; }\n", "prog.c", &strings.Builder{}, Options{})
	require.Error(t, err)
	assert.Equal(t, "Unknown variable or function:y on line 40 of lib.h", err.Error())
}

func TestCompileListings(t *testing.T) {
	var ast, syms strings.Builder
	opts := Options{ASTDump: &ast, SymbolDump: &syms}
	require.NoError(t, Compile("static int s; int g; int main() { return 1; }", "t.c", &strings.Builder{}, opts))

	assert.Equal(t, "FUNCTION main\n  RETURN\n    WIDEN\n      INTLIT 1\n\n\n", ast.String())
	assert.True(t, strings.HasPrefix(syms.String(), "Symbols for t.c\nGlobal\n--------\n"))
	assert.Contains(t, syms.String(), "int s: static, size 4\n")
	assert.Contains(t, syms.String(), "int main(): global, 0 params\n")
}

func TestSessionPurgesStatics(t *testing.T) {
	s := NewSession("t.c", Options{})
	require.NoError(t, s.Compile("static int hidden; int shown;", &strings.Builder{}))
	assert.Nil(t, s.Syms.FindGlobal("hidden"))
	assert.NotNil(t, s.Syms.FindGlobal("shown"))
}
