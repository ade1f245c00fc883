package compiler

import (
	"fmt"
	"strings"
)

// noReg is returned by lowerings that produce no value.
const noReg = -1

// noLabel means "no branch target" in a lowering context.
const noLabel = 0

var cmpOps = [...]string{"ceq", "cne", "cslt", "csgt", "csle", "csge"}

// invCmpOps holds the negation of each entry in cmpOps, for
// compare-and-jump-if-false.
var invCmpOps = [...]string{"cne", "ceq", "csge", "csle", "csgt", "cslt"}

var binOps = map[Op]string{
	OpAdd:      "add",
	OpSubtract: "sub",
	OpMultiply: "mul",
	OpDivide:   "div",
	OpMod:      "rem",
	OpAnd:      "and",
	OpOr:       "or",
	OpXor:      "xor",
	OpLShift:   "shl",
	OpRShift:   "shr",
}

// Generator emits QBE IR text for one translation unit. Temporaries are
// named %.tN and labels @LN; both counters start at 1. Labels are shared by
// control flow, string literals and function epilogues.
type Generator struct {
	out       strings.Builder
	nextTemp  int
	nextLabel int
}

func NewGenerator() *Generator {
	return &Generator{}
}

// NewLabel allocates a fresh label number.
func (g *Generator) NewLabel() int {
	g.nextLabel++
	return g.nextLabel
}

func (g *Generator) newTemp() int {
	g.nextTemp++
	return g.nextTemp
}

// String returns the IR emitted so far.
func (g *Generator) String() string { return g.out.String() }

func (g *Generator) line(format string, args ...any) {
	fmt.Fprintf(&g.out, format+"\n", args...)
}

func (g *Generator) instr(format string, args ...any) {
	g.line("  "+format, args...)
}

func qbePrefix(s *Symbol) byte {
	if s.IsFileScope() {
		return '$'
	}
	return '%'
}

//  Data

// GlobalSym writes the data definition for a file-scope variable or array.
// Functions and externs produce nothing.
func (g *Generator) GlobalSym(s *Symbol) error {
	if s == nil || s.Kind == KindFunction || s.Class == ClassExtern {
		return nil
	}

	t, size := s.Type, s.Size
	if s.Kind == KindArray {
		t, _ = s.Type.ValueAt()
		var err error
		if size, err = TypeSize(t, s.Ctype); err != nil {
			return err
		}
	}

	align := 8
	if !t.IsComposite() {
		var err error
		if align, err = PrimSize(t); err != nil {
			return err
		}
	}

	var b strings.Builder
	if s.Class == ClassGlobal {
		b.WriteString("export ")
	}
	fmt.Fprintf(&b, "data $%s = align %d { ", s.Name, align)

	nelems := s.NElems
	if s.Kind != KindArray {
		nelems = 1
	}
	for i := 0; i < nelems; i++ {
		var v int64
		if i < len(s.Init) {
			v = s.Init[i]
		}
		switch size {
		case 1:
			fmt.Fprintf(&b, "b %d, ", v)
		case 4:
			fmt.Fprintf(&b, "w %d, ", v)
		case 8:
			if s.Init != nil && t == TypeChar+1 && v != 0 {
				fmt.Fprintf(&b, "l $L%d, ", v)
			} else {
				fmt.Fprintf(&b, "l %d, ", v)
			}
		default:
			fmt.Fprintf(&b, "z %d, ", size)
		}
	}
	b.WriteString("}")
	g.line("%s", b.String())
	return nil
}

// GlobalString writes a NUL-terminated string literal as data $L<label>.
func (g *Generator) GlobalString(label int, text string) {
	var b strings.Builder
	fmt.Fprintf(&b, "data $L%d = { ", label)
	for i := 0; i < len(text); i++ {
		fmt.Fprintf(&b, "b %d, ", text[i])
	}
	b.WriteString(" b 0 }")
	g.line("%s", b.String())
}

//  Functions

func (g *Generator) preamble(fn *Symbol, locals []*Symbol) error {
	q, err := qbeType(fn.Type)
	if err != nil {
		return err
	}

	var b strings.Builder
	if fn.Class == ClassGlobal {
		b.WriteString("export ")
	}
	fmt.Fprintf(&b, "function %c $%s(", q, fn.Name)
	for _, p := range fn.Members {
		pq, err := qbeType(p.Type)
		if err != nil {
			return err
		}
		if p.HasAddr {
			fmt.Fprintf(&b, "%c %%.p%s, ", pq, p.Name)
		} else {
			fmt.Fprintf(&b, "%c %%%s, ", pq, p.Name)
		}
	}
	b.WriteString(") {")
	g.line("%s", b.String())
	g.label(g.NewLabel())

	// Parameters whose address is taken are copied into stack slots.
	for _, p := range fn.Members {
		if !p.HasAddr {
			continue
		}
		size, err := PrimSize(p.Type)
		if err != nil {
			return err
		}
		g.instr("%%%s =l alloc%d 1", p.Name, max(size, 4))
		switch size {
		case 1:
			g.instr("storeb %%.p%s, %%%s", p.Name, p.Name)
		case 4:
			g.instr("storew %%.p%s, %%%s", p.Name, p.Name)
		case 8:
			g.instr("storel %%.p%s, %%%s", p.Name, p.Name)
		}
	}

	// Addressed locals, and all chars, live in stack slots.
	for _, l := range locals {
		switch {
		case l.HasAddr:
			g.instr("%%%s =l alloc8 %d", l.Name, (max(l.Size, 1)+7)>>3)
		case l.Type == TypeChar:
			l.HasAddr = true
			g.instr("%%%s =l alloc4 1", l.Name)
		}
	}
	return nil
}

func (g *Generator) postamble(fn *Symbol) {
	g.label(fn.EndLabel)
	if fn.Type != TypeVoid {
		g.line("  ret %%.ret\n}")
	} else {
		g.line("  ret\n}")
	}
}

//  Instructions

func (g *Generator) label(l int) { g.line("@L%d", l) }

func (g *Generator) jump(l int) { g.instr("jmp @L%d", l) }

func (g *Generator) loadInt(v int64, t Type) (int, error) {
	q, err := qbeType(t)
	if err != nil {
		return noReg, err
	}
	r := g.newTemp()
	g.instr("%%.t%d =%c copy %d", r, q, v)
	return r, nil
}

func (g *Generator) loadString(label int) int {
	r := g.newTemp()
	g.instr("%%.t%d =l copy $L%d", r, label)
	return r
}

// loadSlot loads a variable from its stack slot or global address into r.
func (g *Generator) loadSlot(r int, s *Symbol) {
	switch s.Size {
	case 1:
		g.instr("%%.t%d =w loadub %c%s", r, qbePrefix(s), s.Name)
	case 4:
		g.instr("%%.t%d =w loadsw %c%s", r, qbePrefix(s), s.Name)
	case 8:
		g.instr("%%.t%d =l loadl %c%s", r, qbePrefix(s), s.Name)
	}
}

// bumpSlot adds offset to a variable held in memory.
func (g *Generator) bumpSlot(s *Symbol, offset int) {
	r := g.newTemp()
	g.loadSlot(r, s)
	switch s.Size {
	case 1:
		g.instr("%%.t%d =w add %%.t%d, %d", r, r, offset)
		g.instr("storeb %%.t%d, %c%s", r, qbePrefix(s), s.Name)
	case 4:
		g.instr("%%.t%d =w add %%.t%d, %d", r, r, offset)
		g.instr("storew %%.t%d, %c%s", r, qbePrefix(s), s.Name)
	case 8:
		g.instr("%%.t%d =l add %%.t%d, %d", r, r, offset)
		g.instr("storel %%.t%d, %c%s", r, qbePrefix(s), s.Name)
	}
}

// stepSize is the amount ++ and -- move a value of type t by.
func stepSize(t Type, ctype *Symbol, op Op) (int, error) {
	step := 1
	if t.IsPtr() {
		pointee, _ := t.ValueAt()
		var err error
		if step, err = TypeSize(pointee, ctype); err != nil {
			return 0, err
		}
	}
	if op == OpPreDec || op == OpPostDec {
		step = -step
	}
	return step, nil
}

// loadVar loads a variable, applying any pre or post increment/decrement.
func (g *Generator) loadVar(s *Symbol, op Op) (int, error) {
	q, err := qbeType(s.Type)
	if err != nil {
		return noReg, err
	}
	r := g.newTemp()
	step, err := stepSize(s.Type, s.Ctype, op)
	if err != nil {
		return noReg, err
	}
	inMemory := s.HasAddr || s.IsFileScope()
	p := qbePrefix(s)

	if op == OpPreInc || op == OpPreDec {
		if inMemory {
			g.bumpSlot(s, step)
		} else {
			g.instr("%c%s =%c add %c%s, %d", p, s.Name, q, p, s.Name, step)
		}
	}

	if inMemory {
		g.loadSlot(r, s)
	} else {
		g.instr("%%.t%d =%c copy %c%s", r, q, p, s.Name)
	}

	if op == OpPostInc || op == OpPostDec {
		if inMemory {
			g.bumpSlot(s, step)
		} else {
			g.instr("%c%s =%c add %c%s, %d", p, s.Name, q, p, s.Name, step)
		}
	}
	return r, nil
}

// binop emits r1 = r1 op r2.
func (g *Generator) binop(op Op, r1, r2 int, t Type) (int, error) {
	q, err := qbeType(t)
	if err != nil {
		return noReg, err
	}
	name, ok := binOps[op]
	if !ok {
		return noReg, fmt.Errorf("unknown binary operator %s", op)
	}
	g.instr("%%.t%d =%c %s %%.t%d, %%.t%d", r1, q, name, r1, r2)
	return r1, nil
}

func (g *Generator) unop(op Op, r int, t Type) (int, error) {
	q, err := qbeType(t)
	if err != nil {
		return noReg, err
	}
	switch op {
	case OpNegate:
		g.instr("%%.t%d =%c sub 0, %%.t%d", r, q, r)
	case OpInvert:
		g.instr("%%.t%d =%c xor %%.t%d, -1", r, q, r)
	case OpLogNot:
		g.instr("%%.t%d =%c ceq%c %%.t%d, 0", r, q, q, r)
	default:
		return noReg, fmt.Errorf("unknown unary operator %s", op)
	}
	return r, nil
}

func (g *Generator) loadBoolean(r int, v int, t Type) error {
	q, err := qbeType(t)
	if err != nil {
		return err
	}
	g.instr("%%.t%d =%c copy %d", r, q, v)
	return nil
}

// boolean turns r into 0 or 1. Inside an if, while or && it also jumps to
// label when the value is false, and inside || when it is true.
func (g *Generator) boolean(r int, parent Op, label int, t Type) (int, error) {
	q, err := qbeType(t)
	if err != nil {
		return noReg, err
	}
	next := g.NewLabel()
	r2 := g.newTemp()
	g.instr("%%.t%d =l cne%c %%.t%d, 0", r2, q, r)
	switch parent {
	case OpIf, OpWhile, OpLogAnd:
		g.instr("jnz %%.t%d, @L%d, @L%d", r2, next, label)
	case OpLogOr:
		g.instr("jnz %%.t%d, @L%d, @L%d", r2, label, next)
	}
	g.label(next)
	return r2, nil
}

func (g *Generator) call(fn *Symbol, args []int, types []Type) (int, error) {
	r := g.newTemp()

	var b strings.Builder
	if fn.Type == TypeVoid {
		fmt.Fprintf(&b, "call $%s(", fn.Name)
	} else {
		q, err := qbeType(fn.Type)
		if err != nil {
			return noReg, err
		}
		fmt.Fprintf(&b, "%%.t%d =%c call $%s(", r, q, fn.Name)
	}
	for i, a := range args {
		q, err := qbeType(types[i])
		if err != nil {
			return noReg, err
		}
		fmt.Fprintf(&b, "%c %%.t%d, ", q, a)
	}
	b.WriteString(")")
	g.instr("%s", b.String())
	return r, nil
}

// shlConst shifts r left by k as a long, sign-extending narrower values.
func (g *Generator) shlConst(r, k int, t Type) (int, error) {
	size, err := PrimSize(t)
	if err != nil {
		return noReg, err
	}
	r2 := g.newTemp()
	r3 := g.newTemp()
	if size < 8 {
		g.instr("%%.t%d =l extsw %%.t%d", r2, r)
		g.instr("%%.t%d =l shl %%.t%d, %d", r3, r2, k)
	} else {
		g.instr("%%.t%d =l shl %%.t%d, %d", r3, r, k)
	}
	return r3, nil
}

// mulConst multiplies r by k as a long, sign-extending narrower values.
func (g *Generator) mulConst(r, k int, t Type) (int, error) {
	size, err := PrimSize(t)
	if err != nil {
		return noReg, err
	}
	if size < 8 {
		r2 := g.newTemp()
		g.instr("%%.t%d =l extsw %%.t%d", r2, r)
		r = r2
	}
	kr, err := g.loadInt(int64(k), TypeLong)
	if err != nil {
		return noReg, err
	}
	return g.binop(OpMultiply, r, kr, TypeLong)
}

func (g *Generator) storeGlobal(r int, s *Symbol) error {
	q, err := qbeType(s.Type)
	if err != nil {
		return err
	}
	if s.Type == TypeChar {
		q = 'b'
	}
	g.instr("store%c %%.t%d, $%s", q, r, s.Name)
	return nil
}

func (g *Generator) storeLocal(r int, s *Symbol) error {
	q, err := qbeType(s.Type)
	if err != nil {
		return err
	}
	if s.HasAddr {
		g.instr("store%c %%.t%d, %%%s", q, r, s.Name)
	} else {
		g.instr("%%%s =%c copy %%.t%d", s.Name, q, r)
	}
	return nil
}

// compareAndSet leaves 1 or 0 in a new temporary.
func (g *Generator) compareAndSet(op Op, r1, r2 int, t Type) (int, error) {
	if !op.IsComparison() {
		return noReg, fmt.Errorf("bad comparison operator %s", op)
	}
	q, err := qbeType(t)
	if err != nil {
		return noReg, err
	}
	r3 := g.newTemp()
	g.instr("%%.t%d =%c %s%c %%.t%d, %%.t%d", r3, q, cmpOps[op-OpEq], q, r1, r2)
	return r3, nil
}

// compareAndJump jumps to label when the comparison is false.
func (g *Generator) compareAndJump(op Op, r1, r2, label int, t Type) error {
	if !op.IsComparison() {
		return fmt.Errorf("bad comparison operator %s", op)
	}
	q, err := qbeType(t)
	if err != nil {
		return err
	}
	next := g.NewLabel()
	r3 := g.newTemp()
	g.instr("%%.t%d =%c %s%c %%.t%d, %%.t%d", r3, q, invCmpOps[op-OpEq], q, r1, r2)
	g.instr("jnz %%.t%d, @L%d, @L%d", r3, label, next)
	g.label(next)
	return nil
}

// widen zero-extends chars and sign-extends everything else. A long is
// already as wide as anything it can be widened to.
func (g *Generator) widen(r int, from, to Type) (int, error) {
	if from == TypeLong || from.IsPtr() {
		return r, nil
	}
	oldq, err := qbeType(from)
	if err != nil {
		return noReg, err
	}
	newq, err := qbeType(to)
	if err != nil {
		return noReg, err
	}
	t := g.newTemp()
	if from == TypeChar {
		g.instr("%%.t%d =%c extub %%.t%d", t, newq, r)
	} else {
		g.instr("%%.t%d =%c exts%c %%.t%d", t, newq, oldq, r)
	}
	return t, nil
}

func (g *Generator) ret(r int, fn *Symbol) error {
	if r != noReg {
		q, err := qbeType(fn.Type)
		if err != nil {
			return err
		}
		g.instr("%%.ret =%c copy %%.t%d", q, r)
	}
	g.jump(fn.EndLabel)
	return nil
}

func (g *Generator) address(s *Symbol) int {
	r := g.newTemp()
	g.instr("%%.t%d =l copy %c%s", r, qbePrefix(s), s.Name)
	return r
}

// deref loads the value that the pointer in r, of type ptr, points at.
func (g *Generator) deref(r int, ptr Type) (int, error) {
	t, err := ptr.ValueAt()
	if err != nil {
		return noReg, err
	}
	size, err := PrimSize(t)
	if err != nil {
		return noReg, fmt.Errorf("Can't cgderef on type:%d", int(ptr))
	}
	ret := g.newTemp()
	switch size {
	case 1:
		g.instr("%%.t%d =w loadub %%.t%d", ret, r)
	case 4:
		g.instr("%%.t%d =w loadsw %%.t%d", ret, r)
	case 8:
		g.instr("%%.t%d =l loadl %%.t%d", ret, r)
	}
	return ret, nil
}

// storeDeref stores r1 through the address in r2 at the width of t.
func (g *Generator) storeDeref(r1, r2 int, t Type) error {
	size, err := PrimSize(t)
	if err != nil {
		return fmt.Errorf("Can't cgstoderef on type:%d", int(t))
	}
	switch size {
	case 1:
		g.instr("storeb %%.t%d, %%.t%d", r1, r2)
	case 4:
		g.instr("storew %%.t%d, %%.t%d", r1, r2)
	case 8:
		g.instr("storel %%.t%d, %%.t%d", r1, r2)
	}
	return nil
}

func (g *Generator) move(r1, r2 int, t Type) error {
	q, err := qbeType(t)
	if err != nil {
		return err
	}
	g.instr("%%.t%d =%c copy %%.t%d", r2, q, r1)
	return nil
}

// cast converts r from one scalar type to another. Pointer to pointer and
// same-size conversions are free; narrowing copies and lets QBE truncate;
// widening extends.
func (g *Generator) cast(r int, from, to Type) (int, error) {
	ret := g.newTemp()
	if to.IsPtr() {
		if from.IsPtr() {
			return r, nil
		}
		return g.widen(r, from, to)
	}

	q, err := qbeType(to)
	if err != nil {
		return noReg, err
	}
	oldSize, err := PrimSize(from)
	if err != nil {
		return noReg, err
	}
	newSize, err := PrimSize(to)
	if err != nil {
		return noReg, err
	}
	switch {
	case newSize == oldSize:
		return r, nil
	case newSize < oldSize:
		g.instr("%%.t%d =%c copy %%.t%d", ret, q, r)
		return ret, nil
	default:
		return g.widen(r, from, to)
	}
}
