package compiler

import "fmt"

// genCtx carries the branch targets a subtree may need while it is lowered.
type genCtx struct {
	ifLabel  int // where a failing condition jumps
	loopTop  int // continue target
	loopEnd  int // break target
	parentOp Op
	fn       *Symbol
}

func (c genCtx) under(op Op) genCtx {
	c.parentOp = op
	return c
}

// Function emits the QBE definition of fn, allocating stack slots for
// locals as needed.
func (g *Generator) Function(fn *Function, locals []*Symbol) error {
	if err := g.preamble(fn.Sym, locals); err != nil {
		return err
	}
	ctx := genCtx{parentOp: OpFunction, fn: fn.Sym}
	if _, err := g.gen(fn.Body, ctx); err != nil {
		return err
	}
	g.postamble(fn.Sym)
	return nil
}

// gen lowers n and returns the temporary holding its value, or noReg.
func (g *Generator) gen(n Node, ctx genCtx) (int, error) {
	switch n := n.(type) {
	case nil:
		return noReg, nil

	case *Block:
		for _, s := range n.Stmts {
			if _, err := g.gen(s, ctx.under(OpGlue)); err != nil {
				return noReg, err
			}
		}
		return noReg, nil

	case *If:
		return noReg, g.genIf(n, ctx)
	case *While:
		return noReg, g.genWhile(n, ctx)
	case *Switch:
		return noReg, g.genSwitch(n, ctx)
	case *Logical:
		return g.genLogical(n, ctx)
	case *Ternary:
		return g.genTernary(n, ctx)
	case *Call:
		return g.genCall(n, ctx)
	case *Assign:
		return g.genAssign(n, ctx)
	case *CompoundAssign:
		return g.genCompoundAssign(n, ctx)
	case *IncDec:
		return g.genIncDec(n, ctx)

	case *Return:
		r, err := g.gen(n.Value, ctx.under(OpReturn))
		if err != nil {
			return noReg, err
		}
		return noReg, g.ret(r, ctx.fn)

	case *Break:
		g.jump(ctx.loopEnd)
		return noReg, nil
	case *Continue:
		g.jump(ctx.loopTop)
		return noReg, nil

	case *IntLit:
		return g.loadInt(n.Value, n.Type)
	case *StrLit:
		return g.loadString(n.Label), nil

	case *Ident:
		// A bare identifier is only loaded when its value is wanted; as an
		// assignment target it is handled by the assignment.
		if n.Rvalue || ctx.parentOp == OpDeref {
			return g.loadVar(n.Sym, OpIdent)
		}
		return noReg, nil

	case *AddrOf:
		if n.Sym != nil {
			return g.address(n.Sym), nil
		}
		return g.gen(n.Operand, ctx.under(OpAddr))

	case *Deref:
		r, err := g.gen(n.Operand, ctx.under(OpDeref))
		if err != nil || !n.Rvalue {
			return r, err
		}
		return g.deref(r, n.Operand.Info().Type)

	case *Widen:
		r, err := g.gen(n.Operand, ctx.under(OpWiden))
		if err != nil {
			return noReg, err
		}
		return g.widen(r, n.Operand.Info().Type, n.Type)

	case *Scale:
		r, err := g.gen(n.Operand, ctx.under(OpScale))
		if err != nil {
			return noReg, err
		}
		from := n.Operand.Info().Type
		switch n.Size {
		case 2:
			return g.shlConst(r, 1, from)
		case 4:
			return g.shlConst(r, 2, from)
		case 8:
			return g.shlConst(r, 3, from)
		}
		return g.mulConst(r, n.Size, from)

	case *Cast:
		r, err := g.gen(n.Operand, ctx.under(OpCast))
		if err != nil {
			return noReg, err
		}
		return g.cast(r, n.Operand.Info().Type, n.Type)

	case *Unary:
		r, err := g.gen(n.Operand, ctx.under(n.Operator))
		if err != nil {
			return noReg, err
		}
		return g.unop(n.Operator, r, n.Operand.Info().Type)

	case *ToBool:
		r, err := g.gen(n.Operand, ctx.under(OpToBool))
		if err != nil {
			return noReg, err
		}
		return g.boolean(r, ctx.parentOp, ctx.ifLabel, n.Operand.Info().Type)

	case *Binary:
		return g.genBinary(n, ctx)
	}

	return noReg, fmt.Errorf("Unknown AST operator:%s", n.Op())
}

func (g *Generator) genBinary(n *Binary, ctx genCtx) (int, error) {
	left, err := g.gen(n.Left, ctx.under(n.Operator))
	if err != nil {
		return noReg, err
	}
	right, err := g.gen(n.Right, ctx.under(n.Operator))
	if err != nil {
		return noReg, err
	}
	if n.Operator.IsComparison() {
		return g.compareAndSet(n.Operator, left, right, n.Left.Info().Type)
	}
	return g.binop(n.Operator, left, right, n.Right.Info().Type)
}

// genIf lowers
//
//	cond false? jump Lfalse; then; jump Lend; Lfalse: else; Lend:
func (g *Generator) genIf(n *If, ctx genCtx) error {
	lfalse := g.NewLabel()
	lend := noLabel
	if n.Else != nil {
		lend = g.NewLabel()
	}

	cond := ctx
	cond.ifLabel, cond.parentOp = lfalse, OpIf
	r, err := g.gen(n.Cond, cond)
	if err != nil {
		return err
	}
	if err := g.jumpUnlessTrue(r, lfalse); err != nil {
		return err
	}

	body := ctx
	body.ifLabel, body.parentOp = noLabel, OpIf
	if _, err := g.gen(n.Then, body); err != nil {
		return err
	}

	if n.Else != nil {
		// QBE wants a label before the jump that ends the then branch.
		g.label(g.NewLabel())
		g.jump(lend)
	}
	g.label(lfalse)

	if n.Else != nil {
		if _, err := g.gen(n.Else, body); err != nil {
			return err
		}
		g.label(lend)
	}
	return nil
}

// jumpUnlessTrue branches to label unless the condition value r is 1.
func (g *Generator) jumpUnlessTrue(r, label int) error {
	one, err := g.loadInt(1, TypeInt)
	if err != nil {
		return err
	}
	return g.compareAndJump(OpEq, r, one, label, TypeInt)
}

func (g *Generator) genWhile(n *While, ctx genCtx) error {
	lstart := g.NewLabel()
	lend := g.NewLabel()
	g.label(lstart)

	loop := ctx
	loop.ifLabel, loop.loopTop, loop.loopEnd, loop.parentOp = lend, lstart, lend, OpWhile
	r, err := g.gen(n.Cond, loop)
	if err != nil {
		return err
	}
	if err := g.jumpUnlessTrue(r, lend); err != nil {
		return err
	}

	loop.ifLabel = noLabel
	if _, err := g.gen(n.Body, loop); err != nil {
		return err
	}
	g.jump(lstart)
	g.label(lend)
	return nil
}

// genSwitch lowers a switch to a chain of compare-and-jump tests. Each
// case's test jumps to its code, which falls through into the next case's
// code; a case without code shares the next case's code label.
func (g *Generator) genSwitch(n *Switch, ctx genCtx) error {
	lend := g.NewLabel()
	caseLabels := make([]int, len(n.Cases)+1)
	for i := range n.Cases {
		caseLabels[i] = g.NewLabel()
	}
	caseLabels[len(n.Cases)] = lend

	r, err := g.gen(n.Scrutinee, ctx.under(OpSwitch))
	if err != nil {
		return err
	}

	// Case values are compared at the width of the switch value.
	st := n.Scrutinee.Info().Type

	body := ctx
	body.ifLabel, body.loopEnd, body.parentOp = noLabel, lend, OpSwitch

	lcode := noLabel
	for i, c := range n.Cases {
		if lcode == noLabel {
			lcode = g.NewLabel()
		}
		g.label(caseLabels[i])

		if !c.Default {
			v, err := g.loadInt(c.Value, st)
			if err != nil {
				return err
			}
			if err := g.compareAndJump(OpEq, r, v, caseLabels[i+1], st); err != nil {
				return err
			}
			g.jump(lcode)
		}

		if c.Body != nil {
			g.label(lcode)
			if _, err := g.gen(c.Body, body); err != nil {
				return err
			}
			lcode = noLabel
		}
	}

	// A trailing empty case still needs its code label to exist.
	if lcode != noLabel {
		g.label(lcode)
	}
	g.label(lend)
	return nil
}

// genLogical lowers && and || with short-circuit evaluation, leaving 1 or
// 0 in the right operand's temporary.
func (g *Generator) genLogical(n *Logical, ctx genCtx) (int, error) {
	lfalse := g.NewLabel()
	lend := g.NewLabel()

	r, err := g.gen(n.Left, ctx.under(n.Operator))
	if err != nil {
		return noReg, err
	}
	if _, err := g.boolean(r, n.Operator, lfalse, n.Left.Info().Type); err != nil {
		return noReg, err
	}

	r, err = g.gen(n.Right, ctx.under(n.Operator))
	if err != nil {
		return noReg, err
	}
	rtype := n.Right.Info().Type
	if _, err := g.boolean(r, n.Operator, lfalse, rtype); err != nil {
		return noReg, err
	}

	// For || lfalse is really the "true" exit.
	first, second := 1, 0
	if n.Operator == OpLogOr {
		first, second = 0, 1
	}
	if err := g.loadBoolean(r, first, rtype); err != nil {
		return noReg, err
	}
	g.jump(lend)
	g.label(lfalse)
	if err := g.loadBoolean(r, second, rtype); err != nil {
		return noReg, err
	}
	g.label(lend)
	return r, nil
}

func (g *Generator) genTernary(n *Ternary, ctx genCtx) (int, error) {
	lfalse := g.NewLabel()
	lend := g.NewLabel()

	cond := ctx
	cond.ifLabel, cond.parentOp = lfalse, OpTernary
	r, err := g.gen(n.Cond, cond)
	if err != nil {
		return noReg, err
	}
	if err := g.jumpUnlessTrue(r, lfalse); err != nil {
		return noReg, err
	}

	result := g.newTemp()
	branch := ctx.under(OpTernary)
	branch.ifLabel = noLabel

	v, err := g.gen(n.Then, branch)
	if err != nil {
		return noReg, err
	}
	if err := g.move(v, result, n.Then.Info().Type); err != nil {
		return noReg, err
	}
	g.jump(lend)

	g.label(lfalse)
	v, err = g.gen(n.Else, branch)
	if err != nil {
		return noReg, err
	}
	if err := g.move(v, result, n.Else.Info().Type); err != nil {
		return noReg, err
	}
	g.label(lend)
	return result, nil
}

// genCall evaluates the arguments last to first and passes them in source
// order.
func (g *Generator) genCall(n *Call, ctx genCtx) (int, error) {
	regs := make([]int, len(n.Args))
	types := make([]Type, len(n.Args))
	for i := len(n.Args) - 1; i >= 0; i-- {
		r, err := g.gen(n.Args[i], ctx.under(OpFuncCall))
		if err != nil {
			return noReg, err
		}
		regs[i], types[i] = r, n.Args[i].Info().Type
	}
	return g.call(n.Sym, regs, types)
}

// store writes r into the variable s.
func (g *Generator) store(r int, s *Symbol) error {
	if s.IsFileScope() {
		return g.storeGlobal(r, s)
	}
	return g.storeLocal(r, s)
}

func (g *Generator) genAssign(n *Assign, ctx genCtx) (int, error) {
	r, err := g.gen(n.Value, ctx.under(OpAssign))
	if err != nil {
		return noReg, err
	}

	switch target := n.Target.(type) {
	case *Ident:
		return r, g.store(r, target.Sym)
	case *Deref:
		addr, err := g.gen(target, ctx.under(OpAssign))
		if err != nil {
			return noReg, err
		}
		return r, g.storeDeref(r, addr, target.Type)
	}
	return noReg, fmt.Errorf("Can't A_ASSIGN in genAST(), op:%s", n.Target.Op())
}

// genCompoundAssign loads the target once, applies the operator in the
// node's type and stores the result back.
func (g *Generator) genCompoundAssign(n *CompoundAssign, ctx genCtx) (int, error) {
	op := n.Operator - OpAsPlus + OpAdd
	if n.Operator == OpAsMod {
		op = OpMod
	}
	sub := ctx.under(n.Operator)

	var (
		cur, addr int
		err       error
	)
	switch target := n.Target.(type) {
	case *Ident:
		cur, err = g.loadVar(target.Sym, OpIdent)
	case *Deref:
		if addr, err = g.gen(target.Operand, sub); err == nil {
			var ptr Type
			if ptr, err = target.Type.PointerTo(); err == nil {
				cur, err = g.deref(addr, ptr)
			}
		}
	default:
		err = fmt.Errorf("Can't assign through %s", n.Target.Op())
	}
	if err != nil {
		return noReg, err
	}

	ttype := n.Target.Info().Type
	if ttype != n.Type {
		if cur, err = g.widen(cur, ttype, n.Type); err != nil {
			return noReg, err
		}
	}

	v, err := g.gen(n.Value, sub)
	if err != nil {
		return noReg, err
	}
	r, err := g.binop(op, cur, v, n.Type)
	if err != nil {
		return noReg, err
	}

	if target, ok := n.Target.(*Ident); ok {
		return r, g.store(r, target.Sym)
	}
	return r, g.storeDeref(r, addr, ttype)
}

// genIncDec handles ++ and --. Variables go through loadVar; a
// dereferenced target is loaded, stepped and stored through its address.
func (g *Generator) genIncDec(n *IncDec, ctx genCtx) (int, error) {
	switch target := n.Target.(type) {
	case *Ident:
		return g.loadVar(target.Sym, n.Operator)
	case *Deref:
		addr, err := g.gen(target.Operand, ctx.under(n.Operator))
		if err != nil {
			return noReg, err
		}
		ptr, err := target.Type.PointerTo()
		if err != nil {
			return noReg, err
		}
		old, err := g.deref(addr, ptr)
		if err != nil {
			return noReg, err
		}
		step, err := stepSize(target.Type, target.Ctype, n.Operator)
		if err != nil {
			return noReg, err
		}
		q, err := qbeType(target.Type)
		if err != nil {
			return noReg, err
		}
		updated := g.newTemp()
		g.instr("%%.t%d =%c add %%.t%d, %d", updated, q, old, step)
		if err := g.storeDeref(updated, addr, target.Type); err != nil {
			return noReg, err
		}
		if n.Operator == OpPreInc || n.Operator == OpPreDec {
			return updated, nil
		}
		return old, nil
	}
	return noReg, fmt.Errorf("Can't apply %s to %s", n.Operator, n.Target.Op())
}
