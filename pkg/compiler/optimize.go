package compiler

// Optimise folds constant subtrees bottom-up and returns the rewritten
// tree. Only + - * / on two literals and ~ ! on one literal are folded;
// widening, negation and everything else are left for the back end.
func Optimise(n Node) Node {
	switch n := n.(type) {
	case nil:
		return nil
	case *Binary:
		n.Left = Optimise(n.Left)
		n.Right = Optimise(n.Right)
		return fold2(n)
	case *Unary:
		n.Operand = Optimise(n.Operand)
		return fold1(n)
	case *Logical:
		n.Left = Optimise(n.Left)
		n.Right = Optimise(n.Right)
	case *Assign:
		n.Target = Optimise(n.Target)
		n.Value = Optimise(n.Value)
	case *CompoundAssign:
		n.Target = Optimise(n.Target)
		n.Value = Optimise(n.Value)
	case *AddrOf:
		n.Operand = Optimise(n.Operand)
	case *Deref:
		n.Operand = Optimise(n.Operand)
	case *Widen:
		n.Operand = Optimise(n.Operand)
	case *Scale:
		n.Operand = Optimise(n.Operand)
	case *Cast:
		n.Operand = Optimise(n.Operand)
	case *ToBool:
		n.Operand = Optimise(n.Operand)
	case *IncDec:
		n.Target = Optimise(n.Target)
	case *Ternary:
		n.Cond = Optimise(n.Cond)
		n.Then = Optimise(n.Then)
		n.Else = Optimise(n.Else)
	case *Call:
		for i, a := range n.Args {
			n.Args[i] = Optimise(a)
		}
	case *Block:
		for i, s := range n.Stmts {
			n.Stmts[i] = Optimise(s)
		}
	case *If:
		n.Cond = Optimise(n.Cond)
		n.Then = Optimise(n.Then)
		n.Else = Optimise(n.Else)
	case *While:
		n.Cond = Optimise(n.Cond)
		n.Body = Optimise(n.Body)
	case *Switch:
		n.Scrutinee = Optimise(n.Scrutinee)
		for _, c := range n.Cases {
			c.Body = Optimise(c.Body)
		}
	case *Return:
		n.Value = Optimise(n.Value)
	case *Function:
		n.Body = Optimise(n.Body)
	}
	return n
}

// fold2 folds a binary operation on two integer literals.
func fold2(n *Binary) Node {
	l, lok := n.Left.(*IntLit)
	r, rok := n.Right.(*IntLit)
	if !lok || !rok {
		return n
	}

	var v int64
	switch n.Operator {
	case OpAdd:
		v = l.Value + r.Value
	case OpSubtract:
		v = l.Value - r.Value
	case OpMultiply:
		v = l.Value * r.Value
	case OpDivide:
		if r.Value == 0 {
			return n
		}
		v = l.Value / r.Value
	default:
		return n
	}
	return newIntLit(v, n.Type, n.Line)
}

// fold1 folds ~ and ! on an integer literal.
func fold1(n *Unary) Node {
	lit, ok := n.Operand.(*IntLit)
	if !ok {
		return n
	}

	var v int64
	switch n.Operator {
	case OpInvert:
		v = ^lit.Value
	case OpLogNot:
		if lit.Value == 0 {
			v = 1
		}
	default:
		return n
	}
	return newIntLit(v, n.Type, n.Line)
}
