package compiler

// opPrec is the binding power of each binary operator token. Anything not
// listed cannot continue an expression.
var opPrec = [...]int{
	ASSIGN: 10, PLUS_ASSIGN: 10, MINUS_ASSIGN: 10, STAR_ASSIGN: 10, SLASH_ASSIGN: 10, PERCENT_ASSIGN: 10,
	QUESTION:    15,
	OR_LOGICAL:  20,
	AND_LOGICAL: 30,
	PIPE:        40,
	CARET:       50,
	AND:         60,
	EQUALS:      70, NOT_EQ: 70,
	LESS: 80, GREATER: 80, LESS_EQ: 80, GREATER_EQ: 80,
	SHL_OP: 90, SHR_OP: 90,
	PLUS: 100, MINUS: 100,
	STAR: 110, SLASH: 110, PERCENT: 110,
}

func (p *Parser) precedence(tok Token) (int, error) {
	if tok.Type > PERCENT || opPrec[tok.Type] == 0 {
		return 0, p.errorDetail("Syntax error, token", tok.Type.String())
	}
	return opPrec[tok.Type], nil
}

// Assignments group right to left.
func rightAssoc(tt TokenType) bool { return tt >= ASSIGN && tt <= PERCENT_ASSIGN }

// endsExpression reports whether tt closes the current expression.
func endsExpression(tt TokenType) bool {
	switch tt {
	case SEMICOLON, RPAREN, RBRACKET, COMMA, COLON, RBRACE:
		return true
	}
	return false
}

// binexpr parses an expression whose operators bind tighter than ptp.
func (p *Parser) binexpr(ptp int) (Node, error) {
	left, err := p.prefix(ptp)
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	for !endsExpression(tok.Type) {
		prec, err := p.precedence(tok)
		if err != nil {
			return nil, err
		}
		if prec < ptp || (prec == ptp && !rightAssoc(tok.Type)) {
			break
		}
		p.advance()

		right, err := p.binexpr(prec)
		if err != nil {
			return nil, err
		}

		switch op := Op(tok.Type); {
		case op == OpTernary:
			return p.ternary(left, right, tok.Line)
		case op == OpAssign:
			left, err = p.assignment(left, right, tok.Line)
		case op >= OpAsPlus && op <= OpAsMod:
			left, err = p.compoundAssignment(op, left, right, tok.Line)
		default:
			left, err = p.binary(op, left, right, tok.Line)
		}
		if err != nil {
			return nil, err
		}
		tok = p.peek()
	}

	left.Info().Rvalue = true
	return left, nil
}

func isLvalue(n Node) bool {
	switch n.(type) {
	case *Ident, *Deref:
		return true
	}
	return false
}

func (p *Parser) assignment(target, value Node, line int) (Node, error) {
	if !isLvalue(target) {
		return nil, p.errorf("Cannot assign to an rvalue")
	}
	value.Info().Rvalue = true
	value, err := Reconcile(value, target.Info().Type, target.Info().Ctype, OpNone)
	if err != nil {
		return nil, p.positioned(err)
	}
	if value == nil {
		return nil, p.errorf("Incompatible expression in assignment")
	}
	return &Assign{NodeInfo: NodeInfo{Type: value.Info().Type, Line: line}, Target: target, Value: value}, nil
}

// compoundAssignment builds target op= value. The operation runs in the
// wider of the two integer types, or in the pointer type for pointer
// arithmetic, and the result is stored back at the target's width.
func (p *Parser) compoundAssignment(op Op, target, value Node, line int) (Node, error) {
	if !isLvalue(target) {
		return nil, p.errorf("Cannot assign to an rvalue")
	}
	tinfo := target.Info()
	value.Info().Rvalue = true

	ltemp, err := Reconcile(target, value.Info().Type, value.Info().Ctype, op)
	if err != nil {
		return nil, p.positioned(err)
	}
	rtemp, err := Reconcile(value, tinfo.Type, tinfo.Ctype, op)
	if err != nil {
		return nil, p.positioned(err)
	}

	opType := tinfo.Type
	if w, ok := ltemp.(*Widen); ok {
		opType = w.Type
	} else if rtemp == nil {
		return nil, p.errorf("Incompatible types in binary expression")
	}
	if rtemp != nil {
		value = rtemp
	}
	return &CompoundAssign{
		NodeInfo: NodeInfo{Type: opType, Ctype: tinfo.Ctype, Line: line},
		Operator: op,
		Target:   target,
		Value:    value,
	}, nil
}

func (p *Parser) ternary(cond, then Node, line int) (Node, error) {
	if _, err := p.expect(COLON, ":"); err != nil {
		return nil, err
	}
	els, err := p.binexpr(0)
	if err != nil {
		return nil, err
	}
	cond.Info().Rvalue = true
	if !cond.Op().IsComparison() {
		cond = newToBool(cond)
	}
	info := then.Info()
	return &Ternary{
		NodeInfo: NodeInfo{Type: info.Type, Ctype: info.Ctype, Rvalue: true, Line: line},
		Cond:     cond,
		Then:     then,
		Else:     els,
	}, nil
}

// binary builds an arithmetic, comparison or logical node after bringing
// both operands to a common type.
func (p *Parser) binary(op Op, left, right Node, line int) (Node, error) {
	left.Info().Rvalue = true
	right.Info().Rvalue = true

	linfo, rinfo := *left.Info(), *right.Info()
	ltemp, err := Reconcile(left, rinfo.Type, rinfo.Ctype, op)
	if err != nil {
		return nil, p.positioned(err)
	}
	rtemp, err := Reconcile(right, linfo.Type, linfo.Ctype, op)
	if err != nil {
		return nil, p.positioned(err)
	}
	if ltemp == nil && rtemp == nil {
		return nil, p.errorf("Incompatible types in binary expression")
	}
	if ltemp != nil {
		left = ltemp
	}
	if rtemp != nil {
		right = rtemp
	}

	info := NodeInfo{Type: left.Info().Type, Ctype: linfo.Ctype, Line: line}
	if op == OpLogOr || op == OpLogAnd {
		info.Type = TypeInt
		return &Logical{NodeInfo: info, Operator: op, Left: left, Right: right}, nil
	}
	if op.IsComparison() {
		info.Type = TypeInt
	}
	return &Binary{NodeInfo: info, Operator: op, Left: left, Right: right}, nil
}

// prefix parses the unary prefix operators.
func (p *Parser) prefix(ptp int) (Node, error) {
	tok := p.peek()
	switch tok.Type {
	case AND:
		p.advance()
		tree, err := p.prefix(ptp)
		if err != nil {
			return nil, err
		}
		if a, ok := tree.(*AddrOf); ok && a.Sym != nil && a.Sym.Kind == KindArray {
			return nil, p.errorf("& operator cannot be performed on an array")
		}
		id, ok := tree.(*Ident)
		if !ok {
			return nil, p.errorf("& operator must be followed by an identifier")
		}
		t, err := id.Type.PointerTo()
		if err != nil {
			return nil, p.positioned(err)
		}
		id.Sym.HasAddr = true
		return &AddrOf{NodeInfo: NodeInfo{Type: t, Ctype: id.Ctype, Line: tok.Line}, Sym: id.Sym}, nil

	case STAR:
		p.advance()
		tree, err := p.prefix(ptp)
		if err != nil {
			return nil, err
		}
		tree.Info().Rvalue = true
		if !tree.Info().Type.IsPtr() {
			return nil, p.errorf("* operator must be followed by an expression of pointer type")
		}
		t, _ := tree.Info().Type.ValueAt()
		return newDeref(tree, t, tree.Info().Ctype), nil

	case MINUS, TILDE, NOT:
		p.advance()
		tree, err := p.prefix(ptp)
		if err != nil {
			return nil, err
		}
		info := tree.Info()
		info.Rvalue = true
		op := OpInvert
		switch tok.Type {
		case MINUS:
			op = OpNegate
			// Negative chars do not fit the unsigned char loads.
			if info.Type == TypeChar {
				info.Type = TypeInt
			}
		case NOT:
			op = OpLogNot
		}
		return &Unary{NodeInfo: NodeInfo{Type: info.Type, Ctype: info.Ctype, Line: tok.Line}, Operator: op, Operand: tree}, nil

	case PLUS_PLUS, MINUS_MINUS:
		p.advance()
		tree, err := p.prefix(ptp)
		if err != nil {
			return nil, err
		}
		id, ok := tree.(*Ident)
		if !ok {
			return nil, p.errorDetail("operator must be followed by an identifier", tok.Type.String())
		}
		op := OpPreInc
		if tok.Type == MINUS_MINUS {
			op = OpPreDec
		}
		return &IncDec{NodeInfo: NodeInfo{Type: id.Type, Ctype: id.Ctype, Line: tok.Line}, Operator: op, Target: id}, nil
	}

	return p.postfix(ptp)
}

// postfix parses a primary expression and any trailing [] . -> ++ --.
func (p *Parser) postfix(ptp int) (Node, error) {
	n, err := p.primary(ptp)
	if err != nil {
		return nil, err
	}

	for {
		switch tok := p.peek(); tok.Type {
		case LBRACKET:
			n, err = p.arrayAccess(n)
		case DOT:
			n, err = p.memberAccess(n, false)
		case ARROW:
			n, err = p.memberAccess(n, true)
		case PLUS_PLUS, MINUS_MINUS:
			if n.Info().Rvalue {
				return nil, p.errorDetail("Cannot apply operator to an rvalue", tok.Type.String())
			}
			if prev, ok := n.(*IncDec); ok && (prev.Operator == OpPostInc || prev.Operator == OpPostDec) {
				return nil, p.errorf("Cannot ++ and/or -- more than once")
			}
			if !isLvalue(n) {
				return nil, p.errorDetail("operator must follow a variable", tok.Type.String())
			}
			p.advance()
			op := OpPostInc
			if tok.Type == MINUS_MINUS {
				op = OpPostDec
			}
			info := n.Info()
			n = &IncDec{NodeInfo: NodeInfo{Type: info.Type, Ctype: info.Ctype, Line: tok.Line}, Operator: op, Target: n}
		default:
			return n, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// arrayAccess turns left[index] into *(left + scaled index).
func (p *Parser) arrayAccess(left Node) (Node, error) {
	linfo := left.Info()
	if !linfo.Type.IsPtr() {
		return nil, p.errorf("Not an array or pointer")
	}
	p.advance() // [

	index, err := p.binexpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RBRACKET, "]"); err != nil {
		return nil, err
	}
	if !index.Info().Type.IsInt() {
		return nil, p.errorf("Array index is not of integer type")
	}

	linfo.Rvalue = true
	index, err = Reconcile(index, linfo.Type, linfo.Ctype, OpAdd)
	if err != nil {
		return nil, p.positioned(err)
	}

	sum := &Binary{
		NodeInfo: NodeInfo{Type: linfo.Type, Ctype: linfo.Ctype, Line: linfo.Line},
		Operator: OpAdd,
		Left:     left,
		Right:    index,
	}
	elem, _ := linfo.Type.ValueAt()
	return newDeref(sum, elem, linfo.Ctype), nil
}

// memberAccess turns s.m or p->m into *(address + offset of m).
func (p *Parser) memberAccess(left Node, viaPointer bool) (Node, error) {
	linfo := left.Info()
	if viaPointer {
		if linfo.Type != TypeStruct+1 && linfo.Type != TypeUnion+1 {
			return nil, p.errorf("Expression is not a pointer to a struct/union")
		}
	} else {
		if !linfo.Type.IsComposite() {
			return nil, p.errorf("Expression is not a struct/union")
		}
		// Use the composite's address rather than its value.
		switch l := left.(type) {
		case *Ident:
			left = &AddrOf{NodeInfo: *linfo, Sym: l.Sym}
		case *Deref:
			left = &AddrOf{NodeInfo: *linfo, Operand: l.Operand}
		default:
			return nil, p.errorf("Expression is not a struct/union")
		}
		linfo = left.Info()
	}

	ctype := linfo.Ctype
	if ctype == nil {
		return nil, p.errorf("Expression is not a struct/union")
	}
	p.advance() // . or ->

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var member *Symbol
	for _, m := range ctype.Members {
		if m.Name == name {
			member = m
			break
		}
	}
	if member == nil {
		return nil, p.errorDetail("No member found in struct/union: ", name)
	}

	linfo.Rvalue = true
	addrType, err := member.Type.PointerTo()
	if err != nil {
		return nil, p.positioned(err)
	}
	sum := &Binary{
		NodeInfo: NodeInfo{Type: addrType, Ctype: member.Ctype, Line: linfo.Line},
		Operator: OpAdd,
		Left:     left,
		Right:    newIntLit(int64(member.Offset), TypeLong, linfo.Line),
	}
	return newDeref(sum, member.Type, member.Ctype), nil
}

// parenExpression parses a cast or a parenthesised expression.
func (p *Parser) parenExpression(ptp int) (Node, error) {
	lparen := p.advance()

	if !p.isTypeName() {
		n, err := p.binexpr(0)
		if err != nil {
			return nil, err
		}
		_, err = p.expect(RPAREN, ")")
		return n, err
	}

	t, ctype, err := p.parseCast()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, ")"); err != nil {
		return nil, err
	}
	operand, err := p.prefix(ptp)
	if err != nil {
		return nil, err
	}
	operand.Info().Rvalue = true
	return &Cast{NodeInfo: NodeInfo{Type: t, Ctype: ctype, Line: lparen.Line}, Operand: operand}, nil
}

// expressionList parses comma separated expressions up to end, which is
// left unconsumed.
func (p *Parser) expressionList(end TokenType) ([]Node, error) {
	var list []Node
	for !p.at(end) {
		n, err := p.binexpr(0)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
		if p.at(end) {
			break
		}
		if _, err := p.expect(COMMA, ","); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// funcCall parses the argument list of a call to fn. Arguments are widened
// to the declared parameter types where that is possible.
func (p *Parser) funcCall(fn *Symbol, line int) (Node, error) {
	if _, err := p.expect(LPAREN, "("); err != nil {
		return nil, err
	}
	args, err := p.expressionList(RPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, ")"); err != nil {
		return nil, err
	}

	for i, arg := range args {
		if i >= len(fn.Members) {
			break
		}
		param := fn.Members[i]
		conv, err := Reconcile(arg, param.Type, param.Ctype, OpNone)
		if err != nil {
			return nil, p.positioned(err)
		}
		if conv == nil {
			return nil, p.errorDetail("Incompatible argument type", param.Name)
		}
		args[i] = conv
	}
	return &Call{NodeInfo: NodeInfo{Type: fn.Type, Ctype: fn.Ctype, Line: line}, Sym: fn, Args: args}, nil
}

// primary parses literals, identifiers, calls, sizeof and parentheses.
func (p *Parser) primary(ptp int) (Node, error) {
	tok := p.peek()
	switch tok.Type {
	case STATIC, EXTERN:
		return nil, p.errorf("Compiler doesn't support static or extern local declarations")

	case SIZEOF:
		p.advance()
		if !p.at(LPAREN) {
			return nil, p.errorf("Left parenthesis expected after sizeof")
		}
		p.advance()
		class := ClassNone
		dt, err := p.parseType(&class)
		if err != nil {
			return nil, err
		}
		t, err := p.parseStars(dt.typ)
		if err != nil {
			return nil, err
		}
		size, err := TypeSize(t, dt.ctype)
		if err != nil {
			return nil, p.positioned(err)
		}
		if _, err := p.expect(RPAREN, ")"); err != nil {
			return nil, err
		}
		return newIntLit(int64(size), TypeInt, tok.Line), nil

	case INTEGER:
		p.advance()
		t := TypeInt
		if tok.Value >= 0 && tok.Value < 256 {
			t = TypeChar
		}
		return newIntLit(tok.Value, t, tok.Line), nil

	case STRING:
		// Adjacent literals make one string.
		p.advance()
		label := p.Gen.NewLabel()
		text := tok.Lexeme
		for p.at(STRING) {
			text += p.advance().Lexeme
		}
		p.Gen.GlobalString(label, text)
		return &StrLit{NodeInfo: NodeInfo{Type: TypeChar + 1, Line: tok.Line}, Label: label}, nil

	case IDENTIFIER:
		if ev := p.Syms.FindEnumVal(tok.Lexeme); ev != nil {
			p.advance()
			return newIntLit(ev.Value, TypeInt, tok.Line), nil
		}
		sym := p.Syms.Lookup(tok.Lexeme)
		if sym == nil {
			return nil, p.errorDetail("Unknown variable or function", tok.Lexeme)
		}
		p.advance()
		info := NodeInfo{Type: sym.Type, Ctype: sym.Ctype, Line: tok.Line}
		switch sym.Kind {
		case KindVariable:
			return &Ident{NodeInfo: info, Sym: sym}, nil
		case KindArray:
			info.Rvalue = true
			return &AddrOf{NodeInfo: info, Sym: sym}, nil
		default:
			if !p.at(LPAREN) {
				return nil, p.errorDetail("Function name used without parentheses", tok.Lexeme)
			}
			return p.funcCall(sym, tok.Line)
		}

	case LPAREN:
		return p.parenExpression(ptp)
	}

	return nil, p.errorDetail("Expecting a primary expression, got token", tok.Type.String())
}
