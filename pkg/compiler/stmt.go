package compiler

// condition parses a parenthesised controlling expression. Anything that
// is not already a comparison is tested against zero.
func (p *Parser) condition() (Node, error) {
	if _, err := p.expect(LPAREN, "("); err != nil {
		return nil, err
	}
	cond, err := p.binexpr(0)
	if err != nil {
		return nil, err
	}
	if !cond.Op().IsComparison() {
		cond = newToBool(cond)
	}
	if _, err := p.expect(RPAREN, ")"); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *Parser) ifStatement() (Node, error) {
	line := p.advance().Line // if
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	then, err := p.singleStatement()
	if err != nil {
		return nil, err
	}

	var els Node
	if p.at(ELSE) {
		p.advance()
		if els, err = p.singleStatement(); err != nil {
			return nil, err
		}
	}
	return &If{NodeInfo: NodeInfo{Line: line}, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) whileStatement() (Node, error) {
	line := p.advance().Line // while
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}

	p.loopLevel++
	body, err := p.singleStatement()
	p.loopLevel--
	if err != nil {
		return nil, err
	}
	return &While{NodeInfo: NodeInfo{Line: line}, Cond: cond, Body: body}, nil
}

// forStatement lowers for (pre; cond; post) body into
//
//	pre; while (cond) { body; post }
func (p *Parser) forStatement() (Node, error) {
	line := p.advance().Line // for
	if _, err := p.expect(LPAREN, "("); err != nil {
		return nil, err
	}

	pre, err := p.expressionList(SEMICOLON)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, ";"); err != nil {
		return nil, err
	}

	cond, err := p.binexpr(0)
	if err != nil {
		return nil, err
	}
	if !cond.Op().IsComparison() {
		cond = newToBool(cond)
	}
	if _, err := p.expect(SEMICOLON, ";"); err != nil {
		return nil, err
	}

	post, err := p.expressionList(RPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, ")"); err != nil {
		return nil, err
	}

	p.loopLevel++
	body, err := p.singleStatement()
	p.loopLevel--
	if err != nil {
		return nil, err
	}

	info := NodeInfo{Line: line}
	loop := &While{NodeInfo: info, Cond: cond, Body: &Block{NodeInfo: info, Stmts: append(nonNil(body), post...)}}
	return &Block{NodeInfo: info, Stmts: append(pre, loop)}, nil
}

func nonNil(n Node) []Node {
	if n == nil {
		return nil
	}
	return []Node{n}
}

func (p *Parser) returnStatement() (Node, error) {
	line := p.advance().Line // return
	fn := p.Syms.Function

	ret := &Return{NodeInfo: NodeInfo{Line: line}}
	if !p.at(SEMICOLON) {
		if fn.Type == TypeVoid {
			return nil, p.errorf("Can't return from a void function")
		}
		value, err := p.binexpr(0)
		if err != nil {
			return nil, err
		}
		conv, err := Reconcile(value, fn.Type, fn.Ctype, OpNone)
		if err != nil {
			return nil, p.positioned(err)
		}
		if conv == nil {
			return nil, p.errorf("Incompatible type to return")
		}
		ret.Value = conv
		ret.Type = fn.Type
	}

	if _, err := p.expect(SEMICOLON, ";"); err != nil {
		return nil, err
	}
	return ret, nil
}

func (p *Parser) breakStatement() (Node, error) {
	if p.loopLevel == 0 && p.switchLevel == 0 {
		return nil, p.errorf("no loop or switch to break out from")
	}
	line := p.advance().Line
	if _, err := p.expect(SEMICOLON, ";"); err != nil {
		return nil, err
	}
	return &Break{NodeInfo: NodeInfo{Line: line}}, nil
}

func (p *Parser) continueStatement() (Node, error) {
	if p.loopLevel == 0 {
		return nil, p.errorf("no loop to continue to")
	}
	line := p.advance().Line
	if _, err := p.expect(SEMICOLON, ";"); err != nil {
		return nil, err
	}
	return &Continue{NodeInfo: NodeInfo{Line: line}}, nil
}

// switchStatement parses a switch with integer literal cases and at most
// one trailing default.
func (p *Parser) switchStatement() (Node, error) {
	line := p.advance().Line // switch
	if _, err := p.expect(LPAREN, "("); err != nil {
		return nil, err
	}
	scrutinee, err := p.binexpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE, "{"); err != nil {
		return nil, err
	}
	if !scrutinee.Info().Type.IsInt() {
		return nil, p.errorf("Switch expression is not of integer type")
	}

	sw := &Switch{NodeInfo: NodeInfo{Line: line}, Scrutinee: scrutinee}
	seenDefault := false
	seen := make(map[int64]bool)

	p.switchLevel++
	defer func() { p.switchLevel-- }()

	for !p.at(RBRACE) {
		tok := p.peek()
		if tok.Type != CASE && tok.Type != DEFAULT {
			return nil, p.errorDetail("Unexpected token in switch", tok.Type.String())
		}
		if seenDefault {
			return nil, p.errorf("case or default after existing default")
		}
		p.advance()

		c := &Case{NodeInfo: NodeInfo{Line: tok.Line}}
		if tok.Type == DEFAULT {
			c.Default = true
			seenDefault = true
		} else {
			v, err := p.binexpr(0)
			if err != nil {
				return nil, err
			}
			lit, ok := v.(*IntLit)
			if !ok {
				return nil, p.errorf("Expecting integer literal for case value")
			}
			if seen[lit.Value] {
				return nil, p.errorf("Duplicate case value")
			}
			seen[lit.Value] = true
			c.Value = lit.Value
		}
		if _, err := p.expect(COLON, ":"); err != nil {
			return nil, err
		}

		// An empty case falls into the next one.
		if !p.at(CASE) {
			if c.Body, err = p.compoundStatement(true); err != nil {
				return nil, err
			}
		}
		sw.Cases = append(sw.Cases, c)
	}

	if len(sw.Cases) == 0 {
		return nil, p.errorf("No cases in switch")
	}
	p.advance() // }
	return sw, nil
}

// localDeclaration parses a local declaration statement and returns the
// assignments for any initialisers.
func (p *Parser) localDeclaration() ([]Node, error) {
	_, inits, err := p.declarationListInits(ClassLocal, SEMICOLON, EOF)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, ";"); err != nil {
		return nil, err
	}
	return inits, nil
}

// singleStatement parses one statement. It returns nil for an empty
// statement or a declaration without initialisers.
func (p *Parser) singleStatement() (Node, error) {
	tok := p.peek()
	switch tok.Type {
	case SEMICOLON:
		p.advance()
		return nil, nil
	case LBRACE:
		p.advance()
		stmt, err := p.compoundStatement(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACE, "}"); err != nil {
			return nil, err
		}
		return stmt, nil
	case IF:
		return p.ifStatement()
	case WHILE:
		return p.whileStatement()
	case FOR:
		return p.forStatement()
	case RETURN:
		return p.returnStatement()
	case BREAK:
		return p.breakStatement()
	case CONTINUE:
		return p.continueStatement()
	case SWITCH:
		return p.switchStatement()
	}

	if p.isTypeName() {
		inits, err := p.localDeclaration()
		if err != nil || len(inits) == 0 {
			return nil, err
		}
		return &Block{NodeInfo: NodeInfo{Line: tok.Line}, Stmts: inits}, nil
	}

	expr, err := p.binexpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, ";"); err != nil {
		return nil, err
	}
	return expr, nil
}

// compoundStatement parses statements up to a '}', which is left
// unconsumed. Inside a switch it also stops at the next case or default.
// Declaration initialisers are spliced into the sequence. It returns nil
// when there are no statements.
func (p *Parser) compoundStatement(inSwitch bool) (Node, error) {
	block := &Block{NodeInfo: NodeInfo{Line: p.peek().Line}}
	for {
		switch p.peek().Type {
		case RBRACE:
			return block.orNil(), nil
		case CASE, DEFAULT:
			if inSwitch {
				return block.orNil(), nil
			}
		case EOF:
			return nil, p.errorDetail("Expected", "}")
		}

		if p.isTypeName() {
			inits, err := p.localDeclaration()
			if err != nil {
				return nil, err
			}
			block.Stmts = append(block.Stmts, inits...)
			continue
		}

		stmt, err := p.singleStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
}

func (b *Block) orNil() Node {
	if len(b.Stmts) == 0 {
		return nil
	}
	return b
}
