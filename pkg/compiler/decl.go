package compiler

import "strconv"

// declType is a parsed type specifier.
type declType struct {
	typ   Type
	ctype *Symbol
	bare  bool // a struct/union/enum/typedef definition with nothing declared
}

// parseType parses storage-class keywords and a base type. class is updated
// for extern and static.
func (p *Parser) parseType(class *Class) (declType, error) {
	for done := false; !done; {
		switch p.peek().Type {
		case EXTERN:
			if *class == ClassStatic {
				return declType{}, p.errorf("Illegal to have extern and static at the same time")
			}
			*class = ClassExtern
			p.advance()
		case STATIC:
			if *class == ClassLocal {
				return declType{}, p.errorf("Compiler doesn't support static local declarations")
			}
			if *class == ClassExtern {
				return declType{}, p.errorf("Illegal to have extern and static at the same time")
			}
			*class = ClassStatic
			p.advance()
		default:
			done = true
		}
	}

	var dt declType
	var err error
	switch tok := p.peek(); tok.Type {
	case VOID:
		dt.typ = TypeVoid
		p.advance()
	case CHAR:
		dt.typ = TypeChar
		p.advance()
	case INT:
		dt.typ = TypeInt
		p.advance()
	case LONG:
		dt.typ = TypeLong
		p.advance()
	case STRUCT, UNION:
		dt.typ = TypeStruct
		if tok.Type == UNION {
			dt.typ = TypeUnion
		}
		if dt.ctype, err = p.compositeDeclaration(dt.typ); err != nil {
			return dt, err
		}
		dt.bare = p.at(SEMICOLON)
	case ENUM:
		dt.typ = TypeInt
		if err = p.enumDeclaration(); err != nil {
			return dt, err
		}
		dt.bare = p.at(SEMICOLON)
	case TYPEDEF:
		if dt.typ, dt.ctype, err = p.typedefDeclaration(); err != nil {
			return dt, err
		}
		dt.bare = p.at(SEMICOLON)
	case IDENTIFIER:
		if dt.typ, dt.ctype, err = p.typeOfTypedef(tok.Lexeme); err != nil {
			return dt, err
		}
	default:
		return dt, p.errorDetail("Illegal type, token", tok.Type.String())
	}
	return dt, nil
}

// parseStars applies any '*' tokens to t.
func (p *Parser) parseStars(t Type) (Type, error) {
	for p.at(STAR) {
		var err error
		if t, err = t.PointerTo(); err != nil {
			return t, p.positioned(err)
		}
		p.advance()
	}
	return t, nil
}

// parseCast parses the type inside a cast's parentheses.
func (p *Parser) parseCast() (Type, *Symbol, error) {
	class := ClassNone
	dt, err := p.parseType(&class)
	if err != nil {
		return 0, nil, err
	}
	t, err := p.parseStars(dt.typ)
	if err != nil {
		return 0, nil, err
	}
	if t.IsComposite() || t == TypeVoid {
		return 0, nil, p.errorf("Cannot cast to a struct, union or void type")
	}
	return t, dt.ctype, nil
}

// parseLiteral parses a constant expression for a variable of type t: an
// integer literal, or for char* a string literal or 0. The value of a
// string is its data label.
func (p *Parser) parseLiteral(t Type) (int64, error) {
	tree, err := p.binexpr(0)
	if err != nil {
		return 0, err
	}
	tree = Optimise(tree)

	if c, ok := tree.(*Cast); ok {
		c.Operand.Info().Type = c.Type
		tree = c.Operand
	}

	var value int64
	switch lit := tree.(type) {
	case *IntLit:
		value = lit.Value
	case *StrLit:
		value = int64(lit.Label)
	default:
		return 0, p.errorf("Cannot initialise globals with a general expression")
	}

	if t == TypeChar+1 {
		if tree.Op() == OpStrLit || value == 0 {
			return value, nil
		}
	}
	if t.IsInt() {
		want, _ := PrimSize(t)
		have, err := TypeSize(tree.Info().Type, nil)
		if err == nil && want >= have {
			return value, nil
		}
	}
	return 0, p.errorf("Type mismatch: literal vs. variable")
}

// isNewSymbol decides whether a file-scope declaration introduces a new
// symbol. A global and an extern of the same type merge into one global.
func (p *Parser) isNewSymbol(sym *Symbol, class Class, t Type, ctype *Symbol) (bool, error) {
	if sym == nil {
		return true, nil
	}
	if (sym.Class == ClassGlobal && class == ClassExtern) || (sym.Class == ClassExtern && class == ClassGlobal) {
		if t != sym.Type {
			return false, p.errorDetail("Type mismatch between global/extern", sym.Name)
		}
		if t.Base() >= TypeStruct && ctype != sym.Ctype {
			return false, p.errorDetail("Type mismatch between global/extern", sym.Name)
		}
		sym.Class = ClassGlobal
		return false, nil
	}
	return false, p.errorDetail("Duplicate global variable declaration", sym.Name)
}

// scalarDeclaration declares a non-array variable. A local initialiser
// comes back as an assignment statement; a global one is recorded on the
// symbol for the data definition.
func (p *Parser) scalarDeclaration(name string, t Type, ctype *Symbol, class Class) (*Symbol, Node, error) {
	line := p.peek().Line
	var sym *Symbol

	switch class {
	case ClassStatic, ClassExtern, ClassGlobal:
		existing := p.Syms.FindGlobal(name)
		isNew, err := p.isNewSymbol(existing, class, t, ctype)
		if err != nil {
			return nil, nil, err
		}
		sym = existing
		if isNew {
			sym = p.Syms.AddGlobal(name, t, ctype, KindVariable, class, 1)
		}
	case ClassLocal:
		sym = p.Syms.AddLocal(name, t, ctype, KindVariable, 1)
		if t.IsComposite() {
			sym.HasAddr = true
		}
	case ClassParam:
		sym = p.Syms.AddParam(name, t, ctype)
	case ClassMember:
		sym = p.Syms.AddMember(name, t, ctype, KindVariable, 1)
	}

	var init Node
	if p.at(ASSIGN) {
		if class != ClassGlobal && class != ClassLocal && class != ClassStatic {
			return nil, nil, p.errorDetail("Variable can not be initialised", name)
		}
		p.advance()

		if class == ClassLocal {
			target := &Ident{NodeInfo: NodeInfo{Type: t, Ctype: ctype, Line: line}, Sym: sym}
			value, err := p.binexpr(0)
			if err != nil {
				return nil, nil, err
			}
			value.Info().Rvalue = true
			value, err = Reconcile(value, t, ctype, OpNone)
			if err != nil {
				return nil, nil, p.positioned(err)
			}
			if value == nil {
				return nil, nil, p.errorf("Incompatible expression in assignment")
			}
			init = &Assign{NodeInfo: NodeInfo{Type: value.Info().Type, Line: line}, Target: target, Value: value}
		} else {
			v, err := p.parseLiteral(t)
			if err != nil {
				return nil, nil, err
			}
			sym.Init = []int64{v}
		}
	}

	if class == ClassGlobal || class == ClassStatic {
		if err := p.Gen.GlobalSym(sym); err != nil {
			return nil, nil, p.positioned(err)
		}
	}
	return sym, init, nil
}

// arrayDeclaration declares an array. The symbol's type is a pointer to the
// element type. Only file-scope arrays take an initialiser list; an array
// without an explicit size takes its length from the list.
func (p *Parser) arrayDeclaration(name string, t Type, ctype *Symbol, class Class) (*Symbol, error) {
	p.advance() // [

	nelems := -1
	if !p.at(RBRACKET) {
		n, err := p.parseLiteral(TypeInt)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, p.errorDetail("Array size is illegal", strconv.FormatInt(n, 10))
		}
		nelems = int(n)
	}
	if _, err := p.expect(RBRACKET, "]"); err != nil {
		return nil, err
	}

	ptype, err := t.PointerTo()
	if err != nil {
		return nil, p.positioned(err)
	}

	var sym *Symbol
	switch class {
	case ClassStatic, ClassExtern, ClassGlobal:
		existing := p.Syms.FindGlobal(name)
		isNew, err := p.isNewSymbol(existing, class, ptype, ctype)
		if err != nil {
			return nil, err
		}
		sym = existing
		if isNew {
			sym = p.Syms.AddGlobal(name, ptype, ctype, KindArray, class, 0)
		}
	case ClassLocal:
		sym = p.Syms.AddLocal(name, ptype, ctype, KindArray, 0)
		sym.HasAddr = true
	default:
		return nil, p.errorf("Declaration of array parameters is not implemented")
	}

	if p.at(ASSIGN) {
		if class != ClassGlobal && class != ClassStatic {
			return nil, p.errorDetail("Variable can not be initialised", name)
		}
		p.advance()
		if _, err := p.expect(LBRACE, "{"); err != nil {
			return nil, err
		}

		var init []int64
		for {
			if nelems != -1 && len(init) == nelems {
				return nil, p.errorf("Too many values in initialisation list")
			}
			v, err := p.parseLiteral(t)
			if err != nil {
				return nil, err
			}
			init = append(init, v)

			if p.at(RBRACE) {
				p.advance()
				break
			}
			if _, err := p.expect(COMMA, "comma"); err != nil {
				return nil, err
			}
		}

		for len(init) < nelems {
			init = append(init, 0)
		}
		nelems = max(nelems, len(init))
		sym.Init = init
	}

	if class != ClassExtern && nelems <= 0 {
		return nil, p.errorDetail("Array must have non-zero elements", sym.Name)
	}

	elemSize, err := TypeSize(t, ctype)
	if err != nil {
		return nil, p.positioned(err)
	}
	sym.NElems = max(nelems, 0)
	sym.Size = sym.NElems * elemSize

	if class == ClassGlobal || class == ClassStatic {
		if err := p.Gen.GlobalSym(sym); err != nil {
			return nil, p.positioned(err)
		}
	}
	return sym, nil
}

// paramDeclarationList parses the parameters up to the closing ')'. With a
// prototype in hand each type is checked against it.
func (p *Parser) paramDeclarationList(proto *Symbol) (int, error) {
	var protoParams []*Symbol
	if proto != nil {
		protoParams = proto.Members
	}

	count := 0
	for !p.at(RPAREN) {
		if p.at(VOID) && p.peekNext().Type == RPAREN {
			p.advance()
			count = 0
			break
		}

		t, err := p.declarationList(ClassParam, COMMA, RPAREN)
		if err != nil {
			return 0, err
		}
		if t.bare {
			return 0, p.errorf("Bad type in parameter list")
		}

		if proto != nil {
			if count >= len(protoParams) || t.typ != protoParams[count].Type {
				return 0, p.errorDetail("Type doesn't match prototype for parameter", strconv.Itoa(count+1))
			}
		}
		count++

		if p.at(RPAREN) {
			break
		}
		if _, err := p.expect(COMMA, "comma"); err != nil {
			return 0, err
		}
	}

	if proto != nil && count != proto.NElems {
		return 0, p.errorDetail("Parameter count mismatch for function", proto.Name)
	}
	return count, nil
}

// functionDeclaration parses a prototype or a definition. A definition is
// compiled and emitted before this returns.
func (p *Parser) functionDeclaration(name string, t Type, ctype *Symbol, class Class) (*Symbol, error) {
	line := p.peek().Line

	old := p.Syms.Lookup(name)
	if old != nil && old.Kind != KindFunction {
		return nil, p.errorDetail("Duplicate global variable declaration", name)
	}

	var fresh *Symbol
	if old == nil {
		fresh = p.Syms.AddGlobal(name, t, ctype, KindFunction, class, 0)
		fresh.EndLabel = p.Gen.NewLabel()
	}

	if _, err := p.expect(LPAREN, "("); err != nil {
		return nil, err
	}
	count, err := p.paramDeclarationList(old)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, ")"); err != nil {
		return nil, err
	}

	params := p.Syms.takeParams()
	if fresh != nil {
		fresh.NElems = count
		fresh.Members = params
		old = fresh
	}

	if p.at(SEMICOLON) {
		return old, nil
	}
	if old.Defined {
		return nil, p.errorDetail("Function already defined", name)
	}
	old.Defined = true

	// The definition's parameter names win over the prototype's.
	old.Members = params
	if old.Class == ClassExtern {
		old.Class = ClassGlobal
	}

	p.Syms.Function = old
	p.loopLevel, p.switchLevel = 0, 0
	if _, err := p.expect(LBRACE, "{"); err != nil {
		return nil, err
	}
	body, err := p.compoundStatement(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RBRACE, "}"); err != nil {
		return nil, err
	}

	if t != TypeVoid {
		block, _ := body.(*Block)
		if block == nil || len(block.Stmts) == 0 {
			return nil, p.errorf("No statements in function with non-void type")
		}
		if _, ok := block.Stmts[len(block.Stmts)-1].(*Return); !ok {
			return nil, p.errorf("No return for function with non-void type")
		}
	}

	fn := &Function{NodeInfo: NodeInfo{Type: t, Ctype: ctype, Line: line}, Sym: old, Body: body}
	if err := p.finishFunction(fn); err != nil {
		return nil, err
	}
	return old, nil
}

// compositeDeclaration parses a struct or union reference or definition
// and returns its tag symbol.
func (p *Parser) compositeDeclaration(t Type) (*Symbol, error) {
	p.advance() // struct or union

	var ctype *Symbol
	name := ""
	if p.at(IDENTIFIER) {
		name = p.advance().Lexeme
		if t == TypeStruct {
			ctype = p.Syms.FindStruct(name)
		} else {
			ctype = p.Syms.FindUnion(name)
		}
	}

	if !p.at(LBRACE) {
		if ctype == nil {
			return nil, p.errorDetail("unknown struct/union type", name)
		}
		return ctype, nil
	}
	if ctype != nil {
		return nil, p.errorDetail("previously defined struct/union", name)
	}

	if t == TypeStruct {
		ctype = p.Syms.AddStruct(name)
	} else {
		ctype = p.Syms.AddUnion(name)
	}
	p.advance() // {

	// A member may itself define a composite; keep the outer list aside.
	outer := p.Syms.takeMembers()
	for !p.at(RBRACE) {
		dt, err := p.declarationList(ClassMember, SEMICOLON, RBRACE)
		if err != nil {
			return nil, err
		}
		if dt.bare {
			return nil, p.errorf("Bad type in member list")
		}
		if p.at(SEMICOLON) {
			p.advance()
		}
	}
	if _, err := p.expect(RBRACE, "}"); err != nil {
		return nil, err
	}

	members := p.Syms.takeMembers()
	p.Syms.members = outer
	if len(members) == 0 {
		return nil, p.errorDetail("No members in struct", name)
	}
	if err := Layout(ctype, members); err != nil {
		return nil, p.positioned(err)
	}
	return ctype, nil
}

// enumDeclaration parses an enum reference or definition. Enumerators
// count up from 0 or from the last explicit value.
func (p *Parser) enumDeclaration() error {
	p.advance() // enum

	var etype *Symbol
	name := ""
	if p.at(IDENTIFIER) {
		name = p.advance().Lexeme
		etype = p.Syms.FindEnumType(name)
	}

	if !p.at(LBRACE) {
		if etype == nil {
			return p.errorDetail("undeclared enum type", name)
		}
		return nil
	}
	p.advance() // {

	if etype != nil {
		return p.errorDetail("enum type redeclared", etype.Name)
	}
	p.Syms.AddEnum(name, ClassEnumType, 0)

	var value int64
	for {
		ename, err := p.expectIdent()
		if err != nil {
			return err
		}
		if p.Syms.FindEnumVal(ename) != nil {
			return p.errorDetail("enum value redeclared", ename)
		}

		if p.at(ASSIGN) {
			p.advance()
			if !p.at(INTEGER) {
				return p.errorf("Expected int literal after '='")
			}
			value = p.advance().Value
		}
		p.Syms.AddEnum(ename, ClassEnumVal, value)
		value++

		if p.at(RBRACE) {
			break
		}
		if _, err := p.expect(COMMA, "comma"); err != nil {
			return err
		}
	}
	p.advance() // }
	return nil
}

// typedefDeclaration parses "typedef type *name" and returns the aliased
// type.
func (p *Parser) typedefDeclaration() (Type, *Symbol, error) {
	p.advance() // typedef

	class := ClassNone
	dt, err := p.parseType(&class)
	if err != nil {
		return 0, nil, err
	}
	if class != ClassNone {
		return 0, nil, p.errorf("Can't have static/extern in a typedef declaration")
	}
	t, err := p.parseStars(dt.typ)
	if err != nil {
		return 0, nil, err
	}

	if !p.at(IDENTIFIER) {
		return 0, nil, p.errorDetail("Expected", "identifier")
	}
	name := p.peek().Lexeme
	if p.Syms.FindTypedef(name) != nil {
		return 0, nil, p.errorDetail("redefinition of typedef", name)
	}
	p.Syms.AddTypedef(name, t, dt.ctype)
	p.advance()
	return t, dt.ctype, nil
}

func (p *Parser) typeOfTypedef(name string) (Type, *Symbol, error) {
	td := p.Syms.FindTypedef(name)
	if td == nil {
		return 0, nil, p.errorDetail("unknown type", name)
	}
	p.advance()
	return td.Type, td.Ctype, nil
}

// symbolDeclaration declares one name of a declaration list.
func (p *Parser) symbolDeclaration(t Type, ctype *Symbol, class Class) (*Symbol, Node, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, nil, err
	}

	if p.at(LPAREN) {
		if class != ClassGlobal && class != ClassStatic && class != ClassExtern {
			return nil, nil, p.errorf("Function definition not at global level")
		}
		sym, err := p.functionDeclaration(name, t, ctype, class)
		return sym, nil, err
	}

	switch class {
	case ClassExtern, ClassStatic, ClassGlobal, ClassLocal, ClassParam:
		if p.Syms.FindLocal(name) != nil || (class == ClassParam && findIn(p.Syms.Params, name, ClassNone) != nil) {
			return nil, nil, p.errorDetail("Duplicate local variable declaration", name)
		}
	case ClassMember:
		if p.Syms.FindMember(name) != nil {
			return nil, nil, p.errorDetail("Duplicate struct/union member declaration", name)
		}
	}

	if p.at(LBRACKET) {
		sym, err := p.arrayDeclaration(name, t, ctype, class)
		return sym, nil, err
	}
	return p.scalarDeclaration(name, t, ctype, class)
}

// declarationList parses a type followed by one or more declarators up to
// one of the end tokens, which is left unconsumed. Local initialisers are
// returned as assignment statements.
func (p *Parser) declarationList(class Class, end1, end2 TokenType) (declType, error) {
	dt, _, err := p.declarationListInits(class, end1, end2)
	return dt, err
}

func (p *Parser) declarationListInits(class Class, end1, end2 TokenType) (declType, []Node, error) {
	base, err := p.parseType(&class)
	if err != nil || base.bare {
		return base, nil, err
	}

	var inits []Node
	for {
		t, err := p.parseStars(base.typ)
		if err != nil {
			return base, nil, err
		}
		sym, init, err := p.symbolDeclaration(t, base.ctype, class)
		if err != nil {
			return base, nil, err
		}
		if sym.Kind == KindFunction {
			return declType{typ: t, ctype: base.ctype}, inits, nil
		}
		if init != nil {
			inits = append(inits, init)
		}

		if p.at(end1) || p.at(end2) {
			return declType{typ: t, ctype: base.ctype}, inits, nil
		}
		if _, err := p.expect(COMMA, "comma"); err != nil {
			return base, nil, err
		}
	}
}
