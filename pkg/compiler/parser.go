package compiler

import (
	"fmt"

	"github.com/golang/glog"
)

// Parser consumes the flat token slice produced by the Lexer. It parses one
// declaration at a time and hands each finished piece straight to the
// session's generator: global data right after its declaration, string
// literals as they are met and a function's code once its body is parsed.
//
// Grammar:
//
//	file        = declaration* EOF
//	declaration = type declarator ("," declarator)* ";" | type ";"
//	declarator  = "*"* IDENT ( "[" literal? "]" ("=" "{" literal ("," literal)* "}")?
//	                         | "(" params ")" (";" | compound)
//	                         | ("=" expression)? )
//	type        = ("extern" | "static")? ( "void" | "char" | "int" | "long"
//	                                     | ("struct" | "union") IDENT? ("{" members "}")?
//	                                     | "enum" IDENT? ("{" enumerators "}")?
//	                                     | "typedef" type "*"* IDENT
//	                                     | TYPEDEF_NAME )
//	statement   = ";" | compound | declaration | if | while | for | switch
//	            | "return" expression? ";" | "break" ";" | "continue" ";" | expression ";"
//	expression  = prefix (binop expression)*   precedence climbing, see opPrec
type Parser struct {
	*Session
	tokens []Token
	pos    int
	dumper *ASTDumper

	loopLevel   int // nesting depth of while/for, for break and continue
	switchLevel int // nesting depth of switch, for break
}

func NewParser(s *Session, tokens []Token) *Parser {
	p := &Parser{Session: s, tokens: tokens}
	if s.Opts.ASTDump != nil {
		p.dumper = NewASTDumper(s.Opts.ASTDump)
	}
	return p
}

// errorf builds a diagnostic positioned at the current token.
func (p *Parser) errorf(format string, args ...any) error {
	tok := p.peek()
	return &Error{Msg: fmt.Sprintf(format, args...), Line: tok.Line, File: p.fileOf(tok)}
}

// errorDetail builds a "msg:detail" diagnostic positioned at the current
// token.
func (p *Parser) errorDetail(msg, detail string) error {
	tok := p.peek()
	return &Error{Msg: msg, Detail: detail, Line: tok.Line, File: p.fileOf(tok)}
}

// positioned attaches the current position to an error from the type or
// generator layers.
func (p *Parser) positioned(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return p.errorf("%s", err)
}

func (p *Parser) fileOf(tok Token) string {
	if tok.File != "" {
		return tok.File
	}
	return p.File
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekNext returns the token immediately after the current one.
func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+1]
}

// at reports whether the current token has type tt.
func (p *Parser) at(tt TokenType) bool { return p.peek().Type == tt }

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise it reports
// "Expected:what".
func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	if !p.at(tt) {
		return p.peek(), p.errorDetail("Expected", what)
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (string, error) {
	tok, err := p.expect(IDENTIFIER, "identifier")
	return tok.Lexeme, err
}

// isTypeName reports whether the current token starts a type: a type
// keyword, a composite/enum/typedef introducer or a typedef name.
func (p *Parser) isTypeName() bool {
	switch p.peek().Type {
	case VOID, CHAR, INT, LONG, STRUCT, UNION, ENUM, TYPEDEF:
		return true
	case IDENTIFIER:
		return p.Syms.FindTypedef(p.peek().Lexeme) != nil
	}
	return false
}

// ParseFile parses and generates a whole translation unit.
func (p *Parser) ParseFile() error {
	for !p.at(EOF) {
		if _, err := p.declarationList(ClassGlobal, SEMICOLON, EOF); err != nil {
			return err
		}
		if p.at(SEMICOLON) {
			p.advance()
		}
	}
	return nil
}

// finishFunction runs the per-function back end once a body has been
// parsed: fold constants, print the tree for -T, lower it and forget the
// function's locals.
func (p *Parser) finishFunction(fn *Function) error {
	fn.Body = Optimise(fn.Body)
	if p.dumper != nil {
		p.dumper.Dump(fn)
		fmt.Fprint(p.Opts.ASTDump, "\n\n")
	}
	glog.V(3).Infof("generating function %s", fn.Sym.Name)
	if err := p.Gen.Function(fn, p.Syms.Locals); err != nil {
		return p.positioned(err)
	}
	p.Syms.ClearLocals()
	return nil
}
