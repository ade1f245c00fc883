package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
//
// The binary operators come first and in precedence-table order: opPrec and
// binaryOp index on them directly.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Binary operators
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	QUESTION       // ?
	OR_LOGICAL     // ||
	AND_LOGICAL    // &&
	PIPE           // |
	CARET          // ^
	AND            // & (binary bitwise AND, or unary address-of)
	EQUALS         // ==
	NOT_EQ         // !=
	LESS           // <
	GREATER        // >
	LESS_EQ        // <=
	GREATER_EQ     // >=
	SHL_OP         // <<
	SHR_OP         // >>
	PLUS           // +
	MINUS          // -
	STAR           // *
	SLASH          // /
	PERCENT        // %

	// Other operators
	PLUS_PLUS   // ++
	MINUS_MINUS // --
	TILDE       // ~
	NOT         // !

	// Type keywords
	VOID // "void"
	CHAR // "char"
	INT  // "int"
	LONG // "long"

	// Other keywords
	IF       // "if"
	ELSE     // "else"
	WHILE    // "while"
	FOR      // "for"
	RETURN   // "return"
	STRUCT   // "struct"
	UNION    // "union"
	ENUM     // "enum"
	TYPEDEF  // "typedef"
	EXTERN   // "extern"
	BREAK    // "break"
	CONTINUE // "continue"
	SWITCH   // "switch"
	CASE     // "case"
	DEFAULT  // "default"
	SIZEOF   // "sizeof"
	STATIC   // "static"

	// Literals
	INTEGER    // integer or character literal
	STRING     // string literal "..."
	SEMICOLON  // ;
	IDENTIFIER // variable / function / type name

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	COMMA // ,
	DOT   // .
	ARROW // ->
	COLON // :
)

// tokenNames is indexed by TokenType. These are the spellings used in
// diagnostics, so they are source text rather than identifiers.
var tokenNames = [...]string{
	EOF:            "EOF",
	ASSIGN:         "=",
	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	STAR_ASSIGN:    "*=",
	SLASH_ASSIGN:   "/=",
	PERCENT_ASSIGN: "%=",
	QUESTION:       "?",
	OR_LOGICAL:     "||",
	AND_LOGICAL:    "&&",
	PIPE:           "|",
	CARET:          "^",
	AND:            "&",
	EQUALS:         "==",
	NOT_EQ:         "!=",
	LESS:           "<",
	GREATER:        ">",
	LESS_EQ:        "<=",
	GREATER_EQ:     ">=",
	SHL_OP:         "<<",
	SHR_OP:         ">>",
	PLUS:           "+",
	MINUS:          "-",
	STAR:           "*",
	SLASH:          "/",
	PERCENT:        "%",
	PLUS_PLUS:      "++",
	MINUS_MINUS:    "--",
	TILDE:          "~",
	NOT:            "!",
	VOID:           "void",
	CHAR:           "char",
	INT:            "int",
	LONG:           "long",
	IF:             "if",
	ELSE:           "else",
	WHILE:          "while",
	FOR:            "for",
	RETURN:         "return",
	STRUCT:         "struct",
	UNION:          "union",
	ENUM:           "enum",
	TYPEDEF:        "typedef",
	EXTERN:         "extern",
	BREAK:          "break",
	CONTINUE:       "continue",
	SWITCH:         "switch",
	CASE:           "case",
	DEFAULT:        "default",
	SIZEOF:         "sizeof",
	STATIC:         "static",
	INTEGER:        "intlit",
	STRING:         "strlit",
	SEMICOLON:      ";",
	IDENTIFIER:     "identifier",
	LBRACE:         "{",
	RBRACE:         "}",
	LPAREN:         "(",
	RPAREN:         ")",
	LBRACKET:       "[",
	RBRACKET:       "]",
	COMMA:          ",",
	DOT:            ".",
	ARROW:          "->",
	COLON:          ":",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // source text, or the decoded contents of a string literal
	Value  int64  // INTEGER only
	Line   int    // 1-based source line
	File   string // from the most recent line marker, "" if none
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
