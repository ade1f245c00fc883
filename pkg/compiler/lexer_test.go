package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(toks []Token) []TokenType {
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	return types
}

func TestLex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"Declaration", "int x = 10;", []TokenType{INT, IDENTIFIER, ASSIGN, INTEGER, SEMICOLON, EOF}},
		{"CompoundOperators", "a += b -= c %= d", []TokenType{IDENTIFIER, PLUS_ASSIGN, IDENTIFIER, MINUS_ASSIGN, IDENTIFIER, PERCENT_ASSIGN, IDENTIFIER, EOF}},
		{"Shifts", "a << 2 >> 1 <= >=", []TokenType{IDENTIFIER, SHL_OP, INTEGER, SHR_OP, INTEGER, LESS_EQ, GREATER_EQ, EOF}},
		{"Logical", "!a && b || ~c", []TokenType{NOT, IDENTIFIER, AND_LOGICAL, IDENTIFIER, OR_LOGICAL, TILDE, IDENTIFIER, EOF}},
		{"Members", "p->x.y", []TokenType{IDENTIFIER, ARROW, IDENTIFIER, DOT, IDENTIFIER, EOF}},
		{"IncDec", "i++ --j", []TokenType{IDENTIFIER, PLUS_PLUS, MINUS_MINUS, IDENTIFIER, EOF}},
		{"Keywords", "struct union enum typedef extern static sizeof switch case default", []TokenType{STRUCT, UNION, ENUM, TYPEDEF, EXTERN, STATIC, SIZEOF, SWITCH, CASE, DEFAULT, EOF}},
		{"Comments", "a /* b */ c // d\ne", []TokenType{IDENTIFIER, IDENTIFIER, IDENTIFIER, EOF}},
		{"Ternary", "a ? b : c", []TokenType{IDENTIFIER, QUESTION, IDENTIFIER, COLON, IDENTIFIER, EOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.input, "t.c")
			require.NoError(t, err)
			assert.Equal(t, tt.want, tokenTypes(toks))
		})
	}
}

func TestLexLiterals(t *testing.T) {
	toks, err := Lex(`0x1F 017 42L 'a' '\n' "hi\tthere"`, "t.c")
	require.NoError(t, err)
	require.Len(t, toks, 7)

	for i, want := range []int64{31, 15, 42, 'a', '\n'} {
		assert.Equal(t, INTEGER, toks[i].Type)
		assert.Equal(t, want, toks[i].Value, "token %d", i)
	}
	assert.Equal(t, STRING, toks[5].Type)
	assert.Equal(t, "hi\tthere", toks[5].Lexeme)
}

func TestLexLineMarkers(t *testing.T) {
	src := "# 1 \"main.c\"\nint a;\n# 7 \"defs.h\" 1\nint b;\n#pragma once\nint c;\n"
	toks, err := Lex(src, "cpp-out")
	require.NoError(t, err)

	var idents []Token
	for _, tok := range toks {
		if tok.Type == IDENTIFIER {
			idents = append(idents, tok)
		}
	}
	require.Len(t, idents, 3)
	assert.Equal(t, 1, idents[0].Line)
	assert.Equal(t, "main.c", idents[0].File)
	assert.Equal(t, 7, idents[1].Line)
	assert.Equal(t, "defs.h", idents[1].File)
	assert.Equal(t, 9, idents[2].Line)
	assert.Equal(t, "defs.h", idents[2].File)
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"BadCharacter", "int $x;", "unrecognised character '$' on line 1 of t.c"},
		{"UnterminatedString", "\"abc\n\"", "unterminated string literal on line 1 of t.c"},
		{"UnterminatedComment", "\n/* forever", "unterminated block comment (opened on line 2) on line 2 of t.c"},
		{"EmptyChar", "''", "empty character literal on line 1 of t.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.input, "t.c")
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}
