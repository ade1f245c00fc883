package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"void":     VOID,
	"char":     CHAR,
	"int":      INT,
	"long":     LONG,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"return":   RETURN,
	"struct":   STRUCT,
	"union":    UNION,
	"enum":     ENUM,
	"typedef":  TYPEDEF,
	"extern":   EXTERN,
	"break":    BREAK,
	"continue": CONTINUE,
	"switch":   SWITCH,
	"case":     CASE,
	"default":  DEFAULT,
	"sizeof":   SIZEOF,
	"static":   STATIC,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int    // index of the next rune to consume
	line int    // current 1-based source line
	file string // set by preprocessor line markers
}

func newLexer(src, file string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1, file: file}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Line: l.line, File: l.file}
}

func (l *Lexer) tok(tt TokenType, lexeme string, line int) Token {
	return Token{Type: tt, Lexeme: lexeme, Line: line, File: l.file}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// atLineStart reports whether only blanks precede the current position on
// its line.
func (l *Lexer) atLineStart() bool {
	for i := l.pos - 1; i >= 0; i-- {
		switch l.src[i] {
		case '\n':
			return true
		case ' ', '\t':
			continue
		default:
			return false
		}
	}
	return true
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return l.errorf("unterminated block comment (opened on line %d)", startLine)
}

// lineMarker consumes a whole '#' line. Markers of the form
//
//	# 12 "foo.c" 1
//	#line 12 "foo.c"
//
// reset the line number and file name; any other directive is dropped.
func (l *Lexer) lineMarker() {
	start := l.pos
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.pos++
	}
	text := strings.TrimSpace(string(l.src[start+1 : l.pos]))
	text = strings.TrimPrefix(text, "line")
	fields := strings.Fields(text)
	l.advance() // newline

	if len(fields) == 0 {
		return
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	l.line = n
	if len(fields) > 1 {
		if name, err := strconv.Unquote(fields[1]); err == nil {
			l.file = name
		}
	}
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return l.tok(tt, lexeme, line)
}

// scanInt collects a decimal, octal or hex integer literal.
// The first digit must still be at l.peek().
func (l *Lexer) scanInt() (Token, error) {
	line := l.line
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance() // consume '0'
		l.advance() // consume 'x'
	}
	for l.pos < len(l.src) {
		r := l.peek()
		if unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
			l.advance()
		} else {
			break
		}
	}
	lexeme := string(l.src[start:l.pos])
	v, err := strconv.ParseInt(lexeme, 0, 64)
	if err != nil {
		return Token{}, l.errorf("bad integer literal %q", lexeme)
	}

	// Accept and ignore the usual suffixes.
	for l.peek() == 'l' || l.peek() == 'L' || l.peek() == 'u' || l.peek() == 'U' {
		l.advance()
	}

	t := l.tok(INTEGER, lexeme, line)
	t.Value = v
	return t, nil
}

// escape decodes the character after a backslash, which must still be at
// l.peek().
func (l *Lexer) escape() (rune, error) {
	next := l.advance()
	switch next {
	case 'a':
		return '\a', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'v':
		return '\v', nil
	case '\\', '\'', '"':
		return next, nil
	case 'x':
		var v rune
		for isHexDigit(l.peek()) {
			d, _ := strconv.ParseInt(string(l.advance()), 16, 32)
			v = v*16 + rune(d)
		}
		return v, nil
	}
	if next >= '0' && next <= '7' {
		v := next - '0'
		for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
			v = v*8 + (l.advance() - '0')
		}
		return v, nil
	}
	return 0, l.errorf("unknown escape sequence \\%c", next)
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// scanChar collects a character literal 'c'
func (l *Lexer) scanChar() (Token, error) {
	line := l.line
	l.advance() // consume opening '

	r := l.peek()
	var val rune

	if r == '\'' {
		return Token{}, l.errorf("empty character literal")
	}

	if r == '\\' {
		l.advance() // consume backslash
		var err error
		if val, err = l.escape(); err != nil {
			return Token{}, err
		}
	} else {
		val = r
		l.advance()
	}

	if l.peek() != '\'' {
		return Token{}, l.errorf("unterminated character literal")
	}
	l.advance() // consume closing '

	// Character literals are integer literals carrying their code
	t := l.tok(INTEGER, strconv.Itoa(int(val)), line)
	t.Value = int64(val)
	return t, nil
}

// scanString collects a string literal "..."
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	l.advance() // consume opening "
	var val []rune

	for l.pos < len(l.src) {
		r := l.peek()
		if r == '"' {
			break
		}
		if r == '\n' {
			return Token{}, l.errorf("unterminated string literal")
		}
		if r == '\\' {
			l.advance() // consume backslash
			c, err := l.escape()
			if err != nil {
				return Token{}, err
			}
			val = append(val, c)
			continue
		}
		val = append(val, r)
		l.advance()
	}

	if l.pos >= len(l.src) {
		return Token{}, l.errorf("unterminated string literal")
	}
	l.advance() // consume closing "

	return l.tok(STRING, string(val), line), nil
}

// nextToken skips whitespace, comments and line markers and returns the next
// Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return l.tok(EOF, "", l.line), nil
		}
		if l.peek() == '#' && l.atLineStart() {
			l.lineMarker()
			continue
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	line := l.line

	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanInt()
	}
	if ch == '"' {
		return l.scanString()
	}
	if ch == '\'' {
		return l.scanChar()
	}

	// one or two character operators
	l.advance()
	two := func(next rune, long, short TokenType) Token {
		if l.peek() == next {
			l.advance()
			return l.tok(long, long.String(), line)
		}
		return l.tok(short, short.String(), line)
	}

	switch ch {
	case '{':
		return l.tok(LBRACE, "{", line), nil
	case '}':
		return l.tok(RBRACE, "}", line), nil
	case '(':
		return l.tok(LPAREN, "(", line), nil
	case ')':
		return l.tok(RPAREN, ")", line), nil
	case '[':
		return l.tok(LBRACKET, "[", line), nil
	case ']':
		return l.tok(RBRACKET, "]", line), nil
	case '.':
		return l.tok(DOT, ".", line), nil
	case ';':
		return l.tok(SEMICOLON, ";", line), nil
	case ',':
		return l.tok(COMMA, ",", line), nil
	case ':':
		return l.tok(COLON, ":", line), nil
	case '?':
		return l.tok(QUESTION, "?", line), nil
	case '~':
		return l.tok(TILDE, "~", line), nil
	case '^':
		return l.tok(CARET, "^", line), nil

	case '+':
		if l.peek() == '+' {
			l.advance()
			return l.tok(PLUS_PLUS, "++", line), nil
		}
		return two('=', PLUS_ASSIGN, PLUS), nil
	case '-':
		switch l.peek() {
		case '-':
			l.advance()
			return l.tok(MINUS_MINUS, "--", line), nil
		case '>':
			l.advance()
			return l.tok(ARROW, "->", line), nil
		}
		return two('=', MINUS_ASSIGN, MINUS), nil
	case '*':
		return two('=', STAR_ASSIGN, STAR), nil
	case '/':
		return two('=', SLASH_ASSIGN, SLASH), nil
	case '%':
		return two('=', PERCENT_ASSIGN, PERCENT), nil
	case '&':
		return two('&', AND_LOGICAL, AND), nil
	case '|':
		return two('|', OR_LOGICAL, PIPE), nil
	case '!':
		return two('=', NOT_EQ, NOT), nil
	case '=':
		return two('=', EQUALS, ASSIGN), nil
	case '<':
		if l.peek() == '<' {
			l.advance()
			return l.tok(SHL_OP, "<<", line), nil
		}
		return two('=', LESS_EQ, LESS), nil
	case '>':
		if l.peek() == '>' {
			l.advance()
			return l.tok(SHR_OP, ">>", line), nil
		}
		return two('=', GREATER_EQ, GREATER), nil
	default:
		return Token{}, l.errorf("unrecognised character %q", ch)
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// file names the input in diagnostics until a line marker replaces it.
// It returns a non-nil error on the first illegal character or unterminated
// comment or literal.
func Lex(src, file string) ([]Token, error) {
	l := newLexer(src, file)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
