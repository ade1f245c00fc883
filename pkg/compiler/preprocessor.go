package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Macro is a #define: a simple object-like replacement, or a function-like
// macro when Params is non-nil.
type Macro struct {
	Params []string
	Body   string
}

func (m Macro) funcLike() bool { return m.Params != nil }

// Preprocessor is the in-process stand-in for cpp. It understands
// #include, #define, #undef, #ifdef, #ifndef, #else and #endif, and emits
// `# N "file"` markers so diagnostics keep pointing at the right source.
// Any other directive is passed through for the scanner to drop.
type Preprocessor struct {
	Fs          afero.Fs
	IncludeDirs []string

	defines map[string]Macro
	active  map[string]bool // files on the current include stack
}

func NewPreprocessor(fs afero.Fs, includeDirs ...string) *Preprocessor {
	return &Preprocessor{
		Fs:          fs,
		IncludeDirs: includeDirs,
		defines:     make(map[string]Macro),
		active:      make(map[string]bool),
	}
}

// Define adds an object-like macro, as -DNAME=body would.
func (pp *Preprocessor) Define(name, body string) {
	pp.defines[name] = Macro{Body: body}
}

// File reads and preprocesses path.
func (pp *Preprocessor) File(path string) (string, error) {
	src, err := afero.ReadFile(pp.Fs, path)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", path)
	}
	return pp.Source(string(src), path)
}

// Source preprocesses src as if it had been read from file.
func (pp *Preprocessor) Source(src, file string) (string, error) {
	var out strings.Builder
	if err := pp.process(&out, src, file); err != nil {
		return "", err
	}
	return out.String(), nil
}

// cond is one level of #ifdef nesting.
type cond struct {
	taking  bool // this branch's lines are kept
	parent  bool // the enclosing level is being kept
	hasElse bool
	line    int
}

func (pp *Preprocessor) process(out *strings.Builder, src, file string) error {
	if pp.active[file] {
		return errors.Errorf("%s includes itself", file)
	}
	pp.active[file] = true
	defer delete(pp.active, file)

	fmt.Fprintf(out, "# 1 %q\n", file)

	var stack []cond
	taking := func() bool { return len(stack) == 0 || stack[len(stack)-1].taking }
	fail := func(line int, msg, detail string) error {
		return &Error{Msg: msg, Detail: detail, Line: line, File: file}
	}

	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		line := lines[i]
		// Backslash-newline joins lines; keep the count with blank lines.
		joined := 0
		for strings.HasSuffix(line, "\\") && i+1 < len(lines) {
			i++
			joined++
			line = strings.TrimSuffix(line, "\\") + lines[i]
		}

		directive, rest, ok := splitDirective(line)
		if !ok {
			if taking() {
				out.WriteString(pp.expand(line, nil))
			}
			out.WriteString("\n" + strings.Repeat("\n", joined))
			continue
		}

		switch directive {
		case "ifdef", "ifndef":
			_, defined := pp.defines[firstWord(rest)]
			keep := defined == (directive == "ifdef")
			stack = append(stack, cond{taking: taking() && keep, parent: taking(), line: lineNo})
		case "else":
			if len(stack) == 0 {
				return fail(lineNo, "#else without #if", "")
			}
			top := &stack[len(stack)-1]
			if top.hasElse {
				return fail(lineNo, "#else after #else", "")
			}
			top.hasElse = true
			top.taking = top.parent && !top.taking
		case "endif":
			if len(stack) == 0 {
				return fail(lineNo, "#endif without #if", "")
			}
			stack = stack[:len(stack)-1]
		default:
			if !taking() {
				break
			}
			if err := pp.directive(out, directive, rest, file, lineNo); err != nil {
				return err
			}
			if directive == "include" {
				fmt.Fprintf(out, "# %d %q\n", lineNo+joined+1, file)
				continue
			}
			if directive != "define" && directive != "undef" {
				out.WriteString(line)
			}
		}
		out.WriteString("\n" + strings.Repeat("\n", joined))
	}

	if len(stack) > 0 {
		return fail(stack[len(stack)-1].line, "Unterminated conditional", "")
	}
	return nil
}

// directive handles the directives that act in a kept region.
func (pp *Preprocessor) directive(out *strings.Builder, name, rest, file string, line int) error {
	switch name {
	case "include":
		path, err := pp.resolve(rest, file)
		if err != nil {
			return &Error{Msg: err.Error(), Line: line, File: file}
		}
		src, err := afero.ReadFile(pp.Fs, path)
		if err != nil {
			return errors.Wrapf(err, "%s:%d: reading include", file, line)
		}
		return pp.process(out, string(src), path)
	case "define":
		return pp.define(rest, file, line)
	case "undef":
		delete(pp.defines, firstWord(rest))
	}
	return nil
}

// resolve finds the file named by an #include operand. Quoted names are
// looked up next to the including file first, then in the include
// directories; bracketed names only in the include directories.
func (pp *Preprocessor) resolve(operand, from string) (string, error) {
	operand = strings.TrimSpace(operand)
	if len(operand) < 2 {
		return "", errors.New("Bad #include")
	}

	var dirs []string
	name := operand[1 : len(operand)-1]
	switch {
	case operand[0] == '"' && operand[len(operand)-1] == '"':
		dirs = append([]string{filepath.Dir(from)}, pp.IncludeDirs...)
	case operand[0] == '<' && operand[len(operand)-1] == '>':
		dirs = pp.IncludeDirs
	default:
		return "", errors.Errorf("Bad #include:%s", operand)
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if ok, _ := afero.Exists(pp.Fs, path); ok {
			return path, nil
		}
	}
	return "", errors.Errorf("Can't find include file:%s", name)
}

// define parses `NAME body` or `NAME(a, b) body`. A '(' must follow the
// name directly for the macro to take parameters.
func (pp *Preprocessor) define(rest, file string, line int) error {
	rest = strings.TrimSpace(rest)
	end := 0
	for end < len(rest) && isIdentPart(rest[end]) {
		end++
	}
	if end == 0 || !isIdentStart(rest[0]) {
		return &Error{Msg: "Bad macro name", Detail: rest, Line: line, File: file}
	}
	name, rest := rest[:end], rest[end:]

	var m Macro
	if strings.HasPrefix(rest, "(") {
		closing := strings.IndexByte(rest, ')')
		if closing < 0 {
			return &Error{Msg: "Unterminated macro parameter list", Detail: name, Line: line, File: file}
		}
		m.Params = []string{}
		if params := strings.TrimSpace(rest[1:closing]); params != "" {
			for _, p := range strings.Split(params, ",") {
				m.Params = append(m.Params, strings.TrimSpace(p))
			}
		}
		rest = rest[closing+1:]
	}
	m.Body = strings.TrimSpace(rest)
	pp.defines[name] = m
	return nil
}

// expand replaces macro names in text outside of string and character
// literals. Names in hide are not expanded again, which stops a macro from
// recursing into itself.
func (pp *Preprocessor) expand(text string, hide map[string]bool) string {
	if len(pp.defines) == 0 {
		return text
	}

	var sb strings.Builder
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '"' || c == '\'':
			j := skipQuoted(text, i)
			sb.WriteString(text[i:j])
			i = j
		case c == '/' && strings.HasPrefix(text[i:], "//"):
			sb.WriteString(text[i:])
			i = len(text)
		case isIdentStart(c):
			j := i
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			word := text[i:j]
			m, ok := pp.defines[word]
			if !ok || hide[word] {
				sb.WriteString(word)
				i = j
				continue
			}
			if !m.funcLike() {
				sb.WriteString(pp.expand(m.Body, with(hide, word)))
				i = j
				continue
			}
			args, next, ok := macroArgs(text, j)
			if !ok || len(args) != len(m.Params) && !(len(m.Params) == 0 && len(args) == 1 && args[0] == "") {
				sb.WriteString(word)
				i = j
				continue
			}
			sb.WriteString(pp.expand(substitute(m, args), with(hide, word)))
			i = next
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// substitute replaces parameter names in the macro body with the
// corresponding arguments in a single pass.
func substitute(m Macro, args []string) string {
	params := make(map[string]string, len(m.Params))
	for k, p := range m.Params {
		params[p] = args[k]
	}

	var sb strings.Builder
	body := m.Body
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '"' || c == '\'':
			j := skipQuoted(body, i)
			sb.WriteString(body[i:j])
			i = j
		case isIdentStart(c):
			j := i
			for j < len(body) && isIdentPart(body[j]) {
				j++
			}
			if arg, ok := params[body[i:j]]; ok {
				sb.WriteString(arg)
			} else {
				sb.WriteString(body[i:j])
			}
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// macroArgs collects the parenthesised, comma separated arguments that
// start at or after text[i]. It returns the index just past ')'.
func macroArgs(text string, i int) ([]string, int, bool) {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	if i >= len(text) || text[i] != '(' {
		return nil, 0, false
	}
	i++

	var args []string
	var cur strings.Builder
	depth := 1
	for i < len(text) {
		c := text[i]
		switch {
		case c == '"' || c == '\'':
			j := skipQuoted(text, i)
			cur.WriteString(text[i:j])
			i = j
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				return args, i + 1, true
			}
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
			i++
			continue
		}
		cur.WriteByte(c)
		i++
	}
	return nil, 0, false
}

// skipQuoted returns the index just past the literal opening at text[i].
func skipQuoted(text string, i int) int {
	quote := text[i]
	for i++; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(text)
}

// splitDirective recognises a "#name rest" line.
func splitDirective(line string) (name, rest string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	trimmed = strings.TrimLeft(trimmed[1:], " \t")
	end := 0
	for end < len(trimmed) && isIdentPart(trimmed[end]) {
		end++
	}
	return trimmed[:end], trimmed[end:], true
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

func with(set map[string]bool, name string) map[string]bool {
	out := make(map[string]bool, len(set)+1)
	for k := range set {
		out[k] = true
	}
	out[name] = true
	return out
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
