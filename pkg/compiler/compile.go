package compiler

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Options select the listings a compilation writes besides the IR.
type Options struct {
	ASTDump    io.Writer // -T: each function's tree, nil to disable
	SymbolDump io.Writer // -M: the symbol tables after the file, nil to disable
}

// Session is the state of compiling one source file: its symbol tables,
// its IR generator and the listing options. Nothing is shared between
// sessions.
type Session struct {
	File string
	Syms *SymbolTable
	Gen  *Generator
	Opts Options
}

func NewSession(file string, opts Options) *Session {
	return &Session{
		File: file,
		Syms: NewSymbolTable(),
		Gen:  NewGenerator(),
		Opts: opts,
	}
}

// Compile translates the preprocessed source src and writes the QBE IR to
// out. Nothing is written to out when compilation fails. Diagnostics are
// *Error values naming the file and line.
func (s *Session) Compile(src string, out io.Writer) error {
	tokens, err := Lex(src, s.File)
	if err != nil {
		return err
	}
	glog.V(3).Infof("%s: %d tokens", s.File, len(tokens))

	if err := NewParser(s, tokens).ParseFile(); err != nil {
		return err
	}

	if w := s.Opts.SymbolDump; w != nil {
		fmt.Fprintf(w, "Symbols for %s\n", s.File)
		s.Syms.Dump(w)
		fmt.Fprint(w, "\n\n")
	}
	glog.V(3).Infof("%s: purging statics", s.File)
	s.Syms.PurgeStatics()

	if _, err := io.WriteString(out, s.Gen.String()); err != nil {
		return errors.Wrapf(err, "writing IR for %s", s.File)
	}
	return nil
}

// Compile is a convenience wrapper that compiles src in a fresh session.
func Compile(src, file string, out io.Writer, opts Options) error {
	return NewSession(file, opts).Compile(src, out)
}
