package compiler

import "fmt"

// Error is a fatal compilation diagnostic. The first one raised aborts the
// compilation of the whole input file.
type Error struct {
	Msg    string
	Detail string // offending token or value, optional
	Line   int
	File   string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s:%s on line %d of %s", e.Msg, e.Detail, e.Line, e.File)
	}
	return fmt.Sprintf("%s on line %d of %s", e.Msg, e.Line, e.File)
}
