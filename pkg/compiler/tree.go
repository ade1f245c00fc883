package compiler

import (
	"fmt"
	"io"
	"strings"
)

// Constructors for the nodes the parser builds most often.

func newIntLit(v int64, t Type, line int) *IntLit {
	return &IntLit{NodeInfo: NodeInfo{Type: t, Line: line}, Value: v}
}

func newWiden(n Node, t Type) *Widen {
	return &Widen{NodeInfo: NodeInfo{Type: t, Line: n.Info().Line}, Operand: n}
}

func newScale(n Node, t Type, ctype *Symbol, size int) *Scale {
	return &Scale{NodeInfo: NodeInfo{Type: t, Ctype: ctype, Line: n.Info().Line}, Operand: n, Size: size}
}

func newDeref(n Node, t Type, ctype *Symbol) *Deref {
	return &Deref{NodeInfo: NodeInfo{Type: t, Ctype: ctype, Line: n.Info().Line}, Operand: n}
}

func newToBool(n Node) *ToBool {
	info := n.Info()
	return &ToBool{NodeInfo: NodeInfo{Type: info.Type, Ctype: info.Ctype, Line: info.Line}, Operand: n}
}

// ASTDumper prints trees in the -T format: one node per line, children
// indented two more spaces than their parent, statement sequences flattened.
type ASTDumper struct {
	w     io.Writer
	label int
}

func NewASTDumper(w io.Writer) *ASTDumper {
	return &ASTDumper{w: w, label: 1}
}

func (d *ASTDumper) nextLabel() int {
	l := d.label
	d.label++
	return l
}

// Dump writes n and everything below it.
func (d *ASTDumper) Dump(n Node) {
	d.dump(n, 0)
}

func (d *ASTDumper) line(level int, format string, args ...any) {
	fmt.Fprintf(d.w, "%s%s\n", strings.Repeat(" ", level), fmt.Sprintf(format, args...))
}

func (d *ASTDumper) dump(n Node, level int) {
	if n == nil {
		return
	}

	switch n := n.(type) {
	case *If:
		d.nextLabel() // false label
		if n.Else != nil {
			d.line(level, "IF, end L%d", d.nextLabel())
		} else {
			d.line(level, "IF")
		}
		d.dump(n.Cond, level+2)
		d.dump(n.Then, level+2)
		d.dump(n.Else, level+2)
		return
	case *While:
		d.line(level, "WHILE, start L%d", d.nextLabel())
		d.nextLabel() // end label
		d.dump(n.Cond, level+2)
		d.dump(n.Body, level+2)
		return
	case *Block:
		for _, s := range n.Stmts {
			d.dump(s, level)
		}
		return
	}

	name := n.Op().String()
	switch n := n.(type) {
	case *Function:
		d.line(level, "%s %s", name, n.Sym.Name)
		d.dump(n.Body, level+2)
	case *Call:
		d.line(level, "%s %s", name, n.Sym.Name)
		for _, a := range n.Args {
			d.dump(a, level+2)
		}
	case *AddrOf:
		if n.Sym != nil {
			d.line(level, "%s %s", name, n.Sym.Name)
		} else {
			d.line(level, "%s", name)
		}
		d.dump(n.Operand, level+2)
	case *IncDec:
		if id, ok := n.Target.(*Ident); ok {
			d.line(level, "%s %s", name, id.Sym.Name)
		} else {
			d.line(level, "%s", name)
			d.dump(n.Target, level+2)
		}
	case *IntLit:
		d.line(level, "%s %d", name, n.Value)
	case *StrLit:
		d.line(level, "%s rval label L%d", name, n.Label)
	case *Ident:
		if n.Rvalue {
			d.line(level, "%s rval %s", name, n.Sym.Name)
		} else {
			d.line(level, "%s %s", name, n.Sym.Name)
		}
	case *Deref:
		if n.Rvalue {
			d.line(level, "%s rval", name)
		} else {
			d.line(level, "%s", name)
		}
		d.dump(n.Operand, level+2)
	case *Scale:
		d.line(level, "%s %d", name, n.Size)
		d.dump(n.Operand, level+2)
	case *Cast:
		d.line(level, "%s %d", name, int(n.Type))
		d.dump(n.Operand, level+2)
	case *Widen:
		d.line(level, "%s", name)
		d.dump(n.Operand, level+2)
	case *Unary:
		d.line(level, "%s", name)
		d.dump(n.Operand, level+2)
	case *ToBool:
		d.line(level, "%s", name)
		d.dump(n.Operand, level+2)
	case *Binary:
		d.line(level, "%s", name)
		d.dump(n.Left, level+2)
		d.dump(n.Right, level+2)
	case *Logical:
		d.line(level, "%s", name)
		d.dump(n.Left, level+2)
		d.dump(n.Right, level+2)
	case *Assign:
		d.line(level, "%s", name)
		d.dump(n.Value, level+2)
		d.dump(n.Target, level+2)
	case *CompoundAssign:
		d.line(level, "%s", name)
		d.dump(n.Value, level+2)
		d.dump(n.Target, level+2)
	case *Ternary:
		d.line(level, "%s", name)
		d.dump(n.Cond, level+2)
		d.dump(n.Then, level+2)
		d.dump(n.Else, level+2)
	case *Switch:
		d.line(level, "%s", name)
		d.dump(n.Scrutinee, level+2)
		for _, c := range n.Cases {
			d.dump(c, level+2)
		}
	case *Case:
		if n.Default {
			d.line(level, "%s", name)
		} else {
			d.line(level, "%s %d", name, n.Value)
		}
		d.dump(n.Body, level+2)
	case *Return:
		d.line(level, "%s", name)
		d.dump(n.Value, level+2)
	default:
		d.line(level, "%s", name)
	}
}
