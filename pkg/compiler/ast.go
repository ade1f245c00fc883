package compiler

import "fmt"

// Op names an AST operation. The binary operators share their numbering with
// the TokenType values ASSIGN..PERCENT, so Op(tok) converts one to the other.
type Op int

const (
	OpNone Op = iota
	OpAssign
	OpAsPlus
	OpAsMinus
	OpAsStar
	OpAsSlash
	OpAsMod
	OpTernary
	OpLogOr
	OpLogAnd
	OpOr
	OpXor
	OpAnd
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpLShift
	OpRShift
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpMod
	OpIntLit
	OpStrLit
	OpIdent
	OpGlue
	OpIf
	OpWhile
	OpFunction
	OpWiden
	OpReturn
	OpFuncCall
	OpDeref
	OpAddr
	OpScale
	OpPreInc
	OpPreDec
	OpPostInc
	OpPostDec
	OpNegate
	OpInvert
	OpLogNot
	OpToBool
	OpBreak
	OpContinue
	OpSwitch
	OpCase
	OpDefault
	OpCast
)

var opNames = [...]string{
	OpNone: "NONE", OpAssign: "ASSIGN", OpAsPlus: "ASPLUS", OpAsMinus: "ASMINUS",
	OpAsStar: "ASSTAR", OpAsSlash: "ASSLASH", OpAsMod: "ASMOD", OpTernary: "TERNARY",
	OpLogOr: "LOGOR", OpLogAnd: "LOGAND", OpOr: "OR", OpXor: "XOR", OpAnd: "AND",
	OpEq: "EQ", OpNe: "NE", OpLt: "LT", OpGt: "GT", OpLe: "LE", OpGe: "GE",
	OpLShift: "LSHIFT", OpRShift: "RSHIFT", OpAdd: "ADD", OpSubtract: "SUBTRACT",
	OpMultiply: "MULTIPLY", OpDivide: "DIVIDE", OpMod: "MOD", OpIntLit: "INTLIT",
	OpStrLit: "STRLIT", OpIdent: "IDENT", OpGlue: "GLUE", OpIf: "IF", OpWhile: "WHILE",
	OpFunction: "FUNCTION", OpWiden: "WIDEN", OpReturn: "RETURN", OpFuncCall: "FUNCCALL",
	OpDeref: "DEREF", OpAddr: "ADDR", OpScale: "SCALE", OpPreInc: "PREINC",
	OpPreDec: "PREDEC", OpPostInc: "POSTINC", OpPostDec: "POSTDEC", OpNegate: "NEGATE",
	OpInvert: "INVERT", OpLogNot: "LOGNOT", OpToBool: "TOBOOL", OpBreak: "BREAK",
	OpContinue: "CONTINUE", OpSwitch: "SWITCH", OpCase: "CASE", OpDefault: "DEFAULT",
	OpCast: "CAST",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// IsComparison reports whether op is one of == != < > <= >=.
func (op Op) IsComparison() bool { return op >= OpEq && op <= OpGe }

// NodeInfo is the header every node carries.
type NodeInfo struct {
	Type   Type
	Ctype  *Symbol // composite definition when Type is a struct/union (pointer)
	Rvalue bool    // the value is wanted, not the location
	Line   int
}

func (i *NodeInfo) Info() *NodeInfo { return i }

// Node is implemented by every AST node kind.
type Node interface {
	Op() Op
	Info() *NodeInfo
}

//  Expression nodes

// IntLit is a compile-time integer constant.
//
//	x = 10;
//	    ^^  IntLit{Value: 10}, typed char because it fits in a byte
type IntLit struct {
	NodeInfo
	Value int64
}

// StrLit is the address of a string emitted as data $L<Label>.
type StrLit struct {
	NodeInfo
	Label int
}

// Ident is a scalar variable reference.
type Ident struct {
	NodeInfo
	Sym *Symbol
}

// AddrOf yields an address. With Sym set it is the storage of that symbol;
// otherwise it passes through the address computed by Operand.
//
//	&x        AddrOf{Sym: x}
//	s.m       AddrOf{Sym: s} + offset, then Deref
//	a[i].m    AddrOf{Operand: a + i*size} + offset, then Deref
type AddrOf struct {
	NodeInfo
	Sym     *Symbol
	Operand Node
}

// Deref loads through an address when it is an rvalue and otherwise leaves
// the address for an enclosing assignment to store through.
type Deref struct {
	NodeInfo
	Operand Node
}

// Binary is an arithmetic, bitwise, shift or comparison operation.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type Binary struct {
	NodeInfo
	Operator Op
	Left     Node
	Right    Node
}

// Logical is a short-circuit && or ||.
type Logical struct {
	NodeInfo
	Operator Op
	Left     Node
	Right    Node
}

// Assign stores Value into Target, an Ident or a non-rvalue Deref.
type Assign struct {
	NodeInfo
	Target Node
	Value  Node
}

// CompoundAssign is Target op= Value. Info().Type is the type the operation
// is computed in, which may be wider than the target.
type CompoundAssign struct {
	NodeInfo
	Operator Op // OpAsPlus .. OpAsMod
	Target   Node
	Value    Node
}

// Widen converts Operand to the wider integer or pointer type in Info().Type.
type Widen struct {
	NodeInfo
	Operand Node
}

// Scale multiplies an integer by Size before it is added to a pointer.
type Scale struct {
	NodeInfo
	Operand Node
	Size    int
}

// Cast converts Operand to Info().Type.
type Cast struct {
	NodeInfo
	Operand Node
}

// Unary is negation, bitwise inversion or logical not.
type Unary struct {
	NodeInfo
	Operator Op
	Operand  Node
}

// ToBool turns a non-comparison condition into a branch on non-zero.
type ToBool struct {
	NodeInfo
	Operand Node
}

// IncDec is a pre/post increment or decrement. Target is an Ident, or for
// the postfix forms also a Deref lvalue such as a[i]++.
type IncDec struct {
	NodeInfo
	Operator Op // OpPreInc, OpPreDec, OpPostInc, OpPostDec
	Target   Node
}

// Ternary is Cond ? Then : Else.
type Ternary struct {
	NodeInfo
	Cond Node
	Then Node
	Else Node
}

// Call invokes Sym with Args in source order.
type Call struct {
	NodeInfo
	Sym  *Symbol
	Args []Node
}

//  Statement nodes

// Block is a sequence of statements.
type Block struct {
	NodeInfo
	Stmts []Node
}

type If struct {
	NodeInfo
	Cond Node
	Then Node
	Else Node // nil without an else branch
}

type While struct {
	NodeInfo
	Cond Node
	Body Node
}

// Switch compares Scrutinee against each case in order.
type Switch struct {
	NodeInfo
	Scrutinee Node
	Cases     []*Case
}

// Case is one arm of a switch. A nil Body falls into the next arm's code.
type Case struct {
	NodeInfo
	Default bool
	Value   int64
	Body    Node
}

type Return struct {
	NodeInfo
	Value Node // nil in a void function
}

type Break struct{ NodeInfo }

type Continue struct{ NodeInfo }

// Function is a function definition with its body.
type Function struct {
	NodeInfo
	Sym  *Symbol
	Body Node
}

func (*IntLit) Op() Op           { return OpIntLit }
func (*StrLit) Op() Op           { return OpStrLit }
func (*Ident) Op() Op            { return OpIdent }
func (*AddrOf) Op() Op           { return OpAddr }
func (*Deref) Op() Op            { return OpDeref }
func (n *Binary) Op() Op         { return n.Operator }
func (n *Logical) Op() Op        { return n.Operator }
func (*Assign) Op() Op           { return OpAssign }
func (n *CompoundAssign) Op() Op { return n.Operator }
func (*Widen) Op() Op            { return OpWiden }
func (*Scale) Op() Op            { return OpScale }
func (*Cast) Op() Op             { return OpCast }
func (n *Unary) Op() Op          { return n.Operator }
func (*ToBool) Op() Op           { return OpToBool }
func (n *IncDec) Op() Op         { return n.Operator }
func (*Ternary) Op() Op          { return OpTernary }
func (*Call) Op() Op             { return OpFuncCall }
func (*Block) Op() Op            { return OpGlue }
func (*If) Op() Op               { return OpIf }
func (*While) Op() Op            { return OpWhile }
func (*Switch) Op() Op           { return OpSwitch }
func (*Return) Op() Op           { return OpReturn }
func (*Break) Op() Op            { return OpBreak }
func (*Continue) Op() Op         { return OpContinue }
func (*Function) Op() Op         { return OpFunction }

func (n *Case) Op() Op {
	if n.Default {
		return OpDefault
	}
	return OpCase
}
