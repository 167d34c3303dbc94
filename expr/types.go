// Package expr is the expression tree the query builder compiles to EdgeQL.
//
// Go has no reflectable lambdas, so callers build trees with the
// combinators in this package instead:
//
//	qb.Filter(func(p *expr.Param) expr.Expr {
//		return expr.Gt(p.Field("Age"), expr.Val(18))
//	})
//
// Expr is a sealed interface. Only types in this package implement it, so
// the compiler's type switch is exhaustive.
//
// Node types:
//   - Param: the statement's implicit subject (the lambda parameter)
//   - Member: field access on a Param, Member, Captured or variable call
//   - Constant: a literal rendered inline
//   - Captured: a host value bound as a query argument
//   - Binary / Unary: operators, including casts
//   - Call: method-shaped operators and EdgeQL functions
//   - MemberInit: an object literal (name := value, ...)
//   - NewArray: an array literal or a spliced variadic argument list
//   - Lambda: a nested selector, used by Select and OrderBy calls
//   - SubQuery: an embedded query builder
package expr

import (
	"reflect"

	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/schema"
)

// Char is a single character; see schema.Char.
type Char = schema.Char

// Expr is a node of the expression tree.
type Expr interface {
	// Type is the Go type the node evaluates to.
	Type() reflect.Type
	exprNode()
}

// Selector builds an expression over the statement subject.
type Selector func(p *Param) Expr

// Param is the subject of a selector.
//
// Member chains rooted at a Param compile to relative paths (.name). A
// Param with Bound set is a named query variable and compiles to
// name.path instead.
type Param struct {
	Name  string
	Bound bool
	typ   reflect.Type
}

// NewParam creates the subject parameter for type t.
func NewParam(name string, t reflect.Type) *Param {
	return &Param{Name: name, typ: t}
}

// ParamOf creates the subject parameter for T.
func ParamOf[T any](name string) *Param {
	return NewParam(name, reflect.TypeFor[T]())
}

func (p *Param) Type() reflect.Type { return p.typ }
func (*Param) exprNode()            {}

// Member accesses a field on Inner.
//
// Name is the Go field name; Prop is the EdgeDB property name. Reserved
// members (Len) carry no struct field and are resolved through the
// operator registry.
type Member struct {
	Inner    Expr
	Name     string
	Prop     string
	Reserved bool
	// Err records a failed field lookup; the compiler reports it.
	Err error
	typ reflect.Type
}

func (m *Member) Type() reflect.Type { return m.typ }
func (*Member) exprNode()            {}

// Constant is a literal rendered inline.
type Constant struct {
	Value any
	typ   reflect.Type
}

func (c *Constant) Type() reflect.Type { return c.typ }
func (*Constant) exprNode()            {}

// Captured is a host value. On its own it binds as a query argument; a
// Member on a captured entity compiles to a same-row self reference.
type Captured struct {
	Value any
	typ   reflect.Type
}

func (c *Captured) Type() reflect.Type { return c.typ }
func (*Captured) exprNode()            {}

// BinaryOp is the kind of a binary node.
type BinaryOp int

const (
	OpEq BinaryOp = iota + 1
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpCoalesce
	OpConcat
	OpIn
	OpNotIn
	OpLike
	OpILike
	OpCoalesceEq
	OpCoalesceNeq
)

var binaryNames = map[BinaryOp]string{
	OpEq: "Eq", OpNeq: "Neq", OpLt: "Lt", OpLe: "Le", OpGt: "Gt", OpGe: "Ge",
	OpAnd: "And", OpOr: "Or", OpAdd: "Add", OpSub: "Sub", OpMul: "Mul",
	OpDiv: "Div", OpMod: "Mod", OpPow: "Pow", OpCoalesce: "Coalesce",
	OpConcat: "Concat", OpIn: "In", OpNotIn: "NotIn", OpLike: "Like",
	OpILike: "ILike", OpCoalesceEq: "CoalesceEq", OpCoalesceNeq: "CoalesceNeq",
}

func (op BinaryOp) String() string {
	if s, ok := binaryNames[op]; ok {
		return s
	}
	return "BinaryOp(?)"
}

// IsComparison reports whether op yields a bool.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr, OpIn, OpNotIn,
		OpLike, OpILike, OpCoalesceEq, OpCoalesceNeq:
		return true
	}
	return false
}

// Binary applies an infix operator.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	typ   reflect.Type
}

func (b *Binary) Type() reflect.Type { return b.typ }
func (*Binary) exprNode()            {}

// UnaryOp is the kind of a unary node.
type UnaryOp int

const (
	OpConvert UnaryOp = iota + 1
	OpNot
	OpNegate
)

func (op UnaryOp) String() string {
	switch op {
	case OpConvert:
		return "Convert"
	case OpNot:
		return "Not"
	case OpNegate:
		return "Negate"
	}
	return "UnaryOp(?)"
}

// Unary applies a prefix operator. For OpConvert the node's type is the
// cast target.
type Unary struct {
	Op      UnaryOp
	Operand Expr
	typ     reflect.Type
}

func (u *Unary) Type() reflect.Type { return u.typ }
func (*Unary) exprNode()            {}

// Call is a method-shaped operator or an EdgeQL function.
//
// Declaring and Method form the registry key "{Declaring}.{Method}".
// Object is the instance for method calls and nil for functions. When
// Variadic is set the last argument is a NewArray spliced inline.
// TypeArgs are substituted at the positions declared by the function.
type Call struct {
	Declaring string
	Method    string
	Object    Expr
	Args      []Expr
	TypeArgs  []reflect.Type
	Variadic  bool
	typ       reflect.Type
}

// Key is the registry key of the call.
func (c *Call) Key() string { return c.Declaring + "." + c.Method }

func (c *Call) Type() reflect.Type { return c.typ }
func (*Call) exprNode()            {}

// Binding is one name := value pair of an object literal.
type Binding struct {
	// Field is the Go field name on the literal's type.
	Field string
	Value Expr
}

// MemberInit is an object literal.
type MemberInit struct {
	Bindings []Binding
	typ      reflect.Type
}

func (m *MemberInit) Type() reflect.Type { return m.typ }
func (*MemberInit) exprNode()            {}

// NewArray is an array literal.
type NewArray struct {
	Elems []Expr
	typ   reflect.Type
}

func (a *NewArray) Type() reflect.Type { return a.typ }
func (*NewArray) exprNode()            {}

// Lambda is a nested selector.
type Lambda struct {
	Param *Param
	Body  Expr
}

func (l *Lambda) Type() reflect.Type { return l.Body.Type() }
func (*Lambda) exprNode()            {}

// SubQuery embeds a query builder. Single marks a binding site that
// expects one value, which limits the embedded select to one row.
type SubQuery struct {
	Builder qctx.Buildable
	Single  bool
}

func (s *SubQuery) Type() reflect.Type { return s.Builder.ElementType() }
func (*SubQuery) exprNode()            {}
