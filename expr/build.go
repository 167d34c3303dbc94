package expr

import (
	"reflect"

	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

var (
	boolType   = reflect.TypeFor[bool]()
	intType    = reflect.TypeFor[int]()
	stringType = reflect.TypeFor[string]()
	anyType    = reflect.TypeFor[any]()
)

// Declaring type names used in registry keys for method-shaped operators.
const (
	DeclString = "string"
	DeclSlice  = "slice"
	DeclEdgeQL = "EdgeQL"
)

// LengthMember is the reserved member name for string and slice lengths.
const LengthMember = "Length"

// Field accesses the Go field name on inner. An unknown field is recorded
// on the returned Member and reported when the tree is compiled.
func Field(inner Expr, name string) *Member {
	m := &Member{Inner: inner, Name: name, Prop: name}
	if inner == nil || inner.Type() == nil {
		m.Err = qerr.New(qerr.CodeUnknownField, name, "field access on untyped expression")
		return m
	}
	owner := schema.Indirect(inner.Type())
	f, ok := schema.FieldByGoName(owner, name)
	if !ok {
		m.Err = qerr.New(qerr.CodeUnknownField, owner.String()+"."+name, "no such field")
		m.typ = anyType
		return m
	}
	m.Prop = f.Name
	m.typ = f.Type
	return m
}

// Field accesses a field of the parameter.
func (p *Param) Field(name string) *Member { return Field(p, name) }

// Field accesses a field of the member's value.
func (m *Member) Field(name string) *Member { return Field(m, name) }

// Field accesses a field of a captured value.
func (c *Captured) Field(name string) *Member { return Field(c, name) }

// Field accesses a field of a call result, such as a variable reference.
func (c *Call) Field(name string) *Member { return Field(c, name) }

// Select projects each element of a to-many member. Shapes render it as a
// nested block over the element type.
func (m *Member) Select(fn Selector) *Call {
	elem := schema.Indirect(m.Type())
	if elem.Kind() == reflect.Slice {
		elem = schema.Indirect(elem.Elem())
	}
	p := NewParam("x", elem)
	return &Call{
		Declaring: DeclSlice,
		Method:    "Select",
		Object:    m,
		Args:      []Expr{&Lambda{Param: p, Body: fn(p)}},
		typ:       m.Type(),
	}
}

// OrderBy orders a set-valued expression by a key over its elements.
func OrderBy(set Expr, fn Selector) *Call {
	elem := schema.Indirect(set.Type())
	if elem.Kind() == reflect.Slice {
		elem = schema.Indirect(elem.Elem())
	}
	p := NewParam("x", elem)
	return &Call{
		Declaring: DeclSlice,
		Method:    "OrderBy",
		Object:    set,
		Args:      []Expr{&Lambda{Param: p, Body: fn(p)}},
		typ:       set.Type(),
	}
}

// Lit is a constant rendered inline.
func Lit(v any) *Constant {
	return &Constant{Value: v, typ: typeOf(v)}
}

// Val is a host value bound as a query argument.
func Val(v any) *Captured {
	return &Captured{Value: v, typ: typeOf(v)}
}

func typeOf(v any) reflect.Type {
	if v == nil {
		return anyType
	}
	return reflect.TypeOf(v)
}

func binary(op BinaryOp, l, r Expr) *Binary {
	var t reflect.Type
	switch {
	case op.IsComparison():
		t = boolType
	case l != nil:
		t = l.Type()
	default:
		t = anyType
	}
	return &Binary{Op: op, Left: l, Right: r, typ: t}
}

// Bin applies op to l and r.
func Bin(op BinaryOp, l, r Expr) *Binary { return binary(op, l, r) }

func Eq(l, r Expr) *Binary  { return binary(OpEq, l, r) }
func Neq(l, r Expr) *Binary { return binary(OpNeq, l, r) }
func Lt(l, r Expr) *Binary  { return binary(OpLt, l, r) }
func Le(l, r Expr) *Binary  { return binary(OpLe, l, r) }
func Gt(l, r Expr) *Binary  { return binary(OpGt, l, r) }
func Ge(l, r Expr) *Binary  { return binary(OpGe, l, r) }
func Add(l, r Expr) *Binary { return binary(OpAdd, l, r) }
func Sub(l, r Expr) *Binary { return binary(OpSub, l, r) }
func Mul(l, r Expr) *Binary { return binary(OpMul, l, r) }
func Div(l, r Expr) *Binary { return binary(OpDiv, l, r) }
func Mod(l, r Expr) *Binary { return binary(OpMod, l, r) }
func Pow(l, r Expr) *Binary { return binary(OpPow, l, r) }

// Coalesce is l ?? r.
func Coalesce(l, r Expr) *Binary { return binary(OpCoalesce, l, r) }

// Concat is l ++ r.
func Concat(l, r Expr) *Binary { return binary(OpConcat, l, r) }

func In(l, r Expr) *Binary    { return binary(OpIn, l, r) }
func NotIn(l, r Expr) *Binary { return binary(OpNotIn, l, r) }
func Like(l, r Expr) *Binary  { return binary(OpLike, l, r) }
func ILike(l, r Expr) *Binary { return binary(OpILike, l, r) }

// And folds its operands left to right. A single operand is returned as is.
func And(first Expr, rest ...Expr) Expr { return fold(OpAnd, first, rest) }

// Or folds its operands left to right.
func Or(first Expr, rest ...Expr) Expr { return fold(OpOr, first, rest) }

func fold(op BinaryOp, first Expr, rest []Expr) Expr {
	acc := first
	for _, e := range rest {
		acc = binary(op, acc, e)
	}
	return acc
}

// Not negates a boolean expression.
func Not(e Expr) *Unary { return &Unary{Op: OpNot, Operand: e, typ: boolType} }

// Neg negates a number.
func Neg(e Expr) *Unary { return &Unary{Op: OpNegate, Operand: e, typ: e.Type()} }

// Cast converts e to T.
func Cast[T any](e Expr) *Unary { return CastTo(e, reflect.TypeFor[T]()) }

// CastTo converts e to t.
func CastTo(e Expr, t reflect.Type) *Unary {
	return &Unary{Op: OpConvert, Operand: e, typ: t}
}

// Len is the length of a string or slice.
func Len(e Expr) *Member {
	return &Member{Inner: e, Name: LengthMember, Prop: LengthMember, Reserved: true, typ: intType}
}

// Declaring returns the registry declaring name for values of type t.
func Declaring(t reflect.Type) string {
	if t == nil {
		return ""
	}
	t = schema.Indirect(t)
	switch t.Kind() {
	case reflect.String:
		return DeclString
	case reflect.Slice, reflect.Array:
		return DeclSlice
	}
	return t.String()
}

// Index selects one element of a string or slice.
func Index(e, i Expr) *Call {
	t := reflect.Type(schema.CharType())
	if d := Declaring(e.Type()); d == DeclSlice {
		t = schema.Indirect(e.Type()).Elem()
	}
	return method(e, "Index", t, i)
}

// Slice selects e[start:end]. A nil end slices to the end.
func Slice(e, start, end Expr) *Call {
	if end == nil {
		return method(e, "Slice", e.Type(), start)
	}
	return method(e, "Slice", e.Type(), start, end)
}

// Contains tests membership in a slice or substring containment.
func Contains(e, v Expr) *Call { return method(e, "Contains", boolType, v) }

// IndexOf finds v in a slice or string.
func IndexOf(e, v Expr) *Call { return method(e, "IndexOf", intType, v) }

// ToLower lowercases a string.
func ToLower(e Expr) *Call { return method(e, "ToLower", stringType) }

// ToUpper uppercases a string.
func ToUpper(e Expr) *Call { return method(e, "ToUpper", stringType) }

func method(obj Expr, name string, ret reflect.Type, args ...Expr) *Call {
	return &Call{Declaring: Declaring(obj.Type()), Method: name, Object: obj, Args: args, typ: ret}
}

// NewCall creates a call node. The edgeql package uses it for the function
// façade.
func NewCall(declaring, method string, ret reflect.Type, object Expr, args ...Expr) *Call {
	if ret == nil {
		ret = anyType
	}
	return &Call{Declaring: declaring, Method: method, Object: object, Args: args, typ: ret}
}

// WithTypeArgs sets the generic type arguments of a function call.
func (c *Call) WithTypeArgs(ts ...reflect.Type) *Call {
	c.TypeArgs = ts
	return c
}

// Spread marks the last argument as a variadic list.
func (c *Call) Spread() *Call {
	c.Variadic = true
	return c
}

// Array is an array literal. The element type is taken from the first
// element.
func Array(elems ...Expr) *NewArray {
	t := reflect.SliceOf(anyType)
	if len(elems) > 0 && elems[0] != nil && elems[0].Type() != nil {
		t = reflect.SliceOf(elems[0].Type())
	}
	return &NewArray{Elems: elems, typ: t}
}

// Set binds a Go field of an object literal.
func Set(field string, value Expr) Binding {
	return Binding{Field: field, Value: value}
}

// Init is an object literal of type T.
func Init[T any](bindings ...Binding) *MemberInit {
	return InitOf(reflect.TypeFor[T](), bindings...)
}

// InitOf is an object literal of type t.
func InitOf(t reflect.Type, bindings ...Binding) *MemberInit {
	return &MemberInit{Bindings: bindings, typ: t}
}

// Embed embeds a query builder as a set-valued expression.
func Embed(b qctx.Buildable) *SubQuery { return &SubQuery{Builder: b} }

// EmbedSingle embeds a query builder where one value is expected.
func EmbedSingle(b qctx.Buildable) *SubQuery { return &SubQuery{Builder: b, Single: true} }
