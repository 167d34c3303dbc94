// Package compiler converts expression trees into EdgeQL fragments.
//
// Convert is a type switch over the sealed expr.Expr variants. Each case
// returns the fragment and the arguments it bound; arguments from nested
// nodes are merged upward so nothing a child binds is dropped.
package compiler

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/operators"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// exprContext is the per-node conversion state.
type exprContext struct {
	param  *expr.Param
	node   expr.Expr
	parent *exprContext
	// index is the argument position in the enclosing call, or -1.
	index int
	// char is shared by the two operands of one binary node.
	char *bool
	// setOperand renders `:=` for the binding this node is the value of.
	setOperand bool
	// single marks a binding site that expects one value.
	single bool
	qc     *qctx.Context
}

// Convert compiles e with param as the statement subject.
func Convert(e expr.Expr, param *expr.Param, ctx *qctx.Context) (string, qctx.Args, error) {
	c := &exprContext{param: param, node: e, index: -1, char: new(bool), setOperand: true, qc: ctx}
	return c.convert(e)
}

func (c *exprContext) child(e expr.Expr) *exprContext {
	return &exprContext{
		param:      c.param,
		node:       e,
		parent:     c,
		index:      -1,
		char:       c.char,
		setOperand: true,
		qc:         c.qc,
	}
}

func (c *exprContext) convert(e expr.Expr) (string, qctx.Args, error) {
	switch n := e.(type) {
	case *expr.MemberInit:
		return c.convertInit(n)
	case *expr.Binary:
		return c.convertBinary(n)
	case *expr.Unary:
		return c.convertUnary(n)
	case *expr.Call:
		return c.convertCall(n)
	case *expr.Member:
		return c.convertMember(n)
	case *expr.Constant:
		s, err := c.literal(reflect.ValueOf(n.Value))
		return s, nil, err
	case *expr.Captured:
		return c.convertCaptured(n)
	case *expr.NewArray:
		return c.convertArray(n)
	case *expr.SubQuery:
		return c.convertSubQuery(n)
	case *expr.Param:
		if n.Bound {
			c.qc.AddTrackedVariable(n.Name)
			return n.Name, nil, nil
		}
		return "", nil, qerr.New(qerr.CodeUnhandledExpression, n.Name, "bare statement subject has no value")
	case *expr.Lambda:
		return "", nil, qerr.New(qerr.CodeUnhandledExpression, "lambda", "lambda is only valid in a shape or ordering")
	case nil:
		return "", nil, qerr.New(qerr.CodeUnhandledExpression, "<nil>", "missing expression")
	default:
		return "", nil, qerr.New(qerr.CodeUnhandledExpression, fmt.Sprintf("%T", e), "no conversion for node")
	}
}

func (c *exprContext) convertInit(n *expr.MemberInit) (string, qctx.Args, error) {
	parts := make([]string, 0, len(n.Bindings))
	var all []qctx.Args
	for _, b := range n.Bindings {
		f, ok := schema.FieldByGoName(n.Type(), b.Field)
		if !ok {
			return "", nil, qerr.New(qerr.CodeUnknownField, b.Field, "no such field on %s", n.Type())
		}
		sub := c.child(b.Value)
		sub.single = schema.Indirect(f.Type).Kind() != reflect.Slice
		value, args, err := sub.convert(b.Value)
		if err != nil {
			return "", nil, fmt.Errorf("binding %s: %w", f.Name, err)
		}
		if sub.setOperand {
			parts = append(parts, f.Name+" := "+value)
		} else {
			parts = append(parts, f.Name+" "+value)
		}
		all = append(all, args)
	}
	args, err := qctx.Merge(all...)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(parts, ", "), args, nil
}

func (c *exprContext) convertBinary(n *expr.Binary) (string, qctx.Args, error) {
	op, ok := operators.Resolve(n.Op)
	if !ok {
		return "", nil, qerr.New(qerr.CodeOperatorNotFound, n.Op.String(), "no binary operator registered")
	}

	shared := new(bool)
	left := c.child(n.Left)
	left.char = shared
	right := c.child(n.Right)
	right.char = shared

	l, largs, err := left.convert(n.Left)
	if err != nil {
		return "", nil, err
	}
	r, rargs, err := right.convert(n.Right)
	if err != nil {
		return "", nil, err
	}
	*shared = false

	text, err := op.Build(l, r)
	if err != nil {
		return "", nil, err
	}
	args, err := qctx.Merge(largs, rargs)
	if err != nil {
		return "", nil, err
	}
	return "(" + text + ")", args, nil
}

func (c *exprContext) convertUnary(n *expr.Unary) (string, qctx.Args, error) {
	if n.Op == expr.OpConvert {
		return c.convertCast(n)
	}
	op, ok := operators.ResolveUnary(n.Op)
	if !ok {
		return "", nil, qerr.New(qerr.CodeOperatorNotFound, n.Op.String(), "no unary operator registered")
	}
	inner, args, err := c.child(n.Operand).convert(n.Operand)
	if err != nil {
		return "", nil, err
	}
	text, err := op.Build(inner)
	if err != nil {
		return "", nil, err
	}
	return text, args, nil
}

func (c *exprContext) convertCast(n *expr.Unary) (string, qctx.Args, error) {
	var tag string
	if n.Operand != nil && n.Operand.Type() == schema.CharType() {
		*c.char = true
		tag = "str"
	} else {
		t, ok := schema.ScalarTag(n.Type())
		if !ok {
			return "", nil, qerr.New(qerr.CodeUnmappedScalar, typeString(n.Type()), "cannot cast")
		}
		tag = t
	}

	inner, args, err := c.child(n.Operand).convert(n.Operand)
	if err != nil {
		return "", nil, err
	}
	return "<" + tag + ">" + inner, args, nil
}

func (c *exprContext) convertCall(n *expr.Call) (string, qctx.Args, error) {
	key := n.Key()
	text, args, err := c.buildCall(n, key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to convert %s: %w", key, err)
	}
	return text, args, nil
}

func (c *exprContext) buildCall(n *expr.Call, key string) (string, qctx.Args, error) {
	switch key {
	case expr.DeclSlice + ".OrderBy":
		return c.convertOrderBy(n)
	case expr.DeclSlice + ".Select":
		return "", nil, qerr.New(qerr.CodeMalformedShape, key, "Select is only valid in a shape")
	}

	op, err := operators.LookupMethod(key)
	if err != nil {
		return "", nil, err
	}

	qc := c.qc
	if op.TracksVariable {
		qc = qc.Enter(func(q *qctx.Context) { q.IsVariable = true })
	}

	var fragments []string
	var all []qctx.Args
	convertArg := func(i int, e expr.Expr) error {
		sub := c.child(e)
		sub.index = i
		sub.qc = qc
		s, a, err := sub.convert(e)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		fragments = append(fragments, s)
		all = append(all, a)
		return nil
	}

	if n.Object != nil {
		if err := convertArg(0, n.Object); err != nil {
			return "", nil, err
		}
	}
	for i, a := range n.Args {
		if arr, ok := a.(*expr.NewArray); ok && n.Variadic && i == len(n.Args)-1 {
			for _, el := range arr.Elems {
				if err := convertArg(len(fragments), el); err != nil {
					return "", nil, err
				}
			}
			continue
		}
		if err := convertArg(len(fragments), a); err != nil {
			return "", nil, err
		}
	}

	fragments, err = insertTypeParams(fragments, op.TypeParams, n.TypeArgs)
	if err != nil {
		return "", nil, err
	}
	if want := op.Arity(); len(fragments) < want {
		return "", nil, qerr.New(qerr.CodeMalformedShape, key, "takes %d arguments, got %d", want, len(fragments))
	}

	text, err := op.Build(fragments...)
	if err != nil {
		return "", nil, err
	}
	if op.SuppressSetOperand {
		c.setOperand = false
	}
	if op.TracksVariable {
		c.qc.AddTrackedVariable(text)
	}

	args, err := qctx.Merge(all...)
	if err != nil {
		return "", nil, err
	}
	return text, args, nil
}

// insertTypeParams splices type names into the argument list at the
// positions an operator declares, lowest position first.
func insertTypeParams(fragments []string, params map[int]int, typeArgs []reflect.Type) ([]string, error) {
	if len(params) == 0 {
		return fragments, nil
	}
	positions := make([]int, 0, len(params))
	for pos := range params {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	out := append([]string(nil), fragments...)
	for _, pos := range positions {
		idx := params[pos]
		if idx >= len(typeArgs) {
			return nil, qerr.New(qerr.CodeOperatorNotFound, fmt.Sprintf("type argument %d", idx), "missing generic type argument")
		}
		name := TypeLiteral(typeArgs[idx])
		if pos > len(out) {
			pos = len(out)
		}
		out = append(out[:pos], append([]string{name}, out[pos:]...)...)
	}
	return out, nil
}

// TypeLiteral is the EdgeQL spelling of a Go type: its scalar tag, else its
// object type name.
func TypeLiteral(t reflect.Type) string {
	if schema.IsEntity(t) {
		return schema.TypeName(t)
	}
	if tag, ok := schema.ScalarTag(t); ok {
		return tag
	}
	return schema.TypeName(t)
}

// convertOrderBy renders an ordered sub-select over the call's instance.
func (c *exprContext) convertOrderBy(n *expr.Call) (string, qctx.Args, error) {
	if len(n.Args) != 1 {
		return "", nil, qerr.New(qerr.CodeMalformedShape, n.Key(), "expected one ordering lambda")
	}
	lambda, ok := n.Args[0].(*expr.Lambda)
	if !ok {
		return "", nil, qerr.New(qerr.CodeMalformedShape, n.Key(), "ordering key must be a lambda")
	}

	set, setArgs, err := c.child(n.Object).convert(n.Object)
	if err != nil {
		return "", nil, err
	}
	body := c.child(lambda.Body)
	body.param = lambda.Param
	key, keyArgs, err := body.convert(lambda.Body)
	if err != nil {
		return "", nil, err
	}

	args, err := qctx.Merge(setArgs, keyArgs)
	if err != nil {
		return "", nil, err
	}
	return "(select " + set + " order by " + key + ")", args, nil
}

func (c *exprContext) convertArray(n *expr.NewArray) (string, qctx.Args, error) {
	parts := make([]string, 0, len(n.Elems))
	var all []qctx.Args
	for i, el := range n.Elems {
		sub := c.child(el)
		sub.index = i
		s, a, err := sub.convert(el)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		all = append(all, a)
	}
	args, err := qctx.Merge(all...)
	if err != nil {
		return "", nil, err
	}
	return "[" + strings.Join(parts, ", ") + "]", args, nil
}

func (c *exprContext) convertSubQuery(n *expr.SubQuery) (string, qctx.Args, error) {
	if n.Builder == nil {
		return "", nil, qerr.New(qerr.CodeUnhandledExpression, "subquery", "sub-query without a builder")
	}
	single := n.Single || c.single
	sub := c.qc.Enter(func(q *qctx.Context) { q.LimitToOne = single })
	text, args, err := n.Builder.BuildSub(sub)
	if err != nil {
		return "", nil, fmt.Errorf("sub-query: %w", err)
	}
	c.qc.AddTrackedSubQuery(n.Builder)
	return "(" + text + ")", args, nil
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
