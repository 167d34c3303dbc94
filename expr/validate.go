package expr

import (
	"errors"
	"fmt"

	"github.com/roach88/eqb/qerr"
)

// Validate walks e and reports structural problems the combinators could
// not reject when the tree was built: unknown fields, missing operands and
// lambdas used as values. Every problem found is joined into the result.
//
// Validate is a pure function with no side effects.
func Validate(e Expr) error {
	v := &validator{}
	v.walk(e, false)
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) fail(subject, format string, args ...any) {
	v.errs = append(v.errs, qerr.New(qerr.CodeUnhandledExpression, subject, format, args...))
}

// walk visits e. inCall is set for direct call arguments, the only place a
// Lambda may appear.
func (v *validator) walk(e Expr, inCall bool) {
	if e == nil {
		v.fail("<nil>", "missing operand")
		return
	}

	switch n := e.(type) {
	case *Param, *Constant, *Captured:
	case *Member:
		if n.Err != nil {
			v.errs = append(v.errs, n.Err)
		}
		v.walk(n.Inner, false)
	case *Binary:
		v.walk(n.Left, false)
		v.walk(n.Right, false)
	case *Unary:
		if n.Type() == nil {
			v.fail(n.Op.String(), "unary node without a result type")
		}
		v.walk(n.Operand, false)
	case *Call:
		if n.Method == "" {
			v.fail(n.Declaring, "call without a method name")
		}
		if n.Object != nil {
			v.walk(n.Object, false)
		}
		for _, a := range n.Args {
			v.walk(a, true)
		}
	case *MemberInit:
		for _, b := range n.Bindings {
			if b.Field == "" {
				v.fail(fmt.Sprint(n.Type()), "binding without a field name")
			}
			v.walk(b.Value, false)
		}
	case *NewArray:
		for _, el := range n.Elems {
			v.walk(el, false)
		}
	case *Lambda:
		if !inCall {
			v.fail("lambda", "lambda used outside a call argument")
		}
		v.walk(n.Body, false)
	case *SubQuery:
		if n.Builder == nil {
			v.fail("subquery", "sub-query without a builder")
		}
	default:
		v.fail(fmt.Sprintf("%T", e), "unknown expression node")
	}
}
