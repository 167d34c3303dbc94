package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/operators"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// memberChain unwinds nested member accesses. The chain is ordered from the
// member nearest the root outward.
func memberChain(m *expr.Member) ([]*expr.Member, expr.Expr) {
	var chain []*expr.Member
	var cur expr.Expr = m
	for {
		mm, ok := cur.(*expr.Member)
		if !ok {
			break
		}
		chain = append(chain, mm)
		cur = mm.Inner
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, cur
}

func propPath(chain []*expr.Member) string {
	props := make([]string, len(chain))
	for i, m := range chain {
		if m.Err != nil {
			return ""
		}
		props[i] = m.Prop
	}
	return strings.Join(props, ".")
}

func (c *exprContext) convertMember(n *expr.Member) (string, qctx.Args, error) {
	if n.Err != nil {
		return "", nil, n.Err
	}
	if n.Reserved {
		return c.convertReserved(n)
	}

	chain, root := memberChain(n)
	for _, m := range chain {
		if m.Err != nil {
			return "", nil, m.Err
		}
	}

	switch r := root.(type) {
	case *expr.Captured:
		if schema.IsEntity(r.Type()) {
			return "." + propPath(chain), nil, nil
		}
		v, err := capturedField(reflect.ValueOf(r.Value), chain)
		if err != nil {
			return "", nil, err
		}
		return c.bind(v, n.Type())

	case *expr.Param:
		path := propPath(chain)
		var text string
		if r.Bound {
			c.qc.AddTrackedVariable(r.Name)
			text = r.Name + "." + path
		} else {
			text = "." + path
		}
		if target, ok := schema.LinkTarget(n.Type()); ok && c.qc.ExplicitShapeDefinition {
			text += " { " + strings.Join(schema.ShapeOf(target, c.qc.MaxAggregationDepth), ", ") + " }"
		}
		return text, nil, nil

	case *expr.Call:
		if r.Key() != expr.DeclEdgeQL+".Var" {
			break
		}
		name, args, err := c.child(r).convert(r)
		if err != nil {
			return "", nil, err
		}
		text := name + "." + propPath(chain)
		c.qc.AddTrackedVariable(text)
		return text, args, nil
	}

	return "", nil, qerr.New(qerr.CodeUnhandledExpression, fmt.Sprintf("%T.%s", root, n.Name),
		"member access on unsupported expression")
}

// convertReserved renders a reserved member such as Len through the
// registry, with the stripped inner path as its argument.
func (c *exprContext) convertReserved(n *expr.Member) (string, qctx.Args, error) {
	var t reflect.Type
	if n.Inner != nil {
		t = n.Inner.Type()
	}
	key := expr.Declaring(t) + "." + n.Name
	op, ok := operators.ResolveMethod(key)
	if !ok {
		return "", nil, qerr.New(qerr.CodeOperatorNotFound, key, "no reserved property operator")
	}
	inner, args, err := c.child(n.Inner).convert(n.Inner)
	if err != nil {
		return "", nil, fmt.Errorf("failed to convert %s: %w", key, err)
	}
	text, err := op.Build(inner)
	if err != nil {
		return "", nil, fmt.Errorf("failed to convert %s: %w", key, err)
	}
	return text, args, nil
}

// capturedField follows a member chain through a captured host value.
func capturedField(v reflect.Value, chain []*expr.Member) (reflect.Value, error) {
	for _, m := range chain {
		for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
			if v.IsNil() {
				return reflect.Value{}, nil
			}
			v = v.Elem()
		}
		if !v.IsValid() {
			return v, nil
		}
		f, ok := schema.FieldByGoName(v.Type(), m.Name)
		if !ok {
			return reflect.Value{}, qerr.New(qerr.CodeUnknownField, v.Type().String()+"."+m.Name, "no such field")
		}
		v = v.FieldByIndex(f.Index)
	}
	return v, nil
}
