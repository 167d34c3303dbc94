package shape

import (
	"fmt"
	"reflect"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/compiler"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

var (
	boolType      = reflect.TypeOf(false)
	buildableType = reflect.TypeOf((*qctx.Buildable)(nil)).Elem()
	exprType      = reflect.TypeOf((*expr.Expr)(nil)).Elem()
)

// parser accumulates shape elements and the arguments of computed values.
type parser struct {
	ctx   *qctx.Context
	elems []*element
	args  qctx.Args
}

func (p *parser) result() ([]string, qctx.Args, error) {
	return render(p.elems), p.args, nil
}

func (p *parser) addArgs(args qctx.Args) error {
	merged, err := qctx.Merge(p.args, args)
	if err != nil {
		return err
	}
	p.args = merged
	return nil
}

// toggle selects a real property by path, expanding entity terminals.
func (p *parser) toggle(path []string, t reflect.Type) {
	if block, ok := expansion(t, p.ctx.MaxAggregationDepth); ok {
		p.elems = insertPath(p.elems, path, block, true)
		return
	}
	p.elems = insertPath(p.elems, path, nil, false)
}

func (p *parser) subQuery(name string, b qctx.Buildable, single bool) error {
	sub := p.ctx.Enter(func(q *qctx.Context) {
		q.ExplicitShapeDefinition = true
		q.LimitToOne = single
	})
	text, args, err := b.BuildSub(sub)
	if err != nil {
		return fmt.Errorf("shape element %s: %w", name, err)
	}
	p.ctx.AddTrackedSubQuery(b)
	p.elems = append(p.elems, raw(name+" := ("+text+")"))
	return p.addArgs(args)
}

func (p *parser) computed(name string, e expr.Expr, param *expr.Param) error {
	if !p.ctx.AllowComputedValues {
		return qerr.New(qerr.CodeMalformedShape, name, "computed values are disabled")
	}
	text, args, err := compiler.Convert(e, param, p.ctx)
	if err != nil {
		return fmt.Errorf("shape element %s: %w", name, err)
	}
	p.elems = append(p.elems, raw(name+" := "+text))
	return p.addArgs(args)
}

// FromValue parses a projection struct against the context's selector
// type. Field names match real properties by Go name.
func FromValue(ctx *qctx.Context, value any) ([]string, qctx.Args, error) {
	if ctx.SelectorType == nil {
		return nil, nil, qerr.New(qerr.CodeMalformedShape, fmt.Sprintf("%T", value), "no selector type")
	}
	p := &parser{ctx: ctx}
	if err := p.value(ctx.SelectorType, reflect.ValueOf(value)); err != nil {
		return nil, nil, err
	}
	return p.result()
}

func (p *parser) value(target reflect.Type, v reflect.Value) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return qerr.New(qerr.CodeMalformedShape, typeString(v.Type()), "nil projection")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return qerr.New(qerr.CodeMalformedShape, typeString(v.Type()), "projection must be a struct")
	}

	param := expr.NewParam("x", target)
	vt := v.Type()
	for i := 0; i < vt.NumField(); i++ {
		sf := vt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tagged, ok := schema.PropertyName(sf)
		if !ok {
			continue
		}
		fv := v.Field(i)
		prop, hasProp := schema.FieldByGoName(target, sf.Name)
		name := tagged
		if hasProp {
			name = prop.Name
		}

		if err := p.field(target, param, name, sf, fv, prop, hasProp); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) field(target reflect.Type, param *expr.Param, name string, sf reflect.StructField, fv reflect.Value, prop schema.Field, hasProp bool) error {
	subject := schema.TypeName(target) + "." + sf.Name

	switch {
	case sf.Type == boolType:
		if !hasProp {
			return qerr.New(qerr.CodeUnknownField, subject, "projection toggles a property that does not exist")
		}
		if fv.Bool() {
			p.toggle([]string{name}, prop.Type)
		}
		return nil

	case sf.Type.Implements(exprType):
		if isNil(fv) {
			return nil
		}
		return p.computed(name, fv.Interface().(expr.Expr), param)

	case sf.Type.Implements(buildableType):
		if isNil(fv) {
			return nil
		}
		return p.subQuery(name, fv.Interface().(qctx.Buildable), false)
	}

	if obj, ok := schema.ObjectFromValue(fv); ok {
		if held, ok := obj.HeldBuilder(); ok {
			b, ok := held.(qctx.Buildable)
			if !ok {
				return qerr.New(qerr.CodeMalformedShape, subject, "held builder %T is not buildable", held)
			}
			return p.subQuery(name, b, fv.Kind() != reflect.Slice)
		}
	}

	nested := fv
	for nested.Kind() == reflect.Pointer {
		if nested.IsNil() {
			return nil
		}
		nested = nested.Elem()
	}
	if nested.Kind() == reflect.Struct && hasProp {
		linked, ok := schema.LinkTarget(prop.Type)
		if !ok {
			return qerr.New(qerr.CodeMalformedShape, subject, "nested projection on a non-link property")
		}
		child := &parser{ctx: p.ctx}
		if err := child.value(linked, nested); err != nil {
			return err
		}
		p.elems = insertPath(p.elems, []string{name}, child.elems, true)
		return p.addArgs(child.args)
	}

	return qerr.New(qerr.CodeMalformedShape, subject, "unsupported projection field of type %s", typeString(sf.Type))
}

// FromInit parses an object literal over param. Each binding is a toggle,
// an identity member, a nested literal, a sub-query, a Select over a
// to-many member or a computed value.
func FromInit(ctx *qctx.Context, param *expr.Param, init *expr.MemberInit) ([]string, qctx.Args, error) {
	p := &parser{ctx: ctx}
	if err := p.init(param, init); err != nil {
		return nil, nil, err
	}
	return p.result()
}

func (p *parser) init(param *expr.Param, init *expr.MemberInit) error {
	target := init.Type()
	for _, b := range init.Bindings {
		prop, hasProp := schema.FieldByGoName(target, b.Field)
		name := b.Field
		if hasProp {
			name = prop.Name
		}
		subject := schema.TypeName(target) + "." + b.Field

		switch v := b.Value.(type) {
		case *expr.Constant:
			on, ok := v.Value.(bool)
			if !ok {
				if err := p.computed(name, v, param); err != nil {
					return err
				}
				continue
			}
			if !hasProp {
				return qerr.New(qerr.CodeUnknownField, subject, "literal toggles a property that does not exist")
			}
			if on {
				p.toggle([]string{name}, prop.Type)
			}

		case *expr.SubQuery:
			if v.Builder == nil {
				return qerr.New(qerr.CodeMalformedShape, subject, "sub-query without a builder")
			}
			if err := p.subQuery(name, v.Builder, v.Single); err != nil {
				return err
			}

		case *expr.MemberInit:
			child := &parser{ctx: p.ctx}
			if err := child.init(param, v); err != nil {
				return err
			}
			p.elems = insertPath(p.elems, []string{name}, child.elems, true)
			if err := p.addArgs(child.args); err != nil {
				return err
			}

		case *expr.Member:
			if path, ok := paramPath(v, param); ok && hasProp && len(path) == 1 && path[0] == name {
				p.toggle(path, prop.Type)
				continue
			}
			if err := p.computed(name, v, param); err != nil {
				return err
			}

		case *expr.Call:
			if v.Key() == expr.DeclSlice+".Select" {
				path, ok := selectPath(v, param)
				if ok && hasProp && len(path) == 1 && path[0] == name {
					block, err := p.lambda(v)
					if err != nil {
						return err
					}
					p.elems = insertPath(p.elems, path, block, true)
					continue
				}
			}
			if err := p.computed(name, v, param); err != nil {
				return err
			}

		default:
			if b.Value == nil {
				return qerr.New(qerr.CodeMalformedShape, subject, "binding without a value")
			}
			if err := p.computed(name, b.Value, param); err != nil {
				return err
			}
		}
	}
	return nil
}

// FromSelectors parses property selectors over param. With reference set
// the paths keep their leading dot and are not expanded, as order-by keys
// and conflict targets need.
func FromSelectors(ctx *qctx.Context, param *expr.Param, reference bool, selectors ...expr.Selector) ([]string, error) {
	p := &parser{ctx: ctx}
	for _, sel := range selectors {
		if err := p.selector(param, reference, sel(param)); err != nil {
			return nil, err
		}
	}
	return render(p.elems), nil
}

func (p *parser) selector(param *expr.Param, reference bool, body expr.Expr) error {
	switch v := body.(type) {
	case *expr.Member:
		if v.Err != nil {
			return v.Err
		}
		path, ok := paramPath(v, param)
		if !ok {
			return qerr.New(qerr.CodeMalformedShape, "Member."+v.Name, "selector must access the subject")
		}
		if reference {
			text := "." + joinPath(path)
			p.elems = mergeOne(p.elems, raw(text))
			return nil
		}
		p.toggle(path, v.Type())
		return nil

	case *expr.Call:
		if v.Key() != expr.DeclSlice+".Select" || reference {
			break
		}
		path, ok := selectPath(v, param)
		if !ok {
			return qerr.New(qerr.CodeMalformedShape, v.Key(), "selector must access the subject")
		}
		block, err := p.lambda(v)
		if err != nil {
			return err
		}
		p.elems = insertPath(p.elems, path, block, true)
		return nil
	}
	return qerr.New(qerr.CodeMalformedShape, nodeKind(body), "unsupported shape selector")
}

// lambda parses the projection of a slice.Select call into a block.
func (p *parser) lambda(call *expr.Call) ([]*element, error) {
	if len(call.Args) != 1 {
		return nil, qerr.New(qerr.CodeMalformedShape, call.Key(), "select takes one projection")
	}
	l, ok := call.Args[0].(*expr.Lambda)
	if !ok {
		return nil, qerr.New(qerr.CodeMalformedShape, nodeKind(call.Args[0]), "select projection must be a lambda")
	}
	child := &parser{ctx: p.ctx}
	switch body := l.Body.(type) {
	case *expr.MemberInit:
		if err := child.init(l.Param, body); err != nil {
			return nil, err
		}
	default:
		if err := child.selector(l.Param, false, body); err != nil {
			return nil, err
		}
	}
	if err := p.addArgs(child.args); err != nil {
		return nil, err
	}
	return child.elems, nil
}

// paramPath returns the property path of a member chain rooted at param.
func paramPath(m *expr.Member, param *expr.Param) ([]string, bool) {
	var path []string
	var cur expr.Expr = m
	for {
		mm, ok := cur.(*expr.Member)
		if !ok {
			break
		}
		if mm.Err != nil || mm.Reserved {
			return nil, false
		}
		path = append([]string{mm.Prop}, path...)
		cur = mm.Inner
	}
	root, ok := cur.(*expr.Param)
	if !ok || (param != nil && root != param) {
		return nil, false
	}
	return path, true
}

func selectPath(call *expr.Call, param *expr.Param) ([]string, bool) {
	m, ok := call.Object.(*expr.Member)
	if !ok {
		return nil, false
	}
	return paramPath(m, param)
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func nodeKind(e expr.Expr) string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", e)
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
