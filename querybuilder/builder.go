// Package querybuilder builds EdgeQL statements with a fluent API.
//
// A Builder records a graph of query nodes. Each fluent call checks the
// transition table, appends a node and returns the builder. Nothing is
// rendered until Build, which walks the graph with a fresh context and
// returns the statement text and its parameters.
//
// Errors are sticky: the first failing call records its error, every later
// call is a no-op and Build returns the error. Err exposes it early.
//
// A Builder is not safe for concurrent use. Distinct builders may be built
// concurrently.
package querybuilder

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/compiler"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/internal/qwriter"
	"github.com/roach88/eqb/internal/shape"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// Builder builds statements whose result elements are T.
type Builder[T any] struct {
	g *graph
}

// NullPlacement orders empty values before or after the rest.
type NullPlacement int

const (
	EmptyFirst NullPlacement = iota + 1
	EmptyLast
)

// New returns an empty builder. The options apply to every build.
func New[T any](opts ...qctx.Option) *Builder[T] {
	return &Builder[T]{g: &graph{opts: opts}}
}

// As views b as a builder of U. Both views share one node graph.
func As[U, T any](b *Builder[T]) *Builder[U] {
	return &Builder[U]{g: b.g}
}

// Select starts a select of every property of T.
func Select[T any]() *Builder[T] { return New[T]().Select() }

// Insert starts an insert of value.
func Insert[T any](value *T) *Builder[T] { return New[T]().Insert(value) }

// Update starts an update setting the properties of value.
func Update[T any](value *T) *Builder[T] { return New[T]().Update(value) }

// Delete starts a delete of T.
func Delete[T any]() *Builder[T] { return New[T]().Delete() }

// With starts a builder with a bound variable.
func With[T any](name string, value any) *Builder[T] { return New[T]().With(name, value) }

// For starts a for loop over set.
func For[T any](name string, set expr.Expr, body func(x *expr.Param) qctx.Buildable) *Builder[T] {
	return New[T]().For(name, set, body)
}

func (b *Builder[T]) elem() reflect.Type { return reflect.TypeFor[T]() }

func (b *Builder[T]) param() *expr.Param { return expr.NewParam("x", b.elem()) }

// Err returns the first error recorded by a fluent call.
func (b *Builder[T]) Err() error { return b.g.err }

// ElementType is T.
func (b *Builder[T]) ElementType() reflect.Type { return b.elem() }

// Select selects every property of T, expanding links up to the maximum
// aggregation depth.
func (b *Builder[T]) Select() *Builder[T] {
	if !b.g.enter(KindSelect, nil) {
		return b
	}
	b.g.addRoot(KindSelect, b.elem(), b.selectRender(func(ctx *qctx.Context) ([]string, qctx.Args, error) {
		if ctx.DontSelectProperties {
			return nil, nil, nil
		}
		return schema.ShapeOf(b.elem(), ctx.MaxAggregationDepth), nil, nil
	}))
	return b
}

// SelectShape selects the properties toggled by a projection struct.
func (b *Builder[T]) SelectShape(value any) *Builder[T] {
	if !b.g.enter(KindSelect, nil) {
		return b
	}
	b.g.addRoot(KindSelect, b.elem(), b.selectRender(func(ctx *qctx.Context) ([]string, qctx.Args, error) {
		return shape.FromValue(ctx, value)
	}))
	return b
}

// SelectInit selects the shape described by an object literal over T.
func (b *Builder[T]) SelectInit(fn func(x *expr.Param) *expr.MemberInit) *Builder[T] {
	if !b.g.enter(KindSelect, nil) {
		return b
	}
	p := b.param()
	init := fn(p)
	if err := expr.Validate(init); err != nil {
		b.g.record(err)
		return b
	}
	b.g.addRoot(KindSelect, b.elem(), b.selectRender(func(ctx *qctx.Context) ([]string, qctx.Args, error) {
		return shape.FromInit(ctx, p, init)
	}))
	return b
}

// SelectProps selects the listed properties.
func (b *Builder[T]) SelectProps(selectors ...expr.Selector) *Builder[T] {
	if !b.g.enter(KindSelect, nil) {
		return b
	}
	p := b.param()
	b.g.addRoot(KindSelect, b.elem(), b.selectRender(func(ctx *qctx.Context) ([]string, qctx.Args, error) {
		elems, err := shape.FromSelectors(ctx, p, false, selectors...)
		return elems, nil, err
	}))
	return b
}

// SelectExpr selects the value of an expression over T.
func (b *Builder[T]) SelectExpr(fn expr.Selector) *Builder[T] {
	if !b.g.enter(KindSelect, nil) {
		return b
	}
	p := b.param()
	e := fn(p)
	if err := expr.Validate(e); err != nil {
		b.g.record(err)
		return b
	}
	b.g.addRoot(KindSelect, b.elem(), func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		n.appendLimit = ctx.LimitToOne
		text, args, err := compiler.Convert(e, p, ctx)
		if err != nil {
			return nil, err
		}
		w.Append("select ", text)
		return args, nil
	})
	return b
}

// selectRender writes `select [detached] T { shape }`. A select of the
// enclosing statement's own type, or one at a single-value site, is
// limited to one result.
func (b *Builder[T]) selectRender(shapeOf func(ctx *qctx.Context) ([]string, qctx.Args, error)) renderFunc {
	return func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		sameType := ctx.SelectorType != nil && ctx.SelectorType == n.elem
		n.appendLimit = ctx.LimitToOne || (ctx.UseDetached && sameType)

		elems, args, err := nodeShape(ctx, n, shapeOf)
		if err != nil {
			return nil, err
		}

		w.Append("select ")
		if ctx.UseDetached {
			w.Append("detached ")
		}
		w.Append(schema.TypeName(n.elem))
		if len(elems) > 0 {
			w.Append(" ").Shape(fmt.Sprintf("shape_%d", n.index()), elems...)
		}
		return args, nil
	}
}

// nodeShape evaluates a shape with n's type as the selector type, adding
// the id when object ids are introspected.
func nodeShape(ctx *qctx.Context, n *node, shapeOf func(ctx *qctx.Context) ([]string, qctx.Args, error)) ([]string, qctx.Args, error) {
	inner := ctx.Enter(func(q *qctx.Context) { q.SelectorType = n.elem })
	elems, args, err := shapeOf(inner)
	if err != nil {
		return nil, nil, err
	}
	if ctx.IntrospectObjectIDs && len(elems) > 0 && !slices.Contains(elems, "id") {
		elems = append([]string{"id"}, elems...)
	}
	return elems, args, nil
}

// Filter adds a predicate over T.
func (b *Builder[T]) Filter(fn expr.Selector) *Builder[T] {
	if !b.g.enter(KindFilter, nil) {
		return b
	}
	p := b.param()
	e := fn(p)
	if err := expr.Validate(e); err != nil {
		b.g.record(err)
		return b
	}

	if root := b.g.last(); len(root.children) > 0 {
		if prev := root.children[len(root.children)-1]; prev.kind == KindFilter {
			prevRender := prev.render
			prev.render = func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
				args, err := prevRender(ctx, n, w)
				if err != nil {
					return nil, err
				}
				text, more, err := compiler.Convert(e, p, ctx)
				if err != nil {
					return nil, err
				}
				w.Append(" and ", text)
				return qctx.Merge(args, more)
			}
			return b
		}
	}

	b.g.addChild(KindFilter, func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		text, args, err := compiler.Convert(e, p, ctx)
		if err != nil {
			return nil, err
		}
		w.Append("filter ", text)
		return args, nil
	})
	return b
}

// OrderBy orders by a key over T, ascending.
func (b *Builder[T]) OrderBy(fn expr.Selector, placement ...NullPlacement) *Builder[T] {
	return b.order(fn, false, false, placement)
}

// OrderByDesc orders by a key over T, descending.
func (b *Builder[T]) OrderByDesc(fn expr.Selector, placement ...NullPlacement) *Builder[T] {
	return b.order(fn, true, false, placement)
}

// ThenBy adds an ascending tie-breaker to the ordering.
func (b *Builder[T]) ThenBy(fn expr.Selector, placement ...NullPlacement) *Builder[T] {
	return b.order(fn, false, true, placement)
}

// ThenByDesc adds a descending tie-breaker to the ordering.
func (b *Builder[T]) ThenByDesc(fn expr.Selector, placement ...NullPlacement) *Builder[T] {
	return b.order(fn, true, true, placement)
}

func (b *Builder[T]) order(fn expr.Selector, desc, then bool, placement []NullPlacement) *Builder[T] {
	var allowed []Kind
	if then {
		allowed = thenByStates
	}
	if !b.g.enter(KindOrderBy, allowed) {
		return b
	}
	p := b.param()
	e := fn(p)
	if err := expr.Validate(e); err != nil {
		b.g.record(err)
		return b
	}

	b.g.addChild(KindOrderBy, func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		text, args, err := compiler.Convert(e, p, ctx)
		if err != nil {
			return nil, err
		}
		if then {
			w.Append("then ", text)
		} else {
			w.Append("order by ", text)
		}
		if desc {
			w.Append(" desc")
		}
		for _, pl := range placement {
			switch pl {
			case EmptyFirst:
				w.Append(" empty first")
			case EmptyLast:
				w.Append(" empty last")
			}
		}
		return args, nil
	})
	return b
}

// Offset skips the first n results.
func (b *Builder[T]) Offset(n int64) *Builder[T] {
	if !b.g.enter(KindOffset, nil) {
		return b
	}
	b.g.addChild(KindOffset, func(_ *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append(fmt.Sprintf("offset %d", n))
		return nil, nil
	})
	return b
}

// Limit keeps at most n results.
func (b *Builder[T]) Limit(n int64) *Builder[T] {
	if !b.g.enter(KindLimit, nil) {
		return b
	}
	b.g.addChild(KindLimit, func(_ *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append(fmt.Sprintf("limit %d", n))
		return nil, nil
	})
	return b
}

// SubQuery returns a T standing in for b. Shapes, payloads and
// expressions that meet it splice the built statement in parentheses.
func (b *Builder[T]) SubQuery() *T {
	v := new(T)
	e, ok := any(v).(schema.Entity)
	if !ok {
		b.g.record(qerr.New(qerr.CodeReferenceExtraction, b.elem().String(), "sub-query needs an entity type"))
		return v
	}
	schema.ObjectOf(e).HoldBuilder(b)
	return v
}
