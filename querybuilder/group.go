package querybuilder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/compiler"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/internal/qwriter"
	"github.com/roach88/eqb/internal/shape"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// Group starts a group of T.
func Group[T any]() *Builder[T] { return New[T]().Group() }

// Group groups T. Each group's elements carry every property of T. A
// group needs a By clause.
func (b *Builder[T]) Group() *Builder[T] {
	if !b.g.enter(KindGroup, nil) {
		return b
	}
	b.g.addRoot(KindGroup, b.elem(), b.groupRender(func(ctx *qctx.Context) ([]string, qctx.Args, error) {
		if ctx.DontSelectProperties {
			return nil, nil, nil
		}
		return schema.ShapeOf(b.elem(), ctx.MaxAggregationDepth), nil, nil
	}))
	return b
}

// GroupProps groups T, keeping the listed properties in each element.
func (b *Builder[T]) GroupProps(selectors ...expr.Selector) *Builder[T] {
	if !b.g.enter(KindGroup, nil) {
		return b
	}
	p := b.param()
	b.g.addRoot(KindGroup, b.elem(), b.groupRender(func(ctx *qctx.Context) ([]string, qctx.Args, error) {
		elems, err := shape.FromSelectors(ctx, p, false, selectors...)
		return elems, nil, err
	}))
	return b
}

func (b *Builder[T]) groupRender(shapeOf func(ctx *qctx.Context) ([]string, qctx.Args, error)) renderFunc {
	return func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		if !slices.ContainsFunc(n.children, func(c *node) bool { return c.kind == KindBy }) {
			return nil, qerr.New(qerr.CodeMalformedShape, schema.TypeName(n.elem), "group without a by clause")
		}
		elems, args, err := nodeShape(ctx, n, shapeOf)
		if err != nil {
			return nil, err
		}
		w.Append("group ", schema.TypeName(n.elem))
		if len(elems) > 0 {
			w.Append(" ").Shape(fmt.Sprintf("shape_%d", n.index()), elems...)
		}
		return args, nil
	}
}

// Using binds name to an expression over T for the grouping keys. By
// refers to it with edgeql.Var.
func (b *Builder[T]) Using(name string, fn expr.Selector) *Builder[T] {
	if !b.g.enter(KindUsing, nil) {
		return b
	}
	if name == "" {
		b.g.record(qerr.New(qerr.CodeMalformedShape, "using", "binding without a name"))
		return b
	}
	p := b.param()
	e := fn(p)
	if err := expr.Validate(e); err != nil {
		b.g.record(err)
		return b
	}

	binding := func(ctx *qctx.Context, w *qwriter.Writer) (qctx.Args, error) {
		ctx.DefineVariable(name)
		text, args, err := compiler.Convert(e, p, ctx)
		if err != nil {
			return nil, fmt.Errorf("using %s: %w", name, err)
		}
		w.Assignment(name, text)
		return args, nil
	}

	if root := b.g.last(); len(root.children) > 0 && root.children[len(root.children)-1].kind == KindUsing {
		prev := root.children[len(root.children)-1]
		prevRender := prev.render
		prev.render = func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
			args, err := prevRender(ctx, n, w)
			if err != nil {
				return nil, err
			}
			w.Append(", ")
			more, err := binding(ctx, w)
			if err != nil {
				return nil, err
			}
			return qctx.Merge(args, more)
		}
		return b
	}

	b.g.addChild(KindUsing, func(ctx *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append("using ")
		return binding(ctx, w)
	})
	return b
}

// By sets the grouping keys: paths over T, or Using names referenced with
// edgeql.Var.
func (b *Builder[T]) By(keys ...expr.Selector) *Builder[T] {
	if !b.g.enter(KindBy, nil) {
		return b
	}
	if len(keys) == 0 {
		b.g.record(qerr.New(qerr.CodeMalformedShape, "by", "group without keys"))
		return b
	}
	p := b.param()
	exprs := make([]expr.Expr, len(keys))
	for i, key := range keys {
		exprs[i] = key(p)
		if err := expr.Validate(exprs[i]); err != nil {
			b.g.record(err)
			return b
		}
	}

	b.g.addChild(KindBy, func(ctx *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		parts := make([]string, len(exprs))
		all := make([]qctx.Args, len(exprs))
		for i, e := range exprs {
			text, args, err := compiler.Convert(e, p, ctx)
			if err != nil {
				return nil, fmt.Errorf("by key %d: %w", i, err)
			}
			parts[i] = text
			all[i] = args
		}
		w.Append("by ", strings.Join(parts, ", "))
		return qctx.Merge(all...)
	})
	return b
}
