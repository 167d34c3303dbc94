package querybuilder

import (
	"fmt"

	"github.com/roach88/eqb/internal/qctx"
)

// Query is a built statement.
type Query struct {
	Text       string
	Parameters map[string]any
}

// Pretty returns the text indented for reading.
func (q Query) Pretty() string { return Prettify(q.Text) }

// Build renders the statement with the builder's options.
func (b *Builder[T]) Build() (Query, error) {
	return b.BuildWith()
}

// BuildWith renders the statement with the builder's options followed by
// opts. Every call starts from a fresh context, so building twice yields
// the same text and parameters.
func (b *Builder[T]) BuildWith(opts ...qctx.Option) (Query, error) {
	all := append(append([]qctx.Option(nil), b.g.opts...), opts...)
	ctx := qctx.New(all...)
	text, args, err := b.g.build(ctx, true)
	if err != nil {
		return Query{}, fmt.Errorf("build %s: %w", b.elem(), err)
	}
	ctx.Log().Debug("query built", "type", b.elem().String(), "args", len(args),
		"subqueries", len(ctx.TrackedSubQueries()))
	return Query{Text: text, Parameters: args.Map()}, nil
}

// BuildSub renders the statement inside an enclosing build. It shares the
// enclosing context's arguments, globals and variables.
func (b *Builder[T]) BuildSub(ctx *qctx.Context) (string, qctx.Args, error) {
	return b.g.build(ctx, false)
}

// String returns the statement text, or the build error.
func (b *Builder[T]) String() string {
	q, err := b.Build()
	if err != nil {
		return "error: " + err.Error()
	}
	return q.Text
}

// Pretty builds the statement and returns its indented text.
func (b *Builder[T]) Pretty() (string, error) {
	q, err := b.Build()
	if err != nil {
		return "", err
	}
	return q.Pretty(), nil
}
