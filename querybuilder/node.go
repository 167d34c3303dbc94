package querybuilder

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/internal/qwriter"
	"github.com/roach88/eqb/qerr"
)

// renderFunc writes a node's own fragment.
type renderFunc func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error)

// node is one clause of a statement. Roots are statements; children are
// the clauses that follow them.
type node struct {
	kind   Kind
	elem   reflect.Type
	g      *graph
	parent *node

	render   renderFunc
	children []*node
	// trailing render after children, joined with trailSep.
	trailing []*node
	trailSep string

	// sub is the builder an Else or Union node splices.
	sub qctx.Buildable

	// Transient, reset on every build.
	args        qctx.Args
	appendLimit bool
}

// graph holds the roots of a builder and is shared by every retyped view
// of it.
type graph struct {
	roots []*node
	// err is the first error recorded by a fluent call.
	err  error
	opts []qctx.Option
}

func (g *graph) record(err error) {
	if err != nil && g.err == nil {
		g.err = err
	}
}

func (g *graph) last() *node {
	if len(g.roots) == 0 {
		return nil
	}
	return g.roots[len(g.roots)-1]
}

// state is the kind of the newest child of the newest root, else the
// newest root's kind, else Start.
func (g *graph) state() Kind {
	root := g.last()
	if root == nil {
		return KindStart
	}
	if len(root.children) > 0 {
		return root.children[len(root.children)-1].kind
	}
	return root.kind
}

// enter checks that kind may follow the current state and that the
// current statement takes it. It records a StateError when it may not.
func (g *graph) enter(kind Kind, allowed []Kind) bool {
	if g.err != nil {
		return false
	}
	if allowed == nil {
		allowed = transitions[kind]
	}
	if allowed == nil {
		return true
	}
	current := g.state()
	if !slices.Contains(allowed, current) {
		g.record(&StateError{Attempted: kind, Current: current, Legal: allowed})
		return false
	}
	if root := g.last(); root != nil && slices.Contains(rootForbids[root.kind], kind) {
		g.record(&StateError{Attempted: kind, Current: current, Root: root.kind})
		return false
	}
	return true
}

func (g *graph) addRoot(kind Kind, elem reflect.Type, render renderFunc) *node {
	n := &node{kind: kind, elem: elem, g: g, render: render}
	g.roots = append(g.roots, n)
	return n
}

func (g *graph) addChild(kind Kind, render renderFunc) *node {
	root := g.last()
	n := &node{kind: kind, elem: root.elem, g: g, parent: root, render: render}
	root.children = append(root.children, n)
	return n
}

func (n *node) addTrailing(kind Kind, render renderFunc) *node {
	t := &node{kind: kind, elem: n.elem, g: n.g, parent: n, render: render}
	n.trailing = append(n.trailing, t)
	return t
}

// index is the node's position among the graph roots, or -1.
func (n *node) index() int {
	return slices.Index(n.g.roots, n)
}

// next is the root after n.
func (n *node) next() *node {
	i := n.index()
	if i < 0 || i+1 >= len(n.g.roots) {
		return nil
	}
	return n.g.roots[i+1]
}

// build writes the node, its children and its trailing nodes into w.
func (n *node) build(ctx *qctx.Context, w *qwriter.Writer) (qctx.Args, error) {
	n.args = nil
	n.appendLimit = false

	args, err := n.render(ctx, n, w)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.kind, err)
	}
	all := []qctx.Args{args}

	inner := ctx.Enter(func(q *qctx.Context) { q.SelectorType = n.elem })
	for _, c := range n.children {
		w.Append(" ")
		childArgs, err := c.build(inner, w)
		if err != nil {
			return nil, err
		}
		all = append(all, childArgs)
	}

	if n.appendLimit && (len(n.children) == 0 || n.children[len(n.children)-1].kind != KindLimit) {
		w.Append(" limit 1")
	}

	if len(n.trailing) > 0 {
		sep := n.trailSep
		if sep == "" {
			sep = " "
		}
		w.Append(" ")
		for i, t := range n.trailing {
			if i > 0 {
				w.Append(sep)
			}
			trailArgs, err := t.build(inner, w)
			if err != nil {
				return nil, err
			}
			all = append(all, trailArgs)
		}
	}

	merged, err := qctx.Merge(all...)
	if err != nil {
		return nil, err
	}
	n.args = merged
	ctx.Log().Debug("node built", "kind", n.kind.String(), "args", len(merged))
	return merged, nil
}

// build renders every root of the graph. Roots are built last to first;
// their text is joined in insertion order. A top-level build also writes
// the globals prefix and checks that every tracked variable is defined.
func (g *graph) build(ctx *qctx.Context, top bool) (string, qctx.Args, error) {
	if g.err != nil {
		return "", nil, g.err
	}
	if len(g.roots) == 0 {
		return "", nil, qerr.New(qerr.CodeIllegalTransition, KindStart.String(), "nothing to build")
	}

	writers := make([]*qwriter.Writer, len(g.roots))
	rootArgs := make([]qctx.Args, len(g.roots))
	for i := len(g.roots) - 1; i >= 0; i-- {
		w := qwriter.New()
		args, err := g.roots[i].build(ctx, w)
		if err != nil {
			return "", nil, err
		}
		writers[i] = w
		rootArgs[i] = args
	}

	var out []*qwriter.Writer
	for i := 0; i < len(g.roots); i++ {
		n := g.roots[i]
		switch {
		case n.kind == KindElse && n.sub == nil:
			if i+1 >= len(g.roots) {
				return "", nil, qerr.New(qerr.CodeIllegalTransition, KindElse.String(), "else without a following statement")
			}
			wrapped := writers[i]
			wrapped.Append(" (").Write(writers[i+1]).Append(")")
			out = append(out, wrapped)
			i++
		case n.kind == KindUnion:
			if len(out) == 0 {
				return "", nil, qerr.New(qerr.CodeIllegalTransition, KindUnion.String(), "union without a statement")
			}
			prev := out[len(out)-1]
			combined := qwriter.New().Append("select (").Write(prev).Append(") ").Write(writers[i])
			out[len(out)-1] = combined
		default:
			out = append(out, writers[i])
		}
	}

	w := qwriter.New()
	for i, part := range out {
		if i > 0 {
			w.Append(" ")
		}
		w.Write(part)
	}

	all := slices.Clone(rootArgs)
	if top {
		all = append(all, writeGlobals(ctx, w)...)
		if err := checkVariables(ctx); err != nil {
			return "", nil, err
		}
	}

	text, err := w.Compile(ctx.Schema)
	if err != nil {
		return "", nil, err
	}
	args, err := qctx.Merge(all...)
	if err != nil {
		return "", nil, err
	}
	return text, args, nil
}

// writeGlobals prefixes the registered globals as with-bindings, joining
// an existing with block when the statement has one.
func writeGlobals(ctx *qctx.Context, w *qwriter.Writer) []qctx.Args {
	globals := ctx.Globals()
	if len(globals) == 0 {
		return nil
	}
	bindings := make([]string, len(globals))
	args := make([]qctx.Args, len(globals))
	for i, gl := range globals {
		bindings[i] = gl.Name + " := " + gl.Value
		args[i] = gl.Args
	}

	if markers, ok := w.Labeled(withLabel); ok {
		p := w.Positional(markers[0].Position + markers[0].Size)
		for _, b := range bindings {
			p.Append(" ").Label(qwriter.MarkerGlobal, globalLabel, b).Append(",")
		}
		return args
	}

	p := w.Positional(0)
	p.Append("with ")
	for i, b := range bindings {
		if i > 0 {
			p.Append(", ")
		}
		p.Label(qwriter.MarkerGlobal, globalLabel, b)
	}
	p.Append(" ")
	return args
}

// checkVariables fails when a variable referenced during the build was
// never bound by a with, for or global.
func checkVariables(ctx *qctx.Context) error {
	for _, v := range ctx.TrackedVariables() {
		name, _, _ := strings.Cut(v, ".")
		if !ctx.IsDefined(name) {
			return qerr.New(qerr.CodeUndefinedVariable, name, "variable is referenced but never bound")
		}
	}
	return nil
}

const (
	withLabel   = "with"
	globalLabel = "global"
)
