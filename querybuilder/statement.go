package querybuilder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/compiler"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/internal/qwriter"
	"github.com/roach88/eqb/internal/shape"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// Insert inserts value. Links to entities the database already holds are
// written as selects; new linked entities are inserted alongside.
func (b *Builder[T]) Insert(value *T) *Builder[T] {
	if !b.g.enter(KindInsert, nil) {
		return b
	}
	if value == nil {
		b.g.record(qerr.New(qerr.CodeMalformedShape, b.elem().String(), "insert of a nil value"))
		return b
	}
	b.g.addRoot(KindInsert, b.elem(), func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		body, args, err := newPayload(ctx).object(reflect.ValueOf(value))
		if err != nil {
			return nil, err
		}
		w.Append("insert ", schema.TypeName(n.elem), " ", body)
		return args, nil
	})
	return b
}

// InsertInit inserts an object literal. Bindings may reference loop and
// with variables.
func (b *Builder[T]) InsertInit(init *expr.MemberInit) *Builder[T] {
	if !b.g.enter(KindInsert, nil) {
		return b
	}
	if err := expr.Validate(init); err != nil {
		b.g.record(err)
		return b
	}
	p := b.param()
	b.g.addRoot(KindInsert, b.elem(), func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		body, args, err := compiler.Convert(init, p, ctx)
		if err != nil {
			return nil, err
		}
		w.Append("insert ", schema.TypeName(n.elem), " { ", body, " }")
		return args, nil
	})
	return b
}

// UnlessConflictOn adds a conflict clause on the selected properties.
func (b *Builder[T]) UnlessConflictOn(selectors ...expr.Selector) *Builder[T] {
	if !b.g.enter(KindUnlessConflictOn, nil) {
		return b
	}
	if len(selectors) == 0 {
		return b.unlessConflict()
	}
	p := b.param()
	b.g.addChild(KindUnlessConflictOn, func(ctx *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		paths, err := shape.FromSelectors(ctx, p, true, selectors...)
		if err != nil {
			return nil, err
		}
		w.Append("unless conflict on ")
		if len(paths) == 1 {
			w.Append(paths[0])
		} else {
			w.Parens(strings.Join(paths, ", "))
		}
		return nil, nil
	})
	return b
}

// UnlessConflict adds a conflict clause derived from the schema's
// exclusive constraints. Building it needs schema info.
func (b *Builder[T]) UnlessConflict() *Builder[T] {
	if !b.g.enter(KindUnlessConflictOn, nil) {
		return b
	}
	return b.unlessConflict()
}

func (b *Builder[T]) unlessConflict() *Builder[T] {
	b.g.addChild(KindUnlessConflictOn, func(_ *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		next := n.parent.next()
		hasElse := next != nil && next.kind == KindElse
		elem := n.elem
		w.AppendIntrospected(func(info *schema.Info, w *qwriter.Writer) error {
			t, ok := info.LookupType(elem)
			if !ok {
				return qerr.New(qerr.CodeIntrospectionRequired, schema.TypeName(elem), "type missing from schema")
			}
			clause, err := schema.ConflictClause(t, hasElse)
			if err != nil {
				return err
			}
			w.Append(clause)
			return nil
		})
		return nil, nil
	})
	return b
}

// Else runs sub when the insert conflicts. A nil sub makes the next
// statement on this builder the else branch.
func (b *Builder[T]) Else(sub qctx.Buildable) *Builder[T] {
	if !b.g.enter(KindElse, nil) {
		return b
	}
	n := b.g.addRoot(KindElse, b.elem(), func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append("else")
		if n.sub == nil {
			return nil, nil
		}
		text, args, err := n.sub.BuildSub(ctx)
		if err != nil {
			return nil, err
		}
		ctx.AddTrackedSubQuery(n.sub)
		w.Append(" ").Parens(text)
		return args, nil
	})
	n.sub = sub
	return b
}

// ElseSelect selects the conflicting object instead of inserting it.
func (b *Builder[T]) ElseSelect() *Builder[T] {
	return b.Else(nil).Select()
}

// Update sets every property of value on the selected objects.
func (b *Builder[T]) Update(value *T) *Builder[T] {
	if !b.g.enter(KindUpdate, nil) {
		return b
	}
	if value == nil {
		b.g.record(qerr.New(qerr.CodeMalformedShape, b.elem().String(), "update with a nil value"))
		return b
	}
	root := b.g.addRoot(KindUpdate, b.elem(), updateHead(nil))
	root.addTrailing(KindSet, func(ctx *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		body, args, err := newPayload(ctx).object(reflect.ValueOf(value))
		if err != nil {
			return nil, err
		}
		w.Append("set ", body)
		return args, nil
	})
	return b
}

// UpdateWith sets the bindings of an object literal over T.
func (b *Builder[T]) UpdateWith(fn func(x *expr.Param) *expr.MemberInit) *Builder[T] {
	return b.updateInit(nil, fn)
}

// UpdateRef updates the object ref refers to: a tracked query result or a
// sub-query stand-in.
func (b *Builder[T]) UpdateRef(ref *T, fn func(x *expr.Param) *expr.MemberInit) *Builder[T] {
	if ref == nil {
		b.g.record(qerr.New(qerr.CodeReferenceExtraction, b.elem().String(), "nil reference"))
		return b
	}
	return b.updateInit(ref, fn)
}

func (b *Builder[T]) updateInit(ref *T, fn func(x *expr.Param) *expr.MemberInit) *Builder[T] {
	if !b.g.enter(KindUpdate, nil) {
		return b
	}
	p := b.param()
	init := fn(p)
	if err := expr.Validate(init); err != nil {
		b.g.record(err)
		return b
	}
	var refValue *reflect.Value
	if ref != nil {
		v := reflect.ValueOf(ref)
		refValue = &v
	}
	root := b.g.addRoot(KindUpdate, b.elem(), updateHead(refValue))
	root.addTrailing(KindSet, func(ctx *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		body, args, err := compiler.Convert(init, p, ctx)
		if err != nil {
			return nil, err
		}
		w.Append("set { ", body, " }")
		return args, nil
	})
	return b
}

// updateHead writes `update T`, or the referenced object when ref is set.
func updateHead(ref *reflect.Value) renderFunc {
	return func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		if ref == nil {
			w.Append("update ", schema.TypeName(n.elem))
			return nil, nil
		}
		obj, ok := schema.ObjectFromValue(*ref)
		if ok {
			if held, ok := obj.HeldBuilder(); ok {
				if sub, ok := held.(qctx.Buildable); ok {
					text, args, err := sub.BuildSub(ctx)
					if err != nil {
						return nil, err
					}
					ctx.AddTrackedSubQuery(sub)
					w.Append("update ").Parens(text)
					return args, nil
				}
			}
			if ctx.Tracker != nil {
				if id, ok := ctx.Tracker.Lookup(obj); ok {
					name := ctx.NextArgName()
					w.Append("update ", schema.TypeName(n.elem), " filter .id = ").QueryArgument("uuid", name)
					return qctx.Args{{Name: name, Value: id}}, nil
				}
			}
		}
		return nil, qerr.New(qerr.CodeReferenceExtraction, ref.Type().String(),
			"reference is neither a tracked result nor a sub-query")
	}
}

// Delete deletes T.
func (b *Builder[T]) Delete() *Builder[T] {
	if !b.g.enter(KindDelete, nil) {
		return b
	}
	b.g.addRoot(KindDelete, b.elem(), func(_ *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append("delete ", schema.TypeName(n.elem))
		return nil, nil
	})
	return b
}

// Var is a named value for WithVars.
type Var struct {
	Name  string
	Value any
}

// With binds name to value for the statements that follow. The value may
// be an expression, a builder, an entity standing in for a builder, or a
// plain value bound as a parameter.
func (b *Builder[T]) With(name string, value any) *Builder[T] {
	return b.WithVars(Var{Name: name, Value: value})
}

// WithVars binds several variables at once.
func (b *Builder[T]) WithVars(vars ...Var) *Builder[T] {
	root := b.withRoot()
	if root == nil {
		return b
	}
	for _, v := range vars {
		if v.Name == "" {
			b.g.record(qerr.New(qerr.CodeMalformedShape, "with", "variable without a name"))
			return b
		}
		root.addTrailing(KindVariable, withVariable(v, b.param()))
	}
	return b
}

// WithModule sets the default module.
func (b *Builder[T]) WithModule(module string) *Builder[T] {
	root := b.withRoot()
	if root == nil {
		return b
	}
	root.addTrailing(KindVariable, func(_ *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append("module ", module)
		return nil, nil
	})
	return b
}

// withRoot returns the current with block, opening one if needed.
func (b *Builder[T]) withRoot() *node {
	if !b.g.enter(KindWith, nil) {
		return nil
	}
	if root := b.g.last(); root != nil && root.kind == KindWith {
		return root
	}
	root := b.g.addRoot(KindWith, b.elem(), func(_ *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		w.LabelText(qwriter.MarkerStatement, withLabel, "with")
		return nil, nil
	})
	root.trailSep = ", "
	return root
}

func withVariable(v Var, p *expr.Param) renderFunc {
	return func(ctx *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		ctx.DefineVariable(v.Name)
		value, args, err := variableValue(ctx, v.Value, p)
		if err != nil {
			return nil, fmt.Errorf("with %s: %w", v.Name, err)
		}
		w.Label(qwriter.MarkerVariable, v.Name, func(w *qwriter.Writer) { w.Assignment(v.Name, value) })
		return args, nil
	}
}

func variableValue(ctx *qctx.Context, value any, p *expr.Param) (string, qctx.Args, error) {
	switch v := value.(type) {
	case JSON:
		return bindJSON(ctx, v.Value)
	case expr.Expr:
		return compiler.Convert(v, p, ctx)
	case qctx.Buildable:
		text, args, err := v.BuildSub(ctx)
		if err != nil {
			return "", nil, err
		}
		ctx.AddTrackedSubQuery(v)
		return "(" + text + ")", args, nil
	}
	rv := reflect.ValueOf(value)
	if rv.IsValid() && schema.IsEntity(rv.Type()) {
		text, args, ok, err := compiler.EntityRef(ctx, rv, true)
		if err != nil {
			return "", nil, err
		}
		if ok {
			return text, args, nil
		}
	}
	return compiler.Bind(ctx, rv, nil)
}

// For loops over set, evaluating body once per element. body receives the
// loop variable.
func (b *Builder[T]) For(name string, set expr.Expr, body func(x *expr.Param) qctx.Buildable) *Builder[T] {
	if !b.g.enter(KindFor, nil) {
		return b
	}
	if err := expr.Validate(set); err != nil {
		b.g.record(err)
		return b
	}
	x := expr.NewParam(name, elementOf(set.Type()))
	x.Bound = true
	inner := body(x)
	if inner == nil {
		b.g.record(qerr.New(qerr.CodeMalformedShape, "for "+name, "loop without a body"))
		return b
	}
	p := b.param()
	b.g.addRoot(KindFor, b.elem(), func(ctx *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		ctx.DefineVariable(name)
		setText, setArgs, err := compiler.Convert(set, p, ctx)
		if err != nil {
			return nil, fmt.Errorf("for %s: %w", name, err)
		}
		if unpacks(set) {
			setText = "array_unpack(" + setText + ")"
		}
		bodyText, bodyArgs, err := inner.BuildSub(ctx)
		if err != nil {
			return nil, fmt.Errorf("for %s: %w", name, err)
		}
		ctx.AddTrackedSubQuery(inner)
		w.Append("for ", name, " in ", setText, " union ").Parens(bodyText)
		return qctx.Merge(setArgs, bodyArgs)
	})
	return b
}

// unpacks reports whether a loop set is an array value that must be
// unpacked into a set.
func unpacks(set expr.Expr) bool {
	switch set.(type) {
	case *expr.NewArray, *expr.Captured, *expr.Constant:
		if set.Type() == nil {
			return false
		}
		t := schema.Indirect(set.Type())
		return t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8
	}
	return false
}

func elementOf(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	t = schema.Indirect(t)
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		return schema.Indirect(t.Elem())
	}
	return t
}

// Union combines the current select with other.
func (b *Builder[T]) Union(other qctx.Buildable) *Builder[T] {
	if !b.g.enter(KindUnion, nil) {
		return b
	}
	if other == nil {
		b.g.record(qerr.New(qerr.CodeMalformedShape, "union", "union with a nil builder"))
		return b
	}
	n := b.g.addRoot(KindUnion, b.elem(), func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		text, args, err := n.sub.BuildSub(ctx)
		if err != nil {
			return nil, err
		}
		ctx.AddTrackedSubQuery(n.sub)
		w.Append("union ").Parens(text)
		return args, nil
	})
	n.sub = other
	return b
}

// Isolation is a transaction isolation level.
type Isolation string

const (
	Serializable   Isolation = "serializable"
	RepeatableRead Isolation = "repeatable read"
)

// Access is a transaction access mode.
type Access string

const (
	ReadWrite Access = "read write"
	ReadOnly  Access = "read only"
)

// Transaction starts a transaction block.
func Transaction(isolation Isolation, access Access, deferrable bool) *Builder[struct{}] {
	b := New[struct{}]()
	if !b.g.enter(KindTransaction, nil) {
		return b
	}
	b.g.addRoot(KindTransaction, b.elem(), func(_ *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append("start transaction isolation ", string(isolation), ", ", string(access), ", ")
		w.AppendIf(!deferrable, "not ")
		w.Append("deferrable")
		return nil, nil
	})
	return b
}

// Commit commits the current transaction.
func Commit() *Builder[struct{}] { return keyword(KindCommit, "commit") }

// Rollback rolls back the current transaction.
func Rollback() *Builder[struct{}] { return keyword(KindRollback, "rollback") }

func keyword(kind Kind, text string) *Builder[struct{}] {
	b := New[struct{}]()
	if !b.g.enter(kind, nil) {
		return b
	}
	b.g.addRoot(kind, b.elem(), func(_ *qctx.Context, _ *node, w *qwriter.Writer) (qctx.Args, error) {
		w.Append(text)
		return nil, nil
	})
	return b
}
