package compiler

import (
	"fmt"
	"reflect"

	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/schema"
)

// EntityRef renders a reference to an existing entity value.
//
// An entity standing in for a query builder splices the built sub-query. An
// entity the tracker knows becomes a select by id. The third result is false
// when neither applies; the caller decides what to do with the value.
func EntityRef(ctx *qctx.Context, v reflect.Value, single bool) (string, qctx.Args, bool, error) {
	obj, ok := schema.ObjectFromValue(v)
	if !ok {
		return "", nil, false, nil
	}

	if held, ok := obj.HeldBuilder(); ok {
		b, ok := held.(qctx.Buildable)
		if !ok {
			return "", nil, false, fmt.Errorf("held builder %T is not buildable", held)
		}
		sub := ctx.Enter(func(q *qctx.Context) { q.LimitToOne = single })
		text, args, err := b.BuildSub(sub)
		if err != nil {
			return "", nil, false, fmt.Errorf("sub-query: %w", err)
		}
		ctx.AddTrackedSubQuery(b)
		return "(" + text + ")", args, true, nil
	}

	if ctx.Tracker == nil {
		return "", nil, false, nil
	}
	id, ok := ctx.Tracker.Lookup(obj)
	if !ok {
		return "", nil, false, nil
	}
	name := ctx.NextArgName()
	text := "(select " + schema.TypeName(v.Type()) + " filter .id = <uuid>$" + name + ")"
	return text, qctx.Args{{Name: name, Value: id}}, true, nil
}
