package querybuilder

import (
	"reflect"
	"strings"

	"github.com/roach88/eqb/internal/compiler"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// payload serializes insert and update values.
//
// Links resolve in order: an entity standing in for a builder splices the
// sub-query, a tracked entity becomes a select by id, anything else is
// inserted in place. A pointer reached more than once is inserted once as
// a global and referenced by name.
type payload struct {
	ctx *qctx.Context
	// counts is how often each entity pointer is reachable from the root.
	counts map[uintptr]int
	active map[uintptr]bool
}

func newPayload(ctx *qctx.Context) *payload {
	return &payload{ctx: ctx, active: make(map[uintptr]bool)}
}

// object renders `{ name := value, ... }` for a struct or struct pointer.
func (p *payload) object(v reflect.Value) (string, qctx.Args, error) {
	if p.counts == nil {
		p.counts = make(map[uintptr]int)
		p.scan(v)
	}

	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", nil, qerr.New(qerr.CodeMalformedShape, v.Type().String(), "nil payload")
		}
		ptr := v.Pointer()
		if p.active[ptr] {
			return "", nil, qerr.New(qerr.CodeReferenceExtraction, v.Type().String(), "payload links back to itself")
		}
		p.active[ptr] = true
		defer delete(p.active, ptr)
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", nil, qerr.New(qerr.CodeMalformedShape, v.Type().String(), "payload must be a struct")
	}

	var (
		elems []string
		all   []qctx.Args
	)
	for _, f := range schema.Fields(v.Type()) {
		if f.Name == "id" {
			continue
		}
		value, args, skip, err := p.field(f, v.FieldByIndex(f.Index))
		if err != nil {
			return "", nil, err
		}
		if skip {
			continue
		}
		elems = append(elems, f.Name+" := "+value)
		all = append(all, args)
	}
	args, err := qctx.Merge(all...)
	if err != nil {
		return "", nil, err
	}
	if len(elems) == 0 {
		return "{}", args, nil
	}
	return "{ " + strings.Join(elems, ", ") + " }", args, nil
}

// field renders one property value. skip is set for omitted empty values.
func (p *payload) field(f schema.Field, fv reflect.Value) (string, qctx.Args, bool, error) {
	if isEmpty(fv) {
		if !p.ctx.IncludeEmptySets {
			return "", nil, true, nil
		}
		return compiler.EmptySet, nil, false, nil
	}

	target, isLink := schema.LinkTarget(f.Type)
	if !isLink {
		text, args, err := compiler.Bind(p.ctx, fv, f.Type)
		if err != nil {
			return "", nil, false, err
		}
		return text, args, false, nil
	}

	if fv.Kind() != reflect.Slice {
		text, args, err := p.link(fv, target)
		return text, args, false, err
	}

	if fv.Len() == 0 {
		return compiler.EmptySet, nil, false, nil
	}
	items := make([]string, 0, fv.Len())
	all := make([]qctx.Args, 0, fv.Len())
	for i := 0; i < fv.Len(); i++ {
		item := fv.Index(i)
		if isEmpty(item) {
			continue
		}
		text, args, err := p.link(item, target)
		if err != nil {
			return "", nil, false, err
		}
		items = append(items, text)
		all = append(all, args)
	}
	args, err := qctx.Merge(all...)
	if err != nil {
		return "", nil, false, err
	}
	return "{ " + strings.Join(items, ", ") + " }", args, false, nil
}

func (p *payload) link(v reflect.Value, target reflect.Type) (string, qctx.Args, error) {
	text, args, ok, err := compiler.EntityRef(p.ctx, v, true)
	if err != nil {
		return "", nil, err
	}
	if ok {
		return text, args, nil
	}

	if v.Kind() == reflect.Pointer {
		ptr := v.Pointer()
		if p.active[ptr] {
			return "", nil, qerr.New(qerr.CodeReferenceExtraction, v.Type().String(), "payload links back to itself")
		}
		if p.counts[ptr] > 1 {
			hint := strings.ToLower(schema.TypeName(target))
			name, err := p.ctx.GetOrAddGlobal(hint, v.Interface(), func() (string, qctx.Args, error) {
				return p.insert(v, target)
			})
			return name, nil, err
		}
	}
	return p.insert(v, target)
}

// insert renders a nested insert of a linked value. With schema info the
// insert falls back to the existing object on conflict.
func (p *payload) insert(v reflect.Value, target reflect.Type) (string, qctx.Args, error) {
	body, args, err := p.object(v)
	if err != nil {
		return "", nil, err
	}
	name := schema.TypeName(target)
	text := "insert " + name + " " + body
	if p.ctx.Schema != nil {
		if t, ok := p.ctx.Schema.LookupType(target); ok {
			if clause, err := schema.ConflictClause(t, true); err == nil {
				text += " " + clause + " else (select " + name + ")"
			}
		}
	}
	return "(" + text + ")", args, nil
}

// scan counts entity pointers reachable from v. Each pointer is walked once.
func (p *payload) scan(v reflect.Value) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		ptr := v.Pointer()
		p.counts[ptr]++
		if p.counts[ptr] > 1 {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	for _, f := range schema.Fields(v.Type()) {
		if _, isLink := schema.LinkTarget(f.Type); !isLink {
			continue
		}
		fv := v.FieldByIndex(f.Index)
		if fv.Kind() == reflect.Slice {
			for i := 0; i < fv.Len(); i++ {
				p.scan(fv.Index(i))
			}
			continue
		}
		p.scan(fv)
	}
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}
