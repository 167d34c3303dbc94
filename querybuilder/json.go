package querybuilder

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/eqb/internal/compiler"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/internal/qwriter"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// JSON wraps a value that a with variable binds as one json argument.
// Structs are keyed by their EdgeDB property names, so json_get paths use
// the names the schema does. Links and unset ids are left out.
type JSON struct {
	Value any
}

// WithJSON binds name to value encoded as json. Read it with
// edgeql.JSONGet(edgeql.Var[json.RawMessage](name), ...).
func (b *Builder[T]) WithJSON(name string, value any) *Builder[T] {
	return b.With(name, JSON{Value: value})
}

// InsertJSON starts a bulk insert of values through one json argument.
func InsertJSON[T any](name string, values []*T) *Builder[T] {
	return New[T]().WithJSON(name, values).InsertJSON(name)
}

// jsonRow is the loop variable of a json insert.
const jsonRow = "json_row"

// InsertJSON inserts one T per element of the json array bound to
// variable. Each scalar property is cast from the element's field of the
// same name. Links are not set.
func (b *Builder[T]) InsertJSON(variable string) *Builder[T] {
	if !b.g.enter(KindFor, nil) {
		return b
	}
	setters, err := jsonSetters(b.elem())
	if err != nil {
		b.g.record(err)
		return b
	}
	b.g.addRoot(KindFor, b.elem(), func(ctx *qctx.Context, n *node, w *qwriter.Writer) (qctx.Args, error) {
		ctx.AddTrackedVariable(variable)
		ctx.DefineVariable(jsonRow)
		body := fmt.Sprintf("insert %s { %s }", schema.TypeName(n.elem), strings.Join(setters, ", "))
		w.Append("for ", jsonRow, " in json_array_unpack(", variable, ") union ").Parens(body)
		return nil, nil
	})
	return b
}

// jsonSetters returns `prop := <tag>json_get(row, "prop")` for every
// scalar property of t.
func jsonSetters(t reflect.Type) ([]string, error) {
	var setters []string
	for _, f := range schema.Fields(t) {
		if f.Name == "id" || isLink(f.Type) {
			continue
		}
		if schema.IsEnum(schema.Indirect(f.Type)) {
			return nil, qerr.New(qerr.CodeUnmappedScalar, f.GoName, "enum property cannot be read from json")
		}
		tag, ok := schema.ScalarTag(f.Type)
		if !ok {
			return nil, qerr.New(qerr.CodeUnmappedScalar, f.GoName, "no json cast for %s", f.Type)
		}
		setters = append(setters, fmt.Sprintf("%s := <%s>json_get(%s, %s)", f.Name, tag, jsonRow, schema.Quote(f.Name)))
	}
	if len(setters) == 0 {
		return nil, qerr.New(qerr.CodeMalformedShape, t.String(), "no scalar properties to insert")
	}
	return setters, nil
}

func isLink(t reflect.Type) bool {
	if schema.IsEntity(t) {
		return true
	}
	_, ok := schema.EntityElem(t)
	return ok
}

// bindJSON encodes v and binds it as a json argument.
func bindJSON(ctx *qctx.Context, v any) (string, qctx.Args, error) {
	doc, err := jsonDocument(reflect.ValueOf(v))
	if err != nil {
		return "", nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("encode json: %w", err)
	}
	return compiler.Bind(ctx, reflect.ValueOf(json.RawMessage(raw)), nil)
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// jsonDocument converts v into plain maps and slices keyed by property
// name. Values that marshal themselves are kept as they are.
func jsonDocument(v reflect.Value) (any, error) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, nil
	}

	t := v.Type()
	if schema.IsEnum(t) {
		lit, err := compiler.Literal(v, false, false)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(lit), nil
	}
	if t == schema.CharType() {
		return string(rune(v.Int())), nil
	}
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) ||
		reflect.PointerTo(t).Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return v.Interface(), nil
	}

	switch t.Kind() {
	case reflect.Struct:
		out := make(map[string]any)
		for _, f := range schema.Fields(t) {
			if isLink(f.Type) {
				continue
			}
			fv := v.FieldByIndex(f.Index)
			if f.Name == "id" && fv.IsZero() {
				continue
			}
			doc, err := jsonDocument(fv)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.GoName, err)
			}
			out[f.Name] = doc
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return v.Interface(), nil
		}
		if t.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make([]any, v.Len())
		for i := range out {
			doc, err := jsonDocument(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = doc
		}
		return out, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, qerr.New(qerr.CodeUnmappedScalar, t.String(), "json object keys must be strings")
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			doc, err := jsonDocument(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = doc
		}
		return out, nil
	}
	return v.Interface(), nil
}
