// Package schema holds the contracts the query builder consumes from its
// collaborators: type and property naming, scalar type tags, the entity
// marker, and the introspected schema of the database.
package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TagName is the struct tag used to rename a property.
const TagName = "edgedb"

// Char is a single character. EdgeQL has no character type, so values of
// this type are rendered as one-character strings.
type Char rune

// TypeNamer lets a Go type choose its EdgeDB type name.
type TypeNamer interface {
	EdgeDBTypeName() string
}

var typeNamerType = reflect.TypeOf((*TypeNamer)(nil)).Elem()

// TypeName returns the EdgeDB type name for t. Pointers and slices resolve
// to their element type.
func TypeName(t reflect.Type) string {
	t = Indirect(t)
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		t = Indirect(t.Elem())
	}
	if t.Implements(typeNamerType) {
		return reflect.Zero(t).Interface().(TypeNamer).EdgeDBTypeName()
	}
	if reflect.PointerTo(t).Implements(typeNamerType) {
		return reflect.New(t).Interface().(TypeNamer).EdgeDBTypeName()
	}
	return t.Name()
}

// Indirect strips pointer indirections from t.
func Indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Field describes one property of a Go struct as EdgeDB sees it.
type Field struct {
	// Name is the EdgeDB property name.
	Name string
	// GoName is the Go field name.
	GoName string
	// Index is the reflect index path, through embedded structs.
	Index []int
	// Type is the field's Go type.
	Type reflect.Type
}

var fieldCache sync.Map // reflect.Type -> []Field

// Fields lists the properties of struct type t in declaration order.
// Embedded structs are flattened and fields tagged `edgedb:"-"` are skipped.
func Fields(t reflect.Type) []Field {
	t = Indirect(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]Field)
	}
	fields := collectFields(t, nil)
	fieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int) []Field {
	var out []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous && Indirect(sf.Type).Kind() == reflect.Struct {
			if sf.Type.Kind() == reflect.Struct {
				out = append(out, collectFields(sf.Type, index)...)
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name, ok := PropertyName(sf)
		if !ok {
			continue
		}
		out = append(out, Field{Name: name, GoName: sf.Name, Index: index, Type: sf.Type})
	}
	return out
}

// PropertyName returns the EdgeDB name of a struct field. The second result
// is false when the field is excluded with `edgedb:"-"`.
func PropertyName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get(TagName)
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return sf.Name, true
}

// FieldByGoName finds the property of t declared with the given Go name.
func FieldByGoName(t reflect.Type, goName string) (Field, bool) {
	for _, f := range Fields(t) {
		if f.GoName == goName {
			return f, true
		}
	}
	return Field{}, false
}

var (
	uuidType     = reflect.TypeOf(uuid.UUID{})
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	rawJSONType  = reflect.TypeOf(json.RawMessage(nil))
	charType     = reflect.TypeOf(Char(0))
)

// CharType is the reflect.Type of Char.
func CharType() reflect.Type { return charType }

// ScalarTag maps a Go type to its EdgeQL type-cast keyword. The second
// result is false when no mapping exists.
func ScalarTag(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	t = Indirect(t)

	switch t {
	case uuidType:
		return "uuid", true
	case decimalType:
		return "decimal", true
	case timeType:
		return "datetime", true
	case durationType:
		return "duration", true
	case rawJSONType:
		return "json", true
	case charType:
		return "str", true
	}

	switch t.Kind() {
	case reflect.String:
		return "str", true
	case reflect.Bool:
		return "bool", true
	case reflect.Int16:
		return "int16", true
	case reflect.Int32:
		return "int32", true
	case reflect.Int, reflect.Int64:
		return "int64", true
	case reflect.Float32:
		return "float32", true
	case reflect.Float64:
		return "float64", true
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return "bytes", true
		}
		inner, ok := ScalarTag(t.Elem())
		if !ok {
			return "", false
		}
		return "array<" + inner + ">", true
	}
	return "", false
}

// IsEntity reports whether t (or its pointer) embeds Object.
func IsEntity(t reflect.Type) bool {
	if t == nil {
		return false
	}
	t = Indirect(t)
	if t.Kind() != reflect.Struct {
		return false
	}
	return reflect.PointerTo(t).Implements(entityType)
}

// EntityElem returns the entity element type of a slice of entities.
func EntityElem(t reflect.Type) (reflect.Type, bool) {
	t = Indirect(t)
	if t.Kind() != reflect.Slice {
		return nil, false
	}
	elem := Indirect(t.Elem())
	if !IsEntity(elem) {
		return nil, false
	}
	return elem, true
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// Quote renders s as an EdgeQL string literal.
func Quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
