package compiler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

var (
	typeType    = reflect.TypeFor[reflect.Type]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
	timeType    = reflect.TypeFor[time.Time]()
	durType     = reflect.TypeFor[time.Duration]()
)

// EmptySet is the EdgeQL literal for a missing value.
const EmptySet = "{}"

func (c *exprContext) literal(v reflect.Value) (string, error) {
	return Literal(v, c.qc.IsVariable, *c.char)
}

// Literal renders a host value inline. raw leaves strings unquoted, for
// variable names. char renders integers as the one-character string of
// their code point.
func Literal(v reflect.Value, raw, char bool) (string, error) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.Type().Implements(typeType) && !v.IsNil() {
			return TypeLiteral(v.Interface().(reflect.Type)), nil
		}
		if v.IsNil() {
			return EmptySet, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return EmptySet, nil
	}

	t := v.Type()
	switch t {
	case schema.CharType():
		return schema.Quote(string(rune(v.Int()))), nil
	case uuidType:
		return `<uuid>"` + v.Interface().(uuid.UUID).String() + `"`, nil
	case decimalType:
		return v.Interface().(decimal.Decimal).String() + "n", nil
	case timeType:
		return `<datetime>"` + v.Interface().(time.Time).UTC().Format(time.RFC3339Nano) + `"`, nil
	case durType:
		return fmt.Sprintf(`<duration>"%d microseconds"`, v.Interface().(time.Duration).Microseconds()), nil
	}

	if schema.IsEnum(t) {
		s, ok := schema.EnumLiteral(v)
		if !ok {
			return "", qerr.New(qerr.CodeUnknownEnumPolicy, t.String(), "policy %d", schema.PolicyOf(v))
		}
		return s, nil
	}

	switch t.Kind() {
	case reflect.String:
		if raw {
			return v.String(), nil
		}
		return schema.Quote(v.String()), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if char {
			return schema.Quote(string(rune(v.Int()))), nil
		}
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if char {
			return schema.Quote(string(rune(v.Uint()))), nil
		}
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return bytesLiteral(v), nil
		}
		parts := make([]string, v.Len())
		for i := range parts {
			s, err := Literal(v.Index(i), raw, char)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	}
	return "", qerr.New(qerr.CodeUnmappedScalar, t.String(), "no literal form")
}

func bytesLiteral(v reflect.Value) string {
	var sb strings.Builder
	sb.WriteString(`b"`)
	for i := 0; i < v.Len(); i++ {
		fmt.Fprintf(&sb, `\x%02x`, byte(v.Index(i).Uint()))
	}
	sb.WriteString(`"`)
	return sb.String()
}

func (c *exprContext) convertCaptured(n *expr.Captured) (string, qctx.Args, error) {
	v := reflect.ValueOf(n.Value)
	if v.IsValid() && schema.IsEntity(v.Type()) {
		text, args, ok, err := EntityRef(c.qc, v, c.single)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, qerr.New(qerr.CodeReferenceExtraction, v.Type().String(),
				"entity is neither a tracked result nor a sub-query")
		}
		return text, args, nil
	}
	return c.bind(v, n.Type())
}

func (c *exprContext) bind(v reflect.Value, declared reflect.Type) (string, qctx.Args, error) {
	return bind(c.qc, v, declared, *c.char)
}

// Bind registers v as a query argument and returns `<tag>$name`. Nil values
// render as the empty set and enums render inline under their policy.
func Bind(ctx *qctx.Context, v reflect.Value, declared reflect.Type) (string, qctx.Args, error) {
	return bind(ctx, v, declared, false)
}

// bind is Bind with a char context: integers bind as the one-character
// string of their code point.
func bind(ctx *qctx.Context, v reflect.Value, declared reflect.Type, char bool) (string, qctx.Args, error) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return EmptySet, nil, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return EmptySet, nil, nil
	}
	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Map) && v.IsNil() {
		return EmptySet, nil, nil
	}

	t := v.Type()
	if schema.IsEnum(t) {
		s, err := Literal(v, false, false)
		return s, nil, err
	}
	if ctx.IsVariable && t.Kind() == reflect.String {
		return v.String(), nil, nil
	}
	if char {
		if r, ok := codePoint(v); ok {
			name := ctx.NextArgName()
			return "<str>$" + name, qctx.Args{{Name: name, Value: string(r)}}, nil
		}
	}

	tag, ok := schema.ScalarTag(t)
	if !ok && declared != nil {
		tag, ok = schema.ScalarTag(declared)
	}
	if !ok {
		return "", nil, qerr.New(qerr.CodeUnmappedScalar, t.String(), "cannot bind argument")
	}

	value := v.Interface()
	if t == schema.CharType() {
		value = string(rune(v.Int()))
	}
	name := ctx.NextArgName()
	return "<" + tag + ">$" + name, qctx.Args{{Name: name, Value: value}}, nil
}

// codePoint reads an integer value as a rune.
func codePoint(v reflect.Value) (rune, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rune(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rune(v.Uint()), true
	}
	return 0, false
}
