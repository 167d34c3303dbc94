package schema

import (
	"fmt"
	"reflect"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EnumPolicy selects how enum values are written into a query.
type EnumPolicy int

const (
	// EnumDefault renders the underlying integer.
	EnumDefault EnumPolicy = iota
	// EnumLower renders the lowercased String() form as a string literal.
	EnumLower
	// EnumNumeric renders the underlying integer.
	EnumNumeric
)

// EnumPolicer lets an enum type choose its serialization policy.
type EnumPolicer interface {
	EnumPolicy() EnumPolicy
}

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

// IsEnum reports whether t is a named integer type with a String method.
func IsEnum(t reflect.Type) bool {
	if t.Name() == "" || t.PkgPath() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return false
	}
	return t.Implements(stringerType)
}

// PolicyOf returns the serialization policy declared by an enum value.
func PolicyOf(v reflect.Value) EnumPolicy {
	if p, ok := v.Interface().(EnumPolicer); ok {
		return p.EnumPolicy()
	}
	return EnumDefault
}

// EnumLiteral renders an enum value under its policy. The second result is
// false for a policy this package does not know.
func EnumLiteral(v reflect.Value) (string, bool) {
	switch PolicyOf(v) {
	case EnumLower:
		s := cases.Lower(language.Und).String(v.Interface().(fmt.Stringer).String())
		return Quote(s), true
	case EnumNumeric, EnumDefault:
		return enumNumber(v), true
	default:
		return "", false
	}
}

func enumNumber(v reflect.Value) string {
	if v.CanInt() {
		return strconv.FormatInt(v.Int(), 10)
	}
	return strconv.FormatUint(v.Uint(), 10)
}
