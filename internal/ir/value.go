package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed canonical value. There is no float or null variant.
type Value interface {
	irValue()
}

// String is a string value.
type String string

// Int is an integer value.
type Int int64

// Bool is a boolean value.
type Bool bool

// Array is an ordered list of values.
type Array []Value

// Object maps keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (String) irValue() {}
func (Int) irValue()    {}
func (Bool) irValue()   {}
func (Array) irValue()  {}
func (Object) irValue() {}

// SortedKeys returns keys in RFC 8785 order: by UTF-16 code units, which
// differs from Go's byte order for characters outside the BMP.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
