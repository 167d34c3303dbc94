// Package edgeql is the EdgeQL function façade. Each function returns an
// expression node the compiler resolves through the operator registry
// under the key "EdgeQL.<Name>".
//
//	qb.Filter(func(p *expr.Param) expr.Expr {
//		return expr.Gt(edgeql.Count(p.Field("Friends")), expr.Lit(2))
//	})
package edgeql

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/eqb/expr"
)

var (
	tBool     = reflect.TypeFor[bool]()
	tInt64    = reflect.TypeFor[int64]()
	tFloat64  = reflect.TypeFor[float64]()
	tString   = reflect.TypeFor[string]()
	tStrings  = reflect.TypeFor[[]string]()
	tUUID     = reflect.TypeFor[uuid.UUID]()
	tTime     = reflect.TypeFor[time.Time]()
	tDecimal  = reflect.TypeFor[decimal.Decimal]()
	tJSON     = reflect.TypeFor[json.RawMessage]()
	tTypeName = reflect.TypeFor[reflect.Type]()
)

func fn(name string, ret reflect.Type, args ...expr.Expr) *expr.Call {
	return expr.NewCall(expr.DeclEdgeQL, name, ret, nil, args...)
}

func elemOf(e expr.Expr) reflect.Type {
	t := e.Type()
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	return t
}

// Generic

func Equals(a, b expr.Expr) *expr.Call           { return fn("Equals", tBool, a, b) }
func NotEqual(a, b expr.Expr) *expr.Call         { return fn("NotEqual", tBool, a, b) }
func Len(a expr.Expr) *expr.Call                 { return fn("Len", tInt64, a) }
func Contains(source, elem expr.Expr) *expr.Call { return fn("Contains", tBool, source, elem) }
func Find(source, elem expr.Expr) *expr.Call     { return fn("Find", tInt64, source, elem) }
func Coalesce(a, b expr.Expr) *expr.Call         { return fn("Coalesce", a.Type(), a, b) }

// If is `then if cond else otherwise`.
func If(cond, then, otherwise expr.Expr) *expr.Call {
	return fn("If", then.Type(), cond, then, otherwise)
}

// Sets

func Count(set expr.Expr) *expr.Call     { return fn("Count", tInt64, set) }
func Sum(set expr.Expr) *expr.Call       { return fn("Sum", elemOf(set), set) }
func Min(set expr.Expr) *expr.Call       { return fn("Min", elemOf(set), set) }
func Max(set expr.Expr) *expr.Call       { return fn("Max", elemOf(set), set) }
func All(set expr.Expr) *expr.Call       { return fn("All", tBool, set) }
func Any(set expr.Expr) *expr.Call       { return fn("Any", tBool, set) }
func Exists(set expr.Expr) *expr.Call    { return fn("Exists", tBool, set) }
func Distinct(set expr.Expr) *expr.Call  { return fn("Distinct", set.Type(), set) }
func Union(a, b expr.Expr) *expr.Call    { return fn("Union", a.Type(), a, b) }
func Detached(set expr.Expr) *expr.Call  { return fn("Detached", set.Type(), set) }
func Enumerate(set expr.Expr) *expr.Call { return fn("Enumerate", set.Type(), set) }

func AssertSingle(set expr.Expr) *expr.Call   { return fn("AssertSingle", elemOf(set), set) }
func AssertExists(set expr.Expr) *expr.Call   { return fn("AssertExists", set.Type(), set) }
func AssertDistinct(set expr.Expr) *expr.Call { return fn("AssertDistinct", set.Type(), set) }

// Arrays

func ArrayAgg(set expr.Expr) *expr.Call {
	return fn("ArrayAgg", reflect.SliceOf(elemOf(set)), set)
}
func ArrayUnpack(arr expr.Expr) *expr.Call     { return fn("ArrayUnpack", arr.Type(), arr) }
func ArrayGet(arr, index expr.Expr) *expr.Call { return fn("ArrayGet", elemOf(arr), arr, index) }
func ArrayJoin(arr, delim expr.Expr) *expr.Call {
	return fn("ArrayJoin", tString, arr, delim)
}

// Strings

func StrLower(s expr.Expr) *expr.Call         { return fn("StrLower", tString, s) }
func StrUpper(s expr.Expr) *expr.Call         { return fn("StrUpper", tString, s) }
func StrTitle(s expr.Expr) *expr.Call         { return fn("StrTitle", tString, s) }
func StrRepeat(s, n expr.Expr) *expr.Call     { return fn("StrRepeat", tString, s, n) }
func StrSplit(s, delim expr.Expr) *expr.Call  { return fn("StrSplit", tStrings, s, delim) }
func ReTest(pattern, s expr.Expr) *expr.Call  { return fn("ReTest", tBool, pattern, s) }
func ReMatch(pattern, s expr.Expr) *expr.Call { return fn("ReMatch", tStrings, pattern, s) }
func ReReplace(pattern, sub, s expr.Expr) *expr.Call {
	return fn("ReReplace", tString, pattern, sub, s)
}

// StrTrim trims whitespace, or the characters in chars when given.
func StrTrim(s expr.Expr, chars ...expr.Expr) *expr.Call {
	return fn("StrTrim", tString, append([]expr.Expr{s}, chars...)...)
}

// StrPadStart pads s to n characters, with fill when given.
func StrPadStart(s, n expr.Expr, fill ...expr.Expr) *expr.Call {
	return fn("StrPadStart", tString, append([]expr.Expr{s, n}, fill...)...)
}

// StrPadEnd pads s to n characters, with fill when given.
func StrPadEnd(s, n expr.Expr, fill ...expr.Expr) *expr.Call {
	return fn("StrPadEnd", tString, append([]expr.Expr{s, n}, fill...)...)
}

// Math

func Abs(n expr.Expr) *expr.Call    { return fn("Abs", n.Type(), n) }
func Ceil(n expr.Expr) *expr.Call   { return fn("Ceil", n.Type(), n) }
func Floor(n expr.Expr) *expr.Call  { return fn("Floor", n.Type(), n) }
func Mean(set expr.Expr) *expr.Call { return fn("Mean", tFloat64, set) }
func Random() *expr.Call            { return fn("Random", tFloat64) }

// Round rounds n, to digits decimal places when given.
func Round(n expr.Expr, digits ...expr.Expr) *expr.Call {
	return fn("Round", n.Type(), append([]expr.Expr{n}, digits...)...)
}

// Conversion. The optional argument is an EdgeQL format string.

func ToStr(v expr.Expr, format ...expr.Expr) *expr.Call {
	return fn("ToStr", tString, append([]expr.Expr{v}, format...)...)
}
func ToInt64(v expr.Expr, format ...expr.Expr) *expr.Call {
	return fn("ToInt64", tInt64, append([]expr.Expr{v}, format...)...)
}
func ToFloat64(v expr.Expr, format ...expr.Expr) *expr.Call {
	return fn("ToFloat64", tFloat64, append([]expr.Expr{v}, format...)...)
}
func ToDecimal(v expr.Expr, format ...expr.Expr) *expr.Call {
	return fn("ToDecimal", tDecimal, append([]expr.Expr{v}, format...)...)
}
func ToDatetime(v expr.Expr, format ...expr.Expr) *expr.Call {
	return fn("ToDatetime", tTime, append([]expr.Expr{v}, format...)...)
}
func ToJSON(v expr.Expr) *expr.Call     { return fn("ToJSON", tJSON, v) }
func JSONTypeof(v expr.Expr) *expr.Call { return fn("JSONTypeof", tString, v) }

// JSONGet reads the element at path inside a json value.
func JSONGet(v expr.Expr, path ...expr.Expr) *expr.Call {
	if len(path) == 0 {
		return fn("JSONGet", tJSON, v)
	}
	return fn("JSONGet", tJSON, v, expr.Array(path...)).Spread()
}

// Time

func DatetimeCurrent() *expr.Call       { return fn("DatetimeCurrent", tTime) }
func DatetimeOfStatement() *expr.Call   { return fn("DatetimeOfStatement", tTime) }
func DatetimeOfTransaction() *expr.Call { return fn("DatetimeOfTransaction", tTime) }
func DatetimeGet(dt, unit expr.Expr) *expr.Call {
	return fn("DatetimeGet", tFloat64, dt, unit)
}
func DurationToSeconds(d expr.Expr) *expr.Call { return fn("DurationToSeconds", tDecimal, d) }

// Types

func UUIDGenerate() *expr.Call          { return fn("UUIDGenerate", tUUID) }
func Introspect(t expr.Expr) *expr.Call { return fn("Introspect", tTypeName, t) }
func TypeOf(v expr.Expr) *expr.Call     { return fn("TypeOf", tTypeName, v) }

// Is tests whether v is of object type T.
func Is[T any](v expr.Expr) *expr.Call {
	return fn("Is", tBool, v).WithTypeArgs(reflect.TypeFor[T]())
}

// IsNot tests whether v is not of object type T.
func IsNot[T any](v expr.Expr) *expr.Call {
	return fn("IsNot", tBool, v).WithTypeArgs(reflect.TypeFor[T]())
}

// Cast is <T>v.
func Cast[T any](v expr.Expr) *expr.Call {
	t := reflect.TypeFor[T]()
	return fn("Cast", t, v).WithTypeArgs(t)
}

// TypeUnion is (A | B | ...) over type expressions.
func TypeUnion(a, b expr.Expr, more ...expr.Expr) *expr.Call {
	if len(more) == 0 {
		return fn("TypeUnion", tTypeName, a, b)
	}
	return fn("TypeUnion", tTypeName, a, b, expr.Array(more...)).Spread()
}

// Links

// AddLink adds elem to the link set source inside an update shape:
// friends += elem.
func AddLink(source, elem expr.Expr) *expr.Call {
	return fn("AddLink", source.Type(), source, elem)
}

// RemoveLink removes elem from the link set source: friends -= elem.
func RemoveLink(source, elem expr.Expr) *expr.Call {
	return fn("RemoveLink", source.Type(), source, elem)
}

// Var references a query variable bound by With or For. Field access on the
// result renders name.path.
func Var[T any](name string) *expr.Call {
	return fn("Var", reflect.TypeFor[T](), expr.Lit(name))
}
