package operators

import (
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/qerr"
)

var (
	tBool     = reflect.TypeFor[bool]()
	tInt64    = reflect.TypeFor[int64]()
	tFloat64  = reflect.TypeFor[float64]()
	tString   = reflect.TypeFor[string]()
	tStrings  = reflect.TypeFor[[]string]()
	tChar     = reflect.TypeFor[expr.Char]()
	tUUID     = reflect.TypeFor[uuid.UUID]()
	tTime     = reflect.TypeFor[time.Time]()
	tDecimal  = reflect.TypeFor[decimal.Decimal]()
	tJSON     = reflect.TypeFor[json.RawMessage]()
	tTypeName = reflect.TypeFor[reflect.Type]()
)

var binaryTable = map[expr.BinaryOp]Operator{
	expr.OpEq:          {Template: "{0} = {1}", Return: tBool},
	expr.OpNeq:         {Template: "{0} != {1}", Return: tBool},
	expr.OpLt:          {Template: "{0} < {1}", Return: tBool},
	expr.OpLe:          {Template: "{0} <= {1}", Return: tBool},
	expr.OpGt:          {Template: "{0} > {1}", Return: tBool},
	expr.OpGe:          {Template: "{0} >= {1}", Return: tBool},
	expr.OpAnd:         {Template: "{0} and {1}", Return: tBool},
	expr.OpOr:          {Template: "{0} or {1}", Return: tBool},
	expr.OpAdd:         {Template: "{0} + {1}"},
	expr.OpSub:         {Template: "{0} - {1}"},
	expr.OpMul:         {Template: "{0} * {1}"},
	expr.OpDiv:         {Template: "{0} / {1}"},
	expr.OpMod:         {Template: "{0} % {1}"},
	expr.OpPow:         {Template: "{0} ^ {1}"},
	expr.OpCoalesce:    {Template: "{0} ?? {1}"},
	expr.OpConcat:      {Template: "{0} ++ {1}"},
	expr.OpIn:          {Template: "{0} in {1}", Return: tBool},
	expr.OpNotIn:       {Template: "{0} not in {1}", Return: tBool},
	expr.OpLike:        {Template: "{0} like {1}", Return: tBool},
	expr.OpILike:       {Template: "{0} ilike {1}", Return: tBool},
	expr.OpCoalesceEq:  {Template: "{0} ?= {1}", Return: tBool},
	expr.OpCoalesceNeq: {Template: "{0} ?!= {1}", Return: tBool},
}

var unaryTable = map[expr.UnaryOp]Operator{
	expr.OpNot:    {Template: "not {0}", Return: tBool},
	expr.OpNegate: {Template: "-{0}"},
}

// methodTable holds reserved instance operators and the EdgeQL function
// façade. Instance keys take the receiver as argument 0.
var methodTable = map[string]Operator{
	"string.Length":   {Template: "len({0})", Return: tInt64},
	"slice.Length":    {Template: "len({0})", Return: tInt64},
	"string.Index":    {Template: "{0}[{1}]", Return: tChar},
	"slice.Index":     {Template: "{0}[{1}]"},
	"string.Slice":    {Template: "{0}[{1}:{2?}]", Return: tString},
	"slice.Slice":     {Template: "{0}[{1}:{2?}]"},
	"string.Contains": {Template: "contains({0}, {1})", Return: tBool},
	"slice.Contains":  {Template: "contains({0}, {1})", Return: tBool},
	"string.IndexOf":  {Template: "find({0}, {1})", Return: tInt64},
	"slice.IndexOf":   {Template: "find({0}, {1})", Return: tInt64},
	"string.ToLower":  {Template: "str_lower({0})", Return: tString},
	"string.ToUpper":  {Template: "str_upper({0})", Return: tString},
	"string.Concat":   {Template: "{0} ++ {1}", Return: tString},

	// generic
	"EdgeQL.Equals":   {Template: "{0} ?= {1}", Return: tBool},
	"EdgeQL.NotEqual": {Template: "{0} ?!= {1}", Return: tBool},
	"EdgeQL.Len":      {Template: "len({0})", Return: tInt64},
	"EdgeQL.Contains": {Template: "contains({0}, {1})", Return: tBool},
	"EdgeQL.Find":     {Template: "find({0}, {1})", Return: tInt64},
	"EdgeQL.Coalesce": {Template: "{0} ?? {1}"},
	"EdgeQL.If":       {Template: "{1} if {0} else {2}"},

	// sets
	"EdgeQL.Count":          {Template: "count({0})", Return: tInt64},
	"EdgeQL.Sum":            {Template: "sum({0})"},
	"EdgeQL.Min":            {Template: "min({0})"},
	"EdgeQL.Max":            {Template: "max({0})"},
	"EdgeQL.All":            {Template: "all({0})", Return: tBool},
	"EdgeQL.Any":            {Template: "any({0})", Return: tBool},
	"EdgeQL.Exists":         {Template: "exists {0}", Return: tBool},
	"EdgeQL.Distinct":       {Template: "distinct {0}"},
	"EdgeQL.Union":          {Template: "{0} union {1}"},
	"EdgeQL.Detached":       {Template: "detached {0}"},
	"EdgeQL.Enumerate":      {Template: "enumerate({0})"},
	"EdgeQL.AssertSingle":   {Template: "assert_single({0})"},
	"EdgeQL.AssertExists":   {Template: "assert_exists({0})"},
	"EdgeQL.AssertDistinct": {Template: "assert_distinct({0})"},

	// arrays
	"EdgeQL.ArrayAgg":    {Template: "array_agg({0})"},
	"EdgeQL.ArrayUnpack": {Template: "array_unpack({0})"},
	"EdgeQL.ArrayGet":    {Template: "array_get({0}, {1})"},
	"EdgeQL.ArrayJoin":   {Template: "array_join({0}, {1})", Return: tString},

	// strings
	"EdgeQL.StrLower":    {Template: "str_lower({0})", Return: tString},
	"EdgeQL.StrUpper":    {Template: "str_upper({0})", Return: tString},
	"EdgeQL.StrTitle":    {Template: "str_title({0})", Return: tString},
	"EdgeQL.StrTrim":     {Template: "str_trim({0}, {1?})", Return: tString},
	"EdgeQL.StrPadStart": {Template: "str_pad_start({0}, {1}, {2?})", Return: tString},
	"EdgeQL.StrPadEnd":   {Template: "str_pad_end({0}, {1}, {2?})", Return: tString},
	"EdgeQL.StrRepeat":   {Template: "str_repeat({0}, {1})", Return: tString},
	"EdgeQL.StrSplit":    {Template: "str_split({0}, {1})", Return: tStrings},
	"EdgeQL.ReTest":      {Template: "re_test({0}, {1})", Return: tBool},
	"EdgeQL.ReMatch":     {Template: "re_match({0}, {1})", Return: tStrings},
	"EdgeQL.ReReplace":   {Template: "re_replace({0}, {1}, {2})", Return: tString},

	// math
	"EdgeQL.Abs":    {Template: "math::abs({0})"},
	"EdgeQL.Ceil":   {Template: "math::ceil({0})"},
	"EdgeQL.Floor":  {Template: "math::floor({0})"},
	"EdgeQL.Mean":   {Template: "math::mean({0})", Return: tFloat64},
	"EdgeQL.Round":  {Template: "round({0}, {1?})"},
	"EdgeQL.Random": {Template: "random()", Return: tFloat64},

	// conversion
	"EdgeQL.ToStr":      {Template: "to_str({0}, {1?})", Return: tString},
	"EdgeQL.ToInt64":    {Template: "to_int64({0}, {1?})", Return: tInt64},
	"EdgeQL.ToFloat64":  {Template: "to_float64({0}, {1?})", Return: tFloat64},
	"EdgeQL.ToDecimal":  {Template: "to_decimal({0}, {1?})", Return: tDecimal},
	"EdgeQL.ToJSON":     {Template: "to_json({0})", Return: tJSON},
	"EdgeQL.JSONGet":    {Template: "json_get({0}{, :1+})", Return: tJSON},
	"EdgeQL.JSONTypeof": {Template: "json_typeof({0})", Return: tString},

	// time
	"EdgeQL.DatetimeCurrent":       {Template: "std::datetime_current()", Return: tTime},
	"EdgeQL.DatetimeOfStatement":   {Template: "std::datetime_of_statement()", Return: tTime},
	"EdgeQL.DatetimeOfTransaction": {Template: "std::datetime_of_transaction()", Return: tTime},
	"EdgeQL.DatetimeGet":           {Template: "datetime_get({0}, {1})", Return: tFloat64},
	"EdgeQL.ToDatetime":            {Template: "to_datetime({0}, {1?})", Return: tTime},
	"EdgeQL.DurationToSeconds":     {Template: "std::duration_to_seconds({0})", Return: tDecimal},

	// ids and types
	"EdgeQL.UUIDGenerate": {Template: "uuid_generate_v1mc()", Return: tUUID},
	"EdgeQL.Is":           {Template: "{0} is {1}", Return: tBool, TypeParams: map[int]int{1: 0}},
	"EdgeQL.IsNot":        {Template: "{0} is not {1}", Return: tBool, TypeParams: map[int]int{1: 0}},
	"EdgeQL.Cast":         {Template: "<{1}>{0}", TypeParams: map[int]int{1: 0}},
	"EdgeQL.Introspect":   {Template: "introspect {0}", Return: tTypeName},
	"EdgeQL.TypeOf":       {Template: "introspect (typeof {0})", Return: tTypeName},
	"EdgeQL.TypeUnion":    {Template: "({0} | {1}{ | :2+})", Return: tTypeName},

	// links and variables
	"EdgeQL.AddLink":    {Template: "+= {1}", SuppressSetOperand: true},
	"EdgeQL.RemoveLink": {Template: "-= {1}", SuppressSetOperand: true},
	"EdgeQL.Var":        {Template: "{0}", TracksVariable: true},
}

// functionReturns maps an EdgeQL function name to its Go return type.
var functionReturns map[string]reflect.Type

var funcCall = regexp.MustCompile(`^([\w:]+)\(`)

func init() {
	for k, op := range binaryTable {
		binaryTable[k] = mustParse(op)
	}
	for k, op := range unaryTable {
		unaryTable[k] = mustParse(op)
	}
	for k, op := range methodTable {
		methodTable[k] = mustParse(op)
	}

	functionReturns = make(map[string]reflect.Type)
	for _, key := range Keys() {
		op := methodTable[key]
		m := funcCall.FindStringSubmatch(op.Template)
		if m == nil || op.Return == nil {
			continue
		}
		if _, seen := functionReturns[m[1]]; !seen {
			functionReturns[m[1]] = op.Return
		}
	}
}

// Resolve returns the operator for a binary node kind.
func Resolve(op expr.BinaryOp) (Operator, bool) {
	o, ok := binaryTable[op]
	return o, ok
}

// ResolveUnary returns the operator for a unary node kind.
func ResolveUnary(op expr.UnaryOp) (Operator, bool) {
	o, ok := unaryTable[op]
	return o, ok
}

// ResolveMethod returns the operator registered under key.
func ResolveMethod(key string) (Operator, bool) {
	o, ok := methodTable[key]
	return o, ok
}

// LookupMethod is ResolveMethod returning ErrOperatorNotFound on a miss.
func LookupMethod(key string) (Operator, error) {
	o, ok := methodTable[key]
	if !ok {
		return Operator{}, qerr.New(qerr.CodeOperatorNotFound, key, "no operator registered")
	}
	return o, nil
}

// Keys lists every method key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(methodTable))
	for k := range methodTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReverseLookupFunction maps function-call text such as `count(.friends)`
// back to the Go type the function returns.
func ReverseLookupFunction(text string) (reflect.Type, bool) {
	m := funcCall.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	t, ok := functionReturns[m[1]]
	return t, ok
}
