package ir

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FromParameter lowers a query parameter value to a Value.
//
// Scalars without a canonical form are written as tagged text: uuids,
// decimals, floats, datetimes and durations become strings, bytes become
// base64. Slices become arrays.
func FromParameter(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil parameter")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case uuid.UUID:
		return String(val.String()), nil
	case decimal.Decimal:
		return String(val.String()), nil
	case time.Time:
		return String(val.UTC().Format(time.RFC3339Nano)), nil
	case time.Duration:
		return String(val.String()), nil
	case json.RawMessage:
		return String(string(val)), nil
	case []byte:
		return String(base64.StdEncoding.EncodeToString(val)), nil
	case float32:
		return String(strconv.FormatFloat(float64(val), 'g', -1, 32)), nil
	case float64:
		return String(strconv.FormatFloat(val, 'g', -1, 64)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Int(int64(rv.Uint())), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, fmt.Errorf("nil parameter")
		}
		return FromParameter(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		arr := make(Array, rv.Len())
		for i := range arr {
			e, err := FromParameter(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unsupported parameter type %T", v)
}

// FromParameters lowers a parameter map to an Object.
func FromParameters(params map[string]any) (Object, error) {
	obj := make(Object, len(params))
	for name, v := range params {
		val, err := FromParameter(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		obj[name] = val
	}
	return obj, nil
}
