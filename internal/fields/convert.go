package fields

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Numeric coercion helpers shared by bindings and the value codec. Database
// drivers box numbers in whatever width they like; these normalize without
// silently losing bits.

func AsInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > 1<<63-1 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case uint:
		if uint64(n) > 1<<63-1 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	case float32:
		return AsInt64(float64(n))
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		// Defined integer types (enums) land here.
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > 1<<63-1 {
				return 0, fmt.Errorf("value %d overflows int64", u)
			}
			return int64(u), nil
		}
		return 0, fmt.Errorf("cannot read %T as integer", v)
	}
}

func AsUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case string:
		return strconv.ParseUint(n, 10, 64)
	case []byte:
		return strconv.ParseUint(string(n), 10, 64)
	default:
		i, err := AsInt64(v)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, fmt.Errorf("value %d is negative", i)
		}
		return uint64(i), nil
	}
}

func AsFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	default:
		i, err := AsInt64(v)
		if err != nil {
			return 0, fmt.Errorf("cannot read %T as float", v)
		}
		return float64(i), nil
	}
}

func AsBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case []byte:
		return strconv.ParseBool(string(b))
	default:
		i, err := AsInt64(v)
		if err != nil {
			return false, fmt.Errorf("cannot read %T as bool", v)
		}
		return i != 0, nil
	}
}

func AsString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("cannot read %T as string", v)
	}
}

func AsBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("cannot read %T as binary", v)
	}
}

func AsTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("cannot read %T as datetime", v)
	}
}

func AsDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case int64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("cannot read %T as timespan", v)
	}
}
