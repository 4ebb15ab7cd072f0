// Package codec converts between local in-memory values and database wire
// values, per field descriptor and dialect. Conversions never mutate their
// inputs and raise on range or format violations instead of silently
// truncating.
package codec

import (
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// DefaultDecimal is the precision.scale applied to decimal fields that do
// not declare one.
const DefaultDecimal = 28.08

// Codec holds the dialect-dependent conversion switches. The zero value is a
// strict IEEE-faithful codec.
type Codec struct {
	// InfinitySentinels substitutes ±Inf with the type's max/min finite
	// value on write and recovers them on read, for engines that cannot
	// store IEEE infinities.
	InfinitySentinels bool

	// DefaultDecimal overrides the package default precision.scale for
	// decimal fields without one. Zero means DefaultDecimal.
	DefaultDecimal float64
}

func (c Codec) defaultDecimal() (precision, scale int) {
	d := c.DefaultDecimal
	if d <= 0 {
		d = DefaultDecimal
	}
	precision = int(d)
	scale = int(math.Round((d - float64(precision)) * 100))
	return precision, scale
}

// DatabaseValue converts a local value into its database wire representation
// for the given field. nil input yields nil output unconditionally.
func (c Codec) DatabaseValue(f fields.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.DataType {
	case fields.TypeInt8, fields.TypeInt16, fields.TypeInt32, fields.TypeInt64:
		n, err := fields.AsInt64(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		if err := checkIntRange(f, n); err != nil {
			return nil, err
		}
		return n, nil

	case fields.TypeUInt8, fields.TypeUInt16, fields.TypeUInt32:
		n, err := fields.AsUint64(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		if err := checkUintRange(f, n); err != nil {
			return nil, err
		}
		return int64(n), nil

	case fields.TypeUInt64:
		n, err := fields.AsUint64(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		return n, nil

	case fields.TypeFloat32:
		x, err := fields.AsFloat64(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		if c.InfinitySentinels && math.IsInf(x, 0) {
			if x > 0 {
				return float32(math.MaxFloat32), nil
			}
			return float32(-math.MaxFloat32), nil
		}
		if !math.IsInf(x, 0) && math.Abs(x) > math.MaxFloat32 {
			return nil, &RangeError{Field: f.Name, Value: v, Max: math.MaxFloat32}
		}
		return float32(x), nil

	case fields.TypeFloat64:
		x, err := fields.AsFloat64(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		if c.InfinitySentinels && math.IsInf(x, 0) {
			if x > 0 {
				return math.MaxFloat64, nil
			}
			return -math.MaxFloat64, nil
		}
		return x, nil

	case fields.TypeBool:
		b, err := fields.AsBool(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		return b, nil

	case fields.TypeString:
		s, err := fields.AsString(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		if err := checkString(f, s); err != nil {
			return nil, err
		}
		return s, nil

	case fields.TypeBinary:
		b, err := fields.AsBytes(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		if f.MaximumLength > 0 && len(b) > int(f.MaximumLength) {
			return nil, &ValueError{Field: f.Name, Value: fmt.Sprintf("%d bytes", len(b)),
				Reason: fmt.Sprintf("exceeds maximum length %d", int(f.MaximumLength))}
		}
		return b, nil

	case fields.TypeDecimal:
		x, err := fields.AsFloat64(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		dp, ds := c.defaultDecimal()
		precision, scale := f.DecimalPrecision(dp, ds)
		max := math.Pow(10, float64(precision-scale))
		if math.Abs(x) >= max {
			return nil, &RangeError{Field: f.Name, Value: v, Max: max}
		}
		return strconv.FormatFloat(x, 'f', scale, 64), nil

	case fields.TypeDateTime:
		t, err := fields.AsTime(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		// The zero datetime is the "unset" sentinel and stores as NULL.
		if t.IsZero() {
			return nil, nil
		}
		return encodeDateTime(f, t)

	case fields.TypeTimeSpan:
		d, err := fields.AsDuration(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		// The zero duration is the "unset" sentinel and stores as NULL, like
		// the zero datetime.
		if d == 0 {
			return nil, nil
		}
		return encodeTimeSpan(f, d)

	case fields.TypeEnum, fields.TypeUser:
		n, err := fields.AsInt64(v)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: v, Reason: "enum value is not an integer: " + err.Error()}
		}
		return n, nil

	default:
		return nil, &ValueError{Field: f.Name, Value: v, Reason: fmt.Sprintf("unsupported datatype %v", f.DataType)}
	}
}

// LocalValue converts a raw database value back into the local
// representation for the given field. It is the inverse of DatabaseValue for
// every representation except the documented lossy paths (narrow-float drift,
// infinity sentinel substitution, zero-datetime NULL collapse).
func (c Codec) LocalValue(f fields.Field, raw any) (any, error) {
	if raw == nil {
		// NULL temporals decode to their zero values, the inverse of the
		// zero-to-NULL collapse on write.
		switch f.DataType {
		case fields.TypeDateTime:
			return time.Time{}, nil
		case fields.TypeTimeSpan:
			return time.Duration(0), nil
		}
		return nil, nil
	}
	switch f.DataType {
	case fields.TypeInt8, fields.TypeInt16, fields.TypeInt32, fields.TypeInt64:
		n, err := fields.AsInt64(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return n, nil

	case fields.TypeUInt8, fields.TypeUInt16, fields.TypeUInt32:
		n, err := fields.AsUint64(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return int64(n), nil

	case fields.TypeUInt64:
		n, err := fields.AsUint64(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return n, nil

	case fields.TypeFloat32:
		x, err := fields.AsFloat64(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		if c.InfinitySentinels {
			switch float32(x) {
			case float32(math.MaxFloat32):
				return float32(math.Inf(1)), nil
			case float32(-math.MaxFloat32):
				return float32(math.Inf(-1)), nil
			}
		}
		return float32(x), nil

	case fields.TypeFloat64:
		x, err := fields.AsFloat64(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		if c.InfinitySentinels {
			switch x {
			case math.MaxFloat64:
				return math.Inf(1), nil
			case -math.MaxFloat64:
				return math.Inf(-1), nil
			}
		}
		return x, nil

	case fields.TypeBool:
		b, err := fields.AsBool(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return b, nil

	case fields.TypeString:
		s, err := fields.AsString(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return s, nil

	case fields.TypeBinary:
		b, err := fields.AsBytes(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return b, nil

	case fields.TypeDecimal:
		x, err := fields.AsFloat64(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return x, nil

	case fields.TypeDateTime:
		return decodeDateTime(f, raw)

	case fields.TypeTimeSpan:
		return decodeTimeSpan(f, raw)

	case fields.TypeEnum, fields.TypeUser:
		n, err := fields.AsInt64(raw)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: raw, Reason: "unparseable enum value: " + err.Error()}
		}
		if f.Boxer != nil {
			return f.Boxer(n), nil
		}
		return n, nil

	default:
		return nil, &ValueError{Field: f.Name, Value: raw, Reason: fmt.Sprintf("unsupported datatype %v", f.DataType)}
	}
}

func checkIntRange(f fields.Field, n int64) error {
	var min, max int64
	switch f.DataType {
	case fields.TypeInt8:
		min, max = math.MinInt8, math.MaxInt8
	case fields.TypeInt16:
		min, max = math.MinInt16, math.MaxInt16
	case fields.TypeInt32:
		min, max = math.MinInt32, math.MaxInt32
	default:
		return nil
	}
	if n < min || n > max {
		return &RangeError{Field: f.Name, Value: n, Max: float64(max) + 1}
	}
	return nil
}

func checkUintRange(f fields.Field, n uint64) error {
	var max uint64
	switch f.DataType {
	case fields.TypeUInt8:
		max = math.MaxUint8
	case fields.TypeUInt16:
		max = math.MaxUint16
	case fields.TypeUInt32:
		max = math.MaxUint32
	default:
		return nil
	}
	if n > max {
		return &RangeError{Field: f.Name, Value: n, Max: float64(max) + 1}
	}
	return nil
}

func checkString(f fields.Field, s string) error {
	if f.MaximumLength > 0 && len(s) > int(f.MaximumLength) {
		return &ValueError{Field: f.Name, Value: fmt.Sprintf("%d bytes", len(s)),
			Reason: fmt.Sprintf("exceeds maximum length %d", int(f.MaximumLength))}
	}
	switch f.StringEncoding {
	case fields.EncodingASCII:
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7f {
				return &ValueError{Field: f.Name, Value: s, Reason: "not representable in ASCII"}
			}
		}
	default:
		if !utf8.ValidString(s) {
			return &ValueError{Field: f.Name, Value: s, Reason: "invalid UTF-8 sequence"}
		}
	}
	return nil
}
