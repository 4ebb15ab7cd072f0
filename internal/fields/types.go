// Package fields defines the column metadata model shared by every backend:
// field descriptors, row layouts, rows, and explicit struct bindings.
//
// A Layout is the ordered schema describing a row's shape. Layouts are built
// once, either from an explicit Binding registration or from live schema
// introspection, and are immutable afterwards. A Row is a fixed-size boxed
// value array aligned 1:1 with its Layout's fields; it is meaningless without
// the paired Layout.
package fields

import "fmt"

// DataType is the logical datatype of a field. Backends may store a field as
// a different type (see Field.TypeAtDatabase), e.g. Int8 promoted to Int16 on
// engines without 8-bit integers.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUInt8
	TypeUInt16
	TypeUInt32
	TypeUInt64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeString
	TypeBinary
	TypeDecimal
	TypeDateTime
	TypeTimeSpan
	TypeEnum
	TypeUser
)

var dataTypeNames = map[DataType]string{
	TypeUnknown:  "unknown",
	TypeInt8:     "int8",
	TypeInt16:    "int16",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeUInt8:    "uint8",
	TypeUInt16:   "uint16",
	TypeUInt32:   "uint32",
	TypeUInt64:   "uint64",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeBool:     "bool",
	TypeString:   "string",
	TypeBinary:   "binary",
	TypeDecimal:  "decimal",
	TypeDateTime: "datetime",
	TypeTimeSpan: "timespan",
	TypeEnum:     "enum",
	TypeUser:     "user",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("datatype(%d)", int(t))
}

// IsInteger reports whether t is one of the signed or unsigned integer types.
func (t DataType) IsInteger() bool {
	return t >= TypeInt8 && t <= TypeUInt64
}

// Flags is the bitset of structural field properties.
type Flags uint8

const (
	FlagNone          Flags = 0
	FlagID            Flags = 1 << 0
	FlagAutoIncrement Flags = 1 << 1
	FlagUnique        Flags = 1 << 2
	FlagIndex         Flags = 1 << 3
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

func (f Flags) String() string {
	if f == FlagNone {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f.Has(FlagID) {
		add("id")
	}
	if f.Has(FlagAutoIncrement) {
		add("autoincrement")
	}
	if f.Has(FlagUnique) {
		add("unique")
	}
	if f.Has(FlagIndex) {
		add("index")
	}
	return s
}

// DateTimeKind states which timezone a DateTime field's values are expressed
// in. Values are converted to the field's declared kind before encoding.
type DateTimeKind int

const (
	KindUnspecified DateTimeKind = iota
	KindUTC
	KindLocal
)

func (k DateTimeKind) String() string {
	switch k {
	case KindUTC:
		return "utc"
	case KindLocal:
		return "local"
	default:
		return "unspecified"
	}
}

// DateTimeType selects the storage representation of DateTime and TimeSpan
// fields.
type DateTimeType int

const (
	// DateTimeNative passes the native temporal value through, subject to
	// the backend's precision.
	DateTimeNative DateTimeType = iota
	// DateTimeBigIntTicks stores the raw 100ns tick count as a 64-bit integer.
	DateTimeBigIntTicks
	// DateTimeBigIntHumanReadable stores an integer shaped like
	// yyyyMMddHHmmssfff and parses it back with the same format.
	DateTimeBigIntHumanReadable
	// DateTimeDecimalSeconds stores ticks divided by ticks-per-second as a
	// fixed-point value.
	DateTimeDecimalSeconds
	// DateTimeDoubleSeconds stores ticks divided by ticks-per-second as a
	// floating point value.
	DateTimeDoubleSeconds
	// DateTimeDoubleEpoch stores seconds since the Unix epoch as a floating
	// point value.
	DateTimeDoubleEpoch
)

func (t DateTimeType) String() string {
	switch t {
	case DateTimeNative:
		return "native"
	case DateTimeBigIntTicks:
		return "bigint-ticks"
	case DateTimeBigIntHumanReadable:
		return "bigint-human-readable"
	case DateTimeDecimalSeconds:
		return "decimal-seconds"
	case DateTimeDoubleSeconds:
		return "double-seconds"
	case DateTimeDoubleEpoch:
		return "double-epoch"
	default:
		return fmt.Sprintf("datetimetype(%d)", int(t))
	}
}

// StringEncoding constrains the characters a String field accepts. The zero
// value is UTF-8.
type StringEncoding int

const (
	EncodingUTF8 StringEncoding = iota
	EncodingASCII
	EncodingUTF16
	EncodingUTF32
)

func (e StringEncoding) String() string {
	switch e {
	case EncodingASCII:
		return "ascii"
	case EncodingUTF16:
		return "utf-16"
	case EncodingUTF32:
		return "utf-32"
	default:
		return "utf-8"
	}
}
