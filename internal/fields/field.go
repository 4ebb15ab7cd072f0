package fields

import (
	"fmt"
	"math"
)

// Field describes one column: its logical identity plus everything a backend
// needs to store and recover its values.
type Field struct {
	// Index is the 0-based position inside the layout. Stable once the
	// layout is built.
	Index int

	// Name is the logical field name.
	Name string

	// NameAtDatabase is the physical column name when it differs from Name.
	NameAtDatabase string

	// DataType is the logical datatype.
	DataType DataType

	// TypeAtDatabase is the datatype actually stored when the backend cannot
	// hold the logical one (e.g. Int8 stored as Int16). Zero means same as
	// DataType.
	TypeAtDatabase DataType

	Flags Flags

	// MaximumLength is overloaded: for String/Binary fields it is the byte
	// length; for Decimal fields it encodes precision.scale as a single
	// float, e.g. 28.08 = precision 28, scale 8.
	MaximumLength float64

	DateTimeKind   DateTimeKind
	DateTimeType   DateTimeType
	StringEncoding StringEncoding

	// Boxer converts a decoded underlying integer back into the declared
	// enum/user type. Registered explicitly (no reflection) by bindings.
	Boxer func(int64) any `json:"-"`
}

// DatabaseName returns the physical column name.
func (f Field) DatabaseName() string {
	if f.NameAtDatabase != "" {
		return f.NameAtDatabase
	}
	return f.Name
}

// StoredType returns the datatype the backend actually stores.
func (f Field) StoredType() DataType {
	if f.TypeAtDatabase != TypeUnknown {
		return f.TypeAtDatabase
	}
	return f.DataType
}

// DecimalPrecision decodes MaximumLength into precision and scale. A zero
// MaximumLength yields the given defaults.
func (f Field) DecimalPrecision(defaultPrecision, defaultScale int) (precision, scale int) {
	if f.MaximumLength <= 0 {
		return defaultPrecision, defaultScale
	}
	precision = int(f.MaximumLength)
	scale = int(math.Round((f.MaximumLength - float64(precision)) * 100))
	return precision, scale
}

// StructureEquals reports whether two fields are structurally equal: same
// name, logical datatype and flags. Physical storage details are not part of
// the structural identity.
func (f Field) StructureEquals(other Field) bool {
	return f.Name == other.Name && f.DataType == other.DataType && f.Flags == other.Flags
}

func (f Field) String() string {
	return fmt.Sprintf("%s %s [%s]", f.Name, f.DataType, f.Flags)
}
