package engine

import (
	"github.com/elfen20/clone-cave-data-sub003/internal/dialect"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// ReadSchema derives an untyped layout from reflected result-set columns.
// The key, auto-increment and unique metadata bits are independent; each is
// OR'd into the field flags on its own. The dialect hook then rewrites each
// descriptor to what the backend actually stores.
func ReadSchema(name string, cols []driver.Column, policy dialect.Policy) (*fields.Layout, error) {
	list := make([]fields.Field, len(cols))
	for i, col := range cols {
		f := fields.Field{
			Name:          col.Name,
			DataType:      col.DataType,
			MaximumLength: float64(col.Length),
		}
		if col.IsKey {
			f.Flags |= fields.FlagID
		}
		if col.IsAutoIncrement {
			f.Flags |= fields.FlagAutoIncrement
		}
		if col.IsUnique {
			f.Flags |= fields.FlagUnique
		}
		list[i] = policy.DatabaseFieldProperties(f)
	}
	return fields.NewLayout(name, false, list...)
}

// reflectedFlags are the flag bits result-set metadata can actually carry.
const reflectedFlags = fields.FlagID | fields.FlagAutoIncrement | fields.FlagUnique

// DatabaseShape maps a local layout to the structural shape the backend
// reports for it: physical column names, storage datatypes, and only the
// reflected flag bits. Comparing a reflected layout against this shape is
// what makes the schema check meaningful for non-native representations.
func DatabaseShape(l *fields.Layout, policy dialect.Policy) *fields.Layout {
	return l.WithFields(func(f fields.Field) fields.Field {
		f = policy.DatabaseFieldProperties(f)
		f.Name = f.DatabaseName()
		f.NameAtDatabase = ""
		f.DataType = storageType(f)
		f.TypeAtDatabase = fields.TypeUnknown
		f.Flags &= reflectedFlags
		f.Boxer = nil
		return f
	})
}

// storageType resolves the datatype a column reports after every
// representation choice is applied.
func storageType(f fields.Field) fields.DataType {
	t := f.StoredType()
	switch t {
	case fields.TypeEnum, fields.TypeUser:
		return fields.TypeInt64
	case fields.TypeDateTime:
		switch f.DateTimeType {
		case fields.DateTimeBigIntTicks, fields.DateTimeBigIntHumanReadable:
			return fields.TypeInt64
		case fields.DateTimeDecimalSeconds:
			return fields.TypeDecimal
		case fields.DateTimeDoubleSeconds, fields.DateTimeDoubleEpoch:
			return fields.TypeFloat64
		default:
			return fields.TypeDateTime
		}
	case fields.TypeTimeSpan:
		switch f.DateTimeType {
		case fields.DateTimeDecimalSeconds:
			return fields.TypeDecimal
		case fields.DateTimeDoubleSeconds, fields.DateTimeDoubleEpoch:
			return fields.TypeFloat64
		default:
			// Native and tick-based representations all wire as int64.
			return fields.TypeInt64
		}
	default:
		return t
	}
}
