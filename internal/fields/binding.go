package fields

import (
	"fmt"
	"time"
)

// Binding maps a struct type to a layout through explicit per-field
// registration. There is no struct-tag reflection: every column is declared
// with a pointer accessor, and declaration order fixes the field order.
//
//	b := fields.NewBinding[User]("users")
//	b.Int64("ID", fields.FlagID|fields.FlagAutoIncrement, func(u *User) *int64 { return &u.ID })
//	b.String("Name", fields.FlagIndex, 64, func(u *User) *string { return &u.Name })
//
// Registration is a startup step; invalid registrations panic, like a
// duplicate metric registration would.
type Binding[T any] struct {
	name   string
	fields []Field
	get    []func(*T) any
	set    []func(*T, any) error
	layout *Layout
}

// NewBinding starts a binding for the table (layout) name.
func NewBinding[T any](name string) *Binding[T] {
	return &Binding[T]{name: name}
}

func (b *Binding[T]) add(f Field, get func(*T) any, set func(*T, any) error) {
	if b.layout != nil {
		panic(fmt.Sprintf("binding %s: registration after Layout()", b.name))
	}
	for _, existing := range b.fields {
		if existing.Name == f.Name {
			panic(fmt.Sprintf("binding %s: duplicate field %s", b.name, f.Name))
		}
	}
	f.Index = len(b.fields)
	b.fields = append(b.fields, f)
	b.get = append(b.get, get)
	b.set = append(b.set, set)
}

// Layout builds (once) and returns the typed layout for this binding.
func (b *Binding[T]) Layout() *Layout {
	if b.layout == nil {
		b.layout = MustLayout(b.name, true, b.fields...)
	}
	return b.layout
}

// Row converts a struct into a row aligned with the binding's layout.
func (b *Binding[T]) Row(v *T) Row {
	values := make([]any, len(b.fields))
	for i, get := range b.get {
		values[i] = get(v)
	}
	return Row{values: values}
}

// Load fills a struct from a row. The row must align with the binding's
// layout.
func (b *Binding[T]) Load(r Row, v *T) error {
	if r.Len() != len(b.fields) {
		return fmt.Errorf("binding %s: row has %d values, layout has %d fields",
			b.name, r.Len(), len(b.fields))
	}
	for i, set := range b.set {
		if err := set(v, r.Value(i)); err != nil {
			return fmt.Errorf("binding %s: field %s: %w", b.name, b.fields[i].Name, err)
		}
	}
	return nil
}

func (b *Binding[T]) Int8(name string, flags Flags, at func(*T) *int8) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeInt8, Flags: flags},
		func(v *T) any { return int64(*at(v)) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsInt64(x)
			if err != nil {
				return err
			}
			*at(v) = int8(n)
			return nil
		})
	return b
}

func (b *Binding[T]) Int16(name string, flags Flags, at func(*T) *int16) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeInt16, Flags: flags},
		func(v *T) any { return int64(*at(v)) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsInt64(x)
			if err != nil {
				return err
			}
			*at(v) = int16(n)
			return nil
		})
	return b
}

func (b *Binding[T]) Int32(name string, flags Flags, at func(*T) *int32) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeInt32, Flags: flags},
		func(v *T) any { return int64(*at(v)) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsInt64(x)
			if err != nil {
				return err
			}
			*at(v) = int32(n)
			return nil
		})
	return b
}

func (b *Binding[T]) Int64(name string, flags Flags, at func(*T) *int64) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeInt64, Flags: flags},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsInt64(x)
			if err != nil {
				return err
			}
			*at(v) = n
			return nil
		})
	return b
}

func (b *Binding[T]) UInt8(name string, flags Flags, at func(*T) *uint8) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeUInt8, Flags: flags},
		func(v *T) any { return int64(*at(v)) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsUint64(x)
			if err != nil {
				return err
			}
			*at(v) = uint8(n)
			return nil
		})
	return b
}

func (b *Binding[T]) UInt32(name string, flags Flags, at func(*T) *uint32) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeUInt32, Flags: flags},
		func(v *T) any { return int64(*at(v)) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsUint64(x)
			if err != nil {
				return err
			}
			*at(v) = uint32(n)
			return nil
		})
	return b
}

func (b *Binding[T]) UInt64(name string, flags Flags, at func(*T) *uint64) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeUInt64, Flags: flags},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsUint64(x)
			if err != nil {
				return err
			}
			*at(v) = n
			return nil
		})
	return b
}

func (b *Binding[T]) Float32(name string, flags Flags, at func(*T) *float32) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeFloat32, Flags: flags},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsFloat64(x)
			if err != nil {
				return err
			}
			*at(v) = float32(n)
			return nil
		})
	return b
}

func (b *Binding[T]) Float64(name string, flags Flags, at func(*T) *float64) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeFloat64, Flags: flags},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsFloat64(x)
			if err != nil {
				return err
			}
			*at(v) = n
			return nil
		})
	return b
}

func (b *Binding[T]) Bool(name string, flags Flags, at func(*T) *bool) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeBool, Flags: flags},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = false
				return nil
			}
			n, err := AsBool(x)
			if err != nil {
				return err
			}
			*at(v) = n
			return nil
		})
	return b
}

// String registers a string field. maxLength is the byte length limit, 0 for
// unbounded.
func (b *Binding[T]) String(name string, flags Flags, maxLength int, at func(*T) *string) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeString, Flags: flags, MaximumLength: float64(maxLength)},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = ""
				return nil
			}
			s, err := AsString(x)
			if err != nil {
				return err
			}
			*at(v) = s
			return nil
		})
	return b
}

// StringEncoded is String with an explicit character encoding constraint.
func (b *Binding[T]) StringEncoded(name string, flags Flags, maxLength int, enc StringEncoding, at func(*T) *string) *Binding[T] {
	b.String(name, flags, maxLength, at)
	b.fields[len(b.fields)-1].StringEncoding = enc
	return b
}

func (b *Binding[T]) Binary(name string, flags Flags, maxLength int, at func(*T) *[]byte) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeBinary, Flags: flags, MaximumLength: float64(maxLength)},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = nil
				return nil
			}
			bs, err := AsBytes(x)
			if err != nil {
				return err
			}
			*at(v) = bs
			return nil
		})
	return b
}

// Decimal registers a fixed-point field. precisionScale uses the
// precision.scale float encoding, e.g. 28.08 for precision 28 scale 8.
func (b *Binding[T]) Decimal(name string, flags Flags, precisionScale float64, at func(*T) *float64) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeDecimal, Flags: flags, MaximumLength: precisionScale},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			n, err := AsFloat64(x)
			if err != nil {
				return err
			}
			*at(v) = n
			return nil
		})
	return b
}

func (b *Binding[T]) DateTime(name string, flags Flags, kind DateTimeKind, dtype DateTimeType, at func(*T) *time.Time) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeDateTime, Flags: flags, DateTimeKind: kind, DateTimeType: dtype},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = time.Time{}
				return nil
			}
			t, err := AsTime(x)
			if err != nil {
				return err
			}
			*at(v) = t
			return nil
		})
	return b
}

func (b *Binding[T]) TimeSpan(name string, flags Flags, dtype DateTimeType, at func(*T) *time.Duration) *Binding[T] {
	b.add(Field{Name: name, DataType: TypeTimeSpan, Flags: flags, DateTimeType: dtype},
		func(v *T) any { return *at(v) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			d, err := AsDuration(x)
			if err != nil {
				return err
			}
			*at(v) = d
			return nil
		})
	return b
}

// EnumValue constrains the underlying types usable for enum fields.
type EnumValue interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32
}

// Enum registers an enum field on the binding. Stored as the underlying
// 64-bit integer; decoded values are boxed back into E without reflection.
// Package-level because methods cannot introduce type parameters.
func Enum[T any, E EnumValue](b *Binding[T], name string, flags Flags, at func(*T) *E) *Binding[T] {
	b.add(Field{
		Name:     name,
		DataType: TypeEnum,
		Flags:    flags,
		Boxer:    func(n int64) any { return E(n) },
	},
		func(v *T) any { return int64(*at(v)) },
		func(v *T, x any) error {
			if x == nil {
				*at(v) = 0
				return nil
			}
			if e, ok := x.(E); ok {
				*at(v) = e
				return nil
			}
			n, err := AsInt64(x)
			if err != nil {
				return err
			}
			*at(v) = E(n)
			return nil
		})
	return b
}
