package fields

import "fmt"

// Row is a fixed-size ordered array of boxed values aligned 1:1 with a
// layout's fields. Rows have value semantics: transformations return a new
// Row with a copied value array, the original is never mutated.
type Row struct {
	values []any
}

// NewRow creates a row owning a copy of the given values.
func NewRow(values ...any) Row {
	owned := make([]any, len(values))
	copy(owned, values)
	return Row{values: owned}
}

func (r Row) Len() int { return len(r.values) }

// Value returns the boxed value at field position i.
func (r Row) Value(i int) any { return r.values[i] }

// Values returns a copy of the value array.
func (r Row) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// WithValue returns a new row with slot i replaced.
func (r Row) WithValue(i int, v any) Row {
	out := r.Values()
	out[i] = v
	return Row{values: out}
}

// ID returns the value of the layout's ID field, or nil when the layout has
// none.
func (r Row) ID(l *Layout) any {
	idx := l.IDFieldIndex()
	if idx < 0 || idx >= len(r.values) {
		return nil
	}
	return r.values[idx]
}

// WithID returns a new row with the ID slot replaced.
func (r Row) WithID(l *Layout, id any) (Row, error) {
	idx := l.IDFieldIndex()
	if idx < 0 {
		return Row{}, fmt.Errorf("layout %s has no ID field", l.Name())
	}
	return r.WithValue(idx, id), nil
}

func (r Row) String() string {
	return fmt.Sprintf("row%v", r.values)
}
