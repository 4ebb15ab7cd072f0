package fields

import (
	"errors"
	"fmt"
)

// ErrLayoutMismatch wraps all structural layout comparison failures.
var ErrLayoutMismatch = errors.New("layout mismatch")

// Layout is an ordered, immutable sequence of fields plus a name. Typed
// layouts are bound to a concrete struct shape through a Binding; untyped
// layouts are discovered from live schema introspection.
type Layout struct {
	name    string
	fields  []Field
	idIndex int
	typed   bool
}

// NewLayout builds a layout from the given fields. Field indexes are assigned
// from declaration order. A typed layout may carry at most one ID field;
// untyped layouts may have any number including zero (the first one wins for
// IDFieldIndex).
func NewLayout(name string, typed bool, fieldList ...Field) (*Layout, error) {
	if name == "" {
		return nil, errors.New("layout name is empty")
	}
	l := &Layout{
		name:    name,
		fields:  make([]Field, len(fieldList)),
		idIndex: -1,
		typed:   typed,
	}
	seen := make(map[string]struct{}, len(fieldList))
	for i, f := range fieldList {
		if f.Name == "" {
			return nil, fmt.Errorf("layout %s: field %d has no name", name, i)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("layout %s: duplicate field %s", name, f.Name)
		}
		seen[f.Name] = struct{}{}
		f.Index = i
		l.fields[i] = f
		if f.Flags.Has(FlagID) {
			if l.idIndex >= 0 && typed {
				return nil, fmt.Errorf("layout %s: multiple ID fields (%s and %s)",
					name, l.fields[l.idIndex].Name, f.Name)
			}
			if l.idIndex < 0 {
				l.idIndex = i
			}
		}
	}
	return l, nil
}

// MustLayout is NewLayout panicking on error, for static layout declarations.
func MustLayout(name string, typed bool, fieldList ...Field) *Layout {
	l, err := NewLayout(name, typed, fieldList...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) Name() string { return l.name }

func (l *Layout) FieldCount() int { return len(l.fields) }

// Field returns the descriptor at position i. Panics on out-of-range access,
// matching slice semantics.
func (l *Layout) Field(i int) Field { return l.fields[i] }

// Fields returns a copy of the descriptor list.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// IDFieldIndex returns the position of the ID field, or -1 when none.
func (l *Layout) IDFieldIndex() int { return l.idIndex }

// FieldIndex returns the position of the named field, or -1 when unknown.
func (l *Layout) FieldIndex(name string) int {
	for i := range l.fields {
		if l.fields[i].Name == name {
			return i
		}
	}
	return -1
}

func (l *Layout) IsTyped() bool { return l.typed }

// WithFields returns a new layout with each field passed through transform,
// keeping name and typedness. Used to derive database-adjusted layouts; the
// receiver is never mutated.
func (l *Layout) WithFields(transform func(Field) Field) *Layout {
	adjusted := make([]Field, len(l.fields))
	for i, f := range l.fields {
		nf := transform(f)
		nf.Index = i
		adjusted[i] = nf
	}
	out := *l
	out.fields = adjusted
	return &out
}

// CheckLayout asserts that actual is structurally compatible with expected:
// same field count, and each corresponding field equal in name, datatype and
// flags. Errors wrap ErrLayoutMismatch.
func CheckLayout(expected, actual *Layout) error {
	if expected == nil || actual == nil {
		return fmt.Errorf("%w: nil layout", ErrLayoutMismatch)
	}
	if expected.FieldCount() != actual.FieldCount() {
		return fmt.Errorf("%w: %s has %d fields, %s has %d",
			ErrLayoutMismatch, expected.name, expected.FieldCount(), actual.name, actual.FieldCount())
	}
	for i := range expected.fields {
		e, a := expected.fields[i], actual.fields[i]
		if !e.StructureEquals(a) {
			return fmt.Errorf("%w: field %d differs: expected %v, got %v",
				ErrLayoutMismatch, i, e, a)
		}
	}
	return nil
}
