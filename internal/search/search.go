// Package search composes predicate expressions and result options, and
// compiles them into dialect-specific SQL text plus an ordered parameter
// list. The compiler is a pure function of (layout, expression, options); it
// keeps no state between calls.
package search

// Op is a field comparison operator.
type Op int

const (
	OpEquals Op = iota
	OpGreater
	OpSmaller
	OpGreaterOrEqual
	OpSmallerOrEqual
)

func (o Op) sql() string {
	switch o {
	case OpGreater:
		return ">"
	case OpSmaller:
		return "<"
	case OpGreaterOrEqual:
		return ">="
	case OpSmallerOrEqual:
		return "<="
	default:
		return "="
	}
}

// Search is an immutable tree of field comparisons combined with AND/OR.
// A nil *Search matches everything (no WHERE clause).
type Search struct {
	// leaf
	op    Op
	field string
	value any
	// node
	combine string // "AND" or "OR"
	parts   []*Search
}

func leaf(field string, op Op, value any) *Search {
	return &Search{op: op, field: field, value: value}
}

// FieldEquals matches rows whose field equals value.
func FieldEquals(field string, value any) *Search { return leaf(field, OpEquals, value) }

// FieldGreater matches rows whose field is greater than value.
func FieldGreater(field string, value any) *Search { return leaf(field, OpGreater, value) }

// FieldSmaller matches rows whose field is smaller than value.
func FieldSmaller(field string, value any) *Search { return leaf(field, OpSmaller, value) }

// FieldGreaterOrEqual matches rows whose field is greater than or equal to value.
func FieldGreaterOrEqual(field string, value any) *Search {
	return leaf(field, OpGreaterOrEqual, value)
}

// FieldSmallerOrEqual matches rows whose field is smaller than or equal to value.
func FieldSmallerOrEqual(field string, value any) *Search {
	return leaf(field, OpSmallerOrEqual, value)
}

func combine(mode string, first *Search, rest []*Search) *Search {
	parts := make([]*Search, 0, len(rest)+1)
	appendPart := func(s *Search) {
		if s == nil {
			return
		}
		// Flatten nested nodes of the same mode.
		if s.parts != nil && s.combine == mode {
			parts = append(parts, s.parts...)
			return
		}
		parts = append(parts, s)
	}
	appendPart(first)
	for _, s := range rest {
		appendPart(s)
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return &Search{combine: mode, parts: parts}
}

// And combines s with the given expressions; all must match. The receiver is
// not modified.
func (s *Search) And(others ...*Search) *Search { return combine("AND", s, others) }

// Or combines s with the given expressions; any may match. The receiver is
// not modified.
func (s *Search) Or(others ...*Search) *Search { return combine("OR", s, others) }

// And combines expressions; all must match. Nil parts are skipped, so the
// first operand may be a nil catch-all.
func And(parts ...*Search) *Search { return combine("AND", nil, parts) }

// Or combines expressions; any may match. Nil parts are skipped.
func Or(parts ...*Search) *Search { return combine("OR", nil, parts) }
