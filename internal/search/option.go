package search

import "fmt"

// InvalidOptionError reports a usage error in a result option combination,
// detected at render time.
type InvalidOptionError struct {
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return "invalid result option: " + e.Reason
}

type optKind int

const (
	optSortAscending optKind = iota
	optSortDescending
	optLimit
	optOffset
	optGroup
)

type directive struct {
	kind  optKind
	field string
	n     int
}

// ResultOption is an immutable, composable set of result directives. Sort
// directives are additive and order preserving; Limit and Offset are each
// singular; Group combines with Sort only on dialects that support it.
// The zero value carries no directives.
type ResultOption struct {
	list []directive
}

// None is the empty option set.
func None() ResultOption { return ResultOption{} }

// SortAscending orders results by field, ascending.
func SortAscending(field string) ResultOption {
	return ResultOption{list: []directive{{kind: optSortAscending, field: field}}}
}

// SortDescending orders results by field, descending.
func SortDescending(field string) ResultOption {
	return ResultOption{list: []directive{{kind: optSortDescending, field: field}}}
}

// Limit caps the number of returned rows.
func Limit(n int) ResultOption {
	return ResultOption{list: []directive{{kind: optLimit, n: n}}}
}

// Offset skips the first n matching rows.
func Offset(n int) ResultOption {
	return ResultOption{list: []directive{{kind: optOffset, n: n}}}
}

// Group collapses results to one representative row per distinct field value.
func Group(field string) ResultOption {
	return ResultOption{list: []directive{{kind: optGroup, field: field}}}
}

// GroupField reports the group directive's field, if one is present.
func (o ResultOption) GroupField() (string, bool) {
	for _, d := range o.list {
		if d.kind == optGroup {
			return d.field, true
		}
	}
	return "", false
}

// HasLimit reports whether a limit directive is present.
func (o ResultOption) HasLimit() bool {
	for _, d := range o.list {
		if d.kind == optLimit {
			return true
		}
	}
	return false
}

// Add returns a new option set with the given directives appended in order.
// The receiver is not modified.
func (o ResultOption) Add(more ...ResultOption) ResultOption {
	out := make([]directive, len(o.list))
	copy(out, o.list)
	for _, m := range more {
		out = append(out, m.list...)
	}
	return ResultOption{list: out}
}

func (o ResultOption) String() string {
	s := ""
	for _, d := range o.list {
		if s != "" {
			s += "+"
		}
		switch d.kind {
		case optSortAscending:
			s += "asc(" + d.field + ")"
		case optSortDescending:
			s += "desc(" + d.field + ")"
		case optLimit:
			s += fmt.Sprintf("limit(%d)", d.n)
		case optOffset:
			s += fmt.Sprintf("offset(%d)", d.n)
		case optGroup:
			s += "group(" + d.field + ")"
		}
	}
	if s == "" {
		return "none"
	}
	return s
}
