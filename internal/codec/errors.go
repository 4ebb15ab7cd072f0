package codec

import "fmt"

// ValueError reports a type or format violation at the codec boundary,
// tagged with the offending field and value.
type ValueError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("field %s: %s (value %v)", e.Field, e.Reason, e.Value)
}

// RangeError reports a value outside the range its field can store.
type RangeError struct {
	Field string
	Value any
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("field %s: value %v out of range (|value| must be below %g)", e.Field, e.Value, e.Max)
}
