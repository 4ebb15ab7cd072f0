package engine

import "fmt"

// ShapeError reports a malformed or ambiguous result shape: wrong row count,
// wrong column count, unknown field. Shape errors are programming errors and
// are never retried.
type ShapeError struct {
	Database string
	Table    string
	Command  string
	Detail   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected result shape on %s.%s: %s (command %q)",
		e.Database, e.Table, e.Detail, e.Command)
}

// SchemaMismatchError reports that a result set's schema is structurally
// incompatible with the expected layout. Never retried.
type SchemaMismatchError struct {
	Database string
	Table    string
	Err      error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch on %s.%s: %v", e.Database, e.Table, e.Err)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }
