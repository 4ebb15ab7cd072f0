// Package driver defines the abstract physical-connection interface the
// execution engine runs on. This keeps the engine, pool, and search compiler
// backend-agnostic: a backend only has to open connections, run commands, and
// reflect column schema.
package driver

import (
	"context"
	"errors"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// ErrClosed is returned when operating on a closed connection.
var ErrClosed = errors.New("driver: connection is closed")

// Column is the schema metadata a reader reflects for one result column.
// The flag bits are independent; each is OR'd into the derived field flags.
type Column struct {
	Name            string
	DataType        fields.DataType
	Length          int64
	IsKey           bool
	IsAutoIncrement bool
	IsUnique        bool
}

// Param is one bound command parameter. Value carries the wire
// representation produced by the codec. Name is only meaningful for dialects
// with named parameters.
type Param struct {
	Name  string
	Value any
}

// Reader iterates a result set. Implementations are forward-only and must be
// closed by the caller.
type Reader interface {
	// Columns returns the reflected schema of the result set.
	Columns() []Column
	// Next advances to the next row, returning false when exhausted.
	Next() bool
	// Values returns the raw wire values of the current row.
	Values() ([]any, error)
	// Err returns any error encountered during iteration.
	Err() error
	Close() error
}

// Conn is one physical database connection. A Conn is never shared between
// callers; exclusivity is enforced by the pool.
type Conn interface {
	// IsOpen reports whether the connection is still usable. The execution
	// engine uses this after a failure to decide retry eligibility.
	IsOpen() bool
	// SelectDatabase rebinds the connection to another database. Backends
	// that cannot do this return an error and report it via their dialect
	// capabilities, so the pool never calls it.
	SelectDatabase(ctx context.Context, database string) error
	// Exec runs a statement and returns the affected row count.
	Exec(ctx context.Context, text string, params []Param) (int64, error)
	// Query runs a statement and returns a reader over its result set.
	Query(ctx context.Context, text string, params []Param) (Reader, error)
	Close() error
}

// Connector creates physical connections bound to a database. It is the
// factory hook the connection pool builds on.
type Connector interface {
	Open(ctx context.Context, database string) (Conn, error)
}
