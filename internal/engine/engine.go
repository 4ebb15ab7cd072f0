// Package engine executes SQL commands against a named database with bounded
// automatic retry, and decodes result sets into rows with on-demand schema
// discovery.
//
// The engine is the single place where retry eligibility is decided: a
// failure is worth repeating only when the connection it happened on is no
// longer open (so the failure plausibly was the connection, not the command)
// and retry budget remains. Result-shape and schema errors are never retried.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/codec"
	"github.com/elfen20/clone-cave-data-sub003/internal/dialect"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
	"github.com/elfen20/clone-cave-data-sub003/internal/metrics"
	"github.com/elfen20/clone-cave-data-sub003/internal/observability"
	"github.com/elfen20/clone-cave-data-sub003/internal/pool"
	"github.com/elfen20/clone-cave-data-sub003/internal/retry"
)

// DefaultMaxErrorRetries is the number of additional attempts after the
// first failed one.
const DefaultMaxErrorRetries = 3

// Command is one executable statement: SQL text plus bound parameters in
// emission order.
type Command struct {
	Text   string
	Params []driver.Param
}

// Engine runs commands through the connection pool.
type Engine struct {
	pool   *pool.Pool
	policy dialect.Policy
	cdc    codec.Codec
	logger *slog.Logger
	mtr    *metrics.Metrics

	// MaxErrorRetries bounds additional attempts after a transient failure.
	MaxErrorRetries int
	// CheckSchema asserts structural layout compatibility on every query
	// that supplies an expected layout.
	CheckSchema bool
}

// New creates an engine. mtr may be nil to disable instrumentation.
func New(p *pool.Pool, policy dialect.Policy, logger *slog.Logger, mtr *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pool:            p,
		policy:          policy,
		cdc:             dialect.CodecFor(policy),
		logger:          logger,
		mtr:             mtr,
		MaxErrorRetries: DefaultMaxErrorRetries,
		CheckSchema:     true,
	}
}

// Policy returns the engine's dialect policy.
func (e *Engine) Policy() dialect.Policy { return e.policy }

// Codec returns the engine's value codec.
func (e *Engine) Codec() codec.Codec { return e.cdc }

// Execute runs a statement and returns the affected row count.
func (e *Engine) Execute(ctx context.Context, database, table string, cmd Command) (int64, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "engine.Execute",
		observability.AttrDialect.String(e.policy.Name()),
		observability.AttrDatabase.String(database),
		observability.AttrTable.String(table),
		observability.AttrStatement.String(cmd.Text),
	)
	defer span.End()

	var affected int64
	err := e.withConn(ctx, database, func(conn driver.Conn) error {
		n, err := conn.Exec(ctx, cmd.Text, cmd.Params)
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	e.mtr.ObserveStatement(database, "execute", err, time.Since(start))
	if err != nil {
		observability.SetSpanError(span, err)
		return 0, fmt.Errorf("execute on %s.%s (command %q): %w", database, table, cmd.Text, err)
	}
	return affected, nil
}

// ExecuteReturningID runs an insert and then idQuery on the same connection,
// returning the single raw value idQuery yields. Session-scoped mechanisms
// like MySQL's LAST_INSERT_ID() only report correctly from the session that
// performed the insert, so the two statements must not land on different
// pooled connections.
func (e *Engine) ExecuteReturningID(ctx context.Context, database, table string, cmd Command, idQuery string) (any, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "engine.ExecuteReturningID",
		observability.AttrDialect.String(e.policy.Name()),
		observability.AttrDatabase.String(database),
		observability.AttrTable.String(table),
		observability.AttrStatement.String(cmd.Text),
	)
	defer span.End()

	var id any
	err := e.withConn(ctx, database, func(conn driver.Conn) error {
		if _, err := conn.Exec(ctx, cmd.Text, cmd.Params); err != nil {
			return err
		}
		reader, err := conn.Query(ctx, idQuery, nil)
		if err != nil {
			return err
		}
		defer reader.Close()
		if !reader.Next() {
			if err := reader.Err(); err != nil {
				return err
			}
			return &ShapeError{Database: database, Table: table, Command: idQuery,
				Detail: "ID query returned no rows"}
		}
		raw, err := reader.Values()
		if err != nil {
			return err
		}
		if len(raw) != 1 {
			return &ShapeError{Database: database, Table: table, Command: idQuery,
				Detail: fmt.Sprintf("expected a single column, got %d", len(raw))}
		}
		id = raw[0]
		return nil
	})
	e.mtr.ObserveStatement(database, "execute", err, time.Since(start))
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("insert on %s.%s (command %q): %w", database, table, cmd.Text, err)
	}
	return id, nil
}

// Query runs a statement and materializes every result row. When expected is
// nil, the row layout is derived from the result set schema; otherwise the
// derived schema is checked against expected (if CheckSchema is on) and
// expected governs decoding. The returned layout is whichever one governed.
func (e *Engine) Query(ctx context.Context, database, table string, expected *fields.Layout, cmd Command) ([]fields.Row, *fields.Layout, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "engine.Query",
		observability.AttrDialect.String(e.policy.Name()),
		observability.AttrDatabase.String(database),
		observability.AttrTable.String(table),
		observability.AttrStatement.String(cmd.Text),
	)
	defer span.End()

	var rows []fields.Row
	layout := expected
	err := e.withConn(ctx, database, func(conn driver.Conn) error {
		reader, err := conn.Query(ctx, cmd.Text, cmd.Params)
		if err != nil {
			return err
		}
		defer reader.Close()

		derived, err := ReadSchema(table, reader.Columns(), e.policy)
		if err != nil {
			return err
		}
		if expected == nil {
			layout = derived
		} else if e.CheckSchema {
			if cerr := fields.CheckLayout(DatabaseShape(expected, e.policy), derived); cerr != nil {
				return &SchemaMismatchError{Database: database, Table: table, Err: cerr}
			}
		}

		rows = rows[:0]
		for reader.Next() {
			raw, err := reader.Values()
			if err != nil {
				return err
			}
			if len(raw) != layout.FieldCount() {
				return &ShapeError{Database: database, Table: table, Command: cmd.Text,
					Detail: fmt.Sprintf("row has %d values, layout has %d fields", len(raw), layout.FieldCount())}
			}
			locals := make([]any, len(raw))
			for i := range raw {
				local, err := e.cdc.LocalValue(layout.Field(i), raw[i])
				if err != nil {
					return err
				}
				locals[i] = local
			}
			rows = append(rows, fields.NewRow(locals...))
		}
		return reader.Err()
	})
	e.mtr.ObserveStatement(database, "query", err, time.Since(start))
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, nil, fmt.Errorf("query on %s.%s (command %q): %w", database, table, cmd.Text, err)
	}
	return rows, layout, nil
}

// QueryValue runs a statement expected to yield at most one row and returns
// the single decoded value. Zero rows yield nil; more than one row is a
// shape error, as is an ambiguous column count when fieldName is empty.
func (e *Engine) QueryValue(ctx context.Context, database, table, fieldName string, cmd Command) (any, error) {
	rows, layout, err := e.Query(ctx, database, table, nil, cmd)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		return nil, &ShapeError{Database: database, Table: table, Command: cmd.Text,
			Detail: fmt.Sprintf("expected a single row, got %d", len(rows))}
	}
	idx := 0
	if fieldName == "" {
		if layout.FieldCount() != 1 {
			return nil, &ShapeError{Database: database, Table: table, Command: cmd.Text,
				Detail: fmt.Sprintf("expected a single column, got %d", layout.FieldCount())}
		}
	} else {
		idx = layout.FieldIndex(fieldName)
		if idx < 0 {
			return nil, &ShapeError{Database: database, Table: table, Command: cmd.Text,
				Detail: "result has no field " + fieldName}
		}
	}
	return rows[0].Value(idx), nil
}

// QuerySchema introspects the table's layout without reading any data rows,
// using a no-op query that only exists for its result-set metadata.
func (e *Engine) QuerySchema(ctx context.Context, database, table string) (*fields.Layout, error) {
	cmd := Command{Text: "SELECT * FROM " + e.policy.FQTN(database, table) + " WHERE 1=0"}
	_, layout, err := e.Query(ctx, database, table, nil, cmd)
	if err != nil {
		return nil, err
	}
	return layout, nil
}

// withConn runs fn on a pooled connection, retrying with a fresh connection
// while the failure looks transient and budget remains. The connection is
// always returned, force-closed when fn failed on it.
func (e *Engine) withConn(ctx context.Context, database string, fn func(driver.Conn) error) error {
	attempts := e.MaxErrorRetries + 1
	return retry.Do(attempts, retry.IsTransient, func(attempt int) error {
		if attempt > 1 {
			e.mtr.ObserveRetry()
			observability.RecordRetry(ctx, attempt)
			e.logger.Warn("retrying statement on a fresh connection",
				"database", database, "attempt", attempt, "max", attempts)
		}
		conn, err := e.pool.Get(ctx, database)
		if err != nil {
			// Factory failures (network, auth) are the classic transient
			// case; the budget bounds them.
			return retry.Transient(err)
		}
		failed := false
		defer func() {
			e.pool.Put(conn, failed)
		}()
		if err := fn(conn.Raw()); err != nil {
			failed = true
			if !conn.IsOpen() {
				return retry.Transient(err)
			}
			// The connection survived, so the command itself is at fault;
			// retrying would not change anything.
			return err
		}
		return nil
	})
}
