// Package sqldrv adapts any registered database/sql driver to the driver
// interface. Each driver.Conn owns a *sql.DB capped at one underlying
// connection, which pins session state (USE, temp tables) to the handle the
// way the layers above expect.
package sqldrv

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// Connector opens database/sql handles for one registered driver. DSN
// renders the data source name for a target database; NamedParams switches
// parameter passing to sql.Named for dialects addressing parameters by name.
type Connector struct {
	DriverName  string
	DSN         func(database string) string
	NamedParams bool
}

func (c *Connector) Open(ctx context.Context, database string) (driver.Conn, error) {
	db, err := sql.Open(c.DriverName, c.DSN(database))
	if err != nil {
		return nil, fmt.Errorf("sqldrv: open %s: %w", database, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldrv: ping %s: %w", database, err)
	}
	return &conn{db: db, named: c.NamedParams}, nil
}

type conn struct {
	db     *sql.DB
	named  bool
	closed atomic.Bool
	// broken is set when an operation failed in a way that implicates the
	// connection rather than the statement.
	broken atomic.Bool
}

// IsOpen reports liveness from the connection's own operation history. The
// pool calls it under its mutex, so it must not touch the network.
func (c *conn) IsOpen() bool {
	return !c.closed.Load() && !c.broken.Load()
}

// noteErr marks the connection broken when err looks like a transport
// failure, then hands the error back unchanged.
func (c *conn) noteErr(err error) error {
	if err != nil && isConnError(err) {
		c.broken.Store(true)
	}
	return err
}

func isConnError(err error) bool {
	if errors.Is(err, sqldriver.ErrBadConn) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func (c *conn) SelectDatabase(ctx context.Context, database string) error {
	_, err := c.db.ExecContext(ctx, "USE "+quoteName(database))
	return c.noteErr(err)
}

func (c *conn) Exec(ctx context.Context, text string, params []driver.Param) (int64, error) {
	res, err := c.db.ExecContext(ctx, text, c.args(params)...)
	if err != nil {
		return 0, c.noteErr(err)
	}
	return res.RowsAffected()
}

func (c *conn) Query(ctx context.Context, text string, params []driver.Param) (driver.Reader, error) {
	rows, err := c.db.QueryContext(ctx, text, c.args(params)...)
	if err != nil {
		return nil, c.noteErr(err)
	}
	columns, err := describeColumns(rows)
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &reader{conn: c, rows: rows, columns: columns}, nil
}

func (c *conn) Close() error {
	c.closed.Store(true)
	return c.db.Close()
}

func (c *conn) args(params []driver.Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		if c.named {
			args[i] = sql.Named(p.Name, p.Value)
		} else {
			args[i] = p.Value
		}
	}
	return args
}

func quoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

type reader struct {
	conn    *conn
	rows    *sql.Rows
	columns []driver.Column
}

func (r *reader) Columns() []driver.Column { return r.columns }
func (r *reader) Next() bool               { return r.rows.Next() }

func (r *reader) Values() ([]any, error) {
	raw := make([]any, len(r.columns))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, r.conn.noteErr(err)
	}
	for i, v := range raw {
		// Text-ish columns scan as []byte under database/sql; fold them
		// back to strings so the codec sees one representation.
		if b, ok := v.([]byte); ok && r.columns[i].DataType != fields.TypeBinary {
			raw[i] = string(b)
		}
	}
	return raw, nil
}

func (r *reader) Err() error { return r.conn.noteErr(r.rows.Err()) }

func (r *reader) Close() error { return r.rows.Close() }

func describeColumns(rows *sql.Rows) ([]driver.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]driver.Column, len(types))
	for i, ct := range types {
		col := driver.Column{
			Name:     ct.Name(),
			DataType: typeNameDataType(ct.DatabaseTypeName()),
		}
		if n, ok := ct.Length(); ok {
			col.Length = n
		}
		cols[i] = col
	}
	return cols, nil
}

func typeNameDataType(name string) fields.DataType {
	switch strings.ToUpper(name) {
	case "TINYINT":
		return fields.TypeInt8
	case "UNSIGNED TINYINT", "TINYINT UNSIGNED":
		return fields.TypeUInt8
	case "SMALLINT":
		return fields.TypeInt16
	case "UNSIGNED SMALLINT", "SMALLINT UNSIGNED":
		return fields.TypeUInt16
	case "INT", "INTEGER", "MEDIUMINT":
		return fields.TypeInt32
	case "UNSIGNED INT", "INT UNSIGNED":
		return fields.TypeUInt32
	case "BIGINT":
		return fields.TypeInt64
	case "UNSIGNED BIGINT", "BIGINT UNSIGNED":
		return fields.TypeUInt64
	case "FLOAT", "REAL":
		return fields.TypeFloat32
	case "DOUBLE":
		return fields.TypeFloat64
	case "BIT", "BOOL", "BOOLEAN":
		return fields.TypeBool
	case "CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "TEXT", "LONGTEXT", "MEDIUMTEXT":
		return fields.TypeString
	case "BINARY", "VARBINARY", "BLOB", "LONGBLOB", "MEDIUMBLOB":
		return fields.TypeBinary
	case "DECIMAL", "NUMERIC", "MONEY":
		return fields.TypeDecimal
	case "DATETIME", "DATETIME2", "TIMESTAMP", "DATETIMEOFFSET":
		return fields.TypeDateTime
	default:
		return fields.TypeUnknown
	}
}
