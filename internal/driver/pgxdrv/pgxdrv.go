// Package pgxdrv adapts PostgreSQL connections to the driver interface.
// Each driver.Conn wraps one dedicated pgx connection; pooling and
// exclusivity live a layer up.
package pgxdrv

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// Connector opens connections from a base DSN, swapping in the requested
// database per Open.
type Connector struct {
	base *pgx.ConnConfig
}

// NewConnector parses the DSN once; Open reuses it with the database
// replaced.
func NewConnector(dsn string) (*Connector, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxdrv: parse dsn: %w", err)
	}
	return &Connector{base: cfg}, nil
}

func (c *Connector) Open(ctx context.Context, database string) (driver.Conn, error) {
	cfg := c.base.Copy()
	cfg.Database = database
	pc, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxdrv: connect to %s: %w", database, err)
	}
	return &conn{pc: pc}, nil
}

type conn struct {
	pc *pgx.Conn
}

func (c *conn) IsOpen() bool { return c.pc != nil && !c.pc.IsClosed() }

// SelectDatabase always fails: a PostgreSQL session is bound to one database
// for its lifetime. The dialect reports this, so the pool never calls it.
func (c *conn) SelectDatabase(ctx context.Context, database string) error {
	return fmt.Errorf("pgxdrv: cannot switch an open connection to %s", database)
}

func (c *conn) Exec(ctx context.Context, text string, params []driver.Param) (int64, error) {
	tag, err := c.pc.Exec(ctx, text, paramValues(params)...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *conn) Query(ctx context.Context, text string, params []driver.Param) (driver.Reader, error) {
	rows, err := c.pc.Query(ctx, text, paramValues(params)...)
	if err != nil {
		return nil, err
	}
	return &reader{rows: rows, columns: describeColumns(rows.FieldDescriptions())}, nil
}

func (c *conn) Close() error {
	if c.pc == nil {
		return nil
	}
	return c.pc.Close(context.Background())
}

func paramValues(params []driver.Param) []any {
	values := make([]any, len(params))
	for i, p := range params {
		values[i] = p.Value
	}
	return values
}

type reader struct {
	rows    pgx.Rows
	columns []driver.Column
}

func (r *reader) Columns() []driver.Column { return r.columns }
func (r *reader) Next() bool               { return r.rows.Next() }
func (r *reader) Err() error               { return r.rows.Err() }

func (r *reader) Values() ([]any, error) {
	values, err := r.rows.Values()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if n, ok := v.(pgtype.Numeric); ok {
			text, err := numericText(n)
			if err != nil {
				return nil, err
			}
			values[i] = text
		}
	}
	return values, nil
}

func (r *reader) Close() error {
	r.rows.Close()
	return nil
}

// numericText renders a numeric as its canonical string; the codec parses
// decimals from text.
func numericText(n pgtype.Numeric) (string, error) {
	v, err := n.Value()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("pgxdrv: unexpected numeric value %T", v)
	}
	return s, nil
}

func describeColumns(descs []pgconn.FieldDescription) []driver.Column {
	cols := make([]driver.Column, len(descs))
	for i, d := range descs {
		cols[i] = driver.Column{
			Name:     d.Name,
			DataType: oidDataType(d.DataTypeOID),
			Length:   varcharLength(d.DataTypeOID, d.TypeModifier),
		}
	}
	return cols
}

func oidDataType(oid uint32) fields.DataType {
	switch oid {
	case pgtype.Int2OID:
		return fields.TypeInt16
	case pgtype.Int4OID:
		return fields.TypeInt32
	case pgtype.Int8OID:
		return fields.TypeInt64
	case pgtype.Float4OID:
		return fields.TypeFloat32
	case pgtype.Float8OID:
		return fields.TypeFloat64
	case pgtype.BoolOID:
		return fields.TypeBool
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID:
		return fields.TypeString
	case pgtype.ByteaOID:
		return fields.TypeBinary
	case pgtype.NumericOID:
		return fields.TypeDecimal
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return fields.TypeDateTime
	default:
		return fields.TypeUnknown
	}
}

func varcharLength(oid uint32, typeModifier int32) int64 {
	if oid != pgtype.VarcharOID && oid != pgtype.BPCharOID {
		return 0
	}
	if typeModifier <= 4 {
		return 0
	}
	return int64(typeModifier - 4)
}
