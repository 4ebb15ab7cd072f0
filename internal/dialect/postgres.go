package dialect

import (
	"fmt"
	"strconv"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// Postgres is the PostgreSQL dialect: double-quote quoting, positional $N
// placeholders, and no way to rebind an open connection to another database
// (which forces the pool into strict per-database matching).
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Capabilities() Capabilities {
	return Capabilities{
		NamedParameters:         false,
		GroupBySelectAll:        false,
		CanChangeDatabase:       false,
		ParameterPrefix:         "$",
		InfinitySentinels:       false,
		FloatEpsilon:            1e-9,
		DateTimeGranularity:     time.Microsecond,
		DefaultDecimalPrecision: 28.08,
	}
}

func (Postgres) EscapeFieldName(name string) string {
	return `"` + name + `"`
}

// FQTN quotes the table name only: Postgres cannot address another database
// from one connection, so the database part is fixed at connect time.
func (d Postgres) FQTN(database, table string) string {
	return d.EscapeFieldName(table)
}

func (Postgres) Placeholder(index int, name string) string {
	return "$" + strconv.Itoa(index)
}

func (Postgres) DatabaseFieldProperties(f fields.Field) fields.Field {
	switch f.DataType {
	case fields.TypeInt8, fields.TypeUInt8:
		f.TypeAtDatabase = fields.TypeInt16
	case fields.TypeUInt16:
		f.TypeAtDatabase = fields.TypeInt32
	case fields.TypeUInt32:
		f.TypeAtDatabase = fields.TypeInt64
	case fields.TypeUInt64:
		f.TypeAtDatabase = fields.TypeDecimal
	}
	return f
}

func (Postgres) PagingClause(limit, offset int, _ bool) string {
	switch {
	case limit >= 0 && offset > 0:
		return "LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)
	case limit >= 0:
		return "LIMIT " + strconv.Itoa(limit)
	case offset > 0:
		return "OFFSET " + strconv.Itoa(offset)
	default:
		return ""
	}
}

func (Postgres) ColumnTypeName(f fields.Field) (string, error) {
	switch f.StoredType() {
	case fields.TypeInt8, fields.TypeInt16:
		return "SMALLINT", nil
	case fields.TypeInt32:
		return "INTEGER", nil
	case fields.TypeInt64, fields.TypeEnum, fields.TypeUser:
		return "BIGINT", nil
	case fields.TypeFloat32:
		return "REAL", nil
	case fields.TypeFloat64:
		return "DOUBLE PRECISION", nil
	case fields.TypeBool:
		return "BOOLEAN", nil
	case fields.TypeString:
		if n := int(f.MaximumLength); n > 0 {
			return fmt.Sprintf("VARCHAR(%d)", n), nil
		}
		return "TEXT", nil
	case fields.TypeBinary:
		return "BYTEA", nil
	case fields.TypeDecimal:
		p, s := f.DecimalPrecision(28, 8)
		return fmt.Sprintf("NUMERIC(%d,%d)", p, s), nil
	case fields.TypeDateTime:
		return temporalColumnType(f, "TIMESTAMPTZ")
	case fields.TypeTimeSpan:
		return temporalColumnType(f, "BIGINT")
	default:
		return "", fmt.Errorf("postgres: no column type for %v", f.DataType)
	}
}

func (Postgres) AutoIncrementClause(typeName string) string {
	switch typeName {
	case "SMALLINT":
		return "SMALLSERIAL"
	case "INTEGER":
		return "SERIAL"
	default:
		return "BIGSERIAL"
	}
}

func (Postgres) TableListQuery(database string) string {
	return "SELECT tablename FROM pg_tables WHERE schemaname = 'public'"
}

// LASTVAL reports the last sequence value assigned in this session, so the
// query must run on the connection that performed the insert.
func (Postgres) LastInsertedIDQuery(database, table, idField string) string {
	return "SELECT LASTVAL()"
}
