package dialect

import (
	"fmt"
	"strconv"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// MSSQL is the SQL Server dialect: bracket quoting, named @pN parameters,
// OFFSET/FETCH paging, no 8-bit signed integers, and no SELECT * with
// GROUP BY on arbitrary fields.
type MSSQL struct{}

func (MSSQL) Name() string { return "mssql" }

func (MSSQL) Capabilities() Capabilities {
	return Capabilities{
		NamedParameters:   true,
		GroupBySelectAll:  false,
		CanChangeDatabase: true,
		ParameterPrefix:   "@",
		InfinitySentinels: false,
		FloatEpsilon:      1e-6,
		// datetime columns resolve to ~3.33ms.
		DateTimeGranularity:     3340 * time.Microsecond,
		DefaultDecimalPrecision: 28.08,
	}
}

func (MSSQL) EscapeFieldName(name string) string {
	return "[" + name + "]"
}

func (d MSSQL) FQTN(database, table string) string {
	return d.EscapeFieldName(database) + ".[dbo]." + d.EscapeFieldName(table)
}

func (MSSQL) Placeholder(index int, name string) string {
	return "@" + name
}

// DatabaseFieldProperties promotes types SQL Server cannot store: TINYINT is
// unsigned there, so signed 8-bit values live in SMALLINT, and the unsigned
// widths move up one step.
func (MSSQL) DatabaseFieldProperties(f fields.Field) fields.Field {
	switch f.DataType {
	case fields.TypeInt8:
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

func (MSSQL) PagingClause(limit, offset int, ordered bool) string {
	if limit < 0 && offset <= 0 {
		return ""
	}
	if offset < 0 {
		offset = 0
	}
	clause := "OFFSET " + strconv.Itoa(offset) + " ROWS"
	if limit >= 0 {
		clause += " FETCH NEXT " + strconv.Itoa(limit) + " ROWS ONLY"
	}
	// OFFSET/FETCH is only legal after an ORDER BY; supply a constant
	// ordering when the statement has none.
	if !ordered {
		clause = "ORDER BY (SELECT NULL) " + clause
	}
	return clause
}

func (MSSQL) ColumnTypeName(f fields.Field) (string, error) {
	switch f.StoredType() {
	case fields.TypeInt8, fields.TypeInt16:
		return "SMALLINT", nil
	case fields.TypeUInt8:
		return "TINYINT", nil
	case fields.TypeInt32:
		return "INT", nil
	case fields.TypeInt64, fields.TypeEnum, fields.TypeUser:
		return "BIGINT", nil
	case fields.TypeFloat32:
		return "REAL", nil
	case fields.TypeFloat64:
		return "FLOAT", nil
	case fields.TypeBool:
		return "BIT", nil
	case fields.TypeString:
		if n := int(f.MaximumLength); n > 0 && n <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", n), nil
		}
		return "NVARCHAR(MAX)", nil
	case fields.TypeBinary:
		if n := int(f.MaximumLength); n > 0 && n <= 8000 {
			return fmt.Sprintf("VARBINARY(%d)", n), nil
		}
		return "VARBINARY(MAX)", nil
	case fields.TypeDecimal:
		p, s := f.DecimalPrecision(28, 8)
		return fmt.Sprintf("DECIMAL(%d,%d)", p, s), nil
	case fields.TypeDateTime:
		return mssqlTemporalColumnType(f, "DATETIME2")
	case fields.TypeTimeSpan:
		return mssqlTemporalColumnType(f, "BIGINT")
	default:
		return "", fmt.Errorf("mssql: no column type for %v", f.DataType)
	}
}

func (MSSQL) AutoIncrementClause(typeName string) string {
	return typeName + " IDENTITY(1,1)"
}

func (d MSSQL) TableListQuery(database string) string {
	return "SELECT [name] FROM " + d.EscapeFieldName(database) + ".sys.tables"
}

// @@IDENTITY is session-scoped, unlike IDENT_CURRENT which reports other
// sessions' inserts too; the query must run on the inserting connection.
func (MSSQL) LastInsertedIDQuery(database, table, idField string) string {
	return "SELECT @@IDENTITY"
}

func mssqlTemporalColumnType(f fields.Field, native string) (string, error) {
	switch f.DateTimeType {
	case fields.DateTimeNative:
		return native, nil
	case fields.DateTimeBigIntTicks, fields.DateTimeBigIntHumanReadable:
		return "BIGINT", nil
	case fields.DateTimeDecimalSeconds:
		return "DECIMAL(21,7)", nil
	case fields.DateTimeDoubleSeconds, fields.DateTimeDoubleEpoch:
		return "FLOAT", nil
	default:
		return "", fmt.Errorf("no column type for datetime representation %v", f.DateTimeType)
	}
}
