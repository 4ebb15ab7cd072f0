package dialect

import (
	"fmt"
	"strconv"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// MySQL is the MySQL/MariaDB dialect: backtick quoting, positional `?`
// placeholders, rebindable connections (USE), SELECT * with GROUP BY, and no
// IEEE infinities in FLOAT/DOUBLE columns.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Capabilities() Capabilities {
	return Capabilities{
		NamedParameters:         false,
		GroupBySelectAll:        true,
		CanChangeDatabase:       true,
		ParameterPrefix:         "?",
		InfinitySentinels:       true,
		FloatEpsilon:            1e-6,
		DateTimeGranularity:     time.Microsecond,
		DefaultDecimalPrecision: 28.08,
	}
}

func (MySQL) EscapeFieldName(name string) string {
	return "`" + name + "`"
}

func (d MySQL) FQTN(database, table string) string {
	return d.EscapeFieldName(database) + "." + d.EscapeFieldName(table)
}

func (MySQL) Placeholder(index int, name string) string {
	return "?"
}

func (MySQL) DatabaseFieldProperties(f fields.Field) fields.Field {
	return f
}

func (MySQL) PagingClause(limit, offset int, _ bool) string {
	switch {
	case limit >= 0 && offset > 0:
		return "LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)
	case limit >= 0:
		return "LIMIT " + strconv.Itoa(limit)
	case offset > 0:
		// MySQL has no offset-without-limit form.
		return "LIMIT 18446744073709551615 OFFSET " + strconv.Itoa(offset)
	default:
		return ""
	}
}

func (MySQL) ColumnTypeName(f fields.Field) (string, error) {
	switch f.StoredType() {
	case fields.TypeInt8:
		return "TINYINT", nil
	case fields.TypeInt16:
		return "SMALLINT", nil
	case fields.TypeInt32:
		return "INT", nil
	case fields.TypeInt64, fields.TypeEnum, fields.TypeUser:
		return "BIGINT", nil
	case fields.TypeUInt8:
		return "TINYINT UNSIGNED", nil
	case fields.TypeUInt16:
		return "SMALLINT UNSIGNED", nil
	case fields.TypeUInt32:
		return "INT UNSIGNED", nil
	case fields.TypeUInt64:
		return "BIGINT UNSIGNED", nil
	case fields.TypeFloat32:
		return "FLOAT", nil
	case fields.TypeFloat64:
		return "DOUBLE", nil
	case fields.TypeBool:
		return "TINYINT(1)", nil
	case fields.TypeString:
		if n := int(f.MaximumLength); n > 0 && n <= 65535 {
			return fmt.Sprintf("VARCHAR(%d)", n), nil
		}
		return "LONGTEXT", nil
	case fields.TypeBinary:
		if n := int(f.MaximumLength); n > 0 && n <= 65535 {
			return fmt.Sprintf("VARBINARY(%d)", n), nil
		}
		return "LONGBLOB", nil
	case fields.TypeDecimal:
		p, s := f.DecimalPrecision(28, 8)
		return fmt.Sprintf("DECIMAL(%d,%d)", p, s), nil
	case fields.TypeDateTime:
		return temporalColumnType(f, "DATETIME(6)")
	case fields.TypeTimeSpan:
		return temporalColumnType(f, "BIGINT")
	default:
		return "", fmt.Errorf("mysql: no column type for %v", f.DataType)
	}
}

func (MySQL) AutoIncrementClause(typeName string) string {
	return typeName + " AUTO_INCREMENT"
}

func (d MySQL) TableListQuery(database string) string {
	return "SHOW TABLES FROM " + d.EscapeFieldName(database)
}

// LAST_INSERT_ID is scoped to the session, so the query must run on the
// same connection that performed the insert.
func (MySQL) LastInsertedIDQuery(database, table, idField string) string {
	return "SELECT LAST_INSERT_ID()"
}

// temporalColumnType maps the non-native storage representations shared by
// MySQL and Postgres; native uses the dialect's own temporal column.
func temporalColumnType(f fields.Field, native string) (string, error) {
	switch f.DateTimeType {
	case fields.DateTimeNative:
		return native, nil
	case fields.DateTimeBigIntTicks, fields.DateTimeBigIntHumanReadable:
		return "BIGINT", nil
	case fields.DateTimeDecimalSeconds:
		return "DECIMAL(21,7)", nil
	case fields.DateTimeDoubleSeconds, fields.DateTimeDoubleEpoch:
		return "DOUBLE PRECISION", nil
	default:
		return "", fmt.Errorf("no column type for datetime representation %v", f.DateTimeType)
	}
}
