// Package dialect models one backend's SQL syntax and capability profile.
// Each backend implements Policy as a small strategy object the engine,
// pool, and search compiler branch on; nothing in the core inherits
// backend-specific behavior.
package dialect

import (
	"strconv"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/codec"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// Capabilities are the static switches a backend reports.
type Capabilities struct {
	// NamedParameters selects named placeholder emission; false means
	// positional-only.
	NamedParameters bool

	// GroupBySelectAll reports whether SELECT * combines with GROUP BY on
	// arbitrary fields. Backends without it take the group fallback path.
	GroupBySelectAll bool

	// CanChangeDatabase reports whether an open connection can be rebound
	// to another database. Governs the pool's connection matching strategy.
	CanChangeDatabase bool

	// ParameterPrefix is the placeholder prefix character (e.g. "@", "?").
	ParameterPrefix string

	// InfinitySentinels marks engines that cannot store IEEE infinities;
	// the codec substitutes max/min finite values for them.
	InfinitySentinels bool

	// Precision ceilings callers use to decide whether two values are
	// "equal enough" after a round trip.
	FloatEpsilon            float64
	DateTimeGranularity     time.Duration
	DefaultDecimalPrecision float64
}

// Policy is one backend's dialect strategy.
type Policy interface {
	Name() string
	Capabilities() Capabilities

	// EscapeFieldName quotes a column name.
	EscapeFieldName(name string) string
	// FQTN renders the fully qualified, quoted table name.
	FQTN(database, table string) string
	// Placeholder renders the parameter placeholder for the 1-based
	// position index. name is the parameter name for named dialects.
	Placeholder(index int, name string) string

	// DatabaseFieldProperties rewrites a field descriptor to what the
	// backend actually stores (e.g. Int8 promoted to Int16).
	DatabaseFieldProperties(f fields.Field) fields.Field

	// PagingClause renders the dialect's paging text. limit and offset are
	// -1 when unset; both unset yields an empty string. ordered reports
	// whether the statement already carries an ORDER BY; dialects whose
	// paging syntax requires one supply a constant ordering themselves.
	PagingClause(limit, offset int, ordered bool) string

	// ColumnTypeName returns the DDL type for a field.
	ColumnTypeName(f fields.Field) (string, error)

	// AutoIncrementClause returns the DDL decoration for auto-increment
	// columns, or a replacement column type when the dialect models
	// auto-increment as a type (empty clause in that case is fine).
	AutoIncrementClause(typeName string) string

	// TableListQuery returns the statement enumerating the tables of a
	// database. The result set's first column holds the table names.
	TableListQuery(database string) string

	// LastInsertedIDQuery returns the statement retrieving the most
	// recently inserted auto-increment value for the table.
	LastInsertedIDQuery(database, table, idField string) string
}

// CodecFor builds the value codec matching a policy's capabilities.
func CodecFor(p Policy) codec.Codec {
	caps := p.Capabilities()
	return codec.Codec{
		InfinitySentinels: caps.InfinitySentinels,
		DefaultDecimal:    caps.DefaultDecimalPrecision,
	}
}

// ParameterName returns the canonical generated parameter name for the
// 1-based position index, shared by every named-parameter dialect.
func ParameterName(index int) string {
	return "p" + strconv.Itoa(index)
}
