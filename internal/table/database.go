package table

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/elfen20/clone-cave-data-sub003/internal/engine"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
	"github.com/elfen20/clone-cave-data-sub003/internal/schemacache"
)

// Database is the entry point for one named database: it opens tables by
// discovering their layouts, manages table DDL, and keeps the schema cache
// honest across DDL.
type Database struct {
	eng     *engine.Engine
	name    string
	schemas *schemacache.Cache
	logger  *slog.Logger
}

// NewDatabase builds a database facade. schemas may be nil, in which case
// every Table call introspects the backend.
func NewDatabase(eng *engine.Engine, name string, schemas *schemacache.Cache, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}
	return &Database{eng: eng, name: name, schemas: schemas, logger: logger}
}

func (d *Database) Name() string           { return d.name }
func (d *Database) Engine() *engine.Engine { return d.eng }

func (d *Database) layoutOf(ctx context.Context, tableName string) (*fields.Layout, error) {
	if d.schemas != nil {
		return d.schemas.Layout(ctx, d.name, tableName)
	}
	return d.eng.QuerySchema(ctx, d.name, tableName)
}

// Table opens a table by discovering its layout from the backend (or the
// schema cache).
func (d *Database) Table(ctx context.Context, tableName string) (*Table, error) {
	layout, err := d.layoutOf(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return New(d.eng, d.name, layout, d.logger), nil
}

// OpenTyped opens a table through a struct binding, verifying up front that
// the stored schema structurally matches the binding.
func OpenTyped[T any](ctx context.Context, d *Database, b *fields.Binding[T]) (*Typed[T], error) {
	layout := b.Layout()
	derived, err := d.layoutOf(ctx, layout.Name())
	if err != nil {
		return nil, err
	}
	if err := fields.CheckLayout(engine.DatabaseShape(layout, d.eng.Policy()), derived); err != nil {
		return nil, &engine.SchemaMismatchError{Database: d.name, Table: layout.Name(), Err: err}
	}
	return NewTyped(d.eng, d.name, b, d.logger), nil
}

// TableNames lists the tables of the database.
func (d *Database) TableNames(ctx context.Context) ([]string, error) {
	cmd := engine.Command{Text: d.eng.Policy().TableListQuery(d.name)}
	rows, _, err := d.eng.Query(ctx, d.name, "tables", nil, cmd)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name, err := fields.AsString(row.Value(0))
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// TableExists reports whether the named table exists.
func (d *Database) TableExists(ctx context.Context, tableName string) (bool, error) {
	names, err := d.TableNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == tableName {
			return true, nil
		}
	}
	return false, nil
}

// CreateTable builds the table described by the layout: one column per
// field, primary key on the ID field, unique constraints inline, and a
// secondary index per indexed field.
func (d *Database) CreateTable(ctx context.Context, layout *fields.Layout) error {
	policy := d.eng.Policy()
	cols := make([]string, 0, layout.FieldCount())
	var indexed []fields.Field
	for i := 0; i < layout.FieldCount(); i++ {
		f := policy.DatabaseFieldProperties(layout.Field(i))
		typeName, err := policy.ColumnTypeName(f)
		if err != nil {
			return fmt.Errorf("create table %s.%s: %w", d.name, layout.Name(), err)
		}
		if f.Flags.Has(fields.FlagAutoIncrement) {
			typeName = policy.AutoIncrementClause(typeName)
		}
		col := policy.EscapeFieldName(f.DatabaseName()) + " " + typeName
		if f.Flags.Has(fields.FlagID) {
			col += " NOT NULL PRIMARY KEY"
		} else if f.Flags.Has(fields.FlagUnique) {
			col += " UNIQUE"
		}
		cols = append(cols, col)
		if f.Flags.Has(fields.FlagIndex) && !f.Flags.Has(fields.FlagID) {
			indexed = append(indexed, f)
		}
	}
	ddl := "CREATE TABLE " + policy.FQTN(d.name, layout.Name()) + " (" + strings.Join(cols, ",") + ")"
	if _, err := d.eng.Execute(ctx, d.name, layout.Name(), engine.Command{Text: ddl}); err != nil {
		return err
	}
	for _, f := range indexed {
		stmt := "CREATE INDEX " + policy.EscapeFieldName("ix_"+layout.Name()+"_"+f.DatabaseName()) +
			" ON " + policy.FQTN(d.name, layout.Name()) +
			" (" + policy.EscapeFieldName(f.DatabaseName()) + ")"
		if _, err := d.eng.Execute(ctx, d.name, layout.Name(), engine.Command{Text: stmt}); err != nil {
			return err
		}
	}
	if d.schemas != nil {
		d.schemas.Invalidate(ctx, d.name, layout.Name())
	}
	return nil
}

// DropTable removes the table and invalidates its cached layout.
func (d *Database) DropTable(ctx context.Context, tableName string) error {
	ddl := "DROP TABLE " + d.eng.Policy().FQTN(d.name, tableName)
	if _, err := d.eng.Execute(ctx, d.name, tableName, engine.Command{Text: ddl}); err != nil {
		return err
	}
	if d.schemas != nil {
		d.schemas.Invalidate(ctx, d.name, tableName)
	}
	return nil
}
