// Package table is the statement-free access surface: tables and databases
// expose inserts, updates, deletes and searches over layouts and rows, and
// every statement is compiled, executed and decoded behind the scenes.
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elfen20/clone-cave-data-sub003/internal/engine"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
	"github.com/elfen20/clone-cave-data-sub003/internal/search"
)

// ErrRowNotFound reports a single-row lookup that matched nothing.
var ErrRowNotFound = errors.New("no row matched")

// Table provides row-level access to one table of one database. The layout
// carried here governs compilation and decoding for every operation.
type Table struct {
	eng      *engine.Engine
	compiler search.Compiler
	database string
	name     string
	layout   *fields.Layout
	logger   *slog.Logger
}

// New builds a table facade over an engine. The layout is typically either a
// binding's layout or one discovered through Database.Table.
func New(eng *engine.Engine, database string, layout *fields.Layout, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		eng:      eng,
		compiler: search.Compiler{Policy: eng.Policy(), Codec: eng.Codec()},
		database: database,
		name:     layout.Name(),
		layout:   layout,
		logger:   logger,
	}
}

func (t *Table) Name() string           { return t.name }
func (t *Table) Database() string       { return t.database }
func (t *Table) Layout() *fields.Layout { return t.layout }

// Insert stores the row and returns it with the backend-assigned ID filled
// in when the layout has an auto-increment ID field.
func (t *Table) Insert(ctx context.Context, row fields.Row) (fields.Row, error) {
	cmd, err := t.compiler.Insert(t.layout, t.database, t.name, row)
	if err != nil {
		return row, err
	}
	idIndex := t.layout.IDFieldIndex()
	if idIndex < 0 || !t.layout.Field(idIndex).Flags.Has(fields.FlagAutoIncrement) {
		_, err := t.eng.Execute(ctx, t.database, t.name, cmd)
		return row, err
	}
	// The ID readback must run on the connection that inserted: the dialect
	// mechanisms (LAST_INSERT_ID, LASTVAL, @@IDENTITY) are session-scoped.
	idField := t.layout.Field(idIndex)
	raw, err := t.eng.ExecuteReturningID(ctx, t.database, t.name, cmd,
		t.eng.Policy().LastInsertedIDQuery(t.database, t.name, idField.DatabaseName()))
	if err != nil {
		return row, err
	}
	id, err := t.eng.Codec().LocalValue(idField, raw)
	if err != nil {
		return row, err
	}
	return row.WithID(t.layout, id)
}

// Update rewrites every non-ID field of the row identified by its ID value.
func (t *Table) Update(ctx context.Context, row fields.Row) error {
	cmd, err := t.compiler.Update(t.layout, t.database, t.name, row)
	if err != nil {
		return err
	}
	affected, err := t.eng.Execute(ctx, t.database, t.name, cmd)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("update %s.%s: %w", t.database, t.name, ErrRowNotFound)
	}
	return nil
}

// Replace updates the row when its ID already exists and inserts it
// otherwise. The returned row carries the effective ID.
func (t *Table) Replace(ctx context.Context, row fields.Row) (fields.Row, error) {
	idIndex := t.layout.IDFieldIndex()
	if idIndex < 0 {
		return row, fmt.Errorf("replace on %s.%s: layout has no ID field", t.database, t.name)
	}
	idField := t.layout.Field(idIndex)
	exists, err := t.Exist(ctx, search.FieldEquals(idField.Name, row.Value(idIndex)))
	if err != nil {
		return row, err
	}
	if exists {
		return row, t.Update(ctx, row)
	}
	return t.Insert(ctx, row)
}

// Delete removes every row matching the expression and reports how many
// went. A nil expression removes nothing here; use Clear for that.
func (t *Table) Delete(ctx context.Context, s *search.Search) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("delete on %s.%s: nil search (use Clear to empty the table)", t.database, t.name)
	}
	cmd, err := t.compiler.Delete(t.layout, t.database, t.name, s)
	if err != nil {
		return 0, err
	}
	return t.eng.Execute(ctx, t.database, t.name, cmd)
}

// Clear removes every row of the table.
func (t *Table) Clear(ctx context.Context) (int64, error) {
	cmd, err := t.compiler.Delete(t.layout, t.database, t.name, nil)
	if err != nil {
		return 0, err
	}
	return t.eng.Execute(ctx, t.database, t.name, cmd)
}

// Count returns the number of matching rows, or with a group directive the
// number of distinct group values.
func (t *Table) Count(ctx context.Context, s *search.Search, opts search.ResultOption) (int64, error) {
	cmd, err := t.compiler.Count(t.layout, t.database, t.name, s, opts)
	if err != nil {
		return 0, err
	}
	v, err := t.eng.QueryValue(ctx, t.database, t.name, "", cmd)
	if err != nil {
		return 0, err
	}
	return fields.AsInt64(v)
}

// Exist reports whether at least one row matches.
func (t *Table) Exist(ctx context.Context, s *search.Search) (bool, error) {
	n, err := t.Count(ctx, s, search.None())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetRows returns every matching row under the given result options. On
// dialects that cannot SELECT * with GROUP BY, a grouped query degrades to
// one query for the distinct group values plus one single-row query per
// value, each picking the representative row with the highest ID.
func (t *Table) GetRows(ctx context.Context, s *search.Search, opts search.ResultOption) ([]fields.Row, error) {
	if gf, ok := opts.GroupField(); ok && !t.eng.Policy().Capabilities().GroupBySelectAll {
		return t.groupedRows(ctx, s, opts, gf)
	}
	cmd, err := t.compiler.Select(t.layout, t.database, t.name, s, opts)
	if err != nil {
		return nil, err
	}
	rows, _, err := t.eng.Query(ctx, t.database, t.name, t.layout, cmd)
	return rows, err
}

func (t *Table) groupedRows(ctx context.Context, s *search.Search, opts search.ResultOption, groupField string) ([]fields.Row, error) {
	idx := t.layout.FieldIndex(groupField)
	if idx < 0 {
		return nil, fmt.Errorf("layout %s has no field %s", t.layout.Name(), groupField)
	}
	cmd, err := t.compiler.Select(t.layout, t.database, t.name, s, opts)
	if err != nil {
		return nil, err
	}
	keyLayout, err := fields.NewLayout(t.name, false, t.layout.Field(idx))
	if err != nil {
		return nil, err
	}
	keys, _, err := t.eng.Query(ctx, t.database, t.name, keyLayout, cmd)
	if err != nil {
		return nil, err
	}

	pick := search.Limit(1)
	if idIndex := t.layout.IDFieldIndex(); idIndex >= 0 {
		pick = search.SortDescending(t.layout.Field(idIndex).Name).Add(pick)
	}
	rows := make([]fields.Row, 0, len(keys))
	for _, key := range keys {
		match := search.And(s, search.FieldEquals(groupField, key.Value(0)))
		row, err := t.GetRow(ctx, match, pick)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetRow returns the single matching row. Zero matches is an error; with
// more than one match the result options decide which row wins, so pass a
// sort or limit when the expression is not unique.
func (t *Table) GetRow(ctx context.Context, s *search.Search, opts search.ResultOption) (fields.Row, error) {
	if !opts.HasLimit() {
		opts = opts.Add(search.Limit(1))
	}
	rows, err := t.GetRows(ctx, s, opts)
	if err != nil {
		return fields.Row{}, err
	}
	if len(rows) == 0 {
		return fields.Row{}, fmt.Errorf("row in %s.%s: %w", t.database, t.name, ErrRowNotFound)
	}
	return rows[0], nil
}

// GetRowAt returns the matching row at the given position in ID order.
func (t *Table) GetRowAt(ctx context.Context, s *search.Search, index int) (fields.Row, error) {
	idIndex := t.layout.IDFieldIndex()
	if idIndex < 0 {
		return fields.Row{}, fmt.Errorf("row at index in %s.%s: layout has no ID field", t.database, t.name)
	}
	opts := search.SortAscending(t.layout.Field(idIndex).Name).Add(search.Offset(index))
	return t.GetRow(ctx, s, opts)
}

// GetValue returns the named field of the single matching row, nil when
// nothing matches.
func (t *Table) GetValue(ctx context.Context, fieldName string, s *search.Search, opts search.ResultOption) (any, error) {
	cmd, err := t.compiler.SelectField(t.layout, t.database, t.name, fieldName, s, opts)
	if err != nil {
		return nil, err
	}
	return t.eng.QueryValue(ctx, t.database, t.name, "", cmd)
}

// GetValues returns the distinct values of the named field across the
// matching rows.
func (t *Table) GetValues(ctx context.Context, fieldName string, s *search.Search, opts search.ResultOption) ([]any, error) {
	idx := t.layout.FieldIndex(fieldName)
	if idx < 0 {
		return nil, fmt.Errorf("layout %s has no field %s", t.layout.Name(), fieldName)
	}
	if _, ok := opts.GroupField(); !ok {
		opts = opts.Add(search.Group(fieldName))
	}
	cmd, err := t.compiler.SelectField(t.layout, t.database, t.name, fieldName, s, opts)
	if err != nil {
		return nil, err
	}
	valueLayout, err := fields.NewLayout(t.name, false, t.layout.Field(idx))
	if err != nil {
		return nil, err
	}
	rows, _, err := t.eng.Query(ctx, t.database, t.name, valueLayout, cmd)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(rows))
	for i, row := range rows {
		values[i] = row.Value(0)
	}
	return values, nil
}

// LastInsertedID returns the most recently assigned auto-increment ID as
// seen by whichever pooled connection serves the query. Insert retrieves
// the ID on the inserting connection itself; prefer its return value.
func (t *Table) LastInsertedID(ctx context.Context) (any, error) {
	idIndex := t.layout.IDFieldIndex()
	if idIndex < 0 {
		return nil, fmt.Errorf("last inserted ID on %s.%s: layout has no ID field", t.database, t.name)
	}
	idField := t.layout.Field(idIndex)
	cmd := engine.Command{
		Text: t.eng.Policy().LastInsertedIDQuery(t.database, t.name, idField.DatabaseName()),
	}
	v, err := t.eng.QueryValue(ctx, t.database, t.name, "", cmd)
	if err != nil {
		return nil, err
	}
	// The aggregate comes back in whatever width the backend favors; fold
	// it into the ID field's local convention.
	return t.eng.Codec().LocalValue(idField, v)
}
