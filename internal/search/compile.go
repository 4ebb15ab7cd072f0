package search

import (
	"fmt"
	"strings"

	"github.com/elfen20/clone-cave-data-sub003/internal/codec"
	"github.com/elfen20/clone-cave-data-sub003/internal/dialect"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/engine"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// Compiler renders expressions and options against a layout into SQL text
// and bound parameters for one dialect. Value positions always go through
// parameter binding; parameter list order matches placeholder emission order.
type Compiler struct {
	Policy dialect.Policy
	Codec  codec.Codec
}

// NewCompiler builds a compiler whose codec matches the policy.
func NewCompiler(policy dialect.Policy) Compiler {
	return Compiler{Policy: policy, Codec: dialect.CodecFor(policy)}
}

// renderedOptions is the decomposed, validated form of a ResultOption set.
type renderedOptions struct {
	groupField string
	orderBy    string // comma-joined "`f` ASC" items, empty when none
	limit      int    // -1 when unset
	offset     int    // -1 when unset
}

func (c Compiler) renderOptions(layout *fields.Layout, opts ResultOption) (renderedOptions, error) {
	out := renderedOptions{limit: -1, offset: -1}
	var order []string
	for _, d := range opts.list {
		switch d.kind {
		case optSortAscending, optSortDescending:
			f, err := c.lookup(layout, d.field)
			if err != nil {
				return out, err
			}
			dir := " ASC"
			if d.kind == optSortDescending {
				dir = " DESC"
			}
			order = append(order, c.Policy.EscapeFieldName(f.DatabaseName())+dir)
		case optLimit:
			if out.limit >= 0 {
				return out, &InvalidOptionError{Reason: "multiple limit directives"}
			}
			if d.n < 0 {
				return out, &InvalidOptionError{Reason: fmt.Sprintf("negative limit %d", d.n)}
			}
			out.limit = d.n
		case optOffset:
			if out.offset >= 0 {
				return out, &InvalidOptionError{Reason: "multiple offset directives"}
			}
			if d.n < 0 {
				return out, &InvalidOptionError{Reason: fmt.Sprintf("negative offset %d", d.n)}
			}
			out.offset = d.n
		case optGroup:
			if out.groupField != "" {
				return out, &InvalidOptionError{Reason: "multiple group directives"}
			}
			if _, err := c.lookup(layout, d.field); err != nil {
				return out, err
			}
			out.groupField = d.field
		}
	}
	if out.groupField != "" && len(order) > 0 && !c.Policy.Capabilities().GroupBySelectAll {
		return out, &InvalidOptionError{
			Reason: fmt.Sprintf("dialect %s cannot combine group and sort directives", c.Policy.Name()),
		}
	}
	out.orderBy = strings.Join(order, ",")
	return out, nil
}

func (c Compiler) lookup(layout *fields.Layout, name string) (fields.Field, error) {
	idx := layout.FieldIndex(name)
	if idx < 0 {
		return fields.Field{}, fmt.Errorf("layout %s has no field %s", layout.Name(), name)
	}
	return layout.Field(idx), nil
}

// where renders the expression tree, appending parameters to params.
// Returns the fragment without the WHERE keyword; empty for a nil tree.
func (c Compiler) where(layout *fields.Layout, s *Search, params *[]driver.Param) (string, error) {
	if s == nil {
		return "", nil
	}
	if s.parts != nil {
		rendered := make([]string, len(s.parts))
		for i, part := range s.parts {
			frag, err := c.where(layout, part, params)
			if err != nil {
				return "", err
			}
			rendered[i] = frag
		}
		return "(" + strings.Join(rendered, " "+s.combine+" ") + ")", nil
	}
	f, err := c.lookup(layout, s.field)
	if err != nil {
		return "", err
	}
	wire, err := c.Codec.DatabaseValue(f, s.value)
	if err != nil {
		return "", err
	}
	index := len(*params) + 1
	name := dialect.ParameterName(index)
	*params = append(*params, driver.Param{Name: name, Value: wire})
	return c.Policy.EscapeFieldName(f.DatabaseName()) + s.op.sql() + c.Policy.Placeholder(index, name), nil
}

// Select compiles a row query. On dialects without SELECT * + GROUP BY, a
// grouped query selects only the group field; callers then resolve full rows
// per group key (see the table facade's fallback).
func (c Compiler) Select(layout *fields.Layout, database, table string, s *Search, opts ResultOption) (engine.Command, error) {
	ro, err := c.renderOptions(layout, opts)
	if err != nil {
		return engine.Command{}, err
	}
	var params []driver.Param
	where, err := c.where(layout, s, &params)
	if err != nil {
		return engine.Command{}, err
	}

	var b strings.Builder
	if ro.groupField != "" && !c.Policy.Capabilities().GroupBySelectAll {
		gf, _ := c.lookup(layout, ro.groupField)
		b.WriteString("SELECT " + c.Policy.EscapeFieldName(gf.DatabaseName()))
	} else {
		b.WriteString("SELECT *")
	}
	b.WriteString(" FROM " + c.Policy.FQTN(database, table))
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	if ro.groupField != "" {
		gf, _ := c.lookup(layout, ro.groupField)
		b.WriteString(" GROUP BY " + c.Policy.EscapeFieldName(gf.DatabaseName()))
	}
	if ro.orderBy != "" {
		b.WriteString(" ORDER BY " + ro.orderBy)
	}
	if paging := c.Policy.PagingClause(ro.limit, ro.offset, ro.orderBy != ""); paging != "" {
		b.WriteString(" " + paging)
	}
	return engine.Command{Text: b.String(), Params: params}, nil
}

// SelectField compiles a single-column query with the same clause handling
// as Select.
func (c Compiler) SelectField(layout *fields.Layout, database, table, fieldName string, s *Search, opts ResultOption) (engine.Command, error) {
	ro, err := c.renderOptions(layout, opts)
	if err != nil {
		return engine.Command{}, err
	}
	f, err := c.lookup(layout, fieldName)
	if err != nil {
		return engine.Command{}, err
	}
	var params []driver.Param
	where, err := c.where(layout, s, &params)
	if err != nil {
		return engine.Command{}, err
	}

	var b strings.Builder
	b.WriteString("SELECT " + c.Policy.EscapeFieldName(f.DatabaseName()))
	b.WriteString(" FROM " + c.Policy.FQTN(database, table))
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	if ro.groupField != "" {
		gf, _ := c.lookup(layout, ro.groupField)
		b.WriteString(" GROUP BY " + c.Policy.EscapeFieldName(gf.DatabaseName()))
	}
	if ro.orderBy != "" {
		b.WriteString(" ORDER BY " + ro.orderBy)
	}
	if paging := c.Policy.PagingClause(ro.limit, ro.offset, ro.orderBy != ""); paging != "" {
		b.WriteString(" " + paging)
	}
	return engine.Command{Text: b.String(), Params: params}, nil
}

// Count compiles a row count query. A group directive counts distinct group
// values instead of rows.
func (c Compiler) Count(layout *fields.Layout, database, table string, s *Search, opts ResultOption) (engine.Command, error) {
	ro, err := c.renderOptions(layout, opts)
	if err != nil {
		return engine.Command{}, err
	}
	var params []driver.Param
	where, err := c.where(layout, s, &params)
	if err != nil {
		return engine.Command{}, err
	}

	var b strings.Builder
	if ro.groupField != "" {
		gf, _ := c.lookup(layout, ro.groupField)
		b.WriteString("SELECT COUNT(DISTINCT " + c.Policy.EscapeFieldName(gf.DatabaseName()) + ")")
	} else {
		b.WriteString("SELECT COUNT(*)")
	}
	b.WriteString(" FROM " + c.Policy.FQTN(database, table))
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	return engine.Command{Text: b.String(), Params: params}, nil
}

// Insert compiles an insert for the row. Auto-increment fields are omitted;
// the backend assigns them.
func (c Compiler) Insert(layout *fields.Layout, database, table string, row fields.Row) (engine.Command, error) {
	if row.Len() != layout.FieldCount() {
		return engine.Command{}, fmt.Errorf("row has %d values, layout %s has %d fields",
			row.Len(), layout.Name(), layout.FieldCount())
	}
	var names, holders []string
	var params []driver.Param
	for i := 0; i < layout.FieldCount(); i++ {
		f := layout.Field(i)
		if f.Flags.Has(fields.FlagAutoIncrement) {
			continue
		}
		wire, err := c.Codec.DatabaseValue(f, row.Value(i))
		if err != nil {
			return engine.Command{}, err
		}
		index := len(params) + 1
		name := dialect.ParameterName(index)
		params = append(params, driver.Param{Name: name, Value: wire})
		names = append(names, c.Policy.EscapeFieldName(f.DatabaseName()))
		holders = append(holders, c.Policy.Placeholder(index, name))
	}
	text := "INSERT INTO " + c.Policy.FQTN(database, table) +
		" (" + strings.Join(names, ",") + ") VALUES (" + strings.Join(holders, ",") + ")"
	return engine.Command{Text: text, Params: params}, nil
}

// Update compiles an update of every non-ID field, keyed by the row's ID.
func (c Compiler) Update(layout *fields.Layout, database, table string, row fields.Row) (engine.Command, error) {
	idIndex := layout.IDFieldIndex()
	if idIndex < 0 {
		return engine.Command{}, fmt.Errorf("layout %s has no ID field", layout.Name())
	}
	if row.Len() != layout.FieldCount() {
		return engine.Command{}, fmt.Errorf("row has %d values, layout %s has %d fields",
			row.Len(), layout.Name(), layout.FieldCount())
	}
	var sets []string
	var params []driver.Param
	for i := 0; i < layout.FieldCount(); i++ {
		if i == idIndex {
			continue
		}
		f := layout.Field(i)
		wire, err := c.Codec.DatabaseValue(f, row.Value(i))
		if err != nil {
			return engine.Command{}, err
		}
		index := len(params) + 1
		name := dialect.ParameterName(index)
		params = append(params, driver.Param{Name: name, Value: wire})
		sets = append(sets, c.Policy.EscapeFieldName(f.DatabaseName())+"="+c.Policy.Placeholder(index, name))
	}
	idField := layout.Field(idIndex)
	idWire, err := c.Codec.DatabaseValue(idField, row.Value(idIndex))
	if err != nil {
		return engine.Command{}, err
	}
	index := len(params) + 1
	name := dialect.ParameterName(index)
	params = append(params, driver.Param{Name: name, Value: idWire})
	text := "UPDATE " + c.Policy.FQTN(database, table) +
		" SET " + strings.Join(sets, ",") +
		" WHERE " + c.Policy.EscapeFieldName(idField.DatabaseName()) + "=" + c.Policy.Placeholder(index, name)
	return engine.Command{Text: text, Params: params}, nil
}

// Delete compiles a delete of every row matching the expression; a nil
// expression deletes all rows.
func (c Compiler) Delete(layout *fields.Layout, database, table string, s *Search) (engine.Command, error) {
	var params []driver.Param
	where, err := c.where(layout, s, &params)
	if err != nil {
		return engine.Command{}, err
	}
	text := "DELETE FROM " + c.Policy.FQTN(database, table)
	if where != "" {
		text += " WHERE " + where
	}
	return engine.Command{Text: text, Params: params}, nil
}
