package memdrv

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// apply executes a mutating statement. Caller holds the write lock.
// apply runs a mutating statement. Inserts go through Store.insert directly
// so the connection can observe the assigned auto-increment value.
func (s *Store) apply(stmt statement) (int64, error) {
	switch st := stmt.(type) {
	case *updateStmt:
		return s.update(st)
	case *deleteStmt:
		return s.delete(st)
	case *createTableStmt:
		return s.createTable(st)
	case *createIndexStmt:
		return s.createIndex(st)
	case *dropTableStmt:
		return s.dropTable(st)
	default:
		return 0, fmt.Errorf("memdrv: statement yields a result set; use Query")
	}
}

// insert also reports the auto-increment value it assigned, zero when the
// statement supplied every column itself.
func (s *Store) insert(st *insertStmt) (int64, int64, error) {
	db, err := s.database(st.database)
	if err != nil {
		return 0, 0, err
	}
	t, err := db.table(st.table)
	if err != nil {
		return 0, 0, err
	}
	row := make([]any, len(t.columns))
	provided := make([]bool, len(t.columns))
	for i, name := range st.columns {
		idx := t.columnIndex(name)
		if idx < 0 {
			return 0, 0, fmt.Errorf("memdrv: table %s has no column %s", st.table, name)
		}
		row[idx] = st.values[i]
		provided[idx] = true
	}
	var assigned int64
	for i, col := range t.columns {
		if col.IsAutoIncrement && !provided[i] {
			t.nextID++
			row[i] = t.nextID
			assigned = t.nextID
			continue
		}
		if col.IsAutoIncrement {
			if n, ok := row[i].(int64); ok && n > t.nextID {
				t.nextID = n
			}
		}
	}
	if err := t.checkUnique(row, -1); err != nil {
		return 0, 0, err
	}
	t.rows = append(t.rows, row)
	return 1, assigned, nil
}

func (s *Store) update(st *updateStmt) (int64, error) {
	db, err := s.database(st.database)
	if err != nil {
		return 0, err
	}
	t, err := db.table(st.table)
	if err != nil {
		return 0, err
	}
	var affected int64
	for i, row := range t.rows {
		ok, err := t.matches(row, st.where)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		next := make([]any, len(row))
		copy(next, row)
		for _, set := range st.sets {
			idx := t.columnIndex(set.column)
			if idx < 0 {
				return 0, fmt.Errorf("memdrv: table %s has no column %s", st.table, set.column)
			}
			next[idx] = set.value
		}
		if err := t.checkUnique(next, i); err != nil {
			return 0, err
		}
		t.rows[i] = next
		affected++
	}
	return affected, nil
}

func (s *Store) delete(st *deleteStmt) (int64, error) {
	db, err := s.database(st.database)
	if err != nil {
		return 0, err
	}
	t, err := db.table(st.table)
	if err != nil {
		return 0, err
	}
	kept := t.rows[:0]
	var removed int64
	for _, row := range t.rows {
		ok, err := t.matches(row, st.where)
		if err != nil {
			return 0, err
		}
		if ok {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return removed, nil
}

func (s *Store) createTable(st *createTableStmt) (int64, error) {
	db, err := s.database(st.database)
	if err != nil {
		return 0, err
	}
	if _, exists := db.tables[st.table]; exists {
		return 0, fmt.Errorf("memdrv: table %s already exists", st.table)
	}
	db.tables[st.table] = &memTable{columns: st.columns}
	db.order = append(db.order, st.table)
	return 0, nil
}

func (s *Store) createIndex(st *createIndexStmt) (int64, error) {
	db, err := s.database(st.database)
	if err != nil {
		return 0, err
	}
	t, err := db.table(st.table)
	if err != nil {
		return 0, err
	}
	if t.columnIndex(st.column) < 0 {
		return 0, fmt.Errorf("memdrv: table %s has no column %s", st.table, st.column)
	}
	// Indexes change nothing observable here.
	return 0, nil
}

func (s *Store) dropTable(st *dropTableStmt) (int64, error) {
	db, err := s.database(st.database)
	if err != nil {
		return 0, err
	}
	if _, ok := db.tables[st.table]; !ok {
		return 0, fmt.Errorf("memdrv: unknown table %s", st.table)
	}
	delete(db.tables, st.table)
	for i, name := range db.order {
		if name == st.table {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
	return 0, nil
}

// query evaluates a select. Caller holds at least the read lock.
func (s *Store) query(st *selectStmt) (driver.Reader, error) {
	db, err := s.database(st.database)
	if err != nil {
		return nil, err
	}
	t, err := db.table(st.table)
	if err != nil {
		return nil, err
	}
	var matched [][]any
	for _, row := range t.rows {
		ok, err := t.matches(row, st.where)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	switch st.agg {
	case aggCount:
		return singleValue("COUNT(*)", fields.TypeInt64, int64(len(matched))), nil
	case aggCountDistinct:
		idx := t.columnIndex(st.aggField)
		if idx < 0 {
			return nil, fmt.Errorf("memdrv: table %s has no column %s", st.table, st.aggField)
		}
		seen := make(map[string]struct{})
		for _, row := range matched {
			seen[distinctKey(row[idx])] = struct{}{}
		}
		return singleValue("COUNT(DISTINCT)", fields.TypeInt64, int64(len(seen))), nil
	case aggMax:
		idx := t.columnIndex(st.aggField)
		if idx < 0 {
			return nil, fmt.Errorf("memdrv: table %s has no column %s", st.table, st.aggField)
		}
		var max any
		for _, row := range matched {
			if row[idx] == nil {
				continue
			}
			if max == nil {
				max = row[idx]
				continue
			}
			c, err := compareValues(row[idx], max)
			if err != nil {
				return nil, err
			}
			if c > 0 {
				max = row[idx]
			}
		}
		return singleValue("MAX", t.columns[idx].DataType, max), nil
	}

	if st.groupBy != "" {
		idx := t.columnIndex(st.groupBy)
		if idx < 0 {
			return nil, fmt.Errorf("memdrv: table %s has no column %s", st.table, st.groupBy)
		}
		seen := make(map[string]struct{})
		var grouped [][]any
		for _, row := range matched {
			key := distinctKey(row[idx])
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			grouped = append(grouped, row)
		}
		matched = grouped
	}

	if len(st.orderBy) > 0 {
		keys := make([]int, len(st.orderBy))
		for i, k := range st.orderBy {
			idx := t.columnIndex(k.field)
			if idx < 0 {
				return nil, fmt.Errorf("memdrv: table %s has no column %s", st.table, k.field)
			}
			keys[i] = idx
		}
		var sortErr error
		sort.SliceStable(matched, func(a, b int) bool {
			for i, idx := range keys {
				c, err := compareValues(matched[a][idx], matched[b][idx])
				if err != nil {
					sortErr = err
					return false
				}
				if c == 0 {
					continue
				}
				if st.orderBy[i].desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	if st.offset > 0 {
		if st.offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[st.offset:]
		}
	}
	if st.limit >= 0 && st.limit < len(matched) {
		matched = matched[:st.limit]
	}

	columns := t.columns
	if st.column != "" {
		idx := t.columnIndex(st.column)
		if idx < 0 {
			return nil, fmt.Errorf("memdrv: table %s has no column %s", st.table, st.column)
		}
		columns = []driver.Column{t.columns[idx]}
		projected := make([][]any, len(matched))
		for i, row := range matched {
			projected[i] = []any{row[idx]}
		}
		matched = projected
	}
	// Copy rows out so later writes cannot alias the result set.
	out := make([][]any, len(matched))
	for i, row := range matched {
		out[i] = append([]any(nil), row...)
	}
	return &reader{columns: columns, rows: out}, nil
}

func (s *Store) showTables(st *showTablesStmt) (driver.Reader, error) {
	db, err := s.database(st.database)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, len(db.order))
	for i, name := range db.order {
		rows[i] = []any{name}
	}
	return &reader{
		columns: []driver.Column{{Name: "Tables_in_" + st.database, DataType: fields.TypeString}},
		rows:    rows,
	}, nil
}

func singleValue(name string, dt fields.DataType, v any) driver.Reader {
	return &reader{
		columns: []driver.Column{{Name: name, DataType: dt}},
		rows:    [][]any{{v}},
	}
}

func (t *memTable) matches(row []any, c *cond) (bool, error) {
	if c == nil {
		return true, nil
	}
	if c.parts != nil {
		for _, part := range c.parts {
			ok, err := t.matches(row, part)
			if err != nil {
				return false, err
			}
			if c.or && ok {
				return true, nil
			}
			if !c.or && !ok {
				return false, nil
			}
		}
		return !c.or, nil
	}
	if c.field == "" {
		return !c.never, nil
	}
	idx := t.columnIndex(c.field)
	if idx < 0 {
		return false, fmt.Errorf("memdrv: no column %s", c.field)
	}
	v := row[idx]
	// NULL never satisfies a comparison, except NULL = NULL which the
	// codec's zero-value collapse relies on.
	if v == nil || c.value == nil {
		if c.op == "=" {
			return v == nil && c.value == nil, nil
		}
		if c.op == "<>" {
			return (v == nil) != (c.value == nil), nil
		}
		return false, nil
	}
	cmp, err := compareValues(v, c.value)
	if err != nil {
		return false, err
	}
	switch c.op {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case ">":
		return cmp > 0, nil
	case "<":
		return cmp < 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<=":
		return cmp <= 0, nil
	default:
		return false, fmt.Errorf("memdrv: unknown operator %s", c.op)
	}
}

// checkUnique rejects a row that collides with another row on a key or
// unique column. self is the row's own index, -1 for inserts.
func (t *memTable) checkUnique(row []any, self int) error {
	for i, col := range t.columns {
		if !col.IsKey && !col.IsUnique {
			continue
		}
		if row[i] == nil {
			continue
		}
		for j, other := range t.rows {
			if j == self || other[i] == nil {
				continue
			}
			c, err := compareValues(row[i], other[i])
			if err != nil {
				return err
			}
			if c == 0 {
				return fmt.Errorf("memdrv: duplicate value for %s", col.Name)
			}
		}
	}
	return nil
}

func distinctKey(v any) string {
	switch t := v.(type) {
	case nil:
		return "<null>"
	case []byte:
		return "b|" + string(t)
	case time.Time:
		return "t|" + t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%T|%v", v, v)
	}
}

func compareValues(a, b any) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, compareTypeErr(a, b)
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case []byte:
		bv, ok := b.([]byte)
		if !ok {
			return 0, compareTypeErr(a, b)
		}
		return bytes.Compare(av, bv), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, compareTypeErr(a, b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		}
		return 1, nil
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, compareTypeErr(a, b)
		}
		return av.Compare(bv), nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, compareTypeErr(a, b)
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	}
	return 0, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareTypeErr(a, b any) error {
	return fmt.Errorf("memdrv: cannot compare %T with %T", a, b)
}
