// Package memdrv is an in-memory backend speaking the MySQL dialect's SQL
// surface. It exists for tests and local development: a full store with
// tables, auto-increment IDs and schema reflection, plus failure injection
// knobs to exercise the retry path.
package memdrv

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// Store holds every database. It implements driver.Connector; connections
// share the store under one lock.
type Store struct {
	mu        sync.RWMutex
	databases map[string]*memDatabase

	failOpens atomic.Int32
	failStmts atomic.Int32
	// killOnFail closes the failing connection too, making the injected
	// failure look transient to the engine.
	killOnFail atomic.Bool
}

type memDatabase struct {
	tables map[string]*memTable
	// order keeps SHOW TABLES deterministic.
	order []string
}

type memTable struct {
	columns []driver.Column
	rows    [][]any
	nextID  int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{databases: make(map[string]*memDatabase)}
}

// CreateDatabase adds an empty database; creating an existing one is a no-op.
func (s *Store) CreateDatabase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.databases[name]; !ok {
		s.databases[name] = &memDatabase{tables: make(map[string]*memTable)}
	}
}

// FailNextOpens makes the next n Open calls fail.
func (s *Store) FailNextOpens(n int) { s.failOpens.Store(int32(n)) }

// FailNextStatements makes the next n statements fail. With killConn the
// failing connection is closed as well, so the failure reads as transient.
func (s *Store) FailNextStatements(n int, killConn bool) {
	s.killOnFail.Store(killConn)
	s.failStmts.Store(int32(n))
}

// Open implements driver.Connector.
func (s *Store) Open(ctx context.Context, database string) (driver.Conn, error) {
	if n := s.failOpens.Add(-1); n >= 0 {
		return nil, fmt.Errorf("memdrv: injected open failure (%d left)", n)
	}
	s.failOpens.CompareAndSwap(-1, 0)
	s.mu.RLock()
	_, ok := s.databases[database]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memdrv: unknown database %s", database)
	}
	c := &conn{store: s, database: database}
	c.open.Store(true)
	return c, nil
}

func (s *Store) database(name string) (*memDatabase, error) {
	db, ok := s.databases[name]
	if !ok {
		return nil, fmt.Errorf("memdrv: unknown database %s", name)
	}
	return db, nil
}

func (d *memDatabase) table(name string) (*memTable, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("memdrv: unknown table %s", name)
	}
	return t, nil
}

func (t *memTable) columnIndex(name string) int {
	for i := range t.columns {
		if t.columns[i].Name == name {
			return i
		}
	}
	return -1
}

type conn struct {
	store    *Store
	database string
	open     atomic.Bool

	// lastInsertID mirrors MySQL's session scoping: it holds the latest
	// auto-increment value this connection's inserts generated, untouched
	// by other connections' inserts or by deletes.
	lastInsertID atomic.Int64
}

func (c *conn) IsOpen() bool { return c.open.Load() }

func (c *conn) Close() error {
	c.open.Store(false)
	return nil
}

func (c *conn) SelectDatabase(ctx context.Context, database string) error {
	if !c.open.Load() {
		return driver.ErrClosed
	}
	c.store.mu.RLock()
	_, ok := c.store.databases[database]
	c.store.mu.RUnlock()
	if !ok {
		return fmt.Errorf("memdrv: unknown database %s", database)
	}
	c.database = database
	return nil
}

func (c *conn) injectFailure() error {
	if n := c.store.failStmts.Add(-1); n >= 0 {
		if c.store.killOnFail.Load() {
			c.open.Store(false)
		}
		return fmt.Errorf("memdrv: injected statement failure (%d left)", n)
	}
	c.store.failStmts.CompareAndSwap(-1, 0)
	return nil
}

func (c *conn) Exec(ctx context.Context, text string, params []driver.Param) (int64, error) {
	if !c.open.Load() {
		return 0, driver.ErrClosed
	}
	if err := c.injectFailure(); err != nil {
		return 0, err
	}
	stmt, err := parse(text, paramValues(params))
	if err != nil {
		return 0, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if ins, ok := stmt.(*insertStmt); ok {
		affected, id, err := c.store.insert(ins)
		if err == nil && id != 0 {
			c.lastInsertID.Store(id)
		}
		return affected, err
	}
	return c.store.apply(stmt)
}

func (c *conn) Query(ctx context.Context, text string, params []driver.Param) (driver.Reader, error) {
	if !c.open.Load() {
		return nil, driver.ErrClosed
	}
	if err := c.injectFailure(); err != nil {
		return nil, err
	}
	stmt, err := parse(text, paramValues(params))
	if err != nil {
		return nil, err
	}
	switch st := stmt.(type) {
	case *selectStmt:
		c.store.mu.RLock()
		defer c.store.mu.RUnlock()
		return c.store.query(st)
	case *showTablesStmt:
		c.store.mu.RLock()
		defer c.store.mu.RUnlock()
		return c.store.showTables(st)
	case *lastInsertIDStmt:
		return singleValue("LAST_INSERT_ID()", fields.TypeInt64, c.lastInsertID.Load()), nil
	default:
		return nil, fmt.Errorf("memdrv: statement yields no result set: %s", text)
	}
}

func paramValues(params []driver.Param) []any {
	values := make([]any, len(params))
	for i, p := range params {
		values[i] = p.Value
	}
	return values
}

// reader is a fully materialized result set.
type reader struct {
	columns []driver.Column
	rows    [][]any
	pos     int
}

func (r *reader) Columns() []driver.Column { return r.columns }

func (r *reader) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *reader) Values() ([]any, error) {
	if r.pos == 0 || r.pos > len(r.rows) {
		return nil, fmt.Errorf("memdrv: no current row")
	}
	row := r.rows[r.pos-1]
	out := make([]any, len(row))
	copy(out, row)
	return out, nil
}

func (r *reader) Err() error   { return nil }
func (r *reader) Close() error { return nil }
