// Package pool caches open physical database connections keyed by database
// name. Idle connections are evicted opportunistically on every acquire once
// they age past the close timeout; there is no background sweeper.
//
// The pool is the single shared mutable structure in the whole data layer:
// every operation holds one mutex for the entire scan-evict-select-move
// sequence so two callers can never select the same idle connection.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
)

// DefaultCloseTimeout is how long an idle connection may sit unused before
// the next acquire disposes it.
const DefaultCloseTimeout = 5 * time.Minute

// ErrClosed is returned by Get after the pool has been shut down.
var ErrClosed = errors.New("pool: closed")

// Conn wraps one physical open connection together with its pool bookkeeping.
// A Conn is exclusively owned by whichever caller checked it out; returning
// it to the pool transfers ownership back.
type Conn struct {
	// ID correlates log and audit entries for this physical connection.
	ID string
	// Database is the database the connection is currently bound to.
	Database string
	// LastUsed is the UTC time the connection was last returned.
	LastUsed time.Time

	conn driver.Conn
}

// Raw returns the underlying driver connection.
func (c *Conn) Raw() driver.Conn { return c.conn }

// IsOpen reports whether the underlying connection is still usable.
func (c *Conn) IsOpen() bool { return c != nil && c.conn.IsOpen() }

// Pool hands out usable, correctly database-scoped connections and reclaims
// them afterward. Resource growth is bounded by timeout-based eviction.
type Pool struct {
	connector         driver.Connector
	canChangeDatabase bool
	closeTimeout      time.Duration
	logger            *slog.Logger

	mu     sync.Mutex
	idle   []*Conn          // front = most recently returned
	inUse  map[string]*Conn // keyed by Conn.ID
	closed bool
}

// New creates a pool over the given connection factory. canChangeDatabase
// mirrors the dialect capability: when false, only connections already bound
// to the requested database are eligible for reuse. A zero closeTimeout
// selects DefaultCloseTimeout.
func New(connector driver.Connector, canChangeDatabase bool, closeTimeout time.Duration, logger *slog.Logger) *Pool {
	if closeTimeout <= 0 {
		closeTimeout = DefaultCloseTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		connector:         connector,
		canChangeDatabase: canChangeDatabase,
		closeTimeout:      closeTimeout,
		logger:            logger,
		inUse:             make(map[string]*Conn),
	}
}

// Get returns a connection bound to database, reusing an idle one when
// possible. The idle queue is swept front to back on the way: connections
// that died or idled past the close timeout are disposed. An exact database
// match wins immediately; otherwise, on dialects that can rebind, the last
// eligible connection scanned is taken and rebound.
func (p *Pool) Get(ctx context.Context, database string) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	now := time.Now().UTC()
	var match *Conn
	exact := false

	kept := p.idle[:0]
	for _, c := range p.idle {
		if exact {
			kept = append(kept, c)
			continue
		}
		if !c.conn.IsOpen() || now.Sub(c.LastUsed) > p.closeTimeout {
			p.logger.Debug("pool: evicting idle connection",
				"conn", c.ID, "database", c.Database, "idle", now.Sub(c.LastUsed))
			c.conn.Close()
			continue
		}
		if c.Database == database {
			// Exact match: put any previous candidate back and stop looking.
			if match != nil {
				kept = append(kept, match)
			}
			match = c
			exact = true
			continue
		}
		if p.canChangeDatabase {
			// Keep scanning for an exact match; the last eligible node wins
			// if none shows up.
			if match != nil {
				kept = append(kept, match)
			}
			match = c
			continue
		}
		kept = append(kept, c)
	}
	p.idle = kept

	if match != nil {
		p.inUse[match.ID] = match
		p.mu.Unlock()
		if match.Database != database {
			// The connection is exclusively ours now; rebinding happens
			// outside the lock.
			if err := match.conn.SelectDatabase(ctx, database); err != nil {
				p.Put(match, true)
				return nil, err
			}
			match.Database = database
		}
		return match, nil
	}
	p.mu.Unlock()

	raw, err := p.connector.Open(ctx, database)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		ID:       uuid.New().String(),
		Database: database,
		LastUsed: now,
		conn:     raw,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		raw.Close()
		return nil, ErrClosed
	}
	p.inUse[c.ID] = c
	p.mu.Unlock()
	p.logger.Debug("pool: opened connection", "conn", c.ID, "database", database)
	return c, nil
}

// Put returns a connection to the pool. Open connections go to the front of
// the idle queue (most recently used first) unless forceClose is set or the
// connection died, in which case they are disposed. A nil connection is a
// no-op.
func (p *Pool) Put(c *Conn, forceClose bool) {
	if c == nil {
		return
	}
	p.mu.Lock()
	_, tracked := p.inUse[c.ID]
	if tracked {
		delete(p.inUse, c.ID)
	}
	if tracked && !forceClose && !p.closed && c.conn.IsOpen() {
		c.LastUsed = time.Now().UTC()
		p.idle = append([]*Conn{c}, p.idle...)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	c.conn.Close()
}

// Close disposes every connection in both collections and empties them.
// Subsequent Get calls fail with ErrClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, c := range p.idle {
		c.conn.Close()
	}
	p.idle = nil
	for _, c := range p.inUse {
		c.conn.Close()
	}
	p.inUse = make(map[string]*Conn)
}

// Counts reports the current idle and in-use connection counts, for gauges.
func (p *Pool) Counts() (idle, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), len(p.inUse)
}
