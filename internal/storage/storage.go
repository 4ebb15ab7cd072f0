// Package storage assembles a working stack from configuration: dialect
// policy, physical driver, connection pool, execution engine, schema cache
// and metrics, wired together and torn down as one unit.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/elfen20/clone-cave-data-sub003/internal/config"
	"github.com/elfen20/clone-cave-data-sub003/internal/dialect"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver/memdrv"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver/pgxdrv"
	"github.com/elfen20/clone-cave-data-sub003/internal/driver/sqldrv"
	"github.com/elfen20/clone-cave-data-sub003/internal/engine"
	"github.com/elfen20/clone-cave-data-sub003/internal/metrics"
	"github.com/elfen20/clone-cave-data-sub003/internal/pool"
	"github.com/elfen20/clone-cave-data-sub003/internal/schemacache"
	"github.com/elfen20/clone-cave-data-sub003/internal/table"
)

// Storage is one configured backend stack.
type Storage struct {
	Policy  dialect.Policy
	Pool    *pool.Pool
	Engine  *engine.Engine
	Metrics *metrics.Metrics
	Schemas *schemacache.Cache

	// Mem is set when the mem dialect is configured, for seeding databases.
	Mem *memdrv.Store

	rdb    *redis.Client
	logger *slog.Logger
}

// Open builds the stack described by cfg.
func Open(cfg *config.Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Storage{logger: logger}

	var connector driver.Connector
	switch cfg.Database.Dialect {
	case "mysql":
		s.Policy = dialect.MySQL{}
		connector = &sqldrv.Connector{
			DriverName: cfg.Database.DriverName,
			DSN:        dsnTemplate(cfg.Database.DSN),
		}
	case "mssql":
		s.Policy = dialect.MSSQL{}
		connector = &sqldrv.Connector{
			DriverName:  cfg.Database.DriverName,
			DSN:         dsnTemplate(cfg.Database.DSN),
			NamedParams: true,
		}
	case "postgres":
		s.Policy = dialect.Postgres{}
		pgc, err := pgxdrv.NewConnector(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		connector = pgc
	case "mem", "":
		// The in-memory store speaks the MySQL surface.
		s.Policy = dialect.MySQL{}
		s.Mem = memdrv.NewStore()
		connector = s.Mem
	default:
		return nil, fmt.Errorf("storage: unknown dialect %q", cfg.Database.Dialect)
	}

	s.Pool = pool.New(connector, s.Policy.Capabilities().CanChangeDatabase, cfg.Pool.IdleTTL, logger)
	s.Metrics = metrics.New("cavedata", s.Pool.Counts)
	s.Engine = engine.New(s.Pool, s.Policy, logger, s.Metrics)
	if cfg.Database.MaxErrorRetries > 0 {
		s.Engine.MaxErrorRetries = cfg.Database.MaxErrorRetries
	}
	s.Engine.CheckSchema = cfg.Database.CheckSchema

	cacheOpts := []schemacache.Option{schemacache.WithLogger(logger)}
	if cfg.Redis.Addr != "" {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cacheOpts = append(cacheOpts, schemacache.WithRedis(s.rdb, cfg.Redis.TTL))
	}
	s.Schemas = schemacache.New(s.Engine.QuerySchema, cacheOpts...)
	return s, nil
}

// Database opens a database facade on the stack.
func (s *Storage) Database(name string) *table.Database {
	return table.NewDatabase(s.Engine, name, s.Schemas, s.logger)
}

// Ping verifies connectivity by cycling one pooled connection.
func (s *Storage) Ping(ctx context.Context, database string) error {
	conn, err := s.Pool.Get(ctx, database)
	if err != nil {
		return err
	}
	s.Pool.Put(conn, false)
	return nil
}

// Close tears the stack down.
func (s *Storage) Close() error {
	s.Pool.Close()
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

// dsnTemplate renders DSNs with an optional %s database slot.
func dsnTemplate(dsn string) func(string) string {
	return func(database string) string {
		for i := 0; i+1 < len(dsn); i++ {
			if dsn[i] == '%' && dsn[i+1] == 's' {
				return fmt.Sprintf(dsn, database)
			}
		}
		return dsn
	}
}
