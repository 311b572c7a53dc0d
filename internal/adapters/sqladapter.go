package adapters

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/semgate-labs/semgate/internal/errors"
)

// RewriteFunc converts canonical placeholders to an engine's native form.
type RewriteFunc func(sqlText string, params []interface{}) (string, []interface{}, error)

// SQLAdapter implements Adapter over a database/sql driver. Engine
// packages construct it with their driver name, DSN, health probe, and
// placeholder rewriter; everything else is shared.
type SQLAdapter struct {
	mu          sync.RWMutex
	db          *sql.DB
	engine      string
	healthQuery string
	rewrite     RewriteFunc
	closed      bool
}

// SQLOptions tunes the connection pool of a SQLAdapter.
type SQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLAdapter opens a pool for the given driver and DSN. The
// connection is not probed here; the first execution or health check
// surfaces connectivity failures.
func NewSQLAdapter(engine, driver, dsn, healthQuery string, rewrite RewriteFunc, opts SQLOptions) (*SQLAdapter, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.NewConnection(engine, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if rewrite == nil {
		rewrite = RewritePassthrough
	}
	return &SQLAdapter{
		db:          db,
		engine:      engine,
		healthQuery: healthQuery,
		rewrite:     rewrite,
	}, nil
}

// Engine implements Adapter.
func (a *SQLAdapter) Engine() string { return a.engine }

// RewritePlaceholders implements Adapter.
func (a *SQLAdapter) RewritePlaceholders(sqlText string, params []interface{}) (string, []interface{}, error) {
	return a.rewrite(sqlText, params)
}

// Execute implements Adapter. The statement's placeholders must already
// be in the engine's native form.
func (a *SQLAdapter) Execute(ctx context.Context, sqlText string, params []interface{}) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTimeout(a.engine, err)
	}
	if sqlText == "" {
		return nil, errors.NewBuild("empty statement")
	}

	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return nil, errors.NewConnection(a.engine, nil)
	}
	db := a.db
	a.mu.RUnlock()

	start := time.Now()
	rows, err := db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, WrapExecError(ctx, a.engine, err)
	}
	defer rows.Close()

	return CollectRows(ctx, rows, a.engine, start)
}

// HealthCheck implements Adapter.
func (a *SQLAdapter) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed || a.db == nil {
		return errors.NewConnection(a.engine, nil)
	}

	if a.healthQuery == "" {
		if err := a.db.PingContext(ctx); err != nil {
			return errors.NewConnection(a.engine, err)
		}
		return nil
	}

	var probe interface{}
	if err := a.db.QueryRowContext(ctx, a.healthQuery).Scan(&probe); err != nil {
		return errors.NewConnection(a.engine, err)
	}
	return nil
}

// Close implements Adapter. Safe to call multiple times.
func (a *SQLAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// DB exposes the underlying pool for adapters built on this core that
// need engine-specific session setup, and for tests.
func (a *SQLAdapter) DB() *sql.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}
