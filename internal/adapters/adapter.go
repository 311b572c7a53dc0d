// Package adapters defines the common interface for engine adapters and
// the per-source registry that constructs them on demand. Each adapter
// owns one connection pool, rewrites canonical `?` placeholders to its
// engine's native form, and materializes results into the gateway's
// tabular shape.
//
// Adapters are thin: no silent retries, no hidden fallbacks. Errors are
// wrapped into gateway error kinds and propagated.
package adapters

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/pkg/models"
)

// Result is the materialized result of one adapter execution. Row maps
// are keyed by column name; Columns preserves the SELECT order.
type Result struct {
	Columns []models.Column

	Rows []models.Row

	RowCount int

	// ExecutionMs is the wall time of the engine round trip.
	ExecutionMs int64

	// Metadata carries engine-specific execution details.
	Metadata map[string]string
}

// Adapter is the interface every engine adapter implements.
type Adapter interface {
	// Engine returns the engine identifier, e.g. "postgres".
	Engine() string

	// RewritePlaceholders converts canonical `?` placeholders to the
	// engine's native form. The returned parameter vector may be
	// re-ordered or emptied (for engines that only accept inline
	// values).
	RewritePlaceholders(sqlText string, params []interface{}) (string, []interface{}, error)

	// Execute runs a statement whose placeholders are already in the
	// engine's native form. Must propagate errors explicitly.
	Execute(ctx context.Context, sqlText string, params []interface{}) (*Result, error)

	// HealthCheck verifies the adapter can reach its engine.
	HealthCheck(ctx context.Context) error

	// Close releases the adapter's resources. Idempotent.
	Close() error
}

// Factory constructs an adapter from a decrypted source configuration.
type Factory func(source *catalog.Source) (Adapter, error)

// DefaultHealthTimeout bounds one adapter health check, retries
// included. A wedged engine must never hang the readiness probe.
const DefaultHealthTimeout = 2 * time.Second

// Registry lazily constructs and caches one adapter per source id.
// Construction and eviction are serialized; lookups of an existing
// adapter take the read path.
type Registry struct {
	mu        sync.RWMutex
	provider  catalog.SourceProvider
	factories map[string]Factory
	adapters  map[string]Adapter

	healthTimeout time.Duration
	healthRetry   RetryConfig
}

// NewRegistry creates a registry over the given source provider.
func NewRegistry(provider catalog.SourceProvider) *Registry {
	return &Registry{
		provider:      provider,
		factories:     make(map[string]Factory),
		adapters:      make(map[string]Adapter),
		healthTimeout: DefaultHealthTimeout,
		healthRetry:   DefaultRetryConfig(),
	}
}

// SetHealthPolicy overrides the per-check deadline and retry
// configuration used by CheckAllHealth.
func (r *Registry) SetHealthPolicy(timeout time.Duration, retry RetryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timeout > 0 {
		r.healthTimeout = timeout
	}
	r.healthRetry = retry
}

// RegisterFactory installs the constructor for one engine.
func (r *Registry) RegisterFactory(engine string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[engine] = f
}

// Get returns the adapter for a source, constructing it on first use.
func (r *Registry) Get(ctx context.Context, sourceID string) (Adapter, error) {
	r.mu.RLock()
	if a, ok := r.adapters[sourceID]; ok {
		r.mu.RUnlock()
		return a, nil
	}
	r.mu.RUnlock()

	src, err := r.provider.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have constructed it while we fetched the
	// source config.
	if a, ok := r.adapters[sourceID]; ok {
		return a, nil
	}

	factory, ok := r.factories[src.Engine]
	if !ok {
		return nil, errors.NewConfig("no adapter registered for engine %q (source %s)", src.Engine, sourceID)
	}

	a, err := factory(src)
	if err != nil {
		return nil, err
	}
	r.adapters[sourceID] = a
	return a, nil
}

// Evict closes and removes the adapter for a source so the next request
// reconstructs it. Used after a ConnectionError.
func (r *Registry) Evict(sourceID string) {
	r.mu.Lock()
	a, ok := r.adapters[sourceID]
	if ok {
		delete(r.adapters, sourceID)
	}
	r.mu.Unlock()

	if ok {
		a.Close()
	}
}

// Sources returns the source ids with a live adapter.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		out = append(out, id)
	}
	return out
}

// CloseAll closes every live adapter, keeping the last error.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for id, a := range r.adapters {
		if err := a.Close(); err != nil {
			lastErr = err
		}
		delete(r.adapters, id)
	}
	return lastErr
}

// CheckAllHealth checks every live adapter under the registry's health
// policy. A nil map value means the adapter is healthy.
func (r *Registry) CheckAllHealth(ctx context.Context) map[string]error {
	r.mu.RLock()
	live := make(map[string]Adapter, len(r.adapters))
	for id, a := range r.adapters {
		live[id] = a
	}
	timeout, retry := r.healthTimeout, r.healthRetry
	r.mu.RUnlock()

	results := make(map[string]error, len(live))
	for id, a := range live {
		results[id] = checkHealth(ctx, a, timeout, retry)
	}
	return results
}

// checkHealth runs one adapter's health check with transient-error
// retries, all bounded by a single deadline.
func checkHealth(ctx context.Context, a Adapter, timeout time.Duration, retry RetryConfig) error {
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := ExecuteWithRetry(hctx, retry, func() error {
		return a.HealthCheck(hctx)
	})
	if res.Success {
		return nil
	}
	return res.LastError
}

// CollectRows materializes a *sql.Rows into the gateway result shape,
// timing the iteration from start. Shared by every database/sql-backed
// adapter.
func CollectRows(ctx context.Context, rows *sql.Rows, engine string, start time.Time) (*Result, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, errors.NewQuery(engine, err)
	}

	columns := make([]models.Column, len(names))
	for i, n := range names {
		columns[i] = models.Column{Name: n}
	}
	if types, terr := rows.ColumnTypes(); terr == nil {
		for i, t := range types {
			if i < len(columns) {
				columns[i].Type = t.DatabaseTypeName()
			}
		}
	}

	out := make([]models.Row, 0)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewTimeout(engine, err)
		}

		values := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewQuery(engine, err)
		}

		row := make(models.Row, len(names))
		for i, n := range names {
			row[n] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQuery(engine, err)
	}

	return &Result{
		Columns:     columns,
		Rows:        out,
		RowCount:    len(out),
		ExecutionMs: time.Since(start).Milliseconds(),
		Metadata:    map[string]string{"engine": engine},
	}, nil
}

// normalizeValue converts driver byte slices to strings so results are
// JSON-encodable without base64 surprises.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// WrapExecError classifies a driver error into a gateway error kind.
// Deadline expiry is a Timeout; everything else is a QueryError.
func WrapExecError(ctx context.Context, engine string, err error) error {
	if ctx.Err() != nil {
		return errors.NewTimeout(engine, err)
	}
	return errors.NewQuery(engine, err)
}
