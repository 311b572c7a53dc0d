// Package sqlite provides the SQLite adapter on the pure-Go driver, so
// the gateway builds without cgo when DuckDB is not needed.
package sqlite

import (
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
)

// Config configures the SQLite adapter.
type Config struct {
	// DatabasePath is the database file; ":memory:" opens an in-memory
	// database.
	DatabasePath string
}

// ConfigFromSource extracts the config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{DatabasePath: src.Config["path"]}
}

// New creates a SQLite adapter. The driver accepts `?` placeholders
// natively.
func New(cfg Config) (adapters.Adapter, error) {
	path := cfg.DatabasePath
	if path == "" {
		path = ":memory:"
	}
	return adapters.NewSQLAdapter("sqlite", "sqlite", path, "SELECT 1", adapters.RewritePassthrough, adapters.SQLOptions{
		// The pure-Go driver serializes writes; keep the pool small.
		MaxOpenConns: 1,
	})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
