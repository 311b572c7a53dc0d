// Package duckdb provides the DuckDB adapter, used for local
// development and embedded analytics.
package duckdb

import (
	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
)

// Config configures the DuckDB adapter.
type Config struct {
	// DatabasePath is the database file; ":memory:" or empty opens an
	// in-memory database.
	DatabasePath string
}

// ConfigFromSource extracts the config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{DatabasePath: src.Config["path"]}
}

// New creates a DuckDB adapter. The driver accepts `?` placeholders
// natively.
func New(cfg Config) (adapters.Adapter, error) {
	path := cfg.DatabasePath
	if path == ":memory:" {
		path = ""
	}
	return adapters.NewSQLAdapter("duckdb", "duckdb", path, "SELECT 1", adapters.RewritePassthrough, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
