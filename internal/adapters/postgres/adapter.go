// Package postgres provides the adapter for PostgreSQL and its
// wire-compatible family: Redshift, TimescaleDB, and CockroachDB all
// speak the same protocol and share this implementation, differing only
// in the engine label they report.
package postgres

import (
	"fmt"

	_ "github.com/lib/pq" // postgres driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures a postgres-family connection.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// ConfigFromSource extracts the connection config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{
		Host:     src.Config["host"],
		Port:     src.Config["port"],
		Database: src.Config["database"],
		User:     src.Config["user"],
		Password: src.Config["password"],
		SSLMode:  src.Config["sslmode"],
	}
}

// Validate checks the required connection fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.NewConfig("postgres: host is required")
	}
	if c.Database == "" {
		return errors.NewConfig("postgres: database is required")
	}
	if c.User == "" {
		return errors.NewConfig("postgres: user is required")
	}
	return nil
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.Host, port, c.Database, c.User, c.Password, sslmode)
}

// New creates an adapter reporting the given engine label. Placeholders
// are rewritten to $N positional parameters.
func New(engine string, cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rewrite := func(sqlText string, params []interface{}) (string, []interface{}, error) {
		return adapters.RewriteNumbered(sqlText, params, "$")
	}
	return adapters.NewSQLAdapter(engine, "postgres", cfg.DSN(), "SELECT 1", rewrite, adapters.SQLOptions{})
}

// Factory returns the registry factory for one postgres-family engine
// label.
func Factory(engine string) adapters.Factory {
	return func(src *catalog.Source) (adapters.Adapter, error) {
		return New(engine, ConfigFromSource(src))
	}
}
