// Package databricks provides the Databricks SQL warehouse adapter.
package databricks

import (
	"fmt"

	_ "github.com/databricks/databricks-sql-go" // databricks driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures a Databricks SQL warehouse connection.
type Config struct {
	Host     string
	Port     string
	HTTPPath string
	Token    string
}

// ConfigFromSource extracts the connection config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{
		Host:     src.Config["host"],
		Port:     src.Config["port"],
		HTTPPath: src.Config["http_path"],
		Token:    src.Config["token"],
	}
}

// Validate checks the required connection fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.NewConfig("databricks: host is required")
	}
	if c.HTTPPath == "" {
		return errors.NewConfig("databricks: http_path is required")
	}
	if c.Token == "" {
		return errors.NewConfig("databricks: token is required")
	}
	return nil
}

// DSN renders the databricks-sql-go connection string.
func (c Config) DSN() string {
	port := c.Port
	if port == "" {
		port = "443"
	}
	return fmt.Sprintf("token:%s@%s:%s%s", c.Token, c.Host, port, c.HTTPPath)
}

// New creates a Databricks adapter. The driver accepts `?` placeholders
// natively.
func New(cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return adapters.NewSQLAdapter("databricks", "databricks", cfg.DSN(), "SELECT 1", adapters.RewritePassthrough, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
