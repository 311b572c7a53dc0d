// Package clickhouse provides the ClickHouse adapter.
package clickhouse

import (
	"fmt"
	"net/url"

	_ "github.com/ClickHouse/clickhouse-go/v2" // clickhouse driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures a ClickHouse connection.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// ConfigFromSource extracts the connection config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{
		Host:     src.Config["host"],
		Port:     src.Config["port"],
		Database: src.Config["database"],
		User:     src.Config["user"],
		Password: src.Config["password"],
	}
}

// Validate checks the required connection fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.NewConfig("clickhouse: host is required")
	}
	if c.Database == "" {
		return errors.NewConfig("clickhouse: database is required")
	}
	return nil
}

// DSN renders the clickhouse-go URL connection string.
func (c Config) DSN() string {
	port := c.Port
	if port == "" {
		port = "9000"
	}
	u := &url.URL{
		Scheme: "clickhouse",
		Host:   fmt.Sprintf("%s:%s", c.Host, port),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// New creates a ClickHouse adapter. Placeholders are rewritten to the
// server-side {pN:Type} form with types inferred from the parameter
// values.
func New(cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return adapters.NewSQLAdapter("clickhouse", "clickhouse", cfg.DSN(), "SELECT 1", adapters.RewriteClickHouse, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
