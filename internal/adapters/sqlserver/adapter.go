// Package sqlserver provides the SQL Server / Azure Synapse adapter.
package sqlserver

import (
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures a SQL Server connection.
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
		return errors.NewConfig("sqlserver: host is required")
	}
	if c.Database == "" {
		return errors.NewConfig("sqlserver: database is required")
	}
	if c.User == "" {
		return errors.NewConfig("sqlserver: user is required")
	}
	return nil
}

// DSN renders the go-mssqldb URL connection string.
func (c Config) DSN() string {
	port := c.Port
	if port == "" {
		port = "1433"
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", c.Host, port),
		RawQuery: url.Values{"database": {c.Database}}.Encode(),
	}
	return u.String()
}

// New creates a SQL Server adapter. Placeholders are rewritten to @pN;
// the driver binds @pN names positionally.
func New(cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rewrite := func(sqlText string, params []interface{}) (string, []interface{}, error) {
		return adapters.RewriteNumbered(sqlText, params, "@p")
	}
	return adapters.NewSQLAdapter("sqlserver", "sqlserver", cfg.DSN(), "SELECT 1", rewrite, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
