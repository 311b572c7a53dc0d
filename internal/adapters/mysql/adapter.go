// Package mysql provides the MySQL/MariaDB adapter.
package mysql

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql" // mysql driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures a MySQL connection.
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
		return errors.NewConfig("mysql: host is required")
	}
	if c.Database == "" {
		return errors.NewConfig("mysql: database is required")
	}
	if c.User == "" {
		return errors.NewConfig("mysql: user is required")
	}
	return nil
}

// DSN renders the go-sql-driver connection string. parseTime makes the
// driver return time.Time for temporal columns.
func (c Config) DSN() string {
	port := c.Port
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.User, c.Password, c.Host, port, c.Database)
}

// New creates a MySQL adapter. The driver accepts `?` placeholders
// natively, so no rewriting is needed.
func New(cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return adapters.NewSQLAdapter("mysql", "mysql", cfg.DSN(), "SELECT 1", adapters.RewritePassthrough, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
