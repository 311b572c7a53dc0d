// Package snowflake provides the Snowflake warehouse adapter.
package snowflake

import (
	gosnowflake "github.com/snowflakedb/gosnowflake"

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures a Snowflake connection.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// ConfigFromSource extracts the connection config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{
		Account:   src.Config["account"],
		User:      src.Config["user"],
		Password:  src.Config["password"],
		Database:  src.Config["database"],
		Schema:    src.Config["schema"],
		Warehouse: src.Config["warehouse"],
		Role:      src.Config["role"],
	}
}

// Validate checks the required connection fields.
func (c Config) Validate() error {
	if c.Account == "" {
		return errors.NewConfig("snowflake: account is required")
	}
	if c.User == "" {
		return errors.NewConfig("snowflake: user is required")
	}
	if c.Database == "" {
		return errors.NewConfig("snowflake: database is required")
	}
	return nil
}

// DSN renders the gosnowflake connection string.
func (c Config) DSN() (string, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Role:      c.Role,
	})
	if err != nil {
		return "", errors.Wrap(errors.KindConfig, err, "snowflake: invalid connection config")
	}
	return dsn, nil
}

// New creates a Snowflake adapter. The driver accepts `?` placeholders
// natively.
func New(cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return adapters.NewSQLAdapter("snowflake", "snowflake", dsn, "SELECT 1", adapters.RewritePassthrough, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
