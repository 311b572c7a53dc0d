// Package oracle provides the Oracle Database adapter on the pure-Go
// driver.
package oracle

import (
	"fmt"
	"net/url"

	_ "github.com/sijms/go-ora/v2" // oracle driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures an Oracle connection.
type Config struct {
	Host     string
	Port     string
	Service  string
	User     string
	Password string
}

// ConfigFromSource extracts the connection config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{
		Host:     src.Config["host"],
		Port:     src.Config["port"],
		Service:  src.Config["service"],
		User:     src.Config["user"],
		Password: src.Config["password"],
	}
}

// Validate checks the required connection fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.NewConfig("oracle: host is required")
	}
	if c.Service == "" {
		return errors.NewConfig("oracle: service is required")
	}
	if c.User == "" {
		return errors.NewConfig("oracle: user is required")
	}
	return nil
}

// DSN renders the go-ora URL connection string.
func (c Config) DSN() string {
	port := c.Port
	if port == "" {
		port = "1521"
	}
	u := &url.URL{
		Scheme: "oracle",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, port),
		Path:   "/" + c.Service,
	}
	return u.String()
}

// New creates an Oracle adapter. Placeholders are rewritten to :N
// numbered binds, and the health probe selects from DUAL since Oracle
// has no bare SELECT.
func New(cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rewrite := func(sqlText string, params []interface{}) (string, []interface{}, error) {
		return adapters.RewriteNumbered(sqlText, params, ":")
	}
	return adapters.NewSQLAdapter("oracle", "oracle", cfg.DSN(), "SELECT 1 FROM DUAL", rewrite, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
