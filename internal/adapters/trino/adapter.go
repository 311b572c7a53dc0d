// Package trino provides the Trino federation adapter. The driver takes
// no bind parameters, so placeholders are inlined as validated literals
// before execution.
package trino

import (
	"fmt"
	"net/url"

	_ "github.com/trinodb/trino-go-client/trino" // trino driver

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
)

// Config configures a Trino connection.
type Config struct {
	Host    string
	Port    string
	User    string
	Catalog string
	Schema  string

	// TLS switches the coordinator URL to https.
	TLS bool
}

// ConfigFromSource extracts the connection config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{
		Host:    src.Config["host"],
		Port:    src.Config["port"],
		User:    src.Config["user"],
		Catalog: src.Config["catalog"],
		Schema:  src.Config["schema"],
		TLS:     src.Config["tls"] == "true",
	}
}

// Validate checks the required connection fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.NewConfig("trino: host is required")
	}
	if c.User == "" {
		return errors.NewConfig("trino: user is required")
	}
	return nil
}

// DSN renders the trino-go-client connection string.
func (c Config) DSN() string {
	scheme := "http"
	port := c.Port
	if c.TLS {
		scheme = "https"
		if port == "" {
			port = "443"
		}
	} else if port == "" {
		port = "8080"
	}

	q := url.Values{}
	if c.Catalog != "" {
		q.Set("catalog", c.Catalog)
	}
	if c.Schema != "" {
		q.Set("schema", c.Schema)
	}
	u := &url.URL{
		Scheme:   scheme,
		User:     url.User(c.User),
		Host:     fmt.Sprintf("%s:%s", c.Host, port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// New creates a Trino adapter. Placeholders are inlined: strings are
// quote-doubled, booleans uppercased, nil becomes NULL, and any other
// parameter type is rejected.
func New(cfg Config) (adapters.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return adapters.NewSQLAdapter("trino", "trino", cfg.DSN(), "SELECT 1", adapters.RewriteInline, adapters.SQLOptions{})
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(ConfigFromSource(src))
}
