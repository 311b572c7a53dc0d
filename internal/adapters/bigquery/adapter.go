// Package bigquery provides the Google BigQuery adapter on the Cloud
// SDK. Placeholders are rewritten to @pN named query parameters and
// bound as typed bigquery.QueryParameter values.
package bigquery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/pkg/models"
)

// Config configures the BigQuery adapter.
type Config struct {
	// ProjectID is the GCP project ID.
	ProjectID string

	// CredentialsJSON is the service account key; empty uses
	// Application Default Credentials.
	CredentialsJSON string

	// Location is the BigQuery region, e.g. "US" or "EU".
	Location string
}

// ConfigFromSource extracts the config from a source.
func ConfigFromSource(src *catalog.Source) Config {
	return Config{
		ProjectID:       src.Config["project_id"],
		CredentialsJSON: src.Config["credentials_json"],
		Location:        src.Config["location"],
	}
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return errors.NewConfig("bigquery: project_id is required")
	}
	return nil
}

// Adapter implements the engine adapter interface for BigQuery.
type Adapter struct {
	mu     sync.RWMutex
	config Config
	client *bigquery.Client
	closed bool
}

// New creates a BigQuery adapter.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, errors.NewConnection("bigquery", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &Adapter{config: cfg, client: client}, nil
}

// NewFromSource is the registry factory.
func NewFromSource(src *catalog.Source) (adapters.Adapter, error) {
	return New(context.Background(), ConfigFromSource(src))
}

// Engine implements adapters.Adapter.
func (a *Adapter) Engine() string { return "bigquery" }

// RewritePlaceholders implements adapters.Adapter: `?` becomes @pN.
func (a *Adapter) RewritePlaceholders(sqlText string, params []interface{}) (string, []interface{}, error) {
	return adapters.RewriteNumbered(sqlText, params, "@p")
}

// Execute implements adapters.Adapter. Parameters are bound as named
// query parameters p1..pN matching the rewritten placeholders.
func (a *Adapter) Execute(ctx context.Context, sqlText string, params []interface{}) (*adapters.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTimeout("bigquery", err)
	}

	a.mu.RLock()
	if a.closed || a.client == nil {
		a.mu.RUnlock()
		return nil, errors.NewConnection("bigquery", nil)
	}
	client := a.client
	a.mu.RUnlock()

	q := client.Query(sqlText)
	q.Parameters = make([]bigquery.QueryParameter, len(params))
	for i, p := range params {
		q.Parameters[i] = bigquery.QueryParameter{
			Name:  fmt.Sprintf("p%d", i+1),
			Value: p,
		}
	}

	start := time.Now()
	it, err := q.Read(ctx)
	if err != nil {
		return nil, adapters.WrapExecError(ctx, "bigquery", err)
	}

	var columns []models.Column
	rows := make([]models.Row, 0)
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, adapters.WrapExecError(ctx, "bigquery", err)
		}

		if columns == nil {
			columns = schemaColumns(it.Schema)
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col.Name] = values[i]
			}
		}
		rows = append(rows, row)
	}
	if columns == nil {
		columns = schemaColumns(it.Schema)
	}

	return &adapters.Result{
		Columns:     columns,
		Rows:        rows,
		RowCount:    len(rows),
		ExecutionMs: time.Since(start).Milliseconds(),
		Metadata:    map[string]string{"engine": "bigquery"},
	}, nil
}

// HealthCheck implements adapters.Adapter with a dry-run probe, which
// validates connectivity and credentials without scanning data.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed || a.client == nil {
		return errors.NewConnection("bigquery", nil)
	}

	q := a.client.Query("SELECT 1")
	q.DryRun = true
	if _, err := q.Run(ctx); err != nil {
		return errors.NewConnection("bigquery", err)
	}
	return nil
}

// Close implements adapters.Adapter. Safe to call multiple times.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func schemaColumns(schema bigquery.Schema) []models.Column {
	out := make([]models.Column, len(schema))
	for i, f := range schema {
		out[i] = models.Column{Name: f.Name, Type: string(f.Type)}
	}
	return out
}
