package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/semgate-labs/semgate/pkg/api"
	"github.com/semgate-labs/semgate/pkg/models"
)

// GatewayClient is the HTTP client for a running semgate gateway.
type GatewayClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewGatewayClient creates a gateway client.
func NewGatewayClient(endpoint, apiKey string) *GatewayClient {
	return &GatewayClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Query submits a semantic query.
func (c *GatewayClient) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	var resp models.QueryResponse
	if err := c.post(ctx, api.EndpointQuery, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RawQuery submits engine-native SQL.
func (c *GatewayClient) RawQuery(ctx context.Context, req *models.RawQueryRequest) (*models.QueryResponse, error) {
	var resp models.QueryResponse
	if err := c.post(ctx, api.EndpointQueryRaw, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate checks a raw statement without executing it.
func (c *GatewayClient) Validate(ctx context.Context, sqlText, engine string) error {
	body := map[string]string{"sql": sqlText, "engine": engine}
	var resp map[string]bool
	return c.post(ctx, api.EndpointValidate, body, &resp)
}

// Health fetches the liveness probe.
func (c *GatewayClient) Health(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	if err := c.get(ctx, api.EndpointHealth, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ready fetches the readiness probe with per-source adapter health.
func (c *GatewayClient) Ready(ctx context.Context) (*models.HealthStatus, error) {
	var out models.HealthStatus
	if err := c.get(ctx, api.EndpointReady, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GatewayClient) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set(api.HeaderContentType, api.ContentTypeJSON)
	if c.apiKey != "" {
		req.Header.Set(api.HeaderAuthorization, "Bearer "+c.apiKey)
	}
	return c.do(req, out)
}

func (c *GatewayClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set(api.HeaderAuthorization, "Bearer "+c.apiKey)
	}
	return c.do(req, out)
}

func (c *GatewayClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr models.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			if apiErr.Hint != "" {
				return fmt.Errorf("%s: %s (hint: %s)", apiErr.Code, apiErr.Message, apiErr.Hint)
			}
			return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("gateway returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
