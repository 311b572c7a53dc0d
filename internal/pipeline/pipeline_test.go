package pipeline

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/auth"
	"github.com/semgate-labs/semgate/internal/cache"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/observability"
	"github.com/semgate-labs/semgate/pkg/models"
)

// scriptedAdapter returns canned rows and records what it executed.
type scriptedAdapter struct {
	executions int32
	lastSQL    string
	lastParams []interface{}
	execErr    error
}

func (a *scriptedAdapter) Engine() string { return "postgres" }

func (a *scriptedAdapter) RewritePlaceholders(sqlText string, params []interface{}) (string, []interface{}, error) {
	return adapters.RewriteNumbered(sqlText, params, "$")
}

func (a *scriptedAdapter) Execute(ctx context.Context, sqlText string, params []interface{}) (*adapters.Result, error) {
	atomic.AddInt32(&a.executions, 1)
	a.lastSQL = sqlText
	a.lastParams = params
	if a.execErr != nil {
		return nil, a.execErr
	}
	return &adapters.Result{
		Columns:  []models.Column{{Name: "city"}, {Name: "Revenue"}},
		Rows:     []models.Row{{"city": "NYC", "Revenue": 1200}, {"city": "SF", "Revenue": 800}},
		RowCount: 2,
	}, nil
}

func (a *scriptedAdapter) HealthCheck(ctx context.Context) error { return nil }
func (a *scriptedAdapter) Close() error                          { return nil }

type testEnv struct {
	pipeline *Pipeline
	adapter  *scriptedAdapter
	stats    *bytes.Buffer
	built    *int32
}

func newTestEnv(t *testing.T, withCache bool) *testEnv {
	t.Helper()

	cat := catalog.NewStaticCatalog()
	if err := cat.AddDataset(&catalog.Dataset{
		ID:        "sales",
		SourceID:  "warehouse",
		Engine:    "postgres",
		BaseTable: "orders",
		Fields: []catalog.Field{
			{Name: "city", Kind: catalog.KindDimension, Type: catalog.TypeString},
			{Name: "tenant_id", Kind: catalog.KindDimension, Type: catalog.TypeString},
			{Name: "Revenue", PhysicalColumn: "amount", Kind: catalog.KindMeasure, Type: catalog.TypeFloat, Aggregation: catalog.AggSum},
		},
		RLS: catalog.RLSPolicy{Enabled: true, Column: "tenant_id", Mode: catalog.RLSEquals},
	}); err != nil {
		t.Fatal(err)
	}
	if err := cat.AddDataset(&catalog.Dataset{
		ID:        "reference",
		SourceID:  "warehouse",
		Engine:    "postgres",
		BaseTable: "countries",
		Fields: []catalog.Field{
			{Name: "code", Kind: catalog.KindDimension, Type: catalog.TypeString},
		},
	}); err != nil {
		t.Fatal(err)
	}
	cat.AddSource(&catalog.Source{ID: "warehouse", Engine: "postgres"})

	adapter := &scriptedAdapter{}
	var built int32
	reg := adapters.NewRegistry(cat)
	reg.RegisterFactory("postgres", func(*catalog.Source) (adapters.Adapter, error) {
		atomic.AddInt32(&built, 1)
		return adapter, nil
	})

	var flight *cache.Flight
	if withCache {
		flight = cache.NewFlight(cache.NewMemoryStore(), cache.Options{
			PollInterval: time.Millisecond,
		})
	}

	var buf bytes.Buffer
	p := New(cat, reg, flight, observability.NewJSONEmitter(&buf), Guards{
		MaxDimensions:  8,
		MaxMetrics:     8,
		MaxFilterDepth: 4,
		MaxRows:        1000,
	}, time.Minute)

	return &testEnv{pipeline: p, adapter: adapter, stats: &buf, built: &built}
}

func userContext() auth.TenantContext {
	return auth.TenantContext{Tenant: "acme", Role: auth.RoleUser, KeyID: "k1"}
}

func (e *testEnv) statLines() []string {
	s := strings.TrimSpace(e.stats.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestPipelineQuery(t *testing.T) {
	env := newTestEnv(t, true)

	resp, err := env.pipeline.Query(context.Background(), userContext(), &models.QueryRequest{
		Dataset:    "sales",
		Dimensions: []string{"city"},
		Metrics:    []string{"Revenue"},
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	if resp.RequestID == "" {
		t.Error("response has no request id")
	}
	if !resp.RLSApplied || resp.RLSBypassed {
		t.Errorf("rls flags = applied=%v bypassed=%v", resp.RLSApplied, resp.RLSBypassed)
	}
	if resp.Result.RowCount != 2 || resp.Result.Engine != "postgres" {
		t.Errorf("result = %+v", resp.Result)
	}
	if resp.Result.Fingerprint == "" {
		t.Error("result has no fingerprint")
	}

	// The adapter saw native placeholders with the tenant bound.
	if !strings.Contains(env.adapter.lastSQL, `"tenant_id" = $1`) {
		t.Errorf("adapter sql = %s", env.adapter.lastSQL)
	}
	if len(env.adapter.lastParams) != 1 || env.adapter.lastParams[0] != "acme" {
		t.Errorf("adapter params = %v", env.adapter.lastParams)
	}

	lines := env.statLines()
	if len(lines) != 1 {
		t.Fatalf("stat lines = %d, want 1", len(lines))
	}
	if !strings.Contains(lines[0], `"outcome":"success"`) || !strings.Contains(lines[0], `"rls_applied":true`) {
		t.Errorf("stat = %s", lines[0])
	}
}

func TestPipelineQueryCacheHit(t *testing.T) {
	env := newTestEnv(t, true)
	q := &models.QueryRequest{Dataset: "sales", Dimensions: []string{"city"}, Metrics: []string{"Revenue"}}

	first, err := env.pipeline.Query(context.Background(), userContext(), q)
	if err != nil {
		t.Fatal(err)
	}
	if first.Result.CacheHit {
		t.Error("first execution marked as cache hit")
	}

	second, err := env.pipeline.Query(context.Background(), userContext(), q)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Result.CacheHit {
		t.Error("second execution missed the cache")
	}
	if got := atomic.LoadInt32(&env.adapter.executions); got != 1 {
		t.Errorf("adapter executed %d times, want 1", got)
	}
}

func TestPipelineCacheIsolatesTenants(t *testing.T) {
	env := newTestEnv(t, true)
	q := &models.QueryRequest{Dataset: "sales", Dimensions: []string{"city"}, Metrics: []string{"Revenue"}}

	if _, err := env.pipeline.Query(context.Background(), userContext(), q); err != nil {
		t.Fatal(err)
	}
	other := auth.TenantContext{Tenant: "globex", Role: auth.RoleUser}
	if _, err := env.pipeline.Query(context.Background(), other, q); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&env.adapter.executions); got != 2 {
		t.Errorf("adapter executed %d times, want 2 (one per tenant)", got)
	}
}

func TestPipelineNoCache(t *testing.T) {
	env := newTestEnv(t, true)
	q := &models.QueryRequest{Dataset: "sales", Dimensions: []string{"city"}, Metrics: []string{"Revenue"}, NoCache: true}

	for i := 0; i < 2; i++ {
		resp, err := env.pipeline.Query(context.Background(), userContext(), q)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Result.CacheHit {
			t.Error("no_cache result marked as cache hit")
		}
	}
	if got := atomic.LoadInt32(&env.adapter.executions); got != 2 {
		t.Errorf("adapter executed %d times, want 2", got)
	}
}

func TestPipelineGuards(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	tc := userContext()

	cases := []*models.QueryRequest{
		{},
		{Dataset: "sales", Dimensions: make([]string, 9)},
		{Dataset: "sales", Metrics: make([]string, 9)},
		{Dataset: "sales", Dimensions: []string{"city"}, Filters: &models.Filter{
			Not: &models.Filter{Not: &models.Filter{Not: &models.Filter{Not: &models.Filter{
				Field: "city", Op: models.OpEq, Value: "x",
			}}}},
		}},
	}
	for i, q := range cases {
		_, err := env.pipeline.Query(ctx, tc, q)
		if !errors.Is(err, errors.KindValidation) {
			t.Errorf("case %d: kind = %s, want ValidationError", i, errors.KindOf(err))
		}
	}
	if got := atomic.LoadInt32(&env.adapter.executions); got != 0 {
		t.Errorf("guard-rejected requests reached the adapter %d times", got)
	}

	lines := env.statLines()
	if len(lines) != len(cases) {
		t.Errorf("stat lines = %d, want %d (one per rejected request)", len(lines), len(cases))
	}
}

func TestPipelineDatasetNotFound(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.pipeline.Query(context.Background(), userContext(), &models.QueryRequest{
		Dataset:    "nope",
		Dimensions: []string{"city"},
	})
	if !errors.Is(err, errors.KindDatasetNotFound) {
		t.Errorf("kind = %s, want DatasetNotFound", errors.KindOf(err))
	}

	var ge *errors.GatewayError
	if !asGateway(err, &ge) || ge.RequestID == "" {
		t.Error("error not stamped with a request id")
	}
}

func TestPipelineRawQuery(t *testing.T) {
	env := newTestEnv(t, true)

	resp, err := env.pipeline.RawQuery(context.Background(), userContext(), &models.RawQueryRequest{
		Dataset: "sales",
		SQL:     "SELECT city FROM orders WHERE amount > ?",
		Params:  []interface{}{100},
	})
	if err != nil {
		t.Fatalf("RawQuery() error: %v", err)
	}
	if !resp.RLSApplied {
		t.Error("raw query skipped rls")
	}

	if !strings.Contains(env.adapter.lastSQL, "tenant_id = $2") {
		t.Errorf("tenant predicate not injected: %s", env.adapter.lastSQL)
	}
	if len(env.adapter.lastParams) != 2 || env.adapter.lastParams[0] != 100 || env.adapter.lastParams[1] != "acme" {
		t.Errorf("params = %v", env.adapter.lastParams)
	}
}

func TestPipelineRawQueryRejectsUnsafeSQL(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	tc := userContext()

	for _, sqlText := range []string{
		"DELETE FROM orders",
		"SELECT 1; SELECT 2",
		"SELECT 1 -- sneak",
	} {
		_, err := env.pipeline.RawQuery(ctx, tc, &models.RawQueryRequest{Dataset: "sales", SQL: sqlText})
		if !errors.Is(err, errors.KindValidation) {
			t.Errorf("%q: kind = %s, want ValidationError", sqlText, errors.KindOf(err))
		}
	}
	if got := atomic.LoadInt32(&env.adapter.executions); got != 0 {
		t.Errorf("rejected raw sql reached the adapter %d times", got)
	}
}

func TestPipelineRawQueryNoRLSDataset(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := env.pipeline.RawQuery(context.Background(), userContext(), &models.RawQueryRequest{
		Dataset: "reference",
		SQL:     "SELECT code FROM countries",
	})
	if err != nil {
		t.Fatalf("RawQuery() error: %v", err)
	}
	if resp.RLSApplied {
		t.Error("rls reported applied on an unscoped dataset")
	}
	if env.adapter.lastSQL != "SELECT code FROM countries" {
		t.Errorf("statement rewritten without a predicate: %s", env.adapter.lastSQL)
	}
}

func TestPipelineConnectionErrorEvicts(t *testing.T) {
	env := newTestEnv(t, false)
	env.adapter.execErr = errors.NewConnection("postgres", nil)

	q := &models.QueryRequest{Dataset: "sales", Dimensions: []string{"city"}}
	_, err := env.pipeline.Query(context.Background(), userContext(), q)
	if !errors.Is(err, errors.KindConnection) {
		t.Fatalf("kind = %s, want ConnectionError", errors.KindOf(err))
	}

	env.adapter.execErr = nil
	if _, err := env.pipeline.Query(context.Background(), userContext(), q); err != nil {
		t.Fatalf("query after eviction: %v", err)
	}
	if got := atomic.LoadInt32(env.built); got != 2 {
		t.Errorf("factory ran %d times, want 2 (evicted then rebuilt)", got)
	}
}

func TestPipelineEmitsOneStatPerRequest(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	tc := userContext()

	env.pipeline.Query(ctx, tc, &models.QueryRequest{Dataset: "sales", Dimensions: []string{"city"}})
	env.pipeline.Query(ctx, tc, &models.QueryRequest{Dataset: "nope", Dimensions: []string{"city"}})
	env.pipeline.RawQuery(ctx, tc, &models.RawQueryRequest{Dataset: "sales", SQL: "DELETE FROM orders"})

	if lines := env.statLines(); len(lines) != 3 {
		t.Errorf("stat lines = %d, want 3", len(lines))
	}
}

func TestPipelineHealth(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	status := env.pipeline.Health(ctx)
	if status.Status != "ok" || len(status.Sources) != 0 {
		t.Errorf("empty registry health = %+v", status)
	}

	env.pipeline.Query(ctx, userContext(), &models.QueryRequest{Dataset: "sales", Dimensions: []string{"city"}})
	status = env.pipeline.Health(ctx)
	if status.Sources["warehouse"] != "ok" {
		t.Errorf("health = %+v", status)
	}
}
