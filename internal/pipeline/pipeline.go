// Package pipeline orchestrates one query request end to end: guards,
// catalog resolution, RLS, compilation, cache lookup with single-flight,
// adapter execution, and stat emission. Every request emits exactly one
// stat, success or failure.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/auth"
	"github.com/semgate-labs/semgate/internal/cache"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/observability"
	"github.com/semgate-labs/semgate/internal/rls"
	"github.com/semgate-labs/semgate/internal/semantic"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
	"github.com/semgate-labs/semgate/pkg/models"
)

// Guards bound request shape before any catalog work happens.
type Guards struct {
	MaxDimensions  int
	MaxMetrics     int
	MaxFilterDepth int
	MaxRows        int

	// GlobalTimeout caps adapter execution regardless of dataset
	// settings. Zero means no global cap.
	GlobalTimeout time.Duration
}

// Pipeline wires the gateway's collaborators into the request path.
type Pipeline struct {
	Catalog  catalog.Catalog
	Registry *adapters.Registry

	// Flight is the shared cache and single-flight layer; nil disables
	// caching entirely.
	Flight *cache.Flight

	Stats observability.StatsEmitter

	Guards Guards

	// DefaultCacheTTL applies when a dataset declares no TTL.
	DefaultCacheTTL time.Duration
}

// New creates a pipeline. A nil stats emitter is replaced with a noop.
func New(cat catalog.Catalog, reg *adapters.Registry, flight *cache.Flight, stats observability.StatsEmitter, guards Guards, defaultTTL time.Duration) *Pipeline {
	if stats == nil {
		stats = observability.NewNoopEmitter()
	}
	return &Pipeline{
		Catalog:         cat,
		Registry:        reg,
		Flight:          flight,
		Stats:           stats,
		Guards:          guards,
		DefaultCacheTTL: defaultTTL,
	}
}

// Query runs one semantic query for an authenticated caller.
func (p *Pipeline) Query(ctx context.Context, tc auth.TenantContext, q *models.QueryRequest) (*models.QueryResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()

	stat := observability.QueryStat{
		RequestID: requestID,
		Tenant:    tc.Tenant,
		Role:      string(tc.Role),
		Dataset:   q.Dataset,
	}
	defer p.emit(ctx, &stat, start)

	if err := p.checkGuards(q); err != nil {
		stat.Outcome = "rejected"
		stat.Error = err.Error()
		return nil, stamp(err, requestID)
	}

	ds, err := p.Catalog.GetDataset(ctx, q.Dataset)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}
	stat.Engine = ds.Engine

	decision, err := rls.Evaluate(ds, tc)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}
	stat.RLSApplied = decision.Applied
	stat.RLSBypassed = decision.Bypassed

	erd, err := p.Catalog.GetERD(ctx, ds.SourceID)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}
	model, err := p.Catalog.GetSemanticModel(ctx, ds.ID)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}

	compiler := &semantic.Compiler{RowMax: p.Guards.MaxRows}
	plan, err := compiler.Compile(semantic.Input{
		Query:   q,
		Dataset: ds,
		ERD:     erd,
		Model:   model,
		RLS:     decision,
	})
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}

	dialect := sqlbuilder.DialectFor(ds.Engine)
	sqlText, params, err := sqlbuilder.Build(plan, dialect)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}

	fingerprint, err := cache.Fingerprint(q, tc, ds.SourceID, ds.Engine, plan.Limit, plan.Offset, len(plan.GroupBy) > 0)
	if err != nil {
		return nil, p.fail(&stat, requestID, errors.NewInternal(err))
	}
	stat.Fingerprint = fingerprint

	result, cacheHit, err := p.executeCached(ctx, ds, fingerprint, q.NoCache, sqlText, params)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}
	result.Fingerprint = fingerprint
	stat.CacheHit = cacheHit
	stat.RowCount = result.RowCount
	stat.Outcome = "success"

	return &models.QueryResponse{
		RequestID:   requestID,
		Result:      result,
		RLSApplied:  decision.Applied,
		RLSBypassed: decision.Bypassed,
		Duration:    time.Since(start).String(),
	}, nil
}

// RawQuery runs engine-native SQL through the same guardrails: the
// statement is validated, the tenant predicate is injected into its
// WHERE clause, and the result is cached under a raw fingerprint.
func (p *Pipeline) RawQuery(ctx context.Context, tc auth.TenantContext, q *models.RawQueryRequest) (*models.QueryResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()

	stat := observability.QueryStat{
		RequestID: requestID,
		Tenant:    tc.Tenant,
		Role:      string(tc.Role),
		Dataset:   q.Dataset,
	}
	defer p.emit(ctx, &stat, start)

	ds, err := p.Catalog.GetDataset(ctx, q.Dataset)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}
	stat.Engine = ds.Engine
	dialect := sqlbuilder.DialectFor(ds.Engine)

	if err := sqlbuilder.Validate(q.SQL, dialect); err != nil {
		stat.Outcome = "rejected"
		stat.Error = err.Error()
		return nil, stamp(err, requestID)
	}

	decision, err := rls.Evaluate(ds, tc)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}
	stat.RLSApplied = decision.Applied
	stat.RLSBypassed = decision.Bypassed

	sqlText, params := q.SQL, q.Params
	if decision.Predicate != nil {
		sqlText, params, err = sqlbuilder.ApplyRLS(q.SQL, q.Params, decision.Predicate, dialect, dialect)
		if err != nil {
			return nil, p.fail(&stat, requestID, err)
		}
	}

	fingerprint, err := cache.FingerprintRaw(q, tc, ds.SourceID, ds.Engine)
	if err != nil {
		return nil, p.fail(&stat, requestID, errors.NewInternal(err))
	}
	stat.Fingerprint = fingerprint

	result, cacheHit, err := p.executeCached(ctx, ds, fingerprint, q.NoCache, sqlText, params)
	if err != nil {
		return nil, p.fail(&stat, requestID, err)
	}
	result.Fingerprint = fingerprint
	stat.CacheHit = cacheHit
	stat.RowCount = result.RowCount
	stat.Outcome = "success"

	return &models.QueryResponse{
		RequestID:   requestID,
		Result:      result,
		RLSApplied:  decision.Applied,
		RLSBypassed: decision.Bypassed,
		Duration:    time.Since(start).String(),
	}, nil
}

// Health reports per-source adapter health.
func (p *Pipeline) Health(ctx context.Context) models.HealthStatus {
	status := models.HealthStatus{
		Status:  "ok",
		Sources: make(map[string]string),
		Time:    time.Now().UTC(),
	}
	for id, err := range p.Registry.CheckAllHealth(ctx) {
		if err != nil {
			status.Status = "degraded"
			status.Sources[id] = err.Error()
		} else {
			status.Sources[id] = "ok"
		}
	}
	return status
}

// executeCached runs the statement through the cache and single-flight
// layer, or directly when caching is off for this request.
func (p *Pipeline) executeCached(ctx context.Context, ds *catalog.Dataset, fingerprint string, noCache bool, sqlText string, params []interface{}) (*models.QueryResult, bool, error) {
	exec := func(ctx context.Context) (*models.QueryResult, error) {
		return p.execute(ctx, ds, sqlText, params)
	}

	if noCache || p.Flight == nil {
		res, err := exec(ctx)
		return res, false, err
	}

	ttl := ds.CacheTTL
	if ttl <= 0 {
		ttl = p.DefaultCacheTTL
	}

	out, err := p.Flight.Do(ctx, fingerprint, ttl, exec)
	if err != nil {
		return nil, false, err
	}
	return out.Result, out.CacheHit, nil
}

// execute resolves the adapter, rewrites placeholders, and runs the
// statement under the dataset and global timeouts. A ConnectionError
// evicts the adapter so the next request reconstructs it.
func (p *Pipeline) execute(ctx context.Context, ds *catalog.Dataset, sqlText string, params []interface{}) (*models.QueryResult, error) {
	adapter, err := p.Registry.Get(ctx, ds.SourceID)
	if err != nil {
		return nil, err
	}

	native, nativeParams, err := adapter.RewritePlaceholders(sqlText, params)
	if err != nil {
		return nil, err
	}

	execCtx := ctx
	if timeout := p.executionTimeout(ds); timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := adapter.Execute(execCtx, native, nativeParams)
	if err != nil {
		if errors.Is(err, errors.KindConnection) {
			p.Registry.Evict(ds.SourceID)
		}
		return nil, err
	}

	return &models.QueryResult{
		Columns:     res.Columns,
		Rows:        res.Rows,
		RowCount:    res.RowCount,
		ExecutionMs: res.ExecutionMs,
		Engine:      ds.Engine,
	}, nil
}

// executionTimeout is the smaller of the dataset and global timeouts.
func (p *Pipeline) executionTimeout(ds *catalog.Dataset) time.Duration {
	timeout := ds.QueryTimeout
	if p.Guards.GlobalTimeout > 0 && (timeout <= 0 || timeout > p.Guards.GlobalTimeout) {
		timeout = p.Guards.GlobalTimeout
	}
	return timeout
}

// checkGuards rejects oversized requests before any catalog work.
func (p *Pipeline) checkGuards(q *models.QueryRequest) error {
	if q.Dataset == "" {
		return errors.NewValidation("dataset is required")
	}
	if p.Guards.MaxDimensions > 0 && len(q.Dimensions) > p.Guards.MaxDimensions {
		return errors.NewValidation("too many dimensions: %d exceeds the limit of %d",
			len(q.Dimensions), p.Guards.MaxDimensions)
	}
	if p.Guards.MaxMetrics > 0 && len(q.Metrics) > p.Guards.MaxMetrics {
		return errors.NewValidation("too many metrics: %d exceeds the limit of %d",
			len(q.Metrics), p.Guards.MaxMetrics)
	}
	if p.Guards.MaxFilterDepth > 0 && q.Filters.Depth() > p.Guards.MaxFilterDepth {
		return errors.NewValidation("filter tree deeper than the limit of %d", p.Guards.MaxFilterDepth)
	}
	return nil
}

// fail marks the stat and stamps the request id onto the error.
func (p *Pipeline) fail(stat *observability.QueryStat, requestID string, err error) error {
	stat.Outcome = "error"
	stat.Error = err.Error()
	return stamp(err, requestID)
}

// emit delivers the request stat, best effort.
func (p *Pipeline) emit(ctx context.Context, stat *observability.QueryStat, start time.Time) {
	stat.Duration = time.Since(start)
	if stat.Tenant == "" {
		stat.Tenant = "unknown"
	}
	// Emission must survive request cancellation.
	p.Stats.EmitQueryStat(context.WithoutCancel(ctx), *stat)
}

func stamp(err error, requestID string) error {
	var ge *errors.GatewayError
	if asGateway(err, &ge) {
		return ge.WithRequestID(requestID)
	}
	return fmt.Errorf("request %s: %w", requestID, err)
}

func asGateway(err error, target **errors.GatewayError) bool {
	for err != nil {
		if ge, ok := err.(*errors.GatewayError); ok {
			*target = ge
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
