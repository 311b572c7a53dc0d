// Package observability provides structured query-stat emission for the
// gateway. Every query, cached or not, emits exactly one stat record
// carrying the fingerprint, tenant, dataset, engine, row count, duration,
// and the cache and RLS outcomes. Emission is best-effort: a failing
// emitter never fails the query.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// QueryStat is the per-query record emitted after a request settles.
type QueryStat struct {
	// RequestID identifies the request; required.
	RequestID string

	// Fingerprint is the cache fingerprint of the compiled query. Only
	// a prefix is emitted; the full hash stays internal.
	Fingerprint string

	// Tenant and Role identify the caller; Tenant is required.
	Tenant string
	Role   string

	// Dataset and Engine identify what ran where.
	Dataset string
	Engine  string

	// RowCount is the number of result rows returned.
	RowCount int

	// Duration is the end-to-end request time. Must be non-negative.
	Duration time.Duration

	// CacheHit is true when the result came from the cache, including
	// results observed while following another in-flight request.
	CacheHit bool

	// RLSApplied and RLSBypassed record the tenant-scoping decision.
	RLSApplied  bool
	RLSBypassed bool

	// Outcome is "success", "error", or "rejected".
	Outcome string

	// Error carries the failure message, empty on success.
	Error string
}

// fingerprintPrefixLen bounds how much of the hash leaves the process.
const fingerprintPrefixLen = 12

// Validate checks the required stat fields.
func (s *QueryStat) Validate() error {
	if s.RequestID == "" {
		return fmt.Errorf("observability: request_id is required")
	}
	if s.Tenant == "" {
		return fmt.Errorf("observability: tenant is required")
	}
	if s.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// StatsEmitter receives settled query stats.
type StatsEmitter interface {
	// EmitQueryStat records one query. Returns an error if the stat is
	// invalid or the sink rejected it; callers treat failures as
	// non-fatal.
	EmitQueryStat(ctx context.Context, stat QueryStat) error

	// Summary returns aggregated statistics without raw query data.
	Summary() *StatsSummary
}

// StatsSummary is the aggregate view exposed over the admin surface.
type StatsSummary struct {
	SuccessCount   int                `json:"success_count"`
	ErrorCount     int                `json:"error_count"`
	CacheHitCount  int                `json:"cache_hit_count"`
	RLSBypassCount int                `json:"rls_bypass_count"`
	TopErrors      []ErrorStat        `json:"top_errors"`
	TopDatasets    []DatasetQueryStat `json:"top_datasets"`
}

// ErrorStat counts occurrences of one error message.
type ErrorStat struct {
	Error string `json:"error"`
	Count int    `json:"count"`
}

// DatasetQueryStat counts queries against one dataset.
type DatasetQueryStat struct {
	Dataset string `json:"dataset"`
	Count   int    `json:"count"`
}

// statLine is the wire shape of one emitted stat.
type statLine struct {
	Timestamp   string `json:"timestamp"`
	Level       string `json:"level"`
	RequestID   string `json:"request_id"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Tenant      string `json:"tenant"`
	Role        string `json:"role,omitempty"`
	Dataset     string `json:"dataset"`
	Engine      string `json:"engine,omitempty"`
	RowCount    int    `json:"row_count"`
	DurationMs  int64  `json:"duration_ms"`
	CacheHit    bool   `json:"cache_hit"`
	RLSApplied  bool   `json:"rls_applied"`
	RLSBypassed bool   `json:"rls_bypassed"`
	Outcome     string `json:"outcome,omitempty"`
	Error       string `json:"error,omitempty"`
}

// JSONEmitter writes one JSON line per stat and keeps an in-memory
// aggregate for the summary endpoint.
type JSONEmitter struct {
	writer io.Writer
	stats  []QueryStat
	mu     sync.RWMutex
}

// NewJSONEmitter creates an emitter writing to the given writer.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{writer: w}
}

// EmitQueryStat writes the stat as a single JSON line.
func (e *JSONEmitter) EmitQueryStat(ctx context.Context, stat QueryStat) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := stat.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(toLine(stat))
	if err != nil {
		return fmt.Errorf("observability: failed to marshal stat: %w", err)
	}
	if _, err := e.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("observability: failed to write stat: %w", err)
	}

	e.mu.Lock()
	e.stats = append(e.stats, stat)
	e.mu.Unlock()
	return nil
}

// Summary aggregates the stats seen so far.
func (e *JSONEmitter) Summary() *StatsSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return summarize(e.stats)
}

// NoopEmitter discards all stats.
type NoopEmitter struct{}

// NewNoopEmitter creates an emitter that discards everything.
func NewNoopEmitter() *NoopEmitter { return &NoopEmitter{} }

// EmitQueryStat does nothing and always succeeds.
func (e *NoopEmitter) EmitQueryStat(ctx context.Context, stat QueryStat) error { return nil }

// Summary returns an empty summary.
func (e *NoopEmitter) Summary() *StatsSummary {
	return &StatsSummary{TopErrors: []ErrorStat{}, TopDatasets: []DatasetQueryStat{}}
}

// PersistentEmitter writes stats to a query_stats table so they survive
// restarts, optionally mirroring each line to a writer.
type PersistentEmitter struct {
	db     *sql.DB
	writer io.Writer
}

// NewPersistentEmitter creates an emitter persisting to the given
// database.
func NewPersistentEmitter(db *sql.DB) (*PersistentEmitter, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent stats")
	}
	return &PersistentEmitter{db: db}, nil
}

// NewPersistentEmitterWithWriter also mirrors each stat to a writer.
func NewPersistentEmitterWithWriter(db *sql.DB, w io.Writer) (*PersistentEmitter, error) {
	e, err := NewPersistentEmitter(db)
	if err != nil {
		return nil, err
	}
	e.writer = w
	return e, nil
}

// EmitQueryStat inserts the stat into query_stats.
func (e *PersistentEmitter) EmitQueryStat(ctx context.Context, stat QueryStat) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := stat.Validate(); err != nil {
		return err
	}

	const insert = `
		INSERT INTO query_stats (
			request_id, fingerprint, tenant, role, dataset, engine,
			row_count, duration_ms, cache_hit, rls_applied, rls_bypassed,
			outcome, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := e.db.ExecContext(ctx, insert,
		stat.RequestID,
		prefix(stat.Fingerprint),
		stat.Tenant,
		nullable(stat.Role),
		stat.Dataset,
		nullable(stat.Engine),
		stat.RowCount,
		stat.Duration.Milliseconds(),
		stat.CacheHit,
		stat.RLSApplied,
		stat.RLSBypassed,
		nullable(stat.Outcome),
		nullable(stat.Error),
	)
	if err != nil {
		return fmt.Errorf("observability: failed to persist stat: %w", err)
	}

	if e.writer != nil {
		if data, err := json.Marshal(toLine(stat)); err == nil {
			e.writer.Write(append(data, '\n'))
		}
	}
	return nil
}

// Summary aggregates from the database.
func (e *PersistentEmitter) Summary() *StatsSummary {
	summary := &StatsSummary{TopErrors: []ErrorStat{}, TopDatasets: []DatasetQueryStat{}}
	ctx := context.Background()

	row := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM query_stats WHERE error_message IS NULL OR error_message = ''`)
	row.Scan(&summary.SuccessCount)

	row = e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM query_stats WHERE error_message IS NOT NULL AND error_message != ''`)
	row.Scan(&summary.ErrorCount)

	row = e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_stats WHERE cache_hit`)
	row.Scan(&summary.CacheHitCount)

	row = e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_stats WHERE rls_bypassed`)
	row.Scan(&summary.RLSBypassCount)

	rows, err := e.db.QueryContext(ctx, `
		SELECT error_message, COUNT(*) AS cnt
		FROM query_stats
		WHERE error_message IS NOT NULL AND error_message != ''
		GROUP BY error_message
		ORDER BY cnt DESC
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var s ErrorStat
			if rows.Scan(&s.Error, &s.Count) == nil {
				summary.TopErrors = append(summary.TopErrors, s)
			}
		}
	}

	rows, err = e.db.QueryContext(ctx, `
		SELECT dataset, COUNT(*) AS cnt
		FROM query_stats
		GROUP BY dataset
		ORDER BY cnt DESC
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var s DatasetQueryStat
			if rows.Scan(&s.Dataset, &s.Count) == nil {
				summary.TopDatasets = append(summary.TopDatasets, s)
			}
		}
	}

	return summary
}

func toLine(stat QueryStat) statLine {
	level := "info"
	if stat.Error != "" {
		level = "error"
	}
	return statLine{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Level:       level,
		RequestID:   stat.RequestID,
		Fingerprint: prefix(stat.Fingerprint),
		Tenant:      stat.Tenant,
		Role:        stat.Role,
		Dataset:     stat.Dataset,
		Engine:      stat.Engine,
		RowCount:    stat.RowCount,
		DurationMs:  stat.Duration.Milliseconds(),
		CacheHit:    stat.CacheHit,
		RLSApplied:  stat.RLSApplied,
		RLSBypassed: stat.RLSBypassed,
		Outcome:     stat.Outcome,
		Error:       stat.Error,
	}
}

func summarize(stats []QueryStat) *StatsSummary {
	summary := &StatsSummary{TopErrors: []ErrorStat{}, TopDatasets: []DatasetQueryStat{}}

	errCounts := make(map[string]int)
	dsCounts := make(map[string]int)
	for _, s := range stats {
		if s.Error == "" {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
			errCounts[s.Error]++
		}
		if s.CacheHit {
			summary.CacheHitCount++
		}
		if s.RLSBypassed {
			summary.RLSBypassCount++
		}
		dsCounts[s.Dataset]++
	}

	for msg, n := range errCounts {
		summary.TopErrors = append(summary.TopErrors, ErrorStat{Error: msg, Count: n})
	}
	sort.Slice(summary.TopErrors, func(i, j int) bool {
		if summary.TopErrors[i].Count != summary.TopErrors[j].Count {
			return summary.TopErrors[i].Count > summary.TopErrors[j].Count
		}
		return summary.TopErrors[i].Error < summary.TopErrors[j].Error
	})
	if len(summary.TopErrors) > 5 {
		summary.TopErrors = summary.TopErrors[:5]
	}

	for ds, n := range dsCounts {
		summary.TopDatasets = append(summary.TopDatasets, DatasetQueryStat{Dataset: ds, Count: n})
	}
	sort.Slice(summary.TopDatasets, func(i, j int) bool {
		if summary.TopDatasets[i].Count != summary.TopDatasets[j].Count {
			return summary.TopDatasets[i].Count > summary.TopDatasets[j].Count
		}
		return summary.TopDatasets[i].Dataset < summary.TopDatasets[j].Dataset
	})
	if len(summary.TopDatasets) > 5 {
		summary.TopDatasets = summary.TopDatasets[:5]
	}

	return summary
}

// prefix truncates a fingerprint so raw hashes never leave the process.
func prefix(fp string) string {
	if len(fp) > fingerprintPrefixLen {
		return fp[:fingerprintPrefixLen]
	}
	return fp
}

// nullable converts empty strings to SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
