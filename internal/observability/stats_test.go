package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func sampleStat() QueryStat {
	return QueryStat{
		RequestID:   "req-1",
		Fingerprint: "abcdef0123456789abcdef0123456789",
		Tenant:      "acme",
		Role:        "user",
		Dataset:     "sales",
		Engine:      "postgres",
		RowCount:    42,
		Duration:    150 * time.Millisecond,
		CacheHit:    true,
		RLSApplied:  true,
		Outcome:     "success",
	}
}

func TestQueryStatValidate(t *testing.T) {
	s := sampleStat()
	if err := s.Validate(); err != nil {
		t.Errorf("valid stat rejected: %v", err)
	}

	s = sampleStat()
	s.RequestID = ""
	if err := s.Validate(); err == nil {
		t.Error("missing request id accepted")
	}

	s = sampleStat()
	s.Tenant = ""
	if err := s.Validate(); err == nil {
		t.Error("missing tenant accepted")
	}

	s = sampleStat()
	s.Duration = -time.Second
	if err := s.Validate(); err == nil {
		t.Error("negative duration accepted")
	}
}

func TestJSONEmitterLine(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONEmitter(&buf)

	if err := e.EmitQueryStat(context.Background(), sampleStat()); err != nil {
		t.Fatalf("EmitQueryStat() error: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("stat is not a JSON line: %v", err)
	}

	if decoded["tenant"] != "acme" || decoded["dataset"] != "sales" {
		t.Errorf("line = %v", decoded)
	}
	if decoded["duration_ms"] != float64(150) {
		t.Errorf("duration_ms = %v", decoded["duration_ms"])
	}
	// Only a fingerprint prefix leaves the process.
	if fp := decoded["fingerprint"].(string); fp != "abcdef012345" {
		t.Errorf("fingerprint = %s, want 12-char prefix", fp)
	}
	if decoded["level"] != "info" {
		t.Errorf("level = %v", decoded["level"])
	}
}

func TestJSONEmitterErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONEmitter(&buf)

	s := sampleStat()
	s.Outcome = "error"
	s.Error = "QueryError: query execution on postgres failed"
	if err := e.EmitQueryStat(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("line = %s", buf.String())
	}
}

func TestJSONEmitterRejectsInvalid(t *testing.T) {
	e := NewJSONEmitter(&bytes.Buffer{})
	if err := e.EmitQueryStat(context.Background(), QueryStat{}); err == nil {
		t.Error("invalid stat accepted")
	}
}

func TestSummaryAggregation(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONEmitter(&buf)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e.EmitQueryStat(ctx, sampleStat())
	}

	s := sampleStat()
	s.Dataset = "inventory"
	s.CacheHit = false
	s.RLSBypassed = true
	e.EmitQueryStat(ctx, s)

	bad := sampleStat()
	bad.Outcome = "error"
	bad.Error = "boom"
	e.EmitQueryStat(ctx, bad)

	sum := e.Summary()
	if sum.SuccessCount != 4 || sum.ErrorCount != 1 {
		t.Errorf("counts = %d success %d error", sum.SuccessCount, sum.ErrorCount)
	}
	if sum.CacheHitCount != 4 {
		t.Errorf("cache hits = %d", sum.CacheHitCount)
	}
	if sum.RLSBypassCount != 1 {
		t.Errorf("bypasses = %d", sum.RLSBypassCount)
	}
	if len(sum.TopErrors) != 1 || sum.TopErrors[0].Error != "boom" {
		t.Errorf("top errors = %v", sum.TopErrors)
	}
	if len(sum.TopDatasets) != 2 || sum.TopDatasets[0].Dataset != "sales" || sum.TopDatasets[0].Count != 4 {
		t.Errorf("top datasets = %v", sum.TopDatasets)
	}
}

func TestSummaryTopFiveDeterministic(t *testing.T) {
	e := NewJSONEmitter(&bytes.Buffer{})
	ctx := context.Background()

	// Seven datasets with one query each; ties break alphabetically.
	for _, ds := range []string{"g", "c", "e", "a", "f", "b", "d"} {
		s := sampleStat()
		s.Dataset = ds
		e.EmitQueryStat(ctx, s)
	}

	sum := e.Summary()
	if len(sum.TopDatasets) != 5 {
		t.Fatalf("top datasets = %v", sum.TopDatasets)
	}
	for i, want := range []string{"a", "b", "c", "d", "e"} {
		if sum.TopDatasets[i].Dataset != want {
			t.Errorf("top[%d] = %s, want %s", i, sum.TopDatasets[i].Dataset, want)
		}
	}
}

func TestPersistentEmitterInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	e, err := NewPersistentEmitter(db)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec("INSERT INTO query_stats").
		WithArgs("req-1", "abcdef012345", "acme", "user", "sales", "postgres",
			42, int64(150), true, true, false, "success", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := e.EmitQueryStat(context.Background(), sampleStat()); err != nil {
		t.Fatalf("EmitQueryStat() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPersistentEmitterRequiresDB(t *testing.T) {
	if _, err := NewPersistentEmitter(nil); err == nil {
		t.Error("nil db accepted")
	}
}
