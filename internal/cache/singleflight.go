package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/pkg/models"
)

// FallbackMode selects what a follower does when the leader does not
// publish a result within the wait timeout.
type FallbackMode string

const (
	// FallbackPromote has the follower execute the query itself.
	FallbackPromote FallbackMode = "promote"

	// FallbackFail has the follower return a CoalesceTimeout error.
	FallbackFail FallbackMode = "fail"
)

// Default protocol timings. The lock TTL exceeds the wait timeout so a
// live leader never loses its lock mid-query; a crashed leader's lock
// expires and the next caller takes over.
const (
	DefaultLockTTL      = 30 * time.Second
	DefaultWaitTimeout  = 10 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	DefaultErrorTTL     = 2 * time.Second
)

// Options tunes the single-flight protocol.
type Options struct {
	LockTTL      time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration

	// ErrorTTL is the lifetime of a published failure, kept short so
	// transient errors do not poison the fingerprint.
	ErrorTTL time.Duration

	// Fallback is what followers do on wait timeout. Empty means
	// FallbackPromote.
	Fallback FallbackMode

	// MaxValueBytes skips the cache write for results larger than this.
	// Zero means no bound.
	MaxValueBytes int
}

func (o Options) withDefaults() Options {
	if o.LockTTL <= 0 {
		o.LockTTL = DefaultLockTTL
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultWaitTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ErrorTTL <= 0 {
		o.ErrorTTL = DefaultErrorTTL
	}
	if o.Fallback == "" {
		o.Fallback = FallbackPromote
	}
	return o
}

// Outcome is the result of a single-flight execution.
type Outcome struct {
	Result *models.QueryResult

	// CacheHit is true when the result came from the store, whether it
	// was already cached or published by a concurrent leader.
	CacheHit bool

	// Degraded is true when the store failed and the call fell back to
	// in-process coalescing. Callers log this; it never fails a request.
	Degraded bool
}

// envelope is the stored form of a settled execution. Failures are
// published too, so followers fail fast with the leader's error instead
// of all timing out.
type envelope struct {
	Result  *models.QueryResult `json:"result,omitempty"`
	ErrKind string              `json:"err_kind,omitempty"`
	ErrMsg  string              `json:"err_msg,omitempty"`
}

// Flight coalesces executions of the same fingerprint across gateway
// instances via store locks, and within the process when the store is
// down.
type Flight struct {
	store Store
	opts  Options
	local singleflight.Group
}

// NewFlight creates a Flight over the given store.
func NewFlight(store Store, opts Options) *Flight {
	return &Flight{store: store, opts: opts.withDefaults()}
}

// Do returns the cached result for fingerprint, or arranges for exactly
// one concurrent caller to execute fn and every other caller to observe
// its outcome. ttl bounds the cached result's lifetime; ttl <= 0 caches
// nothing but still coalesces.
func (f *Flight) Do(ctx context.Context, fingerprint string, ttl time.Duration, fn func(context.Context) (*models.QueryResult, error)) (Outcome, error) {
	if out, done, err := f.lookup(ctx, fingerprint); done {
		return out, err
	} else if out.Degraded {
		return f.localDo(ctx, fingerprint, fn)
	}

	deadline := time.Now().Add(f.opts.WaitTimeout)
	for {
		acquired, err := f.store.AcquireLock(ctx, lockKey(fingerprint), f.opts.LockTTL)
		if err != nil {
			return f.localDo(ctx, fingerprint, fn)
		}
		if acquired {
			return f.lead(ctx, fingerprint, ttl, fn)
		}

		out, settled, err := f.follow(ctx, fingerprint, deadline)
		if settled {
			return out, err
		}
		if out.Degraded {
			return f.localDo(ctx, fingerprint, fn)
		}

		// Wait timed out and the lock is still held.
		switch f.opts.Fallback {
		case FallbackFail:
			return Outcome{}, errors.NewCoalesceTimeout(fingerprint)
		default:
			res, err := fn(ctx)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Result: res}, nil
		}
	}
}

// Invalidate removes the cached result for a fingerprint.
func (f *Flight) Invalidate(ctx context.Context, fingerprint string) error {
	return f.store.Del(ctx, resultKey(fingerprint))
}

// lookup checks the store once. done=true means the outcome (hit or
// published error) is final.
func (f *Flight) lookup(ctx context.Context, fingerprint string) (Outcome, bool, error) {
	val, ok, err := f.store.Get(ctx, resultKey(fingerprint))
	if err != nil {
		return Outcome{Degraded: true}, false, nil
	}
	if !ok {
		return Outcome{}, false, nil
	}
	out, err := decodeEnvelope(val)
	return out, true, err
}

// lead executes fn and publishes the outcome before releasing the lock,
// so followers never observe a released lock with no result.
func (f *Flight) lead(ctx context.Context, fingerprint string, ttl time.Duration, fn func(context.Context) (*models.QueryResult, error)) (Outcome, error) {
	defer f.store.ReleaseLock(context.WithoutCancel(ctx), lockKey(fingerprint))

	res, err := fn(ctx)
	if err != nil {
		f.publishError(ctx, fingerprint, err)
		return Outcome{}, err
	}

	degraded := false
	if ttl > 0 {
		if data, merr := json.Marshal(envelope{Result: res}); merr == nil {
			if f.opts.MaxValueBytes <= 0 || len(data) <= f.opts.MaxValueBytes {
				if serr := f.store.SetWithTTL(ctx, resultKey(fingerprint), data, ttl); serr != nil {
					degraded = true
				}
			}
		}
	}
	return Outcome{Result: res, Degraded: degraded}, nil
}

// follow polls for the leader's published outcome until the deadline.
// settled=false with Degraded=false means the wait timed out.
func (f *Flight) follow(ctx context.Context, fingerprint string, deadline time.Time) (Outcome, bool, error) {
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, true, errors.Wrap(errors.KindTimeout, ctx.Err(),
				"request canceled while waiting for in-flight query")
		case <-ticker.C:
		}

		val, ok, err := f.store.Get(ctx, resultKey(fingerprint))
		if err != nil {
			return Outcome{Degraded: true}, false, nil
		}
		if ok {
			out, derr := decodeEnvelope(val)
			return out, true, derr
		}

		if !time.Now().Before(deadline) {
			return Outcome{}, false, nil
		}

		// A released lock with no published result means the leader
		// died before publishing; contend for the lock again.
		if held, lerr := f.lockHeld(ctx, fingerprint); lerr == nil && !held {
			return Outcome{}, false, nil
		}
	}
}

// lockHeld reports whether the fingerprint's lock currently exists.
func (f *Flight) lockHeld(ctx context.Context, fingerprint string) (bool, error) {
	_, ok, err := f.store.Get(ctx, lockKey(fingerprint))
	return ok, err
}

// publishError stores the failure under a short TTL, best effort.
func (f *Flight) publishError(ctx context.Context, fingerprint string, cause error) {
	data, err := json.Marshal(envelope{
		ErrKind: string(errors.KindOf(cause)),
		ErrMsg:  cause.Error(),
	})
	if err != nil {
		return
	}
	f.store.SetWithTTL(context.WithoutCancel(ctx), resultKey(fingerprint), data, f.opts.ErrorTTL)
}

// localDo coalesces in process when the store is unavailable.
func (f *Flight) localDo(ctx context.Context, fingerprint string, fn func(context.Context) (*models.QueryResult, error)) (Outcome, error) {
	v, err, shared := f.local.Do(fingerprint, func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return Outcome{Degraded: true}, err
	}
	return Outcome{Result: v.(*models.QueryResult), CacheHit: shared, Degraded: true}, nil
}

func decodeEnvelope(val []byte) (Outcome, error) {
	var env envelope
	if err := json.Unmarshal(val, &env); err != nil {
		return Outcome{}, errors.Wrap(errors.KindInternal, err, "corrupt cache entry")
	}
	if env.ErrKind != "" {
		return Outcome{}, errors.New(errors.Kind(env.ErrKind), "%s", env.ErrMsg)
	}
	if env.Result != nil {
		env.Result.CacheHit = true
	}
	return Outcome{Result: env.Result, CacheHit: true}, nil
}

func resultKey(fp string) string { return "semgate:q:" + fp }
func lockKey(fp string) string   { return "semgate:lock:" + fp }
