package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"feedsync/internal/logger"
	"feedsync/internal/model"
)

// DefaultRetryAfter is used when a rate limited response carries no hint.
const DefaultRetryAfter = time.Second

// Outcome tells whether Upsert created a new record or updated one.
type Outcome int

const (
	Created Outcome = iota + 1
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures an Adapter.
type Options struct {
	// RequestInterval is the minimum spacing between backend calls.
	// Zero disables pacing.
	RequestInterval time.Duration
	// MaxRateLimitRetries bounds retries of one call after rate limiting.
	// Zero retries without limit.
	MaxRateLimitRetries int
	// Timeout applies to each backend call. Zero means no timeout.
	Timeout time.Duration
	Sleep   SleepFunc
}

// Adapter wraps a Backend with pacing, 429 retries and the upsert protocol.
type Adapter struct {
	backend    Backend
	limiter    *rate.Limiter
	maxRetries int
	timeout    time.Duration
	sleep      SleepFunc
}

func NewAdapter(backend Backend, opts Options) *Adapter {
	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Adapter{
		backend:    backend,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: opts.MaxRateLimitRetries,
		timeout:    opts.Timeout,
		sleep:      sleep,
	}
}

// FindByGUID returns the record whose GUID equals guid, or nil.
func (a *Adapter) FindByGUID(ctx context.Context, guid string) (*model.RemoteRecord, error) {
	return call(ctx, a, "find", func(ctx context.Context) (*model.RemoteRecord, error) {
		return a.backend.FindByGUID(ctx, guid)
	})
}

// Create inserts a new record for entry.
func (a *Adapter) Create(ctx context.Context, entry model.Entry) (model.RemoteRecord, error) {
	props := BuildProperties(entry)
	return call(ctx, a, "create", func(ctx context.Context) (model.RemoteRecord, error) {
		return a.backend.Create(ctx, props)
	})
}

// Update overwrites the record id with entry.
func (a *Adapter) Update(ctx context.Context, id string, entry model.Entry) (model.RemoteRecord, error) {
	props := BuildProperties(entry)
	return call(ctx, a, "update", func(ctx context.Context) (model.RemoteRecord, error) {
		return a.backend.Update(ctx, id, props)
	})
}

// Upsert updates the record matching entry.GUID, or creates one.
func (a *Adapter) Upsert(ctx context.Context, entry model.Entry) (Outcome, model.RemoteRecord, error) {
	existing, err := a.FindByGUID(ctx, entry.GUID)
	if err != nil {
		return 0, model.RemoteRecord{}, fmt.Errorf("find by guid: %w", err)
	}

	if existing != nil {
		record, err := a.Update(ctx, existing.ID, entry)
		if err != nil {
			return 0, model.RemoteRecord{}, fmt.Errorf("update %s: %w", existing.ID, err)
		}
		logger.Debug("entry updated", "module", "store", "action", "update", "resource", "entry", "result", "ok", "guid", entry.GUID, "id", record.ID)
		return Updated, record, nil
	}

	record, err := a.Create(ctx, entry)
	if err != nil {
		return 0, model.RemoteRecord{}, fmt.Errorf("create: %w", err)
	}
	logger.Debug("entry created", "module", "store", "action", "create", "resource", "entry", "result", "ok", "guid", entry.GUID, "id", record.ID)
	return Created, record, nil
}

// TestConnection reports whether the store is reachable.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	_, err := call(ctx, a, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.backend.Ping(ctx)
	})
	if err != nil {
		logger.Error("store connection failed", "module", "store", "action", "ping", "resource", "store", "result", "failed", "error", err)
		return false
	}
	logger.Info("store connection ok", "module", "store", "action", "ping", "resource", "store", "result", "ok")
	return true
}

// call runs fn after the limiter admits it and retries the same call while
// the backend reports rate limiting.
func call[T any](ctx context.Context, a *Adapter, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for retries := 0; ; retries++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return zero, err
		}

		result, err := invoke(ctx, a.timeout, fn)
		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			return result, err
		}

		if a.maxRetries > 0 && retries >= a.maxRetries {
			return zero, fmt.Errorf("%s: %w (%d retries)", op, ErrRateLimitExhausted, retries)
		}
		wait := rateErr.RetryAfter
		if wait <= 0 {
			wait = DefaultRetryAfter
		}
		logger.Warn("store rate limited", "module", "store", "action", op, "resource", "store", "result", "retry", "retry_after_ms", wait.Milliseconds(), "attempt", retries+1)
		if err := a.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

func invoke[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
