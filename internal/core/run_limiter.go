package core

// run_limiter.go bounds how many runs a Service executes at once.
//
// Each run holds one slot of a weighted semaphore for its whole duration.
// A run that cannot get a slot within the wait limit fails with
// ErrTooManyRuns. Drain blocks until every slot is free, which the server
// uses during graceful shutdown.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/JonMunkholm/planos/internal/logging"
)

// ErrTooManyRuns is returned when every run slot stays busy for the whole
// wait limit. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

const (
	DefaultMaxConcurrentRuns = 4
	DefaultMaxWait           = 30 * time.Second
)

// RunLimiter is a counting semaphore over runs.
type RunLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration
	active  atomic.Int64
}

// NewRunLimiter allows at most maxConcurrent simultaneous runs, each waiting
// at most maxWait for a slot. Non-positive values use the defaults.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &RunLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it exactly once.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if l.sem.TryAcquire(1) {
		l.active.Add(1)
		return nil
	}

	start := time.Now()
	logging.FromContext(ctx).Debug("waiting for run slot",
		"run_id", RunIDFromContext(ctx),
		"active", l.active.Load(),
	)
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
	l.active.Add(1)
	logging.FromContext(ctx).Debug("run slot acquired",
		"run_id", RunIDFromContext(ctx),
		"waited_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// TryAcquire takes a slot without waiting.
func (l *RunLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.active.Add(1)
	return true
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *RunLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// Active returns the number of runs holding a slot.
func (l *RunLimiter) Active() int {
	return int(l.active.Load())
}

// RunLimiterStatus is a snapshot of the limiter.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *RunLimiter) Status() RunLimiterStatus {
	active := l.Active()
	return RunLimiterStatus{
		Active:        active,
		Available:     int(l.max) - active,
		MaxConcurrent: int(l.max),
	}
}

// Drain blocks until no run holds a slot or ctx is done. New runs are held
// off while it waits.
func (l *RunLimiter) Drain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.max); err != nil {
		return err
	}
	l.sem.Release(l.max)
	return nil
}
